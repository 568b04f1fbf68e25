// Package services contains the escrow server's business logic: the
// authorization gate, the cipher orchestrator, and the actor and
// repository administration use cases.
package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dmitrijs2005/keyescrow/internal/common"
	"github.com/dmitrijs2005/keyescrow/internal/cryptox"
	"github.com/dmitrijs2005/keyescrow/internal/logging"
	"github.com/dmitrijs2005/keyescrow/internal/server/auth"
	"github.com/dmitrijs2005/keyescrow/internal/server/config"
	"github.com/dmitrijs2005/keyescrow/internal/server/models"
	"github.com/dmitrijs2005/keyescrow/internal/server/repositories/repomanager"
)

// MinPasswordLength is enforced on registration.
const MinPasswordLength = 8

// ActorService handles registration, login, key enrollment and the
// senior-only administration of other actors.
type ActorService struct {
	db                          *sql.DB
	repomanager                 repomanager.RepositoryManager
	jwtSecret                   []byte
	accessTokenValidityDuration time.Duration
	logger                      logging.Logger

	hashPassword   func(password string) (salt, verifier []byte)
	verifyPassword func(password string, salt, verifier []byte) bool
}

// NewActorService constructs an ActorService using repositories and server config.
func NewActorService(db *sql.DB, m repomanager.RepositoryManager, cfg *config.Config, logger logging.Logger) *ActorService {
	return &ActorService{
		db:                          db,
		repomanager:                 m,
		jwtSecret:                   []byte(cfg.SecretKey),
		accessTokenValidityDuration: cfg.AccessTokenValidityDuration,
		logger:                      logger.With("module", "actors"),
		hashPassword:                cryptox.HashPassword,
		verifyPassword:              cryptox.VerifyPassword,
	}
}

// Register creates an inactive, unverified developer.
func (s *ActorService) Register(ctx context.Context, name, email, password string) (*models.Actor, error) {
	name = strings.TrimSpace(name)
	email = common.NormalizeEmail(email)

	if name == "" {
		return nil, fmt.Errorf("%w: name is required", common.ErrInvalidArgument)
	}
	if err := common.ValidateEmail(email); err != nil {
		return nil, err
	}
	if len(password) < MinPasswordLength {
		return nil, fmt.Errorf("%w: password must be at least %d characters", common.ErrInvalidArgument, MinPasswordLength)
	}

	salt, verifier := s.hashPassword(password)
	actor := &models.Actor{
		Name:             name,
		Email:            email,
		PasswordSalt:     salt,
		PasswordVerifier: verifier,
		Role:             models.RoleDeveloper,
		Status:           models.StatusInactive,
	}

	created, err := s.repomanager.Actors(s.db).Create(ctx, actor)
	if err != nil {
		return nil, fmt.Errorf("error creating actor: %w", err)
	}

	s.logger.Info(ctx, "actor registered", "actor_id", created.ID)
	return created, nil
}

// Login checks the credential and returns an access token.
func (s *ActorService) Login(ctx context.Context, email, password string) (string, error) {
	actor, err := s.repomanager.Actors(s.db).GetByEmail(ctx, common.NormalizeEmail(email))
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			// same work as a real check so timing does not reveal the account
			s.verifyPassword(password, common.GenerateRandByteArray(cryptox.SaltSize), make([]byte, 32))
			return "", common.ErrUnauthenticated
		}
		return "", fmt.Errorf("%w: %v", common.ErrInternal, err)
	}

	if !s.verifyPassword(password, actor.PasswordSalt, actor.PasswordVerifier) {
		return "", common.ErrUnauthenticated
	}

	token, err := auth.GenerateToken(actor.ID, s.jwtSecret, s.accessTokenValidityDuration)
	if err != nil {
		return "", fmt.Errorf("%w: %v", common.ErrInternal, err)
	}
	return token, nil
}

// EnrollEncryptionKey stores the actor's RSA public key. Keys are enrolled
// once and must be at least cryptox.MinRSABits long.
func (s *ActorService) EnrollEncryptionKey(ctx context.Context, actorID, publicKey string) error {
	actor, err := s.liveActor(ctx, actorID)
	if err != nil {
		return err
	}
	if actor.HasEncryptionKey() {
		return fmt.Errorf("%w: encryption key already enrolled", common.ErrConflict)
	}
	if _, err := cryptox.ParseEncryptionKey(publicKey); err != nil {
		return fmt.Errorf("%w: %v", common.ErrInvalidArgument, err)
	}

	if err := s.repomanager.Actors(s.db).SetEncryptionKey(ctx, actor.ID, strings.TrimSpace(publicKey)); err != nil {
		return err
	}
	s.logger.Info(ctx, "encryption key enrolled", "actor_id", actor.ID)
	return nil
}

// EnrollSigningKey stores the actor's ECDSA public key, once.
func (s *ActorService) EnrollSigningKey(ctx context.Context, actorID, publicKey string) error {
	actor, err := s.liveActor(ctx, actorID)
	if err != nil {
		return err
	}
	if actor.HasSigningKey() {
		return fmt.Errorf("%w: signing key already enrolled", common.ErrConflict)
	}
	if _, err := cryptox.ParseSigningKey(publicKey); err != nil {
		return fmt.Errorf("%w: %v", common.ErrInvalidArgument, err)
	}

	if err := s.repomanager.Actors(s.db).SetSigningKey(ctx, actor.ID, strings.TrimSpace(publicKey)); err != nil {
		return err
	}
	s.logger.Info(ctx, "signing key enrolled", "actor_id", actor.ID)
	return nil
}

// SetStatus activates or deactivates targetEmail on behalf of a senior.
func (s *ActorService) SetStatus(ctx context.Context, approverID, targetEmail string, status models.Status) error {
	if status != models.StatusActive && status != models.StatusInactive {
		return fmt.Errorf("%w: status %d", common.ErrInvalidArgument, status)
	}
	approver, target, err := s.approve(ctx, approverID, targetEmail)
	if err != nil {
		return err
	}

	if err := s.repomanager.Actors(s.db).SetStatus(ctx, target.ID, status); err != nil {
		return err
	}
	s.logger.Info(ctx, "actor status changed", "approver_id", approver.ID, "actor_id", target.ID, "status", status.String())
	return nil
}

// Verify marks an active actor as verified on behalf of a senior.
func (s *ActorService) Verify(ctx context.Context, approverID, targetEmail string) error {
	approver, target, err := s.approve(ctx, approverID, targetEmail)
	if err != nil {
		return err
	}
	if target.Status != models.StatusActive {
		return fmt.Errorf("%w: only active actors can be verified", common.ErrForbidden)
	}

	if err := s.repomanager.Actors(s.db).SetVerified(ctx, target.ID, true); err != nil {
		return err
	}
	s.logger.Info(ctx, "actor verified", "approver_id", approver.ID, "actor_id", target.ID)
	return nil
}

// ChangeRole assigns role to targetEmail on behalf of a senior.
func (s *ActorService) ChangeRole(ctx context.Context, approverID, targetEmail string, role models.Role) error {
	switch role {
	case models.RoleDeveloper, models.RoleLeader, models.RoleSenior:
	default:
		return fmt.Errorf("%w: %s", common.ErrInvalidArgument, role)
	}
	approver, target, err := s.approve(ctx, approverID, targetEmail)
	if err != nil {
		return err
	}

	if err := s.repomanager.Actors(s.db).SetRole(ctx, target.ID, role); err != nil {
		return err
	}
	s.logger.Info(ctx, "actor role changed", "approver_id", approver.ID, "actor_id", target.ID, "role", role.String())
	return nil
}

// --- helpers below ---

// liveActor loads the token holder and requires an active, verified account.
func (s *ActorService) liveActor(ctx context.Context, actorID string) (*models.Actor, error) {
	actor, err := s.repomanager.Actors(s.db).GetByID(ctx, actorID)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return nil, fmt.Errorf("%w: unknown actor", common.ErrUnauthenticated)
		}
		return nil, fmt.Errorf("%w: %v", common.ErrInternal, err)
	}
	if !actor.IsLive() {
		return nil, fmt.Errorf("%w: actor is not active and verified", common.ErrForbidden)
	}
	return actor, nil
}

func (s *ActorService) approve(ctx context.Context, approverID, targetEmail string) (*models.Actor, *models.Actor, error) {
	approver, err := s.liveActor(ctx, approverID)
	if err != nil {
		return nil, nil, err
	}
	if approver.Role != models.RoleSenior {
		return nil, nil, fmt.Errorf("%w: approver must be a senior", common.ErrForbidden)
	}

	target, err := s.repomanager.Actors(s.db).GetByEmail(ctx, common.NormalizeEmail(targetEmail))
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return nil, nil, fmt.Errorf("%w: actor %s", common.ErrNotFound, targetEmail)
		}
		return nil, nil, fmt.Errorf("%w: %v", common.ErrInternal, err)
	}
	return approver, target, nil
}
