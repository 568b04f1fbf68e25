package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/keyescrow/internal/common"
	"github.com/dmitrijs2005/keyescrow/internal/cryptox"
	"github.com/dmitrijs2005/keyescrow/internal/server/models"
)

// ProtectRequest names the two parties and the repository snapshot to escrow.
type ProtectRequest struct {
	RequesterEmail    string
	RequesterPassword string
	CoRecipientEmail  string
	RepositoryName    string
	Tag               string
}

// Alias is the escrow alias the request targets.
func (r ProtectRequest) Alias() string {
	return common.MakeAlias(r.RepositoryName, r.Tag)
}

// EncryptionParties is what the gate hands to the orchestrator once every
// check has passed.
type EncryptionParties struct {
	Requester   *models.Actor
	CoRecipient *models.Actor
	Repository  *models.RepositoryRecord
}

// AuthorizationGate decides whether a two-party escrow may proceed. It is
// read-only. Checks run in a fixed order and stop at the first failure, so
// a caller only learns as much about system state as the checks it passed.
type AuthorizationGate struct {
	identities     IdentityStore
	repositories   RepositoryCatalog
	content        ContentStore
	keys           KeyStore
	verifyPassword func(password string, salt, verifier []byte) bool
}

func NewAuthorizationGate(identities IdentityStore, repositories RepositoryCatalog, content ContentStore, keys KeyStore) *AuthorizationGate {
	return &AuthorizationGate{
		identities:     identities,
		repositories:   repositories,
		content:        content,
		keys:           keys,
		verifyPassword: cryptox.VerifyPassword,
	}
}

// AuthorizeEncryption runs the eleven escrow checks for req.
func (g *AuthorizationGate) AuthorizeEncryption(ctx context.Context, req ProtectRequest) (*EncryptionParties, error) {
	// 1. requester exists
	requester, err := g.findActor(ctx, req.RequesterEmail, "requester")
	if err != nil {
		return nil, err
	}

	// 2. credential
	if !g.verifyPassword(req.RequesterPassword, requester.PasswordSalt, requester.PasswordVerifier) {
		return nil, fmt.Errorf("%w: invalid credentials", common.ErrUnauthenticated)
	}

	// 3. liveness
	if !requester.IsLive() {
		return nil, fmt.Errorf("%w: requester is not active and verified", common.ErrForbidden)
	}

	// 4. role
	if requester.Role != models.RoleLeader {
		return nil, fmt.Errorf("%w: requester must be a leader", common.ErrForbidden)
	}

	// 5. repository exists in both the catalog and the content store
	repo, err := g.repositories.FindRepositoryByName(ctx, req.RepositoryName)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return nil, fmt.Errorf("%w: repository %s", common.ErrNotFound, req.RepositoryName)
		}
		return nil, fmt.Errorf("find repository: %w", err)
	}
	onDisk, err := g.content.RepositoryExists(ctx, req.RepositoryName)
	if err != nil {
		return nil, fmt.Errorf("check repository content: %w", err)
	}
	if !onDisk {
		return nil, fmt.Errorf("%w: repository %s has no content", common.ErrNotFound, req.RepositoryName)
	}

	// 6. ownership; seniors get no bypass here
	if repo.OwnerID != requester.ID {
		return nil, fmt.Errorf("%w: requester does not own %s", common.ErrForbidden, req.RepositoryName)
	}

	// 7. co-recipient exists
	coRecipient, err := g.findActor(ctx, req.CoRecipientEmail, "co-recipient")
	if err != nil {
		return nil, err
	}

	// 8. co-recipient role
	if coRecipient.Role != models.RoleSenior {
		return nil, fmt.Errorf("%w: co-recipient must be a senior", common.ErrForbidden)
	}

	// 9. co-recipient liveness
	if !coRecipient.IsLive() {
		return nil, fmt.Errorf("%w: co-recipient is not active and verified", common.ErrForbidden)
	}

	// 10. key material
	if !requester.HasEncryptionKey() || !coRecipient.HasEncryptionKey() {
		return nil, fmt.Errorf("%w: both parties need an enrolled encryption key", common.ErrMissingKeyMaterial)
	}

	// 11. alias is free
	alias := req.Alias()
	taken, err := g.keys.AliasExists(ctx, alias)
	if err != nil {
		return nil, fmt.Errorf("check alias: %w", err)
	}
	if taken {
		return nil, fmt.Errorf("%w: alias %s already registered", common.ErrConflict, alias)
	}

	return &EncryptionParties{Requester: requester, CoRecipient: coRecipient, Repository: repo}, nil
}

func (g *AuthorizationGate) findActor(ctx context.Context, email, role string) (*models.Actor, error) {
	email = common.NormalizeEmail(email)
	actor, err := g.identities.FindActorByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s %s", common.ErrNotFound, role, email)
		}
		return nil, fmt.Errorf("find %s: %w", role, err)
	}
	return actor, nil
}
