package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/keyescrow/internal/common"
	"github.com/dmitrijs2005/keyescrow/internal/dbx"
	"github.com/dmitrijs2005/keyescrow/internal/logging"
	"github.com/dmitrijs2005/keyescrow/internal/server/models"
	"github.com/dmitrijs2005/keyescrow/internal/server/repositories/repomanager"
)

// RepositoryService creates repositories and manages their members.
type RepositoryService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	dirs        RepositoryDirs
	logger      logging.Logger
}

func NewRepositoryService(db *sql.DB, m repomanager.RepositoryManager, dirs RepositoryDirs, logger logging.Logger) *RepositoryService {
	return &RepositoryService{db: db, repomanager: m, dirs: dirs, logger: logger.With("module", "repositories")}
}

// CreateRepository registers a repository owned by the requesting leader
// and creates its content directory. The owner becomes the first member.
func (s *RepositoryService) CreateRepository(ctx context.Context, requesterID, name, description string) (*models.RepositoryRecord, error) {
	if err := common.ValidateRepositoryName(name); err != nil {
		return nil, err
	}

	requester, err := s.liveActor(ctx, requesterID)
	if err != nil {
		return nil, err
	}
	if requester.Role != models.RoleLeader {
		return nil, fmt.Errorf("%w: only leaders create repositories", common.ErrForbidden)
	}

	var (
		created    *models.RepositoryRecord
		dirCreated bool
	)
	err = dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		projects := s.repomanager.Projects(tx)

		rec, err := projects.Create(ctx, &models.RepositoryRecord{Name: name, Description: description, OwnerID: requester.ID})
		if err != nil {
			return err
		}
		if err := projects.AddMember(ctx, rec.ID, requester.ID); err != nil {
			return err
		}
		if err := s.dirs.CreateRepositoryDir(ctx, name); err != nil {
			return err
		}
		dirCreated = true
		created = rec
		return nil
	})
	if err != nil {
		if dirCreated {
			if rerr := s.dirs.RemoveRepositoryDir(name); rerr != nil {
				s.logger.Error(ctx, "repository directory left without record", "repository", name, "error", rerr.Error())
			}
		}
		if errors.Is(err, common.ErrConflict) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: create repository: %v", common.ErrPersistence, err)
	}

	s.logger.Info(ctx, "repository created", "repository", name, "owner_id", requester.ID)
	return created, nil
}

// AddMember adds memberEmail to repoName. Seniors may manage any
// repository, leaders only the ones they own.
func (s *RepositoryService) AddMember(ctx context.Context, approverID, repoName, memberEmail string) error {
	approver, err := s.liveActor(ctx, approverID)
	if err != nil {
		return err
	}

	repo, err := s.repomanager.Projects(s.db).GetByName(ctx, repoName)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return fmt.Errorf("%w: repository %s", common.ErrNotFound, repoName)
		}
		return fmt.Errorf("%w: %v", common.ErrInternal, err)
	}

	member, err := s.repomanager.Actors(s.db).GetByEmail(ctx, common.NormalizeEmail(memberEmail))
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return fmt.Errorf("%w: actor %s", common.ErrNotFound, memberEmail)
		}
		return fmt.Errorf("%w: %v", common.ErrInternal, err)
	}

	switch {
	case approver.Role == models.RoleSenior:
	case approver.Role == models.RoleLeader && repo.OwnerID == approver.ID:
	default:
		return fmt.Errorf("%w: not allowed to manage members of %s", common.ErrForbidden, repoName)
	}

	if err := s.repomanager.Projects(s.db).AddMember(ctx, repo.ID, member.ID); err != nil {
		return err
	}
	s.logger.Info(ctx, "member added", "repository", repoName, "actor_id", member.ID, "approver_id", approver.ID)
	return nil
}

func (s *RepositoryService) liveActor(ctx context.Context, actorID string) (*models.Actor, error) {
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
