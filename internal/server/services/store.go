package services

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/dmitrijs2005/keyescrow/internal/common"
	"github.com/dmitrijs2005/keyescrow/internal/server/models"
	"github.com/dmitrijs2005/keyescrow/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/keyescrow/internal/server/storage"
)

// Store adapts the PostgreSQL repositories and the ciphertext object store to
// the narrow collaborator interfaces consumed by the gate and the orchestrator.
type Store struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	objects     storage.ObjectStore
}

func NewStore(db *sql.DB, m repomanager.RepositoryManager, objects storage.ObjectStore) *Store {
	return &Store{db: db, repomanager: m, objects: objects}
}

func (s *Store) FindActorByEmail(ctx context.Context, email string) (*models.Actor, error) {
	return s.repomanager.Actors(s.db).GetByEmail(ctx, email)
}

func (s *Store) FindRepositoryByName(ctx context.Context, name string) (*models.RepositoryRecord, error) {
	return s.repomanager.Projects(s.db).GetByName(ctx, name)
}

// AliasExists reports whether alias is taken. An alias is taken when a wrapped
// key references it or when a ciphertext object is already stored under it,
// e.g. one left behind by a run whose rollback failed.
func (s *Store) AliasExists(ctx context.Context, alias string) (bool, error) {
	taken, err := s.repomanager.WrappedKeys(s.db).AliasExists(ctx, alias)
	if err != nil || taken {
		return taken, err
	}
	taken, err = s.objects.Exists(ctx, alias+common.CipherObjectSuffix)
	if err != nil {
		return false, fmt.Errorf("%w: ciphertext lookup: %v", common.ErrPersistence, err)
	}
	return taken, nil
}

func (s *Store) PersistWrappedKey(ctx context.Context, key *models.WrappedKey) (*models.WrappedKey, error) {
	return s.repomanager.WrappedKeys(s.db).Create(ctx, key)
}

func (s *Store) DeleteWrappedKey(ctx context.Context, id string) error {
	return s.repomanager.WrappedKeys(s.db).Delete(ctx, id)
}
