// Package projects persists repository records and their membership.
package projects

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/keyescrow/internal/common"
	"github.com/dmitrijs2005/keyescrow/internal/dbx"
	"github.com/dmitrijs2005/keyescrow/internal/server/models"
)

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Create(ctx context.Context, repo *models.RepositoryRecord) (*models.RepositoryRecord, error) {
	query :=
		`INSERT INTO repositories (name, description, owner_id)
         VALUES ($1, $2, $3)
		 RETURNING id, created_at
		 `

	err := r.db.QueryRowContext(ctx, query, repo.Name, repo.Description, repo.OwnerID).
		Scan(&repo.ID, &repo.CreatedAt)

	if err != nil {
		if _, ok := dbx.IsUniqueViolation(err); ok {
			return nil, fmt.Errorf("%w: repository %s already exists", common.ErrConflict, repo.Name)
		}
		return nil, fmt.Errorf("db error: %w", err)
	}

	return repo, nil
}

func (r *PostgresRepository) GetByName(ctx context.Context, name string) (*models.RepositoryRecord, error) {
	query :=
		`SELECT id, name, description, owner_id, created_at FROM repositories
		 WHERE name = $1
		 `

	repo := &models.RepositoryRecord{}
	err := r.db.QueryRowContext(ctx, query, name).
		Scan(&repo.ID, &repo.Name, &repo.Description, &repo.OwnerID, &repo.CreatedAt)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}

	return repo, nil
}

func (r *PostgresRepository) AddMember(ctx context.Context, repositoryID, actorID string) error {
	query :=
		`INSERT INTO repository_members (repository_id, actor_id)
         VALUES ($1, $2)
		 `

	if _, err := r.db.ExecContext(ctx, query, repositoryID, actorID); err != nil {
		if _, ok := dbx.IsUniqueViolation(err); ok {
			return fmt.Errorf("%w: already a member", common.ErrConflict)
		}
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}
