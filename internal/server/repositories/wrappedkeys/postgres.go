// Package wrappedkeys persists per-recipient wrapped content keys.
//
// The (alias, recipient_id) unique constraint makes Create the atomic
// guard against two concurrent runs for the same alias: whichever commits
// second gets ErrConflict.
package wrappedkeys

import (
	"context"
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

func (r *PostgresRepository) Create(ctx context.Context, key *models.WrappedKey) (*models.WrappedKey, error) {
	query :=
		`INSERT INTO wrapped_keys (recipient_id, repository_id, wrapped_key, alias)
         VALUES ($1, $2, $3, $4)
		 RETURNING id, created_at
		 `

	err := r.db.QueryRowContext(ctx, query, key.RecipientID, key.RepositoryID, key.WrappedKey, key.Alias).
		Scan(&key.ID, &key.CreatedAt)

	if err != nil {
		if _, ok := dbx.IsUniqueViolation(err); ok {
			return nil, fmt.Errorf("%w: alias %s already registered", common.ErrConflict, key.Alias)
		}
		return nil, fmt.Errorf("%w: db error: %v", common.ErrPersistence, err)
	}

	return key, nil
}

// Delete removes exactly one record. Zero or several affected rows are
// reported as errors so that a failed compensation is never mistaken for a
// successful one.
func (r *PostgresRepository) Delete(ctx context.Context, id string) error {
	query :=
		`DELETE FROM wrapped_keys
		 WHERE id = $1
		 `

	res, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("%w: db error: %v", common.ErrPersistence, err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%w: db error: %v", common.ErrPersistence, err)
	}
	if n != 1 {
		return fmt.Errorf("%w: expected to delete 1 wrapped key %s, deleted %d", common.ErrPersistence, id, n)
	}
	return nil
}

func (r *PostgresRepository) AliasExists(ctx context.Context, alias string) (bool, error) {
	query :=
		`SELECT EXISTS (SELECT 1 FROM wrapped_keys WHERE alias = $1)
		 `

	var exists bool
	if err := r.db.QueryRowContext(ctx, query, alias).Scan(&exists); err != nil {
		return false, fmt.Errorf("db error: %w", err)
	}
	return exists, nil
}
