package actors

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

const selectActor = `SELECT id, name, email, password_salt, password_verifier, role, status, verified,
		 signing_public_key, encryption_public_key, created_at FROM actors`

func (r *PostgresRepository) Create(ctx context.Context, actor *models.Actor) (*models.Actor, error) {

	query :=
		`INSERT INTO actors (name, email, password_salt, password_verifier, role, status, verified)
         VALUES ($1, $2, $3, $4, $5, $6, $7)
		 RETURNING id, created_at
		 `

	err := r.db.QueryRowContext(ctx, query,
		actor.Name, actor.Email, actor.PasswordSalt, actor.PasswordVerifier,
		actor.Role, actor.Status, actor.Verified).Scan(&actor.ID, &actor.CreatedAt)

	if err != nil {
		if _, ok := dbx.IsUniqueViolation(err); ok {
			return nil, fmt.Errorf("%w: actor %s already registered", common.ErrConflict, actor.Email)
		}
		return nil, fmt.Errorf("db error: %w", err)
	}

	return actor, nil
}

func (r *PostgresRepository) GetByEmail(ctx context.Context, email string) (*models.Actor, error) {
	return r.getOne(ctx, selectActor+`
		 WHERE email = $1
		 `, email)
}

func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*models.Actor, error) {
	return r.getOne(ctx, selectActor+`
		 WHERE id = $1
		 `, id)
}

func (r *PostgresRepository) getOne(ctx context.Context, query string, arg any) (*models.Actor, error) {
	a := &models.Actor{}
	err := r.db.QueryRowContext(ctx, query, arg).Scan(
		&a.ID, &a.Name, &a.Email, &a.PasswordSalt, &a.PasswordVerifier, &a.Role, &a.Status, &a.Verified,
		&a.SigningPublicKey, &a.EncryptionPublicKey, &a.CreatedAt)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}

	return a, nil
}

// SetEncryptionKey enrolls the RSA public key. A key can be enrolled only
// once; a second attempt yields ErrConflict.
func (r *PostgresRepository) SetEncryptionKey(ctx context.Context, id, key string) error {
	query :=
		`UPDATE actors SET encryption_public_key = $1
		 WHERE id = $2 AND encryption_public_key IS NULL
		 `
	return r.execEnroll(ctx, query, key, id)
}

// SetSigningKey enrolls the ECDSA public key, once.
func (r *PostgresRepository) SetSigningKey(ctx context.Context, id, key string) error {
	query :=
		`UPDATE actors SET signing_public_key = $1
		 WHERE id = $2 AND signing_public_key IS NULL
		 `
	return r.execEnroll(ctx, query, key, id)
}

func (r *PostgresRepository) execEnroll(ctx context.Context, query, key, id string) error {
	res, err := r.db.ExecContext(ctx, query, key, id)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%w: key already enrolled or actor missing", common.ErrConflict)
	}
	return nil
}

func (r *PostgresRepository) SetStatus(ctx context.Context, id string, status models.Status) error {
	return r.update(ctx, `UPDATE actors SET status = $1 WHERE id = $2`, status, id)
}

func (r *PostgresRepository) SetVerified(ctx context.Context, id string, verified bool) error {
	return r.update(ctx, `UPDATE actors SET verified = $1 WHERE id = $2`, verified, id)
}

func (r *PostgresRepository) SetRole(ctx context.Context, id string, role models.Role) error {
	return r.update(ctx, `UPDATE actors SET role = $1 WHERE id = $2`, role, id)
}

func (r *PostgresRepository) update(ctx context.Context, query string, value any, id string) error {
	res, err := r.db.ExecContext(ctx, query, value, id)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	if n == 0 {
		return common.ErrNotFound
	}
	return nil
}
