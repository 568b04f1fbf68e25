// Package repomanager provides a concrete RepositoryManager for PostgreSQL,
// wiring together repository constructors and database migrations (via goose).
package repomanager

import (
	"context"
	"database/sql"

	"github.com/dmitrijs2005/keyescrow/internal/dbx"
	"github.com/dmitrijs2005/keyescrow/internal/server/migrations"
	"github.com/dmitrijs2005/keyescrow/internal/server/repositories/actors"
	"github.com/dmitrijs2005/keyescrow/internal/server/repositories/projects"
	"github.com/dmitrijs2005/keyescrow/internal/server/repositories/wrappedkeys"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
)

// PostgresRepositoryManager vends PostgreSQL-backed repository implementations
// and exposes a schema migration hook.
type PostgresRepositoryManager struct{}

// Actors returns an actors.Repository bound to the provided DBTX.
func (m *PostgresRepositoryManager) Actors(db dbx.DBTX) actors.Repository {
	return actors.NewPostgresRepository(db)
}

// Projects returns a projects.Repository bound to the provided DBTX.
func (m *PostgresRepositoryManager) Projects(db dbx.DBTX) projects.Repository {
	return projects.NewPostgresRepository(db)
}

// WrappedKeys returns a wrappedkeys.Repository bound to the provided DBTX.
func (m *PostgresRepositoryManager) WrappedKeys(db dbx.DBTX) wrappedkeys.Repository {
	return wrappedkeys.NewPostgresRepository(db)
}

// gooseUpContext is a seam for testing goose.UpContext.
var gooseUpContext = func(ctx context.Context, db *sql.DB, dir string, opts ...goose.OptionsFunc) error {
	return goose.UpContext(ctx, db, dir, opts...)
}

// RunMigrations sets up goose with the embedded migrations and runs them
// against the provided database connection.
func (m *PostgresRepositoryManager) RunMigrations(ctx context.Context, db *sql.DB) error {
	goose.SetBaseFS(migrations.Migrations)
	if err := goose.SetDialect("pgx"); err != nil {
		return err
	}
	return gooseUpContext(ctx, db, ".")
}

// NewPostgresRepositoryManager constructs a PostgreSQL-backed RepositoryManager.
func NewPostgresRepositoryManager() *PostgresRepositoryManager {
	return &PostgresRepositoryManager{}
}
