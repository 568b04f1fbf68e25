package repomanager

import (
	"context"
	"database/sql"

	"github.com/dmitrijs2005/keyescrow/internal/dbx"
	"github.com/dmitrijs2005/keyescrow/internal/server/repositories/actors"
	"github.com/dmitrijs2005/keyescrow/internal/server/repositories/projects"
	"github.com/dmitrijs2005/keyescrow/internal/server/repositories/wrappedkeys"
)

type RepositoryManager interface {
	RunMigrations(context.Context, *sql.DB) error
	Actors(db dbx.DBTX) actors.Repository
	Projects(db dbx.DBTX) projects.Repository
	WrappedKeys(db dbx.DBTX) wrappedkeys.Repository
}
