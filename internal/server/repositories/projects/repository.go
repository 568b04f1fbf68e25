package projects

import (
	"context"

	"github.com/dmitrijs2005/keyescrow/internal/server/models"
)

type Repository interface {
	Create(ctx context.Context, repo *models.RepositoryRecord) (*models.RepositoryRecord, error)
	GetByName(ctx context.Context, name string) (*models.RepositoryRecord, error)
	AddMember(ctx context.Context, repositoryID, actorID string) error
}
