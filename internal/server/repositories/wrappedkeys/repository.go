package wrappedkeys

import (
	"context"

	"github.com/dmitrijs2005/keyescrow/internal/server/models"
)

type Repository interface {
	Create(ctx context.Context, key *models.WrappedKey) (*models.WrappedKey, error)
	Delete(ctx context.Context, id string) error
	AliasExists(ctx context.Context, alias string) (bool, error)
}
