package actors

import (
	"context"

	"github.com/dmitrijs2005/keyescrow/internal/server/models"
)

type Repository interface {
	Create(ctx context.Context, actor *models.Actor) (*models.Actor, error)
	GetByEmail(ctx context.Context, email string) (*models.Actor, error)
	GetByID(ctx context.Context, id string) (*models.Actor, error)
	SetEncryptionKey(ctx context.Context, id, key string) error
	SetSigningKey(ctx context.Context, id, key string) error
	SetStatus(ctx context.Context, id string, status models.Status) error
	SetVerified(ctx context.Context, id string, verified bool) error
	SetRole(ctx context.Context, id string, role models.Role) error
}
