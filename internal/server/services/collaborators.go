package services

import (
	"context"

	"github.com/dmitrijs2005/keyescrow/internal/server/models"
)

// IdentityStore looks actors up by their unique email.
type IdentityStore interface {
	FindActorByEmail(ctx context.Context, email string) (*models.Actor, error)
}

// RepositoryCatalog looks up repository records.
type RepositoryCatalog interface {
	FindRepositoryByName(ctx context.Context, name string) (*models.RepositoryRecord, error)
}

// KeyStore persists wrapped keys. PersistWrappedKey must fail with
// common.ErrConflict when the (alias, recipient) pair already exists, and
// DeleteWrappedKey must fail unless exactly one record was removed.
type KeyStore interface {
	AliasExists(ctx context.Context, alias string) (bool, error)
	PersistWrappedKey(ctx context.Context, key *models.WrappedKey) (*models.WrappedKey, error)
	DeleteWrappedKey(ctx context.Context, id string) error
}

// ContentStore is the filesystem side of a repository.
type ContentStore interface {
	RepositoryExists(ctx context.Context, name string) (bool, error)
	ArchiveDirectory(ctx context.Context, name, tag string) (string, error)
	StagingPath(alias string) string
	DeleteFile(path string) error
}

// Envelope is the set of crypto primitives the orchestrator drives.
type Envelope interface {
	GenerateContentKey() (string, error)
	EncryptFile(ctx context.Context, plainPath, cipherPath, key string) error
	WrapKey(key, publicKey string) (string, error)
}

// RepositoryDirs creates and removes repository content directories.
type RepositoryDirs interface {
	CreateRepositoryDir(ctx context.Context, name string) error
	RemoveRepositoryDir(name string) error
}
