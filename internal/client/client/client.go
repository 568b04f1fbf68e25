package client

import "context"

// ProtectRequest names the parties and the repository snapshot to escrow.
type ProtectRequest struct {
	RequesterEmail    string
	RequesterPassword []byte
	CoRecipientEmail  string
	Repository        string
	Tag               string
}

// ProtectResult is returned for a committed escrow.
type ProtectResult struct {
	Alias      string
	WrappedKey string
}

type Client interface {
	Close() error
	Ping(ctx context.Context) error
	Register(ctx context.Context, name, email string, password []byte) (string, error)
	Login(ctx context.Context, email string, password []byte) error
	EnrollEncryptionKey(ctx context.Context, publicKey string) error
	EnrollSigningKey(ctx context.Context, publicKey string) error
	SetActorStatus(ctx context.Context, email string, active bool) error
	VerifyActor(ctx context.Context, email string) error
	ChangeActorRole(ctx context.Context, email, role string) error
	CreateRepository(ctx context.Context, name, description string) (string, error)
	AddMember(ctx context.Context, repository, email string) error
	ProtectRepository(ctx context.Context, req ProtectRequest) (*ProtectResult, error)
}
