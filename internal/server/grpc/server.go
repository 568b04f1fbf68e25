// Package grpc exposes the escrow services over gRPC.
package grpc

import (
	"context"
	"net"

	"github.com/dmitrijs2005/keyescrow/internal/logging"
	pb "github.com/dmitrijs2005/keyescrow/internal/proto"
	"github.com/dmitrijs2005/keyescrow/internal/server/models"
	"github.com/dmitrijs2005/keyescrow/internal/server/services"
	"google.golang.org/grpc"
)

// ActorAPI is the part of services.ActorService used by the handlers.
type ActorAPI interface {
	Register(ctx context.Context, name, email, password string) (*models.Actor, error)
	Login(ctx context.Context, email, password string) (string, error)
	EnrollEncryptionKey(ctx context.Context, actorID, publicKey string) error
	EnrollSigningKey(ctx context.Context, actorID, publicKey string) error
	SetStatus(ctx context.Context, approverID, targetEmail string, status models.Status) error
	Verify(ctx context.Context, approverID, targetEmail string) error
	ChangeRole(ctx context.Context, approverID, targetEmail string, role models.Role) error
}

// RepositoryAPI is the part of services.RepositoryService used by the handlers.
type RepositoryAPI interface {
	CreateRepository(ctx context.Context, requesterID, name, description string) (*models.RepositoryRecord, error)
	AddMember(ctx context.Context, approverID, repoName, memberEmail string) error
}

// ProtectAPI runs the escrow use case.
type ProtectAPI interface {
	ProtectRepository(ctx context.Context, req services.ProtectRequest) (string, error)
}

type GRPCServer struct {
	address      string
	actors       ActorAPI
	repositories RepositoryAPI
	cipher       ProtectAPI
	logger       logging.Logger
	jwtSecret    []byte
}

var _ pb.EscrowServiceServer = (*GRPCServer)(nil)

func NewGRPCServer(a string, l logging.Logger, actors ActorAPI, repositories RepositoryAPI, cipher ProtectAPI, secretKey string) *GRPCServer {
	return &GRPCServer{
		address:      a,
		logger:       l.With("module", "grpc_server"),
		actors:       actors,
		repositories: repositories,
		cipher:       cipher,
		jwtSecret:    []byte(secretKey),
	}
}

// Run serves until ctx is cancelled, then stops gracefully.
func (s *GRPCServer) Run(ctx context.Context) error {
	listen, err := net.Listen("tcp", s.address)
	if err != nil {
		return err
	}
	return s.Serve(ctx, listen)
}

// Serve is Run on an existing listener.
func (s *GRPCServer) Serve(ctx context.Context, listen net.Listener) error {
	srv := grpc.NewServer(grpc.ChainUnaryInterceptor(s.loggingInterceptor, s.accessTokenInterceptor))
	pb.RegisterEscrowServiceServer(srv, s)

	go func() {
		<-ctx.Done()
		s.logger.Info(ctx, "Stopping gRPC server...")
		srv.GracefulStop()
	}()

	s.logger.Info(ctx, "Starting gRPC server", "address", listen.Addr().String())

	if err := srv.Serve(listen); err != nil {
		return err
	}
	return nil
}
