package grpc

import (
	"context"

	"github.com/dmitrijs2005/keyescrow/internal/common"
	pb "github.com/dmitrijs2005/keyescrow/internal/proto"
	"github.com/dmitrijs2005/keyescrow/internal/server/models"
	"github.com/dmitrijs2005/keyescrow/internal/server/services"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
)

func empty() *structpb.Struct {
	return &structpb.Struct{Fields: map[string]*structpb.Value{}}
}

func (s *GRPCServer) Ping(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	return pb.NewMessage(map[string]string{pb.FieldStatus: "OK"}), nil
}

func (s *GRPCServer) RegisterActor(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	actor, err := s.actors.Register(ctx,
		pb.GetString(req, pb.FieldName),
		pb.GetString(req, pb.FieldEmail),
		pb.GetString(req, pb.FieldPassword))
	if err != nil {
		return nil, s.fail(ctx, "register", err)
	}

	return pb.NewMessage(map[string]string{pb.FieldActorID: actor.ID}), nil
}

func (s *GRPCServer) Login(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	token, err := s.actors.Login(ctx, pb.GetString(req, pb.FieldEmail), pb.GetString(req, pb.FieldPassword))
	if err != nil {
		return nil, s.fail(ctx, "login", err)
	}

	return pb.NewMessage(map[string]string{pb.FieldAccessToken: token}), nil
}

func (s *GRPCServer) EnrollEncryptionKey(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	actorID, err := actorIDFromContext(ctx)
	if err != nil {
		return nil, err
	}
	if err := s.actors.EnrollEncryptionKey(ctx, actorID, pb.GetString(req, pb.FieldPublicKey)); err != nil {
		return nil, s.fail(ctx, "enroll encryption key", err)
	}
	return empty(), nil
}

func (s *GRPCServer) EnrollSigningKey(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	actorID, err := actorIDFromContext(ctx)
	if err != nil {
		return nil, err
	}
	if err := s.actors.EnrollSigningKey(ctx, actorID, pb.GetString(req, pb.FieldPublicKey)); err != nil {
		return nil, s.fail(ctx, "enroll signing key", err)
	}
	return empty(), nil
}

func (s *GRPCServer) SetActorStatus(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	actorID, err := actorIDFromContext(ctx)
	if err != nil {
		return nil, err
	}

	var st models.Status
	switch pb.GetString(req, pb.FieldStatus) {
	case models.StatusActive.String():
		st = models.StatusActive
	case models.StatusInactive.String():
		st = models.StatusInactive
	default:
		return nil, status.Error(codes.InvalidArgument, "status must be active or inactive")
	}

	if err := s.actors.SetStatus(ctx, actorID, pb.GetString(req, pb.FieldEmail), st); err != nil {
		return nil, s.fail(ctx, "set status", err)
	}
	return empty(), nil
}

func (s *GRPCServer) VerifyActor(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	actorID, err := actorIDFromContext(ctx)
	if err != nil {
		return nil, err
	}
	if err := s.actors.Verify(ctx, actorID, pb.GetString(req, pb.FieldEmail)); err != nil {
		return nil, s.fail(ctx, "verify", err)
	}
	return empty(), nil
}

func (s *GRPCServer) ChangeActorRole(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	actorID, err := actorIDFromContext(ctx)
	if err != nil {
		return nil, err
	}

	role, err := models.ParseRole(pb.GetString(req, pb.FieldRole))
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}

	if err := s.actors.ChangeRole(ctx, actorID, pb.GetString(req, pb.FieldEmail), role); err != nil {
		return nil, s.fail(ctx, "change role", err)
	}
	return empty(), nil
}

func (s *GRPCServer) CreateRepository(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	actorID, err := actorIDFromContext(ctx)
	if err != nil {
		return nil, err
	}

	rec, err := s.repositories.CreateRepository(ctx, actorID, pb.GetString(req, pb.FieldName), pb.GetString(req, pb.FieldDescription))
	if err != nil {
		return nil, s.fail(ctx, "create repository", err)
	}
	return pb.NewMessage(map[string]string{pb.FieldRepositoryID: rec.ID}), nil
}

func (s *GRPCServer) AddMember(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	actorID, err := actorIDFromContext(ctx)
	if err != nil {
		return nil, err
	}
	if err := s.repositories.AddMember(ctx, actorID, pb.GetString(req, pb.FieldRepository), pb.GetString(req, pb.FieldEmail)); err != nil {
		return nil, s.fail(ctx, "add member", err)
	}
	return empty(), nil
}

// ProtectRepository authenticates the requester by password like the
// use case requires; the access token only admits the call.
func (s *GRPCServer) ProtectRepository(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	if _, err := actorIDFromContext(ctx); err != nil {
		return nil, err
	}

	pr := services.ProtectRequest{
		RequesterEmail:    pb.GetString(req, pb.FieldRequesterEmail),
		RequesterPassword: pb.GetString(req, pb.FieldRequesterPassword),
		CoRecipientEmail:  pb.GetString(req, pb.FieldCoRecipientEmail),
		RepositoryName:    pb.GetString(req, pb.FieldRepository),
		Tag:               pb.GetString(req, pb.FieldTag),
	}

	wrapped, err := s.cipher.ProtectRepository(ctx, pr)
	if err != nil {
		return nil, s.fail(ctx, "protect", err)
	}

	return pb.NewMessage(map[string]string{
		pb.FieldAlias:      common.MakeAlias(pr.RepositoryName, pr.Tag),
		pb.FieldWrappedKey: wrapped,
	}), nil
}

func (s *GRPCServer) fail(ctx context.Context, op string, err error) error {
	st := toStatus(err)
	if status.Code(st) == codes.Internal {
		s.logger.Error(ctx, op+" failed", "error", err.Error())
	} else {
		s.logger.Warn(ctx, op+" rejected", "code", status.Code(st).String())
	}
	return st
}
