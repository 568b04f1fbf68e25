package grpc

import (
	"context"
	"time"

	"github.com/dmitrijs2005/keyescrow/internal/common"
	pb "github.com/dmitrijs2005/keyescrow/internal/proto"
	"github.com/dmitrijs2005/keyescrow/internal/server/auth"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

type ctxKey string

const actorIDKey ctxKey = "actorID"

// public methods need no access token.
var publicMethods = map[string]bool{
	pb.FullMethod(pb.MethodPing):          true,
	pb.FullMethod(pb.MethodRegisterActor): true,
	pb.FullMethod(pb.MethodLogin):         true,
}

func (s *GRPCServer) accessTokenInterceptor(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
	if publicMethods[info.FullMethod] {
		return handler(ctx, req)
	}

	var accessToken string
	if md, ok := metadata.FromIncomingContext(ctx); ok {
		values := md.Get(common.AccessTokenHeaderName)
		if len(values) > 0 {
			accessToken = values[0]
		}
	}
	if len(accessToken) == 0 {
		return nil, status.Error(codes.Unauthenticated, "missing token")
	}

	actorID, err := auth.GetActorIDFromToken(accessToken, s.jwtSecret)
	if err != nil {
		return nil, toStatus(err)
	}

	return handler(context.WithValue(ctx, actorIDKey, actorID), req)
}

func (s *GRPCServer) loggingInterceptor(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
	start := time.Now()
	resp, err := handler(ctx, req)
	s.logger.Info(ctx, "rpc", "method", info.FullMethod, "code", status.Code(err).String(), "duration", time.Since(start).String())
	return resp, err
}

func actorIDFromContext(ctx context.Context) (string, error) {
	id, ok := ctx.Value(actorIDKey).(string)
	if !ok || id == "" {
		return "", status.Error(codes.Unauthenticated, "missing actor")
	}
	return id, nil
}
