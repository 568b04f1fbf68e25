package grpc

import (
	"context"
	"testing"
	"time"

	"github.com/dmitrijs2005/keyescrow/internal/common"
	"github.com/dmitrijs2005/keyescrow/internal/logging"
	pb "github.com/dmitrijs2005/keyescrow/internal/proto"
	"github.com/dmitrijs2005/keyescrow/internal/server/auth"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

func newTestServer(secret string) *GRPCServer {
	return NewGRPCServer("", logging.NewNopLogger(), nil, nil, nil, secret)
}

func withToken(token string) context.Context {
	md := metadata.New(map[string]string{common.AccessTokenHeaderName: token})
	return metadata.NewIncomingContext(context.Background(), md)
}

func TestInterceptor_PublicMethodsNeedNoToken(t *testing.T) {
	s := newTestServer("secret")

	for _, m := range []string{pb.MethodPing, pb.MethodRegisterActor, pb.MethodLogin} {
		info := &grpc.UnaryServerInfo{FullMethod: pb.FullMethod(m)}
		handlerCalled := false
		h := func(ctx context.Context, req interface{}) (interface{}, error) {
			handlerCalled = true
			return "ok", nil
		}

		resp, err := s.accessTokenInterceptor(context.Background(), nil, info, h)
		if err != nil {
			t.Fatalf("%s: unexpected error: %v", m, err)
		}
		if !handlerCalled || resp != "ok" {
			t.Fatalf("%s: handler not called", m)
		}
	}
}

func TestInterceptor_MissingToken(t *testing.T) {
	s := newTestServer("secret")
	info := &grpc.UnaryServerInfo{FullMethod: pb.FullMethod(pb.MethodProtectRepository)}

	h := func(ctx context.Context, req interface{}) (interface{}, error) {
		t.Fatal("handler should not be called when token missing")
		return nil, nil
	}

	_, err := s.accessTokenInterceptor(context.Background(), nil, info, h)
	if status.Code(err) != codes.Unauthenticated {
		t.Fatalf("expected Unauthenticated, got %v", status.Code(err))
	}
	if status.Convert(err).Message() != "missing token" {
		t.Fatalf("expected 'missing token', got %q", status.Convert(err).Message())
	}
}

func TestInterceptor_InvalidToken(t *testing.T) {
	s := newTestServer("secret")
	info := &grpc.UnaryServerInfo{FullMethod: pb.FullMethod(pb.MethodCreateRepository)}

	h := func(ctx context.Context, req interface{}) (interface{}, error) {
		t.Fatal("handler should not be called with invalid token")
		return nil, nil
	}

	_, err := s.accessTokenInterceptor(withToken("not-a-valid-jwt"), nil, info, h)
	if status.Code(err) != codes.Unauthenticated {
		t.Fatalf("expected Unauthenticated, got %v", status.Code(err))
	}
}

func TestInterceptor_ExpiredToken(t *testing.T) {
	s := newTestServer("secret")
	info := &grpc.UnaryServerInfo{FullMethod: pb.FullMethod(pb.MethodCreateRepository)}

	token, err := auth.GenerateToken("a-1", []byte("secret"), -time.Minute)
	if err != nil {
		t.Fatalf("GenerateToken: %v", err)
	}

	_, err = s.accessTokenInterceptor(withToken(token), nil, info, func(ctx context.Context, req interface{}) (interface{}, error) {
		t.Fatal("handler should not be called with expired token")
		return nil, nil
	})
	if status.Code(err) != codes.Unauthenticated {
		t.Fatalf("expected Unauthenticated, got %v", status.Code(err))
	}
}

func TestInterceptor_ValidTokenSetsActor(t *testing.T) {
	s := newTestServer("secret")
	info := &grpc.UnaryServerInfo{FullMethod: pb.FullMethod(pb.MethodAddMember)}

	token, err := auth.GenerateToken("a-42", []byte("secret"), time.Minute)
	if err != nil {
		t.Fatalf("GenerateToken: %v", err)
	}

	var got string
	_, err = s.accessTokenInterceptor(withToken(token), nil, info, func(ctx context.Context, req interface{}) (interface{}, error) {
		got, err = actorIDFromContext(ctx)
		return nil, err
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "a-42" {
		t.Fatalf("actor id = %q, want a-42", got)
	}
}

func TestActorIDFromContext_Missing(t *testing.T) {
	if _, err := actorIDFromContext(context.Background()); status.Code(err) != codes.Unauthenticated {
		t.Fatalf("expected Unauthenticated, got %v", err)
	}
}
