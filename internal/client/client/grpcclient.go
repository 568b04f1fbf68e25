package client

import (
	"context"
	"fmt"
	"sync"

	"github.com/dmitrijs2005/keyescrow/internal/common"
	pb "github.com/dmitrijs2005/keyescrow/internal/proto"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
)

type GRPCClient struct {
	endpointURL string
	conn        *grpc.ClientConn
	client      *pb.EscrowServiceClient

	mu          sync.RWMutex
	accessToken string
}

var _ Client = (*GRPCClient)(nil)

func withAccessToken(ctx context.Context, token string) context.Context {
	md, _ := metadata.FromOutgoingContext(ctx)
	md = md.Copy()
	if md == nil {
		md = metadata.MD{}
	}
	md.Set(common.AccessTokenHeaderName, token)

	return metadata.NewOutgoingContext(ctx, md)
}

func (s *GRPCClient) accessTokenInterceptor(
	ctx context.Context,
	method string,
	req, reply interface{},
	cc *grpc.ClientConn,
	invoker grpc.UnaryInvoker,
	opts ...grpc.CallOption,
) error {
	if token := s.token(); token != "" {
		ctx = withAccessToken(ctx, token)
	}
	return invoker(ctx, method, req, reply, cc, opts...)
}

// NewEscrowClient connects to endpointURL. Extra options are appended to
// the defaults (insecure transport, token interceptor).
func NewEscrowClient(endpointURL string, opts ...grpc.DialOption) (*GRPCClient, error) {
	c := &GRPCClient{endpointURL: endpointURL}

	dialOpts := append([]grpc.DialOption{
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithUnaryInterceptor(c.accessTokenInterceptor),
	}, opts...)

	conn, err := grpc.NewClient(endpointURL, dialOpts...)
	if err != nil {
		return nil, err
	}
	c.conn = conn
	c.client = pb.NewEscrowServiceClient(conn)
	return c, nil
}

func (s *GRPCClient) token() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.accessToken
}

func (s *GRPCClient) Close() error {
	return s.conn.Close()
}

func (s *GRPCClient) call(ctx context.Context, method string, fields map[string]string) (*structpb.Struct, error) {
	resp, err := s.client.Call(ctx, method, pb.NewMessage(fields))
	if err != nil {
		return nil, s.mapError(err)
	}
	return resp, nil
}

func (s *GRPCClient) authedCall(ctx context.Context, method string, fields map[string]string) (*structpb.Struct, error) {
	if s.token() == "" {
		return nil, ErrNotLoggedIn
	}
	return s.call(ctx, method, fields)
}

func (s *GRPCClient) Ping(ctx context.Context) error {
	resp, err := s.call(ctx, pb.MethodPing, nil)
	if err != nil {
		return err
	}
	if pb.GetString(resp, pb.FieldStatus) != "OK" {
		return ErrUnavailable
	}
	return nil
}

func (s *GRPCClient) Register(ctx context.Context, name, email string, password []byte) (string, error) {
	resp, err := s.call(ctx, pb.MethodRegisterActor, map[string]string{
		pb.FieldName:     name,
		pb.FieldEmail:    email,
		pb.FieldPassword: string(password),
	})
	if err != nil {
		return "", err
	}
	return pb.GetString(resp, pb.FieldActorID), nil
}

func (s *GRPCClient) Login(ctx context.Context, email string, password []byte) error {
	resp, err := s.call(ctx, pb.MethodLogin, map[string]string{
		pb.FieldEmail:    email,
		pb.FieldPassword: string(password),
	})
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.accessToken = pb.GetString(resp, pb.FieldAccessToken)
	s.mu.Unlock()
	return nil
}

func (s *GRPCClient) EnrollEncryptionKey(ctx context.Context, publicKey string) error {
	_, err := s.authedCall(ctx, pb.MethodEnrollEncryptionKey, map[string]string{pb.FieldPublicKey: publicKey})
	return err
}

func (s *GRPCClient) EnrollSigningKey(ctx context.Context, publicKey string) error {
	_, err := s.authedCall(ctx, pb.MethodEnrollSigningKey, map[string]string{pb.FieldPublicKey: publicKey})
	return err
}

func (s *GRPCClient) SetActorStatus(ctx context.Context, email string, active bool) error {
	st := "inactive"
	if active {
		st = "active"
	}
	_, err := s.authedCall(ctx, pb.MethodSetActorStatus, map[string]string{pb.FieldEmail: email, pb.FieldStatus: st})
	return err
}

func (s *GRPCClient) VerifyActor(ctx context.Context, email string) error {
	_, err := s.authedCall(ctx, pb.MethodVerifyActor, map[string]string{pb.FieldEmail: email})
	return err
}

func (s *GRPCClient) ChangeActorRole(ctx context.Context, email, role string) error {
	_, err := s.authedCall(ctx, pb.MethodChangeActorRole, map[string]string{pb.FieldEmail: email, pb.FieldRole: role})
	return err
}

func (s *GRPCClient) CreateRepository(ctx context.Context, name, description string) (string, error) {
	resp, err := s.authedCall(ctx, pb.MethodCreateRepository, map[string]string{pb.FieldName: name, pb.FieldDescription: description})
	if err != nil {
		return "", err
	}
	return pb.GetString(resp, pb.FieldRepositoryID), nil
}

func (s *GRPCClient) AddMember(ctx context.Context, repository, email string) error {
	_, err := s.authedCall(ctx, pb.MethodAddMember, map[string]string{pb.FieldRepository: repository, pb.FieldEmail: email})
	return err
}

func (s *GRPCClient) ProtectRepository(ctx context.Context, req ProtectRequest) (*ProtectResult, error) {
	resp, err := s.authedCall(ctx, pb.MethodProtectRepository, map[string]string{
		pb.FieldRequesterEmail:    req.RequesterEmail,
		pb.FieldRequesterPassword: string(req.RequesterPassword),
		pb.FieldCoRecipientEmail:  req.CoRecipientEmail,
		pb.FieldRepository:        req.Repository,
		pb.FieldTag:               req.Tag,
	})
	if err != nil {
		return nil, err
	}
	return &ProtectResult{
		Alias:      pb.GetString(resp, pb.FieldAlias),
		WrappedKey: pb.GetString(resp, pb.FieldWrappedKey),
	}, nil
}

func (s *GRPCClient) mapError(err error) error {
	if err == nil {
		return nil
	}
	st, _ := status.FromError(err)

	var kind error
	switch st.Code() {
	case codes.Unauthenticated, codes.PermissionDenied:
		kind = ErrUnauthorized
	case codes.Unavailable, codes.DeadlineExceeded:
		return ErrUnavailable
	case codes.NotFound:
		kind = common.ErrNotFound
	case codes.AlreadyExists:
		kind = common.ErrConflict
	case codes.InvalidArgument:
		kind = common.ErrInvalidArgument
	case codes.FailedPrecondition:
		kind = common.ErrMissingKeyMaterial
	default:
		if detail, ok := pb.ProtectDetail(err); ok {
			return fmt.Errorf("rpc error: %w (%s)", err, pb.GetString(detail, pb.FieldOutcome))
		}
		return fmt.Errorf("rpc error: %w", err)
	}

	if detail, ok := pb.ProtectDetail(err); ok {
		return fmt.Errorf("%w: %s (stage %s, %s)", kind, st.Message(),
			pb.GetString(detail, pb.FieldStage), pb.GetString(detail, pb.FieldOutcome))
	}
	return fmt.Errorf("%w: %s", kind, st.Message())
}
