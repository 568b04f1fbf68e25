// Package proto describes the keyescrow.v1.EscrowService gRPC service.
//
// Messages are google.protobuf.Struct values keyed by the Field* constants
// below, so server and client share this descriptor instead of generated
// stubs.
package proto

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
)

const ServiceName = "keyescrow.v1.EscrowService"

// Method names.
const (
	MethodPing                = "Ping"
	MethodRegisterActor       = "RegisterActor"
	MethodLogin               = "Login"
	MethodEnrollEncryptionKey = "EnrollEncryptionKey"
	MethodEnrollSigningKey    = "EnrollSigningKey"
	MethodSetActorStatus      = "SetActorStatus"
	MethodVerifyActor         = "VerifyActor"
	MethodChangeActorRole     = "ChangeActorRole"
	MethodCreateRepository    = "CreateRepository"
	MethodAddMember           = "AddMember"
	MethodProtectRepository   = "ProtectRepository"
)

// Message fields.
const (
	FieldStatus            = "status"
	FieldName              = "name"
	FieldEmail             = "email"
	FieldPassword          = "password"
	FieldActorID           = "actor_id"
	FieldAccessToken       = "access_token"
	FieldPublicKey         = "public_key"
	FieldRole              = "role"
	FieldDescription       = "description"
	FieldRepository        = "repository"
	FieldRepositoryID      = "repository_id"
	FieldRequesterEmail    = "requester_email"
	FieldRequesterPassword = "requester_password"
	FieldCoRecipientEmail  = "co_recipient_email"
	FieldTag               = "tag"
	FieldAlias             = "alias"
	FieldWrappedKey        = "wrapped_key"
	FieldStage             = "stage"
	FieldOutcome           = "outcome"
)

// FullMethod returns the "/service/method" path of method.
func FullMethod(method string) string {
	return "/" + ServiceName + "/" + method
}

// EscrowServiceServer is the server API for EscrowService.
type EscrowServiceServer interface {
	Ping(context.Context, *structpb.Struct) (*structpb.Struct, error)
	RegisterActor(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Login(context.Context, *structpb.Struct) (*structpb.Struct, error)
	EnrollEncryptionKey(context.Context, *structpb.Struct) (*structpb.Struct, error)
	EnrollSigningKey(context.Context, *structpb.Struct) (*structpb.Struct, error)
	SetActorStatus(context.Context, *structpb.Struct) (*structpb.Struct, error)
	VerifyActor(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ChangeActorRole(context.Context, *structpb.Struct) (*structpb.Struct, error)
	CreateRepository(context.Context, *structpb.Struct) (*structpb.Struct, error)
	AddMember(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ProtectRepository(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

type unaryCall func(EscrowServiceServer, context.Context, *structpb.Struct) (*structpb.Struct, error)

func handler(method string, call unaryCall) grpc.MethodDesc {
	return grpc.MethodDesc{
		MethodName: method,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := new(structpb.Struct)
			if err := dec(in); err != nil {
				return nil, err
			}
			if interceptor == nil {
				return call(srv.(EscrowServiceServer), ctx, in)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: FullMethod(method)}
			return interceptor(ctx, in, info, func(ctx context.Context, req any) (any, error) {
				return call(srv.(EscrowServiceServer), ctx, req.(*structpb.Struct))
			})
		},
	}
}

// EscrowServiceDesc is registered with grpc.Server.RegisterService.
var EscrowServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*EscrowServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		handler(MethodPing, EscrowServiceServer.Ping),
		handler(MethodRegisterActor, EscrowServiceServer.RegisterActor),
		handler(MethodLogin, EscrowServiceServer.Login),
		handler(MethodEnrollEncryptionKey, EscrowServiceServer.EnrollEncryptionKey),
		handler(MethodEnrollSigningKey, EscrowServiceServer.EnrollSigningKey),
		handler(MethodSetActorStatus, EscrowServiceServer.SetActorStatus),
		handler(MethodVerifyActor, EscrowServiceServer.VerifyActor),
		handler(MethodChangeActorRole, EscrowServiceServer.ChangeActorRole),
		handler(MethodCreateRepository, EscrowServiceServer.CreateRepository),
		handler(MethodAddMember, EscrowServiceServer.AddMember),
		handler(MethodProtectRepository, EscrowServiceServer.ProtectRepository),
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "keyescrow/v1/escrow.proto",
}

func RegisterEscrowServiceServer(s grpc.ServiceRegistrar, srv EscrowServiceServer) {
	s.RegisterService(&EscrowServiceDesc, srv)
}

// EscrowServiceClient calls EscrowService methods over cc.
type EscrowServiceClient struct {
	cc grpc.ClientConnInterface
}

func NewEscrowServiceClient(cc grpc.ClientConnInterface) *EscrowServiceClient {
	return &EscrowServiceClient{cc: cc}
}

// Call invokes method with in and returns the response message.
func (c *EscrowServiceClient) Call(ctx context.Context, method string, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, FullMethod(method), in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

// NewMessage builds a message from string fields.
func NewMessage(fields map[string]string) *structpb.Struct {
	m := &structpb.Struct{Fields: make(map[string]*structpb.Value, len(fields))}
	for k, v := range fields {
		m.Fields[k] = structpb.NewStringValue(v)
	}
	return m
}

// GetString returns the string field key of m, or "" when absent.
func GetString(m *structpb.Struct, key string) string {
	if m == nil {
		return ""
	}
	v, ok := m.GetFields()[key]
	if !ok {
		return ""
	}
	return v.GetStringValue()
}

// ProtectDetail returns the Struct detail (alias, stage, outcome) the
// server attaches to a failed ProtectRepository status.
func ProtectDetail(err error) (*structpb.Struct, bool) {
	st, ok := status.FromError(err)
	if !ok {
		return nil, false
	}
	for _, d := range st.Details() {
		if m, ok := d.(*structpb.Struct); ok {
			return m, true
		}
	}
	return nil, false
}
