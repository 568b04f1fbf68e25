// Package client talks to the escrow server.
//
// GRPCClient implements Client over the EscrowService descriptor in
// internal/proto. After Login it attaches the access token to every call
// and maps gRPC status codes back to the sentinel errors of
// internal/common (ErrNotFound, ErrConflict, ...) plus ErrUnavailable and
// ErrUnauthorized, so callers can use errors.Is.
package client
