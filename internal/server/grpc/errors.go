package grpc

import (
	"errors"

	"github.com/dmitrijs2005/keyescrow/internal/common"
	pb "github.com/dmitrijs2005/keyescrow/internal/proto"
	"github.com/dmitrijs2005/keyescrow/internal/server/services"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

func codeFor(err error) codes.Code {
	switch {
	case errors.Is(err, common.ErrInvalidArgument):
		return codes.InvalidArgument
	case errors.Is(err, common.ErrNotFound):
		return codes.NotFound
	case errors.Is(err, common.ErrUnauthenticated),
		errors.Is(err, common.ErrInvalidToken),
		errors.Is(err, common.ErrTokenExpired):
		return codes.Unauthenticated
	case errors.Is(err, common.ErrForbidden):
		return codes.PermissionDenied
	case errors.Is(err, common.ErrMissingKeyMaterial):
		return codes.FailedPrecondition
	case errors.Is(err, common.ErrConflict):
		return codes.AlreadyExists
	}
	return codes.Internal
}

// toStatus converts a service error into a gRPC status. Internal errors
// carry no detail; a *services.ProtectError adds its alias, stage and
// outcome as a Struct detail.
func toStatus(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := status.FromError(err); ok {
		return err
	}

	code := codeFor(err)
	msg := err.Error()
	if code == codes.Internal {
		msg = "internal error"
	}
	st := status.New(code, msg)

	var pe *services.ProtectError
	if errors.As(err, &pe) {
		if code == codes.Internal {
			st = status.New(code, "protect failed at "+pe.Stage.String())
		}
		detail := pb.NewMessage(map[string]string{
			pb.FieldAlias:   pe.Alias,
			pb.FieldStage:   pe.Stage.String(),
			pb.FieldOutcome: pe.Outcome.String(),
		})
		if withDetail, derr := st.WithDetails(detail); derr == nil {
			st = withDetail
		}
	}
	return st.Err()
}
