package cloud

import (
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// Classify maps an RPC error from a platform SDK onto the engine's error
// taxonomy. Adapters call this at the boundary so nothing downstream ever
// switches on grpc codes.
//
// Unknown or unmapped codes classify as Transient: the safe default for a
// remote control plane is to retry with backoff and let retry exhaustion
// convert persistent unknowns into failures.
func Classify(op string, id Identity, err error) error {
	if err == nil {
		return nil
	}
	st, ok := status.FromError(err)
	if !ok {
		return NewRemoteError(ClassTransient, op, id, err)
	}
	return NewRemoteError(classifyCode(st.Code()), op, id, err)
}

func classifyCode(c codes.Code) ErrorClass {
	switch c {
	case codes.NotFound:
		return ClassNotFound
	case codes.AlreadyExists:
		return ClassAlreadyExists
	case codes.PermissionDenied, codes.Unauthenticated:
		return ClassPermissionDenied
	case codes.ResourceExhausted:
		return ClassQuotaExceeded
	case codes.InvalidArgument, codes.FailedPrecondition, codes.OutOfRange:
		return ClassInvalidArgument
	case codes.Unavailable, codes.DeadlineExceeded, codes.Aborted, codes.Internal:
		return ClassTransient
	default:
		return ClassTransient
	}
}
