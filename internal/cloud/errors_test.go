package cloud

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/terrane-dev/terrane/internal/model"
)

func TestErrorClass_Retryable(t *testing.T) {
	assert.True(t, ClassTransient.Retryable())
	assert.True(t, ClassQuotaExceeded.Retryable())
	assert.False(t, ClassPermissionDenied.Retryable())
	assert.False(t, ClassInvalidArgument.Retryable())
	assert.False(t, ClassAlreadyExists.Retryable())
	assert.False(t, ClassNotFound.Retryable())
}

func TestRemoteError_WrapPredicates(t *testing.T) {
	id := Identity{Project: "demo", Kind: model.KindRegistry, Name: "repo"}
	base := NewRemoteError(ClassNotFound, "get", id, nil)
	wrapped := fmt.Errorf("observe repo: %w", base)

	assert.True(t, IsNotFound(wrapped))
	assert.False(t, IsRetryable(wrapped))
	assert.Equal(t, ClassNotFound, ClassOf(wrapped))
	assert.Equal(t, ErrorClass(""), ClassOf(fmt.Errorf("plain")))
}

func TestClassify_GRPCCodes(t *testing.T) {
	id := Identity{Project: "demo", Kind: model.KindSQLInstance, Name: "db"}

	tests := []struct {
		code codes.Code
		want ErrorClass
	}{
		{codes.NotFound, ClassNotFound},
		{codes.AlreadyExists, ClassAlreadyExists},
		{codes.PermissionDenied, ClassPermissionDenied},
		{codes.Unauthenticated, ClassPermissionDenied},
		{codes.ResourceExhausted, ClassQuotaExceeded},
		{codes.InvalidArgument, ClassInvalidArgument},
		{codes.FailedPrecondition, ClassInvalidArgument},
		{codes.Unavailable, ClassTransient},
		{codes.Internal, ClassTransient},
		{codes.Unknown, ClassTransient},
	}

	for _, tt := range tests {
		t.Run(tt.code.String(), func(t *testing.T) {
			err := Classify("get", id, status.Error(tt.code, "boom"))
			assert.Equal(t, tt.want, ClassOf(err))
		})
	}
}

func TestClassify_NilAndNonGRPC(t *testing.T) {
	id := Identity{Project: "demo", Kind: model.KindRegistry, Name: "repo"}
	assert.NoError(t, Classify("get", id, nil))

	err := Classify("get", id, fmt.Errorf("connection reset"))
	assert.Equal(t, ClassTransient, ClassOf(err), "unclassifiable errors default to transient")
}
