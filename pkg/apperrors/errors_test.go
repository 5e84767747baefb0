package apperrors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAppError_IsMatchesWrappedSentinel(t *testing.T) {
	sentinel := NotFound("message not found")
	wrapped := fmt.Errorf("loading: %w", NotFound("message not found"))

	assert.True(t, errors.Is(wrapped, sentinel))
	assert.False(t, errors.Is(wrapped, NotFound("conversation not found")))
	assert.False(t, errors.Is(wrapped, Forbidden("message not found")))
}

func TestAppError_ErrorIncludesCause(t *testing.T) {
	err := Storage("insert message", errors.New("connection refused"))
	assert.Equal(t, "insert message: connection refused", err.Error())
	assert.Equal(t, CodeStorage, CodeOf(err))
	assert.Equal(t, CodeUnknown, CodeOf(errors.New("plain")))
}

func TestCode_HTTPStatus(t *testing.T) {
	cases := map[Code]int{
		CodeInvalidArgument:    http.StatusBadRequest,
		CodeUnauthenticated:    http.StatusUnauthorized,
		CodePermissionDenied:   http.StatusForbidden,
		CodeNotFound:           http.StatusNotFound,
		CodeFailedPrecondition: http.StatusConflict,
		CodeStorage:            http.StatusInternalServerError,
		CodeConfiguration:      http.StatusInternalServerError,
	}
	for code, want := range cases {
		assert.Equal(t, want, code.HTTPStatus(), code)
	}
}
