package errors_test

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/victornm/lms/internal/errors"
)

func TestConvert(t *testing.T) {
	tests := map[string]struct {
		err      error
		wantCode errors.Code
		wantHTTP int
	}{
		"plain error is internal": {
			err:      stderrors.New("boom"),
			wantCode: errors.CodeInternal,
			wantHTTP: http.StatusInternalServerError,
		},
		"wrapped coded error keeps its code": {
			err:      fmt.Errorf("enrollment: %w", errors.NotFound("enrollment not found")),
			wantCode: errors.CodeNotFound,
			wantHTTP: http.StatusNotFound,
		},
		"failed precondition maps to conflict": {
			err:      errors.New(errors.CodeFailedPrecondition),
			wantCode: errors.CodeFailedPrecondition,
			wantHTTP: http.StatusConflict,
		},
		"permission denied maps to forbidden": {
			err:      errors.New(errors.CodePermissionDenied),
			wantCode: errors.CodePermissionDenied,
			wantHTTP: http.StatusForbidden,
		},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			e := errors.Convert(tt.err)
			assert.Equal(t, tt.wantCode, e.Code)
			assert.Equal(t, tt.wantHTTP, e.HTTPStatusCode())
		})
	}
}

func TestError_UnwrapAndStatus(t *testing.T) {
	cause := stderrors.New("duplicate key")
	e := errors.New(errors.CodeAlreadyExists,
		errors.WithCause(cause),
		errors.WithMessagef("course %s already exists", "go-101"),
	)

	assert.ErrorIs(t, e, cause)
	assert.True(t, errors.Is(fmt.Errorf("wrap: %w", e), errors.CodeAlreadyExists))
	assert.False(t, errors.Is(cause, errors.CodeAlreadyExists))
	assert.Equal(t, "course go-101 already exists", e.Message)
	assert.Equal(t, codes.AlreadyExists, status.Code(e))
}
