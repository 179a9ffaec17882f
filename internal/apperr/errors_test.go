package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKindOf(t *testing.T) {
	assert.Equal(t, NotFound, KindOf(New(NotFound, "gone")))
	assert.Equal(t, Internal, KindOf(errors.New("driver: bad connection")))
	assert.Equal(t, Internal, KindOf(nil))

	// Classification survives fmt wrapping.
	wrapped := fmt.Errorf("loading request: %w", New(StaleState, "version changed"))
	assert.Equal(t, StaleState, KindOf(wrapped))
	assert.True(t, IsKind(wrapped, StaleState))
	assert.False(t, IsKind(wrapped, NotFound))
}

func TestReasonOfHidesUnclassifiedErrors(t *testing.T) {
	assert.Equal(t, "resource not found", ReasonOf(New(NotFound, "resource not found")))
	assert.Equal(t, "internal server error", ReasonOf(errors.New("pq: relation does not exist")))
}

func TestWrapKeepsCause(t *testing.T) {
	cause := errors.New("connection reset")
	err := Wrap(Internal, "failed to save resource", cause)

	assert.True(t, errors.Is(err, cause))
	assert.Equal(t, "failed to save resource", ReasonOf(err))
	assert.Contains(t, err.Error(), "connection reset")
}

func TestHTTPStatus(t *testing.T) {
	cases := map[Kind]int{
		Unauthenticated:      http.StatusUnauthorized,
		IdentityMismatch:     http.StatusForbidden,
		Forbidden:            http.StatusForbidden,
		NotFound:             http.StatusNotFound,
		CrossTenantReference: http.StatusConflict,
		StaleState:           http.StatusConflict,
		InvalidTransition:    http.StatusUnprocessableEntity,
		ValidationFailure:    http.StatusUnprocessableEntity,
		Internal:             http.StatusInternalServerError,
	}
	for kind, want := range cases {
		assert.Equal(t, want, HTTPStatus(kind), string(kind))
	}

	// Unknown kinds never leak a more permissive status.
	assert.Equal(t, http.StatusInternalServerError, HTTPStatus(Kind("SOMETHING_NEW")))
}
