package apierrors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWithMessageDoesNotMutateSentinel(t *testing.T) {
	original := ErrValidationFailed.Message
	derived := ErrValidationFailed.WithMessage("teamName is required")

	assert.Equal(t, "teamName is required", derived.Message)
	assert.Equal(t, original, ErrValidationFailed.Message)
	assert.Equal(t, ErrValidationFailed.Code, derived.Code)
	assert.Equal(t, ErrValidationFailed.HTTPStatus, derived.HTTPStatus)
}

func TestWithFieldDoesNotMutateSentinel(t *testing.T) {
	derived := ErrValidationFailed.WithField("captain.email")
	assert.Equal(t, "captain.email", derived.Field)
	assert.Empty(t, ErrValidationFailed.Field)
}

func TestWithDetails(t *testing.T) {
	derived := ErrChurchQuotaExceeded.WithDetails(map[string]any{"churchName": "Grace"})
	assert.Equal(t, "Grace", derived.Details["churchName"])
}

func TestAsUnwrapsWrappedError(t *testing.T) {
	wrapped := fmt.Errorf("registering team: %w", ErrDuplicateTeam)
	found, ok := As(wrapped)
	require := assert.New(t)
	require.True(ok)
	require.Equal(ErrDuplicateTeam.Code, found.Code)
}

func TestAsFalseForPlainError(t *testing.T) {
	_, ok := As(errors.New("boom"))
	assert.False(t, ok)
}

func TestErrorMessageSatisfiesErrorInterface(t *testing.T) {
	var err error = ErrInternal
	assert.Equal(t, ErrInternal.Message, err.Error())
}

func TestSentinelHTTPStatuses(t *testing.T) {
	assert.Equal(t, http.StatusUnprocessableEntity, ErrValidationFailed.HTTPStatus)
	assert.Equal(t, http.StatusConflict, ErrChurchQuotaExceeded.HTTPStatus)
	assert.Equal(t, http.StatusConflict, ErrDuplicateTeam.HTTPStatus)
	assert.Equal(t, http.StatusServiceUnavailable, ErrCircuitOpen.HTTPStatus)
	assert.Equal(t, http.StatusGatewayTimeout, ErrDeadlineExceeded.HTTPStatus)
	assert.Equal(t, http.StatusNotFound, ErrTeamNotFound.HTTPStatus)
}
