package httpapi

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/icct/registration/internal/apierrors"
)

func TestIntQueryDefaultsWhenMissingOrInvalid(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/teams?skip=not-a-number", nil)
	assert.Equal(t, 50, intQuery(req, "limit", 50))
	assert.Equal(t, 0, intQuery(req, "skip", 0))
}

func TestIntQueryParsesValue(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/teams?skip=20&limit=10", nil)
	assert.Equal(t, 20, intQuery(req, "skip", 0))
	assert.Equal(t, 10, intQuery(req, "limit", 50))
}

func TestIsContextErr(t *testing.T) {
	assert.True(t, isContextErr(context.DeadlineExceeded))
	assert.True(t, isContextErr(context.Canceled))
	assert.False(t, isContextErr(errors.New("boom")))
}

func TestWriteErrorMapsAPIError(t *testing.T) {
	rec := httptest.NewRecorder()
	writeError(rec, apierrors.ErrChurchQuotaExceeded.WithField("churchName"))

	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Contains(t, rec.Body.String(), apierrors.CodeChurchQuotaExceeded)
	assert.Contains(t, rec.Body.String(), "churchName")
}

func TestWriteErrorMapsContextDeadline(t *testing.T) {
	rec := httptest.NewRecorder()
	writeError(rec, context.DeadlineExceeded)

	assert.Equal(t, http.StatusGatewayTimeout, rec.Code)
	assert.Contains(t, rec.Body.String(), apierrors.CodeDeadlineExceeded)
}

func TestWriteErrorFallsBackToInternal(t *testing.T) {
	rec := httptest.NewRecorder()
	writeError(rec, errors.New("unexpected"))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), apierrors.CodeInternal)
}

func TestReadBodyRejectsEmptyBody(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/api/register/team", nil)
	req.Body = http.NoBody
	rec := httptest.NewRecorder()

	_, err := readBody(rec, req, 16<<20)
	require.Error(t, err) // empty body is not valid JSON
}

func TestHandleHealth(t *testing.T) {
	s := &Server{}
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()

	s.handleHealth(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "healthy")
}
