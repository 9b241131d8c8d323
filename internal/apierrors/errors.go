// Package apierrors defines sentinel errors for the registration API. Return
// these directly (or a copy from WithMessage/WithField/WithDetails/WithCause)
// — wrapping into a plain fmt.Errorf without %w loses the HTTP status and
// machine code carried on the wire.
package apierrors

import (
	"errors"
	"net/http"
)

// Machine codes, mirrored in the HTTP response body's "code" field.
const (
	CodeValidationFailed    = "VALIDATION_FAILED"
	CodeChurchQuotaExceeded = "CHURCH_QUOTA_EXCEEDED"
	CodeDuplicateTeam       = "DUPLICATE_TEAM"
	CodeDuplicateRequest    = "DUPLICATE_REQUEST"
	CodeIdempotencyConflict = "IDEMPOTENCY_CONFLICT"
	CodeUploadFailed        = "UPLOAD_FAILED"
	CodeDatabaseError       = "DATABASE_ERROR"
	CodeCircuitOpen         = "CIRCUIT_OPEN"
	CodeDeadlineExceeded    = "DEADLINE_EXCEEDED"
	CodeNotFound            = "NOT_FOUND"
	CodeInvalidTransition   = "INVALID_TRANSITION"
	CodeInternal            = "INTERNAL_ERROR"
)

// APIError is the unified error shape returned to callers. Field and Details
// are optional and only populated where the caller has relevant context.
type APIError struct {
	HTTPStatus int
	Code       string
	Message    string
	Field      string
	Details    map[string]any
	cause      error
}

func (e *APIError) Error() string { return e.Message }

// Unwrap exposes the underlying cause (if any) so errors.As/errors.Is can
// still reach it, e.g. a *pgconn.PgError wrapped via WithCause.
func (e *APIError) Unwrap() error { return e.cause }

// New constructs a sentinel APIError. Call WithField/WithDetails on the
// result to attach request-specific context without mutating the sentinel.
func New(status int, code, message string) *APIError {
	return &APIError{HTTPStatus: status, Code: code, Message: message}
}

// WithField returns a copy of the error annotated with a dotted field path,
// used for validation failures.
func (e *APIError) WithField(field string) *APIError {
	cp := *e
	cp.Field = field
	return &cp
}

// WithMessage returns a copy with a more specific human message, keeping the
// sentinel's code and status.
func (e *APIError) WithMessage(msg string) *APIError {
	cp := *e
	cp.Message = msg
	return &cp
}

// WithDetails returns a copy carrying contextual identifiers, e.g. the
// conflicting churchName.
func (e *APIError) WithDetails(details map[string]any) *APIError {
	cp := *e
	cp.Details = details
	return &cp
}

// WithCause returns a copy wrapping the original error, so a caller further
// down the chain can still errors.As into it (e.g. a store caller recovering
// the *pgconn.PgError behind a mapped insert error).
func (e *APIError) WithCause(cause error) *APIError {
	cp := *e
	cp.cause = cause
	return &cp
}

// As reports whether err (or one it wraps) is an *APIError and returns it.
func As(err error) (*APIError, bool) {
	var target *APIError
	if errors.As(err, &target) {
		return target, true
	}
	return nil, false
}

// Unified error definitions. Each carries one machine code above; the two
// not-found sentinels share CodeNotFound.
var (
	// Validation (4xx)
	ErrValidationFailed = New(http.StatusUnprocessableEntity, CodeValidationFailed, "validation failed")

	// Business (409)
	ErrChurchQuotaExceeded = New(http.StatusConflict, CodeChurchQuotaExceeded, "Maximum 2 teams already registered for this church")
	ErrDuplicateTeam       = New(http.StatusConflict, CodeDuplicateTeam, "a team with this name and captain phone is already registered")
	ErrDuplicateRequest    = New(http.StatusConflict, CodeDuplicateRequest, "a request with this idempotency key is already in flight")
	ErrIdempotencyConflict = New(http.StatusConflict, CodeIdempotencyConflict, "idempotency key reused with a different payload")
	ErrInvalidTransition   = New(http.StatusConflict, CodeInvalidTransition, "team is not in a state that allows this transition")

	// Transient external (502/503/504)
	ErrUploadFailed     = New(http.StatusBadGateway, CodeUploadFailed, "artifact upload failed")
	ErrCircuitOpen      = New(http.StatusServiceUnavailable, CodeCircuitOpen, "dependency temporarily unavailable")
	ErrDeadlineExceeded = New(http.StatusGatewayTimeout, CodeDeadlineExceeded, "request exceeded its deadline")

	// Integrity / fatal (500)
	ErrDatabaseError = New(http.StatusInternalServerError, CodeDatabaseError, "database error")
	ErrInternal      = New(http.StatusInternalServerError, CodeInternal, "internal server error")

	// Not found (404)
	ErrTeamNotFound   = New(http.StatusNotFound, CodeNotFound, "team not found")
	ErrPlayerNotFound = New(http.StatusNotFound, CodeNotFound, "player not found")
)
