// Package httpapi wires the submission and admin endpoints onto a chi
// router, translating apierrors.APIError into a consistent JSON error shape
// at every boundary.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sirupsen/logrus"

	"github.com/icct/registration/internal/admin"
	"github.com/icct/registration/internal/apierrors"
	"github.com/icct/registration/internal/decode"
	"github.com/icct/registration/internal/logctx"
	"github.com/icct/registration/internal/registration"
	"github.com/icct/registration/internal/store"
)

// Server bundles the dependencies the HTTP layer dispatches to.
type Server struct {
	Coordinator *registration.Coordinator
	Admin       *admin.Controller
	Pool        *pgxpool.Pool
	Log         *logrus.Logger
	MaxPerChurch int
}

// Router builds the complete chi mux.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.Recoverer)
	r.Use(s.correlationID)
	r.Use(middleware.Timeout(60 * time.Second))

	r.Get("/health", s.handleHealth)
	r.Get("/status", s.handleStatus)

	r.Post("/api/register/team", s.handleRegister)

	r.Route("/api/admin", func(ar chi.Router) {
		ar.Get("/teams", s.handleListTeams)
		ar.Get("/teams/{teamId}", s.handleGetTeam)
		ar.Get("/players/{playerId}", s.handleGetPlayer)
		ar.Put("/teams/{teamId}/confirm", s.handleConfirm)
		ar.Put("/teams/{teamId}/reject", s.handleReject)
		ar.Get("/churches/availability", s.handleChurchAvailability)
	})

	return r
}

// correlationID tags every request with a correlation id (request-header
// supplied or freshly generated) used by logctx throughout the call chain.
func (s *Server) correlationID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		id := req.Header.Get("X-Correlation-Id")
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set("X-Correlation-Id", id)
		ctx := logctx.WithCorrelationID(req.Context(), id)
		next.ServeHTTP(w, req.WithContext(ctx))
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	status := map[string]any{"status": "healthy", "database": "reachable"}
	code := http.StatusOK
	if err := s.Pool.Ping(r.Context()); err != nil {
		status["status"] = "degraded"
		status["database"] = "unreachable"
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, code, status)
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	body, err := readBody(w, r, 40<<20) // 40 MiB: 5 slots x 5 MiB base64-inflated (~6.7 MiB each), plus fields
	if err != nil {
		writeError(w, apierrors.ErrValidationFailed.WithMessage("failed to read request body"))
		return
	}

	sub, err := decode.Decode(body)
	if err != nil {
		writeError(w, err)
		return
	}

	idemKey := r.Header.Get("X-Idempotency-Key")
	result, err := s.Coordinator.Register(ctx, sub, idemKey)
	if err != nil {
		logctx.Error(ctx, s.Log, "registration failed", err)
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, result)
}

func (s *Server) handleListTeams(w http.ResponseWriter, r *http.Request) {
	status := store.Status(r.URL.Query().Get("status"))
	skip := intQuery(r, "skip", 0)
	limit := intQuery(r, "limit", 50)

	total, summaries, err := s.Admin.ListTeams(r.Context(), status, skip, limit)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"total": total, "teams": summaries})
}

func (s *Server) handleGetTeam(w http.ResponseWriter, r *http.Request) {
	teamID := chi.URLParam(r, "teamId")
	team, err := s.Admin.GetTeam(r.Context(), teamID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, team)
}

func (s *Server) handleGetPlayer(w http.ResponseWriter, r *http.Request) {
	playerID := chi.URLParam(r, "playerId")
	player, teamID, err := s.Admin.GetPlayer(r.Context(), playerID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"player": player, "teamId": teamID})
}

func (s *Server) handleConfirm(w http.ResponseWriter, r *http.Request) {
	teamID := chi.URLParam(r, "teamId")
	result, err := s.Admin.ConfirmTeam(r.Context(), teamID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleReject(w http.ResponseWriter, r *http.Request) {
	teamID := chi.URLParam(r, "teamId")
	result, err := s.Admin.RejectTeam(r.Context(), teamID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleChurchAvailability(w http.ResponseWriter, r *http.Request) {
	list, err := s.Admin.ListChurchAvailability(r.Context(), s.MaxPerChurch)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"churches": list})
}

func intQuery(r *http.Request, key string, def int) int {
	v := r.URL.Query().Get(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func readBody(w http.ResponseWriter, r *http.Request, maxBytes int64) ([]byte, error) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
	var raw json.RawMessage
	if err := json.NewDecoder(r.Body).Decode(&raw); err != nil {
		return nil, err
	}
	return raw, nil
}

// errorResponse is the JSON error envelope returned on every failure path.
type errorResponse struct {
	Success bool           `json:"success"`
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Field   string         `json:"field,omitempty"`
	Details map[string]any `json:"details,omitempty"`
}

func writeError(w http.ResponseWriter, err error) {
	apiErr, ok := apierrors.As(err)
	if !ok {
		if isContextErr(err) {
			apiErr = apierrors.ErrDeadlineExceeded
		} else {
			apiErr = apierrors.ErrInternal.WithMessage(err.Error())
		}
	}
	writeJSON(w, apiErr.HTTPStatus, errorResponse{
		Success: false, Code: apiErr.Code, Message: apiErr.Message, Field: apiErr.Field, Details: apiErr.Details,
	})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// isContextErr reports whether err is a deadline/cancellation, used to map
// coordinator timeouts to the documented 504 instead of a generic 500.
func isContextErr(err error) bool {
	return errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled)
}
