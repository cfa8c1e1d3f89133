package grpc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/google/uuid"
	"github.com/grpc-ecosystem/grpc-gateway/v2/runtime"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health/grpc_health_v1"

	"github.com/narwhalmedia/appupdater/internal/application/updater"
	"github.com/narwhalmedia/appupdater/internal/domain/update"
	apperrors "github.com/narwhalmedia/appupdater/pkg/errors"
)

// maxConfigBytes bounds a start or retry request body.
const maxConfigBytes = 1 << 20

// Updates is the session control surface served over HTTP.
type Updates interface {
	Submit(cfg *update.Config) error
	Retry(cfg *update.Config) error
	Stop()
	Status() updater.Status
}

// Gateway serves the HTTP control API next to the gRPC health endpoint.
type Gateway struct {
	updates Updates
	history update.SessionRepository
	logger  *zap.Logger
}

// NewGateway builds the HTTP mux. conn is used for the /healthz endpoint;
// history may be nil, in which case session listing is empty.
func NewGateway(conn *grpc.ClientConn, updates Updates, history update.SessionRepository, logger *zap.Logger) (*runtime.ServeMux, error) {
	g := &Gateway{
		updates: updates,
		history: history,
		logger:  logger.Named("gateway"),
	}

	mux := runtime.NewServeMux(
		runtime.WithHealthzEndpoint(grpc_health_v1.NewHealthClient(conn)),
	)

	routes := []struct {
		method  string
		pattern string
		handler runtime.HandlerFunc
	}{
		{http.MethodGet, "/v1/status", g.status},
		{http.MethodPost, "/v1/start", g.start},
		{http.MethodPost, "/v1/retry", g.retry},
		{http.MethodPost, "/v1/stop", g.stop},
		{http.MethodGet, "/v1/sessions", g.listSessions},
		{http.MethodGet, "/v1/sessions/{id}", g.getSession},
	}
	for _, r := range routes {
		if err := mux.HandlePath(r.method, r.pattern, r.handler); err != nil {
			return nil, fmt.Errorf("failed to register %s %s: %w", r.method, r.pattern, err)
		}
	}

	return mux, nil
}

func (g *Gateway) status(w http.ResponseWriter, _ *http.Request, _ map[string]string) {
	g.writeJSON(w, http.StatusOK, g.updates.Status())
}

func (g *Gateway) start(w http.ResponseWriter, r *http.Request, _ map[string]string) {
	g.submit(w, r, g.updates.Submit)
}

func (g *Gateway) retry(w http.ResponseWriter, r *http.Request, _ map[string]string) {
	g.submit(w, r, g.updates.Retry)
}

func (g *Gateway) submit(w http.ResponseWriter, r *http.Request, run func(*update.Config) error) {
	data, err := io.ReadAll(io.LimitReader(r.Body, maxConfigBytes))
	if err != nil {
		g.writeError(w, apperrors.Wrap(apperrors.ErrorTypeBadRequest, "failed to read body", err))
		return
	}

	cfg, err := update.DecodeRemoteConfig(data)
	if err != nil {
		g.writeError(w, apperrors.Wrap(apperrors.ErrorTypeBadRequest, "invalid config", err))
		return
	}

	if err := run(cfg); err != nil {
		g.writeError(w, classify(err))
		return
	}

	g.writeJSON(w, http.StatusAccepted, g.updates.Status())
}

func (g *Gateway) stop(w http.ResponseWriter, _ *http.Request, _ map[string]string) {
	g.updates.Stop()
	g.writeJSON(w, http.StatusAccepted, g.updates.Status())
}

func (g *Gateway) listSessions(w http.ResponseWriter, r *http.Request, _ map[string]string) {
	limit := 20
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			g.writeError(w, apperrors.BadRequest("limit must be a non-negative integer"))
			return
		}
		limit = n
	}

	records := []*update.SessionRecord{}
	if g.history != nil {
		var err error
		if records, err = g.history.List(r.Context(), limit); err != nil {
			g.writeError(w, classify(err))
			return
		}
	}
	g.writeJSON(w, http.StatusOK, records)
}

func (g *Gateway) getSession(w http.ResponseWriter, r *http.Request, params map[string]string) {
	id, err := uuid.Parse(params["id"])
	if err != nil {
		g.writeError(w, apperrors.BadRequest("invalid session id"))
		return
	}
	if g.history == nil {
		g.writeError(w, apperrors.NotFound("session not found"))
		return
	}

	record, err := g.history.FindByID(r.Context(), id)
	if err != nil {
		g.writeError(w, classify(err))
		return
	}
	g.writeJSON(w, http.StatusOK, record)
}

// classify maps updater errors onto API error types.
func classify(err error) error {
	var cfgErr *update.ConfigError
	switch {
	case errors.As(err, &cfgErr), errors.Is(err, update.ErrNilConfig):
		return apperrors.Wrap(apperrors.ErrorTypeBadRequest, "invalid config", err)
	case errors.Is(err, updater.ErrSessionInProgress):
		return apperrors.Wrap(apperrors.ErrorTypeConflict, "session in progress", err)
	case errors.Is(err, update.ErrSessionNotFound):
		return apperrors.Wrap(apperrors.ErrorTypeNotFound, "session not found", err)
	case errors.Is(err, context.Canceled):
		return apperrors.Wrap(apperrors.ErrorTypeUnavailable, "shutting down", err)
	default:
		return err
	}
}

type errorBody struct {
	Error string `json:"error"`
}

func (g *Gateway) writeError(w http.ResponseWriter, err error) {
	code := apperrors.HTTPStatus(err)
	if code >= http.StatusInternalServerError {
		g.logger.Error("request failed", zap.Error(err))
	}
	g.writeJSON(w, code, errorBody{Error: err.Error()})
}

func (g *Gateway) writeJSON(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		g.logger.Warn("failed to write response", zap.Error(err))
	}
}
