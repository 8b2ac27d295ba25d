package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/meshstat/meshstat/internal/errors"
	"github.com/meshstat/meshstat/internal/mesh"
	"github.com/meshstat/meshstat/internal/observability"
	"github.com/meshstat/meshstat/internal/status"
	"github.com/meshstat/meshstat/pkg/model"
)

// StatusEngine is the part of the status engine the API consumes.
type StatusEngine interface {
	InstanceStatus(ctx context.Context, req status.Request) (*model.InstanceStatus, error)
	MeshStatus(ctx context.Context, req status.Request) (map[mesh.Flavor]*model.MeshStatus, error)
}

type handlers struct {
	engine  StatusEngine
	metrics *observability.Metrics
	log     *slog.Logger
}

func newHandlers(engine StatusEngine, metrics *observability.Metrics, log *slog.Logger) *handlers {
	return &handlers{engine: engine, metrics: metrics, log: log}
}

func (h *handlers) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// parseRequest builds a status.Request from path and query parameters.
func parseRequest(r *http.Request) (status.Request, error) {
	instanceType, err := status.ParseInstanceType(queryOrDefault(r, "instance_type", "kubernetes"))
	if err != nil {
		return status.Request{}, err
	}

	verbose, _ := strconv.Atoi(r.URL.Query().Get("verbose"))

	return status.Request{
		Service:        r.PathValue("service"),
		Instance:       r.PathValue("instance"),
		Type:           instanceType,
		Verbose:        verbose,
		IncludeHAProxy: queryBool(r, "include_haproxy", false),
		IncludeEnvoy:   queryBool(r, "include_envoy", true),
		UseV2:          queryBool(r, "new", false),
	}, nil
}

func (h *handlers) handleInstanceStatus(w http.ResponseWriter, r *http.Request) {
	started := time.Now()
	req, err := parseRequest(r)
	if err != nil {
		h.writeError(w, r, "instance_status", err)
		return
	}

	st, err := h.engine.InstanceStatus(r.Context(), req)
	if err != nil {
		h.writeError(w, r, "instance_status", err)
		return
	}
	h.writeJSON(w, "instance_status", http.StatusOK, st)
	h.metrics.APIRequestSeconds.Observe(time.Since(started).Seconds())
}

func (h *handlers) handleMeshStatus(w http.ResponseWriter, r *http.Request) {
	started := time.Now()
	req, err := parseRequest(r)
	if err != nil {
		h.writeError(w, r, "mesh_status", err)
		return
	}

	statuses, err := h.engine.MeshStatus(r.Context(), req)
	if err != nil {
		h.writeError(w, r, "mesh_status", err)
		return
	}
	h.writeJSON(w, "mesh_status", http.StatusOK, statuses)
	h.metrics.APIRequestSeconds.Observe(time.Since(started).Seconds())
}

// writeError maps the error taxonomy to HTTP codes: unknown identities are
// 404, not-in-mesh is 405 (the operation is not allowed for that instance),
// everything else is a 500.
func (h *handlers) writeError(w http.ResponseWriter, r *http.Request, route string, err error) {
	code := http.StatusInternalServerError
	switch errors.CodeOf(err) {
	case errors.ErrUnknownInstanceType, errors.ErrConfigLoad:
		code = http.StatusNotFound
	case errors.ErrMeshNotConfigured:
		code = http.StatusMethodNotAllowed
	}

	h.log.Error("request failed", "route", route, "path", r.URL.Path, "error", err)
	h.writeJSON(w, route, code, map[string]string{"error": err.Error()})
}

func (h *handlers) writeJSON(w http.ResponseWriter, route string, code int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		h.log.Error("encoding response failed", "route", route, "error", err)
	}
	h.metrics.APIRequestsTotal.WithLabelValues(route, strconv.Itoa(code)).Inc()
}

func queryOrDefault(r *http.Request, key, defaultVal string) string {
	if v := r.URL.Query().Get(key); v != "" {
		return v
	}
	return defaultVal
}

func queryBool(r *http.Request, key string, defaultVal bool) bool {
	v := r.URL.Query().Get(key)
	if v == "" {
		return defaultVal
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return defaultVal
	}
	return b
}
