package main

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/brunobiangulo/rulegraph"
	"github.com/brunobiangulo/rulegraph/export"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

type handler struct {
	engine  rulegraph.Engine
	metrics *metrics
}

func newHandler(e rulegraph.Engine, m *metrics) *handler {
	return &handler{engine: e, metrics: m}
}

type queryRequest struct {
	Query string `json:"query" validate:"required,max=2000"`
}

// POST /query
func (h *handler) handleQuery(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 30*time.Second)
	defer cancel()

	var req queryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if err := validate.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, "query is required and must be at most 2000 characters")
		return
	}

	answer, err := h.engine.Query(ctx, req.Query)
	if err != nil {
		h.engineError(w, "query", err)
		return
	}
	motion := answer.Components.MotionType
	if motion == "" {
		motion = "none"
	}
	h.metrics.queries.WithLabelValues(motion).Inc()
	writeJSON(w, http.StatusOK, answer)
}

// GET /graph?format=cytoscape|d3
func (h *handler) handleGraph(w http.ResponseWriter, r *http.Request) {
	b, err := h.engine.Current()
	if err != nil {
		h.engineError(w, "graph", err)
		return
	}
	meta := export.Describe(b.Graph, export.Options{
		BuildID:     b.ID,
		GeneratedAt: b.CreatedAt,
		Stats:       b.Stats,
	})

	switch f := r.URL.Query().Get("format"); f {
	case "", string(export.FormatCytoscape):
		writeJSON(w, http.StatusOK, export.BuildCytoscape(b.Graph, meta))
	case string(export.FormatD3):
		writeJSON(w, http.StatusOK, export.BuildD3(b.Graph, meta))
	default:
		writeError(w, http.StatusBadRequest, "format must be cytoscape or d3")
	}
}

// GET /stats
func (h *handler) handleStats(w http.ResponseWriter, r *http.Request) {
	b, err := h.engine.Current()
	if err != nil {
		h.engineError(w, "stats", err)
		return
	}
	writeJSON(w, http.StatusOK, b)
}

// GET /rules/{id}
func (h *handler) handleRule(w http.ResponseWriter, r *http.Request) {
	d, err := h.engine.Rule(chi.URLParam(r, "id"))
	if err != nil {
		h.engineError(w, "rule", err)
		return
	}
	writeJSON(w, http.StatusOK, d)
}

// POST /rebuild
func (h *handler) handleRebuild(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Minute)
	defer cancel()

	b, err := h.engine.Build(ctx)
	h.recordBuild(b, err)
	if err != nil {
		h.engineError(w, "rebuild", err)
		return
	}
	writeJSON(w, http.StatusOK, b)
}

// GET /builds
func (h *handler) handleBuilds(w http.ResponseWriter, r *http.Request) {
	builds, err := h.engine.Builds(r.Context())
	if err != nil {
		h.engineError(w, "builds", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"builds": builds,
		"count":  len(builds),
	})
}

// GET /health
func (h *handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := map[string]interface{}{"status": "ok"}
	if b, err := h.engine.Current(); err == nil {
		resp["build"] = b.ID
		resp["nodes"] = b.Graph.NodeCount()
		resp["edges"] = b.Graph.EdgeCount()
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *handler) recordBuild(b *rulegraph.Build, err error) {
	if err != nil {
		h.metrics.observeBuild(0, 0, err)
		return
	}
	h.metrics.observeBuild(b.Graph.NodeCount(), b.Graph.EdgeCount(), nil)
}

// engineError maps engine errors onto HTTP statuses.
func (h *handler) engineError(w http.ResponseWriter, op string, err error) {
	switch {
	case errors.Is(err, rulegraph.ErrNoBuild):
		writeError(w, http.StatusServiceUnavailable, "no graph has been built yet")
	case rulegraph.IsNotFound(err):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, rulegraph.ErrNoStore):
		writeError(w, http.StatusNotFound, "no snapshot database configured")
	case errors.Is(err, context.DeadlineExceeded):
		writeError(w, http.StatusGatewayTimeout, op+" timed out")
	default:
		slog.Error(op+" error", "error", err)
		writeError(w, http.StatusInternalServerError, op+" failed")
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
