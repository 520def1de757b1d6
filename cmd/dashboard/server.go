package main

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/rickgao/cem-dashboard/internal/connection"
	"github.com/rickgao/cem-dashboard/internal/dashboard"
	"github.com/rickgao/cem-dashboard/internal/journal"
	"github.com/rickgao/cem-dashboard/internal/mirror"
	"github.com/rickgao/cem-dashboard/internal/model"
	"github.com/rickgao/cem-dashboard/internal/poller"
	"github.com/rickgao/cem-dashboard/internal/version"
)

const requestTimeout = 10 * time.Second

// operations is the part of *dashboard.Service the HTTP surface drives.
type operations interface {
	dashboard.Simulator
	GetRemoteSKIs(ctx context.Context) ([]string, error)
	RegisterSKI(ctx context.Context, ski string) error
	GetLPP(ctx context.Context, ski string) (model.PowerLimit, error)
	GetLPC(ctx context.Context, ski string) (model.PowerLimit, error)
	GetLogLevel(ctx context.Context) (string, error)
	SetLogLevel(ctx context.Context, level string) error
	MDNSDiscovery(ctx context.Context) ([]model.Device, error)
}

// components are the parts of the process the server reports on. Journal
// and mirror are nil when disabled.
type components struct {
	client  interface{ State() connection.State }
	session *dashboard.Session
	ops     operations
	poller  interface{ Stats() poller.Stats }
	journal interface{ Stats() journal.WriterMetrics }
	buffer  interface{ Stats() journal.BufferStats }
	mirror  interface{ Stats() mirror.Stats }
	logger  *slog.Logger
}

// createHandler builds the health endpoint and the control routes.
func createHandler(healthPath string, c components) http.Handler {
	if c.logger == nil {
		c.logger = slog.Default()
	}
	mux := http.NewServeMux()

	mux.HandleFunc("GET "+healthPath, func(w http.ResponseWriter, r *http.Request) {
		health := struct {
			Status     string         `json:"status"`
			Version    version.Info   `json:"version"`
			Components map[string]any `json:"components"`
		}{
			Status:     "healthy",
			Version:    version.Get(),
			Components: make(map[string]any),
		}

		state := c.client.State()
		health.Components["connection"] = state.String()
		if state != connection.StateOpen {
			health.Status = "degraded"
		}

		pstats := c.poller.Stats()
		health.Components["poller"] = map[string]any{
			"cycles":    pstats.Cycles,
			"errors":    pstats.Errors,
			"devices":   pstats.Devices,
			"last_poll": pstats.LastPoll,
		}

		if c.journal != nil {
			jstats := c.journal.Stats()
			health.Components["journal"] = map[string]any{
				"inserts":  jstats.Inserts,
				"flushes":  jstats.Flushes,
				"errors":   jstats.Errors,
				"dropped":  jstats.Dropped + c.buffer.Stats().Dropped,
				"buffered": c.buffer.Stats().Count,
			}
		}
		if c.mirror != nil {
			mstats := c.mirror.Stats()
			health.Components["mirror"] = map[string]any{
				"published": mstats.Published,
				"failed":    mstats.Failed,
				"dropped":   mstats.Dropped,
			}
		}

		writeJSON(w, http.StatusOK, health)
	})

	mux.HandleFunc("GET /session", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, c.session.Snapshot())
	})

	mux.HandleFunc("POST /grid/{ski}", func(w http.ResponseWriter, r *http.Request) {
		d, err := c.session.AddToGrid(r.PathValue("ski"))
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, d)
	})

	mux.HandleFunc("DELETE /grid/{ski}", func(w http.ResponseWriter, r *http.Request) {
		if err := c.session.RemoveFromGrid(r.PathValue("ski")); err != nil {
			writeError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	})

	mux.HandleFunc("POST /simulation/toggle", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
		defer cancel()

		running, err := c.session.ToggleSimulation(ctx, c.ops)
		if err != nil {
			c.logger.Warn("toggle simulation failed", "error", err)
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]bool{"running": running})
	})

	mux.HandleFunc("GET /remote-skis", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
		defer cancel()

		skis, err := c.ops.GetRemoteSKIs(ctx)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, skis)
	})

	mux.HandleFunc("POST /remote-skis/{ski}", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
		defer cancel()

		if err := c.ops.RegisterSKI(ctx, r.PathValue("ski")); err != nil {
			writeError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	})

	mux.HandleFunc("GET /devices/{ski}/{limit}", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
		defer cancel()

		var get func(context.Context, string) (model.PowerLimit, error)
		switch r.PathValue("limit") {
		case "lpp":
			get = c.ops.GetLPP
		case "lpc":
			get = c.ops.GetLPC
		default:
			http.NotFound(w, r)
			return
		}

		limit, err := get(ctx, r.PathValue("ski"))
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, limit)
	})

	mux.HandleFunc("GET /discovery", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
		defer cancel()

		devices, err := c.ops.MDNSDiscovery(ctx)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, devices)
	})

	mux.HandleFunc("GET /log-level", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
		defer cancel()

		level, err := c.ops.GetLogLevel(ctx)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"level": level})
	})

	mux.HandleFunc("PUT /log-level", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
		defer cancel()

		var body struct {
			Level string `json:"level"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.Level == "" {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "body must be {\"level\": \"...\"}"})
			return
		}
		if err := c.ops.SetLogLevel(ctx, body.Level); err != nil {
			writeError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	})

	return mux
}

// statusFor maps domain errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, dashboard.ErrUnknownDevice), errors.Is(err, dashboard.ErrNotOnGrid):
		return http.StatusNotFound
	case errors.Is(err, dashboard.ErrAlreadyOnGrid):
		return http.StatusConflict
	case errors.Is(err, dashboard.ErrEmptySKI):
		return http.StatusBadRequest
	case errors.Is(err, connection.ErrRemote):
		return http.StatusBadGateway
	case errors.Is(err, connection.ErrTimeout), errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case errors.Is(err, connection.ErrNotConnected):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func writeError(w http.ResponseWriter, err error) {
	writeJSON(w, statusFor(err), map[string]string{"error": err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
