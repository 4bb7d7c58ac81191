package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/angeloszaimis/upstream-selector/internal/engine"
	"github.com/angeloszaimis/upstream-selector/internal/health"
	"github.com/angeloszaimis/upstream-selector/internal/selector"
)

// HealthService is the engine surface the handler consumes. Tests
// substitute stubs.
type HealthService interface {
	Snapshot(ctx context.Context) []health.Record
	Best(ctx context.Context) (health.Record, bool)
	One(ctx context.Context, name string) (health.Record, error)
}

// Handler serves the selection API: which upstream to use, how the
// whole pool looks, and how one member is doing.
type Handler struct {
	logger  *slog.Logger
	service HealthService
}

func New(logger *slog.Logger, service HealthService) *Handler {
	return &Handler{
		logger:  logger,
		service: service,
	}
}

type bestResponse struct {
	Server       string        `json:"server"`
	ServerURL    string        `json:"server_url"`
	Health       health.Status `json:"health"`
	Score        float64       `json:"score"`
	ResponseTime *float64      `json:"response_time"`
	LastChecked  time.Time     `json:"last_checked"`
}

type unavailableResponse struct {
	Error  string  `json:"error"`
	Server *string `json:"server"`
	Health string  `json:"health"`
}

type overviewResponse struct {
	Status         string          `json:"status"`
	BestServer     *health.Record  `json:"best_server"`
	AllServers     []health.Record `json:"all_servers"`
	TotalServers   int             `json:"total_servers"`
	HealthyServers int             `json:"healthy_servers"`
	Timestamp      time.Time       `json:"timestamp"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// BestServer handles GET /server: the upstream a caller should use
// next. No healthy upstream is a 503 with an explicit body, so clients
// can tell "pool is down" from "endpoint is broken".
func (h *Handler) BestServer(w http.ResponseWriter, r *http.Request) {
	best, ok := h.service.Best(r.Context())
	if !ok {
		h.logger.Warn("No healthy upstream to offer",
			slog.String("client", extractClientIP(r)))

		h.writeJSON(w, http.StatusServiceUnavailable, unavailableResponse{
			Error:  "No healthy servers available",
			Server: nil,
			Health: "unavailable",
		})
		return
	}

	h.logger.Info("Selected upstream",
		slog.String("client", extractClientIP(r)),
		slog.String("upstream", best.Name),
		slog.Float64("score", best.Score))

	h.writeJSON(w, http.StatusOK, bestResponse{
		Server:       best.Name,
		ServerURL:    best.URL,
		Health:       best.Status,
		Score:        best.Score,
		ResponseTime: best.ResponseTime,
		LastChecked:  best.LastChecked,
	})
}

// Overview handles GET /health: the aggregate pool report. One
// snapshot feeds both the listing and the best pick, so the two never
// disagree within a response.
func (h *Handler) Overview(w http.ResponseWriter, r *http.Request) {
	records := h.service.Snapshot(r.Context())
	healthy := selector.CountHealthy(records)

	status := "healthy"
	if healthy == 0 {
		status = "degraded"
	}

	var best *health.Record
	if rec, ok := selector.Best(records); ok {
		best = &rec
	}

	h.writeJSON(w, http.StatusOK, overviewResponse{
		Status:         status,
		BestServer:     best,
		AllServers:     records,
		TotalServers:   len(records),
		HealthyServers: healthy,
		Timestamp:      time.Now(),
	})
}

// UpstreamHealth handles GET /servers/{name}/health: the current
// record for one pool member.
func (h *Handler) UpstreamHealth(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")

	rec, err := h.service.One(r.Context(), name)
	if err != nil {
		if errors.Is(err, engine.ErrUnknownUpstream) {
			h.writeJSON(w, http.StatusNotFound, errorResponse{Error: "Server not found"})
			return
		}

		h.logger.Error("Upstream lookup failed",
			slog.String("upstream", name),
			slog.Any("err", err))
		h.writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "Internal server error"})
		return
	}

	h.writeJSON(w, http.StatusOK, rec)
}

// NotFound is the JSON fallback for unknown routes.
func (h *Handler) NotFound(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusNotFound, errorResponse{Error: "Endpoint not found"})
}

func (h *Handler) writeJSON(w http.ResponseWriter, code int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)

	if err := json.NewEncoder(w).Encode(body); err != nil {
		// Status and headers are already out; log and move on.
		h.logger.Error("Failed to encode response", slog.Any("err", err))
	}
}

func extractClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		return strings.TrimSpace(strings.Split(xff, ",")[0])
	}

	host, _, _ := net.SplitHostPort(r.RemoteAddr)
	return host
}
