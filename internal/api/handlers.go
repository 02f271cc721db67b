package api

import (
	"fmt"
	"log/slog"
	"net/http"

	"clipstash/internal/observability/metrics"
	"clipstash/internal/storage"
)

const defaultMaxUploadBytes = 512 << 20

type Handler struct {
	Store          storage.Repository
	Logger         *slog.Logger
	Metrics        *metrics.Recorder
	MaxUploadBytes int64
}

func NewHandler(store storage.Repository) *Handler {
	return &Handler{Store: store}
}

func (h *Handler) maxUploadBytes() int64 {
	if h.MaxUploadBytes > 0 {
		return h.MaxUploadBytes
	}
	return defaultMaxUploadBytes
}

func (h *Handler) recorder() *metrics.Recorder {
	if h.Metrics != nil {
		return h.Metrics
	}
	return metrics.Default()
}

func (h *Handler) logger() *slog.Logger {
	if h.Logger != nil {
		return h.Logger
	}
	return slog.Default()
}

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", "GET")
		writeError(w, http.StatusMethodNotAllowed, fmt.Errorf("method %s not allowed", r.Method))
		return
	}
	status := "ok"
	code := http.StatusOK
	if h.Store != nil {
		if err := h.Store.Ping(r.Context()); err != nil {
			status = "degraded"
			code = http.StatusServiceUnavailable
		}
	}
	writeJSON(w, code, map[string]any{"success": code == http.StatusOK, "status": status})
}
