package health

import (
	"net/http"
	"sync/atomic"
	"time"

	"github.com/hilthontt/ticketchat/internal/application/chat"
	"github.com/hilthontt/ticketchat/internal/infrastructure/json"
)

var startTime = time.Now()

type statsSource interface {
	Stats() chat.Stats
}

type Handler struct {
	stats   statsSource
	healthy atomic.Bool
}

func NewHandler(stats statsSource) *Handler {
	h := &Handler{stats: stats}
	h.healthy.Store(true)
	return h
}

// SetUnhealthy makes every probe fail, so load balancers drain the
// instance while it shuts down.
func (h *Handler) SetUnhealthy() {
	h.healthy.Store(false)
}

func (h *Handler) GetHealth(w http.ResponseWriter, r *http.Request) {
	resp := healthResponse{
		Status:    "ok",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Uptime:    time.Since(startTime).Round(time.Second).String(),
		Chat:      h.stats.Stats(),
	}

	if !h.healthy.Load() {
		resp.Status = "unhealthy"
		json.Write(w, http.StatusServiceUnavailable, resp)
		return
	}

	json.Write(w, http.StatusOK, resp)
}
