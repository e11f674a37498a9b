package http

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/Wyydra/mcsrelay/internal/adapter/driven/gateway/ws"
	"github.com/Wyydra/mcsrelay/internal/core/port"
	"github.com/Wyydra/mcsrelay/internal/core/service"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

type Options struct {
	// Path the WebSocket endpoint is mounted on.
	Path                 string
	ConnectionTimeout    time.Duration
	MaxMessageBytes      int64
	MaxMessagesPerSecond int
}

type Handler struct {
	SessionService *service.SessionService
	Hub            *ws.Hub
	Media          port.MediaControl
	opts           Options
}

func NewHandler(sessionService *service.SessionService, hub *ws.Hub, media port.MediaControl, opts Options) *Handler {
	return &Handler{
		SessionService: sessionService,
		Hub:            hub,
		Media:          media,
		opts:           opts,
	}
}

func (h *Handler) NewRouter() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", h.Health)
	r.Get(h.opts.Path, h.ServeWS)

	return r
}

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	type healthDTO struct {
		Status   string `json:"status"`
		Upstream bool   `json:"upstream"`
		Clients  int    `json:"clients"`
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(healthDTO{
		Status:   "ok",
		Upstream: h.Media.Connected(),
		Clients:  h.Hub.Count(),
	})
}
