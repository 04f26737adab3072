package handlers

import (
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"
)

// InFlightCounter reports how many webhook deliveries are still being handled.
type InFlightCounter interface {
	InFlight() int
}

type PingHandler struct {
	logger   *slog.Logger
	inflight InFlightCounter
}

func NewPingHandler(log *slog.Logger, inflight InFlightCounter) *PingHandler {
	if log == nil {
		log = slog.Default()
	}
	return &PingHandler{
		logger:   log.With(slog.String("handler", "ping")),
		inflight: inflight,
	}
}

func (h *PingHandler) Register(e *echo.Echo) {
	e.GET("/ping", h.Ping)
	e.HEAD("/health", h.PingHead)
}

func (h *PingHandler) Ping(c echo.Context) error {
	inflight := 0
	if h.inflight != nil {
		inflight = h.inflight.InFlight()
	}
	return c.JSON(http.StatusOK, map[string]any{
		"status":   "ok",
		"inflight": inflight,
	})
}

func (h *PingHandler) PingHead(c echo.Context) error {
	return c.NoContent(http.StatusOK)
}
