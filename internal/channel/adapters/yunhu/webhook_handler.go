package yunhu

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
)

const webhookMaxBodyBytes int64 = 1 << 20 // 1 MiB

// WebhookHandler receives Yunhu event subscription callbacks.
type WebhookHandler struct {
	logger     *slog.Logger
	dispatcher *Dispatcher
}

// NewWebhookHandler creates the public webhook handler.
func NewWebhookHandler(log *slog.Logger, dispatcher *Dispatcher) *WebhookHandler {
	if log == nil {
		log = slog.Default()
	}
	return &WebhookHandler{
		logger:     log.With(slog.String("handler", "yunhu_webhook")),
		dispatcher: dispatcher,
	}
}

// Register registers webhook callback routes.
func (h *WebhookHandler) Register(e *echo.Echo) {
	e.POST("/yunhu/:app_id", h.Handle)
}

// Handle processes one webhook delivery.
func (h *WebhookHandler) Handle(c echo.Context) error {
	if h.dispatcher == nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "yunhu webhook dependencies not configured")
	}
	appID := strings.TrimSpace(c.Param("app_id"))
	if appID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "app id is required")
	}
	payload, err := io.ReadAll(io.LimitReader(c.Request().Body, webhookMaxBodyBytes+1))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, fmt.Sprintf("read body: %v", err))
	}
	if int64(len(payload)) > webhookMaxBodyBytes {
		return echo.NewHTTPError(http.StatusRequestEntityTooLarge, fmt.Sprintf("payload too large: max %d bytes", webhookMaxBodyBytes))
	}

	status, err := h.dispatcher.HandleWebhook(c.Request().Context(), appID, payload)
	if err != nil {
		var unknown *UnknownBotError
		if errors.As(err, &unknown) {
			return echo.NewHTTPError(http.StatusNotFound, "yunhu bot not found")
		}
		h.logger.Error("webhook dispatch failed", slog.String("app_id", appID), slog.Any("error", err))
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	if status != http.StatusOK {
		return c.String(status, "Received non-JSON data, cannot cast to object")
	}
	return c.NoContent(http.StatusOK)
}
