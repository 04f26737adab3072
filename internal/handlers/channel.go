package handlers

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/molanp/yunhu-adapter/internal/auth"
	"github.com/molanp/yunhu-adapter/internal/channel"
	"github.com/molanp/yunhu-adapter/internal/config"
)

// ConfigLookup resolves the channel config of a connected bot.
type ConfigLookup func(channelType channel.ChannelType, botID string) (channel.ChannelConfig, bool)

// ChannelHandler exposes channel metadata and, when an API secret is
// configured, an outbound messaging API acting as connected bots.
type ChannelHandler struct {
	logger   *slog.Logger
	registry *channel.Registry
	lookup   ConfigLookup
	outbound bool
}

func NewChannelHandler(log *slog.Logger, registry *channel.Registry, lookup ConfigLookup, cfg config.AuthConfig) *ChannelHandler {
	if log == nil {
		log = slog.Default()
	}
	return &ChannelHandler{
		logger:   log.With(slog.String("handler", "channel")),
		registry: registry,
		lookup:   lookup,
		outbound: strings.TrimSpace(cfg.JWTSecret) != "",
	}
}

func (h *ChannelHandler) Register(e *echo.Echo) {
	metaGroup := e.Group("/channels")
	metaGroup.GET("", h.ListChannels)
	metaGroup.GET("/:platform", h.GetChannel)

	if !h.outbound {
		h.logger.Info("outbound api disabled, no auth.jwt_secret configured")
		return
	}
	msgGroup := metaGroup.Group("/:platform/bots/:bot_id/messages")
	msgGroup.POST("", h.SendMessage)
	msgGroup.PUT("/:message_id", h.UpdateMessage)
	msgGroup.DELETE("/:message_id", h.UnsendMessage)
}

type ChannelMeta struct {
	Type         string                      `json:"type"`
	DisplayName  string                      `json:"display_name"`
	Capabilities channel.ChannelCapabilities `json:"capabilities"`
}

// UpdateMessageRequest replaces the content of a sent message.
type UpdateMessageRequest struct {
	Target  string          `json:"target"`
	Message channel.Message `json:"message"`
}

func (h *ChannelHandler) ListChannels(c echo.Context) error {
	descs := h.registry.ListDescriptors()
	items := make([]ChannelMeta, 0, len(descs))
	for _, desc := range descs {
		items = append(items, channelMeta(desc))
	}
	return c.JSON(http.StatusOK, items)
}

func (h *ChannelHandler) GetChannel(c echo.Context) error {
	channelType, err := h.registry.ParseChannelType(c.Param("platform"))
	if err != nil {
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	}
	desc, ok := h.registry.GetDescriptor(channelType)
	if !ok {
		return echo.NewHTTPError(http.StatusNotFound, "channel not found")
	}
	return c.JSON(http.StatusOK, channelMeta(desc))
}

// SendMessage sends a generic outbound message as the bot in the path.
func (h *ChannelHandler) SendMessage(c echo.Context) error {
	cfg, err := h.resolveBot(c)
	if err != nil {
		return err
	}
	var req channel.OutboundMessage
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if strings.TrimSpace(req.Target) == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "target is required")
	}
	if req.Message.IsEmpty() {
		return echo.NewHTTPError(http.StatusBadRequest, "message is empty")
	}
	if err := h.registry.Send(c.Request().Context(), cfg, req); err != nil {
		h.logger.Warn("send failed",
			slog.String("bot_id", cfg.BotID),
			slog.String("target", req.Target),
			slog.Any("error", err),
		)
		return echo.NewHTTPError(http.StatusBadGateway, err.Error())
	}
	return c.NoContent(http.StatusAccepted)
}

// UpdateMessage edits a message the bot sent earlier.
func (h *ChannelHandler) UpdateMessage(c echo.Context) error {
	cfg, err := h.resolveBot(c)
	if err != nil {
		return err
	}
	editor, ok := h.registry.GetMessageEditor(cfg.ChannelType)
	if !ok {
		return echo.NewHTTPError(http.StatusNotImplemented, "channel does not support edit")
	}
	var req UpdateMessageRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if strings.TrimSpace(req.Target) == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "target is required")
	}
	if err := editor.Update(c.Request().Context(), cfg, req.Target, c.Param("message_id"), req.Message); err != nil {
		return echo.NewHTTPError(http.StatusBadGateway, err.Error())
	}
	return c.NoContent(http.StatusNoContent)
}

// UnsendMessage recalls a message the bot sent earlier. The chat is given by
// the "target" query parameter.
func (h *ChannelHandler) UnsendMessage(c echo.Context) error {
	cfg, err := h.resolveBot(c)
	if err != nil {
		return err
	}
	editor, ok := h.registry.GetMessageEditor(cfg.ChannelType)
	if !ok {
		return echo.NewHTTPError(http.StatusNotImplemented, "channel does not support unsend")
	}
	target := strings.TrimSpace(c.QueryParam("target"))
	if target == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "target is required")
	}
	if err := editor.Unsend(c.Request().Context(), cfg, target, c.Param("message_id")); err != nil {
		return echo.NewHTTPError(http.StatusBadGateway, err.Error())
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *ChannelHandler) resolveBot(c echo.Context) (channel.ChannelConfig, error) {
	claims, err := auth.ClaimsFromContext(c)
	if err != nil {
		return channel.ChannelConfig{}, err
	}
	channelType, err := h.registry.ParseChannelType(c.Param("platform"))
	if err != nil {
		return channel.ChannelConfig{}, echo.NewHTTPError(http.StatusNotFound, err.Error())
	}
	botID := strings.TrimSpace(c.Param("bot_id"))
	if !claims.Allows(botID) {
		return channel.ChannelConfig{}, echo.NewHTTPError(http.StatusForbidden, "token not valid for this bot")
	}
	if h.lookup == nil {
		return channel.ChannelConfig{}, echo.NewHTTPError(http.StatusNotFound, "bot not found")
	}
	cfg, ok := h.lookup(channelType, botID)
	if !ok {
		return channel.ChannelConfig{}, echo.NewHTTPError(http.StatusNotFound, "bot not found")
	}
	return cfg, nil
}

func channelMeta(desc channel.Descriptor) ChannelMeta {
	return ChannelMeta{
		Type:         desc.Type.String(),
		DisplayName:  desc.DisplayName,
		Capabilities: desc.Capabilities,
	}
}
