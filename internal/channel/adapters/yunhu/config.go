package yunhu

import (
	"fmt"
	"strings"

	"github.com/molanp/yunhu-adapter/internal/channel"
)

// Config holds the credentials of one Yunhu bot.
type Config struct {
	AppID     string
	Token     string
	Nicknames []string
}

func parseConfig(raw map[string]any) (Config, error) {
	appID := strings.TrimSpace(channel.ReadString(raw, "appId", "app_id"))
	token := strings.TrimSpace(channel.ReadString(raw, "token"))
	if appID == "" || token == "" {
		return Config{}, fmt.Errorf("yunhu app_id and token are required")
	}
	return Config{
		AppID:     appID,
		Token:     token,
		Nicknames: channel.ReadStringSlice(raw, "nicknames", "nickname"),
	}, nil
}

func normalizeConfig(raw map[string]any) (map[string]any, error) {
	cfg, err := parseConfig(raw)
	if err != nil {
		return nil, err
	}
	result := map[string]any{
		"appId": cfg.AppID,
		"token": cfg.Token,
	}
	if len(cfg.Nicknames) > 0 {
		result["nicknames"] = cfg.Nicknames
	}
	return result, nil
}

// parseTarget splits "group:<id>" or "user:<id>". A bare ID is a user.
func parseTarget(raw string) (recvID, recvType string, err error) {
	value := strings.TrimSpace(raw)
	if value == "" {
		return "", "", fmt.Errorf("yunhu target is required")
	}
	kind, id, found := strings.Cut(value, ":")
	if !found {
		return value, "user", nil
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return "", "", fmt.Errorf("yunhu target %q has no id", raw)
	}
	switch strings.ToLower(strings.TrimSpace(kind)) {
	case "group":
		return id, "group", nil
	case "user", "bot":
		return id, "user", nil
	default:
		return "", "", fmt.Errorf("yunhu target type must be group or user: %q", raw)
	}
}

// formatTarget is the inverse of parseTarget.
func formatTarget(recvID, recvType string) string {
	return RecvType(recvType) + ":" + recvID
}
