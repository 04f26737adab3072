package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	"github.com/molanp/yunhu-adapter/internal/channel"
)

const (
	DefaultConfigPath = "config.toml"
	DefaultHTTPAddr   = ":8080"
	DefaultLogLevel   = "info"
	DefaultLogFormat  = "text"
	DefaultAPITimeout = "30s"
	DefaultJWTExpires = "24h"

	yunhuChannelType = "yunhu"
)

type Config struct {
	Log    LogConfig    `toml:"log" yaml:"log"`
	Server ServerConfig `toml:"server" yaml:"server"`
	Auth   AuthConfig   `toml:"auth" yaml:"auth"`
	Yunhu  YunhuConfig  `toml:"yunhu" yaml:"yunhu"`
}

type LogConfig struct {
	Level  string `toml:"level" yaml:"level"`
	Format string `toml:"format" yaml:"format"`
}

type ServerConfig struct {
	Addr string `toml:"addr" yaml:"addr"`
}

// AuthConfig protects the outbound messaging API. An empty secret leaves the
// API disabled.
type AuthConfig struct {
	JWTSecret    string `toml:"jwt_secret" yaml:"jwt_secret"`
	JWTExpiresIn string `toml:"jwt_expires_in" yaml:"jwt_expires_in"`
}

// ExpiresIn parses JWTExpiresIn. An empty value yields the default.
func (c AuthConfig) ExpiresIn() (time.Duration, error) {
	raw := strings.TrimSpace(c.JWTExpiresIn)
	if raw == "" {
		raw = DefaultJWTExpires
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid auth.jwt_expires_in %q: %w", c.JWTExpiresIn, err)
	}
	return d, nil
}

// YunhuConfig configures the platform endpoints and the bots to connect.
// Empty endpoint URLs use the public Yunhu endpoints.
type YunhuConfig struct {
	APIBaseURL  string   `toml:"api_base_url" yaml:"api_base_url"`
	BotInfoURL  string   `toml:"bot_info_url" yaml:"bot_info_url"`
	FileBaseURL string   `toml:"file_base_url" yaml:"file_base_url"`
	APITimeout  string   `toml:"api_timeout" yaml:"api_timeout"`
	Nicknames   []string `toml:"nicknames" yaml:"nicknames"`
	// TextChunkLimit splits long outbound text into several messages.
	// Zero disables splitting.
	TextChunkLimit int `toml:"text_chunk_limit" yaml:"text_chunk_limit"`
	// APIRateLimit caps open API requests per second for each bot.
	// Zero is unlimited.
	APIRateLimit float64     `toml:"api_rate_limit" yaml:"api_rate_limit"`
	APIRateBurst int         `toml:"api_rate_burst" yaml:"api_rate_burst"`
	Bots         []BotConfig `toml:"bots" yaml:"bots"`
}

type BotConfig struct {
	AppID     string   `toml:"app_id" yaml:"app_id"`
	Token     string   `toml:"token" yaml:"token"`
	Nicknames []string `toml:"nicknames" yaml:"nicknames"`
	Disabled  bool     `toml:"disabled" yaml:"disabled"`
}

// Timeout parses APITimeout. An empty value yields the default.
func (c YunhuConfig) Timeout() (time.Duration, error) {
	raw := strings.TrimSpace(c.APITimeout)
	if raw == "" {
		raw = DefaultAPITimeout
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid yunhu.api_timeout %q: %w", c.APITimeout, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("invalid yunhu.api_timeout %q: must be positive", c.APITimeout)
	}
	return d, nil
}

// ChannelConfigs converts the configured bots into channel configs keyed by
// app ID. Credentials are passed through as-is; validation happens when the
// adapter starts them.
func (c YunhuConfig) ChannelConfigs() []channel.ChannelConfig {
	out := make([]channel.ChannelConfig, 0, len(c.Bots))
	for i, bot := range c.Bots {
		appID := strings.TrimSpace(bot.AppID)
		id := appID
		if id == "" {
			id = fmt.Sprintf("bots[%d]", i)
		}
		creds := map[string]any{
			"appId": appID,
			"token": strings.TrimSpace(bot.Token),
		}
		if len(bot.Nicknames) > 0 {
			creds["nicknames"] = append([]string(nil), bot.Nicknames...)
		}
		out = append(out, channel.ChannelConfig{
			ID:               id,
			BotID:            appID,
			ChannelType:      yunhuChannelType,
			Credentials:      creds,
			ExternalIdentity: appID,
			Disabled:         bot.Disabled,
		})
	}
	return out
}

func Load(path string) (Config, error) {
	cfg := Config{
		Log: LogConfig{
			Level:  DefaultLogLevel,
			Format: DefaultLogFormat,
		},
		Server: ServerConfig{
			Addr: DefaultHTTPAddr,
		},
		Auth: AuthConfig{
			JWTExpiresIn: DefaultJWTExpires,
		},
		Yunhu: YunhuConfig{
			APITimeout: DefaultAPITimeout,
		},
	}

	if path == "" {
		path = DefaultConfigPath
	}

	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, err
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		raw, err := os.ReadFile(path)
		if err != nil {
			return cfg, err
		}
		if err := yaml.Unmarshal(raw, &cfg); err != nil {
			return cfg, fmt.Errorf("decode yaml: %w", err)
		}
	default:
		if _, err := toml.DecodeFile(path, &cfg); err != nil {
			return cfg, fmt.Errorf("decode toml: %w", err)
		}
	}

	if _, err := cfg.Yunhu.Timeout(); err != nil {
		return cfg, err
	}
	if cfg.Yunhu.TextChunkLimit < 0 {
		return cfg, fmt.Errorf("invalid yunhu.text_chunk_limit %d", cfg.Yunhu.TextChunkLimit)
	}
	if cfg.Yunhu.APIRateLimit < 0 || cfg.Yunhu.APIRateBurst < 0 {
		return cfg, fmt.Errorf("invalid yunhu.api_rate_limit %v / api_rate_burst %d", cfg.Yunhu.APIRateLimit, cfg.Yunhu.APIRateBurst)
	}
	return cfg, nil
}
