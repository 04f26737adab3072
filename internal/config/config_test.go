package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	t.Parallel()

	cfg, err := Load(filepath.Join(t.TempDir(), "absent.toml"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Server.Addr != DefaultHTTPAddr || cfg.Log.Level != "info" || cfg.Log.Format != "text" {
		t.Fatalf("unexpected defaults: %#v", cfg)
	}
	if d, _ := cfg.Yunhu.Timeout(); d != 30*time.Second {
		t.Fatalf("unexpected default timeout: %v", d)
	}
	if d, _ := cfg.Auth.ExpiresIn(); d != 24*time.Hour || cfg.Auth.JWTSecret != "" {
		t.Fatalf("unexpected auth defaults: %#v", cfg.Auth)
	}
}

func TestLoadTOML(t *testing.T) {
	t.Parallel()

	path := writeFile(t, "config.toml", `
[log]
level = "debug"

[server]
addr = ":9000"

[auth]
jwt_secret = "s3cret"
jwt_expires_in = "1h"

[yunhu]
api_timeout = "5s"
nicknames = ["helper"]
text_chunk_limit = 2000
api_rate_limit = 2.5
api_rate_burst = 3

[[yunhu.bots]]
app_id = "a1"
token = "t1"
nicknames = ["alpha"]

[[yunhu.bots]]
app_id = "a2"
token = "t2"
disabled = true
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Log.Level != "debug" || cfg.Log.Format != "text" || cfg.Server.Addr != ":9000" {
		t.Fatalf("unexpected config: %#v", cfg)
	}
	if cfg.Auth.JWTSecret != "s3cret" {
		t.Fatalf("unexpected auth config: %#v", cfg.Auth)
	}
	if d, _ := cfg.Auth.ExpiresIn(); d != time.Hour {
		t.Fatalf("unexpected token lifetime: %v", d)
	}
	if cfg.Yunhu.TextChunkLimit != 2000 {
		t.Fatalf("unexpected chunk limit: %d", cfg.Yunhu.TextChunkLimit)
	}
	if cfg.Yunhu.APIRateLimit != 2.5 || cfg.Yunhu.APIRateBurst != 3 {
		t.Fatalf("unexpected rate limit: %v %d", cfg.Yunhu.APIRateLimit, cfg.Yunhu.APIRateBurst)
	}
	if d, _ := cfg.Yunhu.Timeout(); d != 5*time.Second {
		t.Fatalf("unexpected timeout: %v", d)
	}
	configs := cfg.Yunhu.ChannelConfigs()
	if len(configs) != 2 {
		t.Fatalf("expected 2 bots, got %d", len(configs))
	}
	first := configs[0]
	if first.ID != "a1" || first.BotID != "a1" || first.ChannelType != "yunhu" || first.Credentials["token"] != "t1" {
		t.Fatalf("unexpected channel config: %#v", first)
	}
	if names, _ := first.Credentials["nicknames"].([]string); len(names) != 1 || names[0] != "alpha" {
		t.Fatalf("unexpected nicknames: %#v", first.Credentials["nicknames"])
	}
	if !configs[1].Disabled {
		t.Fatalf("second bot should be disabled")
	}
}

func TestLoadYAML(t *testing.T) {
	t.Parallel()

	path := writeFile(t, "config.yaml", `
log:
  format: json
yunhu:
  api_base_url: http://127.0.0.1:1/
  bots:
    - app_id: a1
      token: t1
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Log.Format != "json" || cfg.Log.Level != "info" {
		t.Fatalf("unexpected log config: %#v", cfg.Log)
	}
	if cfg.Yunhu.APIBaseURL != "http://127.0.0.1:1/" || len(cfg.Yunhu.Bots) != 1 {
		t.Fatalf("unexpected yunhu config: %#v", cfg.Yunhu)
	}
}

func TestLoadRejectsBadTimeout(t *testing.T) {
	t.Parallel()

	path := writeFile(t, "config.toml", "[yunhu]\napi_timeout = \"soon\"\n")
	if _, err := Load(path); err == nil {
		t.Fatalf("expected timeout error")
	}
}

func TestLoadRejectsNegativeRateLimit(t *testing.T) {
	t.Parallel()

	path := writeFile(t, "config.toml", "[yunhu]\napi_rate_limit = -1.0\n")
	if _, err := Load(path); err == nil {
		t.Fatalf("expected rate limit error")
	}
}

func TestChannelConfigsWithoutAppID(t *testing.T) {
	t.Parallel()

	configs := YunhuConfig{Bots: []BotConfig{{Token: "t"}}}.ChannelConfigs()
	if len(configs) != 1 || configs[0].ID != "bots[0]" || configs[0].BotID != "" {
		t.Fatalf("unexpected configs: %#v", configs)
	}
}
