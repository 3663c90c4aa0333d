package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeFile(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoad_Defaults(t *testing.T) {
	t.Chdir(t.TempDir()) // no configs/config.yml here

	cfg, err := Load(NewFlagSet("test"), nil)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.File != "" {
		t.Fatalf("unexpected config file %q", cfg.File)
	}
	if cfg.Stream.ReconnectDelay != 3*time.Second || cfg.Stream.ReconnectPolicy != "fixed" {
		t.Fatalf("reconnect defaults: %+v", cfg.Stream)
	}
	if cfg.Stream.ReadLimit != 16<<20 || cfg.Stream.IdleTimeout != 90*time.Second {
		t.Fatalf("read_limit=%d idle_timeout=%v", cfg.Stream.ReadLimit, cfg.Stream.IdleTimeout)
	}
	if cfg.Window.Capacity != 100 || cfg.Poll.StatsInterval != 5*time.Second || cfg.Throughput.Interval != time.Second {
		t.Fatalf("engine defaults: %+v", cfg)
	}
	if cfg.Cache.Path != "" {
		t.Fatalf("cache should be disabled by default")
	}
}

func TestLoad_FileEnvAndFlagPrecedence(t *testing.T) {
	path := writeFile(t, `
log:
  level: debug
stream:
  url: ws://file:9000/ws/logs
  reconnect_delay: 500ms
  read_limit: 32MB
window:
  capacity: 50
http:
  port: "7000"
`)
	t.Setenv("RPCTAIL_WINDOW_CAPACITY", "75")
	t.Setenv("RPCTAIL_STREAM_RECONNECT_POLICY", "exponential")

	cfg, err := Load(NewFlagSet("test"), []string{"--config", path, "--http-port", "7100"})
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.File != path {
		t.Fatalf("file=%q", cfg.File)
	}
	if cfg.Log.Level != "debug" || cfg.Stream.URL != "ws://file:9000/ws/logs" {
		t.Fatalf("file values not applied: %+v", cfg)
	}
	if cfg.Stream.ReconnectDelay != 500*time.Millisecond {
		t.Fatalf("delay=%v", cfg.Stream.ReconnectDelay)
	}
	if cfg.Stream.ReadLimit != 32<<20 {
		t.Fatalf("read_limit=%d", cfg.Stream.ReadLimit)
	}
	if cfg.Window.Capacity != 75 || cfg.Stream.ReconnectPolicy != "exponential" {
		t.Fatalf("env should beat file: %+v", cfg)
	}
	if cfg.HTTP.Port != "7100" {
		t.Fatalf("flag should beat file: port=%q", cfg.HTTP.Port)
	}
}

func TestLoad_MissingExplicitFile(t *testing.T) {
	_, err := Load(NewFlagSet("test"), []string{"--config", filepath.Join(t.TempDir(), "nope.yml")})
	if err == nil {
		t.Fatal("expected error for missing explicit config")
	}
}

func TestValidate(t *testing.T) {
	t.Chdir(t.TempDir())
	base, err := Load(NewFlagSet("test"), nil)
	if err != nil {
		t.Fatal(err)
	}

	cases := []struct {
		name   string
		mutate func(c *Config)
		want   string
	}{
		{"bad_level", func(c *Config) { c.Log.Level = "loud" }, "log.level"},
		{"bad_format", func(c *Config) { c.Log.Format = "xml" }, "log.format"},
		{"http_stream_url", func(c *Config) { c.Stream.URL = "http://x/ws" }, "stream.url"},
		{"bad_policy", func(c *Config) { c.Stream.ReconnectPolicy = "linear" }, "stream.reconnect_policy"},
		{"zero_delay", func(c *Config) { c.Stream.ReconnectDelay = 0 }, "stream.reconnect_delay"},
		{"zero_read_limit", func(c *Config) { c.Stream.ReadLimit = 0 }, "stream.read_limit"},
		{"push_too_fast", func(c *Config) { c.HTTP.PushInterval = time.Millisecond }, "http.push_interval"},
		{"push_too_slow", func(c *Config) { c.HTTP.PushInterval = time.Minute }, "http.push_interval"},
		{"bad_base_url", func(c *Config) { c.API.BaseURL = "localhost" }, "api.base_url"},
		{"zero_capacity", func(c *Config) { c.Window.Capacity = 0 }, "window.capacity"},
		{"zero_poll", func(c *Config) { c.Poll.StatsInterval = 0 }, "poll.stats_interval"},
		{"error_ratio", func(c *Config) { c.Sim.ErrorRatio = 2 }, "sim.error_ratio"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			c := base
			tc.mutate(&c)
			err := c.Validate()
			if err == nil || !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("got %v, want error mentioning %s", err, tc.want)
			}
		})
	}
}

func TestLoad_UnknownFlag(t *testing.T) {
	if _, err := Load(NewFlagSet("test"), []string{"--bogus"}); err == nil {
		t.Fatal("expected parse error")
	}
}
