// Package config loads process configuration from configs/config.yml,
// RPCTAIL_* environment variables and command-line flags, in increasing
// order of precedence.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"rpctail/internal/handlers"
	"rpctail/internal/logger"
	"rpctail/internal/stream"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const envPrefix = "RPCTAIL"

// Config is the resolved configuration of both binaries.
type Config struct {
	Log        LogConfig
	Stream     StreamConfig
	API        APIConfig
	Window     WindowConfig
	Poll       PollConfig
	Throughput ThroughputConfig
	Cache      CacheConfig
	HTTP       HTTPConfig
	Sim        SimConfig

	// File is the config file that was read, empty when none was found.
	File string
}

type LogConfig struct {
	Level  string
	Format string
}

type StreamConfig struct {
	URL               string
	APIKey            string
	HandshakeTimeout  time.Duration
	ReconnectDelay    time.Duration
	ReconnectPolicy   string
	ReconnectMaxDelay time.Duration
	// ReadLimit caps one inbound frame in bytes.
	ReadLimit         int64
	// IdleTimeout drops a channel silent for this long. Negative disables.
	IdleTimeout       time.Duration
}

type APIConfig struct {
	BaseURL string
	Timeout time.Duration
}

type WindowConfig struct {
	Capacity int
}

type PollConfig struct {
	StatsInterval    time.Duration
	NetworksInterval time.Duration
}

type ThroughputConfig struct {
	Interval time.Duration
}

// CacheConfig locates the sqlite last-known-good cache. An empty path disables it.
type CacheConfig struct {
	Path string
}

type HTTPConfig struct {
	Port         string
	PushInterval time.Duration
}

// SimConfig drives cmd/rpcsim.
type SimConfig struct {
	Port       string
	Tick       time.Duration
	Rate       float64
	ErrorRatio float64
	History    int
	Seed       uint64
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("log.level", logger.InfoLevel)
	v.SetDefault("log.format", logger.ConsoleFormat)

	v.SetDefault("stream.url", "ws://localhost:8080/ws/logs")
	v.SetDefault("stream.api_key", "")
	v.SetDefault("stream.handshake_timeout", stream.DefaultHandshakeTimeout)
	v.SetDefault("stream.reconnect_delay", stream.DefaultReconnectDelay)
	v.SetDefault("stream.reconnect_policy", stream.PolicyFixed)
	v.SetDefault("stream.reconnect_max_delay", 30*time.Second)
	v.SetDefault("stream.read_limit", "16MB")
	v.SetDefault("stream.idle_timeout", stream.DefaultIdleTimeout)

	v.SetDefault("api.base_url", "http://localhost:8080")
	v.SetDefault("api.timeout", 5*time.Second)

	v.SetDefault("window.capacity", 100)
	v.SetDefault("poll.stats_interval", 5*time.Second)
	v.SetDefault("poll.networks_interval", 60*time.Second)
	v.SetDefault("throughput.interval", time.Second)
	v.SetDefault("cache.path", "")

	v.SetDefault("http.port", "8090")
	v.SetDefault("http.push_interval", time.Second)

	v.SetDefault("sim.port", "8080")
	v.SetDefault("sim.tick", 250*time.Millisecond)
	v.SetDefault("sim.rate", 8.0)
	v.SetDefault("sim.error_ratio", 0.05)
	v.SetDefault("sim.history", 100)
	v.SetDefault("sim.seed", 0)
}

// flagKeys maps command-line flags to configuration keys.
var flagKeys = map[string]string{
	"log-level":        "log.level",
	"log-format":       "log.format",
	"stream-url":       "stream.url",
	"api-key":          "stream.api_key",
	"reconnect-policy": "stream.reconnect_policy",
	"api-base-url":     "api.base_url",
	"capacity":         "window.capacity",
	"cache-path":       "cache.path",
	"http-port":        "http.port",
	"sim-port":         "sim.port",
	"sim-rate":         "sim.rate",
	"sim-seed":         "sim.seed",
}

// NewFlagSet declares the flags understood by Load.
func NewFlagSet(name string) *pflag.FlagSet {
	fs := pflag.NewFlagSet(name, pflag.ContinueOnError)
	fs.StringP("config", "c", "", "path to config file (default: configs/config.yml if present)")
	fs.String("log-level", logger.InfoLevel, "log level: debug, info, warn, error")
	fs.String("log-format", logger.ConsoleFormat, "log format: console or json")
	fs.String("stream-url", "", "push channel websocket url")
	fs.String("api-key", "", "bearer key sent to the gateway")
	fs.String("reconnect-policy", stream.PolicyFixed, "reconnect policy: fixed or exponential")
	fs.String("api-base-url", "", "gateway REST base url")
	fs.Int("capacity", 0, "number of events kept in the window")
	fs.String("cache-path", "", "sqlite file for last-known stats and networks (empty disables)")
	fs.String("http-port", "", "control API port")
	fs.String("sim-port", "", "simulator port")
	fs.Float64("sim-rate", 0, "simulated events per second")
	fs.Uint64("sim-seed", 0, "simulator random seed (0 picks one)")
	return fs
}

// Load parses args with fs and resolves the configuration.
func Load(fs *pflag.FlagSet, args []string) (Config, error) {
	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}

	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	for name, key := range flagKeys {
		f := fs.Lookup(name)
		if f == nil || !f.Changed {
			continue
		}
		if err := v.BindPFlag(key, f); err != nil {
			return Config{}, fmt.Errorf("bind flag %s: %w", name, err)
		}
	}

	if err := readFile(v, fs); err != nil {
		return Config{}, err
	}

	cfg := Config{
		Log: LogConfig{
			Level:  strings.ToLower(v.GetString("log.level")),
			Format: strings.ToLower(v.GetString("log.format")),
		},
		Stream: StreamConfig{
			URL:               v.GetString("stream.url"),
			APIKey:            v.GetString("stream.api_key"),
			HandshakeTimeout:  v.GetDuration("stream.handshake_timeout"),
			ReconnectDelay:    v.GetDuration("stream.reconnect_delay"),
			ReconnectPolicy:   strings.ToLower(v.GetString("stream.reconnect_policy")),
			ReconnectMaxDelay: v.GetDuration("stream.reconnect_max_delay"),
			ReadLimit:         int64(v.GetSizeInBytes("stream.read_limit")),
			IdleTimeout:       v.GetDuration("stream.idle_timeout"),
		},
		API: APIConfig{
			BaseURL: v.GetString("api.base_url"),
			Timeout: v.GetDuration("api.timeout"),
		},
		Window:     WindowConfig{Capacity: v.GetInt("window.capacity")},
		Throughput: ThroughputConfig{Interval: v.GetDuration("throughput.interval")},
		Poll: PollConfig{
			StatsInterval:    v.GetDuration("poll.stats_interval"),
			NetworksInterval: v.GetDuration("poll.networks_interval"),
		},
		Cache: CacheConfig{Path: v.GetString("cache.path")},
		HTTP: HTTPConfig{
			Port:         v.GetString("http.port"),
			PushInterval: v.GetDuration("http.push_interval"),
		},
		Sim: SimConfig{
			Port:       v.GetString("sim.port"),
			Tick:       v.GetDuration("sim.tick"),
			Rate:       v.GetFloat64("sim.rate"),
			ErrorRatio: v.GetFloat64("sim.error_ratio"),
			History:    v.GetInt("sim.history"),
			Seed:       v.GetUint64("sim.seed"),
		},
		File: v.ConfigFileUsed(),
	}
	return cfg, cfg.Validate()
}

// readFile reads the explicit --config file, or configs/config.yml when it exists.
func readFile(v *viper.Viper, fs *pflag.FlagSet) error {
	path, _ := fs.GetString("config")
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return fmt.Errorf("read config %s: %w", path, err)
		}
		return nil
	}

	v.AddConfigPath("configs")
	v.AddConfigPath(".")
	v.SetConfigName("config")
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			return nil
		}
		return fmt.Errorf("read config: %w", err)
	}
	return nil
}

// Validate reports the first invalid setting.
func (c Config) Validate() error {
	switch c.Log.Level {
	case logger.DebugLevel, logger.InfoLevel, logger.WarnLevel, logger.ErrorLevel:
	default:
		return fmt.Errorf("log.level: unknown level %q", c.Log.Level)
	}
	switch c.Log.Format {
	case logger.ConsoleFormat, logger.JSONFormat:
	default:
		return fmt.Errorf("log.format: unknown format %q", c.Log.Format)
	}

	u, err := url.Parse(c.Stream.URL)
	if err != nil || (u.Scheme != "ws" && u.Scheme != "wss") || u.Host == "" {
		return fmt.Errorf("stream.url: want ws:// or wss:// url, got %q", c.Stream.URL)
	}
	switch c.Stream.ReconnectPolicy {
	case stream.PolicyFixed, stream.PolicyExponential:
	default:
		return fmt.Errorf("stream.reconnect_policy: unknown policy %q", c.Stream.ReconnectPolicy)
	}
	if c.Stream.ReconnectDelay <= 0 {
		return errors.New("stream.reconnect_delay: must be positive")
	}
	if c.Stream.ReadLimit <= 0 {
		return errors.New("stream.read_limit: must be a positive size such as 16MB")
	}

	u, err = url.Parse(c.API.BaseURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("api.base_url: want http:// or https:// url, got %q", c.API.BaseURL)
	}

	if c.Window.Capacity <= 0 {
		return errors.New("window.capacity: must be positive")
	}
	for key, d := range map[string]time.Duration{
		"poll.stats_interval":    c.Poll.StatsInterval,
		"poll.networks_interval": c.Poll.NetworksInterval,
		"throughput.interval":    c.Throughput.Interval,
		"http.push_interval":     c.HTTP.PushInterval,
	} {
		if d <= 0 {
			return fmt.Errorf("%s: must be positive", key)
		}
	}
	if d := c.HTTP.PushInterval; d < handlers.MinPushInterval || d > handlers.MaxPushInterval {
		return fmt.Errorf("http.push_interval: %v out of [%v, %v]", d, handlers.MinPushInterval, handlers.MaxPushInterval)
	}
	if c.Sim.ErrorRatio < 0 || c.Sim.ErrorRatio > 1 {
		return fmt.Errorf("sim.error_ratio: %v out of [0,1]", c.Sim.ErrorRatio)
	}
	return nil
}
