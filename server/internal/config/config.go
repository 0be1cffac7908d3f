package config

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Control-message actions an endpoint may accept.
const (
	ActionSubscribe   = "subscribe"
	ActionUnsubscribe = "unsubscribe"
	ActionPublish     = "publish"
)

// Default values for the server configuration.
const (
	DefaultHTTPPort        = 8080
	DefaultGRPCPort        = 50051
	DefaultLogLevel        = "info"
	DefaultShutdownTimeout = 10 * time.Second
	DefaultReadLimit       = 64 * 1024
	DefaultWriteTimeout    = 10 * time.Second
	DefaultPongWait        = 60 * time.Second
	DefaultSendBuffer      = 64
)

// Config holds the hub configuration parsed from the `server:` section of
// config.yaml.
type Config struct {
	Server ServerConfig `yaml:"server"`
}

// ServerConfig holds all server-side settings.
type ServerConfig struct {
	// HTTPPort serves the WebSocket endpoints, REST API and /metrics (default 8080).
	HTTPPort int `yaml:"http_port"`

	// GRPCPort serves the ingest publish service (default 50051). 0 disables it.
	GRPCPort int `yaml:"grpc_port"`

	// LogLevel is one of debug | info | warn | error. Reloaded live.
	LogLevel string `yaml:"log_level"`

	// ShutdownTimeout bounds how long shutdown waits for sessions to clean up.
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`

	// WebSocket tunes per-connection limits.
	WebSocket WebSocketConfig `yaml:"websocket"`

	// Endpoints lists the session roles and the paths they are mounted on.
	// Defaults to device, app, audio and camera when empty.
	Endpoints []Endpoint `yaml:"endpoints"`
}

// WebSocketConfig tunes per-connection limits.
type WebSocketConfig struct {
	ReadLimit      int64         `yaml:"read_limit"`
	WriteTimeout   time.Duration `yaml:"write_timeout"`
	PongWait       time.Duration `yaml:"pong_wait"`
	SendBuffer     int           `yaml:"send_buffer"`
	AllowedOrigins []string      `yaml:"allowed_origins"`
}

// Endpoint binds one client role to a WebSocket path.
type Endpoint struct {
	// Role names the client kind in logs and metrics: device, app, audio, camera.
	Role string `yaml:"role"`

	// Path is the HTTP path the role's sessions are served on.
	Path string `yaml:"path"`

	// Actions lists the control-message actions this role accepts.
	Actions []string `yaml:"actions"`
}

// Level parses LogLevel. Callers should only use it on a validated Config.
func (s ServerConfig) Level() slog.Level {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(s.LogLevel)); err != nil {
		return slog.LevelInfo
	}
	return lvl
}

// DefaultEndpoints returns the four built-in roles.
func DefaultEndpoints() []Endpoint {
	all := []string{ActionSubscribe, ActionUnsubscribe, ActionPublish}
	return []Endpoint{
		{Role: "device", Path: "/ws/device", Actions: all},
		{Role: "app", Path: "/ws/app", Actions: []string{ActionSubscribe, ActionUnsubscribe}},
		{Role: "audio", Path: "/ws/audio", Actions: all},
		{Role: "camera", Path: "/ws/camera", Actions: all},
	}
}

// Load reads and parses the config file at path, returning the server configuration.
// Missing fields are filled with defaults before validation.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("server config: read %q: %w", path, err)
	}
	return Parse(data)
}

// Parse decodes YAML config bytes, applying defaults and validation.
func Parse(data []byte) (*Config, error) {
	cfg := defaults()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("server config: parse yaml: %w", err)
	}
	if len(cfg.Server.Endpoints) == 0 {
		cfg.Server.Endpoints = DefaultEndpoints()
	}

	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("server config: %w", err)
	}
	return cfg, nil
}

// defaults returns a Config pre-populated with default values.
func defaults() *Config {
	return &Config{
		Server: ServerConfig{
			HTTPPort:        DefaultHTTPPort,
			GRPCPort:        DefaultGRPCPort,
			LogLevel:        DefaultLogLevel,
			ShutdownTimeout: DefaultShutdownTimeout,
			WebSocket: WebSocketConfig{
				ReadLimit:    DefaultReadLimit,
				WriteTimeout: DefaultWriteTimeout,
				PongWait:     DefaultPongWait,
				SendBuffer:   DefaultSendBuffer,
			},
		},
	}
}

// validate checks structural constraints on the parsed configuration.
func validate(cfg *Config) error {
	s := cfg.Server
	if s.HTTPPort <= 0 || s.HTTPPort > 65535 {
		return fmt.Errorf("server.http_port %d is out of range [1, 65535]", s.HTTPPort)
	}
	if s.GRPCPort < 0 || s.GRPCPort > 65535 {
		return fmt.Errorf("server.grpc_port %d is out of range [0, 65535]", s.GRPCPort)
	}
	if s.GRPCPort == s.HTTPPort {
		return fmt.Errorf("server.grpc_port and server.http_port must differ (%d)", s.GRPCPort)
	}
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(s.LogLevel)); err != nil {
		return fmt.Errorf("server.log_level %q unknown: want debug|info|warn|error", s.LogLevel)
	}
	if s.ShutdownTimeout < 0 {
		return fmt.Errorf("server.shutdown_timeout must not be negative")
	}

	ws := s.WebSocket
	if ws.ReadLimit <= 0 {
		return fmt.Errorf("server.websocket.read_limit must be positive")
	}
	if ws.WriteTimeout <= 0 || ws.PongWait <= 0 {
		return fmt.Errorf("server.websocket.write_timeout and pong_wait must be positive")
	}
	if ws.SendBuffer <= 0 {
		return fmt.Errorf("server.websocket.send_buffer must be positive")
	}

	roles := make(map[string]bool)
	paths := make(map[string]bool)
	for i, ep := range s.Endpoints {
		if ep.Role == "" {
			return fmt.Errorf("server.endpoints[%d].role is required", i)
		}
		if !strings.HasPrefix(ep.Path, "/") {
			return fmt.Errorf("server.endpoints[%d].path %q must start with /", i, ep.Path)
		}
		if roles[ep.Role] {
			return fmt.Errorf("server.endpoints: duplicate role %q", ep.Role)
		}
		if paths[ep.Path] {
			return fmt.Errorf("server.endpoints: duplicate path %q", ep.Path)
		}
		roles[ep.Role], paths[ep.Path] = true, true

		if len(ep.Actions) == 0 {
			return fmt.Errorf("server.endpoints[%d] (%s): at least one action is required", i, ep.Role)
		}
		for _, a := range ep.Actions {
			switch a {
			case ActionSubscribe, ActionUnsubscribe, ActionPublish:
			default:
				return fmt.Errorf("server.endpoints[%d] (%s): action %q unknown: want subscribe|unsubscribe|publish", i, ep.Role, a)
			}
		}
	}
	return nil
}
