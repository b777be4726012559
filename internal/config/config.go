package config

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// MatchType defines how a path pattern is interpreted.
type MatchType string

const (
	// MatchTypeExact matches the path exactly.
	MatchTypeExact MatchType = "Exact"
	// MatchTypePrefix matches any path starting with the prefix.
	MatchTypePrefix MatchType = "Prefix"
)

// LogLevel defines the minimum severity for logs.
type LogLevel string

const (
	LogLevelDebug   LogLevel = "DEBUG"
	LogLevelInfo    LogLevel = "INFO"
	LogLevelWarning LogLevel = "WARNING"
	LogLevelError   LogLevel = "ERROR"
)

// Config is the top-level configuration structure for the server.
type Config struct {
	Server       *ServerConfig       `json:"server,omitempty" toml:"server,omitempty" yaml:"server,omitempty"`
	VirtualHosts []VirtualHostConfig `json:"virtual_hosts,omitempty" toml:"virtual_hosts,omitempty" yaml:"virtual_hosts,omitempty"`
	Logging      *LoggingConfig      `json:"logging,omitempty" toml:"logging,omitempty" yaml:"logging,omitempty"`
	Metrics      *MetricsConfig      `json:"metrics,omitempty" toml:"metrics,omitempty" yaml:"metrics,omitempty"`

	originalFilePath string
}

// OriginalFilePath returns the path the configuration was loaded from,
// or the empty string when the Config was built in memory.
func (c *Config) OriginalFilePath() string {
	if c == nil {
		return ""
	}
	return c.originalFilePath
}

// ServerConfig holds general server settings.
type ServerConfig struct {
	Address                 *string   `json:"address,omitempty" toml:"address,omitempty" yaml:"address,omitempty"`
	GracefulShutdownTimeout *Duration `json:"graceful_shutdown_timeout,omitempty" toml:"graceful_shutdown_timeout,omitempty" yaml:"graceful_shutdown_timeout,omitempty"`
}

// VirtualHostConfig declares one name-based virtual host: its hostname
// pattern, optional TLS material, and the routes mounted under it.
type VirtualHostConfig struct {
	HostnamePattern string     `json:"hostname_pattern" toml:"hostname_pattern" yaml:"hostname_pattern"`
	Default         bool       `json:"default,omitempty" toml:"default,omitempty" yaml:"default,omitempty"`
	TLS             *TLSConfig `json:"tls,omitempty" toml:"tls,omitempty" yaml:"tls,omitempty"`
	Routes          []Route    `json:"routes,omitempty" toml:"routes,omitempty" yaml:"routes,omitempty"`
}

// TLSConfig names the certificate material for a TLS-terminating host.
type TLSConfig struct {
	CertFile string `json:"cert_file" toml:"cert_file" yaml:"cert_file"`
	KeyFile  string `json:"key_file" toml:"key_file" yaml:"key_file"`
}

// Route defines a single routing rule within a virtual host.
type Route struct {
	PathPattern   string         `json:"path_pattern" toml:"path_pattern" yaml:"path_pattern"`
	MatchType     MatchType      `json:"match_type" toml:"match_type" yaml:"match_type"`
	HandlerType   string         `json:"handler_type" toml:"handler_type" yaml:"handler_type"`
	HandlerConfig map[string]any `json:"handler_config,omitempty" toml:"handler_config,omitempty" yaml:"handler_config,omitempty"`
}

// HandlerJSON returns the route's opaque handler configuration re-encoded
// as JSON, for consumption by handler factories regardless of the source
// config format.
func (r *Route) HandlerJSON() (json.RawMessage, error) {
	if r.HandlerConfig == nil {
		return nil, nil
	}
	raw, err := json.Marshal(r.HandlerConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to re-encode handler_config for path_pattern '%s': %w", r.PathPattern, err)
	}
	return raw, nil
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	LogLevel LogLevel `json:"log_level,omitempty" toml:"log_level,omitempty" yaml:"log_level,omitempty"`
	Target   *string  `json:"target,omitempty" toml:"target,omitempty" yaml:"target,omitempty"`
}

// MetricsConfig configures the Prometheus scrape endpoint.
type MetricsConfig struct {
	Enabled *bool   `json:"enabled,omitempty" toml:"enabled,omitempty" yaml:"enabled,omitempty"`
	Address *string `json:"address,omitempty" toml:"address,omitempty" yaml:"address,omitempty"`
}

// Duration wraps time.Duration with strict string-based unmarshalling:
// the value must be a non-empty Go duration string and must be positive.
type Duration struct {
	d time.Duration
}

// Value returns the wrapped duration.
func (d Duration) Value() time.Duration { return d.d }

// String returns the standard duration string form.
func (d Duration) String() string { return d.d.String() }

// UnmarshalText implements encoding.TextUnmarshaler, used by the TOML
// decoder and by UnmarshalJSON/UnmarshalYAML below.
func (d *Duration) UnmarshalText(text []byte) error {
	s := string(text)
	if s == "" {
		return fmt.Errorf("duration string cannot be empty")
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration string %q: %w", s, err)
	}
	if parsed <= 0 {
		return fmt.Errorf("duration must be positive, got %q", s)
	}
	d.d = parsed
	return nil
}

// UnmarshalJSON implements json.Unmarshaler.
func (d *Duration) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("duration should be a string, got %s", string(data))
	}
	return d.UnmarshalText([]byte(s))
}

// UnmarshalYAML implements yaml.Unmarshaler. yaml.v3 does not consult
// encoding.TextUnmarshaler, so the text path is delegated to explicitly.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return fmt.Errorf("duration should be a string: %w", err)
	}
	return d.UnmarshalText([]byte(s))
}

// IsFilePath reports whether a log target names a file rather than one
// of the process standard streams.
func IsFilePath(target string) bool {
	return target != "stdout" && target != "stderr"
}

// validLogLevels is the accepted set for logging.log_level.
var validLogLevels = map[LogLevel]bool{
	LogLevelDebug:   true,
	LogLevelInfo:    true,
	LogLevelWarning: true,
	LogLevelError:   true,
}

func (l LogLevel) valid() bool {
	return validLogLevels[l]
}

// normalizeLogLevel upper-cases a configured level so "info" and "INFO"
// are equivalent.
func normalizeLogLevel(l LogLevel) LogLevel {
	return LogLevel(strings.ToUpper(string(l)))
}
