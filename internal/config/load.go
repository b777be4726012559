package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

// Defaults applied by applyDefaults when the corresponding field is
// absent from the loaded configuration.
const (
	defaultServerAddress           = ":8443"
	defaultGracefulShutdownTimeout = "30s"
	defaultLogLevel                = LogLevelInfo
	defaultLogTarget               = "stderr"
	defaultMetricsEnabled          = false
	defaultMetricsAddress          = ":9090"
)

// LoadConfig reads, parses, defaults, and validates a configuration
// file. Supported formats are TOML, JSON, and YAML, selected by file
// extension; unknown extensions fall back to trying each parser in
// turn. Any validation failure aborts startup; there is no partial or
// best-effort configuration.
func LoadConfig(path string) (*Config, error) {
	if path == "" {
		return nil, fmt.Errorf("configuration file path cannot be empty")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read configuration file %s: %w", path, err)
	}

	cfg, err := parseConfig(data, filepath.Ext(path))
	if err != nil {
		return nil, err
	}
	cfg.originalFilePath = path

	applyDefaults(cfg)
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func parseConfig(data []byte, ext string) (*Config, error) {
	switch strings.ToLower(ext) {
	case ".json":
		cfg := &Config{}
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse JSON config: %w", err)
		}
		return cfg, nil
	case ".toml":
		cfg := &Config{}
		if err := toml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse TOML config: %w", err)
		}
		return cfg, nil
	case ".yaml", ".yml":
		cfg := &Config{}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse YAML config: %w", err)
		}
		return cfg, nil
	default:
		return autoDetect(data)
	}
}

// autoDetect tries JSON first (strictest), then TOML, then YAML. The
// individual parser errors are all preserved so a misconfiguration in
// any intended format stays diagnosable.
func autoDetect(data []byte) (*Config, error) {
	jsonCfg := &Config{}
	jsonErr := json.Unmarshal(data, jsonCfg)
	if jsonErr == nil {
		return jsonCfg, nil
	}

	tomlCfg := &Config{}
	tomlErr := toml.Unmarshal(data, tomlCfg)
	if tomlErr == nil {
		return tomlCfg, nil
	}

	yamlCfg := &Config{}
	yamlErr := yaml.Unmarshal(data, yamlCfg)
	if yamlErr == nil {
		return yamlCfg, nil
	}

	return nil, fmt.Errorf("failed to auto-detect and parse config (JSON error: %v; TOML error: %v; YAML error: %v)",
		jsonErr, tomlErr, yamlErr)
}

func applyDefaults(cfg *Config) {
	if cfg.Server == nil {
		cfg.Server = &ServerConfig{}
	}
	if cfg.Server.Address == nil {
		addr := defaultServerAddress
		cfg.Server.Address = &addr
	}
	if cfg.Server.GracefulShutdownTimeout == nil {
		d := &Duration{}
		// The default constant is a valid positive duration by
		// construction; UnmarshalText cannot fail on it.
		_ = d.UnmarshalText([]byte(defaultGracefulShutdownTimeout))
		cfg.Server.GracefulShutdownTimeout = d
	}

	if cfg.Logging == nil {
		cfg.Logging = &LoggingConfig{}
	}
	if cfg.Logging.LogLevel == "" {
		cfg.Logging.LogLevel = defaultLogLevel
	} else {
		cfg.Logging.LogLevel = normalizeLogLevel(cfg.Logging.LogLevel)
	}
	if cfg.Logging.Target == nil {
		target := defaultLogTarget
		cfg.Logging.Target = &target
	}

	if cfg.Metrics == nil {
		cfg.Metrics = &MetricsConfig{}
	}
	if cfg.Metrics.Enabled == nil {
		enabled := defaultMetricsEnabled
		cfg.Metrics.Enabled = &enabled
	}
	if cfg.Metrics.Address == nil {
		addr := defaultMetricsAddress
		cfg.Metrics.Address = &addr
	}

	if cfg.VirtualHosts == nil {
		cfg.VirtualHosts = []VirtualHostConfig{}
	}
}

// Validate checks the configuration for the fail-fast error class: any
// problem reported here must prevent the server from starting.
func Validate(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("configuration cannot be nil")
	}

	if cfg.Server != nil {
		if cfg.Server.Address != nil && *cfg.Server.Address == "" {
			return fmt.Errorf("server.address cannot be an empty string")
		}
	}

	if cfg.Logging != nil {
		if !cfg.Logging.LogLevel.valid() {
			return fmt.Errorf("logging.log_level '%s' is invalid; must be one of 'DEBUG', 'INFO', 'WARNING', 'ERROR'", cfg.Logging.LogLevel)
		}
		if cfg.Logging.Target != nil {
			if *cfg.Logging.Target == "" {
				return fmt.Errorf("logging.target cannot be empty")
			}
			if IsFilePath(*cfg.Logging.Target) && !filepath.IsAbs(*cfg.Logging.Target) {
				return fmt.Errorf("logging.target path '%s' must be absolute", *cfg.Logging.Target)
			}
		}
	}

	if cfg.Metrics != nil && cfg.Metrics.Enabled != nil && *cfg.Metrics.Enabled {
		if cfg.Metrics.Address == nil || *cfg.Metrics.Address == "" {
			return fmt.Errorf("metrics.address cannot be empty when metrics are enabled")
		}
	}

	return validateVirtualHosts(cfg.VirtualHosts)
}

func validateVirtualHosts(hosts []VirtualHostConfig) error {
	defaults := 0
	seenPatterns := make(map[string]bool)

	for i, vh := range hosts {
		if vh.HostnamePattern == "" {
			return fmt.Errorf("virtual_hosts[%d].hostname_pattern cannot be empty", i)
		}
		lowered := strings.ToLower(vh.HostnamePattern)
		if seenPatterns[lowered] {
			return fmt.Errorf("duplicate virtual host hostname_pattern '%s'", vh.HostnamePattern)
		}
		seenPatterns[lowered] = true

		if vh.Default {
			defaults++
		}

		if vh.TLS != nil {
			if vh.TLS.CertFile == "" || vh.TLS.KeyFile == "" {
				return fmt.Errorf("virtual_hosts[%d].tls requires both cert_file and key_file", i)
			}
		}

		if err := validateRoutes(i, vh.Routes); err != nil {
			return err
		}
	}

	if len(hosts) > 0 && defaults == 0 {
		return fmt.Errorf("no default virtual host configured; exactly one virtual_hosts entry must set default = true")
	}
	if defaults > 1 {
		return fmt.Errorf("multiple default virtual hosts configured; exactly one virtual_hosts entry may set default = true")
	}
	return nil
}

func validateRoutes(host int, routes []Route) error {
	type routeKey struct {
		pattern string
		match   MatchType
	}
	seen := make(map[routeKey]bool)

	for j, route := range routes {
		if route.PathPattern == "" {
			return fmt.Errorf("virtual_hosts[%d].routes[%d].path_pattern cannot be empty", host, j)
		}
		if route.HandlerType == "" {
			return fmt.Errorf("virtual_hosts[%d].routes[%d].handler_type cannot be empty for path_pattern '%s'", host, j, route.PathPattern)
		}

		switch route.MatchType {
		case MatchTypeExact:
			if strings.HasSuffix(route.PathPattern, "/") && route.PathPattern != "/" {
				return fmt.Errorf("path_pattern '%s' with MatchType 'Exact' must not end with '/' unless it is the root path '/'", route.PathPattern)
			}
		case MatchTypePrefix:
			if !strings.HasSuffix(route.PathPattern, "/") {
				return fmt.Errorf("path_pattern '%s' with MatchType 'Prefix' must end with '/'", route.PathPattern)
			}
		case "":
			return fmt.Errorf("virtual_hosts[%d].routes[%d].match_type is missing for path_pattern '%s'; must be 'Exact' or 'Prefix'", host, j, route.PathPattern)
		default:
			return fmt.Errorf("virtual_hosts[%d].routes[%d].match_type '%s' is invalid for path_pattern '%s'; must be 'Exact' or 'Prefix'", host, j, route.MatchType, route.PathPattern)
		}

		key := routeKey{pattern: route.PathPattern, match: route.MatchType}
		if seen[key] {
			return fmt.Errorf("ambiguous route: duplicate PathPattern '%s' and MatchType '%s' found in virtual_hosts[%d]", route.PathPattern, route.MatchType, host)
		}
		seen[key] = true
	}
	return nil
}
