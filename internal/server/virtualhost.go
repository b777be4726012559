// Package server assembles virtual hosts from configuration and
// dispatches inbound requests: first by hostname to a VirtualHost,
// then by path to a bound service. All dispatch structures are built
// once during startup and frozen; request-path lookups take no locks.
package server

import (
	"crypto/tls"
	"fmt"
	"strings"
	"sync"

	"golang.org/x/net/idna"

	"example.com/hostwire/internal/route"
)

// ConfigurationError reports an invalid server setup: a non-server TLS
// capability, a duplicate hostname pattern, or a missing default
// virtual host. Configuration errors abort startup.
type ConfigurationError struct {
	Msg string
}

func (e *ConfigurationError) Error() string {
	return "server configuration error: " + e.Msg
}

func configErrorf(format string, args ...interface{}) *ConfigurationError {
	return &ConfigurationError{Msg: fmt.Sprintf(format, args...)}
}

// StateError reports a use-after-build violation, such as attaching a
// VirtualHost to a second owning ServerConfig.
type StateError struct {
	Msg string
}

func (e *StateError) Error() string {
	return "server state error: " + e.Msg
}

// hostnameProfile maps internationalized hostnames to their
// ASCII-compatible form. Label validation is relaxed so wildcard
// patterns and forward-compatible code points are not rejected.
var hostnameProfile = idna.New(
	idna.MapForLookup(),
	idna.StrictDomainName(false),
	idna.ValidateLabels(false),
)

// NormalizeHostnamePattern converts a hostname or hostname pattern to
// its canonical matching form: ASCII-compatible encoding for
// internationalized names, then lower-cased byte-wise. Normalization
// is idempotent and locale-independent.
func NormalizeHostnamePattern(raw string) string {
	if !isASCII(raw) {
		if ascii, err := hostnameProfile.ToASCII(raw); err == nil {
			raw = ascii
		}
	}
	return asciiLower(raw)
}

func isASCII(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] >= 0x80 {
			return false
		}
	}
	return true
}

// asciiLower lower-cases byte-wise. Matching must not depend on the
// runtime locale, so Unicode case folding is deliberately not used.
func asciiLower(s string) string {
	hasUpper := false
	for i := 0; i < len(s); i++ {
		if s[i] >= 'A' && s[i] <= 'Z' {
			hasUpper = true
			break
		}
	}
	if !hasUpper {
		return s
	}
	b := []byte(s)
	for i, c := range b {
		if c >= 'A' && c <= 'Z' {
			b[i] = c + ('a' - 'A')
		}
	}
	return string(b)
}

// validateTLSConfig verifies that a TLS configuration is usable in the
// server role: it must be able to present a certificate. A nil config
// means the host serves plaintext and is always valid.
func validateTLSConfig(cfg *tls.Config) error {
	if cfg == nil {
		return nil
	}
	if len(cfg.Certificates) == 0 && cfg.GetCertificate == nil && cfg.GetConfigForClient == nil {
		return configErrorf("TLS config has no certificates and no GetCertificate callback; not usable in the server role")
	}
	return nil
}

// VirtualHost is an immutable routing unit keyed by hostname: a
// hostname pattern, an optional TLS capability, and a frozen path
// mapping table built from its service bindings. A VirtualHost is
// constructed once at server-build time; its only later mutation is
// the one-shot attach of its owning ServerConfig.
type VirtualHost struct {
	hostnamePattern string
	tlsConfig       *tls.Config
	serviceConfigs  []*ServiceConfig
	table           *route.MappingTable[*ServiceConfig]

	mu           sync.Mutex
	serverConfig *ServerConfig
}

// NewVirtualHost builds a VirtualHost from an ordered list of service
// bindings. The hostname pattern is normalized; the TLS config, when
// present, must be usable in the server role. Bindings are finalized
// against the host in order and registered into the mapping table,
// which is then frozen.
func NewVirtualHost(hostnamePattern string, tlsCfg *tls.Config, bindings []ServiceBinding) (*VirtualHost, error) {
	if hostnamePattern == "" {
		return nil, configErrorf("hostname pattern must not be empty")
	}
	if err := validateTLSConfig(tlsCfg); err != nil {
		return nil, err
	}

	vh := &VirtualHost{
		hostnamePattern: NormalizeHostnamePattern(hostnamePattern),
		tlsConfig:       tlsCfg,
		table:           route.NewMappingTable[*ServiceConfig](),
	}
	for _, b := range bindings {
		sc, err := b.build(vh)
		if err != nil {
			return nil, err
		}
		if err := vh.table.Register(sc.Pattern(), sc); err != nil {
			return nil, err
		}
		vh.serviceConfigs = append(vh.serviceConfigs, sc)
	}
	if err := vh.table.Freeze(); err != nil {
		return nil, err
	}
	return vh, nil
}

// HostnamePattern returns the normalized hostname pattern.
func (vh *VirtualHost) HostnamePattern() string { return vh.hostnamePattern }

// TLSConfig returns the host's TLS capability, or nil for a
// plaintext-only host.
func (vh *VirtualHost) TLSConfig() *tls.Config { return vh.tlsConfig }

// ServiceConfigs returns the host's bound services in registration
// order. The returned slice must not be modified.
func (vh *VirtualHost) ServiceConfigs() []*ServiceConfig { return vh.serviceConfigs }

// FindServiceConfig resolves a request path to a bound service. A
// miss is an ordinary outcome reported by the second return value,
// never an error.
func (vh *VirtualHost) FindServiceConfig(path string) (route.Mapped[*ServiceConfig], bool) {
	return vh.table.Resolve(path)
}

// attachServerConfig binds the host to its owning ServerConfig.
// A VirtualHost belongs to exactly one owner; the second attach fails
// with a StateError.
func (vh *VirtualHost) attachServerConfig(sc *ServerConfig) error {
	vh.mu.Lock()
	defer vh.mu.Unlock()
	if vh.serverConfig != nil {
		return &StateError{Msg: fmt.Sprintf("virtual host %q is already attached to a server configuration", vh.hostnamePattern)}
	}
	vh.serverConfig = sc
	return nil
}

// ServerConfig returns the owning server configuration. It fails with
// a StateError if the host has not been attached yet.
func (vh *VirtualHost) ServerConfig() (*ServerConfig, error) {
	vh.mu.Lock()
	defer vh.mu.Unlock()
	if vh.serverConfig == nil {
		return nil, &StateError{Msg: fmt.Sprintf("virtual host %q is not attached to a server configuration", vh.hostnamePattern)}
	}
	return vh.serverConfig, nil
}

// String returns a one-line summary of the host for logs and the
// check command.
func (vh *VirtualHost) String() string {
	tlsState := "plaintext"
	if vh.tlsConfig != nil {
		tlsState = "tls"
	}
	return fmt.Sprintf("VirtualHost(%s, %s, %d services)", vh.hostnamePattern, tlsState, len(vh.serviceConfigs))
}

// isWildcardPattern reports whether the normalized pattern matches by
// suffix rather than exactly.
func isWildcardPattern(pattern string) bool {
	return strings.HasPrefix(pattern, "*.")
}

// matchesWildcard reports whether hostname falls under a wildcard
// pattern. "*.example.com" matches "api.example.com" but not
// "example.com" itself.
func matchesWildcard(pattern, hostname string) bool {
	suffix := pattern[1:] // ".example.com"
	return len(hostname) > len(suffix) && strings.HasSuffix(hostname, suffix)
}
