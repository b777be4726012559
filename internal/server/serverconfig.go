package server

import (
	"strings"
)

// ServerConfig owns the full set of configured virtual hosts and
// resolves an inbound hostname to exactly one of them. It is built
// once at startup and read-only thereafter: exact hostnames dispatch
// through a map, wildcard patterns through an ordered fallback list,
// and anything else lands on the required default host.
type ServerConfig struct {
	hosts       []*VirtualHost
	defaultHost *VirtualHost
	exact       map[string]*VirtualHost
	wildcards   []*VirtualHost
}

// NewServerConfig builds the hostname dispatch structures and attaches
// every host to the new configuration. The default host is mandatory:
// hostname dispatch must always resolve to some host. Hosts passed in
// hosts must not repeat the default.
func NewServerConfig(defaultHost *VirtualHost, hosts ...*VirtualHost) (*ServerConfig, error) {
	if defaultHost == nil {
		return nil, configErrorf("a default virtual host is required")
	}

	sc := &ServerConfig{
		defaultHost: defaultHost,
		exact:       make(map[string]*VirtualHost, len(hosts)+1),
	}
	for _, vh := range append([]*VirtualHost{defaultHost}, hosts...) {
		pattern := vh.HostnamePattern()
		if isWildcardPattern(pattern) {
			sc.wildcards = append(sc.wildcards, vh)
		} else {
			if _, dup := sc.exact[pattern]; dup {
				return nil, configErrorf("duplicate hostname pattern %q", pattern)
			}
			sc.exact[pattern] = vh
		}
		if err := vh.attachServerConfig(sc); err != nil {
			return nil, err
		}
		sc.hosts = append(sc.hosts, vh)
	}
	return sc, nil
}

// VirtualHosts returns all hosts in registration order, the default
// host first. The returned slice must not be modified.
func (sc *ServerConfig) VirtualHosts() []*VirtualHost { return sc.hosts }

// DefaultVirtualHost returns the host used when no pattern matches.
func (sc *ServerConfig) DefaultVirtualHost() *VirtualHost { return sc.defaultHost }

// FindVirtualHost resolves an inbound hostname, as supplied by SNI or
// the request authority, to a virtual host. The port, if present, is
// ignored. Exact patterns win over wildcards; wildcards are scanned
// in registration order; the default host catches everything else.
// FindVirtualHost never returns nil.
func (sc *ServerConfig) FindVirtualHost(hostname string) *VirtualHost {
	hostname = NormalizeHostnamePattern(stripPort(hostname))
	if vh, ok := sc.exact[hostname]; ok {
		return vh
	}
	for _, vh := range sc.wildcards {
		if matchesWildcard(vh.HostnamePattern(), hostname) {
			return vh
		}
	}
	return sc.defaultHost
}

// stripPort removes a trailing :port from a host header value. IPv6
// literals keep their brackets stripped as well so the result is a
// bare hostname or address.
func stripPort(host string) string {
	if i := strings.LastIndexByte(host, ':'); i != -1 && !strings.Contains(host[i+1:], "]") {
		// Only strip when the colon is outside any IPv6 bracket.
		if !strings.HasPrefix(host, "[") || strings.HasSuffix(host[:i], "]") {
			host = host[:i]
		}
	}
	return strings.TrimSuffix(strings.TrimPrefix(host, "["), "]")
}
