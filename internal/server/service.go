package server

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"example.com/hostwire/internal/logger"
	"example.com/hostwire/internal/route"
)

// Service processes requests dispatched to a route binding. The route
// match that selected the service is available from the request
// context via RouteContextFrom.
type Service interface {
	ServeHTTP(w http.ResponseWriter, r *http.Request)
}

// ServiceFunc adapts a function to the Service interface.
type ServiceFunc func(w http.ResponseWriter, r *http.Request)

func (f ServiceFunc) ServeHTTP(w http.ResponseWriter, r *http.Request) { f(w, r) }

// ServiceBinding associates a path pattern with a service before the
// owning VirtualHost exists. It is the first phase of a two-phase
// construction: NewVirtualHost finalizes each binding against the
// host, producing the bound ServiceConfig.
type ServiceBinding struct {
	Pattern route.Pattern
	Service Service
	// Name identifies the binding in logs and the check output,
	// typically the configured handler type.
	Name string
}

func (b ServiceBinding) build(vh *VirtualHost) (*ServiceConfig, error) {
	if b.Service == nil {
		return nil, configErrorf("binding for pattern %q has no service", b.Pattern.Raw())
	}
	return &ServiceConfig{
		pattern: b.Pattern,
		service: b.Service,
		name:    b.Name,
		host:    vh,
	}, nil
}

// ServiceConfig is a service binding finalized against its owning
// VirtualHost. The host reference is non-owning: the host owns its
// bindings, a binding only looks its host up.
type ServiceConfig struct {
	pattern route.Pattern
	service Service
	name    string
	host    *VirtualHost
}

// Pattern returns the path pattern this service is bound to.
func (sc *ServiceConfig) Pattern() route.Pattern { return sc.pattern }

// Service returns the bound service.
func (sc *ServiceConfig) Service() Service { return sc.service }

// Name returns the binding's display name.
func (sc *ServiceConfig) Name() string { return sc.name }

// VirtualHost returns the owning host.
func (sc *ServiceConfig) VirtualHost() *VirtualHost { return sc.host }

// RouteContext carries the outcome of request dispatch into the
// service: the host and pattern that matched, and the unconsumed
// trailing segment for prefix mounts.
type RouteContext struct {
	Host      *VirtualHost
	Pattern   route.Pattern
	Remainder string
}

type routeContextKey struct{}

// withRouteContext returns a context carrying rc.
func withRouteContext(ctx context.Context, rc *RouteContext) context.Context {
	return context.WithValue(ctx, routeContextKey{}, rc)
}

// RouteContextFrom extracts the dispatch outcome from a request
// context. It reports false for requests that did not pass through
// the server's dispatch.
func RouteContextFrom(ctx context.Context) (*RouteContext, bool) {
	rc, ok := ctx.Value(routeContextKey{}).(*RouteContext)
	return rc, ok
}

// StatusService is a built-in liveness responder. It reports the
// server identity, the matched host and uptime as JSON.
type StatusService struct {
	version string
	started time.Time
	log     *logger.Logger
}

// statusServiceConfig is the opaque per-route configuration accepted
// by the status handler type.
type statusServiceConfig struct {
	Version string `json:"version"`
}

// NewStatusService creates a StatusService from its opaque route
// configuration. An empty configuration is valid.
func NewStatusService(cfg json.RawMessage, lg *logger.Logger) (Service, error) {
	var sc statusServiceConfig
	if len(cfg) > 0 {
		if err := json.Unmarshal(cfg, &sc); err != nil {
			return nil, configErrorf("invalid status service config: %v", err)
		}
	}
	if sc.Version == "" {
		sc.Version = "dev"
	}
	return &StatusService{version: sc.Version, started: time.Now(), log: lg}, nil
}

type statusResponse struct {
	Status        string `json:"status"`
	Version       string `json:"version"`
	Host          string `json:"host,omitempty"`
	UptimeSeconds int64  `json:"uptime_seconds"`
}

func (s *StatusService) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	resp := statusResponse{
		Status:        "ok",
		Version:       s.version,
		UptimeSeconds: int64(time.Since(s.started).Seconds()),
	}
	if rc, ok := RouteContextFrom(r.Context()); ok {
		resp.Host = rc.Host.HostnamePattern()
	}
	body, err := json.Marshal(resp)
	if err != nil {
		if s.log != nil {
			s.log.Error("failed to marshal status response", logger.LogFields{"error": err})
		}
		WriteErrorResponse(w, r, http.StatusInternalServerError, "", s.log)
		return
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(body)
}
