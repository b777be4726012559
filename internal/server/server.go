package server

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"

	nh2 "golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"

	"example.com/hostwire/internal/config"
	"example.com/hostwire/internal/http2"
	"example.com/hostwire/internal/logger"
	"example.com/hostwire/internal/metrics"
	"example.com/hostwire/internal/route"
	"example.com/hostwire/internal/util"
)

// BuildServerConfig assembles the virtual-host dispatch structures
// from a validated configuration. Services are created through the
// registry from each route's handler type and opaque configuration.
func BuildServerConfig(cfg *config.Config, reg *ServiceRegistry, lg *logger.Logger) (*ServerConfig, error) {
	if len(cfg.VirtualHosts) == 0 {
		return nil, configErrorf("at least one virtual host must be configured")
	}
	var defaultHost *VirtualHost
	var others []*VirtualHost
	for i := range cfg.VirtualHosts {
		vhc := &cfg.VirtualHosts[i]
		vh, err := buildVirtualHost(vhc, reg, lg)
		if err != nil {
			return nil, fmt.Errorf("building virtual host %q: %w", vhc.HostnamePattern, err)
		}
		if vhc.Default {
			defaultHost = vh
		} else {
			others = append(others, vh)
		}
	}
	return NewServerConfig(defaultHost, others...)
}

func buildVirtualHost(vhc *config.VirtualHostConfig, reg *ServiceRegistry, lg *logger.Logger) (*VirtualHost, error) {
	var tlsCfg *tls.Config
	if vhc.TLS != nil {
		cert, err := tls.LoadX509KeyPair(vhc.TLS.CertFile, vhc.TLS.KeyFile)
		if err != nil {
			return nil, fmt.Errorf("loading TLS certificate: %w", err)
		}
		tlsCfg = &tls.Config{
			Certificates: []tls.Certificate{cert},
			NextProtos:   []string{"h2", "http/1.1"},
		}
	}

	bindings := make([]ServiceBinding, 0, len(vhc.Routes))
	for i := range vhc.Routes {
		rt := &vhc.Routes[i]
		kind := route.KindExact
		if rt.MatchType == config.MatchTypePrefix {
			kind = route.KindPrefix
		}
		pattern, err := route.NewPattern(kind, rt.PathPattern)
		if err != nil {
			return nil, err
		}
		raw, err := rt.HandlerJSON()
		if err != nil {
			return nil, err
		}
		svc, err := reg.CreateService(rt.HandlerType, raw, lg)
		if err != nil {
			return nil, err
		}
		bindings = append(bindings, ServiceBinding{Pattern: pattern, Service: svc, Name: rt.HandlerType})
	}
	return NewVirtualHost(vhc.HostnamePattern, tlsCfg, bindings)
}

// Server is the serving layer: it owns the listener, dispatches
// requests through the frozen ServerConfig, and supervises
// lifecycle-managed connections during shutdown.
type Server struct {
	cfg       *config.Config
	log       *logger.Logger
	serverCfg *ServerConfig
	metrics   *metrics.Metrics

	httpSrv    *http.Server
	metricsSrv *http.Server

	mu    sync.Mutex
	conns map[*http2.ConnHandler]struct{}
}

// NewServer creates a Server. m may be nil to disable instrumentation.
func NewServer(cfg *config.Config, lg *logger.Logger, serverCfg *ServerConfig, m *metrics.Metrics) (*Server, error) {
	if cfg == nil {
		return nil, errors.New("config cannot be nil")
	}
	if lg == nil {
		return nil, errors.New("logger cannot be nil")
	}
	if serverCfg == nil {
		return nil, errors.New("server configuration cannot be nil")
	}
	return &Server{
		cfg:       cfg,
		log:       lg,
		serverCfg: serverCfg,
		metrics:   m,
		conns:     make(map[*http2.ConnHandler]struct{}),
	}, nil
}

// ServerConfig returns the frozen dispatch structures.
func (s *Server) ServerConfig() *ServerConfig { return s.serverCfg }

// ServeHTTP dispatches a request: hostname to virtual host, path to
// service. A routing miss produces an ordinary 404 response.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	host := r.Host
	if r.TLS != nil && r.TLS.ServerName != "" {
		host = r.TLS.ServerName
	}
	vh := s.serverCfg.FindVirtualHost(host)

	mapped, ok := vh.FindServiceConfig(r.URL.Path)
	if !ok {
		if s.metrics != nil {
			s.metrics.RoutingMiss()
		}
		s.log.Debug("no route for request", logger.LogFields{
			"host": vh.HostnamePattern(),
			"path": r.URL.Path,
		})
		WriteErrorResponse(w, r, http.StatusNotFound, "", s.log)
		return
	}
	if s.metrics != nil {
		s.metrics.RequestRouted(vh.HostnamePattern())
	}

	rc := &RouteContext{Host: vh, Pattern: mapped.Pattern, Remainder: mapped.Remainder}
	r = r.WithContext(withRouteContext(r.Context(), rc))

	defer func() {
		if rec := recover(); rec != nil {
			s.log.Error("service panicked", logger.LogFields{
				"host":    vh.HostnamePattern(),
				"pattern": mapped.Pattern.String(),
				"panic":   fmt.Sprint(rec),
			})
			// Best effort; the response may be partially written.
			WriteErrorResponse(w, r, http.StatusInternalServerError, "", s.log)
		}
	}()
	mapped.Value.Service().ServeHTTP(w, r)
}

// hasTLS reports whether any configured host terminates TLS.
func (s *Server) hasTLS() bool {
	for _, vh := range s.serverCfg.VirtualHosts() {
		if vh.TLSConfig() != nil {
			return true
		}
	}
	return false
}

// Start binds the listener and serves until Shutdown is called or the
// listener fails. TLS is enabled when any host carries a certificate;
// the handshake selects the per-host TLS config by SNI. Plaintext
// servers speak HTTP/2 over h2c.
func (s *Server) Start() error {
	addr := *s.cfg.Server.Address
	ln, err := util.CreateListener("tcp", addr)
	if err != nil {
		if util.IsAddrInUse(err) {
			return fmt.Errorf("address %s is already in use: %w", addr, err)
		}
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}
	h2srv := &nh2.Server{}
	if s.hasTLS() {
		s.httpSrv = &http.Server{Handler: s, ConnState: s.trackConnState}
		if err := nh2.ConfigureServer(s.httpSrv, h2srv); err != nil {
			ln.Close()
			return fmt.Errorf("failed to configure HTTP/2: %w", err)
		}
		ln = tls.NewListener(ln, &tls.Config{
			NextProtos:         []string{"h2", "http/1.1"},
			GetConfigForClient: s.tlsConfigForClient,
		})
	} else {
		s.httpSrv = &http.Server{
			Handler:   h2c.NewHandler(s, h2srv),
			ConnState: s.trackConnState,
		}
	}

	s.startMetricsServer()

	s.log.Info("server listening", logger.LogFields{
		"address":       addr,
		"tls":           s.hasTLS(),
		"virtual_hosts": len(s.serverCfg.VirtualHosts()),
	})
	if err := s.httpSrv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// tlsConfigForClient selects the virtual host's TLS configuration by
// the handshake's server name. A host without its own certificate
// falls back to the default host's.
func (s *Server) tlsConfigForClient(hello *tls.ClientHelloInfo) (*tls.Config, error) {
	vh := s.serverCfg.FindVirtualHost(hello.ServerName)
	if cfg := vh.TLSConfig(); cfg != nil {
		return cfg, nil
	}
	if cfg := s.serverCfg.DefaultVirtualHost().TLSConfig(); cfg != nil {
		return cfg, nil
	}
	return nil, fmt.Errorf("no TLS configuration for server name %q", hello.ServerName)
}

func (s *Server) trackConnState(_ net.Conn, state http.ConnState) {
	if s.metrics == nil {
		return
	}
	switch state {
	case http.StateNew:
		s.metrics.ConnOpened()
	case http.StateClosed, http.StateHijacked:
		s.metrics.ConnectionClosed()
	}
}

func (s *Server) startMetricsServer() {
	mc := s.cfg.Metrics
	if s.metrics == nil || mc == nil || mc.Enabled == nil || !*mc.Enabled {
		return
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", s.metrics.Handler())
	s.metricsSrv = &http.Server{Addr: *mc.Address, Handler: mux}
	s.log.Info("metrics endpoint listening", logger.LogFields{"address": *mc.Address})
	go func() {
		if err := s.metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log.Error("metrics server failed", logger.LogFields{"error": err})
		}
	}()
}

// ManageConn places a codec-backed connection under lifecycle
// management. The returned handler owns error escalation and close
// for that connection; Shutdown closes every handler still open.
func (s *Server) ManageConn(codec http2.Codec) *http2.ConnHandler {
	var h *http2.ConnHandler
	opts := []http2.ConnHandlerOption{
		http2.WithOnCloseRequest(func() {
			s.mu.Lock()
			delete(s.conns, h)
			s.mu.Unlock()
		}),
	}
	if s.metrics != nil {
		s.metrics.ConnOpened()
		opts = append(opts, http2.WithObserver(s.metrics))
	}
	h = http2.NewConnHandler(codec, s.log.WithComponent("http2"), opts...)
	s.mu.Lock()
	s.conns[h] = struct{}{}
	s.mu.Unlock()
	return h
}

// Shutdown drains the server: lifecycle-managed connections are
// closed first, then the HTTP and metrics servers shut down
// gracefully within the context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info("shutting down", nil)

	s.mu.Lock()
	handlers := make([]*http2.ConnHandler, 0, len(s.conns))
	for h := range s.conns {
		handlers = append(handlers, h)
	}
	s.mu.Unlock()
	for _, h := range handlers {
		if err := h.Close(); err != nil {
			s.log.Warn("error closing managed connection", logger.LogFields{"error": err})
		}
	}

	if s.metricsSrv != nil {
		if err := s.metricsSrv.Shutdown(ctx); err != nil {
			s.log.Warn("metrics server shutdown error", logger.LogFields{"error": err})
		}
	}
	if s.httpSrv != nil {
		return s.httpSrv.Shutdown(ctx)
	}
	return nil
}
