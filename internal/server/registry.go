package server

import (
	"encoding/json"
	"fmt"
	"sort"
	"sync"

	"example.com/hostwire/internal/logger"
)

// ServiceFactory creates a service instance from the opaque per-route
// configuration found under a route's handler_config key.
type ServiceFactory func(cfg json.RawMessage, lg *logger.Logger) (Service, error)

// ServiceRegistry maps handler type strings from configuration to the
// factories that build their services. Registration happens during
// program init; lookups happen while virtual hosts are assembled.
type ServiceRegistry struct {
	mu        sync.RWMutex
	factories map[string]ServiceFactory
}

// NewServiceRegistry creates an empty registry.
func NewServiceRegistry() *ServiceRegistry {
	return &ServiceRegistry{factories: make(map[string]ServiceFactory)}
}

// NewDefaultServiceRegistry creates a registry with the built-in
// handler types registered.
func NewDefaultServiceRegistry() *ServiceRegistry {
	r := NewServiceRegistry()
	// Registration of built-ins cannot collide.
	_ = r.Register("status", NewStatusService)
	return r
}

// Register associates a handler type with its factory. Registering
// the same type twice is rejected.
func (r *ServiceRegistry) Register(handlerType string, factory ServiceFactory) error {
	if handlerType == "" {
		return configErrorf("handler type must not be empty")
	}
	if factory == nil {
		return configErrorf("factory for handler type %q must not be nil", handlerType)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.factories[handlerType]; exists {
		return configErrorf("handler type %q already registered", handlerType)
	}
	r.factories[handlerType] = factory
	return nil
}

// CreateService builds a service of the given handler type from its
// opaque configuration.
func (r *ServiceRegistry) CreateService(handlerType string, cfg json.RawMessage, lg *logger.Logger) (Service, error) {
	r.mu.RLock()
	factory, ok := r.factories[handlerType]
	r.mu.RUnlock()
	if !ok {
		return nil, configErrorf("no factory registered for handler type %q", handlerType)
	}
	svc, err := factory(cfg, lg)
	if err != nil {
		return nil, fmt.Errorf("creating %q service: %w", handlerType, err)
	}
	return svc, nil
}

// Types returns the registered handler types, sorted.
func (r *ServiceRegistry) Types() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	types := make([]string, 0, len(r.factories))
	for t := range r.factories {
		types = append(types, t)
	}
	sort.Strings(types)
	return types
}
