package providers

import (
	"fmt"
	"log/slog"
	"slices"
	"sort"
	"sync"
	"time"
)

// Registry holds named adapters. It supports config-driven instantiation,
// hot-reload, and thread-safe access.
type Registry struct {
	mu       sync.RWMutex
	adapters map[string]Adapter
	configs  map[string]AdapterConfig
	logger   *slog.Logger
}

// NewRegistry creates a new empty provider registry.
func NewRegistry() *Registry {
	return &Registry{
		adapters: make(map[string]Adapter),
		configs:  make(map[string]AdapterConfig),
		logger:   slog.Default(),
	}
}

// SetLogger sets the logger for the registry.
func (r *Registry) SetLogger(logger *slog.Logger) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.logger = logger
}

// Register adds an adapter under name, replacing any existing one.
func (r *Registry) Register(name string, adapter Adapter) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.adapters[name] = adapter
	delete(r.configs, name)
	if r.logger != nil {
		r.logger.Info("registered provider", "name", name, "type", adapter.Name())
	}
}

// Unregister removes an adapter by name.
func (r *Registry) Unregister(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.adapters, name)
	delete(r.configs, name)
	if r.logger != nil {
		r.logger.Info("unregistered provider", "name", name)
	}
}

// Get returns an adapter by name.
func (r *Registry) Get(name string) (Adapter, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	adapter, ok := r.adapters[name]
	if !ok {
		return nil, fmt.Errorf("provider not found: %s", name)
	}
	return adapter, nil
}

// Has checks if an adapter is registered.
func (r *Registry) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.adapters[name]
	return ok
}

// List returns all registered names, sorted.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.adapters))
	for name := range r.adapters {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// RegistryConfig defines the adapters to instantiate from config.
type RegistryConfig struct {
	Providers map[string]AdapterConfig

	// Shared by every adapter
	Costs        *CostCalculator
	ConnCacheTTL time.Duration
}

// AdapterConfig matches config.ProviderCfg with a resolved API key.
type AdapterConfig struct {
	Type        string // "anthropic", "openai", "mock"
	Model       string
	Models      []string
	APIKey      string
	BaseURL     string
	MaxTokens   int
	Temperature *float64
	Timeout     time.Duration
	Enabled     bool
}

func (c AdapterConfig) equal(o AdapterConfig) bool {
	sameTemp := (c.Temperature == nil) == (o.Temperature == nil) &&
		(c.Temperature == nil || *c.Temperature == *o.Temperature)
	return c.Type == o.Type &&
		c.Model == o.Model &&
		slices.Equal(c.Models, o.Models) &&
		c.APIKey == o.APIKey &&
		c.BaseURL == o.BaseURL &&
		c.MaxTokens == o.MaxTokens &&
		c.Timeout == o.Timeout &&
		sameTemp
}

// usable reports whether the adapter should be built at all.
func (c AdapterConfig) usable() bool {
	return c.Enabled && (c.APIKey != "" || c.Type == MockName)
}

// NewRegistryFromConfig creates a registry with adapters based on configuration.
// Only enabled providers with an API key are registered.
func NewRegistryFromConfig(cfg RegistryConfig) *Registry {
	r := NewRegistry()
	r.Reload(cfg)
	return r
}

// Reload updates the registry based on new configuration. Providers no longer
// configured are unregistered; providers with changed settings are rebuilt.
// Adapters registered directly with Register are left alone.
func (r *Registry) Reload(cfg RegistryConfig) {
	r.mu.Lock()
	defer r.mu.Unlock()

	want := make(map[string]bool)
	for name, provCfg := range cfg.Providers {
		if !provCfg.usable() {
			continue
		}
		want[name] = true

		existing, hasExisting := r.configs[name]
		if hasExisting && existing.equal(provCfg) {
			continue
		}
		adapter, err := NewAdapter(provCfg, cfg.Costs, cfg.ConnCacheTTL)
		if err != nil {
			if r.logger != nil {
				r.logger.Warn("skipping provider", "name", name, "error", err)
			}
			continue
		}
		if l, ok := adapter.(interface{ SetLogger(*slog.Logger) }); ok && r.logger != nil {
			l.SetLogger(r.logger.With("provider", name))
		}
		r.adapters[name] = adapter
		r.configs[name] = provCfg
		if r.logger != nil {
			if hasExisting {
				r.logger.Info("updated provider", "name", name, "type", provCfg.Type)
			} else {
				r.logger.Info("registered provider", "name", name, "type", provCfg.Type)
			}
		}
	}

	for name := range r.configs {
		if !want[name] {
			delete(r.adapters, name)
			delete(r.configs, name)
			if r.logger != nil {
				r.logger.Info("unregistered provider", "name", name)
			}
		}
	}
}

// NewAdapter creates an adapter based on provider type.
func NewAdapter(cfg AdapterConfig, costs *CostCalculator, connTTL time.Duration) (Adapter, error) {
	switch cfg.Type {
	case AnthropicName:
		return NewAnthropicAdapter(AnthropicConfig{
			APIKey:       cfg.APIKey,
			BaseURL:      cfg.BaseURL,
			DefaultModel: cfg.Model,
			Models:       cfg.Models,
			MaxTokens:    cfg.MaxTokens,
			Temperature:  cfg.Temperature,
			Timeout:      cfg.Timeout,
			ConnCacheTTL: connTTL,
			Costs:        costs,
		}), nil
	case OpenAIName:
		return NewOpenAIAdapter(OpenAIConfig{
			APIKey:       cfg.APIKey,
			BaseURL:      cfg.BaseURL,
			DefaultModel: cfg.Model,
			Models:       cfg.Models,
			MaxTokens:    cfg.MaxTokens,
			Temperature:  cfg.Temperature,
			Timeout:      cfg.Timeout,
			ConnCacheTTL: connTTL,
			Costs:        costs,
		}), nil
	case MockName:
		m := NewMockAdapter()
		if cfg.Model != "" {
			m.Model = cfg.Model
		}
		if costs != nil {
			m.costs = costs
		}
		return m, nil
	default:
		return nil, fmt.Errorf("unknown provider type %q", cfg.Type)
	}
}
