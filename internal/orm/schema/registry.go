package schema

import (
	"fmt"
	"sort"
	"sync"

	"go.uber.org/zap"
)

// Registry maps model names to descriptors for a single storage engine.
// Registries are explicit objects: fields are handed the registry they
// resolve against, so tests can build isolated ones.
type Registry struct {
	engine string
	models map[string]*Model
	logger *zap.Logger
	mu     sync.RWMutex
}

// RegistryOption configures a Registry
type RegistryOption func(*Registry)

// WithLogger sets the logger used for registration events
func WithLogger(logger *zap.Logger) RegistryOption {
	return func(r *Registry) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// NewRegistry creates a new, empty registry for the given engine
func NewRegistry(engine string, opts ...RegistryOption) *Registry {
	r := &Registry{
		engine: engine,
		models: make(map[string]*Model),
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Engine returns the storage engine this registry describes
func (r *Registry) Engine() string {
	return r.engine
}

// Register stores a model descriptor under its name. Registering the same or
// a structurally equal descriptor again is a no-op. A descriptor naming no
// engine adopts the registry's engine once it is stored; rejected
// descriptors are left untouched.
func (r *Registry) Register(model *Model) error {
	if model == nil {
		return fmt.Errorf("cannot register nil model")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	engine := model.Engine
	if engine == "" {
		engine = r.engine
	}
	if engine != r.engine {
		return fmt.Errorf("%w: %s is declared for %s, registry is %s",
			ErrEngineMismatch, model.Name, engine, r.engine)
	}
	if err := model.validate(); err != nil {
		return fmt.Errorf("schema validation failed for %s: %w", model.Name, err)
	}

	if existing, ok := r.models[model.Name]; ok {
		candidate := *model
		candidate.Engine = engine
		if existing.Equal(&candidate) {
			return nil
		}
		return fmt.Errorf("%w: %s", ErrConflictingModel, model.Name)
	}

	model.Engine = engine
	r.models[model.Name] = model
	r.logger.Debug("model registered",
		zap.String("engine", r.engine),
		zap.String("model", model.Name),
		zap.Int("fields", len(model.Fields)))

	return nil
}

// Resolve returns the descriptor registered under name
func (r *Registry) Resolve(name string) (*Model, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	model, ok := r.models[name]
	if !ok {
		return nil, &UnresolvedModelError{Engine: r.engine, Name: name}
	}
	return model, nil
}

// Get retrieves a model descriptor by name
func (r *Registry) Get(name string) (*Model, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	model, ok := r.models[name]
	return model, ok
}

// Exists checks if a model is registered
func (r *Registry) Exists(name string) bool {
	_, ok := r.Get(name)
	return ok
}

// List returns the sorted names of all registered models
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.models))
	for name := range r.models {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Count returns the number of registered models
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.models)
}

// Unregister removes a model. It returns false if nothing was registered.
func (r *Registry) Unregister(name string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.models[name]; !ok {
		return false
	}
	delete(r.models, name)
	return true
}

// Clear removes all registered models (useful for testing)
func (r *Registry) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.models = make(map[string]*Model)
}

// Catalog groups the registries of every storage engine known to a process
type Catalog struct {
	registries map[string]*Registry
	logger     *zap.Logger
	mu         sync.RWMutex
}

// NewCatalog creates an empty catalog. The logger, if any, is handed to
// every registry the catalog creates.
func NewCatalog(logger *zap.Logger) *Catalog {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Catalog{
		registries: make(map[string]*Registry),
		logger:     logger,
	}
}

// Engine returns the registry for an engine, creating it on first use
func (c *Catalog) Engine(name string) *Registry {
	c.mu.Lock()
	defer c.mu.Unlock()

	reg, ok := c.registries[name]
	if !ok {
		reg = NewRegistry(name, WithLogger(c.logger))
		c.registries[name] = reg
	}
	return reg
}

// Lookup returns the registry for an engine without creating it
func (c *Catalog) Lookup(name string) (*Registry, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	reg, ok := c.registries[name]
	return reg, ok
}

// Register adds a model to the registry of its engine
func (c *Catalog) Register(model *Model) error {
	if model == nil {
		return fmt.Errorf("cannot register nil model")
	}
	return c.Engine(model.Engine).Register(model)
}

// Engines returns the sorted names of all engines
func (c *Catalog) Engines() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	names := make([]string, 0, len(c.registries))
	for name := range c.registries {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Clear drops every registry
func (c *Catalog) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.registries = make(map[string]*Registry)
}
