package relations

import (
	"fmt"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/conduit-lang/relations/internal/orm/schema"
)

// Target is a lazily bound reference to the model a relation points at.
// It is declared by name (or by descriptor handle) and resolved on first
// use; the resolved model and its key descriptor are then fixed for the
// lifetime of the Target. A failed resolution is not remembered, so a model
// registered after the failure is still picked up.
type Target struct {
	name     string
	registry *schema.Registry
	handle   *schema.Model
	logger   *zap.Logger

	resolved atomic.Pointer[resolution]
	mu       sync.Mutex
}

type resolution struct {
	model *schema.Model
	key   schema.KeyDescriptor
}

// TargetOption configures a Target
type TargetOption func(*Target)

// WithTargetLogger sets the logger used when the target resolves
func WithTargetLogger(logger *zap.Logger) TargetOption {
	return func(t *Target) {
		if logger != nil {
			t.logger = logger
		}
	}
}

// TargetName declares a forward reference to a model resolved through registry
func TargetName(registry *schema.Registry, name string, opts ...TargetOption) *Target {
	t := &Target{name: name, registry: registry, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// TargetModel declares a reference to an already known descriptor
func TargetModel(model *schema.Model, opts ...TargetOption) *Target {
	t := &Target{handle: model, logger: zap.NewNop()}
	if model != nil {
		t.name = model.Name
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Name returns the target model name
func (t *Target) Name() string {
	return t.name
}

// Engine returns the storage engine the target lives in
func (t *Target) Engine() string {
	if t.handle != nil {
		return t.handle.Engine
	}
	if t.registry != nil {
		return t.registry.Engine()
	}
	return ""
}

// Resolved returns true once the target has been bound
func (t *Target) Resolved() bool {
	return t.resolved.Load() != nil
}

// Resolve binds the target on first call and returns the cached model and
// key descriptor afterwards. Concurrent first calls resolve once.
func (t *Target) Resolve() (*schema.Model, schema.KeyDescriptor, error) {
	if r := t.resolved.Load(); r != nil {
		return r.model, r.key, nil
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if r := t.resolved.Load(); r != nil {
		return r.model, r.key, nil
	}

	model, err := t.lookup()
	if err != nil {
		return nil, schema.KeyDescriptor{}, err
	}

	key, err := schema.BuildKeyDescriptor(model)
	if err != nil {
		return nil, schema.KeyDescriptor{}, fmt.Errorf("relation target %s: %w", t.name, err)
	}

	t.resolved.Store(&resolution{model: model, key: key})
	t.logger.Debug("relation target resolved",
		zap.String("engine", model.Engine),
		zap.String("model", model.Name),
		zap.Strings("key", key.Names()))

	return model, key, nil
}

func (t *Target) lookup() (*schema.Model, error) {
	if t.handle != nil {
		return t.handle, nil
	}
	if t.registry == nil {
		return nil, fmt.Errorf("relation target %s: %w", t.name, ErrNoTarget)
	}
	return t.registry.Resolve(t.name)
}

// KeyDescriptor resolves the target and returns its key descriptor
func (t *Target) KeyDescriptor() (schema.KeyDescriptor, error) {
	_, kd, err := t.Resolve()
	return kd, err
}
