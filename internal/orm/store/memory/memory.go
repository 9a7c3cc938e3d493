// Package memory provides an in-process Store, used by tests and as the
// default engine when nothing else is configured.
package memory

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/conduit-lang/relations/internal/orm/record"
	"github.com/conduit-lang/relations/internal/orm/schema"
	"github.com/conduit-lang/relations/internal/orm/store"
)

// Store keeps encoded rows in memory, keyed by model and primary key
type Store struct {
	engine string
	defs   store.Definitions
	rows   map[string]map[string]interface{}
	logger *zap.Logger
	mu     sync.RWMutex
}

// New creates an empty in-memory store for engine
func New(engine string, defs store.Definitions, logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	if defs == nil {
		defs = store.Definitions{}
	}
	return &Store{
		engine: engine,
		defs:   defs,
		rows:   make(map[string]map[string]interface{}),
		logger: logger,
	}
}

// Engine implements store.Store
func (s *Store) Engine() string {
	return s.engine
}

func (s *Store) rowKey(model *schema.Model, key schema.KeyMapping) (string, error) {
	kd, normalized, err := store.CheckKey(model, key)
	if err != nil {
		return "", err
	}
	parts, err := store.EncodeKey(kd, normalized)
	if err != nil {
		return "", err
	}
	return model.Name + "\x00" + strings.Join(parts, "\x00"), nil
}

// Get implements store.Store
func (s *Store) Get(ctx context.Context, model *schema.Model, key schema.KeyMapping) (*record.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	rk, err := s.rowKey(model, key)
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", model.Name, err)
	}

	s.mu.RLock()
	row, ok := s.rows[rk]
	s.mu.RUnlock()

	if !ok {
		s.logger.Debug("record not found", zap.String("model", model.Name), zap.Stringer("key", key))
		return nil, fmt.Errorf("get %s %s: %w", model.Name, key, store.ErrNotFound)
	}
	return record.Decode(s.defs.For(model), row)
}

// Put implements store.Store
func (s *Store) Put(ctx context.Context, rec *record.Record) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	model := rec.Definition().Model()
	if model.Engine != s.engine {
		return fmt.Errorf("put %s: %w: %s", model.Name, store.ErrUnknownEngine, model.Engine)
	}

	key, err := rec.Key()
	if err != nil {
		return fmt.Errorf("put %s: %w", model.Name, err)
	}
	rk, err := s.rowKey(model, key)
	if err != nil {
		return fmt.Errorf("put %s: %w", model.Name, err)
	}
	row, err := rec.Encode()
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.rows[rk] = row
	s.mu.Unlock()

	s.logger.Debug("record stored", zap.String("model", model.Name), zap.Stringer("key", key))
	return nil
}

// Delete implements store.Store
func (s *Store) Delete(ctx context.Context, model *schema.Model, key schema.KeyMapping) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	rk, err := s.rowKey(model, key)
	if err != nil {
		return fmt.Errorf("delete %s: %w", model.Name, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.rows[rk]; !ok {
		return fmt.Errorf("delete %s %s: %w", model.Name, key, store.ErrNotFound)
	}
	delete(s.rows, rk)
	return nil
}

// Len returns the number of stored rows
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.rows)
}

var _ store.Store = (*Store)(nil)
