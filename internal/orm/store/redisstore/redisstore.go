// Package redisstore implements store.Store over Redis hashes: one hash per
// record, one hash field per attribute and relation column, every value in
// its text encoding.
package redisstore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/conduit-lang/relations/internal/orm/record"
	"github.com/conduit-lang/relations/internal/orm/relations"
	"github.com/conduit-lang/relations/internal/orm/schema"
	"github.com/conduit-lang/relations/internal/orm/store"
)

// Config holds Redis connection settings
type Config struct {
	// Addr is the Redis server address (host:port)
	Addr string
	// Password is the Redis password (optional)
	Password string
	// DB is the Redis database number
	DB int
	// Prefix is prepended to every record key
	Prefix string
}

// DefaultConfig returns a default Redis configuration
func DefaultConfig() Config {
	return Config{
		Addr:   "localhost:6379",
		Prefix: "relcol:",
	}
}

// Store keeps records of one engine in Redis
type Store struct {
	client *redis.Client
	engine string
	prefix string
	defs   store.Definitions
	logger *zap.Logger
}

// NewWithConfig connects to Redis and checks the connection
func NewWithConfig(engine string, cfg Config, defs store.Definitions, logger *zap.Logger) (*Store, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("connect redis store %s: %w", engine, err)
	}

	return NewWithClient(client, engine, cfg.Prefix, defs, logger), nil
}

// NewWithClient creates a store on an existing client
func NewWithClient(client *redis.Client, engine, prefix string, defs store.Definitions, logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	if defs == nil {
		defs = store.Definitions{}
	}
	return &Store{client: client, engine: engine, prefix: prefix, defs: defs, logger: logger}
}

// Engine implements store.Store
func (s *Store) Engine() string {
	return s.engine
}

var keyEscaper = strings.NewReplacer(`\`, `\\`, `:`, `\:`)

// Key returns the Redis key of the record of model identified by key
func (s *Store) Key(model *schema.Model, key schema.KeyMapping) (string, error) {
	kd, normalized, err := store.CheckKey(model, key)
	if err != nil {
		return "", err
	}
	parts, err := store.EncodeKey(kd, normalized)
	if err != nil {
		return "", err
	}
	for i, p := range parts {
		parts[i] = keyEscaper.Replace(p)
	}
	return s.prefix + model.Name + ":" + strings.Join(parts, ":"), nil
}

// Get implements store.Store
func (s *Store) Get(ctx context.Context, model *schema.Model, key schema.KeyMapping) (*record.Record, error) {
	rk, err := s.Key(model, key)
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", model.Name, err)
	}

	fields, err := s.client.HGetAll(ctx, rk).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		s.logger.Warn("hgetall failed", zap.String("key", rk), zap.Error(err))
		return nil, fmt.Errorf("get %s: %w", model.Name, err)
	}
	if len(fields) == 0 {
		s.logger.Debug("record not found", zap.String("key", rk))
		return nil, fmt.Errorf("get %s %s: %w", model.Name, key, store.ErrNotFound)
	}

	row := make(map[string]interface{}, len(fields))
	for name, v := range fields {
		row[name] = v
	}
	return record.Decode(s.defs.For(model), row)
}

// Put implements store.Store. The hash is replaced as a whole.
func (s *Store) Put(ctx context.Context, rec *record.Record) error {
	def := rec.Definition()
	model := def.Model()
	if model.Engine != s.engine {
		return fmt.Errorf("put %s: %w: %s", model.Name, store.ErrUnknownEngine, model.Engine)
	}

	key, err := rec.Key()
	if err != nil {
		return fmt.Errorf("put %s: %w", model.Name, err)
	}
	rk, err := s.Key(model, key)
	if err != nil {
		return fmt.Errorf("put %s: %w", model.Name, err)
	}

	fields, err := encodeHash(rec)
	if err != nil {
		return err
	}

	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, rk)
		pipe.HSet(ctx, rk, fields)
		return nil
	})
	if err != nil {
		s.logger.Warn("hset failed", zap.String("key", rk), zap.Error(err))
		return fmt.Errorf("put %s: %w", model.Name, err)
	}

	s.logger.Debug("record stored", zap.String("key", rk))
	return nil
}

// Delete implements store.Store
func (s *Store) Delete(ctx context.Context, model *schema.Model, key schema.KeyMapping) error {
	rk, err := s.Key(model, key)
	if err != nil {
		return fmt.Errorf("delete %s: %w", model.Name, err)
	}

	n, err := s.client.Del(ctx, rk).Result()
	if err != nil {
		return fmt.Errorf("delete %s: %w", model.Name, err)
	}
	if n == 0 {
		return fmt.Errorf("delete %s %s: %w", model.Name, key, store.ErrNotFound)
	}
	return nil
}

// Clear removes every record under the store's prefix
func (s *Store) Clear(ctx context.Context) error {
	iter := s.client.Scan(ctx, 0, s.prefix+"*", 0).Iterator()
	for iter.Next(ctx) {
		if err := s.client.Del(ctx, iter.Val()).Err(); err != nil {
			return err
		}
	}
	return iter.Err()
}

// Close closes the Redis connection
func (s *Store) Close() error {
	return s.client.Close()
}

// encodeHash renders a record as hash fields. Unset attributes and null
// scalar relations are omitted; a null composite relation is stored as {}.
func encodeHash(rec *record.Record) (map[string]interface{}, error) {
	def := rec.Definition()
	model := def.Model()
	fields := make(map[string]interface{})

	for _, f := range model.Fields {
		v, ok := rec.Get(f.Name)
		if !ok {
			continue
		}
		text, err := schema.EncodeText(f.Name, f.Type, v)
		if err != nil {
			return nil, &record.FieldError{Model: model.Name, Field: f.Name, Phase: record.PhaseEncode, Err: err}
		}
		fields[f.Name] = text
	}

	for _, col := range def.Columns() {
		text, ok, err := encodeRelation(col, rec.Relation(col.Name()))
		if err != nil {
			return nil, &record.FieldError{Model: model.Name, Field: col.Name(), Phase: record.PhaseEncode, Err: err}
		}
		if ok {
			fields[col.Name()] = text
		}
	}

	return fields, nil
}

func encodeRelation(col relations.Column, v relations.Value) (string, bool, error) {
	stored, err := col.ToStorage(v)
	if err != nil {
		return "", false, err
	}

	switch s := stored.(type) {
	case nil:
		return "", false, nil
	case schema.KeyMapping:
		b, err := s.MarshalJSON()
		if err != nil {
			return "", false, err
		}
		return string(b), true, nil
	}

	kd, err := col.KeyDescriptor()
	if err != nil {
		return "", false, err
	}
	attr := kd.Attributes[0]
	native, err := schema.DecodeScalar(attr.Name, attr.Type, stored)
	if err != nil {
		return "", false, err
	}
	text, err := schema.EncodeText(attr.Name, attr.Type, native)
	return text, true, err
}

var _ store.Store = (*Store)(nil)
