package config

import (
	"context"
	"fmt"
	"sort"

	"go.uber.org/zap"

	"github.com/conduit-lang/relations/internal/orm/store"
	"github.com/conduit-lang/relations/internal/orm/store/memory"
	"github.com/conduit-lang/relations/internal/orm/store/redisstore"
	"github.com/conduit-lang/relations/internal/orm/store/sqlstore"
)

// Stores is the set of opened engine stores and their cleanup
type Stores struct {
	Set     store.Set
	closers []func() error
}

// Close releases every connection opened by OpenStores
func (s *Stores) Close() error {
	var first error
	for _, c := range s.closers {
		if err := c(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// OpenStores connects one store per configured engine. Without declared
// engines the default engine is served from memory.
func OpenStores(ctx context.Context, cfg *Config, s *Schema, logger *zap.Logger) (*Stores, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	engines := cfg.Engines
	if len(engines) == 0 {
		engines = []EngineConfig{{Name: DefaultEngine, Kind: KindMemory}}
	}

	out := &Stores{Set: store.Set{}}
	for _, ec := range engines {
		st, closer, err := openStore(ctx, ec, s.Definitions[ec.Name], logger.With(zap.String("engine", ec.Name)))
		if err != nil {
			out.Close()
			return nil, err
		}
		out.Set[ec.Name] = st
		if closer != nil {
			out.closers = append(out.closers, closer)
		}
		logger.Info("store opened", zap.String("engine", ec.Name), zap.String("kind", ec.Kind))
	}
	return out, nil
}

func openStore(ctx context.Context, ec EngineConfig, defs store.Definitions, logger *zap.Logger) (store.Store, func() error, error) {
	switch ec.Kind {
	case KindMemory, "":
		return memory.New(ec.Name, defs, logger), nil, nil

	case KindRedis:
		rc := redisstore.DefaultConfig()
		if ec.Redis.Addr != "" {
			rc.Addr = ec.Redis.Addr
		}
		if ec.Redis.Prefix != "" {
			rc.Prefix = ec.Redis.Prefix
		}
		rc.Password = ec.Redis.Password
		rc.DB = ec.Redis.DB
		st, err := redisstore.NewWithConfig(ec.Name, rc, defs, logger)
		if err != nil {
			return nil, nil, err
		}
		return st, st.Close, nil

	case KindPostgres, KindPQ, KindSQLite:
		dialect, err := sqlstore.DialectFor(ec.Kind)
		if err != nil {
			return nil, nil, err
		}
		st, err := sqlstore.Open(ec.Name, dialect, ec.DSN, defs, logger)
		if err != nil {
			return nil, nil, err
		}
		if err := st.Ping(ctx); err != nil {
			st.Close()
			return nil, nil, fmt.Errorf("engine %s: %w", ec.Name, err)
		}
		if ec.Kind == KindSQLite {
			if err := createTables(ctx, st, defs); err != nil {
				st.Close()
				return nil, nil, fmt.Errorf("engine %s: %w", ec.Name, err)
			}
		}
		return st, st.Close, nil
	}

	return nil, nil, fmt.Errorf("engine %s: unknown kind %q", ec.Name, ec.Kind)
}

// createTables creates the table of every model of a sqlite engine. sqlite
// files are local to relcol, so nothing else migrates them.
func createTables(ctx context.Context, st *sqlstore.Store, defs store.Definitions) error {
	names := make([]string, 0, len(defs))
	for name := range defs {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		if err := st.CreateTable(ctx, defs[name]); err != nil {
			return err
		}
	}
	return nil
}
