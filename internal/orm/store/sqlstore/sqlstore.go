// Package sqlstore implements store.Store over database/sql. One row per
// record, one column per attribute and relation column; composite relations
// are stored as JSON text.
package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib" // registers the pgx driver
	"github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3" // registers the sqlite3 driver
	"go.uber.org/zap"

	"github.com/conduit-lang/relations/internal/orm/record"
	"github.com/conduit-lang/relations/internal/orm/schema"
	"github.com/conduit-lang/relations/internal/orm/store"
)

// ErrConstraint is returned when the database rejects a row with an
// integrity constraint violation
var ErrConstraint = errors.New("constraint violation")

// Store is a SQL-backed store for one engine
type Store struct {
	db      *sql.DB
	engine  string
	dialect Dialect
	defs    store.Definitions
	logger  *zap.Logger
}

// Open connects to dsn with the dialect's driver. sqlite pools are held to
// a single connection.
func Open(engine string, dialect Dialect, dsn string, defs store.Definitions, logger *zap.Logger) (*Store, error) {
	db, err := sql.Open(dialect.Driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s store %s: %w", dialect.Name, engine, err)
	}
	if dialect.Name == SQLite.Name {
		// every connection to ":memory:" is a separate database
		db.SetMaxOpenConns(1)
	}
	return New(db, engine, dialect, defs, logger), nil
}

// New wraps an existing connection pool
func New(db *sql.DB, engine string, dialect Dialect, defs store.Definitions, logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	if defs == nil {
		defs = store.Definitions{}
	}
	return &Store{db: db, engine: engine, dialect: dialect, defs: defs, logger: logger}
}

// Engine implements store.Store
func (s *Store) Engine() string {
	return s.engine
}

// Ping checks the connection
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the connection pool
func (s *Store) Close() error {
	return s.db.Close()
}

// keyArgs validates key and returns the key column names with their
// bind arguments in key order
func keyArgs(model *schema.Model, key schema.KeyMapping) ([]string, []interface{}, error) {
	kd, normalized, err := store.CheckKey(model, key)
	if err != nil {
		return nil, nil, err
	}

	names := kd.Names()
	args := make([]interface{}, 0, len(names))
	for _, attr := range kd.Attributes {
		raw, _ := normalized.Get(attr.Name)
		v, err := schema.EncodeScalar(attr.Name, attr.Type, raw)
		if err != nil {
			return nil, nil, err
		}
		args = append(args, v)
	}
	return names, args, nil
}

// Get implements store.Store
func (s *Store) Get(ctx context.Context, model *schema.Model, key schema.KeyMapping) (*record.Record, error) {
	keys, args, err := keyArgs(model, key)
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", model.Name, err)
	}

	def := s.defs.For(model)
	columns := def.StorageColumns()
	query := s.dialect.SelectByKey(model.TableName, columns, keys)

	row, err := scanRow(s.db.QueryRowContext(ctx, query, args...), columns)
	if err != nil {
		err = convertDBError(err)
		if errors.Is(err, store.ErrNotFound) {
			s.logger.Debug("record not found", zap.String("model", model.Name), zap.Stringer("key", key))
		} else {
			s.logger.Warn("select failed", zap.String("model", model.Name), zap.Error(err))
		}
		return nil, fmt.Errorf("get %s %s: %w", model.Name, key, err)
	}
	return record.Decode(def, row)
}

// Put implements store.Store as an upsert on the primary key
func (s *Store) Put(ctx context.Context, rec *record.Record) error {
	def := rec.Definition()
	model := def.Model()
	if model.Engine != s.engine {
		return fmt.Errorf("put %s: %w: %s", model.Name, store.ErrUnknownEngine, model.Engine)
	}

	kd, err := schema.BuildKeyDescriptor(model)
	if err != nil {
		return fmt.Errorf("put %s: %w", model.Name, err)
	}
	if _, err := rec.Key(); err != nil {
		return fmt.Errorf("put %s: %w", model.Name, err)
	}

	row, err := rec.Encode()
	if err != nil {
		return err
	}

	columns := def.StorageColumns()
	args := make([]interface{}, len(columns))
	for i, c := range columns {
		args[i] = row[c]
	}

	query := s.dialect.Upsert(model.TableName, columns, kd.Names())
	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		err = convertDBError(err)
		s.logger.Warn("upsert failed", zap.String("model", model.Name), zap.Error(err))
		return fmt.Errorf("put %s: %w", model.Name, err)
	}

	s.logger.Debug("record stored", zap.String("model", model.Name), zap.String("engine", s.engine))
	return nil
}

// Delete implements store.Store
func (s *Store) Delete(ctx context.Context, model *schema.Model, key schema.KeyMapping) error {
	keys, args, err := keyArgs(model, key)
	if err != nil {
		return fmt.Errorf("delete %s: %w", model.Name, err)
	}

	result, err := s.db.ExecContext(ctx, s.dialect.DeleteByKey(model.TableName, keys), args...)
	if err != nil {
		return fmt.Errorf("delete %s: %w", model.Name, convertDBError(err))
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete %s: %w", model.Name, err)
	}
	if n == 0 {
		return fmt.Errorf("delete %s %s: %w", model.Name, key, store.ErrNotFound)
	}
	return nil
}

// CreateTable issues a CREATE TABLE IF NOT EXISTS for a definition. Opening
// a sqlite engine calls it for every model; postgres schemas are migrated
// outside relcol.
func (s *Store) CreateTable(ctx context.Context, def *record.Definition) error {
	model := def.Model()
	kd, err := schema.BuildKeyDescriptor(model)
	if err != nil {
		return err
	}

	var cols []string
	for _, f := range model.Fields {
		cols = append(cols, fmt.Sprintf("%s %s", s.dialect.Quote(f.Name), sqlType(f.Type)))
	}
	for _, col := range def.Columns() {
		cols = append(cols, fmt.Sprintf("%s TEXT", s.dialect.Quote(col.Name())))
	}
	cols = append(cols, fmt.Sprintf("PRIMARY KEY (%s)", strings.Join(s.dialect.quoteAll(kd.Names()), ", ")))

	query := fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (%s)", s.dialect.Quote(model.TableName), strings.Join(cols, ", "))
	if _, err := s.db.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("create table %s: %w", model.TableName, err)
	}
	return nil
}

func sqlType(t schema.PrimitiveType) string {
	switch t {
	case schema.TypeInt:
		return "INTEGER"
	case schema.TypeBigInt:
		return "BIGINT"
	case schema.TypeFloat:
		return "DOUBLE PRECISION"
	case schema.TypeBool:
		return "BOOLEAN"
	case schema.TypeTimestamp:
		return "TIMESTAMP"
	case schema.TypeDate:
		return "DATE"
	default:
		return "TEXT"
	}
}

// scanRow scans a single row with known column order
func scanRow(row *sql.Row, columns []string) (map[string]interface{}, error) {
	values := make([]interface{}, len(columns))
	ptrs := make([]interface{}, len(columns))
	for i := range values {
		ptrs[i] = &values[i]
	}

	if err := row.Scan(ptrs...); err != nil {
		return nil, err
	}

	out := make(map[string]interface{}, len(columns))
	for i, col := range columns {
		out[col] = values[i]
	}
	return out, nil
}

// convertDBError maps driver errors onto store errors
func convertDBError(err error) error {
	if err == nil {
		return nil
	}

	if errors.Is(err, sql.ErrNoRows) {
		return store.ErrNotFound
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && strings.HasPrefix(pgErr.Code, "23") {
		return fmt.Errorf("%w: %s", ErrConstraint, pgErr.Message)
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code.Class() == "23" {
		return fmt.Errorf("%w: %s", ErrConstraint, pqErr.Message)
	}

	return err
}

var _ store.Store = (*Store)(nil)
