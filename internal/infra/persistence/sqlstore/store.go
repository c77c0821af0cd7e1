// Package sqlstore implements domain.PersistentStore over database/sql. Each
// entity kind gets its own table keyed by id, with the indexed fields copied
// into real columns next to the JSON payload. Engine specifics live in a
// Dialect supplied by the sqlite and postgres packages.
package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"

	"gradebook/pkg/domain"
)

var _ domain.PersistentStore = (*Store)(nil)

// Store is a database/sql backed persistent store.
type Store struct {
	db      *sql.DB
	dialect Dialect
	mu      sync.Mutex
}

// New wraps db and creates any missing tables and indexes.
func New(ctx context.Context, db *sql.DB, dialect Dialect) (*Store, error) {
	if db == nil {
		return nil, errors.New("sqlstore: nil db")
	}
	if dialect.Placeholder == nil || dialect.PayloadType == "" {
		return nil, fmt.Errorf("sqlstore: incomplete dialect %q", dialect.Name)
	}
	s := &Store{db: db, dialect: dialect}
	for _, stmt := range dialect.createStatements() {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return nil, domain.NewStorageError("migrate", "", fmt.Errorf("execute ddl: %w", err))
		}
	}
	return s, nil
}

// DB exposes the underlying sql.DB for integration testing hooks.
func (s *Store) DB() *sql.DB { return s.db }

// Dialect returns the dialect the store was opened with.
func (s *Store) Dialect() Dialect { return s.dialect }

// Load implements domain.PersistentStore. Every table is read inside one
// transaction.
func (s *Store) Load(ctx context.Context) (domain.Dataset, error) {
	var ds domain.Dataset
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return domain.Dataset{}, domain.NewStorageError("load", "", fmt.Errorf("begin tx: %w", err))
	}
	defer func() { _ = tx.Rollback() }()
	for _, table := range domain.Tables {
		rows, err := readTable(ctx, tx, table)
		if err != nil {
			return domain.Dataset{}, err
		}
		for _, r := range rows {
			ds.Add(r)
		}
	}
	if err := tx.Commit(); err != nil {
		return domain.Dataset{}, domain.NewStorageError("load", "", fmt.Errorf("commit: %w", err))
	}
	return ds, nil
}

// ReadAll implements domain.PersistentStore.
func (s *Store) ReadAll(ctx context.Context, table domain.Table) ([]domain.Record, error) {
	if _, ok := schemaFor(table); !ok {
		return nil, domain.NewStorageError("read", table, errors.New("unknown table"))
	}
	return readTable(ctx, s.db, table)
}

type queryer interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

func readTable(ctx context.Context, q queryer, table domain.Table) ([]domain.Record, error) {
	rows, err := q.QueryContext(ctx, selectStatement(table))
	if err != nil {
		return nil, domain.NewStorageError("read", table, err)
	}
	defer func() { _ = rows.Close() }()
	var out []domain.Record
	for rows.Next() {
		var payload []byte
		if err := rows.Scan(&payload); err != nil {
			return nil, domain.NewStorageError("read", table, fmt.Errorf("scan: %w", err))
		}
		rec, err := domain.DecodeRecord(table, payload)
		if err != nil {
			return nil, domain.NewStorageError("read", table, err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.NewStorageError("read", table, fmt.Errorf("iterate: %w", err))
	}
	return out, nil
}

// Apply implements domain.PersistentStore. The whole unit of work runs in
// one transaction that is rolled back on the first failure.
func (s *Store) Apply(ctx context.Context, ops []domain.Op) error {
	for _, op := range ops {
		if err := op.Check(); err != nil {
			return domain.NewStorageError("apply", op.Table, err)
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return domain.NewStorageError("apply", "", fmt.Errorf("begin tx: %w", err))
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()
	for _, op := range ops {
		if err := s.exec(ctx, tx, op); err != nil {
			return domain.NewStorageError("apply", op.Table, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return domain.NewStorageError("apply", "", fmt.Errorf("commit: %w", err))
	}
	committed = true
	return nil
}

func (s *Store) exec(ctx context.Context, tx *sql.Tx, op domain.Op) error {
	ts, ok := schemaFor(op.Table)
	if !ok {
		return fmt.Errorf("unknown table %q", op.Table)
	}
	switch op.Kind {
	case domain.OpPut:
		stmt := s.dialect.upsertStatement(ts)
		for _, r := range op.Rows {
			payload, err := domain.EncodeRecord(r)
			if err != nil {
				return fmt.Errorf("encode %s: %w", r.RecordID(), err)
			}
			args := []any{r.RecordID()}
			for _, c := range ts.columns {
				args = append(args, r.IndexValue(c.field))
			}
			args = append(args, payload)
			if _, err := tx.ExecContext(ctx, stmt, args...); err != nil {
				return fmt.Errorf("upsert %s: %w", r.RecordID(), err)
			}
		}
	case domain.OpDelete:
		stmt := s.dialect.deleteStatement(op.Table, "id")
		for _, id := range op.IDs {
			if _, err := tx.ExecContext(ctx, stmt, id); err != nil {
				return fmt.Errorf("delete %s: %w", id, err)
			}
		}
	case domain.OpDeleteWhere:
		col, ok := ts.columnFor(op.Field)
		if !ok {
			return fmt.Errorf("field %q has no column", op.Field)
		}
		stmt := s.dialect.deleteStatement(op.Table, col)
		for _, v := range op.Values {
			if _, err := tx.ExecContext(ctx, stmt, v); err != nil {
				return fmt.Errorf("delete where %s=%s: %w", col, v, err)
			}
		}
	}
	return nil
}

// Clear implements domain.PersistentStore: every table is dropped and
// recreated in one transaction.
func (s *Store) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return domain.NewStorageError("clear", "", fmt.Errorf("begin tx: %w", err))
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()
	stmts := append(s.dialect.dropStatements(), s.dialect.createStatements()...)
	for _, stmt := range stmts {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return domain.NewStorageError("clear", "", fmt.Errorf("execute ddl: %w", err))
		}
	}
	if err := tx.Commit(); err != nil {
		return domain.NewStorageError("clear", "", fmt.Errorf("commit: %w", err))
	}
	committed = true
	return nil
}

// Close implements domain.PersistentStore.
func (s *Store) Close() error {
	return s.db.Close()
}
