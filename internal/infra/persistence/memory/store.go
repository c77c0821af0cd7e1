// Package memory provides an in-memory implementation of the gradebook
// persistent store used for tests and ephemeral environments.
package memory

import (
	"context"
	"errors"
	"sort"
	"sync"

	"gradebook/pkg/domain"
)

// Compile-time contract assertion ensuring Store adheres to the domain persistence interface.
var _ domain.PersistentStore = (*Store)(nil)

// ErrClosed is returned by every operation after Close.
var ErrClosed = errors.New("memory store closed")

type table map[string]domain.Record

type memoryState map[domain.Table]table

func newMemoryState() memoryState {
	st := make(memoryState, len(domain.Tables))
	for _, t := range domain.Tables {
		st[t] = make(table)
	}
	return st
}

// Store keeps one map per table. A unit of work copies the tables it touches,
// applies every op to the copies and swaps them in only when all succeed.
type Store struct {
	mu     sync.RWMutex
	state  memoryState
	closed bool
}

// NewStore constructs an empty in-memory store.
func NewStore() *Store {
	return &Store{state: newMemoryState()}
}

// ExportState clones the current store state.
func (s *Store) ExportState() domain.Dataset {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.dataset()
}

// ImportState replaces the store state with the provided dataset.
func (s *Store) ImportState(ds domain.Dataset) {
	st := newMemoryState()
	for _, t := range domain.Tables {
		for _, r := range ds.Records(t) {
			st[t][r.RecordID()] = domain.CloneRecord(r)
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = st
}

func (s *Store) dataset() domain.Dataset {
	var ds domain.Dataset
	for _, t := range domain.Tables {
		for _, r := range s.sortedRows(t) {
			ds.Add(r)
		}
	}
	return ds
}

func (s *Store) sortedRows(t domain.Table) []domain.Record {
	rows := make([]domain.Record, 0, len(s.state[t]))
	for _, r := range s.state[t] {
		rows = append(rows, domain.CloneRecord(r))
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].RecordID() < rows[j].RecordID() })
	return rows
}

// Load implements domain.PersistentStore.
func (s *Store) Load(ctx context.Context) (domain.Dataset, error) {
	if err := ctx.Err(); err != nil {
		return domain.Dataset{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return domain.Dataset{}, domain.NewStorageError("load", "", ErrClosed)
	}
	return s.dataset(), nil
}

// ReadAll implements domain.PersistentStore.
func (s *Store) ReadAll(ctx context.Context, t domain.Table) ([]domain.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, domain.NewStorageError("read", t, ErrClosed)
	}
	if _, ok := s.state[t]; !ok {
		return nil, domain.NewStorageError("read", t, errors.New("unknown table"))
	}
	return s.sortedRows(t), nil
}

// Apply implements domain.PersistentStore.
func (s *Store) Apply(ctx context.Context, ops []domain.Op) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	for _, op := range ops {
		if err := op.Check(); err != nil {
			return domain.NewStorageError("apply", op.Table, err)
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return domain.NewStorageError("apply", "", ErrClosed)
	}

	touched := make(map[domain.Table]table)
	working := func(t domain.Table) table {
		if cp, ok := touched[t]; ok {
			return cp
		}
		cp := make(table, len(s.state[t]))
		for id, r := range s.state[t] {
			cp[id] = r
		}
		touched[t] = cp
		return cp
	}

	for _, op := range ops {
		rows := working(op.Table)
		switch op.Kind {
		case domain.OpPut:
			for _, r := range op.Rows {
				rows[r.RecordID()] = domain.CloneRecord(r)
			}
		case domain.OpDelete:
			for _, id := range op.IDs {
				delete(rows, id)
			}
		case domain.OpDeleteWhere:
			match := make(map[string]struct{}, len(op.Values))
			for _, v := range op.Values {
				match[v] = struct{}{}
			}
			for id, r := range rows {
				if _, ok := match[r.IndexValue(op.Field)]; ok {
					delete(rows, id)
				}
			}
		}
	}

	for t, rows := range touched {
		s.state[t] = rows
	}
	return nil
}

// Clear implements domain.PersistentStore.
func (s *Store) Clear(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return domain.NewStorageError("clear", "", ErrClosed)
	}
	s.state = newMemoryState()
	return nil
}

// Close implements domain.PersistentStore.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}
