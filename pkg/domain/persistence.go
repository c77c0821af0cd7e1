package domain

import (
	"context"
	"fmt"
)

// OpKind selects the effect of an Op.
type OpKind uint8

// Supported unit-of-work operations.
const (
	// OpPut inserts or replaces Rows by id.
	OpPut OpKind = iota + 1
	// OpDelete removes IDs. Missing ids are ignored.
	OpDelete
	// OpDeleteWhere removes every row whose Field equals one of Values.
	OpDeleteWhere
)

func (k OpKind) String() string {
	switch k {
	case OpPut:
		return "put"
	case OpDelete:
		return "delete"
	case OpDeleteWhere:
		return "delete_where"
	}
	return fmt.Sprintf("op(%d)", uint8(k))
}

// Op is one step of a unit of work against a single table.
type Op struct {
	Table  Table
	Kind   OpKind
	Rows   []Record
	IDs    []string
	Field  string
	Values []string
}

// Put builds an insert-or-replace step.
func Put(table Table, rows ...Record) Op {
	return Op{Table: table, Kind: OpPut, Rows: rows}
}

// Delete builds a delete-by-id step.
func Delete(table Table, ids ...string) Op {
	return Op{Table: table, Kind: OpDelete, IDs: ids}
}

// DeleteWhere builds a delete-by-foreign-key step.
func DeleteWhere(table Table, field string, values ...string) Op {
	return Op{Table: table, Kind: OpDeleteWhere, Field: field, Values: values}
}

// Empty reports whether the op has nothing to do.
func (o Op) Empty() bool {
	switch o.Kind {
	case OpPut:
		return len(o.Rows) == 0
	case OpDelete:
		return len(o.IDs) == 0
	case OpDeleteWhere:
		return len(o.Values) == 0
	}
	return true
}

// Check verifies the op is well formed: the table exists, rows belong to it
// and DeleteWhere targets the table's foreign key.
func (o Op) Check() error {
	known := false
	for _, t := range Tables {
		if t == o.Table {
			known = true
			break
		}
	}
	if !known {
		return fmt.Errorf("unknown table %q", o.Table)
	}
	switch o.Kind {
	case OpPut:
		for _, r := range o.Rows {
			if r == nil {
				return fmt.Errorf("%s: nil row", o.Table)
			}
			if TableOf(r.RecordKind()) != o.Table {
				return fmt.Errorf("%s: row of kind %s", o.Table, r.RecordKind())
			}
			if r.RecordID() == "" {
				return fmt.Errorf("%s: row without id", o.Table)
			}
		}
	case OpDelete:
	case OpDeleteWhere:
		fk, ok := ForeignKey(o.Table)
		if !ok || fk != o.Field {
			return fmt.Errorf("%s: field %q is not a foreign key index", o.Table, o.Field)
		}
	default:
		return fmt.Errorf("%s: unsupported op %s", o.Table, o.Kind)
	}
	return nil
}

// PersistentStore is the storage adapter contract. Implementations hold no
// business rules: they store records by id, maintain secondary indexes and
// apply a unit of work atomically.
type PersistentStore interface {
	// Load reads every table in one consistent read.
	Load(ctx context.Context) (Dataset, error)
	// ReadAll returns every row of table.
	ReadAll(ctx context.Context, table Table) ([]Record, error)
	// Apply executes ops as a single atomic unit. On error no op is visible.
	Apply(ctx context.Context, ops []Op) error
	// Clear drops every table and recreates it empty.
	Clear(ctx context.Context) error
	Close() error
}
