// Package storetest holds the behavioural contract every domain.PersistentStore
// implementation must satisfy. Adapter packages run it from their own tests.
package storetest

import (
	"context"
	"reflect"
	"testing"

	"gradebook/pkg/domain"
)

// Factory returns a fresh, empty store. Cleanup is the caller's business
// (t.Cleanup inside the factory is the usual pattern).
type Factory func(t *testing.T) domain.PersistentStore

func value(v float64) *float64 { return &v }

// Fixture returns a small dataset spanning every table.
func Fixture() domain.Dataset {
	return domain.Dataset{
		Groups: []domain.Group{
			{ID: "g1", Code: "2ASCG1", Grade: domain.Grade8th, CreatedAt: 1},
			{ID: "g2", Code: "3ASCG1", Grade: domain.Grade9th, ScheduleID: "w1", CreatedAt: 2},
		},
		Students: []domain.Student{
			{ID: "s1", GroupID: "g1", Number: "01", Name: "Alice", CreatedAt: 1},
			{ID: "s2", GroupID: "g1", Number: "02", Name: "Bilal", NationalID: "N-2", CreatedAt: 1},
			{ID: "s3", GroupID: "g2", Number: "01", Name: "Chen", CreatedAt: 2},
		},
		Marks: []domain.Mark{
			{ID: "m1", StudentID: "s1", Kind: domain.Quiz1, Value: value(9), Max: 10, Date: "2025-03-10"},
			{ID: "m2", StudentID: "s1", Kind: domain.Final, Max: 20},
			{ID: "m3", StudentID: "s2", Kind: domain.Quiz1, Value: value(0), Max: 10},
			{ID: "m4", StudentID: "s3", Kind: domain.Quiz1, Value: value(7), Max: 10},
		},
		Observations: []domain.Observation{
			{ID: "o1", StudentID: "s1", Text: "Helpful", Date: "2025-03-10"},
			{ID: "o2", StudentID: "s3", Text: "Late", Date: "2025-03-11"},
		},
		Lessons: []domain.Lesson{
			{ID: "l1", GroupID: "g1", Date: "2025-03-10", Start: "09:00", End: "10:00", StageNotes: domain.DefaultStageNotes, Attachments: []string{"lessons/l1/a.pdf"}},
			{ID: "l2", GroupID: "g2", Date: "2025-03-11", Start: "10:00", End: "11:00", Theme: "Food", StageNotes: domain.DefaultStageNotes},
		},
		Schedules: []domain.WeeklySchedule{
			{ID: "w1", Title: "Week", Slots: []domain.WeeklySlot{{Day: 1, Start: "09:00", End: "10:00", GroupCode: "3ASCG1"}}, SourcePDFName: "week.pdf", CreatedAt: 5},
		},
	}
}

// Seed writes ds in one unit of work.
func Seed(t *testing.T, store domain.PersistentStore, ds domain.Dataset) {
	t.Helper()
	var ops []domain.Op
	for _, table := range domain.Tables {
		if rows := ds.Records(table); len(rows) > 0 {
			ops = append(ops, domain.Put(table, rows...))
		}
	}
	if err := store.Apply(context.Background(), ops); err != nil {
		t.Fatalf("seed: %v", err)
	}
}

func ids(rows []domain.Record) []string {
	out := make([]string, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.RecordID())
	}
	return out
}

// Run executes the contract against stores produced by newStore.
func Run(t *testing.T, newStore Factory) {
	t.Run("empty load", func(t *testing.T) {
		ds, err := newStore(t).Load(context.Background())
		if err != nil {
			t.Fatalf("load: %v", err)
		}
		if ds.Len() != 0 {
			t.Fatalf("expected empty dataset, got %d rows", ds.Len())
		}
	})

	t.Run("put and load round trip", func(t *testing.T) {
		store := newStore(t)
		want := Fixture()
		Seed(t, store, want)
		got, err := store.Load(context.Background())
		if err != nil {
			t.Fatalf("load: %v", err)
		}
		if !reflect.DeepEqual(got, want) {
			t.Fatalf("round trip mismatch\nwant %+v\ngot  %+v", want, got)
		}
	})

	t.Run("put replaces by id", func(t *testing.T) {
		store := newStore(t)
		Seed(t, store, Fixture())
		ctx := context.Background()
		updated := domain.Student{ID: "s1", GroupID: "g1", Number: "01", Name: "Alice B.", CreatedAt: 1}
		if err := store.Apply(ctx, []domain.Op{domain.Put(domain.TableStudents, updated)}); err != nil {
			t.Fatalf("apply: %v", err)
		}
		rows, err := store.ReadAll(ctx, domain.TableStudents)
		if err != nil {
			t.Fatalf("read: %v", err)
		}
		if len(rows) != 3 {
			t.Fatalf("expected 3 students, got %d", len(rows))
		}
		for _, r := range rows {
			if r.RecordID() == "s1" && r.(domain.Student).Name != "Alice B." {
				t.Fatalf("expected replaced row, got %+v", r)
			}
		}
	})

	t.Run("delete and delete where", func(t *testing.T) {
		store := newStore(t)
		Seed(t, store, Fixture())
		ctx := context.Background()
		err := store.Apply(ctx, []domain.Op{
			domain.DeleteWhere(domain.TableMarks, domain.FieldStudentID, "s1", "s2"),
			domain.DeleteWhere(domain.TableObservations, domain.FieldStudentID, "s1", "s2"),
			domain.DeleteWhere(domain.TableStudents, domain.FieldGroupID, "g1"),
			domain.DeleteWhere(domain.TableLessons, domain.FieldGroupID, "g1"),
			domain.Delete(domain.TableGroups, "g1", "missing"),
		})
		if err != nil {
			t.Fatalf("apply: %v", err)
		}
		ds, err := store.Load(ctx)
		if err != nil {
			t.Fatalf("load: %v", err)
		}
		checks := map[domain.Table][]string{
			domain.TableGroups:       {"g2"},
			domain.TableStudents:     {"s3"},
			domain.TableMarks:        {"m4"},
			domain.TableObservations: {"o2"},
			domain.TableLessons:      {"l2"},
			domain.TableSchedules:    {"w1"},
		}
		for table, want := range checks {
			if got := ids(ds.Records(table)); !reflect.DeepEqual(got, want) {
				t.Fatalf("%s: expected %v, got %v", table, want, got)
			}
		}
	})

	t.Run("malformed unit of work has no effect", func(t *testing.T) {
		store := newStore(t)
		Seed(t, store, Fixture())
		ctx := context.Background()
		err := store.Apply(ctx, []domain.Op{
			domain.Delete(domain.TableGroups, "g1"),
			domain.DeleteWhere(domain.TableGroups, domain.FieldCode, "3ASCG1"),
		})
		if err == nil {
			t.Fatalf("expected error")
		}
		if !domain.IsStorage(err) {
			t.Fatalf("expected storage error, got %T %v", err, err)
		}
		rows, err := store.ReadAll(ctx, domain.TableGroups)
		if err != nil {
			t.Fatalf("read: %v", err)
		}
		if len(rows) != 2 {
			t.Fatalf("expected untouched groups, got %v", ids(rows))
		}
	})

	t.Run("clear", func(t *testing.T) {
		store := newStore(t)
		Seed(t, store, Fixture())
		ctx := context.Background()
		if err := store.Clear(ctx); err != nil {
			t.Fatalf("clear: %v", err)
		}
		ds, err := store.Load(ctx)
		if err != nil {
			t.Fatalf("load: %v", err)
		}
		if ds.Len() != 0 {
			t.Fatalf("expected empty store after clear, got %d rows", ds.Len())
		}
		Seed(t, store, Fixture())
		if ds, _ := store.Load(ctx); ds.Len() != Fixture().Len() {
			t.Fatalf("expected store usable after clear")
		}
	})
}
