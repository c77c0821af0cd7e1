package core

import (
	"context"
	"testing"

	"gradebook/internal/infra/persistence/memory"
	"gradebook/pkg/domain"
)

func TestSeedDemo(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	svc := newReadyService(t, store)
	res, err := svc.SeedDemo(ctx, SeedOptions{IncludeLessons: true})
	if err != nil {
		t.Fatalf("seed: %v", err)
	}
	if res.Skipped || len(res.Groups) != 9 || len(res.Students) != 90 || len(res.Lessons) != 9 || len(res.Schedules) != 1 {
		t.Fatalf("unexpected seed result: skipped=%v groups=%d students=%d lessons=%d schedules=%d",
			res.Skipped, len(res.Groups), len(res.Students), len(res.Lessons), len(res.Schedules))
	}
	r := svc.Reader()
	groups := r.Groups()
	if groups[0].Code != "2ASCG1" || groups[8].Code != "3ASCG4" || groups[8].Grade != domain.Grade9th {
		t.Fatalf("unexpected group order %+v", groups)
	}
	if r.SelectedGroupID() != groups[0].ID {
		t.Fatalf("expected first group selected")
	}
	students := r.Students(groups[0].ID)
	if len(students) != 10 || students[0].Number != "01" || students[9].Name != "2ASCG1 Student 10" {
		t.Fatalf("unexpected roster %+v", students)
	}
	lessons := r.Lessons(groups[0].ID)
	if len(lessons) != 1 || lessons[0].Date != "2025-03-10" || lessons[0].StageNotes != domain.DefaultStageNotes {
		t.Fatalf("unexpected lesson %+v", lessons)
	}
	if s, ok := r.GroupSchedule(groups[0].ID); !ok || s.Title != "Demo Timetable" || len(s.Slots) != 5 {
		t.Fatalf("expected demo timetable resolved by code, got %+v", s)
	}
	if got := store.ExportState().Len(); got != 9+90+9+1 {
		t.Fatalf("expected every row persisted, got %d", got)
	}

	again, err := svc.SeedDemo(ctx, SeedOptions{IncludeLessons: true})
	if err != nil || !again.Skipped {
		t.Fatalf("expected second seed skipped, got %+v %v", again.Skipped, err)
	}
	if r.Counts().Groups != 9 {
		t.Fatalf("skipped seed must not add rows")
	}
}

func TestSeedDemoForceReplacesData(t *testing.T) {
	ctx := context.Background()
	svc := newReadyService(t, nil)
	custom := mustGroup(t, svc, "9ZZZ", domain.Grade9th)
	res, err := svc.SeedDemo(ctx, SeedOptions{Force: true})
	if err != nil {
		t.Fatalf("seed: %v", err)
	}
	if len(res.Lessons) != 0 {
		t.Fatalf("expected no lessons, got %d", len(res.Lessons))
	}
	if _, ok := svc.Reader().Group(custom.ID); ok {
		t.Fatalf("forced seed must clear existing groups")
	}
	if c := svc.Reader().Counts(); c.Groups != 9 || c.Lessons != 0 || c.Schedules != 1 {
		t.Fatalf("unexpected counts %+v", c)
	}
}

func TestResetEmptiesButStaysReady(t *testing.T) {
	ctx := context.Background()
	store := &flakyStore{PersistentStore: memory.NewStore()}
	svc := newReadyService(t, store)
	if _, err := svc.SeedDemo(ctx, SeedOptions{IncludeLessons: true}); err != nil {
		t.Fatalf("seed: %v", err)
	}
	store.set(func(f *flakyStore) { f.failClear = true })
	if err := svc.Reset(ctx); !domain.IsStorage(err) {
		t.Fatalf("expected storage error, got %v", err)
	}
	if svc.Reader().Counts().Groups != 9 {
		t.Fatalf("failed reset must keep the cache")
	}
	store.set(func(f *flakyStore) { f.failClear = false })
	if err := svc.Reset(ctx); err != nil {
		t.Fatalf("reset: %v", err)
	}
	if c := svc.Export().Len(); c != 0 {
		t.Fatalf("expected empty export, got %d rows", c)
	}
	if !svc.Status().Ready {
		t.Fatalf("expected store to stay ready")
	}
	if _, err := svc.CreateGroup(ctx, "2ASCG1", domain.Grade8th); err != nil {
		t.Fatalf("create after reset: %v", err)
	}
}
