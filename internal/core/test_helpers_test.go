package core

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"gradebook/internal/infra/persistence/memory"
	"gradebook/pkg/domain"
)

var testNow = time.Date(2025, 3, 10, 8, 30, 0, 0, time.UTC)

func sequentialIDs() func() string {
	var (
		mu sync.Mutex
		n  int
	)
	return func() string {
		mu.Lock()
		defer mu.Unlock()
		n++
		return fmt.Sprintf("id-%03d", n)
	}
}

func testOptions(opts ...ServiceOption) []ServiceOption {
	base := []ServiceOption{
		WithClock(func() time.Time { return testNow }),
		WithIDGenerator(sequentialIDs()),
	}
	return append(base, opts...)
}

// newReadyService returns an initialized service over store (a fresh memory
// store when nil).
func newReadyService(t *testing.T, store domain.PersistentStore, opts ...ServiceOption) *Service {
	t.Helper()
	if store == nil {
		store = memory.NewStore()
	}
	svc := NewService(store, testOptions(opts...)...)
	if err := svc.Initialize(context.Background()); err != nil {
		t.Fatalf("initialize: %v", err)
	}
	return svc
}

func num(v float64) *float64 { return &v }

func str(v string) *string { return &v }

func mustGroup(t *testing.T, svc *Service, code string, grade domain.Grade) domain.Group {
	t.Helper()
	g, err := svc.CreateGroup(context.Background(), code, grade)
	if err != nil {
		t.Fatalf("create group %s: %v", code, err)
	}
	return g
}

func mustStudent(t *testing.T, svc *Service, groupID, number, name string) domain.Student {
	t.Helper()
	st, err := svc.CreateStudent(context.Background(), StudentInput{GroupID: groupID, Number: number, Name: name})
	if err != nil {
		t.Fatalf("create student %s: %v", number, err)
	}
	return st
}

func mustLesson(t *testing.T, svc *Service, groupID, date string) domain.Lesson {
	t.Helper()
	l, err := svc.AddLesson(context.Background(), LessonInput{GroupID: groupID, Date: date, Start: "09:00", End: "10:00"})
	if err != nil {
		t.Fatalf("add lesson: %v", err)
	}
	return l
}

var errInjected = errors.New("injected failure")

// flakyStore delegates to a real store and fails selected calls on demand.
type flakyStore struct {
	domain.PersistentStore
	mu         sync.Mutex
	failLoad   bool
	failApply  bool
	failClear  bool
	applyCalls int
	loadRows   *domain.Dataset
}

var _ domain.PersistentStore = (*flakyStore)(nil)

func (f *flakyStore) set(fn func(*flakyStore)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	fn(f)
}

func (f *flakyStore) Load(ctx context.Context) (domain.Dataset, error) {
	f.mu.Lock()
	fail, rows := f.failLoad, f.loadRows
	f.mu.Unlock()
	if fail {
		return domain.Dataset{}, errInjected
	}
	if rows != nil {
		return *rows, nil
	}
	return f.PersistentStore.Load(ctx)
}

func (f *flakyStore) Apply(ctx context.Context, ops []domain.Op) error {
	f.mu.Lock()
	f.applyCalls++
	fail := f.failApply
	f.mu.Unlock()
	if fail {
		return domain.NewStorageError("apply", "", errInjected)
	}
	return f.PersistentStore.Apply(ctx, ops)
}

func (f *flakyStore) Clear(ctx context.Context) error {
	f.mu.Lock()
	fail := f.failClear
	f.mu.Unlock()
	if fail {
		return errInjected
	}
	return f.PersistentStore.Clear(ctx)
}

type metricsCall struct {
	op       string
	success  bool
	duration time.Duration
}

type captureMetricsRecorder struct {
	mu    sync.Mutex
	calls []metricsCall
}

func (c *captureMetricsRecorder) Observe(_ context.Context, op string, success bool, duration time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls = append(c.calls, metricsCall{op: op, success: success, duration: duration})
}

func (c *captureMetricsRecorder) has(op string, success bool) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, call := range c.calls {
		if call.op == op && call.success == success {
			return true
		}
	}
	return false
}

type spanRecord struct {
	op  string
	err error
}

type captureTracer struct {
	mu      sync.Mutex
	started []string
	ended   []spanRecord
}

func (c *captureTracer) Start(ctx context.Context, op string) (context.Context, TraceSpan) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.started = append(c.started, op)
	return ctx, &captureSpan{tracer: c, op: op}
}

func (c *captureTracer) has(op string, success bool) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, record := range c.ended {
		if record.op == op && (record.err == nil) == success {
			return true
		}
	}
	return false
}

type captureSpan struct {
	tracer *captureTracer
	op     string
}

func (s *captureSpan) End(err error) {
	s.tracer.mu.Lock()
	defer s.tracer.mu.Unlock()
	s.tracer.ended = append(s.tracer.ended, spanRecord{op: s.op, err: err})
}
