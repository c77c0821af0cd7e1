// Package core implements the gradebook entity store: the single authority
// through which groups, students, marks, observations, lessons and
// timetables are mutated. Each operation validates its input, plans the full
// set of affected rows including cascades, commits them as one unit of work
// to the persistent store and only then applies the same unit of work to the
// in-memory state cache.
package core

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"gradebook/internal/blob"
	"gradebook/internal/state"
	"gradebook/pkg/domain"
)

var (
	// ErrNotReady is returned by mutations attempted before a successful Initialize.
	ErrNotReady = errors.New("entity store not initialized")
	// ErrNoBlobStore is returned by attachment operations when no blob store is configured.
	ErrNoBlobStore = errors.New("no blob store configured")
)

// Status describes the initialization state.
type Status struct {
	Ready bool
	// Err holds the last Initialize failure while not ready.
	Err error
}

// Service is the entity store.
type Service struct {
	store   domain.PersistentStore
	blobs   blob.Store
	logger  *zap.Logger
	metrics MetricsRecorder
	tracer  Tracer
	now     func() time.Time
	newID   func() string

	// mu serializes mutations so that every commit is followed by its cache
	// update before the next mutation plans against the cache.
	mu      sync.Mutex
	cache   *state.Cache
	ready   bool
	initErr error
}

// ServiceOption customizes a Service.
type ServiceOption func(*Service)

// WithLogger sets the structured logger; the default discards everything.
func WithLogger(logger *zap.Logger) ServiceOption {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithMetricsRecorder reports every operation to recorder.
func WithMetricsRecorder(recorder MetricsRecorder) ServiceOption {
	return func(s *Service) {
		if recorder != nil {
			s.metrics = recorder
		}
	}
}

// WithTracer wraps every operation in a span from tracer.
func WithTracer(tracer Tracer) ServiceOption {
	return func(s *Service) {
		if tracer != nil {
			s.tracer = tracer
		}
	}
}

// WithClock overrides the time source used for createdAt and default dates.
func WithClock(now func() time.Time) ServiceOption {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// WithIDGenerator overrides the id source (uuid v4 by default).
func WithIDGenerator(newID func() string) ServiceOption {
	return func(s *Service) {
		if newID != nil {
			s.newID = newID
		}
	}
}

// WithBlobStore enables lesson attachments.
func WithBlobStore(store blob.Store) ServiceOption {
	return func(s *Service) { s.blobs = store }
}

// NewService constructs an entity store over store. Call Initialize before
// any mutation.
func NewService(store domain.PersistentStore, opts ...ServiceOption) *Service {
	s := &Service{
		store:   store,
		logger:  zap.NewNop(),
		metrics: noopMetrics{},
		tracer:  noopTracer{},
		now:     time.Now,
		newID:   uuid.NewString,
		cache:   state.New(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Store returns the underlying persistent store.
func (s *Service) Store() domain.PersistentStore { return s.store }

// Reader returns the read-only projection of the cache. It is safe to read
// between and during operations; every read observes a committed state.
func (s *Service) Reader() state.Reader { return s.cache }

// Status reports whether the store is ready and the last load failure.
func (s *Service) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ready {
		return Status{Ready: true}
	}
	return Status{Err: s.initErr}
}

// Initialize loads every table into the cache. It is a no-op once ready. A
// failure leaves the store not ready with the error recorded and the cache
// untouched, so the call can be retried.
func (s *Service) Initialize(ctx context.Context) error {
	return s.run(ctx, "initialize", func(ctx context.Context) error {
		s.mu.Lock()
		defer s.mu.Unlock()
		if s.ready {
			return nil
		}
		ds, err := s.store.Load(ctx)
		if err == nil {
			err = validateDataset(ds)
		}
		if err != nil {
			s.initErr = err
			s.logger.Error("entity store initialization failed", zap.Error(err))
			return err
		}
		s.cache.Replace(ds)
		s.ready = true
		s.initErr = nil
		s.logger.Info("entity store ready", zap.Int("rows", ds.Len()))
		return nil
	})
}

func validateDataset(ds domain.Dataset) error {
	for _, table := range domain.Tables {
		for _, r := range ds.Records(table) {
			if err := domain.ValidateRecord(r); err != nil {
				return domain.NewStorageError("load", table, fmt.Errorf("corrupt row %s: %w", r.RecordID(), err))
			}
		}
	}
	return nil
}

// run wraps fn with tracing, metrics and logging under the operation name.
func (s *Service) run(ctx context.Context, op string, fn func(context.Context) error, fields ...zap.Field) error {
	started := time.Now()
	ctx, span := s.tracer.Start(ctx, op)
	err := fn(ctx)
	span.End(err)
	elapsed := time.Since(started)
	s.metrics.Observe(ctx, op, err == nil, elapsed)
	fields = append(fields, zap.String("operation", op), zap.Duration("duration", elapsed))
	if err != nil {
		s.logger.Warn("operation failed", append(fields, zap.String("error_kind", errorKind(err)), zap.Error(err))...)
		return err
	}
	s.logger.Debug("operation completed", fields...)
	return nil
}

// mutate runs fn under the writer lock once the store is ready.
func (s *Service) mutate(ctx context.Context, op string, fn func(context.Context) error, fields ...zap.Field) error {
	return s.run(ctx, op, func(ctx context.Context) error {
		s.mu.Lock()
		defer s.mu.Unlock()
		if !s.ready {
			return ErrNotReady
		}
		return fn(ctx)
	}, fields...)
}

// commit persists the unit of work and mirrors it into the cache. The cache
// is only touched once the store accepted every op.
func (s *Service) commit(ctx context.Context, ops ...domain.Op) error {
	work := make([]domain.Op, 0, len(ops))
	for _, op := range ops {
		if !op.Empty() {
			work = append(work, op)
		}
	}
	if len(work) == 0 {
		return nil
	}
	if err := s.store.Apply(ctx, work); err != nil {
		return domain.NewStorageError("apply", "", err)
	}
	mustApply("cache apply", s.cache.Apply(work))
	return nil
}

// mustApply panics when the cache rejects a unit of work the store already
// committed; the two would otherwise diverge.
func mustApply(op string, err error) {
	if err != nil {
		panic(fmt.Errorf("core: %s: %w", op, err))
	}
}

func (s *Service) createdAt() int64 { return s.now().UnixMilli() }

func (s *Service) today() string { return domain.ISODate(s.now()) }

func errorKind(err error) string {
	switch {
	case domain.IsValidation(err):
		return "validation"
	case domain.IsNotFound(err):
		return "not_found"
	case domain.IsStorage(err):
		return "storage"
	case errors.Is(err, ErrNotReady):
		return "not_ready"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "canceled"
	}
	return "other"
}
