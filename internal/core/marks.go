package core

import (
	"context"
	"slices"

	"go.uber.org/zap"

	"gradebook/pkg/domain"
)

// MarkOption adjusts how SetMark fills the scale and date.
type MarkOption func(*markOptions)

type markOptions struct {
	max  *float64
	date string
}

// WithMarkMax sets the grading scale explicitly.
func WithMarkMax(max float64) MarkOption {
	return func(o *markOptions) { o.max = &max }
}

// WithMarkDate sets the mark date (YYYY-MM-DD).
func WithMarkDate(date string) MarkOption {
	return func(o *markOptions) { o.date = date }
}

// planMark returns the upserted mark for (studentID, kind). The scale is the
// option, else the stored mark's, else the per-kind default; the date is the
// option, else the stored one, else today.
func (s *Service) planMark(studentID string, kind domain.AssessmentKind, value *float64, o markOptions) (domain.Mark, error) {
	mark, exists := s.cache.Mark(studentID, kind)
	if !exists {
		mark = domain.Mark{ID: s.newID(), StudentID: studentID, Kind: kind, Max: domain.DefaultMax(kind), Date: s.today()}
	}
	if o.max != nil {
		mark.Max = *o.max
	}
	if o.date != "" {
		mark.Date = o.date
	}
	mark.Value = nil
	if value != nil {
		v := *value
		mark.Value = &v
	}
	if err := domain.Validate(domain.KindMark, mark); err != nil {
		return domain.Mark{}, err
	}
	return mark, nil
}

// SetMark records value for the student's assessment kind, replacing any
// existing mark for the same pair. A nil value records the kind as ungraded.
func (s *Service) SetMark(ctx context.Context, studentID string, kind domain.AssessmentKind, value *float64, opts ...MarkOption) (domain.Mark, error) {
	var o markOptions
	for _, opt := range opts {
		opt(&o)
	}
	var saved domain.Mark
	err := s.mutate(ctx, "set_mark", func(ctx context.Context) error {
		if _, ok := s.cache.Student(studentID); !ok {
			return domain.NotFoundError{Kind: domain.KindStudent, ID: studentID}
		}
		mark, err := s.planMark(studentID, kind, value, o)
		if err != nil {
			return err
		}
		if err := s.commit(ctx, domain.Put(domain.TableMarks, mark)); err != nil {
			return err
		}
		saved = mark
		return nil
	}, zap.String("student_id", studentID), zap.String("kind", string(kind)))
	return saved, err
}

// BulkSetMarks applies several kinds for one student in one unit of work.
// Marks are returned in kind order; any invalid entry rejects the batch.
func (s *Service) BulkSetMarks(ctx context.Context, studentID string, values map[domain.AssessmentKind]*float64) ([]domain.Mark, error) {
	var saved []domain.Mark
	err := s.mutate(ctx, "bulk_set_marks", func(ctx context.Context) error {
		if _, ok := s.cache.Student(studentID); !ok {
			return domain.NotFoundError{Kind: domain.KindStudent, ID: studentID}
		}
		kinds := make([]domain.AssessmentKind, 0, len(values))
		for kind := range values {
			kinds = append(kinds, kind)
		}
		slices.SortFunc(kinds, func(a, b domain.AssessmentKind) int { return kindIndex(a) - kindIndex(b) })
		marks := make([]domain.Mark, 0, len(kinds))
		rows := make([]domain.Record, 0, len(kinds))
		for _, kind := range kinds {
			mark, err := s.planMark(studentID, kind, values[kind], markOptions{})
			if err != nil {
				return err
			}
			marks = append(marks, mark)
			rows = append(rows, mark)
		}
		if err := s.commit(ctx, domain.Put(domain.TableMarks, rows...)); err != nil {
			return err
		}
		saved = marks
		return nil
	}, zap.String("student_id", studentID), zap.Int("kinds", len(values)))
	return saved, err
}

func kindIndex(kind domain.AssessmentKind) int {
	if i := slices.Index(domain.AssessmentKinds, kind); i >= 0 {
		return i
	}
	return len(domain.AssessmentKinds)
}

// RemoveMarksForStudents deletes every mark of the given students and
// returns how many were removed. Unknown ids are ignored.
func (s *Service) RemoveMarksForStudents(ctx context.Context, studentIDs []string) (int, error) {
	var removed int
	err := s.mutate(ctx, "remove_marks_for_students", func(ctx context.Context) error {
		count := 0
		for _, id := range studentIDs {
			count += len(s.cache.Marks(id))
		}
		if err := s.commit(ctx, domain.DeleteWhere(domain.TableMarks, domain.FieldStudentID, studentIDs...)); err != nil {
			return err
		}
		removed = count
		return nil
	}, zap.Int("students", len(studentIDs)))
	return removed, err
}
