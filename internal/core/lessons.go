package core

import (
	"context"
	"slices"
	"strings"

	"go.uber.org/zap"

	"gradebook/pkg/domain"
)

// LessonInput describes a new lesson. Stage notes left nil are taken from
// domain.DefaultStageNotes.
type LessonInput struct {
	GroupID      string
	Date         string
	Start        string
	End          string
	Theme        string
	StageNotes   domain.StageNotesInput
	Observations string
	Attachments  []string
}

// LessonPatch carries the fields UpdateLesson replaces; nil fields, including
// nil stage notes, keep their stored value.
type LessonPatch struct {
	Date         *string
	Start        *string
	End          *string
	Theme        *string
	StageNotes   domain.StageNotesInput
	Observations *string
}

// AddLesson records a lesson for an existing group.
func (s *Service) AddLesson(ctx context.Context, in LessonInput) (domain.Lesson, error) {
	var created domain.Lesson
	err := s.mutate(ctx, "add_lesson", func(ctx context.Context) error {
		if _, ok := s.cache.Group(in.GroupID); !ok {
			return domain.NotFoundError{Kind: domain.KindGroup, ID: in.GroupID}
		}
		lesson := domain.Lesson{
			ID:           s.newID(),
			GroupID:      in.GroupID,
			Date:         strings.TrimSpace(in.Date),
			Start:        strings.TrimSpace(in.Start),
			End:          strings.TrimSpace(in.End),
			Theme:        strings.TrimSpace(in.Theme),
			StageNotes:   in.StageNotes.Over(domain.DefaultStageNotes),
			Observations: in.Observations,
			Attachments:  slices.Clone(in.Attachments),
		}
		if err := domain.Validate(domain.KindLesson, lesson); err != nil {
			return err
		}
		if err := s.commit(ctx, domain.Put(domain.TableLessons, lesson)); err != nil {
			return err
		}
		created = lesson
		return nil
	}, zap.String("group_id", in.GroupID))
	return created, err
}

// UpdateLesson merges patch onto the stored lesson and re-validates it.
func (s *Service) UpdateLesson(ctx context.Context, id string, patch LessonPatch) (domain.Lesson, error) {
	var updated domain.Lesson
	err := s.mutate(ctx, "update_lesson", func(ctx context.Context) error {
		lesson, ok := s.cache.Lesson(id)
		if !ok {
			return domain.NotFoundError{Kind: domain.KindLesson, ID: id}
		}
		setTrimmed(&lesson.Date, patch.Date)
		setTrimmed(&lesson.Start, patch.Start)
		setTrimmed(&lesson.End, patch.End)
		setTrimmed(&lesson.Theme, patch.Theme)
		if patch.Observations != nil {
			lesson.Observations = *patch.Observations
		}
		lesson.StageNotes = patch.StageNotes.Over(lesson.StageNotes)
		if err := domain.Validate(domain.KindLesson, lesson); err != nil {
			return err
		}
		if err := s.commit(ctx, domain.Put(domain.TableLessons, lesson)); err != nil {
			return err
		}
		updated = lesson
		return nil
	}, zap.String("lesson_id", id))
	return updated, err
}

func setTrimmed(dst *string, v *string) {
	if v != nil {
		*dst = strings.TrimSpace(*v)
	}
}

// DeleteLesson removes a lesson. Its attachment blobs are deleted after the
// commit; the returned count says how many of them were removed.
func (s *Service) DeleteLesson(ctx context.Context, id string) (int, error) {
	var removed int
	err := s.mutate(ctx, "delete_lesson", func(ctx context.Context) error {
		lesson, ok := s.cache.Lesson(id)
		if !ok {
			return domain.NotFoundError{Kind: domain.KindLesson, ID: id}
		}
		if err := s.commit(ctx, domain.Delete(domain.TableLessons, id)); err != nil {
			return err
		}
		removed = s.removeBlobs(ctx, lesson.Attachments)
		return nil
	}, zap.String("lesson_id", id))
	return removed, err
}
