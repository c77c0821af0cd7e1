package core

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"gradebook/pkg/domain"
)

// ScheduleInput describes a timetable to save. A non-empty ID that matches a
// stored schedule replaces it in place; any other ID is used for a new one.
type ScheduleInput struct {
	ID            string
	Title         string
	Slots         []domain.WeeklySlot
	SourcePDFName string
	// CreatedAt is used for new schedules when set (epoch millis).
	CreatedAt int64
}

// SaveSchedule upserts a timetable. An existing schedule keeps its
// createdAt.
func (s *Service) SaveSchedule(ctx context.Context, in ScheduleInput) (domain.WeeklySchedule, error) {
	var saved domain.WeeklySchedule
	err := s.mutate(ctx, "save_schedule", func(ctx context.Context) error {
		schedule := domain.WeeklySchedule{
			ID:            strings.TrimSpace(in.ID),
			Title:         strings.TrimSpace(in.Title),
			SourcePDFName: strings.TrimSpace(in.SourcePDFName),
			Slots:         make([]domain.WeeklySlot, 0, len(in.Slots)),
			CreatedAt:     in.CreatedAt,
		}
		for _, slot := range in.Slots {
			schedule.Slots = append(schedule.Slots, domain.WeeklySlot{
				Day:       slot.Day,
				Start:     strings.TrimSpace(slot.Start),
				End:       strings.TrimSpace(slot.End),
				GroupCode: strings.TrimSpace(slot.GroupCode),
			})
		}
		if schedule.ID == "" {
			schedule.ID = s.newID()
		}
		if existing, ok := s.cache.Schedule(schedule.ID); ok {
			schedule.CreatedAt = existing.CreatedAt
		} else if schedule.CreatedAt <= 0 {
			schedule.CreatedAt = s.createdAt()
		}
		if err := domain.Validate(domain.KindSchedule, schedule); err != nil {
			return err
		}
		if err := s.commit(ctx, domain.Put(domain.TableSchedules, schedule)); err != nil {
			return err
		}
		saved = schedule
		return nil
	}, zap.String("schedule_id", in.ID), zap.Int("slots", len(in.Slots)))
	return saved, err
}

// DeleteSchedule removes a timetable. Groups that referenced it keep their
// scheduleId and fall back to matching by group code.
func (s *Service) DeleteSchedule(ctx context.Context, id string) error {
	return s.mutate(ctx, "delete_schedule", func(ctx context.Context) error {
		if _, ok := s.cache.Schedule(id); !ok {
			return domain.NotFoundError{Kind: domain.KindSchedule, ID: id}
		}
		return s.commit(ctx, domain.Delete(domain.TableSchedules, id))
	}, zap.String("schedule_id", id))
}

// SetActiveSchedule marks id as the active timetable; an empty id restores
// the most-recent fallback.
func (s *Service) SetActiveSchedule(ctx context.Context, id string) error {
	return s.mutate(ctx, "set_active_schedule", func(context.Context) error {
		return s.cache.SetActiveSchedule(id)
	}, zap.String("schedule_id", id))
}
