package core

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"gradebook/pkg/domain"
)

// SeedOptions controls SeedDemo.
type SeedOptions struct {
	// Force clears every table before seeding instead of skipping a
	// non-empty store.
	Force bool
	// IncludeLessons adds one introductory lesson per group.
	IncludeLessons bool
}

// SeedResult lists what SeedDemo wrote. Skipped is set when the store already
// held groups and Force was not requested.
type SeedResult struct {
	Skipped   bool
	Groups    []domain.Group
	Students  []domain.Student
	Lessons   []domain.Lesson
	Schedules []domain.WeeklySchedule
}

var demoGroupCodes = []struct {
	grade domain.Grade
	codes []string
}{
	{domain.Grade8th, []string{"2ASCG1", "2ASCG2", "2ASCG3", "2ASCG4", "2ASCG5"}},
	{domain.Grade9th, []string{"3ASCG1", "3ASCG2", "3ASCG3", "3ASCG4"}},
}

var demoSlots = []domain.WeeklySlot{
	{Day: 1, Start: "09:00", End: "10:00", GroupCode: "2ASCG1"},
	{Day: 1, Start: "10:15", End: "11:15", GroupCode: "2ASCG2"},
	{Day: 2, Start: "09:00", End: "10:00", GroupCode: "3ASCG1"},
	{Day: 3, Start: "11:30", End: "12:30", GroupCode: "2ASCG3"},
	{Day: 4, Start: "13:30", End: "14:30", GroupCode: "3ASCG3"},
}

const demoStudentsPerGroup = 10

// SeedDemo fills the store with demo groups, rosters, lessons and a
// timetable in one unit of work.
func (s *Service) SeedDemo(ctx context.Context, opts SeedOptions) (SeedResult, error) {
	var result SeedResult
	err := s.mutate(ctx, "seed_demo", func(ctx context.Context) error {
		if len(s.cache.Groups()) > 0 && !opts.Force {
			result.Skipped = true
			return nil
		}
		if opts.Force {
			if err := s.clear(ctx); err != nil {
				return err
			}
		}
		planned := s.planDemo(opts.IncludeLessons)
		var ops []domain.Op
		for _, table := range domain.Tables {
			rows := planned.Records(table)
			for _, r := range rows {
				if err := domain.ValidateRecord(r); err != nil {
					return fmt.Errorf("demo %s: %w", table, err)
				}
			}
			ops = append(ops, domain.Put(table, rows...))
		}
		if err := s.commit(ctx, ops...); err != nil {
			return err
		}
		if s.cache.SelectedGroupID() == "" && len(planned.Groups) > 0 {
			mustApply("select group", s.cache.SetSelectedGroup(s.cache.Groups()[0].ID))
		}
		result = SeedResult{
			Groups:    planned.Groups,
			Students:  planned.Students,
			Lessons:   planned.Lessons,
			Schedules: planned.Schedules,
		}
		return nil
	}, zap.Bool("force", opts.Force), zap.Bool("lessons", opts.IncludeLessons))
	return result, err
}

func (s *Service) planDemo(includeLessons bool) domain.Dataset {
	var ds domain.Dataset
	now, today := s.createdAt(), s.today()
	for _, set := range demoGroupCodes {
		for _, code := range set.codes {
			group := domain.Group{ID: s.newID(), Code: code, Grade: set.grade, CreatedAt: now}
			ds.Add(group)
			for i := 1; i <= demoStudentsPerGroup; i++ {
				number := fmt.Sprintf("%02d", i)
				ds.Add(domain.Student{
					ID:        s.newID(),
					GroupID:   group.ID,
					Number:    number,
					Name:      fmt.Sprintf("%s Student %s", code, number),
					CreatedAt: now,
				})
			}
			if includeLessons {
				ds.Add(domain.Lesson{
					ID:           s.newID(),
					GroupID:      group.ID,
					Date:         today,
					Start:        "09:00",
					End:          "10:00",
					Theme:        "Introductory PPP Lesson",
					StageNotes:   domain.DefaultStageNotes,
					Observations: fmt.Sprintf("Reviewed expectations with %d learners.", demoStudentsPerGroup),
				})
			}
		}
	}
	ds.Add(domain.WeeklySchedule{
		ID:        s.newID(),
		Title:     "Demo Timetable",
		Slots:     append([]domain.WeeklySlot(nil), demoSlots...),
		CreatedAt: now,
	})
	return ds
}

// Reset drops every table and leaves the store empty but ready. Attachment
// blobs are not touched.
func (s *Service) Reset(ctx context.Context) error {
	return s.mutate(ctx, "reset", s.clear)
}

func (s *Service) clear(ctx context.Context) error {
	if err := s.store.Clear(ctx); err != nil {
		return domain.NewStorageError("clear", "", err)
	}
	s.cache.Reset()
	return nil
}

// Export returns an ordered copy of every committed row.
func (s *Service) Export() domain.Dataset {
	return s.cache.Export()
}
