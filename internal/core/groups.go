package core

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"gradebook/pkg/domain"
)

// GroupPatch carries the fields UpdateGroup replaces; nil fields are kept.
// An empty ScheduleID clears the explicit timetable link.
type GroupPatch struct {
	Code       *string
	Grade      *domain.Grade
	ScheduleID *string
}

// CascadeReport counts the dependent rows removed with a parent.
type CascadeReport struct {
	Students     int
	Marks        int
	Observations int
	Lessons      int
	Attachments  int
}

func normalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// CreateGroup persists a new group. The code is trimmed and upper-cased.
func (s *Service) CreateGroup(ctx context.Context, code string, grade domain.Grade) (domain.Group, error) {
	var created domain.Group
	err := s.mutate(ctx, "create_group", func(ctx context.Context) error {
		group := domain.Group{ID: s.newID(), Code: normalizeCode(code), Grade: grade, CreatedAt: s.createdAt()}
		if err := domain.Validate(domain.KindGroup, group); err != nil {
			return err
		}
		if err := s.commit(ctx, domain.Put(domain.TableGroups, group)); err != nil {
			return err
		}
		created = group
		return nil
	})
	return created, err
}

// UpdateGroup merges patch onto the stored group and re-validates the result.
func (s *Service) UpdateGroup(ctx context.Context, id string, patch GroupPatch) (domain.Group, error) {
	var updated domain.Group
	err := s.mutate(ctx, "update_group", func(ctx context.Context) error {
		group, ok := s.cache.Group(id)
		if !ok {
			return domain.NotFoundError{Kind: domain.KindGroup, ID: id}
		}
		if patch.Code != nil {
			group.Code = normalizeCode(*patch.Code)
		}
		if patch.Grade != nil {
			group.Grade = *patch.Grade
		}
		if patch.ScheduleID != nil {
			group.ScheduleID = strings.TrimSpace(*patch.ScheduleID)
			if _, ok := s.cache.Schedule(group.ScheduleID); group.ScheduleID != "" && !ok {
				return domain.NotFoundError{Kind: domain.KindSchedule, ID: group.ScheduleID}
			}
		}
		if err := domain.Validate(domain.KindGroup, group); err != nil {
			return err
		}
		if err := s.commit(ctx, domain.Put(domain.TableGroups, group)); err != nil {
			return err
		}
		updated = group
		return nil
	}, zap.String("group_id", id))
	return updated, err
}

// DeleteGroup removes the group with its students, their marks and
// observations, and its lessons in one unit of work. Attachment blobs of the
// removed lessons are deleted afterwards on a best-effort basis.
func (s *Service) DeleteGroup(ctx context.Context, id string) (CascadeReport, error) {
	var report CascadeReport
	err := s.mutate(ctx, "delete_group", func(ctx context.Context) error {
		if _, ok := s.cache.Group(id); !ok {
			return domain.NotFoundError{Kind: domain.KindGroup, ID: id}
		}
		students := s.cache.Students(id)
		studentIDs := make([]string, 0, len(students))
		for _, st := range students {
			studentIDs = append(studentIDs, st.ID)
			report.Marks += len(s.cache.Marks(st.ID))
			report.Observations += len(s.cache.Observations(st.ID))
		}
		lessons := s.cache.Lessons(id)
		var keys []string
		for _, l := range lessons {
			keys = append(keys, l.Attachments...)
		}
		report.Students = len(students)
		report.Lessons = len(lessons)

		err := s.commit(ctx,
			domain.DeleteWhere(domain.TableMarks, domain.FieldStudentID, studentIDs...),
			domain.DeleteWhere(domain.TableObservations, domain.FieldStudentID, studentIDs...),
			domain.DeleteWhere(domain.TableStudents, domain.FieldGroupID, id),
			domain.DeleteWhere(domain.TableLessons, domain.FieldGroupID, id),
			domain.Delete(domain.TableGroups, id),
		)
		if err != nil {
			report = CascadeReport{}
			return err
		}
		report.Attachments = s.removeBlobs(ctx, keys)
		return nil
	}, zap.String("group_id", id))
	return report, err
}

// SelectGroup points the UI selection at id; an empty id clears it.
func (s *Service) SelectGroup(ctx context.Context, id string) error {
	return s.mutate(ctx, "select_group", func(context.Context) error {
		return s.cache.SetSelectedGroup(id)
	}, zap.String("group_id", id))
}
