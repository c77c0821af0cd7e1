package core

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"gradebook/pkg/domain"
)

// StudentInput describes a new student.
type StudentInput struct {
	GroupID    string
	Number     string
	Name       string
	NationalID string
}

// StudentPatch carries the fields UpdateStudent replaces; nil fields are kept.
type StudentPatch struct {
	Number     *string
	Name       *string
	NationalID *string
}

// MergeResult reports what a roster import changed.
type MergeResult struct {
	Added   int `json:"added"`
	Updated int `json:"updated"`
}

// CreateStudent adds one student to an existing group.
func (s *Service) CreateStudent(ctx context.Context, in StudentInput) (domain.Student, error) {
	var created domain.Student
	err := s.mutate(ctx, "create_student", func(ctx context.Context) error {
		if _, ok := s.cache.Group(in.GroupID); !ok {
			return domain.NotFoundError{Kind: domain.KindGroup, ID: in.GroupID}
		}
		student := domain.Student{
			ID:         s.newID(),
			GroupID:    in.GroupID,
			Number:     strings.TrimSpace(in.Number),
			Name:       strings.TrimSpace(in.Name),
			NationalID: strings.TrimSpace(in.NationalID),
			CreatedAt:  s.createdAt(),
		}
		if err := domain.Validate(domain.KindStudent, student); err != nil {
			return err
		}
		if err := s.commit(ctx, domain.Put(domain.TableStudents, student)); err != nil {
			return err
		}
		created = student
		return nil
	}, zap.String("group_id", in.GroupID))
	return created, err
}

// UpdateStudent merges patch onto the stored student.
func (s *Service) UpdateStudent(ctx context.Context, id string, patch StudentPatch) (domain.Student, error) {
	var updated domain.Student
	err := s.mutate(ctx, "update_student", func(ctx context.Context) error {
		student, ok := s.cache.Student(id)
		if !ok {
			return domain.NotFoundError{Kind: domain.KindStudent, ID: id}
		}
		if patch.Number != nil {
			student.Number = strings.TrimSpace(*patch.Number)
		}
		if patch.Name != nil {
			student.Name = strings.TrimSpace(*patch.Name)
		}
		if patch.NationalID != nil {
			student.NationalID = strings.TrimSpace(*patch.NationalID)
		}
		if err := domain.Validate(domain.KindStudent, student); err != nil {
			return err
		}
		if err := s.commit(ctx, domain.Put(domain.TableStudents, student)); err != nil {
			return err
		}
		updated = student
		return nil
	}, zap.String("student_id", id))
	return updated, err
}

// DeleteStudent removes the student with its marks and observations.
func (s *Service) DeleteStudent(ctx context.Context, id string) (CascadeReport, error) {
	var report CascadeReport
	err := s.mutate(ctx, "delete_student", func(ctx context.Context) error {
		if _, ok := s.cache.Student(id); !ok {
			return domain.NotFoundError{Kind: domain.KindStudent, ID: id}
		}
		marks, observations := len(s.cache.Marks(id)), len(s.cache.Observations(id))
		err := s.commit(ctx,
			domain.DeleteWhere(domain.TableMarks, domain.FieldStudentID, id),
			domain.DeleteWhere(domain.TableObservations, domain.FieldStudentID, id),
			domain.Delete(domain.TableStudents, id),
		)
		if err != nil {
			return err
		}
		report = CascadeReport{Marks: marks, Observations: observations}
		return nil
	}, zap.String("student_id", id))
	return report, err
}

// UpsertStudents merges imported roster rows into a group as one unit of
// work. With mergeByNumber, a row whose trimmed, case-folded number matches
// an existing student updates that student's name and national id (an empty
// national id keeps the stored one); every other row creates a student. A
// number repeated later in the same batch updates the pending row instead of
// creating a second one.
func (s *Service) UpsertStudents(ctx context.Context, groupID string, rows []domain.RosterRow, mergeByNumber bool) (MergeResult, error) {
	var result MergeResult
	err := s.mutate(ctx, "upsert_students", func(ctx context.Context) error {
		if _, ok := s.cache.Group(groupID); !ok {
			return domain.NotFoundError{Kind: domain.KindGroup, ID: groupID}
		}
		normalized := make([]domain.RosterRow, len(rows))
		for i, row := range rows {
			normalized[i] = domain.RosterRow{
				Number:     strings.TrimSpace(row.Number),
				Name:       strings.TrimSpace(row.Name),
				NationalID: strings.TrimSpace(row.NationalID),
			}
		}
		if err := domain.ValidateRosterRows(normalized); err != nil {
			return err
		}

		byNumber := make(map[string]domain.Student)
		if mergeByNumber {
			for _, st := range s.cache.Students(groupID) {
				key := domain.NormalizeNumber(st.Number)
				if _, dup := byNumber[key]; !dup {
					byNumber[key] = st
				}
			}
		}
		existing := make(map[string]bool, len(byNumber))
		for _, st := range byNumber {
			existing[st.ID] = true
		}

		var order []string
		pending := make(map[string]domain.Student)
		updated := make(map[string]bool)
		for _, row := range normalized {
			key := domain.NormalizeNumber(row.Number)
			st, found := byNumber[key]
			if !mergeByNumber || !found {
				st = domain.Student{ID: s.newID(), GroupID: groupID, Number: row.Number, CreatedAt: s.createdAt()}
			}
			st.Name = row.Name
			if row.NationalID != "" {
				st.NationalID = row.NationalID
			}
			if mergeByNumber {
				byNumber[key] = st
			}
			if _, seen := pending[st.ID]; !seen {
				order = append(order, st.ID)
			}
			pending[st.ID] = st
			if existing[st.ID] {
				updated[st.ID] = true
			}
		}

		puts := make([]domain.Record, 0, len(order))
		for _, id := range order {
			if err := domain.Validate(domain.KindStudent, pending[id]); err != nil {
				return err
			}
			puts = append(puts, pending[id])
		}
		if err := s.commit(ctx, domain.Put(domain.TableStudents, puts...)); err != nil {
			return err
		}
		result = MergeResult{Added: len(order) - len(updated), Updated: len(updated)}
		return nil
	}, zap.String("group_id", groupID), zap.Int("rows", len(rows)))
	return result, err
}
