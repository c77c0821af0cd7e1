package core

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"gradebook/pkg/domain"
)

func rosterNumbers(students []domain.Student) []string {
	out := make([]string, 0, len(students))
	for _, st := range students {
		out = append(out, st.Number)
	}
	return out
}

func TestStudentsReadBackNumerically(t *testing.T) {
	svc := newReadyService(t, nil)
	g := mustGroup(t, svc, "2ASCG1", domain.Grade8th)
	for _, n := range []string{"10", "2", "1"} {
		mustStudent(t, svc, g.ID, n, "S"+n)
	}
	if got := rosterNumbers(svc.Reader().Students(g.ID)); !reflect.DeepEqual(got, []string{"1", "2", "10"}) {
		t.Fatalf("expected numeric order, got %v", got)
	}
}

func TestCreateStudentRequiresGroup(t *testing.T) {
	svc := newReadyService(t, nil)
	_, err := svc.CreateStudent(context.Background(), StudentInput{GroupID: "missing", Number: "01", Name: "A"})
	var nf domain.NotFoundError
	if !errors.As(err, &nf) || nf.Kind != domain.KindGroup {
		t.Fatalf("expected group not found, got %v", err)
	}
}

func TestUpdateStudentMergesPatch(t *testing.T) {
	ctx := context.Background()
	svc := newReadyService(t, nil)
	g := mustGroup(t, svc, "2ASCG1", domain.Grade8th)
	st := mustStudent(t, svc, g.ID, "05", "Alice")
	updated, err := svc.UpdateStudent(ctx, st.ID, StudentPatch{NationalID: str(" N123 ")})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.Name != "Alice" || updated.NationalID != "N123" || updated.CreatedAt != st.CreatedAt {
		t.Fatalf("unexpected merge result %+v", updated)
	}
	if _, err := svc.UpdateStudent(ctx, st.ID, StudentPatch{Name: str("  ")}); !domain.IsValidation(err) {
		t.Fatalf("expected blank name to be rejected, got %v", err)
	}
	if _, err := svc.UpdateStudent(ctx, "missing", StudentPatch{}); !domain.IsNotFound(err) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestDeleteStudentKeepsGroupLessons(t *testing.T) {
	ctx := context.Background()
	svc := newReadyService(t, nil)
	group := mustGroup(t, svc, "2ASCG1", domain.Grade8th)
	alice := mustStudent(t, svc, group.ID, "01", "Alice")
	bob := mustStudent(t, svc, group.ID, "02", "Bob")
	if _, err := svc.SetMark(ctx, alice.ID, domain.Quiz1, num(9), WithMarkMax(10)); err != nil {
		t.Fatalf("set mark: %v", err)
	}
	if _, err := svc.SetMark(ctx, bob.ID, domain.Quiz1, num(6)); err != nil {
		t.Fatalf("set mark: %v", err)
	}
	if _, err := svc.AddObservation(ctx, alice.ID, "quiet", ""); err != nil {
		t.Fatalf("observation: %v", err)
	}
	lesson, err := svc.AddLesson(ctx, LessonInput{GroupID: group.ID, Date: "2025-03-10", Start: "09:00", End: "10:00"})
	if err != nil {
		t.Fatalf("add lesson: %v", err)
	}

	report, err := svc.DeleteStudent(ctx, alice.ID)
	if err != nil {
		t.Fatalf("delete student: %v", err)
	}
	if report != (CascadeReport{Marks: 1, Observations: 1}) {
		t.Fatalf("unexpected report %+v", report)
	}
	r := svc.Reader()
	if _, ok := r.Mark(alice.ID, domain.Quiz1); ok {
		t.Fatalf("mark of deleted student still visible")
	}
	if len(r.Observations(alice.ID)) != 0 {
		t.Fatalf("observations of deleted student still visible")
	}
	if _, ok := r.Lesson(lesson.ID); !ok {
		t.Fatalf("group lesson must survive student deletion")
	}
	if _, ok := r.Mark(bob.ID, domain.Quiz1); !ok {
		t.Fatalf("sibling mark must survive")
	}
}

func TestUpsertStudentsMergeIsIdempotent(t *testing.T) {
	ctx := context.Background()
	svc := newReadyService(t, nil)
	g := mustGroup(t, svc, "2ASCG1", domain.Grade8th)
	rows := []domain.RosterRow{
		{Number: "01", Name: "Alice"},
		{Number: "02", Name: "Bob", NationalID: "N2"},
		{Number: "10", Name: "Carol"},
	}
	first, err := svc.UpsertStudents(ctx, g.ID, rows, true)
	if err != nil {
		t.Fatalf("first import: %v", err)
	}
	if first != (MergeResult{Added: 3}) {
		t.Fatalf("unexpected first result %+v", first)
	}
	second, err := svc.UpsertStudents(ctx, g.ID, rows, true)
	if err != nil {
		t.Fatalf("second import: %v", err)
	}
	if second != (MergeResult{Added: 0, Updated: 3}) {
		t.Fatalf("unexpected second result %+v", second)
	}
	if n := len(svc.Reader().Students(g.ID)); n != 3 {
		t.Fatalf("expected 3 students, got %d", n)
	}
}

func TestUpsertStudentsMatchesTrimmedCaseInsensitiveNumbers(t *testing.T) {
	ctx := context.Background()
	svc := newReadyService(t, nil)
	g := mustGroup(t, svc, "2ASCG1", domain.Grade8th)
	orig, err := svc.CreateStudent(ctx, StudentInput{GroupID: g.ID, Number: "a1", Name: "Old", NationalID: "KEEP"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	res, err := svc.UpsertStudents(ctx, g.ID, []domain.RosterRow{
		{Number: " A1 ", Name: " New Name "},
		{Number: "b2", Name: "First"},
		{Number: "B2", Name: "Second"},
	}, true)
	if err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if res != (MergeResult{Added: 1, Updated: 1}) {
		t.Fatalf("unexpected result %+v", res)
	}
	got, _ := svc.Reader().Student(orig.ID)
	if got.Name != "New Name" || got.NationalID != "KEEP" || got.CreatedAt != orig.CreatedAt || got.Number != "a1" {
		t.Fatalf("merge did not update in place: %+v", got)
	}
	students := svc.Reader().Students(g.ID)
	if len(students) != 2 {
		t.Fatalf("expected in-batch duplicate to collapse, got %+v", students)
	}
	for _, st := range students {
		if st.Number == "b2" && st.Name != "Second" {
			t.Fatalf("expected later row to win, got %+v", st)
		}
	}
}

func TestUpsertStudentsWithoutMergeAlwaysAdds(t *testing.T) {
	ctx := context.Background()
	svc := newReadyService(t, nil)
	g := mustGroup(t, svc, "2ASCG1", domain.Grade8th)
	mustStudent(t, svc, g.ID, "01", "Alice")
	res, err := svc.UpsertStudents(ctx, g.ID, []domain.RosterRow{{Number: "01", Name: "Alice"}}, false)
	if err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if res != (MergeResult{Added: 1}) || len(svc.Reader().Students(g.ID)) != 2 {
		t.Fatalf("expected a second student, got %+v", res)
	}
}

func TestUpsertStudentsRejectsWholeBatch(t *testing.T) {
	ctx := context.Background()
	svc := newReadyService(t, nil)
	g := mustGroup(t, svc, "2ASCG1", domain.Grade8th)
	_, err := svc.UpsertStudents(ctx, g.ID, []domain.RosterRow{
		{Number: "01", Name: "Alice"},
		{Number: " ", Name: "Nobody"},
	}, true)
	var ve *domain.ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if _, ok := ve.Field("rows[1].number"); !ok {
		t.Fatalf("expected rows[1].number in %+v", ve.Fields)
	}
	if n := len(svc.Reader().Students(g.ID)); n != 0 {
		t.Fatalf("expected no students after rejected batch, got %d", n)
	}
	if _, err := svc.UpsertStudents(ctx, "missing", nil, true); !domain.IsNotFound(err) {
		t.Fatalf("expected not found for unknown group, got %v", err)
	}
}

func TestDeleteStudentScenario(t *testing.T) {
	ctx := context.Background()
	svc := newReadyService(t, nil)
	group, err := svc.CreateGroup(ctx, "2ASCG1", domain.Grade8th)
	if err != nil {
		t.Fatalf("create group: %v", err)
	}
	student := mustStudent(t, svc, group.ID, "01", "Alice")
	if _, err := svc.SetMark(ctx, student.ID, domain.Quiz1, num(9), WithMarkMax(10)); err != nil {
		t.Fatalf("set mark: %v", err)
	}
	lesson := mustLesson(t, svc, group.ID, "2025-03-10")
	if _, err := svc.DeleteStudent(ctx, student.ID); err != nil {
		t.Fatalf("delete student: %v", err)
	}
	if len(svc.Reader().Marks(student.ID)) != 0 {
		t.Fatalf("expected marks gone")
	}
	if _, ok := svc.Reader().Lesson(lesson.ID); !ok {
		t.Fatalf("expected lesson to remain")
	}
}
