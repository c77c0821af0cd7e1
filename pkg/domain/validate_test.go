package domain

import (
	"errors"
	"math"
	"sort"
	"strings"
	"testing"
)

func ptr(v float64) *float64 { return &v }

func fieldNames(t *testing.T, err error) []string {
	t.Helper()
	var ve *ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("expected *ValidationError, got %T (%v)", err, err)
	}
	out := make([]string, 0, len(ve.Fields))
	for _, f := range ve.Fields {
		out = append(out, f.Field)
	}
	sort.Strings(out)
	return out
}

func TestValidateGroup(t *testing.T) {
	valid := Group{ID: "g1", Code: "2ASCG1", Grade: Grade8th, CreatedAt: 1}
	if err := Validate(KindGroup, valid); err != nil {
		t.Fatalf("expected valid group, got %v", err)
	}

	cases := []struct {
		name  string
		group Group
		field string
		tag   string
	}{
		{"lowercase code", Group{ID: "g", Code: "2ascg1", Grade: Grade8th, CreatedAt: 1}, "code", "groupcode"},
		{"short code", Group{ID: "g", Code: "A", Grade: Grade8th, CreatedAt: 1}, "code", "min"},
		{"long code", Group{ID: "g", Code: "ABCDEFGHIJKLM", Grade: Grade8th, CreatedAt: 1}, "code", "max"},
		{"bad grade", Group{ID: "g", Code: "AB", Grade: "10th", CreatedAt: 1}, "grade", "oneof"},
		{"missing timestamp", Group{ID: "g", Code: "AB", Grade: Grade9th}, "createdAt", "gt"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := Validate(KindGroup, tc.group)
			var ve *ValidationError
			if !errors.As(err, &ve) {
				t.Fatalf("expected validation error, got %v", err)
			}
			fe, ok := ve.Field(tc.field)
			if !ok {
				t.Fatalf("expected failure on %s, got %v", tc.field, ve)
			}
			if fe.Tag != tc.tag {
				t.Fatalf("expected tag %s, got %s", tc.tag, fe.Tag)
			}
			if fe.Message == "" || !strings.Contains(fe.Message, tc.field) {
				t.Fatalf("expected translated message naming %s, got %q", tc.field, fe.Message)
			}
		})
	}
}

func TestValidateReportsEveryFailingField(t *testing.T) {
	err := Validate(KindGroup, Group{Code: "x", Grade: "bad"})
	got := fieldNames(t, err)
	want := []string{"code", "createdAt", "grade", "id"}
	if strings.Join(got, ",") != strings.Join(want, ",") {
		t.Fatalf("expected fields %v, got %v", want, got)
	}
	if !IsValidation(err) {
		t.Fatalf("expected IsValidation")
	}
	if !strings.HasPrefix(err.Error(), "invalid group: ") {
		t.Fatalf("unexpected message %q", err.Error())
	}
}

func TestValidateMarkBounds(t *testing.T) {
	base := Mark{ID: "m", StudentID: "s", Kind: Quiz1, Max: 10}
	cases := []struct {
		name  string
		value *float64
		ok    bool
	}{
		{"ungraded", nil, true},
		{"zero", ptr(0), true},
		{"max", ptr(10), true},
		{"negative", ptr(-1), false},
		{"over max", ptr(10.5), false},
		{"nan", ptr(math.NaN()), false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			m := base
			m.Value = tc.value
			err := Validate(KindMark, m)
			if tc.ok && err != nil {
				t.Fatalf("expected valid, got %v", err)
			}
			if !tc.ok {
				if got := fieldNames(t, err); len(got) != 1 || got[0] != "value" {
					t.Fatalf("expected value failure, got %v", got)
				}
			}
		})
	}

	bad := Mark{ID: "m", StudentID: "s", Kind: "Quiz3", Max: 0, Date: "2025-13-01"}
	if got := fieldNames(t, Validate(KindMark, bad)); strings.Join(got, ",") != "date,kind,max" {
		t.Fatalf("unexpected fields %v", got)
	}
}

func TestValidateLessonTimes(t *testing.T) {
	l := Lesson{ID: "l", GroupID: "g", Date: "2025-03-10", Start: "09:00", End: "10:00"}
	if err := Validate(KindLesson, l); err != nil {
		t.Fatalf("expected valid lesson, got %v", err)
	}
	l.End = "09:00"
	err := Validate(KindLesson, l)
	var ve *ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if fe, ok := ve.Field("end"); !ok || fe.Tag != "afterstart" {
		t.Fatalf("expected afterstart on end, got %+v", ve.Fields)
	}

	l.Start, l.End, l.Date = "9:00", "24:00", "2025-02-30"
	if got := fieldNames(t, Validate(KindLesson, l)); strings.Join(got, ",") != "date,end,start" {
		t.Fatalf("unexpected fields %v", got)
	}
}

func TestValidateScheduleSlotPaths(t *testing.T) {
	s := WeeklySchedule{
		ID:        "w",
		Title:     "Week",
		CreatedAt: 1,
		Slots: []WeeklySlot{
			{Day: 1, Start: "08:00", End: "09:00", GroupCode: "2ASCG1"},
			{Day: 8, Start: "8h", End: "09:00", GroupCode: "2ASCG1"},
		},
	}
	got := fieldNames(t, Validate(KindSchedule, s))
	if strings.Join(got, ",") != "slots[1].day,slots[1].start" {
		t.Fatalf("unexpected fields %v", got)
	}
}

func TestValidateRejectsKindMismatch(t *testing.T) {
	err := Validate(KindStudent, Group{ID: "g"})
	var ve *ValidationError
	if !errors.As(err, &ve) || ve.Fields[0].Tag != "kind" {
		t.Fatalf("expected kind mismatch, got %v", err)
	}
	if err := Validate("teacher", Group{}); err == nil {
		t.Fatalf("expected unknown kind error")
	}
	if err := ValidateRecord(nil); err == nil {
		t.Fatalf("expected nil record error")
	}
	if err := ValidateRecord(Observation{ID: "o", StudentID: "s", Text: "late", Date: "2025-01-01"}); err != nil {
		t.Fatalf("expected valid observation, got %v", err)
	}
}

func TestValidateRosterRows(t *testing.T) {
	rows := []RosterRow{{Number: "01", Name: "Alice"}, {Number: "", Name: "Bob"}, {Number: "03"}}
	got := fieldNames(t, ValidateRosterRows(rows))
	if strings.Join(got, ",") != "rows[1].number,rows[2].name" {
		t.Fatalf("unexpected fields %v", got)
	}
	if err := ValidateRosterRows(rows[:1]); err != nil {
		t.Fatalf("expected valid rows, got %v", err)
	}
}

func TestStageNotesInputOver(t *testing.T) {
	warm := "Songs"
	empty := ""
	got := StageNotesInput{Warmup: &warm, Homework: &empty}.Over(DefaultStageNotes)
	if got.Warmup != warm || got.Homework != "" || got.Practice != DefaultStageNotes.Practice {
		t.Fatalf("unexpected merge %+v", got)
	}
}

func TestDefaultMax(t *testing.T) {
	if DefaultMax(Final) != 20 || DefaultMax(Quiz1) != 10 || DefaultMax("other") != 10 {
		t.Fatalf("unexpected default scales")
	}
	if AssessmentKind("Quiz9").Valid() || !Participation.Valid() {
		t.Fatalf("unexpected kind validity")
	}
}
