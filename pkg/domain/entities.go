// Package domain defines the gradebook entities, their validation rules, the
// error taxonomy shared by every layer, and the storage unit-of-work
// primitives consumed by persistence adapters.
package domain

import "strings"

// Kind identifies an entity kind. Each kind maps to one persistent table.
type Kind string

// Supported entity kinds.
const (
	KindGroup       Kind = "group"
	KindStudent     Kind = "student"
	KindMark        Kind = "mark"
	KindObservation Kind = "observation"
	KindLesson      Kind = "lesson"
	KindSchedule    Kind = "schedule"
)

// Grade is the level a group is taught at.
type Grade string

// Supported grades.
const (
	Grade8th Grade = "8th"
	Grade9th Grade = "9th"
)

// Grades lists every grade in sort order.
var Grades = []Grade{Grade8th, Grade9th}

// AssessmentKind enumerates the columns of the marks grid.
type AssessmentKind string

// Assessment kinds in display order.
const (
	Quiz1         AssessmentKind = "Quiz1"
	Quiz2         AssessmentKind = "Quiz2"
	Homework      AssessmentKind = "Homework"
	Copybook      AssessmentKind = "Copybook"
	Discipline    AssessmentKind = "Discipline"
	Participation AssessmentKind = "Participation"
	Final         AssessmentKind = "Final"
)

// AssessmentKinds lists every assessment kind in display order.
var AssessmentKinds = []AssessmentKind{Quiz1, Quiz2, Homework, Copybook, Discipline, Participation, Final}

var defaultMarkMax = map[AssessmentKind]float64{
	Quiz1:         10,
	Quiz2:         10,
	Homework:      10,
	Copybook:      10,
	Discipline:    10,
	Participation: 10,
	Final:         20,
}

// DefaultMax returns the grading scale used when a mark is recorded without
// an explicit maximum.
func DefaultMax(kind AssessmentKind) float64 {
	if v, ok := defaultMarkMax[kind]; ok {
		return v
	}
	return 10
}

// Valid reports whether kind is a known assessment kind.
func (k AssessmentKind) Valid() bool {
	_, ok := defaultMarkMax[k]
	return ok
}

// Group is a class taught by the teacher.
type Group struct {
	ID         string `json:"id" validate:"required"`
	Code       string `json:"code" validate:"required,min=2,max=12,groupcode"`
	Grade      Grade  `json:"grade" validate:"required,oneof=8th 9th"`
	ScheduleID string `json:"scheduleId,omitempty"`
	CreatedAt  int64  `json:"createdAt" validate:"gt=0"`
}

// Student is a roster entry owned by a group. Number is kept as text so that
// leading zeros survive.
type Student struct {
	ID         string `json:"id" validate:"required"`
	GroupID    string `json:"groupId" validate:"required"`
	Number     string `json:"number" validate:"required"`
	Name       string `json:"name" validate:"required"`
	NationalID string `json:"nationalId,omitempty"`
	CreatedAt  int64  `json:"createdAt" validate:"gt=0"`
}

// Mark is a single graded score. A nil Value means the student has not been
// graded yet, which is distinct from a zero score.
type Mark struct {
	ID        string         `json:"id" validate:"required"`
	StudentID string         `json:"studentId" validate:"required"`
	Kind      AssessmentKind `json:"kind" validate:"required,oneof=Quiz1 Quiz2 Homework Copybook Discipline Participation Final"`
	Value     *float64       `json:"value"`
	Max       float64        `json:"max" validate:"gt=0"`
	Date      string         `json:"date,omitempty" validate:"omitempty,isodate"`
}

// Observation is a dated free-form note about a student.
type Observation struct {
	ID        string `json:"id" validate:"required"`
	StudentID string `json:"studentId" validate:"required"`
	Text      string `json:"text" validate:"required"`
	Date      string `json:"date" validate:"required,isodate"`
}

// StageNotes holds the five PPP lesson stages. Stored lessons always carry
// all five keys.
type StageNotes struct {
	Warmup       string `json:"warmup"`
	Presentation string `json:"presentation"`
	Practice     string `json:"practice"`
	Production   string `json:"production"`
	Homework     string `json:"homework"`
}

// DefaultStageNotes is the template used for stages a caller leaves out.
var DefaultStageNotes = StageNotes{
	Warmup:       "Show an engaging prompt, elicit target vocabulary",
	Presentation: "Introduce target language, provide model sentences",
	Practice:     "Controlled practice with feedback",
	Production:   "Pair or group task with freer practice",
	Homework:     "Assign concise follow-up task",
}

// StageNotesInput is a partial set of stage notes. Nil fields are filled
// from a base (the default template on create, the stored notes on update).
type StageNotesInput struct {
	Warmup       *string `json:"warmup,omitempty"`
	Presentation *string `json:"presentation,omitempty"`
	Practice     *string `json:"practice,omitempty"`
	Production   *string `json:"production,omitempty"`
	Homework     *string `json:"homework,omitempty"`
}

// Over returns base with every non-nil field of in applied.
func (in StageNotesInput) Over(base StageNotes) StageNotes {
	out := base
	if in.Warmup != nil {
		out.Warmup = *in.Warmup
	}
	if in.Presentation != nil {
		out.Presentation = *in.Presentation
	}
	if in.Practice != nil {
		out.Practice = *in.Practice
	}
	if in.Production != nil {
		out.Production = *in.Production
	}
	if in.Homework != nil {
		out.Homework = *in.Homework
	}
	return out
}

// Lesson is a dated class session for a group.
type Lesson struct {
	ID           string     `json:"id" validate:"required"`
	GroupID      string     `json:"groupId" validate:"required"`
	Date         string     `json:"date" validate:"required,isodate"`
	Start        string     `json:"start" validate:"required,hhmm"`
	End          string     `json:"end" validate:"required,hhmm"`
	Theme        string     `json:"theme,omitempty"`
	StageNotes   StageNotes `json:"stageNotes"`
	Observations string     `json:"observations,omitempty"`
	Attachments  []string   `json:"attachments,omitempty"`
}

// WeeklySlot is a recurring block in a timetable. GroupCode is matched
// against Group.Code at read time.
type WeeklySlot struct {
	Day       int    `json:"day" validate:"min=1,max=7"`
	Start     string `json:"start" validate:"required,hhmm"`
	End       string `json:"end" validate:"required,hhmm"`
	GroupCode string `json:"groupCode" validate:"required,min=2"`
}

// WeeklySchedule is an imported timetable.
type WeeklySchedule struct {
	ID            string       `json:"id" validate:"required"`
	Title         string       `json:"title" validate:"required"`
	Slots         []WeeklySlot `json:"slots" validate:"dive"`
	SourcePDFName string       `json:"sourcePdfName,omitempty"`
	CreatedAt     int64        `json:"createdAt" validate:"gt=0"`
}

// RosterRow is one imported roster line.
type RosterRow struct {
	Number     string `json:"number" validate:"required"`
	Name       string `json:"name" validate:"required"`
	NationalID string `json:"nationalId,omitempty"`
}

// NormalizeNumber is the comparison key for roster numbers: trimmed and
// case-folded.
func NormalizeNumber(number string) string {
	return strings.ToLower(strings.TrimSpace(number))
}

// MatchesGroupCode reports whether the slot is tagged with code.
func (s WeeklySlot) MatchesGroupCode(code string) bool {
	return strings.EqualFold(strings.TrimSpace(s.GroupCode), strings.TrimSpace(code))
}

// HasGroupCode reports whether any slot of the schedule is tagged with code.
func (s WeeklySchedule) HasGroupCode(code string) bool {
	for _, slot := range s.Slots {
		if slot.MatchesGroupCode(code) {
			return true
		}
	}
	return false
}
