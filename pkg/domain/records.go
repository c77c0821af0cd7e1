package domain

import (
	"encoding/json"
	"fmt"
)

// Table names one persistent table. There is exactly one table per Kind.
type Table string

// Persistent tables.
const (
	TableGroups       Table = "groups"
	TableStudents     Table = "students"
	TableMarks        Table = "marks"
	TableObservations Table = "observations"
	TableLessons      Table = "lessons"
	TableSchedules    Table = "schedules"
)

// Tables lists every table in parent-before-child order.
var Tables = []Table{TableGroups, TableStudents, TableMarks, TableObservations, TableLessons, TableSchedules}

// Indexed field names shared by adapters and the state cache.
const (
	FieldGroupID   = "groupId"
	FieldStudentID = "studentId"
	FieldCode      = "code"
	FieldGrade     = "grade"
	FieldNumber    = "number"
	FieldKind      = "kind"
	FieldDate      = "date"
	FieldTitle     = "title"
)

// TableOf returns the table holding entities of kind.
func TableOf(kind Kind) Table {
	switch kind {
	case KindGroup:
		return TableGroups
	case KindStudent:
		return TableStudents
	case KindMark:
		return TableMarks
	case KindObservation:
		return TableObservations
	case KindLesson:
		return TableLessons
	case KindSchedule:
		return TableSchedules
	}
	return ""
}

// ForeignKey returns the owning-reference field of table, if any. These are
// the only fields DeleteWhere accepts.
func ForeignKey(table Table) (string, bool) {
	switch table {
	case TableStudents, TableLessons:
		return FieldGroupID, true
	case TableMarks, TableObservations:
		return FieldStudentID, true
	}
	return "", false
}

// Record is implemented by every persisted entity.
type Record interface {
	RecordID() string
	RecordKind() Kind
	// IndexValue returns the value of a secondary-index field, or "" when the
	// field is not indexed for this kind.
	IndexValue(field string) string
}

var (
	_ Record = Group{}
	_ Record = Student{}
	_ Record = Mark{}
	_ Record = Observation{}
	_ Record = Lesson{}
	_ Record = WeeklySchedule{}
)

func (g Group) RecordID() string          { return g.ID }
func (g Group) RecordKind() Kind          { return KindGroup }
func (s Student) RecordID() string        { return s.ID }
func (s Student) RecordKind() Kind        { return KindStudent }
func (m Mark) RecordID() string           { return m.ID }
func (m Mark) RecordKind() Kind           { return KindMark }
func (o Observation) RecordID() string    { return o.ID }
func (o Observation) RecordKind() Kind    { return KindObservation }
func (l Lesson) RecordID() string         { return l.ID }
func (l Lesson) RecordKind() Kind         { return KindLesson }
func (s WeeklySchedule) RecordID() string { return s.ID }
func (s WeeklySchedule) RecordKind() Kind { return KindSchedule }

// IndexValue implements Record.
func (g Group) IndexValue(field string) string {
	switch field {
	case FieldCode:
		return g.Code
	case FieldGrade:
		return string(g.Grade)
	}
	return ""
}

// IndexValue implements Record.
func (s Student) IndexValue(field string) string {
	switch field {
	case FieldGroupID:
		return s.GroupID
	case FieldNumber:
		return s.Number
	}
	return ""
}

// IndexValue implements Record.
func (m Mark) IndexValue(field string) string {
	switch field {
	case FieldStudentID:
		return m.StudentID
	case FieldKind:
		return string(m.Kind)
	case FieldDate:
		return m.Date
	}
	return ""
}

// IndexValue implements Record.
func (o Observation) IndexValue(field string) string {
	switch field {
	case FieldStudentID:
		return o.StudentID
	case FieldDate:
		return o.Date
	}
	return ""
}

// IndexValue implements Record.
func (l Lesson) IndexValue(field string) string {
	switch field {
	case FieldGroupID:
		return l.GroupID
	case FieldDate:
		return l.Date
	}
	return ""
}

// IndexValue implements Record.
func (s WeeklySchedule) IndexValue(field string) string {
	if field == FieldTitle {
		return s.Title
	}
	return ""
}

// CloneRecord returns a deep copy of r so that slices are never shared
// between the caller, the cache and storage.
func CloneRecord(r Record) Record {
	switch v := r.(type) {
	case Mark:
		return CloneMark(v)
	case Lesson:
		return CloneLesson(v)
	case WeeklySchedule:
		return CloneSchedule(v)
	}
	return r
}

// CloneMark copies the value pointer.
func CloneMark(m Mark) Mark {
	if m.Value != nil {
		v := *m.Value
		m.Value = &v
	}
	return m
}

// CloneLesson copies the attachment list.
func CloneLesson(l Lesson) Lesson {
	if l.Attachments != nil {
		l.Attachments = append([]string(nil), l.Attachments...)
	}
	return l
}

// CloneSchedule copies the slot list.
func CloneSchedule(s WeeklySchedule) WeeklySchedule {
	if s.Slots != nil {
		s.Slots = append([]WeeklySlot(nil), s.Slots...)
	}
	return s
}

// EncodeRecord serializes r as the JSON payload stored by SQL adapters.
func EncodeRecord(r Record) ([]byte, error) {
	return json.Marshal(r)
}

// DecodeRecord restores a record of table from its JSON payload.
func DecodeRecord(table Table, payload []byte) (Record, error) {
	var (
		rec Record
		err error
	)
	switch table {
	case TableGroups:
		var v Group
		err = json.Unmarshal(payload, &v)
		rec = v
	case TableStudents:
		var v Student
		err = json.Unmarshal(payload, &v)
		rec = v
	case TableMarks:
		var v Mark
		err = json.Unmarshal(payload, &v)
		rec = v
	case TableObservations:
		var v Observation
		err = json.Unmarshal(payload, &v)
		rec = v
	case TableLessons:
		var v Lesson
		err = json.Unmarshal(payload, &v)
		rec = v
	case TableSchedules:
		var v WeeklySchedule
		err = json.Unmarshal(payload, &v)
		rec = v
	default:
		return nil, fmt.Errorf("unknown table %q", table)
	}
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", table, err)
	}
	return rec, nil
}

// Dataset is the full content of the database, one slice per table.
type Dataset struct {
	Groups       []Group          `json:"groups"`
	Students     []Student        `json:"students"`
	Marks        []Mark           `json:"marks"`
	Observations []Observation    `json:"observations"`
	Lessons      []Lesson         `json:"lessons"`
	Schedules    []WeeklySchedule `json:"schedules"`
}

// Add appends r to the slice matching its kind.
func (d *Dataset) Add(r Record) {
	switch v := r.(type) {
	case Group:
		d.Groups = append(d.Groups, v)
	case Student:
		d.Students = append(d.Students, v)
	case Mark:
		d.Marks = append(d.Marks, CloneMark(v))
	case Observation:
		d.Observations = append(d.Observations, v)
	case Lesson:
		d.Lessons = append(d.Lessons, CloneLesson(v))
	case WeeklySchedule:
		d.Schedules = append(d.Schedules, CloneSchedule(v))
	}
}

// Records returns the rows of table as records.
func (d Dataset) Records(table Table) []Record {
	var out []Record
	switch table {
	case TableGroups:
		for _, v := range d.Groups {
			out = append(out, v)
		}
	case TableStudents:
		for _, v := range d.Students {
			out = append(out, v)
		}
	case TableMarks:
		for _, v := range d.Marks {
			out = append(out, v)
		}
	case TableObservations:
		for _, v := range d.Observations {
			out = append(out, v)
		}
	case TableLessons:
		for _, v := range d.Lessons {
			out = append(out, v)
		}
	case TableSchedules:
		for _, v := range d.Schedules {
			out = append(out, v)
		}
	}
	return out
}

// Len returns the total number of rows.
func (d Dataset) Len() int {
	return len(d.Groups) + len(d.Students) + len(d.Marks) + len(d.Observations) + len(d.Lessons) + len(d.Schedules)
}
