package state

import (
	"sort"

	"gradebook/pkg/domain"
)

// Reader is the read-only projection handed to UI and export collaborators.
type Reader interface {
	Groups() []domain.Group
	Group(id string) (domain.Group, bool)
	Students(groupID string) []domain.Student
	Student(id string) (domain.Student, bool)
	Marks(studentID string) []domain.Mark
	Mark(studentID string, kind domain.AssessmentKind) (domain.Mark, bool)
	MarkValues(studentID string) map[domain.AssessmentKind]*float64
	Observations(studentID string) []domain.Observation
	Observation(id string) (domain.Observation, bool)
	Lessons(groupID string) []domain.Lesson
	Lesson(id string) (domain.Lesson, bool)
	Schedules() []domain.WeeklySchedule
	Schedule(id string) (domain.WeeklySchedule, bool)
	ActiveSchedule() (domain.WeeklySchedule, bool)
	GroupSchedule(groupID string) (domain.WeeklySchedule, bool)
	SelectedGroupID() string
	Counts() Counts
	Export() domain.Dataset
}

var _ Reader = (*Cache)(nil)

// Counts reports the number of rows per table.
type Counts struct {
	Groups       int `json:"groups"`
	Students     int `json:"students"`
	Marks        int `json:"marks"`
	Observations int `json:"observations"`
	Lessons      int `json:"lessons"`
	Schedules    int `json:"schedules"`
}

// Groups returns every group ordered by grade then code.
func (c *Cache) Groups() []domain.Group {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]domain.Group, 0, len(c.groupOrder))
	for _, id := range c.groupOrder {
		out = append(out, c.groups[id])
	}
	return out
}

func (c *Cache) Group(id string) (domain.Group, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	g, ok := c.groups[id]
	return g, ok
}

// Students returns the roster of a group in roster-number order.
func (c *Cache) Students(groupID string) []domain.Student {
	c.mu.RLock()
	defer c.mu.RUnlock()
	ids := c.studentsByGroup[groupID]
	out := make([]domain.Student, 0, len(ids))
	for _, id := range ids {
		out = append(out, c.students[id])
	}
	return out
}

func (c *Cache) Student(id string) (domain.Student, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	s, ok := c.students[id]
	return s, ok
}

// Marks returns the marks of a student in assessment-kind order.
func (c *Cache) Marks(studentID string) []domain.Mark {
	c.mu.RLock()
	defer c.mu.RUnlock()
	byKind := c.marksByStudent[studentID]
	out := make([]domain.Mark, 0, len(byKind))
	for _, kind := range domain.AssessmentKinds {
		if id, ok := byKind[kind]; ok {
			out = append(out, domain.CloneMark(c.marks[id]))
		}
	}
	return out
}

func (c *Cache) Mark(studentID string, kind domain.AssessmentKind) (domain.Mark, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	id, ok := c.marksByStudent[studentID][kind]
	if !ok {
		return domain.Mark{}, false
	}
	return domain.CloneMark(c.marks[id]), true
}

// MarkValues maps each recorded kind to its value. An ungraded mark is
// present with a nil value; a kind never recorded is absent.
func (c *Cache) MarkValues(studentID string) map[domain.AssessmentKind]*float64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	byKind := c.marksByStudent[studentID]
	out := make(map[domain.AssessmentKind]*float64, len(byKind))
	for kind, id := range byKind {
		out[kind] = domain.CloneMark(c.marks[id]).Value
	}
	return out
}

// Observations returns the notes about a student ordered by date.
func (c *Cache) Observations(studentID string) []domain.Observation {
	c.mu.RLock()
	defer c.mu.RUnlock()
	ids := c.observationsByStudent[studentID]
	out := make([]domain.Observation, 0, len(ids))
	for _, id := range ids {
		out = append(out, c.observations[id])
	}
	return out
}

func (c *Cache) Observation(id string) (domain.Observation, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	o, ok := c.observations[id]
	return o, ok
}

// Lessons returns the lessons of a group ordered by date then start time.
func (c *Cache) Lessons(groupID string) []domain.Lesson {
	c.mu.RLock()
	defer c.mu.RUnlock()
	ids := c.lessonsByGroup[groupID]
	out := make([]domain.Lesson, 0, len(ids))
	for _, id := range ids {
		out = append(out, domain.CloneLesson(c.lessons[id]))
	}
	return out
}

func (c *Cache) Lesson(id string) (domain.Lesson, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	l, ok := c.lessons[id]
	return domain.CloneLesson(l), ok
}

// Schedules returns every timetable ordered by creation time.
func (c *Cache) Schedules() []domain.WeeklySchedule {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]domain.WeeklySchedule, 0, len(c.scheduleOrder))
	for _, id := range c.scheduleOrder {
		out = append(out, domain.CloneSchedule(c.schedules[id]))
	}
	return out
}

func (c *Cache) Schedule(id string) (domain.WeeklySchedule, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	s, ok := c.schedules[id]
	return domain.CloneSchedule(s), ok
}

// ActiveSchedule returns the explicitly activated timetable, or the most
// recently created one when none was activated.
func (c *Cache) ActiveSchedule() (domain.WeeklySchedule, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if s, ok := c.schedules[c.activeScheduleID]; ok {
		return domain.CloneSchedule(s), true
	}
	if n := len(c.scheduleOrder); n > 0 {
		return domain.CloneSchedule(c.schedules[c.scheduleOrder[n-1]]), true
	}
	return domain.WeeklySchedule{}, false
}

// GroupSchedule resolves the timetable of a group: its scheduleId when that
// still exists, otherwise the earliest-created schedule with a slot tagged
// with the group's code.
func (c *Cache) GroupSchedule(groupID string) (domain.WeeklySchedule, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	g, ok := c.groups[groupID]
	if !ok {
		return domain.WeeklySchedule{}, false
	}
	if s, ok := c.schedules[g.ScheduleID]; ok && g.ScheduleID != "" {
		return domain.CloneSchedule(s), true
	}
	for _, id := range c.scheduleOrder {
		if s := c.schedules[id]; s.HasGroupCode(g.Code) {
			return domain.CloneSchedule(s), true
		}
	}
	return domain.WeeklySchedule{}, false
}

func (c *Cache) SelectedGroupID() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.selectedGroupID
}

func (c *Cache) Counts() Counts {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return Counts{
		Groups:       len(c.groups),
		Students:     len(c.students),
		Marks:        len(c.marks),
		Observations: len(c.observations),
		Lessons:      len(c.lessons),
		Schedules:    len(c.schedules),
	}
}

// Export returns a deep copy of every row. Children follow the order of
// their parents so that the result is stable across reloads.
func (c *Cache) Export() domain.Dataset {
	c.mu.RLock()
	defer c.mu.RUnlock()

	groupRank := make(map[string]int, len(c.groupOrder))
	for i, id := range c.groupOrder {
		groupRank[id] = i
	}
	rank := func(m map[string]int, id string) int {
		if r, ok := m[id]; ok {
			return r
		}
		return len(m)
	}

	var ds domain.Dataset
	for _, id := range c.groupOrder {
		ds.Groups = append(ds.Groups, c.groups[id])
	}

	for _, s := range c.students {
		ds.Students = append(ds.Students, s)
	}
	sort.Slice(ds.Students, func(i, j int) bool {
		a, b := ds.Students[i], ds.Students[j]
		if ra, rb := rank(groupRank, a.GroupID), rank(groupRank, b.GroupID); ra != rb {
			return ra < rb
		}
		if a.GroupID != b.GroupID {
			return a.GroupID < b.GroupID
		}
		return studentLess(a, b)
	})
	studentRank := make(map[string]int, len(ds.Students))
	for i, s := range ds.Students {
		studentRank[s.ID] = i
	}

	for _, m := range c.marks {
		ds.Marks = append(ds.Marks, domain.CloneMark(m))
	}
	sort.Slice(ds.Marks, func(i, j int) bool {
		a, b := ds.Marks[i], ds.Marks[j]
		if ra, rb := rank(studentRank, a.StudentID), rank(studentRank, b.StudentID); ra != rb {
			return ra < rb
		}
		if a.StudentID != b.StudentID {
			return a.StudentID < b.StudentID
		}
		if ka, kb := kindRank(a.Kind), kindRank(b.Kind); ka != kb {
			return ka < kb
		}
		return a.ID < b.ID
	})

	for _, o := range c.observations {
		ds.Observations = append(ds.Observations, o)
	}
	sort.Slice(ds.Observations, func(i, j int) bool {
		a, b := ds.Observations[i], ds.Observations[j]
		if ra, rb := rank(studentRank, a.StudentID), rank(studentRank, b.StudentID); ra != rb {
			return ra < rb
		}
		if a.StudentID != b.StudentID {
			return a.StudentID < b.StudentID
		}
		return observationLess(a, b)
	})

	for _, l := range c.lessons {
		ds.Lessons = append(ds.Lessons, domain.CloneLesson(l))
	}
	sort.Slice(ds.Lessons, func(i, j int) bool {
		a, b := ds.Lessons[i], ds.Lessons[j]
		if ra, rb := rank(groupRank, a.GroupID), rank(groupRank, b.GroupID); ra != rb {
			return ra < rb
		}
		if a.GroupID != b.GroupID {
			return a.GroupID < b.GroupID
		}
		return lessonLess(a, b)
	})

	for _, id := range c.scheduleOrder {
		ds.Schedules = append(ds.Schedules, domain.CloneSchedule(c.schedules[id]))
	}
	return ds
}
