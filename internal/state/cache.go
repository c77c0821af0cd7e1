// Package state holds the normalized in-memory mirror of the gradebook
// database: entities by id, foreign-key groupings kept in display order, and
// the selected-group and active-schedule pointers.
package state

import (
	"fmt"
	"sync"

	"gradebook/pkg/domain"
)

// Cache mirrors the persistent store. Only the entity store writes to it;
// every read returns copies.
type Cache struct {
	mu sync.RWMutex

	groups     map[string]domain.Group
	groupOrder []string

	students        map[string]domain.Student
	studentsByGroup map[string][]string

	marks          map[string]domain.Mark
	marksByStudent map[string]map[domain.AssessmentKind]string

	observations          map[string]domain.Observation
	observationsByStudent map[string][]string

	lessons        map[string]domain.Lesson
	lessonsByGroup map[string][]string

	schedules     map[string]domain.WeeklySchedule
	scheduleOrder []string

	selectedGroupID  string
	activeScheduleID string
}

// New returns an empty cache.
func New() *Cache {
	return &Cache{
		groups:                make(map[string]domain.Group),
		students:              make(map[string]domain.Student),
		studentsByGroup:       make(map[string][]string),
		marks:                 make(map[string]domain.Mark),
		marksByStudent:        make(map[string]map[domain.AssessmentKind]string),
		observations:          make(map[string]domain.Observation),
		observationsByStudent: make(map[string][]string),
		lessons:               make(map[string]domain.Lesson),
		lessonsByGroup:        make(map[string][]string),
		schedules:             make(map[string]domain.WeeklySchedule),
	}
}

// FromDataset builds a cache holding every row of ds. The first group in
// order becomes the selected group.
func FromDataset(ds domain.Dataset) *Cache {
	c := New()
	for _, table := range domain.Tables {
		for _, r := range ds.Records(table) {
			c.put(r)
		}
	}
	if len(c.groupOrder) > 0 {
		c.selectedGroupID = c.groupOrder[0]
	}
	return c
}

// Apply runs a committed unit of work against the cache. It either applies
// every op or, when an op is malformed, none of them.
func (c *Cache) Apply(ops []domain.Op) error {
	for _, op := range ops {
		if err := op.Check(); err != nil {
			return fmt.Errorf("cache apply: %w", err)
		}
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, op := range ops {
		switch op.Kind {
		case domain.OpPut:
			for _, r := range op.Rows {
				c.put(r)
			}
		case domain.OpDelete:
			for _, id := range op.IDs {
				c.remove(op.Table, id)
			}
		case domain.OpDeleteWhere:
			for _, value := range op.Values {
				for _, id := range c.childIDs(op.Table, value) {
					c.remove(op.Table, id)
				}
			}
		}
	}
	c.repairPointers()
	return nil
}

// Reset empties the cache in place.
func (c *Cache) Reset() {
	c.swap(New())
}

// Replace swaps the content of c for the rows of ds in place, selecting the
// first group. Readers holding c observe either the old or the new content.
func (c *Cache) Replace(ds domain.Dataset) {
	c.swap(FromDataset(ds))
}

func (c *Cache) swap(fresh *Cache) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.groups, c.groupOrder = fresh.groups, fresh.groupOrder
	c.students, c.studentsByGroup = fresh.students, fresh.studentsByGroup
	c.marks, c.marksByStudent = fresh.marks, fresh.marksByStudent
	c.observations, c.observationsByStudent = fresh.observations, fresh.observationsByStudent
	c.lessons, c.lessonsByGroup = fresh.lessons, fresh.lessonsByGroup
	c.schedules, c.scheduleOrder = fresh.schedules, fresh.scheduleOrder
	c.selectedGroupID, c.activeScheduleID = fresh.selectedGroupID, fresh.activeScheduleID
}

// SetSelectedGroup points the selection at id. An empty id clears it.
func (c *Cache) SetSelectedGroup(id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if id != "" {
		if _, ok := c.groups[id]; !ok {
			return domain.NotFoundError{Kind: domain.KindGroup, ID: id}
		}
	}
	c.selectedGroupID = id
	return nil
}

// SetActiveSchedule marks id as the active timetable. An empty id falls back
// to the most recently created schedule.
func (c *Cache) SetActiveSchedule(id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if id != "" {
		if _, ok := c.schedules[id]; !ok {
			return domain.NotFoundError{Kind: domain.KindSchedule, ID: id}
		}
	}
	c.activeScheduleID = id
	return nil
}

func (c *Cache) put(r domain.Record) {
	switch v := domain.CloneRecord(r).(type) {
	case domain.Group:
		c.groupOrder = removeID(c.groupOrder, v.ID)
		c.groups[v.ID] = v
		c.groupOrder = insertSorted(c.groupOrder, v.ID, func(a, b string) bool {
			return groupLess(c.groups[a], c.groups[b])
		})
	case domain.Student:
		if old, ok := c.students[v.ID]; ok {
			c.studentsByGroup[old.GroupID] = removeID(c.studentsByGroup[old.GroupID], v.ID)
		}
		c.students[v.ID] = v
		c.studentsByGroup[v.GroupID] = insertSorted(c.studentsByGroup[v.GroupID], v.ID, func(a, b string) bool {
			return studentLess(c.students[a], c.students[b])
		})
	case domain.Mark:
		if old, ok := c.marks[v.ID]; ok {
			c.unindexMark(old)
		}
		c.marks[v.ID] = v
		byKind := c.marksByStudent[v.StudentID]
		if byKind == nil {
			byKind = make(map[domain.AssessmentKind]string)
			c.marksByStudent[v.StudentID] = byKind
		}
		byKind[v.Kind] = v.ID
	case domain.Observation:
		if old, ok := c.observations[v.ID]; ok {
			c.observationsByStudent[old.StudentID] = removeID(c.observationsByStudent[old.StudentID], v.ID)
		}
		c.observations[v.ID] = v
		c.observationsByStudent[v.StudentID] = insertSorted(c.observationsByStudent[v.StudentID], v.ID, func(a, b string) bool {
			return observationLess(c.observations[a], c.observations[b])
		})
	case domain.Lesson:
		if old, ok := c.lessons[v.ID]; ok {
			c.lessonsByGroup[old.GroupID] = removeID(c.lessonsByGroup[old.GroupID], v.ID)
		}
		c.lessons[v.ID] = v
		c.lessonsByGroup[v.GroupID] = insertSorted(c.lessonsByGroup[v.GroupID], v.ID, func(a, b string) bool {
			return lessonLess(c.lessons[a], c.lessons[b])
		})
	case domain.WeeklySchedule:
		c.scheduleOrder = removeID(c.scheduleOrder, v.ID)
		c.schedules[v.ID] = v
		c.scheduleOrder = insertSorted(c.scheduleOrder, v.ID, func(a, b string) bool {
			return scheduleLess(c.schedules[a], c.schedules[b])
		})
	}
}

func (c *Cache) unindexMark(m domain.Mark) {
	byKind := c.marksByStudent[m.StudentID]
	if byKind[m.Kind] == m.ID {
		delete(byKind, m.Kind)
	}
	if len(byKind) == 0 {
		delete(c.marksByStudent, m.StudentID)
	}
}

func (c *Cache) remove(table domain.Table, id string) {
	switch table {
	case domain.TableGroups:
		if _, ok := c.groups[id]; ok {
			delete(c.groups, id)
			c.groupOrder = removeID(c.groupOrder, id)
		}
	case domain.TableStudents:
		if old, ok := c.students[id]; ok {
			delete(c.students, id)
			c.studentsByGroup[old.GroupID] = removeID(c.studentsByGroup[old.GroupID], id)
			if len(c.studentsByGroup[old.GroupID]) == 0 {
				delete(c.studentsByGroup, old.GroupID)
			}
		}
	case domain.TableMarks:
		if old, ok := c.marks[id]; ok {
			delete(c.marks, id)
			c.unindexMark(old)
		}
	case domain.TableObservations:
		if old, ok := c.observations[id]; ok {
			delete(c.observations, id)
			c.observationsByStudent[old.StudentID] = removeID(c.observationsByStudent[old.StudentID], id)
			if len(c.observationsByStudent[old.StudentID]) == 0 {
				delete(c.observationsByStudent, old.StudentID)
			}
		}
	case domain.TableLessons:
		if old, ok := c.lessons[id]; ok {
			delete(c.lessons, id)
			c.lessonsByGroup[old.GroupID] = removeID(c.lessonsByGroup[old.GroupID], id)
			if len(c.lessonsByGroup[old.GroupID]) == 0 {
				delete(c.lessonsByGroup, old.GroupID)
			}
		}
	case domain.TableSchedules:
		if _, ok := c.schedules[id]; ok {
			delete(c.schedules, id)
			c.scheduleOrder = removeID(c.scheduleOrder, id)
		}
	}
}

// childIDs returns the ids of table rows whose foreign key equals value.
func (c *Cache) childIDs(table domain.Table, value string) []string {
	switch table {
	case domain.TableStudents:
		return append([]string(nil), c.studentsByGroup[value]...)
	case domain.TableLessons:
		return append([]string(nil), c.lessonsByGroup[value]...)
	case domain.TableObservations:
		return append([]string(nil), c.observationsByStudent[value]...)
	case domain.TableMarks:
		var ids []string
		for id, m := range c.marks {
			if m.StudentID == value {
				ids = append(ids, id)
			}
		}
		return ids
	}
	return nil
}

func (c *Cache) repairPointers() {
	if c.selectedGroupID != "" {
		if _, ok := c.groups[c.selectedGroupID]; !ok {
			c.selectedGroupID = ""
			if len(c.groupOrder) > 0 {
				c.selectedGroupID = c.groupOrder[0]
			}
		}
	}
	if c.activeScheduleID != "" {
		if _, ok := c.schedules[c.activeScheduleID]; !ok {
			c.activeScheduleID = ""
		}
	}
}
