package state

import (
	"slices"
	"sort"
	"strconv"
	"strings"

	"gradebook/pkg/domain"
)

func gradeRank(g domain.Grade) int {
	for i, v := range domain.Grades {
		if v == g {
			return i
		}
	}
	return len(domain.Grades)
}

func kindRank(k domain.AssessmentKind) int {
	for i, v := range domain.AssessmentKinds {
		if v == k {
			return i
		}
	}
	return len(domain.AssessmentKinds)
}

// groupLess orders groups by grade, then code, then id.
func groupLess(a, b domain.Group) bool {
	if ra, rb := gradeRank(a.Grade), gradeRank(b.Grade); ra != rb {
		return ra < rb
	}
	if a.Code != b.Code {
		return a.Code < b.Code
	}
	return a.ID < b.ID
}

func rosterNumber(number string) (int64, bool) {
	n, err := strconv.ParseInt(strings.TrimSpace(number), 10, 64)
	return n, err == nil
}

// studentLess orders integer roster numbers numerically ahead of any
// non-numeric number, which sort lexically.
func studentLess(a, b domain.Student) bool {
	na, okA := rosterNumber(a.Number)
	nb, okB := rosterNumber(b.Number)
	switch {
	case okA && okB && na != nb:
		return na < nb
	case okA != okB:
		return okA
	}
	if a.Number != b.Number {
		return a.Number < b.Number
	}
	if a.Name != b.Name {
		return a.Name < b.Name
	}
	return a.ID < b.ID
}

func lessonLess(a, b domain.Lesson) bool {
	if a.Date != b.Date {
		return a.Date < b.Date
	}
	if a.Start != b.Start {
		return a.Start < b.Start
	}
	return a.ID < b.ID
}

func observationLess(a, b domain.Observation) bool {
	if a.Date != b.Date {
		return a.Date < b.Date
	}
	return a.ID < b.ID
}

func scheduleLess(a, b domain.WeeklySchedule) bool {
	if a.CreatedAt != b.CreatedAt {
		return a.CreatedAt < b.CreatedAt
	}
	return a.ID < b.ID
}

// insertSorted places id at its ordered position in ids. less compares ids
// through the caller's entity map, which must already hold the new value.
func insertSorted(ids []string, id string, less func(a, b string) bool) []string {
	i := sort.Search(len(ids), func(i int) bool { return !less(ids[i], id) })
	return slices.Insert(ids, i, id)
}

func removeID(ids []string, id string) []string {
	if i := slices.Index(ids, id); i >= 0 {
		return slices.Delete(ids, i, i+1)
	}
	return ids
}
