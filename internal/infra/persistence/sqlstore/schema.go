package sqlstore

import (
	"fmt"
	"strings"

	"gradebook/pkg/domain"
)

// Dialect captures the few places where SQL engines differ.
type Dialect struct {
	Name string
	// Placeholder renders the n-th (1-based) bind parameter.
	Placeholder func(n int) string
	// PayloadType is the column type holding the JSON document.
	PayloadType string
}

type column struct {
	name  string
	field string
}

type index struct {
	name    string
	columns []string
	unique  bool
}

type tableSchema struct {
	table   domain.Table
	columns []column
	indexes []index
}

var schema = []tableSchema{
	{
		table:   domain.TableGroups,
		columns: []column{{"code", domain.FieldCode}, {"grade", domain.FieldGrade}},
		indexes: []index{
			{name: "groups_code_idx", columns: []string{"code"}},
			{name: "groups_grade_idx", columns: []string{"grade"}},
		},
	},
	{
		table:   domain.TableStudents,
		columns: []column{{"group_id", domain.FieldGroupID}, {"number", domain.FieldNumber}},
		indexes: []index{
			{name: "students_group_id_idx", columns: []string{"group_id"}},
			{name: "students_group_number_idx", columns: []string{"group_id", "number"}},
		},
	},
	{
		table:   domain.TableMarks,
		columns: []column{{"student_id", domain.FieldStudentID}, {"kind", domain.FieldKind}},
		indexes: []index{
			{name: "marks_student_id_idx", columns: []string{"student_id"}},
			{name: "marks_student_kind_key", columns: []string{"student_id", "kind"}, unique: true},
		},
	},
	{
		table:   domain.TableObservations,
		columns: []column{{"student_id", domain.FieldStudentID}, {"date", domain.FieldDate}},
		indexes: []index{
			{name: "observations_student_id_idx", columns: []string{"student_id"}},
			{name: "observations_date_idx", columns: []string{"date"}},
		},
	},
	{
		table:   domain.TableLessons,
		columns: []column{{"group_id", domain.FieldGroupID}, {"date", domain.FieldDate}},
		indexes: []index{
			{name: "lessons_group_id_idx", columns: []string{"group_id"}},
			{name: "lessons_group_date_idx", columns: []string{"group_id", "date"}},
		},
	},
	{
		table:   domain.TableSchedules,
		columns: []column{{"title", domain.FieldTitle}},
		indexes: []index{
			{name: "schedules_title_idx", columns: []string{"title"}},
		},
	},
}

func schemaFor(table domain.Table) (tableSchema, bool) {
	for _, ts := range schema {
		if ts.table == table {
			return ts, true
		}
	}
	return tableSchema{}, false
}

func (ts tableSchema) columnFor(field string) (string, bool) {
	for _, c := range ts.columns {
		if c.field == field {
			return c.name, true
		}
	}
	return "", false
}

func quote(table domain.Table) string {
	return `"` + string(table) + `"`
}

// createStatements returns the DDL for every table and its indexes.
func (d Dialect) createStatements() []string {
	var stmts []string
	for _, ts := range schema {
		cols := []string{"id TEXT PRIMARY KEY"}
		for _, c := range ts.columns {
			cols = append(cols, c.name+" TEXT NOT NULL")
		}
		cols = append(cols, "payload "+d.PayloadType+" NOT NULL")
		stmts = append(stmts, fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (%s)", quote(ts.table), strings.Join(cols, ", ")))
		for _, idx := range ts.indexes {
			kind := "INDEX"
			if idx.unique {
				kind = "UNIQUE INDEX"
			}
			stmts = append(stmts, fmt.Sprintf("CREATE %s IF NOT EXISTS %s ON %s (%s)", kind, idx.name, quote(ts.table), strings.Join(idx.columns, ", ")))
		}
	}
	return stmts
}

// dropStatements removes every table, children first.
func (d Dialect) dropStatements() []string {
	stmts := make([]string, 0, len(schema))
	for i := len(schema) - 1; i >= 0; i-- {
		stmts = append(stmts, "DROP TABLE IF EXISTS "+quote(schema[i].table))
	}
	return stmts
}

func (d Dialect) upsertStatement(ts tableSchema) string {
	names := []string{"id"}
	for _, c := range ts.columns {
		names = append(names, c.name)
	}
	names = append(names, "payload")
	params := make([]string, len(names))
	for i := range names {
		params[i] = d.Placeholder(i + 1)
	}
	updates := make([]string, 0, len(names)-1)
	for _, n := range names[1:] {
		updates = append(updates, n+" = excluded."+n)
	}
	return fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s) ON CONFLICT (id) DO UPDATE SET %s",
		quote(ts.table), strings.Join(names, ", "), strings.Join(params, ", "), strings.Join(updates, ", "))
}

func (d Dialect) deleteStatement(table domain.Table, col string) string {
	return fmt.Sprintf("DELETE FROM %s WHERE %s = %s", quote(table), col, d.Placeholder(1))
}

func selectStatement(table domain.Table) string {
	return fmt.Sprintf("SELECT payload FROM %s ORDER BY id", quote(table))
}
