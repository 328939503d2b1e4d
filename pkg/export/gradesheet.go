// Package export renders a class grade sheet (students × assignments) into
// CSV or PDF for offline sharing.
package export

import (
	"fmt"
	"sort"
)

// GradeSheet is the tabular grade view for one class: one row per student,
// one column per assignment, plus a points-possible reference row.
type GradeSheet struct {
	ClassName   string
	Assignments []AssignmentColumn
	Students    []StudentRow
}

// AssignmentColumn describes one graded assignment.
type AssignmentColumn struct {
	ID     int64
	Title  string
	Points *int
}

// StudentRow carries one student's scores keyed by assignment id. A missing
// key renders as an empty cell (not yet graded or not assigned).
type StudentRow struct {
	Name   string
	Email  string
	Scores map[int64]int
}

// Dataset is the generic tabular shape consumed by the renderers.
type Dataset struct {
	Headers []string
	Rows    []map[string]string
}

// Tabulate flattens the sheet into a Dataset. Students are ordered by name
// so repeated exports of the same class diff cleanly.
func (g GradeSheet) Tabulate() Dataset {
	headers := []string{"Student", "Email"}
	for _, a := range g.Assignments {
		title := a.Title
		if a.Points != nil {
			title = fmt.Sprintf("%s (/%d)", a.Title, *a.Points)
		}
		headers = append(headers, title)
	}

	students := append([]StudentRow(nil), g.Students...)
	sort.Slice(students, func(i, j int) bool { return students[i].Name < students[j].Name })

	rows := make([]map[string]string, 0, len(students))
	for _, s := range students {
		row := map[string]string{"Student": s.Name, "Email": s.Email}
		for i, a := range g.Assignments {
			if score, ok := s.Scores[a.ID]; ok {
				row[headers[i+2]] = fmt.Sprintf("%d", score)
			}
		}
		rows = append(rows, row)
	}

	return Dataset{Headers: headers, Rows: rows}
}
