package export

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleSheet() GradeSheet {
	ten := 10
	hundred := 100
	return GradeSheet{
		ClassName: "Algebra I",
		Assignments: []AssignmentColumn{
			{ID: 1, Title: "Quiz 1", Points: &ten},
			{ID: 2, Title: "Final", Points: &hundred},
		},
		Students: []StudentRow{
			{Name: "Grace", Email: "grace@example.com", Scores: map[int64]int{1: 9}},
			{Name: "Ada", Email: "ada@example.com", Scores: map[int64]int{1: 10, 2: 95}},
		},
	}
}

func TestTabulateOrdersStudentsAndLeavesGapsEmpty(t *testing.T) {
	data := sampleSheet().Tabulate()

	assert.Equal(t, []string{"Student", "Email", "Quiz 1 (/10)", "Final (/100)"}, data.Headers)
	require.Len(t, data.Rows, 2)
	assert.Equal(t, "Ada", data.Rows[0]["Student"])
	assert.Equal(t, "95", data.Rows[0]["Final (/100)"])
	assert.Equal(t, "Grace", data.Rows[1]["Student"])
	assert.Empty(t, data.Rows[1]["Final (/100)"], "ungraded cell stays empty")
}

func TestRenderCSV(t *testing.T) {
	out, err := RenderCSV(sampleSheet())
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(string(out)), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "Student,Email,Quiz 1 (/10),Final (/100)", lines[0])
	assert.Equal(t, "Ada,ada@example.com,10,95", lines[1])
	assert.Equal(t, "Grace,grace@example.com,9,", lines[2])
}

func TestRenderPDFProducesDocument(t *testing.T) {
	out, err := RenderPDF(sampleSheet())
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(out), "%PDF"))
}

func TestRenderCSVRejectsEmptySheet(t *testing.T) {
	_, err := RenderCSV(GradeSheet{})
	assert.Error(t, err)
}
