package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/classhub/classhub-go/internal/models"
)

func TestBuildGradeSheetCarriesPointsAndFiltersRoster(t *testing.T) {
	points := 80
	topics := []models.Topic{
		{ID: 1, Title: "Unit 1", Assignments: []models.Assignment{
			{ID: 10, Title: "Quiz 1", Points: &points},
			{ID: 11, Title: "Reading check"},
		}},
		{ID: 2, Title: "Unit 2", Assignments: []models.Assignment{
			{ID: 12, Title: "Quiz 2", Points: &points},
		}},
	}
	roster := []models.Participant{
		{UserID: 1, Name: "Dana Cole", Email: "dana@example.com", Role: "Teacher"},
		{UserID: 2, Name: "Sam Ode", Email: "sam@example.com", Role: "Student"},
		{UserID: 3, Name: "Noor Haddad", Email: "noor@example.com", Role: "SubTeacher"},
	}

	sheet := buildGradeSheet("Algebra I", topics, roster)

	assert.Equal(t, "Algebra I", sheet.ClassName)
	require.Len(t, sheet.Assignments, 3)
	require.NotNil(t, sheet.Assignments[0].Points)
	assert.Equal(t, 80, *sheet.Assignments[0].Points)
	assert.Nil(t, sheet.Assignments[1].Points)

	require.Len(t, sheet.Students, 1)
	assert.Equal(t, "Sam Ode", sheet.Students[0].Name)

	// The whole sheet renders: point-less columns keep a bare title header.
	data := sheet.Tabulate()
	assert.Contains(t, data.Headers, "Quiz 1 (/80)")
	assert.Contains(t, data.Headers, "Reading check")
}
