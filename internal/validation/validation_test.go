package validation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/classhub/classhub-go/internal/models"
	appErrors "github.com/classhub/classhub-go/pkg/errors"
)

func TestStructReturnsFieldMessages(t *testing.T) {
	val := New()

	err := val.Struct(models.RegisterRequest{Email: "not-an-email", Password: "123"})
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrValidation))

	fields := Fields(err)
	require.NotNil(t, fields)
	assert.Equal(t, "is required", fields["name"])
	assert.Equal(t, "must be a valid email address", fields["email"])
	assert.Equal(t, "must be at least 6 characters", fields["password"])
}

func TestStructAcceptsValidPayload(t *testing.T) {
	val := New()

	err := val.Struct(models.CreateClassRequest{UserID: 7, Name: "Algebra I", Section: "A"})
	assert.NoError(t, err)
}

func TestAssignmentPointsRange(t *testing.T) {
	val := New()

	over := 101
	err := val.Struct(models.CreateAssignmentRequest{
		ClassID:         1,
		Title:           "Homework 3",
		Points:          &over,
		CreatedByUserID: 7,
	})
	require.Error(t, err)
	assert.Equal(t, "must be at most 100", Fields(err)["points"])

	valid := 100
	err = val.Struct(models.CreateAssignmentRequest{
		ClassID:         1,
		Title:           "Homework 3",
		Points:          &valid,
		CreatedByUserID: 7,
	})
	assert.NoError(t, err)
}
