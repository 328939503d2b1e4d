package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseRoleIsCaseInsensitive(t *testing.T) {
	assert.Equal(t, RoleTeacher, ParseRole("teacher"))
	assert.Equal(t, RoleTeacher, ParseRole("Teacher"))
	assert.Equal(t, RoleSubTeacher, ParseRole("SUBTEACHER"))
	assert.Equal(t, RoleSubTeacher, ParseRole("sub-teacher"))
	assert.Equal(t, RoleStudent, ParseRole(" student "))
}

func TestParseRoleDefaultsToUnknown(t *testing.T) {
	assert.Equal(t, RoleUnknown, ParseRole("guest"))
	assert.Equal(t, RoleUnknown, ParseRole(""))
	assert.Equal(t, RoleUnknown, ParseRole("admin"))
}

func TestDeriveAccessClosedSetDefaultDeny(t *testing.T) {
	assert.True(t, DeriveAccess("teacher").ManageClasswork)
	assert.True(t, DeriveAccess("SUBTEACHER").ManageClasswork)
	assert.False(t, DeriveAccess("student").ManageClasswork)
	assert.False(t, DeriveAccess("guest").ManageClasswork)

	// Unknown roles get no access at all, never a default-allow.
	assert.Equal(t, Access{}, DeriveAccess("guest"))
	assert.Equal(t, Access{}, DeriveAccess("student"))
}

func TestTeacherAndSubTeacherAreEquivalentForManagement(t *testing.T) {
	assert.Equal(t, RoleTeacher.Access(), RoleSubTeacher.Access())
	assert.True(t, RoleSubTeacher.CanManage())
	assert.False(t, RoleStudent.CanManage())
	assert.False(t, RoleUnknown.CanManage())
}

func TestPendingTopicPlaceholder(t *testing.T) {
	pending := PendingTopic("Fractions")
	assert.True(t, pending.Pending())
	assert.Zero(t, pending.ID)

	existing := Topic{ID: 12, Title: "Fractions"}
	assert.False(t, existing.Pending())

	// Pending is an explicit state, not an id-zero sentinel: a decoded
	// topic with a zero id is still not a placeholder.
	var decoded Topic
	assert.False(t, decoded.Pending())
}
