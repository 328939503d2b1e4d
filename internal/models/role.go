package models

import "strings"

// Role is a user's role within one class membership. The same user may be a
// Teacher in one class and a Student in another, so a Role is never global.
type Role int

const (
	// RoleUnknown covers any role string outside the closed set. It always
	// denies access; unrecognized input must never default to allow.
	RoleUnknown Role = iota
	RoleTeacher
	RoleSubTeacher
	RoleStudent
)

// ParseRole maps a wire role string onto the closed enum, case-insensitively.
func ParseRole(raw string) Role {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "teacher":
		return RoleTeacher
	case "subteacher", "sub-teacher", "sub_teacher":
		return RoleSubTeacher
	case "student":
		return RoleStudent
	default:
		return RoleUnknown
	}
}

// String returns the canonical wire spelling.
func (r Role) String() string {
	switch r {
	case RoleTeacher:
		return "Teacher"
	case RoleSubTeacher:
		return "SubTeacher"
	case RoleStudent:
		return "Student"
	default:
		return "Unknown"
	}
}

// Access is the capability set derived from a role.
type Access struct {
	ManageClasswork    bool
	ViewGrades         bool
	ManageParticipants bool
}

// Access returns the capabilities for r. Teacher and SubTeacher are
// equivalent for classwork management; Student sees a strict subset;
// everything else gets nothing.
func (r Role) Access() Access {
	switch r {
	case RoleTeacher, RoleSubTeacher:
		return Access{ManageClasswork: true, ViewGrades: true, ManageParticipants: true}
	case RoleStudent:
		return Access{}
	default:
		return Access{}
	}
}

// CanManage reports whether the role may manage classwork and participants.
func (r Role) CanManage() bool {
	return r.Access().ManageClasswork
}

// DeriveAccess parses a raw role string and returns its capabilities in one
// step, for call sites that only hold the wire value.
func DeriveAccess(raw string) Access {
	return ParseRole(raw).Access()
}
