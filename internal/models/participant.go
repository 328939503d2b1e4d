package models

// Participant is one class membership: a user together with the role they
// hold in that class.
type Participant struct {
	UserID         int64  `json:"userId"`
	Name           string `json:"userName"`
	Email          string `json:"email"`
	Role           string `json:"role"`
	ProfilePicture string `json:"profilePicture,omitempty"`
}

// MembershipRole returns the parsed role for this membership.
func (p Participant) MembershipRole() Role {
	return ParseRole(p.Role)
}

// InviteRequest invites a user by email into a class. The server resolves
// the email to an existing or new account; the client never synthesizes the
// resulting participant locally.
type InviteRequest struct {
	Email string `json:"email" validate:"required,email"`
}
