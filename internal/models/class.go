package models

// Class is one course/section as seen by the current user. Role is always
// relative to the viewing user; the same class fetched for another user may
// carry a different role.
type Class struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	Section     string `json:"section,omitempty"`
	Subject     string `json:"subject,omitempty"`
	Room        string `json:"room,omitempty"`
	ClassCode   string `json:"classCode,omitempty"`
	Role        string `json:"role"`
	IsDeleted   bool   `json:"isDeleted"`
	CreatedBy   int64  `json:"createdBy,omitempty"`
	CreatedDate string `json:"createdDate,omitempty"`
}

// ViewerRole returns the parsed role of the current user for this class.
func (c Class) ViewerRole() Role {
	return ParseRole(c.Role)
}

// CreateClassRequest is the class creation payload.
type CreateClassRequest struct {
	UserID  int64  `json:"userId" validate:"required"`
	Name    string `json:"name" validate:"required,max=120"`
	Section string `json:"section,omitempty" validate:"max=60"`
	Subject string `json:"subject,omitempty" validate:"max=60"`
	Room    string `json:"room,omitempty" validate:"max=60"`
}

// UpdateClassRequest carries the full resulting class fields; the server
// returns the updated record which replaces the local one.
type UpdateClassRequest struct {
	Name    string `json:"name" validate:"required,max=120"`
	Section string `json:"section,omitempty" validate:"max=60"`
	Subject string `json:"subject,omitempty" validate:"max=60"`
	Room    string `json:"room,omitempty" validate:"max=60"`
}
