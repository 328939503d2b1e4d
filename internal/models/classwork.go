package models

// Topic groups materials and assignments within a class. A topic either
// exists on the server or is pending creation as part of an enclosing
// assignment/material save; the two states are kept explicit instead of
// overloading identifier zero.
type Topic struct {
	ID          int64        `json:"id"`
	Title       string       `json:"title"`
	CreatedAt   string       `json:"createdAt,omitempty"`
	Materials   []Material   `json:"materials,omitempty"`
	Assignments []Assignment `json:"assignments,omitempty"`

	// pending is set only by PendingTopic; decoded and constructed topics
	// are always existing, whatever their id.
	pending bool
}

// Pending reports whether the topic is a local placeholder that has not
// been persisted yet.
func (t Topic) Pending() bool {
	return t.pending
}

// PendingTopic returns a placeholder topic to be created as part of the
// enclosing save operation.
func PendingTopic(title string) Topic {
	return Topic{Title: title, pending: true}
}

// AttachmentKind tags what an attachment points at.
type AttachmentKind string

const (
	AttachmentVideoLink    AttachmentKind = "Video"
	AttachmentWebLink      AttachmentKind = "Link"
	AttachmentUploadedFile AttachmentKind = "File"
)

// Attachment carries either a URL (video/web links) or a local file path to
// upload (uploaded files).
type Attachment struct {
	Kind     AttachmentKind `json:"fileType"`
	URL      string         `json:"fileUrl,omitempty"`
	FilePath string         `json:"filePath,omitempty"`
}

// Assignment is graded classwork.
type Assignment struct {
	ID                  int64        `json:"id"`
	Title               string       `json:"title"`
	Instructions        string       `json:"instructions,omitempty"`
	Points              *int         `json:"points,omitempty"`
	DueDate             string       `json:"dueDate,omitempty"`
	AllowLateSubmission bool         `json:"allowLateSubmission,omitempty"`
	Attachments         []Attachment `json:"attachments,omitempty"`
	CreatedAt           string       `json:"createdAt,omitempty"`
}

// Material is ungraded classwork.
type Material struct {
	ID          int64        `json:"id"`
	Title       string       `json:"title"`
	Description string       `json:"description,omitempty"`
	Attachments []Attachment `json:"attachments,omitempty"`
	CreatedAt   string       `json:"createdAt,omitempty"`
}

// CreateTopicRequest creates a standalone topic.
type CreateTopicRequest struct {
	Title  string `json:"title" validate:"required,max=120"`
	UserID int64  `json:"userId" validate:"required"`
}

// CreateAssignmentRequest is the multipart assignment creation payload.
// Exactly one of NewTopicTitle / TopicID is honoured: a pending topic is
// created server-side as part of the same save. An empty StudentIDs slice
// targets all current students.
type CreateAssignmentRequest struct {
	ClassID             int64        `json:"classId" validate:"required"`
	TopicID             int64        `json:"selectedTopicId,omitempty"`
	NewTopicTitle       string       `json:"newTopicTitle,omitempty" validate:"max=120"`
	Title               string       `json:"assignmentTitle" validate:"required,max=200"`
	Instructions        string       `json:"instructions,omitempty"`
	Points              *int         `json:"points,omitempty" validate:"omitempty,gte=0,lte=100"`
	DueDate             string       `json:"dueDate,omitempty"`
	AllowLateSubmission bool         `json:"allowLateSubmission,omitempty"`
	StudentIDs          []int64      `json:"studentIds,omitempty"`
	Attachments         []Attachment `json:"attachments,omitempty"`
	CreatedByUserID     int64        `json:"createdByUserId" validate:"required"`
}

// CreateAssignmentResult echoes the identifiers assigned by the server,
// including the topic resolved from a pending placeholder.
type CreateAssignmentResult struct {
	AssignmentID int64  `json:"assignmentId"`
	ClassWorkID  int64  `json:"classWorkId"`
	TopicID      *int64 `json:"topicId,omitempty"`
}

// CreateMaterialRequest mirrors assignment creation without grading fields.
type CreateMaterialRequest struct {
	ClassID         int64        `json:"classId" validate:"required"`
	TopicID         int64        `json:"selectedTopicId,omitempty"`
	NewTopicTitle   string       `json:"newTopicTitle,omitempty" validate:"max=120"`
	Title           string       `json:"materialTitle" validate:"required,max=200"`
	Description     string       `json:"description,omitempty"`
	StudentIDs      []int64      `json:"studentIds,omitempty"`
	Attachments     []Attachment `json:"attachments,omitempty"`
	CreatedByUserID int64        `json:"createdByUserId" validate:"required"`
}
