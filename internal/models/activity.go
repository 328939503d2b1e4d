package models

// ActivityItem is one entry in a class activity feed: announcements,
// assignments and materials merged, tagged with their entity type.
type ActivityItem struct {
	EntityID     int64  `json:"entityId"`
	EntityType   string `json:"entityType"`
	Content      string `json:"content"`
	ActivityDate string `json:"activityDate"`
}

// ClassDetails is the activity feed payload for a single class.
type ClassDetails struct {
	Details []ActivityItem `json:"details"`
}

// Announcement is a free-text post on a class stream.
type Announcement struct {
	ID        int64  `json:"id"`
	ClassID   int64  `json:"classId"`
	Message   string `json:"message"`
	AuthorID  int64  `json:"authorId,omitempty"`
	CreatedAt string `json:"createdAt,omitempty"`
}

// CreateAnnouncementRequest posts an announcement to a class stream.
type CreateAnnouncementRequest struct {
	ClassID int64  `json:"classId" validate:"required"`
	Message string `json:"message" validate:"required,max=4000"`
}

// Notification is a per-user event delivered over the realtime channel or
// fetched from the notification history.
type Notification struct {
	ID          int64  `json:"id"`
	Type        string `json:"type"`
	ReferenceID int64  `json:"referenceId"`
	ClassName   string `json:"className,omitempty"`
	Message     string `json:"message,omitempty"`
	IsRead      bool   `json:"isRead"`
	CreatedAt   string `json:"createdAt,omitempty"`
}
