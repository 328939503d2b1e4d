// Package classdetail holds the per-class derived view state: the activity
// feed, the participant roster, and the topic tree for whichever single
// class is currently open. State is fetched fresh when the viewed class
// changes and discarded on navigation away; a response that arrives for a
// class that is no longer viewed is ignored, never applied.
package classdetail

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"sync"

	"go.uber.org/zap"

	"github.com/classhub/classhub-go/internal/api"
	"github.com/classhub/classhub-go/internal/models"
	"github.com/classhub/classhub-go/internal/validation"
	appErrors "github.com/classhub/classhub-go/pkg/errors"
	"github.com/classhub/classhub-go/pkg/toast"
)

type identitySource interface {
	CurrentUserID() int64
}

// Cache owns detail state for the open class.
type Cache struct {
	client   *api.Client
	session  identitySource
	validate *validation.Validator
	logger   *zap.Logger
	toasts   toast.Presenter

	mu      sync.Mutex
	classID int64
	// gen grows every time the viewed class changes; in-flight fetches carry
	// the gen they started under and their results are dropped on mismatch.
	gen          uint64
	feed         []models.ActivityItem
	participants []models.Participant
	topics       []models.Topic
}

// Option customises the cache.
type Option func(*Cache)

// WithToasts attaches the optional user-message presenter.
func WithToasts(p toast.Presenter) Option {
	return func(c *Cache) { c.toasts = p }
}

// NewCache constructs the detail cache.
func NewCache(client *api.Client, session identitySource, validate *validation.Validator, logger *zap.Logger, opts ...Option) *Cache {
	if validate == nil {
		validate = validation.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	c := &Cache{client: client, session: session, validate: validate, logger: logger}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Open switches the viewed class, discarding all state held for the
// previous one. Opening the already-open class is a no-op.
func (c *Cache) Open(classID int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.classID == classID {
		return
	}
	c.switchLocked(classID)
}

// Close discards all detail state; pending fetch results will be ignored.
func (c *Cache) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.switchLocked(0)
}

func (c *Cache) switchLocked(classID int64) {
	c.classID = classID
	c.gen++
	c.feed = nil
	c.participants = nil
	c.topics = nil
}

// ViewedClass returns the currently open class id, 0 when none.
func (c *Cache) ViewedClass() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.classID
}

// Feed returns a copy of the activity feed.
func (c *Cache) Feed() []models.ActivityItem {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]models.ActivityItem(nil), c.feed...)
}

// Participants returns a copy of the roster.
func (c *Cache) Participants() []models.Participant {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]models.Participant(nil), c.participants...)
}

// Topics returns a copy of the topic tree.
func (c *Cache) Topics() []models.Topic {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]models.Topic(nil), c.topics...)
}

// begin makes classID the viewed class (switching if needed) and returns the
// generation the caller's fetch runs under.
func (c *Cache) begin(classID int64) uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.classID != classID {
		c.switchLocked(classID)
	}
	return c.gen
}

// current reports whether a fetch started under gen for classID may still
// apply its result.
func (c *Cache) current(classID int64, gen uint64) bool {
	return c.classID == classID && c.gen == gen
}

// LoadDetails fetches the merged activity feed for classID. Concurrent loads
// for different classes never corrupt each other: only the feed of the class
// still viewed on completion is applied.
func (c *Cache) LoadDetails(ctx context.Context, classID int64) error {
	gen := c.begin(classID)

	var env api.Envelope
	path := fmt.Sprintf("/classes/%d/details", classID)
	if err := c.client.JSON(ctx, http.MethodGet, path, nil, nil, &env); err != nil {
		return err
	}
	var details models.ClassDetails
	if err := env.Decode(&details); err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.current(classID, gen) {
		c.logger.Debug("discarding stale details", zap.Int64("class_id", classID))
		return nil
	}
	c.feed = details.Details
	return nil
}

// LoadParticipants refreshes the roster for classID.
func (c *Cache) LoadParticipants(ctx context.Context, classID int64) error {
	gen := c.begin(classID)
	return c.fetchParticipants(ctx, classID, gen)
}

func (c *Cache) fetchParticipants(ctx context.Context, classID int64, gen uint64) error {
	var roster []models.Participant
	path := fmt.Sprintf("/classes/%d/participants", classID)
	if err := c.client.JSON(ctx, http.MethodGet, path, nil, nil, &roster); err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.current(classID, gen) {
		c.logger.Debug("discarding stale roster", zap.Int64("class_id", classID))
		return nil
	}
	c.participants = roster
	return nil
}

// LoadTopics refreshes the topic tree (with nested materials/assignments).
func (c *Cache) LoadTopics(ctx context.Context, classID int64) error {
	gen := c.begin(classID)
	return c.fetchTopics(ctx, classID, gen)
}

func (c *Cache) fetchTopics(ctx context.Context, classID int64, gen uint64) error {
	var topics []models.Topic
	path := fmt.Sprintf("/classes/%d/topics-with-materials-assignments", classID)
	if err := c.client.JSON(ctx, http.MethodGet, path, nil, nil, &topics); err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.current(classID, gen) {
		c.logger.Debug("discarding stale topics", zap.Int64("class_id", classID))
		return nil
	}
	c.topics = topics
	return nil
}

// LoadAll fetches the roster and topic tree in parallel; both are needed on
// first open and issuing them sequentially doubles perceived latency.
func (c *Cache) LoadAll(ctx context.Context, classID int64) error {
	gen := c.begin(classID)

	var wg sync.WaitGroup
	errs := make([]error, 2)

	wg.Add(2)
	go func() {
		defer wg.Done()
		errs[0] = c.fetchParticipants(ctx, classID, gen)
	}()
	go func() {
		defer wg.Done()
		errs[1] = c.fetchTopics(ctx, classID, gen)
	}()
	wg.Wait()

	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}

// AddStudent invites a student by email. The server resolves the email to an
// account, so the roster is re-fetched instead of synthesizing the new
// participant locally.
func (c *Cache) AddStudent(ctx context.Context, classID int64, email string) error {
	return c.invite(ctx, classID, email, "students")
}

// AddSubTeacher invites a co-teacher by email, same refetch-after-mutate
// pattern as AddStudent.
func (c *Cache) AddSubTeacher(ctx context.Context, classID int64, email string) error {
	return c.invite(ctx, classID, email, "subteachers")
}

func (c *Cache) invite(ctx context.Context, classID int64, email, segment string) error {
	teacherID := c.session.CurrentUserID()
	if teacherID == 0 {
		return appErrors.Clone(appErrors.ErrPrecondition, "not signed in")
	}
	req := models.InviteRequest{Email: email}
	if err := c.validate.Struct(req); err != nil {
		return err
	}

	q := url.Values{}
	q.Set("teacherUserId", fmt.Sprintf("%d", teacherID))
	path := fmt.Sprintf("/classes/%d/participants/%s", classID, segment)
	if err := c.client.JSON(ctx, http.MethodPost, path, req, q, nil); err != nil {
		toast.Error(c.toasts, appErrors.FromError(err).Message)
		return err
	}

	toast.Success(c.toasts, "Invitation sent")
	return c.LoadParticipants(ctx, classID)
}

// RemoveParticipant removes a membership through the role-specific endpoint
// and re-fetches the roster.
func (c *Cache) RemoveParticipant(ctx context.Context, classID int64, participant models.Participant) error {
	var segment string
	switch participant.MembershipRole() {
	case models.RoleStudent:
		segment = "students"
	case models.RoleSubTeacher:
		segment = "sub-teachers"
	default:
		return appErrors.Clone(appErrors.ErrValidation, "only students and sub-teachers can be removed")
	}

	path := fmt.Sprintf("/classes/%d/participants/%s/%d", classID, segment, participant.UserID)
	if err := c.client.JSON(ctx, http.MethodDelete, path, nil, nil, nil); err != nil {
		return err
	}
	return c.LoadParticipants(ctx, classID)
}

// CreateTopic persists a topic and returns the server-assigned record.
// Callers holding a pending placeholder substitute this result for it.
func (c *Cache) CreateTopic(ctx context.Context, classID int64, title string) (models.Topic, error) {
	userID := c.session.CurrentUserID()
	if userID == 0 {
		return models.Topic{}, appErrors.Clone(appErrors.ErrPrecondition, "not signed in")
	}
	req := models.CreateTopicRequest{Title: title, UserID: userID}
	if err := c.validate.Struct(req); err != nil {
		return models.Topic{}, err
	}

	var topic models.Topic
	if err := c.client.JSON(ctx, http.MethodPost, "/topics", req, nil, &topic); err != nil {
		return models.Topic{}, err
	}

	c.mu.Lock()
	if c.classID == classID {
		c.topics = append(c.topics, topic)
	}
	c.mu.Unlock()
	return topic, nil
}

// CreateAssignment saves an assignment, uploading file attachments as
// multipart parts. A pending topic named in the request is created by the
// server within the same save; the refreshed topic tree reflects it.
func (c *Cache) CreateAssignment(ctx context.Context, req models.CreateAssignmentRequest) (models.CreateAssignmentResult, error) {
	if err := c.validate.Struct(req); err != nil {
		return models.CreateAssignmentResult{}, err
	}

	var result models.CreateAssignmentResult
	if err := c.client.Multipart(ctx, "/assignments/create", req, fileParts(req.Attachments), &result); err != nil {
		toast.Error(c.toasts, appErrors.FromError(err).Message)
		return models.CreateAssignmentResult{}, err
	}

	toast.Success(c.toasts, "Assignment created")
	if c.ViewedClass() == req.ClassID {
		if err := c.LoadTopics(ctx, req.ClassID); err != nil {
			c.logger.Warn("topic refresh after assignment create failed", zap.Error(err))
		}
	}
	return result, nil
}

// CreateMaterial mirrors CreateAssignment without grading fields.
func (c *Cache) CreateMaterial(ctx context.Context, req models.CreateMaterialRequest) error {
	if err := c.validate.Struct(req); err != nil {
		return err
	}

	if err := c.client.Multipart(ctx, "/materials/create", req, fileParts(req.Attachments), nil); err != nil {
		toast.Error(c.toasts, appErrors.FromError(err).Message)
		return err
	}

	toast.Success(c.toasts, "Material created")
	if c.ViewedClass() == req.ClassID {
		if err := c.LoadTopics(ctx, req.ClassID); err != nil {
			c.logger.Warn("topic refresh after material create failed", zap.Error(err))
		}
	}
	return nil
}

// CreateAnnouncement posts to the class stream and refreshes the feed.
func (c *Cache) CreateAnnouncement(ctx context.Context, req models.CreateAnnouncementRequest) error {
	if err := c.validate.Struct(req); err != nil {
		return err
	}

	path := fmt.Sprintf("/classes/%d/announcements", req.ClassID)
	if err := c.client.JSON(ctx, http.MethodPost, path, req, nil, nil); err != nil {
		return err
	}

	if c.ViewedClass() == req.ClassID {
		if err := c.LoadDetails(ctx, req.ClassID); err != nil {
			c.logger.Warn("feed refresh after announcement failed", zap.Error(err))
		}
	}
	return nil
}

// FetchRole asks the server which role userID holds in classID.
func (c *Cache) FetchRole(ctx context.Context, classID, userID int64) (models.Role, error) {
	var raw string
	path := fmt.Sprintf("/classes/%d/participants/%d/role", classID, userID)
	if err := c.client.JSON(ctx, http.MethodGet, path, nil, nil, &raw); err != nil {
		return models.RoleUnknown, err
	}
	return models.ParseRole(raw), nil
}

// fileParts extracts uploaded-file attachments as multipart file parts;
// link attachments travel inside the JSON payload only.
func fileParts(attachments []models.Attachment) []api.FilePart {
	var files []api.FilePart
	for _, a := range attachments {
		if a.Kind == models.AttachmentUploadedFile && a.FilePath != "" {
			files = append(files, api.FilePart{FieldName: "files", FilePath: a.FilePath})
		}
	}
	return files
}
