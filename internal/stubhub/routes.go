package stubhub

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/classhub/classhub-go/internal/models"
)

// Router builds the gin engine serving the consumed REST surface.
func (h *Hub) Router() *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())

	r.POST("/auth/register", h.register)
	r.POST("/auth/login", h.login)

	authed := r.Group("/", h.authRequired)
	authed.POST("/auth/logout", h.logout)
	authed.GET("/auth/get-me", h.getMe)

	authed.GET("/classes/user/:uid", h.listClassesForUser)
	authed.POST("/classes", h.createClass)
	authed.PUT("/classes/:id", h.updateClass)
	authed.DELETE("/classes/:id", h.softDeleteClass)
	authed.DELETE("/classes/:id/actual-delete", h.hardDeleteClass)
	authed.POST("/classes/:id/restore", h.restoreClass)
	authed.GET("/classes/:id/details", h.classDetails)
	authed.GET("/classes/:id/participants", h.listParticipants)
	authed.GET("/classes/:id/topics-with-materials-assignments", h.listTopics)
	authed.POST("/classes/:id/participants/students", h.inviteStudent)
	authed.POST("/classes/:id/participants/subteachers", h.inviteSubTeacher)
	authed.DELETE("/classes/:id/participants/students/:uid", h.removeStudent)
	authed.DELETE("/classes/:id/participants/sub-teachers/:uid", h.removeSubTeacher)
	authed.GET("/classes/:id/participants/:uid/role", h.participantRole)
	authed.PUT("/classes/:id/participants/transfer-ownership", h.transferOwnership)
	authed.POST("/classes/code/:code/enroll/:uid", h.enrollByCode)
	authed.POST("/classes/:id/announcements", h.createAnnouncement)
	authed.POST("/topics", h.createTopic)
	authed.POST("/assignments/create", h.createAssignment)
	authed.POST("/materials/create", h.createMaterial)
	authed.GET("/users/:uid/notifications", h.notificationHistory)

	return r
}

func (h *Hub) register(c *gin.Context) {
	var req models.RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid register payload")
		return
	}
	h.mu.Lock()
	if _, taken := h.byEmail[normalizeEmail(req.Email)]; taken {
		h.mu.Unlock()
		conflict(c, "an account with that email already exists")
		return
	}
	id := h.nextIDLocked()
	h.accounts[id] = &account{
		user:     models.User{ID: id, Name: req.Name, Email: req.Email},
		password: req.Password,
	}
	h.byEmail[normalizeEmail(req.Email)] = id
	h.mu.Unlock()

	token, err := h.issueToken(id)
	if err != nil {
		fail(c, http.StatusInternalServerError, "token signing failed")
		return
	}
	raw(c, http.StatusCreated, models.AuthTokens{AccessToken: token})
}

func (h *Hub) login(c *gin.Context) {
	var req models.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid login payload")
		return
	}
	h.mu.Lock()
	id, ok := h.byEmail[normalizeEmail(req.Email)]
	var acct *account
	if ok {
		acct = h.accounts[id]
	}
	h.mu.Unlock()
	if acct == nil || acct.password != req.Password {
		unauthorized(c, "invalid email or password")
		return
	}
	token, err := h.issueToken(id)
	if err != nil {
		fail(c, http.StatusInternalServerError, "token signing failed")
		return
	}
	raw(c, http.StatusOK, models.AuthTokens{AccessToken: token})
}

func (h *Hub) logout(c *gin.Context) {
	c.Status(http.StatusNoContent)
}

func (h *Hub) getMe(c *gin.Context) {
	h.mu.Lock()
	acct := h.accounts[callerID(c)]
	h.mu.Unlock()
	raw(c, http.StatusOK, acct.user)
}

// listClassesForUser returns every membership, archived records included.
// The client keeps the superset and filters locally.
func (h *Hub) listClassesForUser(c *gin.Context) {
	uid, ok := pathID(c, "uid")
	if !ok {
		return
	}
	h.mu.Lock()
	out := make([]models.Class, 0)
	for _, cs := range h.classes {
		if role, member := h.roleOf(cs, uid); member {
			view := cs.class
			view.Role = role.String()
			out = append(out, view)
		}
	}
	h.mu.Unlock()
	raw(c, http.StatusOK, out)
}

func (h *Hub) createClass(c *gin.Context) {
	var req models.CreateClassRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid class payload")
		return
	}
	caller := callerID(c)

	h.mu.Lock()
	id := h.nextIDLocked()
	code := newClassCode()
	cs := &classState{
		class: models.Class{
			ID:          id,
			Name:        req.Name,
			Section:     req.Section,
			Subject:     req.Subject,
			Room:        req.Room,
			ClassCode:   code,
			CreatedBy:   caller,
			CreatedDate: time.Now().UTC().Format(time.RFC3339),
		},
		ownerID: caller,
	}
	owner := h.accounts[caller]
	cs.participants = append(cs.participants, models.Participant{
		UserID: caller,
		Name:   owner.user.Name,
		Email:  owner.user.Email,
		Role:   models.RoleTeacher.String(),
	})
	h.classes[id] = cs
	h.byCode[code] = id
	view := cs.class
	h.mu.Unlock()

	view.Role = models.RoleTeacher.String()
	wrapped(c, http.StatusCreated, view)
}

func (h *Hub) updateClass(c *gin.Context) {
	cs, ok := h.lockClass(c)
	if !ok {
		return
	}
	defer h.mu.Unlock()

	var req models.UpdateClassRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid class payload")
		return
	}
	role, member := h.roleOf(cs, callerID(c))
	if !member || !role.CanManage() {
		fail(c, http.StatusForbidden, "only teachers can edit a class")
		return
	}
	cs.class.Name = req.Name
	cs.class.Section = req.Section
	cs.class.Subject = req.Subject
	cs.class.Room = req.Room

	view := cs.class
	view.Role = role.String()
	wrapped(c, http.StatusOK, view)
}

func (h *Hub) softDeleteClass(c *gin.Context) {
	cs, ok := h.lockClass(c)
	if !ok {
		return
	}
	defer h.mu.Unlock()
	if cs.ownerID != callerID(c) {
		fail(c, http.StatusForbidden, "only the owning teacher can archive a class")
		return
	}
	cs.class.IsDeleted = true
	c.Status(http.StatusNoContent)
}

func (h *Hub) hardDeleteClass(c *gin.Context) {
	cs, ok := h.lockClass(c)
	if !ok {
		return
	}
	defer h.mu.Unlock()
	if cs.ownerID != callerID(c) {
		fail(c, http.StatusForbidden, "only the owning teacher can delete a class")
		return
	}
	delete(h.byCode, cs.class.ClassCode)
	delete(h.classes, cs.class.ID)
	c.Status(http.StatusNoContent)
}

// restoreClass un-archives. Restoring a live class is a no-op, so retried
// restores stay safe.
func (h *Hub) restoreClass(c *gin.Context) {
	cs, ok := h.lockClass(c)
	if !ok {
		return
	}
	defer h.mu.Unlock()
	if cs.ownerID != callerID(c) {
		fail(c, http.StatusForbidden, "only the owning teacher can restore a class")
		return
	}
	cs.class.IsDeleted = false
	c.Status(http.StatusNoContent)
}

func (h *Hub) classDetails(c *gin.Context) {
	cs, ok := h.lockClass(c)
	if !ok {
		return
	}
	feed := make([]models.ActivityItem, len(cs.feed))
	copy(feed, cs.feed)
	h.mu.Unlock()
	wrapped(c, http.StatusOK, models.ClassDetails{Details: feed})
}

func (h *Hub) listParticipants(c *gin.Context) {
	cs, ok := h.lockClass(c)
	if !ok {
		return
	}
	roster := make([]models.Participant, len(cs.participants))
	copy(roster, cs.participants)
	h.mu.Unlock()
	raw(c, http.StatusOK, roster)
}

func (h *Hub) listTopics(c *gin.Context) {
	cs, ok := h.lockClass(c)
	if !ok {
		return
	}
	topics := make([]models.Topic, len(cs.topics))
	copy(topics, cs.topics)
	h.mu.Unlock()
	raw(c, http.StatusOK, topics)
}

func (h *Hub) inviteStudent(c *gin.Context)    { h.invite(c, models.RoleStudent) }
func (h *Hub) inviteSubTeacher(c *gin.Context) { h.invite(c, models.RoleSubTeacher) }

func (h *Hub) invite(c *gin.Context, role models.Role) {
	var req models.InviteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid invite payload")
		return
	}
	cs, ok := h.lockClass(c)
	if !ok {
		return
	}
	defer h.mu.Unlock()

	callerRole, member := h.roleOf(cs, callerID(c))
	if !member || !callerRole.CanManage() {
		fail(c, http.StatusForbidden, "only teachers can invite participants")
		return
	}
	inviteeID, known := h.byEmail[normalizeEmail(req.Email)]
	if !known {
		notFound(c, "no account with that email")
		return
	}
	if _, already := h.roleOf(cs, inviteeID); already {
		conflict(c, "that person is already in the class")
		return
	}
	invitee := h.accounts[inviteeID]
	cs.participants = append(cs.participants, models.Participant{
		UserID: inviteeID,
		Name:   invitee.user.Name,
		Email:  invitee.user.Email,
		Role:   role.String(),
	})
	h.notifications[inviteeID] = append([]models.Notification{{
		ID:          h.nextIDLocked(),
		Type:        "ClassInvitation",
		ReferenceID: cs.class.ID,
		ClassName:   cs.class.Name,
		Message:     "You were added to " + cs.class.Name,
		CreatedAt:   time.Now().UTC().Format(time.RFC3339),
	}}, h.notifications[inviteeID]...)
	c.Status(http.StatusNoContent)
}

func (h *Hub) removeStudent(c *gin.Context)    { h.removeParticipant(c, models.RoleStudent) }
func (h *Hub) removeSubTeacher(c *gin.Context) { h.removeParticipant(c, models.RoleSubTeacher) }

func (h *Hub) removeParticipant(c *gin.Context, role models.Role) {
	uid, ok := pathID(c, "uid")
	if !ok {
		return
	}
	cs, ok := h.lockClass(c)
	if !ok {
		return
	}
	defer h.mu.Unlock()

	for i, p := range cs.participants {
		if p.UserID == uid && models.ParseRole(p.Role) == role {
			cs.participants = append(cs.participants[:i], cs.participants[i+1:]...)
			c.Status(http.StatusNoContent)
			return
		}
	}
	notFound(c, "participant not found")
}

func (h *Hub) participantRole(c *gin.Context) {
	uid, ok := pathID(c, "uid")
	if !ok {
		return
	}
	cs, ok := h.lockClass(c)
	if !ok {
		return
	}
	role, member := h.roleOf(cs, uid)
	h.mu.Unlock()
	if !member {
		notFound(c, "participant not found")
		return
	}
	raw(c, http.StatusOK, role.String())
}

// transferOwnership swaps the owner and the new teacher in one step; both
// role changes land atomically under the hub lock.
func (h *Hub) transferOwnership(c *gin.Context) {
	currentID, err1 := strconv.ParseInt(c.Query("currentOwnerId"), 10, 64)
	newID, err2 := strconv.ParseInt(c.Query("newOwnerId"), 10, 64)
	if err1 != nil || err2 != nil {
		badRequest(c, "currentOwnerId and newOwnerId are required")
		return
	}
	cs, ok := h.lockClass(c)
	if !ok {
		return
	}
	defer h.mu.Unlock()

	if cs.ownerID != currentID {
		conflict(c, "current owner does not match")
		return
	}
	if _, member := h.roleOf(cs, newID); !member {
		notFound(c, "new owner is not a participant")
		return
	}
	for i, p := range cs.participants {
		switch p.UserID {
		case currentID:
			cs.participants[i].Role = models.RoleSubTeacher.String()
		case newID:
			cs.participants[i].Role = models.RoleTeacher.String()
		}
	}
	cs.ownerID = newID
	cs.class.CreatedBy = newID
	c.Status(http.StatusNoContent)
}

func (h *Hub) enrollByCode(c *gin.Context) {
	uid, ok := pathID(c, "uid")
	if !ok {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()

	classID, known := h.byCode[c.Param("code")]
	if !known {
		notFound(c, "no class with that code")
		return
	}
	cs := h.classes[classID]
	if cs.class.IsDeleted {
		notFound(c, "no class with that code")
		return
	}
	if _, already := h.roleOf(cs, uid); already {
		conflict(c, "already enrolled")
		return
	}
	acct, knownUser := h.accounts[uid]
	if !knownUser {
		notFound(c, "unknown account")
		return
	}
	cs.participants = append(cs.participants, models.Participant{
		UserID: uid,
		Name:   acct.user.Name,
		Email:  acct.user.Email,
		Role:   models.RoleStudent.String(),
	})
	c.Status(http.StatusNoContent)
}

func (h *Hub) createAnnouncement(c *gin.Context) {
	var req models.CreateAnnouncementRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid announcement payload")
		return
	}
	cs, ok := h.lockClass(c)
	if !ok {
		return
	}
	defer h.mu.Unlock()

	id := h.nextIDLocked()
	cs.feed = append([]models.ActivityItem{{
		EntityID:     id,
		EntityType:   "Announcement",
		Content:      req.Message,
		ActivityDate: time.Now().UTC().Format(time.RFC3339),
	}}, cs.feed...)
	c.Status(http.StatusCreated)
}

// createTopic answers with the persisted record. The request carries no
// class id, matching the consumed API: the topic is attached when the first
// classwork referencing it is saved.
func (h *Hub) createTopic(c *gin.Context) {
	var req models.CreateTopicRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid topic payload")
		return
	}
	h.mu.Lock()
	topic := models.Topic{
		ID:        h.nextIDLocked(),
		Title:     req.Title,
		CreatedAt: time.Now().UTC().Format(time.RFC3339),
	}
	h.mu.Unlock()
	raw(c, http.StatusCreated, topic)
}

func (h *Hub) createAssignment(c *gin.Context) {
	var req models.CreateAssignmentRequest
	if !bindMultipartPayload(c, &req) {
		return
	}
	fileCount := uploadedFileCount(c)

	h.mu.Lock()
	defer h.mu.Unlock()

	cs, known := h.classes[req.ClassID]
	if !known {
		notFound(c, "class not found")
		return
	}
	topic := h.resolveTopicLocked(cs, req.TopicID, req.NewTopicTitle)
	assignment := models.Assignment{
		ID:                  h.nextIDLocked(),
		Title:               req.Title,
		Instructions:        req.Instructions,
		Points:              req.Points,
		DueDate:             req.DueDate,
		AllowLateSubmission: req.AllowLateSubmission,
		Attachments:         req.Attachments,
		CreatedAt:           time.Now().UTC().Format(time.RFC3339),
	}
	result := models.CreateAssignmentResult{
		AssignmentID: assignment.ID,
		ClassWorkID:  h.nextIDLocked(),
	}
	if topic != nil {
		topic.Assignments = append(topic.Assignments, assignment)
		id := topic.ID
		result.TopicID = &id
	}
	cs.feed = append([]models.ActivityItem{{
		EntityID:     assignment.ID,
		EntityType:   "Assignment",
		Content:      assignment.Title,
		ActivityDate: assignment.CreatedAt,
	}}, cs.feed...)
	h.logger.Debug("assignment stored",
		zap.Int64("class_id", req.ClassID),
		zap.Int64("assignment_id", assignment.ID),
		zap.Int("files", fileCount))
	raw(c, http.StatusCreated, result)
}

func (h *Hub) createMaterial(c *gin.Context) {
	var req models.CreateMaterialRequest
	if !bindMultipartPayload(c, &req) {
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	cs, known := h.classes[req.ClassID]
	if !known {
		notFound(c, "class not found")
		return
	}
	topic := h.resolveTopicLocked(cs, req.TopicID, req.NewTopicTitle)
	material := models.Material{
		ID:          h.nextIDLocked(),
		Title:       req.Title,
		Description: req.Description,
		Attachments: req.Attachments,
		CreatedAt:   time.Now().UTC().Format(time.RFC3339),
	}
	if topic != nil {
		topic.Materials = append(topic.Materials, material)
	}
	cs.feed = append([]models.ActivityItem{{
		EntityID:     material.ID,
		EntityType:   "Material",
		Content:      material.Title,
		ActivityDate: material.CreatedAt,
	}}, cs.feed...)
	c.Status(http.StatusCreated)
}

func (h *Hub) notificationHistory(c *gin.Context) {
	uid, ok := pathID(c, "uid")
	if !ok {
		return
	}
	h.mu.Lock()
	history := make([]models.Notification, len(h.notifications[uid]))
	copy(history, h.notifications[uid])
	h.mu.Unlock()
	raw(c, http.StatusOK, history)
}

// resolveTopicLocked finds or creates the topic a classwork save targets.
// Returns nil when the save is topicless.
func (h *Hub) resolveTopicLocked(cs *classState, topicID int64, newTitle string) *models.Topic {
	if newTitle != "" {
		cs.topics = append(cs.topics, models.Topic{
			ID:        h.nextIDLocked(),
			Title:     newTitle,
			CreatedAt: time.Now().UTC().Format(time.RFC3339),
		})
		return &cs.topics[len(cs.topics)-1]
	}
	if topicID == 0 {
		return nil
	}
	for i := range cs.topics {
		if cs.topics[i].ID == topicID {
			return &cs.topics[i]
		}
	}
	// The topic was created through POST /topics but never attached here.
	cs.topics = append(cs.topics, models.Topic{ID: topicID, Title: "Topic"})
	return &cs.topics[len(cs.topics)-1]
}

// lockClass resolves the :id class and returns with the hub lock HELD on
// success. Callers must unlock.
func (h *Hub) lockClass(c *gin.Context) (*classState, bool) {
	id, ok := pathID(c, "id")
	if !ok {
		return nil, false
	}
	h.mu.Lock()
	cs, known := h.classes[id]
	if !known {
		h.mu.Unlock()
		notFound(c, "class not found")
		return nil, false
	}
	return cs, true
}

func pathID(c *gin.Context, name string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		badRequest(c, "invalid "+name)
		return 0, false
	}
	return id, true
}

func bindMultipartPayload(c *gin.Context, out interface{}) bool {
	payload := c.PostForm("payload")
	if payload == "" {
		badRequest(c, "missing payload part")
		return false
	}
	if err := json.Unmarshal([]byte(payload), out); err != nil {
		badRequest(c, "invalid payload part")
		return false
	}
	return true
}

func uploadedFileCount(c *gin.Context) int {
	form, err := c.MultipartForm()
	if err != nil {
		return 0
	}
	return len(form.File["files"])
}
