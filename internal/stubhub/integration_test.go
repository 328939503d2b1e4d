package stubhub_test

import (
	"context"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/classhub/classhub-go/internal/api"
	"github.com/classhub/classhub-go/internal/auth"
	"github.com/classhub/classhub-go/internal/classdetail"
	"github.com/classhub/classhub-go/internal/classes"
	"github.com/classhub/classhub-go/internal/models"
	"github.com/classhub/classhub-go/internal/notify"
	"github.com/classhub/classhub-go/internal/stubhub"
	"github.com/classhub/classhub-go/pkg/config"
	"github.com/classhub/classhub-go/pkg/kvstore"
)

// session bundles a full client stack wired against the hub, one per
// signed-in person.
type session struct {
	client  *api.Client
	store   *auth.Store
	manager *classes.Manager
	details *classdetail.Cache
}

func newSession(t *testing.T, baseURL string) *session {
	t.Helper()
	client := api.New(config.APIConfig{
		BaseURL:   baseURL,
		Timeout:   5 * time.Second,
		UserAgent: "classhub-test",
	}, zap.NewNop())
	store := auth.NewStore(client, kvstore.NewMemoryStore(), nil, zap.NewNop())
	return &session{
		client:  client,
		store:   store,
		manager: classes.NewManager(client, store, nil, zap.NewNop()),
		details: classdetail.NewCache(client, store, nil, zap.NewNop()),
	}
}

func startHub(t *testing.T) (*stubhub.Hub, string) {
	t.Helper()
	hub := stubhub.New("integration-secret", zap.NewNop())
	srv := httptest.NewServer(hub.Router())
	t.Cleanup(srv.Close)
	return hub, srv.URL
}

func TestRegisterLoginAndIdentity(t *testing.T) {
	_, baseURL := startHub(t)
	ctx := context.Background()

	s := newSession(t, baseURL)
	require.NoError(t, s.store.Register(ctx, "Pat Rivera", "pat@example.com", "hunter22"))
	assert.Equal(t, auth.StateAuthenticated, s.store.State())

	user, err := s.store.CurrentUser(ctx)
	require.NoError(t, err)
	assert.Equal(t, "Pat Rivera", user.Name)

	// A fresh session signs in against the same account.
	again := newSession(t, baseURL)
	err = again.store.Login(ctx, "pat@example.com", "wrong", true)
	require.Error(t, err)
	assert.Equal(t, auth.StateAnonymous, again.store.State())

	require.NoError(t, again.store.Login(ctx, "pat@example.com", "hunter22", true))
	assert.NotEmpty(t, again.store.Token())

	again.store.Logout(ctx)
	assert.Empty(t, again.store.Token())
	assert.Equal(t, auth.StateAnonymous, again.store.State())
}

func TestClassLifecycleEndToEnd(t *testing.T) {
	hub, baseURL := startHub(t)
	ctx := context.Background()

	teacher := newSession(t, baseURL)
	require.NoError(t, teacher.store.Register(ctx, "Dana Cole", "dana@example.com", "s3cret99"))
	teacherID := teacher.store.CurrentUserID()
	require.NotZero(t, teacherID)

	created, err := teacher.manager.Create(ctx, models.CreateClassRequest{
		UserID:  teacherID,
		Name:    "Algebra I",
		Section: "A",
		Subject: "Math",
	})
	require.NoError(t, err)
	assert.Equal(t, models.RoleTeacher.String(), created.Role)

	require.NoError(t, teacher.manager.FetchForUser(ctx, teacherID))
	require.Len(t, teacher.manager.Active(), 1)

	updated, err := teacher.manager.Update(ctx, created.ID, models.UpdateClassRequest{
		Name: "Algebra I Honors", Section: "A", Subject: "Math",
	})
	require.NoError(t, err)
	assert.Equal(t, "Algebra I Honors", updated.Name)
	assert.Equal(t, models.RoleTeacher.String(), updated.Role)

	// Archive, then the class leaves the working set until refetched.
	require.NoError(t, teacher.manager.SoftDelete(ctx, created.ID))
	assert.Empty(t, teacher.manager.Active())

	require.NoError(t, teacher.manager.FetchForUser(ctx, teacherID))
	require.Len(t, teacher.manager.Archived(), 1)
	assert.Empty(t, teacher.manager.Active())

	require.NoError(t, teacher.manager.Restore(ctx, created.ID))
	require.Len(t, teacher.manager.Active(), 1)

	// Restore again: the server treats it as a no-op.
	require.NoError(t, teacher.manager.Restore(ctx, created.ID))

	require.NoError(t, teacher.manager.HardDelete(ctx, created.ID))
	require.NoError(t, teacher.manager.FetchForUser(ctx, teacherID))
	assert.Empty(t, teacher.manager.Classes())
	assert.Empty(t, hub.ClassCode(created.ID))
}

func TestRosterInviteEnrollAndOwnership(t *testing.T) {
	hub, baseURL := startHub(t)
	ctx := context.Background()

	teacher := newSession(t, baseURL)
	require.NoError(t, teacher.store.Register(ctx, "Dana Cole", "dana@example.com", "s3cret99"))
	teacherID := teacher.store.CurrentUserID()

	student := newSession(t, baseURL)
	require.NoError(t, student.store.Register(ctx, "Sam Ode", "sam@example.com", "p4sswrd"))
	studentID := student.store.CurrentUserID()

	coTeacher := newSession(t, baseURL)
	require.NoError(t, coTeacher.store.Register(ctx, "Noor Haddad", "noor@example.com", "qwerty77"))
	coTeacherID := coTeacher.store.CurrentUserID()

	created, err := teacher.manager.Create(ctx, models.CreateClassRequest{
		UserID: teacherID, Name: "Biology", Subject: "Science",
	})
	require.NoError(t, err)

	// Invite by email refetches the roster as part of the call.
	teacher.details.Open(created.ID)
	require.NoError(t, teacher.details.AddStudent(ctx, created.ID, "sam@example.com"))
	require.NoError(t, teacher.details.AddSubTeacher(ctx, created.ID, "noor@example.com"))
	require.Len(t, teacher.details.Participants(), 3)

	// Inviting the same address again conflicts server-side.
	require.Error(t, teacher.details.AddStudent(ctx, created.ID, "sam@example.com"))

	// The invited student sees the notification in history.
	history, err := notify.NewHistory(student.client).Fetch(ctx, studentID)
	require.NoError(t, err)
	require.NotEmpty(t, history)
	assert.Equal(t, "ClassInvitation", history[0].Type)
	assert.Equal(t, created.ID, history[0].ReferenceID)

	// The student's collection now lists the class with the Student role.
	require.NoError(t, student.manager.FetchForUser(ctx, studentID))
	got, ok := student.manager.Get(created.ID)
	require.True(t, ok)
	assert.Equal(t, models.RoleStudent.String(), got.Role)

	// A second student joins by class code.
	joiner := newSession(t, baseURL)
	require.NoError(t, joiner.store.Register(ctx, "Ira Wells", "ira@example.com", "letmein9"))
	code := hub.ClassCode(created.ID)
	require.NotEmpty(t, code)
	require.NoError(t, joiner.manager.Enroll(ctx, code))
	require.Len(t, joiner.manager.Active(), 1)

	// Enrolling twice conflicts.
	require.Error(t, joiner.manager.Enroll(ctx, code))

	role, err := teacher.details.FetchRole(ctx, created.ID, coTeacherID)
	require.NoError(t, err)
	assert.Equal(t, models.RoleSubTeacher, role)

	// A transfer naming the wrong current owner is rejected whole: neither
	// role changes.
	require.Error(t, teacher.manager.TransferOwnership(ctx, created.ID, coTeacherID, studentID))
	role, err = teacher.details.FetchRole(ctx, created.ID, teacherID)
	require.NoError(t, err)
	assert.Equal(t, models.RoleTeacher, role)
	role, err = teacher.details.FetchRole(ctx, created.ID, coTeacherID)
	require.NoError(t, err)
	assert.Equal(t, models.RoleSubTeacher, role)

	require.NoError(t, teacher.manager.TransferOwnership(ctx, created.ID, teacherID, coTeacherID))
	role, err = teacher.details.FetchRole(ctx, created.ID, teacherID)
	require.NoError(t, err)
	assert.Equal(t, models.RoleSubTeacher, role)
	role, err = teacher.details.FetchRole(ctx, created.ID, coTeacherID)
	require.NoError(t, err)
	assert.Equal(t, models.RoleTeacher, role)

	// The student leaves; the roster shrinks.
	require.NoError(t, student.manager.Unenroll(ctx, created.ID))
	require.NoError(t, teacher.details.LoadParticipants(ctx, created.ID))
	assert.Len(t, teacher.details.Participants(), 3)
}

func TestClassworkAndStreamEndToEnd(t *testing.T) {
	_, baseURL := startHub(t)
	ctx := context.Background()

	teacher := newSession(t, baseURL)
	require.NoError(t, teacher.store.Register(ctx, "Dana Cole", "dana@example.com", "s3cret99"))
	teacherID := teacher.store.CurrentUserID()

	created, err := teacher.manager.Create(ctx, models.CreateClassRequest{
		UserID: teacherID, Name: "Chemistry", Subject: "Science",
	})
	require.NoError(t, err)

	teacher.details.Open(created.ID)

	topic, err := teacher.details.CreateTopic(ctx, created.ID, "Stoichiometry")
	require.NoError(t, err)
	assert.False(t, topic.Pending())

	attachment := filepath.Join(t.TempDir(), "lab.pdf")
	require.NoError(t, os.WriteFile(attachment, []byte("%PDF-1.4 lab sheet"), 0o600))

	points := 80
	result, err := teacher.details.CreateAssignment(ctx, models.CreateAssignmentRequest{
		ClassID:         created.ID,
		NewTopicTitle:   "Unit 1",
		Title:           "Mole Ratios Lab",
		Points:          &points,
		CreatedByUserID: teacherID,
		Attachments: []models.Attachment{
			{Kind: models.AttachmentUploadedFile, FilePath: attachment},
		},
	})
	require.NoError(t, err)
	require.NotNil(t, result.TopicID)

	// The save refreshed the topic tree: Unit 1 exists and carries the
	// assignment.
	var unit *models.Topic
	for _, tp := range teacher.details.Topics() {
		if tp.ID == *result.TopicID {
			copied := tp
			unit = &copied
		}
	}
	require.NotNil(t, unit)
	assert.Equal(t, "Unit 1", unit.Title)
	require.Len(t, unit.Assignments, 1)
	assert.Equal(t, "Mole Ratios Lab", unit.Assignments[0].Title)

	require.NoError(t, teacher.details.CreateMaterial(ctx, models.CreateMaterialRequest{
		ClassID:         created.ID,
		TopicID:         *result.TopicID,
		Title:           "Periodic Table",
		CreatedByUserID: teacherID,
	}))

	require.NoError(t, teacher.details.CreateAnnouncement(ctx, models.CreateAnnouncementRequest{
		ClassID: created.ID,
		Message: "Lab reports due Friday",
	}))

	feed := teacher.details.Feed()
	require.NotEmpty(t, feed)
	assert.Equal(t, "Announcement", feed[0].EntityType)
	assert.Equal(t, "Lab reports due Friday", feed[0].Content)
}
