// Package classes owns the authoritative, session-scoped list of the current
// user's classes and every mutating class operation. Mutations follow an
// optimistic-update discipline: the affected records are snapshotted before
// the server call and restored verbatim when it fails, so callers always
// observe either the pre-mutation or the post-mutation collection, never a
// partially-applied one.
package classes

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
	"github.com/classhub/classhub-go/pkg/metrics"
	"github.com/classhub/classhub-go/pkg/toast"
)

// identitySource exposes the signed-in user without dragging in the whole
// session store.
type identitySource interface {
	CurrentUserID() int64
}

// Manager is the class collection manager. Concurrent mutating calls on the
// same class are a caller error, not a supported interleaving; the internal
// lock protects the collection itself, not operation ordering.
type Manager struct {
	client   *api.Client
	session  identitySource
	validate *validation.Validator
	logger   *zap.Logger
	metrics  *metrics.Collector
	toasts   toast.Presenter

	mu      sync.Mutex
	classes []models.Class
}

// Option customises the manager.
type Option func(*Manager)

// WithMetrics attaches the rollback counter.
func WithMetrics(m *metrics.Collector) Option {
	return func(mgr *Manager) { mgr.metrics = m }
}

// WithToasts attaches the optional user-message presenter.
func WithToasts(p toast.Presenter) Option {
	return func(mgr *Manager) { mgr.toasts = p }
}

// NewManager constructs the collection manager.
func NewManager(client *api.Client, session identitySource, validate *validation.Validator, logger *zap.Logger, opts ...Option) *Manager {
	if validate == nil {
		validate = validation.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	mgr := &Manager{client: client, session: session, validate: validate, logger: logger}
	for _, opt := range opts {
		opt(mgr)
	}
	return mgr
}

// FetchForUser replaces the local collection with the server's answer. The
// manager stores the unfiltered superset; Active/Archived are caller views.
// When fetches overlap, the last one to complete wins.
func (m *Manager) FetchForUser(ctx context.Context, userID int64) error {
	var fetched []models.Class
	path := fmt.Sprintf("/classes/user/%d", userID)
	if err := m.client.JSON(ctx, http.MethodGet, path, nil, nil, &fetched); err != nil {
		return err
	}

	m.mu.Lock()
	m.classes = fetched
	m.mu.Unlock()
	return nil
}

// Classes returns a copy of the unfiltered collection.
func (m *Manager) Classes() []models.Class {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]models.Class, len(m.classes))
	copy(out, m.classes)
	return out
}

// Active returns the non-deleted classes.
func (m *Manager) Active() []models.Class {
	return m.filtered(false)
}

// Archived returns the soft-deleted classes.
func (m *Manager) Archived() []models.Class {
	return m.filtered(true)
}

func (m *Manager) filtered(deleted bool) []models.Class {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Class
	for _, c := range m.classes {
		if c.IsDeleted == deleted {
			out = append(out, c)
		}
	}
	return out
}

// Get returns the class with the given id from the local collection.
func (m *Manager) Get(id int64) (models.Class, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, c := range m.classes {
		if c.ID == id {
			return c, true
		}
	}
	return models.Class{}, false
}

// Create sends the creation request and appends the confirmed record. The
// creator is always the owning teacher, so the role is forced locally; no
// local mutation happens before the server answers because the identifier
// does not exist yet.
func (m *Manager) Create(ctx context.Context, req models.CreateClassRequest) (models.Class, error) {
	if err := m.validate.Struct(req); err != nil {
		return models.Class{}, err
	}

	var env api.Envelope
	if err := m.client.JSON(ctx, http.MethodPost, "/classes", req, nil, &env); err != nil {
		return models.Class{}, err
	}
	var created models.Class
	if err := env.Decode(&created); err != nil {
		return models.Class{}, err
	}

	created.Role = models.RoleTeacher.String()
	created.IsDeleted = false

	m.mu.Lock()
	m.classes = append(m.classes, created)
	m.mu.Unlock()

	toast.Success(m.toasts, "Class created")
	return created, nil
}

// Update replaces the matching record with the server's answer. No local
// mutation happens before the response: the update needs the full resulting
// object, so partial prediction is not attempted.
func (m *Manager) Update(ctx context.Context, id int64, req models.UpdateClassRequest) (models.Class, error) {
	if err := m.validate.Struct(req); err != nil {
		return models.Class{}, err
	}

	var env api.Envelope
	path := fmt.Sprintf("/classes/%d", id)
	if err := m.client.JSON(ctx, http.MethodPut, path, req, nil, &env); err != nil {
		return models.Class{}, err
	}
	var updated models.Class
	if err := env.Decode(&updated); err != nil {
		return models.Class{}, err
	}

	m.mu.Lock()
	for i, c := range m.classes {
		if c.ID == id {
			// The viewer's role does not change on edit; keep it when the
			// server response omits it.
			if updated.Role == "" {
				updated.Role = c.Role
			}
			m.classes[i] = updated
			break
		}
	}
	m.mu.Unlock()
	return updated, nil
}

// SoftDelete optimistically removes the class, then confirms with the
// server. On failure the record is re-inserted at its prior position.
func (m *Manager) SoftDelete(ctx context.Context, id int64) error {
	return m.optimisticRemove(ctx, id, "soft_delete", http.MethodDelete, fmt.Sprintf("/classes/%d", id), func(c *models.Class) {
		c.IsDeleted = true
	})
}

// HardDelete has the same optimistic shape as SoftDelete but is irreversible
// on the server. Explicit user confirmation is the caller's responsibility.
func (m *Manager) HardDelete(ctx context.Context, id int64) error {
	return m.optimisticRemove(ctx, id, "hard_delete", http.MethodDelete, fmt.Sprintf("/classes/%d/actual-delete", id), nil)
}

// optimisticRemove snapshots and removes the record, calls the server, and
// rolls back on failure. archive, when non-nil, mutates the snapshot and
// puts it back on success (soft delete keeps the record in the archived
// view).
func (m *Manager) optimisticRemove(ctx context.Context, id int64, op, method, path string, archive func(*models.Class)) error {
	m.mu.Lock()
	idx := -1
	var snapshot models.Class
	for i, c := range m.classes {
		if c.ID == id {
			idx = i
			snapshot = c
			break
		}
	}
	if idx < 0 {
		m.mu.Unlock()
		return appErrors.Clone(appErrors.ErrNotFound, "class not found")
	}
	m.classes = append(m.classes[:idx], m.classes[idx+1:]...)
	m.mu.Unlock()

	if err := m.client.JSON(ctx, method, path, nil, nil, nil); err != nil {
		m.rollbackInsert(idx, snapshot, op)
		toast.Error(m.toasts, appErrors.FromError(err).Message)
		return err
	}

	if archive != nil {
		archived := snapshot
		archive(&archived)
		m.mu.Lock()
		m.classes = append(m.classes, archived)
		m.mu.Unlock()
	}
	return nil
}

func (m *Manager) rollbackInsert(idx int, snapshot models.Class, op string) {
	m.mu.Lock()
	if idx > len(m.classes) {
		idx = len(m.classes)
	}
	m.classes = append(m.classes[:idx], append([]models.Class{snapshot}, m.classes[idx:]...)...)
	m.mu.Unlock()

	m.metrics.ObserveRollback(op)
	m.logger.Warn("optimistic mutation rolled back", zap.String("operation", op), zap.Int64("class_id", snapshot.ID))
}

// Restore clears the deleted flag server-first. It deliberately carries
// weaker optimism than SoftDelete: restore is rare and re-syncing is the
// simpler failure story. Restoring an already-restored class is a no-op.
func (m *Manager) Restore(ctx context.Context, id int64) error {
	path := fmt.Sprintf("/classes/%d/restore", id)
	if err := m.client.JSON(ctx, http.MethodPost, path, nil, nil, nil); err != nil {
		return err
	}

	m.mu.Lock()
	for i := range m.classes {
		if m.classes[i].ID == id {
			m.classes[i].IsDeleted = false
			break
		}
	}
	m.mu.Unlock()
	return nil
}

// Enroll joins a class by its class code and refreshes the collection; the
// server owns the resulting record and role.
func (m *Manager) Enroll(ctx context.Context, classCode string) error {
	userID := m.session.CurrentUserID()
	if userID == 0 {
		return appErrors.Clone(appErrors.ErrPrecondition, "not signed in")
	}
	if classCode == "" {
		return appErrors.Clone(appErrors.ErrValidation, "class code is required")
	}

	path := fmt.Sprintf("/classes/code/%s/enroll/%d", url.PathEscape(classCode), userID)
	if err := m.client.JSON(ctx, http.MethodPost, path, nil, nil, nil); err != nil {
		return err
	}

	toast.Success(m.toasts, "Joined class")
	// The enrollment is committed server-side at this point; a refresh
	// failure must not report the join itself as failed.
	if err := m.FetchForUser(ctx, userID); err != nil {
		m.logger.Warn("collection refresh after enroll failed", zap.Error(err))
	}
	return nil
}

// Unenroll optimistically removes the class from the student's collection,
// with rollback on failure. Without a signed-in identity it fails fast and
// never touches the network.
func (m *Manager) Unenroll(ctx context.Context, classID int64) error {
	userID := m.session.CurrentUserID()
	if userID == 0 {
		return appErrors.Clone(appErrors.ErrPrecondition, "not signed in")
	}
	path := fmt.Sprintf("/classes/%d/participants/students/%d", classID, userID)
	return m.optimisticRemove(ctx, classID, "unenroll", http.MethodDelete, path, nil)
}

// TransferOwnership hands the class to another participant. Two roles change
// together server-side, so no local prediction is attempted; callers must
// re-fetch participants after success (read-your-writes refresh, not a
// correctness mechanism — the server guarantees atomicity).
func (m *Manager) TransferOwnership(ctx context.Context, classID, currentOwnerID, newOwnerID int64) error {
	if currentOwnerID == newOwnerID {
		return appErrors.Clone(appErrors.ErrValidation, "new owner must differ from current owner")
	}
	q := url.Values{}
	q.Set("currentOwnerId", fmt.Sprintf("%d", currentOwnerID))
	q.Set("newOwnerId", fmt.Sprintf("%d", newOwnerID))
	path := fmt.Sprintf("/classes/%d/participants/transfer-ownership", classID)
	if err := m.client.JSON(ctx, http.MethodPut, path, nil, q, nil); err != nil {
		return err
	}
	toast.Success(m.toasts, "Ownership transferred")
	return nil
}
