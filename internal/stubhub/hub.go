// Package stubhub runs an in-memory stand-in for the classroom backend. It
// serves the exact REST surface the client consumes, which lets the client
// stack be exercised end to end in tests and demos without a real server.
package stubhub

import (
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/classhub/classhub-go/internal/models"
)

type account struct {
	user     models.User
	password string
}

// classState holds one class and everything hanging off it. The viewer role
// lives in participants, not on the class record itself.
type classState struct {
	class        models.Class
	ownerID      int64
	participants []models.Participant
	topics       []models.Topic
	feed         []models.ActivityItem
}

// Hub is the in-memory backend. All state lives behind one mutex; the work
// per request is trivial so contention is a non-issue.
type Hub struct {
	logger *zap.Logger
	secret []byte

	mu            sync.Mutex
	nextID        int64
	accounts      map[int64]*account
	byEmail       map[string]int64
	classes       map[int64]*classState
	byCode        map[string]int64
	notifications map[int64][]models.Notification
}

// New builds an empty hub signing tokens with secret.
func New(secret string, logger *zap.Logger) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Hub{
		logger:        logger,
		secret:        []byte(secret),
		accounts:      make(map[int64]*account),
		byEmail:       make(map[string]int64),
		classes:       make(map[int64]*classState),
		byCode:        make(map[string]int64),
		notifications: make(map[int64][]models.Notification),
	}
}

func (h *Hub) nextIDLocked() int64 {
	h.nextID++
	return h.nextID
}

// SeedUser registers an account directly, bypassing the HTTP surface.
func (h *Hub) SeedUser(name, email, password string) int64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	id := h.nextIDLocked()
	h.accounts[id] = &account{
		user:     models.User{ID: id, Name: name, Email: email},
		password: password,
	}
	h.byEmail[normalizeEmail(email)] = id
	return id
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// PushNotification queues a notification for userID, visible through the
// history endpoint.
func (h *Hub) PushNotification(userID int64, n models.Notification) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if n.ID == 0 {
		n.ID = h.nextIDLocked()
	}
	if n.CreatedAt == "" {
		n.CreatedAt = time.Now().UTC().Format(time.RFC3339)
	}
	h.notifications[userID] = append([]models.Notification{n}, h.notifications[userID]...)
	h.logger.Debug("notification queued", zap.Int64("user_id", userID), zap.String("type", n.Type))
}

// ClassCode returns the join code of a class, for tests that enroll by code.
func (h *Hub) ClassCode(classID int64) string {
	h.mu.Lock()
	defer h.mu.Unlock()
	if cs, ok := h.classes[classID]; ok {
		return cs.class.ClassCode
	}
	return ""
}

func (h *Hub) issueToken(userID int64) (string, error) {
	claims := jwt.RegisteredClaims{
		Subject:   strconv.FormatInt(userID, 10),
		IssuedAt:  jwt.NewNumericDate(time.Now()),
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(24 * time.Hour)),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(h.secret)
}

func (h *Hub) parseToken(raw string) (int64, error) {
	token, err := jwt.ParseWithClaims(raw, &jwt.RegisteredClaims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return h.secret, nil
	})
	if err != nil {
		return 0, err
	}
	claims, ok := token.Claims.(*jwt.RegisteredClaims)
	if !ok || claims.Subject == "" {
		return 0, fmt.Errorf("missing subject claim")
	}
	return strconv.ParseInt(claims.Subject, 10, 64)
}

func (h *Hub) roleOf(cs *classState, userID int64) (models.Role, bool) {
	for _, p := range cs.participants {
		if p.UserID == userID {
			return models.ParseRole(p.Role), true
		}
	}
	return models.RoleUnknown, false
}

func newClassCode() string {
	// Short join codes, in the style of the real product.
	return strings.ToUpper(uuid.NewString()[:7])
}

// authRequired validates the bearer token and stows the caller's id.
func (h *Hub) authRequired(c *gin.Context) {
	header := c.GetHeader("Authorization")
	if !strings.HasPrefix(header, "Bearer ") {
		unauthorized(c, "missing bearer token")
		return
	}
	userID, err := h.parseToken(strings.TrimPrefix(header, "Bearer "))
	if err != nil {
		unauthorized(c, "invalid or expired token")
		return
	}
	h.mu.Lock()
	_, known := h.accounts[userID]
	h.mu.Unlock()
	if !known {
		unauthorized(c, "unknown account")
		return
	}
	c.Set(ctxUserID, userID)
	c.Next()
}

const ctxUserID = "stubhub.userID"

func callerID(c *gin.Context) int64 {
	id, _ := c.Get(ctxUserID)
	userID, _ := id.(int64)
	return userID
}
