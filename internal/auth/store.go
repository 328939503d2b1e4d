// Package auth owns the process-wide authenticated-identity state: the
// login/register/logout lifecycle, token persistence, and the forced
// teardown triggered by an unauthorized response anywhere in the client.
package auth

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"

	"github.com/classhub/classhub-go/internal/api"
	"github.com/classhub/classhub-go/internal/models"
	"github.com/classhub/classhub-go/internal/validation"
	appErrors "github.com/classhub/classhub-go/pkg/errors"
	"github.com/classhub/classhub-go/pkg/kvstore"
)

// State is the session lifecycle state.
type State int

const (
	StateAnonymous State = iota
	StateAuthenticating
	StateAuthenticated
)

func (s State) String() string {
	switch s {
	case StateAuthenticating:
		return "authenticating"
	case StateAuthenticated:
		return "authenticated"
	default:
		return "anonymous"
	}
}

// Store holds the current session. It is safe for concurrent use and is
// shared by every manager through explicit injection, not ambient globals.
type Store struct {
	client   *api.Client
	kv       kvstore.Store
	validate *validation.Validator
	logger   *zap.Logger

	mu    sync.RWMutex
	state State
	user  *models.User
	token string
	// persist mirrors the rememberMe choice: a non-remembered session keeps
	// its token in memory only.
	persist bool
}

// NewStore wires the session store and registers it as the client's token
// source target for forced teardown on 401.
func NewStore(client *api.Client, kv kvstore.Store, validate *validation.Validator, logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validation.New()
	}
	s := &Store{client: client, kv: kv, validate: validate, logger: logger, persist: true}
	client.SetTokenSource(s)
	client.SetUnauthorizedHandler(s.handleUnauthorized)
	return s
}

// Init restores a persisted session, if any. A corrupted identity cache is
// discarded and re-fetched instead of crashing.
func (s *Store) Init(ctx context.Context) {
	token, err := s.kv.GetItem(ctx, kvstore.KeyAuthToken)
	if err != nil || token == "" {
		return
	}
	if expired(token) {
		_ = s.kv.RemoveItem(ctx, kvstore.KeyAuthToken)
		_ = s.kv.RemoveItem(ctx, kvstore.KeyUserData)
		return
	}

	s.mu.Lock()
	s.token = token
	s.state = StateAuthenticated
	s.mu.Unlock()

	raw, _ := s.kv.GetItem(ctx, kvstore.KeyUserData)
	if raw != "" {
		var user models.User
		if err := json.Unmarshal([]byte(raw), &user); err == nil && user.ID != 0 {
			s.mu.Lock()
			s.user = &user
			s.mu.Unlock()
			return
		}
		_ = s.kv.RemoveItem(ctx, kvstore.KeyUserData)
	}

	if _, err := s.CurrentUser(ctx); err != nil {
		s.logger.Warn("restore session: identity fetch failed", zap.Error(err))
	}
}

// Token implements api.TokenSource. An expired token reads as absent so
// doomed requests are not sent.
func (s *Store) Token() string {
	s.mu.RLock()
	token := s.token
	s.mu.RUnlock()
	if token == "" || expired(token) {
		return ""
	}
	return token
}

// State returns the current lifecycle state.
func (s *Store) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// Register creates an account and signs the new user in.
func (s *Store) Register(ctx context.Context, name, email, password string) error {
	req := models.RegisterRequest{Name: name, Email: email, Password: password}
	if err := s.validate.Struct(req); err != nil {
		return err
	}

	s.setState(StateAuthenticating)

	var tokens models.AuthTokens
	if err := s.client.JSON(ctx, http.MethodPost, "/auth/register", req, nil, &tokens); err != nil {
		s.setState(StateAnonymous)
		return err
	}

	return s.adoptSession(ctx, tokens.AccessToken, true)
}

// Login authenticates with email and password. When rememberMe is false the
// token lives only as long as the process.
func (s *Store) Login(ctx context.Context, email, password string, rememberMe bool) error {
	req := models.LoginRequest{Email: email, Password: password, RememberMe: rememberMe}
	if err := s.validate.Struct(req); err != nil {
		return err
	}

	s.setState(StateAuthenticating)

	var tokens models.AuthTokens
	if err := s.client.JSON(ctx, http.MethodPost, "/auth/login", req, nil, &tokens); err != nil {
		s.setState(StateAnonymous)
		if appErrors.Is(err, appErrors.ErrUnauthorized) {
			return appErrors.New("INVALID_CREDENTIALS", http.StatusUnauthorized, "invalid email or password")
		}
		return err
	}

	return s.adoptSession(ctx, tokens.AccessToken, rememberMe)
}

// Logout clears the session. The server-side invalidation call is best
// effort: local state is never left authenticated after a logout request.
func (s *Store) Logout(ctx context.Context) {
	if err := s.client.JSON(ctx, http.MethodPost, "/auth/logout", nil, nil, nil); err != nil {
		s.logger.Warn("server logout failed, clearing local session anyway", zap.Error(err))
	}
	s.clear(ctx)
}

// CurrentUser returns the signed-in identity, re-deriving it from the
// persisted cache when available and fetching otherwise.
func (s *Store) CurrentUser(ctx context.Context) (*models.User, error) {
	s.mu.RLock()
	cached := s.user
	s.mu.RUnlock()
	if cached != nil {
		u := *cached
		return &u, nil
	}

	var user models.User
	if err := s.client.JSON(ctx, http.MethodGet, "/auth/get-me", nil, nil, &user); err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.user = &user
	persist := s.persist
	s.mu.Unlock()

	if persist {
		if raw, err := json.Marshal(user); err == nil {
			_ = s.kv.SetItem(ctx, kvstore.KeyUserData, string(raw))
		}
	}
	u := user
	return &u, nil
}

// CurrentUserID returns the signed-in user id without touching the network,
// or 0 when anonymous.
func (s *Store) CurrentUserID() int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.user == nil {
		return 0
	}
	return s.user.ID
}

func (s *Store) adoptSession(ctx context.Context, token string, persist bool) error {
	s.mu.Lock()
	s.token = token
	s.persist = persist
	s.state = StateAuthenticated
	s.user = nil
	s.mu.Unlock()

	if persist {
		if err := s.kv.SetItem(ctx, kvstore.KeyAuthToken, token); err != nil {
			s.logger.Warn("persist token failed", zap.Error(err))
		}
	}

	if _, err := s.CurrentUser(ctx); err != nil {
		s.logger.Warn("identity fetch after sign-in failed", zap.Error(err))
	}
	return nil
}

// handleUnauthorized is installed on the HTTP adapter: any 401 anywhere
// forces the session back to anonymous, process-wide.
func (s *Store) handleUnauthorized() {
	s.logger.Info("unauthorized response, tearing down session")
	s.clear(context.Background())
}

func (s *Store) clear(ctx context.Context) {
	s.mu.Lock()
	s.token = ""
	s.user = nil
	s.state = StateAnonymous
	s.mu.Unlock()

	_ = s.kv.RemoveItem(ctx, kvstore.KeyAuthToken)
	_ = s.kv.RemoveItem(ctx, kvstore.KeyUserData)
}

func (s *Store) setState(state State) {
	s.mu.Lock()
	s.state = state
	s.mu.Unlock()
}

// expired reports whether the token carries an exp claim in the past. The
// signature is not verified: the client only reads its own token to avoid
// sending requests that are certain to 401.
func expired(token string) bool {
	claims := jwt.RegisteredClaims{}
	parser := jwt.NewParser()
	if _, _, err := parser.ParseUnverified(token, &claims); err != nil {
		return false
	}
	if claims.ExpiresAt == nil {
		return false
	}
	return claims.ExpiresAt.Before(time.Now())
}
