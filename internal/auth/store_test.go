package auth

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/classhub/classhub-go/internal/api"
	"github.com/classhub/classhub-go/internal/models"
	"github.com/classhub/classhub-go/pkg/config"
	"github.com/classhub/classhub-go/pkg/kvstore"
)

type authBackend struct {
	user        models.User
	password    string
	logoutFails bool
	meCalls     int
}

func (b *authBackend) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/auth/login", func(w http.ResponseWriter, r *http.Request) {
		var req models.LoginRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		if req.Email != b.user.Email || req.Password != b.password {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		_ = json.NewEncoder(w).Encode(models.AuthTokens{AccessToken: "token-abc"})
	})
	mux.HandleFunc("/auth/register", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(models.AuthTokens{AccessToken: "token-new"})
	})
	mux.HandleFunc("/auth/get-me", func(w http.ResponseWriter, r *http.Request) {
		b.meCalls++
		if r.Header.Get("Authorization") == "" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		_ = json.NewEncoder(w).Encode(b.user)
	})
	mux.HandleFunc("/auth/logout", func(w http.ResponseWriter, r *http.Request) {
		if b.logoutFails {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	})
	return mux
}

func newTestStore(t *testing.T, backend *authBackend) (*Store, kvstore.Store) {
	t.Helper()
	srv := httptest.NewServer(backend.handler())
	t.Cleanup(srv.Close)

	kv := kvstore.NewMemoryStore()
	client := api.New(config.APIConfig{BaseURL: srv.URL}, zap.NewNop())
	store := NewStore(client, kv, nil, zap.NewNop())
	return store, kv
}

func TestLoginPersistsTokenAndIdentity(t *testing.T) {
	backend := &authBackend{user: models.User{ID: 7, Name: "Ada", Email: "ada@example.com"}, password: "pw123456"}
	store, kv := newTestStore(t, backend)
	ctx := context.Background()

	require.NoError(t, store.Login(ctx, "ada@example.com", "pw123456", true))
	assert.Equal(t, StateAuthenticated, store.State())
	assert.Equal(t, "token-abc", store.Token())
	assert.Equal(t, int64(7), store.CurrentUserID())

	token, _ := kv.GetItem(ctx, kvstore.KeyAuthToken)
	assert.Equal(t, "token-abc", token)
	raw, _ := kv.GetItem(ctx, kvstore.KeyUserData)
	assert.Contains(t, raw, `"Ada"`)
}

func TestLoginRejectsBadCredentials(t *testing.T) {
	backend := &authBackend{user: models.User{ID: 7, Email: "ada@example.com"}, password: "pw123456"}
	store, kv := newTestStore(t, backend)
	ctx := context.Background()

	err := store.Login(ctx, "ada@example.com", "wrongpass", false)
	require.Error(t, err)
	assert.Equal(t, StateAnonymous, store.State())
	assert.Empty(t, store.Token())

	token, _ := kv.GetItem(ctx, kvstore.KeyAuthToken)
	assert.Empty(t, token)
}

func TestLoginWithoutRememberMeKeepsTokenInMemoryOnly(t *testing.T) {
	backend := &authBackend{user: models.User{ID: 7, Email: "ada@example.com"}, password: "pw123456"}
	store, kv := newTestStore(t, backend)
	ctx := context.Background()

	require.NoError(t, store.Login(ctx, "ada@example.com", "pw123456", false))
	assert.Equal(t, "token-abc", store.Token())

	token, _ := kv.GetItem(ctx, kvstore.KeyAuthToken)
	assert.Empty(t, token)
}

func TestLoginValidatesInputLocally(t *testing.T) {
	backend := &authBackend{}
	store, _ := newTestStore(t, backend)

	err := store.Login(context.Background(), "not-an-email", "", false)
	require.Error(t, err)
	assert.Equal(t, 0, backend.meCalls)
}

func TestLogoutClearsLocallyEvenWhenServerFails(t *testing.T) {
	backend := &authBackend{user: models.User{ID: 7, Email: "ada@example.com"}, password: "pw123456", logoutFails: true}
	store, kv := newTestStore(t, backend)
	ctx := context.Background()

	require.NoError(t, store.Login(ctx, "ada@example.com", "pw123456", true))
	store.Logout(ctx)

	assert.Equal(t, StateAnonymous, store.State())
	assert.Empty(t, store.Token())
	token, _ := kv.GetItem(ctx, kvstore.KeyAuthToken)
	assert.Empty(t, token)
}

func TestInitDiscardsCorruptedIdentityCache(t *testing.T) {
	backend := &authBackend{user: models.User{ID: 7, Name: "Ada", Email: "ada@example.com"}, password: "pw123456"}
	store, kv := newTestStore(t, backend)
	ctx := context.Background()

	require.NoError(t, kv.SetItem(ctx, kvstore.KeyAuthToken, "opaque-token"))
	require.NoError(t, kv.SetItem(ctx, kvstore.KeyUserData, "{not json"))

	store.Init(ctx)

	assert.Equal(t, StateAuthenticated, store.State())
	assert.Equal(t, int64(7), store.CurrentUserID())
	assert.Equal(t, 1, backend.meCalls)
}

func TestUnauthorizedResponseTearsDownSession(t *testing.T) {
	backend := &authBackend{user: models.User{ID: 7, Email: "ada@example.com"}, password: "pw123456"}
	store, kv := newTestStore(t, backend)
	ctx := context.Background()

	require.NoError(t, store.Login(ctx, "ada@example.com", "pw123456", true))

	// Simulate a 401 on an arbitrary later request.
	store.handleUnauthorized()

	assert.Equal(t, StateAnonymous, store.State())
	assert.Empty(t, store.Token())
	token, _ := kv.GetItem(ctx, kvstore.KeyAuthToken)
	assert.Empty(t, token)
}
