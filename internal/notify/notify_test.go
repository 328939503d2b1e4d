package notify

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/classhub/classhub-go/internal/api"
	"github.com/classhub/classhub-go/internal/models"
	"github.com/classhub/classhub-go/pkg/config"
)

func TestInboxIsNewestFirst(t *testing.T) {
	inbox := NewInbox(0)
	inbox.Add(models.Notification{ID: 1, Message: "first"})
	inbox.Add(models.Notification{ID: 2, Message: "second"})

	list := inbox.List()
	require.Len(t, list, 2)
	assert.Equal(t, int64(2), list[0].ID)
	assert.Equal(t, int64(1), list[1].ID)
	assert.Equal(t, 2, inbox.Unread())

	inbox.MarkRead(2)
	assert.Equal(t, 1, inbox.Unread())
	// MarkRead never reorders.
	assert.Equal(t, int64(2), inbox.List()[0].ID)
}

func TestInboxCapacityDropsOldest(t *testing.T) {
	inbox := NewInbox(2)
	inbox.Add(models.Notification{ID: 1})
	inbox.Add(models.Notification{ID: 2})
	inbox.Add(models.Notification{ID: 3})

	list := inbox.List()
	require.Len(t, list, 2)
	assert.Equal(t, int64(3), list[0].ID)
	assert.Equal(t, int64(2), list[1].ID)
}

func TestChannelReceivesAndFansOut(t *testing.T) {
	upgrader := websocket.Upgrader{}
	var gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		payload, _ := json.Marshal(models.Notification{ID: 9, Type: "Assignment", Message: "HW due"})
		_ = conn.WriteMessage(websocket.TextMessage, payload)
		// Hold the connection open until the client goes away.
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	t.Cleanup(srv.Close)

	cfg := config.RealtimeConfig{
		HubURL:       "ws" + strings.TrimPrefix(srv.URL, "http"),
		ReconnectMin: 10 * time.Millisecond,
		ReconnectMax: 50 * time.Millisecond,
		WriteTimeout: time.Second,
	}
	ch := NewChannel(cfg, api.TokenFunc(func() string { return "tok-9" }), zap.NewNop())

	received := make(chan models.Notification, 1)
	ch.Subscribe(func(n models.Notification) { received <- n })

	ch.Connect(context.Background())
	t.Cleanup(ch.Close)

	select {
	case n := <-received:
		assert.Equal(t, int64(9), n.ID)
		assert.Equal(t, "Assignment", n.Type)
	case <-time.After(3 * time.Second):
		t.Fatal("notification not delivered")
	}

	assert.Equal(t, "Bearer tok-9", gotAuth)
	require.Len(t, ch.Inbox().List(), 1)
	assert.False(t, ch.Inbox().List()[0].IsRead)
}

func TestHistoryFetch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/users/7/notifications", r.URL.Path)
		_, _ = w.Write([]byte(`[{"id":2,"type":"Announcement","isRead":false},{"id":1,"type":"Assignment","isRead":true}]`))
	}))
	t.Cleanup(srv.Close)

	history := NewHistory(api.New(config.APIConfig{BaseURL: srv.URL}, zap.NewNop()))
	list, err := history.Fetch(context.Background(), 7)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, int64(2), list[0].ID)
}
