// Package notify receives pushed NotificationRecord events over a
// persistent websocket connection and keeps the per-user notification inbox.
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/classhub/classhub-go/internal/api"
	"github.com/classhub/classhub-go/internal/models"
	"github.com/classhub/classhub-go/pkg/config"
	"github.com/classhub/classhub-go/pkg/dispatch"
	"github.com/classhub/classhub-go/pkg/metrics"
)

// Subscriber receives each notification after it lands in the inbox.
type Subscriber func(models.Notification)

// Channel maintains the hub connection with automatic reconnect. Delivery to
// subscribers happens on the dispatcher goroutine, never on the read pump.
type Channel struct {
	cfg     config.RealtimeConfig
	tokens  api.TokenSource
	logger  *zap.Logger
	metrics *metrics.Collector
	inbox   *Inbox

	dispatcher *dispatch.Dispatcher

	mu      sync.Mutex
	subs    []Subscriber
	cancel  context.CancelFunc
	running bool
}

// Option customises the channel.
type Option func(*Channel)

// WithMetrics attaches the realtime event counter.
func WithMetrics(m *metrics.Collector) Option {
	return func(c *Channel) { c.metrics = m }
}

// NewChannel wires the channel; Connect must be called to start it.
func NewChannel(cfg config.RealtimeConfig, tokens api.TokenSource, logger *zap.Logger, opts ...Option) *Channel {
	if logger == nil {
		logger = zap.NewNop()
	}
	c := &Channel{
		cfg:    cfg,
		tokens: tokens,
		logger: logger,
		inbox:  NewInbox(cfg.InboxCapacity),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.dispatcher = dispatch.New("notifications", c.deliver, dispatch.Config{Logger: logger})
	return c
}

// Inbox exposes the notification list.
func (c *Channel) Inbox() *Inbox {
	return c.inbox
}

// Subscribe registers a callback for future notifications.
func (c *Channel) Subscribe(fn Subscriber) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.subs = append(c.subs, fn)
}

// Connect starts the read pump. It returns immediately; the connection is
// retried with capped exponential backoff until ctx is cancelled or Close is
// called.
func (c *Channel) Connect(ctx context.Context) {
	c.mu.Lock()
	if c.running {
		c.mu.Unlock()
		return
	}
	ctx, c.cancel = context.WithCancel(ctx)
	c.running = true
	c.mu.Unlock()

	c.dispatcher.Start(ctx)
	go c.run(ctx)
}

// Close stops the pump and the dispatcher.
func (c *Channel) Close() {
	c.mu.Lock()
	if !c.running {
		c.mu.Unlock()
		return
	}
	c.cancel()
	c.running = false
	c.mu.Unlock()
	c.dispatcher.Stop()
}

func (c *Channel) run(ctx context.Context) {
	backoff := c.cfg.ReconnectMin
	for {
		if ctx.Err() != nil {
			return
		}

		conn, err := c.dial(ctx)
		if err != nil {
			c.logger.Warn("hub dial failed", zap.String("url", c.cfg.HubURL), zap.Error(err))
			if !sleep(ctx, backoff) {
				return
			}
			backoff = nextBackoff(backoff, c.cfg.ReconnectMax)
			continue
		}

		c.logger.Info("hub connected", zap.String("url", c.cfg.HubURL))
		backoff = c.cfg.ReconnectMin

		if err := c.readPump(ctx, conn); err != nil && ctx.Err() == nil {
			c.logger.Warn("hub connection lost", zap.Error(err))
		}
		_ = conn.Close()
	}
}

func (c *Channel) dial(ctx context.Context) (*websocket.Conn, error) {
	header := http.Header{}
	if c.tokens != nil {
		if token := c.tokens.Token(); token != "" {
			header.Set("Authorization", "Bearer "+token)
		}
	}

	dialer := websocket.Dialer{
		HandshakeTimeout: 10 * time.Second,
		ReadBufferSize:   1024,
		WriteBufferSize:  1024,
	}
	conn, resp, err := dialer.DialContext(ctx, c.cfg.HubURL, header)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", c.cfg.HubURL, err)
	}
	return conn, nil
}

func (c *Channel) readPump(ctx context.Context, conn *websocket.Conn) error {
	go c.pingLoop(ctx, conn)

	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		_, raw, err := conn.ReadMessage()
		if err != nil {
			return err
		}

		var notification models.Notification
		if err := json.Unmarshal(raw, &notification); err != nil {
			c.logger.Warn("undecodable notification frame", zap.Error(err))
			continue
		}

		c.inbox.Add(notification)
		c.metrics.ObserveRealtimeEvent()
		if err := c.dispatcher.Publish(dispatch.Event{Type: notification.Type, Payload: notification}); err != nil {
			c.logger.Warn("notification dispatch failed", zap.Error(err))
		}
	}
}

func (c *Channel) pingLoop(ctx context.Context, conn *websocket.Conn) {
	if c.cfg.PingInterval <= 0 {
		return
	}
	ticker := time.NewTicker(c.cfg.PingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			deadline := time.Now().Add(c.cfg.WriteTimeout)
			if err := conn.WriteControl(websocket.PingMessage, nil, deadline); err != nil {
				return
			}
		}
	}
}

func (c *Channel) deliver(_ context.Context, event dispatch.Event) {
	notification, ok := event.Payload.(models.Notification)
	if !ok {
		return
	}
	c.mu.Lock()
	subs := append([]Subscriber(nil), c.subs...)
	c.mu.Unlock()
	for _, fn := range subs {
		fn(notification)
	}
}

func sleep(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

func nextBackoff(current, max time.Duration) time.Duration {
	next := current * 2
	if max > 0 && next > max {
		return max
	}
	return next
}
