package dispatch

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDeliversInOrder(t *testing.T) {
	var mu sync.Mutex
	var got []string
	done := make(chan struct{})

	d := New("test", func(_ context.Context, e Event) {
		mu.Lock()
		got = append(got, e.Type)
		if len(got) == 3 {
			close(done)
		}
		mu.Unlock()
	}, Config{})

	d.Start(context.Background())
	t.Cleanup(d.Stop)

	require.NoError(t, d.Publish(Event{Type: "a"}))
	require.NoError(t, d.Publish(Event{Type: "b"}))
	require.NoError(t, d.Publish(Event{Type: "c"}))

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("events not delivered")
	}

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"a", "b", "c"}, got)
}

func TestPublishBeforeStartFails(t *testing.T) {
	d := New("test", func(context.Context, Event) {}, Config{})
	assert.Error(t, d.Publish(Event{Type: "a"}))
}

func TestStopWaitsForWorker(t *testing.T) {
	d := New("test", func(context.Context, Event) {}, Config{})
	d.Start(context.Background())
	d.Stop()
	// A second Stop is a no-op.
	d.Stop()
	assert.Error(t, d.Publish(Event{Type: "late"}))
}
