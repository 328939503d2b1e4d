package notify

import (
	"sync"

	"github.com/classhub/classhub-go/internal/models"
)

// Inbox is the append-only, newest-first notification list. Receipt order is
// preserved; MarkRead flips the read flag in place and never reorders.
type Inbox struct {
	mu       sync.RWMutex
	items    []models.Notification
	capacity int
}

// NewInbox bounds the list at capacity; 0 means unbounded.
func NewInbox(capacity int) *Inbox {
	return &Inbox{capacity: capacity}
}

// Add prepends a notification.
func (in *Inbox) Add(n models.Notification) {
	in.mu.Lock()
	defer in.mu.Unlock()
	in.items = append([]models.Notification{n}, in.items...)
	if in.capacity > 0 && len(in.items) > in.capacity {
		in.items = in.items[:in.capacity]
	}
}

// Replace swaps the whole list, e.g. after a history fetch.
func (in *Inbox) Replace(items []models.Notification) {
	in.mu.Lock()
	defer in.mu.Unlock()
	in.items = append([]models.Notification(nil), items...)
	if in.capacity > 0 && len(in.items) > in.capacity {
		in.items = in.items[:in.capacity]
	}
}

// List returns a copy, newest first.
func (in *Inbox) List() []models.Notification {
	in.mu.RLock()
	defer in.mu.RUnlock()
	return append([]models.Notification(nil), in.items...)
}

// Unread counts notifications not yet marked read.
func (in *Inbox) Unread() int {
	in.mu.RLock()
	defer in.mu.RUnlock()
	count := 0
	for _, n := range in.items {
		if !n.IsRead {
			count++
		}
	}
	return count
}

// MarkRead flags the notification with the given id.
func (in *Inbox) MarkRead(id int64) {
	in.mu.Lock()
	defer in.mu.Unlock()
	for i := range in.items {
		if in.items[i].ID == id {
			in.items[i].IsRead = true
			return
		}
	}
}
