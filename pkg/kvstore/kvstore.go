// Package kvstore provides the persisted key-value store backing the client
// session: a local analog of the browser's localStorage. Missing and
// unreadable values are reported as absent, never as a fatal error.
package kvstore

import "context"

// Store persists small string values under string keys.
type Store interface {
	// GetItem returns the value for key, or "" when the key is absent or its
	// stored value cannot be read.
	GetItem(ctx context.Context, key string) (string, error)
	SetItem(ctx context.Context, key, value string) error
	RemoveItem(ctx context.Context, key string) error
}

// Well-known session keys.
const (
	KeyAuthToken = "authToken"
	KeyUserData  = "userData"
)
