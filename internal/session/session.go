// Package session keeps the per-view form state, keyed by session id.
package session

import (
	"context"
	"errors"
	"time"
)

// ErrConflict is returned when a state update kept losing to concurrent writers.
var ErrConflict = errors.New("session: concurrent update conflict")

// State is everything the page shows for one view.
type State struct {
	File      *File     `json:"file,omitempty"`
	Question  string    `json:"question"`
	Answer    string    `json:"answer"`
	Loading   bool      `json:"loading"`
	Error     string    `json:"error"`
	UpdatedAt time.Time `json:"updated_at"`
}

// File is the selected document.
type File struct {
	Name  string `json:"name"`
	Type  string `json:"type"`
	Size  int64  `json:"size"`
	Pages int    `json:"pages,omitempty"` // known only when the bytes were inspected
	Data  []byte `json:"data"`
}

// UpdateFunc mutates state in place. Returning an error aborts the update
// and leaves the stored state untouched.
type UpdateFunc func(*State) error

// Store persists State per session id.
type Store interface {
	// Get returns the stored state, or the zero State when the session is unknown or expired.
	Get(ctx context.Context, id string) (State, error)

	// Update applies fn atomically with respect to other Updates of the same id
	// and returns the state as stored.
	Update(ctx context.Context, id string, fn UpdateFunc) (State, error)

	// Delete drops the session.
	Delete(ctx context.Context, id string) error

	// Close releases the store.
	Close() error
}
