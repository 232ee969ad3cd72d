package history

import "context"

// NoopRecorder drops every entry. Used when HISTORY_PROVIDER=none.
type NoopRecorder struct{}

// NewNoopRecorder creates a recorder that records nothing
func NewNoopRecorder() *NoopRecorder {
	return &NoopRecorder{}
}

func (NoopRecorder) Record(context.Context, Entry) error { return nil }

func (NoopRecorder) Close() error { return nil }
