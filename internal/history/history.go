// Package history records every question that reached the model.
package history

import (
	"context"
	"time"

	"github.com/google/uuid"

	"pdf-insights/internal/retry"
)

// Outcome is how an ask ended.
type Outcome string

const (
	OutcomeAnswered Outcome = "answered"
	OutcomeFailed   Outcome = "failed"
)

// Entry is one recorded ask.
type Entry struct {
	ID           uuid.UUID     `json:"id"`
	SessionID    string        `json:"session_id"`
	Question     string        `json:"question"`
	DocumentName string        `json:"document_name"`
	DocumentSize int64         `json:"document_size"`
	Outcome      Outcome       `json:"outcome"`
	Error        string        `json:"error,omitempty"`
	Duration     time.Duration `json:"duration"`
	CreatedAt    time.Time     `json:"created_at"`
}

// Recorder stores or forwards entries.
type Recorder interface {
	Record(ctx context.Context, entry Entry) error
	Close() error
}

// normalize fills the fields a caller may leave empty.
func normalize(e Entry) Entry {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}
	return e
}

// RecordWithRetry attempts to record with retries and exponential backoff.
func RecordWithRetry(ctx context.Context, r Recorder, entry Entry, attempts int, base time.Duration) error {
	if attempts <= 0 {
		attempts = 1
	}
	entry = normalize(entry)
	for attempt := 0; attempt < attempts; attempt++ {
		if err := r.Record(ctx, entry); err == nil {
			return nil
		} else if attempt == attempts-1 {
			return err
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(retry.ExponentialBackoff(attempt, base)):
		}
	}
	return nil
}
