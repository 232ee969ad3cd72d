package history

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"

	"pdf-insights/internal/retry"
)

const (
	defaultMaxAttempts = 5
	consumerGroup      = "historians"
)

// message is the wire envelope; attempts travel with the entry so any consumer can retry it.
type message struct {
	Entry       Entry     `json:"entry"`
	Attempts    int       `json:"attempts"`
	MaxAttempts int       `json:"max_attempts"`
	NotBefore   time.Time `json:"not_before"`
}

// NATSRecorder publishes entries to a subject; Consume drains them into another Recorder.
type NATSRecorder struct {
	log     *slog.Logger
	nc      *nats.Conn
	subject string
	publish func(subject string, data []byte) error
}

// NewNATS constructs a thin NATS-based recorder.
func NewNATS(log *slog.Logger, nc *nats.Conn, subject string) *NATSRecorder {
	return &NATSRecorder{log: log, nc: nc, subject: subject, publish: nc.Publish}
}

func (r *NATSRecorder) Record(_ context.Context, entry Entry) error {
	return r.send(message{Entry: normalize(entry)})
}

func (r *NATSRecorder) send(msg message) error {
	if r.subject == "" {
		return errors.New("history subject required")
	}
	body, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	return r.publish(r.subject, body)
}

// Close flushes pending publishes and closes the connection.
func (r *NATSRecorder) Close() error {
	if r.nc == nil {
		return nil
	}
	return r.nc.Drain()
}

// Consume hands every entry on the subject to sink until ctx ends.
// Consumers share a queue group so each entry is stored once.
func (r *NATSRecorder) Consume(ctx context.Context, sink Recorder) error {
	sub, err := r.nc.QueueSubscribe(r.subject, consumerGroup, func(msg *nats.Msg) {
		r.handleMessage(ctx, msg.Data, sink)
	})
	if err != nil {
		return err
	}
	<-ctx.Done()
	return sub.Unsubscribe()
}

func (r *NATSRecorder) handleMessage(ctx context.Context, data []byte, sink Recorder) {
	var msg message
	if err := json.Unmarshal(data, &msg); err != nil {
		r.log.Error("failed to decode history entry", "err", err)
		return
	}

	if msg.NotBefore.After(time.Now()) {
		time.Sleep(time.Until(msg.NotBefore))
	}

	if err := sink.Record(ctx, msg.Entry); err != nil {
		r.retryMessage(msg, err)
	}
}

func (r *NATSRecorder) retryMessage(msg message, sinkErr error) {
	msg.Attempts++
	if msg.MaxAttempts == 0 {
		msg.MaxAttempts = defaultMaxAttempts
	}
	log := r.log.With("id", msg.Entry.ID, "attempts", msg.Attempts, "original_err", sinkErr)

	if msg.Attempts < msg.MaxAttempts {
		msg.NotBefore = time.Now().Add(retry.ExponentialBackoff(msg.Attempts, time.Second))
		if err := r.send(msg); err != nil {
			log.Error("failed to re-publish history entry after failure", "publish_err", err)
		}
	} else {
		log.Error("history entry permanently failed")
	}
}
