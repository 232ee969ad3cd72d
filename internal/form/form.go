// Package form drives the single-page question form: file selection,
// question submission and the loading/answer/error state shown to the user.
package form

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"

	"pdf-insights/internal/document"
	"pdf-insights/internal/history"
	"pdf-insights/internal/qa"
	"pdf-insights/internal/session"
)

// User-visible messages.
const (
	MsgInvalidFile      = "Please select a valid PDF file."
	MsgQuestionRequired = "Please enter a question."
	MsgFileRequired     = "Please upload a PDF file first."
	MsgAnswerFailed     = "Failed to get an answer. Please try again."
)

var (
	ErrInvalidFile      = errors.New(MsgInvalidFile)
	ErrQuestionRequired = errors.New(MsgQuestionRequired)
	ErrFileRequired     = errors.New(MsgFileRequired)
	ErrAnswerFailed     = errors.New(MsgAnswerFailed)
	// ErrBusy rejects a submission while another one for the same view is in flight.
	ErrBusy = errors.New("a question is already being answered")
)

const (
	historyAttempts = 3
	historyBackoff  = 200 * time.Millisecond
)

// Answerer is the question-answering request handler.
type Answerer interface {
	Answer(ctx context.Context, in qa.Input) (qa.Output, error)
}

// EncodeFunc turns the selected file into its transport form.
type EncodeFunc func(f *session.File) (document.DataURI, error)

// Upload is a file picked by the user. Type is the declared content type.
type Upload struct {
	Name string
	Type string
	Data io.Reader
}

// Controller owns form state transitions; state itself lives in a session.Store.
type Controller struct {
	sessions session.Store
	answerer Answerer
	recorder history.Recorder
	encode   EncodeFunc
	sniff    bool
	maxSize  int64
	log      *slog.Logger
	pending  sync.WaitGroup
}

// Option customises a Controller.
type Option func(*Controller)

// WithEncoder replaces the file encoder.
func WithEncoder(fn EncodeFunc) Option {
	return func(c *Controller) {
		c.encode = fn
	}
}

// WithRecorder records every submission that reached the answerer.
func WithRecorder(r history.Recorder) Option {
	return func(c *Controller) {
		c.recorder = r
	}
}

// WithSniffing also requires the file bytes to be a readable PDF.
func WithSniffing(enabled bool) Option {
	return func(c *Controller) {
		c.sniff = enabled
	}
}

// WithMaxSize rejects files larger than n bytes. Zero means unlimited.
func WithMaxSize(n int64) Option {
	return func(c *Controller) {
		c.maxSize = n
	}
}

// NewController wires a controller to its state store and answerer.
func NewController(sessions session.Store, answerer Answerer, log *slog.Logger, opts ...Option) *Controller {
	c := &Controller{
		sessions: sessions,
		answerer: answerer,
		recorder: history.NewNoopRecorder(),
		encode:   EncodeFile,
		log:      log,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// EncodeFile reads the stored bytes into a data URI.
func EncodeFile(f *session.File) (document.DataURI, error) {
	if f == nil {
		return document.DataURI{}, fmt.Errorf("%w: no file", document.ErrRead)
	}
	return document.Encode(document.MIMEPDF, bytes.NewReader(f.Data))
}

// State returns the current view state.
func (c *Controller) State(ctx context.Context, sessionID string) (session.State, error) {
	return c.sessions.Get(ctx, sessionID)
}

// Reset tears the view state down.
func (c *Controller) Reset(ctx context.Context, sessionID string) error {
	return c.sessions.Delete(ctx, sessionID)
}

// SelectFile stores a PDF selection. Anything else clears the selection and
// reports ErrInvalidFile. The previous answer is kept either way.
func (c *Controller) SelectFile(ctx context.Context, sessionID string, up *Upload) (session.State, error) {
	file, reason := c.readUpload(up)
	log := c.log.With("session_id", sessionID)
	if reason != nil {
		log.Info("file rejected", "reason", reason)
	}

	st, err := c.sessions.Update(ctx, sessionID, func(st *session.State) error {
		if reason != nil {
			st.File = nil
			st.Error = MsgInvalidFile
			return nil
		}
		st.File = file
		st.Error = ""
		return nil
	})
	if err != nil {
		return session.State{}, err
	}
	if reason != nil {
		return st, ErrInvalidFile
	}
	log.Info("file selected", "name", file.Name, "size", file.Size, "pages", file.Pages)
	return st, nil
}

func (c *Controller) readUpload(up *Upload) (*session.File, error) {
	if up == nil || up.Data == nil {
		return nil, errors.New("no file")
	}
	if !document.IsPDF(up.Type) {
		return nil, fmt.Errorf("declared type %q", up.Type)
	}
	r := up.Data
	if c.maxSize > 0 {
		r = io.LimitReader(up.Data, c.maxSize+1)
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read: %w", err)
	}
	if c.maxSize > 0 && int64(len(data)) > c.maxSize {
		return nil, fmt.Errorf("larger than %d bytes", c.maxSize)
	}
	f := &session.File{Name: up.Name, Type: up.Type, Size: int64(len(data)), Data: data}
	if c.sniff {
		info, err := document.Inspect(data)
		if err != nil {
			return nil, err
		}
		f.Pages = info.Pages
	}
	return f, nil
}

// SubmitQuestion asks question about the selected file. Validation failures set
// a specific message and never reach the answerer; every later failure collapses
// to MsgAnswerFailed with the cause only logged. Loading is always cleared.
func (c *Controller) SubmitQuestion(ctx context.Context, sessionID, question string) (session.State, error) {
	log := c.log.With("session_id", sessionID)

	var invalid error
	var file *session.File
	st, err := c.sessions.Update(ctx, sessionID, func(st *session.State) error {
		invalid = nil
		if st.Loading {
			return ErrBusy
		}
		st.Question = question
		switch {
		case strings.TrimSpace(question) == "":
			invalid = ErrQuestionRequired
		case st.File == nil:
			invalid = ErrFileRequired
		}
		if invalid != nil {
			st.Error = invalid.Error()
			return nil
		}
		file = st.File
		st.Error = ""
		st.Answer = ""
		st.Loading = true
		return nil
	})
	if errors.Is(err, ErrBusy) {
		current, getErr := c.sessions.Get(ctx, sessionID)
		if getErr != nil {
			return session.State{}, getErr
		}
		return current, ErrBusy
	}
	if err != nil {
		return session.State{}, err
	}
	if invalid != nil {
		return st, invalid
	}

	start := time.Now()
	answer, cause := c.ask(ctx, question, file)
	elapsed := time.Since(start)
	if cause != nil {
		log.Error("failed to get an answer", "err", cause, "duration_ms", elapsed.Milliseconds())
	}

	// the request context may already be gone; the loading flag must still clear
	done := context.WithoutCancel(ctx)
	st, err = c.sessions.Update(done, sessionID, func(st *session.State) error {
		st.Loading = false
		if cause != nil {
			st.Error = MsgAnswerFailed
			return nil
		}
		st.Answer = answer
		return nil
	})
	c.pending.Add(1)
	go func() {
		defer c.pending.Done()
		c.record(done, sessionID, question, file, elapsed, cause)
	}()
	if err != nil {
		log.Error("failed to clear loading state", "err", err)
		return session.State{}, err
	}
	if cause != nil {
		return st, fmt.Errorf("%w: %w", ErrAnswerFailed, cause)
	}
	return st, nil
}

// Wait blocks until every history entry started by SubmitQuestion was handed
// to the recorder.
func (c *Controller) Wait() {
	c.pending.Wait()
}

func (c *Controller) ask(ctx context.Context, question string, file *session.File) (string, error) {
	doc, err := c.encode(file)
	if err != nil {
		return "", fmt.Errorf("encode %s: %w", file.Name, err)
	}
	out, err := c.answerer.Answer(ctx, qa.Input{Question: question, Document: doc.String()})
	if err != nil {
		return "", err
	}
	return out.Answer, nil
}

func (c *Controller) record(ctx context.Context, sessionID, question string, file *session.File, elapsed time.Duration, cause error) {
	entry := history.Entry{
		SessionID:    sessionID,
		Question:     question,
		DocumentName: file.Name,
		DocumentSize: file.Size,
		Outcome:      history.OutcomeAnswered,
		Duration:     elapsed,
	}
	if cause != nil {
		entry.Outcome = history.OutcomeFailed
		entry.Error = cause.Error()
	}
	if err := history.RecordWithRetry(ctx, c.recorder, entry, historyAttempts, historyBackoff); err != nil {
		c.log.Warn("failed to record history", "session_id", sessionID, "err", err)
	}
}
