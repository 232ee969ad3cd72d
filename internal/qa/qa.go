// Package qa answers a question about a PDF by delegating to a remote model.
package qa

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"pdf-insights/internal/document"
	"pdf-insights/internal/llm"
	"pdf-insights/internal/prompt"
	"pdf-insights/internal/schema"
)

var (
	// ErrInvalidInput wraps a *schema.Error describing the rejected fields.
	ErrInvalidInput = errors.New("invalid input")
	// ErrModel wraps a failure talking to the remote model.
	ErrModel = errors.New("model request failed")
	// ErrInvalidModelResponse means the model answered with something that is not an Output.
	ErrInvalidModelResponse = errors.New("invalid model response")
)

// Input is the request shape.
type Input struct {
	Question string `json:"question" validate:"required,notblank"`
	Document string `json:"document" validate:"required,pdf_datauri"`
}

// Output is the response shape.
type Output struct {
	Answer string `json:"answer" validate:"required,notblank"`
}

// Service validates input, renders the prompt and validates the model output.
type Service struct {
	llm         llm.Client
	template    prompt.Template
	maxDocument int64
	log         *slog.Logger
}

// Option customises a Service.
type Option func(*Service)

// WithTemplate replaces the default prompt.
func WithTemplate(t prompt.Template) Option {
	return func(s *Service) {
		s.template = t
	}
}

// WithMaxDocumentSize rejects documents that decode to more than n bytes.
// Zero means unlimited.
func WithMaxDocumentSize(n int64) Option {
	return func(s *Service) {
		s.maxDocument = n
	}
}

// NewService builds a Service around a model client.
func NewService(client llm.Client, log *slog.Logger, opts ...Option) *Service {
	s := &Service{
		llm:      client,
		template: prompt.AnswerFromDocument,
		log:      log,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Answer runs one question against one document. It makes exactly one model call
// when the input is valid and none otherwise.
func (s *Service) Answer(ctx context.Context, in Input) (Output, error) {
	if err := schema.Check(in); err != nil {
		return Output{}, fmt.Errorf("%w: %w", ErrInvalidInput, err)
	}
	if err := s.checkSize(in.Document); err != nil {
		return Output{}, fmt.Errorf("%w: %w", ErrInvalidInput, err)
	}
	doc, err := document.Parse(in.Document)
	if err != nil {
		return Output{}, fmt.Errorf("%w: %w", ErrInvalidInput, err)
	}

	parts, err := s.template.Render(prompt.Vars{Question: in.Question, Document: doc})
	if err != nil {
		return Output{}, err
	}

	start := time.Now()
	text, err := s.llm.Generate(ctx, parts)
	log := s.log.With("prompt", s.template.Name(), "document_bytes", len(doc.Data), "duration_ms", time.Since(start).Milliseconds())
	if errors.Is(err, llm.ErrNoContent) {
		log.Warn("model returned no content")
		return Output{}, fmt.Errorf("%w: %w", ErrInvalidModelResponse, err)
	}
	if err != nil {
		log.Error("model request failed", "err", err)
		return Output{}, fmt.Errorf("%w: %w", ErrModel, err)
	}

	out := Output{Answer: strings.TrimSpace(text)}
	if err := schema.Check(out); err != nil {
		log.Warn("model response failed validation", "err", err)
		return Output{}, fmt.Errorf("%w: %w", ErrInvalidModelResponse, err)
	}
	log.Info("question answered", "answer_chars", len(out.Answer))
	return out, nil
}

// checkSize looks at the encoded length only, so oversized documents are
// rejected before their payload is decoded.
func (s *Service) checkSize(uri string) error {
	if s.maxDocument <= 0 {
		return nil
	}
	_, size, err := document.ParseHeader(uri)
	if err != nil {
		return err
	}
	if int64(size) <= s.maxDocument {
		return nil
	}
	return &schema.Error{Fields: []schema.FieldError{{
		Field:   "document",
		Rule:    "max_bytes",
		Message: fmt.Sprintf("document must be at most %d bytes", s.maxDocument),
	}}}
}
