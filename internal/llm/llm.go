package llm

import (
	"context"
	"errors"

	"pdf-insights/internal/prompt"
)

// ErrNoContent is returned when the model answered without any text.
var ErrNoContent = errors.New("llm: no content returned")

// Client is a minimal LLM interface to allow pluggable providers.
type Client interface {
	// Generate sends the rendered prompt parts in order and returns the model text.
	Generate(ctx context.Context, parts []prompt.Part) (string, error)
}
