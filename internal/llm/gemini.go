package llm

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/generative-ai-go/genai"
	"github.com/samber/lo"
	"google.golang.org/api/option"

	"pdf-insights/internal/prompt"
)

// DefaultGeminiModel is the hosted model used when none is configured.
const DefaultGeminiModel = "gemini-1.5-flash"

// GeminiClient calls the Gemini generateContent API.
type GeminiClient struct {
	client  *genai.Client
	model   *genai.GenerativeModel
	timeout time.Duration
}

// GeminiOption customises a GeminiClient.
type GeminiOption func(*GeminiClient)

// WithGeminiTimeout bounds every Generate call. Non-positive values keep the default.
func WithGeminiTimeout(d time.Duration) GeminiOption {
	return func(c *GeminiClient) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithGeminiTemperature sets the sampling temperature.
func WithGeminiTemperature(temp float32) GeminiOption {
	return func(c *GeminiClient) {
		c.model.SetTemperature(temp)
	}
}

// NewGeminiClient connects with an API key. An empty model picks DefaultGeminiModel.
func NewGeminiClient(ctx context.Context, apiKey, model string, opts ...GeminiOption) (*GeminiClient, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("api key required")
	}
	if model == "" {
		model = DefaultGeminiModel
	}
	cli, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("gemini client: %w", err)
	}
	c := &GeminiClient{
		client:  cli,
		model:   cli.GenerativeModel(model),
		timeout: defaultTimeout,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

func (c *GeminiClient) Generate(ctx context.Context, parts []prompt.Part) (string, error) {
	if c == nil || c.model == nil {
		return "", fmt.Errorf("nil gemini client")
	}
	reqCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	resp, err := c.model.GenerateContent(reqCtx, geminiParts(parts)...)
	if err != nil {
		return "", err
	}
	text := geminiText(resp)
	if strings.TrimSpace(text) == "" {
		return "", ErrNoContent
	}
	return text, nil
}

// Close releases the underlying connection.
func (c *GeminiClient) Close() error {
	if c == nil || c.client == nil {
		return nil
	}
	return c.client.Close()
}

func geminiParts(parts []prompt.Part) []genai.Part {
	return lo.Map(parts, func(p prompt.Part, _ int) genai.Part {
		if p.Kind == prompt.PartMedia {
			return genai.Blob{MIMEType: p.Media.MIMEType, Data: p.Media.Data}
		}
		return genai.Text(p.Text)
	})
}

// geminiText joins the text parts of the first candidate.
func geminiText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 {
		return ""
	}
	cand := resp.Candidates[0]
	if cand == nil || cand.Content == nil {
		return ""
	}
	var b strings.Builder
	for _, part := range cand.Content.Parts {
		if text, ok := part.(genai.Text); ok {
			b.WriteString(string(text))
		}
	}
	return b.String()
}
