package llm

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"github.com/samber/lo"

	"pdf-insights/internal/prompt"
)

// OpenAIClient calls the OpenAI Chat Completions API.
type OpenAIClient struct {
	model   openai.ChatModel
	client  *openai.Client
	timeout time.Duration
}

const (
	defaultTimeout         = 60 * time.Second
	defaultChatTemperature = 0.2
	// documentFilename is the name the API sees for the uploaded document.
	documentFilename = "document.pdf"
)

// NewOpenAIClient builds a client with defaults against api.openai.com.
func NewOpenAIClient(apiKey string, model openai.ChatModel, timeout time.Duration) (*OpenAIClient, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("api key required")
	}
	if model == "" {
		model = openai.ChatModelGPT4oMini
	}
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	cli := openai.NewClient(option.WithAPIKey(apiKey))
	return &OpenAIClient{
		model:   model,
		client:  &cli,
		timeout: timeout,
	}, nil
}

func (c *OpenAIClient) Generate(ctx context.Context, parts []prompt.Part) (string, error) {
	if c == nil || c.client == nil {
		return "", fmt.Errorf("nil openai client")
	}
	reqCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	resp, err := c.client.Chat.Completions.New(reqCtx, openai.ChatCompletionNewParams{
		Model:       c.model,
		Messages:    buildMessages(parts),
		Temperature: openai.Float(defaultChatTemperature),
	})
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 || strings.TrimSpace(resp.Choices[0].Message.Content) == "" {
		return "", ErrNoContent
	}
	return resp.Choices[0].Message.Content, nil
}

// buildMessages sends the whole prompt as one user message; documents travel as
// file parts carrying their data URI.
func buildMessages(parts []prompt.Part) []openai.ChatCompletionMessageParamUnion {
	content := lo.Map(parts, func(p prompt.Part, _ int) openai.ChatCompletionContentPartUnionParam {
		if p.Kind == prompt.PartMedia {
			return openai.FileContentPart(openai.ChatCompletionContentPartFileFileParam{
				FileData: openai.String(p.Media.String()),
				Filename: openai.String(documentFilename),
			})
		}
		return openai.TextContentPart(p.Text)
	})
	return []openai.ChatCompletionMessageParamUnion{
		{
			OfUser: &openai.ChatCompletionUserMessageParam{
				Content: openai.ChatCompletionUserMessageParamContentUnion{
					OfArrayOfContentParts: content,
				},
			},
		},
	}
}
