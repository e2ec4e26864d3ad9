package agents

import (
	"context"
	"errors"
	"strings"

	"github.com/fyrsmithlabs/reviewd/internal/config"
	"github.com/fyrsmithlabs/reviewd/internal/workflows"
	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// OpenAICompleter streams chat completions from OpenAI or a compatible
// endpoint.
type OpenAICompleter struct {
	client *openai.Client
	model  string
}

// NewOpenAICompleter creates a completer. baseURL may point at any
// OpenAI-compatible server; empty uses the public API.
func NewOpenAICompleter(key config.Secret, model, baseURL string) *OpenAICompleter {
	opts := []option.RequestOption{
		option.WithAPIKey(key.Value()),
		option.WithMaxRetries(0),
	}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	client := openai.NewClient(opts...)
	return &OpenAICompleter{client: &client, model: model}
}

// Complete implements Completer.
func (c *OpenAICompleter) Complete(ctx context.Context, req Request, onPartial workflows.PartialFunc) (string, error) {
	var messages []openai.ChatCompletionMessageParamUnion
	if req.System != "" {
		messages = append(messages, openai.SystemMessage(req.System))
	}
	messages = append(messages, openai.UserMessage(req.Prompt))

	params := openai.ChatCompletionNewParams{
		Model:               openai.ChatModel(c.model),
		Messages:            messages,
		MaxCompletionTokens: openai.Int(int64(req.MaxTokens)),
	}

	stream := c.client.Chat.Completions.NewStreaming(ctx, params)
	defer stream.Close()

	var text strings.Builder
	for stream.Next() {
		ck := stream.Current()
		for _, ch := range ck.Choices {
			if ch.Delta.Content == "" {
				continue
			}
			text.WriteString(ch.Delta.Content)
			if onPartial != nil {
				onPartial(text.String())
			}
		}
	}
	if err := stream.Err(); err != nil {
		var apiErr *openai.Error
		if errors.As(err, &apiErr) {
			return "", classifyStatus("openai", apiErr.StatusCode, err)
		}
		return "", classifyStatus("openai", 0, err)
	}
	return text.String(), nil
}
