package agents

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/fyrsmithlabs/reviewd/internal/config"
	"github.com/fyrsmithlabs/reviewd/internal/workflows"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"
)

func sseServer(t *testing.T, status int, body string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if status != http.StatusOK {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(status)
			fmt.Fprint(w, body)
			return
		}
		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprint(w, body)
	}))
	t.Cleanup(srv.Close)
	return srv
}

const anthropicStream = `event: message_start
data: {"type":"message_start","message":{"id":"msg_1","type":"message","role":"assistant","model":"claude-sonnet-4-5","content":[],"stop_reason":null,"stop_sequence":null,"usage":{"input_tokens":12,"output_tokens":1}}}

event: content_block_start
data: {"type":"content_block_start","index":0,"content_block":{"type":"text","text":""}}

event: content_block_delta
data: {"type":"content_block_delta","index":0,"delta":{"type":"text_delta","text":"{\"findings\":"}}

event: content_block_delta
data: {"type":"content_block_delta","index":0,"delta":{"type":"text_delta","text":"[]}"}}

event: content_block_stop
data: {"type":"content_block_stop","index":0}

event: message_delta
data: {"type":"message_delta","delta":{"stop_reason":"end_turn","stop_sequence":null},"usage":{"output_tokens":6}}

event: message_stop
data: {"type":"message_stop"}

`

const openAIStream = `data: {"id":"c1","object":"chat.completion.chunk","created":1,"model":"gpt-4o-mini","choices":[{"index":0,"delta":{"role":"assistant","content":"{\"findings\":"},"finish_reason":null}]}

data: {"id":"c1","object":"chat.completion.chunk","created":1,"model":"gpt-4o-mini","choices":[{"index":0,"delta":{"content":"[]}"},"finish_reason":"stop"}]}

data: [DONE]

`

func TestAnthropicCompleter_Streams(t *testing.T) {
	srv := sseServer(t, http.StatusOK, anthropicStream)
	c := NewAnthropicCompleter(config.Secret("sk-test"), "claude-sonnet-4-5", srv.URL)

	var partials []string
	text, err := c.Complete(context.Background(), Request{System: "sys", Prompt: "diff", MaxTokens: 100}, func(s string) {
		partials = append(partials, s)
	})
	require.NoError(t, err)
	assert.Equal(t, `{"findings":[]}`, text)
	assert.Equal(t, []string{`{"findings":`, `{"findings":[]}`}, partials)
}

func TestAnthropicCompleter_Errors(t *testing.T) {
	t.Run("unauthorized is permanent", func(t *testing.T) {
		srv := sseServer(t, http.StatusUnauthorized, `{"type":"error","error":{"type":"authentication_error","message":"invalid x-api-key"}}`)
		c := NewAnthropicCompleter(config.Secret("bad"), "claude-sonnet-4-5", srv.URL)
		_, err := c.Complete(context.Background(), Request{Prompt: "diff", MaxTokens: 10}, nil)
		require.Error(t, err)
		assert.True(t, errors.Is(err, workflows.ErrPermanent))
	})

	t.Run("server error is transient", func(t *testing.T) {
		srv := sseServer(t, http.StatusInternalServerError, `{"type":"error","error":{"type":"api_error","message":"overloaded"}}`)
		c := NewAnthropicCompleter(config.Secret("sk-test"), "claude-sonnet-4-5", srv.URL)
		_, err := c.Complete(context.Background(), Request{Prompt: "diff", MaxTokens: 10}, nil)
		require.Error(t, err)
		assert.False(t, errors.Is(err, workflows.ErrPermanent))
	})
}

func TestOpenAICompleter_Streams(t *testing.T) {
	srv := sseServer(t, http.StatusOK, openAIStream)
	c := NewOpenAICompleter(config.Secret("sk-test"), "gpt-4o-mini", srv.URL)

	var last string
	text, err := c.Complete(context.Background(), Request{System: "sys", Prompt: "diff", MaxTokens: 100}, func(s string) {
		last = s
	})
	require.NoError(t, err)
	assert.Equal(t, `{"findings":[]}`, text)
	assert.Equal(t, text, last)
}

func TestOpenAICompleter_NotFoundIsPermanent(t *testing.T) {
	srv := sseServer(t, http.StatusNotFound, `{"error":{"message":"model not found","type":"invalid_request_error"}}`)
	c := NewOpenAICompleter(config.Secret("sk-test"), "nope", srv.URL)
	_, err := c.Complete(context.Background(), Request{Prompt: "diff", MaxTokens: 10}, nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, workflows.ErrPermanent))
}

func TestNewCompleter(t *testing.T) {
	cfg := config.Default().Agents

	_, err := NewCompleter(cfg)
	require.Error(t, err, "no key configured")

	cfg.AnthropicAPIKey = config.Secret("sk-ant")
	c, err := NewCompleter(cfg)
	require.NoError(t, err)
	assert.IsType(t, &limitedCompleter{}, c)

	cfg.Provider = config.ProviderOpenAI
	_, err = NewCompleter(cfg)
	require.Error(t, err, "openai key missing")

	cfg.OpenAIAPIKey = config.Secret("sk-oai")
	_, err = NewCompleter(cfg)
	require.NoError(t, err)
}

type countingCompleter struct{ calls int }

func (c *countingCompleter) Complete(context.Context, Request, workflows.PartialFunc) (string, error) {
	c.calls++
	return "ok", nil
}

func TestLimit(t *testing.T) {
	next := &countingCompleter{}
	c := Limit(next, rate.Every(time.Hour), 1)

	_, err := c.Complete(context.Background(), Request{}, nil)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = c.Complete(ctx, Request{}, nil)
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "rate limiter"))
	assert.Equal(t, 1, next.calls)
}
