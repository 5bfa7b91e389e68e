package openai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"newslens/internal/domain"
)

type chatRequest struct {
	Model    string `json:"model"`
	Messages []struct {
		Role    string `json:"role"`
		Content string `json:"content"`
	} `json:"messages"`
	MaxTokens   int     `json:"max_tokens"`
	Temperature float32 `json:"temperature"`
}

func fakeChat(t *testing.T, reply string, got *chatRequest) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.NoError(t, json.NewDecoder(r.Body).Decode(got))

		choices := []map[string]any{}
		if reply != "" {
			choices = append(choices, map[string]any{
				"index":         0,
				"finish_reason": "stop",
				"message":       map[string]any{"role": "assistant", "content": reply},
			})
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"id":      "chatcmpl-1",
			"object":  "chat.completion",
			"model":   got.Model,
			"choices": choices,
			"usage":   map[string]any{"prompt_tokens": 12, "completion_tokens": 5, "total_tokens": 17},
		})
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestNewCompleter_RequiresKey(t *testing.T) {
	_, err := NewCompleter(Config{}, nil)
	assert.ErrorIs(t, err, domain.ErrConfig)
	assert.ErrorIs(t, err, ErrNoAPIKey)
}

func TestCompleter_Complete(t *testing.T) {
	var req chatRequest
	srv := fakeChat(t, "Event X occurred in Paris.\nSOURCES: https://a.example/article1", &req)
	c, err := NewCompleter(Config{APIKey: "sk-test", BaseURL: srv.URL}, nil)
	require.NoError(t, err)

	out, err := c.Complete(context.Background(), "QUESTION: where?", 500, 0.9)
	require.NoError(t, err)
	assert.Equal(t, "Event X occurred in Paris.\nSOURCES: https://a.example/article1", out)

	assert.Equal(t, DefaultModel, req.Model)
	require.Len(t, req.Messages, 1)
	assert.Equal(t, "user", req.Messages[0].Role)
	assert.Equal(t, "QUESTION: where?", req.Messages[0].Content)
	assert.Equal(t, 500, req.MaxTokens)
	assert.InDelta(t, 0.9, req.Temperature, 1e-6)
}

func TestCompleter_NoChoices(t *testing.T) {
	var req chatRequest
	srv := fakeChat(t, "", &req)
	c, err := NewCompleter(Config{APIKey: "sk-test", BaseURL: srv.URL, Model: "gpt-test"}, nil)
	require.NoError(t, err)

	out, err := c.Complete(context.Background(), "p", 10, 0)
	require.NoError(t, err)
	assert.Empty(t, out)
	assert.Equal(t, "gpt-test", req.Model)
	assert.Greater(t, req.Temperature, float32(0))
}

func TestCompleter_APIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"error":{"message":"rate limited","type":"requests"}}`))
	}))
	t.Cleanup(srv.Close)
	c, err := NewCompleter(Config{APIKey: "sk-test", BaseURL: srv.URL}, nil)
	require.NoError(t, err)

	_, err = c.Complete(context.Background(), "p", 10, 0.5)
	assert.Error(t, err)
}
