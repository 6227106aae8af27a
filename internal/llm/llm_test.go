package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCleanJSONResponse(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"plain JSON unchanged", `{"a":1}`, `{"a":1}`},
		{"strips json fenced block", "```json\n{\"a\":1}\n```", `{"a":1}`},
		{"strips plain fenced block", "```\n{\"a\":1}\n```", `{"a":1}`},
		{"drops surrounding prose", "Here you go: {\"a\":1} hope it helps", `{"a":1}`},
		{"keeps arrays", "```json\n[{\"a\":1},{\"a\":2}]\n```", `[{"a":1},{"a":2}]`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, cleanJSONResponse(tt.input))
		})
	}
}

func TestDecodeJSON(t *testing.T) {
	var out struct {
		Score float64 `json:"score"`
	}
	require.NoError(t, DecodeJSON("```json\n{\"score\": 0.9}\n```", &out))
	assert.Equal(t, 0.9, out.Score)

	assert.ErrorIs(t, DecodeJSON("   ", &out), ErrEmptyResponse)
	assert.Error(t, DecodeJSON("not json at all", &out))
}

func TestStatusErrorClassification(t *testing.T) {
	base := errors.New("boom")
	assert.ErrorIs(t, statusError("gemini", http.StatusServiceUnavailable, base), ErrUnavailable)
	assert.ErrorIs(t, statusError("anthropic", 529, base), ErrUnavailable)
	assert.ErrorIs(t, statusError("openai", http.StatusTooManyRequests, base), ErrRateLimited)
	assert.ErrorIs(t, statusError("openai", http.StatusNotFound, base), ErrModelNotFound)

	plain := statusError("openai", http.StatusBadRequest, base)
	assert.ErrorIs(t, plain, base)
	assert.NotErrorIs(t, plain, ErrUnavailable)
}

func TestUserMessage(t *testing.T) {
	assert.Equal(t, "", UserMessage(nil))
	assert.True(t, strings.HasPrefix(UserMessage(fmt.Errorf("x: %w", ErrUnavailable)), "API Temporarily Unavailable"))
	assert.True(t, strings.HasPrefix(UserMessage(ErrCircuitOpen), "API Temporarily Unavailable"))
	assert.True(t, strings.HasPrefix(UserMessage(ErrRateLimited), "Rate Limit Exceeded"))
	assert.True(t, strings.HasPrefix(UserMessage(ErrModelNotFound), "Model Not Found"))
	assert.Equal(t, "Error: something else", UserMessage(errors.New("something else")))
}

func TestCircuitBreaker_OpensAfterThreshold(t *testing.T) {
	cb := NewCircuitBreaker(2, time.Minute)
	fail := func() error { return errors.New("down") }

	assert.Error(t, cb.Call(fail))
	assert.Equal(t, StateClosed, cb.State())
	assert.Error(t, cb.Call(fail))
	assert.Equal(t, StateOpen, cb.State())

	called := false
	err := cb.Call(func() error { called = true; return nil })
	assert.ErrorIs(t, err, ErrCircuitOpen)
	assert.False(t, called, "open circuit must not call through")
}

func TestCircuitBreaker_HalfOpenRecovers(t *testing.T) {
	cb := NewCircuitBreaker(1, time.Minute)
	now := time.Now()
	cb.now = func() time.Time { return now }

	require.Error(t, cb.Call(func() error { return errors.New("down") }))
	require.Equal(t, StateOpen, cb.State())

	now = now.Add(2 * time.Minute)
	require.NoError(t, cb.Call(func() error { return nil }))
	assert.Equal(t, StateHalfOpen, cb.State())
	require.NoError(t, cb.Call(func() error { return nil }))
	assert.Equal(t, StateClosed, cb.State())
}

func TestCircuitBreaker_IgnoresCancellation(t *testing.T) {
	cb := NewCircuitBreaker(1, time.Minute)
	_ = cb.Call(func() error { return context.Canceled })
	assert.Equal(t, StateClosed, cb.State())
}

func TestFallbackClient_UsesFallbackOnOverload(t *testing.T) {
	var models []string
	primary := ClientFunc(func(ctx context.Context, p Prompt) (string, error) {
		models = append(models, p.Model)
		if p.Model == "" {
			return "", fmt.Errorf("gemini: %w", ErrUnavailable)
		}
		return "ok from " + p.Model, nil
	})

	out, err := NewFallbackClient(primary, "lite").Generate(context.Background(), Prompt{User: "hi"})
	require.NoError(t, err)
	assert.Equal(t, "ok from lite", out)
	assert.Equal(t, []string{"", "lite"}, models)
}

func TestFallbackClient_PassesThroughOtherErrors(t *testing.T) {
	calls := 0
	primary := ClientFunc(func(ctx context.Context, p Prompt) (string, error) {
		calls++
		return "", ErrRateLimited
	})
	_, err := NewFallbackClient(primary, "lite").Generate(context.Background(), Prompt{User: "hi"})
	assert.ErrorIs(t, err, ErrRateLimited)
	assert.Equal(t, 1, calls)
}

func TestBreakerClient(t *testing.T) {
	cb := NewCircuitBreaker(1, time.Minute)
	c := NewBreakerClient(ClientFunc(func(ctx context.Context, p Prompt) (string, error) {
		return "", ErrUnavailable
	}), cb)

	_, err := c.Generate(context.Background(), Prompt{})
	assert.ErrorIs(t, err, ErrUnavailable)
	_, err = c.Generate(context.Background(), Prompt{})
	assert.ErrorIs(t, err, ErrCircuitOpen)
}

func TestClassify(t *testing.T) {
	assert.Nil(t, Classify(nil))
	assert.Nil(t, Classify(errors.New("plain")))
	assert.Equal(t, ErrRateLimited, Classify(statusError("openai", http.StatusTooManyRequests, errors.New("x"))))
	assert.Equal(t, ErrCircuitOpen, Classify(fmt.Errorf("call: %w", ErrCircuitOpen)))
}
