// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package llm

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type scriptedGenerator struct {
	errs  []error
	calls int
}

func (s *scriptedGenerator) Generate(context.Context, string) (string, error) {
	i := s.calls
	s.calls++
	if i < len(s.errs) && s.errs[i] != nil {
		return "", s.errs[i]
	}
	return "ok", nil
}

func TestWithRetryZeroIsPassthrough(t *testing.T) {
	g := &scriptedGenerator{}
	assert.Same(t, g, WithRetry(g, 0, 0))
}

func TestWithRetryRecoversTransient(t *testing.T) {
	g := &scriptedGenerator{errs: []error{errors.New("429 Too Many Requests"), ErrEmptyResponse}}
	out, err := WithRetry(g, 2, 0).Generate(context.Background(), "p")
	require.NoError(t, err)
	assert.Equal(t, "ok", out)
	assert.Equal(t, 3, g.calls)
}

func TestWithRetryStopsOnPermanent(t *testing.T) {
	g := &scriptedGenerator{errs: []error{errors.New("invalid argument")}}
	_, err := WithRetry(g, 3, 0).Generate(context.Background(), "p")
	require.Error(t, err)
	assert.Equal(t, 1, g.calls)
	assert.Contains(t, err.Error(), "invalid argument")
}

func TestWithRetryExhausts(t *testing.T) {
	g := &scriptedGenerator{errs: []error{
		errors.New("service unavailable"),
		errors.New("service unavailable"),
	}}
	_, err := WithRetry(g, 1, 0).Generate(context.Background(), "p")
	require.Error(t, err)
	assert.Equal(t, 2, g.calls)
}

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{name: "nil", err: nil, want: false},
		{name: "canceled", err: fmt.Errorf("wrapped: %w", context.Canceled), want: false},
		{name: "deadline", err: context.DeadlineExceeded, want: false},
		{name: "empty response", err: ErrEmptyResponse, want: true},
		{name: "openai 429", err: &openai.APIError{HTTPStatusCode: 429}, want: true},
		{name: "openai 503", err: &openai.APIError{HTTPStatusCode: 503}, want: true},
		{name: "openai 400", err: &openai.APIError{HTTPStatusCode: 400}, want: false},
		{name: "openai request 502", err: &openai.RequestError{HTTPStatusCode: 502, Err: errors.New("bad gateway")}, want: true},
		{name: "message pattern", err: errors.New("RESOURCE EXHAUSTED: quota"), want: true},
		{name: "plain", err: errors.New("malformed prompt"), want: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsRetryable(tt.err))
		})
	}
}
