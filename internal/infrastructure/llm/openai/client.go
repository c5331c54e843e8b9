package openai

import (
	"context"
	"strings"
	"time"

	"github.com/kirillkom/resume-screener/internal/infrastructure/resilience"
)

// Client talks to an OpenAI-compatible chat completions endpoint. The
// request carries the per-call context deadline computed by the orchestrator;
// the transport-level timeout only guards against a hung connection.
type Client struct {
	baseURL    string
	apiKey     string
	model      string
	executor   *resilience.Executor
	httpClient httpDoer
}

type Option func(*Client)

// WithResilience wraps every call in the retry/circuit-breaker executor.
func WithResilience(executor *resilience.Executor) Option {
	return func(c *Client) { c.executor = executor }
}

func New(baseURL, apiKey, model string, options ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		model:      model,
		httpClient: newHTTPClient(10 * time.Minute),
	}
	for _, opt := range options {
		opt(c)
	}
	return c
}

// Complete sends one user prompt and returns the assistant message text.
func (c *Client) Complete(ctx context.Context, prompt string) (string, error) {
	request := chatRequest{
		Model: c.model,
		Messages: []chatMessage{
			{Role: "user", Content: prompt},
		},
	}

	var content string
	call := func(callCtx context.Context) error {
		response, err := c.postChat(callCtx, request)
		if err != nil {
			return err
		}
		content = response
		return nil
	}

	var err error
	if c.executor != nil {
		err = c.executor.Execute(ctx, "openai.chat", call, classifyGeneratorError)
	} else {
		err = call(ctx)
	}
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(content), nil
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error"`
}
