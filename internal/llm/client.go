// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package llm is the completion interface the extraction and evaluation
// stages call, with an implementation backed by the Anthropic SDK.
package llm

import (
	"context"
	"strings"
	"sync"

	sdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// Request is one completion request.
type Request struct {
	System      string
	User        string
	Temperature float64
	MaxTokens   int
}

// Client completes a single prompt and returns the raw response text.
// Stages parse the text themselves.
type Client interface {
	Complete(ctx context.Context, req Request) (string, error)
}

// Usage tallies token consumption across calls.
type Usage struct {
	Calls        int64
	InputTokens  int64
	OutputTokens int64
}

// AnthropicClient implements Client with the Anthropic Messages API.
type AnthropicClient struct {
	client sdk.Client
	model  string

	mu    sync.Mutex
	usage Usage
}

// NewAnthropic creates a client for model. Extra request options (base URL,
// retries) are passed through to the SDK.
func NewAnthropic(apiKey, model string, opts ...option.RequestOption) *AnthropicClient {
	all := append([]option.RequestOption{option.WithAPIKey(apiKey)}, opts...)
	return &AnthropicClient{
		client: sdk.NewClient(all...),
		model:  model,
	}
}

// Complete sends req as a single user message and concatenates the text
// blocks of the reply.
func (c *AnthropicClient) Complete(ctx context.Context, req Request) (string, error) {
	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 4096
	}

	params := sdk.MessageNewParams{
		Model:       sdk.Model(c.model),
		MaxTokens:   int64(maxTokens),
		Messages:    []sdk.MessageParam{sdk.NewUserMessage(sdk.NewTextBlock(req.User))},
		Temperature: sdk.Float(req.Temperature),
	}
	if req.System != "" {
		params.System = []sdk.TextBlockParam{{Text: req.System}}
	}

	msg, err := c.client.Messages.New(ctx, params)
	if err != nil {
		return "", eris.Wrap(err, "anthropic: create message")
	}

	c.mu.Lock()
	c.usage.Calls++
	c.usage.InputTokens += msg.Usage.InputTokens
	c.usage.OutputTokens += msg.Usage.OutputTokens
	c.mu.Unlock()

	zap.L().Debug("completion",
		zap.String("model", c.model),
		zap.String("stop_reason", string(msg.StopReason)),
		zap.Int64("input_tokens", msg.Usage.InputTokens),
		zap.Int64("output_tokens", msg.Usage.OutputTokens),
	)

	var b strings.Builder
	for _, block := range msg.Content {
		if block.Type == "text" {
			b.WriteString(block.Text)
		}
	}
	return b.String(), nil
}

// Usage returns the token totals accumulated so far.
func (c *AnthropicClient) Usage() Usage {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.usage
}
