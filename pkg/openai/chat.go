package openai

import (
	"context"
	"fmt"

	"github.com/ruthiel/longevity-ai-app/engine/domain"
	"github.com/ruthiel/longevity-ai-app/pkg/fn"
	"github.com/ruthiel/longevity-ai-app/pkg/resilience"
)

// ChatOpts tunes the chat completion client.
type ChatOpts struct {
	Model       string
	Temperature float64
	MaxTokens   int
	Retry       fn.RetryOpts
}

// DefaultChatOpts matches the production answering settings.
func DefaultChatOpts() ChatOpts {
	return ChatOpts{
		Model:       "gpt-4o-mini",
		Temperature: 0.7,
		MaxTokens:   1000,
		Retry:       fn.DefaultRetry,
	}
}

// Generator produces chat completions, with a circuit breaker guarding the
// upstream API.
type Generator struct {
	client  *Client
	opts    ChatOpts
	breaker *resilience.Breaker
}

// NewGenerator creates a Generator. A nil breaker disables circuit breaking.
func NewGenerator(client *Client, opts ChatOpts, breaker *resilience.Breaker) *Generator {
	if breaker == nil {
		breaker = resilience.NewBreaker(resilience.DefaultBreakerOpts)
	}
	return &Generator{client: client, opts: opts, breaker: breaker}
}

// Model reports the configured chat model name.
func (g *Generator) Model() string { return g.opts.Model }

// chatMessage is the wire form of one chat turn.
type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
}

type chatResponse struct {
	Choices []struct {
		Message      chatMessage `json:"message"`
		FinishReason string      `json:"finish_reason"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
		TotalTokens      int `json:"total_tokens"`
	} `json:"usage"`
}

// Generate sends a single-user-message completion for the assembled prompt
// and returns the model's text. Transient failures are retried; repeated
// failures trip the breaker and fail fast until the upstream recovers.
func (g *Generator) Generate(ctx context.Context, prompt string) (string, error) {
	return g.GenerateMessages(ctx, []domain.ChatMessage{{Role: domain.RoleUser, Content: prompt}})
}

// GenerateMessages sends a multi-turn conversation and returns the model's
// reply. Callers build the turns with domain.ChatMessage.
func (g *Generator) GenerateMessages(ctx context.Context, messages []domain.ChatMessage) (string, error) {
	wire := make([]chatMessage, len(messages))
	for i, m := range messages {
		wire[i] = chatMessage{Role: string(m.Role), Content: m.Content}
	}
	res := resilience.CallResult(g.breaker, ctx, func(ctx context.Context) fn.Result[string] {
		return fn.Retry(ctx, g.opts.Retry, func(ctx context.Context) fn.Result[string] {
			return fn.FromPair(g.complete(ctx, wire))
		})
	})
	return res.Unwrap()
}

func (g *Generator) complete(ctx context.Context, messages []chatMessage) (string, error) {
	var resp chatResponse
	err := g.client.post(ctx, "/chat/completions", chatRequest{
		Model:       g.opts.Model,
		Messages:    messages,
		Temperature: g.opts.Temperature,
		MaxTokens:   g.opts.MaxTokens,
	}, &resp)
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("chat: response has no choices")
	}

	g.client.logger.Debug("openai: completion",
		"model", g.opts.Model,
		"prompt_tokens", resp.Usage.PromptTokens,
		"completion_tokens", resp.Usage.CompletionTokens,
		"finish_reason", resp.Choices[0].FinishReason)
	return resp.Choices[0].Message.Content, nil
}

// HealthCheck reports whether the API answers a minimal completion request.
func (g *Generator) HealthCheck(ctx context.Context) bool {
	var resp chatResponse
	err := g.client.post(ctx, "/chat/completions", chatRequest{
		Model:     g.opts.Model,
		Messages:  []chatMessage{{Role: "user", Content: "ping"}},
		MaxTokens: 1,
	}, &resp)
	return err == nil
}
