package openai

import (
	"context"
	"errors"
	"os"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"intake-backend/cost"
)

// Message is one chat turn sent to the AI backend.
type Message struct {
	Role    string
	Content string
}

const (
	RoleSystem    = openai.ChatMessageRoleSystem
	RoleUser      = openai.ChatMessageRoleUser
	RoleAssistant = openai.ChatMessageRoleAssistant
)

// Options parameterize a single completion request. Zero values mean
// "use the client defaults" (callers fill them from the model registry).
type Options struct {
	Model        string
	MaxTokens    int
	Temperature  float32
	JSONResponse bool
}

type Client struct {
	api   *openai.Client
	model string
}

// NewClient builds the client from env. OPENAI_BASE_URL allows pointing at a
// local stub during tests.
func NewClient() *Client {
	key := sanitizeEnv(os.Getenv("OPENAI_API_KEY"))
	model := sanitizeEnv(os.Getenv("INTAKE_MODEL"))
	cfg := openai.DefaultConfig(key)
	if base := sanitizeEnv(os.Getenv("OPENAI_BASE_URL")); base != "" {
		cfg.BaseURL = base
	}
	return &Client{api: openai.NewClientWithConfig(cfg), model: model}
}

// Model returns the configured default model id (may be empty).
func (c *Client) Model() string { return c.model }

// Complete sends a non-streaming chat completion and returns the raw
// assistant text plus the usage block reported by the backend.
func (c *Client) Complete(ctx context.Context, msgs []Message, opts Options) (string, cost.Usage, error) {
	if c.api == nil {
		return "", cost.Usage{}, errors.New("openai client not initialized")
	}
	model := opts.Model
	if model == "" {
		model = c.model
	}
	oaMsgs := make([]openai.ChatCompletionMessage, 0, len(msgs))
	for _, m := range msgs {
		role := m.Role
		if role != RoleSystem && role != RoleUser && role != RoleAssistant {
			role = RoleUser
		}
		oaMsgs = append(oaMsgs, openai.ChatCompletionMessage{Role: role, Content: m.Content})
	}
	req := openai.ChatCompletionRequest{
		Model:       model,
		Messages:    oaMsgs,
		MaxTokens:   opts.MaxTokens,
		Temperature: opts.Temperature,
	}
	if opts.JSONResponse {
		req.ResponseFormat = &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		}
	}
	resp, err := c.api.CreateChatCompletion(ctx, req)
	if err != nil {
		return "", cost.Usage{}, err
	}
	usage := cost.Usage{
		PromptTokens:     resp.Usage.PromptTokens,
		CompletionTokens: resp.Usage.CompletionTokens,
	}
	if len(resp.Choices) == 0 {
		return "", usage, nil
	}
	return resp.Choices[0].Message.Content, usage, nil
}

// sanitizeEnv trims whitespace and strips matching surrounding quotes that
// sometimes leak into .env values copied from dashboards.
func sanitizeEnv(v string) string {
	v = strings.TrimSpace(v)
	if len(v) >= 2 {
		if (strings.HasPrefix(v, `"`) && strings.HasSuffix(v, `"`)) ||
			(strings.HasPrefix(v, `'`) && strings.HasSuffix(v, `'`)) {
			return v[1 : len(v)-1]
		}
	}
	return v
}
