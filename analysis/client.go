package analysis

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"

	"intake-backend/cost"
	"intake-backend/models"
	"intake-backend/openai"
)

// Completer is the subset of the openai client this package needs.
// Defined on the consumer side so tests can swap in a mock.
type Completer interface {
	Complete(ctx context.Context, msgs []openai.Message, opts openai.Options) (string, cost.Usage, error)
}

// Recorder receives usage metadata after every completed backend call.
// Wired to the stats package; purely observational.
type Recorder interface {
	Record(model string, usage cost.Usage, costUSD float64)
}

// Error wraps a failed backend call. Callers treat it as non-fatal: the
// session keeps its pre-call state so the user can retry.
type Error struct {
	Op  string
	Err error
}

func (e *Error) Error() string {
	return fmt.Sprintf("analysis %s: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// CallOptions override the registry defaults for one request.
type CallOptions struct {
	MaxTokens   int
	Temperature *float32
}

// Result is one completed analysis turn.
type Result struct {
	Messages []string
	FollowUp *FollowUpRound
	Usage    cost.Usage
	CostUSD  float64
}

// Client talks to the AI backend for symptom analysis and follow-up
// question generation.
type Client struct {
	ai       Completer
	modelID  string
	cfg      models.Config
	recorder Recorder
}

// NewClient validates the model id against the registry up front; an
// unknown model is a configuration bug, not a runtime condition.
func NewClient(ai Completer, modelID string) (*Client, error) {
	cfg, err := models.Get(modelID)
	if err != nil {
		return nil, err
	}
	return &Client{ai: ai, modelID: modelID, cfg: cfg}, nil
}

// SetRecorder attaches a usage recorder. Optional.
func (c *Client) SetRecorder(r Recorder) { c.recorder = r }

// Model returns the configured model id.
func (c *Client) Model() string { return c.modelID }

func (c *Client) options(jsonResp bool, over *CallOptions) openai.Options {
	opts := openai.Options{
		Model:        c.modelID,
		MaxTokens:    c.cfg.MaxTokens,
		Temperature:  c.cfg.Temperature,
		JSONResponse: jsonResp,
	}
	if over != nil {
		if over.MaxTokens > 0 {
			opts.MaxTokens = over.MaxTokens
		}
		if over.Temperature != nil {
			opts.Temperature = *over.Temperature
		}
	}
	return opts
}

func (c *Client) record(usage cost.Usage) float64 {
	usd, err := cost.Estimate(usage, c.modelID)
	if err != nil {
		// Registry is validated in NewClient; only reachable if the
		// registry shrinks at runtime, which it cannot.
		log.Printf("[analysis][warn] cost estimate failed model=%s: %v", c.modelID, err)
		return 0
	}
	if c.recorder != nil {
		c.recorder.Record(c.modelID, usage, usd)
	}
	return usd
}

// Analyze sends the consolidated symptom summary and returns the
// assistant text plus an optional follow-up round. The response is
// expected to be JSON but parsed defensively; a completely unstructured
// reply degrades to a plain assistant message with no round.
func (c *Client) Analyze(ctx context.Context, symptomSummary string, round int, over *CallOptions) (*Result, error) {
	msgs := []openai.Message{
		{Role: openai.RoleSystem, Content: analyzeSystemPrompt},
		{Role: openai.RoleUser, Content: fmt.Sprintf("Round %d. Patient reports: %s", round, symptomSummary)},
	}
	raw, usage, err := c.ai.Complete(ctx, msgs, c.options(true, over))
	if err != nil {
		return nil, &Error{Op: "analyze", Err: err}
	}
	res := &Result{Usage: usage}
	res.CostUSD = c.record(usage)

	var t turn
	if err := json.Unmarshal([]byte(extractJSON(raw)), &t); err == nil {
		if t.Message != "" {
			res.Messages = append(res.Messages, t.Message)
		}
		for _, m := range t.Messages {
			if strings.TrimSpace(m) != "" {
				res.Messages = append(res.Messages, m)
			}
		}
		if len(t.FollowUp) > 0 && string(t.FollowUp) != "null" {
			var r FollowUpRound
			if err := json.Unmarshal(t.FollowUp, &r); err == nil {
				res.FollowUp = sanitizeRound(&r)
			} else {
				log.Printf("[analysis][warn] follow_up block unparseable, dropping: %v", err)
			}
		}
	}
	if len(res.Messages) == 0 {
		// Model ignored the JSON contract; surface its text as-is.
		if txt := strings.TrimSpace(raw); txt != "" {
			res.Messages = []string{txt}
		}
	}
	return res, nil
}

// FollowUpQuestions is the lighter-weight variant: plain question strings
// derived from a prior analysis text, always exactly n of them.
func (c *Client) FollowUpQuestions(ctx context.Context, priorAnalysis string, n int, over *CallOptions) ([]string, error) {
	msgs := []openai.Message{
		{Role: openai.RoleSystem, Content: followUpSystemPrompt},
		{Role: openai.RoleUser, Content: fmt.Sprintf("Prior analysis:\n%s\n\nReturn %d follow-up questions.", priorAnalysis, n)},
	}
	raw, usage, err := c.ai.Complete(ctx, msgs, c.options(false, over))
	if err != nil {
		return nil, &Error{Op: "follow-up", Err: err}
	}
	c.record(usage)
	return ParseList(raw, n), nil
}

// Completions generates typeahead candidates of the given kind for a
// partial term. Consumed by the suggestion client.
func (c *Client) Completions(ctx context.Context, partial, kind string, n int) ([]string, error) {
	msgs := []openai.Message{
		{Role: openai.RoleSystem, Content: suggestSystemPrompt},
		{Role: openai.RoleUser, Content: fmt.Sprintf("Kind: %s. Partial input: %q. Return %d completions.", kind, partial, n)},
	}
	// Suggestions are short; cap tokens low regardless of model default.
	opts := c.options(false, &CallOptions{MaxTokens: 128})
	raw, usage, err := c.ai.Complete(ctx, msgs, opts)
	if err != nil {
		return nil, &Error{Op: "completions", Err: err}
	}
	c.record(usage)
	return ParseList(raw, n), nil
}
