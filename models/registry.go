package models

import (
	"fmt"
	"sort"
)

// Config holds the request limits and pricing for one supported model.
// Prices are USD per 1k tokens (prompt+completion combined, same as the
// mobile app's cost display).
type Config struct {
	MaxTokens       int     `json:"max_tokens"`
	Temperature     float32 `json:"temperature"`
	CostPer1kTokens float64 `json:"cost_per_1k_tokens"`
	ContextWindow   int     `json:"context_window"`
}

// UnknownModelError indicates a model id that is not in the registry.
// This is a configuration bug; callers must not substitute a default
// because a silent wrong price would corrupt cost accounting.
type UnknownModelError struct {
	ID string
}

func (e *UnknownModelError) Error() string {
	return fmt.Sprintf("unknown model %q", e.ID)
}

// registry is the static table of supported models. Keep entries in sync
// with what the analysis prompts were tuned against.
var registry = map[string]Config{
	"gpt-4o": {
		MaxTokens:       2048,
		Temperature:     0.7,
		CostPer1kTokens: 0.0125,
		ContextWindow:   128000,
	},
	"gpt-4o-mini": {
		MaxTokens:       1024,
		Temperature:     0.7,
		CostPer1kTokens: 0.000375,
		ContextWindow:   128000,
	},
	"gpt-4-turbo": {
		MaxTokens:       2048,
		Temperature:     0.7,
		CostPer1kTokens: 0.02,
		ContextWindow:   128000,
	},
	"gpt-3.5-turbo": {
		MaxTokens:       1024,
		Temperature:     0.8,
		CostPer1kTokens: 0.001,
		ContextWindow:   16385,
	},
}

// DefaultModel is used when INTAKE_MODEL is not set.
const DefaultModel = "gpt-4o-mini"

// Get returns the configuration for a model id.
func Get(id string) (Config, error) {
	cfg, ok := registry[id]
	if !ok {
		return Config{}, &UnknownModelError{ID: id}
	}
	return cfg, nil
}

// List returns the supported model ids in stable order.
func List() []string {
	ids := make([]string, 0, len(registry))
	for id := range registry {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
