package cost

import (
	"intake-backend/models"
)

// Usage mirrors the token usage block the AI backend reports per request.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
}

// TotalTokens returns prompt + completion.
func (u Usage) TotalTokens() int {
	return u.PromptTokens + u.CompletionTokens
}

// Estimate computes the estimated USD cost of one completed request.
// Purely informational: the result is attached to the analysis record
// and the usage counters, it never affects control flow.
func Estimate(u Usage, modelID string) (float64, error) {
	cfg, err := models.Get(modelID)
	if err != nil {
		return 0, err
	}
	return float64(u.TotalTokens()) / 1000.0 * cfg.CostPer1kTokens, nil
}
