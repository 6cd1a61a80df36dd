package analysis

import "encoding/json"

// Question types the mobile client knows how to render.
const (
	TypeToggle      = "toggle"
	TypeMultiToggle = "multi-toggle"
	TypeFrequency   = "frequency"
	TypeSlider      = "slider"
)

// FrequencySpec lists the selectable duration and frequency choices for a
// compound frequency question.
type FrequencySpec struct {
	Duration  []string `json:"duration"`
	Frequency []string `json:"frequency"`
}

// Question is one follow-up question inside a round. Options is required
// for toggle/multi-toggle, Min/Max for slider (defaulted 1/10), Frequency
// for frequency questions.
type Question struct {
	Question  string         `json:"question"`
	Type      string         `json:"type"`
	Options   []string       `json:"options,omitempty"`
	Min       int            `json:"min,omitempty"`
	Max       int            `json:"max,omitempty"`
	Frequency *FrequencySpec `json:"frequency,omitempty"`
}

// FollowUpRound is one batch of questions answered together. Immutable
// once received.
type FollowUpRound struct {
	Round     int        `json:"round"`
	Questions []Question `json:"questions"`
}

// turn is the JSON shape the analysis prompt asks the model for.
type turn struct {
	Message  string          `json:"message"`
	Messages []string        `json:"messages"`
	FollowUp json.RawMessage `json:"follow_up"`
}

// validQuestion reports whether a parsed question is renderable, repairing
// slider bounds in place.
func validQuestion(q *Question) bool {
	if q.Question == "" {
		return false
	}
	switch q.Type {
	case TypeToggle, TypeMultiToggle:
		return len(q.Options) > 0
	case TypeSlider:
		if q.Min == 0 && q.Max == 0 {
			q.Min, q.Max = 1, 10
		}
		return q.Min < q.Max
	case TypeFrequency:
		return q.Frequency != nil && len(q.Frequency.Duration) > 0 && len(q.Frequency.Frequency) > 0
	}
	return false
}

// sanitizeRound drops malformed and duplicate questions and returns nil
// when nothing renderable is left. Question text is the join key between
// questions and answers, so it must stay unique within the round.
func sanitizeRound(r *FollowUpRound) *FollowUpRound {
	if r == nil || r.Round < 1 {
		return nil
	}
	seen := make(map[string]bool, len(r.Questions))
	kept := r.Questions[:0]
	for i := range r.Questions {
		q := r.Questions[i]
		if !validQuestion(&q) || seen[q.Question] {
			continue
		}
		seen[q.Question] = true
		kept = append(kept, q)
	}
	r.Questions = kept
	if len(r.Questions) == 0 {
		return nil
	}
	return r
}
