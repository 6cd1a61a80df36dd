package intake

import (
	"fmt"
	"strings"
	"time"

	"intake-backend/analysis"
)

// Frequency is how often a symptom occurs, as reported by the user.
type Frequency string

const (
	FreqNever     Frequency = "Never"
	FreqRarely    Frequency = "Rarely"
	FreqSometimes Frequency = "Sometimes"
	FreqOften     Frequency = "Often"
	FreqAlways    Frequency = "Always"
)

// ParseFrequency accepts the enum values case-insensitively.
func ParseFrequency(s string) (Frequency, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "never":
		return FreqNever, true
	case "rarely":
		return FreqRarely, true
	case "sometimes":
		return FreqSometimes, true
	case "often":
		return FreqOften, true
	case "always":
		return FreqAlways, true
	}
	return "", false
}

// Symptom is a single named complaint. Severity and Frequency may be
// mutated in place; symptoms are never deleted mid-session.
type Symptom struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Severity  int       `json:"severity"` // 0..10
	Frequency Frequency `json:"frequency"`
	BodyPart  string    `json:"body_part,omitempty"`
}

// render produces the canonical one-line form used in the analysis prompt
// and the transcript.
func (s Symptom) render() string {
	line := fmt.Sprintf("%s (Severity: %d/10, Frequency: %s", s.Name, s.Severity, s.Frequency)
	if s.BodyPart != "" {
		line += ", Location: " + s.BodyPart
	}
	return line + ")"
}

// Message roles in the transcript.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is one transcript entry. The transcript is append-only and
// insertion order is the only ordering guarantee.
type Message struct {
	ID              string   `json:"id"`
	Role            string   `json:"role"`
	Content         string   `json:"content"`
	Timestamp       int64    `json:"timestamp"` // epoch millis
	FollowUpOptions []string `json:"follow_up_options,omitempty"`
}

// State of one intake session.
type State string

const (
	StateIdle            State = "idle"
	StateAnalyzing       State = "analyzing"
	StateAwaitingAnswers State = "awaiting_round_answers"
	StateCompleted       State = "completed"
)

func nowMillis() int64 {
	return time.Now().UnixMilli()
}

// Snapshot is the read model handed to the UI layer.
type Snapshot struct {
	SessionID    string                  `json:"session_id"`
	State        State                   `json:"state"`
	Symptoms     []Symptom               `json:"symptoms"`
	Messages     []Message               `json:"messages"`
	Suggestions  []string                `json:"suggestions"`
	IsAnalyzing  bool                    `json:"is_analyzing"`
	CurrentRound int                     `json:"current_round"`
	ActiveRound  *analysis.FollowUpRound `json:"active_round,omitempty"`
	Answers      Answers                 `json:"answers,omitempty"`
	Submittable  bool                    `json:"submittable"`
	ShowCTAs     bool                    `json:"show_ctas"`
}
