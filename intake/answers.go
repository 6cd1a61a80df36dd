package intake

import (
	"sort"
	"strconv"
	"strings"

	"intake-backend/analysis"
)

// Answer is the value collected for one question, tagged by the question
// type so handling a new type cannot be silently forgotten.
type Answer struct {
	Kind      string   `json:"kind"`
	Text      string   `json:"text,omitempty"`      // toggle
	Values    []string `json:"values,omitempty"`    // multi-toggle selection set
	Number    int      `json:"number,omitempty"`    // slider
	Duration  string   `json:"duration,omitempty"`  // frequency part
	Frequency string   `json:"frequency,omitempty"` // frequency part
}

// Answers is keyed by question text, which is required to be unique
// within a round.
type Answers map[string]Answer

// Clone returns a deep copy; snapshots must not alias the live draft.
func (a Answers) Clone() Answers {
	if a == nil {
		return nil
	}
	out := make(Answers, len(a))
	for q, ans := range a {
		ans.Values = append([]string(nil), ans.Values...)
		out[q] = ans
	}
	return out
}

// IsComplete reports whether every question in the round has an answer,
// with frequency questions requiring both sub-fields. Recomputed on every
// mutation so the UI can gate its submit control reactively.
func IsComplete(round *analysis.FollowUpRound, a Answers) bool {
	if round == nil {
		return false
	}
	for _, q := range round.Questions {
		ans, ok := a[q.Question]
		if !ok {
			return false
		}
		if q.Type == analysis.TypeFrequency && (ans.Duration == "" || ans.Frequency == "") {
			return false
		}
	}
	return true
}

// Toggle applies single-select semantics: picking the selected option
// again clears the answer, picking another replaces it.
func (a Answers) Toggle(question, option string) {
	if cur, ok := a[question]; ok && cur.Text == option {
		delete(a, question)
		return
	}
	a[question] = Answer{Kind: analysis.TypeToggle, Text: option}
}

// MultiToggle flips membership of option in the selection set. An empty
// resulting set removes the entry entirely rather than storing an empty
// answer.
func (a Answers) MultiToggle(question, option string) {
	cur := a[question]
	vals := cur.Values
	idx := -1
	for i, v := range vals {
		if v == option {
			idx = i
			break
		}
	}
	if idx >= 0 {
		vals = append(vals[:idx], vals[idx+1:]...)
	} else {
		vals = append(vals, option)
	}
	if len(vals) == 0 {
		delete(a, question)
		return
	}
	a[question] = Answer{Kind: analysis.TypeMultiToggle, Values: vals}
}

// Frequency answer parts.
const (
	PartDuration  = "duration"
	PartFrequency = "frequency"
)

// SetFrequency merges one part of a compound frequency answer, keeping
// the other part if already set.
func (a Answers) SetFrequency(question, part, value string) {
	cur := a[question]
	cur.Kind = analysis.TypeFrequency
	switch part {
	case PartDuration:
		cur.Duration = value
	case PartFrequency:
		cur.Frequency = value
	default:
		return
	}
	a[question] = cur
}

// SetSlider stores the numeric value. Clamping to the question's min/max
// is the caller's responsibility.
func (a Answers) SetSlider(question string, value int) {
	a[question] = Answer{Kind: analysis.TypeSlider, Number: value}
}

// renderValue serializes one answer for the analysis prompt and the
// transcript.
func (ans Answer) renderValue() string {
	switch ans.Kind {
	case analysis.TypeMultiToggle:
		return strings.Join(ans.Values, ", ")
	case analysis.TypeSlider:
		return strconv.Itoa(ans.Number)
	case analysis.TypeFrequency:
		return ans.Duration + ", " + ans.Frequency
	default:
		return ans.Text
	}
}

// renderAnswers serializes a completed round in question order; answers
// for questions outside the round are appended last for visibility.
func renderAnswers(round *analysis.FollowUpRound, a Answers) string {
	var b strings.Builder
	seen := make(map[string]bool)
	if round != nil {
		for _, q := range round.Questions {
			if ans, ok := a[q.Question]; ok {
				b.WriteString(q.Question + ": " + ans.renderValue() + "\n")
				seen[q.Question] = true
			}
		}
	}
	var extra []string
	for q := range a {
		if !seen[q] {
			extra = append(extra, q)
		}
	}
	sort.Strings(extra)
	for _, q := range extra {
		b.WriteString(q + ": " + a[q].renderValue() + "\n")
	}
	return strings.TrimRight(b.String(), "\n")
}
