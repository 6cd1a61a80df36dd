package suggest

import (
	"context"
	"log"
	"strings"
)

// Kind selects which vocabulary the typeahead completes.
type Kind string

const (
	KindSymptoms    Kind = "symptoms"
	KindConditions  Kind = "conditions"
	KindAllergies   Kind = "allergies"
	KindMedications Kind = "medications"
)

// ParseKind maps a query-string value to a Kind.
func ParseKind(s string) (Kind, bool) {
	switch Kind(strings.ToLower(strings.TrimSpace(s))) {
	case KindSymptoms:
		return KindSymptoms, true
	case KindConditions:
		return KindConditions, true
	case KindAllergies:
		return KindAllergies, true
	case KindMedications:
		return KindMedications, true
	}
	return "", false
}

// minQueryLen guards the backend against single-character queries fired
// on every keystroke.
const minQueryLen = 2

// DefaultLimit is the suggestion arity handed to the UI.
const DefaultLimit = 5

// Source produces raw completion candidates. Implemented by the analysis
// client.
type Source interface {
	Completions(ctx context.Context, partial, kind string, n int) ([]string, error)
}

type Client struct {
	src   Source
	limit int
}

func NewClient(src Source, limit int) *Client {
	if limit <= 0 {
		limit = DefaultLimit
	}
	return &Client{src: src, limit: limit}
}

// Fetch returns up to limit deduplicated suggestions for a partial input.
// It never returns an error: transport or parse failures resolve to an
// empty slice and a log line, and inputs shorter than two characters
// short-circuit without any network call.
func (c *Client) Fetch(ctx context.Context, partial string, kind Kind) []string {
	partial = strings.TrimSpace(partial)
	if len([]rune(partial)) < minQueryLen {
		return []string{}
	}
	items, err := c.src.Completions(ctx, partial, string(kind), c.limit)
	if err != nil {
		log.Printf("[suggest][warn] fetch failed kind=%s q=%q: %v", kind, partial, err)
		return []string{}
	}
	seen := make(map[string]bool, len(items))
	out := make([]string, 0, c.limit)
	for _, it := range items {
		it = strings.TrimSpace(it)
		if it == "" {
			continue
		}
		key := strings.ToLower(it)
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, it)
		if len(out) == c.limit {
			break
		}
	}
	return out
}
