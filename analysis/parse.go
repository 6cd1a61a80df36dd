package analysis

import (
	"encoding/json"
	"regexp"
	"strings"
)

var jsonRe = regexp.MustCompile(`(?s)\{.*\}`)

// extractJSON pulls the first {...} block out of a model reply that may be
// wrapped in prose or markdown fences.
func extractJSON(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "{") && strings.HasSuffix(s, "}") {
		return s
	}
	if m := jsonRe.FindString(s); m != "" {
		return m
	}
	return "{}"
}

var bulletRe = regexp.MustCompile(`^\s*(?:[-*•●–]|\d+[.)])\s*`)

// stripMarker removes a leading bullet or numbering marker from one line.
func stripMarker(s string) string {
	return strings.TrimSpace(bulletRe.ReplaceAllString(s, ""))
}

// ParseList turns an untrusted model reply into exactly n short strings.
// The backend is asked for JSON but only best-effort delivers it, so we
// try, in order:
//
//  1. a JSON array of strings
//  2. a JSON object carrying a "suggestions" or "questions" array
//  3. line/comma splitting with bullet and numbering markers stripped
//
// The result is truncated or padded with empty strings to length n so
// callers can rely on fixed-arity indexing.
func ParseList(raw string, n int) []string {
	items := parseListItems(raw)
	out := make([]string, 0, n)
	for _, it := range items {
		it = strings.TrimSpace(it)
		if it == "" {
			continue
		}
		out = append(out, it)
		if len(out) == n {
			break
		}
	}
	for len(out) < n {
		out = append(out, "")
	}
	return out
}

func parseListItems(raw string) []string {
	trimmed := strings.TrimSpace(raw)
	trimmed = strings.TrimPrefix(trimmed, "```json")
	trimmed = strings.TrimPrefix(trimmed, "```")
	trimmed = strings.TrimSuffix(trimmed, "```")
	trimmed = strings.TrimSpace(trimmed)

	var arr []string
	if err := json.Unmarshal([]byte(trimmed), &arr); err == nil {
		return arr
	}

	var obj map[string]json.RawMessage
	if err := json.Unmarshal([]byte(trimmed), &obj); err == nil {
		for _, key := range []string{"suggestions", "questions", "items"} {
			if rawArr, ok := obj[key]; ok {
				if err := json.Unmarshal(rawArr, &arr); err == nil {
					return arr
				}
			}
		}
	}

	// Plain text fallback: one item per line, or comma separated on a
	// single line.
	var items []string
	lines := strings.Split(trimmed, "\n")
	if len(lines) == 1 {
		lines = strings.Split(trimmed, ",")
	}
	for _, line := range lines {
		if it := stripMarker(line); it != "" {
			items = append(items, it)
		}
	}
	return items
}
