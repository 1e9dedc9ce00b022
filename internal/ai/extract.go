package ai

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
)

// ParseError reports model output that yielded no parseable JSON. Raw
// carries the (truncated) response text for diagnostics.
type ParseError struct {
	Raw string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("model returned no parseable JSON: %s", e.Raw)
}

var fencePattern = regexp.MustCompile("(?s)```(?:json)?\\s*(.*?)```")

const rawTruncateLen = 500

// ExtractJSON pulls a JSON value out of model output. Models wrap their
// answers unpredictably, so extraction tries, in order: the contents of a
// markdown code fence, then the first balanced object or array embedded in
// the text, then fails with the raw text attached.
func ExtractJSON(raw string) (json.RawMessage, error) {
	candidates := []string{}
	if m := fencePattern.FindStringSubmatch(raw); m != nil {
		candidates = append(candidates, m[1])
	}
	candidates = append(candidates, raw)

	for _, candidate := range candidates {
		trimmed := strings.TrimSpace(candidate)
		if trimmed == "" {
			continue
		}
		if json.Valid([]byte(trimmed)) {
			return json.RawMessage(trimmed), nil
		}
		if sub := balancedValue(trimmed); sub != "" && json.Valid([]byte(sub)) {
			return json.RawMessage(sub), nil
		}
	}

	truncated := raw
	if len(truncated) > rawTruncateLen {
		truncated = truncated[:rawTruncateLen]
	}
	return nil, &ParseError{Raw: truncated}
}

// balancedValue returns the first balanced {...} or [...] substring,
// tracking string literals so braces inside them do not count.
func balancedValue(s string) string {
	start := strings.IndexAny(s, "{[")
	if start < 0 {
		return ""
	}

	open := s[start]
	var close byte = '}'
	if open == '[' {
		close = ']'
	}

	depth := 0
	inString := false
	escaped := false

	for i := start; i < len(s); i++ {
		ch := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case ch == '\\':
				escaped = true
			case ch == '"':
				inString = false
			}
			continue
		}
		switch ch {
		case '"':
			inString = true
		case open:
			depth++
		case close:
			depth--
			if depth == 0 {
				return s[start : i+1]
			}
		}
	}
	return ""
}
