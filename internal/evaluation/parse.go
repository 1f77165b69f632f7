package evaluation

import (
	"encoding/json"
	"errors"
	"strings"
)

var errNoJSON = errors.New("evaluation: response contained no JSON object")

// extractJSON pulls the first well-formed JSON object out of an LLM
// response. Models often wrap the payload in prose or a fenced code block.
func extractJSON(text string, v any) error {
	raw := strings.TrimSpace(text)
	raw = strings.TrimPrefix(raw, "```json")
	raw = strings.TrimPrefix(raw, "```")
	raw = strings.TrimSuffix(raw, "```")
	raw = strings.TrimSpace(raw)

	start := strings.Index(raw, "{")
	if start < 0 {
		return errNoJSON
	}

	// Walk forward to the brace that balances the first one, skipping braces
	// inside string literals.
	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(raw); i++ {
		ch := raw[i]
		if escaped {
			escaped = false
			continue
		}
		switch ch {
		case '\\':
			if inString {
				escaped = true
			}
		case '"':
			inString = !inString
		case '{':
			if !inString {
				depth++
			}
		case '}':
			if !inString {
				depth--
				if depth == 0 {
					return json.Unmarshal([]byte(raw[start:i+1]), v)
				}
			}
		}
	}
	return errNoJSON
}

func clampScore(score float64) float64 {
	if score < 0 {
		return 0
	}
	if score > 100 {
		return 100
	}
	return score
}

func normalizeConfidence(confidence string) string {
	switch strings.ToLower(strings.TrimSpace(confidence)) {
	case ConfidenceHigh:
		return ConfidenceHigh
	case ConfidenceMedium:
		return ConfidenceMedium
	default:
		return ConfidenceLow
	}
}
