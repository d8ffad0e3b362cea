package analysis

import (
	"encoding/json"
	"fmt"
	"strings"
)

// SafeParseJSON recovers a JSON object from model output: it strips markdown fences,
// keeps the outermost {...} span and removes control characters before decoding.
func SafeParseJSON(raw string) (map[string]any, error) {
	text := stripFences(raw)
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end <= start {
		return nil, fmt.Errorf("%w: no object found", ErrParse)
	}
	text = cleanControl(text[start : end+1])

	var out map[string]any
	if err := json.Unmarshal([]byte(text), &out); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrParse, err)
	}
	if out == nil {
		return nil, fmt.Errorf("%w: null object", ErrParse)
	}
	return out, nil
}

func stripFences(raw string) string {
	lines := strings.Split(raw, "\n")
	kept := lines[:0]
	for _, line := range lines {
		if strings.HasPrefix(strings.TrimSpace(line), "```") {
			continue
		}
		kept = append(kept, line)
	}
	return strings.Join(kept, "\n")
}

// cleanControl turns CR, LF and TAB into spaces and drops the remaining C0 controls and DEL.
func cleanControl(s string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r == '\r' || r == '\n' || r == '\t':
			return ' '
		case r < 0x20 || r == 0x7F:
			return -1
		default:
			return r
		}
	}, s)
}
