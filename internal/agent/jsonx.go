package agent

import (
	"encoding/json"
	"fmt"
	"strings"
)

// ExtractJSON decodes the first JSON object or array found in raw into out.
// Models wrap JSON in prose and code fences more often than not, so this
// scans rather than requiring a clean document.
func ExtractJSON(raw string, out any) error {
	candidate := stripFences(raw)
	if err := json.Unmarshal([]byte(candidate), out); err == nil {
		return nil
	}
	body, ok := firstJSONValue(candidate)
	if !ok {
		return fmt.Errorf("agent: no JSON value found in model output")
	}
	if err := json.Unmarshal([]byte(body), out); err != nil {
		return fmt.Errorf("agent: decode model JSON: %w", err)
	}
	return nil
}

// stripFences removes a ``` or ```json fence if the payload is fenced.
func stripFences(raw string) string {
	s := strings.TrimSpace(raw)
	start := strings.Index(s, "```")
	if start < 0 {
		return s
	}
	s = s[start+3:]
	if nl := strings.IndexByte(s, '\n'); nl >= 0 {
		// Drop the language tag line ("json", "JSON", or empty).
		tag := strings.TrimSpace(s[:nl])
		if len(tag) <= 8 {
			s = s[nl+1:]
		}
	}
	if end := strings.Index(s, "```"); end >= 0 {
		s = s[:end]
	}
	return strings.TrimSpace(s)
}

// firstJSONValue returns the first balanced {...} or [...] span, skipping
// brackets inside string literals.
func firstJSONValue(s string) (string, bool) {
	start := -1
	var open, closing byte
	for i := 0; i < len(s); i++ {
		if s[i] == '{' || s[i] == '[' {
			start = i
			open = s[i]
			if open == '{' {
				closing = '}'
			} else {
				closing = ']'
			}
			break
		}
	}
	if start < 0 {
		return "", false
	}

	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(s); i++ {
		c := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case open:
			depth++
		case closing:
			depth--
			if depth == 0 {
				return s[start : i+1], true
			}
		}
	}
	return "", false
}
