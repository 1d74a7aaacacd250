// Package ingest turns raw LLM output into validated architecture specs.
package ingest

import (
	"strings"

	"cloudwright/core/spec"
	"cloudwright/internal/errors"
)

// ExtractJSON finds the first complete JSON object in raw model output.
// Markdown fences are stripped first. Brace counting is string-aware so
// braces inside string literals do not affect nesting depth; this is a
// hand-written scan, not a regex.
func ExtractJSON(raw string) (string, error) {
	s := stripFences(raw)

	start := strings.IndexByte(s, '{')
	if start < 0 {
		return "", errors.Parsing("no JSON object in model output", nil)
	}

	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(s); i++ {
		ch := s[i]
		if inString {
			if escaped {
				escaped = false
				continue
			}
			switch ch {
			case '\\':
				escaped = true
			case '"':
				inString = false
			}
			continue
		}
		switch ch {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return s[start : i+1], nil
			}
		}
	}
	return "", errors.Parsing("unterminated JSON object in model output", nil)
}

// stripFences removes a surrounding markdown code fence when present
func stripFences(s string) string {
	idx := strings.Index(s, "```")
	if idx < 0 {
		return s
	}
	rest := s[idx+3:]
	rest = strings.TrimPrefix(rest, "json")
	rest = strings.TrimPrefix(rest, "JSON")
	if end := strings.Index(rest, "```"); end >= 0 {
		rest = rest[:end]
	}
	return rest
}

// ParseArchSpec extracts the JSON object from raw model output and decodes
// it into a normalized, validated spec
func ParseArchSpec(raw string) (*spec.ArchSpec, error) {
	payload, err := ExtractJSON(raw)
	if err != nil {
		return nil, err
	}
	return spec.ParseJSON([]byte(payload))
}
