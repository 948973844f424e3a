// Package jsonx pulls a JSON object out of free-form model output.
//
// Models asked for JSON still wrap it in markdown fences or surround it with
// prose. Extract tries, in order: the whole text, the first fenced block,
// then each balanced {...} span in the text.
package jsonx

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// ErrNoJSON is returned when no JSON object can be found.
var ErrNoJSON = errors.New("no JSON object in response")

// Extract returns the first valid JSON object contained in text.
func Extract(text string) (string, error) {
	trimmed := strings.TrimSpace(text)
	if isObject(trimmed) {
		return trimmed, nil
	}

	if fenced, ok := fencedBlock(trimmed); ok && isObject(fenced) {
		return fenced, nil
	}

	for start := strings.IndexByte(trimmed, '{'); start >= 0; {
		if end := matchBrace(trimmed, start); end > start {
			candidate := trimmed[start : end+1]
			if isObject(candidate) {
				return candidate, nil
			}
		}
		next := strings.IndexByte(trimmed[start+1:], '{')
		if next < 0 {
			break
		}
		start += next + 1
	}

	return "", fmt.Errorf("%w: %q", ErrNoJSON, preview(trimmed))
}

// Decode extracts the first JSON object in text and unmarshals it into T.
func Decode[T any](text string) (T, error) {
	var result T
	raw, err := Extract(text)
	if err != nil {
		return result, err
	}
	if err := json.Unmarshal([]byte(raw), &result); err != nil {
		return result, fmt.Errorf("failed to unmarshal JSON: %w", err)
	}
	return result, nil
}

func isObject(s string) bool {
	if !strings.HasPrefix(s, "{") {
		return false
	}
	var v map[string]json.RawMessage
	return json.Unmarshal([]byte(s), &v) == nil
}

// fencedBlock returns the body of the first ``` fence, with an optional
// language tag stripped.
func fencedBlock(s string) (string, bool) {
	open := strings.Index(s, "```")
	if open < 0 {
		return "", false
	}
	body := s[open+3:]
	if nl := strings.IndexByte(body, '\n'); nl >= 0 && !strings.Contains(body[:nl], "{") {
		body = body[nl+1:]
	}
	closeIdx := strings.Index(body, "```")
	if closeIdx < 0 {
		return strings.TrimSpace(body), true
	}
	return strings.TrimSpace(body[:closeIdx]), true
}

// matchBrace returns the index of the brace closing the one at start,
// skipping braces inside string literals, or -1.
func matchBrace(s string, start int) int {
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
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return i
			}
		}
	}
	return -1
}

func preview(s string) string {
	if len(s) > 100 {
		return s[:100] + "..."
	}
	return s
}
