package llm

import (
	"encoding/json"
	"fmt"
	"strings"
)

// ParseError reports a reasoning-service response that held no usable JSON record
type ParseError struct {
	Reason string
	Raw    string
	Err    error
}

func (e *ParseError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("parse reasoning response: %s: %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("parse reasoning response: %s", e.Reason)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// ExtractRecord finds the first complete JSON object embedded in text.
// Surrounding prose and markdown code fences are ignored.
func ExtractRecord(text string) (string, error) {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return "", &ParseError{Reason: "empty response", Raw: text}
	}

	if fenced, ok := stripCodeFence(trimmed); ok {
		if record, ok := firstObject(fenced); ok {
			return record, nil
		}
	}

	if record, ok := firstObject(trimmed); ok {
		return record, nil
	}
	return "", &ParseError{Reason: "no JSON object found", Raw: text}
}

// DecodeRecord extracts the embedded JSON record and unmarshals it into v
func DecodeRecord(text string, v any) error {
	record, err := ExtractRecord(text)
	if err != nil {
		return err
	}
	if err := json.Unmarshal([]byte(record), v); err != nil {
		return &ParseError{Reason: "record does not match schema", Raw: text, Err: err}
	}
	return nil
}

// stripCodeFence returns the body of the first ``` block, dropping a language tag
func stripCodeFence(text string) (string, bool) {
	start := strings.Index(text, "```")
	if start < 0 {
		return "", false
	}
	body := text[start+3:]
	if nl := strings.IndexByte(body, '\n'); nl >= 0 && !strings.Contains(body[:nl], "{") {
		body = body[nl+1:]
	}
	if end := strings.Index(body, "```"); end >= 0 {
		body = body[:end]
	}
	return body, true
}

// firstObject scans for the first balanced {...} span that is valid JSON.
// Braces inside string literals are skipped.
func firstObject(text string) (string, bool) {
	for offset := 0; offset < len(text); {
		open := strings.IndexByte(text[offset:], '{')
		if open < 0 {
			return "", false
		}
		start := offset + open

		if end, ok := matchBrace(text, start); ok {
			candidate := text[start : end+1]
			if json.Valid([]byte(candidate)) {
				return candidate, true
			}
		}
		offset = start + 1
	}
	return "", false
}

func matchBrace(text string, start int) (int, bool) {
	depth := 0
	inString := false
	escaped := false

	for i := start; i < len(text); i++ {
		c := text[i]
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
				return i, true
			}
		}
	}
	return 0, false
}
