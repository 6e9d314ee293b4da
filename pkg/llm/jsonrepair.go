package llm

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/tidwall/jsonc"
)

// ParseJSONResponse coerces an LLM text response into a decoded JSON value.
// It tries a strict parse first, then a sequence of mechanical repairs for
// the failure modes models actually produce: markdown fences, prose around
// the payload, comments, trailing commas, single-quoted strings, unquoted
// keys, and unbalanced brackets. A response that survives none of it is a
// service error.
func ParseJSONResponse(response string) (any, error) {
	trimmed := strings.TrimSpace(response)

	var value any
	if err := json.Unmarshal([]byte(trimmed), &value); err == nil {
		return value, nil
	}

	repaired := RepairJSON(trimmed)
	if err := json.Unmarshal([]byte(repaired), &value); err != nil {
		return nil, &ServiceError{
			Message: fmt.Sprintf("Invalid JSON response from LLM: %v", err),
			Err:     err,
		}
	}
	return value, nil
}

var (
	fencedBlockRe = regexp.MustCompile("(?s)```(?:json)?\\s*(.*?)```")
	unquotedKeyRe = regexp.MustCompile(`([{,]\s*)([A-Za-z_][A-Za-z0-9_]*)(\s*:)`)
)

// RepairJSON applies best-effort structural fixes to a malformed JSON string.
// The output is not guaranteed to parse; callers must re-validate.
func RepairJSON(s string) string {
	s = stripFences(s)
	s = slicePayload(s)
	s = replaceSingleQuotes(s)
	s = unquotedKeyRe.ReplaceAllString(s, `$1"$2"$3`)
	// jsonc handles comments and trailing commas.
	s = string(jsonc.ToJSON([]byte(s)))
	s = balanceBrackets(s)
	return strings.TrimSpace(s)
}

// stripFences extracts the body of a markdown code fence, if any.
func stripFences(s string) string {
	if m := fencedBlockRe.FindStringSubmatch(s); m != nil {
		return m[1]
	}
	return s
}

// slicePayload trims prose before the first and after the last bracket.
func slicePayload(s string) string {
	start := strings.IndexAny(s, "{[")
	if start < 0 {
		return s
	}
	end := strings.LastIndexAny(s, "}]")
	if end < start {
		return s[start:]
	}
	return s[start : end+1]
}

// replaceSingleQuotes converts single-quoted strings to double-quoted ones,
// leaving apostrophes inside double-quoted strings alone.
func replaceSingleQuotes(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	inDouble := false
	inSingle := false
	escaped := false
	for i := 0; i < len(s); i++ {
		ch := s[i]
		if escaped {
			b.WriteByte(ch)
			escaped = false
			continue
		}
		switch {
		case ch == '\\' && (inDouble || inSingle):
			b.WriteByte(ch)
			escaped = true
		case ch == '"' && !inSingle:
			inDouble = !inDouble
			b.WriteByte(ch)
		case ch == '\'' && !inDouble:
			inSingle = !inSingle
			b.WriteByte('"')
		default:
			b.WriteByte(ch)
		}
	}
	return b.String()
}

// balanceBrackets appends closers for any braces or brackets left open
// outside of string literals.
func balanceBrackets(s string) string {
	var stack []byte
	inString := false
	escaped := false
	for i := 0; i < len(s); i++ {
		ch := s[i]
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
		case '{', '[':
			if !inString {
				stack = append(stack, ch)
			}
		case '}':
			if !inString && len(stack) > 0 && stack[len(stack)-1] == '{' {
				stack = stack[:len(stack)-1]
			}
		case ']':
			if !inString && len(stack) > 0 && stack[len(stack)-1] == '[' {
				stack = stack[:len(stack)-1]
			}
		}
	}
	if inString {
		s += `"`
	}
	for i := len(stack) - 1; i >= 0; i-- {
		if stack[i] == '{' {
			s += "}"
		} else {
			s += "]"
		}
	}
	return s
}
