// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package llm

import (
	"encoding/json"
	"regexp"
	"strings"
)

// fencePattern matches the body of a markdown code block.
var fencePattern = regexp.MustCompile("(?s)```[a-zA-Z]*\\s*\\n?(.*?)\\s*```")

// ExtractJSON returns the JSON value embedded in a model response. It
// prefers the body of a code fence, then the first balanced '[' or '{'
// span that decodes, skipping bracketed prose before it. A span is used as
// written when valid; otherwise trailing commas are removed and it is tried
// again. It returns "" when no array or object is present.
func ExtractJSON(content string) string {
	content = strings.TrimSpace(content)
	if m := fencePattern.FindStringSubmatch(content); len(m) > 1 {
		content = m[1]
	}

	// An opener that is never closed means the response was cut off.
	for i := 0; i < len(content); i++ {
		if content[i] != '[' && content[i] != '{' {
			continue
		}
		end := closingIndex(content, i)
		if end < 0 {
			break
		}
		span := content[i : end+1]
		if json.Valid([]byte(span)) {
			return span
		}
		if cleaned := stripTrailingCommas(span); json.Valid([]byte(cleaned)) {
			return cleaned
		}
	}
	return ""
}

// closingIndex returns the index of the bracket that closes the one at
// start, or -1. Brackets inside JSON strings are ignored.
func closingIndex(s string, start int) int {
	depth := 0
	inString, escaped := false, false
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
		case '[', '{':
			depth++
		case ']', '}':
			depth--
			if depth == 0 {
				return i
			}
		}
	}
	return -1
}

// stripTrailingCommas drops commas that directly precede a closing bracket,
// leaving string contents untouched.
func stripTrailingCommas(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	inString, escaped := false, false
	for i := 0; i < len(s); i++ {
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
			b.WriteByte(c)
			continue
		}
		if c == '"' {
			inString = true
		}
		if c == ',' {
			j := i + 1
			for j < len(s) && strings.IndexByte(" \t\r\n", s[j]) >= 0 {
				j++
			}
			if j < len(s) && (s[j] == ']' || s[j] == '}') {
				continue
			}
		}
		b.WriteByte(c)
	}
	return b.String()
}
