// Package jsonrepair recovers structured records from text produced by a
// generative model under a "return JSON only" instruction it may not obey.
// Input carries no reliability guarantee: markdown fences, truncation mid
// object, and syntactically broken objects interspersed with valid ones all
// occur in practice.
//
// Recovery strategies are attempted unconditionally in order, first success
// wins. The cost of trying a later strategy is negligible next to a wasted
// model call, so strategy selection is not configurable.
package jsonrepair

import (
	"encoding/json"
	"regexp"
	"strings"
)

// Required identity fields for object-by-object extraction. Objects recovered
// individually must carry at least these to be kept.
var requiredFields = []string{"code", "description"}

var trailingCommaRe = regexp.MustCompile(`,(\s*[}\]])`)

// Recover extracts a sequence of record-shaped mappings from text. It never
// panics and never errors: if nothing is recoverable the result is empty.
// For syntactically valid JSON array input it returns exactly the parsed
// structure.
func Recover(text string) []map[string]any {
	text = stripFences(text)

	if recs, ok := parseArraySpan(text); ok {
		return recs
	}
	if recs, ok := repairTruncatedArray(text); ok {
		return recs
	}
	if recs := extractObjects(text); len(recs) > 0 {
		return recs
	}
	return recoverByLines(text)
}

// RecoverObject extracts a single JSON object from text, used for responses
// expected to be a mapping (e.g. code -> target count). Returns nil if no
// object parses.
func RecoverObject(text string) map[string]any {
	text = stripFences(text)
	start := strings.IndexByte(text, '{')
	end := strings.LastIndexByte(text, '}')
	if start < 0 || end <= start {
		return nil
	}
	var out map[string]any
	if err := json.Unmarshal([]byte(text[start:end+1]), &out); err == nil {
		return out
	}
	// Tolerate trailing commas.
	cleaned := trailingCommaRe.ReplaceAllString(text[start:end+1], "$1")
	if err := json.Unmarshal([]byte(cleaned), &out); err == nil {
		return out
	}
	return nil
}

// stripFences removes a markdown code fence (```json ... ``` or a bare
// ``` ... ```) wrapping the payload, if present.
func stripFences(text string) string {
	trimmed := strings.TrimSpace(text)
	idx := strings.Index(trimmed, "```")
	if idx < 0 {
		return text
	}
	rest := trimmed[idx+3:]
	// Drop an optional language hint up to the first newline.
	if nl := strings.IndexByte(rest, '\n'); nl >= 0 {
		hint := strings.TrimSpace(rest[:nl])
		if hint == "" || strings.EqualFold(hint, "json") {
			rest = rest[nl+1:]
		}
	}
	if end := strings.Index(rest, "```"); end >= 0 {
		rest = rest[:end]
	}
	return rest
}

// parseArraySpan parses the span delimited by the outermost matching
// brackets as-is. Strategy 1.
func parseArraySpan(text string) ([]map[string]any, bool) {
	start := strings.IndexByte(text, '[')
	end := strings.LastIndexByte(text, ']')
	if start < 0 || end <= start {
		return nil, false
	}
	return tryParseArray(text[start : end+1])
}

// repairTruncatedArray handles responses cut off mid-object (token limit).
// It scans with a quote/escape-aware bracket state machine, truncates at the
// last position where object nesting returns to the array level, strips a
// trailing comma, and closes the array. Strategy 2.
func repairTruncatedArray(text string) ([]map[string]any, bool) {
	start := strings.IndexByte(text, '[')
	if start < 0 {
		return nil, false
	}
	span := text[start:]

	inString := false
	escaped := false
	depth := 0
	lastComplete := -1 // index just past the last '}' closing back to array level

	for i := 0; i < len(span); i++ {
		c := span[i]
		if escaped {
			escaped = false
			continue
		}
		switch c {
		case '\\':
			if inString {
				escaped = true
			}
		case '"':
			inString = !inString
		case '[', '{':
			if !inString {
				depth++
			}
		case ']', '}':
			if !inString {
				depth--
				if c == '}' && depth == 1 {
					lastComplete = i + 1
				}
			}
		}
	}

	if lastComplete <= 0 {
		return nil, false
	}
	repaired := strings.TrimRight(span[:lastComplete], " \t\r\n")
	repaired = strings.TrimSuffix(repaired, ",")
	repaired += "]"
	return tryParseArray(repaired)
}

// extractObjects finds every balanced {...} span (same quote/escape-aware
// tracking) and parses each independently, keeping spans that parse AND
// carry the required identity fields. Broken objects are discarded silently.
// Strategy 3.
func extractObjects(text string) []map[string]any {
	var out []map[string]any

	inString := false
	escaped := false
	depth := 0
	spanStart := -1

	for i := 0; i < len(text); i++ {
		c := text[i]
		if escaped {
			escaped = false
			continue
		}
		switch c {
		case '\\':
			if inString {
				escaped = true
			}
		case '"':
			inString = !inString
		case '{':
			if !inString {
				if depth == 0 {
					spanStart = i
				}
				depth++
			}
		case '}':
			if !inString && depth > 0 {
				depth--
				if depth == 0 && spanStart >= 0 {
					if obj := parseRequiredObject(text[spanStart : i+1]); obj != nil {
						out = append(out, obj)
					}
					spanStart = -1
				}
			}
		}
	}
	return out
}

// recoverByLines handles almost-JSON that is newline-delimited with stray
// trailing commas: lines are grouped by brace count and each group parsed
// independently. Strategy 4.
func recoverByLines(text string) []map[string]any {
	var out []map[string]any
	var group []string
	braces := 0

	for _, line := range strings.Split(text, "\n") {
		opens := strings.Count(line, "{")
		closes := strings.Count(line, "}")
		braces += opens - closes
		if braces < 0 && len(group) == 0 {
			// Stray closers outside any object (e.g. the array's own "]").
			braces = 0
		}

		if braces > 0 || opens > 0 {
			group = append(group, line)
		}

		if braces <= 0 && len(group) > 0 {
			joined := strings.Join(group, "\n")
			joined = trailingCommaRe.ReplaceAllString(joined, "$1")
			joined = strings.TrimRight(strings.TrimSpace(joined), ",")
			var obj map[string]any
			if err := json.Unmarshal([]byte(joined), &obj); err == nil {
				if _, ok := obj["code"]; ok {
					out = append(out, obj)
				}
			}
			group = nil
			braces = 0
		}
	}
	return out
}

func tryParseArray(span string) ([]map[string]any, bool) {
	var raw []any
	if err := json.Unmarshal([]byte(span), &raw); err != nil {
		// Tolerate a trailing comma before the closing bracket.
		cleaned := trailingCommaRe.ReplaceAllString(span, "$1")
		if err := json.Unmarshal([]byte(cleaned), &raw); err != nil {
			return nil, false
		}
	}
	out := make([]map[string]any, 0, len(raw))
	for _, item := range raw {
		if m, ok := item.(map[string]any); ok {
			out = append(out, m)
		}
	}
	return out, true
}

func parseRequiredObject(span string) map[string]any {
	var obj map[string]any
	if err := json.Unmarshal([]byte(span), &obj); err != nil {
		return nil
	}
	for _, f := range requiredFields {
		if _, ok := obj[f]; !ok {
			return nil
		}
	}
	return obj
}
