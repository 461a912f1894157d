// Package llmjson recovers a structured JSON payload from the free-form text
// a language model returns: commentary, markdown fences, and reasoning
// annotations around the actual object.
package llmjson

import (
	"encoding/json"
	"regexp"
	"strings"

	"github.com/rotisserie/eris"
)

// ErrNoPayload is returned when no strategy finds a decodable payload.
// Callers decide whether that is fatal for their item.
var ErrNoPayload = eris.New("llmjson: no structured payload found")

var thinkRe = regexp.MustCompile(`(?s)<think>.*?</think>\s*`)

// strategy locates one candidate substring; the caller decides whether it
// decodes. Strategies are tried in priority order and a decode failure falls
// through to the next one.
type strategy func(text string) (string, bool)

var strategies = []strategy{
	labeledFence,
	anonymousFence,
	balancedObject,
	wholeText,
}

// Extract pulls the first decodable JSON payload out of raw model output.
// Reasoning annotation blocks are discarded before any matching.
func Extract(raw string) (json.RawMessage, error) {
	text := strings.TrimSpace(StripThink(raw))
	if text == "" {
		return nil, ErrNoPayload
	}

	for _, locate := range strategies {
		candidate, ok := locate(text)
		if !ok {
			continue
		}
		candidate = strings.TrimSpace(candidate)
		if json.Valid([]byte(candidate)) {
			return json.RawMessage(candidate), nil
		}
	}
	return nil, ErrNoPayload
}

// StripThink removes <think>...</think> reasoning blocks. Their content is
// never parsed.
func StripThink(text string) string {
	return thinkRe.ReplaceAllString(text, "")
}

// labeledFence finds a ```json fenced block and returns its interior.
func labeledFence(text string) (string, bool) {
	return fenceInterior(text, "```json")
}

// anonymousFence finds any fenced block, skipping a language tag on the
// opening line if present.
func anonymousFence(text string) (string, bool) {
	interior, ok := fenceInterior(text, "```")
	if !ok {
		return "", false
	}
	// Drop a language tag like "yaml" or "json5" on the first line.
	if nl := strings.IndexByte(interior, '\n'); nl >= 0 {
		first := strings.TrimSpace(interior[:nl])
		if first != "" && !strings.ContainsAny(first, "{[\"") {
			interior = interior[nl+1:]
		}
	}
	return interior, true
}

func fenceInterior(text, opening string) (string, bool) {
	start := strings.Index(text, opening)
	if start < 0 {
		return "", false
	}
	rest := text[start+len(opening):]
	end := strings.Index(rest, "```")
	if end < 0 {
		return "", false
	}
	return rest[:end], true
}

// balancedObject scans for the first balanced-brace object with a running
// depth counter. Unlike a non-greedy pattern it never truncates nested
// objects.
func balancedObject(text string) (string, bool) {
	start := strings.IndexByte(text, '{')
	if start < 0 {
		return "", false
	}
	depth := 0
	for i := start; i < len(text); i++ {
		switch text[i] {
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return text[start : i+1], true
			}
		}
	}
	return "", false
}

// wholeText offers the remaining text itself, with a last-chance repair of
// truncated output (model hit its token ceiling mid-object).
func wholeText(text string) (string, bool) {
	if json.Valid([]byte(text)) {
		return text, true
	}
	return repairTruncated(text), true
}

// repairTruncated closes unterminated strings, brackets, and braces at the
// end of truncated JSON. It leaves already-valid text alone.
func repairTruncated(text string) string {
	var stack []byte
	inString := false
	escape := false

	for i := 0; i < len(text); i++ {
		c := text[i]
		if escape {
			escape = false
			continue
		}
		switch {
		case c == '\\' && inString:
			escape = true
		case c == '"':
			inString = !inString
		case inString:
		case c == '{' || c == '[':
			stack = append(stack, c)
		case c == '}' || c == ']':
			if len(stack) > 0 {
				stack = stack[:len(stack)-1]
			}
		}
	}

	var b strings.Builder
	b.WriteString(strings.TrimRight(text, ", \n\t"))
	if inString {
		b.WriteByte('"')
	}
	for i := len(stack) - 1; i >= 0; i-- {
		if stack[i] == '{' {
			b.WriteByte('}')
		} else {
			b.WriteByte(']')
		}
	}
	return b.String()
}
