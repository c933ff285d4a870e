package pipeline

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"github.com/tidwall/gjson"
)

// Each deliberation artifact has a strict schema. Reasoner output that does
// not validate gets one re-prompt carrying the validation error; a second
// failure degrades the artifact.

var analystSchema = jsonschema.MustCompileString("analyst.json", `{
	"type": "object",
	"required": ["stance", "score", "findings", "key_points"],
	"properties": {
		"stance": {"type": "string", "enum": ["BULLISH", "BEARISH", "NEUTRAL"]},
		"score": {"type": "number", "minimum": 0, "maximum": 100},
		"findings": {"type": "string", "minLength": 1},
		"key_points": {"type": "array", "items": {"type": "string"}, "minItems": 1},
		"sources": {"type": "array", "items": {"type": "string"}}
	}
}`)

var turnSchema = jsonschema.MustCompileString("turn.json", `{
	"type": "object",
	"required": ["argument"],
	"properties": {
		"argument": {"type": "string", "minLength": 1}
	}
}`)

var judgeSchema = jsonschema.MustCompileString("judge.json", `{
	"type": "object",
	"required": ["direction", "thesis"],
	"properties": {
		"direction": {"type": "string", "enum": ["BULLISH", "BEARISH", "NEUTRAL"]},
		"thesis": {"type": "string", "minLength": 1}
	}
}`)

var reviewSchema = jsonschema.MustCompileString("review.json", `{
	"type": "object",
	"required": ["stance", "commentary"],
	"properties": {
		"stance": {"type": "string", "enum": ["INCREASE", "MAINTAIN", "REDUCE", "ABORT"]},
		"adjusted_size_pct": {"type": ["number", "null"], "minimum": 0, "maximum": 1},
		"adjusted_stop": {"type": ["number", "null"], "minimum": 0},
		"commentary": {"type": "string", "minLength": 1}
	}
}`)

type analystPayload struct {
	Stance    string   `json:"stance"`
	Score     float64  `json:"score"`
	Findings  string   `json:"findings"`
	KeyPoints []string `json:"key_points"`
	Sources   []string `json:"sources"`
}

type turnPayload struct {
	Argument string `json:"argument"`
}

type judgePayload struct {
	Direction string `json:"direction"`
	Thesis    string `json:"thesis"`
}

type reviewPayload struct {
	Stance          string   `json:"stance"`
	AdjustedSizePct *float64 `json:"adjusted_size_pct"`
	AdjustedStop    *float64 `json:"adjusted_stop"`
	Commentary      string   `json:"commentary"`
}

// decodeValidated extracts, schema-validates, and unmarshals one reasoner
// payload. Every failure wraps ErrMalformedOutput so the caller knows a
// re-prompt, not a retry, is the remedy.
func decodeValidated(raw string, schema *jsonschema.Schema, out any) error {
	doc, ok := extractJSON(raw)
	if !ok {
		return fmt.Errorf("%w: no JSON object found", ErrMalformedOutput)
	}

	var v any
	if err := json.Unmarshal([]byte(doc), &v); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedOutput, err)
	}
	if err := schema.Validate(v); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedOutput, err)
	}
	if err := json.Unmarshal([]byte(doc), out); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedOutput, err)
	}
	return nil
}

// extractJSON pulls the first JSON object out of raw reasoner text.
// Providers wrap JSON in markdown fences or surrounding prose more often
// than not.
func extractJSON(raw string) (string, bool) {
	text := strings.TrimSpace(raw)
	if text == "" {
		return "", false
	}
	if isJSONObject(text) {
		return text, true
	}

	if fenced, ok := stripFence(text); ok && isJSONObject(fenced) {
		return fenced, true
	}

	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start >= 0 && end > start {
		if candidate := text[start : end+1]; isJSONObject(candidate) {
			return candidate, true
		}
	}
	return "", false
}

func isJSONObject(text string) bool {
	return gjson.Valid(text) && gjson.Parse(text).IsObject()
}

// stripFence removes a ```json ... ``` wrapper, language tag included.
func stripFence(text string) (string, bool) {
	if !strings.HasPrefix(text, "```") {
		return "", false
	}
	rest := strings.TrimPrefix(text, "```")
	if idx := strings.Index(rest, "\n"); idx >= 0 {
		rest = rest[idx+1:]
	}
	if end := strings.LastIndex(rest, "```"); end >= 0 {
		rest = rest[:end]
	}
	return strings.TrimSpace(rest), true
}
