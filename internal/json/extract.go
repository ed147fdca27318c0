// Package json provides JSON extraction utilities for parsing model output.
//
// Models sometimes return JSON wrapped in markdown fences or surrounded
// by commentary. This package recovers the JSON portion so tool-call
// arguments can still be validated and executed.
package json

import (
	"encoding/json"
	"fmt"
	"strings"
)

// ExtractJSON finds and returns the JSON object portion of a response.
// It handles common model output patterns:
// 1. Pure JSON - returned as-is
// 2. JSON wrapped in markdown code blocks (```json ... ```)
// 3. JSON object embedded in text - first '{' through last '}'
//
// Limitations:
// - Only handles JSON objects, not arrays
// - Uses simple brace matching, not full JSON parsing
func ExtractJSON(response string) (string, error) {
	response = stripMarkdownCodeBlocks(response)

	var test interface{}
	if err := json.Unmarshal([]byte(response), &test); err == nil {
		return response, nil
	}

	start := strings.Index(response, "{")
	if start != -1 {
		end := strings.LastIndex(response, "}")
		if end != -1 && end > start {
			jsonStr := response[start : end+1]
			if err := json.Unmarshal([]byte(jsonStr), &test); err == nil {
				return jsonStr, nil
			}
		}
	}

	preview := response
	if len(preview) > 100 {
		preview = preview[:100] + "..."
	}
	return "", fmt.Errorf("failed to extract valid JSON from response: %q", preview)
}

// NormalizeArguments cleans up a tool-call argument blob. Fenced or
// text-wrapped JSON is unwrapped; anything unrecoverable is returned
// unchanged so the tool's own validation reports the failure.
func NormalizeArguments(raw json.RawMessage) json.RawMessage {
	if len(raw) == 0 {
		return json.RawMessage(`{}`)
	}
	var test interface{}
	if err := json.Unmarshal(raw, &test); err == nil {
		return raw
	}
	if extracted, err := ExtractJSON(string(raw)); err == nil {
		return json.RawMessage(extracted)
	}
	return raw
}

// stripMarkdownCodeBlocks removes markdown code block markers.
// Handles patterns like ```json\n...\n``` or ```\n...\n```
func stripMarkdownCodeBlocks(response string) string {
	trimmed := strings.TrimSpace(response)

	if strings.HasPrefix(trimmed, "```json") {
		trimmed = strings.TrimSpace(strings.TrimPrefix(trimmed, "```json"))
	} else if strings.HasPrefix(trimmed, "```") {
		trimmed = strings.TrimSpace(strings.TrimPrefix(trimmed, "```"))
	}

	if strings.HasSuffix(trimmed, "```") {
		trimmed = strings.TrimSpace(strings.TrimSuffix(trimmed, "```"))
	}

	return trimmed
}
