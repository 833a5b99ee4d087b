// Package json extracts JSON payloads from LLM responses.
//
// Models frequently wrap their JSON in markdown fences or surround it
// with commentary. The helpers here strip that decoration and pull out
// the first well-formed object.
package json

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Extract returns the JSON object portion of an LLM response string.
// It tries the whole response first, then strips markdown code fences,
// then falls back to the span between the first '{' and the last '}'.
//
// Only objects are handled, not top-level arrays, and brace matching is
// textual rather than a full parse.
func Extract(response string) (string, error) {
	response = stripCodeFences(response)

	var probe interface{}
	if err := json.Unmarshal([]byte(response), &probe); err == nil {
		return response, nil
	}

	start := strings.Index(response, "{")
	if start != -1 {
		end := strings.LastIndex(response, "}")
		if end > start {
			candidate := response[start : end+1]
			if err := json.Unmarshal([]byte(candidate), &probe); err == nil {
				return candidate, nil
			}
		}
	}

	preview := response
	if len(preview) > 100 {
		preview = preview[:100] + "..."
	}
	return "", fmt.Errorf("no valid JSON object in response: %q", preview)
}

// Decode extracts the JSON object from a response and unmarshals it
// into T.
func Decode[T any](response string) (T, error) {
	var result T
	payload, err := Extract(response)
	if err != nil {
		return result, err
	}
	if err := json.Unmarshal([]byte(payload), &result); err != nil {
		return result, fmt.Errorf("failed to unmarshal JSON: %w", err)
	}
	return result, nil
}

// stripCodeFences removes a leading ```json or ``` marker and a
// trailing ``` marker, if present.
func stripCodeFences(response string) string {
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
