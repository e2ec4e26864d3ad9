package agents

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

var errNoJSON = errors.New("model response contained no JSON object")

// extractJSON returns the outermost JSON object in text. Models wrap output
// in code fences or prose often enough that a strict decode is not useful.
func extractJSON(text string) (string, error) {
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end < start {
		return "", errNoJSON
	}
	return text[start : end+1], nil
}

// decodeResponse extracts and decodes the JSON object in text into v.
func decodeResponse(text string, v any) error {
	raw, err := extractJSON(text)
	if err != nil {
		return err
	}
	if err := json.Unmarshal([]byte(raw), v); err != nil {
		return fmt.Errorf("failed to decode model response: %w", err)
	}
	return nil
}

// normalize lowercases and trims an enumerated value from model output.
func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
