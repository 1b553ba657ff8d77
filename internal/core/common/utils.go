package common

import (
	"encoding/json"
	"fmt"
	"strings"
)

// ParseJSON extracts and unmarshals the JSON object embedded in an LLM
// reply. Arbitration replies routinely arrive wrapped in markdown fences or
// prose; everything outside the outermost braces is discarded.
func ParseJSON[T any](response string) (T, error) {
	var zero T

	jsonStr := response
	if i := strings.Index(jsonStr, "{"); i >= 0 {
		if j := strings.LastIndex(jsonStr, "}"); j > i {
			jsonStr = jsonStr[i : j+1]
		}
	} else {
		return zero, fmt.Errorf("no JSON object found in response (missing '{')")
	}

	var result T
	if err := json.Unmarshal([]byte(jsonStr), &result); err != nil {
		return zero, fmt.Errorf("failed to unmarshal JSON: %w\nData: %s", err, jsonStr)
	}

	return result, nil
}
