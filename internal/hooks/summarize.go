package hooks

import (
	"fmt"
	"strings"
)

// Field and overall caps for tool-input summaries.
const (
	summaryFieldCap = 100
	summaryTotalCap = 200
)

// priorityFields is the extraction order for tool-input summaries. First
// match wins position; fields absent from the input are skipped.
var priorityFields = []string{
	"command", "query", "prompt", "file_path", "pattern",
	"url", "description", "task_id", "skill", "content",
}

// SummarizeToolInput extracts the interesting fields from an arbitrary tool
// input map into a short comma-joined line for the activity log. Best-effort:
// unknown shapes produce an empty summary, never an error.
func SummarizeToolInput(input map[string]interface{}) string {
	if len(input) == 0 {
		return ""
	}

	var parts []string
	for _, field := range priorityFields {
		raw, ok := input[field]
		if !ok {
			continue
		}
		val := stringify(raw)
		if val == "" {
			continue
		}
		if len(val) > summaryFieldCap {
			val = val[:summaryFieldCap]
		}
		parts = append(parts, fmt.Sprintf("%s=%s", field, val))
	}

	summary := strings.Join(parts, ", ")
	if len(summary) > summaryTotalCap {
		summary = summary[:summaryTotalCap]
	}
	return summary
}

func stringify(v interface{}) string {
	switch val := v.(type) {
	case string:
		return strings.TrimSpace(strings.ReplaceAll(val, "\n", " "))
	case float64:
		if val == float64(int64(val)) {
			return fmt.Sprintf("%d", int64(val))
		}
		return fmt.Sprintf("%g", val)
	case bool:
		return fmt.Sprintf("%t", val)
	default:
		return ""
	}
}
