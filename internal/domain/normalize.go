package domain

import (
	"fmt"
	"strings"
)

// answerFields is the fixed precedence of object fields that can carry an
// answer. Order matters: it decides which representation wins when several
// fields are present.
var answerFields = [...]string{"value", "label", "text", "answer"}

// NormalizeAnswer coerces an arbitrary answer representation to a canonical
// trimmed string. Voice transcripts, MCQ option objects and plain strings all
// come through here before anything is sent to the backend.
func NormalizeAnswer(v any) string {
	switch a := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(a)
	case map[string]any:
		for _, field := range answerFields {
			if s, ok := a[field].(string); ok {
				return strings.TrimSpace(s)
			}
		}
		// An object with no usable field normalizes to empty so the caller
		// rejects it before any network call.
		return ""
	}
	return strings.TrimSpace(fmt.Sprintf("%v", v))
}
