package history

import (
	"encoding/json"
	"fmt"
	"strings"
	"unicode"
)

// NoFieldsChanged is rendered for an empty descriptor list.
const NoFieldsChanged = "No fields changed."

// NewComment renders a stored version comment for display. Plain-text
// comments ("Initial version.") pass through unchanged; descriptor
// lists produced by CreateComment become one sentence per descriptor.
// The output is display-only prose and is never parsed back.
func NewComment(comment string) string {
	if !strings.HasPrefix(comment, "[") {
		return comment
	}
	var changes []Change
	if err := json.Unmarshal([]byte(comment), &changes); err != nil {
		return comment
	}
	if len(changes) == 0 {
		return NoFieldsChanged
	}

	sentences := make([]string, 0, len(changes))
	for _, c := range changes {
		sentences = append(sentences, sentence(c))
	}
	return capitalize(strings.Join(sentences, " "))
}

func sentence(c Change) string {
	action := capitalize(c.Action)
	if len(c.Object) == 0 {
		return fmt.Sprintf("%s %s.", action, naturalJoin(c.Fields))
	}
	switch c.Fields[0] {
	case "metricinstances":
		return fmt.Sprintf("%s service-metric instance tuple (%s).", action, strings.Join(c.Object, ", "))
	case "rules":
		return fmt.Sprintf("%s rule for metric %q.", action, c.Object[0])
	default:
		noun := "field"
		if len(c.Fields) > 1 {
			noun = "fields"
		}
		return fmt.Sprintf("%s %s %s %q.", action, strings.Join(c.Fields, " "), noun, strings.Join(c.Object, " "))
	}
}

// naturalJoin joins names for prose: "a", "a and b", "a, b and c".
func naturalJoin(items []string) string {
	switch len(items) {
	case 0:
		return ""
	case 1:
		return items[0]
	default:
		return strings.Join(items[:len(items)-1], ", ") + " and " + items[len(items)-1]
	}
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	r := []rune(s)
	r[0] = unicode.ToUpper(r[0])
	return string(r)
}
