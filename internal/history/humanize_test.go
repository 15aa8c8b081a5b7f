package history

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewCommentPlainTextPassesThrough(t *testing.T) {
	assert.Equal(t, InitialVersion, NewComment(InitialVersion))
	assert.Equal(t, "Derived from history replay.", NewComment("Derived from history replay."))
}

func TestNewCommentEmptyDescriptorList(t *testing.T) {
	assert.Equal(t, NoFieldsChanged, NewComment("[]"))
}

func TestNewCommentScalarSentences(t *testing.T) {
	comment := `[{"added": {"fields": ["docurl", "comment"]}}, ` +
		`{"changed": {"fields": ["name", "probeexecutable", "group"]}}, ` +
		`{"deleted": {"fields": ["version", "description"]}}]`

	assert.Equal(t,
		"Added docurl and comment. Changed name, probeexecutable and group. Deleted version and description.",
		NewComment(comment))
}

func TestNewCommentMetricInstanceTuple(t *testing.T) {
	comment := `[{"added": {"fields": ["metricinstances"], "object": ["ARC-CE", "org.nordugrid.ARC-CE-IGTF"]}}]`

	assert.Equal(t,
		"Added service-metric instance tuple (ARC-CE, org.nordugrid.ARC-CE-IGTF).",
		NewComment(comment))
}

func TestNewCommentThresholdsRule(t *testing.T) {
	comment := `[{"changed": {"fields": ["rules"], "object": ["argo.AMS-Check"]}}, ` +
		`{"deleted": {"fields": ["rules"], "object": ["org.apel.APEL-Pub"]}}]`

	assert.Equal(t,
		`Changed rule for metric "argo.AMS-Check". Deleted rule for metric "org.apel.APEL-Pub".`,
		NewComment(comment))
}

func TestNewCommentKeyedFieldObjects(t *testing.T) {
	comment := `[{"changed": {"fields": ["config"], "object": ["maxCheckAttempts", "timeout"]}}]`

	assert.Equal(t,
		`Changed config field "maxCheckAttempts timeout".`,
		NewComment(comment))
}

func TestNewCommentMixedDescriptors(t *testing.T) {
	comment := `[{"changed": {"fields": ["description"]}}, ` +
		`{"added": {"fields": ["config"], "object": ["path"]}}]`

	assert.Equal(t,
		`Changed description. Added config field "path".`,
		NewComment(comment))
}

func TestNewCommentSingleField(t *testing.T) {
	assert.Equal(t, "Changed group.", NewComment(`[{"changed": {"fields": ["group"]}}]`))
}
