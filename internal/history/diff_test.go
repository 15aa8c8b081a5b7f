package history

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"poem-backend/internal/domain"
)

func mustChanges(t *testing.T, comment string) []Change {
	t.Helper()
	var changes []Change
	require.NoError(t, json.Unmarshal([]byte(comment), &changes))
	return changes
}

func TestCreateCommentFirstVersion(t *testing.T) {
	cur := domain.Snapshot{"name": "argo.AMS-Check", "config": `["timeout 60"]`}

	comment, err := CreateComment(MetricTemplateFields, nil, cur)
	require.NoError(t, err)
	assert.Equal(t, InitialVersion, comment)
}

func TestCreateCommentNoChanges(t *testing.T) {
	snap := domain.Snapshot{
		"name":   "argo.AMS-Check",
		"mtype":  "Active",
		"config": `["maxCheckAttempts 3","timeout 60"]`,
	}

	comment, err := CreateComment(MetricTemplateFields, snap, snap)
	require.NoError(t, err)
	assert.Equal(t, "[]", comment)
	assert.Equal(t, NoFieldsChanged, NewComment(comment))
}

func TestCreateCommentConfigSubKeyPrecision(t *testing.T) {
	prev := domain.Snapshot{"config": `["a 1","b 2"]`}
	cur := domain.Snapshot{"config": `["a 1","b 3","c 4"]`}

	comment, err := CreateComment(MetricTemplateFields, prev, cur)
	require.NoError(t, err)

	changes := mustChanges(t, comment)
	require.Len(t, changes, 2)
	assert.Contains(t, changes, Change{Action: ActionAdded, Fields: []string{"config"}, Object: []string{"c"}})
	assert.Contains(t, changes, Change{Action: ActionChanged, Fields: []string{"config"}, Object: []string{"b"}})
}

func TestCreateCommentScalarsCoalescedAndSorted(t *testing.T) {
	prev := domain.Snapshot{
		"name":        "check_old",
		"docurl":      "",
		"comment":     "",
		"description": "old description",
		"repository":  "https://github.com/ARGOeu/probes",
	}
	cur := domain.Snapshot{
		"name":        "check_new",
		"docurl":      "https://example.com/docs",
		"comment":     "Fixed timeout handling.",
		"description": "",
		"repository":  "https://github.com/ARGOeu/probes",
	}

	comment, err := CreateComment(ProbeFields, prev, cur)
	require.NoError(t, err)

	changes := mustChanges(t, comment)
	require.Len(t, changes, 3)
	assert.Equal(t, Change{Action: ActionAdded, Fields: []string{"comment", "docurl"}}, changes[0])
	assert.Equal(t, Change{Action: ActionChanged, Fields: []string{"name"}}, changes[1])
	assert.Equal(t, Change{Action: ActionDeleted, Fields: []string{"description"}}, changes[2])
}

func TestCreateCommentSchemaEvolution(t *testing.T) {
	// A field present only in the newer snapshot (added to the model
	// after the previous version was recorded) is reported whole, with
	// no sub-key granularity even though it is a keyed collection.
	prev := domain.Snapshot{"name": "argo.AMS-Check"}
	cur := domain.Snapshot{"name": "argo.AMS-Check", "config": `["timeout 60"]`}

	comment, err := CreateComment(MetricTemplateFields, prev, cur)
	require.NoError(t, err)

	changes := mustChanges(t, comment)
	require.Len(t, changes, 1)
	assert.Equal(t, Change{Action: ActionAdded, Fields: []string{"config"}}, changes[0])

	// Symmetric for fields dropped from the newer snapshot.
	comment, err = CreateComment(MetricTemplateFields, cur, prev)
	require.NoError(t, err)

	changes = mustChanges(t, comment)
	require.Len(t, changes, 1)
	assert.Equal(t, Change{Action: ActionDeleted, Fields: []string{"config"}}, changes[0])
}

func TestCreateCommentKeyedFieldEmptiedListsDeletedKeys(t *testing.T) {
	prev := domain.Snapshot{"attribute": `["argo.ams_TOKEN --token"]`}
	cur := domain.Snapshot{"attribute": ""}

	comment, err := CreateComment(MetricTemplateFields, prev, cur)
	require.NoError(t, err)

	changes := mustChanges(t, comment)
	require.Len(t, changes, 1)
	assert.Equal(t, Change{Action: ActionDeleted, Fields: []string{"attribute"}, Object: []string{"argo.ams_TOKEN"}}, changes[0])
}

func TestCreateCommentMetricInstances(t *testing.T) {
	prev := domain.Snapshot{
		"metricinstances": `[{"service":"ARC-CE","metric":"org.nordugrid.ARC-CE-IGTF"},{"service":"SRM","metric":"eu.egi.SRM-All"}]`,
	}
	cur := domain.Snapshot{
		"metricinstances": `[{"service":"ARC-CE","metric":"org.nordugrid.ARC-CE-IGTF"},{"service":"ARC-CE","metric":"org.nordugrid.ARC-CE-SRM"}]`,
	}

	comment, err := CreateComment(MetricProfileFields, prev, cur)
	require.NoError(t, err)

	changes := mustChanges(t, comment)
	require.Len(t, changes, 2)
	assert.Equal(t, Change{
		Action: ActionAdded,
		Fields: []string{"metricinstances"},
		Object: []string{"ARC-CE", "org.nordugrid.ARC-CE-SRM"},
	}, changes[0])
	assert.Equal(t, Change{
		Action: ActionDeleted,
		Fields: []string{"metricinstances"},
		Object: []string{"SRM", "eu.egi.SRM-All"},
	}, changes[1])
}

func TestCreateCommentThresholdsRules(t *testing.T) {
	prev := domain.Snapshot{
		"rules": `[{"metric":"argo.AMS-Check","thresholds":"freshness=1s;10;9:;0;25"},{"metric":"org.apel.APEL-Pub","thresholds":"entries=1;3;0:2;10"}]`,
	}
	cur := domain.Snapshot{
		"rules": `[{"metric":"argo.AMS-Check","thresholds":"freshness=1s;5;4:;0;25"},{"metric":"argo.POEM-API-MON","thresholds":"time=1s;3;0:2;10"}]`,
	}

	comment, err := CreateComment(ThresholdsProfileFields, prev, cur)
	require.NoError(t, err)

	changes := mustChanges(t, comment)
	require.Len(t, changes, 3)
	assert.Contains(t, changes, Change{Action: ActionAdded, Fields: []string{"rules"}, Object: []string{"argo.POEM-API-MON"}})
	assert.Contains(t, changes, Change{Action: ActionChanged, Fields: []string{"rules"}, Object: []string{"argo.AMS-Check"}})
	assert.Contains(t, changes, Change{Action: ActionDeleted, Fields: []string{"rules"}, Object: []string{"org.apel.APEL-Pub"}})
}

func TestCreateCommentAggregationGroups(t *testing.T) {
	prev := domain.Snapshot{
		"groups": `[{"name":"compute","operation":"OR","services":[{"name":"ARC-CE","operation":"OR"}]},{"name":"storage","operation":"OR","services":[{"name":"SRM","operation":"OR"}]}]`,
	}
	cur := domain.Snapshot{
		"groups": `[{"name":"compute","operation":"AND","services":[{"name":"ARC-CE","operation":"OR"}]},{"name":"messaging","operation":"OR","services":[{"name":"APEL","operation":"OR"}]}]`,
	}

	comment, err := CreateComment(AggregationFields, prev, cur)
	require.NoError(t, err)

	changes := mustChanges(t, comment)
	require.Len(t, changes, 3)
	assert.Contains(t, changes, Change{Action: ActionAdded, Fields: []string{"groups"}, Object: []string{"messaging"}})
	assert.Contains(t, changes, Change{Action: ActionChanged, Fields: []string{"groups"}, Object: []string{"compute"}})
	assert.Contains(t, changes, Change{Action: ActionDeleted, Fields: []string{"groups"}, Object: []string{"storage"}})
}

func TestCreateCommentMalformedInlineDataFailsLoud(t *testing.T) {
	prev := domain.Snapshot{"config": `{"corrupted": true}`}
	cur := domain.Snapshot{"config": `["timeout 60"]`}

	_, err := CreateComment(MetricTemplateFields, prev, cur)
	assert.Error(t, err)
}
