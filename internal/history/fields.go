package history

// FieldKind tells the diff engine how to compare one snapshot field.
type FieldKind int

const (
	// Scalar fields compare as whole strings.
	Scalar FieldKind = iota
	// PairList fields hold the inline key/value wire format and diff
	// per sub-key.
	PairList
	// InstanceList fields hold a JSON array of (service, metric)
	// tuples; each tuple is its own identity, so only added/deleted
	// outcomes exist.
	InstanceList
	// RuleList fields hold a JSON array of thresholds rules keyed by
	// metric name.
	RuleList
	// GroupList fields hold a JSON array of aggregation groups keyed
	// by group name.
	GroupList
)

// FieldSpec is one entry of an entity's diffable-field table.
type FieldSpec struct {
	Name string
	Kind FieldKind
}

// ProbeFields is the diffable-field table for probe snapshots.
var ProbeFields = []FieldSpec{
	{"name", Scalar},
	{"version", Scalar},
	{"package", Scalar},
	{"description", Scalar},
	{"comment", Scalar},
	{"repository", Scalar},
	{"docurl", Scalar},
}

// MetricTemplateFields is the diffable-field table for public metric
// template snapshots.
var MetricTemplateFields = []FieldSpec{
	{"name", Scalar},
	{"mtype", Scalar},
	{"probeversion", Scalar},
	{"description", Scalar},
	{"parent", Scalar},
	{"probeexecutable", Scalar},
	{"tags", Scalar},
	{"config", PairList},
	{"attribute", PairList},
	{"dependency", PairList},
	{"flags", PairList},
	{"files", PairList},
	{"parameter", PairList},
	{"fileparameter", PairList},
}

// MetricFields is the diffable-field table for tenant metric snapshots:
// the template fields plus the tenant-only ownership group.
var MetricFields = append([]FieldSpec{{"group", Scalar}}, MetricTemplateFields...)

// MetricProfileFields is the diffable-field table for metric profile
// snapshots.
var MetricProfileFields = []FieldSpec{
	{"name", Scalar},
	{"groupname", Scalar},
	{"description", Scalar},
	{"apiid", Scalar},
	{"metricinstances", InstanceList},
}

// AggregationFields is the diffable-field table for aggregation profile
// snapshots.
var AggregationFields = []FieldSpec{
	{"name", Scalar},
	{"groupname", Scalar},
	{"apiid", Scalar},
	{"endpoint_group", Scalar},
	{"metric_operation", Scalar},
	{"profile_operation", Scalar},
	{"metric_profile", Scalar},
	{"groups", GroupList},
}

// ThresholdsProfileFields is the diffable-field table for thresholds
// profile snapshots.
var ThresholdsProfileFields = []FieldSpec{
	{"name", Scalar},
	{"groupname", Scalar},
	{"apiid", Scalar},
	{"rules", RuleList},
}
