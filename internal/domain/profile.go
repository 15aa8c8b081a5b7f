package domain

import "encoding/json"

// ProfileKind discriminates the three externally-sourced profile
// aggregates mirrored per tenant. The row itself carries only identity
// and ownership; the payload lives in the latest tenant_history
// snapshot.
type ProfileKind string

const (
	KindMetricProfile     ProfileKind = "metricprofile"
	KindAggregation       ProfileKind = "aggregationprofile"
	KindThresholdsProfile ProfileKind = "thresholdsprofile"
)

// Profile is one tenant-schema profile row (metric_profiles,
// aggregations or thresholds_profiles table). APIID is the UUID
// assigned by the external Web API.
type Profile struct {
	ID        int64  `db:"profile_id"`
	APIID     string `db:"apiid"`
	Name      string `db:"profile_name"`
	GroupName string `db:"groupname"`
}

// MetricInstance is one (service, metric) tuple of a metric profile.
type MetricInstance struct {
	Service string `json:"service"`
	Metric  string `json:"metric"`
}

// AggregationGroup is one service group of an aggregation profile.
type AggregationGroup struct {
	Name      string             `json:"name"`
	Operation string             `json:"operation"`
	Services  []AggregationEntry `json:"services"`
}

// AggregationEntry is one service flavour inside an aggregation group.
type AggregationEntry struct {
	Name      string `json:"name"`
	Operation string `json:"operation"`
}

// ThresholdsRule is one per-metric rule of a thresholds profile.
type ThresholdsRule struct {
	Metric        string `json:"metric"`
	Thresholds    string `json:"thresholds"`
	Host          string `json:"host,omitempty"`
	EndpointGroup string `json:"endpoint_group,omitempty"`
}

// EncodeJSON renders a payload slice for storage inside a snapshot
// field; an empty slice encodes to "" to match the inline-field
// convention for "no value".
func EncodeJSON(v any) string {
	b, err := json.Marshal(v)
	if err != nil || string(b) == "[]" || string(b) == "null" {
		return ""
	}
	return string(b)
}
