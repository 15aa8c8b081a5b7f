package domain

import (
	"encoding/json"
	"fmt"
	"time"
)

// Content types distinguishing entities inside the shared per-tenant
// tenant_history table.
const (
	ContentMetric            = "metric"
	ContentMetricProfile     = "metricprofile"
	ContentAggregation       = "aggregationprofile"
	ContentThresholdsProfile = "thresholdsprofile"
)

// HistoryContentType maps a profile kind to its tenant_history
// content_type tag.
func HistoryContentType(kind ProfileKind) string {
	return string(kind)
}

// Snapshot is the serialized field map of one entity version. All
// values are strings: scalars verbatim, inline lists in the pair-list
// wire format, profile payloads as JSON arrays ("" when empty).
type Snapshot map[string]string

// Encode renders the snapshot as the JSON object stored in
// serialized_data.
func (s Snapshot) Encode() (json.RawMessage, error) {
	b, err := json.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("failed to encode snapshot: %w", err)
	}
	return b, nil
}

// DecodeSnapshot parses a serialized_data payload back into a field map.
func DecodeSnapshot(raw json.RawMessage) (Snapshot, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	var s Snapshot
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil, fmt.Errorf("failed to decode snapshot: %w", err)
	}
	return s, nil
}

// TenantHistory is one immutable version row of the generic per-tenant
// history table. Rows for an object are ordered by date_created with
// the bigserial id as tie-break, newest first.
type TenantHistory struct {
	ID             int64           `db:"history_id"`
	ObjectID       int64           `db:"object_id"`
	ContentType    string          `db:"content_type"`
	SerializedData json.RawMessage `db:"serialized_data"`
	ObjectRepr     string          `db:"object_repr"`
	Comment        string          `db:"comment"`
	VersionUser    string          `db:"version_user"`
	DateCreated    time.Time       `db:"date_created"`
}
