package domain

import (
	"sort"
	"strings"
	"time"
)

// Metric type discriminators. Passive metrics have no probe and carry
// results published by another (active) metric.
const (
	MTypeActive  = "Active"
	MTypePassive = "Passive"
)

// MetricTemplate is the public-schema, shared definition of how one
// named metric is produced. ProbeKeyID is nil for passive metrics.
// All inline list fields hold the pair-list wire format ("" when empty).
type MetricTemplate struct {
	ID              int64    `db:"template_id"`
	Name            string   `db:"template_name"`
	MType           string   `db:"mtype"`
	ProbeKeyID      *int64   `db:"probekey_id"` // FK to probe_history
	Description     string   `db:"description"`
	Parent          string   `db:"parent"`
	ProbeExecutable string   `db:"probeexecutable"`
	Config          string   `db:"config"`
	Attribute       string   `db:"attribute"`
	Dependency      string   `db:"dependency"`
	Flags           string   `db:"flags"`
	Files           string   `db:"files"`
	Parameter       string   `db:"parameter"`
	FileParameter   string   `db:"fileparameter"`
	Tags            []string `db:"tags"`

	// Denormalized probe version string ("probe (version)"), empty for
	// passive templates. Filled by the repository layer.
	ProbeVersion string `db:"-"`
}

// MetricTemplateHistory is one immutable version snapshot of a template.
type MetricTemplateHistory struct {
	ID              int64     `db:"template_history_id"`
	ObjectID        int64     `db:"object_id"`
	Name            string    `db:"template_name"`
	MType           string    `db:"mtype"`
	ProbeKeyID      *int64    `db:"probekey_id"`
	Description     string    `db:"description"`
	Parent          string    `db:"parent"`
	ProbeExecutable string    `db:"probeexecutable"`
	Config          string    `db:"config"`
	Attribute       string    `db:"attribute"`
	Dependency      string    `db:"dependency"`
	Flags           string    `db:"flags"`
	Files           string    `db:"files"`
	Parameter       string    `db:"parameter"`
	FileParameter   string    `db:"fileparameter"`
	Tags            []string  `db:"tags"`
	DateCreated     time.Time `db:"date_created"`
	VersionComment  string    `db:"version_comment"`
	VersionUser     string    `db:"version_user"`

	ProbeVersion string `db:"-"`
}

// JoinTags renders a tag list the way snapshots store it: sorted and
// comma-joined, "" when empty.
func JoinTags(tags []string) string {
	if len(tags) == 0 {
		return ""
	}
	sorted := append([]string(nil), tags...)
	sort.Strings(sorted)
	return strings.Join(sorted, ", ")
}
