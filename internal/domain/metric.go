package domain

// Metric is a tenant-local, ownable instantiation of a public
// MetricTemplate (tenant schema, metrics table). ProbeVersion is the
// cross-schema natural key into probe_history ("probe (version)"),
// empty for passive metrics. GroupName records ownership inside the
// tenant.
type Metric struct {
	ID              int64    `db:"metric_id"`
	Name            string   `db:"metric_name"`
	MType           string   `db:"mtype"`
	ProbeVersion    string   `db:"probeversion"`
	GroupName       string   `db:"groupname"`
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
}

// Snapshot serializes the metric into the field map the history diff
// engine and the tenant_history table operate on.
func (m *Metric) Snapshot() Snapshot {
	return Snapshot{
		"name":            m.Name,
		"mtype":           m.MType,
		"probeversion":    m.ProbeVersion,
		"group":           m.GroupName,
		"description":     m.Description,
		"parent":          m.Parent,
		"probeexecutable": m.ProbeExecutable,
		"config":          m.Config,
		"attribute":       m.Attribute,
		"dependency":      m.Dependency,
		"flags":           m.Flags,
		"files":           m.Files,
		"parameter":       m.Parameter,
		"fileparameter":   m.FileParameter,
		"tags":            JoinTags(m.Tags),
	}
}
