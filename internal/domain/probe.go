package domain

import (
	"fmt"
	"strings"
	"time"
)

// Probe is the mutable head of a monitoring plugin definition
// (public schema). Every edit appends a ProbeHistory snapshot.
type Probe struct {
	ID          int64     `db:"probe_id"`
	Name        string    `db:"probe_name"`
	PackageID   int64     `db:"package_id"`
	Description string    `db:"description"`
	Comment     string    `db:"comment"`
	Repository  string    `db:"repository"`
	DocURL      string    `db:"docurl"`
	User        string    `db:"version_user"`
	DateCreated time.Time `db:"date_created"`

	// Denormalized from the package row by the repository layer.
	PackageName    string `db:"-"`
	PackageVersion string `db:"-"`
}

// ProbeHistory is one immutable version snapshot of a probe. The newest
// row for an object_id is the probe's current version. Tenant metrics
// reference a ProbeHistory by the natural key (probe name, package
// version) rather than by foreign key, because the reference crosses
// schemas.
type ProbeHistory struct {
	ID             int64     `db:"probe_history_id"`
	ObjectID       int64     `db:"object_id"`
	Name           string    `db:"probe_name"`
	PackageID      int64     `db:"package_id"`
	Description    string    `db:"description"`
	Comment        string    `db:"comment"`
	Repository     string    `db:"repository"`
	DocURL         string    `db:"docurl"`
	DateCreated    time.Time `db:"date_created"`
	VersionComment string    `db:"version_comment"`
	VersionUser    string    `db:"version_user"`

	// Denormalized from the package row by the repository layer.
	PackageName    string `db:"-"`
	PackageVersion string `db:"-"`
}

// ProbeVersion renders the cross-schema natural key, e.g.
// "check_http (0.1.7)". Tenant metrics store exactly this string.
func (h *ProbeHistory) ProbeVersion() string {
	return fmt.Sprintf("%s (%s)", h.Name, h.PackageVersion)
}

// PackageString renders the package the way snapshots store it,
// e.g. "nagios-plugins-http (2.3.2)".
func (h *ProbeHistory) PackageString() string {
	return fmt.Sprintf("%s (%s)", h.PackageName, h.PackageVersion)
}

// ParseProbeVersion splits a stored "probe (version)" string back into
// its probe name and package version parts. Returns ok=false for
// strings not in that shape (e.g. the empty probeversion of a passive
// metric).
func ParseProbeVersion(s string) (name, version string, ok bool) {
	open := strings.LastIndex(s, " (")
	if open < 1 || !strings.HasSuffix(s, ")") {
		return "", "", false
	}
	return s[:open], s[open+2 : len(s)-1], true
}
