package domain

// PresentVersion is the sentinel version string for packages flagged
// use_present_version: the probe always tracks whatever version is
// currently installed, so the catalog stores no pinned version.
const PresentVersion = "present"

// YumRepo is an OS package repository a Package can be served from.
type YumRepo struct {
	ID   int64  `db:"repo_id"`
	Name string `db:"repo_name"`
	Tag  string `db:"tag"` // OS tag, e.g. "CentOS 7"
}

// Package is an installable probe package. Identity key: (name, version).
type Package struct {
	ID                int64  `db:"package_id"`
	Name              string `db:"package_name"`
	Version           string `db:"version"`
	UsePresentVersion bool   `db:"use_present_version"`
}

// EffectiveVersion returns the version string used everywhere a probe
// version is rendered: the sentinel "present" wins over the stored value.
func (p *Package) EffectiveVersion() string {
	if p.UsePresentVersion {
		return PresentVersion
	}
	return p.Version
}
