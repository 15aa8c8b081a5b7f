package repository

import (
	"context"

	"poem-backend/internal/domain"
)

// ProbesRepository is the public-schema probe catalog with its
// append-only version history.
type ProbesRepository interface {
	// ========== probe head ==========
	GetProbe(ctx context.Context, name string) (*domain.Probe, error)
	ListProbes(ctx context.Context) ([]*domain.Probe, error)
	CreateProbe(ctx context.Context, probe *domain.Probe) (int64, error)
	UpdateProbe(ctx context.Context, probe *domain.Probe) error

	// DeleteProbe removes the probe and every one of its history rows.
	// History cleanup is explicit; nothing cascades.
	DeleteProbe(ctx context.Context, name string) error

	// ========== version history (immutable rows) ==========
	InsertProbeHistory(ctx context.Context, h *domain.ProbeHistory) (int64, error)

	// LatestProbeHistory returns the newest snapshot for a probe, or
	// sql.ErrNoRows when none exists yet.
	LatestProbeHistory(ctx context.Context, objectID int64) (*domain.ProbeHistory, error)
	ListProbeHistory(ctx context.Context, objectID int64) ([]*domain.ProbeHistory, error)

	// GetProbeHistoryByID resolves a snapshot by primary key (used when
	// following a template's probekey).
	GetProbeHistoryByID(ctx context.Context, id int64) (*domain.ProbeHistory, error)

	// GetProbeHistory resolves a snapshot by the cross-schema natural
	// key (probe name, package version) that tenant metrics store.
	GetProbeHistory(ctx context.Context, probeName, packageVersion string) (*domain.ProbeHistory, error)
}

// PackagesRepository is the read-mostly OS package catalog.
type PackagesRepository interface {
	GetPackage(ctx context.Context, name, version string) (*domain.Package, error)
	GetPackageByID(ctx context.Context, id int64) (*domain.Package, error)
	ListPackages(ctx context.Context) ([]*domain.Package, error)
	CreatePackage(ctx context.Context, pkg *domain.Package, repoIDs []int64) (int64, error)
	ListYumRepos(ctx context.Context) ([]*domain.YumRepo, error)
}
