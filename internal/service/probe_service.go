package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"poem-backend/internal/domain"
	"poem-backend/internal/history"
	"poem-backend/internal/repository"
)

// ProbeService manages the public probe and package catalog. A probe
// edit that moves it to a new package version fans out through the
// template service into every tenant schema.
type ProbeService struct {
	probes    repository.ProbesRepository
	packages  repository.PackagesRepository
	templates *MetricTemplateService
	logger    *zap.Logger
}

func NewProbeService(
	probes repository.ProbesRepository,
	packages repository.PackagesRepository,
	templates *MetricTemplateService,
	logger *zap.Logger,
) *ProbeService {
	return &ProbeService{
		probes:    probes,
		packages:  packages,
		templates: templates,
		logger:    logger,
	}
}

func (s *ProbeService) GetProbe(ctx context.Context, name string) (*domain.Probe, error) {
	return s.probes.GetProbe(ctx, name)
}

func (s *ProbeService) ListProbes(ctx context.Context) ([]*domain.Probe, error) {
	return s.probes.ListProbes(ctx)
}

// ListProbeVersions returns the probe's history, newest first.
func (s *ProbeService) ListProbeVersions(ctx context.Context, name string) ([]*domain.ProbeHistory, error) {
	probe, err := s.probes.GetProbe(ctx, name)
	if err != nil {
		return nil, err
	}
	return s.probes.ListProbeHistory(ctx, probe.ID)
}

// CreateProbe inserts the probe and its first version row.
func (s *ProbeService) CreateProbe(ctx context.Context, probe *domain.Probe, user string) error {
	if err := s.resolvePackage(ctx, probe); err != nil {
		return err
	}
	if _, err := s.probes.CreateProbe(ctx, probe); err != nil {
		return err
	}
	_, err := s.probes.InsertProbeHistory(ctx, probeHistoryRow(probe, history.InitialVersion, user))
	return err
}

// UpdateProbe persists the edit and appends a version row with the
// computed change comment. When the edit moves the probe to a new
// package version, every template pinned to the previous version is
// repinned and the change propagated into tenant schemas; the returned
// messages are the per-tenant failures of that fan-out.
func (s *ProbeService) UpdateProbe(ctx context.Context, oldName string, probe *domain.Probe, user string) ([]string, error) {
	old, err := s.probes.GetProbe(ctx, oldName)
	if err != nil {
		return nil, err
	}
	probe.ID = old.ID
	if err := s.resolvePackage(ctx, probe); err != nil {
		return nil, err
	}

	if err := s.probes.UpdateProbe(ctx, probe); err != nil {
		return nil, err
	}

	comment := history.InitialVersion
	var last *domain.ProbeHistory
	last, err = s.probes.LatestProbeHistory(ctx, probe.ID)
	switch {
	case err == nil:
		comment, err = history.CreateComment(history.ProbeFields,
			probeHistorySnapshot(last), probeSnapshot(probe))
		if err != nil {
			return nil, err
		}
	case errors.Is(err, sql.ErrNoRows):
		last = nil
	default:
		return nil, err
	}

	row := probeHistoryRow(probe, comment, user)
	if _, err := s.probes.InsertProbeHistory(ctx, row); err != nil {
		return nil, err
	}

	if last != nil && last.PackageVersion != probe.PackageVersion {
		return s.templates.PropagateNewProbeVersion(ctx, last.ID, row, user), nil
	}
	return nil, nil
}

// DeleteProbe removes the probe together with its version history.
func (s *ProbeService) DeleteProbe(ctx context.Context, name string) error {
	return s.probes.DeleteProbe(ctx, name)
}

func (s *ProbeService) ListPackages(ctx context.Context) ([]*domain.Package, error) {
	return s.packages.ListPackages(ctx)
}

func (s *ProbeService) ListYumRepos(ctx context.Context) ([]*domain.YumRepo, error) {
	return s.packages.ListYumRepos(ctx)
}

// CreatePackage registers a new package version linked to the given
// yum repos.
func (s *ProbeService) CreatePackage(ctx context.Context, pkg *domain.Package, repoIDs []int64) error {
	_, err := s.packages.CreatePackage(ctx, pkg, repoIDs)
	return err
}

// resolvePackage fills the denormalized package name and effective
// version from the referenced package row.
func (s *ProbeService) resolvePackage(ctx context.Context, probe *domain.Probe) error {
	pkg, err := s.packages.GetPackageByID(ctx, probe.PackageID)
	if err != nil {
		return fmt.Errorf("failed to resolve probe package: %w", err)
	}
	probe.PackageName = pkg.Name
	probe.PackageVersion = pkg.EffectiveVersion()
	return nil
}

func probeSnapshot(p *domain.Probe) domain.Snapshot {
	return domain.Snapshot{
		"name":        p.Name,
		"version":     p.PackageVersion,
		"package":     fmt.Sprintf("%s (%s)", p.PackageName, p.PackageVersion),
		"description": p.Description,
		"comment":     p.Comment,
		"repository":  p.Repository,
		"docurl":      p.DocURL,
	}
}

func probeHistorySnapshot(h *domain.ProbeHistory) domain.Snapshot {
	return domain.Snapshot{
		"name":        h.Name,
		"version":     h.PackageVersion,
		"package":     h.PackageString(),
		"description": h.Description,
		"comment":     h.Comment,
		"repository":  h.Repository,
		"docurl":      h.DocURL,
	}
}

func probeHistoryRow(p *domain.Probe, comment, user string) *domain.ProbeHistory {
	return &domain.ProbeHistory{
		ObjectID:       p.ID,
		Name:           p.Name,
		PackageID:      p.PackageID,
		Description:    p.Description,
		Comment:        p.Comment,
		Repository:     p.Repository,
		DocURL:         p.DocURL,
		VersionComment: comment,
		VersionUser:    user,
		PackageName:    p.PackageName,
		PackageVersion: p.PackageVersion,
	}
}
