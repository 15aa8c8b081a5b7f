package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"sort"
	"strings"

	"go.uber.org/zap"

	"poem-backend/internal/domain"
	"poem-backend/internal/history"
	"poem-backend/internal/repository"
)

// ImportResult is the partial-result summary of one import batch. A
// single call can succeed for some templates and fail for others; the
// caller renders all four buckets in one response.
type ImportResult struct {
	Imported    []string `json:"imported"`
	Warned      []string `json:"warned"`
	Errored     []string `json:"errored"`
	Unavailable []string `json:"unavailable"`
}

// SyncResult extends an import summary with the metrics removed
// because no profile references them anymore.
type SyncResult struct {
	ImportResult
	Deleted []string `json:"deleted"`
}

// SyncReportCache keeps the last sync summary per tenant so the UI can
// show it without re-running the reconciliation.
type SyncReportCache interface {
	SetSyncReport(ctx context.Context, tenant string, report []byte) error
	GetSyncReport(ctx context.Context, tenant string) ([]byte, error)
}

// ImportService copies public metric template definitions into tenant
// schemas as metrics, resolving probe versions against what the tenant
// actually has installed, and reconciles the tenant's metric set
// against its external metric profiles.
type ImportService struct {
	templates repository.MetricTemplatesRepository
	probes    repository.ProbesRepository
	metrics   repository.MetricsRepository
	history   repository.HistoryRepository
	tenants   repository.TenantsRepository
	webapi    ProfileAPI
	reports   SyncReportCache
	logger    *zap.Logger
}

func NewImportService(
	templates repository.MetricTemplatesRepository,
	probes repository.ProbesRepository,
	metrics repository.MetricsRepository,
	historyRepo repository.HistoryRepository,
	tenants repository.TenantsRepository,
	webapi ProfileAPI,
	reports SyncReportCache,
	logger *zap.Logger,
) *ImportService {
	return &ImportService{
		templates: templates,
		probes:    probes,
		metrics:   metrics,
		history:   historyRepo,
		tenants:   tenants,
		webapi:    webapi,
		reports:   reports,
		logger:    logger,
	}
}

// ImportMetrics creates one tenant metric per requested template name.
// Unknown template names are skipped silently. Each name lands in
// exactly one bucket: imported (template's own pinned probe version),
// warned (created against the tenant's older installed version),
// errored (name already taken, or the write failed), or unavailable
// (the tenant's installed version has no matching template history).
func (s *ImportService) ImportMetrics(ctx context.Context, tc domain.TenantContext, names []string, user string) ImportResult {
	var result ImportResult

	installed, err := s.installedPackages(ctx, tc)
	if err != nil {
		s.logger.Error("Failed to resolve tenant's installed packages",
			zap.String("tenant", tc.Name),
			zap.Error(err),
		)
		result.Errored = append(result.Errored, names...)
		return result
	}

	for _, name := range names {
		tmpl, err := s.templates.GetTemplate(ctx, name)
		if errors.Is(err, sql.ErrNoRows) {
			continue
		}
		if err != nil {
			s.logger.Error("Failed to load metric template",
				zap.String("template", name), zap.Error(err))
			result.Errored = append(result.Errored, name)
			continue
		}

		metric, substituted, err := s.resolveMetric(ctx, tmpl, installed)
		if errors.Is(err, errUnavailable) {
			result.Unavailable = append(result.Unavailable, name)
			continue
		}
		if err != nil {
			s.logger.Error("Failed to resolve probe version for template",
				zap.String("template", name),
				zap.String("tenant", tc.Name),
				zap.Error(err),
			)
			result.Errored = append(result.Errored, name)
			continue
		}
		metric.GroupName = strings.ToUpper(tc.Name)

		if err := s.createMetric(ctx, tc, metric, user); err != nil {
			if !errors.Is(err, repository.ErrDuplicate) {
				s.logger.Error("Failed to import metric",
					zap.String("metric", metric.Name),
					zap.String("tenant", tc.Name),
					zap.Error(err),
				)
			}
			result.Errored = append(result.Errored, name)
			continue
		}
		if substituted {
			result.Warned = append(result.Warned, name)
		} else {
			result.Imported = append(result.Imported, name)
		}
	}
	return result
}

// errUnavailable marks a template that exists but cannot be imported
// as-is for this tenant.
var errUnavailable = errors.New("no compatible probe version for tenant")

// resolveMetric builds the tenant metric from the template, pinning the
// probe version to what the tenant has installed when the template's
// package lags behind or ahead of the tenant. Returns substituted=true
// when the tenant's installed version replaced the template's own.
func (s *ImportService) resolveMetric(ctx context.Context, tmpl *domain.MetricTemplate, installed map[string]string) (*domain.Metric, bool, error) {
	if tmpl.ProbeKeyID == nil {
		return metricFromTemplate(tmpl, ""), false, nil
	}

	native, err := s.probes.GetProbeHistoryByID(ctx, *tmpl.ProbeKeyID)
	if err != nil {
		return nil, false, err
	}

	installedVersion, ok := installed[native.PackageName]
	if !ok || installedVersion == native.PackageVersion {
		return metricFromTemplate(tmpl, native.ProbeVersion()), false, nil
	}

	// Tenant runs a different version of the probe's package: pin to
	// the installed one and replay the template as it was then.
	substituted, err := s.probes.GetProbeHistory(ctx, native.Name, installedVersion)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, errUnavailable
	}
	if err != nil {
		return nil, false, err
	}
	th, err := s.templates.GetTemplateHistory(ctx, tmpl.Name, substituted.ID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, errUnavailable
	}
	if err != nil {
		return nil, false, err
	}
	return metricFromTemplateHistory(th, substituted.ProbeVersion()), true, nil
}

func metricFromTemplate(t *domain.MetricTemplate, probeVersion string) *domain.Metric {
	return &domain.Metric{
		Name:            t.Name,
		MType:           t.MType,
		ProbeVersion:    probeVersion,
		Description:     t.Description,
		Parent:          t.Parent,
		ProbeExecutable: t.ProbeExecutable,
		Config:          t.Config,
		Attribute:       t.Attribute,
		Dependency:      t.Dependency,
		Flags:           t.Flags,
		Files:           t.Files,
		Parameter:       t.Parameter,
		FileParameter:   t.FileParameter,
		Tags:            t.Tags,
	}
}

func metricFromTemplateHistory(h *domain.MetricTemplateHistory, probeVersion string) *domain.Metric {
	return &domain.Metric{
		Name:            h.Name,
		MType:           h.MType,
		ProbeVersion:    probeVersion,
		Description:     h.Description,
		Parent:          h.Parent,
		ProbeExecutable: h.ProbeExecutable,
		Config:          h.Config,
		Attribute:       h.Attribute,
		Dependency:      h.Dependency,
		Flags:           h.Flags,
		Files:           h.Files,
		Parameter:       h.Parameter,
		FileParameter:   h.FileParameter,
		Tags:            h.Tags,
	}
}

// createMetric inserts the row plus its first history entry. A
// tenant's own history always starts at "Initial version.", no matter
// how long the public template's history is.
func (s *ImportService) createMetric(ctx context.Context, tc domain.TenantContext, metric *domain.Metric, user string) error {
	if _, err := s.metrics.CreateMetric(ctx, tc, metric); err != nil {
		return err
	}
	data, err := metric.Snapshot().Encode()
	if err != nil {
		return err
	}
	_, err = s.history.InsertTenantHistory(ctx, tc, &domain.TenantHistory{
		ObjectID:       metric.ID,
		ContentType:    domain.ContentMetric,
		SerializedData: data,
		ObjectRepr:     metric.Name,
		Comment:        history.InitialVersion,
		VersionUser:    user,
	})
	return err
}

// installedPackages reverse-resolves the tenant's installed package
// set from its existing metrics' probe-version strings. The result
// maps package name to installed version.
func (s *ImportService) installedPackages(ctx context.Context, tc domain.TenantContext) (map[string]string, error) {
	metrics, err := s.metrics.ListMetrics(ctx, tc)
	if err != nil {
		return nil, err
	}
	installed := map[string]string{}
	for _, m := range metrics {
		probeName, pkgVersion, ok := domain.ParseProbeVersion(m.ProbeVersion)
		if !ok {
			continue
		}
		h, err := s.probes.GetProbeHistory(ctx, probeName, pkgVersion)
		if errors.Is(err, sql.ErrNoRows) {
			continue
		}
		if err != nil {
			return nil, err
		}
		installed[h.PackageName] = pkgVersion
	}
	return installed, nil
}

// SyncMetrics reconciles the tenant's metric set against the metric
// names referenced by its external metric profiles: imports the
// missing ones and hard-deletes, history included, the ones no profile
// references anymore. The summary is cached for the UI.
func (s *ImportService) SyncMetrics(ctx context.Context, tc domain.TenantContext, user string) (SyncResult, error) {
	var result SyncResult

	token, err := s.tenants.GetAPIKey(ctx, "WEB-API-"+tc.Name)
	if err != nil {
		return result, err
	}
	profiles, err := s.webapi.ListMetricProfiles(ctx, token)
	if err != nil {
		return result, err
	}
	inProfiles := map[string]bool{}
	for _, profile := range profiles {
		for _, svc := range profile.Services {
			for _, metric := range svc.Metrics {
				inProfiles[metric] = true
			}
		}
	}

	local, err := s.metrics.ListMetrics(ctx, tc)
	if err != nil {
		return result, err
	}
	localNames := map[string]bool{}
	for _, m := range local {
		localNames[m.Name] = true
	}

	var missing []string
	for name := range inProfiles {
		if !localNames[name] {
			missing = append(missing, name)
		}
	}
	sort.Strings(missing)
	result.ImportResult = s.ImportMetrics(ctx, tc, missing, user)

	for _, m := range local {
		if inProfiles[m.Name] {
			continue
		}
		id, err := s.metrics.DeleteMetric(ctx, tc, m.Name)
		if err != nil {
			s.logger.Error("Failed to delete unreferenced metric",
				zap.String("metric", m.Name),
				zap.String("tenant", tc.Name),
				zap.Error(err),
			)
			result.Errored = append(result.Errored, m.Name)
			continue
		}
		if err := s.history.DeleteTenantHistory(ctx, tc, id, domain.ContentMetric); err != nil {
			s.logger.Error("Failed to delete history of removed metric",
				zap.String("metric", m.Name),
				zap.String("tenant", tc.Name),
				zap.Error(err),
			)
			result.Errored = append(result.Errored, m.Name)
			continue
		}
		result.Deleted = append(result.Deleted, m.Name)
	}
	sort.Strings(result.Deleted)

	s.cacheSyncReport(ctx, tc.Name, result)
	return result, nil
}

func (s *ImportService) cacheSyncReport(ctx context.Context, tenant string, result SyncResult) {
	if s.reports == nil {
		return
	}
	payload, err := json.Marshal(result)
	if err != nil {
		s.logger.Error("Failed to serialize sync report", zap.Error(err))
		return
	}
	if err := s.reports.SetSyncReport(ctx, tenant, payload); err != nil {
		s.logger.Warn("Failed to cache sync report",
			zap.String("tenant", tenant),
			zap.Error(err),
		)
	}
}
