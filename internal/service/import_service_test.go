package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"poem-backend/internal/domain"
	"poem-backend/internal/repository"
	"poem-backend/internal/store"
)

type importFixture struct {
	tenants   *repository.MemoryTenantsRepository
	probes    *repository.MemoryProbesRepository
	templates *repository.MemoryMetricTemplatesRepository
	metrics   *repository.MemoryMetricsRepository
	history   *repository.MemoryHistoryRepository
	webapi    *fakeProfileAPI
	reports   *store.SyncReports
	svc       *ImportService
}

func newImportFixture(t *testing.T) *importFixture {
	t.Helper()
	f := &importFixture{
		tenants:   repository.NewMemoryTenantsRepository(),
		probes:    repository.NewMemoryProbesRepository(),
		templates: repository.NewMemoryMetricTemplatesRepository(),
		metrics:   repository.NewMemoryMetricsRepository(),
		history:   repository.NewMemoryHistoryRepository(),
		webapi:    newFakeProfileAPI(),
		reports:   store.NewSyncReports(store.NewMemoryKV()),
	}
	f.svc = NewImportService(f.templates, f.probes, f.metrics, f.history,
		f.tenants, f.webapi, f.reports, zap.NewNop())
	return f
}

func (f *importFixture) seedProbeVersion(t *testing.T, probeName, pkgName, pkgVersion string) *domain.ProbeHistory {
	t.Helper()
	h := &domain.ProbeHistory{
		Name:           probeName,
		PackageName:    pkgName,
		PackageVersion: pkgVersion,
	}
	_, err := f.probes.InsertProbeHistory(context.Background(), h)
	require.NoError(t, err)
	return h
}

func (f *importFixture) seedTemplate(t *testing.T, name string, probeKeyID *int64, probeVersion string) *domain.MetricTemplate {
	t.Helper()
	tmpl := &domain.MetricTemplate{
		Name:         name,
		MType:        domain.MTypeActive,
		ProbeKeyID:   probeKeyID,
		Config:       `["maxCheckAttempts 3","timeout 60","path /usr/libexec/argo-monitoring/probes"]`,
		Tags:         []string{"argo"},
		ProbeVersion: probeVersion,
	}
	if probeKeyID == nil {
		tmpl.MType = domain.MTypePassive
		tmpl.Config = ""
	}
	_, err := f.templates.CreateTemplate(context.Background(), tmpl)
	require.NoError(t, err)
	return tmpl
}

func TestImportMetricsWithNativeProbeVersion(t *testing.T) {
	f := newImportFixture(t)
	tc := f.tenants.AddTenant("egi", "egi").Context()
	h := f.seedProbeVersion(t, "check_http", "nagios-plugins-http", "2.0.0")
	f.seedTemplate(t, "argo.API-Check", &h.ID, h.ProbeVersion())

	result := f.svc.ImportMetrics(context.Background(), tc, []string{"argo.API-Check"}, "poem")

	assert.Equal(t, []string{"argo.API-Check"}, result.Imported)
	assert.Empty(t, result.Warned)
	assert.Empty(t, result.Errored)
	assert.Empty(t, result.Unavailable)

	metric, err := f.metrics.GetMetric(context.Background(), tc, "argo.API-Check")
	require.NoError(t, err)
	assert.Equal(t, "check_http (2.0.0)", metric.ProbeVersion)
	assert.Equal(t, "EGI", metric.GroupName)
	assert.Equal(t, []string{"argo"}, metric.Tags)

	versions, err := f.history.ListTenantHistory(context.Background(), tc, metric.ID, domain.ContentMetric)
	require.NoError(t, err)
	require.Len(t, versions, 1)
	assert.Equal(t, "Initial version.", versions[0].Comment)
	assert.Equal(t, "poem", versions[0].VersionUser)
}

func TestImportMetricsSubstitutesInstalledVersion(t *testing.T) {
	f := newImportFixture(t)
	tc := f.tenants.AddTenant("egi", "egi").Context()
	oldVersion := f.seedProbeVersion(t, "check_http", "nagios-plugins-http", "1.9.0")
	native := f.seedProbeVersion(t, "check_http", "nagios-plugins-http", "2.0.0")
	tmpl := f.seedTemplate(t, "argo.API-Check", &native.ID, native.ProbeVersion())

	// The template as it looked when the tenant's package version was
	// current.
	_, err := f.templates.InsertTemplateHistory(context.Background(), &domain.MetricTemplateHistory{
		ObjectID:     tmpl.ID,
		Name:         tmpl.Name,
		MType:        tmpl.MType,
		ProbeKeyID:   &oldVersion.ID,
		Config:       `["maxCheckAttempts 2","timeout 30"]`,
		Tags:         tmpl.Tags,
		ProbeVersion: oldVersion.ProbeVersion(),
	})
	require.NoError(t, err)

	// An existing metric pins the tenant to the older package version.
	_, err = f.metrics.CreateMetric(context.Background(), tc, &domain.Metric{
		Name:         "argo.Other-Check",
		MType:        domain.MTypeActive,
		ProbeVersion: "check_http (1.9.0)",
	})
	require.NoError(t, err)

	result := f.svc.ImportMetrics(context.Background(), tc, []string{"argo.API-Check"}, "poem")

	assert.Empty(t, result.Imported)
	assert.Equal(t, []string{"argo.API-Check"}, result.Warned)
	assert.Empty(t, result.Unavailable)

	metric, err := f.metrics.GetMetric(context.Background(), tc, "argo.API-Check")
	require.NoError(t, err)
	assert.Equal(t, "check_http (1.9.0)", metric.ProbeVersion)
	assert.Equal(t, `["maxCheckAttempts 2","timeout 30"]`, metric.Config)
}

func TestImportMetricsUnavailableWithoutMatchingHistory(t *testing.T) {
	f := newImportFixture(t)
	tc := f.tenants.AddTenant("egi", "egi").Context()
	f.seedProbeVersion(t, "check_http", "nagios-plugins-http", "1.9.0")
	native := f.seedProbeVersion(t, "check_http", "nagios-plugins-http", "2.0.0")
	f.seedTemplate(t, "argo.API-Check", &native.ID, native.ProbeVersion())

	_, err := f.metrics.CreateMetric(context.Background(), tc, &domain.Metric{
		Name:         "argo.Other-Check",
		MType:        domain.MTypeActive,
		ProbeVersion: "check_http (1.9.0)",
	})
	require.NoError(t, err)

	result := f.svc.ImportMetrics(context.Background(), tc, []string{"argo.API-Check"}, "poem")

	assert.Equal(t, []string{"argo.API-Check"}, result.Unavailable)
	assert.Empty(t, result.Imported)
	assert.Empty(t, result.Warned)
	assert.Empty(t, result.Errored)

	_, err = f.metrics.GetMetric(context.Background(), tc, "argo.API-Check")
	assert.ErrorIs(t, err, sql.ErrNoRows)
}

func TestImportMetricsDuplicateNameErrored(t *testing.T) {
	f := newImportFixture(t)
	tc := f.tenants.AddTenant("egi", "egi").Context()
	h := f.seedProbeVersion(t, "check_http", "nagios-plugins-http", "2.0.0")
	f.seedTemplate(t, "argo.API-Check", &h.ID, h.ProbeVersion())

	_, err := f.metrics.CreateMetric(context.Background(), tc, &domain.Metric{
		Name:         "argo.API-Check",
		MType:        domain.MTypeActive,
		ProbeVersion: "check_http (2.0.0)",
	})
	require.NoError(t, err)

	result := f.svc.ImportMetrics(context.Background(), tc, []string{"argo.API-Check"}, "poem")
	assert.Equal(t, []string{"argo.API-Check"}, result.Errored)
	assert.Empty(t, result.Imported)
}

func TestImportMetricsSkipsUnknownTemplates(t *testing.T) {
	f := newImportFixture(t)
	tc := f.tenants.AddTenant("egi", "egi").Context()

	result := f.svc.ImportMetrics(context.Background(), tc, []string{"no.Such-Template"}, "poem")
	assert.Empty(t, result.Imported)
	assert.Empty(t, result.Warned)
	assert.Empty(t, result.Errored)
	assert.Empty(t, result.Unavailable)
}

func TestImportMetricsPassiveTemplate(t *testing.T) {
	f := newImportFixture(t)
	tc := f.tenants.AddTenant("egi", "egi").Context()
	f.seedTemplate(t, "org.apel.APEL-Pub", nil, "")

	result := f.svc.ImportMetrics(context.Background(), tc, []string{"org.apel.APEL-Pub"}, "poem")
	assert.Equal(t, []string{"org.apel.APEL-Pub"}, result.Imported)

	metric, err := f.metrics.GetMetric(context.Background(), tc, "org.apel.APEL-Pub")
	require.NoError(t, err)
	assert.Equal(t, domain.MTypePassive, metric.MType)
	assert.Equal(t, "", metric.ProbeVersion)
}

func TestSyncMetricsReconcilesAgainstProfiles(t *testing.T) {
	f := newImportFixture(t)
	tenant := f.tenants.AddTenant("egi", "egi")
	tc := tenant.Context()
	h := f.seedProbeVersion(t, "check_http", "nagios-plugins-http", "2.0.0")
	f.seedTemplate(t, "argo.API-Check", &h.ID, h.ProbeVersion())

	// Local state: one metric the profiles still want, one they no
	// longer reference.
	for _, name := range []string{"existing.Keep", "stale.Delete"} {
		m := &domain.Metric{Name: name, MType: domain.MTypePassive}
		_, err := f.metrics.CreateMetric(context.Background(), tc, m)
		require.NoError(t, err)
		data, err := m.Snapshot().Encode()
		require.NoError(t, err)
		_, err = f.history.InsertTenantHistory(context.Background(), tc, &domain.TenantHistory{
			ObjectID:       m.ID,
			ContentType:    domain.ContentMetric,
			SerializedData: data,
			ObjectRepr:     m.Name,
			Comment:        "Initial version.",
		})
		require.NoError(t, err)
	}

	require.NoError(t, f.tenants.SaveAPIKey(context.Background(), "WEB-API-egi", "token-egi"))
	f.webapi.profiles["token-egi"] = []WebAPIMetricProfile{{
		ID:   "11110000-aaaa-4aaa-aaaa-000000000001",
		Name: "ARGO_MON",
		Services: []WebAPIService{
			{Service: "argo.api", Metrics: []string{"argo.API-Check", "existing.Keep"}},
		},
	}}

	result, err := f.svc.SyncMetrics(context.Background(), tc, "poem")
	require.NoError(t, err)

	assert.Equal(t, []string{"argo.API-Check"}, result.Imported)
	assert.Equal(t, []string{"stale.Delete"}, result.Deleted)
	assert.Empty(t, result.Errored)

	_, err = f.metrics.GetMetric(context.Background(), tc, "stale.Delete")
	assert.ErrorIs(t, err, sql.ErrNoRows)

	// The deleted metric's history is gone too.
	kept, err := f.metrics.GetMetric(context.Background(), tc, "existing.Keep")
	require.NoError(t, err)
	versions, err := f.history.ListTenantHistory(context.Background(), tc, kept.ID, domain.ContentMetric)
	require.NoError(t, err)
	assert.Len(t, versions, 1)

	// The summary is cached for the UI.
	payload, err := f.reports.GetSyncReport(context.Background(), tc.Name)
	require.NoError(t, err)
	var cached SyncResult
	require.NoError(t, json.Unmarshal(payload, &cached))
	assert.Equal(t, result.Deleted, cached.Deleted)
}

func TestSyncMetricsRequiresAPIKey(t *testing.T) {
	f := newImportFixture(t)
	tc := f.tenants.AddTenant("egi", "egi").Context()

	_, err := f.svc.SyncMetrics(context.Background(), tc, "poem")
	assert.ErrorIs(t, err, sql.ErrNoRows)
}
