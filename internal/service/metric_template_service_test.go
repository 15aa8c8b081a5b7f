package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"poem-backend/internal/domain"
	"poem-backend/internal/history"
	"poem-backend/internal/repository"
)

type catalogFixture struct {
	tenants   *repository.MemoryTenantsRepository
	probes    *repository.MemoryProbesRepository
	packages  *repository.MemoryPackagesRepository
	templates *repository.MemoryMetricTemplatesRepository
	metrics   *repository.MemoryMetricsRepository
	history   *repository.MemoryHistoryRepository
	webapi    *fakeProfileAPI

	templateSvc *MetricTemplateService
	probeSvc    *ProbeService
}

func newCatalogFixture(t *testing.T) *catalogFixture {
	t.Helper()
	f := &catalogFixture{
		tenants:   repository.NewMemoryTenantsRepository(),
		probes:    repository.NewMemoryProbesRepository(),
		packages:  repository.NewMemoryPackagesRepository(),
		templates: repository.NewMemoryMetricTemplatesRepository(),
		metrics:   repository.NewMemoryMetricsRepository(),
		history:   repository.NewMemoryHistoryRepository(),
		webapi:    newFakeProfileAPI(),
	}
	propagation := NewPropagationService(f.tenants, f.metrics, f.history, f.webapi, zap.NewNop())
	f.templateSvc = NewMetricTemplateService(f.templates, f.probes, propagation, zap.NewNop())
	f.probeSvc = NewProbeService(f.probes, f.packages, f.templateSvc, zap.NewNop())
	return f
}

func TestCreateTemplateRecordsInitialVersion(t *testing.T) {
	f := newCatalogFixture(t)
	h := &domain.ProbeHistory{Name: "check_http", PackageName: "nagios-plugins-http", PackageVersion: "2.0.0"}
	_, err := f.probes.InsertProbeHistory(context.Background(), h)
	require.NoError(t, err)

	tmpl := &domain.MetricTemplate{
		Name:       "argo.API-Check",
		MType:      domain.MTypeActive,
		ProbeKeyID: &h.ID,
		Config:     `["maxCheckAttempts 3","timeout 60"]`,
	}
	require.NoError(t, f.templateSvc.CreateTemplate(context.Background(), tmpl, "poem"))
	assert.Equal(t, "check_http (2.0.0)", tmpl.ProbeVersion)

	versions, err := f.templateSvc.ListTemplateVersions(context.Background(), "argo.API-Check")
	require.NoError(t, err)
	require.Len(t, versions, 1)
	assert.Equal(t, "Initial version.", versions[0].VersionComment)
}

func TestUpdateTemplateRenamePropagatesToTenants(t *testing.T) {
	f := newCatalogFixture(t)
	tenant := f.tenants.AddTenant("egi", "egi")
	tc := tenant.Context()

	h := &domain.ProbeHistory{Name: "check_http", PackageName: "nagios-plugins-http", PackageVersion: "2.0.0"}
	_, err := f.probes.InsertProbeHistory(context.Background(), h)
	require.NoError(t, err)

	tmpl := &domain.MetricTemplate{
		Name:       "argo.API-Check",
		MType:      domain.MTypeActive,
		ProbeKeyID: &h.ID,
		Config:     `["maxCheckAttempts 3","timeout 60"]`,
	}
	require.NoError(t, f.templateSvc.CreateTemplate(context.Background(), tmpl, "poem"))

	_, err = f.metrics.CreateMetric(context.Background(), tc, &domain.Metric{
		Name:         "argo.API-Check",
		MType:        domain.MTypeActive,
		ProbeVersion: "check_http (2.0.0)",
		GroupName:    "EGI",
		Config:       tmpl.Config,
	})
	require.NoError(t, err)
	require.NoError(t, f.tenants.SaveAPIKey(context.Background(), "WEB-API-egi", "token-egi"))

	updated := &domain.MetricTemplate{
		Name:       "argo.API-Status",
		MType:      domain.MTypeActive,
		ProbeKeyID: &h.ID,
		Config:     tmpl.Config,
	}
	msgs, err := f.templateSvc.UpdateTemplate(context.Background(), "argo.API-Check", updated, "poem")
	require.NoError(t, err)
	assert.Empty(t, msgs)

	// Template history got the diff comment.
	versions, err := f.templateSvc.ListTemplateVersions(context.Background(), "argo.API-Status")
	require.NoError(t, err)
	require.Len(t, versions, 2)
	assert.Equal(t, "Changed name.", history.NewComment(versions[0].VersionComment))

	// The tenant's derived copy followed the rename.
	metric, err := f.metrics.GetMetric(context.Background(), tc, "argo.API-Status")
	require.NoError(t, err)
	assert.Equal(t, "argo.API-Status", metric.Name)
}

func TestProbeVersionBumpRepinsTemplatesAndTenants(t *testing.T) {
	f := newCatalogFixture(t)
	tenant := f.tenants.AddTenant("egi", "egi")
	tc := tenant.Context()

	oldPkg := &domain.Package{Name: "nagios-plugins-http", Version: "2.0.0"}
	_, err := f.packages.CreatePackage(context.Background(), oldPkg, nil)
	require.NoError(t, err)
	newPkg := &domain.Package{Name: "nagios-plugins-http", Version: "2.1.0"}
	_, err = f.packages.CreatePackage(context.Background(), newPkg, nil)
	require.NoError(t, err)

	probe := &domain.Probe{Name: "check_http", PackageID: oldPkg.ID}
	require.NoError(t, f.probeSvc.CreateProbe(context.Background(), probe, "poem"))

	oldHist, err := f.probes.LatestProbeHistory(context.Background(), probe.ID)
	require.NoError(t, err)

	tmpl := &domain.MetricTemplate{
		Name:       "argo.API-Check",
		MType:      domain.MTypeActive,
		ProbeKeyID: &oldHist.ID,
		Config:     `["maxCheckAttempts 3","timeout 60"]`,
	}
	require.NoError(t, f.templateSvc.CreateTemplate(context.Background(), tmpl, "poem"))

	_, err = f.metrics.CreateMetric(context.Background(), tc, &domain.Metric{
		Name:         "argo.API-Check",
		MType:        domain.MTypeActive,
		ProbeVersion: "check_http (2.0.0)",
		GroupName:    "EGI",
		Config:       tmpl.Config,
	})
	require.NoError(t, err)

	bumped := &domain.Probe{Name: "check_http", PackageID: newPkg.ID}
	msgs, err := f.probeSvc.UpdateProbe(context.Background(), "check_http", bumped, "poem")
	require.NoError(t, err)
	assert.Empty(t, msgs)

	repinned, err := f.templateSvc.GetTemplate(context.Background(), "argo.API-Check")
	require.NoError(t, err)
	assert.Equal(t, "check_http (2.1.0)", repinned.ProbeVersion)

	metric, err := f.metrics.GetMetric(context.Background(), tc, "argo.API-Check")
	require.NoError(t, err)
	assert.Equal(t, "check_http (2.1.0)", metric.ProbeVersion)
}
