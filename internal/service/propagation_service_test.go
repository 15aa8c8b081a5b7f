package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"poem-backend/internal/domain"
	"poem-backend/internal/repository"
)

// fakeProfileAPI records calls and can fail per tenant token.
type fakeProfileAPI struct {
	profiles    map[string][]WebAPIMetricProfile // token -> profiles
	failTokens  map[string]bool
	listCalls   []string
	updateCalls []WebAPIMetricProfile
}

func newFakeProfileAPI() *fakeProfileAPI {
	return &fakeProfileAPI{
		profiles:   map[string][]WebAPIMetricProfile{},
		failTokens: map[string]bool{},
	}
}

func (f *fakeProfileAPI) ListMetricProfiles(_ context.Context, token string) ([]WebAPIMetricProfile, error) {
	f.listCalls = append(f.listCalls, token)
	if f.failTokens[token] {
		return nil, errors.New("metric profiles fetch returned 500 Internal Server Error")
	}
	return f.profiles[token], nil
}

func (f *fakeProfileAPI) UpdateMetricProfile(_ context.Context, token string, profile WebAPIMetricProfile) error {
	if f.failTokens[token] {
		return errors.New("metric profile update returned 500 Internal Server Error")
	}
	f.updateCalls = append(f.updateCalls, profile)
	return nil
}

type propagationFixture struct {
	tenants *repository.MemoryTenantsRepository
	metrics *repository.MemoryMetricsRepository
	history *repository.MemoryHistoryRepository
	webapi  *fakeProfileAPI
	svc     *PropagationService
}

func newPropagationFixture(t *testing.T) *propagationFixture {
	t.Helper()
	f := &propagationFixture{
		tenants: repository.NewMemoryTenantsRepository(),
		metrics: repository.NewMemoryMetricsRepository(),
		history: repository.NewMemoryHistoryRepository(),
		webapi:  newFakeProfileAPI(),
	}
	f.svc = NewPropagationService(f.tenants, f.metrics, f.history, f.webapi, zap.NewNop())
	return f
}

func (f *propagationFixture) seedMetric(t *testing.T, tc domain.TenantContext, m domain.Metric) *domain.Metric {
	t.Helper()
	_, err := f.metrics.CreateMetric(context.Background(), tc, &m)
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
	return &m
}

func activeCheck(name string) TemplateState {
	return TemplateState{
		Name:         name,
		MType:        domain.MTypeActive,
		ProbeVersion: "check_http (0.1.7)",
		Config:       `["maxCheckAttempts 3","timeout 60","path /usr/lib64/nagios/plugins"]`,
	}
}

func tenantMetric(name string) domain.Metric {
	return domain.Metric{
		Name:         name,
		MType:        domain.MTypeActive,
		ProbeVersion: "check_http (0.1.7)",
		GroupName:    "EGI",
		Config:       `["maxCheckAttempts 3","timeout 60","path /usr/lib64/nagios/plugins"]`,
	}
}

func TestUpdateMetricsRenamesAcrossTenants(t *testing.T) {
	f := newPropagationFixture(t)
	ta := f.tenants.AddTenant("egi", "egi")
	tb := f.tenants.AddTenant("sdc", "sdc")
	f.seedMetric(t, ta.Context(), tenantMetric("argo.API-Check"))
	f.seedMetric(t, tb.Context(), tenantMetric("argo.API-Check"))
	require.NoError(t, f.tenants.SaveAPIKey(context.Background(), "WEB-API-egi", "token-egi"))
	require.NoError(t, f.tenants.SaveAPIKey(context.Background(), "WEB-API-sdc", "token-sdc"))

	state := activeCheck("argo.API-Status")
	msgs := f.svc.UpdateMetrics(context.Background(), state, "argo.API-Check", "check_http (0.1.7)", "poem")
	assert.Empty(t, msgs)

	for _, tc := range []domain.TenantContext{ta.Context(), tb.Context()} {
		renamed, err := f.metrics.GetMetric(context.Background(), tc, "argo.API-Status")
		require.NoError(t, err)
		assert.Equal(t, "argo.API-Status", renamed.Name)

		versions, err := f.history.ListTenantHistory(context.Background(), tc, renamed.ID, domain.ContentMetric)
		require.NoError(t, err)
		require.Len(t, versions, 2)
		assert.JSONEq(t, `[{"changed":{"fields":["name"]}}]`, versions[0].Comment)
	}
}

func TestUpdateMetricsSkipsTenantsWithoutTheMetric(t *testing.T) {
	f := newPropagationFixture(t)
	ta := f.tenants.AddTenant("egi", "egi")
	f.tenants.AddTenant("sdc", "sdc")
	f.seedMetric(t, ta.Context(), tenantMetric("argo.API-Check"))

	state := activeCheck("argo.API-Check")
	state.Description = "updated"
	msgs := f.svc.UpdateMetrics(context.Background(), state, "argo.API-Check", "check_http (0.1.7)", "poem")
	assert.Empty(t, msgs)

	updated, err := f.metrics.GetMetric(context.Background(), ta.Context(), "argo.API-Check")
	require.NoError(t, err)
	assert.Equal(t, "updated", updated.Description)
}

func TestUpdateMetricsPreservesTenantConfigPath(t *testing.T) {
	f := newPropagationFixture(t)
	ta := f.tenants.AddTenant("egi", "egi")
	m := tenantMetric("argo.API-Check")
	m.Config = `["maxCheckAttempts 3","timeout 60","path /opt/tenant/probes"]`
	f.seedMetric(t, ta.Context(), m)

	state := activeCheck("argo.API-Check")
	msgs := f.svc.UpdateMetrics(context.Background(), state, "argo.API-Check", "check_http (0.1.7)", "poem")
	assert.Empty(t, msgs)

	updated, err := f.metrics.GetMetric(context.Background(), ta.Context(), "argo.API-Check")
	require.NoError(t, err)
	pairs, err := domain.DecodePairs(updated.Config)
	require.NoError(t, err)
	byKey := map[string]string{}
	for _, p := range pairs {
		byKey[p.Key] = p.Value
	}
	assert.Equal(t, "/opt/tenant/probes", byKey["path"])
	assert.Equal(t, "3", byKey["maxCheckAttempts"])
}

func TestUpdateMetricsHistoryReplayOverwritesConfigPath(t *testing.T) {
	f := newPropagationFixture(t)
	ta := f.tenants.AddTenant("egi", "egi")
	m := tenantMetric("argo.API-Check")
	m.Config = `["maxCheckAttempts 3","timeout 60","path /opt/tenant/probes"]`
	f.seedMetric(t, ta.Context(), m)

	state := activeCheck("argo.API-Check")
	state.FromHistory = true
	msgs := f.svc.UpdateMetrics(context.Background(), state, "argo.API-Check", "check_http (0.1.7)", "poem")
	assert.Empty(t, msgs)

	updated, err := f.metrics.GetMetric(context.Background(), ta.Context(), "argo.API-Check")
	require.NoError(t, err)
	assert.Equal(t, state.Config, updated.Config)
}

func TestUpdateMetricsPatchesProfilesOncePerCall(t *testing.T) {
	f := newPropagationFixture(t)
	ta := f.tenants.AddTenant("egi", "egi")
	tb := f.tenants.AddTenant("sdc", "sdc")
	f.seedMetric(t, ta.Context(), tenantMetric("argo.API-Check"))
	f.seedMetric(t, tb.Context(), tenantMetric("argo.API-Check"))

	require.NoError(t, f.tenants.SaveAPIKey(context.Background(), "WEB-API-egi", "token-egi"))
	require.NoError(t, f.tenants.SaveAPIKey(context.Background(), "WEB-API-sdc", "token-sdc"))
	f.webapi.profiles["token-egi"] = []WebAPIMetricProfile{{
		ID:   "11110000-aaaa-4aaa-aaaa-000000000001",
		Name: "ARGO_MON",
		Services: []WebAPIService{
			{Service: "argo.api", Metrics: []string{"argo.API-Check"}},
		},
	}}

	msgs := f.svc.UpdateMetrics(context.Background(), activeCheck("argo.API-Status"),
		"argo.API-Check", "check_http (0.1.7)", "poem")
	assert.Empty(t, msgs)

	// One profile fetch per tenant, all from the single patch pass.
	assert.Equal(t, []string{"token-egi", "token-sdc"}, f.webapi.listCalls)
	require.Len(t, f.webapi.updateCalls, 1)
	assert.Equal(t, []string{"argo.API-Status"}, f.webapi.updateCalls[0].Services[0].Metrics)
}

func TestUpdateMetricsContainsPartialTenantFailure(t *testing.T) {
	f := newPropagationFixture(t)
	ta := f.tenants.AddTenant("aaa", "aaa")
	tb := f.tenants.AddTenant("bbb", "bbb")
	tc := f.tenants.AddTenant("ccc", "ccc")
	for _, tenant := range []*domain.Tenant{ta, tb, tc} {
		f.seedMetric(t, tenant.Context(), tenantMetric("argo.API-Check"))
		key := "WEB-API-" + tenant.Name
		require.NoError(t, f.tenants.SaveAPIKey(context.Background(), key, "token-"+tenant.Name))
	}
	f.webapi.failTokens["token-bbb"] = true

	msgs := f.svc.UpdateMetrics(context.Background(), activeCheck("argo.API-Status"),
		"argo.API-Check", "check_http (0.1.7)", "poem")

	require.Len(t, msgs, 1)
	assert.Contains(t, msgs[0], "BBB: Error trying to update metric in metric profiles:")
	assert.Contains(t, msgs[0], "Please update metric profiles manually.")

	// The failing tenant's patch does not roll back anyone's rename.
	for _, tenant := range []*domain.Tenant{ta, tb, tc} {
		renamed, err := f.metrics.GetMetric(context.Background(), tenant.Context(), "argo.API-Status")
		require.NoError(t, err)
		versions, err := f.history.ListTenantHistory(context.Background(), tenant.Context(), renamed.ID, domain.ContentMetric)
		require.NoError(t, err)
		assert.Len(t, versions, 2)
	}
}

func TestUpdateMetricsInProfilesReportsMissingKey(t *testing.T) {
	f := newPropagationFixture(t)
	f.tenants.AddTenant("egi", "egi")

	msgs := f.svc.UpdateMetricsInProfiles(context.Background(), "argo.API-Check", "argo.API-Status")
	require.Len(t, msgs, 1)
	assert.Equal(t, "EGI: No \"WEB-API\" key in the DB!\nPlease update metric profiles manually.", msgs[0])
}

func TestUpdateMetricsInProfilesNoopWithoutRename(t *testing.T) {
	f := newPropagationFixture(t)
	f.tenants.AddTenant("egi", "egi")

	msgs := f.svc.UpdateMetricsInProfiles(context.Background(), "argo.API-Check", "argo.API-Check")
	assert.Empty(t, msgs)
	assert.Empty(t, f.webapi.listCalls)
}
