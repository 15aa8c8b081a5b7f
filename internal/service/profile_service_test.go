package service

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"poem-backend/internal/domain"
	"poem-backend/internal/history"
	"poem-backend/internal/repository"
)

func newProfileFixture(t *testing.T) (*ProfileService, *repository.MemoryProfilesRepository, *repository.MemoryHistoryRepository) {
	t.Helper()
	profiles := repository.NewMemoryProfilesRepository()
	historyRepo := repository.NewMemoryHistoryRepository()
	svc := NewProfileService(profiles, historyRepo, zap.NewNop())
	return svc, profiles, historyRepo
}

const testAPIID = "11110000-aaaa-4aaa-aaaa-000000000001"

func TestSaveMetricProfileVersionsThePayload(t *testing.T) {
	svc, _, _ := newProfileFixture(t)
	tc := domain.TenantContext{SchemaName: "egi", Name: "egi"}

	rec := MetricProfileRecord{
		APIID:     testAPIID,
		Name:      "ARGO_MON",
		GroupName: "EGI",
		Instances: []domain.MetricInstance{
			{Service: "argo.api", Metric: "argo.API-Check"},
		},
	}
	require.NoError(t, svc.SaveMetricProfile(context.Background(), tc, rec, "poem"))

	versions, err := svc.ListProfileVersions(context.Background(), tc, domain.KindMetricProfile, testAPIID)
	require.NoError(t, err)
	require.Len(t, versions, 1)
	assert.Equal(t, "Initial version.", versions[0].Comment)

	rec.Instances = append(rec.Instances, domain.MetricInstance{
		Service: "argo.mon", Metric: "argo.AMS-Check",
	})
	require.NoError(t, svc.SaveMetricProfile(context.Background(), tc, rec, "poem"))

	versions, err = svc.ListProfileVersions(context.Background(), tc, domain.KindMetricProfile, testAPIID)
	require.NoError(t, err)
	require.Len(t, versions, 2)
	assert.Equal(t,
		"Added service-metric instance tuple (argo.mon, argo.AMS-Check).",
		history.NewComment(versions[0].Comment))

	got, err := svc.GetMetricProfile(context.Background(), tc, testAPIID)
	require.NoError(t, err)
	assert.Len(t, got.Instances, 2)
	assert.Equal(t, "ARGO_MON", got.Name)
}

func TestSaveProfileRejectsMalformedAPIID(t *testing.T) {
	svc, _, _ := newProfileFixture(t)
	tc := domain.TenantContext{SchemaName: "egi", Name: "egi"}

	err := svc.SaveMetricProfile(context.Background(), tc, MetricProfileRecord{
		APIID: "not-a-uuid",
		Name:  "ARGO_MON",
	}, "poem")
	assert.ErrorContains(t, err, "invalid apiid")
}

func TestSaveThresholdsProfileDiffsRules(t *testing.T) {
	svc, _, _ := newProfileFixture(t)
	tc := domain.TenantContext{SchemaName: "egi", Name: "egi"}

	rec := ThresholdsRecord{
		APIID:     testAPIID,
		Name:      "TEST_PROFILE",
		GroupName: "EGI",
		Rules: []domain.ThresholdsRule{
			{Metric: "argo.API-Check", Thresholds: "time=1s;0:0.5;0.5:1"},
		},
	}
	require.NoError(t, svc.SaveThresholdsProfile(context.Background(), tc, rec, "poem"))

	rec.Rules[0].Thresholds = "time=1s;0:0.8;0.8:1"
	require.NoError(t, svc.SaveThresholdsProfile(context.Background(), tc, rec, "poem"))

	versions, err := svc.ListProfileVersions(context.Background(), tc, domain.KindThresholdsProfile, testAPIID)
	require.NoError(t, err)
	require.Len(t, versions, 2)
	assert.Equal(t,
		`Changed rule for metric "argo.API-Check".`,
		history.NewComment(versions[0].Comment))
}

func TestDeleteProfileRemovesHistory(t *testing.T) {
	svc, _, historyRepo := newProfileFixture(t)
	tc := domain.TenantContext{SchemaName: "egi", Name: "egi"}

	rec := AggregationRecord{
		APIID:           testAPIID,
		Name:            "critical",
		GroupName:       "EGI",
		MetricOperation: "AND",
	}
	require.NoError(t, svc.SaveAggregation(context.Background(), tc, rec, "poem"))

	profiles, err := svc.ListProfiles(context.Background(), tc, domain.KindAggregation)
	require.NoError(t, err)
	require.Len(t, profiles, 1)
	id := profiles[0].ID

	require.NoError(t, svc.DeleteProfile(context.Background(), tc, domain.KindAggregation, testAPIID))

	_, err = svc.ListProfileVersions(context.Background(), tc, domain.KindAggregation, testAPIID)
	assert.ErrorIs(t, err, sql.ErrNoRows)
	_, err = historyRepo.LatestTenantHistory(context.Background(), tc, id, domain.ContentAggregation)
	assert.ErrorIs(t, err, sql.ErrNoRows)
}
