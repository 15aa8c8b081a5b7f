package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"poem-backend/internal/domain"
	"poem-backend/internal/history"
	"poem-backend/internal/repository"
)

// TemplateState is the new template version being pushed into tenant
// schemas, flattened from either the live metric_templates row or a
// metric_template_history snapshot (re-derivation).
type TemplateState struct {
	Name            string
	MType           string
	ProbeVersion    string
	Description     string
	Parent          string
	ProbeExecutable string
	Config          string
	Attribute       string
	Dependency      string
	Flags           string
	Files           string
	Parameter       string
	FileParameter   string
	Tags            []string

	// FromHistory marks a replay from a history snapshot. On replay the
	// tenant config is overwritten verbatim; only live-template edits
	// preserve the tenant's local config path.
	FromHistory bool
}

// StateFromTemplate flattens a live template row.
func StateFromTemplate(t *domain.MetricTemplate) TemplateState {
	return TemplateState{
		Name:            t.Name,
		MType:           t.MType,
		ProbeVersion:    t.ProbeVersion,
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

// StateFromTemplateHistory flattens a history snapshot for replay.
func StateFromTemplateHistory(h *domain.MetricTemplateHistory) TemplateState {
	return TemplateState{
		Name:            h.Name,
		MType:           h.MType,
		ProbeVersion:    h.ProbeVersion,
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
		FromHistory:     true,
	}
}

// PropagationService pushes a changed public template version into
// every tenant's derived metric copy and repairs external profile
// references when the metric was renamed.
type PropagationService struct {
	tenants repository.TenantsRepository
	metrics repository.MetricsRepository
	history repository.HistoryRepository
	webapi  ProfileAPI
	logger  *zap.Logger
}

func NewPropagationService(
	tenants repository.TenantsRepository,
	metrics repository.MetricsRepository,
	historyRepo repository.HistoryRepository,
	webapi ProfileAPI,
	logger *zap.Logger,
) *PropagationService {
	return &PropagationService{
		tenants: tenants,
		metrics: metrics,
		history: historyRepo,
		webapi:  webapi,
		logger:  logger,
	}
}

// UpdateMetrics walks every tenant schema and copies the new template
// state onto the tenant's matching metric, appending one tenant
// history row per update. Tenants without the metric are skipped. A
// failing tenant contributes one message and never stops the loop:
// already-processed tenants stay updated, remaining tenants are still
// attempted. The returned slice holds one human-readable message per
// failed tenant.
func (s *PropagationService) UpdateMetrics(ctx context.Context, state TemplateState, oldName, oldProbeVersion, user string) []string {
	tenants, err := s.tenants.ListTenants(ctx)
	if err != nil {
		return []string{fmt.Sprintf("Error fetching tenant list: %s.", err)}
	}

	var msgs []string
	for _, t := range tenants {
		tc := t.Context()
		updated, err := s.updateMetricInSchema(ctx, tc, state, oldName, oldProbeVersion, user)
		if err != nil {
			s.logger.Error("Failed to propagate metric template change",
				zap.String("tenant", t.Name),
				zap.String("metric", oldName),
				zap.Error(err),
			)
			msgs = append(msgs, fmt.Sprintf("%s: %s", strings.ToUpper(t.Name), err))
			continue
		}
		if updated {
			s.logger.Info("Propagated metric template change",
				zap.String("tenant", t.Name),
				zap.String("old_name", oldName),
				zap.String("new_name", state.Name),
			)
		}
	}

	if oldName != state.Name {
		msgs = append(msgs, s.UpdateMetricsInProfiles(ctx, oldName, state.Name)...)
	}
	return msgs
}

// updateMetricInSchema applies the new state to one tenant. Returns
// (false, nil) when the tenant has no matching metric.
func (s *PropagationService) updateMetricInSchema(ctx context.Context, tc domain.TenantContext, state TemplateState, oldName, oldProbeVersion, user string) (bool, error) {
	metric, err := s.metrics.GetMetricByNameAndProbeVersion(ctx, tc, oldName, oldProbeVersion)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}

	newConfig := state.Config
	if !state.FromHistory {
		newConfig, err = mergeConfigPath(metric.Config, state.Config)
		if err != nil {
			return false, err
		}
	}

	metric.Name = state.Name
	metric.MType = state.MType
	metric.ProbeVersion = state.ProbeVersion
	metric.Description = state.Description
	metric.Parent = state.Parent
	metric.ProbeExecutable = state.ProbeExecutable
	metric.Config = newConfig
	metric.Attribute = state.Attribute
	metric.Dependency = state.Dependency
	metric.Flags = state.Flags
	metric.Files = state.Files
	metric.Parameter = state.Parameter
	metric.FileParameter = state.FileParameter
	metric.Tags = state.Tags

	if err := s.metrics.UpdateMetric(ctx, tc, metric); err != nil {
		return false, err
	}

	var prev domain.Snapshot
	last, err := s.history.LatestTenantHistory(ctx, tc, metric.ID, domain.ContentMetric)
	switch {
	case err == nil:
		prev, err = domain.DecodeSnapshot(last.SerializedData)
		if err != nil {
			return false, err
		}
	case errors.Is(err, sql.ErrNoRows):
		// First history row for this metric: comment falls back to
		// "Initial version." below.
	default:
		return false, err
	}

	cur := metric.Snapshot()
	comment, err := history.CreateComment(history.MetricFields, prev, cur)
	if err != nil {
		return false, err
	}
	data, err := cur.Encode()
	if err != nil {
		return false, err
	}
	_, err = s.history.InsertTenantHistory(ctx, tc, &domain.TenantHistory{
		ObjectID:       metric.ID,
		ContentType:    domain.ContentMetric,
		SerializedData: data,
		ObjectRepr:     metric.Name,
		Comment:        comment,
		VersionUser:    user,
	})
	if err != nil {
		return false, err
	}
	return true, nil
}

// mergeConfigPath takes the template's new config wholesale except for
// the "path" sub-key, which keeps the tenant's existing value: tenants
// may install probes under tenant-specific paths.
func mergeConfigPath(tenantConfig, newConfig string) (string, error) {
	tenantPairs, err := domain.DecodePairs(tenantConfig)
	if err != nil {
		return "", err
	}
	newPairs, err := domain.DecodePairs(newConfig)
	if err != nil {
		return "", err
	}

	var tenantPath string
	var hasPath bool
	for _, p := range tenantPairs {
		if p.Key == "path" {
			tenantPath = p.Value
			hasPath = true
			break
		}
	}
	if !hasPath {
		return newConfig, nil
	}
	for i, p := range newPairs {
		if p.Key == "path" {
			newPairs[i].Value = tenantPath
		}
	}
	return domain.EncodePairs(newPairs), nil
}

// UpdateMetricsInProfiles rewrites references to a renamed metric in
// every tenant's external metric profiles. No-op when the name did not
// change. Failures are collected as per-tenant messages; the metric
// update that triggered the rename has already been committed, so the
// administrator is asked to patch profiles manually instead of the
// operation failing.
func (s *PropagationService) UpdateMetricsInProfiles(ctx context.Context, oldName, newName string) []string {
	if oldName == newName {
		return nil
	}

	tenants, err := s.tenants.ListTenants(ctx)
	if err != nil {
		return []string{fmt.Sprintf("Error fetching tenant list: %s.", err)}
	}

	var msgs []string
	for _, t := range tenants {
		if err := s.patchTenantProfiles(ctx, t.Name, oldName, newName); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				msgs = append(msgs, fmt.Sprintf(
					"%s: No \"WEB-API\" key in the DB!\nPlease update metric profiles manually.",
					strings.ToUpper(t.Name)))
				continue
			}
			msgs = append(msgs, fmt.Sprintf(
				"%s: Error trying to update metric in metric profiles: %s.\nPlease update metric profiles manually.",
				strings.ToUpper(t.Name), err))
		}
	}
	return msgs
}

func (s *PropagationService) patchTenantProfiles(ctx context.Context, tenantName, oldName, newName string) error {
	token, err := s.tenants.GetAPIKey(ctx, "WEB-API-"+tenantName)
	if err != nil {
		return err
	}

	profiles, err := s.webapi.ListMetricProfiles(ctx, token)
	if err != nil {
		return err
	}

	for _, profile := range profiles {
		changed := false
		for i, svc := range profile.Services {
			for j, metric := range svc.Metrics {
				if metric == oldName {
					profile.Services[i].Metrics[j] = newName
					changed = true
				}
			}
		}
		if !changed {
			continue
		}
		if err := s.webapi.UpdateMetricProfile(ctx, token, profile); err != nil {
			return err
		}
		s.logger.Info("Patched renamed metric in metric profile",
			zap.String("tenant", tenantName),
			zap.String("profile", profile.Name),
			zap.String("old_name", oldName),
			zap.String("new_name", newName),
		)
	}
	return nil
}
