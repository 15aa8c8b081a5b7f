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

// MetricTemplateService manages the public template catalog. Every
// template edit is versioned in metric_template_history and pushed into
// each tenant's derived metrics.
type MetricTemplateService struct {
	templates   repository.MetricTemplatesRepository
	probes      repository.ProbesRepository
	propagation *PropagationService
	logger      *zap.Logger
}

func NewMetricTemplateService(
	templates repository.MetricTemplatesRepository,
	probes repository.ProbesRepository,
	propagation *PropagationService,
	logger *zap.Logger,
) *MetricTemplateService {
	return &MetricTemplateService{
		templates:   templates,
		probes:      probes,
		propagation: propagation,
		logger:      logger,
	}
}

func (s *MetricTemplateService) GetTemplate(ctx context.Context, name string) (*domain.MetricTemplate, error) {
	return s.templates.GetTemplate(ctx, name)
}

func (s *MetricTemplateService) ListTemplates(ctx context.Context) ([]*domain.MetricTemplate, error) {
	return s.templates.ListTemplates(ctx)
}

// ListTemplateVersions returns the template's history, newest first.
func (s *MetricTemplateService) ListTemplateVersions(ctx context.Context, name string) ([]*domain.MetricTemplateHistory, error) {
	tmpl, err := s.templates.GetTemplate(ctx, name)
	if err != nil {
		return nil, err
	}
	return s.templates.ListTemplateHistory(ctx, tmpl.ID)
}

// CreateTemplate inserts the template and its first history row.
func (s *MetricTemplateService) CreateTemplate(ctx context.Context, tmpl *domain.MetricTemplate, user string) error {
	if err := s.resolveProbeVersion(ctx, tmpl); err != nil {
		return err
	}
	if _, err := s.templates.CreateTemplate(ctx, tmpl); err != nil {
		return err
	}
	_, err := s.templates.InsertTemplateHistory(ctx, templateHistoryRow(tmpl, history.InitialVersion, user))
	return err
}

// UpdateTemplate persists the edit, appends a history row with the
// computed change comment, and propagates the new state into every
// tenant. The returned messages are per-tenant propagation failures;
// the template update itself has succeeded when error is nil.
func (s *MetricTemplateService) UpdateTemplate(ctx context.Context, oldName string, tmpl *domain.MetricTemplate, user string) ([]string, error) {
	old, err := s.templates.GetTemplate(ctx, oldName)
	if err != nil {
		return nil, err
	}
	tmpl.ID = old.ID
	if err := s.resolveProbeVersion(ctx, tmpl); err != nil {
		return nil, err
	}

	if err := s.templates.UpdateTemplate(ctx, tmpl); err != nil {
		return nil, err
	}

	comment := history.InitialVersion
	last, err := s.templates.LatestTemplateHistory(ctx, tmpl.ID)
	switch {
	case err == nil:
		comment, err = history.CreateComment(history.MetricTemplateFields,
			templateHistorySnapshot(last), templateSnapshot(tmpl))
		if err != nil {
			return nil, err
		}
	case errors.Is(err, sql.ErrNoRows):
	default:
		return nil, err
	}
	if _, err := s.templates.InsertTemplateHistory(ctx, templateHistoryRow(tmpl, comment, user)); err != nil {
		return nil, err
	}

	msgs := s.propagation.UpdateMetrics(ctx, StateFromTemplate(tmpl), oldName, old.ProbeVersion, user)
	return msgs, nil
}

// ReplayTemplateVersion re-derives tenant metrics from one stored
// template version, overwriting tenant-local config verbatim.
func (s *MetricTemplateService) ReplayTemplateVersion(ctx context.Context, name string, historyID int64, user string) ([]string, error) {
	tmpl, err := s.templates.GetTemplate(ctx, name)
	if err != nil {
		return nil, err
	}
	versions, err := s.templates.ListTemplateHistory(ctx, tmpl.ID)
	if err != nil {
		return nil, err
	}
	for _, h := range versions {
		if h.ID == historyID {
			msgs := s.propagation.UpdateMetrics(ctx, StateFromTemplateHistory(h), tmpl.Name, tmpl.ProbeVersion, user)
			return msgs, nil
		}
	}
	return nil, sql.ErrNoRows
}

// DeleteTemplate removes the template together with its history.
func (s *MetricTemplateService) DeleteTemplate(ctx context.Context, name string) error {
	return s.templates.DeleteTemplate(ctx, name)
}

// PropagateNewProbeVersion repins every template referencing the old
// probe version to the new one and pushes the change into tenant
// schemas. Called by the probe service after a new probe version is
// recorded.
func (s *MetricTemplateService) PropagateNewProbeVersion(ctx context.Context, oldHistoryID int64, newHist *domain.ProbeHistory, user string) []string {
	templates, err := s.templates.ListTemplates(ctx)
	if err != nil {
		return []string{fmt.Sprintf("Error fetching metric templates: %s.", err)}
	}

	var msgs []string
	for _, tmpl := range templates {
		if tmpl.ProbeKeyID == nil || *tmpl.ProbeKeyID != oldHistoryID {
			continue
		}
		oldProbeVersion := tmpl.ProbeVersion
		newKey := newHist.ID
		tmpl.ProbeKeyID = &newKey
		tmpl.ProbeVersion = newHist.ProbeVersion()

		if err := s.templates.UpdateTemplate(ctx, tmpl); err != nil {
			msgs = append(msgs, fmt.Sprintf("Error updating metric template %s: %s.", tmpl.Name, err))
			continue
		}
		comment, err := s.templateUpdateComment(ctx, tmpl)
		if err != nil {
			msgs = append(msgs, fmt.Sprintf("Error versioning metric template %s: %s.", tmpl.Name, err))
			continue
		}
		if _, err := s.templates.InsertTemplateHistory(ctx, templateHistoryRow(tmpl, comment, user)); err != nil {
			msgs = append(msgs, fmt.Sprintf("Error versioning metric template %s: %s.", tmpl.Name, err))
			continue
		}
		s.logger.Info("Repinned metric template to new probe version",
			zap.String("template", tmpl.Name),
			zap.String("old_probeversion", oldProbeVersion),
			zap.String("new_probeversion", tmpl.ProbeVersion),
		)
		msgs = append(msgs, s.propagation.UpdateMetrics(ctx, StateFromTemplate(tmpl), tmpl.Name, oldProbeVersion, user)...)
	}
	return msgs
}

func (s *MetricTemplateService) templateUpdateComment(ctx context.Context, tmpl *domain.MetricTemplate) (string, error) {
	last, err := s.templates.LatestTemplateHistory(ctx, tmpl.ID)
	if errors.Is(err, sql.ErrNoRows) {
		return history.InitialVersion, nil
	}
	if err != nil {
		return "", err
	}
	return history.CreateComment(history.MetricTemplateFields,
		templateHistorySnapshot(last), templateSnapshot(tmpl))
}

// resolveProbeVersion fills the denormalized probeversion string from
// the referenced probe history row. Passive templates keep it empty.
func (s *MetricTemplateService) resolveProbeVersion(ctx context.Context, tmpl *domain.MetricTemplate) error {
	if tmpl.ProbeKeyID == nil {
		tmpl.ProbeVersion = ""
		return nil
	}
	h, err := s.probes.GetProbeHistoryByID(ctx, *tmpl.ProbeKeyID)
	if err != nil {
		return fmt.Errorf("failed to resolve probe version: %w", err)
	}
	tmpl.ProbeVersion = h.ProbeVersion()
	return nil
}

func templateSnapshot(t *domain.MetricTemplate) domain.Snapshot {
	return domain.Snapshot{
		"name":            t.Name,
		"mtype":           t.MType,
		"probeversion":    t.ProbeVersion,
		"description":     t.Description,
		"parent":          t.Parent,
		"probeexecutable": t.ProbeExecutable,
		"config":          t.Config,
		"attribute":       t.Attribute,
		"dependency":      t.Dependency,
		"flags":           t.Flags,
		"files":           t.Files,
		"parameter":       t.Parameter,
		"fileparameter":   t.FileParameter,
		"tags":            domain.JoinTags(t.Tags),
	}
}

func templateHistorySnapshot(h *domain.MetricTemplateHistory) domain.Snapshot {
	return domain.Snapshot{
		"name":            h.Name,
		"mtype":           h.MType,
		"probeversion":    h.ProbeVersion,
		"description":     h.Description,
		"parent":          h.Parent,
		"probeexecutable": h.ProbeExecutable,
		"config":          h.Config,
		"attribute":       h.Attribute,
		"dependency":      h.Dependency,
		"flags":           h.Flags,
		"files":           h.Files,
		"parameter":       h.Parameter,
		"fileparameter":   h.FileParameter,
		"tags":            domain.JoinTags(h.Tags),
	}
}

func templateHistoryRow(t *domain.MetricTemplate, comment, user string) *domain.MetricTemplateHistory {
	return &domain.MetricTemplateHistory{
		ObjectID:        t.ID,
		Name:            t.Name,
		MType:           t.MType,
		ProbeKeyID:      t.ProbeKeyID,
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
		VersionComment:  comment,
		VersionUser:     user,
		ProbeVersion:    t.ProbeVersion,
	}
}
