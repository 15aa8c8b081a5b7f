package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"poem-backend/internal/domain"
	"poem-backend/internal/history"
	"poem-backend/internal/repository"
)

// MetricProfileRecord is a tenant's metric profile mirror: the row
// identity plus the payload stored in the latest history snapshot.
type MetricProfileRecord struct {
	APIID       string                  `json:"apiid"`
	Name        string                  `json:"name"`
	GroupName   string                  `json:"groupname"`
	Description string                  `json:"description"`
	Instances   []domain.MetricInstance `json:"metricinstances"`
}

// AggregationRecord is a tenant's aggregation profile mirror.
type AggregationRecord struct {
	APIID            string                    `json:"apiid"`
	Name             string                    `json:"name"`
	GroupName        string                    `json:"groupname"`
	EndpointGroup    string                    `json:"endpoint_group"`
	MetricOperation  string                    `json:"metric_operation"`
	ProfileOperation string                    `json:"profile_operation"`
	MetricProfile    string                    `json:"metric_profile"`
	Groups           []domain.AggregationGroup `json:"groups"`
}

// ThresholdsRecord is a tenant's thresholds profile mirror.
type ThresholdsRecord struct {
	APIID     string                  `json:"apiid"`
	Name      string                  `json:"name"`
	GroupName string                  `json:"groupname"`
	Rules     []domain.ThresholdsRule `json:"rules"`
}

// ProfileService maintains the per-tenant mirrors of externally-hosted
// profiles. The row carries identity and ownership only; the payload
// is versioned exclusively through tenant_history snapshots.
type ProfileService struct {
	profiles repository.ProfilesRepository
	history  repository.HistoryRepository
	logger   *zap.Logger
}

func NewProfileService(
	profiles repository.ProfilesRepository,
	historyRepo repository.HistoryRepository,
	logger *zap.Logger,
) *ProfileService {
	return &ProfileService{profiles: profiles, history: historyRepo, logger: logger}
}

func (s *ProfileService) SaveMetricProfile(ctx context.Context, tc domain.TenantContext, rec MetricProfileRecord, user string) error {
	snapshot := domain.Snapshot{
		"name":            rec.Name,
		"groupname":       rec.GroupName,
		"description":     rec.Description,
		"apiid":           rec.APIID,
		"metricinstances": domain.EncodeJSON(rec.Instances),
	}
	return s.saveProfile(ctx, tc, domain.KindMetricProfile, rec.APIID, rec.Name, rec.GroupName,
		snapshot, history.MetricProfileFields, user)
}

func (s *ProfileService) SaveAggregation(ctx context.Context, tc domain.TenantContext, rec AggregationRecord, user string) error {
	snapshot := domain.Snapshot{
		"name":              rec.Name,
		"groupname":         rec.GroupName,
		"apiid":             rec.APIID,
		"endpoint_group":    rec.EndpointGroup,
		"metric_operation":  rec.MetricOperation,
		"profile_operation": rec.ProfileOperation,
		"metric_profile":    rec.MetricProfile,
		"groups":            domain.EncodeJSON(rec.Groups),
	}
	return s.saveProfile(ctx, tc, domain.KindAggregation, rec.APIID, rec.Name, rec.GroupName,
		snapshot, history.AggregationFields, user)
}

func (s *ProfileService) SaveThresholdsProfile(ctx context.Context, tc domain.TenantContext, rec ThresholdsRecord, user string) error {
	snapshot := domain.Snapshot{
		"name":      rec.Name,
		"groupname": rec.GroupName,
		"apiid":     rec.APIID,
		"rules":     domain.EncodeJSON(rec.Rules),
	}
	return s.saveProfile(ctx, tc, domain.KindThresholdsProfile, rec.APIID, rec.Name, rec.GroupName,
		snapshot, history.ThresholdsProfileFields, user)
}

// saveProfile upserts the mirror row and appends the versioned
// snapshot. The apiid must be the UUID assigned by the Web API.
func (s *ProfileService) saveProfile(
	ctx context.Context,
	tc domain.TenantContext,
	kind domain.ProfileKind,
	apiID, name, groupName string,
	snapshot domain.Snapshot,
	fields []history.FieldSpec,
	user string,
) error {
	if _, err := uuid.Parse(apiID); err != nil {
		return fmt.Errorf("invalid apiid %q: %w", apiID, err)
	}

	profile := &domain.Profile{APIID: apiID, Name: name, GroupName: groupName}
	id, err := s.profiles.UpsertProfile(ctx, tc, kind, profile)
	if err != nil {
		return err
	}

	contentType := domain.HistoryContentType(kind)
	comment := history.InitialVersion
	last, err := s.history.LatestTenantHistory(ctx, tc, id, contentType)
	switch {
	case err == nil:
		prev, err := domain.DecodeSnapshot(last.SerializedData)
		if err != nil {
			return err
		}
		comment, err = history.CreateComment(fields, prev, snapshot)
		if err != nil {
			return err
		}
	case errors.Is(err, sql.ErrNoRows):
	default:
		return err
	}

	data, err := snapshot.Encode()
	if err != nil {
		return err
	}
	_, err = s.history.InsertTenantHistory(ctx, tc, &domain.TenantHistory{
		ObjectID:       id,
		ContentType:    contentType,
		SerializedData: data,
		ObjectRepr:     name,
		Comment:        comment,
		VersionUser:    user,
	})
	if err != nil {
		return err
	}
	s.logger.Info("Saved profile version",
		zap.String("tenant", tc.Name),
		zap.String("kind", string(kind)),
		zap.String("profile", name),
	)
	return nil
}

// DeleteProfile removes the mirror row and all its history.
func (s *ProfileService) DeleteProfile(ctx context.Context, tc domain.TenantContext, kind domain.ProfileKind, apiID string) error {
	id, err := s.profiles.DeleteProfile(ctx, tc, kind, apiID)
	if err != nil {
		return err
	}
	return s.history.DeleteTenantHistory(ctx, tc, id, domain.HistoryContentType(kind))
}

func (s *ProfileService) ListProfiles(ctx context.Context, tc domain.TenantContext, kind domain.ProfileKind) ([]*domain.Profile, error) {
	return s.profiles.ListProfiles(ctx, tc, kind)
}

// ListProfileVersions returns the profile's history, newest first.
func (s *ProfileService) ListProfileVersions(ctx context.Context, tc domain.TenantContext, kind domain.ProfileKind, apiID string) ([]*domain.TenantHistory, error) {
	row, err := s.profiles.GetProfile(ctx, tc, kind, apiID)
	if err != nil {
		return nil, err
	}
	return s.history.ListTenantHistory(ctx, tc, row.ID, domain.HistoryContentType(kind))
}

// GetMetricProfile hydrates the mirror from its latest snapshot.
func (s *ProfileService) GetMetricProfile(ctx context.Context, tc domain.TenantContext, apiID string) (*MetricProfileRecord, error) {
	snapshot, err := s.latestSnapshot(ctx, tc, domain.KindMetricProfile, apiID)
	if err != nil {
		return nil, err
	}
	rec := &MetricProfileRecord{
		APIID:       snapshot["apiid"],
		Name:        snapshot["name"],
		GroupName:   snapshot["groupname"],
		Description: snapshot["description"],
	}
	if err := decodePayload(snapshot["metricinstances"], &rec.Instances); err != nil {
		return nil, err
	}
	return rec, nil
}

// GetAggregation hydrates the mirror from its latest snapshot.
func (s *ProfileService) GetAggregation(ctx context.Context, tc domain.TenantContext, apiID string) (*AggregationRecord, error) {
	snapshot, err := s.latestSnapshot(ctx, tc, domain.KindAggregation, apiID)
	if err != nil {
		return nil, err
	}
	rec := &AggregationRecord{
		APIID:            snapshot["apiid"],
		Name:             snapshot["name"],
		GroupName:        snapshot["groupname"],
		EndpointGroup:    snapshot["endpoint_group"],
		MetricOperation:  snapshot["metric_operation"],
		ProfileOperation: snapshot["profile_operation"],
		MetricProfile:    snapshot["metric_profile"],
	}
	if err := decodePayload(snapshot["groups"], &rec.Groups); err != nil {
		return nil, err
	}
	return rec, nil
}

// GetThresholdsProfile hydrates the mirror from its latest snapshot.
func (s *ProfileService) GetThresholdsProfile(ctx context.Context, tc domain.TenantContext, apiID string) (*ThresholdsRecord, error) {
	snapshot, err := s.latestSnapshot(ctx, tc, domain.KindThresholdsProfile, apiID)
	if err != nil {
		return nil, err
	}
	rec := &ThresholdsRecord{
		APIID:     snapshot["apiid"],
		Name:      snapshot["name"],
		GroupName: snapshot["groupname"],
	}
	if err := decodePayload(snapshot["rules"], &rec.Rules); err != nil {
		return nil, err
	}
	return rec, nil
}

func (s *ProfileService) latestSnapshot(ctx context.Context, tc domain.TenantContext, kind domain.ProfileKind, apiID string) (domain.Snapshot, error) {
	row, err := s.profiles.GetProfile(ctx, tc, kind, apiID)
	if err != nil {
		return nil, err
	}
	last, err := s.history.LatestTenantHistory(ctx, tc, row.ID, domain.HistoryContentType(kind))
	if err != nil {
		return nil, err
	}
	return domain.DecodeSnapshot(last.SerializedData)
}

func decodePayload(encoded string, dest any) error {
	if encoded == "" {
		return nil
	}
	if err := json.Unmarshal([]byte(encoded), dest); err != nil {
		return fmt.Errorf("failed to decode profile payload: %w", err)
	}
	return nil
}
