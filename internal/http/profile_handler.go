package httpapi

import (
	"database/sql"
	"errors"
	"net/http"
	"time"

	"go.uber.org/zap"

	"poem-backend/internal/domain"
	"poem-backend/internal/history"
	"poem-backend/internal/service"
)

// ProfileHandler serves the tenant-local mirrors of externally-hosted
// profiles. All routes are tenant-scoped via the X-Tenant header.
type ProfileHandler struct {
	profiles *service.ProfileService
	resolver *TenantResolver
	logger   *zap.Logger
}

func NewProfileHandler(profiles *service.ProfileService, resolver *TenantResolver, logger *zap.Logger) *ProfileHandler {
	return &ProfileHandler{profiles: profiles, resolver: resolver, logger: logger}
}

func (h *ProfileHandler) tenant(w http.ResponseWriter, r *http.Request) (domain.TenantContext, bool) {
	tc, err := h.resolver.Resolve(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, Fail(err.Error()))
		return domain.TenantContext{}, false
	}
	return tc, true
}

func (h *ProfileHandler) List(w http.ResponseWriter, r *http.Request, kind domain.ProfileKind) {
	tc, ok := h.tenant(w, r)
	if !ok {
		return
	}
	profiles, err := h.profiles.ListProfiles(r.Context(), tc, kind)
	if err != nil {
		h.logger.Error("Failed to list profiles", zap.String("kind", string(kind)), zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, Fail("failed to list profiles"))
		return
	}
	writeJSON(w, http.StatusOK, Ok(profiles))
}

func (h *ProfileHandler) Save(w http.ResponseWriter, r *http.Request, kind domain.ProfileKind) {
	tc, ok := h.tenant(w, r)
	if !ok {
		return
	}

	var err error
	switch kind {
	case domain.KindMetricProfile:
		var rec service.MetricProfileRecord
		if err := readBodyJSON(r, 1<<20, &rec); err != nil {
			writeJSON(w, http.StatusBadRequest, Fail("invalid request body"))
			return
		}
		err = h.profiles.SaveMetricProfile(r.Context(), tc, rec, requestUser(r))
	case domain.KindAggregation:
		var rec service.AggregationRecord
		if err := readBodyJSON(r, 1<<20, &rec); err != nil {
			writeJSON(w, http.StatusBadRequest, Fail("invalid request body"))
			return
		}
		err = h.profiles.SaveAggregation(r.Context(), tc, rec, requestUser(r))
	case domain.KindThresholdsProfile:
		var rec service.ThresholdsRecord
		if err := readBodyJSON(r, 1<<20, &rec); err != nil {
			writeJSON(w, http.StatusBadRequest, Fail("invalid request body"))
			return
		}
		err = h.profiles.SaveThresholdsProfile(r.Context(), tc, rec, requestUser(r))
	default:
		writeJSON(w, http.StatusNotFound, Fail("unknown profile kind"))
		return
	}
	if err != nil {
		h.logger.Error("Failed to save profile", zap.String("kind", string(kind)), zap.Error(err))
		writeJSON(w, http.StatusBadRequest, Fail(err.Error()))
		return
	}
	writeJSON(w, http.StatusOK, Ok(struct{}{}))
}

func (h *ProfileHandler) Get(w http.ResponseWriter, r *http.Request, kind domain.ProfileKind, apiID string) {
	tc, ok := h.tenant(w, r)
	if !ok {
		return
	}

	var rec any
	var err error
	switch kind {
	case domain.KindMetricProfile:
		rec, err = h.profiles.GetMetricProfile(r.Context(), tc, apiID)
	case domain.KindAggregation:
		rec, err = h.profiles.GetAggregation(r.Context(), tc, apiID)
	case domain.KindThresholdsProfile:
		rec, err = h.profiles.GetThresholdsProfile(r.Context(), tc, apiID)
	default:
		writeJSON(w, http.StatusNotFound, Fail("unknown profile kind"))
		return
	}
	if errors.Is(err, sql.ErrNoRows) {
		writeJSON(w, http.StatusNotFound, Fail("profile not found"))
		return
	}
	if err != nil {
		h.logger.Error("Failed to fetch profile",
			zap.String("kind", string(kind)),
			zap.String("apiid", apiID),
			zap.Error(err),
		)
		writeJSON(w, http.StatusInternalServerError, Fail("failed to fetch profile"))
		return
	}
	writeJSON(w, http.StatusOK, Ok(rec))
}

func (h *ProfileHandler) Delete(w http.ResponseWriter, r *http.Request, kind domain.ProfileKind, apiID string) {
	tc, ok := h.tenant(w, r)
	if !ok {
		return
	}
	err := h.profiles.DeleteProfile(r.Context(), tc, kind, apiID)
	if errors.Is(err, sql.ErrNoRows) {
		writeJSON(w, http.StatusNotFound, Fail("profile not found"))
		return
	}
	if err != nil {
		h.logger.Error("Failed to delete profile",
			zap.String("kind", string(kind)),
			zap.String("apiid", apiID),
			zap.Error(err),
		)
		writeJSON(w, http.StatusInternalServerError, Fail("failed to delete profile"))
		return
	}
	writeJSON(w, http.StatusOK, Ok(struct{}{}))
}

type profileVersionView struct {
	ID          int64             `json:"id"`
	ObjectRepr  string            `json:"object_repr"`
	Fields      map[string]string `json:"fields"`
	DateCreated time.Time         `json:"date_created"`
	User        string            `json:"version_user"`
	Change      string            `json:"version_comment"`
}

// Versions lists the profile's history, newest first.
func (h *ProfileHandler) Versions(w http.ResponseWriter, r *http.Request, kind domain.ProfileKind, apiID string) {
	tc, ok := h.tenant(w, r)
	if !ok {
		return
	}
	versions, err := h.profiles.ListProfileVersions(r.Context(), tc, kind, apiID)
	if errors.Is(err, sql.ErrNoRows) {
		writeJSON(w, http.StatusNotFound, Fail("profile not found"))
		return
	}
	if err != nil {
		h.logger.Error("Failed to list profile versions",
			zap.String("kind", string(kind)),
			zap.String("apiid", apiID),
			zap.Error(err),
		)
		writeJSON(w, http.StatusInternalServerError, Fail("failed to list profile versions"))
		return
	}
	views := make([]profileVersionView, 0, len(versions))
	for _, v := range versions {
		fields, err := domain.DecodeSnapshot(v.SerializedData)
		if err != nil {
			writeJSON(w, http.StatusInternalServerError, Fail("corrupt profile history snapshot"))
			return
		}
		views = append(views, profileVersionView{
			ID:          v.ID,
			ObjectRepr:  v.ObjectRepr,
			Fields:      fields,
			DateCreated: v.DateCreated,
			User:        v.VersionUser,
			Change:      history.NewComment(v.Comment),
		})
	}
	writeJSON(w, http.StatusOK, Ok(views))
}
