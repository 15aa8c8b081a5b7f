package httpapi

import (
	"database/sql"
	"errors"
	"net/http"
	"time"

	"go.uber.org/zap"

	"poem-backend/internal/domain"
	"poem-backend/internal/history"
	"poem-backend/internal/repository"
	"poem-backend/internal/service"
)

// MetricTemplateHandler serves the public metric template catalog.
// Template edits fan out into tenant schemas; the response carries the
// per-tenant warnings of that fan-out.
type MetricTemplateHandler struct {
	templates *service.MetricTemplateService
	logger    *zap.Logger
}

func NewMetricTemplateHandler(templates *service.MetricTemplateService, logger *zap.Logger) *MetricTemplateHandler {
	return &MetricTemplateHandler{templates: templates, logger: logger}
}

type templatePayload struct {
	Name            string   `json:"name"`
	MType           string   `json:"mtype"`
	ProbeKeyID      *int64   `json:"probekey_id"`
	Description     string   `json:"description"`
	Parent          string   `json:"parent"`
	ProbeExecutable string   `json:"probeexecutable"`
	Config          string   `json:"config"`
	Attribute       string   `json:"attribute"`
	Dependency      string   `json:"dependency"`
	Flags           string   `json:"flags"`
	Files           string   `json:"files"`
	Parameter       string   `json:"parameter"`
	FileParameter   string   `json:"fileparameter"`
	Tags            []string `json:"tags"`
}

func (p templatePayload) toDomain() *domain.MetricTemplate {
	return &domain.MetricTemplate{
		Name:            p.Name,
		MType:           p.MType,
		ProbeKeyID:      p.ProbeKeyID,
		Description:     p.Description,
		Parent:          p.Parent,
		ProbeExecutable: p.ProbeExecutable,
		Config:          p.Config,
		Attribute:       p.Attribute,
		Dependency:      p.Dependency,
		Flags:           p.Flags,
		Files:           p.Files,
		Parameter:       p.Parameter,
		FileParameter:   p.FileParameter,
		Tags:            p.Tags,
	}
}

func (h *MetricTemplateHandler) List(w http.ResponseWriter, r *http.Request) {
	templates, err := h.templates.ListTemplates(r.Context())
	if err != nil {
		h.logger.Error("Failed to list metric templates", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, Fail("failed to list metric templates"))
		return
	}
	writeJSON(w, http.StatusOK, Ok(templates))
}

func (h *MetricTemplateHandler) Get(w http.ResponseWriter, r *http.Request, name string) {
	tmpl, err := h.templates.GetTemplate(r.Context(), name)
	if errors.Is(err, sql.ErrNoRows) {
		writeJSON(w, http.StatusNotFound, Fail("metric template not found"))
		return
	}
	if err != nil {
		h.logger.Error("Failed to fetch metric template", zap.String("template", name), zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, Fail("failed to fetch metric template"))
		return
	}
	writeJSON(w, http.StatusOK, Ok(tmpl))
}

func (h *MetricTemplateHandler) Create(w http.ResponseWriter, r *http.Request) {
	var payload templatePayload
	if err := readBodyJSON(r, 1<<20, &payload); err != nil {
		writeJSON(w, http.StatusBadRequest, Fail("invalid request body"))
		return
	}
	tmpl := payload.toDomain()
	if err := h.templates.CreateTemplate(r.Context(), tmpl, requestUser(r)); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			writeJSON(w, http.StatusConflict, Fail("metric template with this name already exists"))
			return
		}
		h.logger.Error("Failed to create metric template", zap.String("template", payload.Name), zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, Fail("failed to create metric template"))
		return
	}
	writeJSON(w, http.StatusCreated, Ok(tmpl))
}

func (h *MetricTemplateHandler) Update(w http.ResponseWriter, r *http.Request, name string) {
	var payload templatePayload
	if err := readBodyJSON(r, 1<<20, &payload); err != nil {
		writeJSON(w, http.StatusBadRequest, Fail("invalid request body"))
		return
	}
	msgs, err := h.templates.UpdateTemplate(r.Context(), name, payload.toDomain(), requestUser(r))
	if errors.Is(err, sql.ErrNoRows) {
		writeJSON(w, http.StatusNotFound, Fail("metric template not found"))
		return
	}
	if err != nil {
		h.logger.Error("Failed to update metric template", zap.String("template", name), zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, Fail("failed to update metric template"))
		return
	}
	if len(msgs) > 0 {
		writeJSON(w, http.StatusOK, Warn("metric template updated with tenant warnings", msgs))
		return
	}
	writeJSON(w, http.StatusOK, Ok(msgs))
}

func (h *MetricTemplateHandler) Delete(w http.ResponseWriter, r *http.Request, name string) {
	err := h.templates.DeleteTemplate(r.Context(), name)
	if errors.Is(err, sql.ErrNoRows) {
		writeJSON(w, http.StatusNotFound, Fail("metric template not found"))
		return
	}
	if err != nil {
		h.logger.Error("Failed to delete metric template", zap.String("template", name), zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, Fail("failed to delete metric template"))
		return
	}
	writeJSON(w, http.StatusOK, Ok(struct{}{}))
}

type templateVersionView struct {
	ID           int64     `json:"id"`
	Name         string    `json:"name"`
	MType        string    `json:"mtype"`
	ProbeVersion string    `json:"probeversion"`
	DateCreated  time.Time `json:"date_created"`
	User         string    `json:"version_user"`
	Change       string    `json:"version_comment"`
}

// Versions lists the template's history, newest first.
func (h *MetricTemplateHandler) Versions(w http.ResponseWriter, r *http.Request, name string) {
	versions, err := h.templates.ListTemplateVersions(r.Context(), name)
	if errors.Is(err, sql.ErrNoRows) {
		writeJSON(w, http.StatusNotFound, Fail("metric template not found"))
		return
	}
	if err != nil {
		h.logger.Error("Failed to list template versions", zap.String("template", name), zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, Fail("failed to list template versions"))
		return
	}
	views := make([]templateVersionView, 0, len(versions))
	for _, v := range versions {
		views = append(views, templateVersionView{
			ID:           v.ID,
			Name:         v.Name,
			MType:        v.MType,
			ProbeVersion: v.ProbeVersion,
			DateCreated:  v.DateCreated,
			User:         v.VersionUser,
			Change:       history.NewComment(v.VersionComment),
		})
	}
	writeJSON(w, http.StatusOK, Ok(views))
}

type replayPayload struct {
	HistoryID int64 `json:"history_id"`
}

// Replay re-derives every tenant's metric from a stored template
// version.
func (h *MetricTemplateHandler) Replay(w http.ResponseWriter, r *http.Request, name string) {
	var payload replayPayload
	if err := readBodyJSON(r, 1<<20, &payload); err != nil {
		writeJSON(w, http.StatusBadRequest, Fail("invalid request body"))
		return
	}
	msgs, err := h.templates.ReplayTemplateVersion(r.Context(), name, payload.HistoryID, requestUser(r))
	if errors.Is(err, sql.ErrNoRows) {
		writeJSON(w, http.StatusNotFound, Fail("metric template version not found"))
		return
	}
	if err != nil {
		h.logger.Error("Failed to replay template version",
			zap.String("template", name),
			zap.Int64("history_id", payload.HistoryID),
			zap.Error(err),
		)
		writeJSON(w, http.StatusInternalServerError, Fail("failed to replay template version"))
		return
	}
	if len(msgs) > 0 {
		writeJSON(w, http.StatusOK, Warn("template version replayed with tenant warnings", msgs))
		return
	}
	writeJSON(w, http.StatusOK, Ok(msgs))
}
