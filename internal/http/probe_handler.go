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

// ProbeHandler serves the public probe and package catalog.
type ProbeHandler struct {
	probes *service.ProbeService
	logger *zap.Logger
}

func NewProbeHandler(probes *service.ProbeService, logger *zap.Logger) *ProbeHandler {
	return &ProbeHandler{probes: probes, logger: logger}
}

type probePayload struct {
	Name        string `json:"name"`
	PackageID   int64  `json:"package_id"`
	Description string `json:"description"`
	Comment     string `json:"comment"`
	Repository  string `json:"repository"`
	DocURL      string `json:"docurl"`
}

func (p probePayload) toDomain() *domain.Probe {
	return &domain.Probe{
		Name:        p.Name,
		PackageID:   p.PackageID,
		Description: p.Description,
		Comment:     p.Comment,
		Repository:  p.Repository,
		DocURL:      p.DocURL,
	}
}

func (h *ProbeHandler) List(w http.ResponseWriter, r *http.Request) {
	probes, err := h.probes.ListProbes(r.Context())
	if err != nil {
		h.logger.Error("Failed to list probes", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, Fail("failed to list probes"))
		return
	}
	writeJSON(w, http.StatusOK, Ok(probes))
}

func (h *ProbeHandler) Create(w http.ResponseWriter, r *http.Request) {
	var payload probePayload
	if err := readBodyJSON(r, 1<<20, &payload); err != nil {
		writeJSON(w, http.StatusBadRequest, Fail("invalid request body"))
		return
	}
	probe := payload.toDomain()
	probe.User = requestUser(r)
	if err := h.probes.CreateProbe(r.Context(), probe, requestUser(r)); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			writeJSON(w, http.StatusConflict, Fail("probe with this name already exists"))
			return
		}
		h.logger.Error("Failed to create probe", zap.String("probe", payload.Name), zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, Fail("failed to create probe"))
		return
	}
	writeJSON(w, http.StatusCreated, Ok(probe))
}

func (h *ProbeHandler) Get(w http.ResponseWriter, r *http.Request, name string) {
	probe, err := h.probes.GetProbe(r.Context(), name)
	if errors.Is(err, sql.ErrNoRows) {
		writeJSON(w, http.StatusNotFound, Fail("probe not found"))
		return
	}
	if err != nil {
		h.logger.Error("Failed to fetch probe", zap.String("probe", name), zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, Fail("failed to fetch probe"))
		return
	}
	writeJSON(w, http.StatusOK, Ok(probe))
}

func (h *ProbeHandler) Update(w http.ResponseWriter, r *http.Request, name string) {
	var payload probePayload
	if err := readBodyJSON(r, 1<<20, &payload); err != nil {
		writeJSON(w, http.StatusBadRequest, Fail("invalid request body"))
		return
	}
	msgs, err := h.probes.UpdateProbe(r.Context(), name, payload.toDomain(), requestUser(r))
	if errors.Is(err, sql.ErrNoRows) {
		writeJSON(w, http.StatusNotFound, Fail("probe not found"))
		return
	}
	if err != nil {
		h.logger.Error("Failed to update probe", zap.String("probe", name), zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, Fail("failed to update probe"))
		return
	}
	if len(msgs) > 0 {
		writeJSON(w, http.StatusOK, Warn("probe updated with tenant warnings", msgs))
		return
	}
	writeJSON(w, http.StatusOK, Ok(msgs))
}

func (h *ProbeHandler) Delete(w http.ResponseWriter, r *http.Request, name string) {
	err := h.probes.DeleteProbe(r.Context(), name)
	if errors.Is(err, sql.ErrNoRows) {
		writeJSON(w, http.StatusNotFound, Fail("probe not found"))
		return
	}
	if err != nil {
		h.logger.Error("Failed to delete probe", zap.String("probe", name), zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, Fail("failed to delete probe"))
		return
	}
	writeJSON(w, http.StatusOK, Ok(struct{}{}))
}

type probeVersionView struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	Package     string    `json:"package"`
	Description string    `json:"description"`
	Comment     string    `json:"comment"`
	Repository  string    `json:"repository"`
	DocURL      string    `json:"docurl"`
	DateCreated time.Time `json:"date_created"`
	User        string    `json:"version_user"`
	Change      string    `json:"version_comment"`
}

// Versions lists the probe's history, newest first, with the change
// comments rendered for display.
func (h *ProbeHandler) Versions(w http.ResponseWriter, r *http.Request, name string) {
	versions, err := h.probes.ListProbeVersions(r.Context(), name)
	if errors.Is(err, sql.ErrNoRows) {
		writeJSON(w, http.StatusNotFound, Fail("probe not found"))
		return
	}
	if err != nil {
		h.logger.Error("Failed to list probe versions", zap.String("probe", name), zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, Fail("failed to list probe versions"))
		return
	}
	views := make([]probeVersionView, 0, len(versions))
	for _, v := range versions {
		views = append(views, probeVersionView{
			ID:          v.ID,
			Name:        v.Name,
			Package:     v.PackageString(),
			Description: v.Description,
			Comment:     v.Comment,
			Repository:  v.Repository,
			DocURL:      v.DocURL,
			DateCreated: v.DateCreated,
			User:        v.VersionUser,
			Change:      history.NewComment(v.VersionComment),
		})
	}
	writeJSON(w, http.StatusOK, Ok(views))
}

type packagePayload struct {
	Name              string  `json:"name"`
	Version           string  `json:"version"`
	UsePresentVersion bool    `json:"use_present_version"`
	RepoIDs           []int64 `json:"repo_ids"`
}

func (h *ProbeHandler) ListPackages(w http.ResponseWriter, r *http.Request) {
	packages, err := h.probes.ListPackages(r.Context())
	if err != nil {
		h.logger.Error("Failed to list packages", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, Fail("failed to list packages"))
		return
	}
	writeJSON(w, http.StatusOK, Ok(packages))
}

func (h *ProbeHandler) CreatePackage(w http.ResponseWriter, r *http.Request) {
	var payload packagePayload
	if err := readBodyJSON(r, 1<<20, &payload); err != nil {
		writeJSON(w, http.StatusBadRequest, Fail("invalid request body"))
		return
	}
	pkg := &domain.Package{
		Name:              payload.Name,
		Version:           payload.Version,
		UsePresentVersion: payload.UsePresentVersion,
	}
	if err := h.probes.CreatePackage(r.Context(), pkg, payload.RepoIDs); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			writeJSON(w, http.StatusConflict, Fail("package with this name and version already exists"))
			return
		}
		h.logger.Error("Failed to create package", zap.String("package", payload.Name), zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, Fail("failed to create package"))
		return
	}
	writeJSON(w, http.StatusCreated, Ok(pkg))
}

func (h *ProbeHandler) ListYumRepos(w http.ResponseWriter, r *http.Request) {
	repos, err := h.probes.ListYumRepos(r.Context())
	if err != nil {
		h.logger.Error("Failed to list yum repos", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, Fail("failed to list yum repos"))
		return
	}
	writeJSON(w, http.StatusOK, Ok(repos))
}
