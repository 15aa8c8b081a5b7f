package httpapi

import (
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"go.uber.org/zap"

	"poem-backend/internal/domain"
	"poem-backend/internal/history"
	"poem-backend/internal/service"
	"poem-backend/internal/store"
)

// MetricHandler serves a tenant's derived metrics plus the import and
// sync operations against the public template catalog. All routes are
// tenant-scoped via the X-Tenant header.
type MetricHandler struct {
	metrics  *service.MetricService
	importer *service.ImportService
	reports  service.SyncReportCache
	resolver *TenantResolver
	logger   *zap.Logger
}

func NewMetricHandler(
	metrics *service.MetricService,
	importer *service.ImportService,
	reports service.SyncReportCache,
	resolver *TenantResolver,
	logger *zap.Logger,
) *MetricHandler {
	return &MetricHandler{
		metrics:  metrics,
		importer: importer,
		reports:  reports,
		resolver: resolver,
		logger:   logger,
	}
}

func (h *MetricHandler) tenant(w http.ResponseWriter, r *http.Request) (domain.TenantContext, bool) {
	tc, err := h.resolver.Resolve(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, Fail(err.Error()))
		return domain.TenantContext{}, false
	}
	return tc, true
}

func (h *MetricHandler) List(w http.ResponseWriter, r *http.Request) {
	tc, ok := h.tenant(w, r)
	if !ok {
		return
	}
	metrics, err := h.metrics.ListMetrics(r.Context(), tc)
	if err != nil {
		h.logger.Error("Failed to list metrics", zap.String("tenant", tc.Name), zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, Fail("failed to list metrics"))
		return
	}
	writeJSON(w, http.StatusOK, Ok(metrics))
}

func (h *MetricHandler) Get(w http.ResponseWriter, r *http.Request, name string) {
	tc, ok := h.tenant(w, r)
	if !ok {
		return
	}
	metric, err := h.metrics.GetMetric(r.Context(), tc, name)
	if errors.Is(err, sql.ErrNoRows) {
		writeJSON(w, http.StatusNotFound, Fail("metric not found"))
		return
	}
	if err != nil {
		h.logger.Error("Failed to fetch metric", zap.String("metric", name), zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, Fail("failed to fetch metric"))
		return
	}
	writeJSON(w, http.StatusOK, Ok(metric))
}

type metricPayload struct {
	Name            string   `json:"name"`
	MType           string   `json:"mtype"`
	ProbeVersion    string   `json:"probeversion"`
	GroupName       string   `json:"group"`
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

func (h *MetricHandler) Update(w http.ResponseWriter, r *http.Request, name string) {
	tc, ok := h.tenant(w, r)
	if !ok {
		return
	}
	var payload metricPayload
	if err := readBodyJSON(r, 1<<20, &payload); err != nil {
		writeJSON(w, http.StatusBadRequest, Fail("invalid request body"))
		return
	}
	metric := &domain.Metric{
		Name:            payload.Name,
		MType:           payload.MType,
		ProbeVersion:    payload.ProbeVersion,
		GroupName:       payload.GroupName,
		Description:     payload.Description,
		Parent:          payload.Parent,
		ProbeExecutable: payload.ProbeExecutable,
		Config:          payload.Config,
		Attribute:       payload.Attribute,
		Dependency:      payload.Dependency,
		Flags:           payload.Flags,
		Files:           payload.Files,
		Parameter:       payload.Parameter,
		FileParameter:   payload.FileParameter,
		Tags:            payload.Tags,
	}
	err := h.metrics.UpdateMetric(r.Context(), tc, name, metric, requestUser(r))
	if errors.Is(err, sql.ErrNoRows) {
		writeJSON(w, http.StatusNotFound, Fail("metric not found"))
		return
	}
	if err != nil {
		h.logger.Error("Failed to update metric", zap.String("metric", name), zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, Fail("failed to update metric"))
		return
	}
	writeJSON(w, http.StatusOK, Ok(metric))
}

func (h *MetricHandler) Delete(w http.ResponseWriter, r *http.Request, name string) {
	tc, ok := h.tenant(w, r)
	if !ok {
		return
	}
	err := h.metrics.DeleteMetric(r.Context(), tc, name)
	if errors.Is(err, sql.ErrNoRows) {
		writeJSON(w, http.StatusNotFound, Fail("metric not found"))
		return
	}
	if err != nil {
		h.logger.Error("Failed to delete metric", zap.String("metric", name), zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, Fail("failed to delete metric"))
		return
	}
	writeJSON(w, http.StatusOK, Ok(struct{}{}))
}

type metricVersionView struct {
	ID          int64             `json:"id"`
	ObjectRepr  string            `json:"object_repr"`
	Fields      map[string]string `json:"fields"`
	DateCreated time.Time         `json:"date_created"`
	User        string            `json:"version_user"`
	Change      string            `json:"version_comment"`
}

// Versions lists the metric's history, newest first, with the full
// field snapshot of each version.
func (h *MetricHandler) Versions(w http.ResponseWriter, r *http.Request, name string) {
	tc, ok := h.tenant(w, r)
	if !ok {
		return
	}
	versions, err := h.metrics.ListMetricVersions(r.Context(), tc, name)
	if errors.Is(err, sql.ErrNoRows) {
		writeJSON(w, http.StatusNotFound, Fail("metric not found"))
		return
	}
	if err != nil {
		h.logger.Error("Failed to list metric versions", zap.String("metric", name), zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, Fail("failed to list metric versions"))
		return
	}
	views := make([]metricVersionView, 0, len(versions))
	for _, v := range versions {
		fields, err := domain.DecodeSnapshot(v.SerializedData)
		if err != nil {
			h.logger.Error("Corrupt metric history snapshot",
				zap.String("metric", name),
				zap.Int64("history_id", v.ID),
				zap.Error(err),
			)
			writeJSON(w, http.StatusInternalServerError, Fail("corrupt metric history snapshot"))
			return
		}
		views = append(views, metricVersionView{
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

type importPayload struct {
	Templates []string `json:"templates"`
}

// Import copies the named public templates into the tenant schema.
func (h *MetricHandler) Import(w http.ResponseWriter, r *http.Request) {
	tc, ok := h.tenant(w, r)
	if !ok {
		return
	}
	var payload importPayload
	if err := readBodyJSON(r, 1<<20, &payload); err != nil {
		writeJSON(w, http.StatusBadRequest, Fail("invalid request body"))
		return
	}
	result := h.importer.ImportMetrics(r.Context(), tc, payload.Templates, requestUser(r))
	writeJSON(w, http.StatusOK, Ok(result))
}

// Sync reconciles the tenant's metrics against its external metric
// profiles.
func (h *MetricHandler) Sync(w http.ResponseWriter, r *http.Request) {
	tc, ok := h.tenant(w, r)
	if !ok {
		return
	}
	result, err := h.importer.SyncMetrics(r.Context(), tc, requestUser(r))
	if errors.Is(err, sql.ErrNoRows) {
		writeJSON(w, http.StatusBadRequest, Fail("no \"WEB-API\" key in the DB for this tenant"))
		return
	}
	if err != nil {
		h.logger.Error("Failed to sync metrics", zap.String("tenant", tc.Name), zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, Fail("failed to sync metrics"))
		return
	}
	writeJSON(w, http.StatusOK, Ok(result))
}

// SyncReport returns the cached summary of the tenant's last sync.
func (h *MetricHandler) SyncReport(w http.ResponseWriter, r *http.Request) {
	tc, ok := h.tenant(w, r)
	if !ok {
		return
	}
	payload, err := h.reports.GetSyncReport(r.Context(), tc.Name)
	if errors.Is(err, store.ErrMiss) {
		writeJSON(w, http.StatusNotFound, Fail("no sync report for this tenant"))
		return
	}
	if err != nil {
		h.logger.Error("Failed to load sync report", zap.String("tenant", tc.Name), zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, Fail("failed to load sync report"))
		return
	}
	var report service.SyncResult
	if err := json.Unmarshal(payload, &report); err != nil {
		writeJSON(w, http.StatusInternalServerError, Fail("corrupt sync report"))
		return
	}
	writeJSON(w, http.StatusOK, Ok(report))
}

// Export streams the tenant's metric inventory as an xlsx workbook.
func (h *MetricHandler) Export(w http.ResponseWriter, r *http.Request) {
	tc, ok := h.tenant(w, r)
	if !ok {
		return
	}
	metrics, err := h.metrics.ListMetrics(r.Context(), tc)
	if err != nil {
		h.logger.Error("Failed to list metrics for export", zap.String("tenant", tc.Name), zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, Fail("failed to export metrics"))
		return
	}
	book, err := GenerateMetricExport(metrics)
	if err != nil {
		h.logger.Error("Failed to generate metric export", zap.String("tenant", tc.Name), zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, Fail("failed to export metrics"))
		return
	}
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", `attachment; filename="metrics.xlsx"`)
	_, _ = w.Write(book)
}
