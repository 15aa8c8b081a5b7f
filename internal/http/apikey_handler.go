package httpapi

import (
	"database/sql"
	"errors"
	"net/http"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"poem-backend/internal/repository"
)

// APIKeyHandler manages the Web-API tokens stored per tenant. Tokens
// are write-mostly: the propagation and sync engines read them, admins
// rotate them here.
type APIKeyHandler struct {
	tenants repository.TenantsRepository
	logger  *zap.Logger
}

func NewAPIKeyHandler(tenants repository.TenantsRepository, logger *zap.Logger) *APIKeyHandler {
	return &APIKeyHandler{tenants: tenants, logger: logger}
}

type apiKeyPayload struct {
	Name  string `json:"name"`
	Token string `json:"token"`
}

// Save upserts a key. An empty token means "generate one for me".
func (h *APIKeyHandler) Save(w http.ResponseWriter, r *http.Request) {
	var payload apiKeyPayload
	if err := readBodyJSON(r, 1<<20, &payload); err != nil {
		writeJSON(w, http.StatusBadRequest, Fail("invalid request body"))
		return
	}
	if payload.Name == "" {
		writeJSON(w, http.StatusBadRequest, Fail("key name is required"))
		return
	}
	if payload.Token == "" {
		payload.Token = uuid.NewString()
	}
	if err := h.tenants.SaveAPIKey(r.Context(), payload.Name, payload.Token); err != nil {
		h.logger.Error("Failed to save API key", zap.String("key", payload.Name), zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, Fail("failed to save API key"))
		return
	}
	h.logger.Info("Saved API key", zap.String("key", payload.Name))
	writeJSON(w, http.StatusOK, Ok(payload))
}

// Get returns one key by name.
func (h *APIKeyHandler) Get(w http.ResponseWriter, r *http.Request, name string) {
	token, err := h.tenants.GetAPIKey(r.Context(), name)
	if errors.Is(err, sql.ErrNoRows) {
		writeJSON(w, http.StatusNotFound, Fail("API key not found"))
		return
	}
	if err != nil {
		h.logger.Error("Failed to fetch API key", zap.String("key", name), zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, Fail("failed to fetch API key"))
		return
	}
	writeJSON(w, http.StatusOK, Ok(apiKeyPayload{Name: name, Token: token}))
}
