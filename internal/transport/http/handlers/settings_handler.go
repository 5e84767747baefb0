package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/google/uuid"
	"github.com/vedran77/pulse/internal/domain"
	"github.com/vedran77/pulse/internal/service"
	"github.com/vedran77/pulse/internal/transport/http/middleware"
	"github.com/vedran77/pulse/pkg/validator"
)

type SettingsHandler struct {
	settingsService *service.SettingsService
	admins          map[uuid.UUID]struct{}
	log             *slog.Logger
}

// NewSettingsHandler takes the users allowed to change global and
// organization settings. Everyone else may only change their own user
// settings.
func NewSettingsHandler(settingsService *service.SettingsService, admins []uuid.UUID, log *slog.Logger) *SettingsHandler {
	set := make(map[uuid.UUID]struct{}, len(admins))
	for _, id := range admins {
		set[id] = struct{}{}
	}
	return &SettingsHandler{settingsService: settingsService, admins: set, log: log}
}

type settingResponse struct {
	Key       string           `json:"key"`
	ScopeType domain.ScopeType `json:"scope_type"`
	ScopeID   *uuid.UUID       `json:"scope_id,omitempty"`
	Kind      domain.ValueKind `json:"kind"`
	Value     any              `json:"value"`
}

// settingScope reads and checks the scope of a settings request. User
// settings belong to the caller: scope_id defaults to them and may not name
// anyone else. Writes to any other scope need an admin.
func (h *SettingsHandler) settingScope(w http.ResponseWriter, r *http.Request, key, rawType, rawID string, write bool) (domain.ScopeType, *uuid.UUID, bool) {
	if errs := validator.ValidateSetting(key, rawType); errs.HasErrors() {
		writeValidationErrors(w, errs)
		return "", nil, false
	}

	scopeType := domain.ScopeType(rawType)
	if scopeType == "" {
		scopeType = domain.ScopeGlobal
	}
	scopeID, ok := optionalUUID(w, rawID, "Invalid scope ID")
	if !ok {
		return "", nil, false
	}

	userID := middleware.GetUserID(r.Context())
	if scopeType == domain.ScopeUser {
		if scopeID == nil {
			scopeID = &userID
		} else if *scopeID != userID {
			writeError(w, http.StatusForbidden, "PERMISSION_DENIED", "You can only manage your own user settings")
			return "", nil, false
		}
	} else if _, admin := h.admins[userID]; write && !admin {
		writeError(w, http.StatusForbidden, "PERMISSION_DENIED", "Only administrators can change global or organization settings")
		return "", nil, false
	}
	return scopeType, scopeID, true
}

func (h *SettingsHandler) Get(w http.ResponseWriter, r *http.Request) {
	key := r.PathValue("key")
	q := r.URL.Query()
	scopeType, scopeID, ok := h.settingScope(w, r, key, q.Get("scope_type"), q.Get("scope_id"), false)
	if !ok {
		return
	}

	value, found, err := h.settingsService.Get(r.Context(), key, scopeType, scopeID)
	if err != nil {
		writeServiceError(w, r, h.log, "get setting", err)
		return
	}
	if !found {
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Setting not found")
		return
	}

	writeJSON(w, http.StatusOK, settingResponse{
		Key:       key,
		ScopeType: scopeType,
		ScopeID:   scopeID,
		Kind:      value.Kind,
		Value:     value.Interface(),
	})
}

func (h *SettingsHandler) Put(w http.ResponseWriter, r *http.Request) {
	key := r.PathValue("key")

	var input struct {
		ScopeType string           `json:"scope_type"`
		ScopeID   string           `json:"scope_id"`
		Kind      domain.ValueKind `json:"kind"`
		Value     json.RawMessage  `json:"value"`
	}
	if err := decodeJSON(w, r, &input); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_JSON", "Invalid request body")
		return
	}
	scopeType, scopeID, ok := h.settingScope(w, r, key, input.ScopeType, input.ScopeID, true)
	if !ok {
		return
	}

	value, err := domain.ParseSettingValue(input.Value, input.Kind)
	if err != nil {
		writeValidationErrors(w, validator.ValidationErrors{"value": err.Error()})
		return
	}

	st, err := h.settingsService.Set(r.Context(), key, value, scopeType, scopeID)
	if err != nil {
		writeServiceError(w, r, h.log, "set setting", err)
		return
	}

	writeJSON(w, http.StatusOK, settingResponse{
		Key:       st.Key,
		ScopeType: st.ScopeType,
		ScopeID:   st.ScopeID,
		Kind:      st.Value.Kind,
		Value:     st.Value.Interface(),
	})
}

func (h *SettingsHandler) Delete(w http.ResponseWriter, r *http.Request) {
	key := r.PathValue("key")
	q := r.URL.Query()
	scopeType, scopeID, ok := h.settingScope(w, r, key, q.Get("scope_type"), q.Get("scope_id"), true)
	if !ok {
		return
	}

	if err := h.settingsService.Deactivate(r.Context(), key, scopeType, scopeID); err != nil {
		writeServiceError(w, r, h.log, "deactivate setting", err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
