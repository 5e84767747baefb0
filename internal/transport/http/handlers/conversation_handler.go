package handlers

import (
	"log/slog"
	"net/http"

	"github.com/google/uuid"
	"github.com/vedran77/pulse/internal/service"
	"github.com/vedran77/pulse/internal/transport/http/middleware"
)

type ConversationHandler struct {
	conversationService *service.ConversationService
	log                 *slog.Logger
}

func NewConversationHandler(conversationService *service.ConversationService, log *slog.Logger) *ConversationHandler {
	return &ConversationHandler{conversationService: conversationService, log: log}
}

func (h *ConversationHandler) Resolve(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	var input struct {
		UserID uuid.UUID `json:"user_id"`
	}
	if err := decodeJSON(w, r, &input); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_JSON", "Invalid request body")
		return
	}
	if input.UserID == uuid.Nil {
		writeError(w, http.StatusBadRequest, "MISSING_USER_ID", "user_id is required")
		return
	}

	conv, err := h.conversationService.ResolveDirect(r.Context(), userID, input.UserID)
	if err != nil {
		writeServiceError(w, r, h.log, "resolve conversation", err)
		return
	}

	writeJSON(w, http.StatusOK, conv)
}

func (h *ConversationHandler) ListContacts(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	contacts, err := h.conversationService.ListContacts(r.Context(), userID)
	if err != nil {
		writeServiceError(w, r, h.log, "list contacts", err)
		return
	}

	writeJSON(w, http.StatusOK, contacts)
}
