package handlers

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/google/uuid"
	"github.com/vedran77/pulse/internal/domain"
	"github.com/vedran77/pulse/internal/service"
	"github.com/vedran77/pulse/internal/transport/http/middleware"
	"github.com/vedran77/pulse/pkg/validator"
)

type MessageHandler struct {
	messageService *service.MessageService
	log            *slog.Logger
}

func NewMessageHandler(messageService *service.MessageService, log *slog.Logger) *MessageHandler {
	return &MessageHandler{messageService: messageService, log: log}
}

func (h *MessageHandler) Create(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	var input service.CreateMessageInput
	if err := decodeJSON(w, r, &input); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_JSON", "Invalid request body")
		return
	}
	if errs := validator.ValidateMessage(input.Content); errs.HasErrors() {
		writeValidationErrors(w, errs)
		return
	}

	msg, err := h.messageService.Create(r.Context(), userID, input)
	if err != nil {
		writeServiceError(w, r, h.log, "create message", err)
		return
	}

	writeJSON(w, http.StatusCreated, msg)
}

// List serves GET /messages?channel_id=…|conversation_id=…&before=&limit=
func (h *MessageHandler) List(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	q := r.URL.Query()

	channelID, ok := optionalUUID(w, q.Get("channel_id"), "Invalid channel ID")
	if !ok {
		return
	}
	conversationID, ok := optionalUUID(w, q.Get("conversation_id"), "Invalid conversation ID")
	if !ok {
		return
	}
	before, ok := optionalUUID(w, q.Get("before"), "Invalid before cursor")
	if !ok {
		return
	}

	limit := service.DefaultListLimit
	if limitStr := q.Get("limit"); limitStr != "" {
		if l, err := strconv.Atoi(limitStr); err == nil && l > 0 && l <= service.MaxListLimit {
			limit = l
		}
	}

	scope := domain.NewScope(channelID, conversationID)
	resp, err := h.messageService.List(r.Context(), userID, scope, service.ListOptions{Before: before, Limit: limit})
	if err != nil {
		writeServiceError(w, r, h.log, "list messages", err)
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

func (h *MessageHandler) Get(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	messageID, ok := pathUUID(w, r, "id", "Invalid message ID")
	if !ok {
		return
	}

	msg, err := h.messageService.Get(r.Context(), userID, messageID)
	if err != nil {
		writeServiceError(w, r, h.log, "get message", err)
		return
	}

	writeJSON(w, http.StatusOK, msg)
}

func (h *MessageHandler) ListReplies(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	messageID, ok := pathUUID(w, r, "id", "Invalid message ID")
	if !ok {
		return
	}

	thread, err := h.messageService.ListThread(r.Context(), userID, messageID)
	if err != nil {
		writeServiceError(w, r, h.log, "list replies", err)
		return
	}

	writeJSON(w, http.StatusOK, thread)
}

func (h *MessageHandler) Edit(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	messageID, ok := pathUUID(w, r, "id", "Invalid message ID")
	if !ok {
		return
	}

	var input struct {
		Content string `json:"content"`
	}
	if err := decodeJSON(w, r, &input); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_JSON", "Invalid request body")
		return
	}
	if errs := validator.ValidateMessage(input.Content); errs.HasErrors() {
		writeValidationErrors(w, errs)
		return
	}

	msg, err := h.messageService.Edit(r.Context(), userID, messageID, input.Content)
	if err != nil {
		writeServiceError(w, r, h.log, "edit message", err)
		return
	}

	writeJSON(w, http.StatusOK, msg)
}

func (h *MessageHandler) Delete(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	messageID, ok := pathUUID(w, r, "id", "Invalid message ID")
	if !ok {
		return
	}

	if err := h.messageService.Delete(r.Context(), userID, messageID); err != nil {
		writeServiceError(w, r, h.log, "delete message", err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"id": messageID, "deleted": true})
}

func pathUUID(w http.ResponseWriter, r *http.Request, name, message string) (uuid.UUID, bool) {
	id, err := uuid.Parse(r.PathValue(name))
	if err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_ID", message)
		return uuid.Nil, false
	}
	return id, true
}

// optionalUUID parses an optional query value; empty yields nil.
func optionalUUID(w http.ResponseWriter, raw, message string) (*uuid.UUID, bool) {
	if raw == "" {
		return nil, true
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_ID", message)
		return nil, false
	}
	return &id, true
}
