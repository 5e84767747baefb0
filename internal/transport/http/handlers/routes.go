package handlers

import "net/http"

// Register mounts the authenticated API on mux. protect wraps every route
// and must establish the caller's identity.
func Register(mux *http.ServeMux, protect func(http.Handler) http.Handler, m *MessageHandler, c *ConversationHandler, s *SettingsHandler) {
	route := func(pattern string, h http.HandlerFunc) {
		mux.Handle(pattern, protect(h))
	}

	// Messages
	route("POST /api/v1/messages", m.Create)
	route("GET /api/v1/messages", m.List)
	route("GET /api/v1/messages/{id}", m.Get)
	route("GET /api/v1/messages/{id}/replies", m.ListReplies)
	route("PATCH /api/v1/messages/{id}", m.Edit)
	route("DELETE /api/v1/messages/{id}", m.Delete)

	// Conversations
	route("POST /api/v1/conversations/resolve", c.Resolve)
	route("GET /api/v1/conversations/contacts", c.ListContacts)

	// Settings
	route("GET /api/v1/settings/{key}", s.Get)
	route("PUT /api/v1/settings/{key}", s.Put)
	route("DELETE /api/v1/settings/{key}", s.Delete)
}
