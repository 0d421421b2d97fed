package api

import (
	"net/http"

	"github.com/LeventeLantos/blast-desk/internal/auth"
)

func Router(h *Handler) http.Handler {
	mux := http.NewServeMux()

	adminOnly := auth.Require(unauthorized, auth.RoleAdmin)
	assistantOnly := auth.Require(unauthorized, auth.RoleAssistant)
	maxOnly := auth.Require(unauthorized, auth.RoleMax)
	staff := auth.Require(unauthorized, auth.RoleAssistant, auth.RoleMax)

	handle := func(pattern string, gate func(http.Handler) http.Handler, fn http.HandlerFunc) {
		mux.Handle(pattern, gate(fn))
	}

	mux.HandleFunc("GET /api/health", h.Health)
	mux.HandleFunc("POST /api/auth", h.Auth)
	mux.HandleFunc("GET /api/auth/session", h.Session)

	handle("POST /api/admin/blasts", adminOnly, h.CreateBlast)
	handle("GET /api/admin/blasts/recent", adminOnly, h.RecentBlasts)
	handle("PATCH /api/admin/blasts/{id}/status", adminOnly, h.SetBlastStatus)
	handle("POST /api/admin/contacts/import", adminOnly, h.ImportContacts)
	handle("GET /api/admin/contacts", adminOnly, h.ListContacts)
	handle("GET /api/admin/contacts/export", adminOnly, h.ExportContacts)
	handle("GET /api/admin/sweeper/status", adminOnly, h.SweeperStatus)
	handle("POST /api/admin/sweeper/start", adminOnly, h.SweeperStart)
	handle("POST /api/admin/sweeper/stop", adminOnly, h.SweeperStop)

	handle("GET /api/blasts", staff, h.ListBlasts)
	handle("GET /api/blasts/{id}/tasks", assistantOnly, h.ListTasks)
	handle("POST /api/blasts/{id}/tasks/complete-all", assistantOnly, h.CompleteAllTasks)
	handle("POST /api/tasks/{id}/complete", assistantOnly, h.CompleteTask)
	handle("POST /api/tasks/{id}/reopen", assistantOnly, h.ReopenTask)
	handle("POST /api/tasks/{id}/fail", assistantOnly, h.FailTask)

	handle("GET /api/assistants", maxOnly, h.ListAssistants)
	handle("POST /api/assistants", maxOnly, h.AddAssistant)
	handle("PATCH /api/assistants/{id}", maxOnly, h.SetAssistantActive)
	handle("POST /api/assistants/{id}/toggle", maxOnly, h.ToggleAssistant)
	handle("DELETE /api/assistants/{id}", maxOnly, h.DeleteAssistant)
	handle("GET /api/blasts/{id}/recipients", maxOnly, h.LoadRecipients)
	handle("POST /api/recipients/assign", maxOnly, h.AssignRecipients)
	handle("POST /api/recipients/unassign", maxOnly, h.UnassignRecipients)

	mux.HandleFunc("GET /api/landing", h.LandingInfo)
	mux.HandleFunc("GET /qr.png", h.QRCode)
	mux.HandleFunc("GET /{$}", h.LandingPage)

	return mux
}
