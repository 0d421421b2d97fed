package api

import (
	"net/http"

	"github.com/LeventeLantos/blast-desk/internal/campaign"
)

func (h *Handler) ListAssistants(w http.ResponseWriter, r *http.Request) {
	items, err := h.svc.ListAssistants(r.Context())
	if err != nil {
		fail(w, r, "load assistants", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items})
}

func (h *Handler) AddAssistant(w http.ResponseWriter, r *http.Request) {
	var req struct {
		DisplayName string `json:"display_name"`
		Code        string `json:"code"`
		Notes       string `json:"notes"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}

	a, err := h.svc.AddAssistant(r.Context(), campaign.AddAssistantInput{
		DisplayName: req.DisplayName,
		Code:        req.Code,
		Notes:       req.Notes,
	})
	if err != nil {
		fail(w, r, "add assistant", err)
		return
	}
	writeJSON(w, http.StatusCreated, a)
}

func (h *Handler) SetAssistantActive(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var req struct {
		Active *bool `json:"active"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Active == nil {
		writeError(w, http.StatusBadRequest, "active is required")
		return
	}

	a, err := h.svc.SetAssistantActive(r.Context(), id, *req.Active)
	if err != nil {
		fail(w, r, "update assistant", err)
		return
	}
	writeJSON(w, http.StatusOK, a)
}

func (h *Handler) ToggleAssistant(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	a, err := h.svc.ToggleAssistant(r.Context(), id)
	if err != nil {
		fail(w, r, "update assistant", err)
		return
	}
	writeJSON(w, http.StatusOK, a)
}

func (h *Handler) DeleteAssistant(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	if err := h.svc.DeleteAssistant(r.Context(), id); err != nil {
		fail(w, r, "delete assistant", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (h *Handler) LoadRecipients(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	q := r.URL.Query()
	page := parseInt(q.Get("page"), 1)
	size := parseInt(q.Get("page_size"), campaign.DefaultPageSize)

	res, err := h.svc.LoadRecipients(r.Context(), id, page, size)
	if err != nil {
		fail(w, r, "load recipients", err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

type assignRequest struct {
	RecipientIDs []int64 `json:"recipient_ids"`
	AssistantID  int64   `json:"assistant_id"`
}

func (h *Handler) AssignRecipients(w http.ResponseWriter, r *http.Request) {
	var req assignRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	n, err := h.svc.AssignRecipients(r.Context(), req.RecipientIDs, req.AssistantID)
	if err != nil {
		fail(w, r, "assign recipients", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"updated": n})
}

func (h *Handler) UnassignRecipients(w http.ResponseWriter, r *http.Request) {
	var req assignRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	n, err := h.svc.UnassignRecipients(r.Context(), req.RecipientIDs)
	if err != nil {
		fail(w, r, "unassign recipients", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"updated": n})
}
