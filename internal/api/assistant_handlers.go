package api

import (
	"net/http"
	"strconv"

	"github.com/LeventeLantos/blast-desk/internal/campaign"
)

func (h *Handler) ListBlasts(w http.ResponseWriter, r *http.Request) {
	items, err := h.svc.ListBlasts(r.Context(), r.URL.Query().Get("status"))
	if err != nil {
		fail(w, r, "load campaigns", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items})
}

func (h *Handler) ListTasks(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	q := r.URL.Query()
	filter, err := campaign.ParseTaskFilter(q.Get("filter"))
	if err != nil {
		fail(w, r, "load tasks", err)
		return
	}
	query := campaign.TaskQuery{Filter: filter, Search: q.Get("search")}
	if raw := q.Get("assigned_to"); raw != "" {
		aid, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid assigned_to")
			return
		}
		query.AssignedTo = &aid
	}

	list, err := h.svc.ListTasks(r.Context(), id, query)
	if err != nil {
		fail(w, r, "load tasks", err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (h *Handler) CompleteTask(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	task, err := h.svc.CompleteTask(r.Context(), id)
	if err != nil {
		fail(w, r, "complete task", err)
		return
	}
	writeJSON(w, http.StatusOK, task)
}

func (h *Handler) ReopenTask(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	task, err := h.svc.ReopenTask(r.Context(), id)
	if err != nil {
		fail(w, r, "reopen task", err)
		return
	}
	writeJSON(w, http.StatusOK, task)
}

func (h *Handler) FailTask(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var req struct {
		Reason string `json:"reason"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}

	task, err := h.svc.FailTask(r.Context(), id, req.Reason)
	if err != nil {
		fail(w, r, "fail task", err)
		return
	}
	writeJSON(w, http.StatusOK, task)
}

func (h *Handler) CompleteAllTasks(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	n, err := h.svc.CompleteAllTasks(r.Context(), id)
	if err != nil {
		fail(w, r, "complete tasks", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"updated": n})
}
