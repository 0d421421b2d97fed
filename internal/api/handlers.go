package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/LeventeLantos/blast-desk/internal/auth"
	"github.com/LeventeLantos/blast-desk/internal/campaign"
	"github.com/LeventeLantos/blast-desk/internal/landing"
	"github.com/LeventeLantos/blast-desk/internal/scheduler"
)

const maxJSONBody = 1 << 20

type Handler struct {
	svc     *campaign.Service
	gate    *auth.Gate
	sweeper *scheduler.Scheduler
	landing *landing.Service
}

func NewHandler(svc *campaign.Service, gate *auth.Gate, sweeper *scheduler.Scheduler, l *landing.Service) *Handler {
	return &Handler{svc: svc, gate: gate, sweeper: sweeper, landing: l}
}

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (h *Handler) SweeperStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.sweeper.Status())
}

func (h *Handler) SweeperStart(w http.ResponseWriter, r *http.Request) {
	h.sweeper.Start()
	writeJSON(w, http.StatusOK, h.sweeper.Status())
}

func (h *Handler) SweeperStop(w http.ResponseWriter, r *http.Request) {
	h.sweeper.Stop()
	writeJSON(w, http.StatusOK, h.sweeper.Status())
}

// fail answers a campaign error. User errors keep their message; anything
// else is logged and reported as "Failed to <op>".
func fail(w http.ResponseWriter, r *http.Request, op string, err error) {
	var ue *campaign.UserError
	if errors.As(err, &ue) {
		status := http.StatusBadRequest
		switch {
		case errors.Is(err, campaign.ErrNotFound):
			status = http.StatusNotFound
		case errors.Is(err, campaign.ErrConflict):
			status = http.StatusConflict
		}
		writeError(w, status, ue.Msg)
		return
	}

	slog.Error("request failed",
		"op", op,
		"method", r.Method,
		"path", r.URL.Path,
		"error", err,
	)
	writeError(w, http.StatusInternalServerError, "Failed to "+op)
}

func unauthorized(w http.ResponseWriter, r *http.Request) {
	writeError(w, http.StatusUnauthorized, "Unauthorized")
}

// decodeJSON reads a JSON body into v and answers 400 itself on failure.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxJSONBody))
	if err := dec.Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return false
	}
	return true
}

// pathID parses the {id} wildcard and answers 400 itself when it is not a
// positive integer.
func pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id <= 0 {
		writeError(w, http.StatusBadRequest, "Invalid id")
		return 0, false
	}
	return id, true
}

func parseInt(raw string, def int) int {
	if raw == "" {
		return def
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return def
	}
	return v
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
