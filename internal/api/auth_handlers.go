package api

import (
	"errors"
	"net/http"

	"github.com/LeventeLantos/blast-desk/internal/auth"
)

type authRequest struct {
	Action   string `json:"action"`
	Role     string `json:"role"`
	Password string `json:"password"`
}

func (h *Handler) Auth(w http.ResponseWriter, r *http.Request) {
	var req authRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	switch req.Action {
	case "logout":
		h.gate.Logout(w)
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})
	case "login":
		role, err := auth.ParseRole(req.Role)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid role")
			return
		}
		if err := h.gate.Login(w, role, req.Password); err != nil {
			if errors.Is(err, auth.ErrInvalidCredentials) {
				writeError(w, http.StatusUnauthorized, "Invalid password")
				return
			}
			writeError(w, http.StatusBadRequest, "Invalid role")
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"ok": true, "role": role})
	default:
		writeError(w, http.StatusBadRequest, "Invalid action")
	}
}

// Session reports which roles the caller is logged in as.
func (h *Handler) Session(w http.ResponseWriter, r *http.Request) {
	s := auth.SessionFrom(r)
	roles := s.Roles
	if roles == nil {
		roles = []auth.Role{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"roles": roles})
}
