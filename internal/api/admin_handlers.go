package api

import (
	"bytes"
	"encoding/json"
	"io"
	"mime"
	"net/http"
	"time"

	"github.com/LeventeLantos/blast-desk/internal/campaign"
)

const maxImportBody = 10 << 20

type createBlastRequest struct {
	Message     string          `json:"message"`
	Phones      []string        `json:"phones"`
	FiltersJSON string          `json:"filters_json"`
	Filters     json.RawMessage `json:"filters"`
}

func (h *Handler) CreateBlast(w http.ResponseWriter, r *http.Request) {
	var req createBlastRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	filters := req.FiltersJSON
	if len(req.Filters) > 0 && string(req.Filters) != "null" {
		filters = string(req.Filters)
	}

	res, err := h.svc.CreateBlast(r.Context(), campaign.CreateBlastInput{
		Message:     req.Message,
		Phones:      req.Phones,
		FiltersJSON: filters,
	})
	if err != nil {
		fail(w, r, "create blast", err)
		return
	}
	writeJSON(w, http.StatusCreated, res)
}

func (h *Handler) RecentBlasts(w http.ResponseWriter, r *http.Request) {
	items, err := h.svc.ListRecentBlasts(r.Context())
	if err != nil {
		fail(w, r, "load campaigns", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items})
}

func (h *Handler) SetBlastStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var req struct {
		Status string `json:"status"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}

	if err := h.svc.SetBlastStatus(r.Context(), id, req.Status); err != nil {
		fail(w, r, "update campaign", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"id": id, "status": req.Status})
}

// ImportContacts accepts either a raw CSV body or a multipart form with the
// CSV in the "file" field.
func (h *Handler) ImportContacts(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxImportBody)

	var src io.Reader = r.Body
	if mt, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type")); mt == "multipart/form-data" {
		f, _, err := r.FormFile("file")
		if err != nil {
			writeError(w, http.StatusBadRequest, "Missing file")
			return
		}
		defer f.Close()
		src = f
	}

	res, err := h.svc.ImportContacts(r.Context(), src)
	if err != nil {
		fail(w, r, "import contacts", err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func contactQuery(r *http.Request) campaign.ContactQuery {
	q := r.URL.Query()
	return campaign.ContactQuery{
		PhoneContains: q.Get("phone"),
		From:          q.Get("from"),
		To:            q.Get("to"),
	}
}

func (h *Handler) ListContacts(w http.ResponseWriter, r *http.Request) {
	items, err := h.svc.ListContacts(r.Context(), contactQuery(r))
	if err != nil {
		fail(w, r, "load contacts", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items})
}

func (h *Handler) ExportContacts(w http.ResponseWriter, r *http.Request) {
	var buf bytes.Buffer
	if err := h.svc.ExportContacts(r.Context(), contactQuery(r), &buf); err != nil {
		fail(w, r, "export contacts", err)
		return
	}

	name := "contacts-" + time.Now().UTC().Format("20060102") + ".csv"
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="`+name+`"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}
