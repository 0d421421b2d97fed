package api

import (
	"bytes"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/LeventeLantos/blast-desk/internal/landing"
)

func (h *Handler) LandingPage(w http.ResponseWriter, r *http.Request) {
	var buf bytes.Buffer
	if err := landing.Render(&buf, h.landing.Page()); err != nil {
		slog.Error("render landing page", "error", err)
		http.Error(w, "Failed to render page", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}

func (h *Handler) LandingInfo(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.landing.Page())
}

func (h *Handler) QRCode(w http.ResponseWriter, r *http.Request) {
	png, err := h.landing.QR(r.Context())
	if err != nil {
		fail(w, r, "render QR code", err)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Content-Length", strconv.Itoa(len(png)))
	w.Header().Set("Cache-Control", "public, max-age=3600")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(png)
}
