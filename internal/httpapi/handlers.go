package httpapi

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/samvad-hq/samvad-kindle-courier/internal/domain"
)

const (
	msgSent          = "Article sent to Kindle successfully"
	msgNotFound      = "Page doesn't exist"
	msgInvalidBody   = "Invalid request body"
	msgInvalidLimit  = "Invalid limit"
	msgAuditDisabled = "Delivery history unavailable"
)

type sendResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Title   string `json:"title"`
}

func (h *handler) sendArticle(w http.ResponseWriter, r *http.Request) {
	var req domain.DeliveryRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBodyBytes))
	// an empty body falls through to field validation
	if err := dec.Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, msgInvalidBody, "")
		return
	}

	res, err := h.runner.Run(r.Context(), req)
	if err != nil {
		h.writePipelineError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, sendResponse{
		Success: true,
		Message: msgSent,
		Title:   res.Title,
	})
}

func (h *handler) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *handler) listDeliveries(w http.ResponseWriter, r *http.Request) {
	if h.deliveries == nil {
		writeError(w, http.StatusServiceUnavailable, msgAuditDisabled, "")
		return
	}

	limit := defaultDeliveriesLimit
	if raw := strings.TrimSpace(r.URL.Query().Get("limit")); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, msgInvalidLimit, "")
			return
		}
		limit = min(n, maxDeliveriesLimit)
	}

	recs, err := h.deliveries.Recent(limit)
	if err != nil {
		h.log.ErrorObj("list deliveries failed", "deliveries_error", map[string]any{
			"error": err.Error(),
		})
		writeError(w, http.StatusInternalServerError, msgAuditDisabled, h.stack(err))
		return
	}
	for i := range recs {
		recs[i].Recipient = maskEmail(recs[i].Recipient)
	}
	writeJSON(w, http.StatusOK, map[string]any{"deliveries": recs})
}

// maskEmail keeps the first character of the local part and the domain so
// history stays readable without exposing a usable inbox address.
func maskEmail(addr string) string {
	at := strings.LastIndex(addr, "@")
	if at <= 0 {
		if addr == "" {
			return ""
		}
		return "***"
	}
	return addr[:1] + "***" + addr[at:]
}

// static serves files from the static directory and answers JSON 404 for
// anything that is not a regular file there.
func (h *handler) static(w http.ResponseWriter, r *http.Request) {
	if h.staticDir == "" {
		h.notFound(w, r)
		return
	}

	name := path.Clean("/" + r.URL.Path)
	full := filepath.Join(h.staticDir, filepath.FromSlash(name))
	info, err := os.Stat(full)
	if err == nil && info.IsDir() {
		full = filepath.Join(full, "index.html")
		info, err = os.Stat(full)
	}
	if err != nil || !info.Mode().IsRegular() {
		h.notFound(w, r)
		return
	}
	http.ServeFile(w, r, full)
}

func (h *handler) notFound(w http.ResponseWriter, _ *http.Request) {
	writeError(w, http.StatusNotFound, msgNotFound, "")
}
