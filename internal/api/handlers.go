package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
)

// Handler exposes the Service over HTTP.
type Handler struct {
	svc *Service
}

// NewHandler creates a Handler.
func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// GetStatus handles GET /api/status.
func (h *Handler) GetStatus(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, h.svc.CurrentStatus())
}

type syncRequest struct {
	DryRun bool `json:"dry_run"`
}

type syncResponse struct {
	IndexURL string            `json:"index_url,omitempty"`
	Actions  map[string]string `json:"urls_with_actions"`
	Error    string            `json:"error,omitempty"`
}

// TriggerSync handles POST /api/sync. The body is optional; when present it
// may set {"dry_run": true}. The run executes synchronously under the
// request context.
func (h *Handler) TriggerSync(w http.ResponseWriter, r *http.Request) {
	var req syncRequest
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, 1<<20))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("read body failed"))
		return
	}
	if len(body) > 0 {
		if err := json.Unmarshal(body, &req); err != nil {
			writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
			return
		}
	}

	report, err := h.svc.RunSync(r.Context(), req.DryRun)
	if errors.Is(err, ErrSyncRunning) {
		writeJSON(w, http.StatusConflict, errorBody("sync already running"))
		return
	}

	resp := syncResponse{Actions: map[string]string{}}
	if report != nil {
		resp.IndexURL = report.IndexURL
		resp.Actions = report.URLsWithActions()
	}
	if err != nil {
		resp.Error = err.Error()
		writeJSON(w, http.StatusBadGateway, resp)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}
