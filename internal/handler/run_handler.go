package handler

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/mostafaosama999/Marketing-agent-sub004/internal/model"
	"github.com/mostafaosama999/Marketing-agent-sub004/internal/service"
)

// RunHandler handles pipeline run operations
type RunHandler struct {
	service *service.RunService
}

// NewRunHandler creates a new run handler
func NewRunHandler(service *service.RunService) *RunHandler {
	return &RunHandler{
		service: service,
	}
}

// StartRunRequest represents a discovery run request
type StartRunRequest struct {
	CompanyIDs []string `json:"company_ids"`
}

// StartRunResponse represents the async run submission response
type StartRunResponse struct {
	RunID   string `json:"run_id"`
	Status  string `json:"status"`
	Message string `json:"message"`
}

// AnalyzeRequest carries the human selections that gate phase two
type AnalyzeRequest struct {
	Selections map[string]string `json:"selections"` // company ID -> chosen URL
}

// RunResponse combines the persisted run with live progress when available
type RunResponse struct {
	Run      *model.PipelineRun `json:"run"`
	Live     *model.RunStatus   `json:"live,omitempty"`
	InFlight bool               `json:"in_flight"`
}

// Start handles POST /api/v1/runs
func (h *RunHandler) Start(w http.ResponseWriter, r *http.Request) {
	var req StartRunRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}

	if len(req.CompanyIDs) == 0 {
		writeError(w, http.StatusBadRequest, "company_ids is required")
		return
	}

	runID, err := h.service.StartDiscovery(r.Context(), req.CompanyIDs, "api")
	if err != nil {
		if strings.Contains(err.Error(), "not found") || strings.Contains(err.Error(), "invalid") {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusAccepted, StartRunResponse{
		RunID:   runID,
		Status:  model.RunStatusRunning,
		Message: "Discovery run queued successfully",
	})
}

// Get handles GET /api/v1/runs/{id}
func (h *RunHandler) Get(w http.ResponseWriter, r *http.Request) {
	runID := pathSegment(r, 4)
	if runID == "" {
		writeError(w, http.StatusBadRequest, "Run ID is required")
		return
	}

	run, err := h.service.GetRun(r.Context(), runID)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	response := RunResponse{Run: run}
	if live, ok := h.service.GetStatus(runID); ok {
		response.Live = live
		response.InFlight = live.Status == model.RunStatusRunning
	}

	writeJSON(w, http.StatusOK, response)
}

// Analyze handles POST /api/v1/runs/{id}/analyze
func (h *RunHandler) Analyze(w http.ResponseWriter, r *http.Request) {
	runID := pathSegment(r, 4)
	if runID == "" {
		writeError(w, http.StatusBadRequest, "Run ID is required")
		return
	}

	var req AnalyzeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}

	if err := h.service.StartAnalysis(r.Context(), runID, req.Selections); err != nil {
		if strings.Contains(err.Error(), "not awaiting selection") ||
			strings.Contains(err.Error(), "selection references") ||
			strings.Contains(err.Error(), "was not discovered") {
			writeError(w, http.StatusConflict, err.Error())
			return
		}
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusAccepted, StartRunResponse{
		RunID:   runID,
		Status:  model.RunStatusRunning,
		Message: "Analysis phase queued successfully",
	})
}

// List handles GET /api/v1/runs
func (h *RunHandler) List(w http.ResponseWriter, r *http.Request) {
	page := parseQueryInt(r, "page", 1)
	limit := parseQueryInt(r, "limit", 20)
	status := r.URL.Query().Get("status")

	items, total, err := h.service.ListRuns(r.Context(), status, page, limit)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, ListResponse{
		Items: items,
		Total: total,
		Page:  page,
		Limit: limit,
	})
}
