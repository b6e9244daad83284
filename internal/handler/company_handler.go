package handler

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/mostafaosama999/Marketing-agent-sub004/internal/model"
	"github.com/mostafaosama999/Marketing-agent-sub004/internal/service"
)

// CompanyHandler handles company management operations
type CompanyHandler struct {
	service *service.CompanyService
}

// NewCompanyHandler creates a new company handler
func NewCompanyHandler(service *service.CompanyService) *CompanyHandler {
	return &CompanyHandler{
		service: service,
	}
}

// ListResponse represents a paginated list response
type ListResponse struct {
	Items interface{} `json:"items"`
	Total int64       `json:"total"`
	Page  int         `json:"page"`
	Limit int         `json:"limit"`
}

// Create handles POST /api/v1/companies
func (h *CompanyHandler) Create(w http.ResponseWriter, r *http.Request) {
	var company model.Company
	if err := json.NewDecoder(r.Body).Decode(&company); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}

	if err := h.service.Create(r.Context(), &company); err != nil {
		if strings.Contains(err.Error(), "validation failed") || strings.Contains(err.Error(), "already exists") {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, company)
}

// List handles GET /api/v1/companies
func (h *CompanyHandler) List(w http.ResponseWriter, r *http.Request) {
	page := parseQueryInt(r, "page", 1)
	limit := parseQueryInt(r, "limit", 20)
	refreshEnabled := parseQueryBool(r, "refresh_enabled")

	var tags []string
	if tagsParam := r.URL.Query().Get("tags"); tagsParam != "" {
		tags = strings.Split(tagsParam, ",")
	}

	items, total, err := h.service.List(r.Context(), refreshEnabled, tags, page, limit)
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

// Get handles GET /api/v1/companies/{id}
func (h *CompanyHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := pathSegment(r, 4)
	if id == "" {
		writeError(w, http.StatusBadRequest, "Company ID is required")
		return
	}

	company, err := h.service.GetByID(r.Context(), id)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, company)
}

// Update handles PUT /api/v1/companies/{id}
func (h *CompanyHandler) Update(w http.ResponseWriter, r *http.Request) {
	id := pathSegment(r, 4)
	if id == "" {
		writeError(w, http.StatusBadRequest, "Company ID is required")
		return
	}

	var company model.Company
	if err := json.NewDecoder(r.Body).Decode(&company); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}

	if err := h.service.Update(r.Context(), id, &company); err != nil {
		if strings.Contains(err.Error(), "validation failed") {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, company)
}

// Delete handles DELETE /api/v1/companies/{id}
func (h *CompanyHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id := pathSegment(r, 4)
	if id == "" {
		writeError(w, http.StatusBadRequest, "Company ID is required")
		return
	}

	if err := h.service.Delete(r.Context(), id); err != nil {
		writeServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// pathSegment returns the nth slash-separated segment of the request path
func pathSegment(r *http.Request, n int) string {
	parts := strings.Split(r.URL.Path, "/")
	if len(parts) <= n {
		return ""
	}
	return parts[n]
}
