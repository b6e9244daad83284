package handler

import (
	"net/http"
	"strings"

	"github.com/mostafaosama999/Marketing-agent-sub004/pkg/middleware"
)

// Router handles HTTP routing
type Router struct {
	companyHandler *CompanyHandler
	runHandler     *RunHandler
	healthHandler  *HealthHandler
	corsConfig     middleware.CORSConfig
}

// NewRouter creates a new router
func NewRouter(
	companyHandler *CompanyHandler,
	runHandler *RunHandler,
	healthHandler *HealthHandler,
	corsConfig middleware.CORSConfig,
) *Router {
	return &Router{
		companyHandler: companyHandler,
		runHandler:     runHandler,
		healthHandler:  healthHandler,
		corsConfig:     corsConfig,
	}
}

// Handler returns the configured HTTP handler with middleware
func (rt *Router) Handler() http.Handler {
	mux := http.NewServeMux()

	// Health endpoints (no middleware)
	mux.HandleFunc("/health", rt.healthHandler.Health)
	mux.HandleFunc("/ready", rt.healthHandler.Ready)

	// API endpoints
	mux.HandleFunc("/api/v1/companies", rt.handleCompanies)
	mux.HandleFunc("/api/v1/companies/", rt.handleCompaniesWithID)
	mux.HandleFunc("/api/v1/runs", rt.handleRuns)
	mux.HandleFunc("/api/v1/runs/", rt.handleRunsWithID)

	// Apply middleware (CORS first to handle preflight requests)
	handler := middleware.CORS(rt.corsConfig)(mux)
	handler = middleware.Recovery(handler)
	handler = middleware.Logging(handler)
	handler = middleware.CorrelationID(handler)

	return handler
}

// handleCompanies routes company collection endpoints
func (rt *Router) handleCompanies(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		rt.companyHandler.List(w, r)
	case http.MethodPost:
		rt.companyHandler.Create(w, r)
	default:
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
	}
}

// handleCompaniesWithID routes individual company endpoints
func (rt *Router) handleCompaniesWithID(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		rt.companyHandler.Get(w, r)
	case http.MethodPut:
		rt.companyHandler.Update(w, r)
	case http.MethodDelete:
		rt.companyHandler.Delete(w, r)
	default:
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
	}
}

// handleRuns routes run collection endpoints
func (rt *Router) handleRuns(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		rt.runHandler.List(w, r)
	case http.MethodPost:
		rt.runHandler.Start(w, r)
	default:
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
	}
}

// handleRunsWithID routes individual run endpoints
func (rt *Router) handleRunsWithID(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/api/v1/runs/")

	// Selection confirmation gates phase two
	if strings.HasSuffix(path, "/analyze") {
		if r.Method != http.MethodPost {
			writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
			return
		}
		rt.runHandler.Analyze(w, r)
		return
	}

	switch r.Method {
	case http.MethodGet:
		rt.runHandler.Get(w, r)
	default:
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
	}
}
