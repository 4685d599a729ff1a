package search

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/op/go-logging"

	"cloudgallery/internal/domain"
	"cloudgallery/internal/gallery"
	"cloudgallery/internal/service"
)

type Handler struct {
	service  *Service
	registry *service.RegistryService
	logger   *logging.Logger
}

type searchHTTPResponse struct {
	Success   bool                `json:"success"`
	Files     []domain.FileRecord `json:"files"`
	Count     int                 `json:"count"`
	Message   string              `json:"message,omitempty"`
	Prewarmed bool                `json:"prewarmed,omitempty"`
	Error     string              `json:"error,omitempty"`
}

type analyzeHTTPRequest struct {
	URL   string `json:"url"`
	Query string `json:"query"`
}

type analyzeHTTPResponse struct {
	Success bool   `json:"success"`
	Matches bool   `json:"matches"`
	Error   string `json:"error,omitempty"`
}

func NewHandler(svc *Service, registry *service.RegistryService, logger *logging.Logger) *Handler {
	return &Handler{service: svc, registry: registry, logger: logger}
}

// Search serves GET/POST with q (the query) and a prewarm flag.
// Prewarm requests return immediately while the sidecar warms up in
// the background. Semantic augmentation is automatic, not a mode the
// caller selects: literal filename matches always come back, and when
// they are thin for a descriptive query the sidecar's matches are
// unioned in. The semantic side failing for any reason degrades to
// literal results with no error, so the baseline search never breaks.
func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("q")
	if query == "" {
		query = r.PostFormValue("q")
	}

	if r.URL.Query().Get("prewarm") == "true" && (query == "warmup" || query == "test") {
		go h.service.Prewarm()
		writeJSON(w, http.StatusOK, searchHTTPResponse{
			Success:   true,
			Files:     []domain.FileRecord{},
			Message:   "AI service is ready",
			Prewarmed: true,
		})
		return
	}

	if query == "" {
		writeJSON(w, http.StatusOK, searchHTTPResponse{Success: false, Error: "Search query is required"})
		return
	}

	listing, err := h.registry.FetchAll(r.Context())
	if err != nil {
		h.logger.Errorf("search: registry fetch failed: %v", err)
		writeJSON(w, http.StatusOK, searchHTTPResponse{Success: false, Error: err.Error()})
		return
	}
	if listing.TotalCount == 0 {
		writeJSON(w, http.StatusOK, searchHTTPResponse{Success: true, Files: []domain.FileRecord{}})
		return
	}

	literal := gallery.Filter(listing.Records, query, domain.CategoryAll)

	if !gallery.ShouldAugment(query, len(literal)) {
		writeJSON(w, http.StatusOK, searchHTTPResponse{
			Success: true,
			Files:   emptyIfNil(literal),
			Count:   len(literal),
		})
		return
	}

	matches, err := h.service.Search(r.Context(), query, listing.Records)
	if err != nil {
		// Literal results only; the user sees no error.
		h.logger.Warningf("search: %v, serving literal results", err)
		writeJSON(w, http.StatusOK, searchHTTPResponse{
			Success: true,
			Files:   emptyIfNil(literal),
			Count:   len(literal),
		})
		return
	}

	result := gallery.Union(listing.Records, literal, matches)
	writeJSON(w, http.StatusOK, searchHTTPResponse{
		Success: true,
		Files:   emptyIfNil(result),
		Count:   len(result),
		Message: fmt.Sprintf("AI analyzed %d files and found %d matches", listing.TotalCount, len(matches)),
	})
}

// Analyze asks the sidecar whether a single file matches the query.
func (h *Handler) Analyze(w http.ResponseWriter, r *http.Request) {
	var req analyzeHTTPRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, analyzeHTTPResponse{Success: false, Error: "Malformed request"})
		return
	}
	if req.URL == "" || req.Query == "" {
		writeJSON(w, http.StatusBadRequest, analyzeHTTPResponse{Success: false, Error: "url and query are required"})
		return
	}

	matches, _, err := h.service.Analyze(r.Context(), req.URL, req.Query)
	if err != nil {
		h.logger.Errorf("analyze failed: %v", err)
		writeJSON(w, http.StatusOK, analyzeHTTPResponse{Success: false, Error: err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, analyzeHTTPResponse{Success: true, Matches: matches})
}

func emptyIfNil(records []domain.FileRecord) []domain.FileRecord {
	if records == nil {
		return []domain.FileRecord{}
	}
	return records
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(payload)
}
