package search

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/op/go-logging"

	"cloudgallery/internal/domain"
)

const (
	healthTimeout  = 5 * time.Second
	prewarmTimeout = 3 * time.Second
	searchTimeout  = 60 * time.Second

	// MaxCandidates bounds the request size and latency of one search
	// call. Full-corpus search would have to page externally.
	MaxCandidates = 20
)

// Service bridges gallery queries to the CLIP sidecar. Semantic search
// is a best-effort layer on top of literal filename search: a broken
// sidecar must never break the baseline experience.
type Service struct {
	baseURL string
	client  *http.Client
	logger  *logging.Logger
}

type candidate struct {
	URL          string `json:"url"`
	ResourceType string `json:"resource_type"`
	PublicID     string `json:"public_id"`
	Filename     string `json:"filename"`
}

type searchRequest struct {
	Query string      `json:"query"`
	Files []candidate `json:"files"`
}

type searchResponse struct {
	Success bool        `json:"success"`
	Files   []candidate `json:"files"`
	Error   string      `json:"error,omitempty"`
}

type analyzeRequest struct {
	URL   string `json:"url"`
	Query string `json:"query"`
}

type analyzeResponse struct {
	Success    bool    `json:"success"`
	Matches    bool    `json:"matches"`
	Similarity float64 `json:"similarity"`
	Error      string  `json:"error,omitempty"`
}

func NewService(baseURL string, logger *logging.Logger) *Service {
	return &Service{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: searchTimeout},
		logger:  logger,
	}
}

// Healthy probes the sidecar with a short timeout. Anything but a 200
// means unavailable.
func (s *Service) Healthy(ctx context.Context) bool {
	hctx, cancel := context.WithTimeout(ctx, healthTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(hctx, http.MethodGet, s.baseURL+"/health", nil)
	if err != nil {
		return false
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}

// Search asks the sidecar which of the listed files match the query by
// visual content. Only images and videos are eligible; the candidate
// set is capped at MaxCandidates before dispatch. An unhealthy sidecar
// fails fast with *domain.ServiceUnavailableError; every failure past
// the health probe degrades to an empty match set with the cause
// logged, so callers always fall back to literal results.
func (s *Service) Search(ctx context.Context, query string, records []domain.FileRecord) ([]domain.FileRecord, error) {
	if !s.Healthy(ctx) {
		return nil, &domain.ServiceUnavailableError{Service: "AI search"}
	}

	eligible := make([]domain.FileRecord, 0, len(records))
	for _, rec := range records {
		if rec.ResourceType == domain.ResourceImage || rec.ResourceType == domain.ResourceVideo {
			eligible = append(eligible, rec)
		}
	}
	if len(eligible) == 0 {
		return nil, nil
	}
	if len(eligible) > MaxCandidates {
		eligible = eligible[:MaxCandidates]
	}

	reqBody := searchRequest{Query: query}
	for _, rec := range eligible {
		reqBody.Files = append(reqBody.Files, candidate{
			URL:          rec.URL,
			ResourceType: string(rec.ResourceType),
			PublicID:     rec.PublicID,
			Filename:     rec.Filename,
		})
	}

	var respBody searchResponse
	if err := s.post(ctx, "/search", reqBody, &respBody); err != nil {
		s.logger.Errorf("semantic search failed: %v", err)
		return nil, nil
	}
	if !respBody.Success {
		s.logger.Errorf("semantic search rejected: %s", respBody.Error)
		return nil, nil
	}

	return matchRecords(respBody.Files, eligible), nil
}

// Analyze asks the sidecar whether one file matches the query.
func (s *Service) Analyze(ctx context.Context, fileURL, query string) (bool, float64, error) {
	if !s.Healthy(ctx) {
		return false, 0, &domain.ServiceUnavailableError{Service: "AI search"}
	}

	var respBody analyzeResponse
	if err := s.post(ctx, "/analyze", analyzeRequest{URL: fileURL, Query: query}, &respBody); err != nil {
		return false, 0, &domain.TransportError{Op: "analyze file", Err: err}
	}
	if !respBody.Success {
		return false, 0, fmt.Errorf("analyze file: %s", respBody.Error)
	}
	return respBody.Matches, respBody.Similarity, nil
}

// Prewarm wakes the sidecar so the first real query does not pay the
// model-load latency: a health probe, then a tiny test call under a
// hard timeout, abandoned silently past that. Run it in a goroutine;
// the primary search flow never waits on it.
func (s *Service) Prewarm() {
	ctx, cancel := context.WithTimeout(context.Background(), prewarmTimeout)
	defer cancel()

	if !s.Healthy(ctx) {
		s.logger.Debugf("prewarm: AI service not ready yet")
		return
	}

	var respBody searchResponse
	if err := s.post(ctx, "/search", searchRequest{Query: "warmup"}, &respBody); err != nil {
		s.logger.Debugf("prewarm: AI service still loading: %v", err)
		return
	}
	s.logger.Infof("AI service is ready and warmed up")
}

func (s *Service) post(ctx context.Context, path string, in, out interface{}) error {
	payload, err := json.Marshal(in)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// matchRecords maps the sidecar's answer back onto the candidate
// records, deduplicating by public ID, then URL, then filename, first
// seen wins. Relevance scores never leave this package: the caller
// only needs membership.
func matchRecords(matches []candidate, candidates []domain.FileRecord) []domain.FileRecord {
	seen := make(map[string]bool, len(matches))
	taken := make(map[string]bool, len(matches))

	var out []domain.FileRecord
	for _, m := range matches {
		key := m.PublicID
		if key == "" {
			key = m.URL
		}
		if key == "" {
			key = m.Filename
		}
		if key == "" || seen[key] {
			continue
		}
		seen[key] = true

		for _, rec := range candidates {
			if taken[rec.PublicID] {
				continue
			}
			if strings.EqualFold(rec.PublicID, m.PublicID) ||
				strings.EqualFold(rec.URL, m.URL) ||
				(m.Filename != "" && strings.EqualFold(rec.Filename, m.Filename)) {
				taken[rec.PublicID] = true
				out = append(out, rec)
				break
			}
		}
	}
	return out
}
