package search_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cloudgallery/internal/domain"
	"cloudgallery/internal/search"
	"cloudgallery/internal/service"
	"cloudgallery/internal/store"
)

// listStore serves a fixed record set in a single page, enough for the
// registry fetch the handler performs.
type listStore struct {
	records []domain.FileRecord
}

func (s *listStore) Upload(ctx context.Context, file io.Reader, filename, folder string) (*domain.UploadResult, error) {
	return nil, nil
}

func (s *listStore) List(ctx context.Context, params store.ListParams) (*store.Page, error) {
	var out []domain.FileRecord
	for _, rec := range s.records {
		if rec.ResourceType == params.Kind {
			out = append(out, rec)
		}
	}
	return &store.Page{Records: out}, nil
}

func (s *listStore) Delete(ctx context.Context, publicID string, kind domain.ResourceKind) bool {
	return false
}

func (s *listStore) Rename(ctx context.Context, fromPublicID, toPublicID string, kind domain.ResourceKind) (string, error) {
	return toPublicID, nil
}

func handlerFixture(t *testing.T, sidecar *httptest.Server, records []domain.FileRecord) *search.Handler {
	t.Helper()
	svc := search.NewService(sidecar.URL, testLog)
	registry := service.NewRegistryService(&listStore{records: records}, "gallery", testLog)
	return search.NewHandler(svc, registry, testLog)
}

func decodeSearchResponse(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func galleryFixture() []domain.FileRecord {
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	return []domain.FileRecord{
		{PublicID: "gallery/boy_with_kite", URL: "https://cdn.example/boy_with_kite.jpg", Filename: "boy_with_kite.jpg", ResourceType: domain.ResourceImage, CreatedAt: base.Add(time.Hour)},
		{PublicID: "gallery/city_night", URL: "https://cdn.example/city_night.jpg", Filename: "city_night.jpg", ResourceType: domain.ResourceImage, CreatedAt: base},
	}
}

func TestHandlerAugmentsThinDescriptiveQueryAutomatically(t *testing.T) {
	sidecar := fakeSidecar(t, true, func(req sidecarRequest) []sidecarFile {
		return []sidecarFile{{PublicID: "gallery/city_night"}}
	})
	h := handlerFixture(t, sidecar, galleryFixture())

	// "with" is descriptive and matches one filename: augmented with no
	// flag on the request.
	req := httptest.NewRequest(http.MethodGet, "/api/search?q=with", nil)
	rec := httptest.NewRecorder()
	h.Search(rec, req)

	body := decodeSearchResponse(t, rec)
	assert.Equal(t, true, body["success"])
	files := body["files"].([]interface{})
	require.Len(t, files, 2)
	assert.Equal(t, "gallery/boy_with_kite", files[0].(map[string]interface{})["public_id"])
	assert.Equal(t, "gallery/city_night", files[1].(map[string]interface{})["public_id"])
	assert.Equal(t, "AI analyzed 2 files and found 1 matches", body["message"])
}

func TestHandlerSidecarDownServesLiteralResults(t *testing.T) {
	sidecar := fakeSidecar(t, false, nil)
	h := handlerFixture(t, sidecar, galleryFixture())

	req := httptest.NewRequest(http.MethodGet, "/api/search?q=with", nil)
	rec := httptest.NewRecorder()
	h.Search(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	body := decodeSearchResponse(t, rec)
	assert.Equal(t, true, body["success"])
	assert.Empty(t, body["error"])

	files := body["files"].([]interface{})
	require.Len(t, files, 1)
	file := files[0].(map[string]interface{})
	assert.Equal(t, "gallery/boy_with_kite", file["public_id"])
}

func TestHandlerPlainQuerySkipsSidecar(t *testing.T) {
	called := false
	sidecar := fakeSidecar(t, true, func(req sidecarRequest) []sidecarFile {
		called = true
		return nil
	})
	h := handlerFixture(t, sidecar, galleryFixture())

	// "night" is neither descriptive nor short of literal hits.
	req := httptest.NewRequest(http.MethodGet, "/api/search?q=night", nil)
	rec := httptest.NewRecorder()
	h.Search(rec, req)

	body := decodeSearchResponse(t, rec)
	assert.Equal(t, true, body["success"])
	files := body["files"].([]interface{})
	require.Len(t, files, 1)
	assert.Equal(t, "gallery/city_night", files[0].(map[string]interface{})["public_id"])
	assert.False(t, called, "literal hits suffice, the sidecar stays out of it")
}

func TestHandlerPrewarmRespondsImmediately(t *testing.T) {
	sidecar := fakeSidecar(t, false, nil)
	h := handlerFixture(t, sidecar, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/search?q=warmup&prewarm=true", nil)
	rec := httptest.NewRecorder()
	h.Search(rec, req)

	body := decodeSearchResponse(t, rec)
	assert.Equal(t, true, body["success"])
	assert.Equal(t, true, body["prewarmed"])
	assert.Equal(t, "AI service is ready", body["message"])
}

func TestHandlerRequiresQuery(t *testing.T) {
	sidecar := fakeSidecar(t, true, nil)
	h := handlerFixture(t, sidecar, galleryFixture())

	req := httptest.NewRequest(http.MethodGet, "/api/search", nil)
	rec := httptest.NewRecorder()
	h.Search(rec, req)

	body := decodeSearchResponse(t, rec)
	assert.Equal(t, false, body["success"])
	assert.Equal(t, "Search query is required", body["error"])
}

func TestHandlerEmptyGallery(t *testing.T) {
	sidecar := fakeSidecar(t, true, nil)
	h := handlerFixture(t, sidecar, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/search?q=sunset", nil)
	rec := httptest.NewRecorder()
	h.Search(rec, req)

	body := decodeSearchResponse(t, rec)
	assert.Equal(t, true, body["success"])
	assert.Empty(t, body["files"])
}

func TestHandlerAnalyze(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {})
	mux.HandleFunc("/analyze", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]interface{}{
			"success": true,
			"matches": true,
		})
	})
	sidecar := httptest.NewServer(mux)
	t.Cleanup(sidecar.Close)

	h := handlerFixture(t, sidecar, galleryFixture())

	payload := `{"url":"https://cdn.example/sunset_beach.jpg","query":"a sunset"}`
	req := httptest.NewRequest(http.MethodPost, "/api/analyze", strings.NewReader(payload))
	rec := httptest.NewRecorder()
	h.Analyze(rec, req)

	body := decodeSearchResponse(t, rec)
	assert.Equal(t, true, body["success"])
	assert.Equal(t, true, body["matches"])
}

func TestHandlerAnalyzeRejectsMissingFields(t *testing.T) {
	sidecar := fakeSidecar(t, true, nil)
	h := handlerFixture(t, sidecar, nil)

	req := httptest.NewRequest(http.MethodPost, "/api/analyze", strings.NewReader(`{"url":""}`))
	rec := httptest.NewRecorder()
	h.Analyze(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
