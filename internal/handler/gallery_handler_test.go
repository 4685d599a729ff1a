package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/op/go-logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cloudgallery/internal/domain"
	"cloudgallery/internal/gallery"
	"cloudgallery/internal/handler"
	"cloudgallery/internal/service"
	"cloudgallery/internal/store"
)

var testLog = logging.MustGetLogger("handler_test")

type fakeStore struct {
	records []domain.FileRecord
	listErr error
	missing map[string]bool
}

func (f *fakeStore) Upload(ctx context.Context, file io.Reader, filename, folder string) (*domain.UploadResult, error) {
	return &domain.UploadResult{
		PublicID:     folder + "/" + strings.TrimSuffix(filename, ".jpg"),
		URL:          "https://cdn.example/" + filename,
		ResourceType: domain.ResourceImage,
	}, nil
}

func (f *fakeStore) List(ctx context.Context, params store.ListParams) (*store.Page, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	var out []domain.FileRecord
	for _, rec := range f.records {
		if rec.ResourceType == params.Kind && !f.missing[rec.PublicID] {
			out = append(out, rec)
		}
	}
	return &store.Page{Records: out}, nil
}

func (f *fakeStore) Delete(ctx context.Context, publicID string, kind domain.ResourceKind) bool {
	if f.missing == nil {
		f.missing = make(map[string]bool)
	}
	for _, rec := range f.records {
		if rec.PublicID == publicID && !f.missing[publicID] {
			f.missing[publicID] = true
			return true
		}
	}
	return false
}

func (f *fakeStore) Rename(ctx context.Context, fromPublicID, toPublicID string, kind domain.ResourceKind) (string, error) {
	for _, rec := range f.records {
		if rec.PublicID == toPublicID {
			return "", &domain.RenameConflictError{Target: toPublicID}
		}
	}
	for i, rec := range f.records {
		if rec.PublicID == fromPublicID {
			f.records[i].PublicID = toPublicID
			return toPublicID, nil
		}
	}
	return "", errors.New("not found")
}

func fixtureRecords() []domain.FileRecord {
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	return []domain.FileRecord{
		{PublicID: "gallery/sunset", Filename: "sunset.jpg", ResourceType: domain.ResourceImage, Category: domain.CategoryImage, CreatedAt: base.Add(time.Hour)},
		{PublicID: "gallery/harbor", Filename: "harbor.jpg", ResourceType: domain.ResourceImage, Category: domain.CategoryImage, CreatedAt: base.Add(30 * time.Minute)},
		{PublicID: "gallery/clip", Filename: "clip.mp4", ResourceType: domain.ResourceVideo, Category: domain.CategoryVideo, CreatedAt: base},
	}
}

func newHandlerFixture(fake *fakeStore) *handler.GalleryHandler {
	return newHandlerFixtureWithSemantic(fake, nil)
}

func newHandlerFixtureWithSemantic(fake *fakeStore, semantic gallery.SemanticFn) *handler.GalleryHandler {
	registry := service.NewRegistryService(fake, "gallery", testLog)
	mutations := service.NewMutationService(fake, registry, testLog)
	engine := gallery.NewEngine(semantic, testLog)
	return handler.NewGalleryHandler(registry, mutations, engine, testLog)
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func postForm(h http.HandlerFunc, form url.Values) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/api/mutate", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	h(rec, req)
	return rec
}

func TestListFilesReturnsSortedSnapshot(t *testing.T) {
	h := newHandlerFixture(&fakeStore{records: fixtureRecords()})

	req := httptest.NewRequest(http.MethodGet, "/api/files", nil)
	rec := httptest.NewRecorder()
	h.ListFiles(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, true, body["success"])
	assert.Equal(t, float64(3), body["total_count"])

	files := body["files"].([]interface{})
	require.Len(t, files, 3)
	first := files[0].(map[string]interface{})
	assert.Equal(t, "gallery/sunset", first["public_id"])
}

func TestListFilesAppliesQueryAndCategory(t *testing.T) {
	h := newHandlerFixture(&fakeStore{records: fixtureRecords()})

	req := httptest.NewRequest(http.MethodGet, "/api/files?q=clip&category=video", nil)
	rec := httptest.NewRecorder()
	h.ListFiles(rec, req)

	body := decodeBody(t, rec)
	assert.Equal(t, float64(1), body["visible_count"])
	assert.Equal(t, float64(3), body["total_count"])
	assert.Equal(t, "Showing 1 of 3 file(s)", body["count_message"])
}

func TestListFilesFetchFailureDegradesGracefully(t *testing.T) {
	h := newHandlerFixture(&fakeStore{listErr: errors.New("store unreachable")})

	req := httptest.NewRequest(http.MethodGet, "/api/files", nil)
	rec := httptest.NewRecorder()
	h.ListFiles(rec, req)

	// Still 200: the page renders the empty state rather than an
	// error page.
	assert.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, false, body["success"])
	assert.Equal(t, "No files found.", body["count_message"])
	assert.Contains(t, body["error"], "store unreachable")
}

func TestListFilesToggleSetsSortCookie(t *testing.T) {
	h := newHandlerFixture(&fakeStore{records: fixtureRecords()})

	req := httptest.NewRequest(http.MethodGet, "/api/files?toggle=name", nil)
	rec := httptest.NewRecorder()
	h.ListFiles(rec, req)

	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, handler.SortCookie, cookies[0].Name)

	raw, err := url.QueryUnescape(cookies[0].Value)
	require.NoError(t, err)
	state := gallery.FromJSON(raw)
	assert.Equal(t, gallery.SortByName, state.Field)
	assert.Equal(t, gallery.OrderDesc, state.Order)
}

func TestListFilesRestoresSortFromCookie(t *testing.T) {
	h := newHandlerFixture(&fakeStore{records: fixtureRecords()})

	state := gallery.SortState{Field: gallery.SortByName, Order: gallery.OrderAsc}
	req := httptest.NewRequest(http.MethodGet, "/api/files", nil)
	req.AddCookie(&http.Cookie{Name: handler.SortCookie, Value: url.QueryEscape(state.ToJSON())})
	rec := httptest.NewRecorder()
	h.ListFiles(rec, req)

	body := decodeBody(t, rec)
	files := body["files"].([]interface{})
	require.Len(t, files, 3)
	first := files[0].(map[string]interface{})
	assert.Equal(t, "gallery/clip", first["public_id"], "name ascending puts clip.mp4 first")
}

func TestListFilesAugmentsThinDescriptiveQueryAutomatically(t *testing.T) {
	records := fixtureRecords()
	semantic := func(ctx context.Context, query string, recs []domain.FileRecord) ([]domain.FileRecord, error) {
		// The sidecar decides clip.mp4 matches the description.
		return []domain.FileRecord{records[2]}, nil
	}
	h := newHandlerFixtureWithSemantic(&fakeStore{records: records}, semantic)

	req := httptest.NewRequest(http.MethodGet, "/api/files?q=a+boat+at+sea", nil)
	rec := httptest.NewRecorder()
	h.ListFiles(rec, req)

	body := decodeBody(t, rec)
	assert.Equal(t, true, body["success"])
	files := body["files"].([]interface{})
	require.Len(t, files, 1, "no filename matches, the semantic result still surfaces")
	assert.Equal(t, "gallery/clip", files[0].(map[string]interface{})["public_id"])
}

func TestListFilesConcurrentRequestsKeepTheirOwnSort(t *testing.T) {
	h := newHandlerFixture(&fakeStore{records: fixtureRecords()})

	byName := gallery.SortState{Field: gallery.SortByName, Order: gallery.OrderAsc}
	bySize := gallery.SortState{Field: gallery.SortBySize, Order: gallery.OrderAsc}

	run := func(state gallery.SortState, wantFirst string, errs chan<- string) {
		for i := 0; i < 20; i++ {
			req := httptest.NewRequest(http.MethodGet, "/api/files", nil)
			req.AddCookie(&http.Cookie{Name: handler.SortCookie, Value: url.QueryEscape(state.ToJSON())})
			rec := httptest.NewRecorder()
			h.ListFiles(rec, req)

			var body map[string]interface{}
			if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
				errs <- err.Error()
				return
			}
			files := body["files"].([]interface{})
			if got := files[0].(map[string]interface{})["public_id"]; got != wantFirst {
				errs <- "sort leaked across requests: got " + got.(string)
				return
			}
		}
		errs <- ""
	}

	errs := make(chan string, 2)
	go run(byName, "gallery/clip", errs)    // clip.mp4 first by name
	go run(bySize, "gallery/sunset", errs)  // all sizes zero, listing order kept
	for i := 0; i < 2; i++ {
		if msg := <-errs; msg != "" {
			t.Fatal(msg)
		}
	}
}

func TestUploadFile(t *testing.T) {
	h := newHandlerFixture(&fakeStore{})

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	part, err := writer.CreateFormFile("fileToUpload", "vacation.jpg")
	require.NoError(t, err)
	part.Write([]byte("jpeg bytes"))
	require.NoError(t, writer.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/files", &buf)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	rec := httptest.NewRecorder()
	h.UploadFile(rec, req)

	body := decodeBody(t, rec)
	assert.Equal(t, true, body["success"])
	assert.Equal(t, "File uploaded successfully", body["message"])
	file := body["file"].(map[string]interface{})
	assert.Equal(t, "gallery/vacation", file["public_id"])
}

func TestUploadFileMissingPart(t *testing.T) {
	h := newHandlerFixture(&fakeStore{})

	req := httptest.NewRequest(http.MethodPost, "/api/files", strings.NewReader(""))
	rec := httptest.NewRecorder()
	h.UploadFile(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestMutateDeleteReturnsRefreshedSnapshot(t *testing.T) {
	h := newHandlerFixture(&fakeStore{records: fixtureRecords()})

	rec := postForm(h.Mutate, url.Values{
		"delete_file":   {"1"},
		"public_id":     {"gallery/harbor"},
		"resource_type": {"image"},
	})

	assert.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, true, body["success"])
	assert.Equal(t, "File deleted successfully", body["message"])

	files := body["files"].([]interface{})
	assert.Len(t, files, 2, "snapshot reflects the deletion")
	assert.Equal(t, float64(2), body["total_count"])
}

func TestMutateDeleteAbsentFile(t *testing.T) {
	h := newHandlerFixture(&fakeStore{records: fixtureRecords()})

	rec := postForm(h.Mutate, url.Values{
		"delete_file": {"1"},
		"public_id":   {"gallery/never_existed"},
	})

	body := decodeBody(t, rec)
	assert.Equal(t, false, body["success"])
	assert.Equal(t, "Failed to delete file", body["message"])
	assert.Nil(t, body["files"])
}

func TestMutateBulkDelete(t *testing.T) {
	h := newHandlerFixture(&fakeStore{records: fixtureRecords()})

	selected, err := json.Marshal([]service.BulkDeleteItem{
		{PublicID: "gallery/sunset", ResourceType: domain.ResourceImage},
		{PublicID: "gallery/never_existed", ResourceType: domain.ResourceImage},
	})
	require.NoError(t, err)

	rec := postForm(h.Mutate, url.Values{
		"bulk_delete":    {"1"},
		"selected_files": {string(selected)},
	})

	body := decodeBody(t, rec)
	assert.Equal(t, false, body["success"])
	assert.Equal(t, "Deleted 1 file(s), 1 failed", body["message"])
	files := body["files"].([]interface{})
	assert.Len(t, files, 2)
}

func TestMutateBulkDeleteRejectsBadPayload(t *testing.T) {
	h := newHandlerFixture(&fakeStore{records: fixtureRecords()})

	rec := postForm(h.Mutate, url.Values{
		"bulk_delete":    {"1"},
		"selected_files": {"not json"},
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = postForm(h.Mutate, url.Values{
		"bulk_delete":    {"1"},
		"selected_files": {"[]"},
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestMutateRename(t *testing.T) {
	h := newHandlerFixture(&fakeStore{records: fixtureRecords()})

	rec := postForm(h.Mutate, url.Values{
		"rename_file":   {"1"},
		"public_id":     {"gallery/harbor"},
		"new_filename":  {"marina.jpg"},
		"resource_type": {"image"},
	})

	body := decodeBody(t, rec)
	assert.Equal(t, true, body["success"])
	assert.Equal(t, "File renamed successfully", body["message"])

	found := false
	for _, f := range body["files"].([]interface{}) {
		if f.(map[string]interface{})["public_id"] == "gallery/marina" {
			found = true
		}
	}
	assert.True(t, found)
}

func TestMutateRenameConflictIs409(t *testing.T) {
	h := newHandlerFixture(&fakeStore{records: fixtureRecords()})

	rec := postForm(h.Mutate, url.Values{
		"rename_file":  {"1"},
		"public_id":    {"gallery/harbor"},
		"new_filename": {"sunset.jpg"},
	})

	assert.Equal(t, http.StatusConflict, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, false, body["success"])
	assert.Equal(t, `a file named "gallery/sunset" already exists`, body["message"])
}

func TestMutateUnknownAction(t *testing.T) {
	h := newHandlerFixture(&fakeStore{records: fixtureRecords()})

	rec := postForm(h.Mutate, url.Values{"explode": {"1"}})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
