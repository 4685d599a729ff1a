package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/url"

	"github.com/op/go-logging"

	"cloudgallery/internal/domain"
	"cloudgallery/internal/gallery"
	"cloudgallery/internal/service"
)

// SortCookie persists the sort preference across sessions. It is the
// only persisted state; there are no server-side sessions.
const SortCookie = "gallery_sort"

type GalleryHandler struct {
	registry  *service.RegistryService
	mutations *service.MutationService
	engine    *gallery.Engine
	logger    *logging.Logger
}

type listResponse struct {
	Success      bool               `json:"success"`
	Files        []gallery.ViewFile `json:"files"`
	VisibleCount int                `json:"visible_count"`
	TotalCount   int                `json:"total_count"`
	CountMessage string             `json:"count_message"`
	Sort         gallery.SortState  `json:"sort"`
	Error        string             `json:"error,omitempty"`
}

type uploadResponse struct {
	Success bool                 `json:"success"`
	File    *domain.UploadResult `json:"file,omitempty"`
	Message string               `json:"message"`
}

type mutationResponse struct {
	Success      bool               `json:"success"`
	Message      string             `json:"message"`
	Files        []gallery.ViewFile `json:"files,omitempty"`
	TotalCount   int                `json:"total_count"`
	CountMessage string             `json:"count_message,omitempty"`
}

func NewGalleryHandler(
	registry *service.RegistryService,
	mutations *service.MutationService,
	engine *gallery.Engine,
	logger *logging.Logger,
) *GalleryHandler {
	return &GalleryHandler{
		registry:  registry,
		mutations: mutations,
		engine:    engine,
		logger:    logger,
	}
}

// ListFiles returns the current view of the gallery: a fresh snapshot
// from the store, filtered and sorted per the request. A failed fetch
// degrades to an empty listing with the error attached; the page stays
// usable.
func (h *GalleryHandler) ListFiles(w http.ResponseWriter, r *http.Request) {
	state := restoreSort(r)
	if toggle := r.URL.Query().Get("toggle"); toggle != "" {
		state.Toggle(toggle)
		h.persistSort(w, state)
	}

	listing, err := h.registry.FetchAll(r.Context())
	if err != nil {
		h.logger.Errorf("registry fetch failed: %v", err)
		writeJSON(w, http.StatusOK, listResponse{
			Success:      false,
			Files:        []gallery.ViewFile{},
			CountMessage: "No files found.",
			Sort:         state,
			Error:        err.Error(),
		})
		return
	}
	h.engine.SetListing(listing)

	// Search augments thin literal results with semantic matches on its
	// own; a plain listing comes back as the literal view.
	view := h.engine.Search(r.Context(), r.URL.Query().Get("q"), r.URL.Query().Get("category"), state)
	writeJSON(w, http.StatusOK, listResponse{
		Success:      true,
		Files:        view.Files,
		VisibleCount: view.VisibleCount,
		TotalCount:   view.TotalCount,
		CountMessage: view.CountMessage,
		Sort:         state,
	})
}

// UploadFile accepts one multipart file under the fileToUpload field,
// matching the browser form.
func (h *GalleryHandler) UploadFile(w http.ResponseWriter, r *http.Request) {
	file, header, err := r.FormFile("fileToUpload")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, uploadResponse{Success: false, Message: "No file uploaded"})
		return
	}
	defer file.Close()

	result, err := h.registry.Upload(r.Context(), file, header.Filename)
	if err != nil {
		h.logger.Errorf("upload %s failed: %v", header.Filename, err)
		var uploadErr *domain.UploadError
		if errors.As(err, &uploadErr) {
			writeJSON(w, http.StatusOK, uploadResponse{Success: false, Message: uploadErr.Error()})
			return
		}
		writeJSON(w, http.StatusOK, uploadResponse{Success: false, Message: "Upload failed, please try again"})
		return
	}

	writeJSON(w, http.StatusOK, uploadResponse{
		Success: true,
		File:    result,
		Message: "File uploaded successfully",
	})
}

// Mutate dispatches the form-encoded mutation actions the page posts:
// delete_file, bulk_delete and rename_file. Every success carries the
// refreshed full snapshot so the page re-renders from scratch.
func (h *GalleryHandler) Mutate(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		writeJSON(w, http.StatusBadRequest, mutationResponse{Success: false, Message: "Malformed request"})
		return
	}

	switch {
	case r.PostFormValue("delete_file") != "":
		h.deleteFile(w, r)
	case r.PostFormValue("bulk_delete") != "":
		h.bulkDelete(w, r)
	case r.PostFormValue("rename_file") != "":
		h.renameFile(w, r)
	default:
		writeJSON(w, http.StatusBadRequest, mutationResponse{Success: false, Message: "Unknown action"})
	}
}

func (h *GalleryHandler) deleteFile(w http.ResponseWriter, r *http.Request) {
	publicID := r.PostFormValue("public_id")
	if publicID == "" {
		writeJSON(w, http.StatusBadRequest, mutationResponse{Success: false, Message: "public_id is required"})
		return
	}
	kind := domain.ResourceKind(r.PostFormValue("resource_type"))
	if kind == "" {
		kind = domain.ResourceImage
	}

	result, err := h.mutations.DeleteOne(r.Context(), publicID, kind)
	if err != nil {
		h.respondMutationError(w, err)
		return
	}
	h.respondMutation(w, r, result)
}

func (h *GalleryHandler) bulkDelete(w http.ResponseWriter, r *http.Request) {
	var items []service.BulkDeleteItem
	if err := json.Unmarshal([]byte(r.PostFormValue("selected_files")), &items); err != nil {
		writeJSON(w, http.StatusBadRequest, mutationResponse{Success: false, Message: "selected_files must be a JSON array"})
		return
	}
	if len(items) == 0 {
		writeJSON(w, http.StatusBadRequest, mutationResponse{Success: false, Message: "No files selected"})
		return
	}

	result, err := h.mutations.DeleteBulk(r.Context(), items)
	if err != nil {
		h.respondMutationError(w, err)
		return
	}
	h.respondMutation(w, r, result)
}

func (h *GalleryHandler) renameFile(w http.ResponseWriter, r *http.Request) {
	publicID := r.PostFormValue("public_id")
	newName := r.PostFormValue("new_filename")
	if publicID == "" || newName == "" {
		writeJSON(w, http.StatusBadRequest, mutationResponse{Success: false, Message: "public_id and new_filename are required"})
		return
	}
	kind := domain.ResourceKind(r.PostFormValue("resource_type"))
	if kind == "" {
		kind = domain.ResourceImage
	}

	result, err := h.mutations.Rename(r.Context(), publicID, newName, kind)
	if err != nil {
		var conflict *domain.RenameConflictError
		if errors.As(err, &conflict) {
			// Surfaced verbatim, no retry.
			writeJSON(w, http.StatusConflict, mutationResponse{Success: false, Message: conflict.Error()})
			return
		}
		h.respondMutationError(w, err)
		return
	}
	h.respondMutation(w, r, result)
}

func (h *GalleryHandler) respondMutation(w http.ResponseWriter, r *http.Request, result *service.MutationResult) {
	resp := mutationResponse{Success: result.Success, Message: result.Message}
	if result.Listing != nil {
		h.engine.SetListing(result.Listing)
		view := h.engine.View("", "", restoreSort(r))
		resp.Files = view.Files
		resp.TotalCount = view.TotalCount
		resp.CountMessage = view.CountMessage
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *GalleryHandler) respondMutationError(w http.ResponseWriter, err error) {
	h.logger.Errorf("mutation failed: %v", err)
	writeJSON(w, http.StatusOK, mutationResponse{Success: false, Message: err.Error()})
}

// restoreSort reads the request's own preference. Sort state is
// per-client; it never passes through the shared engine, so concurrent
// requests with different cookies cannot contaminate each other.
func restoreSort(r *http.Request) gallery.SortState {
	state := gallery.DefaultSort()
	if cookie, err := r.Cookie(SortCookie); err == nil {
		if raw, err := url.QueryUnescape(cookie.Value); err == nil {
			state = gallery.FromJSON(raw)
		}
	}
	return state
}

func (h *GalleryHandler) persistSort(w http.ResponseWriter, state gallery.SortState) {
	http.SetCookie(w, &http.Cookie{
		Name:     SortCookie,
		Value:    url.QueryEscape(state.ToJSON()),
		Path:     "/",
		MaxAge:   365 * 24 * 3600,
		SameSite: http.SameSiteLaxMode,
	})
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(payload)
}
