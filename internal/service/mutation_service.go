package service

import (
	"context"
	"fmt"
	"path"
	"strings"

	"github.com/op/go-logging"

	"cloudgallery/internal/domain"
	"cloudgallery/internal/store"
)

// MutationService applies delete, bulk-delete and rename operations
// and refetches the registry snapshot after any success. No concurrent
// mutations run against the same snapshot; the UI serializes them by
// disabling controls while one is in flight.
type MutationService struct {
	store    store.AssetStore
	registry *RegistryService
	logger   *logging.Logger
}

// MutationResult reports one mutation plus the refreshed snapshot the
// page should re-render. Listing is nil when nothing changed.
type MutationResult struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Listing *domain.Listing `json:"-"`
}

// BulkDeleteItem identifies one asset in a bulk delete request.
type BulkDeleteItem struct {
	PublicID     string              `json:"public_id"`
	ResourceType domain.ResourceKind `json:"resource_type"`
}

func NewMutationService(st store.AssetStore, registry *RegistryService, logger *logging.Logger) *MutationService {
	return &MutationService{
		store:    st,
		registry: registry,
		logger:   logger,
	}
}

// DeleteOne removes a single asset. A missing public ID reports failure
// without raising; no retry either way.
func (s *MutationService) DeleteOne(ctx context.Context, publicID string, kind domain.ResourceKind) (*MutationResult, error) {
	if !s.store.Delete(ctx, publicID, kind) {
		return &MutationResult{Success: false, Message: "Failed to delete file"}, nil
	}

	listing, err := s.registry.FetchAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("file deleted but refetch failed: %w", err)
	}
	s.logger.Infof("deleted %s", publicID)
	return &MutationResult{Success: true, Message: "File deleted successfully", Listing: listing}, nil
}

// DeleteBulk deletes the items one at a time. Sequential on purpose:
// the store rate-limits, and per-item accounting stays deterministic.
// Exactly one refetch happens afterward as long as anything was
// deleted, regardless of individual failures.
func (s *MutationService) DeleteBulk(ctx context.Context, items []BulkDeleteItem) (*MutationResult, error) {
	deleted, failed := 0, 0
	for _, item := range items {
		if s.store.Delete(ctx, item.PublicID, item.ResourceType) {
			deleted++
		} else {
			failed++
		}
	}

	result := &MutationResult{
		Success: failed == 0,
		Message: fmt.Sprintf("Deleted %d file(s), %d failed", deleted, failed),
	}
	if failed == 0 {
		result.Message = fmt.Sprintf("Deleted %d file(s)", deleted)
	}

	if deleted > 0 {
		listing, err := s.registry.FetchAll(ctx)
		if err != nil {
			return nil, fmt.Errorf("%s, but refetch failed: %w", result.Message, err)
		}
		result.Listing = listing
	}
	if failed > 0 {
		s.logger.Warningf("bulk delete: %v", &domain.DeletePartialFailure{Deleted: deleted, Failed: failed})
	}
	return result, nil
}

// Rename gives the asset a new public ID built from the requested
// display name. The extension is stripped first (the identifier never
// carries the format suffix) and the folder component of the old ID is
// preserved. A colliding target surfaces *domain.RenameConflictError
// verbatim.
func (s *MutationService) Rename(ctx context.Context, publicID, newFilename string, kind domain.ResourceKind) (*MutationResult, error) {
	base := strings.TrimSpace(newFilename)
	if ext := path.Ext(base); ext != "" {
		base = strings.TrimSuffix(base, ext)
	}
	if base == "" {
		return &MutationResult{Success: false, Message: "New filename cannot be empty"}, nil
	}

	newPublicID := base
	if dir := path.Dir(publicID); dir != "." && dir != "/" {
		newPublicID = dir + "/" + base
	}

	renamedID, err := s.store.Rename(ctx, publicID, newPublicID, kind)
	if err != nil {
		return nil, err
	}

	listing, err := s.registry.FetchAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("file renamed but refetch failed: %w", err)
	}
	s.logger.Infof("renamed %s -> %s", publicID, renamedID)
	return &MutationResult{Success: true, Message: "File renamed successfully", Listing: listing}, nil
}
