package service

import (
	"context"
	"fmt"
	"io"
	"sort"

	"github.com/op/go-logging"

	"cloudgallery/internal/domain"
	"cloudgallery/internal/store"
)

// Pager walks the paginated listing of a single resource kind. The
// cursor is opaque and round-tripped exactly as the store returned it.
// A Pager is a finite, restartable sequence: Next yields pages until
// done, Reset rewinds to the first page.
type Pager struct {
	store  store.AssetStore
	prefix string
	kind   domain.ResourceKind
	cursor string
	done   bool
}

func NewPager(st store.AssetStore, prefix string, kind domain.ResourceKind) *Pager {
	return &Pager{store: st, prefix: prefix, kind: kind}
}

// Next returns the next page of records. done reports that the
// sequence is exhausted; the final page may be empty.
func (p *Pager) Next(ctx context.Context) (records []domain.FileRecord, done bool, err error) {
	if p.done {
		return nil, true, nil
	}

	page, err := p.store.List(ctx, store.ListParams{
		Prefix:     p.prefix,
		Kind:       p.kind,
		Cursor:     p.cursor,
		MaxResults: store.DefaultPageSize,
	})
	if err != nil {
		return nil, false, err
	}

	p.cursor = page.NextCursor
	if p.cursor == "" {
		p.done = true
	}
	return page.Records, p.done, nil
}

func (p *Pager) Reset() {
	p.cursor = ""
	p.done = false
}

// RegistryService produces the full, sorted snapshot of stored files
// under the configured folder. It never caches: every call re-derives
// the set from the store of record.
type RegistryService struct {
	store  store.AssetStore
	folder string
	logger *logging.Logger
}

func NewRegistryService(st store.AssetStore, folder string, logger *logging.Logger) *RegistryService {
	return &RegistryService{
		store:  st,
		folder: folder,
		logger: logger,
	}
}

// FetchAll lists every resource kind to exhaustion, merges the results
// and sorts them newest first. Any listing failure aborts the whole
// fetch; a truncated set is never returned silently.
func (s *RegistryService) FetchAll(ctx context.Context) (*domain.Listing, error) {
	var all []domain.FileRecord

	for _, kind := range domain.AllResourceKinds {
		pager := NewPager(s.store, s.folder, kind)
		for {
			records, done, err := pager.Next(ctx)
			if err != nil {
				return nil, fmt.Errorf("failed to list %s assets: %w", kind, err)
			}
			all = append(all, records...)
			if done {
				break
			}
		}
	}

	// Newest first; SliceStable keeps the store-provided order for
	// records created at the same instant.
	sort.SliceStable(all, func(i, j int) bool {
		return all[i].CreatedAt.After(all[j].CreatedAt)
	})

	s.logger.Debugf("registry fetch: %d records under %q", len(all), s.folder)

	return &domain.Listing{
		Records:    all,
		TotalCount: len(all),
	}, nil
}

// Upload sends one file to the store. The new record only becomes
// visible through the next FetchAll snapshot.
func (s *RegistryService) Upload(ctx context.Context, file io.Reader, filename string) (*domain.UploadResult, error) {
	result, err := s.store.Upload(ctx, file, filename, s.folder)
	if err != nil {
		return nil, err
	}
	s.logger.Infof("uploaded %s (%s)", result.PublicID, result.ResourceType)
	return result, nil
}
