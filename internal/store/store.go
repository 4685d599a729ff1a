package store

import (
	"context"
	"fmt"
	"io"

	"github.com/op/go-logging"

	"cloudgallery/internal/domain"
)

// DefaultPageSize is the max_results the registry asks for per listing
// call. The store may return fewer.
const DefaultPageSize = 500

// ListParams describes one paginated listing call. Cursor is opaque and
// must be round-tripped exactly as returned by the previous page.
type ListParams struct {
	Prefix     string
	Kind       domain.ResourceKind
	Cursor     string
	MaxResults int
}

// Page is one slice of a listing. An empty NextCursor means the
// sequence for this resource kind is exhausted.
type Page struct {
	Records    []domain.FileRecord
	NextCursor string
}

// AssetStore wraps the four remote operations the gallery needs. The
// remote store is the only source of truth; implementations hold no
// state beyond connection handles.
type AssetStore interface {
	// Upload stores the file under the given folder and returns the
	// store-assigned identity.
	Upload(ctx context.Context, file io.Reader, filename, folder string) (*domain.UploadResult, error)

	// List returns one page of assets of a single resource kind.
	List(ctx context.Context, params ListParams) (*Page, error)

	// Delete removes one asset. It reports false instead of failing so
	// bulk deletes can account per-item outcomes; deleting an absent
	// public ID is false, not an error.
	Delete(ctx context.Context, publicID string, kind domain.ResourceKind) bool

	// Rename changes an asset's public ID and returns the new one. A
	// colliding target yields *domain.RenameConflictError.
	Rename(ctx context.Context, fromPublicID, toPublicID string, kind domain.ResourceKind) (string, error)
}

// NewStore builds the backend selected in the config.
func NewStore(conf *Config, logger *logging.Logger) (AssetStore, error) {
	switch conf.Backend {
	case BackendCloudinary:
		return NewCloudinaryStore(conf, logger)
	case BackendS3:
		return NewS3Store(conf, logger)
	default:
		return nil, fmt.Errorf("unknown store backend %q", conf.Backend)
	}
}
