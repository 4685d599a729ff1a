package domain

import (
	"path"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
)

// ResourceKind is the coarse asset type the remote store partitions by.
// Listing calls cannot span kinds, so the registry iterates all of them.
type ResourceKind string

const (
	ResourceImage ResourceKind = "image"
	ResourceVideo ResourceKind = "video"
	ResourceRaw   ResourceKind = "raw"
)

// AllResourceKinds is the fixed iteration order for a full listing.
var AllResourceKinds = []ResourceKind{ResourceImage, ResourceVideo, ResourceRaw}

// Gallery categories shown in the category filter. CategoryAll is a
// sentinel that matches every record.
const (
	CategoryAll   = "all"
	CategoryImage = "image"
	CategoryVideo = "video"
	CategoryPDF   = "pdf"
	CategoryOther = "other"
)

// FileRecord is one stored asset as reported by the remote store.
// PublicID is the only stable identity; Filename may collide across
// resource kinds and must never be used as a delete or rename key.
type FileRecord struct {
	URL          string       `json:"url"`
	PublicID     string       `json:"public_id"`
	CreatedAt    time.Time    `json:"created_at"`
	Format       string       `json:"format,omitempty"`
	SizeBytes    int64        `json:"size"`
	ResourceType ResourceKind `json:"resource_type"`
	DeliveryType string       `json:"type,omitempty"`
	Filename     string       `json:"filename"`
	Category     string       `json:"category"`
	DisplaySize  string       `json:"display_size,omitempty"`
}

// Derive fills the fields computed from store-provided ones: display
// filename (basename of the public ID plus format suffix), gallery
// category, and a human-readable size.
func (f *FileRecord) Derive() {
	f.Filename = path.Base(f.PublicID)
	if f.Format != "" {
		f.Filename += "." + f.Format
	}
	f.Category = categoryFor(f.ResourceType, f.Format)
	f.DisplaySize = humanize.Bytes(uint64(f.SizeBytes))
}

func categoryFor(kind ResourceKind, format string) string {
	if strings.EqualFold(format, "pdf") {
		return CategoryPDF
	}
	switch kind {
	case ResourceImage:
		return CategoryImage
	case ResourceVideo:
		return CategoryVideo
	default:
		return CategoryOther
	}
}

// Listing is a full snapshot of the stored files under the configured
// folder. It is always rebuilt from the store of record, never patched.
type Listing struct {
	Records    []FileRecord `json:"files"`
	TotalCount int          `json:"total_count"`
}

// UploadResult is what the store reports after a successful upload.
type UploadResult struct {
	URL          string       `json:"url"`
	PublicID     string       `json:"public_id"`
	ResourceType ResourceKind `json:"resource_type"`
	Format       string       `json:"format,omitempty"`
}
