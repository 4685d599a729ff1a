package gallery

import (
	"fmt"
	"regexp"
	"strings"

	"cloudgallery/internal/domain"
)

// Options selects the view computed over a listing snapshot.
type Options struct {
	Query    string
	Category string
	Sort     SortState
}

// ViewFile is one record as the page renders it. DisplayName carries
// the match highlighting; the underlying Filename is untouched so
// later comparisons keep working.
type ViewFile struct {
	domain.FileRecord
	DisplayName string `json:"display_name"`
}

// View is a computed projection of the listing. The listing stays the
// source of truth; the view is recomputed from it, never the reverse.
type View struct {
	Files        []ViewFile `json:"files"`
	VisibleCount int        `json:"visible_count"`
	TotalCount   int        `json:"total_count"`
	CountMessage string     `json:"count_message"`
}

// Filter applies the literal search and the category filter, combined
// with AND. The literal match is a case-insensitive substring test on
// the filename; an empty query matches everything, and the category
// sentinel "all" matches everything.
func Filter(records []domain.FileRecord, query, category string) []domain.FileRecord {
	q := strings.ToLower(strings.TrimSpace(query))
	var out []domain.FileRecord
	for _, rec := range records {
		if q != "" && !strings.Contains(strings.ToLower(rec.Filename), q) {
			continue
		}
		if category != "" && category != domain.CategoryAll && rec.Category != category {
			continue
		}
		out = append(out, rec)
	}
	return out
}

// Highlight wraps every occurrence of the query's first whitespace
// token in the filename with <mark> tags. Display only.
func Highlight(filename, query string) string {
	token := firstToken(query)
	if token == "" {
		return filename
	}
	re, err := regexp.Compile("(?i)" + regexp.QuoteMeta(token))
	if err != nil {
		return filename
	}
	return re.ReplaceAllString(filename, "<mark>$0</mark>")
}

func firstToken(query string) string {
	fields := strings.Fields(query)
	if len(fields) == 0 {
		return ""
	}
	return fields[0]
}

// Compute builds the rendered view: filter, sort, highlight, count.
func Compute(listing *domain.Listing, opts Options) *View {
	filtered := Filter(listing.Records, opts.Query, opts.Category)
	return renderView(listing, filtered, opts.Query, opts.Sort)
}

func renderView(listing *domain.Listing, visible []domain.FileRecord, query string, state SortState) *View {
	sorted := ApplySort(visible, state)
	view := &View{
		Files:        make([]ViewFile, 0, len(sorted)),
		VisibleCount: len(sorted),
		TotalCount:   listing.TotalCount,
	}
	for _, rec := range sorted {
		view.Files = append(view.Files, ViewFile{
			FileRecord:  rec,
			DisplayName: Highlight(rec.Filename, query),
		})
	}
	view.CountMessage = countMessage(view.VisibleCount, view.TotalCount)
	return view
}

func countMessage(visible, total int) string {
	switch {
	case total == 0:
		return "No files found."
	case visible == 0:
		return "No files found matching your filters"
	case visible == total:
		plural := ""
		if visible != 1 {
			plural = "s"
		}
		return fmt.Sprintf("Showing %d file%s", visible, plural)
	default:
		return fmt.Sprintf("Showing %d of %d file(s)", visible, total)
	}
}
