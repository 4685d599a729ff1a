package gallery

import (
	"encoding/json"
	"sort"
	"strings"

	"cloudgallery/internal/domain"
)

// Sort fields the gallery understands.
const (
	SortByName = "name"
	SortByDate = "date"
	SortBySize = "size"
	SortByType = "type"

	OrderAsc  = "asc"
	OrderDesc = "desc"
)

// SortState is the user's sort preference. It round-trips through a
// client cookie so it survives reloads; there is no server-side
// session. Correctness of the underlying data never depends on it.
type SortState struct {
	Field string `json:"field"`
	Order string `json:"order"`
}

func DefaultSort() SortState {
	return SortState{Field: SortByDate, Order: OrderDesc}
}

// Toggle selects a sort field. Re-selecting the current field flips
// the direction; a new field starts descending.
func (s *SortState) Toggle(field string) {
	if s.Field == field {
		if s.Order == OrderAsc {
			s.Order = OrderDesc
		} else {
			s.Order = OrderAsc
		}
		return
	}
	s.Field = field
	s.Order = OrderDesc
}

func (s SortState) ToJSON() string {
	data, _ := json.Marshal(s)
	return string(data)
}

// FromJSON restores a persisted preference, falling back to the
// default on garbage so a corrupt cookie cannot break the page.
func FromJSON(data string) SortState {
	state := DefaultSort()
	if data == "" {
		return state
	}
	var parsed SortState
	if err := json.Unmarshal([]byte(data), &parsed); err != nil {
		return state
	}
	if parsed.Field != "" {
		state.Field = parsed.Field
	}
	if parsed.Order == OrderAsc || parsed.Order == OrderDesc {
		state.Order = parsed.Order
	}
	return state
}

// ApplySort returns a sorted copy of the records. The listing itself
// is the source of truth and is never reordered in place; views are
// recomputed from it. The sort is stable, so equal keys keep the
// listing's order and re-sorting by the same key reverses exactly.
func ApplySort(records []domain.FileRecord, state SortState) []domain.FileRecord {
	out := make([]domain.FileRecord, len(records))
	copy(out, records)

	less := func(a, b domain.FileRecord) bool {
		switch state.Field {
		case SortByName:
			return strings.ToLower(a.Filename) < strings.ToLower(b.Filename)
		case SortBySize:
			return a.SizeBytes < b.SizeBytes
		case SortByType:
			return strings.ToLower(a.Format) < strings.ToLower(b.Format)
		default: // date
			return a.CreatedAt.Before(b.CreatedAt)
		}
	}

	sort.SliceStable(out, func(i, j int) bool {
		if state.Order == OrderAsc {
			return less(out[i], out[j])
		}
		return less(out[j], out[i])
	})
	return out
}
