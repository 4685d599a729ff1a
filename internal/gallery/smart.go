package gallery

import (
	"regexp"
	"strings"
	"sync"
	"time"

	"cloudgallery/internal/domain"
)

// SemanticDebounce is how long the engine waits after the last
// keystroke before dispatching a semantic search. The literal filter
// re-runs on every keystroke; the sidecar call does not.
const SemanticDebounce = 500 * time.Millisecond

var descriptiveWords = regexp.MustCompile(`(?i)\b(looks?|shows?|contains?|has|with|about|like|appears?|seems?|depicts?|features?)\b`)

// IsDescriptiveQuery reports whether the query reads like a content
// description rather than a filename fragment: more than two words, or
// a descriptive verb/preposition.
func IsDescriptiveQuery(query string) bool {
	if len(strings.Fields(query)) > 2 {
		return true
	}
	return descriptiveWords.MatchString(query)
}

// ShouldAugment decides whether a literal search should automatically
// be augmented with semantic results. It is a fallback, not a
// user-selected mode: zero literal hits always qualify, a thin result
// set only when the query looks descriptive.
func ShouldAugment(query string, literalCount int) bool {
	if len(query) <= 2 {
		return false
	}
	if literalCount == 0 {
		return true
	}
	return literalCount < 3 && IsDescriptiveQuery(query)
}

// Union merges literal and semantic matches (OR), keeping the
// listing's order and each record exactly once. Semantic results
// augment literal ones, they never replace them.
func Union(listing []domain.FileRecord, literal, semantic []domain.FileRecord) []domain.FileRecord {
	member := make(map[string]bool, len(literal)+len(semantic))
	for _, rec := range literal {
		member[rec.PublicID] = true
	}
	for _, rec := range semantic {
		member[rec.PublicID] = true
	}

	var out []domain.FileRecord
	for _, rec := range listing {
		if member[rec.PublicID] {
			out = append(out, rec)
		}
	}
	return out
}

// Debouncer coalesces a burst of triggers into one call after a quiet
// period. A newer trigger invalidates a pending one; an in-flight call
// is not aborted, but the validity check it receives turns false so
// its result can be ignored.
type Debouncer struct {
	mu         sync.Mutex
	delay      time.Duration
	timer      *time.Timer
	seq        uint64
	superseded chan struct{}
}

func NewDebouncer(delay time.Duration) *Debouncer {
	return &Debouncer{delay: delay}
}

// Trigger schedules fn after the quiet period, cancelling any pending
// dispatch. fn receives a check that reports whether this dispatch is
// still the latest one. The returned channel closes when a newer
// trigger (or Stop) supersedes this one, so a caller waiting on the
// dispatch can give up instead of blocking on a timer that will never
// fire.
func (d *Debouncer) Trigger(fn func(current func() bool)) <-chan struct{} {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.seq++
	seq := d.seq
	if d.timer != nil {
		d.timer.Stop()
	}
	if d.superseded != nil {
		close(d.superseded)
	}
	d.superseded = make(chan struct{})
	sup := d.superseded

	current := func() bool {
		d.mu.Lock()
		defer d.mu.Unlock()
		return d.seq == seq
	}
	d.timer = time.AfterFunc(d.delay, func() {
		fn(current)
	})
	return sup
}

// Stop cancels any pending dispatch and invalidates in-flight ones.
func (d *Debouncer) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.seq++
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
	if d.superseded != nil {
		close(d.superseded)
		d.superseded = nil
	}
}
