package gallery

import (
	"context"
	"sync"
	"time"

	"github.com/op/go-logging"

	"cloudgallery/internal/domain"
)

// semanticDispatchTimeout bounds one debounced sidecar call. It covers
// the bridge's own health probe and search timeouts with room to spare.
const semanticDispatchTimeout = 90 * time.Second

// SemanticFn asks the search bridge which records match the query.
type SemanticFn func(ctx context.Context, query string, records []domain.FileRecord) ([]domain.FileRecord, error)

// Engine owns the view state: the current listing snapshot and the
// debounced semantic dispatch. The listing is the only shared mutable
// state and is always replaced whole, never patched, so a mutex around
// the swap is all the locking needed. Sort preference is per-client
// and travels with each request; the engine never stores it.
type Engine struct {
	mu       sync.Mutex
	listing  *domain.Listing
	debounce *Debouncer
	semantic SemanticFn
	logger   *logging.Logger
}

func NewEngine(semantic SemanticFn, logger *logging.Logger) *Engine {
	return &Engine{
		listing:  &domain.Listing{},
		debounce: NewDebouncer(SemanticDebounce),
		semantic: semantic,
		logger:   logger,
	}
}

// SetListing replaces the snapshot after a registry fetch or a
// successful mutation.
func (e *Engine) SetListing(listing *domain.Listing) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if listing == nil {
		listing = &domain.Listing{}
	}
	e.listing = listing
}

func (e *Engine) Listing() *domain.Listing {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.listing
}

// View computes the current projection without touching the network.
func (e *Engine) View(query, category string, state SortState) *View {
	e.mu.Lock()
	listing := e.listing
	e.mu.Unlock()
	return Compute(listing, Options{Query: query, Category: category, Sort: state})
}

// Search computes the literal view and, when the query warrants it,
// waits for a semantic dispatch to augment it. The dispatch is
// debounced: a burst of queries costs one sidecar call, and a query
// superseded by a newer one returns its literal view right away.
// Semantic failures degrade to the literal view; they are never
// surfaced as errors.
func (e *Engine) Search(ctx context.Context, query, category string, state SortState) *View {
	e.mu.Lock()
	listing := e.listing
	e.mu.Unlock()

	literal := Filter(listing.Records, query, category)
	view := renderView(listing, literal, query, state)

	if e.semantic == nil || !ShouldAugment(query, len(literal)) {
		e.debounce.Stop()
		return view
	}

	results := make(chan []domain.FileRecord, 1)
	superseded := e.debounce.Trigger(func(current func() bool) {
		// The caller may be gone by the time the quiet period elapses;
		// the dispatch gets its own deadline.
		dctx, cancel := context.WithTimeout(context.Background(), semanticDispatchTimeout)
		defer cancel()

		matches, err := e.semantic(dctx, query, listing.Records)
		if err != nil {
			e.logger.Warningf("semantic search unavailable: %v", err)
			results <- nil
			return
		}
		if !current() {
			results <- nil
			return
		}
		results <- Filter(matches, "", category)
	})

	select {
	case matches := <-results:
		if len(matches) == 0 {
			return view
		}
		combined := Union(listing.Records, literal, matches)
		return renderView(listing, combined, query, state)
	case <-superseded:
		return view
	case <-ctx.Done():
		return view
	}
}
