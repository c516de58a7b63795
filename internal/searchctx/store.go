// Package searchctx keeps in-progress paginated searches in memory, keyed
// by id, each with an explicit expiry swept by a ticker-driven reaper.
package searchctx

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"aucbid/pkg/models"
)

// Store holds live search contexts.
type Store struct {
	mu       sync.RWMutex
	contexts map[string]*models.SearchContext
	ttl      time.Duration
}

// NewStore creates a store whose contexts expire ttl after their last use.
func NewStore(ttl time.Duration) *Store {
	return &Store{
		contexts: make(map[string]*models.SearchContext),
		ttl:      ttl,
	}
}

// Create registers a new search context for the given terms.
func (s *Store) Create(terms []models.SearchTerm) *models.SearchContext {
	now := time.Now()
	sc := &models.SearchContext{
		ID:          uuid.New().String(),
		Terms:       terms,
		TermIndex:   0,
		Page:        0,
		Results:     []models.Product{},
		TermTotals:  make([]int, len(terms)),
		TermFetched: make([]int, len(terms)),
		CreatedAt:   now,
		UpdatedAt:   now,
		ExpiresAt:   now.Add(s.ttl),
	}
	s.mu.Lock()
	s.contexts[sc.ID] = sc
	s.mu.Unlock()
	return sc
}

// Get returns a live context. Expired contexts are treated as missing.
func (s *Store) Get(id string) (*models.SearchContext, bool) {
	s.mu.RLock()
	sc, ok := s.contexts[id]
	s.mu.RUnlock()
	if !ok || time.Now().After(sc.ExpiresAt) {
		return nil, false
	}
	return sc, true
}

// Touch refreshes a context's timestamps and expiry after a mutation.
func (s *Store) Touch(sc *models.SearchContext) {
	s.mu.Lock()
	sc.UpdatedAt = time.Now()
	sc.ExpiresAt = sc.UpdatedAt.Add(s.ttl)
	s.mu.Unlock()
}

// Sweep drops expired contexts and returns how many were removed.
func (s *Store) Sweep() int {
	now := time.Now()
	s.mu.Lock()
	defer s.mu.Unlock()
	removed := 0
	for id, sc := range s.contexts {
		if now.After(sc.ExpiresAt) {
			delete(s.contexts, id)
			removed++
		}
	}
	return removed
}

// RunReaper sweeps on the given interval until ctx is cancelled.
func (s *Store) RunReaper(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			if n := s.Sweep(); n > 0 {
				log.Printf("search context reaper removed %d expired context(s)", n)
			}
		case <-ctx.Done():
			return
		}
	}
}

// AppendResults merges a fetched page into the context under the store
// lock, advancing the cursor to the (term, page) that was actually fetched
// and dropping products whose URL is already accumulated. Fetched counts
// and reported totals are bookkept against the term that was fetched.
func (s *Store) AppendResults(sc *models.SearchContext, res models.SearchPageResult, termIndex int) []models.Product {
	s.mu.Lock()
	defer s.mu.Unlock()

	seen := make(map[string]struct{}, len(sc.Results))
	for _, p := range sc.Results {
		seen[p.URL] = struct{}{}
	}
	added := make([]models.Product, 0, len(res.Products))
	for _, p := range res.Products {
		if _, dup := seen[p.URL]; dup {
			continue
		}
		seen[p.URL] = struct{}{}
		added = append(added, p)
	}
	sc.Results = append(sc.Results, added...)
	sc.TermIndex = termIndex
	sc.Page = res.CurrentPage

	if termIndex < len(sc.TermFetched) {
		sc.TermFetched[termIndex] += len(added)
		if res.TotalProducts > 0 {
			sc.TermTotals[termIndex] = res.TotalProducts
		}
	}
	total := 0
	for _, t := range sc.TermTotals {
		total += t
	}
	sc.TotalProducts = total
	return added
}

// Exhausted reports whether pagination is finished: the cursor sits on the
// last term and that term's own fetched count has reached the total the
// site reported for it. Counting per term keeps results accumulated from
// earlier terms from ending a later term's pagination prematurely.
func (s *Store) Exhausted(sc *models.SearchContext) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	last := len(sc.Terms) - 1
	if last < 0 || sc.TermIndex < last {
		return false
	}
	total := sc.TermTotals[last]
	return total > 0 && sc.TermFetched[last] >= total
}
