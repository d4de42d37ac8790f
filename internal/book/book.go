// Package book holds the in-memory orderbook ladders for the tracked assets.
// Updates are wholesale replacements: the upstream feed's messages describe
// the full current ladder, so there is no incremental patching and no history.
package book

import (
	"sync"

	"github.com/liuxing5/Polymarket-trading-bot-15min-BTC/internal/domain"
)

// Store keeps one bid and one ask ladder per tracked asset. Ladders are
// created at construction and live for the process lifetime. Entries with
// non-positive size are treated as deletions and never stored.
//
// The monitor loop is the only writer, but reads may come from other
// goroutines (e.g. tests, status dumps), so access is guarded by a mutex.
type Store struct {
	mu      sync.RWMutex
	ladders map[string]*ladder
}

type ladder struct {
	bids []domain.PriceLevel
	asks []domain.PriceLevel
}

// NewStore creates a Store tracking exactly the given asset IDs. Updates for
// unknown assets are rejected.
func NewStore(assetIDs []string) *Store {
	ladders := make(map[string]*ladder, len(assetIDs))
	for _, id := range assetIDs {
		ladders[id] = &ladder{}
	}
	return &Store{ladders: ladders}
}

// Tracks reports whether assetID is one of the tracked assets.
func (s *Store) Tracks(assetID string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.ladders[assetID]
	return ok
}

// ApplySnapshot replaces the stored ladder for one side of one asset with the
// given levels, dropping entries with non-positive size. No ordering is
// imposed on the input; consumers that need best-price-first must sort at
// read time. Returns false when the asset is not tracked.
func (s *Store) ApplySnapshot(side domain.BookSide, assetID string, levels []domain.PriceLevel) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	l, ok := s.ladders[assetID]
	if !ok {
		return false
	}

	kept := make([]domain.PriceLevel, 0, len(levels))
	for _, lvl := range levels {
		if lvl.Size > 0 {
			kept = append(kept, lvl)
		}
	}

	switch side {
	case domain.BookSideBid:
		l.bids = kept
	case domain.BookSideAsk:
		l.asks = kept
	default:
		return false
	}
	return true
}

// Read returns independent copies of the ask and bid ladders for assetID.
// Callers never observe later mutation through the returned slices.
func (s *Store) Read(assetID string) (asks, bids []domain.PriceLevel) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	l, ok := s.ladders[assetID]
	if !ok {
		return nil, nil
	}
	asks = make([]domain.PriceLevel, len(l.asks))
	copy(asks, l.asks)
	bids = make([]domain.PriceLevel, len(l.bids))
	copy(bids, l.bids)
	return asks, bids
}
