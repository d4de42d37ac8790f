package book

import (
	"testing"

	"github.com/liuxing5/Polymarket-trading-bot-15min-BTC/internal/domain"
)

func TestApplySnapshotDropsNonPositiveSizes(t *testing.T) {
	s := NewStore([]string{"yes"})

	ok := s.ApplySnapshot(domain.BookSideAsk, "yes", []domain.PriceLevel{
		{Price: 0.40, Size: 5},
		{Price: 0.41, Size: 0},
		{Price: 0.42, Size: -3},
		{Price: 0.43, Size: 10},
	})
	if !ok {
		t.Fatal("ApplySnapshot returned false for tracked asset")
	}

	asks, _ := s.Read("yes")
	if len(asks) != 2 {
		t.Fatalf("got %d ask levels, want 2", len(asks))
	}
	if asks[0].Price != 0.40 || asks[1].Price != 0.43 {
		t.Errorf("unexpected surviving levels: %+v", asks)
	}
}

func TestApplySnapshotReplacesWholesale(t *testing.T) {
	s := NewStore([]string{"yes"})

	s.ApplySnapshot(domain.BookSideBid, "yes", []domain.PriceLevel{{Price: 0.30, Size: 1}, {Price: 0.29, Size: 2}})
	s.ApplySnapshot(domain.BookSideBid, "yes", []domain.PriceLevel{{Price: 0.35, Size: 4}})

	_, bids := s.Read("yes")
	if len(bids) != 1 || bids[0].Price != 0.35 {
		t.Errorf("second snapshot should replace the first, got %+v", bids)
	}
}

func TestApplySnapshotUnknownAsset(t *testing.T) {
	s := NewStore([]string{"yes"})
	if s.ApplySnapshot(domain.BookSideAsk, "other", []domain.PriceLevel{{Price: 0.5, Size: 1}}) {
		t.Error("ApplySnapshot accepted an untracked asset")
	}
	if s.Tracks("other") {
		t.Error("Tracks reported an untracked asset")
	}
}

func TestReadReturnsIndependentCopies(t *testing.T) {
	s := NewStore([]string{"yes"})
	s.ApplySnapshot(domain.BookSideAsk, "yes", []domain.PriceLevel{{Price: 0.40, Size: 5}})

	asks, _ := s.Read("yes")
	asks[0].Price = 0.99

	again, _ := s.Read("yes")
	if again[0].Price != 0.40 {
		t.Errorf("mutation through a held slice leaked into the store: %+v", again)
	}
}
