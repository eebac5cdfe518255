package semdex

import (
	"context"
	"time"
)

// --- ListingSource mock ---

type mockSource struct {
	byIDsFn       func(ctx context.Context, kind ListingKind, pks []int64) (map[int64]Listing, error)
	keywordFn     func(ctx context.Context, q KeywordQuery) ([]Listing, error)
	allEligibleFn func(ctx context.Context) ([]Listing, error)
}

func (m *mockSource) ByIDs(ctx context.Context, kind ListingKind, pks []int64) (map[int64]Listing, error) {
	return m.byIDsFn(ctx, kind, pks)
}

func (m *mockSource) KeywordSearch(ctx context.Context, q KeywordQuery) ([]Listing, error) {
	return m.keywordFn(ctx, q)
}

func (m *mockSource) AllEligible(ctx context.Context) ([]Listing, error) {
	return m.allEligibleFn(ctx)
}

// --- gateway mock ---

type mockGateway struct {
	searchFn  func(ctx context.Context, q SearchQuery) (SearchResult, error)
	indexFn   func(ctx context.Context, rec Record) error
	removeFn  func(ctx context.Context, id string) error
	rebuildFn func(ctx context.Context, records []Record) (int, error)
}

func (m *mockGateway) Search(ctx context.Context, q SearchQuery) (SearchResult, error) {
	return m.searchFn(ctx, q)
}

func (m *mockGateway) Index(ctx context.Context, rec Record) error {
	return m.indexFn(ctx, rec)
}

func (m *mockGateway) Remove(ctx context.Context, id string) error {
	return m.removeFn(ctx, id)
}

func (m *mockGateway) Rebuild(ctx context.Context, records []Record) (int, error) {
	return m.rebuildFn(ctx, records)
}

// --- fixtures ---

func supplyListing(pk int64) Listing {
	return Listing{
		PK:        pk,
		Kind:      KindSupplyLot,
		Text:      "copper cathode grade A",
		Category:  "metals",
		Status:    StatusActive,
		CreatedBy: 100 + pk,
		Country:   "RU",
		CreatedAt: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
	}
}

func f64(v float64) *float64 { return &v }

func ts(v time.Time) *time.Time { return &v }
