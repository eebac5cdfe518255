package semdex

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ListingKind separates the two sides of the marketplace.
type ListingKind string

const (
	KindSupplyLot  ListingKind = "supply_lot"
	KindDemandPost ListingKind = "demand_post"
)

// Listing status values the discovery pipeline cares about.
const (
	StatusActive  = "active"
	StatusDeleted = "deleted"
)

// Valid reports whether k is one of the known kinds.
func (k ListingKind) Valid() bool {
	return k == KindSupplyLot || k == KindDemandPost
}

// Counterpart returns the opposite side of the marketplace.
func (k ListingKind) Counterpart() ListingKind {
	if k == KindSupplyLot {
		return KindDemandPost
	}
	return KindSupplyLot
}

// Listing mirrors one row of the authoritative marketplace store. The SDK
// never writes listings; it reads them to index and to resolve hits.
type Listing struct {
	PK        int64
	Kind      ListingKind
	Text      string
	Category  string
	Status    string
	CreatedBy int64
	Country   string

	// Coordinates are optional; a listing without a published location
	// keeps them nil.
	Lat *float64
	Lng *float64

	// ValidUntil is available_until for supply lots and expires_at for
	// demand posts. Nil means the listing never expires.
	ValidUntil *time.Time

	CreatedAt time.Time
}

// ID returns the gateway identifier of the listing.
func (l Listing) ID() string { return ListingID(l.Kind, l.PK) }

// ListingID formats a gateway identifier as "<kind>_<pk>". The gateway
// treats identifiers as opaque strings; only the SDK knows the format.
func ListingID(kind ListingKind, pk int64) string {
	return string(kind) + "_" + strconv.FormatInt(pk, 10)
}

// ParseListingID splits a gateway identifier back into kind and primary
// key. Kinds themselves contain underscores, so the split happens at the
// last one.
func ParseListingID(id string) (ListingKind, int64, error) {
	i := strings.LastIndexByte(id, '_')
	if i <= 0 || i == len(id)-1 {
		return "", 0, fmt.Errorf("semdex: malformed listing id %q", id)
	}
	kind := ListingKind(id[:i])
	if !kind.Valid() {
		return "", 0, fmt.Errorf("semdex: unknown listing kind in id %q", id)
	}
	pk, err := strconv.ParseInt(id[i+1:], 10, 64)
	if err != nil {
		return "", 0, fmt.Errorf("semdex: malformed listing id %q", id)
	}
	return kind, pk, nil
}

// Metadata is the filterable snapshot the gateway stores next to each
// record. Field names match the gateway's hash fields one to one.
type Metadata struct {
	PK          int64    `json:"pk"`
	ListingType string   `json:"listing_type"`
	Status      string   `json:"status"`
	Category    string   `json:"category,omitempty"`
	Country     string   `json:"location_country,omitempty"`
	CreatedByID int64    `json:"created_by_id"`
	Lat         *float64 `json:"location_lat,omitempty"`
	Lng         *float64 `json:"location_lng,omitempty"`
}

// Record is the gateway's indexing unit: identity, the text that gets
// embedded, and the metadata snapshot.
type Record struct {
	ID       string   `json:"id"`
	Text     string   `json:"text"`
	Metadata Metadata `json:"metadata"`
}

// RecordFromListing converts an authoritative listing into its gateway
// record.
func RecordFromListing(l Listing) Record {
	return Record{
		ID:   l.ID(),
		Text: l.Text,
		Metadata: Metadata{
			PK:          l.PK,
			ListingType: string(l.Kind),
			Status:      l.Status,
			Category:    l.Category,
			Country:     l.Country,
			CreatedByID: l.CreatedBy,
			Lat:         l.Lat,
			Lng:         l.Lng,
		},
	}
}

// SearchQuery is one gateway vector search request.
type SearchQuery struct {
	QueryText string  `json:"query_text"`
	Filter    *Filter `json:"filter,omitempty"`
	Limit     int     `json:"limit,omitempty"`

	// IncludeDebug asks for the raw candidate set next to the qualified
	// one, for threshold tuning.
	IncludeDebug bool `json:"include_debug,omitempty"`

	// BypassCutoff disables the adaptive cutoff and returns every
	// neighbor under the distance ceiling.
	BypassCutoff bool `json:"bypass_cutoff,omitempty"`
}

// SearchHit is one qualified result. Hits arrive ordered by ascending
// cosine distance; lower means closer.
type SearchHit struct {
	ID       string  `json:"id"`
	Distance float64 `json:"distance"`
}

// SearchDebug carries the pre-cutoff candidate set of a search.
type SearchDebug struct {
	BypassCutoff bool        `json:"bypass_cutoff"`
	RawCount     int         `json:"raw_count"`
	RawResults   []SearchHit `json:"raw_results"`
	KeepCount    int         `json:"keep_count"`
}

// SearchResult is the gateway's answer to a search.
type SearchResult struct {
	Hits  []SearchHit  `json:"results"`
	Debug *SearchDebug `json:"debug,omitempty"`
}

// Health reports gateway readiness.
type Health struct {
	Status      string `json:"status"`
	Ready       bool   `json:"ready"`
	ModelLoaded bool   `json:"model_loaded"`
	RecordCount int    `json:"record_count"`
}

// Usage reports embedding token spend for one budget period.
type Usage struct {
	Period          string `json:"period"`
	PeriodStartMs   int64  `json:"period_start_ms"`
	PeriodEndMs     int64  `json:"period_end_ms"`
	TokensLimit     int64  `json:"tokens_limit"`
	TokensUsed      int64  `json:"tokens_used"`
	TokensRemaining int64  `json:"tokens_remaining"`
	Exhausted       bool   `json:"exhausted"`
}

// Source tells where a discovery result came from.
type Source string

const (
	// SourceSemantic marks results from the vector index.
	SourceSemantic Source = "semantic"
	// SourceKeyword marks results from the lexical fallback.
	SourceKeyword Source = "keyword"
)

// RankedListing is a resolved listing together with its originating
// cosine distance. Distance is nil for keyword-sourced results.
type RankedListing struct {
	Listing  Listing
	Distance *float64
}

// Discovery is an ordered result set with its provenance. Order follows
// the gateway's relevance ranking for semantic results and recency for
// keyword results.
type Discovery struct {
	Listings []RankedListing
	Source   Source
}

// DiscoverQuery describes one discovery request against the counterpart
// side of the marketplace.
type DiscoverQuery struct {
	// CallerID excludes the caller's own listings from the result.
	CallerID int64
	// Counterpart is the listing kind to search for.
	Counterpart ListingKind
	QueryText   string

	// Optional facets.
	Category string
	Country  string

	// Lat, Lng and RadiusKm bound results to a great-circle radius when
	// all three are set. Listings without coordinates always pass.
	Lat      *float64
	Lng      *float64
	RadiusKm float64

	// Limit caps the result size; zero means DefaultDiscoverLimit.
	Limit int
}

// KeywordQuery is the lexical fallback request: every word must appear
// in the listing text, case-insensitive.
type KeywordQuery struct {
	Kind           ListingKind
	Words          []string
	Category       string
	Country        string
	ExcludeCreator int64
	Limit          int
}

// ListingSource reads the authoritative listing store. pkg/listingdb
// ships the sqlx implementation; anything satisfying the interface
// works.
type ListingSource interface {
	// ByIDs resolves listings of one kind by primary key. Keys missing
	// from the store are simply absent from the result map.
	ByIDs(ctx context.Context, kind ListingKind, pks []int64) (map[int64]Listing, error)

	// KeywordSearch runs the lexical fallback: active listings matching
	// every word, within the temporal window, ordered by recency.
	KeywordSearch(ctx context.Context, q KeywordQuery) ([]Listing, error)

	// AllEligible returns every non-deleted listing of both kinds, for
	// index rebuilds.
	AllEligible(ctx context.Context) ([]Listing, error)
}
