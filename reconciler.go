package semdex

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/kailas-cloud/semdex/internal/domain/geo"
)

// DefaultDiscoverLimit bounds a discovery when the query sets no limit.
const DefaultDiscoverLimit = 10

// searchGateway is the slice of Client the Reconciler needs.
type searchGateway interface {
	Search(ctx context.Context, q SearchQuery) (SearchResult, error)
}

// Reconciler turns raw gateway output into a trustworthy ordered result
// set: it resolves identifiers against the authoritative store, applies
// the filters the index cannot express natively, and degrades to
// lexical search when the semantic path yields nothing.
type Reconciler struct {
	gateway searchGateway
	source  ListingSource
	obs     *observer

	// now is the clock for temporal validity checks.
	now func() time.Time
}

// Discover finds counterpart listings for a free-text query. Gateway
// failures are absorbed: a transport error, a gateway error or an empty
// qualified set all degrade to the keyword fallback, so an error comes
// back only when the fallback itself fails.
func (r *Reconciler) Discover(ctx context.Context, q DiscoverQuery) (Discovery, error) {
	if !q.Counterpart.Valid() {
		return Discovery{}, fmt.Errorf("semdex: unknown counterpart kind %q", q.Counterpart)
	}
	words := strings.Fields(q.QueryText)
	if len(words) == 0 {
		return Discovery{}, fmt.Errorf("semdex: empty query text")
	}
	limit := q.Limit
	if limit <= 0 {
		limit = DefaultDiscoverLimit
	}

	res, err := r.gateway.Search(ctx, SearchQuery{
		QueryText: q.QueryText,
		Filter:    discoverFilter(q),
		Limit:     limit,
	})
	if err != nil {
		r.obs.warn("semantic search failed, degrading to keyword search",
			"counterpart", string(q.Counterpart),
			"error", err,
		)
		return r.keyword(ctx, q, words, limit)
	}
	if len(res.Hits) == 0 {
		r.obs.debug("no qualified semantic matches, degrading to keyword search",
			"counterpart", string(q.Counterpart),
		)
		return r.keyword(ctx, q, words, limit)
	}

	ranked, err := r.qualify(ctx, q, res.Hits)
	if err != nil {
		return Discovery{}, err
	}
	return Discovery{Listings: ranked, Source: SourceSemantic}, nil
}

// qualify resolves gateway hits against the authoritative store in the
// gateway's relevance order and removes records that fail the temporal
// or geographic checks, never re-sorting survivors.
func (r *Reconciler) qualify(ctx context.Context, q DiscoverQuery, hits []SearchHit) ([]RankedListing, error) {
	type candidate struct {
		pk       int64
		distance float64
	}
	cands := make([]candidate, 0, len(hits))
	pks := make([]int64, 0, len(hits))
	for _, h := range hits {
		kind, pk, err := ParseListingID(h.ID)
		if err != nil || kind != q.Counterpart {
			r.obs.debug("skipping foreign hit", "id", h.ID)
			continue
		}
		cands = append(cands, candidate{pk: pk, distance: h.Distance})
		pks = append(pks, pk)
	}

	byPK := map[int64]Listing{}
	if len(pks) > 0 {
		var err error
		byPK, err = r.source.ByIDs(ctx, q.Counterpart, pks)
		if err != nil {
			return nil, fmt.Errorf("semdex: resolve listings: %w", err)
		}
	}

	now := r.clock()
	ranked := make([]RankedListing, 0, len(cands))
	for _, c := range cands {
		l, ok := byPK[c.pk]
		if !ok {
			// Листинг удалён из основной базы, но индекс отстал.
			// Пропускаем; rebuild выровняет.
			r.obs.debug("skipping stale hit", "pk", c.pk, "kind", string(q.Counterpart))
			continue
		}
		if l.ValidUntil != nil && !l.ValidUntil.After(now) {
			continue
		}
		if q.Lat != nil && q.Lng != nil && q.RadiusKm > 0 &&
			!geo.WithinRadius(*q.Lat, *q.Lng, l.Lat, l.Lng, q.RadiusKm) {
			continue
		}
		d := c.distance
		ranked = append(ranked, RankedListing{Listing: l, Distance: &d})
	}
	return ranked, nil
}

// keyword runs the lexical fallback: same facets, ordered by recency,
// no distances.
func (r *Reconciler) keyword(ctx context.Context, q DiscoverQuery, words []string, limit int) (Discovery, error) {
	listings, err := r.source.KeywordSearch(ctx, KeywordQuery{
		Kind:           q.Counterpart,
		Words:          words,
		Category:       q.Category,
		Country:        q.Country,
		ExcludeCreator: q.CallerID,
		Limit:          limit,
	})
	if err != nil {
		return Discovery{}, fmt.Errorf("semdex: keyword fallback: %w", err)
	}
	ranked := make([]RankedListing, 0, len(listings))
	for _, l := range listings {
		ranked = append(ranked, RankedListing{Listing: l})
	}
	return Discovery{Listings: ranked, Source: SourceKeyword}, nil
}

// discoverFilter compiles the query facets into the gateway filter:
// counterpart kind, active status, not the caller's own listings, plus
// the optional category and country facets.
func discoverFilter(q DiscoverQuery) *Filter {
	var category, country *Filter
	if q.Category != "" {
		category = Eq(FieldCategory, q.Category)
	}
	if q.Country != "" {
		country = Eq(FieldCountry, q.Country)
	}
	return And(
		Eq(FieldListingType, string(q.Counterpart)),
		Eq(FieldStatus, StatusActive),
		Ne(FieldCreatedByID, q.CallerID),
		category,
		country,
	)
}

func (r *Reconciler) clock() time.Time {
	if r.now != nil {
		return r.now()
	}
	return time.Now()
}
