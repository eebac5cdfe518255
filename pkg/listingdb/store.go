// Package listingdb reads the authoritative marketplace store for the
// discovery SDK. It implements semdex.ListingSource over sqlx, so any
// sqlx-supported driver works; production runs against the marketplace
// relational database, tests against in-memory SQLite.
//
// The store is read-only here. Listing writes belong to the marketplace
// application; this package only resolves, scans and falls back.
package listingdb

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/kailas-cloud/semdex"
)

// DefaultKeywordLimit caps a keyword search when the query sets no limit.
const DefaultKeywordLimit = 20

// Store reads marketplace listings. Safe for concurrent use; sqlx.DB
// pools connections internally.
type Store struct {
	db *sqlx.DB
}

var _ semdex.ListingSource = (*Store)(nil)

// New wraps an open sqlx handle. The caller owns the connection pool.
func New(db *sqlx.DB) *Store {
	return &Store{db: db}
}

// Open connects through the named sqlx driver and verifies the
// connection with a ping.
func Open(driverName, dsn string) (*Store, error) {
	db, err := sqlx.Connect(driverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("listingdb: connect: %w", err)
	}
	return New(db), nil
}

// Close releases the underlying connection pool.
func (s *Store) Close() error { return s.db.Close() }

// Обе таблицы различаются только временной колонкой, поэтому её
// алиасим в valid_until и читаем одним типом строки.
const (
	supplyColumns = `id, item_text, category, status, created_by_id,
		location_country, location_lat, location_lng,
		available_until AS valid_until, created_at`

	demandColumns = `id, item_text, category, status, created_by_id,
		location_country, location_lat, location_lng,
		expires_at AS valid_until, created_at`
)

type listingRow struct {
	ID          int64      `db:"id"`
	ItemText    string     `db:"item_text"`
	Category    string     `db:"category"`
	Status      string     `db:"status"`
	CreatedByID int64      `db:"created_by_id"`
	Country     string     `db:"location_country"`
	Lat         *float64   `db:"location_lat"`
	Lng         *float64   `db:"location_lng"`
	ValidUntil  *time.Time `db:"valid_until"`
	CreatedAt   time.Time  `db:"created_at"`
}

func (r listingRow) listing(kind semdex.ListingKind) semdex.Listing {
	return semdex.Listing{
		PK:         r.ID,
		Kind:       kind,
		Text:       r.ItemText,
		Category:   r.Category,
		Status:     r.Status,
		CreatedBy:  r.CreatedByID,
		Country:    r.Country,
		Lat:        r.Lat,
		Lng:        r.Lng,
		ValidUntil: r.ValidUntil,
		CreatedAt:  r.CreatedAt,
	}
}

func tableFor(kind semdex.ListingKind) (table, columns string, err error) {
	switch kind {
	case semdex.KindSupplyLot:
		return "supply_lots", supplyColumns, nil
	case semdex.KindDemandPost:
		return "demand_posts", demandColumns, nil
	}
	return "", "", fmt.Errorf("listingdb: unknown listing kind %q", kind)
}

// ByIDs resolves listings of one kind by primary key. Keys missing from
// the store are absent from the result map.
func (s *Store) ByIDs(ctx context.Context, kind semdex.ListingKind, pks []int64) (map[int64]semdex.Listing, error) {
	out := make(map[int64]semdex.Listing, len(pks))
	if len(pks) == 0 {
		return out, nil
	}
	table, columns, err := tableFor(kind)
	if err != nil {
		return nil, err
	}

	query, args, err := sqlx.In(
		fmt.Sprintf("SELECT %s FROM %s WHERE id IN (?)", columns, table),
		pks,
	)
	if err != nil {
		return nil, fmt.Errorf("listingdb: expand id list: %w", err)
	}

	var rows []listingRow
	if err := s.db.SelectContext(ctx, &rows, s.db.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("listingdb: select %s by id: %w", table, err)
	}
	for _, r := range rows {
		out[r.ID] = r.listing(kind)
	}
	return out, nil
}

// KeywordSearch runs the lexical fallback: active listings of one kind
// containing every word (case-insensitive), inside the temporal window,
// minus the caller's own, newest first.
func (s *Store) KeywordSearch(ctx context.Context, q semdex.KeywordQuery) ([]semdex.Listing, error) {
	if len(q.Words) == 0 {
		return nil, nil
	}
	table, columns, err := tableFor(q.Kind)
	if err != nil {
		return nil, err
	}
	limit := q.Limit
	if limit <= 0 {
		limit = DefaultKeywordLimit
	}

	conds := []string{"status = ?"}
	args := []any{semdex.StatusActive}
	for _, w := range q.Words {
		conds = append(conds, "LOWER(item_text) LIKE ?")
		args = append(args, "%"+strings.ToLower(w)+"%")
	}

	// Supply всегда несёт available_until; у demand срок необязателен.
	now := time.Now().UTC()
	if q.Kind == semdex.KindSupplyLot {
		conds = append(conds, "available_until > ?")
		args = append(args, now)
	} else {
		conds = append(conds, "(expires_at IS NULL OR expires_at > ?)")
		args = append(args, now)
	}

	conds = append(conds, "created_by_id <> ?")
	args = append(args, q.ExcludeCreator)
	if q.Category != "" {
		conds = append(conds, "category = ?")
		args = append(args, q.Category)
	}
	if q.Country != "" {
		conds = append(conds, "location_country = ?")
		args = append(args, q.Country)
	}

	query := fmt.Sprintf(
		"SELECT %s FROM %s WHERE %s ORDER BY created_at DESC LIMIT ?",
		columns, table, strings.Join(conds, " AND "),
	)
	args = append(args, limit)

	var rows []listingRow
	if err := s.db.SelectContext(ctx, &rows, s.db.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("listingdb: keyword search %s: %w", table, err)
	}
	listings := make([]semdex.Listing, 0, len(rows))
	for _, r := range rows {
		listings = append(listings, r.listing(q.Kind))
	}
	return listings, nil
}

// AllEligible returns every non-deleted listing of both kinds, for index
// rebuilds.
func (s *Store) AllEligible(ctx context.Context) ([]semdex.Listing, error) {
	var out []semdex.Listing
	for _, kind := range []semdex.ListingKind{semdex.KindSupplyLot, semdex.KindDemandPost} {
		table, columns, err := tableFor(kind)
		if err != nil {
			return nil, err
		}
		query := fmt.Sprintf(
			"SELECT %s FROM %s WHERE status <> ? ORDER BY id",
			columns, table,
		)
		var rows []listingRow
		if err := s.db.SelectContext(ctx, &rows, s.db.Rebind(query), semdex.StatusDeleted); err != nil {
			return nil, fmt.Errorf("listingdb: load %s: %w", table, err)
		}
		for _, r := range rows {
			out = append(out, r.listing(kind))
		}
	}
	return out, nil
}
