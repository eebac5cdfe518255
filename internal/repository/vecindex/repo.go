// Package vecindex persists listing records as Redis hashes behind a
// single FT index and runs KNN queries over them.
package vecindex

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/kailas-cloud/semdex/internal/db"
	"github.com/kailas-cloud/semdex/internal/domain"
	"github.com/kailas-cloud/semdex/internal/domain/filter"
)

// RecordPrefix namespaces every listing hash key.
const RecordPrefix = domain.KeyPrefix + "listing:"

// IndexName is the FT index over RecordPrefix keys.
const IndexName = RecordPrefix + "idx"

// store is the consumer interface for index operations (ISP).
type store interface {
	HSet(ctx context.Context, key string, fields map[string]string) error
	HSetMulti(ctx context.Context, items []db.HashSetItem) error
	HGetAll(ctx context.Context, key string) (map[string]string, error)
	Del(ctx context.Context, key string) error
	DelMulti(ctx context.Context, keys []string) error
	Scan(ctx context.Context, pattern string) ([]string, error)
	CreateIndex(ctx context.Context, def *db.IndexDefinition) error
	DropIndex(ctx context.Context, name string) error
	IndexExists(ctx context.Context, name string) (bool, error)
	SearchKNN(ctx context.Context, q *db.KNNQuery) (*db.SearchResult, error)
	SearchCount(ctx context.Context, index, query string) (int, error)
}

// Config holds the vector schema parameters of the index.
type Config struct {
	Dimensions      int
	Metric          db.DistanceMetric
	Algorithm       db.VectorAlgorithm
	HNSWM           int
	HNSWEFConstruct int
}

// Repo implements the index persistence used by the indexing and search
// services.
type Repo struct {
	store store
	cfg   Config
}

// New creates an index repository.
func New(s store, cfg Config) *Repo {
	return &Repo{store: s, cfg: cfg}
}

// EnsureIndex creates the FT index when absent. Concurrent creation by
// another instance is treated as success.
func (r *Repo) EnsureIndex(ctx context.Context) error {
	exists, err := r.store.IndexExists(ctx, IndexName)
	if err != nil {
		return fmt.Errorf("index exists %s: %w", IndexName, err)
	}
	if exists {
		return nil
	}

	def, err := r.indexDefinition()
	if err != nil {
		return fmt.Errorf("index definition: %w", err)
	}

	if err := r.store.CreateIndex(ctx, def); err != nil {
		if errors.Is(err, db.ErrIndexExists) {
			return nil
		}
		return fmt.Errorf("create index %s: %w", IndexName, err)
	}
	return nil
}

// DropIndex removes the FT index, keeping the stored hashes. Missing
// index is not an error.
func (r *Repo) DropIndex(ctx context.Context) error {
	if err := r.store.DropIndex(ctx, IndexName); err != nil {
		if errors.Is(err, db.ErrIndexNotFound) {
			return nil
		}
		return fmt.Errorf("drop index %s: %w", IndexName, err)
	}
	return nil
}

// Upsert writes one record with its vector, replacing any previous
// version in full. A plain HSET would leave stale optional fields behind,
// e.g. coordinates removed from the listing.
func (r *Repo) Upsert(ctx context.Context, rec domain.Record, vector []float32) error {
	key := recordKey(rec.ID)

	if err := r.store.Del(ctx, key); err != nil {
		return fmt.Errorf("del %s: %w", key, err)
	}
	if err := r.store.HSet(ctx, key, recordFields(rec, vector)); err != nil {
		return fmt.Errorf("hset %s: %w", key, err)
	}
	return nil
}

// UpsertBatch writes many records in two pipelined round-trips.
// vectors[i] belongs to recs[i].
func (r *Repo) UpsertBatch(ctx context.Context, recs []domain.Record, vectors [][]float32) error {
	if len(recs) != len(vectors) {
		return fmt.Errorf("records/vectors length mismatch: %d vs %d", len(recs), len(vectors))
	}
	if len(recs) == 0 {
		return nil
	}

	keys := make([]string, len(recs))
	items := make([]db.HashSetItem, len(recs))
	for i, rec := range recs {
		keys[i] = recordKey(rec.ID)
		items[i] = db.HashSetItem{Key: keys[i], Fields: recordFields(rec, vectors[i])}
	}

	if err := r.store.DelMulti(ctx, keys); err != nil {
		return fmt.Errorf("del batch: %w", err)
	}
	if err := r.store.HSetMulti(ctx, items); err != nil {
		return fmt.Errorf("hset batch: %w", err)
	}
	return nil
}

// Remove deletes one record. Removing an absent id is a no-op.
func (r *Repo) Remove(ctx context.Context, id string) error {
	key := recordKey(id)
	if err := r.store.Del(ctx, key); err != nil {
		return fmt.Errorf("del %s: %w", key, err)
	}
	return nil
}

// Fetch reads one stored record back. The second return value reports
// whether the record exists.
func (r *Repo) Fetch(ctx context.Context, id string) (domain.StoredRecord, bool, error) {
	key := recordKey(id)
	m, err := r.store.HGetAll(ctx, key)
	if err != nil {
		return domain.StoredRecord{}, false, fmt.Errorf("hgetall %s: %w", key, err)
	}
	if len(m) == 0 {
		return domain.StoredRecord{}, false, nil
	}
	return fieldsToRecord(id, m), true, nil
}

// Count returns the number of indexed records. A missing index counts
// as zero, so health checks before the first EnsureIndex stay green.
func (r *Repo) Count(ctx context.Context) (int, error) {
	n, err := r.store.SearchCount(ctx, IndexName, "*")
	if err != nil {
		if errors.Is(err, db.ErrIndexNotFound) {
			return 0, nil
		}
		return 0, fmt.Errorf("search count: %w", err)
	}
	return n, nil
}

// Query runs a KNN search and returns hits sorted by distance ascending.
func (r *Repo) Query(ctx context.Context, vector []float32, f filter.Expr, k int) ([]domain.Hit, error) {
	q := &db.KNNQuery{
		IndexName:    IndexName,
		Filter:       f,
		Vector:       vector,
		K:            k,
		ReturnFields: []string{db.VectorScoreField},
	}

	sr, err := r.store.SearchKNN(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("search knn: %w", err)
	}
	if sr == nil || len(sr.Entries) == 0 {
		return nil, nil
	}

	hits := make([]domain.Hit, 0, len(sr.Entries))
	for _, entry := range sr.Entries {
		hits = append(hits, domain.Hit{
			ID:       strings.TrimPrefix(entry.Key, RecordPrefix),
			Distance: entry.Distance,
		})
	}

	// The adaptive cutoff downstream requires ascending distances.
	sort.SliceStable(hits, func(i, j int) bool { return hits[i].Distance < hits[j].Distance })

	return hits, nil
}

// Clear deletes every stored record and returns how many went away.
func (r *Repo) Clear(ctx context.Context) (int, error) {
	keys, err := r.store.Scan(ctx, RecordPrefix+"*")
	if err != nil {
		return 0, fmt.Errorf("scan %s: %w", RecordPrefix, err)
	}
	if len(keys) == 0 {
		return 0, nil
	}
	if err := r.store.DelMulti(ctx, keys); err != nil {
		return 0, fmt.Errorf("del batch: %w", err)
	}
	return len(keys), nil
}

func (r *Repo) indexDefinition() (*db.IndexDefinition, error) {
	b := db.NewIndex(IndexName).
		Prefix(RecordPrefix).
		Tag(domain.FieldListingType).
		Tag(domain.FieldStatus).
		Tag(domain.FieldCategory).
		Tag(domain.FieldCountry).
		Numeric(domain.FieldCreatedByID)

	if r.cfg.Algorithm == db.VectorFlat {
		b = b.VectorFlat(domain.FieldVector, r.cfg.Dimensions, r.cfg.Metric, 0)
	} else {
		b = b.VectorHNSW(domain.FieldVector, r.cfg.Dimensions, r.cfg.Metric, r.cfg.HNSWM, r.cfg.HNSWEFConstruct)
	}

	return b.Build()
}

func recordKey(id string) string {
	return RecordPrefix + id
}

// recordFields flattens a record into hash fields. Optional metadata is
// written only when present, so absent coordinates stay absent.
func recordFields(rec domain.Record, vector []float32) map[string]string {
	fields := map[string]string{
		domain.FieldText:        rec.Text,
		domain.FieldVector:      vectorToBytes(vector),
		domain.FieldPK:          strconv.FormatInt(rec.Metadata.PK, 10),
		domain.FieldListingType: rec.Metadata.ListingType,
		domain.FieldStatus:      rec.Metadata.Status,
		domain.FieldCreatedByID: strconv.FormatInt(rec.Metadata.CreatedByID, 10),
	}
	if rec.Metadata.Category != "" {
		fields[domain.FieldCategory] = rec.Metadata.Category
	}
	if rec.Metadata.Country != "" {
		fields[domain.FieldCountry] = rec.Metadata.Country
	}
	if rec.Metadata.Lat != nil {
		fields[domain.FieldLat] = strconv.FormatFloat(*rec.Metadata.Lat, 'f', -1, 64)
	}
	if rec.Metadata.Lng != nil {
		fields[domain.FieldLng] = strconv.FormatFloat(*rec.Metadata.Lng, 'f', -1, 64)
	}
	return fields
}

func fieldsToRecord(id string, m map[string]string) domain.StoredRecord {
	pk, _ := strconv.ParseInt(m[domain.FieldPK], 10, 64)
	createdBy, _ := strconv.ParseInt(m[domain.FieldCreatedByID], 10, 64)

	meta := domain.Metadata{
		PK:          pk,
		ListingType: m[domain.FieldListingType],
		Status:      m[domain.FieldStatus],
		Category:    m[domain.FieldCategory],
		Country:     m[domain.FieldCountry],
		CreatedByID: createdBy,
	}
	if v, ok := m[domain.FieldLat]; ok {
		if lat, err := strconv.ParseFloat(v, 64); err == nil {
			meta.Lat = &lat
		}
	}
	if v, ok := m[domain.FieldLng]; ok {
		if lng, err := strconv.ParseFloat(v, 64); err == nil {
			meta.Lng = &lng
		}
	}

	return domain.StoredRecord{
		Record: domain.Record{ID: id, Text: m[domain.FieldText], Metadata: meta},
		Vector: bytesToVector(m[domain.FieldVector]),
	}
}

// vectorToBytes serializes []float32 to the little-endian binary form
// FT.SEARCH expects in vector fields.
func vectorToBytes(v []float32) string {
	buf := make([]byte, len(v)*4)
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return string(buf)
}

// bytesToVector deserializes a binary string to []float32.
func bytesToVector(s string) []float32 {
	b := []byte(s)
	if len(b) == 0 || len(b)%4 != 0 {
		return nil
	}
	v := make([]float32, len(b)/4)
	for i := range v {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*4:]))
	}
	return v
}
