package domain

import (
	"fmt"
	"strings"

	"github.com/kailas-cloud/semdex/internal/domain/filter"
)

// KeyPrefix namespaces every key this service writes to the store.
const KeyPrefix = "semdex:"

// Hash field names of an indexed record. Metadata fields match the wire
// names one to one, so filter fields translate directly to index attributes.
const (
	FieldText        = "text"
	FieldVector      = "vector"
	FieldPK          = "pk"
	FieldListingType = "listing_type"
	FieldStatus      = "status"
	FieldCategory    = "category"
	FieldCountry     = "location_country"
	FieldCreatedByID = "created_by_id"
	FieldLat         = "location_lat"
	FieldLng         = "location_lng"
)

// Metadata is the flat filterable snapshot stored alongside each record.
// Coordinates are optional; a listing without a published location keeps
// them nil.
type Metadata struct {
	PK          int64
	ListingType string
	Status      string
	Category    string
	Country     string
	CreatedByID int64
	Lat         *float64
	Lng         *float64
}

// Record is one indexed listing: identity, the text that gets embedded,
// and the metadata snapshot.
type Record struct {
	ID       string
	Text     string
	Metadata Metadata
}

// StoredRecord is a record read back from the index together with its
// stored vector.
type StoredRecord struct {
	Record Record
	Vector []float32
}

// Hit is one retrieval result: record id and raw cosine distance to the
// query. Lower distance means closer.
type Hit struct {
	ID       string
	Distance float64
}

// Validate checks that the record can be indexed.
func (r Record) Validate() error {
	if r.ID == "" {
		return fmt.Errorf("%w: empty id", ErrInvalidRequest)
	}
	if strings.TrimSpace(r.Text) == "" {
		return fmt.Errorf("%w: empty text", ErrInvalidRequest)
	}
	if r.Metadata.Lat != nil && (*r.Metadata.Lat < -90 || *r.Metadata.Lat > 90) {
		return fmt.Errorf("%w: latitude out of range", ErrInvalidRequest)
	}
	if r.Metadata.Lng != nil && (*r.Metadata.Lng < -180 || *r.Metadata.Lng > 180) {
		return fmt.Errorf("%w: longitude out of range", ErrInvalidRequest)
	}
	return nil
}

// MetadataSchema is the closed set of fields a search filter may reference.
func MetadataSchema() filter.Schema {
	return filter.Schema{
		FieldListingType: filter.FieldTag,
		FieldStatus:      filter.FieldTag,
		FieldCategory:    filter.FieldTag,
		FieldCountry:     filter.FieldTag,
		FieldCreatedByID: filter.FieldNumeric,
	}
}
