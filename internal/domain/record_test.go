package domain

import (
	"errors"
	"testing"

	"github.com/kailas-cloud/semdex/internal/domain/filter"
)

func validRecord() Record {
	lat, lng := 55.75, 37.62
	return Record{
		ID:   "supply_lot_42",
		Text: "Hot-rolled steel coil, 500t, FOB Novorossiysk",
		Metadata: Metadata{
			PK:          42,
			ListingType: "supply_lot",
			Status:      "active",
			Category:    "metals",
			Country:     "RU",
			CreatedByID: 7,
			Lat:         &lat,
			Lng:         &lng,
		},
	}
}

func TestRecordValidate(t *testing.T) {
	badLat := 91.0
	badLng := -200.0

	tests := []struct {
		name    string
		mutate  func(*Record)
		wantErr bool
	}{
		{name: "valid", mutate: func(*Record) {}},
		{name: "no coordinates", mutate: func(r *Record) { r.Metadata.Lat, r.Metadata.Lng = nil, nil }},
		{name: "partial coordinates", mutate: func(r *Record) { r.Metadata.Lng = nil }},
		{name: "empty id", mutate: func(r *Record) { r.ID = "" }, wantErr: true},
		{name: "blank text", mutate: func(r *Record) { r.Text = "   \n" }, wantErr: true},
		{name: "latitude out of range", mutate: func(r *Record) { r.Metadata.Lat = &badLat }, wantErr: true},
		{name: "longitude out of range", mutate: func(r *Record) { r.Metadata.Lng = &badLng }, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := validRecord()
			tt.mutate(&r)
			err := r.Validate()
			if (err != nil) != tt.wantErr {
				t.Fatalf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, ErrInvalidRequest) {
				t.Errorf("expected ErrInvalidRequest, got %v", err)
			}
		})
	}
}

func TestMetadataSchema(t *testing.T) {
	schema := MetadataSchema()

	wantTag := []string{FieldListingType, FieldStatus, FieldCategory, FieldCountry}
	for _, f := range wantTag {
		if schema[f] != filter.FieldTag {
			t.Errorf("field %q: expected tag kind", f)
		}
	}
	if schema[FieldCreatedByID] != filter.FieldNumeric {
		t.Errorf("field %q: expected numeric kind", FieldCreatedByID)
	}
	if _, ok := schema[FieldLat]; ok {
		t.Error("coordinates must not be filterable")
	}
	if _, ok := schema[FieldText]; ok {
		t.Error("text must not be filterable")
	}
}
