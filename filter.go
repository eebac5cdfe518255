package semdex

import "github.com/kailas-cloud/semdex/internal/domain"

// Filter is one node of the gateway's filter tree in wire form. Leaves
// carry op eq|ne with a field and value; branches carry op and|or with
// child expressions. Build trees with Eq, Ne, And and Or.
type Filter struct {
	Op    string    `json:"op"`
	Field string    `json:"field,omitempty"`
	Value any       `json:"value,omitempty"`
	Exprs []*Filter `json:"exprs,omitempty"`
}

// Filterable metadata fields, shared with the gateway schema. The tag
// fields take strings; created_by_id takes an integer.
const (
	FieldListingType = domain.FieldListingType
	FieldStatus      = domain.FieldStatus
	FieldCategory    = domain.FieldCategory
	FieldCountry     = domain.FieldCountry
	FieldCreatedByID = domain.FieldCreatedByID
)

// Eq matches records whose field equals value.
func Eq(field string, value any) *Filter {
	return &Filter{Op: "eq", Field: field, Value: value}
}

// Ne matches records whose field differs from value.
func Ne(field string, value any) *Filter {
	return &Filter{Op: "ne", Field: field, Value: value}
}

// And combines expressions conjunctively. Nil members are dropped, so
// optional facets can be passed unconditionally; a single survivor is
// returned as is.
func And(exprs ...*Filter) *Filter {
	return branch("and", exprs)
}

// Or combines expressions disjunctively. Nil members are dropped.
func Or(exprs ...*Filter) *Filter {
	return branch("or", exprs)
}

func branch(op string, exprs []*Filter) *Filter {
	kept := make([]*Filter, 0, len(exprs))
	for _, e := range exprs {
		if e != nil {
			kept = append(kept, e)
		}
	}
	switch len(kept) {
	case 0:
		return nil
	case 1:
		return kept[0]
	}
	return &Filter{Op: op, Exprs: kept}
}
