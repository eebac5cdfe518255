// Package filter models the metadata predicates a caller can attach to a
// vector search. The tree is closed: four operators over a fixed field
// schema, validated before anything reaches the index.
package filter

import "fmt"

// Kind discriminates the node types of a filter tree.
type Kind uint8

const (
	KindEq Kind = iota + 1
	KindNe
	KindAnd
	KindOr
)

func (k Kind) String() string {
	switch k {
	case KindEq:
		return "eq"
	case KindNe:
		return "ne"
	case KindAnd:
		return "and"
	case KindOr:
		return "or"
	default:
		return "unknown"
	}
}

// FieldKind is the storage type of a filterable field.
type FieldKind uint8

const (
	FieldTag FieldKind = iota + 1
	FieldNumeric
)

// Schema maps filterable field names to their kinds.
type Schema map[string]FieldKind

// Value is a scalar operand: either a tag string or a number.
type Value struct {
	str     string
	num     float64
	numeric bool
}

// String makes a tag operand.
func String(v string) Value { return Value{str: v} }

// Number makes a numeric operand.
func Number(v float64) Value { return Value{num: v, numeric: true} }

// Tag returns the tag string and whether the value holds one.
func (v Value) Tag() (string, bool) { return v.str, !v.numeric }

// Number returns the numeric value and whether the value holds one.
func (v Value) Number() (float64, bool) { return v.num, v.numeric }

// Expr is one node of a filter tree. The zero value means "no filter".
type Expr struct {
	kind     Kind
	field    string
	value    Value
	children []Expr
}

// Eq matches records whose field equals value.
func Eq(field string, value Value) Expr {
	return Expr{kind: KindEq, field: field, value: value}
}

// Ne matches records whose field differs from value.
func Ne(field string, value Value) Expr {
	return Expr{kind: KindNe, field: field, value: value}
}

// And matches records satisfying every child.
func And(children ...Expr) Expr {
	return Expr{kind: KindAnd, children: children}
}

// Or matches records satisfying at least one child.
func Or(children ...Expr) Expr {
	return Expr{kind: KindOr, children: children}
}

// IsZero reports whether the expression is absent.
func (e Expr) IsZero() bool { return e.kind == 0 }

// Kind returns the node type.
func (e Expr) Kind() Kind { return e.kind }

// Field returns the field name of an eq/ne node.
func (e Expr) Field() string { return e.field }

// Value returns the operand of an eq/ne node.
func (e Expr) Value() Value { return e.value }

// Children returns the child expressions of an and/or node.
func (e Expr) Children() []Expr { return e.children }

// Validate walks the tree and checks every node against the schema.
func (e Expr) Validate(schema Schema) error {
	switch e.kind {
	case KindEq, KindNe:
		fk, ok := schema[e.field]
		if !ok {
			return fmt.Errorf("unknown filter field %q", e.field)
		}
		switch fk {
		case FieldTag:
			tag, isTag := e.value.Tag()
			if !isTag {
				return fmt.Errorf("field %q takes a string value", e.field)
			}
			if tag == "" {
				return fmt.Errorf("field %q: empty string value", e.field)
			}
		case FieldNumeric:
			if _, isNum := e.value.Number(); !isNum {
				return fmt.Errorf("field %q takes a numeric value", e.field)
			}
		}
		return nil
	case KindAnd, KindOr:
		if len(e.children) == 0 {
			return fmt.Errorf("%s: no operands", e.kind)
		}
		for _, c := range e.children {
			if err := c.Validate(schema); err != nil {
				return err
			}
		}
		return nil
	default:
		return fmt.Errorf("missing filter operator")
	}
}
