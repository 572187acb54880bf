/*
Package generic provides the domain-agnostic record layer of the batch balance engine.

PURPOSE:
  Everything the trading and reporting code persists goes through a generic
  record store keyed by entity type. This package defines what a record is,
  how field values are typed, how records are queried, and the errors the
  store layer returns. It knows nothing about batches, purchases or customers.

KEY CONCEPTS IN THIS FILE (types.go):
  - EntityType: the "table" a record belongs to (e.g. "purchases")
  - Record: an identified, timestamped bag of typed fields
  - Fields: field name -> canonical value
  - Money helpers: monetary amounts are always decimal.Decimal

CANONICAL FIELD VALUES:
  Stores only ever hold these Go types, so comparisons and codecs are total:

    string, int64, decimal.Decimal, bool, time.Time, nil

  NormalizeFields converts convenient inputs (int, float64, *time.Time, ...)
  into the canonical set and rejects anything else.

DESIGN PRINCIPLES:
  1. Precision: money is decimal.Decimal, never float64
  2. Derived values: balances are recomputed from records, never cached
  3. Snapshots: denormalized fields are copied at creation and never re-linked

SEE ALSO:
  - store.go: Store / TxStore contract
  - query.go: filtering and ordering
  - codec.go: field encoding for SQL-backed stores
*/
package generic

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// IDENTIFIERS
// =============================================================================

// EntityType names a collection of records.
type EntityType string

// Reserved field names. They are addressable in queries but live on the
// Record itself rather than in Fields.
const (
	FieldID        = "id"
	FieldCreatedAt = "created_at"
)

// =============================================================================
// RECORD
// =============================================================================

// Fields maps field names to canonical values.
type Fields map[string]any

// Record is a single stored row.
type Record struct {
	ID        string
	Type      EntityType
	Fields    Fields
	CreatedAt time.Time
}

// Value returns a field value, resolving the reserved id and created_at names.
func (r Record) Value(field string) (any, bool) {
	switch field {
	case FieldID:
		return r.ID, true
	case FieldCreatedAt:
		return r.CreatedAt, true
	}
	v, ok := r.Fields[field]
	return v, ok
}

// Clone returns a deep-enough copy: the Fields map is copied, values are immutable.
func (r Record) Clone() Record {
	out := r
	out.Fields = r.Fields.Clone()
	return out
}

// Clone copies the map.
func (f Fields) Clone() Fields {
	out := make(Fields, len(f))
	for k, v := range f {
		out[k] = v
	}
	return out
}

// Merge returns a copy of f with every key of patch applied on top.
func (f Fields) Merge(patch Fields) Fields {
	out := f.Clone()
	for k, v := range patch {
		out[k] = v
	}
	return out
}

// String returns the string field or "".
func (f Fields) String(key string) string {
	s, _ := f[key].(string)
	return s
}

// Decimal returns the decimal field or zero.
func (f Fields) Decimal(key string) decimal.Decimal {
	switch v := f[key].(type) {
	case decimal.Decimal:
		return v
	case int64:
		return decimal.NewFromInt(v)
	}
	return decimal.Zero
}

// Int returns the integer field or 0.
func (f Fields) Int(key string) int64 {
	switch v := f[key].(type) {
	case int64:
		return v
	case decimal.Decimal:
		return v.IntPart()
	}
	return 0
}

// Bool returns the boolean field or false.
func (f Fields) Bool(key string) bool {
	b, _ := f[key].(bool)
	return b
}

// Time returns the time field, or nil when it is absent or null.
func (f Fields) Time(key string) *time.Time {
	t, ok := f[key].(time.Time)
	if !ok {
		return nil
	}
	return &t
}

// =============================================================================
// NORMALIZATION
// =============================================================================

// NormalizeFields converts every value in f to its canonical type.
func NormalizeFields(f Fields) (Fields, error) {
	out := make(Fields, len(f))
	for k, v := range f {
		nv, err := NormalizeValue(v)
		if err != nil {
			return nil, fmt.Errorf("field %q: %w", k, err)
		}
		out[k] = nv
	}
	return out, nil
}

// NormalizeValue converts a single value to its canonical type.
func NormalizeValue(v any) (any, error) {
	switch x := v.(type) {
	case nil:
		return nil, nil
	case string, int64, bool:
		return x, nil
	case decimal.Decimal:
		return x, nil
	case *decimal.Decimal:
		if x == nil {
			return nil, nil
		}
		return *x, nil
	case int:
		return int64(x), nil
	case int32:
		return int64(x), nil
	case float64:
		return decimal.NewFromFloat(x), nil
	case time.Time:
		return x.UTC(), nil
	case *time.Time:
		if x == nil {
			return nil, nil
		}
		return x.UTC(), nil
	}
	return nil, fmt.Errorf("%w: %T", ErrUnsupportedValue, v)
}

// =============================================================================
// MONEY
// =============================================================================

// Hundred is used for percentage arithmetic.
var Hundred = decimal.NewFromInt(100)

// MinDecimal returns the smaller of a and b.
func MinDecimal(a, b decimal.Decimal) decimal.Decimal {
	if a.LessThan(b) {
		return a
	}
	return b
}

// MaxDecimal returns the larger of a and b.
func MaxDecimal(a, b decimal.Decimal) decimal.Decimal {
	if a.GreaterThan(b) {
		return a
	}
	return b
}

// MustParseDecimal parses s, returning zero on malformed input.
func MustParseDecimal(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}
