/*
query.go - Filtering and ordering over records

PURPOSE:
  The Store contract supports "filtered / ordered list". Query is the
  portable description of that request: a conjunction of field predicates
  plus an ordering. Every Store implementation evaluates it with the same
  Matches / Apply functions, so memory, SQLite and Postgres stores agree on
  semantics to the last tie-break.

PREDICATES:
  eq, ne, gt, gte, lt, lte. Values are normalized before comparison, so
  Gt("balance", 0) compares decimal to decimal.

  A predicate on a missing field never matches (including ne).

ORDERING:
  OrderBy is applied left to right. Records that compare equal on every
  order key fall back to (created_at ASC, id ASC) so results are
  deterministic even when two rows share a timestamp.

EXAMPLE:
  q := generic.Query{
      Where:   []generic.Condition{generic.Eq("customer_id", id), generic.Gt("balance", 0)},
      OrderBy: []generic.Order{generic.Asc(generic.FieldCreatedAt)},
  }
*/
package generic

import (
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// QUERY TYPES
// =============================================================================

type Operator string

const (
	OpEq  Operator = "eq"
	OpNe  Operator = "ne"
	OpGt  Operator = "gt"
	OpGte Operator = "gte"
	OpLt  Operator = "lt"
	OpLte Operator = "lte"
)

// Condition is a single field predicate.
type Condition struct {
	Field string
	Op    Operator
	Value any
}

// Order is a single sort key.
type Order struct {
	Field string
	Desc  bool
}

// Query is a conjunction of conditions plus an ordering. Limit <= 0 means no limit.
type Query struct {
	Where   []Condition
	OrderBy []Order
	Limit   int
}

func Eq(field string, v any) Condition  { return Condition{Field: field, Op: OpEq, Value: v} }
func Ne(field string, v any) Condition  { return Condition{Field: field, Op: OpNe, Value: v} }
func Gt(field string, v any) Condition  { return Condition{Field: field, Op: OpGt, Value: v} }
func Gte(field string, v any) Condition { return Condition{Field: field, Op: OpGte, Value: v} }
func Lt(field string, v any) Condition  { return Condition{Field: field, Op: OpLt, Value: v} }
func Lte(field string, v any) Condition { return Condition{Field: field, Op: OpLte, Value: v} }

func Asc(field string) Order  { return Order{Field: field} }
func Desc(field string) Order { return Order{Field: field, Desc: true} }

// Where builds a Query from conditions.
func Where(conds ...Condition) Query {
	return Query{Where: conds}
}

// Ordered returns a copy of q with the given ordering.
func (q Query) Ordered(orders ...Order) Query {
	q.OrderBy = orders
	return q
}

// =============================================================================
// EVALUATION
// =============================================================================

// Matches reports whether r satisfies every condition in q.
func (q Query) Matches(r Record) bool {
	for _, c := range q.Where {
		if !c.matches(r) {
			return false
		}
	}
	return true
}

func (c Condition) matches(r Record) bool {
	actual, ok := r.Value(c.Field)
	if !ok {
		return false
	}
	want, err := NormalizeValue(c.Value)
	if err != nil {
		return false
	}
	cmp, comparable := Compare(actual, want)
	if !comparable {
		return false
	}
	switch c.Op {
	case OpEq:
		return cmp == 0
	case OpNe:
		return cmp != 0
	case OpGt:
		return cmp > 0
	case OpGte:
		return cmp >= 0
	case OpLt:
		return cmp < 0
	case OpLte:
		return cmp <= 0
	}
	return false
}

// Apply filters, orders and limits records. The input slice is not modified.
func (q Query) Apply(records []Record) []Record {
	out := make([]Record, 0, len(records))
	for _, r := range records {
		if q.Matches(r) {
			out = append(out, r)
		}
	}

	sort.SliceStable(out, func(i, j int) bool {
		return q.less(out[i], out[j])
	})

	if q.Limit > 0 && len(out) > q.Limit {
		out = out[:q.Limit]
	}
	return out
}

func (q Query) less(a, b Record) bool {
	for _, o := range q.OrderBy {
		av, _ := a.Value(o.Field)
		bv, _ := b.Value(o.Field)
		cmp, _ := Compare(av, bv)
		if cmp == 0 {
			continue
		}
		if o.Desc {
			return cmp > 0
		}
		return cmp < 0
	}
	if !a.CreatedAt.Equal(b.CreatedAt) {
		return a.CreatedAt.Before(b.CreatedAt)
	}
	return a.ID < b.ID
}

// Compare orders two canonical values. nil sorts before everything.
// The second result is false when the values have incompatible types.
func Compare(a, b any) (int, bool) {
	if a == nil || b == nil {
		switch {
		case a == nil && b == nil:
			return 0, true
		case a == nil:
			return -1, true
		default:
			return 1, true
		}
	}

	if ad, ok := asDecimal(a); ok {
		bd, ok := asDecimal(b)
		if !ok {
			return 0, false
		}
		return ad.Cmp(bd), true
	}

	switch av := a.(type) {
	case string:
		bv, ok := b.(string)
		if !ok {
			return 0, false
		}
		return strings.Compare(av, bv), true
	case bool:
		bv, ok := b.(bool)
		if !ok {
			return 0, false
		}
		switch {
		case av == bv:
			return 0, true
		case !av:
			return -1, true
		default:
			return 1, true
		}
	case time.Time:
		bv, ok := b.(time.Time)
		if !ok {
			return 0, false
		}
		return av.Compare(bv), true
	}
	return 0, false
}

func asDecimal(v any) (decimal.Decimal, bool) {
	switch x := v.(type) {
	case decimal.Decimal:
		return x, true
	case int64:
		return decimal.NewFromInt(x), true
	}
	return decimal.Decimal{}, false
}
