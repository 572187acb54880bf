/*
codec.go - Field encoding for SQL-backed stores

PURPOSE:
  SQL stores keep a record's fields in a single JSON column. Plain JSON loses
  types (decimals become floats, times become strings), so every value is
  written with a one-letter kind tag:

    {"balance": {"k": "d", "v": "12.50"}, "paid_date": {"k": "n"}}

  Kinds: s=string, i=int64, d=decimal, b=bool, t=time (RFC3339Nano), n=null.

SEE ALSO:
  - store/sqlite/sqlite.go, store/postgres/postgres.go
*/
package generic

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
)

type taggedValue struct {
	Kind  string `json:"k"`
	Value string `json:"v,omitempty"`
}

// EncodeFields serializes canonical fields to tagged JSON.
func EncodeFields(f Fields) ([]byte, error) {
	out := make(map[string]taggedValue, len(f))
	for k, v := range f {
		tv, err := encodeValue(v)
		if err != nil {
			return nil, fmt.Errorf("field %q: %w", k, err)
		}
		out[k] = tv
	}
	return json.Marshal(out)
}

// DecodeFields parses tagged JSON produced by EncodeFields.
func DecodeFields(data []byte) (Fields, error) {
	var raw map[string]taggedValue
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("decode fields: %w", err)
	}
	out := make(Fields, len(raw))
	for k, tv := range raw {
		v, err := decodeValue(tv)
		if err != nil {
			return nil, fmt.Errorf("field %q: %w", k, err)
		}
		out[k] = v
	}
	return out, nil
}

func encodeValue(v any) (taggedValue, error) {
	switch x := v.(type) {
	case nil:
		return taggedValue{Kind: "n"}, nil
	case string:
		return taggedValue{Kind: "s", Value: x}, nil
	case int64:
		return taggedValue{Kind: "i", Value: strconv.FormatInt(x, 10)}, nil
	case decimal.Decimal:
		return taggedValue{Kind: "d", Value: x.String()}, nil
	case bool:
		return taggedValue{Kind: "b", Value: strconv.FormatBool(x)}, nil
	case time.Time:
		return taggedValue{Kind: "t", Value: x.UTC().Format(time.RFC3339Nano)}, nil
	}
	return taggedValue{}, fmt.Errorf("%w: %T", ErrUnsupportedValue, v)
}

func decodeValue(tv taggedValue) (any, error) {
	switch tv.Kind {
	case "n":
		return nil, nil
	case "s":
		return tv.Value, nil
	case "i":
		return strconv.ParseInt(tv.Value, 10, 64)
	case "d":
		return decimal.NewFromString(tv.Value)
	case "b":
		return strconv.ParseBool(tv.Value)
	case "t":
		return time.Parse(time.RFC3339Nano, tv.Value)
	}
	return nil, fmt.Errorf("%w: kind %q", ErrUnsupportedValue, tv.Kind)
}
