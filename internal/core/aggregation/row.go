package aggregation

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// WindowStartField is the payload field carrying a bucket's start (epoch millis).
const WindowStartField = "window_start"

// Row is one materialized bucket row as read from (or written to) a table.
type Row struct {
	Key         string // encoded composite primary key
	Keys        map[string]string
	WindowStart time.Time
	Values      map[string]decimal.Decimal
	Attrs       map[string]string // non-numeric value columns

	numericKeys map[string]bool // key columns carried as JSON numbers
}

// Clone returns a deep copy of r.
func (r Row) Clone() Row {
	out := Row{
		Key:         r.Key,
		Keys:        copyStrings(r.Keys),
		WindowStart: r.WindowStart,
		Values:      make(map[string]decimal.Decimal, len(r.Values)),
		Attrs:       copyStrings(r.Attrs),
		numericKeys: copyFlags(r.numericKeys),
	}
	for k, v := range r.Values {
		out.Values[k] = v
	}
	return out
}

// DecodeRow decodes a JSON row payload without a known shape. String and
// boolean fields become key columns, numeric fields become values. Field
// names are lowercased.
func DecodeRow(key string, payload []byte) (Row, error) {
	return DecodeRowShape(key, payload, nil)
}

// DecodeRowShape decodes a JSON row payload whose key columns are known.
// Key columns keep their string form whatever their JSON type, numeric
// fields become values and any other field lands in Attrs. A nil keys
// falls back to classifying fields by JSON type.
func DecodeRowShape(key string, payload []byte, keys []string) (Row, error) {
	dec := json.NewDecoder(bytes.NewReader(payload))
	dec.UseNumber()

	var data map[string]interface{}
	if err := dec.Decode(&data); err != nil {
		return Row{}, fmt.Errorf("decode row %q: %w", key, err)
	}

	keySet := make(map[string]bool, len(keys))
	for _, k := range keys {
		keySet[strings.ToLower(k)] = true
	}

	row := Row{
		Key:    key,
		Keys:   make(map[string]string),
		Values: make(map[string]decimal.Decimal),
	}
	for name, v := range data {
		field := strings.ToLower(name)
		if field == WindowStartField || field == "windowstart" {
			ts, err := decodeWindowStart(v)
			if err != nil {
				return Row{}, fmt.Errorf("decode row %q: %w", key, err)
			}
			row.WindowStart = ts
			continue
		}
		if v == nil {
			continue
		}
		if keySet[field] {
			row.setKey(field, v)
			continue
		}
		switch val := v.(type) {
		case string:
			if keys == nil {
				row.Keys[field] = val
			} else {
				row.setAttr(field, val)
			}
		case bool:
			if keys == nil {
				row.Keys[field] = fmt.Sprintf("%t", val)
			} else {
				row.setAttr(field, fmt.Sprintf("%t", val))
			}
		default:
			if d, ok := toDecimal(val); ok {
				row.Values[field] = d
			}
		}
	}
	return row, nil
}

func (r *Row) setKey(field string, v interface{}) {
	switch val := v.(type) {
	case string:
		r.Keys[field] = val
	case json.Number:
		r.Keys[field] = val.String()
		if r.numericKeys == nil {
			r.numericKeys = make(map[string]bool)
		}
		r.numericKeys[field] = true
	default:
		r.Keys[field] = fmt.Sprint(val)
	}
}

func (r *Row) setAttr(field, v string) {
	if r.Attrs == nil {
		r.Attrs = make(map[string]string)
	}
	r.Attrs[field] = v
}

func decodeWindowStart(v interface{}) (time.Time, error) {
	switch val := v.(type) {
	case json.Number:
		ms, err := val.Int64()
		if err != nil {
			return time.Time{}, fmt.Errorf("window start %q: %w", val, err)
		}
		return time.UnixMilli(ms).UTC(), nil
	case string:
		ts, err := time.Parse(time.RFC3339Nano, val)
		if err != nil {
			return time.Time{}, fmt.Errorf("window start %q: %w", val, err)
		}
		return ts.UTC(), nil
	case nil:
		return time.Time{}, nil
	}
	return time.Time{}, fmt.Errorf("window start: unsupported type %T", v)
}

// Encode renders r as a flat JSON payload, the inverse of DecodeRow.
func (r Row) Encode() ([]byte, error) {
	out := make(map[string]interface{}, len(r.Keys)+len(r.Values)+len(r.Attrs)+1)
	for k, v := range r.Attrs {
		out[k] = v
	}
	for k, v := range r.Keys {
		if r.numericKeys[k] {
			out[k] = json.Number(v)
			continue
		}
		out[k] = v
	}
	for k, v := range r.Values {
		out[k] = json.Number(v.String())
	}
	if !r.WindowStart.IsZero() {
		out[WindowStartField] = r.WindowStart.UnixMilli()
	}
	return json.Marshal(out)
}

func copyStrings(in map[string]string) map[string]string {
	out := make(map[string]string, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

func copyFlags(in map[string]bool) map[string]bool {
	if in == nil {
		return nil
	}
	out := make(map[string]bool, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
