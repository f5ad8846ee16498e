package store

import (
	"encoding/json"
	"time"
)

// Typed accessors tolerate the representation drift between backends: memstore
// keeps native Go values, the JSONB and BSON backends round-trip numbers as
// float64/int32 and times as RFC3339 strings.

func (d *Document) String(field string) string {
	s, _ := d.Data[field].(string)
	return s
}

func (d *Document) Bool(field string) bool {
	b, _ := d.Data[field].(bool)
	return b
}

func (d *Document) Int64(field string) int64 {
	return CoerceInt64(d.Data[field])
}

func (d *Document) Float64(field string) float64 {
	switch v := d.Data[field].(type) {
	case float64:
		return v
	case float32:
		return float64(v)
	case int:
		return float64(v)
	case int64:
		return float64(v)
	}
	return 0
}

func (d *Document) Time(field string) time.Time {
	return CoerceTime(d.Data[field])
}

func (d *Document) StringSlice(field string) []string {
	switch v := d.Data[field].(type) {
	case []string:
		return v
	case []any:
		out := make([]string, 0, len(v))
		for _, e := range v {
			if s, ok := e.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}

func (d *Document) Map(field string) map[string]any {
	m, _ := d.Data[field].(map[string]any)
	return m
}

func (d *Document) MapSlice(field string) []map[string]any {
	switch v := d.Data[field].(type) {
	case []map[string]any:
		return v
	case []any:
		out := make([]map[string]any, 0, len(v))
		for _, e := range v {
			if m, ok := e.(map[string]any); ok {
				out = append(out, m)
			}
		}
		return out
	}
	return nil
}

func CoerceInt64(v any) int64 {
	switch n := v.(type) {
	case int64:
		return n
	case int:
		return int64(n)
	case int32:
		return int64(n)
	case float64:
		return int64(n)
	case json.Number:
		i, _ := n.Int64()
		return i
	}
	return 0
}

func CoerceTime(v any) time.Time {
	switch t := v.(type) {
	case time.Time:
		return t
	case string:
		parsed, err := time.Parse(time.RFC3339Nano, t)
		if err == nil {
			return parsed
		}
	}
	return time.Time{}
}

// CompareOrderValues orders two query order-by values, with times and numbers
// compared by magnitude and everything else by string form.
func CompareOrderValues(a, b any) int {
	at, aok := asTime(a)
	bt, bok := asTime(b)
	if aok && bok {
		switch {
		case at.Before(bt):
			return -1
		case at.After(bt):
			return 1
		default:
			return 0
		}
	}

	switch av := a.(type) {
	case int, int32, int64, float64, float32, json.Number:
		an := coerceFloat(a)
		bn := coerceFloat(b)
		switch {
		case an < bn:
			return -1
		case an > bn:
			return 1
		default:
			return 0
		}
	case string:
		bs, _ := b.(string)
		switch {
		case av < bs:
			return -1
		case av > bs:
			return 1
		default:
			return 0
		}
	}
	return 0
}

func asTime(v any) (time.Time, bool) {
	switch t := v.(type) {
	case time.Time:
		return t, true
	case string:
		parsed, err := time.Parse(time.RFC3339Nano, t)
		if err == nil {
			return parsed, true
		}
	}
	return time.Time{}, false
}

func coerceFloat(v any) float64 {
	switch n := v.(type) {
	case float64:
		return n
	case float32:
		return float64(n)
	case int:
		return float64(n)
	case int32:
		return float64(n)
	case int64:
		return float64(n)
	case json.Number:
		f, _ := n.Float64()
		return f
	}
	return 0
}
