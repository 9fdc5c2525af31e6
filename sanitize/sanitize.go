// Package sanitize normalizes untrusted input into safe numeric values
// before it is written anywhere.
//
// Missing, malformed and non-finite numbers collapse to zero. Text, booleans,
// timestamps and nil pass through untouched, and nested maps and slices are
// walked recursively. Every function here is idempotent.
package sanitize

import (
	"encoding/json"
	"math"
	"reflect"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/shopspring/decimal"
	"github.com/spf13/cast"
)

// Number returns v as a float64. It returns 0 for nil, NaN, ±Inf and
// anything that does not parse as a number.
func Number(v any) float64 {
	switch n := v.(type) {
	case decimal.Decimal:
		f, _ := n.Float64()
		return finite(f)
	case *decimal.Decimal:
		if n == nil {
			return 0
		}
		f, _ := n.Float64()
		return finite(f)
	case json.Number:
		v = n.String()
	case string:
		v = strings.TrimSpace(n)
	}

	f, err := cast.ToFloat64E(v)
	if err != nil {
		return 0
	}

	return finite(f)
}

// Decimal is Number with an exact decimal result. Numeric strings are parsed
// without a float round-trip.
func Decimal(v any) decimal.Decimal {
	switch n := v.(type) {
	case decimal.Decimal:
		return n
	case *decimal.Decimal:
		if n == nil {
			return decimal.Zero
		}
		return *n
	case string:
		if d, err := decimal.NewFromString(strings.TrimSpace(n)); err == nil {
			return d
		}
		return decimal.Zero
	case json.Number:
		if d, err := decimal.NewFromString(n.String()); err == nil {
			return d
		}
		return decimal.Zero
	case int:
		return decimal.NewFromInt(int64(n))
	case int64:
		return decimal.NewFromInt(n)
	case int32:
		return decimal.NewFromInt32(n)
	}

	return decimal.NewFromFloat(Number(v))
}

// Value returns a copy of v with every invalid numeric leaf replaced by zero.
// Maps and slices are copied, never modified in place.
func Value(v any) any {
	switch n := v.(type) {
	case nil, string, bool, time.Time, decimal.Decimal:
		return v
	case float64:
		return finite(n)
	case float32:
		if math.IsNaN(float64(n)) || math.IsInf(float64(n), 0) {
			return float32(0)
		}
		return n
	case json.Number:
		if _, err := decimal.NewFromString(n.String()); err != nil {
			return json.Number("0")
		}
		return n
	case map[string]any:
		out := make(map[string]any, len(n))
		for k, e := range n {
			out[k] = Value(e)
		}
		return out
	case []any:
		out := make([]any, len(n))
		for i, e := range n {
			out[i] = Value(e)
		}
		return out
	}

	return reflected(reflect.ValueOf(v))
}

func reflected(rv reflect.Value) any {
	switch rv.Kind() {
	case reflect.Map:
		if rv.IsNil() {
			return rv.Interface()
		}
		out := reflect.MakeMapWithSize(rv.Type(), rv.Len())
		iter := rv.MapRange()
		for iter.Next() {
			out.SetMapIndex(iter.Key(), element(rv.Type().Elem(), iter.Value()))
		}
		return out.Interface()
	case reflect.Slice:
		if rv.IsNil() {
			return rv.Interface()
		}
		out := reflect.MakeSlice(rv.Type(), rv.Len(), rv.Len())
		for i := range rv.Len() {
			out.Index(i).Set(element(rv.Type().Elem(), rv.Index(i)))
		}
		return out.Interface()
	case reflect.Float32, reflect.Float64:
		f := rv.Float()
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return reflect.Zero(rv.Type()).Interface()
		}
	}

	return rv.Interface()
}

func element(typ reflect.Type, ev reflect.Value) reflect.Value {
	if !ev.IsValid() || (ev.Kind() == reflect.Interface && ev.IsNil()) {
		return reflect.Zero(typ)
	}

	clean := Value(ev.Interface())
	if clean == nil {
		return reflect.Zero(typ)
	}

	cv := reflect.ValueOf(clean)
	if !cv.Type().AssignableTo(typ) {
		return cv.Convert(typ)
	}

	return cv
}

// DecodeHook returns a mapstructure hook that routes every value headed for a
// decimal.Decimal or float64 field through Decimal or Number.
func DecodeHook() mapstructure.DecodeHookFunc {
	decimalType := reflect.TypeOf(decimal.Decimal{})

	return func(_ reflect.Type, to reflect.Type, data any) (any, error) {
		switch {
		case to == decimalType:
			return Decimal(data), nil
		case to.Kind() == reflect.Float64:
			return Number(data), nil
		}
		return data, nil
	}
}

func finite(f float64) float64 {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0
	}
	return f
}
