package keys

import (
	"math/big"
	"sort"

	"github.com/dbsmedya/relsynth/internal/dataset"
)

// LabelEncoder maps each distinct value to its rank among all distinct values.
// Values compare numerically when every fitted value is a Go number and as
// text otherwise; numeric-looking strings stay text, so "007" and "7" are
// different classes. NULL is never encoded.
type LabelEncoder struct {
	classes []any
	index   map[string]int64
	numeric bool
}

// FitLabelEncoder learns the classes of values, ignoring NULLs.
func FitLabelEncoder(values []any) *LabelEncoder {
	e := &LabelEncoder{index: make(map[string]int64), numeric: true}

	var present []any
	for _, v := range values {
		if v == nil {
			continue
		}
		present = append(present, v)
		if exactNumber(v) == nil {
			e.numeric = false
		}
	}

	type class struct {
		key   string
		num   *big.Rat
		value any
	}
	seen := make(map[string]bool)
	var classes []class
	for _, v := range present {
		k, _ := e.key(v)
		if seen[k] {
			continue
		}
		seen[k] = true
		c := class{key: k, value: v}
		if e.numeric {
			c.num = exactNumber(v)
		}
		classes = append(classes, c)
	}

	sort.Slice(classes, func(i, j int) bool {
		if e.numeric {
			return classes[i].num.Cmp(classes[j].num) < 0
		}
		return classes[i].key < classes[j].key
	})

	for i, c := range classes {
		e.classes = append(e.classes, c.value)
		e.index[c.key] = int64(i)
	}
	return e
}

// key is the class identity of v. Numbers use their exact rational form, so
// int64(7) and 7.0 match while 2^53 and 2^53+1 do not.
func (e *LabelEncoder) key(v any) (string, bool) {
	if e.numeric {
		r := exactNumber(v)
		if r == nil {
			return "", false
		}
		return r.RatString(), true
	}
	return dataset.Format(dataset.Normalize(v)), true
}

// exactNumber returns v as an exact rational, or nil when v is not a Go
// integer or finite float.
func exactNumber(v any) *big.Rat {
	switch n := v.(type) {
	case int:
		return new(big.Rat).SetInt64(int64(n))
	case int8:
		return new(big.Rat).SetInt64(int64(n))
	case int16:
		return new(big.Rat).SetInt64(int64(n))
	case int32:
		return new(big.Rat).SetInt64(int64(n))
	case int64:
		return new(big.Rat).SetInt64(n)
	case uint:
		return new(big.Rat).SetInt(new(big.Int).SetUint64(uint64(n)))
	case uint8:
		return new(big.Rat).SetInt64(int64(n))
	case uint16:
		return new(big.Rat).SetInt64(int64(n))
	case uint32:
		return new(big.Rat).SetInt64(int64(n))
	case uint64:
		return new(big.Rat).SetInt(new(big.Int).SetUint64(n))
	case float32:
		return new(big.Rat).SetFloat64(float64(n)) // nil for NaN and Inf
	case float64:
		return new(big.Rat).SetFloat64(n)
	default:
		return nil
	}
}

// Classes returns the fitted values in code order.
func (e *LabelEncoder) Classes() []any {
	out := make([]any, len(e.classes))
	copy(out, e.classes)
	return out
}

// Len returns the number of classes.
func (e *LabelEncoder) Len() int {
	return len(e.classes)
}

// Encode returns the code of one value.
func (e *LabelEncoder) Encode(v any) (int64, error) {
	k, ok := e.key(v)
	if !ok {
		return 0, &EncodingError{Value: v}
	}
	code, ok := e.index[k]
	if !ok {
		return 0, &EncodingError{Value: v}
	}
	return code, nil
}

// Transform encodes every value. NULL stays NULL.
func (e *LabelEncoder) Transform(values []any) ([]any, error) {
	out := make([]any, len(values))
	for i, v := range values {
		if v == nil {
			continue
		}
		code, err := e.Encode(v)
		if err != nil {
			return nil, err
		}
		out[i] = code
	}
	return out, nil
}
