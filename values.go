package doculite

import (
	"reflect"
	"strings"
)

// getNested splits path on "." and descends into doc, entering only
// mapping nodes. Any step through a non-mapping value (including through a
// list, per spec.md's documented limitation on array-index traversal)
// yields "not found". Returns the resolved value and whether the path
// fully resolved.
func getNested(doc interface{}, path string) (interface{}, bool) {
	if path == "" {
		return doc, true
	}
	parts := strings.Split(path, ".")
	cur := doc
	for _, part := range parts {
		m, ok := asMap(cur)
		if !ok {
			return nil, false
		}
		v, present := m[part]
		if !present {
			return nil, false
		}
		cur = v
	}
	return cur, true
}

// asMap normalizes the two mapping shapes callers pass documents as
// (doculite's own M, and the plain map[string]interface{} produced by
// json.Unmarshal) into a single lookup form.
func asMap(v interface{}) (map[string]interface{}, bool) {
	switch t := v.(type) {
	case M:
		return t, true
	case map[string]interface{}:
		return t, true
	default:
		return nil, false
	}
}

// deref resolves a value expression: if expr is a string beginning with
// "$", the remainder is treated as a dotted field path and looked up in
// doc (missing resolves to nil); otherwise expr is returned verbatim as a
// literal.
func deref(expr interface{}, doc interface{}) interface{} {
	s, ok := expr.(string)
	if !ok || !strings.HasPrefix(s, "$") {
		return expr
	}
	v, found := getNested(doc, s[1:])
	if !found {
		return nil
	}
	return v
}

// asFloat64 reports whether v is a JSON-numeric value and its float64
// representation. Both Go's native numeric kinds and the float64 that
// encoding/json decodes all JSON numbers into are accepted, since
// documents may be freshly constructed by a caller or round-tripped
// through storage.
func asFloat64(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	default:
		return 0, false
	}
}

func asString(v interface{}) (string, bool) {
	s, ok := v.(string)
	return s, ok
}

// ordering is the result of compare: either a definite ordering, or
// incomparable when a and b are not both numeric or both string.
type ordering int

const (
	orderIncomparable ordering = iota
	orderLess
	orderEqual
	orderGreater
)

// compare orders two scalar values. Both numeric compares numerically
// (integers and floats interoperate); both string compares
// lexicographically; any other combination is incomparable, in which case
// <, <=, >, >= all evaluate false at the call site.
func compare(a, b interface{}) ordering {
	if af, aok := asFloat64(a); aok {
		if bf, bok := asFloat64(b); bok {
			switch {
			case af < bf:
				return orderLess
			case af > bf:
				return orderGreater
			default:
				return orderEqual
			}
		}
		return orderIncomparable
	}
	if as, aok := asString(a); aok {
		if bs, bok := asString(b); bok {
			switch {
			case as < bs:
				return orderLess
			case as > bs:
				return orderGreater
			default:
				return orderEqual
			}
		}
		return orderIncomparable
	}
	return orderIncomparable
}

// equals performs structural equality for scalars, with numeric values
// compared by value regardless of their concrete Go numeric type. Equality
// of nested structures (maps, slices) falls back to reflect.DeepEqual,
// which is sufficient for the operators that exercise it ($in, $nin,
// $eq, $ne against list/object literals) without pulling in a dedicated
// deep-equality library for semantics spec.md leaves unspecified anyway.
func equals(a, b interface{}) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	if af, aok := asFloat64(a); aok {
		if bf, bok := asFloat64(b); bok {
			return af == bf
		}
		return false
	}
	if as, aok := asString(a); aok {
		if bs, bok := asString(b); bok {
			return as == bs
		}
		return false
	}
	if ab, aok := a.(bool); aok {
		if bb, bok := b.(bool); bok {
			return ab == bb
		}
		return false
	}
	return reflect.DeepEqual(a, b)
}

// anyOverlap reports whether dv (a document field value that is itself a
// list) shares at least one element with arg's list. This is the canonical
// "$in against a list-valued field" semantics spec.md calls out as an Open
// Question, resolved in favor of "any overlap" rather than requiring the
// field's list to contain arg's list wholesale.
func anyOverlap(dv interface{}, arg []interface{}) bool {
	list, ok := asSlice(dv)
	if !ok {
		return false
	}
	for _, want := range arg {
		for _, have := range list {
			if equals(have, want) {
				return true
			}
		}
	}
	return false
}

func asSlice(v interface{}) ([]interface{}, bool) {
	switch s := v.(type) {
	case []interface{}:
		return s, true
	default:
		rv := reflect.ValueOf(v)
		if rv.Kind() != reflect.Slice {
			return nil, false
		}
		out := make([]interface{}, rv.Len())
		for i := range out {
			out[i] = rv.Index(i).Interface()
		}
		return out, true
	}
}

// typeName classifies v into the dynamic type-class names used by the
// $type matcher operator.
func typeName(v interface{}, found bool) string {
	if !found {
		return "missing"
	}
	if v == nil {
		return "null"
	}
	switch v.(type) {
	case string:
		return "string"
	case bool:
		return "bool"
	case float64, float32, int, int32, int64, uint, uint32, uint64:
		return "number"
	case []interface{}:
		return "array"
	case M, map[string]interface{}:
		return "object"
	default:
		rv := reflect.ValueOf(v)
		switch rv.Kind() {
		case reflect.Slice, reflect.Array:
			return "array"
		case reflect.Map:
			return "object"
		default:
			return "unknown"
		}
	}
}
