package doculite

import "testing"

func TestGetNestedDottedPath(t *testing.T) {
	doc := M{"a": M{"b": M{"c": 42.0}}}
	v, found := getNested(doc, "a.b.c")
	AssertTrue(t, found, "nested path should resolve")
	AssertEqual(t, v, 42.0, "resolved value")
}

func TestGetNestedMissing(t *testing.T) {
	doc := M{"a": M{"b": 1.0}}
	_, found := getNested(doc, "a.missing")
	AssertFalse(t, found, "missing key should not resolve")
}

func TestGetNestedDoesNotDescendThroughLists(t *testing.T) {
	doc := M{"a": []interface{}{M{"b": 1.0}}}
	_, found := getNested(doc, "a.b")
	AssertFalse(t, found, "paths must not descend through list elements")
}

func TestDerefLiteralVsFieldReference(t *testing.T) {
	doc := M{"qty": 3.0}
	AssertEqual(t, deref(1.0, doc), 1.0, "bare literal passes through")
	AssertEqual(t, deref("$qty", doc), 3.0, "$-prefixed string resolves a field")
	AssertEqual(t, deref("$missing", doc), nil, "missing field resolves to nil")
}

func TestCompareNumeric(t *testing.T) {
	AssertEqual(t, compare(1.0, 2), orderLess, "1 < 2")
	AssertEqual(t, compare(int64(5), 5.0), orderEqual, "int64 vs float64 equal")
	AssertEqual(t, compare(3, 2.0), orderGreater, "3 > 2")
}

func TestCompareString(t *testing.T) {
	AssertEqual(t, compare("a", "b"), orderLess, "a < b")
	AssertEqual(t, compare("b", "a"), orderGreater, "b > a")
}

func TestCompareIncomparable(t *testing.T) {
	AssertEqual(t, compare("a", 1.0), orderIncomparable, "string vs number")
	AssertEqual(t, compare(true, false), orderIncomparable, "bools aren't ordered")
}

func TestEqualsNumericCrossType(t *testing.T) {
	AssertTrue(t, equals(1, 1.0), "int equals float64")
	AssertTrue(t, equals(int32(7), int64(7)), "int32 equals int64")
	AssertFalse(t, equals(1, "1"), "number never equals its string form")
}

func TestEqualsNilHandling(t *testing.T) {
	AssertTrue(t, equals(nil, nil), "nil equals nil")
	AssertFalse(t, equals(nil, 0.0), "nil does not equal zero")
}

func TestAnyOverlap(t *testing.T) {
	field := []interface{}{"x", "y", "z"}
	AssertTrue(t, anyOverlap(field, []interface{}{"z", "q"}), "shares z")
	AssertFalse(t, anyOverlap(field, []interface{}{"q"}), "no shared element")
	AssertFalse(t, anyOverlap("not-a-list", []interface{}{"x"}), "scalar field never overlaps")
}

func TestTypeName(t *testing.T) {
	AssertEqual(t, typeName(nil, false), "missing", "absent field")
	AssertEqual(t, typeName(nil, true), "null", "present but null")
	AssertEqual(t, typeName("s", true), "string", "string")
	AssertEqual(t, typeName(1.0, true), "number", "number")
	AssertEqual(t, typeName([]interface{}{1.0}, true), "array", "array")
	AssertEqual(t, typeName(M{"a": 1.0}, true), "object", "object")
}
