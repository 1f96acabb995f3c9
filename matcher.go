package doculite

import (
	"regexp"
	"strings"
	"sync"
)

// regexCache memoizes compiled $regex patterns, grounded on the same
// compile-once/reuse pattern a regex-backed lookup layer in the wider
// corpus applies to its own hot-path pattern matching.
type regexCache struct {
	mu    sync.RWMutex
	cache map[string]*regexp.Regexp
}

var globalRegexCache = &regexCache{cache: make(map[string]*regexp.Regexp)}

func (c *regexCache) compile(pattern string) (*regexp.Regexp, error) {
	c.mu.RLock()
	if re, ok := c.cache[pattern]; ok {
		c.mu.RUnlock()
		return re, nil
	}
	c.mu.RUnlock()

	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.cache[pattern] = re
	c.mu.Unlock()
	return re, nil
}

// Matches evaluates a predicate expression against a single document. The
// query mapping is an implicit AND over its entries; every entry must hold
// for the document to match.
func Matches(doc M, query M) bool {
	for key, value := range query {
		if strings.HasPrefix(key, "$") {
			if !matchLogical(doc, key, value) {
				return false
			}
			continue
		}
		if !matchField(doc, key, value) {
			return false
		}
	}
	return true
}

// matchLogical handles a top-level "$"-keyed combinator. Any unrecognized
// top-level $-operator is a query-structural error: the document fails to
// match, no exception is raised (spec.md §4.3, §7).
func matchLogical(doc M, op string, value interface{}) bool {
	switch op {
	case "$and":
		subs, ok := asQueryList(value)
		if !ok {
			return false
		}
		for _, q := range subs {
			if !Matches(doc, q) {
				return false
			}
		}
		return true
	case "$or":
		subs, ok := asQueryList(value)
		if !ok {
			return false
		}
		for _, q := range subs {
			if Matches(doc, q) {
				return true
			}
		}
		return false
	case "$nor":
		subs, ok := asQueryList(value)
		if !ok {
			return false
		}
		for _, q := range subs {
			if Matches(doc, q) {
				return false
			}
		}
		return true
	default:
		return false
	}
}

func asQueryList(value interface{}) ([]M, bool) {
	list, ok := asSlice(value)
	if !ok {
		return nil, false
	}
	out := make([]M, 0, len(list))
	for _, item := range list {
		switch q := item.(type) {
		case M:
			out = append(out, q)
		case map[string]interface{}:
			out = append(out, M(q))
		default:
			return nil, false
		}
	}
	return out, true
}

// matchField evaluates one (key, value) pair of a query against doc. When
// value is itself a mapping it is treated as an operator bundle; otherwise
// it is a scalar-equality constraint.
func matchField(doc M, key string, value interface{}) bool {
	dv, found := getNested(doc, key)

	if ops, ok := asMap(value); ok {
		for op, arg := range ops {
			if !matchOperator(dv, found, op, arg) {
				return false
			}
		}
		return true
	}

	return found && equals(dv, value)
}

// matchOperator evaluates a single field operator. dv/found are the
// resolved document value and whether the path existed at all. Any
// unrecognized operator fails the document (spec.md §4.3 table footer).
func matchOperator(dv interface{}, found bool, op string, arg interface{}) bool {
	switch op {
	case "$eq":
		return found && equals(dv, arg)
	case "$ne":
		return !(found && equals(dv, arg))
	case "$gt":
		return found && compare(dv, arg) == orderGreater
	case "$gte":
		return found && (compare(dv, arg) == orderGreater || compare(dv, arg) == orderEqual)
	case "$lt":
		return found && compare(dv, arg) == orderLess
	case "$lte":
		return found && (compare(dv, arg) == orderLess || compare(dv, arg) == orderEqual)
	case "$in":
		list, ok := asSlice(arg)
		if !ok {
			return false
		}
		if !found {
			return false
		}
		for _, want := range list {
			if equals(dv, want) {
				return true
			}
		}
		return anyOverlap(dv, list)
	case "$nin":
		list, ok := asSlice(arg)
		if !ok {
			return false
		}
		if !found {
			return true
		}
		for _, want := range list {
			if equals(dv, want) {
				return false
			}
		}
		return !anyOverlap(dv, list)
	case "$exists":
		want, ok := arg.(bool)
		if !ok {
			return false
		}
		// A field exists when its path resolves to a non-null value; a
		// key that is present but holds null counts as absent.
		has := found && dv != nil
		return has == want
	case "$regex":
		pattern, ok := asString(arg)
		if !ok || !found {
			return false
		}
		s, ok := asString(dv)
		if !ok {
			return false
		}
		re, err := globalRegexCache.compile(pattern)
		if err != nil {
			return false
		}
		return re.MatchString(s)
	case "$like":
		pattern, ok := asString(arg)
		if !ok || !found {
			return false
		}
		s, ok := asString(dv)
		if !ok {
			return false
		}
		return strings.Contains(s, pattern)
	case "$type":
		return typeName(dv, found) == arg
	default:
		return false
	}
}
