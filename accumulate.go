package doculite

import (
	"fmt"
	"math"
)

// stageGroup implements $group: partition docs by the value of
// deref(idExpr, doc), then fold each accumulator field across its
// partition's members. Output order follows first-encounter order of the
// partition key (spec.md leaves $group output order unspecified; this is
// simply a deterministic choice). A malformed spec (no _id expression, or
// an accumulator that doesn't name exactly one operator) leaves docs
// unchanged.
func stageGroup(docs []M, spec M) ([]M, error) {
	idExpr, hasID := spec["_id"]
	if !hasID {
		return docs, nil
	}

	accFields := make([]string, 0, len(spec)-1)
	accExprs := make(map[string]M, len(spec)-1)
	for field, raw := range spec {
		if field == "_id" {
			continue
		}
		accSpec, ok := asMap(raw)
		if !ok || len(accSpec) != 1 {
			return docs, nil
		}
		accFields = append(accFields, field)
		accExprs[field] = M(accSpec)
	}

	type partition struct {
		key    interface{}
		states map[string]*accState
		count  int
	}

	order := make([]string, 0)
	partitions := make(map[string]*partition)

	for _, doc := range docs {
		key := deref(idExpr, doc)
		k := valueKey(key)
		p, ok := partitions[k]
		if !ok {
			p = &partition{key: key, states: make(map[string]*accState, len(accFields))}
			for _, f := range accFields {
				for op, argExpr := range accExprs[f] {
					p.states[f] = newAccState(op, argExpr)
				}
			}
			partitions[k] = p
			order = append(order, k)
		}
		p.count++
		for _, f := range accFields {
			p.states[f].update(doc)
		}
	}

	out := make([]M, 0, len(order))
	for _, k := range order {
		p := partitions[k]
		result := M{"_id": p.key}
		for _, f := range accFields {
			result[f] = p.states[f].value(p.count)
		}
		out = append(out, result)
	}
	return out, nil
}

// valueKey builds a map key that distinguishes values by both type and
// content, so e.g. the number 1 and the string "1" partition separately.
func valueKey(v interface{}) string {
	if v == nil {
		return "null:"
	}
	if f, ok := asFloat64(v); ok {
		return fmt.Sprintf("num:%v", f)
	}
	if s, ok := asString(v); ok {
		return "str:" + s
	}
	if b, ok := v.(bool); ok {
		return fmt.Sprintf("bool:%v", b)
	}
	return fmt.Sprintf("other:%v", v)
}

// accState is the running state of one accumulator across a partition.
type accState struct {
	op        string
	arg       interface{}
	sum       float64
	count     int
	max       float64
	min       float64
	first     interface{}
	last      interface{}
	haveFirst bool
	list      []interface{}
	set       []interface{}
}

func newAccState(op string, arg interface{}) *accState {
	return &accState{
		op:  op,
		arg: arg,
		max: math.Inf(-1),
		min: math.Inf(1),
	}
}

func (a *accState) update(doc M) {
	if a.op == "$count" {
		a.count++
		return
	}
	v := deref(a.arg, doc)
	switch a.op {
	case "$sum":
		// deref already resolves a.arg to the document field value (for a
		// "$field" expression) or the literal itself (e.g. the constant 1
		// in {$sum: 1}, a per-document counter): either way v is what
		// gets added when numeric.
		if n, ok := asFloat64(v); ok {
			a.sum += n
		}
	case "$avg":
		if n, ok := asFloat64(v); ok {
			a.sum += n
			a.count++
		}
	case "$max":
		if n, ok := asFloat64(v); ok && n > a.max {
			a.max = n
		}
	case "$min":
		if n, ok := asFloat64(v); ok && n < a.min {
			a.min = n
		}
	case "$first":
		if !a.haveFirst {
			a.first = v
			a.haveFirst = true
		}
	case "$last":
		a.last = v
	case "$push":
		a.list = append(a.list, v)
	case "$addToSet":
		for _, existing := range a.set {
			if equals(existing, v) {
				return
			}
		}
		a.set = append(a.set, v)
	}
}

func (a *accState) value(partitionSize int) interface{} {
	switch a.op {
	case "$count":
		return float64(a.count)
	case "$sum":
		return a.sum
	case "$avg":
		if a.count == 0 {
			return 0.0
		}
		return a.sum / float64(a.count)
	case "$max":
		if math.IsInf(a.max, -1) {
			return nil
		}
		return a.max
	case "$min":
		if math.IsInf(a.min, 1) {
			return nil
		}
		return a.min
	case "$first":
		return a.first
	case "$last":
		return a.last
	case "$push":
		if a.list == nil {
			return []interface{}{}
		}
		return a.list
	case "$addToSet":
		if a.set == nil {
			return []interface{}{}
		}
		return a.set
	default:
		return nil
	}
}
