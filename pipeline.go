package doculite

import (
	"context"
	"math"
	"sort"
)

// lookupSource is the minimal capability the pipeline needs from a Store to
// run $lookup: loading every document of some other collection by name.
// Collection depends on Store through this narrow interface rather than
// importing the whole Store surface, keeping the ownership direction
// spec.md's design notes call for (Collections do not own the Store).
type lookupSource interface {
	loadAllDocuments(ctx context.Context, collection string) ([]M, error)
}

// runPipeline executes an ordered sequence of aggregation stages over docs,
// the output of one stage feeding the next. docs is consumed as the
// starting point (normally an entire collection, loaded with no filter).
func runPipeline(ctx context.Context, src lookupSource, docs []M, stages []M) ([]M, error) {
	cur := docs
	for _, stage := range stages {
		// A stage without exactly one operator is malformed; like an
		// unrecognized stage, it passes its input through unchanged.
		if len(stage) != 1 {
			continue
		}
		var op string
		var arg interface{}
		for k, v := range stage {
			op, arg = k, v
		}

		next, err := applyStage(ctx, src, cur, op, arg)
		if err != nil {
			return nil, err
		}
		cur = next
	}
	return cur, nil
}

// applyStage dispatches a single stage. An unrecognized stage operator is a
// documented no-op (spec.md §4.4): the input passes through unchanged.
func applyStage(ctx context.Context, src lookupSource, docs []M, op string, arg interface{}) ([]M, error) {
	switch op {
	case "$match":
		q, ok := asMap(arg)
		if !ok {
			return docs, nil
		}
		out := make([]M, 0, len(docs))
		for _, d := range docs {
			if Matches(d, M(q)) {
				out = append(out, d)
			}
		}
		return out, nil

	case "$sort":
		fields := toOrderedFields(arg)
		if fields == nil {
			return docs, nil
		}
		return stageSort(docs, fields), nil

	case "$limit":
		n, ok := asFloat64(arg)
		if !ok {
			return docs, nil
		}
		limit := int(n)
		if limit < 0 {
			limit = 0
		}
		if limit > len(docs) {
			limit = len(docs)
		}
		return docs[:limit], nil

	case "$skip":
		n, ok := asFloat64(arg)
		if !ok {
			return docs, nil
		}
		skip := int(n)
		if skip < 0 {
			skip = 0
		}
		if skip > len(docs) {
			skip = len(docs)
		}
		return docs[skip:], nil

	case "$project":
		spec, ok := asMap(arg)
		if !ok {
			return docs, nil
		}
		return stageProject(docs, spec), nil

	case "$group":
		spec, ok := asMap(arg)
		if !ok {
			return docs, nil
		}
		return stageGroup(docs, spec)

	case "$count":
		name, ok := asString(arg)
		if !ok {
			return docs, nil
		}
		return []M{{name: float64(len(docs))}}, nil

	case "$unwind":
		path, ok := asString(arg)
		if !ok {
			return docs, nil
		}
		return stageUnwind(docs, path), nil

	case "$lookup":
		spec, ok := asMap(arg)
		if !ok {
			return docs, nil
		}
		return stageLookup(ctx, src, docs, spec)

	case "$geoNear":
		spec, ok := asMap(arg)
		if !ok {
			return docs, nil
		}
		return stageGeoNear(docs, spec), nil

	default:
		return docs, nil
	}
}

// stageSort implements $sort: a stable composite-key sort. Tie rule per
// field: both missing compares equal, one missing sorts less than present,
// both present and comparable sort by compare(), otherwise equal. Fields
// are consulted in slice order; toOrderedFields keeps the declared order
// only when the $sort spec is a D (a Go map has no iteration order).
func stageSort(docs []M, fields []sortField) []M {
	out := make([]M, len(docs))
	copy(out, docs)

	sort.SliceStable(out, func(i, j int) bool {
		for _, f := range fields {
			c := compareField(out[i], out[j], f.field)
			if c == 0 {
				continue
			}
			if f.desc {
				return c > 0
			}
			return c < 0
		}
		return false
	})
	return out
}

type sortField struct {
	field string
	desc  bool
}

// sortFieldsOf extracts sort fields from a bare M spec. Go maps don't
// preserve insertion order, so the fields come out in map-iteration order;
// callers that care about declared multi-field tie order pass a D instead,
// which toOrderedFields (types.go) reads in order.
func sortFieldsOf(spec M) []sortField {
	fields := make([]sortField, 0, len(spec))
	for k, v := range spec {
		dir, _ := asFloat64(v)
		fields = append(fields, sortField{field: k, desc: dir < 0})
	}
	return fields
}

// compareField orders two documents by one field, returning -1, 0, or 1.
func compareField(a, b M, field string) int {
	av, aFound := getNested(a, field)
	bv, bFound := getNested(b, field)

	switch {
	case !aFound && !bFound:
		return 0
	case !aFound:
		return -1
	case !bFound:
		return 1
	}

	switch compare(av, bv) {
	case orderLess:
		return -1
	case orderGreater:
		return 1
	default:
		return 0
	}
}

// stageProject implements $project: produce a new document containing
// exactly the top-level keys marked 1 (dotted paths are not projected).
// Mixing inclusions and exclusions is allowed; unspecified keys default to
// excluded when any inclusion is present, else included.
func stageProject(docs []M, spec M) []M {
	hasInclusion := false
	for _, v := range spec {
		if n, ok := asFloat64(v); ok && n != 0 {
			hasInclusion = true
			break
		}
	}

	out := make([]M, len(docs))
	for i, d := range docs {
		result := M{}
		if hasInclusion {
			for k, v := range spec {
				n, _ := asFloat64(v)
				if n != 0 {
					if val, found := d[k]; found {
						result[k] = val
					}
				}
			}
		} else {
			for k, v := range d {
				n, _ := asFloat64(spec[k])
				excluded := false
				if _, present := spec[k]; present {
					excluded = n == 0
				}
				if !excluded {
					result[k] = v
				}
			}
		}
		out[i] = result
	}
	return out
}

// stageUnwind implements $unwind: replace each document by one copy per
// element of its path's list value. A document whose path resolves to a
// non-list is dropped entirely (canonical document-store behavior; see
// SPEC_FULL.md's Open Question resolution, which departs from the source
// implementation's "pass through unchanged").
func stageUnwind(docs []M, path string) []M {
	field := path
	if len(path) > 0 && path[0] == '$' {
		field = path[1:]
	}

	out := make([]M, 0, len(docs))
	for _, d := range docs {
		v, found := getNested(d, field)
		if !found {
			continue
		}
		list, ok := asSlice(v)
		if !ok {
			continue
		}
		for _, elem := range list {
			copyDoc := cloneDoc(d)
			setTopLevel(copyDoc, field, elem)
			out = append(out, copyDoc)
		}
	}
	return out
}

// cloneDoc makes a shallow top-level copy of a document so stages can
// rewrite individual fields without aliasing the input.
func cloneDoc(d M) M {
	out := make(M, len(d))
	for k, v := range d {
		out[k] = v
	}
	return out
}

// setTopLevel assigns a (possibly dotted, but only at the top level) field
// on a document; $unwind only ever rewrites the exact field it unwound, so
// dotted paths here are set verbatim as a single key rather than
// re-descending, matching $project's "no dotted-path traversal" limitation.
func setTopLevel(d M, field string, v interface{}) {
	d[field] = v
}

// stageGeoNear implements $geoNear: planar Euclidean distance from `near`
// to each document's 2-element numeric list at distanceField (spherical is
// accepted but ignored, per spec.md). Documents lacking that field are
// dropped; documents beyond maxDistance (if given) are dropped; the
// distance is attached under distanceField. Results are not sorted by
// distance (spec.md leaves ordering unspecified).
func stageGeoNear(docs []M, spec M) []M {
	nearRaw, ok := spec["near"]
	if !ok {
		return docs
	}
	near, ok := asSlice(nearRaw)
	if !ok || len(near) != 2 {
		return docs
	}
	nx, nxOK := asFloat64(near[0])
	ny, nyOK := asFloat64(near[1])
	if !nxOK || !nyOK {
		return docs
	}

	field, ok := asString(spec["distanceField"])
	if !ok {
		return docs
	}

	hasMax := false
	var maxDist float64
	if raw, present := spec["maxDistance"]; present {
		if v, ok := asFloat64(raw); ok {
			hasMax = true
			maxDist = v
		}
	}

	out := make([]M, 0, len(docs))
	for _, d := range docs {
		v, found := getNested(d, field)
		if !found {
			continue
		}
		point, ok := asSlice(v)
		if !ok || len(point) != 2 {
			continue
		}
		px, pxOK := asFloat64(point[0])
		py, pyOK := asFloat64(point[1])
		if !pxOK || !pyOK {
			continue
		}

		dist := math.Hypot(px-nx, py-ny)
		if hasMax && dist > maxDist {
			continue
		}

		result := cloneDoc(d)
		result[field] = dist
		out = append(out, result)
	}
	return out
}

// stageLookup implements $lookup: for each document, attach `as` -> the
// list of foreign-collection documents whose foreignField equals the local
// document's localField. Executes a full scan of `from` (no index), per
// spec.md.
func stageLookup(ctx context.Context, src lookupSource, docs []M, spec M) ([]M, error) {
	from, ok := asString(spec["from"])
	if !ok {
		return docs, nil
	}
	localField, ok := asString(spec["localField"])
	if !ok {
		return docs, nil
	}
	foreignField, ok := asString(spec["foreignField"])
	if !ok {
		return docs, nil
	}
	as, ok := asString(spec["as"])
	if !ok {
		return docs, nil
	}

	foreign, err := src.loadAllDocuments(ctx, from)
	if err != nil {
		return nil, err
	}

	out := make([]M, len(docs))
	for i, d := range docs {
		localVal, found := getNested(d, localField)
		matches := []interface{}{}
		if found {
			for _, f := range foreign {
				fv, fFound := getNested(f, foreignField)
				if fFound && equals(fv, localVal) {
					matches = append(matches, f)
				}
			}
		}
		result := cloneDoc(d)
		result[as] = matches
		out[i] = result
	}
	return out, nil
}
