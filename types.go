package doculite

// M is a document or query/stage mapping: the primary shape callers build
// predicates, update patches, and aggregation stages out of. It is the
// JSON-native analogue of the teacher's bson.M, with no BSON involved —
// doculite persists documents as decoded JSON, never as BSON.
type M map[string]interface{}

// E is one ordered key/value pair, used inside D.
type E struct {
	Key   string
	Value interface{}
}

// D is an ordered document/mapping. Go's map type has no defined iteration
// order, which matters for exactly one place in this package: $sort's
// composite key, where spec.md requires "remaining fields break ties in
// declaration order". Callers that care about multi-field sort order pass
// a D; a plain M works for every other query/stage shape, and also works
// for single-field sorts.
type D []E

// toOrderedFields flattens v (either D, preserving order, or M, in
// unspecified map-iteration order) into a slice of sortField entries.
func toOrderedFields(v interface{}) []sortField {
	switch spec := v.(type) {
	case D:
		out := make([]sortField, 0, len(spec))
		for _, e := range spec {
			dir, _ := asFloat64(e.Value)
			out = append(out, sortField{field: e.Key, desc: dir < 0})
		}
		return out
	case M:
		return sortFieldsOf(spec)
	case map[string]interface{}:
		return sortFieldsOf(M(spec))
	default:
		return nil
	}
}
