package doculite

import (
	"bytes"
	"errors"
	"fmt"
)

// ErrNotFound is returned when a requested document is not present.
// Methods that return a boolean "existed" result (UpdateById, DeleteById)
// do not return this error; they return false instead. Collection.FindOne
// is the call site that has no other way to signal absence.
var ErrNotFound = errors.New("doculite: document not found")

// ErrCollectionNotFound is returned by a Collection method when its
// collection's row is gone. Store.Collection always creates the row up
// front, so this only surfaces when a Collection handle outlives a
// concurrent Store.DropCollection of the same name.
var ErrCollectionNotFound = errors.New("doculite: collection not found")

// StorageError wraps a failure surfaced by the storage adapter: a rejected
// statement (constraint violation, I/O failure) while the core attempted
// the named kind of operation. It is never used for query-structural or
// type-mismatch problems; those are absorbed into boolean falsity per the
// matcher/pipeline contract, not surfaced as errors.
type StorageError struct {
	Op  string // "open", "migrate", "insert", "update", "delete", "query", "transaction", "batch"
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("doculite: storage %s failed: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

// BulkErrorCase records one failing operation within a batched write
// (insertMany / updateMany / deleteMany).
type BulkErrorCase struct {
	Index int    // position of the failing op within the batch
	ID    string // the document id involved, if known
	Err   error
}

// BulkError aggregates the per-item failures of a batched write. A batch
// that encounters any BulkErrorCase is rolled back in its entirety (writes
// within insertMany/updateMany/deleteMany are all-or-nothing per spec).
type BulkError struct {
	Cases []BulkErrorCase
}

func (e *BulkError) Error() string {
	if len(e.Cases) == 0 {
		return "doculite: invalid BulkError: no cases"
	}
	if len(e.Cases) == 1 {
		return e.Cases[0].Err.Error()
	}
	var buf bytes.Buffer
	buf.WriteString("doculite: multiple errors in batched write:\n")
	seen := make(map[string]bool, len(e.Cases))
	for _, c := range e.Cases {
		msg := c.Err.Error()
		if !seen[msg] {
			seen[msg] = true
			buf.WriteString("  - ")
			buf.WriteString(msg)
			buf.WriteByte('\n')
		}
	}
	return buf.String()
}
