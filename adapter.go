package doculite

import "context"

// documentRow is the row shape of the documents table (spec.md §3): the
// JSON payload plus the bookkeeping columns the schema mandates.
type documentRow struct {
	ID         string
	Collection string
	Data       string // JSON text; _id inside must equal ID (invariant I2)
	CreatedAt  int64  // ms since epoch, never changes after first write (I3)
	UpdatedAt  int64  // ms since epoch, >= CreatedAt (I3)
}

// batch accumulates inserts/updates/deletes for a single collection of
// statements and commits them atomically, mirroring spec.md §6's
// "batch() returning an object that accumulates ... and commits
// atomically". Used by insertMany / updateMany / deleteMany so all writes
// within one top-level call are atomic and durable together (spec.md §5).
type batch interface {
	Insert(row documentRow)
	Update(row documentRow)
	Delete(collection, id string)
	Commit(ctx context.Context) error
}

// storage is the narrow abstraction the core depends on over the embedded
// relational engine (spec.md §6, §7: "Storage adapter"). Collection and
// Store only ever talk to the database through this interface, never
// through raw *sql.DB, so an alternate embedded engine could be swapped in
// at this boundary without touching the document/query/aggregation layer.
type storage interface {
	// EnsureCollection creates the collections row for name if absent.
	EnsureCollection(ctx context.Context, name string) error
	// DropCollection removes the collections row and (by cascade) every
	// matching documents row. Returns whether a row existed to remove.
	DropCollection(ctx context.Context, name string) (bool, error)
	// ListCollections returns every known collection name.
	ListCollections(ctx context.Context) ([]string, error)
	// CollectionExists reports whether a collections row exists for name.
	CollectionExists(ctx context.Context, name string) (bool, error)

	// InsertDocument writes one row inside its own transaction.
	InsertDocument(ctx context.Context, row documentRow) error
	// FindByID looks up one row by primary key within a collection scope.
	FindByID(ctx context.Context, collection, id string) (documentRow, bool, error)
	// LoadAll returns every row for a collection in the adapter's natural
	// order (primary-key order on id, i.e. approximately time-ordered).
	LoadAll(ctx context.Context, collection string) ([]documentRow, error)
	// UpdateDocument rewrites one row's data/updated_at inside its own
	// transaction. Returns whether the row existed.
	UpdateDocument(ctx context.Context, row documentRow) (bool, error)
	// DeleteDocument removes one row by primary key. Returns whether a
	// row existed to remove.
	DeleteDocument(ctx context.Context, collection, id string) (bool, error)
	// CountAll runs SELECT COUNT(*) for a collection with no predicate.
	CountAll(ctx context.Context, collection string) (int, error)

	// NewBatch returns a batch accumulator scoped to one transaction.
	NewBatch(ctx context.Context) (batch, error)

	// Stats reports collection/document counts and on-disk size.
	Stats(ctx context.Context) (StoreStats, error)

	// Close releases the underlying connection(s).
	Close() error
}

// StoreStats is a read-only introspection snapshot (SPEC_FULL.md §7
// supplemented feature): cheap metadata with no bearing on any of the
// spec's invariants.
type StoreStats struct {
	CollectionCount int
	DocumentCount   int
	FileSizeBytes   int64
}
