package doculite

import (
	"context"
	"encoding/json"
	"time"

	"github.com/rs/zerolog"
)

// Store is the database-wide lifecycle handle (spec.md §4.6): it owns the
// single shared storage adapter and hands out Collection handles bound to
// it. Collections do not own the adapter; the Store outlives every
// Collection it returns (spec.md's design note on cyclic ownership).
type Store struct {
	storage storage
	logger  zerolog.Logger
}

// Option configures a Store at Open time.
type Option func(*openConfig)

type openConfig struct {
	logger        zerolog.Logger
	busyTimeoutMs int
	maxOpenConns  int
}

// defaultBusyTimeoutMs and defaultMaxOpenConns match the hardcoded values
// this package used before the two became configurable.
const (
	defaultBusyTimeoutMs = 5000
	defaultMaxOpenConns  = 1
)

// WithLogger attaches a structured logger; by default the Store logs
// nowhere (zerolog.Nop()).
func WithLogger(logger zerolog.Logger) Option {
	return func(c *openConfig) { c.logger = logger }
}

// WithBusyTimeout sets SQLite's busy_timeout pragma: how long a writer
// waits on a lock held by another connection before giving up with
// SQLITE_BUSY, instead of failing immediately.
func WithBusyTimeout(d time.Duration) Option {
	return func(c *openConfig) { c.busyTimeoutMs = int(d.Milliseconds()) }
}

// WithMaxOpenConns caps the number of open connections to the underlying
// *sql.DB. SQLite serializes writes regardless, but raising this above the
// default of 1 lets concurrent readers avoid queuing behind each other.
func WithMaxOpenConns(n int) Option {
	return func(c *openConfig) { c.maxOpenConns = n }
}

// Open creates or opens the database file at path, ensuring the schema
// described in spec.md §3 exists (schema_version-gated, so this is cheap
// on second and later opens of the same file).
func Open(ctx context.Context, path string, opts ...Option) (*Store, error) {
	cfg := openConfig{
		logger:        zerolog.Nop(),
		busyTimeoutMs: defaultBusyTimeoutMs,
		maxOpenConns:  defaultMaxOpenConns,
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	st, err := openSQLite(path, cfg)
	if err != nil {
		return nil, err
	}
	return &Store{storage: st, logger: cfg.logger}, nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	return s.storage.Close()
}

// Collection ensures a row exists in the collections table and returns a
// handle bound to the shared storage adapter (spec.md §4.6).
func (s *Store) Collection(ctx context.Context, name string) *Collection {
	if err := s.storage.EnsureCollection(ctx, name); err != nil {
		s.logger.Debug().Err(err).Str("collection", name).Msg("ensure collection failed")
	}
	return &Collection{store: s, name: name}
}

// DropCollection deletes the collections row for name and, by cascade,
// every document row in it. Errors are caught and converted to false, per
// spec.md §4.6/§7.
func (s *Store) DropCollection(ctx context.Context, name string) bool {
	ok, err := s.storage.DropCollection(ctx, name)
	if err != nil {
		s.logger.Debug().Err(err).Str("collection", name).Msg("drop collection failed")
		return false
	}
	return ok
}

// ListCollections returns every known collection name.
func (s *Store) ListCollections(ctx context.Context) ([]string, error) {
	return s.storage.ListCollections(ctx)
}

// Stats reports cheap store-wide introspection metadata (SPEC_FULL.md §7).
func (s *Store) Stats(ctx context.Context) (StoreStats, error) {
	return s.storage.Stats(ctx)
}

// loadAllDocuments implements lookupSource for $lookup: load every
// document of some other collection by name, decoded from its JSON
// payload.
func (s *Store) loadAllDocuments(ctx context.Context, collection string) ([]M, error) {
	rows, err := s.storage.LoadAll(ctx, collection)
	if err != nil {
		return nil, err
	}
	out := make([]M, 0, len(rows))
	for _, r := range rows {
		doc, err := decodeDocument(r)
		if err != nil {
			s.logger.Debug().Err(err).Str("id", r.ID).Msg("skipping undecodable document")
			continue
		}
		out = append(out, doc)
	}
	return out, nil
}

func decodeDocument(row documentRow) (M, error) {
	var doc M
	if err := json.Unmarshal([]byte(row.Data), &doc); err != nil {
		return nil, err
	}
	return doc, nil
}
