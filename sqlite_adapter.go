package doculite

import (
	"context"
	"database/sql"
	"fmt"
	"os"

	"github.com/rs/zerolog"
	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS collections (
	name TEXT PRIMARY KEY
);

CREATE TABLE IF NOT EXISTS documents (
	id TEXT PRIMARY KEY,
	collection_name TEXT NOT NULL REFERENCES collections(name) ON DELETE CASCADE,
	data TEXT NOT NULL,
	created_at INTEGER NOT NULL,
	updated_at INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_documents_collection_name ON documents(collection_name);
`

// sqliteStorage implements storage on top of database/sql against
// modernc.org/sqlite, a pure-Go driver that keeps doculite embeddable
// without a cgo build step (grounded on other_examples' own sqlite-backed
// document stores; see DESIGN.md).
type sqliteStorage struct {
	db     *sql.DB
	path   string
	logger zerolog.Logger
}

func openSQLite(path string, cfg openConfig) (*sqliteStorage, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, &StorageError{Op: "open", Err: err}
	}
	db.SetMaxOpenConns(cfg.maxOpenConns)

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, &StorageError{Op: "open", Err: fmt.Errorf("enable WAL: %w", err)}
	}
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		db.Close()
		return nil, &StorageError{Op: "open", Err: fmt.Errorf("enable foreign keys: %w", err)}
	}
	if _, err := db.Exec(fmt.Sprintf("PRAGMA busy_timeout=%d", cfg.busyTimeoutMs)); err != nil {
		db.Close()
		return nil, &StorageError{Op: "open", Err: fmt.Errorf("set busy timeout: %w", err)}
	}

	s := &sqliteStorage{db: db, path: path, logger: cfg.logger}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *sqliteStorage) migrate() error {
	var version int
	if err := s.db.QueryRow("PRAGMA user_version").Scan(&version); err != nil {
		return &StorageError{Op: "migrate", Err: err}
	}
	if version != 0 {
		return nil
	}
	if _, err := s.db.Exec(schema); err != nil {
		return &StorageError{Op: "migrate", Err: err}
	}
	if _, err := s.db.Exec("PRAGMA user_version = 1"); err != nil {
		return &StorageError{Op: "migrate", Err: err}
	}
	s.logger.Debug().Str("path", s.path).Msg("schema created")
	return nil
}

func (s *sqliteStorage) Close() error {
	return s.db.Close()
}

func (s *sqliteStorage) EnsureCollection(ctx context.Context, name string) error {
	_, err := s.db.ExecContext(ctx, `INSERT OR IGNORE INTO collections(name) VALUES (?)`, name)
	if err != nil {
		return &StorageError{Op: "insert", Err: err}
	}
	return nil
}

func (s *sqliteStorage) DropCollection(ctx context.Context, name string) (bool, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM collections WHERE name = ?`, name)
	if err != nil {
		return false, &StorageError{Op: "delete", Err: err}
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, &StorageError{Op: "delete", Err: err}
	}
	return n > 0, nil
}

func (s *sqliteStorage) ListCollections(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT name FROM collections ORDER BY name`)
	if err != nil {
		return nil, &StorageError{Op: "query", Err: err}
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, &StorageError{Op: "query", Err: err}
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

func (s *sqliteStorage) CollectionExists(ctx context.Context, name string) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx, `SELECT 1 FROM collections WHERE name = ?`, name).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, &StorageError{Op: "query", Err: err}
	}
	return true, nil
}

func (s *sqliteStorage) InsertDocument(ctx context.Context, row documentRow) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO documents(id, collection_name, data, created_at, updated_at) VALUES (?, ?, ?, ?, ?)`,
		row.ID, row.Collection, row.Data, row.CreatedAt, row.UpdatedAt)
	if err != nil {
		return &StorageError{Op: "insert", Err: err}
	}
	return nil
}

func (s *sqliteStorage) FindByID(ctx context.Context, collection, id string) (documentRow, bool, error) {
	var row documentRow
	row.ID, row.Collection = id, collection
	err := s.db.QueryRowContext(ctx,
		`SELECT data, created_at, updated_at FROM documents WHERE collection_name = ? AND id = ?`,
		collection, id,
	).Scan(&row.Data, &row.CreatedAt, &row.UpdatedAt)
	if err == sql.ErrNoRows {
		return documentRow{}, false, nil
	}
	if err != nil {
		return documentRow{}, false, &StorageError{Op: "query", Err: err}
	}
	return row, true, nil
}

func (s *sqliteStorage) LoadAll(ctx context.Context, collection string) ([]documentRow, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, data, created_at, updated_at FROM documents WHERE collection_name = ? ORDER BY id`,
		collection)
	if err != nil {
		return nil, &StorageError{Op: "query", Err: err}
	}
	defer rows.Close()

	var out []documentRow
	for rows.Next() {
		var r documentRow
		r.Collection = collection
		if err := rows.Scan(&r.ID, &r.Data, &r.CreatedAt, &r.UpdatedAt); err != nil {
			return nil, &StorageError{Op: "query", Err: err}
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *sqliteStorage) UpdateDocument(ctx context.Context, row documentRow) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE documents SET data = ?, updated_at = ? WHERE collection_name = ? AND id = ?`,
		row.Data, row.UpdatedAt, row.Collection, row.ID)
	if err != nil {
		return false, &StorageError{Op: "update", Err: err}
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, &StorageError{Op: "update", Err: err}
	}
	return n > 0, nil
}

func (s *sqliteStorage) DeleteDocument(ctx context.Context, collection, id string) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM documents WHERE collection_name = ? AND id = ?`, collection, id)
	if err != nil {
		return false, &StorageError{Op: "delete", Err: err}
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, &StorageError{Op: "delete", Err: err}
	}
	return n > 0, nil
}

func (s *sqliteStorage) CountAll(ctx context.Context, collection string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM documents WHERE collection_name = ?`, collection,
	).Scan(&n)
	if err != nil {
		return 0, &StorageError{Op: "query", Err: err}
	}
	return n, nil
}

func (s *sqliteStorage) Stats(ctx context.Context) (StoreStats, error) {
	var stats StoreStats
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM collections`).Scan(&stats.CollectionCount); err != nil {
		return StoreStats{}, &StorageError{Op: "query", Err: err}
	}
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM documents`).Scan(&stats.DocumentCount); err != nil {
		return StoreStats{}, &StorageError{Op: "query", Err: err}
	}
	if info, err := os.Stat(s.path); err == nil {
		stats.FileSizeBytes = info.Size()
	}
	return stats, nil
}

// NewBatch opens one transaction that every subsequent Insert/Update/Delete
// call queues a statement onto; Commit executes them all and commits, so
// writes within one insertMany/updateMany/deleteMany are atomic and
// durable together (spec.md §5).
func (s *sqliteStorage) NewBatch(ctx context.Context) (batch, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, &StorageError{Op: "transaction", Err: err}
	}
	return &sqliteBatch{ctx: ctx, tx: tx, logger: s.logger}, nil
}

type sqliteOp struct {
	kind       string // "insert", "update", "delete"
	row        documentRow
	collection string
	id         string
}

type sqliteBatch struct {
	ctx    context.Context
	tx     *sql.Tx
	logger zerolog.Logger
	ops    []sqliteOp
}

func (b *sqliteBatch) Insert(row documentRow) {
	b.ops = append(b.ops, sqliteOp{kind: "insert", row: row})
}

func (b *sqliteBatch) Update(row documentRow) {
	b.ops = append(b.ops, sqliteOp{kind: "update", row: row})
}

func (b *sqliteBatch) Delete(collection, id string) {
	b.ops = append(b.ops, sqliteOp{kind: "delete", collection: collection, id: id})
}

// Commit executes every queued statement, collecting a BulkErrorCase for
// each one that fails rather than stopping at the first failure — the
// caller gets to see every bad op in the batch. Any failure at all rolls
// back the whole transaction (spec.md §5: batched writes are
// all-or-nothing).
func (b *sqliteBatch) Commit(ctx context.Context) error {
	var cases []BulkErrorCase
	for i, op := range b.ops {
		var err error
		var id string
		switch op.kind {
		case "insert":
			id = op.row.ID
			_, err = b.tx.ExecContext(ctx,
				`INSERT INTO documents(id, collection_name, data, created_at, updated_at) VALUES (?, ?, ?, ?, ?)`,
				op.row.ID, op.row.Collection, op.row.Data, op.row.CreatedAt, op.row.UpdatedAt)
		case "update":
			id = op.row.ID
			_, err = b.tx.ExecContext(ctx,
				`UPDATE documents SET data = ?, updated_at = ? WHERE collection_name = ? AND id = ?`,
				op.row.Data, op.row.UpdatedAt, op.row.Collection, op.row.ID)
		case "delete":
			id = op.id
			_, err = b.tx.ExecContext(ctx,
				`DELETE FROM documents WHERE collection_name = ? AND id = ?`, op.collection, op.id)
		}
		if err != nil {
			cases = append(cases, BulkErrorCase{Index: i, ID: id, Err: err})
		}
	}
	if len(cases) > 0 {
		b.tx.Rollback()
		return &BulkError{Cases: cases}
	}
	if err := b.tx.Commit(); err != nil {
		return &StorageError{Op: "batch", Err: err}
	}
	b.logger.Debug().Int("ops", len(b.ops)).Msg("batch committed")
	return nil
}
