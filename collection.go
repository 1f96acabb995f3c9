package doculite

import (
	"context"
	"encoding/json"
	"time"
)

// Collection is a named bag of schemaless documents (spec.md §4.5). It
// holds no state of its own beyond its name; every operation goes through
// the Store's shared storage adapter, so a Collection is cheap to create
// and safe to discard.
type Collection struct {
	store *Store
	name  string
}

// Name returns the collection's name.
func (c *Collection) Name() string { return c.name }

// checkExists returns ErrCollectionNotFound if this handle's collection
// row is gone — the case of a Collection obtained before a concurrent
// DropCollection removed it out from under the caller. Store.Collection
// always creates the row up front, so this only ever fires for a stale
// handle, not a fresh one.
func (c *Collection) checkExists(ctx context.Context) error {
	ok, err := c.store.storage.CollectionExists(ctx, c.name)
	if err != nil {
		return err
	}
	if !ok {
		return ErrCollectionNotFound
	}
	return nil
}

// Insert assigns _id if the caller omitted it, writes one row, and
// returns the id. One INSERT (spec.md §4.5).
func (c *Collection) Insert(ctx context.Context, doc M) (ObjectId, error) {
	if err := c.checkExists(ctx); err != nil {
		return "", err
	}
	id := prepareDoc(doc)
	row, err := c.encodeRow(id, doc, time.Now())
	if err != nil {
		return "", err
	}
	if err := c.store.storage.InsertDocument(ctx, row); err != nil {
		return "", err
	}
	return id, nil
}

// InsertMany applies the same _id policy as Insert to every document and
// writes them all inside a single transaction with batched statements;
// returns ids in input order (spec.md §4.5).
func (c *Collection) InsertMany(ctx context.Context, docs []M) ([]ObjectId, error) {
	if len(docs) == 0 {
		return nil, nil
	}
	if err := c.checkExists(ctx); err != nil {
		return nil, err
	}

	b, err := c.store.storage.NewBatch(ctx)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	ids := make([]ObjectId, len(docs))
	for i, doc := range docs {
		id := prepareDoc(doc)
		row, err := c.encodeRow(id, doc, now)
		if err != nil {
			return nil, err
		}
		b.Insert(row)
		ids[i] = id
	}

	if err := b.Commit(ctx); err != nil {
		return nil, err
	}
	return ids, nil
}

// Find loads every row for the collection, decodes each, and keeps those
// the Matcher accepts. Order is the adapter's natural row order
// (approximately time-ordered primary-key order on id). Pass nil or an
// empty query to match every document.
func (c *Collection) Find(ctx context.Context, query M) ([]M, error) {
	if err := c.checkExists(ctx); err != nil {
		return nil, err
	}
	rows, err := c.store.storage.LoadAll(ctx, c.name)
	if err != nil {
		return nil, err
	}

	out := make([]M, 0, len(rows))
	for _, row := range rows {
		doc, err := decodeDocument(row)
		if err != nil {
			continue
		}
		if query == nil || Matches(doc, query) {
			out = append(out, doc)
		}
	}
	return out, nil
}

// FindOne returns the first document matching query, or ErrNotFound if
// none does. A thin convenience wrapper around Find for call sites that
// want a single result with Go's ordinary error-handling shape rather than
// the (doc, found, error) triple FindById uses.
func (c *Collection) FindOne(ctx context.Context, query M) (M, error) {
	docs, err := c.Find(ctx, query)
	if err != nil {
		return nil, err
	}
	if len(docs) == 0 {
		return nil, ErrNotFound
	}
	return docs[0], nil
}

// FindById is a direct primary-key lookup scoped to this collection.
func (c *Collection) FindById(ctx context.Context, id ObjectId) (M, bool, error) {
	if err := c.checkExists(ctx); err != nil {
		return nil, false, err
	}
	row, found, err := c.store.storage.FindByID(ctx, c.name, string(id))
	if err != nil {
		return nil, false, err
	}
	if !found {
		return nil, false, nil
	}
	doc, err := decodeDocument(row)
	if err != nil {
		return nil, false, err
	}
	return doc, true, nil
}

// UpdateById loads the document, shallow-merges patch's top-level keys
// into it (overwriting), forcibly restores _id, and rewrites the row with
// a new updated_at. Returns false if the document doesn't exist.
func (c *Collection) UpdateById(ctx context.Context, id ObjectId, patch M) (bool, error) {
	if err := c.checkExists(ctx); err != nil {
		return false, err
	}
	row, found, err := c.store.storage.FindByID(ctx, c.name, string(id))
	if err != nil {
		return false, err
	}
	if !found {
		return false, nil
	}

	doc, err := decodeDocument(row)
	if err != nil {
		return false, err
	}
	mergeInto(doc, patch, id)

	newRow, err := c.encodeRowPreserving(row, doc)
	if err != nil {
		return false, err
	}
	return c.store.storage.UpdateDocument(ctx, newRow)
}

// ChangeInfo reports the outcome of a batched write, mirroring the shape
// of mgo's own ChangeInfo (Matched/Updated/Removed) returned from
// UpdateAll/RemoveAll.
type ChangeInfo struct {
	Matched  int // documents the query matched
	Modified int // documents actually rewritten (UpdateMany only)
	Removed  int // documents removed (DeleteMany only)
}

// UpdateMany runs the Matcher over the collection and applies the same
// shallow-merge/rewrite to each matching document inside one batched
// transaction.
func (c *Collection) UpdateMany(ctx context.Context, query M, patch M) (ChangeInfo, error) {
	if err := c.checkExists(ctx); err != nil {
		return ChangeInfo{}, err
	}
	rows, err := c.store.storage.LoadAll(ctx, c.name)
	if err != nil {
		return ChangeInfo{}, err
	}

	var toUpdate []documentRow
	for _, row := range rows {
		doc, err := decodeDocument(row)
		if err != nil {
			continue
		}
		if query != nil && !Matches(doc, query) {
			continue
		}
		id := ObjectId(row.ID)
		mergeInto(doc, patch, id)
		newRow, err := c.encodeRowPreserving(row, doc)
		if err != nil {
			return ChangeInfo{}, err
		}
		toUpdate = append(toUpdate, newRow)
	}
	if len(toUpdate) == 0 {
		return ChangeInfo{}, nil
	}

	b, err := c.store.storage.NewBatch(ctx)
	if err != nil {
		return ChangeInfo{}, err
	}
	for _, row := range toUpdate {
		b.Update(row)
	}
	if err := b.Commit(ctx); err != nil {
		return ChangeInfo{}, err
	}
	return ChangeInfo{Matched: len(toUpdate), Modified: len(toUpdate)}, nil
}

// DeleteById deletes by primary key, returning whether a row went away.
func (c *Collection) DeleteById(ctx context.Context, id ObjectId) (bool, error) {
	if err := c.checkExists(ctx); err != nil {
		return false, err
	}
	return c.store.storage.DeleteDocument(ctx, c.name, string(id))
}

// DeleteMany selects matches via the Matcher, then deletes each by id in
// one batched transaction.
func (c *Collection) DeleteMany(ctx context.Context, query M) (ChangeInfo, error) {
	if err := c.checkExists(ctx); err != nil {
		return ChangeInfo{}, err
	}
	rows, err := c.store.storage.LoadAll(ctx, c.name)
	if err != nil {
		return ChangeInfo{}, err
	}

	var ids []string
	for _, row := range rows {
		doc, err := decodeDocument(row)
		if err != nil {
			continue
		}
		if query == nil || Matches(doc, query) {
			ids = append(ids, row.ID)
		}
	}
	if len(ids) == 0 {
		return ChangeInfo{}, nil
	}

	b, err := c.store.storage.NewBatch(ctx)
	if err != nil {
		return ChangeInfo{}, err
	}
	for _, id := range ids {
		b.Delete(c.name, id)
	}
	if err := b.Commit(ctx); err != nil {
		return ChangeInfo{}, err
	}
	return ChangeInfo{Removed: len(ids)}, nil
}

// Count returns the number of documents matching query. With a nil/empty
// query a SELECT COUNT(*) suffices; otherwise it is equivalent to
// len(Find(query)).
func (c *Collection) Count(ctx context.Context, query M) (int, error) {
	if err := c.checkExists(ctx); err != nil {
		return 0, err
	}
	if len(query) == 0 {
		return c.store.storage.CountAll(ctx, c.name)
	}
	docs, err := c.Find(ctx, query)
	if err != nil {
		return 0, err
	}
	return len(docs), nil
}

// Aggregate loads the full collection and runs it through the aggregation
// pipeline (spec.md §4.4, §4.5).
func (c *Collection) Aggregate(ctx context.Context, stages []M) ([]M, error) {
	docs, err := c.Find(ctx, nil)
	if err != nil {
		return nil, err
	}
	return runPipeline(ctx, c.store, docs, stages)
}

// prepareDoc assigns an _id to doc if absent and returns it.
func prepareDoc(doc M) ObjectId {
	if raw, ok := doc["_id"]; ok {
		if s, ok := raw.(string); ok && s != "" {
			return ObjectId(s)
		}
		if oid, ok := raw.(ObjectId); ok && oid != "" {
			doc["_id"] = string(oid)
			return oid
		}
	}
	id := NewObjectId()
	doc["_id"] = string(id)
	return id
}

// mergeInto applies patch's top-level keys onto doc (overwriting) and
// forcibly restores _id, per spec.md §3's update semantics.
func mergeInto(doc M, patch M, id ObjectId) {
	for k, v := range patch {
		if k == "_id" {
			continue
		}
		doc[k] = v
	}
	doc["_id"] = string(id)
}

func (c *Collection) encodeRow(id ObjectId, doc M, now time.Time) (documentRow, error) {
	data, err := json.Marshal(doc)
	if err != nil {
		return documentRow{}, err
	}
	ms := now.UnixMilli()
	return documentRow{
		ID:         string(id),
		Collection: c.name,
		Data:       string(data),
		CreatedAt:  ms,
		UpdatedAt:  ms,
	}, nil
}

// encodeRowPreserving re-serializes doc into orig's row, keeping
// created_at untouched (invariant I3) and bumping updated_at to now.
func (c *Collection) encodeRowPreserving(orig documentRow, doc M) (documentRow, error) {
	data, err := json.Marshal(doc)
	if err != nil {
		return documentRow{}, err
	}
	return documentRow{
		ID:         orig.ID,
		Collection: c.name,
		Data:       string(data),
		CreatedAt:  orig.CreatedAt,
		UpdatedAt:  time.Now().UnixMilli(),
	}, nil
}
