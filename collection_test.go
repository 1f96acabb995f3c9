package doculite

import (
	"context"
	"path/filepath"
	"testing"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "doculite.db")
	st, err := Open(context.Background(), path)
	AssertNoError(t, err, "open store")
	t.Cleanup(func() { st.Close() })
	return st
}

func TestInsertAssignsIdAndRoundTrips(t *testing.T) {
	ctx := context.Background()
	st := openTestStore(t)
	users := st.Collection(ctx, "users")

	id, err := users.Insert(ctx, M{"name": "ada"})
	AssertNoError(t, err, "insert")
	AssertTrue(t, id.Valid(), "assigned id is well-formed")

	doc, found, err := users.FindById(ctx, id)
	AssertNoError(t, err, "findById")
	AssertTrue(t, found, "document exists")
	AssertEqual(t, doc["name"], "ada", "round-tripped field")
	AssertEqual(t, doc["_id"], string(id), "round-tripped _id")
}

func TestInsertPreservesCallerSuppliedId(t *testing.T) {
	ctx := context.Background()
	st := openTestStore(t)
	users := st.Collection(ctx, "users")

	want := NewObjectId()
	id, err := users.Insert(ctx, M{"_id": string(want), "name": "grace"})
	AssertNoError(t, err, "insert")
	AssertEqual(t, id, want, "caller-supplied id kept")
}

func TestFindByIdMissingReturnsFalse(t *testing.T) {
	ctx := context.Background()
	st := openTestStore(t)
	users := st.Collection(ctx, "users")

	_, found, err := users.FindById(ctx, NewObjectId())
	AssertNoError(t, err, "findById")
	AssertFalse(t, found, "no such document")
}

func TestCountMatchesFindLength(t *testing.T) {
	ctx := context.Background()
	st := openTestStore(t)
	users := st.Collection(ctx, "users")

	_, _ = users.Insert(ctx, M{"role": "admin"})
	_, _ = users.Insert(ctx, M{"role": "admin"})
	_, _ = users.Insert(ctx, M{"role": "guest"})

	docs, err := users.Find(ctx, M{"role": "admin"})
	AssertNoError(t, err, "find")
	n, err := users.Count(ctx, M{"role": "admin"})
	AssertNoError(t, err, "count")
	AssertEqual(t, n, len(docs), "count equals find length")
	AssertEqual(t, n, 2, "two admins")
}

func TestCountWithNoQueryCountsEverything(t *testing.T) {
	ctx := context.Background()
	st := openTestStore(t)
	users := st.Collection(ctx, "users")

	_, _ = users.Insert(ctx, M{"n": 1.0})
	_, _ = users.Insert(ctx, M{"n": 2.0})

	n, err := users.Count(ctx, nil)
	AssertNoError(t, err, "count")
	AssertEqual(t, n, 2, "total count")
}

func TestUpdateByIdMergesAndPreservesId(t *testing.T) {
	ctx := context.Background()
	st := openTestStore(t)
	users := st.Collection(ctx, "users")

	id, _ := users.Insert(ctx, M{"name": "ada", "age": 30.0})
	ok, err := users.UpdateById(ctx, id, M{"age": 31.0, "_id": "ignored-should-not-stick"})
	AssertNoError(t, err, "update")
	AssertTrue(t, ok, "document existed")

	doc, found, err := users.FindById(ctx, id)
	AssertNoError(t, err, "findById")
	AssertTrue(t, found, "still exists")
	AssertEqual(t, doc["name"], "ada", "untouched field survives shallow merge")
	AssertEqual(t, doc["age"], 31.0, "patched field applied")
	AssertEqual(t, doc["_id"], string(id), "_id forcibly preserved")
}

func TestUpdateByIdMissingReturnsFalse(t *testing.T) {
	ctx := context.Background()
	st := openTestStore(t)
	users := st.Collection(ctx, "users")

	ok, err := users.UpdateById(ctx, NewObjectId(), M{"a": 1.0})
	AssertNoError(t, err, "update")
	AssertFalse(t, ok, "no such document")
}

func TestUpdateManyPreservesIdsAndCounts(t *testing.T) {
	ctx := context.Background()
	st := openTestStore(t)
	users := st.Collection(ctx, "users")

	id1, _ := users.Insert(ctx, M{"status": "pending"})
	id2, _ := users.Insert(ctx, M{"status": "pending"})
	_, _ = users.Insert(ctx, M{"status": "done"})

	info, err := users.UpdateMany(ctx, M{"status": "pending"}, M{"status": "done"})
	AssertNoError(t, err, "updateMany")
	AssertEqual(t, info.Matched, 2, "two documents matched")
	AssertEqual(t, info.Modified, 2, "two documents modified")

	d1, _, _ := users.FindById(ctx, id1)
	d2, _, _ := users.FindById(ctx, id2)
	AssertEqual(t, d1["_id"], string(id1), "id1 unchanged")
	AssertEqual(t, d2["_id"], string(id2), "id2 unchanged")
	AssertEqual(t, d1["status"], "done", "id1 patched")
}

func TestDeleteByIdAndDeleteMany(t *testing.T) {
	ctx := context.Background()
	st := openTestStore(t)
	users := st.Collection(ctx, "users")

	id, _ := users.Insert(ctx, M{"keep": false})
	_, _ = users.Insert(ctx, M{"keep": false})
	_, _ = users.Insert(ctx, M{"keep": true})

	ok, err := users.DeleteById(ctx, id)
	AssertNoError(t, err, "deleteById")
	AssertTrue(t, ok, "existed")

	info, err := users.DeleteMany(ctx, M{"keep": false})
	AssertNoError(t, err, "deleteMany")
	AssertEqual(t, info.Removed, 1, "one remaining keep:false document deleted")

	remaining, err := users.Find(ctx, nil)
	AssertNoError(t, err, "find")
	AssertEqual(t, len(remaining), 1, "only the keep:true document survives")
}

func TestInsertManyIsAtomicAndOrdered(t *testing.T) {
	ctx := context.Background()
	st := openTestStore(t)
	users := st.Collection(ctx, "users")

	ids, err := users.InsertMany(ctx, []M{
		{"n": 1.0}, {"n": 2.0}, {"n": 3.0},
	})
	AssertNoError(t, err, "insertMany")
	AssertEqual(t, len(ids), 3, "one id per document")

	n, err := users.Count(ctx, nil)
	AssertNoError(t, err, "count")
	AssertEqual(t, n, 3, "all three inserted")

	for i, id := range ids {
		doc, found, err := users.FindById(ctx, id)
		AssertNoError(t, err, "findById")
		AssertTrue(t, found, "inserted document exists")
		AssertEqual(t, doc["n"], float64(i+1), "ids returned in input order")
	}
}

func TestAggregateRunsPipelineOverCollection(t *testing.T) {
	ctx := context.Background()
	st := openTestStore(t)
	sales := st.Collection(ctx, "sales")

	_, _ = sales.InsertMany(ctx, []M{
		{"region": "east", "amount": 10.0},
		{"region": "east", "amount": 5.0},
		{"region": "west", "amount": 7.0},
	})

	out, err := sales.Aggregate(ctx, []M{
		{"$group": M{"_id": "$region", "total": M{"$sum": "$amount"}}},
		{"$sort": M{"_id": 1.0}},
	})
	AssertNoError(t, err, "aggregate")
	AssertEqual(t, len(out), 2, "two regions")
	AssertEqual(t, out[0]["_id"], "east", "east sorts first")
	AssertEqual(t, out[0]["total"], 15.0, "east total")
	AssertEqual(t, out[1]["total"], 7.0, "west total")
}

func TestDropCollectionCascadesDocuments(t *testing.T) {
	ctx := context.Background()
	st := openTestStore(t)
	users := st.Collection(ctx, "users")
	_, _ = users.Insert(ctx, M{"n": 1.0})

	ok := st.DropCollection(ctx, "users")
	AssertTrue(t, ok, "collection existed")

	names, err := st.ListCollections(ctx)
	AssertNoError(t, err, "listCollections")
	for _, n := range names {
		AssertFalse(t, n == "users", "dropped collection should not be listed")
	}

	stats, err := st.Stats(ctx)
	AssertNoError(t, err, "stats")
	AssertEqual(t, stats.DocumentCount, 0, "dropped collection's documents cascade away")
}

func TestStaleCollectionHandleReturnsErrCollectionNotFound(t *testing.T) {
	ctx := context.Background()
	st := openTestStore(t)
	users := st.Collection(ctx, "users")

	st.DropCollection(ctx, "users")

	_, err := users.Insert(ctx, M{"n": 1.0})
	if err != ErrCollectionNotFound {
		t.Fatalf("Insert on a dropped collection: got %v, want ErrCollectionNotFound", err)
	}

	_, err = users.Find(ctx, nil)
	if err != ErrCollectionNotFound {
		t.Fatalf("Find on a dropped collection: got %v, want ErrCollectionNotFound", err)
	}
}

func TestFindOneReturnsErrNotFoundWhenNoMatch(t *testing.T) {
	ctx := context.Background()
	st := openTestStore(t)
	users := st.Collection(ctx, "users")
	_, _ = users.Insert(ctx, M{"name": "ada"})

	_, err := users.FindOne(ctx, M{"name": "grace"})
	if err != ErrNotFound {
		t.Fatalf("got %v, want ErrNotFound", err)
	}

	doc, err := users.FindOne(ctx, M{"name": "ada"})
	AssertNoError(t, err, "findOne with a match")
	AssertEqual(t, doc["name"], "ada", "returned the matching document")
}

func TestInsertManyBulkErrorReportsEveryFailure(t *testing.T) {
	ctx := context.Background()
	st := openTestStore(t)
	users := st.Collection(ctx, "users")

	dup := NewObjectId()
	_, err := users.Insert(ctx, M{"_id": string(dup), "name": "first"})
	AssertNoError(t, err, "seed insert")

	// Both documents collide with the already-inserted id, so both
	// statements fail and the whole batch rolls back.
	_, err = users.InsertMany(ctx, []M{
		{"_id": string(dup), "name": "dup-a"},
		{"_id": string(dup), "name": "dup-b"},
	})
	AssertError(t, err, "insertMany with colliding ids")

	bulkErr, ok := err.(*BulkError)
	if !ok {
		t.Fatalf("got %T, want *BulkError", err)
	}
	AssertEqual(t, len(bulkErr.Cases), 2, "both colliding inserts reported")

	n, countErr := users.Count(ctx, nil)
	AssertNoError(t, countErr, "count")
	AssertEqual(t, n, 1, "failed batch left only the original seed document")
}
