// Package doculite is an embeddable, single-process document database.
//
// Documents are schemaless JSON-like values grouped into named collections.
// Persistence is delegated to an embedded, transactional SQL engine
// (SQLite, driven through database/sql) while the query and aggregation
// surface follows the operator-tagged idioms popularized by MongoDB:
// predicate expressions built from "$"-prefixed operators, and an ordered
// pipeline of aggregation stages.
//
// A typical caller opens a Store, asks it for a Collection by name, and
// then reads and writes documents through that handle:
//
//	store, err := doculite.Open(ctx, "app.db")
//	if err != nil {
//		...
//	}
//	defer store.Close()
//
//	users := store.Collection(ctx, "users")
//	id, err := users.Insert(ctx, doculite.M{"name": "Alice", "age": 25})
package doculite
