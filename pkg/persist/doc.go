// Package persist saves and restores registry state.
//
// A snapshot is the registry state tree (store id to plain state) wrapped
// in a versioned JSON envelope:
//
//	{"version":1,"saved_at":"2026-01-02T15:04:05Z","stores":{"counter":{"count":3}}}
//
// SnapshotStore backends hold encoded snapshots under a key:
//
//   - MemoryStore: in-process map, for tests and single runs
//   - FileStore: one file per key, written with an atomic rename
//   - RedisStore: any client satisfying RedisClient (go-redis adapters)
//   - SQLStore: database/sql with PostgreSQL, MySQL or SQLite syntax
//   - S3Store: an S3 bucket through aws-sdk-go-v2
//   - KVStore: a NATS JetStream key-value bucket
//
// Persister ties a backend to a registry. Installed as a store plugin it
// writes the state tree after mutations, at most as often as its rate
// limit allows, and Restore hydrates a registry from the last snapshot.
package persist
