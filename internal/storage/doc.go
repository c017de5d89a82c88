// Package storage is the raw-vector side store for LSH-backed
// recommenders: the LSH index answers "which ids are close?" from hash
// codes alone, and this store answers "what was id's exact feature
// vector?" so a caller can re-score or re-train from it.
//
// # Implementations
//
// MemoryStore is the only implementation today: in-memory, RWMutex-
// guarded, not persisted across restarts. A durable backend (BoltDB,
// BadgerDB) can be added later behind the same Store interface without
// touching callers.
package storage
