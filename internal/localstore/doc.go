// Package localstore is the durable key/value store behind the buddy inbox.
//
// # Overview
//
// Values are JSON documents stored under fixed keys (see Key*). A Repository
// persists raw bytes; SQLiteRepository keeps them in a SQLite file that
// several processes may share, MemoryRepository keeps them in memory.
// Store layers typed JSON access on top: reads fall back to the caller's
// default when a key is absent or does not parse, writes go straight through
// to the repository.
//
// # Change notifications
//
// Every write bumps a per-key revision. Store.Watch polls the revisions and
// tells subscribers which keys another writer changed, the way browser
// storage events reach other tabs. A store's own writes are not reported
// back to it.
package localstore
