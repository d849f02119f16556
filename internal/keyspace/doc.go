// Package keyspace implements the shared key-value store: a chained hash
// table of entries keyed by byte-exact comparison with cached hashes, and
// the sorted-set value shape.
//
// The keyspace has a single owner (the event loop); nothing here locks.
package keyspace
