// Package store provides the SQLite-backed Local Store shared by every tab of
// a browser profile.
//
// The store is a small key-value table of named slots. Two slots matter to
// the cart engine:
//   - "cart":   JSON array of cart items, rewritten on every mutation
//   - "cartId": opaque remote cart id, written once per profile
//
// # Sharing
//
// Several processes may open the same database file. Writes are
// last-write-wins at slot granularity; there is no locking beyond what SQLite
// does for a single statement. Tabs learn about each other's writes through
// the tab bus, not through the store.
//
// # Database Configuration
//
//   - WAL mode: readers in other tabs never block the writer
//   - synchronous=NORMAL: a lost write after power loss is acceptable here
//   - busy_timeout=5000: wait for sibling tabs holding the write lock
//
// Decoding is lenient toward bad data: Cart reports ErrNotFound or a
// *DecodeError and callers decide how to degrade. The engine treats both as an
// empty cart.
package store
