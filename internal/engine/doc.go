// Package engine implements the cart reconciler for one tab.
//
// An Engine owns the tab's in-memory cart and CartId cache. Mutations are
// applied optimistically: the new cart is set in memory, persisted to the
// Local Store and published on the Tab Bus before any network call. The
// remote call then confirms the change or, on failure, a compensating change
// is applied, persisted and re-published.
//
// ORDERING:
//
// Every mutation takes a sequence number from the engine Clock. Each line
// records the sequence of the last operation that touched it. Under
// RollbackLine a failed operation only undoes its own effect, and only if
// its stamp is still current; a newer operation on the same line wins and
// the stale rollback is dropped. Whole-cart replacements (peer sync, focus,
// clear) invalidate every stamp. RollbackSnapshot restores the full
// pre-operation cart unconditionally.
//
// CROSS-TAB:
//
// Peer `sync` messages replace the cart verbatim (last write wins) and are
// neither persisted nor re-published. Peer `cart_meta` messages are adopted
// only when this tab has no CartId. Messages carrying our own TabId are
// ignored.
//
// CONCURRENCY:
//
// All methods are safe for concurrent use. State changes happen under a
// single mutex; network calls happen outside it. CartId creation is the only
// coalesced request.
package engine
