// Package cart defines the cart data model shared by the store, the tab bus
// and the engine.
//
// A Cart is an ordered list of Items. Insertion order is display order and no
// two lines share an identity Key. Every operation in this package is pure:
// it returns a new Cart and never mutates its input, so snapshots taken for
// rollback stay valid after later mutations.
package cart
