// Package ydoc implements an operation-based CRDT document engine.
//
// A document is an append-only log of blocks, partitioned per client and
// addressed by (client, clock) identifiers. Clients mutate shared types
// inside transactions; each transaction emits a binary update message that
// any other replica can apply, in any order and any number of times, and
// all replicas converge to the same state.
package ydoc

// ID names one unit of content for all time.
// Client is a process-local random positive integer; Clock counts the units
// this client has produced before this one.
type ID struct {
	Client int
	Clock  int
}

// NewID returns the ID for the given client and clock.
func NewID(client, clock int) ID {
	return ID{Client: client, Clock: clock}
}

// sameID compares two optional IDs.
func sameID(a, b *ID) bool {
	return a == b || (a != nil && b != nil && *a == *b)
}
