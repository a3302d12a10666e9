package queue

import (
	"context"
	"iter"
)

// Queue is a multi-reader broadcast queue. Every listener joined before a
// Push sees that event; events nobody listens for are dropped immediately.
type Queue[X any] interface {
	// Push adds events to the queue, waking all waiting listeners.
	// Returns true if any listener woke up.
	Push(all ...X) bool

	// Join returns a listener receiving all events pushed after this call.
	// When the context is cancelled the listener becomes invalid and
	// returns zero values.
	Join(ctx context.Context) Listener[X]
}

// Listener consumes events from a Queue.
type Listener[X any] interface {
	// Next waits for and returns the next event.
	// It returns the zero X and false once the listener is invalid.
	Next() (X, bool)

	// Batch waits for and returns all currently available events.
	// A zero-length result means the listener is invalid.
	Batch() []X

	// Iter yields events until the listener becomes invalid.
	Iter() iter.Seq[X]
}
