package ydoc

import (
	"sort"

	"github.com/samthor/ycrdt/wire"
)

// ApplyUpdate decodes a binary update message and integrates it.
//
// Updates are commutative and idempotent: they may arrive in any order and
// any number of times. Structs whose causal dependencies are still missing
// are parked and resumed when the missing content arrives. The origin tag
// is forwarded to observers of the resulting transaction.
//
// A malformed update is rejected before any mutation.
func (d *Doc) ApplyUpdate(update []byte, origin any) error {
	dec := wire.NewDecoder(update)

	refs, err := readClientRefs(dec, d)
	if err != nil {
		return err
	}
	ds, err := readDeleteSet(dec)
	if err != nil {
		return err
	}

	d.TransactWith(origin, func(tx *Transaction) {
		store := d.store
		mergeRefs(store, refs)
		integrateStructs(tx, store)

		// retry parked deletes along with the new ones; what still points
		// past our state parks again
		parked := store.pendingDs
		store.pendingDs = newDeleteSet()
		parked.merge(ds)
		store.pendingDs = applyDeleteSet(tx, parked)
	})
	return nil
}

// mergeRefs folds freshly decoded blocks into the parked set, keeping each
// client's list sorted by clock.
func mergeRefs(store *structStore, refs map[int][]block) {
	for client, list := range refs {
		if rr := store.pendingRefs[client]; rr != nil {
			list = append(list, rr.refs[rr.i:]...)
		}
		sort.Slice(list, func(a, b int) bool {
			return list[a].getID().Clock < list[b].getID().Clock
		})
		store.pendingRefs[client] = &refRange{refs: list}
	}
}

// integrateStructs drains the parked blocks as far as causality allows.
// Because integrating one client's blocks can unpark another's, passes
// repeat until a pass makes no progress.
func integrateStructs(tx *Transaction, store *structStore) {
	for len(store.pendingRefs) != 0 {
		if !integratePass(tx, store) {
			return
		}
	}
}

// integratePass consumes pending blocks in clock order per client,
// switching to a dependency's client when a block cannot be placed yet.
// Blocks whose dependencies are absent from the store and from the pending
// set are parked for a later update.
func integratePass(tx *Transaction, store *structStore) (progress bool) {
	pending := store.pendingRefs
	store.pendingRefs = map[int]*refRange{}

	rest := map[int][]block{}
	var stack []block

	clients := sortedClients(pending)
	ci := 0
	next := func() block {
		for ci < len(clients) {
			rr := pending[clients[ci]]
			if rr.i < len(rr.refs) {
				b := rr.refs[rr.i]
				rr.i++
				return b
			}
			ci++
		}
		return nil
	}

	// park everything on the stack, plus all unconsumed blocks of the
	// stacked clients: the rest of the update cannot help them
	park := func() {
		for _, b := range stack {
			client := b.getID().Client
			rest[client] = append(rest[client], b)
			if rr := pending[client]; rr != nil {
				rest[client] = append(rest[client], rr.refs[rr.i:]...)
				rr.i = len(rr.refs)
			}
		}
		stack = nil
	}

	head := next()
	for head != nil {
		local := store.getState(head.getID().Client)
		offset := local - head.getID().Clock

		if offset < 0 {
			// an earlier run from this client is missing entirely
			stack = append(stack, head)
			park()
		} else {
			missing, resolved := blockDeps(head, tx, store)
			if !resolved {
				stack = append(stack, head)
				rr := pending[missing]
				if rr == nil || rr.i >= len(rr.refs) {
					// the dependency is not part of this update either
					park()
				} else {
					head = rr.refs[rr.i]
					rr.i++
					continue
				}
			} else if offset == 0 || offset < head.getLen() {
				head.integrate(tx, offset)
				progress = true
			}
			// otherwise: a duplicate of fully known content, drop it
		}

		if len(stack) != 0 {
			head = stack[len(stack)-1]
			stack = stack[:len(stack)-1]
		} else {
			head = next()
		}
	}

	for client, list := range rest {
		sort.Slice(list, func(a, b int) bool {
			return list[a].getID().Clock < list[b].getID().Clock
		})
		store.pendingRefs[client] = &refRange{refs: list}
	}
	return progress
}

func blockDeps(b block, tx *Transaction, store *structStore) (missing int, ok bool) {
	it, isItem := b.(*item)
	if !isItem {
		return 0, true
	}
	return it.resolveDeps(tx, store)
}
