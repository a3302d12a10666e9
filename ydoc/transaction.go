package ydoc

import (
	"github.com/samthor/ycrdt/wire"
)

// Transaction batches mutations on a document. All changes inside a
// transaction are observed together: observers fire only after the
// transaction closes, and the whole batch becomes one update message.
type Transaction struct {
	doc *Doc

	// Origin is the caller-supplied tag, forwarded to observers untouched.
	Origin any

	beforeState map[int]int
	afterState  map[int]int

	ds      *deleteSet
	changed map[*Branch]*changeSet

	// changedParentTypes collects events bubbling toward each ancestor, for
	// deep observers.
	changedParentTypes map[*Branch][]*Event

	// mergeBlocks records split products whose neighborhood is rechecked
	// for merging at cleanup.
	mergeBlocks []ID
}

// changeSet describes what changed on a single shared type.
type changeSet struct {
	list bool
	keys map[string]struct{}
}

func (cs *changeSet) add(sub string) {
	if sub == "" {
		cs.list = true
		return
	}
	if cs.keys == nil {
		cs.keys = map[string]struct{}{}
	}
	cs.keys[sub] = struct{}{}
}

// addChangedType records a change on a type, but only for types that
// already existed before the transaction (newly created types have no
// observers worth telling).
func addChangedType(tx *Transaction, b *Branch, sub string) {
	it := b.item
	if it == nil || (it.id.Clock < tx.beforeState[it.id.Client] && !it.del) {
		cs := tx.changed[b]
		if cs == nil {
			cs = &changeSet{}
			tx.changed[b] = cs
		}
		cs.add(sub)
	}
}

// Transact runs fn inside a transaction with a nil origin.
func (d *Doc) Transact(fn func(tx *Transaction)) {
	d.TransactWith(nil, fn)
}

// TransactWith runs fn inside a transaction tagged with origin.
//
// If a transaction is already open, fn joins it. A transaction opened from
// inside an observer callback is queued and processed after the current
// cleanup, never recursively.
func (d *Doc) TransactWith(origin any, fn func(tx *Transaction)) {
	if d.transaction != nil {
		fn(d.transaction)
		return
	}

	tx := &Transaction{
		doc:                d,
		Origin:             origin,
		beforeState:        d.store.stateVector(),
		ds:                 newDeleteSet(),
		changed:            map[*Branch]*changeSet{},
		changedParentTypes: map[*Branch][]*Event{},
	}
	d.transaction = tx
	d.cleanups = append(d.cleanups, tx)
	d.beforeTransaction.call(func(fn func(*Transaction)) { fn(tx) })

	defer func() {
		// only the outermost frame processes the cleanup queue
		if len(d.cleanups) > 0 && d.cleanups[0] == tx {
			cleanupTransactions(d)
		}
	}()
	fn(tx)
}

func cleanupTransactions(d *Doc) {
	for i := 0; i < len(d.cleanups); i++ {
		cleanupTransaction(d, d.cleanups[i])
	}
	d.cleanups = nil
}

func cleanupTransaction(d *Doc, tx *Transaction) {
	store := d.store

	tx.ds.sortAndMerge()
	tx.afterState = store.stateVector()
	d.transaction = nil

	d.beforeObserverCalls.call(func(fn func(*Transaction)) { fn(tx) })

	// shallow observers; events bubble into changedParentTypes as they fire
	for b, cs := range tx.changed {
		if b.item == nil || !b.item.del {
			b.callObservers(tx, cs)
		}
	}

	// deep observers, skipping events whose target has since been deleted
	for b, events := range tx.changedParentTypes {
		if b.deepObservers.empty() {
			continue
		}
		if b.item != nil && b.item.del {
			continue
		}

		keep := events[:0:0]
		for _, ev := range events {
			t := ev.Target
			if t.item == nil || !t.item.del {
				keep = append(keep, ev)
			}
		}
		if len(keep) != 0 {
			b.deepObservers.call(func(fn func([]*Event)) { fn(keep) })
		}
	}

	d.afterTransaction.call(func(fn func(*Transaction)) { fn(tx) })

	if d.gc {
		tryGcDeleteSet(tx.ds, store)
	}
	tryMergeDeleteSet(tx.ds, store)

	// merge every struct the transaction added, right to left
	for client, after := range tx.afterState {
		before := tx.beforeState[client]
		if before == after {
			continue
		}
		blocks := store.clients[client]
		first := max(findIndex(blocks, before), 1)
		for i := len(store.clients[client]) - 1; i >= first; i-- {
			store.tryMergeWithLeft(client, i)
		}
	}

	// recheck the neighborhood of every split this transaction performed
	for _, id := range tx.mergeBlocks {
		blocks := store.clients[id.Client]
		pos := findIndex(blocks, id.Clock)
		store.tryMergeWithLeft(id.Client, pos+1)
		store.tryMergeWithLeft(id.Client, pos)
	}

	d.afterTransactionCleanup.call(func(fn func(*Transaction)) { fn(tx) })

	if !d.update.empty() {
		var e wire.Encoder
		if writeUpdateFromTransaction(&e, tx) {
			data := e.Data()
			d.update.call(func(fn func([]byte, *Transaction)) { fn(data, tx) })
		}
	}
}

// tryGcDeleteSet collapses deleted items covered by the delete set toward
// tombstones and GC placeholders, right to left.
func tryGcDeleteSet(ds *deleteSet, store *structStore) {
	for _, client := range sortedClients(ds.clients) {
		ranges := ds.clients[client]
		blocks := store.clients[client]

		for di := len(ranges) - 1; di >= 0; di-- {
			r := ranges[di]
			end := r.clock + r.n

			for si := findIndex(blocks, r.clock); si < len(blocks) && blocks[si].getID().Clock < end; si++ {
				if it, ok := blocks[si].(*item); ok && it.del {
					it.gc(store, false)
				}
			}
		}
	}
}

// tryMergeDeleteSet merges adjacent tombstones inside each deleted range,
// right to left.
func tryMergeDeleteSet(ds *deleteSet, store *structStore) {
	for client, ranges := range ds.clients {
		for di := len(ranges) - 1; di >= 0; di-- {
			r := ranges[di]
			blocks := store.clients[client]

			rightmost := min(len(blocks)-1, 1+findIndex(blocks, r.clock+r.n-1))
			for si := rightmost; si > 0 && blocks[si].getID().Clock >= r.clock; si-- {
				store.tryMergeWithLeft(client, si)
				blocks = store.clients[client]
				if si >= len(blocks) {
					si = len(blocks) - 1
				}
			}
		}
	}
}
