package ydoc

import (
	"slices"
	"sort"

	"github.com/samthor/ycrdt/wire"
)

// deleteRange is a half-open tombstoned clock interval [clock, clock+n).
type deleteRange struct {
	clock int
	n     int
}

// deleteSet records tombstoned ranges per client. It is built unsorted
// during a transaction and normalized by sortAndMerge before anything
// searches or encodes it.
type deleteSet struct {
	clients map[int][]deleteRange
}

func newDeleteSet() *deleteSet {
	return &deleteSet{clients: map[int][]deleteRange{}}
}

func (ds *deleteSet) empty() bool {
	return len(ds.clients) == 0
}

// add pushes an unsorted range.
func (ds *deleteSet) add(client, clock, n int) {
	ds.clients[client] = append(ds.clients[client], deleteRange{clock: clock, n: n})
}

// sortAndMerge sorts each client's ranges by clock and coalesces adjacent
// and overlapping ones. Afterwards ranges are strictly increasing with no
// adjacency.
func (ds *deleteSet) sortAndMerge() {
	for client, ranges := range ds.clients {
		sort.Slice(ranges, func(a, b int) bool { return ranges[a].clock < ranges[b].clock })

		// merge into the left side, from index 1
		i := 1
		for j := 1; j < len(ranges); j++ {
			left := &ranges[i-1]
			right := ranges[j]
			if right.clock <= left.clock+left.n {
				left.n = max(left.n, right.clock+right.n-left.clock)
			} else {
				if i < j {
					ranges[i] = right
				}
				i++
			}
		}
		ds.clients[client] = ranges[:i]
	}
}

// findRangeIndex binary searches sorted ranges for one containing clock.
func findRangeIndex(ranges []deleteRange, clock int) (int, bool) {
	lo, hi := 0, len(ranges)-1
	for lo <= hi {
		mid := (lo + hi) / 2
		r := ranges[mid]
		if r.clock <= clock {
			if clock < r.clock+r.n {
				return mid, true
			}
			lo = mid + 1
		} else {
			hi = mid - 1
		}
	}
	return 0, false
}

// isDeleted reports whether the unit named by id is tombstoned.
// Only valid after sortAndMerge.
func (ds *deleteSet) isDeleted(id ID) bool {
	_, ok := findRangeIndex(ds.clients[id.Client], id.Clock)
	return ok
}

// iterate walks every block covered by the delete set, splitting at range
// boundaries so callbacks see exact intervals.
func (ds *deleteSet) iterate(tx *Transaction, f func(b block)) {
	store := tx.doc.store
	for client, ranges := range ds.clients {
		for _, r := range ranges {
			if r.clock >= store.getState(client) {
				continue
			}
			end := r.clock + r.n

			index := findIndexCleanStart(tx, store, client, r.clock)
			blocks := store.clients[client]
			for index < len(blocks) && blocks[index].getID().Clock < end {
				b := blocks[index]
				if b.getID().Clock+b.getLen() > end {
					if it, ok := b.(*item); ok {
						right := splitItem(tx, it, end-it.id.Clock)
						store.clients[client] = slices.Insert(blocks, index+1, block(right))
					}
				}
				f(b)

				// splits may have reallocated
				blocks = store.clients[client]
				index++
			}
		}
	}
}

// newDeleteSetFromStructStore coalesces each client's runs of deleted
// blocks into ranges.
func newDeleteSetFromStructStore(s *structStore) *deleteSet {
	ds := newDeleteSet()
	for client, blocks := range s.clients {
		var ranges []deleteRange
		for i := 0; i < len(blocks); i++ {
			b := blocks[i]
			if !b.deleted() {
				continue
			}

			clock := b.getID().Clock
			n := b.getLen()
			for i+1 < len(blocks) && blocks[i+1].deleted() {
				i++
				n += blocks[i].getLen()
			}
			ranges = append(ranges, deleteRange{clock: clock, n: n})
		}
		if len(ranges) != 0 {
			ds.clients[client] = ranges
		}
	}
	return ds
}

// write encodes the delete set in sorted client order, so the same set of
// tombstones always encodes to the same bytes.
func (ds *deleteSet) write(e *wire.Encoder) {
	e.Int(len(ds.clients))
	for _, client := range sortedClients(ds.clients) {
		ranges := ds.clients[client]
		e.Int(client)
		e.Int(len(ranges))
		for _, r := range ranges {
			e.Int(r.clock)
			e.Int(r.n)
		}
	}
}

// readDeleteSet decodes a delete-set section without touching the store.
func readDeleteSet(dec *wire.Decoder) (*deleteSet, error) {
	ds := newDeleteSet()

	numClients := dec.Int()
	for range numClients {
		client := dec.Int()
		numRanges := dec.Int()
		for range numRanges {
			clock := dec.Int()
			n := dec.Int()
			if dec.Err() != nil {
				return nil, dec.Err()
			}
			ds.add(client, clock, n)
		}
	}
	return ds, dec.Err()
}

// applyDeleteSet tombstones every live item covered by ds, splitting at
// range boundaries. Ranges past the local state are returned for later
// resumption.
func applyDeleteSet(tx *Transaction, ds *deleteSet) *deleteSet {
	store := tx.doc.store
	unapplied := newDeleteSet()

	for client, ranges := range ds.clients {
		state := store.getState(client)

		for _, r := range ranges {
			clock := r.clock
			end := clock + r.n

			if clock >= state {
				unapplied.add(client, clock, end-clock)
				continue
			}
			if state < end {
				unapplied.add(client, state, end-state)
				end = state
			}

			blocks := store.clients[client]
			index := findIndex(blocks, clock)

			// split the first block only if it is live; tombstones and GC
			// runs are skipped whole
			if first, ok := blocks[index].(*item); ok && !first.del && first.id.Clock < clock {
				right := splitItem(tx, first, clock-first.id.Clock)
				store.clients[client] = slices.Insert(blocks, index+1, block(right))
				index++
			}

			blocks = store.clients[client]
			for index < len(blocks) && blocks[index].getID().Clock < end {
				b := blocks[index]
				if it, ok := b.(*item); ok && !it.del {
					if it.id.Clock+it.getLen() > end {
						right := splitItem(tx, it, end-it.id.Clock)
						store.clients[client] = slices.Insert(blocks, index+1, block(right))
					}
					it.delete(tx)
				}
				blocks = store.clients[client]
				index++
			}
		}
	}

	return unapplied
}

// merge folds other into this delete set (both may be unsorted afterwards).
func (ds *deleteSet) merge(other *deleteSet) {
	for client, ranges := range other.clients {
		ds.clients[client] = append(ds.clients[client], ranges...)
	}
}

func sortedClients[V any](m map[int]V) []int {
	out := make([]int, 0, len(m))
	for client := range m {
		out = append(out, client)
	}
	slices.Sort(out)
	return out
}
