package ydoc

import (
	"fmt"
	"slices"
)

// structStore owns every block of the document, as one contiguous sorted
// array per client. For each array, blocks[i].clock + blocks[i].len ==
// blocks[i+1].clock, starting at clock 0.
type structStore struct {
	clients map[int][]block

	// pendingRefs parks decoded blocks whose causal dependencies have not
	// arrived yet, per client with a consume cursor.
	pendingRefs map[int]*refRange

	// pendingDs parks remote delete ranges that point past our state.
	pendingDs *deleteSet
}

// refRange is a client's parked blocks; i is the next index to consume, so
// resuming never shifts the slice head.
type refRange struct {
	i    int
	refs []block
}

func newStructStore() *structStore {
	return &structStore{
		clients:     map[int][]block{},
		pendingRefs: map[int]*refRange{},
		pendingDs:   newDeleteSet(),
	}
}

// getState returns the next expected clock for the client.
func (s *structStore) getState(client int) int {
	blocks := s.clients[client]
	if len(blocks) == 0 {
		return 0
	}

	last := blocks[len(blocks)-1]
	return last.getID().Clock + last.getLen()
}

// stateVector snapshots every client's next expected clock.
func (s *structStore) stateVector() map[int]int {
	out := make(map[int]int, len(s.clients))
	for client := range s.clients {
		out[client] = s.getState(client)
	}
	return out
}

// add appends a block to its client's array. The block must start exactly
// at the client's current state.
func (s *structStore) add(b block) {
	id := b.getID()
	if got := s.getState(id.Client); id.Clock != got {
		panic(fmt.Sprintf("ydoc: struct gap: client %d at clock %d, adding %d", id.Client, got, id.Clock))
	}
	s.clients[id.Client] = append(s.clients[id.Client], b)
}

// findIndex binary searches the array for the block whose half-open
// interval contains clock. The clock must be within the known state.
func findIndex(blocks []block, clock int) int {
	lo, hi := 0, len(blocks)-1
	for lo <= hi {
		mid := (lo + hi) / 2
		b := blocks[mid]
		midClock := b.getID().Clock

		if midClock <= clock {
			if clock < midClock+b.getLen() {
				return mid
			}
			lo = mid + 1
		} else {
			hi = mid - 1
		}
	}
	panic(fmt.Sprintf("ydoc: clock %d outside known state", clock))
}

// find returns the block containing the given ID.
func (s *structStore) find(id ID) block {
	blocks := s.clients[id.Client]
	return blocks[findIndex(blocks, id.Clock)]
}

// getItemCleanStart returns the block starting exactly at id, splitting the
// containing item if necessary. A GC block is returned whole.
func getItemCleanStart(tx *Transaction, s *structStore, id ID) block {
	index := findIndexCleanStart(tx, s, id.Client, id.Clock)
	return s.clients[id.Client][index]
}

// findIndexCleanStart is findIndex plus a split so the returned index
// begins exactly at clock.
func findIndexCleanStart(tx *Transaction, s *structStore, client, clock int) int {
	blocks := s.clients[client]
	index := findIndex(blocks, clock)

	b := blocks[index]
	if it, ok := b.(*item); ok && b.getID().Clock < clock {
		right := splitItem(tx, it, clock-it.id.Clock)
		s.clients[client] = slices.Insert(blocks, index+1, block(right))
		return index + 1
	}
	return index
}

// getItemCleanEnd returns the block ending exactly at id (inclusive),
// splitting the containing item if necessary. A GC block is returned whole.
func getItemCleanEnd(tx *Transaction, s *structStore, id ID) block {
	blocks := s.clients[id.Client]
	index := findIndex(blocks, id.Clock)

	b := blocks[index]
	it, ok := b.(*item)
	if !ok || id.Clock == b.getID().Clock+b.getLen()-1 {
		return b
	}

	right := splitItem(tx, it, id.Clock-it.id.Clock+1)
	s.clients[id.Client] = slices.Insert(blocks, index+1, block(right))
	return it
}

// replace swaps old for new at the same position and interval.
func (s *structStore) replace(old, new block) {
	id := old.getID()
	blocks := s.clients[id.Client]
	blocks[findIndex(blocks, id.Clock)] = new
}

// tryMergeWithLeft merges blocks[pos] into blocks[pos-1] when compatible,
// splicing the right block out of the array.
func (s *structStore) tryMergeWithLeft(client, pos int) {
	blocks := s.clients[client]
	if pos <= 0 || pos >= len(blocks) {
		return
	}

	left, right := blocks[pos-1], blocks[pos]
	if left.deleted() != right.deleted() {
		return
	}
	if !left.mergeWith(right) {
		return
	}

	s.clients[client] = slices.Delete(blocks, pos, pos+1)

	// the merged-away right may have been a map's current entry
	if r, ok := right.(*item); ok && r.parentSub != "" && r.parent.m[r.parentSub] == r {
		r.parent.m[r.parentSub] = left.(*item)
	}
}

// integrityCheck verifies per-client contiguity and monotonicity.
func (s *structStore) integrityCheck() {
	for client, blocks := range s.clients {
		if len(blocks) == 0 {
			panic(fmt.Sprintf("ydoc: client %d has no structs", client))
		}
		if c := blocks[0].getID().Clock; c != 0 {
			panic(fmt.Sprintf("ydoc: client %d starts at clock %d", client, c))
		}
		for i := 1; i < len(blocks); i++ {
			l, r := blocks[i-1], blocks[i]
			if l.getID().Clock+l.getLen() != r.getID().Clock {
				panic(fmt.Sprintf("ydoc: client %d discontinuous at index %d", client, i))
			}
		}
	}
}
