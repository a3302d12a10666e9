package ydoc

import (
	"github.com/samthor/ycrdt/wire"
)

// item is a logically inserted element: a linked-list cell carrying content,
// its insert origins for conflict resolution, and its parent type.
type item struct {
	id ID

	// origin/rightOrigin are the IDs of the left/right neighbors at the time
	// of insertion; they drive the deterministic interleaving.
	origin      *ID
	rightOrigin *ID

	left  *item
	right *item

	parent    *Branch
	parentSub string // map key, "" for sequence position

	// parentID holds an unresolved parent reference from the wire until
	// resolveDeps runs; parent is set afterwards.
	parentID *ID

	del     bool
	content content
}

func (it *item) getID() ID     { return it.id }
func (it *item) getLen() int   { return it.content.len() }
func (it *item) deleted() bool { return it.del }

// lastID is the ID of the final unit of this item.
func (it *item) lastID() ID {
	return ID{Client: it.id.Client, Clock: it.id.Clock + it.getLen() - 1}
}

func (it *item) countable() bool {
	return it.content.countable()
}

// splitItem cuts left at diff, producing the right half with ID
// (client, clock+diff). The caller inserts the returned item into the
// client's block array right after left.
func splitItem(tx *Transaction, left *item, diff int) *item {
	origin := left.id
	origin.Clock += diff - 1

	right := &item{
		id:          ID{Client: left.id.Client, Clock: left.id.Clock + diff},
		origin:      &origin,
		rightOrigin: left.rightOrigin,
		left:        left,
		right:       left.right,
		parent:      left.parent,
		parentSub:   left.parentSub,
		del:         left.del,
		content:     left.content.split(diff),
	}

	left.right = right
	if right.right != nil {
		right.right.left = right
	} else if right.parentSub != "" {
		right.parent.m[right.parentSub] = right
	}

	tx.mergeBlocks = append(tx.mergeBlocks, right.id)
	return right
}

func (it *item) mergeWith(right block) bool {
	r, ok := right.(*item)
	if !ok {
		return false
	}
	if it.id.Client != r.id.Client ||
		it.id.Clock+it.getLen() != r.id.Clock ||
		it.del != r.del ||
		it.right != r ||
		r.left != it ||
		it.parent != r.parent ||
		it.parentSub != r.parentSub ||
		!sameID(it.rightOrigin, r.rightOrigin) {
		return false
	}
	last := it.lastID()
	if !sameID(r.origin, &last) {
		return false
	}

	if !it.content.mergeWith(r.content) {
		return false
	}

	it.right = r.right
	if it.right != nil {
		it.right.left = it
	}
	return true
}

// delete tombstones this item: the content is still present but no longer
// surfaced, and the range is recorded in the transaction's delete set.
func (it *item) delete(tx *Transaction) {
	if it.del {
		return
	}

	parent := it.parent
	if it.countable() && it.parentSub == "" {
		parent.length -= it.getLen()
	}
	it.del = true
	tx.ds.add(it.id.Client, it.id.Clock, it.getLen())
	addChangedType(tx, parent, it.parentSub)
	it.content.del(tx)
}

// gc drops the content of a deleted item. With parentGCd the linked-list
// position is no longer needed either and the item collapses into a
// gcBlock; otherwise it stays as a tombstone cell.
func (it *item) gc(store *structStore, parentGCd bool) {
	if !it.del {
		panic("ydoc: gc of live item")
	}

	it.content.gc(store)
	if parentGCd {
		store.replace(it, &gcBlock{id: it.id, n: it.getLen()})
	} else {
		it.content = &contentDeleted{n: it.getLen()}
	}
}

// resolveDeps locates this item's left/right neighbors and parent once all
// its dependencies are present in the store. It reports the client whose
// state is still insufficient, if any.
func (it *item) resolveDeps(tx *Transaction, store *structStore) (missing int, ok bool) {
	if it.origin != nil && it.origin.Client != it.id.Client &&
		it.origin.Clock >= store.getState(it.origin.Client) {
		return it.origin.Client, false
	}
	if it.rightOrigin != nil && it.rightOrigin.Client != it.id.Client &&
		it.rightOrigin.Clock >= store.getState(it.rightOrigin.Client) {
		return it.rightOrigin.Client, false
	}
	if it.parentID != nil && it.parentID.Client != it.id.Client &&
		it.parentID.Clock >= store.getState(it.parentID.Client) {
		return it.parentID.Client, false
	}

	var leftGone, rightGone bool
	if it.origin != nil {
		switch l := getItemCleanEnd(tx, store, *it.origin).(type) {
		case *item:
			it.left = l
			last := l.lastID()
			it.origin = &last
		default:
			leftGone = true
		}
	}
	if it.rightOrigin != nil {
		switch r := getItemCleanStart(tx, store, *it.rightOrigin).(type) {
		case *item:
			it.right = r
			it.rightOrigin = &r.id
		default:
			rightGone = true
		}
	}

	if leftGone || rightGone {
		// a neighbor was garbage collected, so the whole parent is gone
		it.parent = nil
		it.parentID = nil
	} else if it.parent == nil && it.parentID == nil {
		if it.left != nil {
			it.parent = it.left.parent
			it.parentSub = it.left.parentSub
		}
		if it.right != nil {
			it.parent = it.right.parent
			it.parentSub = it.right.parentSub
		}
	} else if it.parentID != nil {
		switch p := store.find(*it.parentID).(type) {
		case *item:
			if ct, isType := p.content.(*contentType); isType {
				it.parent = ct.branch
			}
		}
		it.parentID = nil
	}

	return 0, true
}

// integrate places this item into its parent, resolving concurrent inserts
// at the same position into a deterministic order. The first offset units
// are already known locally and are trimmed away.
func (it *item) integrate(tx *Transaction, offset int) {
	store := tx.doc.store

	if offset > 0 {
		it.id.Clock += offset
		switch l := getItemCleanEnd(tx, store, ID{Client: it.id.Client, Clock: it.id.Clock - 1}).(type) {
		case *item:
			it.left = l
			last := l.lastID()
			it.origin = &last
		default:
			it.origin = nil
			it.left = nil
			it.parent = nil
		}
		it.content = it.content.split(offset)
	}

	if it.parent == nil {
		// nothing to attach to: the interval is only kept for bookkeeping
		(&gcBlock{id: it.id, n: it.getLen()}).integrate(tx, 0)
		return
	}

	parent := it.parent

	if (it.left == nil && (it.right == nil || it.right.left != nil)) ||
		(it.left != nil && it.left.right != it.right) {
		// a concurrent insert happened between our origins: walk the
		// candidates and decide the deterministic position
		left := it.left

		var o *item
		if left != nil {
			o = left.right
		} else if it.parentSub != "" {
			o = parent.m[it.parentSub]
			for o != nil && o.left != nil {
				o = o.left
			}
		} else {
			o = parent.start
		}

		conflicting := map[*item]struct{}{}
		beforeOrigin := map[*item]struct{}{}
		for o != nil && o != it.right {
			beforeOrigin[o] = struct{}{}
			conflicting[o] = struct{}{}

			if sameID(it.origin, o.origin) {
				if o.id.Client < it.id.Client {
					left = o
					clear(conflicting)
				} else if sameID(it.rightOrigin, o.rightOrigin) {
					if o.id.Client == it.id.Client {
						panic("ydoc: two items of one client share origin and right origin")
					}
					// same origins, same right origin, o has the larger client:
					// we go before o
					break
				}
			} else if o.origin != nil {
				oo, isItem := store.find(*o.origin).(*item)
				if !isItem {
					break
				}
				if _, seen := beforeOrigin[oo]; seen {
					if _, conf := conflicting[oo]; !conf {
						left = o
						clear(conflicting)
					}
				} else {
					break
				}
			} else {
				break
			}
			o = o.right
		}

		it.left = left
	}

	// reconnect the list around us
	if it.left != nil {
		it.right = it.left.right
		it.left.right = it
	} else {
		var r *item
		if it.parentSub != "" {
			r = parent.m[it.parentSub]
			for r != nil && r.left != nil {
				r = r.left
			}
		} else {
			r = parent.start
			parent.start = it
		}
		it.right = r
	}
	if it.right != nil {
		it.right.left = it
	} else if it.parentSub != "" {
		parent.m[it.parentSub] = it
		if it.left != nil {
			// we are the new latest value for this key
			it.left.delete(tx)
		}
	}

	if it.parentSub == "" && it.countable() && !it.del {
		parent.length += it.getLen()
	}

	store.add(it)
	it.content.integrate(tx, it)
	addChangedType(tx, parent, it.parentSub)

	if (parent.item != nil && parent.item.del) || (it.parentSub != "" && it.right != nil) {
		// the parent is gone, or we are not the latest value for the key
		it.delete(tx)
	}
}

func (it *item) write(e *wire.Encoder, offset int) {
	origin := it.origin
	if offset > 0 {
		o := ID{Client: it.id.Client, Clock: it.id.Clock + offset - 1}
		origin = &o
	}

	info := it.content.ref()
	if origin != nil {
		info |= infoOrigin
	}
	if it.rightOrigin != nil {
		info |= infoRightOrigin
	}
	if it.parentSub != "" {
		info |= infoParentSub
	}

	var rootName string
	if origin == nil && it.rightOrigin == nil && it.parent.item == nil {
		info |= infoParentRoot
		rootName = it.parent.alias
	}
	e.Byte(info)

	if origin != nil {
		e.Int(origin.Client)
		e.Int(origin.Clock)
	}
	if it.rightOrigin != nil {
		e.Int(it.rightOrigin.Client)
		e.Int(it.rightOrigin.Clock)
	}
	if origin == nil && it.rightOrigin == nil {
		if info&infoParentRoot != 0 {
			e.String(rootName)
		} else {
			pid := it.parent.item.id
			e.Int(pid.Client)
			e.Int(pid.Clock)
		}
	}
	if it.parentSub != "" {
		e.String(it.parentSub)
	}

	it.content.write(e, offset)
}

// info byte layout: low four bits are the content tag, high four are flags.
const (
	infoParentSub   = 0x10
	infoParentRoot  = 0x20
	infoRightOrigin = 0x40
	infoOrigin      = 0x80

	infoTagMask = 0x0f
)
