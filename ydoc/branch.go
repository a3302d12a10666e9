package ydoc

import (
	"fmt"
)

type branchKind byte

// Wire tags for nested type kinds.
const (
	branchGeneric branchKind = iota
	branchArray
	branchMap
	branchText
	branchXmlFragment
	branchXmlElement
)

// Branch is the node shared by every concrete type: it owns the first-child
// pointer for sequence traversal, the latest item per map key, and the
// observer lists. Front ends like Text and Map are thin views over a Branch.
//
// A Branch never owns its items; the document's struct store does.
type Branch struct {
	item  *item // the item carrying us; nil for root types
	start *item // first sequence child
	m     map[string]*item

	doc    *Doc
	kind   branchKind
	name   string // xml node name
	alias  string // root key, set for root types only
	length int    // visible sequence length

	observers     hooks[func(*Event)]
	deepObservers hooks[func([]*Event)]
}

func newBranch(kind branchKind) *Branch {
	return &Branch{kind: kind, m: map[string]*item{}}
}

// Event describes one transaction's changes to a single shared type.
type Event struct {
	Target      *Branch
	Transaction *Transaction

	// Keys holds the changed map keys; ListChanged reports a sequence
	// change.
	Keys        map[string]struct{}
	ListChanged bool
}

// Observe registers fn for changes to this type. The returned func
// unregisters it.
func (b *Branch) Observe(fn func(*Event)) (off func()) {
	return b.observers.add(fn)
}

// ObserveDeep registers fn for changes to this type and everything below
// it. The returned func unregisters it.
func (b *Branch) ObserveDeep(fn func([]*Event)) (off func()) {
	return b.deepObservers.add(fn)
}

// Doc returns the document this type is integrated into, or nil.
func (b *Branch) Doc() *Doc {
	return b.doc
}

// Parent returns the parent type, or nil for root types.
func (b *Branch) Parent() *Branch {
	if b.item == nil {
		return nil
	}
	return b.item.parent
}

func (b *Branch) mustDoc() *Doc {
	if b.doc == nil {
		panic("ydoc: type is not integrated into a document")
	}
	return b.doc
}

// callObservers builds the event, bubbles it to every ancestor for deep
// delivery, then fires the shallow observers.
func (b *Branch) callObservers(tx *Transaction, cs *changeSet) {
	ev := &Event{Target: b, Transaction: tx, Keys: cs.keys, ListChanged: cs.list}

	t := b
	for {
		tx.changedParentTypes[t] = append(tx.changedParentTypes[t], ev)
		if t.item == nil {
			break
		}
		t = t.item.parent
	}

	b.observers.call(func(fn func(*Event)) { fn(ev) })
}

// nextID returns the ID the document's next unit will get.
func nextID(tx *Transaction) ID {
	d := tx.doc
	return ID{Client: d.clientID, Clock: d.store.getState(d.clientID)}
}

// insertAt inserts contents at the visible sequence index.
func (b *Branch) insertAt(tx *Transaction, index int, cs []content) {
	var left *item

	if index > 0 {
		for n := b.start; n != nil; n = n.right {
			if n.del || !n.countable() {
				continue
			}
			if index <= n.getLen() {
				if index < n.getLen() {
					// split inside n; n keeps the left half
					getItemCleanStart(tx, tx.doc.store, ID{Client: n.id.Client, Clock: n.id.Clock + index})
				}
				left = n
				index = 0
				break
			}
			index -= n.getLen()
		}
		if index > 0 {
			panic(fmt.Sprintf("ydoc: index %d out of range", index))
		}
	}

	b.insertAfter(tx, left, cs)
}

// insertAfter inserts contents directly after left (nil for the list head).
func (b *Branch) insertAfter(tx *Transaction, left *item, cs []content) {
	for _, c := range cs {
		var right *item
		if left != nil {
			right = left.right
		} else {
			right = b.start
		}

		it := &item{
			id:      nextID(tx),
			left:    left,
			right:   right,
			parent:  b,
			content: c,
		}
		if left != nil {
			last := left.lastID()
			it.origin = &last
		}
		if right != nil {
			it.rightOrigin = &right.id
		}

		it.integrate(tx, 0)
		left = it
	}
}

// deleteAt tombstones n visible units starting at index.
func (b *Branch) deleteAt(tx *Transaction, index, n int) {
	if n == 0 {
		return
	}
	start := n

	cur := b.start
	for ; cur != nil && index > 0; cur = cur.right {
		if !cur.del && cur.countable() {
			if index < cur.getLen() {
				getItemCleanStart(tx, tx.doc.store, ID{Client: cur.id.Client, Clock: cur.id.Clock + index})
			}
			index -= min(index, cur.getLen())
		}
	}
	for n > 0 && cur != nil {
		if !cur.del {
			if cur.countable() && n < cur.getLen() {
				getItemCleanStart(tx, tx.doc.store, ID{Client: cur.id.Client, Clock: cur.id.Clock + n})
			}
			cur.delete(tx)
			if cur.countable() {
				n -= cur.getLen()
			}
		}
		cur = cur.right
	}
	if n > 0 {
		panic(fmt.Sprintf("ydoc: delete of %d units exceeds length", start))
	}
}

// mapSet writes the new latest value for key; earlier values stay in the
// log as tombstones.
func (b *Branch) mapSet(tx *Transaction, key string, c content) {
	left := b.m[key]

	it := &item{
		id:        nextID(tx),
		left:      left,
		parent:    b,
		parentSub: key,
		content:   c,
	}
	if left != nil {
		last := left.lastID()
		it.origin = &last
	}

	it.integrate(tx, 0)
}

// mapGet returns the surfaced value for key.
func (b *Branch) mapGet(key string) (any, bool) {
	it := b.m[key]
	if it == nil || it.del {
		return nil, false
	}

	vals := it.content.values()
	return vals[len(vals)-1], true
}

// mapDelete tombstones the current value for key.
func (b *Branch) mapDelete(tx *Transaction, key string) {
	if it := b.m[key]; it != nil && !it.del {
		it.delete(tx)
	}
}

// toArray collects the surfaced sequence values.
func (b *Branch) toArray() []any {
	var out []any
	for n := b.start; n != nil; n = n.right {
		if n.del || !n.countable() {
			continue
		}
		out = append(out, n.content.values()...)
	}
	return out
}

// Len returns the visible sequence length.
func (b *Branch) Len() int {
	return b.length
}

// wrapBranch returns the front-end view matching the branch kind.
func wrapBranch(b *Branch) any {
	switch b.kind {
	case branchArray:
		return &Array{b}
	case branchMap:
		return &Map{b}
	case branchText:
		return &Text{b}
	case branchXmlFragment:
		return &XmlFragment{b}
	case branchXmlElement:
		return &XmlElement{b}
	}
	return b
}
