package ydoc

import (
	"github.com/samthor/ycrdt/wire"
)

// block is one contiguous client-owned run of the log, occupying the
// half-open clock interval [id.Clock, id.Clock+len).
// The two concrete variants are item (live or tombstoned content) and
// gcBlock (a collapsed placeholder that only preserves the interval).
type block interface {
	getID() ID
	getLen() int
	deleted() bool

	// mergeWith absorbs right into this block. It only succeeds for a right
	// neighbor that is contiguous and structurally compatible; the caller is
	// responsible for removing right from the store afterwards.
	mergeWith(right block) bool

	// write encodes this block, skipping the first offset units.
	write(e *wire.Encoder, offset int)

	// integrate places this block into the document, skipping the first
	// offset units (they are already known locally).
	integrate(tx *Transaction, offset int)
}

// gcBlock is a run of units whose content has been discarded entirely.
// It keeps the clock interval so binary search over the client's blocks
// stays valid.
type gcBlock struct {
	id ID
	n  int
}

func (g *gcBlock) getID() ID     { return g.id }
func (g *gcBlock) getLen() int   { return g.n }
func (g *gcBlock) deleted() bool { return true }

func (g *gcBlock) mergeWith(right block) bool {
	r, ok := right.(*gcBlock)
	if !ok {
		return false
	}
	if g.id.Client != r.id.Client || g.id.Clock+g.n != r.id.Clock {
		return false
	}

	g.n += r.n
	return true
}

func (g *gcBlock) write(e *wire.Encoder, offset int) {
	e.Byte(refGC)
	e.Int(g.n - offset)
}

func (g *gcBlock) integrate(tx *Transaction, offset int) {
	if offset > 0 {
		g.id.Clock += offset
		g.n -= offset
	}
	tx.doc.store.add(g)
}
