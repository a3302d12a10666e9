package ydoc

import (
	"encoding/json"

	"github.com/samthor/ycrdt/wire"
)

// Wire tags for the block variants. refGC is a whole-block tag; the others
// name the content carried inside an item.
const (
	refGC      = 0
	refDeleted = 1
	refString  = 2
	refAny     = 3
	refEmbed   = 4
	refFormat  = 5
	refType    = 6
)

// content is the payload sum carried inside an item. Merge and split of an
// item delegate to its content.
type content interface {
	len() int

	// countable reports whether the content occupies visible sequence
	// positions. Formats and deleted placeholders do not.
	countable() bool

	// mergeWith appends right's payload to this content. Returns false for
	// content kinds that never merge.
	mergeWith(right content) bool

	// split cuts this content at offset, keeping the left part in place and
	// returning the right part. Only called for 0 < offset < len.
	split(offset int) content

	ref() byte
	write(e *wire.Encoder, offset int)

	// values returns the user-visible values, one per countable unit.
	values() []any

	// integrate, del and gc are lifecycle hooks; only nested types and
	// deleted placeholders do anything with them.
	integrate(tx *Transaction, it *item)
	del(tx *Transaction)
	gc(store *structStore)
}

// normalizeValue forces v through JSON so every replica surfaces identical
// values (the wire format is JSON, so the origin must see what receivers
// will see).
func normalizeValue(v any) any {
	if v == nil {
		return nil
	}

	b, err := json.Marshal(v)
	if err != nil {
		panic("ydoc: unencodable value: " + err.Error())
	}
	var out any
	if err := json.Unmarshal(b, &out); err != nil {
		panic("ydoc: " + err.Error())
	}
	return out
}

// contentString is a chunk of text. Lengths and offsets are byte counts.
type contentString struct {
	s string
}

func (c *contentString) len() int        { return len(c.s) }
func (c *contentString) countable() bool { return true }
func (c *contentString) ref() byte       { return refString }

func (c *contentString) mergeWith(right content) bool {
	r, ok := right.(*contentString)
	if !ok {
		return false
	}
	c.s += r.s
	return true
}

func (c *contentString) split(offset int) content {
	right := &contentString{s: c.s[offset:]}
	c.s = c.s[:offset]
	return right
}

func (c *contentString) write(e *wire.Encoder, offset int) {
	e.String(c.s[offset:])
}

func (c *contentString) values() []any {
	out := make([]any, len(c.s))
	for i := range c.s {
		out[i] = c.s[i : i+1]
	}
	return out
}

func (c *contentString) integrate(tx *Transaction, it *item) {}
func (c *contentString) del(tx *Transaction)                 {}
func (c *contentString) gc(store *structStore)               {}

// contentAny is a run of arbitrary JSON-encodable values.
type contentAny struct {
	vals []any
}

func newContentAny(vals []any) *contentAny {
	out := make([]any, len(vals))
	for i, v := range vals {
		out[i] = normalizeValue(v)
	}
	return &contentAny{vals: out}
}

func (c *contentAny) len() int        { return len(c.vals) }
func (c *contentAny) countable() bool { return true }
func (c *contentAny) ref() byte       { return refAny }

func (c *contentAny) mergeWith(right content) bool {
	r, ok := right.(*contentAny)
	if !ok {
		return false
	}
	c.vals = append(c.vals, r.vals...)
	return true
}

func (c *contentAny) split(offset int) content {
	right := &contentAny{vals: c.vals[offset:]}
	c.vals = c.vals[:offset:offset]
	return right
}

func (c *contentAny) write(e *wire.Encoder, offset int) {
	rest := c.vals[offset:]
	e.Int(len(rest))
	for _, v := range rest {
		b, err := json.Marshal(v)
		if err != nil {
			panic("ydoc: unencodable value: " + err.Error())
		}
		e.Bytes(b)
	}
}

func (c *contentAny) values() []any { return c.vals }

func (c *contentAny) integrate(tx *Transaction, it *item) {}
func (c *contentAny) del(tx *Transaction)                 {}
func (c *contentAny) gc(store *structStore)               {}

// contentEmbed is a single embedded value (e.g. an inline object inside a
// text sequence).
type contentEmbed struct {
	val any
}

func (c *contentEmbed) len() int                 { return 1 }
func (c *contentEmbed) countable() bool          { return true }
func (c *contentEmbed) ref() byte                { return refEmbed }
func (c *contentEmbed) mergeWith(r content) bool { return false }
func (c *contentEmbed) split(offset int) content { panic("ydoc: split embed") }
func (c *contentEmbed) values() []any            { return []any{c.val} }

func (c *contentEmbed) write(e *wire.Encoder, offset int) {
	b, err := json.Marshal(c.val)
	if err != nil {
		panic("ydoc: unencodable value: " + err.Error())
	}
	e.Bytes(b)
}

func (c *contentEmbed) integrate(tx *Transaction, it *item) {}
func (c *contentEmbed) del(tx *Transaction)                 {}
func (c *contentEmbed) gc(store *structStore)               {}

// contentFormat is a rich-text attribute boundary. It occupies a log unit
// but no visible sequence position.
type contentFormat struct {
	key string
	val any
}

func (c *contentFormat) len() int                 { return 1 }
func (c *contentFormat) countable() bool          { return false }
func (c *contentFormat) ref() byte                { return refFormat }
func (c *contentFormat) mergeWith(r content) bool { return false }
func (c *contentFormat) split(offset int) content { panic("ydoc: split format") }
func (c *contentFormat) values() []any            { return nil }

func (c *contentFormat) write(e *wire.Encoder, offset int) {
	e.String(c.key)
	b, err := json.Marshal(c.val)
	if err != nil {
		panic("ydoc: unencodable value: " + err.Error())
	}
	e.Bytes(b)
}

func (c *contentFormat) integrate(tx *Transaction, it *item) {}
func (c *contentFormat) del(tx *Transaction)                 {}
func (c *contentFormat) gc(store *structStore)               {}

// contentType is a nested shared type.
type contentType struct {
	branch *Branch
}

func (c *contentType) len() int                 { return 1 }
func (c *contentType) countable() bool          { return true }
func (c *contentType) ref() byte                { return refType }
func (c *contentType) mergeWith(r content) bool { return false }
func (c *contentType) split(offset int) content { panic("ydoc: split type") }
func (c *contentType) values() []any            { return []any{c.branch} }

func (c *contentType) write(e *wire.Encoder, offset int) {
	e.Byte(byte(c.branch.kind))
	if c.branch.kind == branchXmlElement {
		e.String(c.branch.name)
	}
}

func (c *contentType) integrate(tx *Transaction, it *item) {
	c.branch.item = it
	c.branch.doc = tx.doc
}

// del tombstones the whole subtree so concurrently arriving children still
// find their positions.
func (c *contentType) del(tx *Transaction) {
	for n := c.branch.start; n != nil; n = n.right {
		if !n.del {
			n.delete(tx)
		} else {
			tx.mergeBlocks = append(tx.mergeBlocks, n.id)
		}
	}
	for _, n := range c.branch.m {
		if !n.del {
			n.delete(tx)
		} else {
			tx.mergeBlocks = append(tx.mergeBlocks, n.id)
		}
	}
	delete(tx.changed, c.branch)
}

// gc collapses all children into GC placeholders; the parent is gone so
// nothing can reference their positions anymore.
func (c *contentType) gc(store *structStore) {
	for n := c.branch.start; n != nil; n = n.right {
		n.gc(store, true)
	}
	c.branch.start = nil
	for _, n := range c.branch.m {
		for n != nil {
			n.gc(store, true)
			n = n.left
		}
	}
	c.branch.m = map[string]*item{}
}

// contentDeleted is the payload of a tombstone: the content is gone but the
// interval and list position remain.
type contentDeleted struct {
	n int
}

func (c *contentDeleted) len() int        { return c.n }
func (c *contentDeleted) countable() bool { return false }
func (c *contentDeleted) ref() byte       { return refDeleted }
func (c *contentDeleted) values() []any   { return nil }

func (c *contentDeleted) mergeWith(right content) bool {
	r, ok := right.(*contentDeleted)
	if !ok {
		return false
	}
	c.n += r.n
	return true
}

func (c *contentDeleted) split(offset int) content {
	right := &contentDeleted{n: c.n - offset}
	c.n = offset
	return right
}

func (c *contentDeleted) write(e *wire.Encoder, offset int) {
	e.Int(c.n - offset)
}

func (c *contentDeleted) integrate(tx *Transaction, it *item) {
	// a deleted payload arrives pre-tombstoned
	tx.ds.add(it.id.Client, it.id.Clock, c.n)
	it.del = true
}

func (c *contentDeleted) del(tx *Transaction)   {}
func (c *contentDeleted) gc(store *structStore) {}
