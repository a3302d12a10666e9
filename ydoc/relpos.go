package ydoc

import (
	"github.com/samthor/ycrdt/wire"
)

// RelativePosition names a spot in a sequence that stays meaningful as the
// sequence changes around it: it points at a unit of content rather than an
// index.
type RelativePosition struct {
	// Item names the unit the position sticks to; nil means the type's
	// start or end, depending on Assoc.
	Item *ID

	// TypeID/Name identify the sequence: the item carrying a nested type,
	// or the registry name of a root type.
	TypeID *ID
	Name   string

	// Assoc is the side the position associates with: >= 0 right, < 0 left.
	Assoc int
}

// RelativePosition captures the position at index in this sequence.
func (b *Branch) RelativePosition(index, assoc int) RelativePosition {
	out := RelativePosition{Assoc: assoc}

	// the type reference is only needed when no unit anchors the position
	ref := func() {
		if b.item != nil {
			id := b.item.id
			out.TypeID = &id
		} else {
			out.Name = b.alias
		}
	}

	if assoc < 0 {
		if index == 0 {
			ref()
			return out
		}
		index--
	}

	for n := b.start; n != nil; n = n.right {
		if n.del || !n.countable() {
			continue
		}
		if index < n.getLen() {
			id := ID{Client: n.id.Client, Clock: n.id.Clock + index}
			out.Item = &id
			return out
		}
		index -= n.getLen()
	}

	ref()
	return out
}

// AbsolutePosition resolves a relative position against the current state
// of the document. It reports false when the position's context no longer
// exists.
func (d *Doc) AbsolutePosition(pos RelativePosition) (b *Branch, index int, ok bool) {
	store := d.store

	if pos.Item == nil {
		if pos.Name != "" {
			b = d.rootBranch(pos.Name, branchGeneric)
		} else if pos.TypeID != nil {
			if pos.TypeID.Clock >= store.getState(pos.TypeID.Client) {
				return nil, 0, false
			}
			it, isItem := store.find(*pos.TypeID).(*item)
			if !isItem || it.del {
				return nil, 0, false
			}
			ct, isType := it.content.(*contentType)
			if !isType {
				return nil, 0, false
			}
			b = ct.branch
		} else {
			return nil, 0, false
		}

		if pos.Assoc >= 0 {
			return b, b.length, true
		}
		return b, 0, true
	}

	if pos.Item.Clock >= store.getState(pos.Item.Client) {
		return nil, 0, false
	}
	right, isItem := store.find(*pos.Item).(*item)
	if !isItem {
		return nil, 0, false
	}

	b = right.parent
	if b.item != nil && b.item.del {
		return nil, 0, false
	}

	if !right.del && right.countable() {
		index = pos.Item.Clock - right.id.Clock
		if pos.Assoc < 0 {
			index++
		}
	}
	for n := right.left; n != nil; n = n.left {
		if !n.del && n.countable() {
			index += n.getLen()
		}
	}
	return b, index, true
}

// Encode renders the relative position in its wire format.
func (p RelativePosition) Encode() []byte {
	var e wire.Encoder

	switch {
	case p.Item != nil:
		e.Byte(0)
		e.Int(p.Item.Client)
		e.Int(p.Item.Clock)
	case p.TypeID != nil:
		e.Byte(1)
		e.Int(p.TypeID.Client)
		e.Int(p.TypeID.Clock)
	default:
		e.Byte(2)
		e.String(p.Name)
	}

	if p.Assoc >= 0 {
		e.Byte(1)
	} else {
		e.Byte(0)
	}
	return e.Data()
}

// DecodeRelativePosition parses a relative position from its wire format.
func DecodeRelativePosition(b []byte) (RelativePosition, error) {
	dec := wire.NewDecoder(b)
	var out RelativePosition

	switch dec.Byte() {
	case 0:
		out.Item = readIDPtr(dec)
	case 1:
		out.TypeID = readIDPtr(dec)
	case 2:
		out.Name = dec.String()
	default:
		if dec.Err() == nil {
			return out, ErrBadUpdate
		}
	}

	if dec.Byte() == 0 {
		out.Assoc = -1
	}
	return out, dec.Err()
}
