package ydoc

import (
	"sort"
	"strings"
)

// Text is a collaborative character sequence. Indexes and lengths are byte
// counts of the inserted strings.
type Text struct {
	*Branch
}

// Insert places s at the given index.
func (t *Text) Insert(index int, s string) {
	if s == "" {
		return
	}
	t.mustDoc().Transact(func(tx *Transaction) {
		t.insertAt(tx, index, []content{&contentString{s: s}})
	})
}

// InsertEmbed places a single embedded value at the given index.
func (t *Text) InsertEmbed(index int, val any) {
	t.mustDoc().Transact(func(tx *Transaction) {
		t.insertAt(tx, index, []content{&contentEmbed{val: normalizeValue(val)}})
	})
}

// Delete removes n units starting at index.
func (t *Text) Delete(index, n int) {
	if n == 0 {
		return
	}
	t.mustDoc().Transact(func(tx *Transaction) {
		t.deleteAt(tx, index, n)
	})
}

// String returns the visible text.
func (t *Text) String() string {
	var sb strings.Builder
	for n := t.start; n != nil; n = n.right {
		if n.del {
			continue
		}
		if cs, ok := n.content.(*contentString); ok {
			sb.WriteString(cs.s)
		}
	}
	return sb.String()
}

// Array is a collaborative sequence of values.
type Array struct {
	*Branch
}

// Insert places values at the given index.
func (a *Array) Insert(index int, values ...any) {
	if len(values) == 0 {
		return
	}
	a.mustDoc().Transact(func(tx *Transaction) {
		a.insertAt(tx, index, packValues(values))
	})
}

// Push appends values at the end.
func (a *Array) Push(values ...any) {
	a.Insert(a.Len(), values...)
}

// Delete removes n values starting at index.
func (a *Array) Delete(index, n int) {
	if n == 0 {
		return
	}
	a.mustDoc().Transact(func(tx *Transaction) {
		a.deleteAt(tx, index, n)
	})
}

// Get returns the value at index.
func (a *Array) Get(index int) (any, bool) {
	for n := a.start; n != nil; n = n.right {
		if n.del || !n.countable() {
			continue
		}
		if index < n.getLen() {
			v := n.content.values()[index]
			if b, ok := v.(*Branch); ok {
				return wrapBranch(b), true
			}
			return v, true
		}
		index -= n.getLen()
	}
	return nil, false
}

// ToArray returns every visible value.
func (a *Array) ToArray() []any {
	out := a.toArray()
	for i, v := range out {
		if b, ok := v.(*Branch); ok {
			out[i] = wrapBranch(b)
		}
	}
	return out
}

// Map is a collaborative key/value map. Concurrent writes to one key
// converge on the writer with the larger (client, clock) identifier.
type Map struct {
	*Branch
}

// Set writes value under key.
func (m *Map) Set(key string, value any) {
	m.mustDoc().Transact(func(tx *Transaction) {
		m.mapSet(tx, key, &contentAny{vals: []any{normalizeValue(value)}})
	})
}

// SetText creates, stores and returns a nested Text under key.
func (m *Map) SetText(key string) *Text {
	b := newBranch(branchText)
	m.mustDoc().Transact(func(tx *Transaction) {
		m.mapSet(tx, key, &contentType{branch: b})
	})
	return &Text{b}
}

// SetMap creates, stores and returns a nested Map under key.
func (m *Map) SetMap(key string) *Map {
	b := newBranch(branchMap)
	m.mustDoc().Transact(func(tx *Transaction) {
		m.mapSet(tx, key, &contentType{branch: b})
	})
	return &Map{b}
}

// Get returns the surfaced value under key.
func (m *Map) Get(key string) (any, bool) {
	v, ok := m.mapGet(key)
	if !ok {
		return nil, false
	}
	if b, isBranch := v.(*Branch); isBranch {
		return wrapBranch(b), true
	}
	return v, ok
}

// Delete removes the value under key.
func (m *Map) Delete(key string) {
	m.mustDoc().Transact(func(tx *Transaction) {
		m.mapDelete(tx, key)
	})
}

// Has reports whether key currently holds a value.
func (m *Map) Has(key string) bool {
	_, ok := m.mapGet(key)
	return ok
}

// Keys returns the keys that currently hold values, sorted.
func (m *Map) Keys() []string {
	var out []string
	for key, it := range m.m {
		if !it.del {
			out = append(out, key)
		}
	}
	sort.Strings(out)
	return out
}

// Len returns the number of keys that currently hold values.
func (m *Map) Len() int {
	count := 0
	for _, it := range m.m {
		if !it.del {
			count++
		}
	}
	return count
}

// ToJSON returns the surfaced key/value pairs; nested types render
// recursively.
func (m *Map) ToJSON() map[string]any {
	out := map[string]any{}
	for _, key := range m.Keys() {
		v, _ := m.mapGet(key)
		if b, ok := v.(*Branch); ok {
			v = branchJSON(b)
		}
		out[key] = v
	}
	return out
}

func branchJSON(b *Branch) any {
	switch b.kind {
	case branchMap:
		return (&Map{b}).ToJSON()
	case branchText:
		return (&Text{b}).String()
	case branchXmlFragment, branchXmlElement:
		return (&XmlFragment{b}).String()
	default:
		return (&Array{b}).ToArray()
	}
}

// packValues groups plain values into runs and keeps nested types as
// individual contents.
func packValues(values []any) []content {
	var out []content
	var run []any

	flush := func() {
		if len(run) != 0 {
			out = append(out, newContentAny(run))
			run = nil
		}
	}

	for _, v := range values {
		switch t := v.(type) {
		case *Text:
			flush()
			out = append(out, &contentType{branch: t.Branch})
		case *Array:
			flush()
			out = append(out, &contentType{branch: t.Branch})
		case *Map:
			flush()
			out = append(out, &contentType{branch: t.Branch})
		case *XmlFragment:
			flush()
			out = append(out, &contentType{branch: t.Branch})
		case *XmlElement:
			flush()
			out = append(out, &contentType{branch: t.Branch})
		case *Branch:
			flush()
			out = append(out, &contentType{branch: t})
		default:
			run = append(run, v)
		}
	}
	flush()
	return out
}

// NewText returns an unintegrated Text for nesting into another type.
func NewText() *Text {
	return &Text{newBranch(branchText)}
}

// NewArray returns an unintegrated Array for nesting into another type.
func NewArray() *Array {
	return &Array{newBranch(branchArray)}
}

// NewMap returns an unintegrated Map for nesting into another type.
func NewMap() *Map {
	return &Map{newBranch(branchMap)}
}
