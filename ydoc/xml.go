package ydoc

import (
	"sort"
	"strings"
)

// XmlFragment is a collaborative sequence of XML-like nodes.
type XmlFragment struct {
	*Branch
}

// InsertElement creates an element named name at the given child index and
// returns it.
func (f *XmlFragment) InsertElement(index int, name string) *XmlElement {
	b := newBranch(branchXmlElement)
	b.name = name
	f.mustDoc().Transact(func(tx *Transaction) {
		f.insertAt(tx, index, []content{&contentType{branch: b}})
	})
	return &XmlElement{b}
}

// InsertText creates a Text node at the given child index and returns it.
func (f *XmlFragment) InsertText(index int) *Text {
	b := newBranch(branchText)
	f.mustDoc().Transact(func(tx *Transaction) {
		f.insertAt(tx, index, []content{&contentType{branch: b}})
	})
	return &Text{b}
}

// Delete removes n child nodes starting at index.
func (f *XmlFragment) Delete(index, n int) {
	if n == 0 {
		return
	}
	f.mustDoc().Transact(func(tx *Transaction) {
		f.deleteAt(tx, index, n)
	})
}

// String renders the fragment's children in order.
func (f *XmlFragment) String() string {
	var sb strings.Builder
	for n := f.start; n != nil; n = n.right {
		if n.del {
			continue
		}
		ct, ok := n.content.(*contentType)
		if !ok {
			continue
		}
		sb.WriteString(renderNode(ct.branch))
	}
	return sb.String()
}

// XmlElement is a named XML-like node with attributes and child nodes.
type XmlElement struct {
	*Branch
}

// Name returns the element's node name.
func (e *XmlElement) Name() string {
	return e.name
}

// SetAttribute writes an attribute on the element.
func (e *XmlElement) SetAttribute(key, value string) {
	e.mustDoc().Transact(func(tx *Transaction) {
		e.mapSet(tx, key, &contentAny{vals: []any{value}})
	})
}

// Attribute returns the attribute value for key.
func (e *XmlElement) Attribute(key string) (string, bool) {
	v, ok := e.mapGet(key)
	if !ok {
		return "", false
	}
	s, isString := v.(string)
	return s, isString
}

// RemoveAttribute deletes the attribute for key.
func (e *XmlElement) RemoveAttribute(key string) {
	e.mustDoc().Transact(func(tx *Transaction) {
		e.mapDelete(tx, key)
	})
}

// InsertElement creates a child element at the given index and returns it.
func (e *XmlElement) InsertElement(index int, name string) *XmlElement {
	return (&XmlFragment{e.Branch}).InsertElement(index, name)
}

// InsertText creates a child Text node at the given index and returns it.
func (e *XmlElement) InsertText(index int) *Text {
	return (&XmlFragment{e.Branch}).InsertText(index)
}

// String renders the element as markup.
func (e *XmlElement) String() string {
	return renderNode(e.Branch)
}

func renderNode(b *Branch) string {
	switch b.kind {
	case branchText:
		return (&Text{b}).String()
	case branchXmlElement:
	default:
		return (&XmlFragment{b}).String()
	}

	var sb strings.Builder
	sb.WriteByte('<')
	sb.WriteString(b.name)

	keys := make([]string, 0, len(b.m))
	for key, it := range b.m {
		if !it.del {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)
	for _, key := range keys {
		v, _ := b.mapGet(key)
		if s, ok := v.(string); ok {
			sb.WriteString(" " + key + `="` + s + `"`)
		}
	}

	sb.WriteByte('>')
	sb.WriteString((&XmlFragment{b}).String())
	sb.WriteString("</" + b.name + ">")
	return sb.String()
}
