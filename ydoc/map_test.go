package ydoc

import (
	"reflect"
	"testing"
)

func TestMapBasics(t *testing.T) {
	d := New(&Options{ClientID: 1})
	m := d.GetMap("m")

	m.Set("a", float64(1))
	m.Set("b", "two")
	m.Set("a", float64(3))
	m.Delete("b")

	if v, ok := m.Get("a"); !ok || v != float64(3) {
		t.Errorf("a got %v/%v", v, ok)
	}
	if m.Has("b") {
		t.Errorf("b should be deleted")
	}
	if got := m.Len(); got != 1 {
		t.Errorf("len got %d", got)
	}

	want := map[string]any{"a": float64(3)}
	if got := m.ToJSON(); !reflect.DeepEqual(got, want) {
		t.Errorf("json got %v", got)
	}
}

func TestMapConcurrentSet(t *testing.T) {
	// the writer with the larger client id wins; the loser's item stays in
	// the log as a tombstone
	a := New(&Options{ClientID: 1})
	b := New(&Options{ClientID: 2})

	a.GetMap("m").Set("k", "from-a")
	b.GetMap("m").Set("k", "from-b")

	syncDocs(t, a, b)

	for _, d := range []*Doc{a, b} {
		if v, _ := d.GetMap("m").Get("k"); v != "from-b" {
			t.Errorf("client %d sees %v", d.ClientID(), v)
		}
	}

	// the losing item is tombstoned, not gone
	loser := a.store.find(ID{Client: 1, Clock: 0}).(*item)
	if !loser.del {
		t.Errorf("loser item should be tombstoned")
	}
	requireConverged(t, a, b)
}

func TestMapLastWriteWinsAfterSync(t *testing.T) {
	a := New(&Options{ClientID: 1})
	b := New(&Options{ClientID: 2})

	a.GetMap("m").Set("k", "one")
	syncDocs(t, a, b)

	b.GetMap("m").Set("k", "two")
	syncDocs(t, a, b)

	for _, d := range []*Doc{a, b} {
		if v, _ := d.GetMap("m").Get("k"); v != "two" {
			t.Errorf("client %d sees %v", d.ClientID(), v)
		}
	}
	requireConverged(t, a, b)
}

func TestNestedText(t *testing.T) {
	a := New(&Options{ClientID: 1})
	txt := a.GetMap("m").SetText("note")
	txt.Insert(0, "hi there")

	b := New(&Options{ClientID: 2})
	syncDocs(t, a, b)

	got, ok := b.GetMap("m").Get("note")
	if !ok {
		t.Fatalf("note missing")
	}
	bt, ok := got.(*Text)
	if !ok {
		t.Fatalf("note is %T", got)
	}
	if s := bt.String(); s != "hi there" {
		t.Errorf("got %q", s)
	}

	// concurrent edits inside the nested type still converge
	txt.Insert(2, "!")
	bt.Insert(0, ">")
	syncDocs(t, a, b)

	if txt.String() != bt.String() {
		t.Errorf("diverged: %q vs %q", txt.String(), bt.String())
	}
	requireConverged(t, a, b)
}

func TestDeletedParentCollapsesChildren(t *testing.T) {
	a := New(&Options{ClientID: 1})
	m := a.GetMap("m")
	txt := m.SetText("note")
	txt.Insert(0, "soon gone")

	m.Delete("note")

	// the nested type's content is garbage collected with its parent
	b := New(&Options{ClientID: 2})
	syncDocs(t, a, b)

	if b.GetMap("m").Has("note") {
		t.Errorf("note should be deleted")
	}
	requireConverged(t, a, b)
}
