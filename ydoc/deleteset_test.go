package ydoc

import (
	"testing"
)

func TestSortAndMerge(t *testing.T) {
	ds := newDeleteSet()
	ds.add(1, 10, 5)
	ds.add(1, 0, 3)
	ds.add(1, 15, 1) // adjacent to [10,15)
	ds.add(1, 11, 2) // inside [10,15)
	ds.add(2, 4, 4)

	ds.sortAndMerge()

	want := []deleteRange{{clock: 0, n: 3}, {clock: 10, n: 6}}
	got := ds.clients[1]
	if len(got) != len(want) {
		t.Fatalf("got %v", got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("got %v want %v", got, want)
		}
	}

	// strictly increasing, no adjacency
	for _, ranges := range ds.clients {
		for i := 1; i < len(ranges); i++ {
			if ranges[i-1].clock+ranges[i-1].n >= ranges[i].clock {
				t.Errorf("ranges touch: %v", ranges)
			}
		}
	}
}

func TestIsDeleted(t *testing.T) {
	ds := newDeleteSet()
	ds.add(1, 5, 3)
	ds.sortAndMerge()

	for clock, want := range map[int]bool{4: false, 5: true, 7: true, 8: false} {
		if got := ds.isDeleted(ID{Client: 1, Clock: clock}); got != want {
			t.Errorf("clock %d got %v", clock, got)
		}
	}
	if ds.isDeleted(ID{Client: 9, Clock: 5}) {
		t.Errorf("unknown client cannot be deleted")
	}
}

func TestIterateDeleted(t *testing.T) {
	d := New(&Options{ClientID: 1})
	txt := d.GetText("t")
	txt.Insert(0, "abcdef")
	txt.Delete(1, 2)

	ds := newDeleteSetFromStructStore(d.store)
	ds.sortAndMerge()

	var covered int
	d.Transact(func(tx *Transaction) {
		ds.iterate(tx, func(b block) {
			covered += b.getLen()
			if !b.deleted() {
				t.Errorf("iterate visited a live block")
			}
		})
	})

	if covered != 2 {
		t.Errorf("covered %d units", covered)
	}
}

func TestDeleteSetRoundtrip(t *testing.T) {
	d := New(&Options{ClientID: 1})
	txt := d.GetText("t")
	txt.Insert(0, "abcdef")
	txt.Delete(0, 1)
	txt.Delete(3, 1)

	update, err := d.EncodeStateAsUpdate(nil)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}

	b := New(&Options{ClientID: 2})
	if err := b.ApplyUpdate(update, nil); err != nil {
		t.Fatalf("apply: %v", err)
	}
	if got := b.GetText("t").String(); got != txt.String() {
		t.Errorf("got %q want %q", got, txt.String())
	}
	requireConverged(t, d, b)
}
