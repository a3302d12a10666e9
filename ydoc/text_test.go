package ydoc

import (
	"fmt"
	"math/rand/v2"
	"testing"
)

func TestTextInsertDelete(t *testing.T) {
	d := New(&Options{ClientID: 1})
	txt := d.GetText("t")

	txt.Insert(0, "hello world")
	txt.Delete(5, 6)
	txt.Insert(5, "!")

	if got := txt.String(); got != "hello!" {
		t.Errorf("got %q", got)
	}
	if got := txt.Len(); got != 6 {
		t.Errorf("len got %d", got)
	}
	d.store.integrityCheck()
}

func TestConcurrentInsertOrder(t *testing.T) {
	// both clients insert at index 0 of an empty sequence; the smaller
	// client id ends up leftmost on both replicas
	a := New(&Options{ClientID: 1})
	b := New(&Options{ClientID: 2})

	a.GetText("t").Insert(0, "a")
	b.GetText("t").Insert(0, "b")

	syncDocs(t, a, b)

	if got := a.GetText("t").String(); got != "ab" {
		t.Errorf("a got %q", got)
	}
	if got := b.GetText("t").String(); got != "ab" {
		t.Errorf("b got %q", got)
	}
	requireConverged(t, a, b)
}

func TestDeleteArrivesFirst(t *testing.T) {
	a := New(&Options{ClientID: 1})
	updates := collectUpdates(a)

	txt := a.GetText("t")
	txt.Insert(0, "abc")
	txt.Delete(1, 1)

	if len(*updates) != 2 {
		t.Fatalf("expected 2 updates, got %d", len(*updates))
	}

	// apply in reverse order: the delete parks until the content arrives
	b := New(&Options{ClientID: 2})
	if err := b.ApplyUpdate((*updates)[1], nil); err != nil {
		t.Fatalf("apply: %v", err)
	}
	if err := b.ApplyUpdate((*updates)[0], nil); err != nil {
		t.Fatalf("apply: %v", err)
	}

	if got := b.GetText("t").String(); got != "ac" {
		t.Errorf("got %q", got)
	}

	ds := newDeleteSetFromStructStore(b.store)
	ranges := ds.clients[1]
	if len(ranges) != 1 || ranges[0] != (deleteRange{clock: 1, n: 1}) {
		t.Errorf("delete set got %v", ranges)
	}
	requireConverged(t, a, b)
}

func TestSequentialInsertsMerge(t *testing.T) {
	d := New(&Options{ClientID: 1})
	txt := d.GetText("t")

	txt.Insert(0, "a")
	txt.Insert(1, "b")

	blocks := d.store.clients[1]
	if len(blocks) != 1 {
		t.Fatalf("expected a single merged struct, got %d", len(blocks))
	}
	it := blocks[0].(*item)
	if cs := it.content.(*contentString); cs.s != "ab" || it.getLen() != 2 {
		t.Errorf("merged struct got %q len=%d", cs.s, it.getLen())
	}
}

func TestMergeSoundness(t *testing.T) {
	d := New(&Options{ClientID: 1})
	txt := d.GetText("t")

	for i := range 10 {
		txt.Insert(i, "x")
	}
	txt.Delete(2, 3)
	txt.Delete(2, 2)

	// no two adjacent blocks may still be mergeable
	for client, blocks := range d.store.clients {
		for i := 1; i < len(blocks); i++ {
			l, r := blocks[i-1], blocks[i]
			li, lok := l.(*item)
			ri, rok := r.(*item)
			if !lok || !rok {
				continue
			}
			if li.del == ri.del && li.right == ri && sameIDValue(ri.origin, li.lastID()) &&
				li.parent == ri.parent && li.parentSub == ri.parentSub &&
				sameID(li.rightOrigin, ri.rightOrigin) {
				t.Errorf("client %d: blocks %d/%d still mergeable", client, i-1, i)
			}
		}
	}
}

func sameIDValue(a *ID, b ID) bool {
	return a != nil && *a == b
}

func TestConvergenceFuzz(t *testing.T) {
	const rounds = 40

	for iter := range 5 {
		rng := rand.New(rand.NewPCG(7, uint64(iter)))

		docs := []*Doc{
			New(&Options{ClientID: 1}),
			New(&Options{ClientID: 2}),
			New(&Options{ClientID: 3}),
		}

		for round := range rounds {
			for di, d := range docs {
				txt := d.GetText("t")
				if txt.Len() == 0 || rng.IntN(3) != 0 {
					at := rng.IntN(txt.Len() + 1)
					txt.Insert(at, fmt.Sprintf("%d-%d.", di, round))
				} else {
					at := rng.IntN(txt.Len())
					n := min(1+rng.IntN(4), txt.Len()-at)
					txt.Delete(at, n)
				}
			}

			// pairwise full exchange
			for _, a := range docs {
				for _, b := range docs {
					if a != b {
						exchange(t, a, b)
					}
				}
			}

			first := docs[0].GetText("t").String()
			for _, d := range docs[1:] {
				if got := d.GetText("t").String(); got != first {
					t.Fatalf("iter %d round %d diverged:\n%q\n%q", iter, round, first, got)
				}
			}
		}

		requireConverged(t, docs[0], docs[1])
		requireConverged(t, docs[0], docs[2])
	}
}
