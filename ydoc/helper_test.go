package ydoc

import (
	"bytes"
	"testing"
)

// exchange sends to everything it is missing from from.
func exchange(t *testing.T, from, to *Doc) {
	t.Helper()

	update, err := from.EncodeStateAsUpdate(to.EncodeStateVector())
	if err != nil {
		t.Fatalf("encode failed: %v", err)
	}
	if err := to.ApplyUpdate(update, nil); err != nil {
		t.Fatalf("apply failed: %v", err)
	}
}

// syncDocs exchanges state both ways.
func syncDocs(t *testing.T, a, b *Doc) {
	t.Helper()
	exchange(t, a, b)
	exchange(t, b, a)
}

// requireConverged asserts both replicas encode to identical bytes.
func requireConverged(t *testing.T, a, b *Doc) {
	t.Helper()

	if !bytes.Equal(a.EncodeStateVector(), b.EncodeStateVector()) {
		t.Fatalf("state vectors differ: %v vs %v", a.store.stateVector(), b.store.stateVector())
	}

	ua, err := a.EncodeStateAsUpdate(nil)
	if err != nil {
		t.Fatalf("encode failed: %v", err)
	}
	ub, err := b.EncodeStateAsUpdate(nil)
	if err != nil {
		t.Fatalf("encode failed: %v", err)
	}
	if !bytes.Equal(ua, ub) {
		t.Fatalf("encoded states differ:\n%v\n%v", ua, ub)
	}

	a.store.integrityCheck()
	b.store.integrityCheck()
}

// collectUpdates captures every update message the doc emits.
func collectUpdates(d *Doc) *[][]byte {
	var out [][]byte
	d.OnUpdate(func(update []byte, tx *Transaction) {
		cp := make([]byte, len(update))
		copy(cp, update)
		out = append(out, cp)
	})
	return &out
}
