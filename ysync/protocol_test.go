package ysync

import (
	"bytes"
	"testing"

	"github.com/samthor/ycrdt/ydoc"
)

// pump exchanges sync messages between two docs until both are silent.
func pump(t *testing.T, a, b *ydoc.Doc) {
	t.Helper()

	toB := [][]byte{EncodeSyncStep1(a)}
	toA := [][]byte{EncodeSyncStep1(b)}

	for len(toA) != 0 || len(toB) != 0 {
		var nextA, nextB [][]byte
		for _, msg := range toB {
			reply, err := ReadSyncMessage(msg, b, nil)
			if err != nil {
				t.Fatalf("b read: %v", err)
			}
			if reply != nil {
				nextA = append(nextA, reply)
			}
		}
		for _, msg := range toA {
			reply, err := ReadSyncMessage(msg, a, nil)
			if err != nil {
				t.Fatalf("a read: %v", err)
			}
			if reply != nil {
				nextB = append(nextB, reply)
			}
		}
		toA, toB = nextA, nextB
	}
}

func TestHandshakeSyncsBothWays(t *testing.T) {
	a := ydoc.New(&ydoc.Options{ClientID: 1})
	b := ydoc.New(&ydoc.Options{ClientID: 2})

	a.GetText("t").Insert(0, "from a. ")
	b.GetText("t").Insert(0, "from b. ")

	pump(t, a, b)

	if a.GetText("t").String() != b.GetText("t").String() {
		t.Errorf("diverged: %q vs %q", a.GetText("t").String(), b.GetText("t").String())
	}
	if !bytes.Equal(a.EncodeStateVector(), b.EncodeStateVector()) {
		t.Errorf("state vectors differ")
	}
}

func TestUpdateMessage(t *testing.T) {
	a := ydoc.New(&ydoc.Options{ClientID: 1})
	b := ydoc.New(&ydoc.Options{ClientID: 2})

	var live [][]byte
	a.OnUpdate(func(update []byte, tx *ydoc.Transaction) {
		live = append(live, EncodeUpdate(update))
	})

	a.GetText("t").Insert(0, "streamed")
	for _, msg := range live {
		if reply, err := ReadSyncMessage(msg, b, nil); err != nil || reply != nil {
			t.Fatalf("update handling got %v/%v", reply, err)
		}
	}

	if got := b.GetText("t").String(); got != "streamed" {
		t.Errorf("got %q", got)
	}
}

func TestReadSyncMessageOrigin(t *testing.T) {
	a := ydoc.New(&ydoc.Options{ClientID: 1})
	b := ydoc.New(&ydoc.Options{ClientID: 2})
	a.GetText("t").Insert(0, "x")

	var origin any
	b.OnUpdate(func(update []byte, tx *ydoc.Transaction) {
		origin = tx.Origin
	})

	update, _ := a.EncodeStateAsUpdate(nil)
	if _, err := ReadSyncMessage(EncodeUpdate(update), b, "the-conn"); err != nil {
		t.Fatalf("read: %v", err)
	}
	if origin != "the-conn" {
		t.Errorf("origin got %v", origin)
	}
}

func TestMalformedMessage(t *testing.T) {
	d := ydoc.New(&ydoc.Options{ClientID: 1})

	for _, bad := range [][]byte{{}, {99}, {0x00}} {
		if _, err := ReadSyncMessage(bad, d, nil); err == nil {
			t.Errorf("message %v should fail", bad)
		}
	}
}
