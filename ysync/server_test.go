package ysync

import (
	"net/http/httptest"
	"testing"
	"time"

	"github.com/coder/websocket"

	"github.com/samthor/ycrdt/ydoc"
)

func roomForTest(t *testing.T) (r *Room, url string) {
	r = NewRoom(ydoc.New(nil))
	t.Cleanup(r.Close)

	srv := httptest.NewServer(r.Handler(nil))
	t.Cleanup(srv.Close)

	return r, "ws" + srv.URL[len("http"):]
}

// waitFor polls cond until it holds or the deadline passes.
func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()

	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func TestServerInitialSync(t *testing.T) {
	r, url := roomForTest(t)
	r.With(func(doc *ydoc.Doc) {
		doc.GetText("t").Insert(0, "existing")
	})

	doc := ydoc.New(nil)
	cl, err := Dial(t.Context(), url, doc)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer cl.Close()

	waitFor(t, "initial sync", func() bool {
		cl.mu.Lock()
		defer cl.mu.Unlock()
		return doc.GetText("t").String() == "existing"
	})
}

func TestServerBroadcast(t *testing.T) {
	_, url := roomForTest(t)

	docA := ydoc.New(nil)
	clA, err := Dial(t.Context(), url, docA)
	if err != nil {
		t.Fatalf("dial a: %v", err)
	}
	defer clA.Close()

	docB := ydoc.New(nil)
	clB, err := Dial(t.Context(), url, docB)
	if err != nil {
		t.Fatalf("dial b: %v", err)
	}
	defer clB.Close()

	clA.mu.Lock()
	docA.GetText("t").Insert(0, "hello from a")
	clA.mu.Unlock()

	waitFor(t, "broadcast to b", func() bool {
		clB.mu.Lock()
		defer clB.mu.Unlock()
		return docB.GetText("t").String() == "hello from a"
	})
}

func TestServerRejectsGarbage(t *testing.T) {
	r, url := roomForTest(t)

	doc := ydoc.New(nil)
	cl, err := Dial(t.Context(), url, doc)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer cl.Close()

	// a second, badly behaved peer does not corrupt the room
	bad := ydoc.New(nil)
	clBad, err := Dial(t.Context(), url, bad)
	if err != nil {
		t.Fatalf("dial bad: %v", err)
	}
	clBad.conn.Write(t.Context(), websocket.MessageBinary, []byte{0xde, 0xad})

	waitFor(t, "bad peer shutdown", func() bool {
		select {
		case <-clBad.Done():
			return true
		default:
			return false
		}
	})

	r.With(func(d *ydoc.Doc) {
		d.GetText("t").Insert(0, "still fine")
	})
	waitFor(t, "room still works", func() bool {
		cl.mu.Lock()
		defer cl.mu.Unlock()
		return doc.GetText("t").String() == "still fine"
	})
}
