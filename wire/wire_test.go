package wire

import (
	"math/rand/v2"
	"testing"
)

func TestRoundtrip(t *testing.T) {
	var e Encoder
	e.Uint(0)
	e.Uint(127)
	e.Uint(128)
	e.Uint(1<<40 + 7)
	e.Byte(0x42)
	e.String("hello Ω")
	e.Bytes([]byte{1, 2, 3})

	d := NewDecoder(e.Data())
	for _, want := range []uint64{0, 127, 128, 1<<40 + 7} {
		if got := d.Uint(); got != want {
			t.Errorf("uint got=%v want=%v", got, want)
		}
	}
	if got := d.Byte(); got != 0x42 {
		t.Errorf("byte got=%v", got)
	}
	if got := d.String(); got != "hello Ω" {
		t.Errorf("string got=%q", got)
	}
	if got := d.Bytes(); len(got) != 3 || got[0] != 1 {
		t.Errorf("bytes got=%v", got)
	}
	if !d.Done() {
		t.Errorf("should be done, err=%v", d.Err())
	}
}

func TestShortRead(t *testing.T) {
	var e Encoder
	e.String("abcdef")

	data := e.Data()
	d := NewDecoder(data[:3])
	d.String()
	if d.Err() != ErrShortRead {
		t.Errorf("want ErrShortRead, got %v", d.Err())
	}

	// errors are sticky
	if got := d.Uint(); got != 0 {
		t.Errorf("read after error should be zero, got %v", got)
	}
}

func TestFuzzUints(t *testing.T) {
	var e Encoder
	var vals []uint64
	for range 1000 {
		v := rand.Uint64() >> rand.UintN(64)
		vals = append(vals, v)
		e.Uint(v)
	}

	d := NewDecoder(e.Data())
	for i, want := range vals {
		if got := d.Uint(); got != want {
			t.Fatalf("at %d: got=%v want=%v", i, got, want)
		}
	}
	if !d.Done() {
		t.Fatalf("should be done, err=%v", d.Err())
	}
}
