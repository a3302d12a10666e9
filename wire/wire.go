// Package wire implements the primitive layer shared by every ycrdt wire
// format: LEB128-style unsigned varints plus length-prefixed strings and byte
// blocks.
package wire

import (
	"encoding/binary"
	"errors"
)

var (
	// ErrShortRead is reported when a decode runs past the end of the input.
	ErrShortRead = errors.New("wire: short read")

	// ErrOverflow is reported for a varint that does not fit in 64 bits, or,
	// when read with Int, one that does not fit in a non-negative int.
	ErrOverflow = errors.New("wire: varint overflow")
)

// Encoder appends wire primitives to a growing buffer.
// The zero Encoder is ready to use.
type Encoder struct {
	buf []byte
}

// Uint appends an unsigned varint.
func (e *Encoder) Uint(v uint64) {
	e.buf = binary.AppendUvarint(e.buf, v)
}

// Int appends a non-negative int as an unsigned varint.
func (e *Encoder) Int(v int) {
	if v < 0 {
		panic("wire: negative int")
	}
	e.Uint(uint64(v))
}

// Byte appends a single byte.
func (e *Encoder) Byte(b byte) {
	e.buf = append(e.buf, b)
}

// String appends a length-prefixed string.
func (e *Encoder) String(s string) {
	e.Int(len(s))
	e.buf = append(e.buf, s...)
}

// Bytes appends a length-prefixed byte block.
func (e *Encoder) Bytes(b []byte) {
	e.Int(len(b))
	e.buf = append(e.buf, b...)
}

// Append appends raw bytes with no prefix.
func (e *Encoder) Append(b []byte) {
	e.buf = append(e.buf, b...)
}

// Len returns the number of bytes written so far.
func (e *Encoder) Len() int {
	return len(e.buf)
}

// Data returns the encoded bytes.
func (e *Encoder) Data() []byte {
	return e.buf
}

// Decoder reads wire primitives from a buffer.
// Errors are sticky: after the first failure every read returns a zero value
// and Err reports what went wrong.
type Decoder struct {
	buf []byte
	pos int
	err error
}

// NewDecoder returns a Decoder over the given bytes.
func NewDecoder(b []byte) *Decoder {
	return &Decoder{buf: b}
}

// Uint reads an unsigned varint.
func (d *Decoder) Uint() uint64 {
	if d.err != nil {
		return 0
	}

	v, n := binary.Uvarint(d.buf[d.pos:])
	if n == 0 {
		d.err = ErrShortRead
		return 0
	} else if n < 0 {
		d.err = ErrOverflow
		return 0
	}

	d.pos += n
	return v
}

// Int reads an unsigned varint as an int.
func (d *Decoder) Int() int {
	v := d.Uint()
	if d.err == nil && (int(v) < 0 || uint64(int(v)) != v) {
		d.err = ErrOverflow
		return 0
	}
	return int(v)
}

// Byte reads a single byte.
func (d *Decoder) Byte() byte {
	if d.err != nil {
		return 0
	}
	if d.pos >= len(d.buf) {
		d.err = ErrShortRead
		return 0
	}

	b := d.buf[d.pos]
	d.pos++
	return b
}

// String reads a length-prefixed string.
func (d *Decoder) String() string {
	return string(d.take(d.Int()))
}

// Bytes reads a length-prefixed byte block.
// The returned slice aliases the decode buffer.
func (d *Decoder) Bytes() []byte {
	return d.take(d.Int())
}

func (d *Decoder) take(n int) []byte {
	if d.err != nil {
		return nil
	}
	if n < 0 || d.pos+n > len(d.buf) {
		d.err = ErrShortRead
		return nil
	}

	out := d.buf[d.pos : d.pos+n]
	d.pos += n
	return out
}

// Rest returns all unread bytes without consuming them.
func (d *Decoder) Rest() []byte {
	if d.err != nil {
		return nil
	}
	return d.buf[d.pos:]
}

// Done reports whether the input was fully and cleanly consumed.
func (d *Decoder) Done() bool {
	return d.err == nil && d.pos == len(d.buf)
}

// Err returns the first decode failure, if any.
func (d *Decoder) Err() error {
	return d.err
}
