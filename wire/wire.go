// MIT License
//
// Copyright 2018 Canonical Ledgers, LLC
//
// Permission is hereby granted, free of charge, to any person obtaining a copy
// of this software and associated documentation files (the "Software"), to
// deal in the Software without restriction, including without limitation the
// rights to use, copy, modify, merge, publish, distribute, sublicense, and/or
// sell copies of the Software, and to permit persons to whom the Software is
// furnished to do so, subject to the following conditions:
//
// The above copyright notice and this permission notice shall be included in
// all copies or substantial portions of the Software.
//
// THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
// IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
// FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
// AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
// LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING
// FROM, OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS
// IN THE SOFTWARE.

// Package wire writes and reads the canonical graphene byte stream: fixed
// width little-endian integers, varint lengths, length prefixed strings and
// bytes, and second resolution timestamps.
package wire

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/hivekit/hivekit/varint"
)

var (
	// ErrShortBuffer is returned when a Decoder runs out of bytes.
	ErrShortBuffer = errors.New("wire: unexpected end of data")
	// ErrInvalidVarint is returned for a truncated or overflowing varint.
	ErrInvalidVarint = errors.New("wire: invalid varint")
	// ErrTimeOutOfRange is returned for timestamps that do not fit in an
	// unsigned 32 bit count of seconds since the unix epoch.
	ErrTimeOutOfRange = errors.New("wire: time out of range")
)

// Encoder appends values to an in-memory buffer. The zero value is ready to
// use.
type Encoder struct {
	buf []byte
}

// NewEncoder returns an Encoder whose buffer has capacity for size bytes.
func NewEncoder(size int) *Encoder {
	return &Encoder{buf: make([]byte, 0, size)}
}

// Bytes returns the encoded data. The slice aliases the Encoder's buffer.
func (e *Encoder) Bytes() []byte { return e.buf }

// Len returns the number of bytes written so far.
func (e *Encoder) Len() int { return len(e.buf) }

func (e *Encoder) Uint8(v uint8) { e.buf = append(e.buf, v) }

func (e *Encoder) Uint16(v uint16) {
	e.buf = binary.LittleEndian.AppendUint16(e.buf, v)
}

func (e *Encoder) Uint32(v uint32) {
	e.buf = binary.LittleEndian.AppendUint32(e.buf, v)
}

func (e *Encoder) Uint64(v uint64) {
	e.buf = binary.LittleEndian.AppendUint64(e.buf, v)
}

func (e *Encoder) Int16(v int16) { e.Uint16(uint16(v)) }
func (e *Encoder) Int32(v int32) { e.Uint32(uint32(v)) }
func (e *Encoder) Int64(v int64) { e.Uint64(uint64(v)) }

func (e *Encoder) Bool(v bool) {
	if v {
		e.Uint8(1)
		return
	}
	e.Uint8(0)
}

// Varint writes v as an unsigned_int.
func (e *Encoder) Varint(v uint32) { e.buf = varint.Append(e.buf, v) }

// Raw writes b with no length prefix.
func (e *Encoder) Raw(b []byte) { e.buf = append(e.buf, b...) }

// VarBytes writes b prefixed by its varint length.
func (e *Encoder) VarBytes(b []byte) {
	e.Varint(uint32(len(b)))
	e.Raw(b)
}

// String writes s prefixed by its varint length.
func (e *Encoder) String(s string) {
	e.Varint(uint32(len(s)))
	e.buf = append(e.buf, s...)
}

// Time writes t as a uint32 count of whole seconds since the unix epoch in
// UTC. Sub-second precision is truncated.
func (e *Encoder) Time(t time.Time) error {
	sec, err := Seconds(t)
	if err != nil {
		return err
	}
	e.Uint32(sec)
	return nil
}

// Seconds returns t as whole seconds since the unix epoch, or
// ErrTimeOutOfRange if that does not fit in a uint32.
func Seconds(t time.Time) (uint32, error) {
	sec := t.Unix()
	if sec < 0 || sec > math.MaxUint32 {
		return 0, fmt.Errorf("%w: %v", ErrTimeOutOfRange, t.UTC())
	}
	return uint32(sec), nil
}

// Decoder reads values from a byte slice.
type Decoder struct {
	buf []byte
	off int
}

func NewDecoder(buf []byte) *Decoder {
	return &Decoder{buf: buf}
}

// Offset returns the number of bytes consumed.
func (d *Decoder) Offset() int { return d.off }

// Remaining returns the number of unread bytes.
func (d *Decoder) Remaining() int { return len(d.buf) - d.off }

func (d *Decoder) next(n int) ([]byte, error) {
	if n < 0 || d.Remaining() < n {
		return nil, fmt.Errorf("%w: need %v bytes at offset %v, have %v",
			ErrShortBuffer, n, d.off, d.Remaining())
	}
	b := d.buf[d.off : d.off+n]
	d.off += n
	return b, nil
}

func (d *Decoder) Uint8() (uint8, error) {
	b, err := d.next(1)
	if err != nil {
		return 0, err
	}
	return b[0], nil
}

func (d *Decoder) Uint16() (uint16, error) {
	b, err := d.next(2)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint16(b), nil
}

func (d *Decoder) Uint32() (uint32, error) {
	b, err := d.next(4)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(b), nil
}

func (d *Decoder) Uint64() (uint64, error) {
	b, err := d.next(8)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(b), nil
}

func (d *Decoder) Int16() (int16, error) {
	v, err := d.Uint16()
	return int16(v), err
}

func (d *Decoder) Int32() (int32, error) {
	v, err := d.Uint32()
	return int32(v), err
}

func (d *Decoder) Int64() (int64, error) {
	v, err := d.Uint64()
	return int64(v), err
}

func (d *Decoder) Bool() (bool, error) {
	v, err := d.Uint8()
	if err != nil {
		return false, err
	}
	if v > 1 {
		return false, fmt.Errorf("wire: invalid bool %#x at offset %v",
			v, d.off-1)
	}
	return v == 1, nil
}

func (d *Decoder) Varint() (uint32, error) {
	v, l := varint.Decode(d.buf[d.off:])
	if l < 0 {
		return 0, fmt.Errorf("%w at offset %v", ErrInvalidVarint, d.off)
	}
	d.off += l
	return v, nil
}

// Raw reads exactly n bytes. The returned slice is a copy.
func (d *Decoder) Raw(n int) ([]byte, error) {
	b, err := d.next(n)
	if err != nil {
		return nil, err
	}
	return append([]byte(nil), b...), nil
}

func (d *Decoder) VarBytes() ([]byte, error) {
	n, err := d.Varint()
	if err != nil {
		return nil, err
	}
	return d.Raw(int(n))
}

func (d *Decoder) String() (string, error) {
	n, err := d.Varint()
	if err != nil {
		return "", err
	}
	b, err := d.next(int(n))
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// Time reads a uint32 count of seconds since the unix epoch as a UTC time.
func (d *Decoder) Time() (time.Time, error) {
	sec, err := d.Uint32()
	if err != nil {
		return time.Time{}, err
	}
	return time.Unix(int64(sec), 0).UTC(), nil
}
