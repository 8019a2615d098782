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

// Package varint implements the unsigned_int encoding used by graphene
// chains: little-endian base-128 groups with a continuation bit, limited to
// 32 bit values.
package varint

const continuationBitMask = 0x80

// MaxLen is the longest valid encoding of a uint32.
const MaxLen = 5

// Len returns the number of bytes needed to encode x.
func Len(x uint32) int {
	l := 1
	for x >= continuationBitMask {
		x >>= 7
		l++
	}
	return l
}

// Encode x into varint bytes.
func Encode(x uint32) []byte {
	return Append(make([]byte, 0, Len(x)), x)
}

// Append the varint encoding of x to buf.
func Append(buf []byte, x uint32) []byte {
	for x >= continuationBitMask {
		buf = append(buf, continuationBitMask|uint8(x))
		x >>= 7
	}
	return append(buf, uint8(x))
}

// Decode varint bytes into a uint32 and return the number of bytes used. If
// buf is truncated, longer than MaxLen or encodes a number larger than 32
// bits, 0 and -1 is returned.
func Decode(buf []byte) (uint32, int) {
	var x uint32
	for i, b := range buf {
		if i == MaxLen {
			return 0, -1
		}
		if i == MaxLen-1 && b > 0x0f {
			return 0, -1
		}
		x |= uint32(b&^continuationBitMask) << uint(7*i)
		if b&continuationBitMask == 0 {
			return x, i + 1
		}
	}
	return 0, -1
}
