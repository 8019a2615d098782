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

// Package keys implements secp256k1 keys in the formats graphene chains use:
// WIF private keys, prefixed base58 public keys and compact recoverable
// signatures in canonical form.
package keys

import (
	"bytes"
	"crypto/sha256"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/Factom-Asset-Tokens/base58"
	"github.com/btcsuite/btcd/btcec/v2"
	btcbase58 "github.com/btcsuite/btcd/btcutil/base58"
	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"golang.org/x/crypto/ripemd160"

	_log "github.com/hivekit/hivekit/log"
)

var log = _log.New("keys")

// DefaultPrefix is used by PublicKey.String when no prefix is set.
const DefaultPrefix = "STM"

const wifVersion = 0x80

// InvalidKeyError is returned when a key string or key bytes cannot be
// parsed. Key holds the public key string or a redacted form of a private
// key.
type InvalidKeyError struct {
	Key string
	Err error
}

func (e InvalidKeyError) Error() string {
	return fmt.Sprintf("invalid key %q: %v", e.Key, e.Err)
}

func (e InvalidKeyError) Unwrap() error { return e.Err }

func redact(wif string) string {
	if len(wif) <= 4 {
		return "..."
	}
	return wif[:4] + "..."
}

// PrivateKey is a secp256k1 private key.
type PrivateKey struct {
	key *btcec.PrivateKey
}

// PrivateKeyFromBytes returns the private key with the 32 byte big endian
// scalar b. The scalar must be in [1, N-1].
func PrivateKeyFromBytes(b []byte) (PrivateKey, error) {
	if len(b) != 32 {
		return PrivateKey{}, InvalidKeyError{Key: "...",
			Err: fmt.Errorf("invalid length: %v", len(b))}
	}
	var s secp256k1.ModNScalar
	if overflow := s.SetByteSlice(b); overflow || s.IsZero() {
		return PrivateKey{}, InvalidKeyError{Key: "...",
			Err: errors.New("scalar out of range")}
	}
	return PrivateKey{key: secp256k1.NewPrivateKey(&s)}, nil
}

// ParseWIF decodes a wallet import format string.
func ParseWIF(wif string) (PrivateKey, error) {
	b, version, err := base58.CheckDecode(wif, 1)
	if err != nil {
		return PrivateKey{}, InvalidKeyError{Key: redact(wif), Err: err}
	}
	if len(version) != 1 || version[0] != wifVersion {
		return PrivateKey{}, InvalidKeyError{Key: redact(wif),
			Err: fmt.Errorf("invalid version %x", version)}
	}
	// A trailing 0x01 marks a compressed public key.
	if len(b) == 33 && b[32] == 0x01 {
		b = b[:32]
	}
	k, err := PrivateKeyFromBytes(b)
	if err != nil {
		return PrivateKey{}, InvalidKeyError{Key: redact(wif),
			Err: errors.Unwrap(err)}
	}
	return k, nil
}

// GeneratePrivateKey returns a new random private key.
func GeneratePrivateKey() (PrivateKey, error) {
	k, err := btcec.NewPrivateKey()
	if err != nil {
		return PrivateKey{}, err
	}
	return PrivateKey{key: k}, nil
}

// FromPassword derives the role key of an account from its master password
// the way Steem wallets do: sha256(account + role + password).
func FromPassword(account, role, password string) PrivateKey {
	for seed := sha256.Sum256([]byte(account + role + password)); ; seed = sha256.Sum256(seed[:]) {
		if k, err := PrivateKeyFromBytes(seed[:]); err == nil {
			return k
		}
	}
}

// IsZero returns true if k was never initialized.
func (k PrivateKey) IsZero() bool { return k.key == nil }

// Bytes returns the 32 byte big endian scalar.
func (k PrivateKey) Bytes() []byte { return k.key.Serialize() }

// WIF returns k in wallet import format.
func (k PrivateKey) WIF() string {
	return base58.CheckEncode(k.key.Serialize(), wifVersion)
}

// String returns a redacted WIF so that keys do not leak into logs.
func (k PrivateKey) String() string {
	return redact(k.WIF())
}

// PublicKey returns the public key of k with the given string prefix.
func (k PrivateKey) PublicKey(prefix string) PublicKey {
	return PublicKey{key: k.key.PubKey(), Prefix: prefix}
}

// PublicKey is a secp256k1 public key plus the string prefix of the chain it
// belongs to.
type PublicKey struct {
	key    *btcec.PublicKey
	Prefix string
}

// CompressedLen is the length of a serialized compressed public key.
const CompressedLen = 33

// PublicKeyFromBytes parses a 33 byte compressed or 65 byte uncompressed
// public key.
func PublicKeyFromBytes(b []byte, prefix string) (PublicKey, error) {
	key, err := btcec.ParsePubKey(b)
	if err != nil {
		return PublicKey{}, InvalidKeyError{Key: fmt.Sprintf("%x", b), Err: err}
	}
	return PublicKey{key: key, Prefix: prefix}, nil
}

// ParsePublicKey parses a prefixed public key string, detecting the prefix.
func ParsePublicKey(s string) (PublicKey, error) {
	for _, l := range []int{50, 51} {
		if len(s) <= l {
			continue
		}
		if k, err := ParsePublicKeyPrefix(s, s[:len(s)-l]); err == nil {
			return k, nil
		}
	}
	return PublicKey{}, InvalidKeyError{Key: s,
		Err: errors.New("unrecognized public key format")}
}

// ParsePublicKeyPrefix parses a public key string that must start with
// prefix.
func ParsePublicKeyPrefix(s, prefix string) (PublicKey, error) {
	if len(s) <= len(prefix) || s[:len(prefix)] != prefix {
		return PublicKey{}, InvalidKeyError{Key: s,
			Err: fmt.Errorf("expected prefix %q", prefix)}
	}
	b := btcbase58.Decode(s[len(prefix):])
	if len(b) != CompressedLen+4 {
		return PublicKey{}, InvalidKeyError{Key: s,
			Err: fmt.Errorf("invalid length")}
	}
	sum := checksum(b[:CompressedLen])
	if !bytes.Equal(sum, b[CompressedLen:]) {
		return PublicKey{}, InvalidKeyError{Key: s,
			Err: fmt.Errorf("invalid checksum")}
	}
	k, err := PublicKeyFromBytes(b[:CompressedLen], prefix)
	if err != nil {
		return PublicKey{}, InvalidKeyError{Key: s, Err: errors.Unwrap(err)}
	}
	return k, nil
}

func checksum(b []byte) []byte {
	h := ripemd160.New()
	h.Write(b)
	return h.Sum(nil)[:4]
}

// IsZero returns true if k was never initialized.
func (k PublicKey) IsZero() bool { return k.key == nil }

// Bytes returns the 33 byte compressed encoding of k.
func (k PublicKey) Bytes() []byte { return k.key.SerializeCompressed() }

// Compressed returns the compressed encoding of k as an array, suitable as a
// map key.
func (k PublicKey) Compressed() [CompressedLen]byte {
	var c [CompressedLen]byte
	copy(c[:], k.Bytes())
	return c
}

// Equal compares the curve points of k and o. Prefixes are ignored.
func (k PublicKey) Equal(o PublicKey) bool {
	if k.key == nil || o.key == nil {
		return k.key == o.key
	}
	return k.key.IsEqual(o.key)
}

// WithPrefix returns k with a different string prefix.
func (k PublicKey) WithPrefix(prefix string) PublicKey {
	k.Prefix = prefix
	return k
}

// String returns the prefixed base58 encoding of k.
func (k PublicKey) String() string {
	if k.key == nil {
		return ""
	}
	prefix := k.Prefix
	if prefix == "" {
		prefix = DefaultPrefix
	}
	b := k.Bytes()
	return prefix + btcbase58.Encode(append(b, checksum(b)...))
}

func (k PublicKey) MarshalJSON() ([]byte, error) {
	return json.Marshal(k.String())
}

func (k *PublicKey) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	pk, err := ParsePublicKey(s)
	if err != nil {
		return err
	}
	*k = pk
	return nil
}
