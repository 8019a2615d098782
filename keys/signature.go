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

package keys

import (
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/btcsuite/btcd/btcec/v2/ecdsa"
	"github.com/decred/dcrd/dcrec/secp256k1/v4"
)

// SignatureLen is the length of a compact signature: one header byte followed
// by r and s.
const SignatureLen = 65

// Header byte offsets. 27 marks a compact signature and 4 a compressed public
// key. The recovery id in [0, 3] is added to these.
const (
	compactMagic     = 27
	compressedMagic  = 4
	headerCompressed = compactMagic + compressedMagic
)

// MaxSignAttempts bounds the search for a canonical signature.
const MaxSignAttempts = 1000

var (
	// ErrNoCanonicalSignature is returned when no canonical signature was
	// found within MaxSignAttempts nonces.
	ErrNoCanonicalSignature = errors.New("unable to find canonical signature")
	// ErrMalformedSignature is returned when a signature cannot be parsed or
	// no public key can be recovered from it.
	ErrMalformedSignature = errors.New("malformed signature")
)

// Signature is a compact recoverable secp256k1 signature.
type Signature [SignatureLen]byte

// RecoveryID returns the recovery id in [0, 3] packed in the header byte, or
// -1 if the header is not a compact signature header.
func (sig Signature) RecoveryID() int {
	h := int(sig[0]) - compactMagic
	if h < 0 || h >= 8 {
		return -1
	}
	return h & 3
}

// IsCanonical reports whether r and s are both minimally encoded positive
// numbers, which graphene nodes require.
func (sig Signature) IsCanonical() bool {
	return sig[1]&0x80 == 0 && !(sig[1] == 0 && sig[2]&0x80 == 0) &&
		sig[33]&0x80 == 0 && !(sig[33] == 0 && sig[34]&0x80 == 0)
}

func (sig Signature) String() string {
	return hex.EncodeToString(sig[:])
}

func (sig Signature) MarshalJSON() ([]byte, error) {
	return json.Marshal(sig.String())
}

func (sig *Signature) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	b, err := hex.DecodeString(s)
	if err != nil {
		return fmt.Errorf("%T: %w", sig, err)
	}
	if len(b) != SignatureLen {
		return fmt.Errorf("%T: invalid length: %v", sig, len(b))
	}
	copy(sig[:], b)
	return nil
}

// SignDigest signs a 32 byte digest. Nonces are generated per RFC 6979 and
// the nonce stream is advanced until the signature is canonical. s is always
// in its low form.
func (k PrivateKey) SignDigest(digest [32]byte) (Signature, error) {
	if k.key == nil {
		return Signature{}, InvalidKeyError{Key: "", Err: errors.New("zero key")}
	}
	privBytes := k.key.Serialize()
	defer func() {
		for i := range privBytes {
			privBytes[i] = 0
		}
	}()

	var e secp256k1.ModNScalar
	e.SetByteSlice(digest[:])
	d := &k.key.Key

	for attempt := uint32(0); attempt < MaxSignAttempts; attempt++ {
		if attempt > 0 && attempt%20 == 0 {
			log.Warnf("Still searching for a canonical signature "+
				"after %v attempts", attempt)
		}
		nonce := secp256k1.NonceRFC6979(privBytes, digest[:], nil, nil, attempt)

		var kG secp256k1.JacobianPoint
		secp256k1.ScalarBaseMultNonConst(nonce, &kG)
		kG.ToAffine()

		var xBytes [32]byte
		kG.X.PutBytes(&xBytes)
		var r secp256k1.ModNScalar
		overflow := r.SetBytes(&xBytes)
		recID := byte(overflow<<1) | byte(kG.Y.IsOddBit())
		if r.IsZero() {
			continue
		}

		kInv := new(secp256k1.ModNScalar).InverseValNonConst(nonce)
		s := new(secp256k1.ModNScalar).Mul2(d, &r).Add(&e).Mul(kInv)
		nonce.Zero()
		if s.IsZero() {
			continue
		}
		if s.IsOverHalfOrder() {
			s.Negate()
			recID ^= 0x01
		}

		var sig Signature
		sig[0] = headerCompressed + recID
		var rb, sb [32]byte
		r.PutBytes(&rb)
		s.PutBytes(&sb)
		copy(sig[1:33], rb[:])
		copy(sig[33:], sb[:])
		if sig.IsCanonical() {
			return sig, nil
		}
	}
	log.Errorf("No canonical signature after %v attempts", MaxSignAttempts)
	return Signature{}, ErrNoCanonicalSignature
}

// Recover returns the public key encoded by the signature's recovery id.
// Recover never panics. A syntactically valid signature by a different key
// recovers a different public key, which the caller must compare.
func (sig Signature) Recover(digest [32]byte, prefix string) (PublicKey, error) {
	if sig.RecoveryID() < 0 {
		return PublicKey{}, fmt.Errorf("%w: invalid header byte %v",
			ErrMalformedSignature, sig[0])
	}
	key, _, err := ecdsa.RecoverCompact(sig[:], digest[:])
	if err != nil {
		return PublicKey{}, fmt.Errorf("%w: %v", ErrMalformedSignature, err)
	}
	return PublicKey{key: key, Prefix: prefix}, nil
}

// RecoverAll tries every recovery id in turn, ignoring the one in the header
// byte, and returns every public key that can be recovered.
func (sig Signature) RecoverAll(digest [32]byte, prefix string) []PublicKey {
	var found []PublicKey
	for id := byte(0); id < 4; id++ {
		trial := sig
		trial[0] = headerCompressed + id
		if k, err := trial.Recover(digest, prefix); err == nil {
			found = append(found, k)
		}
	}
	return found
}

// Verify reports whether sig is a signature of digest by k, first through
// the encoded recovery id and then by trial over all recovery ids.
func (k PublicKey) Verify(digest [32]byte, sig Signature) bool {
	if rec, err := sig.Recover(digest, k.Prefix); err == nil && rec.Equal(k) {
		return true
	}
	for _, rec := range sig.RecoverAll(digest, k.Prefix) {
		if rec.Equal(k) {
			return true
		}
	}
	return false
}
