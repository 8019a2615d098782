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

// Package transaction assembles, serializes, signs and verifies graphene
// transactions.
//
// The binary layout is fixed:
//
//	ref_block_num     uint16
//	ref_block_prefix  uint32
//	expiration        uint32 seconds since the unix epoch
//	operations        varint count, then each operation
//	extensions        varint count, always 0
//	signatures        varint count, then 65 bytes each
//
// The signing digest is SHA-256 over the chain ID followed by everything
// except the signatures. The transaction ID is the first 20 bytes of SHA-256
// over the same bytes without the chain ID.
package transaction

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/hivekit/hivekit/chain"
	"github.com/hivekit/hivekit/keys"
	"github.com/hivekit/hivekit/operation"
	"github.com/hivekit/hivekit/wire"
)

var (
	// ErrNoOperations is returned when broadcasting a transaction with no
	// operations.
	ErrNoOperations = errors.New("transaction has no operations")
	// ErrSigned is returned when mutating a signed transaction.
	ErrSigned = errors.New("transaction is already signed")
	// ErrWalletLocked is returned when signing through a locked KeyStore.
	ErrWalletLocked = errors.New("wallet is locked")
)

// MissingSignatureError names an expected signer with no matching
// signature.
type MissingSignatureError struct {
	PublicKey keys.PublicKey
}

func (e MissingSignatureError) Error() string {
	return fmt.Sprintf("missing signature for %v", e.PublicKey)
}

// MissingKeyError is returned by a KeyStore that has no private key for
// PublicKey.
type MissingKeyError struct {
	PublicKey keys.PublicKey
}

func (e MissingKeyError) Error() string {
	return fmt.Sprintf("no private key for %v", e.PublicKey)
}

// IDLen is the number of digest bytes in a transaction ID.
const IDLen = 20

// Transaction is a graphene transaction. Operations are serialized in
// insertion order and signatures are only ever appended.
type Transaction struct {
	RefBlockNum    uint16
	RefBlockPrefix uint32
	Expiration     chain.Time
	Operations     []operation.Operation
	Signatures     []keys.Signature
}

// Build returns an unsigned transaction. It does no I/O and accepts an
// empty operation list.
func Build(refBlockNum uint16, refBlockPrefix uint32, expiration time.Time,
	ops ...operation.Operation) *Transaction {
	return &Transaction{
		RefBlockNum:    refBlockNum,
		RefBlockPrefix: refBlockPrefix,
		Expiration:     chain.NewTime(expiration),
		Operations:     append([]operation.Operation(nil), ops...),
	}
}

// AddOperation appends op. Virtual operations are rejected.
func (tx *Transaction) AddOperation(op operation.Operation) error {
	if len(tx.Signatures) > 0 {
		return ErrSigned
	}
	if op.Type.IsVirtual() {
		return fmt.Errorf("%w: %v", operation.ErrVirtualOperation, op.Type)
	}
	tx.Operations = append(tx.Operations, op)
	return nil
}

// ClearSignatures removes all signatures so the transaction can be modified
// and signed again.
func (tx *Transaction) ClearSignatures() {
	tx.Signatures = nil
}

func (tx *Transaction) encodeBody(e *wire.Encoder) error {
	e.Uint16(tx.RefBlockNum)
	e.Uint32(tx.RefBlockPrefix)
	if err := e.Time(tx.Expiration.Time); err != nil {
		return fmt.Errorf("expiration: %w", err)
	}
	e.Varint(uint32(len(tx.Operations)))
	for i, op := range tx.Operations {
		if err := op.Encode(e); err != nil {
			return fmt.Errorf("operations[%v]: %w", i, err)
		}
	}
	// extensions
	e.Varint(0)
	return nil
}

// Body returns the serialized transaction without signatures.
func (tx *Transaction) Body() ([]byte, error) {
	e := wire.NewEncoder(64)
	if err := tx.encodeBody(e); err != nil {
		return nil, err
	}
	return e.Bytes(), nil
}

// Serialize returns the complete binary transaction, signatures included.
func (tx *Transaction) Serialize() ([]byte, error) {
	e := wire.NewEncoder(64 + len(tx.Signatures)*keys.SignatureLen)
	if err := tx.encodeBody(e); err != nil {
		return nil, err
	}
	e.Varint(uint32(len(tx.Signatures)))
	for _, sig := range tx.Signatures {
		e.Raw(sig[:])
	}
	return e.Bytes(), nil
}

// Digest returns SHA-256(chainID || Body()), the value that is signed.
func (tx *Transaction) Digest(chainID chain.Bytes32) ([32]byte, error) {
	body, err := tx.Body()
	if err != nil {
		return [32]byte{}, err
	}
	h := sha256.New()
	h.Write(chainID[:])
	h.Write(body)
	var digest [32]byte
	copy(digest[:], h.Sum(nil))
	return digest, nil
}

// ID returns the hex encoded first 20 bytes of SHA-256(Body()).
func (tx *Transaction) ID() (string, error) {
	body, err := tx.Body()
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(body)
	return hex.EncodeToString(sum[:IDLen]), nil
}

// Sign appends one signature per private key. A transaction without
// operations can be signed but not broadcast.
func (tx *Transaction) Sign(chainID chain.Bytes32, privs ...keys.PrivateKey) error {
	digest, err := tx.Digest(chainID)
	if err != nil {
		return err
	}
	sigs := make([]keys.Signature, 0, len(privs))
	for _, priv := range privs {
		sig, err := priv.SignDigest(digest)
		if err != nil {
			return err
		}
		sigs = append(sigs, sig)
	}
	tx.Signatures = append(tx.Signatures, sigs...)
	return nil
}

// KeyStore signs digests with the private keys of public keys it holds.
type KeyStore interface {
	// SignDigest signs digest with the private key of pub. It returns a
	// MissingKeyError if there is no such key.
	SignDigest(digest [32]byte, pub keys.PublicKey) (keys.Signature, error)
}

// Locker is implemented by a KeyStore that can be locked.
type Locker interface {
	IsUnlocked() bool
}

// SignWith appends one signature per public key, signed by ks. If ks is a
// Locker it must be unlocked.
func (tx *Transaction) SignWith(chainID chain.Bytes32, ks KeyStore,
	pubs ...keys.PublicKey) error {
	if l, ok := ks.(Locker); ok && !l.IsUnlocked() {
		return ErrWalletLocked
	}
	digest, err := tx.Digest(chainID)
	if err != nil {
		return err
	}
	sigs := make([]keys.Signature, 0, len(pubs))
	for _, pub := range pubs {
		sig, err := ks.SignDigest(digest, pub)
		if err != nil {
			return err
		}
		sigs = append(sigs, sig)
	}
	tx.Signatures = append(tx.Signatures, sigs...)
	return nil
}

// Verify recovers the signers of tx and checks that every expected public
// key signed it. It returns the expected keys that were matched, or a
// MissingSignatureError naming the first expected key with no signature. A
// signature from which no key can be recovered yields
// keys.ErrMalformedSignature.
func (tx *Transaction) Verify(chainID chain.Bytes32,
	expected ...keys.PublicKey) ([]keys.PublicKey, error) {
	digest, err := tx.Digest(chainID)
	if err != nil {
		return nil, err
	}
	want := make(map[[keys.CompressedLen]byte]struct{}, len(expected))
	for _, k := range expected {
		want[k.Compressed()] = struct{}{}
	}
	signed := make(map[[keys.CompressedLen]byte]struct{}, len(tx.Signatures))
	for i, sig := range tx.Signatures {
		rec, err := sig.Recover(digest, "")
		if err == nil {
			c := rec.Compressed()
			signed[c] = struct{}{}
			if _, ok := want[c]; ok {
				continue
			}
		}
		candidates := sig.RecoverAll(digest, "")
		if err != nil && len(candidates) == 0 {
			return nil, fmt.Errorf("signatures[%v]: %w", i, err)
		}
		for _, k := range candidates {
			signed[k.Compressed()] = struct{}{}
		}
	}
	matched := make([]keys.PublicKey, 0, len(expected))
	for _, k := range expected {
		if _, ok := signed[k.Compressed()]; !ok {
			return matched, MissingSignatureError{PublicKey: k}
		}
		matched = append(matched, k)
	}
	return matched, nil
}

// Decode parses a binary transaction.
func Decode(data []byte, p chain.Params) (*Transaction, error) {
	d := wire.NewDecoder(data)
	tx := new(Transaction)
	var err error
	if tx.RefBlockNum, err = d.Uint16(); err != nil {
		return nil, fmt.Errorf("ref_block_num: %w", err)
	}
	if tx.RefBlockPrefix, err = d.Uint32(); err != nil {
		return nil, fmt.Errorf("ref_block_prefix: %w", err)
	}
	exp, err := d.Time()
	if err != nil {
		return nil, fmt.Errorf("expiration: %w", err)
	}
	tx.Expiration = chain.Time{Time: exp}
	n, err := d.Varint()
	if err != nil {
		return nil, fmt.Errorf("operations: %w", err)
	}
	for i := uint32(0); i < n; i++ {
		op, err := operation.Decode(d, p)
		if err != nil {
			return nil, fmt.Errorf("operations[%v]: %w", i, err)
		}
		tx.Operations = append(tx.Operations, op)
	}
	if n, err = d.Varint(); err != nil {
		return nil, fmt.Errorf("extensions: %w", err)
	}
	if n != 0 {
		return nil, fmt.Errorf("extensions: %v present, none supported", n)
	}
	if n, err = d.Varint(); err != nil {
		return nil, fmt.Errorf("signatures: %w", err)
	}
	for i := uint32(0); i < n; i++ {
		b, err := d.Raw(keys.SignatureLen)
		if err != nil {
			return nil, fmt.Errorf("signatures[%v]: %w", i, err)
		}
		var sig keys.Signature
		copy(sig[:], b)
		tx.Signatures = append(tx.Signatures, sig)
	}
	if d.Remaining() > 0 {
		return nil, fmt.Errorf("%v trailing bytes", d.Remaining())
	}
	return tx, nil
}
