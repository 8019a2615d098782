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

package wallet

import (
	"encoding/hex"
	"errors"
	"fmt"

	"github.com/hivekit/hivekit/keys"
	_log "github.com/hivekit/hivekit/log"
	"github.com/hivekit/hivekit/transaction"
)

var log = _log.New("wallet")

// KeyStore holds private keys indexed by public key. It implements
// transaction.KeyStore and, when its backend can be locked,
// transaction.Locker.
type KeyStore struct {
	backend Persistence
	// Prefix is given to the public keys the store returns.
	Prefix string
}

var _ transaction.KeyStore = &KeyStore{}
var _ transaction.Locker = &KeyStore{}

// New returns a KeyStore over backend. Wrap the backend in Encrypted to keep
// keys sealed at rest.
func New(backend Persistence, prefix string) *KeyStore {
	if prefix == "" {
		prefix = keys.DefaultPrefix
	}
	return &KeyStore{backend: backend, Prefix: prefix}
}

func storageKey(pub keys.PublicKey) string {
	return hex.EncodeToString(pub.Bytes())
}

// IsUnlocked reports whether the backend can be read. Backends that are not
// lockable are always unlocked.
func (ks *KeyStore) IsUnlocked() bool {
	if l, ok := ks.backend.(transaction.Locker); ok {
		return l.IsUnlocked()
	}
	return true
}

// Add stores k and returns its public key.
func (ks *KeyStore) Add(k keys.PrivateKey) (keys.PublicKey, error) {
	pub := k.PublicKey(ks.Prefix)
	if err := ks.backend.Put(storageKey(pub), []byte(k.WIF())); err != nil {
		return keys.PublicKey{}, err
	}
	log.Debugf("Added key %v.", pub)
	return pub, nil
}

// AddWIF parses and stores a WIF private key.
func (ks *KeyStore) AddWIF(wif string) (keys.PublicKey, error) {
	k, err := keys.ParseWIF(wif)
	if err != nil {
		return keys.PublicKey{}, err
	}
	return ks.Add(k)
}

// PrivateKey resolves pub to its private key, or returns a
// transaction.MissingKeyError.
func (ks *KeyStore) PrivateKey(pub keys.PublicKey) (keys.PrivateKey, error) {
	wif, err := ks.backend.Get(storageKey(pub))
	if errors.Is(err, ErrNotFound) {
		return keys.PrivateKey{}, transaction.MissingKeyError{PublicKey: pub}
	}
	if err != nil {
		return keys.PrivateKey{}, err
	}
	k, err := keys.ParseWIF(string(wif))
	if err != nil {
		return keys.PrivateKey{}, fmt.Errorf("stored key for %v: %w", pub, err)
	}
	if !k.PublicKey(pub.Prefix).Equal(pub) {
		return keys.PrivateKey{}, fmt.Errorf("stored key for %v does not match",
			pub)
	}
	return k, nil
}

// SignDigest signs digest with the private key of pub.
func (ks *KeyStore) SignDigest(digest [32]byte,
	pub keys.PublicKey) (keys.Signature, error) {
	k, err := ks.PrivateKey(pub)
	if err != nil {
		return keys.Signature{}, err
	}
	return k.SignDigest(digest)
}

// Remove deletes the key of pub.
func (ks *KeyStore) Remove(pub keys.PublicKey) error {
	return ks.backend.Delete(storageKey(pub))
}

// PublicKeys lists the public keys in the store.
func (ks *KeyStore) PublicKeys() ([]keys.PublicKey, error) {
	names, err := ks.backend.Keys()
	if err != nil {
		return nil, err
	}
	pubs := make([]keys.PublicKey, 0, len(names))
	for _, name := range names {
		b, err := hex.DecodeString(name)
		if err != nil {
			return nil, fmt.Errorf("stored key name %q: %w", name, err)
		}
		pub, err := keys.PublicKeyFromBytes(b, ks.Prefix)
		if err != nil {
			return nil, err
		}
		pubs = append(pubs, pub)
	}
	return pubs, nil
}

// Close closes the backend.
func (ks *KeyStore) Close() error { return ks.backend.Close() }
