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
	"crypto/rand"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	"golang.org/x/crypto/nacl/secretbox"
	"golang.org/x/crypto/scrypt"
)

// ErrWrongPassword is returned by Unlock when the password does not open
// the backend.
var ErrWrongPassword = errors.New("wrong password")

// Keys of the backend that hold encryption parameters. Encrypted hides them
// from Keys.
const (
	reservedPrefix = "__"
	saltKey        = reservedPrefix + "salt"
	checkKey       = reservedPrefix + "check"
)

const (
	saltLen  = 32
	nonceLen = 24
	checkMsg = "hivekit"
)

// Scrypt cost parameters for the master key.
var (
	ScryptN = 1 << 15
	ScryptR = 8
	ScryptP = 1
)

// Encrypted wraps a Persistence and seals every value with a key derived
// from a password. It starts locked.
type Encrypted struct {
	backend Persistence

	mu  sync.RWMutex
	key *[32]byte
}

var _ Persistence = &Encrypted{}

// NewEncrypted wraps backend. Call Unlock before reading or writing values.
func NewEncrypted(backend Persistence) *Encrypted {
	return &Encrypted{backend: backend}
}

// Unlock derives the master key from password. The first Unlock of an empty
// backend sets the password.
func (enc *Encrypted) Unlock(password string) error {
	salt, err := enc.backend.Get(saltKey)
	if errors.Is(err, ErrNotFound) {
		return enc.create(password)
	}
	if err != nil {
		return err
	}
	key, err := deriveKey(password, salt)
	if err != nil {
		return err
	}
	sealed, err := enc.backend.Get(checkKey)
	if err != nil {
		return fmt.Errorf("%v: %w", checkKey, err)
	}
	msg, err := open(key, sealed)
	if err != nil || string(msg) != checkMsg {
		return ErrWrongPassword
	}
	enc.mu.Lock()
	enc.key = key
	enc.mu.Unlock()
	return nil
}

func (enc *Encrypted) create(password string) error {
	salt := make([]byte, saltLen)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return err
	}
	key, err := deriveKey(password, salt)
	if err != nil {
		return err
	}
	check, err := seal(key, []byte(checkMsg))
	if err != nil {
		return err
	}
	if err := enc.backend.Put(saltKey, salt); err != nil {
		return err
	}
	if err := enc.backend.Put(checkKey, check); err != nil {
		return err
	}
	log.Debugf("New wallet password set.")
	enc.mu.Lock()
	enc.key = key
	enc.mu.Unlock()
	return nil
}

// Lock forgets the master key.
func (enc *Encrypted) Lock() {
	enc.mu.Lock()
	defer enc.mu.Unlock()
	if enc.key != nil {
		for i := range enc.key {
			enc.key[i] = 0
		}
	}
	enc.key = nil
}

// IsUnlocked reports whether values can be read and written.
func (enc *Encrypted) IsUnlocked() bool {
	enc.mu.RLock()
	defer enc.mu.RUnlock()
	return enc.key != nil
}

func (enc *Encrypted) masterKey() (*[32]byte, error) {
	enc.mu.RLock()
	defer enc.mu.RUnlock()
	if enc.key == nil {
		return nil, ErrLocked
	}
	key := *enc.key
	return &key, nil
}

func (enc *Encrypted) Get(key string) ([]byte, error) {
	mk, err := enc.masterKey()
	if err != nil {
		return nil, err
	}
	sealed, err := enc.backend.Get(key)
	if err != nil {
		return nil, err
	}
	return open(mk, sealed)
}

func (enc *Encrypted) Put(key string, value []byte) error {
	if strings.HasPrefix(key, reservedPrefix) {
		return fmt.Errorf("reserved key %q", key)
	}
	mk, err := enc.masterKey()
	if err != nil {
		return err
	}
	sealed, err := seal(mk, value)
	if err != nil {
		return err
	}
	return enc.backend.Put(key, sealed)
}

func (enc *Encrypted) Delete(key string) error {
	if strings.HasPrefix(key, reservedPrefix) {
		return fmt.Errorf("reserved key %q", key)
	}
	if _, err := enc.masterKey(); err != nil {
		return err
	}
	return enc.backend.Delete(key)
}

// Keys lists the backend keys, without the reserved ones. Keys are public
// identifiers so Keys works while locked.
func (enc *Encrypted) Keys() ([]string, error) {
	all, err := enc.backend.Keys()
	if err != nil {
		return nil, err
	}
	keys := all[:0]
	for _, k := range all {
		if !strings.HasPrefix(k, reservedPrefix) {
			keys = append(keys, k)
		}
	}
	return keys, nil
}

// Close locks enc and closes the backend.
func (enc *Encrypted) Close() error {
	enc.Lock()
	return enc.backend.Close()
}

func deriveKey(password string, salt []byte) (*[32]byte, error) {
	b, err := scrypt.Key([]byte(password), salt, ScryptN, ScryptR, ScryptP, 32)
	if err != nil {
		return nil, err
	}
	var key [32]byte
	copy(key[:], b)
	return &key, nil
}

func seal(key *[32]byte, msg []byte) ([]byte, error) {
	var nonce [nonceLen]byte
	if _, err := io.ReadFull(rand.Reader, nonce[:]); err != nil {
		return nil, err
	}
	return secretbox.Seal(nonce[:], msg, &nonce, key), nil
}

func open(key *[32]byte, sealed []byte) ([]byte, error) {
	if len(sealed) < nonceLen+secretbox.Overhead {
		return nil, errors.New("sealed value too short")
	}
	var nonce [nonceLen]byte
	copy(nonce[:], sealed)
	msg, ok := secretbox.Open(nil, sealed[nonceLen:], &nonce, key)
	if !ok {
		return nil, errors.New("unable to decrypt value")
	}
	return msg, nil
}
