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

// Package wallet stores private keys for signing. A KeyStore is composed of
// a Persistence backend, optionally wrapped in Encrypted so that the values
// at rest are sealed with a password.
package wallet

import (
	"errors"
	"sort"
	"sync"

	"github.com/hivekit/hivekit/transaction"
)

// ErrLocked is returned by an Encrypted backend, and anything built on it,
// while it is locked.
var ErrLocked = transaction.ErrWalletLocked

// ErrNotFound is returned by Persistence.Get for a missing key.
var ErrNotFound = errors.New("not found")

// Persistence is a key value store for key material. Keys are public
// identifiers and values may be secret.
type Persistence interface {
	// Get returns the value of key or ErrNotFound.
	Get(key string) ([]byte, error)
	Put(key string, value []byte) error
	Delete(key string) error
	// Keys lists all keys in ascending order.
	Keys() ([]string, error)
	Close() error
}

// Memory is a Persistence held in memory. The zero value is ready to use.
type Memory struct {
	mu sync.RWMutex
	m  map[string][]byte
}

var _ Persistence = &Memory{}

func NewMemory() *Memory { return &Memory{} }

func (mem *Memory) Get(key string) ([]byte, error) {
	mem.mu.RLock()
	defer mem.mu.RUnlock()
	v, ok := mem.m[key]
	if !ok {
		return nil, ErrNotFound
	}
	return append([]byte(nil), v...), nil
}

func (mem *Memory) Put(key string, value []byte) error {
	mem.mu.Lock()
	defer mem.mu.Unlock()
	if mem.m == nil {
		mem.m = make(map[string][]byte)
	}
	mem.m[key] = append([]byte(nil), value...)
	return nil
}

func (mem *Memory) Delete(key string) error {
	mem.mu.Lock()
	defer mem.mu.Unlock()
	delete(mem.m, key)
	return nil
}

func (mem *Memory) Keys() ([]string, error) {
	mem.mu.RLock()
	defer mem.mu.RUnlock()
	keys := make([]string, 0, len(mem.m))
	for k := range mem.m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys, nil
}

func (mem *Memory) Close() error { return nil }
