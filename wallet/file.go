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
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/nightlyone/lockfile"

	"github.com/hivekit/hivekit/chain"
)

// File is a Persistence kept in a JSON file. The file is locked with a
// lockfile for as long as it is open, so only one process uses it at a time.
type File struct {
	mu   sync.Mutex
	path string
	lock lockfile.Lockfile
	m    map[string]chain.Bytes
}

var _ Persistence = &File{}

// OpenFile opens or creates the JSON key file at path and locks it.
func OpenFile(path string) (_ *File, err error) {
	path, err = filepath.Abs(path)
	if err != nil {
		return nil, err
	}
	lockFilePath := path + ".lock"
	lockFile, err := lockfile.New(lockFilePath)
	if err != nil {
		return nil, fmt.Errorf("lockfile.New(%q): %w", lockFilePath, err)
	}
	if err = lockFile.TryLock(); err != nil {
		return nil, fmt.Errorf("lockfile.Lockfile.TryLock(): %w", err)
	}
	// Always clean up the lockfile if opening fails.
	defer func() {
		if err != nil {
			if err := lockFile.Unlock(); err != nil {
				log.Errorf("lockfile.Lockfile.Unlock(): %v", err)
			}
		}
	}()

	f := &File{path: path, lock: lockFile, m: make(map[string]chain.Bytes)}
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		log.Debugf("New key file at %q.", path)
		return f, nil
	}
	if err != nil {
		return nil, err
	}
	if err = json.Unmarshal(data, &f.m); err != nil {
		return nil, fmt.Errorf("%v: %w", path, err)
	}
	return f, nil
}

func (f *File) Get(key string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	v, ok := f.m[key]
	if !ok {
		return nil, ErrNotFound
	}
	return append([]byte(nil), v...), nil
}

func (f *File) Put(key string, value []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	prev, had := f.m[key]
	f.m[key] = append(chain.Bytes(nil), value...)
	if err := f.save(); err != nil {
		if had {
			f.m[key] = prev
		} else {
			delete(f.m, key)
		}
		return err
	}
	return nil
}

func (f *File) Delete(key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	prev, had := f.m[key]
	if !had {
		return nil
	}
	delete(f.m, key)
	if err := f.save(); err != nil {
		f.m[key] = prev
		return err
	}
	return nil
}

func (f *File) Keys() ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	keys := make([]string, 0, len(f.m))
	for k := range f.m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys, nil
}

// save writes the whole map to a temporary file and renames it over the
// key file.
func (f *File) save() error {
	data, err := json.MarshalIndent(f.m, "", "  ")
	if err != nil {
		return err
	}
	tmp := f.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0600); err != nil {
		return err
	}
	return os.Rename(tmp, f.path)
}

// Close releases the lockfile.
func (f *File) Close() error {
	if err := f.lock.Unlock(); err != nil {
		return fmt.Errorf("lockfile.Lockfile.Unlock(): %w", err)
	}
	return nil
}
