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

package operation

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"github.com/hivekit/hivekit/keys"
	"github.com/hivekit/hivekit/wire"
)

// ErrUnsatisfiableAuthority is returned by Authority.Validate when the
// weights of all auths together cannot reach the threshold.
var ErrUnsatisfiableAuthority = errors.New("authority weights do not reach threshold")

// AccountAuth grants an account weight in an Authority.
type AccountAuth struct {
	Account string
	Weight  uint16
}

// KeyAuth grants a public key weight in an Authority.
type KeyAuth struct {
	Key    keys.PublicKey
	Weight uint16
}

// Authority is a weighted multisig permission.
type Authority struct {
	WeightThreshold uint32
	AccountAuths    []AccountAuth
	KeyAuths        []KeyAuth
}

// Sorted returns a copy of a with AccountAuths sorted by account name and
// KeyAuths sorted by compressed key bytes. Nodes only accept this order and
// it determines the serialized bytes, so the codec always sorts.
func (a Authority) Sorted() Authority {
	s := Authority{WeightThreshold: a.WeightThreshold,
		AccountAuths: append([]AccountAuth(nil), a.AccountAuths...),
		KeyAuths:     append([]KeyAuth(nil), a.KeyAuths...)}
	sort.SliceStable(s.AccountAuths, func(i, j int) bool {
		return s.AccountAuths[i].Account < s.AccountAuths[j].Account
	})
	sort.SliceStable(s.KeyAuths, func(i, j int) bool {
		return bytes.Compare(s.KeyAuths[i].Key.Bytes(),
			s.KeyAuths[j].Key.Bytes()) < 0
	})
	return s
}

// Validate checks that a has no duplicate entries and that its weights can
// reach the threshold.
func (a Authority) Validate() error {
	var sum uint64
	accounts := make(map[string]struct{}, len(a.AccountAuths))
	for _, aa := range a.AccountAuths {
		if _, ok := accounts[aa.Account]; ok {
			return fmt.Errorf("duplicate account auth %q", aa.Account)
		}
		accounts[aa.Account] = struct{}{}
		sum += uint64(aa.Weight)
	}
	pubs := make(map[[keys.CompressedLen]byte]struct{}, len(a.KeyAuths))
	for _, ka := range a.KeyAuths {
		if ka.Key.IsZero() {
			return errors.New("empty key auth")
		}
		c := ka.Key.Compressed()
		if _, ok := pubs[c]; ok {
			return fmt.Errorf("duplicate key auth %v", ka.Key)
		}
		pubs[c] = struct{}{}
		sum += uint64(ka.Weight)
	}
	if sum < uint64(a.WeightThreshold) {
		return fmt.Errorf("%w: %v < %v", ErrUnsatisfiableAuthority,
			sum, a.WeightThreshold)
	}
	return nil
}

func (a Authority) encode(e *wire.Encoder) {
	s := a.Sorted()
	e.Uint32(s.WeightThreshold)
	e.Varint(uint32(len(s.AccountAuths)))
	for _, aa := range s.AccountAuths {
		e.String(aa.Account)
		e.Uint16(aa.Weight)
	}
	e.Varint(uint32(len(s.KeyAuths)))
	for _, ka := range s.KeyAuths {
		e.Raw(ka.Key.Bytes())
		e.Uint16(ka.Weight)
	}
}

func decodeAuthority(d *wire.Decoder, prefix string) (Authority, error) {
	var a Authority
	var err error
	if a.WeightThreshold, err = d.Uint32(); err != nil {
		return a, err
	}
	n, err := d.Varint()
	if err != nil {
		return a, err
	}
	for i := uint32(0); i < n; i++ {
		var aa AccountAuth
		if aa.Account, err = d.String(); err != nil {
			return a, err
		}
		if aa.Weight, err = d.Uint16(); err != nil {
			return a, err
		}
		a.AccountAuths = append(a.AccountAuths, aa)
	}
	if n, err = d.Varint(); err != nil {
		return a, err
	}
	for i := uint32(0); i < n; i++ {
		var ka KeyAuth
		b, err := d.Raw(keys.CompressedLen)
		if err != nil {
			return a, err
		}
		if ka.Key, err = keys.PublicKeyFromBytes(b, prefix); err != nil {
			return a, err
		}
		if ka.Weight, err = d.Uint16(); err != nil {
			return a, err
		}
		a.KeyAuths = append(a.KeyAuths, ka)
	}
	return a, nil
}

type authorityJSON struct {
	WeightThreshold uint32           `json:"weight_threshold"`
	AccountAuths    [][2]interface{} `json:"account_auths"`
	KeyAuths        [][2]interface{} `json:"key_auths"`
}

// MarshalJSON encodes a in its sorted node form, with auths as
// [name, weight] pairs.
func (a Authority) MarshalJSON() ([]byte, error) {
	s := a.Sorted()
	j := authorityJSON{WeightThreshold: s.WeightThreshold,
		AccountAuths: make([][2]interface{}, 0, len(s.AccountAuths)),
		KeyAuths:     make([][2]interface{}, 0, len(s.KeyAuths))}
	for _, aa := range s.AccountAuths {
		j.AccountAuths = append(j.AccountAuths,
			[2]interface{}{aa.Account, aa.Weight})
	}
	for _, ka := range s.KeyAuths {
		j.KeyAuths = append(j.KeyAuths,
			[2]interface{}{ka.Key.String(), ka.Weight})
	}
	return json.Marshal(j)
}
