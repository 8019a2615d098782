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
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"sort"
	"strconv"
	"time"

	"github.com/hivekit/hivekit/chain"
	"github.com/hivekit/hivekit/keys"
)

func typeError(kind Kind, v interface{}) error {
	return fmt.Errorf("cannot use %T as %v", v, kind)
}

func coerce(p chain.Params, kind Kind, v interface{}) (interface{}, error) {
	switch kind {
	case KindString:
		s, ok := v.(string)
		if !ok {
			return nil, typeError(kind, v)
		}
		return s, nil
	case KindBool:
		b, ok := v.(bool)
		if !ok {
			return nil, typeError(kind, v)
		}
		return b, nil
	case KindUint16:
		n, err := toInt(kind, v, 0, math.MaxUint16)
		return uint16(n), err
	case KindUint32:
		n, err := toInt(kind, v, 0, math.MaxUint32)
		return uint32(n), err
	case KindInt16:
		n, err := toInt(kind, v, math.MinInt16, math.MaxInt16)
		return int16(n), err
	case KindAmount:
		return coerceAmount(p, v)
	case KindPrice:
		return coercePrice(p, v)
	case KindPublicKey:
		return coercePublicKey(v)
	case KindOptionalPublicKey:
		if v == nil {
			return nil, nil
		}
		if k, ok := v.(*keys.PublicKey); ok {
			if k == nil {
				return nil, nil
			}
			v = *k
		}
		return coercePublicKey(v)
	case KindAuthority:
		return coerceAuthority(p, v)
	case KindOptionalAuthority:
		if v == nil {
			return nil, nil
		}
		if a, ok := v.(*Authority); ok {
			if a == nil {
				return nil, nil
			}
			v = *a
		}
		return coerceAuthority(p, v)
	case KindAccountSet:
		return coerceAccountSet(v)
	case KindInt64Set:
		return coerceInt64Set(v)
	case KindTime:
		switch t := v.(type) {
		case time.Time:
			return chain.NewTime(t), nil
		case chain.Time:
			return chain.NewTime(t.Time), nil
		case string:
			return chain.ParseTime(t)
		}
		return nil, typeError(kind, v)
	case KindBytes:
		switch b := v.(type) {
		case []byte:
			return chain.Bytes(append([]byte(nil), b...)), nil
		case chain.Bytes:
			return chain.Bytes(append([]byte(nil), b...)), nil
		case string:
			d, err := hex.DecodeString(b)
			if err != nil {
				return nil, err
			}
			return chain.Bytes(d), nil
		}
		return nil, typeError(kind, v)
	case KindExtensions:
		if v == nil {
			return nil, nil
		}
		if l, ok := v.([]interface{}); ok && len(l) == 0 {
			return nil, nil
		}
		return nil, errors.New("only empty extensions are supported")
	}
	return nil, fmt.Errorf("unsupported kind %v", kind)
}

// toInt accepts any Go integer, an integral float64 or json.Number, or a
// decimal string, within [min, max].
func toInt(kind Kind, v interface{}, min, max int64) (int64, error) {
	var n int64
	switch x := v.(type) {
	case int:
		n = int64(x)
	case int8:
		n = int64(x)
	case int16:
		n = int64(x)
	case int32:
		n = int64(x)
	case int64:
		n = x
	case uint:
		if uint64(x) > math.MaxInt64 {
			return 0, fmt.Errorf("%v out of range", x)
		}
		n = int64(x)
	case uint8:
		n = int64(x)
	case uint16:
		n = int64(x)
	case uint32:
		n = int64(x)
	case uint64:
		if x > math.MaxInt64 {
			return 0, fmt.Errorf("%v out of range", x)
		}
		n = int64(x)
	case float64:
		if x != math.Trunc(x) || x < math.MinInt64 || x > math.MaxInt64 {
			return 0, fmt.Errorf("%v is not an integer", x)
		}
		n = int64(x)
	case json.Number:
		i, err := x.Int64()
		if err != nil {
			return 0, err
		}
		n = i
	case string:
		i, err := strconv.ParseInt(x, 10, 64)
		if err != nil {
			return 0, err
		}
		n = i
	default:
		return 0, typeError(kind, v)
	}
	if n < min || n > max {
		return 0, fmt.Errorf("%v out of range for %v", n, kind)
	}
	return n, nil
}

func coerceAmount(p chain.Params, v interface{}) (Amount, error) {
	switch a := v.(type) {
	case Amount:
		return a, nil
	case string:
		return ParseAmount(a, p)
	case map[string]interface{}:
		units, ok := a["amount"].(string)
		if !ok {
			return Amount{}, errors.New("amount: expected string")
		}
		nai, ok := a["nai"].(string)
		if !ok {
			return Amount{}, errors.New("nai: expected string")
		}
		prec, err := toInt(KindUint16, a["precision"], 0, math.MaxUint8)
		if err != nil {
			return Amount{}, fmt.Errorf("precision: %w", err)
		}
		return amountFromNAI(units, uint8(prec), nai, p)
	case []interface{}:
		// [amount, precision, nai]
		if len(a) != 3 {
			return Amount{}, fmt.Errorf("expected 3 elements, got %v", len(a))
		}
		units, ok1 := a[0].(string)
		nai, ok2 := a[2].(string)
		if !ok1 || !ok2 {
			return Amount{}, errors.New("expected [string, number, string]")
		}
		prec, err := toInt(KindUint16, a[1], 0, math.MaxUint8)
		if err != nil {
			return Amount{}, fmt.Errorf("precision: %w", err)
		}
		return amountFromNAI(units, uint8(prec), nai, p)
	}
	return Amount{}, typeError(KindAmount, v)
}

func coercePrice(p chain.Params, v interface{}) (Price, error) {
	switch pr := v.(type) {
	case Price:
		return pr, nil
	case map[string]interface{}:
		base, err := coerceAmount(p, pr["base"])
		if err != nil {
			return Price{}, fmt.Errorf("base: %w", err)
		}
		quote, err := coerceAmount(p, pr["quote"])
		if err != nil {
			return Price{}, fmt.Errorf("quote: %w", err)
		}
		return Price{Base: base, Quote: quote}, nil
	}
	return Price{}, typeError(KindPrice, v)
}

func coercePublicKey(v interface{}) (keys.PublicKey, error) {
	switch k := v.(type) {
	case keys.PublicKey:
		if k.IsZero() {
			return keys.PublicKey{}, errors.New("empty public key")
		}
		return k, nil
	case string:
		return keys.ParsePublicKey(k)
	}
	return keys.PublicKey{}, typeError(KindPublicKey, v)
}

func coerceAuthority(p chain.Params, v interface{}) (Authority, error) {
	var a Authority
	switch x := v.(type) {
	case Authority:
		a = x
	case map[string]interface{}:
		th, err := toInt(KindUint32, x["weight_threshold"], 0, math.MaxUint32)
		if err != nil {
			return Authority{}, fmt.Errorf("weight_threshold: %w", err)
		}
		a.WeightThreshold = uint32(th)
		accounts, err := pairs(x["account_auths"])
		if err != nil {
			return Authority{}, fmt.Errorf("account_auths: %w", err)
		}
		for _, pair := range accounts {
			name, ok := pair[0].(string)
			if !ok {
				return Authority{}, fmt.Errorf("account_auths: %v",
					typeError(KindString, pair[0]))
			}
			w, err := toInt(KindUint16, pair[1], 0, math.MaxUint16)
			if err != nil {
				return Authority{}, fmt.Errorf("account_auths: %w", err)
			}
			a.AccountAuths = append(a.AccountAuths,
				AccountAuth{Account: name, Weight: uint16(w)})
		}
		keyPairs, err := pairs(x["key_auths"])
		if err != nil {
			return Authority{}, fmt.Errorf("key_auths: %w", err)
		}
		for _, pair := range keyPairs {
			k, err := coercePublicKey(pair[0])
			if err != nil {
				return Authority{}, fmt.Errorf("key_auths: %w", err)
			}
			w, err := toInt(KindUint16, pair[1], 0, math.MaxUint16)
			if err != nil {
				return Authority{}, fmt.Errorf("key_auths: %w", err)
			}
			a.KeyAuths = append(a.KeyAuths,
				KeyAuth{Key: k, Weight: uint16(w)})
		}
	default:
		return Authority{}, typeError(KindAuthority, v)
	}
	if err := a.Validate(); err != nil {
		return Authority{}, err
	}
	return a.Sorted(), nil
}

// pairs converts a JSON list of [x, weight] pairs.
func pairs(v interface{}) ([][2]interface{}, error) {
	if v == nil {
		return nil, nil
	}
	list, ok := v.([]interface{})
	if !ok {
		return nil, fmt.Errorf("cannot use %T as list", v)
	}
	out := make([][2]interface{}, 0, len(list))
	for _, item := range list {
		pair, ok := item.([]interface{})
		if !ok || len(pair) != 2 {
			return nil, fmt.Errorf("expected [value, weight] pair")
		}
		out = append(out, [2]interface{}{pair[0], pair[1]})
	}
	return out, nil
}

func coerceAccountSet(v interface{}) ([]string, error) {
	var set []string
	switch x := v.(type) {
	case []string:
		set = x
	case []interface{}:
		for _, item := range x {
			s, ok := item.(string)
			if !ok {
				return nil, typeError(KindString, item)
			}
			set = append(set, s)
		}
	case nil:
	default:
		return nil, typeError(KindAccountSet, v)
	}
	set = sortedStrings(set)
	for i := 1; i < len(set); i++ {
		if set[i] == set[i-1] {
			return nil, fmt.Errorf("duplicate account %q", set[i])
		}
	}
	if set == nil {
		set = []string{}
	}
	return set, nil
}

func coerceInt64Set(v interface{}) ([]int64, error) {
	var set []int64
	switch x := v.(type) {
	case []int64:
		set = append(set, x...)
	case []interface{}:
		for _, item := range x {
			n, err := toInt(KindInt64Set, item, math.MinInt64, math.MaxInt64)
			if err != nil {
				return nil, err
			}
			set = append(set, n)
		}
	case nil:
	default:
		return nil, typeError(KindInt64Set, v)
	}
	sort.Slice(set, func(i, j int) bool { return set[i] < set[j] })
	for i := 1; i < len(set); i++ {
		if set[i] == set[i-1] {
			return nil, fmt.Errorf("duplicate id %v", set[i])
		}
	}
	if set == nil {
		set = []int64{}
	}
	return set, nil
}
