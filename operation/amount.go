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
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/hivekit/hivekit/chain"
	"github.com/hivekit/hivekit/wire"
)

// symbolLen is the fixed width of an asset symbol on the wire.
const symbolLen = 7

// Amount is a fixed point quantity of an asset. Units counts the smallest
// indivisible unit, so 1.000 HIVE has Units 1000 and precision 3.
type Amount struct {
	Units int64
	Asset chain.Asset
}

// ParseAmount parses "123.456 SYMBOL". Digits beyond the asset's precision
// are truncated, never rounded.
func ParseAmount(s string, p chain.Params) (Amount, error) {
	fields := strings.Fields(s)
	if len(fields) != 2 {
		return Amount{}, fmt.Errorf("invalid amount %q", s)
	}
	asset, ok := p.Asset(fields[1])
	if !ok {
		return Amount{}, fmt.Errorf("unknown asset %q for %v", fields[1], p)
	}
	units, err := parseUnits(fields[0], asset.Precision)
	if err != nil {
		return Amount{}, fmt.Errorf("invalid amount %q: %w", s, err)
	}
	return Amount{Units: units, Asset: asset}, nil
}

func parseUnits(num string, precision uint8) (int64, error) {
	neg := strings.HasPrefix(num, "-")
	num = strings.TrimPrefix(num, "-")
	whole, frac := num, ""
	if i := strings.IndexByte(num, '.'); i >= 0 {
		whole, frac = num[:i], num[i+1:]
	}
	if whole == "" && frac == "" {
		return 0, errors.New("no digits")
	}
	for _, c := range whole + frac {
		if c < '0' || c > '9' {
			return 0, fmt.Errorf("invalid digit %q", c)
		}
	}
	if len(frac) > int(precision) {
		frac = frac[:precision]
	}
	frac += strings.Repeat("0", int(precision)-len(frac))
	digits := strings.TrimLeft(whole+frac, "0")
	if digits == "" {
		return 0, nil
	}
	units, err := strconv.ParseInt(digits, 10, 64)
	if err != nil {
		return 0, err
	}
	if neg {
		units = -units
	}
	return units, nil
}

// NewAmount returns an Amount of units of the asset named symbol.
func NewAmount(units int64, symbol string, p chain.Params) (Amount, error) {
	asset, ok := p.Asset(symbol)
	if !ok {
		return Amount{}, fmt.Errorf("unknown asset %q for %v", symbol, p)
	}
	return Amount{Units: units, Asset: asset}, nil
}

// String formats a as "123.456 SYMBOL" with exactly the asset's precision.
func (a Amount) String() string {
	sign, u := "", uint64(a.Units)
	if a.Units < 0 {
		sign, u = "-", uint64(-a.Units)
	}
	abs := strconv.FormatUint(u, 10)
	prec := int(a.Asset.Precision)
	if prec == 0 {
		return sign + abs + " " + a.Asset.Symbol
	}
	if len(abs) <= prec {
		abs = strings.Repeat("0", prec-len(abs)+1) + abs
	}
	return sign + abs[:len(abs)-prec] + "." + abs[len(abs)-prec:] +
		" " + a.Asset.Symbol
}

// MarshalJSON encodes a in the legacy string form.
func (a Amount) MarshalJSON() ([]byte, error) {
	return json.Marshal(a.String())
}

// naiAmount is the appbase JSON form of an Amount.
type naiAmount struct {
	Amount    string `json:"amount"`
	Precision uint8  `json:"precision"`
	NAI       string `json:"nai"`
}

// NAI returns the appbase JSON form of a.
func (a Amount) NAI() interface{} {
	return naiAmount{Amount: strconv.FormatInt(a.Units, 10),
		Precision: a.Asset.Precision, NAI: a.Asset.NAI}
}

// amountFromNAI resolves the asset of an appbase amount through its NAI.
func amountFromNAI(units string, precision uint8, nai string,
	p chain.Params) (Amount, error) {
	asset, ok := p.AssetByNAI(nai)
	if !ok {
		return Amount{}, fmt.Errorf("unknown nai %q for %v", nai, p)
	}
	if asset.Precision != precision {
		return Amount{}, fmt.Errorf("precision %v does not match %v for %v",
			precision, asset.Precision, asset.Symbol)
	}
	u, err := strconv.ParseInt(units, 10, 64)
	if err != nil {
		return Amount{}, fmt.Errorf("invalid amount %q: %w", units, err)
	}
	return Amount{Units: u, Asset: asset}, nil
}

func (a Amount) encode(e *wire.Encoder) error {
	sym := a.Asset.WireSymbol
	if sym == "" {
		sym = a.Asset.Symbol
	}
	if len(sym) > symbolLen {
		return fmt.Errorf("symbol %q longer than %v", sym, symbolLen)
	}
	e.Int64(a.Units)
	e.Uint8(a.Asset.Precision)
	var b [symbolLen]byte
	copy(b[:], sym)
	e.Raw(b[:])
	return nil
}

func decodeAmount(d *wire.Decoder, p chain.Params) (Amount, error) {
	units, err := d.Int64()
	if err != nil {
		return Amount{}, err
	}
	prec, err := d.Uint8()
	if err != nil {
		return Amount{}, err
	}
	b, err := d.Raw(symbolLen)
	if err != nil {
		return Amount{}, err
	}
	sym := strings.TrimRight(string(b), "\x00")
	asset, ok := p.Asset(sym)
	if !ok || asset.Precision != prec {
		asset = chain.Asset{Symbol: sym, WireSymbol: sym, Precision: prec}
	}
	return Amount{Units: units, Asset: asset}, nil
}

// Price is an exchange rate between two assets.
type Price struct {
	Base  Amount `json:"base"`
	Quote Amount `json:"quote"`
}

func (pr Price) encode(e *wire.Encoder) error {
	if err := pr.Base.encode(e); err != nil {
		return err
	}
	return pr.Quote.encode(e)
}

func decodePrice(d *wire.Decoder, p chain.Params) (Price, error) {
	base, err := decodeAmount(d, p)
	if err != nil {
		return Price{}, err
	}
	quote, err := decodeAmount(d, p)
	if err != nil {
		return Price{}, err
	}
	return Price{Base: base, Quote: quote}, nil
}
