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

// Package chain holds the identity of the graphene networks this library
// talks to: chain ID, public key prefix and asset table. Selecting Params for
// a node is a table lookup over the values the node reports in its config.
package chain

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Asset describes one token of a chain.
type Asset struct {
	// Symbol is the display symbol, e.g. "HIVE".
	Symbol string
	// WireSymbol is the symbol written into serialized transactions. Hive
	// kept the Steem symbols on the wire.
	WireSymbol string
	Precision  uint8
	// NAI is the numerical asset identifier used by the appbase JSON form.
	NAI string
}

// Params identifies a network.
type Params struct {
	Name    string
	ChainID Bytes32
	// Prefix is the public key string prefix, e.g. "STM".
	Prefix string
	Assets []Asset
	// ConfigPrefix is the prefix of the keys in the node's get_config
	// result, e.g. "HIVE_".
	ConfigPrefix string
}

// Asset returns the asset with the given display or wire symbol.
func (p Params) Asset(symbol string) (Asset, bool) {
	for _, a := range p.Assets {
		if a.Symbol == symbol || a.WireSymbol == symbol {
			return a, true
		}
	}
	return Asset{}, false
}

// AssetByNAI returns the asset with the given numerical asset identifier.
func (p Params) AssetByNAI(nai string) (Asset, bool) {
	for _, a := range p.Assets {
		if a.NAI == nai {
			return a, true
		}
	}
	return Asset{}, false
}

func (p Params) String() string { return p.Name }

const (
	naiCore   = "@@000000021"
	naiDollar = "@@000000013"
	naiVests  = "@@000000037"
)

var steemAssets = []Asset{
	{Symbol: "STEEM", WireSymbol: "STEEM", Precision: 3, NAI: naiCore},
	{Symbol: "SBD", WireSymbol: "SBD", Precision: 3, NAI: naiDollar},
	{Symbol: "VESTS", WireSymbol: "VESTS", Precision: 6, NAI: naiVests},
}

var hiveAssets = []Asset{
	{Symbol: "HIVE", WireSymbol: "STEEM", Precision: 3, NAI: naiCore},
	{Symbol: "HBD", WireSymbol: "SBD", Precision: 3, NAI: naiDollar},
	{Symbol: "VESTS", WireSymbol: "VESTS", Precision: 6, NAI: naiVests},
}

var testAssets = []Asset{
	{Symbol: "TESTS", WireSymbol: "TESTS", Precision: 3, NAI: naiCore},
	{Symbol: "TBD", WireSymbol: "TBD", Precision: 3, NAI: naiDollar},
	{Symbol: "VESTS", WireSymbol: "VESTS", Precision: 6, NAI: naiVests},
}

var (
	Steem = Params{
		Name:         "steem",
		Prefix:       "STM",
		Assets:       steemAssets,
		ConfigPrefix: "STEEM_",
	}
	Hive = Params{
		Name:         "hive",
		ChainID:      mustBytes32("beeab0de00000000000000000000000000000000000000000000000000000000"),
		Prefix:       "STM",
		Assets:       hiveAssets,
		ConfigPrefix: "HIVE_",
	}
	HiveTestnet = Params{
		Name:         "hive-testnet",
		ChainID:      mustBytes32("18dcf0a285365fc58b71f18b3d3fec954aa0c141c44e4e5cb4cf777b9eab274e"),
		Prefix:       "TST",
		Assets:       testAssets,
		ConfigPrefix: "HIVE_",
	}
	// SteemLegacy is a pre-appbase Steem node. Its config keys use the
	// STEEMIT_ prefix.
	SteemLegacy = Params{
		Name:         "steem-legacy",
		Prefix:       "STM",
		Assets:       steemAssets,
		ConfigPrefix: "STEEMIT_",
	}
)

// Known lists the networks FromConfig can identify, in lookup order.
var Known = []Params{Hive, Steem, HiveTestnet, SteemLegacy}

func mustBytes32(s string) Bytes32 {
	b, err := ParseBytes32(s)
	if err != nil {
		panic(err)
	}
	return b
}

// Lookup returns the Known params with the given name.
func Lookup(name string) (Params, bool) {
	for _, p := range Known {
		if p.Name == name {
			return p, true
		}
	}
	return Params{}, false
}

// FromConfig selects Params from a node's get_config result. The config key
// prefix picks the family and the reported chain ID and address prefix pick
// the network. A chain ID not in Known yields new Params carrying the
// family's assets.
func FromConfig(config map[string]json.RawMessage) (Params, error) {
	var family *Params
	for _, prefix := range []string{"HIVE_", "STEEM_", "STEEMIT_"} {
		if _, ok := config[prefix+"BLOCKCHAIN_VERSION"]; ok {
			for i := range Known {
				if Known[i].ConfigPrefix == prefix {
					family = &Known[i]
					break
				}
			}
			break
		}
	}
	if family == nil {
		return Params{}, fmt.Errorf("chain: no known *_BLOCKCHAIN_VERSION in config")
	}
	p := *family

	var chainID, addressPrefix string
	if raw, ok := config[p.ConfigPrefix+"CHAIN_ID"]; ok {
		if err := json.Unmarshal(raw, &chainID); err != nil {
			return Params{}, fmt.Errorf("chain: %vCHAIN_ID: %w",
				p.ConfigPrefix, err)
		}
	}
	if raw, ok := config[p.ConfigPrefix+"ADDRESS_PREFIX"]; ok {
		if err := json.Unmarshal(raw, &addressPrefix); err != nil {
			return Params{}, fmt.Errorf("chain: %vADDRESS_PREFIX: %w",
				p.ConfigPrefix, err)
		}
	}
	if chainID == "" {
		return p, nil
	}
	id, err := ParseBytes32(chainID)
	if err != nil {
		return Params{}, fmt.Errorf("chain: %vCHAIN_ID: %w",
			p.ConfigPrefix, err)
	}
	for _, k := range Known {
		if k.ChainID == id && k.ConfigPrefix == p.ConfigPrefix &&
			(addressPrefix == "" || k.Prefix == addressPrefix) {
			return k, nil
		}
	}
	p.Name = strings.ToLower(strings.TrimSuffix(p.ConfigPrefix, "_")) +
		"-" + id.String()[:8]
	p.ChainID = id
	if addressPrefix != "" {
		p.Prefix = addressPrefix
	}
	return p, nil
}
