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

package operation_test

import (
	"encoding/hex"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/hivekit/hivekit/chain"
	"github.com/hivekit/hivekit/keys"
	. "github.com/hivekit/hivekit/operation"
	"github.com/hivekit/hivekit/wire"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var transferFields = Fields{
	"from":   "foo",
	"to":     "baar",
	"amount": "111.110 STEEM",
	"memo":   "Fooo",
}

const transferHex = "02" + "03666f6f" + "0462616172" +
	"06b2010000000000" + "03" + "535445454d0000" + "04466f6f6f"

func TestTransferBytes(t *testing.T) {
	op, err := New(chain.Steem, "transfer", transferFields)
	require.NoError(t, err)
	b, err := op.Bytes()
	require.NoError(t, err)
	assert.Equal(t, transferHex, hex.EncodeToString(b))

	data, err := json.Marshal(op)
	require.NoError(t, err)
	assert.JSONEq(t, `["transfer", {"from": "foo", "to": "baar",
		"amount": "111.110 STEEM", "memo": "Fooo"}]`, string(data))

	data, err = op.MarshalAppbase()
	require.NoError(t, err)
	assert.JSONEq(t, `{"type": "transfer_operation", "value": {
		"from": "foo", "to": "baar", "memo": "Fooo",
		"amount": {"amount": "111110", "precision": 3,
			"nai": "@@000000021"}}}`, string(data))
}

func TestHiveWireSymbol(t *testing.T) {
	fields := Fields{"from": "foo", "to": "baar", "amount": "111.110 HIVE",
		"memo": "Fooo"}
	op, err := New(chain.Hive, "transfer", fields)
	require.NoError(t, err)
	b, err := op.Bytes()
	require.NoError(t, err)
	assert.Equal(t, transferHex, hex.EncodeToString(b))

	back, err := Decode(wire.NewDecoder(b), chain.Hive)
	require.NoError(t, err)
	amount, _ := back.Get("amount")
	assert.Equal(t, "111.110 HIVE", amount.(Amount).String())
}

var amountTests = []struct {
	In  string
	Out string
}{
	{In: "0.9999 STEEM", Out: "0.999 STEEM"},
	{In: "111.110 STEEM", Out: "111.110 STEEM"},
	{In: "1 SBD", Out: "1.000 SBD"},
	{In: ".5 STEEM", Out: "0.500 STEEM"},
	{In: "-0.5 SBD", Out: "-0.500 SBD"},
	{In: "123.4567891 VESTS", Out: "123.456789 VESTS"},
	{In: "0.000 STEEM", Out: "0.000 STEEM"},
}

func TestAmountPrecision(t *testing.T) {
	for _, test := range amountTests {
		a, err := ParseAmount(test.In, chain.Steem)
		require.NoError(t, err, test.In)
		assert.Equal(t, test.Out, a.String(), test.In)
	}
	for _, in := range []string{"", "1.000", "1.000 FOO", "1.0.0 STEEM",
		"1e3 STEEM", "99999999999999999999 STEEM"} {
		_, err := ParseAmount(in, chain.Steem)
		assert.Error(t, err, in)
	}
}

func TestAmountForms(t *testing.T) {
	assert := assert.New(t)
	base := Fields{"from": "a", "to": "b", "memo": ""}
	forms := []interface{}{
		"1.500 HBD",
		map[string]interface{}{"amount": "1500", "precision": 3,
			"nai": "@@000000013"},
		[]interface{}{"1500", json.Number("3"), "@@000000013"},
	}
	var encoded []string
	for _, form := range forms {
		f := Fields{"amount": form}
		for k, v := range base {
			f[k] = v
		}
		op, err := New(chain.Hive, "transfer", f)
		require.NoError(t, err)
		b, err := op.Bytes()
		require.NoError(t, err)
		encoded = append(encoded, hex.EncodeToString(b))
	}
	assert.Equal(encoded[0], encoded[1])
	assert.Equal(encoded[0], encoded[2])

	_, err := New(chain.Hive, "transfer", Fields{"from": "a", "to": "b",
		"memo": "", "amount": map[string]interface{}{"amount": "1500",
			"precision": 6, "nai": "@@000000013"}})
	assert.Error(err)
}

func testKey(name string) keys.PublicKey {
	return keys.FromPassword(name, "owner", "pw").PublicKey("STM")
}

func TestAuthoritySort(t *testing.T) {
	a, b, c := testKey("a"), testKey("b"), testKey("c")
	auth1 := Authority{WeightThreshold: 2,
		AccountAuths: []AccountAuth{{"zed", 1}, {"alice", 1}, {"bob", 1}},
		KeyAuths:     []KeyAuth{{a, 1}, {b, 1}, {c, 1}}}
	auth2 := Authority{WeightThreshold: 2,
		AccountAuths: []AccountAuth{{"bob", 1}, {"zed", 1}, {"alice", 1}},
		KeyAuths:     []KeyAuth{{c, 1}, {a, 1}, {b, 1}}}

	encode := func(auth Authority) string {
		op, err := New(chain.Steem, "account_update", Fields{
			"account":       "alice",
			"owner":         auth,
			"memo_key":      a,
			"json_metadata": "",
		})
		require.NoError(t, err)
		b, err := op.Bytes()
		require.NoError(t, err)
		again, _ := op.Bytes()
		assert.Equal(t, b, again)
		return hex.EncodeToString(b)
	}
	assert.Equal(t, encode(auth1), encode(auth2))

	sorted := auth2.Sorted()
	assert.Equal(t, []string{"alice", "bob", "zed"}, []string{
		sorted.AccountAuths[0].Account, sorted.AccountAuths[1].Account,
		sorted.AccountAuths[2].Account})
	assert.Equal(t, sorted, sorted.Sorted())
}

func TestAuthorityValidate(t *testing.T) {
	a := testKey("a")
	err := Authority{WeightThreshold: 3,
		KeyAuths: []KeyAuth{{a, 1}}, AccountAuths: []AccountAuth{{"x", 1}},
	}.Validate()
	assert.True(t, errors.Is(err, ErrUnsatisfiableAuthority))

	err = Authority{WeightThreshold: 1,
		KeyAuths: []KeyAuth{{a, 1}, {a, 1}}}.Validate()
	assert.Error(t, err)

	_, err = New(chain.Steem, "account_update", Fields{
		"account": "alice", "memo_key": a, "json_metadata": "",
		"active": map[string]interface{}{"weight_threshold": 5,
			"account_auths": []interface{}{},
			"key_auths": []interface{}{
				[]interface{}{a.String(), 1}}},
	})
	var fe FieldError
	require.True(t, errors.As(err, &fe))
	assert.Equal(t, "active", fe.Field)
	assert.ErrorIs(t, err, ErrUnsatisfiableAuthority)
}

func roundTrip(t *testing.T, op Operation) {
	t.Helper()
	b, err := op.Bytes()
	require.NoError(t, err)
	d := wire.NewDecoder(b)
	back, err := Decode(d, chain.Steem)
	require.NoError(t, err)
	assert.Equal(t, 0, d.Remaining())
	assert.Equal(t, op.Type, back.Type)
	b2, err := back.Bytes()
	require.NoError(t, err)
	assert.Equal(t, b, b2)
	j1, _ := json.Marshal(op)
	j2, _ := json.Marshal(back)
	assert.JSONEq(t, string(j1), string(j2))
	assert.Equal(t, op, back)
}

func TestRoundTrip(t *testing.T) {
	a, b := testKey("a"), testKey("b")
	auth := Authority{WeightThreshold: 1, KeyAuths: []KeyAuth{{a, 1}}}
	for _, test := range []struct {
		Name   string
		Fields Fields
	}{{
		Name:   "transfer",
		Fields: transferFields,
	}, {
		Name: "vote",
		Fields: Fields{"voter": "v", "author": "a", "permlink": "p",
			"weight": -10000},
	}, {
		Name: "comment",
		Fields: Fields{"parent_author": "", "parent_permlink": "tag",
			"author": "a", "permlink": "p", "title": "t", "body": "b",
			"json_metadata": "{}"},
	}, {
		Name: "limit_order_create",
		Fields: Fields{"owner": "o", "orderid": 7,
			"amount_to_sell": "1.000 STEEM", "min_to_receive": "2.000 SBD",
			"fill_or_kill": false, "expiration": "2016-04-06T08:29:27"},
	}, {
		Name: "feed_publish",
		Fields: Fields{"publisher": "w", "exchange_rate": map[string]interface{}{
			"base": "0.250 SBD", "quote": "1.000 STEEM"}},
	}, {
		Name: "account_create",
		Fields: Fields{"fee": "3.000 STEEM", "creator": "c",
			"new_account_name": "n", "owner": auth, "active": auth,
			"posting": auth, "memo_key": b, "json_metadata": ""},
	}, {
		Name: "account_update",
		Fields: Fields{"account": "n", "posting": &auth, "memo_key": b,
			"json_metadata": ""},
	}, {
		Name: "custom",
		Fields: Fields{"required_auths": []string{"b", "a"}, "id": 777,
			"data": "deadbeef"},
	}, {
		Name: "custom_json",
		Fields: Fields{"required_auths": []interface{}{},
			"required_posting_auths": []interface{}{"a"}, "id": "follow",
			"json": `["follow",{}]`},
	}, {
		Name: "comment_options",
		Fields: Fields{"author": "a", "permlink": "p",
			"max_accepted_payout": "1000000.000 SBD", "percent_hbd": 10000,
			"allow_votes": true, "allow_curation_rewards": true,
			"extensions": []interface{}{}},
	}, {
		Name: "claim_reward_balance",
		Fields: Fields{"account": "a", "reward_hive": "0.000 STEEM",
			"reward_hbd": "0.001 SBD", "reward_vests": "1.000000 VESTS"},
	}, {
		Name: "account_update2",
		Fields: Fields{"account": "a", "json_metadata": "",
			"posting_json_metadata": "{}", "memo_key": a},
	}, {
		Name: "update_proposal_votes",
		Fields: Fields{"voter": "a", "proposal_ids": []interface{}{3, 1, 2},
			"approve": true},
	}, {
		Name: "create_proposal",
		Fields: Fields{"creator": "a", "receiver": "b",
			"start_date": time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC),
			"end_date":   "2021-01-01T00:00:00", "daily_pay": "10.000 SBD",
			"subject": "s", "permlink": "p"},
	}, {
		Name: "recurrent_transfer",
		Fields: Fields{"from": "a", "to": "b", "amount": "1.000 STEEM",
			"memo": "m", "recurrence": 24, "executions": 3},
	}} {
		t.Run(test.Name, func(t *testing.T) {
			op, err := New(chain.Steem, test.Name, test.Fields)
			require.NoError(t, err)
			roundTrip(t, op)
		})
	}
}

func TestFieldErrors(t *testing.T) {
	for _, test := range []struct {
		Name   string
		Op     string
		Fields Fields
		Err    string
	}{{
		Name:   "missing",
		Op:     "transfer",
		Fields: Fields{"from": "a", "to": "b", "amount": "1.000 STEEM"},
		Err:    "transfer.memo: missing",
	}, {
		Name: "unknown field",
		Op:   "delete_comment",
		Fields: Fields{"author": "a", "permlink": "p",
			"extra": true},
		Err: "delete_comment.extra: unknown field",
	}, {
		Name:   "type",
		Op:     "vote",
		Fields: Fields{"voter": "a", "author": 1, "permlink": "p", "weight": 1},
		Err:    "vote.author: cannot use int as string",
	}, {
		Name: "range",
		Op:   "vote",
		Fields: Fields{"voter": "a", "author": "b", "permlink": "p",
			"weight": 40000},
		Err: "vote.weight: 40000 out of range for int16",
	}, {
		Name: "float",
		Op:   "limit_order_cancel",
		Fields: Fields{"owner": "a", "orderid": 1.5},
		Err:    "limit_order_cancel.orderid: 1.5 is not an integer",
	}, {
		Name: "extensions",
		Op:   "claim_account",
		Fields: Fields{"creator": "a", "fee": "0.000 STEEM",
			"extensions": []interface{}{1}},
		Err: "claim_account.extensions: only empty extensions are supported",
	}} {
		t.Run(test.Name, func(t *testing.T) {
			_, err := New(chain.Steem, test.Op, test.Fields)
			assert.EqualError(t, err, test.Err)
		})
	}
}

func TestRegistry(t *testing.T) {
	assert := assert.New(t)
	for id := 0; id < NumTypes; id++ {
		typ := Type(id)
		back, ok := TypeByName(typ.String())
		assert.True(ok)
		assert.Equal(typ, back)
		assert.Equal(id >= 50, typ.IsVirtual(), typ.String())
	}
	assert.Equal(Type(2), Transfer)
	assert.Equal(Type(18), CustomJSON)
	assert.Equal(Type(49), RecurrentTransfer)
	typ, ok := TypeByName("producer_reward_operation")
	assert.True(ok)
	assert.Equal(Type(64), typ)
	_, ok = TypeByName("nope")
	assert.False(ok)

	_, err := New(chain.Steem, "nope", nil)
	assert.EqualError(err, `unknown operation "nope"`)
	_, err = New(chain.Steem, "author_reward", Fields{})
	assert.ErrorIs(err, ErrVirtualOperation)
	_, err = New(chain.Steem, "pow", Fields{})
	assert.ErrorIs(err, ErrNoSchema)

	var e wire.Encoder
	assert.ErrorIs(Operation{Type: FirstVirtual + 1}.Encode(&e),
		ErrVirtualOperation)
	assert.Equal(0, e.Len())
}

func TestDecodeUnknownID(t *testing.T) {
	var e wire.Encoder
	e.Varint(200)
	_, err := Decode(wire.NewDecoder(e.Bytes()), chain.Steem)
	assert.Equal(t, UnknownOperationIDError(200), err)
	assert.EqualError(t, err, "unknown operation id 200")

	_, err = Decode(wire.NewDecoder([]byte{0x02, 0x03, 'f'}), chain.Steem)
	var fe FieldError
	require.True(t, errors.As(err, &fe))
	assert.Equal(t, "from", fe.Field)
	assert.ErrorIs(t, err, wire.ErrShortBuffer)
}

func TestRaw(t *testing.T) {
	assert := assert.New(t)
	var legacy, appbase Raw
	require.NoError(t, json.Unmarshal([]byte(`["transfer", {"from": "foo",
		"to": "baar", "amount": "111.110 STEEM", "memo": "Fooo"}]`), &legacy))
	require.NoError(t, json.Unmarshal([]byte(`{"type": "transfer_operation",
		"value": {"from": "foo", "to": "baar", "memo": "Fooo", "amount":
		{"amount": "111110", "precision": 3, "nai": "@@000000021"}}}`),
		&appbase))
	assert.Equal("transfer", legacy.Name)
	assert.Equal("transfer", appbase.Name)

	op1, err := FromRaw(chain.Steem, legacy)
	require.NoError(t, err)
	op2, err := FromRaw(chain.Steem, appbase)
	require.NoError(t, err)
	assert.Equal(op1, op2)

	var virtual Raw
	require.NoError(t, json.Unmarshal([]byte(`{"type":
		"producer_reward_operation", "value": {"producer": "w",
		"vesting_shares": "1.000000 VESTS"}}`), &virtual))
	typ, ok := virtual.Type()
	assert.True(ok)
	assert.True(typ.IsVirtual())
	fields, err := virtual.Fields()
	require.NoError(t, err)
	assert.Equal("w", fields["producer"])
	_, err = FromRaw(chain.Steem, virtual)
	assert.ErrorIs(err, ErrVirtualOperation)

	data, err := json.Marshal(virtual)
	require.NoError(t, err)
	assert.JSONEq(`["producer_reward", {"producer": "w",
		"vesting_shares": "1.000000 VESTS"}]`, string(data))

	assert.Error(json.Unmarshal([]byte(`"transfer"`), &virtual))
	assert.Error(json.Unmarshal([]byte(`["transfer"]`), &virtual))
}

func TestStringSetCanonical(t *testing.T) {
	op, err := New(chain.Steem, "custom_json", Fields{
		"required_auths":         []string{"b", "a"},
		"required_posting_auths": nil,
		"id":                     "x", "json": "{}"})
	require.NoError(t, err)
	v, _ := op.Get("required_auths")
	assert.Equal(t, []string{"a", "b"}, v)

	_, err = New(chain.Steem, "custom_json", Fields{
		"required_auths":         []string{"a", "a"},
		"required_posting_auths": nil,
		"id":                     "x", "json": "{}"})
	assert.EqualError(t, err, `custom_json.required_auths: duplicate account "a"`)
}

func TestAlias(t *testing.T) {
	op, err := New(chain.Steem, "comment_options", Fields{"author": "a",
		"permlink": "p", "max_accepted_payout": "1.000 SBD",
		"percent_steem_dollars": 5000, "allow_votes": true,
		"allow_curation_rewards": false})
	require.NoError(t, err)
	v, ok := op.Get("percent_hbd")
	assert.True(t, ok)
	assert.Equal(t, uint16(5000), v)
	data, _ := json.Marshal(op)
	assert.Contains(t, string(data), `"percent_steem_dollars":5000`)
	assert.Contains(t, string(data), `"extensions":[]`)
}

func TestDecodeSetCount(t *testing.T) {
	// custom_json claiming 0xffffffff required_auths.
	_, err := Decode(wire.NewDecoder(
		[]byte{18, 0xff, 0xff, 0xff, 0xff, 0x0f}), chain.Hive)
	var fe FieldError
	require.True(t, errors.As(err, &fe), "%v", err)
	assert.Equal(t, CustomJSON, fe.Op)
	assert.Equal(t, "required_auths", fe.Field)
	assert.ErrorIs(t, err, wire.ErrShortBuffer)

	// Two ids need 16 bytes, only 15 follow.
	var e wire.Encoder
	e.Varint(uint32(RemoveProposal))
	e.String("alice")
	e.Varint(2)
	e.Raw(make([]byte, 15))
	_, err = Decode(wire.NewDecoder(e.Bytes()), chain.Hive)
	require.True(t, errors.As(err, &fe), "%v", err)
	assert.Equal(t, "proposal_ids", fe.Field)
	assert.ErrorIs(t, err, wire.ErrShortBuffer)

	e = wire.Encoder{}
	e.Varint(uint32(UpdateProposalVotes))
	e.String("alice")
	e.Varint(0xffffffff)
	_, err = Decode(wire.NewDecoder(e.Bytes()), chain.Hive)
	require.True(t, errors.As(err, &fe), "%v", err)
	assert.Equal(t, "proposal_ids", fe.Field)
	assert.ErrorIs(t, err, wire.ErrShortBuffer)
}

func TestEncodeZeroOperation(t *testing.T) {
	_, err := Operation{Type: Transfer}.Bytes()
	var fe FieldError
	require.True(t, errors.As(err, &fe), "%v", err)
	assert.Equal(t, Transfer, fe.Op)
	assert.Equal(t, "from", fe.Field)
	assert.ErrorIs(t, err, ErrMissingField)
	assert.EqualError(t, err, "transfer.from: missing")
}
