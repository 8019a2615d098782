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

// Kind is the wire type of an operation field.
type Kind uint8

const (
	KindString Kind = iota
	KindBool
	KindUint16
	KindUint32
	KindInt16
	KindAmount
	KindPrice
	KindPublicKey
	KindOptionalPublicKey
	KindAuthority
	KindOptionalAuthority
	// KindAccountSet is a sorted set of account names.
	KindAccountSet
	// KindInt64Set is a sorted set of int64 ids.
	KindInt64Set
	KindTime
	// KindBytes is a varint length prefixed byte string, hex in JSON.
	KindBytes
	// KindExtensions is a future_extensions list. Only the empty list is
	// supported.
	KindExtensions
)

var kindNames = [...]string{
	"string", "bool", "uint16", "uint32", "int16", "asset", "price",
	"public_key", "optional<public_key>", "authority", "optional<authority>",
	"flat_set<account_name>", "flat_set<int64>", "time_point_sec", "bytes",
	"extensions",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return "invalid"
}

// Field is one member of an operation payload, in wire order. Alias is the
// Steem name of a field that Hive renamed.
type Field struct {
	Name  string
	Alias string
	Kind  Kind
}

func str(name string) Field { return Field{Name: name, Kind: KindString} }

// schemas maps a Type to its payload fields in serialization order.
var schemas = map[Type][]Field{
	Vote: {
		str("voter"), str("author"), str("permlink"),
		{Name: "weight", Kind: KindInt16},
	},
	Comment: {
		str("parent_author"), str("parent_permlink"), str("author"),
		str("permlink"), str("title"), str("body"), str("json_metadata"),
	},
	Transfer: {
		str("from"), str("to"), {Name: "amount", Kind: KindAmount},
		str("memo"),
	},
	TransferToVesting: {
		str("from"), str("to"), {Name: "amount", Kind: KindAmount},
	},
	WithdrawVesting: {
		str("account"), {Name: "vesting_shares", Kind: KindAmount},
	},
	LimitOrderCreate: {
		str("owner"),
		{Name: "orderid", Kind: KindUint32},
		{Name: "amount_to_sell", Kind: KindAmount},
		{Name: "min_to_receive", Kind: KindAmount},
		{Name: "fill_or_kill", Kind: KindBool},
		{Name: "expiration", Kind: KindTime},
	},
	LimitOrderCancel: {
		str("owner"), {Name: "orderid", Kind: KindUint32},
	},
	FeedPublish: {
		str("publisher"), {Name: "exchange_rate", Kind: KindPrice},
	},
	Convert: {
		str("owner"),
		{Name: "requestid", Kind: KindUint32},
		{Name: "amount", Kind: KindAmount},
	},
	AccountCreate: {
		{Name: "fee", Kind: KindAmount},
		str("creator"), str("new_account_name"),
		{Name: "owner", Kind: KindAuthority},
		{Name: "active", Kind: KindAuthority},
		{Name: "posting", Kind: KindAuthority},
		{Name: "memo_key", Kind: KindPublicKey},
		str("json_metadata"),
	},
	AccountUpdate: {
		str("account"),
		{Name: "owner", Kind: KindOptionalAuthority},
		{Name: "active", Kind: KindOptionalAuthority},
		{Name: "posting", Kind: KindOptionalAuthority},
		{Name: "memo_key", Kind: KindPublicKey},
		str("json_metadata"),
	},
	AccountWitnessVote: {
		str("account"), str("witness"), {Name: "approve", Kind: KindBool},
	},
	AccountWitnessProxy: {
		str("account"), str("proxy"),
	},
	Custom: {
		{Name: "required_auths", Kind: KindAccountSet},
		{Name: "id", Kind: KindUint16},
		{Name: "data", Kind: KindBytes},
	},
	DeleteComment: {
		str("author"), str("permlink"),
	},
	CustomJSON: {
		{Name: "required_auths", Kind: KindAccountSet},
		{Name: "required_posting_auths", Kind: KindAccountSet},
		str("id"), str("json"),
	},
	CommentOptions: {
		str("author"), str("permlink"),
		{Name: "max_accepted_payout", Kind: KindAmount},
		{Name: "percent_hbd", Alias: "percent_steem_dollars", Kind: KindUint16},
		{Name: "allow_votes", Kind: KindBool},
		{Name: "allow_curation_rewards", Kind: KindBool},
		{Name: "extensions", Kind: KindExtensions},
	},
	SetWithdrawVestingRoute: {
		str("from_account"), str("to_account"),
		{Name: "percent", Kind: KindUint16},
		{Name: "auto_vest", Kind: KindBool},
	},
	ClaimAccount: {
		str("creator"),
		{Name: "fee", Kind: KindAmount},
		{Name: "extensions", Kind: KindExtensions},
	},
	CreateClaimedAccount: {
		str("creator"), str("new_account_name"),
		{Name: "owner", Kind: KindAuthority},
		{Name: "active", Kind: KindAuthority},
		{Name: "posting", Kind: KindAuthority},
		{Name: "memo_key", Kind: KindPublicKey},
		str("json_metadata"),
		{Name: "extensions", Kind: KindExtensions},
	},
	ChangeRecoveryAccount: {
		str("account_to_recover"), str("new_recovery_account"),
		{Name: "extensions", Kind: KindExtensions},
	},
	TransferToSavings: {
		str("from"), str("to"), {Name: "amount", Kind: KindAmount},
		str("memo"),
	},
	TransferFromSavings: {
		str("from"),
		{Name: "request_id", Kind: KindUint32},
		str("to"),
		{Name: "amount", Kind: KindAmount},
		str("memo"),
	},
	CancelTransferFromSavings: {
		str("from"), {Name: "request_id", Kind: KindUint32},
	},
	DeclineVotingRights: {
		str("account"), {Name: "decline", Kind: KindBool},
	},
	ClaimRewardBalance: {
		str("account"),
		{Name: "reward_hive", Alias: "reward_steem", Kind: KindAmount},
		{Name: "reward_hbd", Alias: "reward_sbd", Kind: KindAmount},
		{Name: "reward_vests", Kind: KindAmount},
	},
	DelegateVestingShares: {
		str("delegator"), str("delegatee"),
		{Name: "vesting_shares", Kind: KindAmount},
	},
	AccountCreateWithDelegation: {
		{Name: "fee", Kind: KindAmount},
		{Name: "delegation", Kind: KindAmount},
		str("creator"), str("new_account_name"),
		{Name: "owner", Kind: KindAuthority},
		{Name: "active", Kind: KindAuthority},
		{Name: "posting", Kind: KindAuthority},
		{Name: "memo_key", Kind: KindPublicKey},
		str("json_metadata"),
		{Name: "extensions", Kind: KindExtensions},
	},
	AccountUpdate2: {
		str("account"),
		{Name: "owner", Kind: KindOptionalAuthority},
		{Name: "active", Kind: KindOptionalAuthority},
		{Name: "posting", Kind: KindOptionalAuthority},
		{Name: "memo_key", Kind: KindOptionalPublicKey},
		str("json_metadata"), str("posting_json_metadata"),
		{Name: "extensions", Kind: KindExtensions},
	},
	CreateProposal: {
		str("creator"), str("receiver"),
		{Name: "start_date", Kind: KindTime},
		{Name: "end_date", Kind: KindTime},
		{Name: "daily_pay", Kind: KindAmount},
		str("subject"), str("permlink"),
		{Name: "extensions", Kind: KindExtensions},
	},
	UpdateProposalVotes: {
		str("voter"),
		{Name: "proposal_ids", Kind: KindInt64Set},
		{Name: "approve", Kind: KindBool},
		{Name: "extensions", Kind: KindExtensions},
	},
	RemoveProposal: {
		str("proposal_owner"),
		{Name: "proposal_ids", Kind: KindInt64Set},
		{Name: "extensions", Kind: KindExtensions},
	},
	CollateralizedConvert: {
		str("owner"),
		{Name: "requestid", Kind: KindUint32},
		{Name: "amount", Kind: KindAmount},
	},
	RecurrentTransfer: {
		str("from"), str("to"),
		{Name: "amount", Kind: KindAmount},
		str("memo"),
		{Name: "recurrence", Kind: KindUint16},
		{Name: "executions", Kind: KindUint16},
		{Name: "extensions", Kind: KindExtensions},
	},
}

// Schema returns the payload fields of t in wire order, or false if t has
// no binary schema.
func Schema(t Type) ([]Field, bool) {
	s, ok := schemas[t]
	return s, ok
}
