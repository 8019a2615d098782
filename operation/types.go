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
	"fmt"
	"strings"
)

// Type is the variant tag of an operation.
type Type uint16

// Regular operations. These may be signed and broadcast.
const (
	Vote Type = iota
	Comment
	Transfer
	TransferToVesting
	WithdrawVesting
	LimitOrderCreate
	LimitOrderCancel
	FeedPublish
	Convert
	AccountCreate
	AccountUpdate
	WitnessUpdate
	AccountWitnessVote
	AccountWitnessProxy
	Pow
	Custom
	ReportOverProduction
	DeleteComment
	CustomJSON
	CommentOptions
	SetWithdrawVestingRoute
	LimitOrderCreate2
	ClaimAccount
	CreateClaimedAccount
	RequestAccountRecovery
	RecoverAccount
	ChangeRecoveryAccount
	EscrowTransfer
	EscrowDispute
	EscrowRelease
	Pow2
	EscrowApprove
	TransferToSavings
	TransferFromSavings
	CancelTransferFromSavings
	CustomBinary
	DeclineVotingRights
	ResetAccount
	SetResetAccount
	ClaimRewardBalance
	DelegateVestingShares
	AccountCreateWithDelegation
	WitnessSetProperties
	AccountUpdate2
	CreateProposal
	UpdateProposalVotes
	RemoveProposal
	UpdateProposal
	CollateralizedConvert
	RecurrentTransfer
)

// FirstVirtual is the id of the first virtual operation. Virtual operations
// are produced by the chain itself and only ever observed in block history.
const FirstVirtual Type = 50

var names = [...]string{
	"vote",
	"comment",
	"transfer",
	"transfer_to_vesting",
	"withdraw_vesting",
	"limit_order_create",
	"limit_order_cancel",
	"feed_publish",
	"convert",
	"account_create",
	"account_update",
	"witness_update",
	"account_witness_vote",
	"account_witness_proxy",
	"pow",
	"custom",
	"report_over_production",
	"delete_comment",
	"custom_json",
	"comment_options",
	"set_withdraw_vesting_route",
	"limit_order_create2",
	"claim_account",
	"create_claimed_account",
	"request_account_recovery",
	"recover_account",
	"change_recovery_account",
	"escrow_transfer",
	"escrow_dispute",
	"escrow_release",
	"pow2",
	"escrow_approve",
	"transfer_to_savings",
	"transfer_from_savings",
	"cancel_transfer_from_savings",
	"custom_binary",
	"decline_voting_rights",
	"reset_account",
	"set_reset_account",
	"claim_reward_balance",
	"delegate_vesting_shares",
	"account_create_with_delegation",
	"witness_set_properties",
	"account_update2",
	"create_proposal",
	"update_proposal_votes",
	"remove_proposal",
	"update_proposal",
	"collateralized_convert",
	"recurrent_transfer",

	// virtual
	"fill_convert_request",
	"author_reward",
	"curation_reward",
	"comment_reward",
	"liquidity_reward",
	"interest",
	"fill_vesting_withdraw",
	"fill_order",
	"shutdown_witness",
	"fill_transfer_from_savings",
	"hardfork",
	"comment_payout_update",
	"return_vesting_delegation",
	"comment_benefactor_reward",
	"producer_reward",
	"clear_null_account_balance",
	"proposal_pay",
	"sps_fund",
	"hardfork_hive",
	"hardfork_hive_restore",
	"delayed_voting",
	"consolidate_treasury_balance",
	"effective_comment_vote",
	"ineffective_delete_comment",
	"sps_convert",
	"expired_account_notification",
	"changed_recovery_account",
	"transfer_to_vesting_completed",
	"pow_reward",
	"vesting_shares_split",
	"account_created",
	"fill_collateralized_convert_request",
	"system_warning",
	"fill_recurrent_transfer",
	"failed_recurrent_transfer",
}

var ids = func() map[string]Type {
	m := make(map[string]Type, len(names))
	for id, name := range names {
		m[name] = Type(id)
	}
	return m
}()

// AppbaseSuffix is appended to operation names in the appbase JSON form.
const AppbaseSuffix = "_operation"

// NumTypes is the number of known operation ids.
const NumTypes = len(names)

// TypeByName returns the Type for name. Both "transfer" and
// "transfer_operation" are accepted.
func TypeByName(name string) (Type, bool) {
	t, ok := ids[strings.TrimSuffix(name, AppbaseSuffix)]
	return t, ok
}

// IsKnown reports whether t is in the id table.
func (t Type) IsKnown() bool { return int(t) < len(names) }

// IsVirtual reports whether t is a virtual operation.
func (t Type) IsVirtual() bool { return t >= FirstVirtual }

// String returns the operation name, e.g. "transfer".
func (t Type) String() string {
	if !t.IsKnown() {
		return fmt.Sprintf("unknown_operation_%d", uint16(t))
	}
	return names[t]
}

// AppbaseName returns the operation name in the appbase JSON form, e.g.
// "transfer_operation".
func (t Type) AppbaseName() string {
	return t.String() + AppbaseSuffix
}
