package types

import "fmt"

// Op is the 32-bit operation tag that prefixes every message body.
type Op uint32

// Pool protocol.
const (
	OpDeposit            Op = 0x47d54391
	OpDeployController   Op = 0xb27edcad
	OpTouch              Op = 0x4bc7c2df
	OpRequestLoan        Op = 0xe642c965
	OpCredit             Op = 0x1690c604
	OpLoanRepayment      Op = 0xdfdca27b
	OpSetDepositSettings Op = 0x9bf5561c
	OpSetGovernanceFee   Op = 0x2aaa96a0
	OpSetLoanBounds      Op = 0x4c2f7e41
	OpSetInterest        Op = 0xc9f04485
	OpHalt               Op = 0x139a1b4e
	OpUnhalt             Op = 0x7247e7a5
	OpDonate             Op = 0x73affe21
	OpRoundStats         Op = 0xc1344900
	OpRepaymentAccepted  Op = 0x5d2b1e0a
)

// Controller protocol.
const (
	OpApprove             Op = 0x7b4b42e6
	OpDisapprove          Op = 0xe8a0abfe
	OpNewStake            Op = 0x4e73744b
	OpNewStakeOk          Op = 0xf374484c
	OpNewStakeError       Op = 0xee6f454c
	OpRecoverStake        Op = 0x47657424
	OpRecoverStakeOk      Op = 0xf96f7324
	OpRecoverStakeError   Op = 0xfffffffe
	OpUpdateValidatorHash Op = 0xf0fd2250
	OpReturnUnusedLoan    Op = 0xed7378a6
	OpTopUp               Op = 0xd372158c
	OpWithdrawValidator   Op = 0x8efed779
)

// Payout protocol.
const (
	OpCollectionInit    Op = 0xf5aa8943
	OpMintVoucher       Op = 0x1674b0a0
	OpItemInit          Op = 0x5c1a9d67
	OpOwnershipAssigned Op = 0x05138d91
	OpStartDistribution Op = 0x1140a64f
	OpBurnVoucher       Op = 0x41f7a5d6
	OpVoucherBurned     Op = 0xed58b0b2
	OpBurnConfirm       Op = 0x2e04891a
	OpDistributedAsset  Op = 0xdb3b8abd
	OpExcesses          Op = 0xd53276db
)

// Token ledger protocol.
const (
	OpJettonMint           Op = 0x642b7d07
	OpJettonTransfer       Op = 0x0f8a7ea5
	OpTransferNotification Op = 0x7362d09c
	OpJettonBurn           Op = 0x595f07bc
	OpBurnNotification     Op = 0x7bdd97de
)

var opNames = map[Op]string{
	OpDeposit:              "deposit",
	OpDeployController:     "deploy_controller",
	OpTouch:                "touch",
	OpRequestLoan:          "request_loan",
	OpCredit:               "credit",
	OpLoanRepayment:        "loan_repayment",
	OpSetDepositSettings:   "set_deposit_settings",
	OpSetGovernanceFee:     "set_governance_fee",
	OpSetLoanBounds:        "set_loan_bounds",
	OpSetInterest:          "set_interest",
	OpHalt:                 "halt",
	OpUnhalt:               "unhalt",
	OpDonate:               "donate",
	OpRoundStats:           "round_stats",
	OpRepaymentAccepted:    "repayment_accepted",
	OpApprove:              "approve",
	OpDisapprove:           "disapprove",
	OpNewStake:             "new_stake",
	OpNewStakeOk:           "new_stake_ok",
	OpNewStakeError:        "new_stake_error",
	OpRecoverStake:         "recover_stake",
	OpRecoverStakeOk:       "recover_stake_ok",
	OpRecoverStakeError:    "recover_stake_error",
	OpUpdateValidatorHash:  "update_validator_hash",
	OpReturnUnusedLoan:     "return_unused_loan",
	OpTopUp:                "top_up",
	OpWithdrawValidator:    "withdraw_validator",
	OpCollectionInit:       "collection_init",
	OpMintVoucher:          "mint_voucher",
	OpItemInit:             "item_init",
	OpOwnershipAssigned:    "ownership_assigned",
	OpStartDistribution:    "start_distribution",
	OpBurnVoucher:          "burn_voucher",
	OpVoucherBurned:        "voucher_burned",
	OpBurnConfirm:          "burn_confirm",
	OpDistributedAsset:     "distributed_asset",
	OpExcesses:             "excesses",
	OpJettonMint:           "jetton_mint",
	OpJettonTransfer:       "jetton_transfer",
	OpTransferNotification: "transfer_notification",
	OpJettonBurn:           "jetton_burn",
	OpBurnNotification:     "burn_notification",
}

func (o Op) String() string {
	if name, ok := opNames[o]; ok {
		return name
	}
	return fmt.Sprintf("op(0x%08x)", uint32(o))
}
