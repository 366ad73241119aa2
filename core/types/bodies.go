package types

import (
	"math/big"

	"stakepool/crypto"
)

const (
	// AddressBits is the serialized size of a standard address.
	AddressBits = 267
	flagBits    = 1
)

// CoinsBits is the serialized size of a variable-length amount: a 4-bit
// length followed by the minimal number of bytes.
func CoinsBits(v *big.Int) uint64 {
	if v == nil || v.Sign() == 0 {
		return 4
	}
	return 4 + 8*uint64((v.BitLen()+7)/8)
}

// Pool protocol.

type Deposit struct{}

func (Deposit) Op() Op         { return OpDeposit }
func (Deposit) BitLen() uint64 { return 0 }

type DeployController struct {
	ControllerID uint32
}

func (DeployController) Op() Op         { return OpDeployController }
func (DeployController) BitLen() uint64 { return 32 }

type Touch struct{}

func (Touch) Op() Op         { return OpTouch }
func (Touch) BitLen() uint64 { return 0 }

// RequestLoan is sent by the validator to its controller and forwarded by the
// controller to the pool with ControllerID and Validator filled in.
type RequestLoan struct {
	ControllerID uint32
	Validator    crypto.Address
	MinLoan      *big.Int
	MaxLoan      *big.Int
	MaxInterest  uint32
}

func (RequestLoan) Op() Op { return OpRequestLoan }
func (r RequestLoan) BitLen() uint64 {
	return 32 + AddressBits + CoinsBits(r.MinLoan) + CoinsBits(r.MaxLoan) + 16
}

// Credit grants a loan. Amount is principal plus interest owed.
type Credit struct {
	Amount *big.Int
}

func (Credit) Op() Op           { return OpCredit }
func (c Credit) BitLen() uint64 { return CoinsBits(c.Amount) }

type LoanRepayment struct {
	ControllerID uint32
	Validator    crypto.Address
	Borrowed     *big.Int
	Expected     *big.Int
	Returned     *big.Int
}

func (LoanRepayment) Op() Op { return OpLoanRepayment }
func (r LoanRepayment) BitLen() uint64 {
	return 32 + AddressBits + CoinsBits(r.Borrowed) + CoinsBits(r.Expected) + CoinsBits(r.Returned)
}

// RepaymentAccepted tells a controller the pool booked its repayment.
type RepaymentAccepted struct {
	Returned *big.Int
}

func (RepaymentAccepted) Op() Op           { return OpRepaymentAccepted }
func (r RepaymentAccepted) BitLen() uint64 { return CoinsBits(r.Returned) }

type SetDepositSettings struct {
	Optimistic   bool
	DepositsOpen bool
}

func (SetDepositSettings) Op() Op         { return OpSetDepositSettings }
func (SetDepositSettings) BitLen() uint64 { return 2 * flagBits }

type SetGovernanceFee struct {
	Fee uint32
}

func (SetGovernanceFee) Op() Op         { return OpSetGovernanceFee }
func (SetGovernanceFee) BitLen() uint64 { return 16 }

type SetLoanBounds struct {
	Min *big.Int
	Max *big.Int
}

func (SetLoanBounds) Op() Op           { return OpSetLoanBounds }
func (s SetLoanBounds) BitLen() uint64 { return CoinsBits(s.Min) + CoinsBits(s.Max) }

type SetInterest struct {
	Rate uint32
}

func (SetInterest) Op() Op         { return OpSetInterest }
func (SetInterest) BitLen() uint64 { return 16 }

type Halt struct{}

func (Halt) Op() Op         { return OpHalt }
func (Halt) BitLen() uint64 { return 0 }

type Unhalt struct{}

func (Unhalt) Op() Op         { return OpUnhalt }
func (Unhalt) BitLen() uint64 { return 0 }

type Donate struct{}

func (Donate) Op() Op         { return OpDonate }
func (Donate) BitLen() uint64 { return 0 }

// RoundStats reports a closed round to the interest manager.
type RoundStats struct {
	RoundID  uint32
	Borrowed *big.Int
	Expected *big.Int
	Returned *big.Int
	Loss     bool
	Profit   *big.Int
}

func (RoundStats) Op() Op { return OpRoundStats }
func (r RoundStats) BitLen() uint64 {
	return 32 + CoinsBits(r.Borrowed) + CoinsBits(r.Expected) + CoinsBits(r.Returned) + flagBits + CoinsBits(r.Profit)
}

// Controller protocol.

type Approve struct{}

func (Approve) Op() Op         { return OpApprove }
func (Approve) BitLen() uint64 { return 0 }

type Disapprove struct{}

func (Disapprove) Op() Op         { return OpDisapprove }
func (Disapprove) BitLen() uint64 { return 0 }

// NewStake asks the controller to stake Amount, and carries the stake from the
// controller to the election authority.
type NewStake struct {
	Amount *big.Int
}

func (NewStake) Op() Op           { return OpNewStake }
func (n NewStake) BitLen() uint64 { return CoinsBits(n.Amount) + 256 + 32 + 32 + 256 + 512 }

type NewStakeOk struct{}

func (NewStakeOk) Op() Op         { return OpNewStakeOk }
func (NewStakeOk) BitLen() uint64 { return 0 }

type NewStakeError struct {
	Reason uint32
}

func (NewStakeError) Op() Op         { return OpNewStakeError }
func (NewStakeError) BitLen() uint64 { return 32 }

type RecoverStake struct{}

func (RecoverStake) Op() Op         { return OpRecoverStake }
func (RecoverStake) BitLen() uint64 { return 0 }

type RecoverStakeOk struct{}

func (RecoverStakeOk) Op() Op         { return OpRecoverStakeOk }
func (RecoverStakeOk) BitLen() uint64 { return 0 }

type RecoverStakeError struct{}

func (RecoverStakeError) Op() Op         { return OpRecoverStakeError }
func (RecoverStakeError) BitLen() uint64 { return 0 }

type UpdateValidatorHash struct{}

func (UpdateValidatorHash) Op() Op         { return OpUpdateValidatorHash }
func (UpdateValidatorHash) BitLen() uint64 { return 0 }

type ReturnUnusedLoan struct{}

func (ReturnUnusedLoan) Op() Op         { return OpReturnUnusedLoan }
func (ReturnUnusedLoan) BitLen() uint64 { return 0 }

type TopUp struct{}

func (TopUp) Op() Op         { return OpTopUp }
func (TopUp) BitLen() uint64 { return 0 }

type WithdrawValidator struct {
	Amount *big.Int
}

func (WithdrawValidator) Op() Op           { return OpWithdrawValidator }
func (w WithdrawValidator) BitLen() uint64 { return CoinsBits(w.Amount) }

// Payout protocol.

// CollectionInit configures the asset a collection distributes. Ledger is the
// token ledger for jetton collections.
type CollectionInit struct {
	Jetton bool
	Ledger crypto.Address
}

func (CollectionInit) Op() Op         { return OpCollectionInit }
func (CollectionInit) BitLen() uint64 { return flagBits + AddressBits }

type MintVoucher struct {
	Owner crypto.Address
	Bill  *big.Int
}

func (MintVoucher) Op() Op           { return OpMintVoucher }
func (m MintVoucher) BitLen() uint64 { return AddressBits + CoinsBits(m.Bill) }

type ItemInit struct {
	Owner crypto.Address
	Bill  *big.Int
}

func (ItemInit) Op() Op           { return OpItemInit }
func (i ItemInit) BitLen() uint64 { return AddressBits + CoinsBits(i.Bill) }

type OwnershipAssigned struct {
	Index uint64
	Bill  *big.Int
}

func (OwnershipAssigned) Op() Op           { return OpOwnershipAssigned }
func (o OwnershipAssigned) BitLen() uint64 { return 64 + CoinsBits(o.Bill) }

type StartDistribution struct {
	Volume *big.Int
}

func (StartDistribution) Op() Op           { return OpStartDistribution }
func (s StartDistribution) BitLen() uint64 { return CoinsBits(s.Volume) }

type BurnVoucher struct{}

func (BurnVoucher) Op() Op         { return OpBurnVoucher }
func (BurnVoucher) BitLen() uint64 { return 0 }

type VoucherBurned struct {
	Index uint64
	Owner crypto.Address
	Bill  *big.Int
}

func (VoucherBurned) Op() Op           { return OpVoucherBurned }
func (v VoucherBurned) BitLen() uint64 { return 64 + AddressBits + CoinsBits(v.Bill) }

type BurnConfirm struct{}

func (BurnConfirm) Op() Op         { return OpBurnConfirm }
func (BurnConfirm) BitLen() uint64 { return 0 }

type DistributedAsset struct {
	Bill *big.Int
}

func (DistributedAsset) Op() Op           { return OpDistributedAsset }
func (d DistributedAsset) BitLen() uint64 { return CoinsBits(d.Bill) }

type Excesses struct{}

func (Excesses) Op() Op         { return OpExcesses }
func (Excesses) BitLen() uint64 { return 0 }

// Token ledger protocol.

type JettonMint struct {
	To     crypto.Address
	Amount *big.Int
	Notify bool
}

func (JettonMint) Op() Op           { return OpJettonMint }
func (j JettonMint) BitLen() uint64 { return AddressBits + CoinsBits(j.Amount) + flagBits }

type JettonTransfer struct {
	To     crypto.Address
	Amount *big.Int
}

func (JettonTransfer) Op() Op           { return OpJettonTransfer }
func (j JettonTransfer) BitLen() uint64 { return AddressBits + CoinsBits(j.Amount) }

type TransferNotification struct {
	Amount *big.Int
	Sender crypto.Address
}

func (TransferNotification) Op() Op           { return OpTransferNotification }
func (n TransferNotification) BitLen() uint64 { return CoinsBits(n.Amount) + AddressBits }

type JettonBurn struct {
	Amount           *big.Int
	WaitTillRoundEnd bool
	FillOrKill       bool
}

func (JettonBurn) Op() Op           { return OpJettonBurn }
func (j JettonBurn) BitLen() uint64 { return CoinsBits(j.Amount) + 2*flagBits }

type BurnNotification struct {
	Amount           *big.Int
	Owner            crypto.Address
	WaitTillRoundEnd bool
	FillOrKill       bool
}

func (BurnNotification) Op() Op { return OpBurnNotification }
func (n BurnNotification) BitLen() uint64 {
	return CoinsBits(n.Amount) + AddressBits + 2*flagBits
}
