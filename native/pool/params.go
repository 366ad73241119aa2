package pool

import (
	"math/big"

	"stakepool/crypto"
	"stakepool/native/common"
)

// Params are the tunables of a pool. Rates are expressed per
// common.ShareBase.
type Params struct {
	InterestRate  uint32
	GovernanceFee uint32
	MinLoan       *big.Int
	MaxLoan       *big.Int
	// DisbalanceTolerance widens the per-loan cap above half the balance,
	// in 1/512 steps.
	DisbalanceTolerance uint32
	DepositFee          *big.Int
	FinalizeRoundFee    *big.Int
	MinStorage          *big.Int
	// NotificationAmount accompanies mints and distribution starts.
	NotificationAmount *big.Int
	// ServiceNotificationAmount accompanies round reports. Governance fees
	// at or below it are not worth a message and stay in the pool.
	ServiceNotificationAmount *big.Int
	// MintGas funds one voucher mint: the voucher account and its share of
	// the distribution traffic.
	MintGas *big.Int
}

// DefaultParams mirrors a mainnet deployment.
func DefaultParams() Params {
	return Params{
		InterestRate:              1000,
		GovernanceFee:             15000,
		MinLoan:                   common.Coins(1_000),
		MaxLoan:                   common.Coins(1_000_000),
		DisbalanceTolerance:       30,
		DepositFee:                common.Coins(1),
		FinalizeRoundFee:          common.Coins(1),
		MinStorage:                common.Coins(2),
		NotificationAmount:        big.NewInt(100_000_000),
		ServiceNotificationAmount: big.NewInt(20_000_000),
		MintGas:                   big.NewInt(100_000_000),
	}
}

func (p Params) Clone() Params {
	out := p
	out.MinLoan = common.Copy(p.MinLoan)
	out.MaxLoan = common.Copy(p.MaxLoan)
	out.DepositFee = common.Copy(p.DepositFee)
	out.FinalizeRoundFee = common.Copy(p.FinalizeRoundFee)
	out.MinStorage = common.Copy(p.MinStorage)
	out.NotificationAmount = common.Copy(p.NotificationAmount)
	out.ServiceNotificationAmount = common.Copy(p.ServiceNotificationAmount)
	out.MintGas = common.Copy(p.MintGas)
	return out
}

// Validate checks the invariants the pool relies on.
func (p Params) Validate() error {
	if p.DisbalanceTolerance > 256 {
		return ErrInvalidParams
	}
	if p.InterestRate > common.ShareBase || p.GovernanceFee > common.ShareBase {
		return ErrInvalidParams
	}
	if p.MinLoan == nil || p.MaxLoan == nil || p.MinLoan.Sign() < 0 || p.MinLoan.Cmp(p.MaxLoan) > 0 {
		return ErrInvalidParams
	}
	for _, v := range []*big.Int{p.DepositFee, p.FinalizeRoundFee, p.MinStorage, p.NotificationAmount, p.ServiceNotificationAmount, p.MintGas} {
		if v == nil || v.Sign() < 0 {
			return ErrInvalidParams
		}
	}
	return nil
}

// Roles are the addresses allowed to steer the pool.
type Roles struct {
	Governor        crypto.Address `json:"governor"`
	InterestManager crypto.Address `json:"interestManager"`
	Halter          crypto.Address `json:"halter"`
	Approver        crypto.Address `json:"approver"`
	// Ledger is the token ledger of pool shares. The pool is its admin.
	Ledger crypto.Address `json:"ledger"`
}
