package events

import (
	"math/big"
	"strconv"

	"stakepool/core/types"
	"stakepool/crypto"
)

const (
	// TypePoolDeposit is emitted when a deposit is queued or minted.
	TypePoolDeposit = "pool.deposit"
	// TypePoolWithdrawal is emitted when burnt pool shares are queued or paid.
	TypePoolWithdrawal = "pool.withdrawal"
	// TypePoolLoanGranted is emitted when a controller is credited.
	TypePoolLoanGranted = "pool.loan.granted"
	// TypePoolLoanRepaid is emitted when a controller settles its loan.
	TypePoolLoanRepaid = "pool.loan.repaid"
	// TypePoolRoundRotated is emitted when the current round is archived.
	TypePoolRoundRotated = "pool.round.rotated"
)

type PoolDeposit struct {
	Depositor crypto.Address
	Amount    *big.Int
	Minted    *big.Int
	Queued    bool
	RoundID   uint32
}

func (PoolDeposit) EventType() string { return TypePoolDeposit }

func (e PoolDeposit) Event() *types.Event {
	return &types.Event{
		Type: TypePoolDeposit,
		Attributes: map[string]string{
			"depositor": e.Depositor.String(),
			"amount":    amountString(e.Amount),
			"minted":    amountString(e.Minted),
			"queued":    strconv.FormatBool(e.Queued),
			"roundId":   strconv.FormatUint(uint64(e.RoundID), 10),
		},
	}
}

type PoolWithdrawal struct {
	Owner   crypto.Address
	Shares  *big.Int
	Payout  *big.Int
	Queued  bool
	RoundID uint32
}

func (PoolWithdrawal) EventType() string { return TypePoolWithdrawal }

func (e PoolWithdrawal) Event() *types.Event {
	return &types.Event{
		Type: TypePoolWithdrawal,
		Attributes: map[string]string{
			"owner":   e.Owner.String(),
			"shares":  amountString(e.Shares),
			"payout":  amountString(e.Payout),
			"queued":  strconv.FormatBool(e.Queued),
			"roundId": strconv.FormatUint(uint64(e.RoundID), 10),
		},
	}
}

type PoolLoanGranted struct {
	Controller crypto.Address
	Validator  crypto.Address
	Principal  *big.Int
	Interest   *big.Int
	RoundID    uint32
}

func (PoolLoanGranted) EventType() string { return TypePoolLoanGranted }

func (e PoolLoanGranted) Event() *types.Event {
	return &types.Event{
		Type: TypePoolLoanGranted,
		Attributes: map[string]string{
			"controller": e.Controller.String(),
			"validator":  e.Validator.String(),
			"principal":  amountString(e.Principal),
			"interest":   amountString(e.Interest),
			"roundId":    strconv.FormatUint(uint64(e.RoundID), 10),
		},
	}
}

type PoolLoanRepaid struct {
	Controller    crypto.Address
	RoundID       uint32
	Borrowed      *big.Int
	Expected      *big.Int
	Returned      *big.Int
	Loss          bool
	Profit        *big.Int
	GovernanceFee *big.Int
}

func (PoolLoanRepaid) EventType() string { return TypePoolLoanRepaid }

func (e PoolLoanRepaid) Event() *types.Event {
	return &types.Event{
		Type: TypePoolLoanRepaid,
		Attributes: map[string]string{
			"controller":    e.Controller.String(),
			"roundId":       strconv.FormatUint(uint64(e.RoundID), 10),
			"borrowed":      amountString(e.Borrowed),
			"expected":      amountString(e.Expected),
			"returned":      amountString(e.Returned),
			"loss":          strconv.FormatBool(e.Loss),
			"profit":        amountString(e.Profit),
			"governanceFee": amountString(e.GovernanceFee),
		},
	}
}

type PoolRoundRotated struct {
	ClosedRoundID  uint32
	TotalBalance   *big.Int
	Supply         *big.Int
	DepositMinted  *big.Int
	WithdrawalPaid *big.Int
}

func (PoolRoundRotated) EventType() string { return TypePoolRoundRotated }

func (e PoolRoundRotated) Event() *types.Event {
	return &types.Event{
		Type: TypePoolRoundRotated,
		Attributes: map[string]string{
			"closedRoundId":  strconv.FormatUint(uint64(e.ClosedRoundID), 10),
			"totalBalance":   amountString(e.TotalBalance),
			"supply":         amountString(e.Supply),
			"depositMinted":  amountString(e.DepositMinted),
			"withdrawalPaid": amountString(e.WithdrawalPaid),
		},
	}
}
