package pool

import (
	"math/big"
	"sort"

	"stakepool/core/types"
	"stakepool/crypto"
	"stakepool/native/common"
)

// BorrowerInfo is an outstanding loan of one controller.
type BorrowerInfo struct {
	Borrowed          *big.Int `json:"borrowed"`
	AccountedInterest *big.Int `json:"accountedInterest"`
}

// Expected is what the borrower owes.
func (b BorrowerInfo) Expected() *big.Int {
	return new(big.Int).Add(common.Copy(b.Borrowed), common.Copy(b.AccountedInterest))
}

// RoundRecord is the loan book of one round.
type RoundRecord struct {
	RoundID         uint32
	ActiveBorrowers uint32
	Borrowers       map[crypto.Address]BorrowerInfo
	Borrowed        *big.Int
	Expected        *big.Int
	Returned        *big.Int
	// Loss marks Profit as a magnitude of loss.
	Loss   bool
	Profit *big.Int
}

func newRound(id uint32) RoundRecord {
	return RoundRecord{
		RoundID:   id,
		Borrowers: make(map[crypto.Address]BorrowerInfo),
		Borrowed:  new(big.Int),
		Expected:  new(big.Int),
		Returned:  new(big.Int),
		Profit:    new(big.Int),
	}
}

func (r RoundRecord) Clone() RoundRecord {
	out := r
	out.Borrowers = make(map[crypto.Address]BorrowerInfo, len(r.Borrowers))
	for k, v := range r.Borrowers {
		out.Borrowers[k] = BorrowerInfo{Borrowed: common.Copy(v.Borrowed), AccountedInterest: common.Copy(v.AccountedInterest)}
	}
	out.Borrowed = common.Copy(r.Borrowed)
	out.Expected = common.Copy(r.Expected)
	out.Returned = common.Copy(r.Returned)
	out.Profit = common.Copy(r.Profit)
	return out
}

// SignedProfit returns the round result as a signed amount.
func (r RoundRecord) SignedProfit() *big.Int {
	out := common.Copy(r.Profit)
	if r.Loss {
		out.Neg(out)
	}
	return out
}

func (r *RoundRecord) addResult(delta *big.Int) {
	total := new(big.Int).Add(r.SignedProfit(), delta)
	r.Loss = total.Sign() < 0
	r.Profit = total.Abs(total)
}

// BorrowerAddresses lists the round's borrowers in a stable order.
func (r RoundRecord) BorrowerAddresses() []crypto.Address {
	out := make([]crypto.Address, 0, len(r.Borrowers))
	for addr := range r.Borrowers {
		out = append(out, addr)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].String() < out[j].String() })
	return out
}

// State is the pool ledger. It is owned by the pool account and threaded
// through every handler.
type State struct {
	TotalBalance           *big.Int
	Supply                 *big.Int
	RequestedForDeposit    *big.Int
	RequestedForWithdrawal *big.Int
	DepositPayout          *crypto.Address
	WithdrawalPayout       *crypto.Address
	Optimistic             bool
	DepositsOpen           bool
	Halted                 bool
	SavedValidatorSetHash  types.Hash
	Current                RoundRecord
	Previous               RoundRecord
}

func newState() State {
	return State{
		TotalBalance:           new(big.Int),
		Supply:                 new(big.Int),
		RequestedForDeposit:    new(big.Int),
		RequestedForWithdrawal: new(big.Int),
		DepositsOpen:           true,
		Current:                newRound(1),
		Previous:               newRound(0),
	}
}

func (s State) Clone() State {
	out := s
	out.TotalBalance = common.Copy(s.TotalBalance)
	out.Supply = common.Copy(s.Supply)
	out.RequestedForDeposit = common.Copy(s.RequestedForDeposit)
	out.RequestedForWithdrawal = common.Copy(s.RequestedForWithdrawal)
	out.DepositPayout = cloneAddr(s.DepositPayout)
	out.WithdrawalPayout = cloneAddr(s.WithdrawalPayout)
	out.Current = s.Current.Clone()
	out.Previous = s.Previous.Clone()
	return out
}

func cloneAddr(a *crypto.Address) *crypto.Address {
	if a == nil {
		return nil
	}
	out := *a
	return &out
}

// PendingWithdrawalValue is what the queued withdrawals are worth at the
// current rate.
func (s State) PendingWithdrawalValue() *big.Int {
	return common.MulDivExtra(s.RequestedForWithdrawal, s.TotalBalance, s.Supply)
}
