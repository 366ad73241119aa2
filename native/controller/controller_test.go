package controller

import (
	"context"
	"errors"
	"math/big"
	"testing"

	"stakepool/core/bus"
	"stakepool/core/types"
	"stakepool/crypto"
	"stakepool/native/common"
	"stakepool/native/elector"
	"stakepool/native/fees"
)

type refuser struct{}

func (refuser) Receive(types.Context, *types.Message) error { return errors.New("refused") }
func (refuser) Clone() types.Account                        { return refuser{} }

// repaymentRefuser stands in for a pool that takes everything but repayments.
type repaymentRefuser struct{}

func (repaymentRefuser) Receive(_ types.Context, msg *types.Message) error {
	if msg.Op() == types.OpLoanRepayment {
		return errors.New("refused")
	}
	return nil
}
func (repaymentRefuser) Clone() types.Account { return repaymentRefuser{} }

type fixture struct {
	net        *bus.Network
	authority  *elector.Authority
	pool       crypto.Address
	validator  crypto.Address
	approver   crypto.Address
	controller crypto.Address
}

func newFixture(t *testing.T, pool types.Account) *fixture {
	t.Helper()
	electorAddr := crypto.Derive(crypto.MasterPrefix, "elector")
	f := &fixture{
		pool:      crypto.Derive(crypto.BasePrefix, "controller-test", []byte("pool")),
		validator: crypto.Derive(crypto.MasterPrefix, "controller-test", []byte("validator")),
		approver:  crypto.Derive(crypto.BasePrefix, "controller-test", []byte("approver")),
	}
	f.net = bus.New(types.ChainConfig{
		Fees:       fees.DefaultTables(),
		Elector:    electorAddr,
		Elections:  types.DefaultElectionParams(),
		Validators: types.ValidatorSet{UtimeSince: 100000, UtimeUntil: 200000},
	})
	f.net.SetNow(100000)
	f.authority = elector.NewAuthority(f.net, electorAddr)
	f.controller = Address(f.pool, f.validator, 0)

	deploy := []struct {
		addr    crypto.Address
		kind    string
		acc     types.Account
		balance *big.Int
	}{
		{electorAddr, elector.Kind, elector.New(), common.Coins(10)},
		{f.pool, "pool", pool, common.Coins(1_000_000)},
		{f.validator, bus.KindWallet, bus.NewWallet(), common.Coins(100_000)},
		{f.approver, bus.KindWallet, bus.NewWallet(), common.Coins(10)},
		{f.controller, Kind, New(InitData{Validator: f.validator, Pool: f.pool, Approver: f.approver}), common.Coins(100_000)},
	}
	for _, d := range deploy {
		if err := f.net.Deploy(d.addr, d.kind, d.acc, d.balance); err != nil {
			t.Fatalf("deploy %s: %v", d.kind, err)
		}
	}
	return f
}

func (f *fixture) send(t *testing.T, src crypto.Address, value *big.Int, mode types.SendMode, body types.Body) {
	t.Helper()
	msg := &types.Message{Src: src, Dst: f.controller, Value: value, Mode: mode, Bounce: true, Body: body}
	if err := f.net.Send(msg); err != nil {
		t.Fatalf("send %s: %v", body.Op(), err)
	}
	if err := f.net.Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}
}

// failure returns the error of the last non-bounced delivery of op to the
// controller.
func (f *fixture) failure(op types.Op) error {
	txs := f.net.Transactions()
	for i := len(txs) - 1; i >= 0; i-- {
		tx := txs[i]
		if tx.Dst == f.controller && tx.Op == op && !tx.Bounced {
			return tx.Err
		}
	}
	return nil
}

func (f *fixture) state(t *testing.T) *Controller {
	t.Helper()
	c, ok := bus.Lookup[*Controller](f.net, f.controller)
	if !ok {
		t.Fatalf("controller missing")
	}
	return c
}

func (f *fixture) poolInbox(t *testing.T, op types.Op) []types.Message {
	t.Helper()
	w, ok := bus.Lookup[*bus.Wallet](f.net, f.pool)
	if !ok {
		t.Fatalf("pool wallet missing")
	}
	return w.Received(op)
}

// accept acknowledges a repayment on behalf of the pool.
func (f *fixture) accept(t *testing.T, returned *big.Int) {
	t.Helper()
	f.send(t, f.pool, new(big.Int), types.SendPayFeesSeparately, types.RepaymentAccepted{Returned: returned})
}

func loanRequest(minLoan, maxLoan int64, maxInterest uint32) types.RequestLoan {
	return types.RequestLoan{MinLoan: common.Coins(minLoan), MaxLoan: common.Coins(maxLoan), MaxInterest: maxInterest}
}

func TestLoanRequestWindow(t *testing.T) {
	cases := []struct {
		name string
		now  uint64
		want error
	}{
		{"early", 150000, ErrTooEarlyLoanRequest},
		{"late", 199999, ErrTooLateLoanRequest},
		{"open", 170000, nil},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture(t, bus.NewWallet())
			f.send(t, f.approver, common.Coin, types.SendDefault, types.Approve{})
			f.net.SetNow(tc.now)
			f.send(t, f.validator, common.Coin, types.SendDefault, loanRequest(1000, 10000, 1000))
			if err := f.failure(types.OpRequestLoan); !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
		})
	}
}

func TestLoanRequestRejections(t *testing.T) {
	f := newFixture(t, bus.NewWallet())
	f.net.SetNow(170000)

	f.send(t, f.validator, common.Coin, types.SendDefault, loanRequest(1000, 10000, 1000))
	if err := f.failure(types.OpRequestLoan); !errors.Is(err, ErrNotApproved) {
		t.Fatalf("expected ErrNotApproved, got %v", err)
	}
	f.send(t, f.validator, common.Coin, types.SendDefault, types.Approve{})
	if err := f.failure(types.OpApprove); !errors.Is(err, ErrWrongSender) {
		t.Fatalf("validator must not approve itself, got %v", err)
	}
	f.send(t, f.approver, common.Coin, types.SendDefault, types.Approve{})

	f.send(t, f.approver, common.Coin, types.SendDefault, loanRequest(1000, 10000, 1000))
	if err := f.failure(types.OpRequestLoan); !errors.Is(err, ErrWrongSender) {
		t.Fatalf("expected ErrWrongSender, got %v", err)
	}
	f.send(t, f.validator, common.Coin, types.SendDefault, loanRequest(90_000_000, 100_000_000, 1000))
	if err := f.failure(types.OpRequestLoan); !errors.Is(err, ErrTooHighLoanRequestAmount) {
		t.Fatalf("expected ErrTooHighLoanRequestAmount, got %v", err)
	}
	if got := f.state(t).Status; got != StatusRest {
		t.Fatalf("rejected requests must leave the controller at rest, got %s", got)
	}
	if len(f.poolInbox(t, types.OpRequestLoan)) != 0 {
		t.Fatalf("nothing should reach the pool")
	}
}

func TestRefusedRequestReturnsToRest(t *testing.T) {
	f := newFixture(t, refuser{})
	f.send(t, f.approver, common.Coin, types.SendDefault, types.Approve{})
	f.net.SetNow(170000)
	f.send(t, f.validator, common.Coin, types.SendDefault, loanRequest(1000, 10000, 1000))
	if err := f.failure(types.OpRequestLoan); err != nil {
		t.Fatalf("request should leave the controller: %v", err)
	}
	c := f.state(t)
	if c.Status != StatusRest {
		t.Fatalf("bounced request must restore rest, got %s", c.Status)
	}
}

func TestLoanLifecycle(t *testing.T) {
	f := newFixture(t, bus.NewWallet())
	f.send(t, f.approver, common.Coin, types.SendDefault, types.Approve{})
	f.net.SetNow(170000)
	f.send(t, f.validator, common.Coin, types.SendDefault, loanRequest(1000, 10000, 1000))

	requests := f.poolInbox(t, types.OpRequestLoan)
	if len(requests) != 1 {
		t.Fatalf("expected one request at the pool, got %d", len(requests))
	}
	req := requests[0].Body.(types.RequestLoan)
	if req.Validator != f.validator || req.ControllerID != 0 || req.MaxLoan.Cmp(common.Coins(10000)) != 0 {
		t.Fatalf("unexpected forwarded request %+v", req)
	}
	if got := f.state(t).Status; got != StatusRequested {
		t.Fatalf("expected requested, got %s", got)
	}

	principal := common.Coins(10000)
	expected := new(big.Int).Add(principal, common.PerShare(principal, 1000))
	f.send(t, f.validator, principal, types.SendPayFeesSeparately, types.Credit{Amount: expected})
	if err := f.failure(types.OpCredit); !errors.Is(err, ErrWrongSender) {
		t.Fatalf("credit must come from the pool, got %v", err)
	}
	f.send(t, f.pool, principal, types.SendPayFeesSeparately, types.Credit{Amount: expected})
	c := f.state(t)
	if c.Status != StatusActiveLoan || c.Principal.Cmp(principal) != 0 || c.Borrowed.Cmp(expected) != 0 || c.BorrowingTime != 170000 {
		t.Fatalf("loan not recorded: %+v", c.Data())
	}

	// No elections yet: the elector hands the stake back.
	stake := common.Coins(10000)
	f.send(t, f.validator, common.Coin, types.SendDefault, types.NewStake{Amount: stake})
	if got := f.state(t).Status; got != StatusActiveLoan {
		t.Fatalf("refused stake must restore the loan, got %s", got)
	}

	if _, err := f.authority.AnnounceElections(); err != nil {
		t.Fatalf("announce: %v", err)
	}
	f.send(t, f.validator, common.Coin, types.SendDefault, types.NewStake{Amount: stake})
	if got := f.state(t).Status; got != StatusSentStake {
		t.Fatalf("expected sent stake, got %s", got)
	}
	f.send(t, f.validator, common.Coin, types.SendDefault, types.RecoverStake{})
	if err := f.failure(types.OpRecoverStake); !errors.Is(err, ErrTooEarlyStakeRecover) {
		t.Fatalf("expected ErrTooEarlyStakeRecover, got %v", err)
	}

	if _, err := f.authority.ConductElections(200000, 265536); err != nil {
		t.Fatalf("conduct: %v", err)
	}
	f.net.SetNow(200000)
	f.send(t, f.approver, common.Coin, types.SendDefault, types.UpdateValidatorHash{})
	f.send(t, f.approver, common.Coin, types.SendDefault, types.UpdateValidatorHash{})
	if got := f.state(t).ValidatorSetChangeCount; got != 1 {
		t.Fatalf("same set must count once, got %d", got)
	}
	f.net.SetValidatorSet(types.ValidatorSet{ElectionID: 265536, UtimeSince: 265536, UtimeUntil: 331072})
	f.net.SetNow(265536)
	f.send(t, f.approver, common.Coin, types.SendDefault, types.UpdateValidatorHash{})
	c = f.state(t)
	if c.ValidatorSetChangeCount != 2 || c.ValidatorSetChangeTime != 265536 {
		t.Fatalf("unexpected change tracking %+v", c.Data())
	}
	if c.CanRecover(265536+32767, types.DefaultElectionParams()) {
		t.Fatalf("stake must be held for the full period")
	}

	if err := f.authority.Unfreeze(200); err != nil {
		t.Fatalf("unfreeze: %v", err)
	}
	f.net.SetNow(265536 + 32768)
	f.send(t, f.validator, common.Coin, types.SendDefault, types.RecoverStake{})

	repayments := f.poolInbox(t, types.OpLoanRepayment)
	if len(repayments) != 1 {
		t.Fatalf("expected one repayment, got %d", len(repayments))
	}
	body := repayments[0].Body.(types.LoanRepayment)
	recovered := new(big.Int).Mul(stake, big.NewInt(10_200))
	recovered.Quo(recovered, big.NewInt(10_000))
	if repayments[0].Value.Cmp(recovered) != 0 || body.Returned.Cmp(recovered) != 0 {
		t.Fatalf("repayment carried %s (declared %s), want %s", repayments[0].Value, body.Returned, recovered)
	}
	if body.Borrowed.Cmp(principal) != 0 || body.Expected.Cmp(expected) != 0 {
		t.Fatalf("unexpected breakdown %+v", body)
	}
	c = f.state(t)
	if c.Status != StatusRepayPending || c.Borrowed.Cmp(expected) != 0 {
		t.Fatalf("debt must stay booked until the pool accepts: %+v", c.Data())
	}
	f.send(t, f.validator, common.Coin, types.SendDefault, types.WithdrawValidator{Amount: common.Coin})
	if err := f.failure(types.OpWithdrawValidator); !errors.Is(err, ErrWrongState) {
		t.Fatalf("withdraw before the pool accepted: expected ErrWrongState, got %v", err)
	}
	f.send(t, f.validator, common.Coin, types.SendDefault, types.RepaymentAccepted{Returned: recovered})
	if err := f.failure(types.OpRepaymentAccepted); !errors.Is(err, ErrWrongSender) {
		t.Fatalf("only the pool accepts repayments, got %v", err)
	}
	f.accept(t, recovered)
	c = f.state(t)
	if c.Status != StatusRest || c.Borrowed.Sign() != 0 || c.Principal.Sign() != 0 {
		t.Fatalf("controller should be back at rest: %+v", c.Data())
	}
}

func TestReturnUnusedLoan(t *testing.T) {
	f := newFixture(t, bus.NewWallet())
	f.send(t, f.approver, common.Coin, types.SendDefault, types.Approve{})
	f.net.SetNow(170000)
	f.send(t, f.validator, common.Coin, types.SendDefault, loanRequest(1000, 10000, 1000))
	principal := common.Coins(10000)
	expected := new(big.Int).Add(principal, common.PerShare(principal, 1000))
	f.send(t, f.pool, principal, types.SendPayFeesSeparately, types.Credit{Amount: expected})

	f.send(t, f.approver, common.Coin, types.SendDefault, types.ReturnUnusedLoan{})
	if err := f.failure(types.OpReturnUnusedLoan); !errors.Is(err, ErrWrongSender) {
		t.Fatalf("third parties must wait for the next set, got %v", err)
	}
	f.net.SetValidatorSet(types.ValidatorSet{UtimeSince: 200000, UtimeUntil: 300000})
	f.net.SetNow(200000)
	f.send(t, f.approver, common.Coin, types.SendDefault, types.ReturnUnusedLoan{})

	repayments := f.poolInbox(t, types.OpLoanRepayment)
	if len(repayments) != 1 {
		t.Fatalf("expected one repayment, got %d", len(repayments))
	}
	if repayments[0].Value.Cmp(expected) != 0 {
		t.Fatalf("repaid %s, want %s", repayments[0].Value, expected)
	}
	f.accept(t, expected)
	if got := f.state(t).Status; got != StatusRest {
		t.Fatalf("expected rest, got %s", got)
	}
}

func TestRefusedRepaymentRestoresLoan(t *testing.T) {
	f := newFixture(t, repaymentRefuser{})
	f.send(t, f.approver, common.Coin, types.SendDefault, types.Approve{})
	f.net.SetNow(170000)
	f.send(t, f.validator, common.Coin, types.SendDefault, loanRequest(1000, 10000, 1000))
	principal := common.Coins(10000)
	expected := new(big.Int).Add(principal, common.PerShare(principal, 1000))
	f.send(t, f.pool, principal, types.SendPayFeesSeparately, types.Credit{Amount: expected})
	if got := f.state(t).Status; got != StatusActiveLoan {
		t.Fatalf("expected active loan, got %s", got)
	}

	f.send(t, f.validator, common.Coin, types.SendDefault, types.ReturnUnusedLoan{})
	if err := f.failure(types.OpReturnUnusedLoan); err != nil {
		t.Fatalf("return unused: %v", err)
	}
	c := f.state(t)
	if c.Status != StatusActiveLoan || c.Borrowed.Cmp(expected) != 0 || c.Principal.Cmp(principal) != 0 {
		t.Fatalf("refused repayment must restore the loan: %+v", c.Data())
	}
	if f.net.Balance(f.controller).Cmp(principal) < 0 {
		t.Fatalf("bounced repayment did not come back: %s", f.net.Balance(f.controller))
	}
	f.send(t, f.validator, common.Coin, types.SendDefault, types.WithdrawValidator{Amount: common.Coins(50_000)})
	if err := f.failure(types.OpWithdrawValidator); !errors.Is(err, ErrWrongState) {
		t.Fatalf("withdraw with an open loan: expected ErrWrongState, got %v", err)
	}
}

func TestWithdrawKeepsStorage(t *testing.T) {
	f := newFixture(t, bus.NewWallet())
	balance := f.net.Balance(f.controller)
	f.send(t, f.validator, common.Coin, types.SendDefault, types.WithdrawValidator{Amount: balance})
	if err := f.failure(types.OpWithdrawValidator); !errors.Is(err, ErrInsufficientFunds) {
		t.Fatalf("expected ErrInsufficientFunds, got %v", err)
	}
	f.send(t, f.validator, common.Coin, types.SendDefault, types.WithdrawValidator{Amount: common.Coins(50_000)})
	if err := f.failure(types.OpWithdrawValidator); err != nil {
		t.Fatalf("withdraw: %v", err)
	}
	if f.net.Balance(f.controller).Cmp(MinStorage) < 0 {
		t.Fatalf("controller dropped below its storage reserve")
	}
}

func TestAddressIsDeterministic(t *testing.T) {
	pool := crypto.Derive(crypto.BasePrefix, "controller-test", []byte("pool"))
	validator := crypto.Derive(crypto.MasterPrefix, "controller-test", []byte("validator"))
	a := Address(pool, validator, 7)
	if a != Address(pool, validator, 7) || a == Address(pool, validator, 8) || !a.IsMaster() {
		t.Fatalf("controller addresses must be stable, distinct per id and on the masterchain")
	}
	if _, err := Factory(a, StateInit(InitData{ID: 8, Validator: validator, Pool: pool})); err == nil {
		t.Fatalf("factory must reject a mismatched address")
	}
}
