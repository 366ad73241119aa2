package pool

import (
	"context"
	"math/big"
	"testing"

	"stakepool/core/bus"
	"stakepool/core/types"
	"stakepool/crypto"
	"stakepool/native/common"
	"stakepool/native/controller"
	"stakepool/native/elector"
	"stakepool/native/fees"
	"stakepool/native/jetton"
	"stakepool/native/payout"
)

// harness wires a pool into a bus together with its share ledger, an
// elector, role wallets and payout factories.
type harness struct {
	t         *testing.T
	net       *bus.Network
	authority *elector.Authority
	pool      crypto.Address
	ledger    crypto.Address
	roles     Roles
}

func addr(prefix crypto.AddressPrefix, name string) crypto.Address {
	return crypto.Derive(prefix, "pool-test", []byte(name))
}

func newHarness(t *testing.T, params Params) *harness {
	t.Helper()
	electorAddr := crypto.Derive(crypto.MasterPrefix, "elector")
	h := &harness{
		t:      t,
		pool:   addr(crypto.BasePrefix, "pool"),
		ledger: addr(crypto.BasePrefix, "ledger"),
	}
	h.roles = Roles{
		Governor:        addr(crypto.BasePrefix, "governor"),
		InterestManager: addr(crypto.BasePrefix, "interest-manager"),
		Halter:          addr(crypto.BasePrefix, "halter"),
		Approver:        addr(crypto.BasePrefix, "approver"),
		Ledger:          h.ledger,
	}
	h.net = bus.New(types.ChainConfig{
		Fees:       fees.DefaultTables(),
		Elector:    electorAddr,
		Elections:  types.DefaultElectionParams(),
		Validators: types.ValidatorSet{UtimeSince: 100000, UtimeUntil: 200000},
	})
	h.net.SetNow(100000)
	h.net.Register(payout.CollectionKind, payout.CollectionFactory)
	h.net.Register(payout.ItemKind, payout.ItemFactory)
	h.net.Register(controller.Kind, controller.Factory)
	h.authority = elector.NewAuthority(h.net, electorAddr)

	h.deploy(electorAddr, elector.Kind, elector.New(), common.Coins(10))
	h.deploy(h.pool, Kind, New(params, h.roles, nil), new(big.Int).Add(params.MinStorage, common.Coin))
	h.deploy(h.ledger, jetton.Kind, jetton.NewMinter(h.pool, "pSTAKE"), common.Coins(1))
	for _, role := range []crypto.Address{h.roles.Governor, h.roles.InterestManager, h.roles.Halter, h.roles.Approver} {
		h.deploy(role, bus.KindWallet, bus.NewWallet(), common.Coins(100))
	}
	h.touch()
	return h
}

func (h *harness) deploy(a crypto.Address, kind string, acc types.Account, balance *big.Int) {
	h.t.Helper()
	if err := h.net.Deploy(a, kind, acc, balance); err != nil {
		h.t.Fatalf("deploy %s: %v", kind, err)
	}
}

// wallet deploys a funded wallet named name.
func (h *harness) wallet(prefix crypto.AddressPrefix, name string, balance *big.Int) crypto.Address {
	h.t.Helper()
	a := addr(prefix, name)
	h.deploy(a, bus.KindWallet, bus.NewWallet(), balance)
	return a
}

func (h *harness) send(src, dst crypto.Address, value *big.Int, body types.Body) {
	h.t.Helper()
	h.sendMode(src, dst, value, types.SendDefault, body)
}

func (h *harness) sendMode(src, dst crypto.Address, value *big.Int, mode types.SendMode, body types.Body) {
	h.t.Helper()
	msg := &types.Message{Src: src, Dst: dst, Value: value, Mode: mode, Bounce: true, Body: body}
	if err := h.net.Send(msg); err != nil {
		h.t.Fatalf("send %s: %v", msg.Op(), err)
	}
	if err := h.net.Run(context.Background()); err != nil {
		h.t.Fatalf("run: %v", err)
	}
}

// failure returns the outcome of the last original delivery of op to dst.
func (h *harness) failure(dst crypto.Address, op types.Op) error {
	txs := h.net.Transactions()
	for i := len(txs) - 1; i >= 0; i-- {
		if txs[i].Dst == dst && txs[i].Op == op && !txs[i].Bounced {
			return txs[i].Err
		}
	}
	h.t.Fatalf("no delivery of %s to %s", op, dst)
	return nil
}

func (h *harness) state() *Pool {
	h.t.Helper()
	p, ok := bus.Lookup[*Pool](h.net, h.pool)
	if !ok {
		h.t.Fatalf("pool missing")
	}
	return p
}

func (h *harness) minter() *jetton.Minter {
	h.t.Helper()
	m, ok := bus.Lookup[*jetton.Minter](h.net, h.ledger)
	if !ok {
		h.t.Fatalf("ledger missing")
	}
	return m
}

func (h *harness) inbox(a crypto.Address, op types.Op) []types.Message {
	h.t.Helper()
	w, ok := bus.Lookup[*bus.Wallet](h.net, a)
	if !ok {
		h.t.Fatalf("wallet %s missing", a)
	}
	return w.Received(op)
}

func (h *harness) touch() {
	h.t.Helper()
	h.send(h.roles.Governor, h.pool, common.Coin, types.Touch{})
}

// nextSet publishes the validator set [since, until) and moves the clock to
// its start.
func (h *harness) nextSet(since, until uint64) {
	h.net.SetValidatorSet(types.ValidatorSet{ElectionID: since, UtimeSince: since, UtimeUntil: until})
	h.net.SetNow(since)
}

// deposit attaches exactly amount.
func (h *harness) deposit(from crypto.Address, amount *big.Int) {
	h.t.Helper()
	h.sendMode(from, h.pool, amount, types.SendPayFeesSeparately, types.Deposit{})
}

func (h *harness) burn(owner crypto.Address, shares *big.Int, wait, fillOrKill bool) {
	h.t.Helper()
	h.send(owner, h.ledger, common.Coin, types.JettonBurn{Amount: shares, WaitTillRoundEnd: wait, FillOrKill: fillOrKill})
}

// assertLedgerMatches checks the pool's share supply against the ledger.
func (h *harness) assertLedgerMatches() {
	h.t.Helper()
	if pool, ledger := h.state().State.Supply, h.minter().TotalSupply(); pool.Cmp(ledger) != 0 {
		h.t.Fatalf("pool supply %s does not match ledger supply %s", pool, ledger)
	}
}

func coins(n int64) *big.Int { return common.Coins(n) }
