package jetton

import (
	"context"
	"errors"
	"math/big"
	"testing"

	"stakepool/core/bus"
	"stakepool/core/types"
	"stakepool/crypto"
	"stakepool/native/fees"
)

type refusingAdmin struct{}

func (refusingAdmin) Receive(types.Context, *types.Message) error { return errors.New("refused") }
func (refusingAdmin) Clone() types.Account                        { return refusingAdmin{} }

func coins(n int64) *big.Int { return new(big.Int).Mul(big.NewInt(n), big.NewInt(1_000_000_000)) }

func addr(name string) crypto.Address {
	return crypto.Derive(crypto.BasePrefix, "jetton-test", []byte(name))
}

type fixture struct {
	net    *bus.Network
	ledger crypto.Address
	admin  crypto.Address
	alice  crypto.Address
}

func newFixture(t *testing.T, admin types.Account) *fixture {
	t.Helper()
	f := &fixture{
		net:    bus.New(types.ChainConfig{Fees: fees.DefaultTables()}),
		ledger: addr("ledger"),
		admin:  addr("admin"),
		alice:  addr("alice"),
	}
	if admin == nil {
		admin = bus.NewWallet()
	}
	if err := f.net.Deploy(f.admin, "admin", admin, coins(100)); err != nil {
		t.Fatalf("deploy admin: %v", err)
	}
	if err := f.net.Deploy(f.alice, bus.KindWallet, bus.NewWallet(), coins(100)); err != nil {
		t.Fatalf("deploy alice: %v", err)
	}
	if err := f.net.Deploy(f.ledger, Kind, NewMinter(f.admin, "spool"), nil); err != nil {
		t.Fatalf("deploy ledger: %v", err)
	}
	return f
}

func (f *fixture) send(t *testing.T, from crypto.Address, body types.Body) {
	t.Helper()
	if err := f.net.Send(&types.Message{Src: from, Dst: f.ledger, Value: coins(1), Bounce: true, Body: body}); err != nil {
		t.Fatalf("send %s: %v", body.Op(), err)
	}
	if err := f.net.Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}
}

func (f *fixture) minter(t *testing.T) *Minter {
	t.Helper()
	m, ok := bus.Lookup[*Minter](f.net, f.ledger)
	if !ok {
		t.Fatalf("ledger missing")
	}
	return m
}

func TestMintRequiresAdmin(t *testing.T) {
	f := newFixture(t, nil)
	f.send(t, f.alice, types.JettonMint{To: f.alice, Amount: big.NewInt(10)})
	if err := f.net.Transactions()[0].Err; !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
	if f.minter(t).TotalSupply().Sign() != 0 {
		t.Fatalf("supply changed on rejected mint")
	}
}

func TestMintNotifiesRecipient(t *testing.T) {
	f := newFixture(t, nil)
	f.send(t, f.admin, types.JettonMint{To: f.alice, Amount: big.NewInt(500), Notify: true})

	m := f.minter(t)
	if m.TotalSupply().Int64() != 500 || m.BalanceOf(f.alice).Int64() != 500 {
		t.Fatalf("unexpected ledger state: supply %s balance %s", m.TotalSupply(), m.BalanceOf(f.alice))
	}
	w, _ := bus.Lookup[*bus.Wallet](f.net, f.alice)
	notes := w.Received(types.OpTransferNotification)
	if len(notes) != 1 {
		t.Fatalf("expected one notification, got %d", len(notes))
	}
	note := notes[0].Body.(types.TransferNotification)
	if note.Sender != f.admin || note.Amount.Int64() != 500 {
		t.Fatalf("unexpected notification %+v", note)
	}
}

func TestTransferMovesBalance(t *testing.T) {
	f := newFixture(t, nil)
	bob := addr("bob")
	f.send(t, f.admin, types.JettonMint{To: f.alice, Amount: big.NewInt(100)})
	f.send(t, f.alice, types.JettonTransfer{To: bob, Amount: big.NewInt(40)})
	m := f.minter(t)
	if m.BalanceOf(f.alice).Int64() != 60 || m.BalanceOf(bob).Int64() != 40 {
		t.Fatalf("unexpected balances %s/%s", m.BalanceOf(f.alice), m.BalanceOf(bob))
	}
	f.send(t, f.alice, types.JettonTransfer{To: bob, Amount: big.NewInt(61)})
	txs := f.net.Transactions()
	var rejected bool
	for _, tx := range txs {
		if errors.Is(tx.Err, ErrInsufficientBalance) {
			rejected = true
		}
	}
	if !rejected {
		t.Fatalf("overdraft was not rejected")
	}
	if f.minter(t).BalanceOf(f.alice).Int64() != 60 {
		t.Fatalf("balance changed on rejected transfer")
	}
}

func TestBurnNotifiesAdmin(t *testing.T) {
	f := newFixture(t, nil)
	f.send(t, f.admin, types.JettonMint{To: f.alice, Amount: big.NewInt(100)})
	f.send(t, f.alice, types.JettonBurn{Amount: big.NewInt(30), FillOrKill: true})

	if got := f.minter(t).TotalSupply().Int64(); got != 70 {
		t.Fatalf("supply after burn: %d", got)
	}
	w, _ := bus.Lookup[*bus.Wallet](f.net, f.admin)
	notes := w.Received(types.OpBurnNotification)
	if len(notes) != 1 {
		t.Fatalf("expected one burn notification, got %d", len(notes))
	}
	note := notes[0].Body.(types.BurnNotification)
	if note.Owner != f.alice || note.Amount.Int64() != 30 || !note.FillOrKill {
		t.Fatalf("unexpected notification %+v", note)
	}
}

func TestRefusedBurnIsRestored(t *testing.T) {
	f := newFixture(t, refusingAdmin{})
	if err := f.net.Update(f.ledger, func(acc types.Account) error {
		m := acc.(*Minter)
		m.credit(f.alice, big.NewInt(100))
		m.Supply.SetInt64(100)
		return nil
	}); err != nil {
		t.Fatalf("seed ledger: %v", err)
	}
	f.send(t, f.alice, types.JettonBurn{Amount: big.NewInt(30)})

	m := f.minter(t)
	if m.TotalSupply().Int64() != 100 || m.BalanceOf(f.alice).Int64() != 100 {
		t.Fatalf("burn not restored: supply %s balance %s", m.TotalSupply(), m.BalanceOf(f.alice))
	}
	var reasons []string
	for _, ev := range f.net.Events() {
		reasons = append(reasons, ev.Attributes["reason"])
	}
	if len(reasons) != 2 || reasons[0] != "burn" || reasons[1] != "restore" {
		t.Fatalf("unexpected supply events %v", reasons)
	}
}

func TestWalletAddressIsStable(t *testing.T) {
	ledger, owner := addr("ledger"), addr("owner")
	if WalletAddress(ledger, owner) != WalletAddress(ledger, owner) {
		t.Fatalf("wallet address not deterministic")
	}
	if WalletAddress(ledger, owner) == WalletAddress(ledger, addr("other")) {
		t.Fatalf("wallet addresses collide")
	}
}
