package payout

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"testing"

	"stakepool/core/bus"
	"stakepool/core/types"
	"stakepool/crypto"
	"stakepool/native/fees"
	"stakepool/native/jetton"
)

func coins(n int64) *big.Int { return new(big.Int).Mul(big.NewInt(n), big.NewInt(1_000_000_000)) }

var mintGas = new(big.Int).Div(coins(1), big.NewInt(10))

type fixture struct {
	net        *bus.Network
	admin      crypto.Address
	ledger     crypto.Address
	collection crypto.Address
	owners     []crypto.Address
}

func addr(name string) crypto.Address {
	return crypto.Derive(crypto.BasePrefix, "payout-test", []byte(name))
}

func newFixture(t *testing.T, owners int) *fixture {
	t.Helper()
	f := &fixture{
		net:    bus.New(types.ChainConfig{Fees: fees.DefaultTables()}),
		admin:  addr("admin"),
		ledger: addr("ledger"),
	}
	f.net.Register(CollectionKind, CollectionFactory)
	f.net.Register(ItemKind, ItemFactory)
	f.collection = CollectionAddress(f.admin, 1, DirectionWithdrawal)
	f.deploy(t, f.admin, bus.NewWallet(), coins(1_000_000))
	if err := f.net.Deploy(f.ledger, jetton.Kind, jetton.NewMinter(f.admin, "spool"), nil); err != nil {
		t.Fatalf("deploy ledger: %v", err)
	}
	for i := 0; i < owners; i++ {
		owner := addr(fmt.Sprintf("owner-%d", i))
		f.deploy(t, owner, bus.NewWallet(), coins(10))
		f.owners = append(f.owners, owner)
	}
	return f
}

func (f *fixture) deploy(t *testing.T, a crypto.Address, acc types.Account, balance *big.Int) {
	t.Helper()
	if err := f.net.Deploy(a, "wallet", acc, balance); err != nil {
		t.Fatalf("deploy %s: %v", a, err)
	}
}

func (f *fixture) send(t *testing.T, msg *types.Message) {
	t.Helper()
	msg.Bounce = true
	if err := f.net.Send(msg); err != nil {
		t.Fatalf("send %s: %v", msg.Op(), err)
	}
	if err := f.net.Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}
}

func (f *fixture) initCollection(t *testing.T, jettonMode bool) {
	t.Helper()
	f.send(t, &types.Message{
		Src:   f.admin,
		Dst:   f.collection,
		Value: coins(1),
		Body:  types.CollectionInit{Jetton: jettonMode, Ledger: f.ledger},
		Init:  CollectionStateInit(CollectionInitData{Admin: f.admin, Round: 1, Direction: DirectionWithdrawal}),
	})
}

func (f *fixture) mint(t *testing.T, from, owner crypto.Address, bill int64) {
	t.Helper()
	f.send(t, &types.Message{Src: from, Dst: f.collection, Value: mintGas, Body: types.MintVoucher{Owner: owner, Bill: big.NewInt(bill)}})
}

func (f *fixture) startNative(t *testing.T, volume *big.Int) {
	t.Helper()
	f.send(t, &types.Message{
		Src:   f.admin,
		Dst:   f.collection,
		Value: volume,
		Mode:  types.SendPayFeesSeparately,
		Body:  types.StartDistribution{Volume: volume},
	})
}

func (f *fixture) collectionState(t *testing.T) *Collection {
	t.Helper()
	c, ok := bus.Lookup[*Collection](f.net, f.collection)
	if !ok {
		t.Fatalf("collection missing")
	}
	return c
}

// failure returns the error of the most recent failed delivery of op.
func (f *fixture) failure(op types.Op) error {
	txs := f.net.Transactions()
	for i := len(txs) - 1; i >= 0; i-- {
		if txs[i].Op == op && !txs[i].Bounced && txs[i].Err != nil {
			return txs[i].Err
		}
	}
	return nil
}

func (f *fixture) nativePayouts(t *testing.T) *big.Int {
	t.Helper()
	total := new(big.Int)
	for _, owner := range f.owners {
		w, _ := bus.Lookup[*bus.Wallet](f.net, owner)
		for _, m := range w.Received(types.OpDistributedAsset) {
			total.Add(total, m.Value)
		}
	}
	return total
}

func TestSingleVoucherReceivesWholeVolume(t *testing.T) {
	f := newFixture(t, 1)
	f.initCollection(t, false)
	f.mint(t, f.admin, f.owners[0], 3)
	volume := big.NewInt(1_000_000_007)
	f.startNative(t, volume)

	if got := f.nativePayouts(t); got.Cmp(volume) != 0 {
		t.Fatalf("payout %s, want %s", got, volume)
	}
	c := f.collectionState(t)
	if c.BillsCount != 0 || c.TotalBill.Sign() != 0 {
		t.Fatalf("collection not drained: count %d bill %s", c.BillsCount, c.TotalBill)
	}
	if _, ok := f.net.Account(ItemAddress(f.collection, 0)); ok {
		t.Fatalf("burnt voucher still deployed")
	}
}

func TestDistributionPaysExactVolume(t *testing.T) {
	bills := []int64{7, 13, 1, 29, 5}
	f := newFixture(t, len(bills))
	f.initCollection(t, false)
	for i, bill := range bills {
		f.mint(t, f.admin, f.owners[i], bill)
	}
	c := f.collectionState(t)
	if c.TotalBill.Int64() != 55 || c.BillsCount != 5 || c.NextItemIndex != 5 {
		t.Fatalf("unexpected collection after mint: %+v", c)
	}
	for i := range bills {
		it, ok := bus.Lookup[*Item](f.net, ItemAddress(f.collection, uint64(i)))
		if !ok || !it.Inited || it.Owner != f.owners[i] || it.Bill.Int64() != bills[i] {
			t.Fatalf("voucher %d not initialised: %+v", i, it)
		}
	}

	volume := big.NewInt(1_000_003)
	f.startNative(t, volume)

	if got := f.nativePayouts(t); got.Cmp(volume) != 0 {
		t.Fatalf("sum of payouts %s, want %s", got, volume)
	}
	c = f.collectionState(t)
	if c.Distribution.Paid.Cmp(volume) != 0 || c.BillsCount != 0 {
		t.Fatalf("unexpected distribution state %+v", c.Distribution)
	}
}

func TestJettonDistribution(t *testing.T) {
	bills := []int64{2, 3, 5}
	f := newFixture(t, len(bills))
	f.initCollection(t, true)
	for i, bill := range bills {
		f.mint(t, f.admin, f.owners[i], bill)
	}
	volume := big.NewInt(1001)
	f.send(t, &types.Message{Src: f.admin, Dst: f.ledger, Value: coins(1), Body: types.JettonMint{To: f.collection, Amount: volume, Notify: true}})

	ledger, _ := bus.Lookup[*jetton.Minter](f.net, f.ledger)
	total := new(big.Int)
	for _, owner := range f.owners {
		total.Add(total, ledger.BalanceOf(owner))
	}
	if total.Cmp(volume) != 0 {
		t.Fatalf("distributed %s tokens, want %s", total, volume)
	}
	if ledger.BalanceOf(f.collection).Sign() != 0 {
		t.Fatalf("collection kept tokens: %s", ledger.BalanceOf(f.collection))
	}
}

func TestCollectionAuthorization(t *testing.T) {
	f := newFixture(t, 1)
	stranger := f.owners[0]

	// deployed without init
	f.send(t, &types.Message{
		Src:   f.admin,
		Dst:   f.collection,
		Value: coins(1),
		Body:  types.TopUp{},
		Init:  CollectionStateInit(CollectionInitData{Admin: f.admin, Round: 1, Direction: DirectionWithdrawal}),
	})
	f.mint(t, f.admin, stranger, 1)
	if err := f.failure(types.OpMintVoucher); !errors.Is(err, ErrNeedInit) {
		t.Fatalf("expected ErrNeedInit, got %v", err)
	}

	f.send(t, &types.Message{Src: stranger, Dst: f.collection, Value: coins(1), Body: types.CollectionInit{}})
	if err := f.failure(types.OpCollectionInit); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized on init, got %v", err)
	}

	f.send(t, &types.Message{Src: f.admin, Dst: f.collection, Value: coins(1), Body: types.CollectionInit{}})
	f.mint(t, stranger, stranger, 1)
	if err := f.failure(types.OpMintVoucher); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized on mint, got %v", err)
	}
	f.mint(t, f.admin, stranger, 1)
	f.mint(t, f.admin, stranger, 1)

	f.send(t, &types.Message{Src: stranger, Dst: ItemAddress(f.collection, 0), Value: coins(1), Body: types.BurnVoucher{}})
	if err := f.failure(types.OpVoucherBurned); !errors.Is(err, ErrNotDistributing) {
		t.Fatalf("early owner burn should be refused by the collection, got %v", err)
	}
	it, _ := bus.Lookup[*Item](f.net, ItemAddress(f.collection, 0))
	if it.Burning {
		t.Fatalf("refused burn must clear the burning flag")
	}

	third := addr("third")
	f.deploy(t, third, bus.NewWallet(), coins(10))
	f.send(t, &types.Message{Src: third, Dst: ItemAddress(f.collection, 1), Value: coins(1), Body: types.BurnVoucher{}})
	if err := f.failure(types.OpBurnVoucher); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized on third-party burn, got %v", err)
	}

	f.send(t, &types.Message{Src: f.admin, Dst: f.collection, Value: big.NewInt(0), Mode: types.SendPayFeesSeparately, Body: types.StartDistribution{Volume: big.NewInt(0)}})
	f.send(t, &types.Message{Src: f.admin, Dst: f.collection, Value: big.NewInt(0), Mode: types.SendPayFeesSeparately, Body: types.StartDistribution{Volume: big.NewInt(0)}})
	if err := f.failure(types.OpStartDistribution); !errors.Is(err, ErrAlreadyDistributing) {
		t.Fatalf("expected ErrAlreadyDistributing, got %v", err)
	}
	f.mint(t, f.admin, stranger, 1)
	if err := f.failure(types.OpMintVoucher); !errors.Is(err, ErrDistributionAlreadyStarted) {
		t.Fatalf("expected ErrDistributionAlreadyStarted, got %v", err)
	}
}

func TestStartDistributionRejectsMismatchedAsset(t *testing.T) {
	f := newFixture(t, 1)
	f.initCollection(t, true)
	f.mint(t, f.admin, f.owners[0], 1)
	f.startNative(t, big.NewInt(100))
	if err := f.failure(types.OpStartDistribution); !errors.Is(err, ErrCannotDistributeMismatched) {
		t.Fatalf("expected ErrCannotDistributeMismatched, got %v", err)
	}
	if f.collectionState(t).Distribution.Active {
		t.Fatalf("distribution must not start")
	}
}

func TestEmptyStartClosesJettonCollection(t *testing.T) {
	f := newFixture(t, 2)
	f.initCollection(t, true)
	f.mint(t, f.admin, f.owners[0], 4)
	f.mint(t, f.admin, f.owners[1], 6)
	f.startNative(t, new(big.Int))
	if err := f.failure(types.OpStartDistribution); err != nil {
		t.Fatalf("empty start refused: %v", err)
	}
	c := f.collectionState(t)
	if !c.Distribution.Active || c.BillsCount != 0 || c.TotalBill.Sign() != 0 {
		t.Fatalf("vouchers not burnt: count %d bill %s", c.BillsCount, c.TotalBill)
	}
	ledger, _ := bus.Lookup[*jetton.Minter](f.net, f.ledger)
	for i, owner := range f.owners {
		if ledger.BalanceOf(owner).Sign() != 0 {
			t.Fatalf("owner %d received tokens from an empty distribution", i)
		}
		if _, ok := f.net.Account(ItemAddress(f.collection, uint64(i))); ok {
			t.Fatalf("voucher %d still deployed", i)
		}
	}
}

func TestVoucherAcceptsLateInit(t *testing.T) {
	f := newFixture(t, 1)
	f.initCollection(t, false)
	item := ItemAddress(f.collection, 0)

	// anyone can deploy the voucher address ahead of the mint
	f.send(t, &types.Message{
		Src:   f.owners[0],
		Dst:   item,
		Value: coins(1),
		Body:  types.TopUp{},
		Init:  itemStateInit(ItemInitData{Collection: f.collection, Index: 0}),
	})
	it, ok := bus.Lookup[*Item](f.net, item)
	if !ok || it.Inited {
		t.Fatalf("expected an uninitialised voucher, got %+v", it)
	}

	f.send(t, &types.Message{Src: f.owners[0], Dst: item, Value: coins(1), Body: types.ItemInit{Owner: f.owners[0], Bill: big.NewInt(100)}})
	if err := f.failure(types.OpItemInit); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized for impostor init, got %v", err)
	}

	f.mint(t, f.admin, f.owners[0], 9)
	it, _ = bus.Lookup[*Item](f.net, item)
	if !it.Inited || it.Bill.Int64() != 9 {
		t.Fatalf("late init not applied: %+v", it)
	}
	w, _ := bus.Lookup[*bus.Wallet](f.net, f.owners[0])
	if len(w.Received(types.OpOwnershipAssigned)) != 1 {
		t.Fatalf("owner not notified")
	}
}

func TestShareFloorsUntilLastVoucher(t *testing.T) {
	c := NewCollection(CollectionInitData{})
	c.TotalBill.SetInt64(3)
	c.BillsCount = 3
	c.Distribution = Distribution{Active: true, Volume: big.NewInt(10), BillAtStart: big.NewInt(3), Paid: new(big.Int)}

	var paid []int64
	for c.BillsCount > 0 {
		share := c.Share(big.NewInt(1))
		paid = append(paid, share.Int64())
		c.Distribution.Paid.Add(c.Distribution.Paid, share)
		c.BillsCount--
	}
	if paid[0] != 3 || paid[1] != 3 || paid[2] != 4 {
		t.Fatalf("unexpected shares %v", paid)
	}
}
