package core

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/big"

	"stakepool/config"
	"stakepool/core/bus"
	"stakepool/core/types"
	"stakepool/crypto"
	"stakepool/native/common"
	"stakepool/native/controller"
	"stakepool/native/elector"
	"stakepool/native/jetton"
	"stakepool/native/payout"
	"stakepool/native/pool"
	"stakepool/observability"
)

const addressDomain = "poold"

// roleFunding is what each role wallet starts with so it can pay for the
// messages it sends.
var roleFunding = common.Coins(1_000)

var ErrNotBootstrapped = errors.New("core: pool not deployed")

// Node wires the pool, its share ledger and the elector into one bus.
type Node struct {
	Net       *bus.Network
	Authority *elector.Authority
	Pool      crypto.Address
	Ledger    crypto.Address
	Elector   crypto.Address
	Roles     pool.Roles

	logger *slog.Logger
}

type deployment struct {
	addr    crypto.Address
	kind    string
	acc     types.Account
	balance *big.Int
}

// NewNode bootstraps a network from cfg with the clock at now. The first
// validator set starts at now and lasts one election period.
func NewNode(cfg *config.Config, now uint64, logger *slog.Logger, opts ...bus.Option) (*Node, error) {
	if logger == nil {
		logger = slog.Default()
	}
	params, err := cfg.PoolParams()
	if err != nil {
		return nil, err
	}
	projector, err := cfg.Projector()
	if err != nil {
		return nil, err
	}
	n := &Node{
		Pool:    crypto.Derive(crypto.BasePrefix, addressDomain, []byte("pool")),
		Ledger:  crypto.Derive(crypto.BasePrefix, addressDomain, []byte("ledger")),
		Elector: crypto.Derive(crypto.MasterPrefix, addressDomain, []byte("elector")),
		logger:  logger,
	}
	n.Roles = cfg.PoolRoles(n.Ledger)

	elections := cfg.Chain.Elections
	chain := types.ChainConfig{
		Validators: types.ValidatorSet{ElectionID: now, UtimeSince: now, UtimeUntil: now + elections.ElectedFor},
		Elections:  elections,
		Fees:       cfg.FeeTables(),
		Elector:    n.Elector,
	}
	opts = append([]bus.Option{bus.WithLogger(logger)}, opts...)
	n.Net = bus.New(chain, opts...)
	n.Net.SetNow(now)
	n.Net.Register(payout.CollectionKind, payout.CollectionFactory)
	n.Net.Register(payout.ItemKind, payout.ItemFactory)
	n.Net.Register(controller.Kind, controller.Factory)
	n.Authority = elector.NewAuthority(n.Net, n.Elector)

	deploys := []deployment{
		{n.Elector, elector.Kind, elector.New(), common.Coins(10)},
		{n.Pool, pool.Kind, pool.New(params, n.Roles, projector), new(big.Int).Add(params.MinStorage, common.Coin)},
		{n.Ledger, jetton.Kind, jetton.NewMinter(n.Pool, cfg.Pool.LedgerSymbol), common.Coins(1)},
	}
	seen := map[crypto.Address]bool{}
	for _, role := range []crypto.Address{n.Roles.Governor, n.Roles.InterestManager, n.Roles.Halter, n.Roles.Approver} {
		if seen[role] {
			continue
		}
		seen[role] = true
		deploys = append(deploys, deployment{role, bus.KindWallet, bus.NewWallet(), roleFunding})
	}
	for _, d := range deploys {
		if err := n.Net.Deploy(d.addr, d.kind, d.acc, d.balance); err != nil {
			return nil, fmt.Errorf("deploy %s: %w", d.kind, err)
		}
	}
	if err := n.Touch(context.Background()); err != nil {
		return nil, err
	}
	logger.Info("node bootstrapped",
		"run", n.Net.RunID().String(),
		"pool", n.Pool.String(),
		"ledger", n.Ledger.String(),
		"elector", n.Elector.String(),
		"projector", projector.Name(),
	)
	return n, nil
}

// Submit queues msg and delivers everything it causes. The returned error is
// the outcome of msg's own delivery.
func (n *Node) Submit(ctx context.Context, msg *types.Message) error {
	before := len(n.Net.Transactions())
	if err := n.Net.Send(msg); err != nil {
		return err
	}
	if err := n.Net.Run(ctx); err != nil {
		return err
	}
	for _, tx := range n.Net.Transactions()[before:] {
		if tx.Src == msg.Src && tx.Dst == msg.Dst && !tx.Bounced {
			return tx.Err
		}
	}
	return nil
}

// Touch pokes the pool so it notices validator set changes.
func (n *Node) Touch(ctx context.Context) error {
	return n.Submit(ctx, &types.Message{Src: n.Roles.Governor, Dst: n.Pool, Value: common.Coin, Bounce: true, Body: types.Touch{}})
}

// Rotate runs one election: the next set takes over when the current one
// ends, the clock moves there and the pool is touched.
func (n *Node) Rotate(ctx context.Context) (types.ValidatorSet, error) {
	current := n.Net.Chain()
	if _, err := n.Authority.AnnounceElections(); err != nil {
		return types.ValidatorSet{}, fmt.Errorf("announce elections: %w", err)
	}
	since := current.Validators.UtimeUntil
	vs, err := n.Authority.ConductElections(since, since+current.Elections.ElectedFor)
	if err != nil {
		return types.ValidatorSet{}, fmt.Errorf("conduct elections: %w", err)
	}
	n.Net.SetNow(since)
	if err := n.Touch(ctx); err != nil {
		return vs, err
	}
	n.logger.Info("validator set rotated", "election", vs.ElectionID, "since", vs.UtimeSince, "until", vs.UtimeUntil)
	return vs, nil
}

// PoolState returns a clone of the committed pool.
func (n *Node) PoolState() (*pool.Pool, error) {
	p, ok := bus.Lookup[*pool.Pool](n.Net, n.Pool)
	if !ok {
		return nil, ErrNotBootstrapped
	}
	return p, nil
}

// RecordMetrics publishes the pool gauges.
func (n *Node) RecordMetrics() error {
	p, err := n.PoolState()
	if err != nil {
		return err
	}
	observability.Pool().Record(p.MetricsSnapshot())
	observability.Bus().SetQueueDepth(n.Net.Pending())
	return nil
}

// Wallet deploys a wallet derived from name holding balance. An existing
// wallet is topped up instead.
func (n *Node) Wallet(name string, master bool, balance *big.Int) crypto.Address {
	prefix := crypto.BasePrefix
	if master {
		prefix = crypto.MasterPrefix
	}
	addr := crypto.Derive(prefix, addressDomain+"-wallet", []byte(name))
	if err := n.Net.Deploy(addr, bus.KindWallet, bus.NewWallet(), balance); errors.Is(err, bus.ErrAccountExists) {
		n.Net.Fund(addr, balance)
	}
	return addr
}
