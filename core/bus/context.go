package bus

import (
	"log/slog"
	"math/big"

	"stakepool/core/types"
	"stakepool/crypto"
)

// txContext is the handle an account gets for the duration of one delivery.
// Everything it buffers is discarded unless the delivery commits.
type txContext struct {
	net       *Network
	self      crypto.Address
	now       uint64
	balance   *big.Int
	logger    *slog.Logger
	out       []*types.Message
	events    []*types.Event
	destroyed bool
}

func (c *txContext) Self() crypto.Address { return c.self }

func (c *txContext) Now() uint64 { return c.now }

func (c *txContext) Balance() *big.Int { return new(big.Int).Set(c.balance) }

func (c *txContext) Chain() types.ChainConfig { return c.net.chain }

func (c *txContext) Send(msg *types.Message) {
	if msg == nil {
		return
	}
	c.out = append(c.out, cloneMessage(msg))
}

func (c *txContext) Destroy() { c.destroyed = true }

func (c *txContext) Emit(ev *types.Event) {
	if ev == nil {
		return
	}
	c.events = append(c.events, ev)
}

func (c *txContext) Logger() *slog.Logger { return c.logger }

func (c *txContext) ForwardFee(msg *types.Message) *big.Int {
	if msg == nil {
		return new(big.Int)
	}
	probe := cloneMessage(msg)
	probe.Src = c.self
	fee, err := c.net.price(probe)
	if err != nil {
		return new(big.Int)
	}
	return fee
}
