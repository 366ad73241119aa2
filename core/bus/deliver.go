package bus

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"stakepool/core/events"
	"stakepool/core/types"
	"stakepool/crypto"
	"stakepool/native/fees"
	"stakepool/observability"
)

var errNoDestination = errors.New("bus: message has no destination")

// inlineBodyBits is the largest body that still fits in the message root next
// to the header.
const inlineBodyBits = 256

// Transaction records the handling of one delivered message.
type Transaction struct {
	Seq         uint64
	Now         uint64
	Src         crypto.Address
	Dst         crypto.Address
	Op          types.Op
	QueryID     uint64
	Value       *big.Int
	Bounced     bool
	Deployed    bool
	Destroyed   bool
	Err         error
	BouncedBack bool
	Fwd         fees.Split
	Out         int
}

// Succeeded reports whether the receiving account committed.
func (t Transaction) Succeeded() bool { return t.Err == nil }

// Send injects a message on behalf of Src, which must hold enough balance to
// fund it. Use it to drive accounts from outside the bus.
func (n *Network) Send(msg *types.Message) error {
	if msg == nil || msg.Dst.IsZero() {
		return errNoDestination
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	e, ok := n.accounts[msg.Src]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownAccount, msg.Src)
	}
	out := cloneMessage(msg)
	remaining, charged, err := n.fund(msg.Src, e.balance, []*types.Message{out})
	if err != nil {
		return err
	}
	e.balance = remaining
	n.charge(out, charged[0])
	n.queue.push(out)
	observability.Bus().SetQueueDepth(n.queue.len())
	return nil
}

// Run delivers queued messages until the queue drains, the context is
// cancelled or the step limit is hit.
func (n *Network) Run(ctx context.Context) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	for steps := 0; n.queue.len() > 0; steps++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		if steps >= n.maxSteps {
			return fmt.Errorf("%w: %d pending", ErrStepLimit, n.queue.len())
		}
		heads, keys := n.queue.heads()
		pick := n.scheduler.Pick(heads)
		if pick < 0 || pick >= len(keys) {
			pick = 0
		}
		n.deliver(ctx, n.queue.pop(keys[pick]))
		observability.Bus().SetQueueDepth(n.queue.len())
	}
	return nil
}

func (n *Network) deliver(ctx context.Context, p *Pending) {
	msg := p.Msg
	op := msg.Op()
	start := time.Now()
	_, span := n.tracer.Start(ctx, "bus.deliver", trace.WithAttributes(
		attribute.String("bus.op", op.String()),
		attribute.String("bus.dst", msg.Dst.String()),
		attribute.Bool("bus.bounced", msg.Bounced),
	))
	defer span.End()

	tx := Transaction{
		Seq:     p.Seq,
		Now:     n.now,
		Src:     msg.Src,
		Dst:     msg.Dst,
		Op:      op,
		QueryID: msg.QueryID,
		Value:   msg.Amount(),
		Bounced: msg.Bounced,
	}
	if split, err := n.reconstruct(msg); err == nil {
		tx.Fwd = split
	}

	e, ok := n.accounts[msg.Dst]
	if !ok {
		e = &entry{balance: new(big.Int)}
		n.accounts[msg.Dst] = e
	}
	e.balance.Add(e.balance, tx.Value)

	var err error
	if e.acc == nil && msg.Init != nil {
		err = n.instantiate(msg.Dst, e, msg.Init)
		tx.Deployed = err == nil
		if tx.Deployed {
			n.persist(msg.Dst, e)
		}
	}
	if err == nil && e.acc == nil {
		err = ErrNoCode
	}
	if err == nil {
		err = n.execute(msg, e, &tx)
	}
	tx.Err = err

	logger := n.logger.With("account", msg.Dst.String(), "op", op.String())
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		logger.Info("message rejected", "from", msg.Src.String(), "value", tx.Value.String(), "error", err)
		if msg.Bounce && !msg.Bounced {
			tx.BouncedBack = n.bounce(msg, e)
		}
	} else {
		logger.Debug("message committed", "from", msg.Src.String(), "value", tx.Value.String(), "out", tx.Out)
	}
	if !tx.Destroyed && e.acc == nil && e.balance.Sign() == 0 {
		delete(n.accounts, msg.Dst)
	}
	n.trace = append(n.trace, tx)
	observability.Bus().ObserveDelivery(op.String(), err, time.Since(start))
}

func (n *Network) instantiate(addr crypto.Address, e *entry, init *types.StateInit) error {
	factory, ok := n.factories[init.Kind]
	if !ok {
		return fmt.Errorf("%w: %q", ErrNoFactory, init.Kind)
	}
	acc, err := factory(addr, init)
	if err != nil {
		return err
	}
	e.acc = acc
	e.kind = init.Kind
	return nil
}

func (n *Network) execute(msg *types.Message, e *entry, tx *Transaction) error {
	clone := e.acc.Clone()
	tc := &txContext{
		net:     n,
		self:    msg.Dst,
		now:     n.now,
		balance: new(big.Int).Set(e.balance),
		logger:  n.logger.With("account", msg.Dst.String(), "op", msg.Op().String()),
	}
	if err := clone.Receive(tc, msg); err != nil {
		return err
	}
	remaining, charged, err := n.fund(msg.Dst, e.balance, tc.out)
	if err != nil {
		return err
	}

	e.acc = clone
	e.balance = remaining
	for i, out := range tc.out {
		n.charge(out, charged[i])
		n.queue.push(out)
	}
	tx.Out = len(tc.out)
	for _, ev := range tc.events {
		n.events = append(n.events, ev)
		n.emitter.Emit(events.Rendered{Event: ev})
	}
	if tc.destroyed {
		tx.Destroyed = true
		if e.balance.Sign() > 0 {
			n.collected.Add(n.collected, e.balance)
		}
		delete(n.accounts, msg.Dst)
		if n.store != nil {
			if err := n.store.Delete(msg.Dst); err != nil {
				n.logger.Warn("delete account", "account", msg.Dst.String(), "error", err)
			}
		}
		return nil
	}
	n.persist(msg.Dst, e)
	return nil
}

// bounce returns the value of a failed message to its sender, minus the
// forward fee of the returning message.
func (n *Network) bounce(msg *types.Message, e *entry) bool {
	value := msg.Amount()
	e.balance.Sub(e.balance, value)
	if e.balance.Sign() < 0 {
		e.balance.SetInt64(0)
	}
	back := &types.Message{
		Src:     msg.Dst,
		Dst:     msg.Src,
		Bounced: true,
		QueryID: msg.QueryID,
		Body:    msg.Body,
	}
	fee, err := n.price(back)
	if err != nil || value.Cmp(fee) <= 0 {
		n.collected.Add(n.collected, value)
		return false
	}
	back.Value = value.Sub(value, fee)
	n.charge(back, fee)
	n.queue.push(back)
	observability.Bus().RecordBounce(msg.Op().String())
	return true
}

// fund works out the value and fee of every outbound message and what is left
// of balance afterwards. Nothing is mutated except the messages themselves.
func (n *Network) fund(src crypto.Address, balance *big.Int, out []*types.Message) (*big.Int, []*big.Int, error) {
	remaining := new(big.Int).Set(balance)
	charged := make([]*big.Int, len(out))
	carry := -1
	for i, m := range out {
		m.Src = src
		if m.Dst.IsZero() {
			return nil, nil, errNoDestination
		}
		fee, err := n.price(m)
		if err != nil {
			return nil, nil, err
		}
		charged[i] = fee
		if m.Mode&types.SendCarryAllBalance != 0 {
			if carry >= 0 {
				return nil, nil, ErrMultipleCarry
			}
			carry = i
			continue
		}
		value := m.Amount()
		cost := new(big.Int).Set(value)
		if m.Mode&types.SendPayFeesSeparately != 0 {
			cost.Add(cost, fee)
		} else {
			if value.Cmp(fee) < 0 {
				return nil, nil, fmt.Errorf("%w: %s < %s", ErrValueBelowFee, value, fee)
			}
			value.Sub(value, fee)
		}
		if remaining.Cmp(cost) < 0 {
			return nil, nil, fmt.Errorf("%w: need %s, have %s", ErrInsufficientBalance, cost, remaining)
		}
		remaining.Sub(remaining, cost)
		m.Value = value
	}
	if carry >= 0 {
		fee := charged[carry]
		if remaining.Cmp(fee) < 0 {
			return nil, nil, fmt.Errorf("%w: need %s, have %s", ErrInsufficientBalance, fee, remaining)
		}
		out[carry].Value = new(big.Int).Sub(remaining, fee)
		remaining = new(big.Int)
	}
	return remaining, charged, nil
}

func (n *Network) charge(m *types.Message, fee *big.Int) {
	n.collected.Add(n.collected, fee)
	observability.Bus().RecordForwardFee(types.SegmentFor(m.Src, m.Dst).String(), fee)
}

// price returns the total forward fee of m and stamps the remaining part on
// the message header.
func (n *Network) price(m *types.Message) (*big.Int, error) {
	table, err := n.chain.Fees.For(types.SegmentFor(m.Src, m.Dst))
	if err != nil {
		return nil, err
	}
	shape, err := shapeOf(m)
	if err != nil {
		return nil, err
	}
	stats := fees.CollectStats(shape.Body, shape.inline)
	if shape.Init != nil {
		stats = stats.Add(fees.CollectStats(shape.Init.Code, false))
		stats = stats.Add(fees.CollectStats(shape.Init.Data, false))
	}
	total := fees.ComputeForwardFee(table, stats.Cells, stats.Bits)
	split, err := fees.SplitForwardFee(table, total)
	if err != nil {
		return nil, err
	}
	m.FwdFee = split.Remaining
	return total, nil
}

// reconstruct recovers the fee split from the delivered header, the way a
// receiver would.
func (n *Network) reconstruct(m *types.Message) (fees.Split, error) {
	table, err := n.chain.Fees.For(types.SegmentFor(m.Src, m.Dst))
	if err != nil {
		return fees.Split{}, err
	}
	shape, err := shapeOf(m)
	if err != nil {
		return fees.Split{}, err
	}
	return fees.ComputeMessageForwardFees(table, shape.Message)
}

type messageShape struct {
	fees.Message
	inline bool
}

func shapeOf(m *types.Message) (messageShape, error) {
	bits := types.BodyBits(m.Body)
	body, err := fees.Linear(bits)
	if err != nil {
		return messageShape{}, err
	}
	shape := messageShape{
		Message: fees.Message{Kind: fees.KindInternal, ForwardFee: m.FwdFee, Body: body},
		inline:  m.Init == nil && bits <= inlineBodyBits,
	}
	if m.Init != nil {
		code, err := fees.Linear(m.Init.CodeBits)
		if err != nil {
			return messageShape{}, err
		}
		data, err := fees.Linear(m.Init.DataBits)
		if err != nil {
			return messageShape{}, err
		}
		shape.Init = &fees.Init{Code: code, Data: data}
	}
	return shape, nil
}

func cloneMessage(m *types.Message) *types.Message {
	out := *m
	out.Value = m.Amount()
	if m.FwdFee != nil {
		out.FwdFee = new(big.Int).Set(m.FwdFee)
	}
	return &out
}
