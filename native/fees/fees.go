package fees

import (
	"errors"
	"math/big"

	"github.com/holiman/uint256"
)

var (
	ErrInvalidDirection   = errors.New("fees: forward fees are only defined for internal messages")
	ErrNegativeForwardFee = errors.New("fees: negative forward fee")
	ErrForwardFeeOverflow = errors.New("fees: forward fee exceeds 256 bits")
)

// Kind classifies a message by its routing direction.
type Kind int

const (
	KindInternal Kind = iota
	KindExternalIn
	KindExternalOut
)

// Init carries the code and data trees of an attached state init.
type Init struct {
	Code *Tree
	Data *Tree
}

// Message is the fee-relevant view of a routed message. ForwardFee is the
// remaining forward fee declared in the message header.
type Message struct {
	Kind       Kind
	ForwardFee *big.Int
	Init       *Init
	Body       *Tree
}

// Split divides a forward fee between the first relay and downstream relays.
type Split struct {
	Fees      *big.Int
	Remaining *big.Int
}

// Total returns Fees + Remaining.
func (s Split) Total() *big.Int {
	return new(big.Int).Add(s.Fees, s.Remaining)
}

// ComputeForwardFee prices a tree of the given shape. The variable part is
// rounded up.
func ComputeForwardFee(t Table, cells, bits uint64) *big.Int {
	return forwardFee(t, cells, bits).ToBig()
}

// ComputeDefaultForwardFee is the remaining forward fee of a message with no
// data outside its root node.
func ComputeDefaultForwardFee(t Table) *big.Int {
	return defaultForwardFee(t).ToBig()
}

func defaultForwardFee(t Table) *uint256.Int {
	lump := uint256.NewInt(t.LumpPrice)
	return new(uint256.Int).Sub(lump, firstFrac(t, lump))
}

// ComputeExternalMessageFees prices an inbound external message body.
func ComputeExternalMessageFees(t Table, body *Tree) *big.Int {
	stats := CollectStats(body, true)
	return ComputeForwardFee(t, stats.Cells, stats.Bits)
}

// SplitForwardFee applies the first-fraction split to a total forward fee.
func SplitForwardFee(t Table, total *big.Int) (Split, error) {
	if total == nil || total.Sign() <= 0 {
		return Split{Fees: new(big.Int), Remaining: new(big.Int)}, nil
	}
	v, overflow := uint256.FromBig(total)
	if overflow {
		return Split{}, ErrForwardFeeOverflow
	}
	fees := firstFrac(t, v)
	return Split{Fees: fees.ToBig(), Remaining: new(uint256.Int).Sub(v, fees).ToBig()}, nil
}

// ComputeMessageForwardFees reconstructs the forward fee paid for an internal
// message and splits it. Whether the body sits in the message root or behind
// a reference is inferred from the declared forward fee: a fee equal to the
// default means the body was inlined; with a state init attached, a fee equal
// to the init-only price means the same. Extra currencies are ignored.
func ComputeMessageForwardFees(t Table, msg Message) (Split, error) {
	if msg.Kind != KindInternal {
		return Split{}, ErrInvalidDirection
	}
	declared := new(uint256.Int)
	if msg.ForwardFee != nil {
		if msg.ForwardFee.Sign() < 0 {
			return Split{}, ErrNegativeForwardFee
		}
		var overflow bool
		if declared, overflow = uint256.FromBig(msg.ForwardFee); overflow {
			return Split{}, ErrForwardFeeOverflow
		}
	}

	var stats TreeStats
	skipRef := declared.Eq(defaultForwardFee(t))
	if msg.Init != nil {
		if msg.Init.Code != nil {
			stats = stats.Add(CollectStats(msg.Init.Code, false))
		}
		if msg.Init.Data != nil {
			stats = stats.Add(CollectStats(msg.Init.Data, false))
		}
		temp := forwardFee(t, stats.Cells, stats.Bits)
		tempFrac := new(uint256.Int).Sub(temp, firstFrac(t, temp))
		skipRef = tempFrac.Eq(declared)
	}
	stats = stats.Add(CollectStats(msg.Body, skipRef))

	total := forwardFee(t, stats.Cells, stats.Bits)
	fees := firstFrac(t, total)
	return Split{
		Fees:      fees.ToBig(),
		Remaining: new(uint256.Int).Sub(total, fees).ToBig(),
	}, nil
}

func forwardFee(t Table, cells, bits uint64) *uint256.Int {
	bitPart := new(uint256.Int).Mul(uint256.NewInt(t.BitPrice), uint256.NewInt(bits))
	cellPart := new(uint256.Int).Mul(uint256.NewInt(t.CellPrice), uint256.NewInt(cells))
	variable := new(uint256.Int).Add(bitPart, cellPart)
	return new(uint256.Int).Add(uint256.NewInt(t.LumpPrice), shr16Ceil(variable))
}

func firstFrac(t Table, v *uint256.Int) *uint256.Int {
	out := new(uint256.Int).Mul(v, uint256.NewInt(uint64(t.FirstFrac)))
	return out.Rsh(out, 16)
}

func shr16Ceil(v *uint256.Int) *uint256.Int {
	out := new(uint256.Int).Rsh(v, 16)
	if v.Uint64()&0xffff != 0 {
		out.AddUint64(out, 1)
	}
	return out
}
