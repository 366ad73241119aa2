package types

import (
	"log/slog"
	"math/big"

	"stakepool/crypto"
)

// SendMode controls how an outbound message is funded.
type SendMode uint8

const (
	// SendDefault deducts the forward fee from the attached value.
	SendDefault SendMode = 0
	// SendPayFeesSeparately charges the forward fee to the sender's balance
	// so the receiver gets exactly Value.
	SendPayFeesSeparately SendMode = 1
	// SendCarryAllBalance attaches whatever balance is left after every other
	// message of the transaction. Value is ignored.
	SendCarryAllBalance SendMode = 128
)

// Body is the typed payload of a message.
type Body interface {
	Op() Op
	// BitLen is the serialized payload size, excluding the op tag and the
	// query id.
	BitLen() uint64
}

// HeaderBits is the size of the op tag plus the query id.
const HeaderBits = 32 + 64

// BodyBits returns the full serialized size of a body.
func BodyBits(b Body) uint64 {
	if b == nil {
		return 0
	}
	return HeaderBits + b.BitLen()
}

// StateInit describes the account to create when a message reaches an
// address that holds no account yet. Kind selects the registered factory.
type StateInit struct {
	Kind     string
	Data     any
	CodeBits uint64
	DataBits uint64
}

// Message is a value-carrying internal message between two accounts.
type Message struct {
	Src     crypto.Address
	Dst     crypto.Address
	Value   *big.Int
	Bounce  bool
	Bounced bool
	QueryID uint64
	Body    Body
	Init    *StateInit
	Mode    SendMode
	// FwdFee is the remaining forward fee declared in the header. It is set
	// by the transport on delivery.
	FwdFee *big.Int
}

// Op returns the body's op tag, or zero for a plain transfer.
func (m *Message) Op() Op {
	if m == nil || m.Body == nil {
		return 0
	}
	return m.Body.Op()
}

// Amount returns a copy of the attached value, never nil.
func (m *Message) Amount() *big.Int {
	if m == nil || m.Value == nil {
		return new(big.Int)
	}
	return new(big.Int).Set(m.Value)
}

// Account is an entity hosted by the message bus. Receive runs against a
// clone of the committed account; the clone replaces the committed copy only
// when Receive succeeds and every outbound message could be funded.
type Account interface {
	Receive(ctx Context, msg *Message) error
	Clone() Account
}

// Context is the view an account has of the bus while handling one message.
type Context interface {
	Self() crypto.Address
	Now() uint64
	// Balance includes the value of the message being handled.
	Balance() *big.Int
	Chain() ChainConfig
	// Send buffers an outbound message. Src is filled in by the bus.
	Send(msg *Message)
	// Destroy removes the account once the transaction commits.
	Destroy()
	Emit(ev *Event)
	Logger() *slog.Logger
	// ForwardFee prices an outbound message as the bus would charge it.
	ForwardFee(msg *Message) *big.Int
}
