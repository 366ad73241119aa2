package bus

import (
	"stakepool/core/types"
)

// KindWallet is the state init kind of plain wallets.
const KindWallet = "wallet"

// Wallet is a plain account that accepts everything and remembers what it
// received. Off-bus drivers act through wallets.
type Wallet struct {
	Inbox []types.Message
}

func NewWallet() *Wallet { return &Wallet{} }

func (w *Wallet) Receive(_ types.Context, msg *types.Message) error {
	w.Inbox = append(w.Inbox, *cloneMessage(msg))
	return nil
}

func (w *Wallet) Clone() types.Account {
	return &Wallet{Inbox: append([]types.Message(nil), w.Inbox...)}
}

// Received returns the messages carrying op, oldest first.
func (w *Wallet) Received(op types.Op) []types.Message {
	var out []types.Message
	for _, m := range w.Inbox {
		if m.Op() == op {
			out = append(out, m)
		}
	}
	return out
}
