package jetton

import (
	"encoding/json"
	"fmt"
	"math/big"
	"sort"

	coreerrors "stakepool/core/errors"
	"stakepool/core/events"
	"stakepool/core/types"
	"stakepool/crypto"
)

// Kind is the state init kind of token ledgers.
const Kind = "jetton"

var (
	ErrUnauthorized        = coreerrors.New(coreerrors.KindAuthorization, 0x49, "jetton: sender is not the admin")
	ErrInsufficientBalance = coreerrors.New(coreerrors.KindLiquidity, 0x2f, "jetton: insufficient token balance")
	ErrInvalidAmount       = coreerrors.New(coreerrors.KindBounds, 0x2e, "jetton: amount must be positive")
	ErrUnknownOp           = coreerrors.New(coreerrors.KindState, 0xffff, "jetton: unsupported operation")
)

// Minter is a fungible token ledger. Balances are held by the minter itself;
// per-holder wallet addresses are derived for display only.
type Minter struct {
	Admin    crypto.Address
	Symbol   string
	Supply   *big.Int
	Balances map[crypto.Address]*big.Int
}

// NewMinter returns an empty ledger administered by admin.
func NewMinter(admin crypto.Address, symbol string) *Minter {
	return &Minter{
		Admin:    admin,
		Symbol:   symbol,
		Supply:   new(big.Int),
		Balances: make(map[crypto.Address]*big.Int),
	}
}

func (m *Minter) Clone() types.Account {
	out := &Minter{
		Admin:    m.Admin,
		Symbol:   m.Symbol,
		Supply:   new(big.Int).Set(m.Supply),
		Balances: make(map[crypto.Address]*big.Int, len(m.Balances)),
	}
	for holder, bal := range m.Balances {
		out.Balances[holder] = new(big.Int).Set(bal)
	}
	return out
}

// MarshalSnapshot renders the ledger with holders keyed by address.
func (m *Minter) MarshalSnapshot() ([]byte, error) {
	return json.Marshal(struct {
		Admin    crypto.Address              `json:"admin"`
		Symbol   string                      `json:"symbol"`
		Supply   *big.Int                    `json:"supply"`
		Balances map[crypto.Address]*big.Int `json:"balances"`
	}{m.Admin, m.Symbol, m.Supply, m.Balances})
}

// TotalSupply returns the number of tokens in circulation.
func (m *Minter) TotalSupply() *big.Int { return new(big.Int).Set(m.Supply) }

// BalanceOf returns the token balance of owner.
func (m *Minter) BalanceOf(owner crypto.Address) *big.Int {
	if bal, ok := m.Balances[owner]; ok {
		return new(big.Int).Set(bal)
	}
	return new(big.Int)
}

// Holders lists every address with a positive balance, in address order.
func (m *Minter) Holders() []crypto.Address {
	out := make([]crypto.Address, 0, len(m.Balances))
	for holder, bal := range m.Balances {
		if bal.Sign() > 0 {
			out = append(out, holder)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].String() < out[j].String() })
	return out
}

// WalletAddress derives the wallet address of owner under the ledger at
// minter.
func WalletAddress(minter, owner crypto.Address) crypto.Address {
	return crypto.Derive(crypto.BasePrefix, "jetton-wallet", minter.Bytes(), owner.Bytes())
}

func (m *Minter) Receive(ctx types.Context, msg *types.Message) error {
	if msg.Bounced {
		return m.onBounce(ctx, msg)
	}
	switch body := msg.Body.(type) {
	case types.JettonMint:
		return m.mint(ctx, msg, body)
	case types.JettonTransfer:
		return m.transfer(ctx, msg, body)
	case types.JettonBurn:
		return m.burn(ctx, msg, body)
	case nil, types.TopUp:
		return nil
	default:
		return fmt.Errorf("%w: %s", ErrUnknownOp, msg.Op())
	}
}

func (m *Minter) mint(ctx types.Context, msg *types.Message, body types.JettonMint) error {
	if msg.Src != m.Admin {
		return ErrUnauthorized
	}
	if body.Amount == nil || body.Amount.Sign() <= 0 {
		return ErrInvalidAmount
	}
	m.credit(body.To, body.Amount)
	m.Supply.Add(m.Supply, body.Amount)
	ctx.Emit(events.TokenSupply{
		Token:   m.Symbol,
		Ledger:  ctx.Self(),
		Account: body.To,
		Total:   m.TotalSupply(),
		Delta:   new(big.Int).Set(body.Amount),
		Reason:  events.SupplyReasonMint,
	}.Event())
	ctx.Logger().Info("tokens minted", "to", body.To.String(), "amount", body.Amount.String())
	if body.Notify {
		sendIfCovered(ctx, &types.Message{
			Dst:     body.To,
			Value:   msg.Amount(),
			QueryID: msg.QueryID,
			Body:    types.TransferNotification{Amount: new(big.Int).Set(body.Amount), Sender: msg.Src},
		})
	}
	return nil
}

func (m *Minter) transfer(ctx types.Context, msg *types.Message, body types.JettonTransfer) error {
	if body.Amount == nil || body.Amount.Sign() <= 0 {
		return ErrInvalidAmount
	}
	if err := m.debit(msg.Src, body.Amount); err != nil {
		return err
	}
	m.credit(body.To, body.Amount)
	sendIfCovered(ctx, &types.Message{
		Dst:     body.To,
		Value:   msg.Amount(),
		QueryID: msg.QueryID,
		Body:    types.TransferNotification{Amount: new(big.Int).Set(body.Amount), Sender: msg.Src},
	})
	return nil
}

func (m *Minter) burn(ctx types.Context, msg *types.Message, body types.JettonBurn) error {
	if body.Amount == nil || body.Amount.Sign() <= 0 {
		return ErrInvalidAmount
	}
	if err := m.debit(msg.Src, body.Amount); err != nil {
		return err
	}
	m.Supply.Sub(m.Supply, body.Amount)
	ctx.Emit(events.TokenSupply{
		Token:   m.Symbol,
		Ledger:  ctx.Self(),
		Account: msg.Src,
		Total:   m.TotalSupply(),
		Delta:   new(big.Int).Neg(body.Amount),
		Reason:  events.SupplyReasonBurn,
	}.Event())
	ctx.Send(&types.Message{
		Dst:     m.Admin,
		Value:   msg.Amount(),
		Bounce:  true,
		QueryID: msg.QueryID,
		Body: types.BurnNotification{
			Amount:           new(big.Int).Set(body.Amount),
			Owner:            msg.Src,
			WaitTillRoundEnd: body.WaitTillRoundEnd,
			FillOrKill:       body.FillOrKill,
		},
	})
	return nil
}

// onBounce reverts a burn the admin refused. Other bounces carry no token
// state and are accepted as they are.
func (m *Minter) onBounce(ctx types.Context, msg *types.Message) error {
	body, ok := msg.Body.(types.BurnNotification)
	if !ok || body.Amount == nil {
		return nil
	}
	m.credit(body.Owner, body.Amount)
	m.Supply.Add(m.Supply, body.Amount)
	ctx.Emit(events.TokenSupply{
		Token:   m.Symbol,
		Ledger:  ctx.Self(),
		Account: body.Owner,
		Total:   m.TotalSupply(),
		Delta:   new(big.Int).Set(body.Amount),
		Reason:  events.SupplyReasonRestore,
	}.Event())
	sendIfCovered(ctx, &types.Message{Dst: body.Owner, Value: msg.Amount(), QueryID: msg.QueryID, Body: types.Excesses{}})
	ctx.Logger().Info("burn restored", "owner", body.Owner.String(), "amount", body.Amount.String())
	return nil
}

func (m *Minter) credit(owner crypto.Address, amount *big.Int) {
	bal, ok := m.Balances[owner]
	if !ok {
		bal = new(big.Int)
		m.Balances[owner] = bal
	}
	bal.Add(bal, amount)
}

func (m *Minter) debit(owner crypto.Address, amount *big.Int) error {
	bal, ok := m.Balances[owner]
	if !ok || bal.Cmp(amount) < 0 {
		return ErrInsufficientBalance
	}
	bal.Sub(bal, amount)
	if bal.Sign() == 0 {
		delete(m.Balances, owner)
	}
	return nil
}

// sendIfCovered sends m only when its value pays for its own forwarding.
func sendIfCovered(ctx types.Context, m *types.Message) {
	if m.Value == nil || m.Value.Cmp(ctx.ForwardFee(m)) <= 0 {
		return
	}
	ctx.Send(m)
}
