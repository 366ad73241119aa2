package elector

import (
	"errors"
	"fmt"
	"math/big"

	"stakepool/core/types"
	"stakepool/crypto"
)

// Kind is the state init kind of the election authority.
const Kind = "elector"

// Reasons carried by NewStakeError.
const (
	ReasonNoElections uint32 = 1
	ReasonZeroStake   uint32 = 2
)

var (
	ErrNoElections    = errors.New("elector: no elections announced")
	ErrElectionsOpen  = errors.New("elector: elections already announced")
	ErrNotElector     = errors.New("elector: account is not an election authority")
	ErrInvalidWindow  = errors.New("elector: validator set must end after it starts")
	ErrNothingFrozen  = errors.New("elector: no frozen stakes")
	errUnsupportedMsg = errors.New("elector: unsupported operation")
)

// Elector accepts stakes for the announced election, freezes them while the
// elected set validates, and credits them back for recovery.
type Elector struct {
	ElectionID uint64
	Stakes     map[crypto.Address]*big.Int
	Frozen     map[crypto.Address]*big.Int
	Credits    map[crypto.Address]*big.Int
}

func New() *Elector {
	return &Elector{
		Stakes:  make(map[crypto.Address]*big.Int),
		Frozen:  make(map[crypto.Address]*big.Int),
		Credits: make(map[crypto.Address]*big.Int),
	}
}

func (e *Elector) Clone() types.Account {
	return &Elector{
		ElectionID: e.ElectionID,
		Stakes:     cloneBook(e.Stakes),
		Frozen:     cloneBook(e.Frozen),
		Credits:    cloneBook(e.Credits),
	}
}

func cloneBook(src map[crypto.Address]*big.Int) map[crypto.Address]*big.Int {
	out := make(map[crypto.Address]*big.Int, len(src))
	for k, v := range src {
		out[k] = new(big.Int).Set(v)
	}
	return out
}

// StakeOf returns the stake held for validator in the open election.
func (e *Elector) StakeOf(validator crypto.Address) *big.Int { return amountIn(e.Stakes, validator) }

// FrozenOf returns the stake validator has locked in the active set.
func (e *Elector) FrozenOf(validator crypto.Address) *big.Int { return amountIn(e.Frozen, validator) }

// CreditOf returns what validator can recover.
func (e *Elector) CreditOf(validator crypto.Address) *big.Int { return amountIn(e.Credits, validator) }

func amountIn(book map[crypto.Address]*big.Int, key crypto.Address) *big.Int {
	if v, ok := book[key]; ok {
		return new(big.Int).Set(v)
	}
	return new(big.Int)
}

func (e *Elector) Receive(ctx types.Context, msg *types.Message) error {
	if msg.Bounced {
		return nil
	}
	switch msg.Body.(type) {
	case types.NewStake:
		e.newStake(ctx, msg)
		return nil
	case types.RecoverStake:
		e.recoverStake(ctx, msg)
		return nil
	case nil, types.TopUp:
		return nil
	default:
		return fmt.Errorf("%w: %s", errUnsupportedMsg, msg.Op())
	}
}

func (e *Elector) newStake(ctx types.Context, msg *types.Message) {
	stake := msg.Amount()
	reason := uint32(0)
	switch {
	case e.ElectionID == 0:
		reason = ReasonNoElections
	case stake.Sign() <= 0:
		reason = ReasonZeroStake
	}
	if reason != 0 {
		ctx.Logger().Debug("stake refused", "validator", msg.Src.String(), "reason", reason)
		ctx.Send(&types.Message{Dst: msg.Src, Value: stake, QueryID: msg.QueryID, Body: types.NewStakeError{Reason: reason}})
		return
	}
	held, ok := e.Stakes[msg.Src]
	if !ok {
		held = new(big.Int)
		e.Stakes[msg.Src] = held
	}
	held.Add(held, stake)
	ctx.Logger().Info("stake accepted", "validator", msg.Src.String(), "amount", stake.String(), "election", e.ElectionID)
	ctx.Send(&types.Message{Dst: msg.Src, Mode: types.SendPayFeesSeparately, QueryID: msg.QueryID, Body: types.NewStakeOk{}})
}

func (e *Elector) recoverStake(ctx types.Context, msg *types.Message) {
	credit, ok := e.Credits[msg.Src]
	if !ok || credit.Sign() == 0 {
		ctx.Send(&types.Message{Dst: msg.Src, Mode: types.SendPayFeesSeparately, QueryID: msg.QueryID, Body: types.RecoverStakeError{}})
		return
	}
	delete(e.Credits, msg.Src)
	ctx.Logger().Info("stake recovered", "validator", msg.Src.String(), "amount", credit.String())
	ctx.Send(&types.Message{
		Dst:     msg.Src,
		Value:   credit,
		Mode:    types.SendPayFeesSeparately,
		QueryID: msg.QueryID,
		Body:    types.RecoverStakeOk{},
	})
}
