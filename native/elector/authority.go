package elector

import (
	"math/big"

	"stakepool/core/types"
	"stakepool/crypto"
)

// Chain is the slice of the message bus the authority drives.
type Chain interface {
	Update(addr crypto.Address, fn func(types.Account) error) error
	Fund(addr crypto.Address, amount *big.Int)
	Chain() types.ChainConfig
	SetValidatorSet(vs types.ValidatorSet)
}

// Authority runs elections against an Elector account from outside the bus,
// the way the network itself would.
type Authority struct {
	chain Chain
	addr  crypto.Address
}

func NewAuthority(chain Chain, addr crypto.Address) *Authority {
	return &Authority{chain: chain, addr: addr}
}

func (a *Authority) Address() crypto.Address { return a.addr }

func (a *Authority) update(fn func(*Elector) error) error {
	return a.chain.Update(a.addr, func(acc types.Account) error {
		e, ok := acc.(*Elector)
		if !ok {
			return ErrNotElector
		}
		return fn(e)
	})
}

// AnnounceElections opens stake submission. The election id is the end of
// the current validator set, which is when the elected set takes over.
func (a *Authority) AnnounceElections() (uint64, error) {
	id := a.chain.Chain().Validators.UtimeUntil
	if id == 0 {
		id = 1
	}
	err := a.update(func(e *Elector) error {
		if e.ElectionID != 0 {
			return ErrElectionsOpen
		}
		e.ElectionID = id
		return nil
	})
	return id, err
}

// ConductElections freezes the submitted stakes and publishes the elected set
// as the active validator set.
func (a *Authority) ConductElections(since, until uint64) (types.ValidatorSet, error) {
	if until <= since {
		return types.ValidatorSet{}, ErrInvalidWindow
	}
	var vs types.ValidatorSet
	err := a.update(func(e *Elector) error {
		if e.ElectionID == 0 {
			return ErrNoElections
		}
		for validator, stake := range e.Stakes {
			held, ok := e.Frozen[validator]
			if !ok {
				held = new(big.Int)
				e.Frozen[validator] = held
			}
			held.Add(held, stake)
		}
		vs = types.ValidatorSet{
			ElectionID: e.ElectionID,
			UtimeSince: since,
			UtimeUntil: until,
			Total:      uint32(len(e.Stakes)),
		}
		e.Stakes = make(map[crypto.Address]*big.Int)
		e.ElectionID = 0
		return nil
	})
	if err != nil {
		return types.ValidatorSet{}, err
	}
	a.chain.SetValidatorSet(vs)
	return vs, nil
}

// Unfreeze releases frozen stakes into recoverable credits, adjusted by
// rewardBps (negative values slash). Rewards are minted into the elector.
func (a *Authority) Unfreeze(rewardBps int64) error {
	minted := new(big.Int)
	err := a.update(func(e *Elector) error {
		if len(e.Frozen) == 0 {
			return ErrNothingFrozen
		}
		for validator, stake := range e.Frozen {
			delta := new(big.Int).Mul(stake, big.NewInt(rewardBps))
			delta.Quo(delta, big.NewInt(10_000))
			credit := new(big.Int).Add(stake, delta)
			if credit.Sign() < 0 {
				credit.SetInt64(0)
			}
			if prev, ok := e.Credits[validator]; ok {
				credit.Add(credit, prev)
			}
			e.Credits[validator] = credit
			if delta.Sign() > 0 {
				minted.Add(minted, delta)
			}
		}
		e.Frozen = make(map[crypto.Address]*big.Int)
		return nil
	})
	if err != nil {
		return err
	}
	a.chain.Fund(a.addr, minted)
	return nil
}
