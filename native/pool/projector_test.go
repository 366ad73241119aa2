package pool

import (
	"errors"
	"math/big"
	"testing"

	"stakepool/crypto"
)

func TestProjectorByName(t *testing.T) {
	p, err := ProjectorByName("")
	if err != nil || p.Name() != "finalize-fee" {
		t.Fatalf("empty name should select the default, got %v %v", p, err)
	}
	for _, name := range ProjectorNames() {
		p, err := ProjectorByName(name)
		if err != nil || p.Name() != name {
			t.Fatalf("projector %q not resolvable: %v", name, err)
		}
	}
	if _, err := ProjectorByName("oracle"); !errors.Is(err, ErrUnknownProjector) {
		t.Fatalf("expected ErrUnknownProjector, got %v", err)
	}
}

func TestProjections(t *testing.T) {
	params := DefaultParams()
	s := newState()
	s.Current.Borrowers[addr(crypto.BasePrefix, "a")] = BorrowerInfo{Borrowed: coins(100), AccountedInterest: coins(3)}
	s.Previous.Borrowers[addr(crypto.BasePrefix, "b")] = BorrowerInfo{Borrowed: coins(50), AccountedInterest: coins(2)}

	if got := (FinalizeFeeProjector{}).Project(s, params); got.Cmp(new(big.Int).Neg(params.FinalizeRoundFee)) != 0 {
		t.Fatalf("finalize-fee projection %s", got)
	}
	if got := (UnrealizedInterestProjector{}).Project(s, params); got.Cmp(coins(-6)) != 0 {
		t.Fatalf("unrealized-interest projection %s, want -6 coins", got)
	}

	p := New(params, Roles{}, UnrealizedInterestProjector{})
	p.State = s
	p.State.TotalBalance = coins(4)
	if got := p.ProjectedBalance(); got.Sign() != 0 {
		t.Fatalf("projected balance must clamp at zero, got %s", got)
	}
}
