package pool

import (
	"fmt"
	"math/big"
	"sort"
)

// Projector estimates how the accounted balance will move by the end of the
// open round. Optimistic deposits are priced against the projected balance.
type Projector interface {
	Name() string
	Project(s State, p Params) *big.Int
}

// FinalizeFeeProjector expects the round to cost exactly its finalize fee.
type FinalizeFeeProjector struct{}

func (FinalizeFeeProjector) Name() string { return "finalize-fee" }

func (FinalizeFeeProjector) Project(_ State, p Params) *big.Int {
	return new(big.Int).Neg(p.FinalizeRoundFee)
}

// UnrealizedInterestProjector additionally treats interest that was booked at
// grant time but not yet repaid as at risk.
type UnrealizedInterestProjector struct{}

func (UnrealizedInterestProjector) Name() string { return "unrealized-interest" }

func (UnrealizedInterestProjector) Project(s State, p Params) *big.Int {
	out := new(big.Int).Neg(p.FinalizeRoundFee)
	for _, round := range []RoundRecord{s.Current, s.Previous} {
		for _, info := range round.Borrowers {
			if info.AccountedInterest != nil {
				out.Sub(out, info.AccountedInterest)
			}
		}
	}
	return out
}

var projectors = map[string]Projector{
	FinalizeFeeProjector{}.Name():        FinalizeFeeProjector{},
	UnrealizedInterestProjector{}.Name(): UnrealizedInterestProjector{},
}

// ProjectorByName resolves a configured projector. The empty name selects the
// default.
func ProjectorByName(name string) (Projector, error) {
	if name == "" {
		return FinalizeFeeProjector{}, nil
	}
	p, ok := projectors[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q (known: %v)", ErrUnknownProjector, name, ProjectorNames())
	}
	return p, nil
}

func ProjectorNames() []string {
	out := make([]string, 0, len(projectors))
	for name := range projectors {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}
