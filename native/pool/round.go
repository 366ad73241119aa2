package pool

import (
	"math/big"

	"stakepool/core/events"
	"stakepool/core/types"
	"stakepool/native/common"
)

func (p *Pool) touch(ctx types.Context) {
	if !p.maybeRotate(ctx) {
		ctx.Logger().Debug("touch without rotation", "round", p.State.Current.RoundID)
	}
}

// maybeRotate closes the round once the validator set has changed, every
// loan of the previous round is settled and the account can fund the
// settlement. It reports whether it rotated. A deferred rotation leaves the
// saved hash alone so a later message retries it.
func (p *Pool) maybeRotate(ctx types.Context) bool {
	s := &p.State
	hash := ctx.Chain().Validators.Hash()
	if s.SavedValidatorSetHash.IsZero() {
		s.SavedValidatorSetHash = hash
		return false
	}
	if hash == s.SavedValidatorSetHash {
		return false
	}
	if s.Previous.ActiveBorrowers > 0 {
		ctx.Logger().Debug("rotation deferred", "round", s.Current.RoundID, "outstanding", s.Previous.ActiveBorrowers)
		return false
	}
	plan := p.planSettlement(ctx)
	need := plan.cost(ctx, p.Params.MinStorage)
	if have := ctx.Balance(); have.Cmp(need) < 0 {
		ctx.Logger().Warn("rotation deferred", "round", s.Current.RoundID, "reason", "liquidity",
			"need", need.String(), "have", have.String(), "lent", s.Current.Borrowed.String())
		return false
	}
	s.SavedValidatorSetHash = hash
	p.rotate(ctx, plan)
	return true
}

// settlement is the outcome of closing the current round: the boundary rate
// and the messages that carry it out.
type settlement struct {
	balance *big.Int
	supply  *big.Int
	minted  *big.Int
	paid    *big.Int
	out     []*types.Message
}

// cost is what the account must hold to send every settlement message and
// keep minStorage.
func (st settlement) cost(ctx types.Context, minStorage *big.Int) *big.Int {
	total := common.Copy(minStorage)
	for _, m := range st.out {
		total.Add(total, m.Amount())
		total.Add(total, ctx.ForwardFee(m))
	}
	return total
}

// planSettlement prices the queued requests at the rate left after the
// finalization fee. It does not mutate the pool.
func (p *Pool) planSettlement(ctx types.Context) settlement {
	s := &p.State
	st := settlement{
		balance: common.SubClamp(s.TotalBalance, p.Params.FinalizeRoundFee),
		supply:  common.Copy(s.Supply),
		minted:  new(big.Int),
		paid:    new(big.Int),
	}
	closing := s.Previous
	st.out = append(st.out, &types.Message{
		Dst:   p.Roles.InterestManager,
		Value: common.Copy(p.Params.ServiceNotificationAmount),
		Mode:  types.SendPayFeesSeparately,
		Body: types.RoundStats{
			RoundID:  closing.RoundID,
			Borrowed: common.Copy(closing.Borrowed),
			Expected: common.Copy(closing.Expected),
			Returned: common.Copy(closing.Returned),
			Loss:     closing.Loss,
			Profit:   common.Copy(closing.Profit),
		},
	})

	deposited, withdrawn := s.RequestedForDeposit, s.RequestedForWithdrawal
	if s.DepositPayout != nil && deposited.Sign() > 0 {
		st.minted = common.MulDivExtra(deposited, st.supply, st.balance)
		if st.minted.Sign() > 0 {
			st.out = append(st.out, p.shareMint(*s.DepositPayout, st.minted, 0))
		} else {
			// Nothing to mint: close the collection empty so its vouchers burn.
			st.out = append(st.out, &types.Message{
				Dst:   *s.DepositPayout,
				Value: common.Copy(p.Params.NotificationAmount),
				Mode:  types.SendPayFeesSeparately,
				Body:  types.StartDistribution{Volume: new(big.Int)},
			})
		}
	}
	if s.WithdrawalPayout != nil && withdrawn.Sign() > 0 {
		st.paid = common.MulDivExtra(withdrawn, st.balance, st.supply)
		st.out = append(st.out, &types.Message{
			Dst:   *s.WithdrawalPayout,
			Value: new(big.Int).Add(st.paid, p.Params.NotificationAmount),
			Mode:  types.SendPayFeesSeparately,
			Body:  types.StartDistribution{Volume: new(big.Int).Set(st.paid)},
		})
	}
	return st
}

// rotate archives the current round and applies plan.
func (p *Pool) rotate(ctx types.Context, plan settlement) {
	s := &p.State
	for _, m := range plan.out {
		ctx.Send(m)
	}
	closedID := s.Current.RoundID
	s.Previous = s.Current
	s.Current = newRound(closedID + 1)

	if plan.minted.Sign() == 0 && s.RequestedForDeposit.Sign() > 0 && s.DepositPayout != nil {
		ctx.Logger().Warn("queued deposits too small to mint", "deposited", s.RequestedForDeposit.String())
	}
	s.TotalBalance = common.SubClamp(new(big.Int).Add(plan.balance, s.RequestedForDeposit), plan.paid)
	s.Supply = common.SubClamp(new(big.Int).Add(plan.supply, plan.minted), s.RequestedForWithdrawal)
	s.RequestedForDeposit = new(big.Int)
	s.RequestedForWithdrawal = new(big.Int)
	s.DepositPayout = nil
	s.WithdrawalPayout = nil

	ctx.Emit(events.PoolRoundRotated{
		ClosedRoundID:  closedID,
		TotalBalance:   common.Copy(s.TotalBalance),
		Supply:         common.Copy(s.Supply),
		DepositMinted:  plan.minted,
		WithdrawalPaid: plan.paid,
	}.Event())
	ctx.Logger().Info("round rotated", "closed", closedID, "totalBalance", s.TotalBalance.String(),
		"supply", s.Supply.String(), "minted", plan.minted.String(), "paid", plan.paid.String())
}
