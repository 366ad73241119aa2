package controller

import (
	"fmt"
	"math/big"

	"stakepool/core/events"
	"stakepool/core/types"
	"stakepool/native/common"
)

func (c *Controller) Receive(ctx types.Context, msg *types.Message) error {
	if msg.Bounced {
		c.bounced(ctx, msg)
		return nil
	}
	switch body := msg.Body.(type) {
	case types.Approve:
		return c.approve(msg, true)
	case types.Disapprove:
		return c.approve(msg, false)
	case types.RequestLoan:
		return c.requestLoan(ctx, msg, body)
	case types.Credit:
		return c.credit(ctx, msg, body)
	case types.NewStake:
		return c.newStake(ctx, msg, body)
	case types.NewStakeOk:
		return nil
	case types.NewStakeError:
		return c.stakeRefused(ctx, msg)
	case types.UpdateValidatorHash:
		c.updateHash(ctx)
		return nil
	case types.RecoverStake:
		return c.recoverStake(ctx, msg)
	case types.RecoverStakeOk:
		return c.recovered(ctx, msg)
	case types.RecoverStakeError:
		if msg.Src != ctx.Chain().Elector {
			return ErrWrongSender
		}
		if c.Status == StatusRecoverPending {
			c.move(ctx, StatusSentStake, nil)
		}
		return nil
	case types.ReturnUnusedLoan:
		return c.returnUnused(ctx, msg)
	case types.RepaymentAccepted:
		return c.repaymentAccepted(ctx, msg, body)
	case types.WithdrawValidator:
		return c.withdraw(ctx, msg, body)
	case nil, types.TopUp:
		return nil
	default:
		return fmt.Errorf("%w: %s", ErrUnknownOp, msg.Op())
	}
}

func (c *Controller) approve(msg *types.Message, approved bool) error {
	if msg.Src != c.Approver {
		return ErrWrongSender
	}
	c.Approved = approved
	return nil
}

func (c *Controller) requestLoan(ctx types.Context, msg *types.Message, body types.RequestLoan) error {
	if msg.Src != c.Validator {
		return ErrWrongSender
	}
	if !c.Approved {
		return ErrNotApproved
	}
	if c.Status != StatusRest {
		return ErrWrongState
	}
	if body.MaxLoan == nil || body.MaxLoan.Sign() <= 0 || body.MinLoan == nil || body.MinLoan.Sign() < 0 {
		return ErrInvalidLoanRequest
	}
	chain := ctx.Chain()
	until, params := chain.Validators.UtimeUntil, chain.Elections
	now := ctx.Now()
	if now+params.StartBefore < until {
		return ErrTooEarlyLoanRequest
	}
	if now+params.EndBefore > until {
		return ErrTooLateLoanRequest
	}
	if ctx.Balance().Cmp(BalanceForLoan(body.MaxLoan, body.MaxInterest)) < 0 {
		return ErrTooHighLoanRequestAmount
	}
	ctx.Send(&types.Message{
		Dst:     c.Pool,
		Value:   new(big.Int).Set(ServiceValue),
		Bounce:  true,
		QueryID: msg.QueryID,
		Body: types.RequestLoan{
			ControllerID: c.ID,
			Validator:    c.Validator,
			MinLoan:      new(big.Int).Set(body.MinLoan),
			MaxLoan:      new(big.Int).Set(body.MaxLoan),
			MaxInterest:  body.MaxInterest,
		},
	})
	c.move(ctx, StatusRequested, body.MaxLoan)
	return nil
}

// credit records the loan granted by the pool. The attached value is the
// principal; the body carries what the pool expects back.
func (c *Controller) credit(ctx types.Context, msg *types.Message, body types.Credit) error {
	if msg.Src != c.Pool {
		return ErrWrongSender
	}
	if c.Status != StatusRequested {
		return ErrWrongState
	}
	c.Principal = msg.Amount()
	c.Borrowed = common.Copy(body.Amount)
	c.BorrowingTime = ctx.Now()
	c.move(ctx, StatusActiveLoan, c.Principal)
	return nil
}

func (c *Controller) newStake(ctx types.Context, msg *types.Message, body types.NewStake) error {
	if msg.Src != c.Validator {
		return ErrWrongSender
	}
	if c.Status != StatusActiveLoan {
		return ErrWrongState
	}
	stake := common.Copy(body.Amount)
	if stake.Sign() <= 0 {
		return ErrInsufficientFunds
	}
	out := &types.Message{
		Dst:     ctx.Chain().Elector,
		Value:   stake,
		Mode:    types.SendPayFeesSeparately,
		Bounce:  true,
		QueryID: msg.QueryID,
		Body:    types.NewStake{Amount: new(big.Int).Set(stake)},
	}
	spend := new(big.Int).Add(stake, ctx.ForwardFee(out))
	if spend.Add(spend, MinStorage).Cmp(ctx.Balance()) > 0 {
		return ErrInsufficientFunds
	}
	ctx.Send(out)
	vs := ctx.Chain().Validators
	c.Staked = new(big.Int).Set(stake)
	c.SavedValidatorSetHash = vs.Hash()
	c.ValidatorSetChangeCount = 0
	c.ValidatorSetChangeTime = vs.UtimeSince
	c.move(ctx, StatusSentStake, stake)
	return nil
}

func (c *Controller) stakeRefused(ctx types.Context, msg *types.Message) error {
	if msg.Src != ctx.Chain().Elector {
		return ErrWrongSender
	}
	if c.Status == StatusSentStake {
		c.Staked = new(big.Int)
		c.move(ctx, StatusActiveLoan, msg.Amount())
	}
	return nil
}

// updateHash notices validator set changes. Only changes seen while the stake
// is with the elector count towards recovery.
func (c *Controller) updateHash(ctx types.Context) {
	vs := ctx.Chain().Validators
	hash := vs.Hash()
	if hash == c.SavedValidatorSetHash {
		return
	}
	c.SavedValidatorSetHash = hash
	if c.Status != StatusSentStake {
		return
	}
	c.ValidatorSetChangeCount++
	c.ValidatorSetChangeTime = vs.UtimeSince
	ctx.Logger().Debug("validator set changed", "count", c.ValidatorSetChangeCount, "since", vs.UtimeSince)
}

// CanRecover reports whether the stake has been released at time now.
func (c *Controller) CanRecover(now uint64, params types.ElectionParams) bool {
	return c.Status == StatusSentStake &&
		c.ValidatorSetChangeCount >= 2 &&
		now >= c.ValidatorSetChangeTime+params.StakeHeldFor
}

func (c *Controller) recoverStake(ctx types.Context, msg *types.Message) error {
	if msg.Src != c.Validator {
		return ErrWrongSender
	}
	if c.Status != StatusSentStake {
		return ErrWrongState
	}
	if !c.CanRecover(ctx.Now(), ctx.Chain().Elections) {
		return ErrTooEarlyStakeRecover
	}
	ctx.Send(&types.Message{
		Dst:     ctx.Chain().Elector,
		Value:   new(big.Int).Set(ServiceValue),
		Bounce:  true,
		QueryID: msg.QueryID,
		Body:    types.RecoverStake{},
	})
	c.move(ctx, StatusRecoverPending, nil)
	return nil
}

// recovered forwards exactly what the elector returned to the pool.
func (c *Controller) recovered(ctx types.Context, msg *types.Message) error {
	if msg.Src != ctx.Chain().Elector {
		return ErrWrongSender
	}
	if c.Status != StatusRecoverPending {
		return ErrWrongState
	}
	c.repay(ctx, msg.QueryID, msg.Amount())
	return nil
}

// returnUnused repays a loan that was never staked. The validator may do it
// at any time; anyone may once the set it borrowed for has started.
func (c *Controller) returnUnused(ctx types.Context, msg *types.Message) error {
	if c.Status != StatusActiveLoan {
		return ErrWrongState
	}
	if msg.Src != c.Validator && ctx.Chain().Validators.UtimeSince <= c.BorrowingTime {
		return ErrWrongSender
	}
	probe := c.repayment(msg.QueryID, common.Copy(c.Borrowed))
	available := common.SubClamp(ctx.Balance(), new(big.Int).Add(MinStorage, ctx.ForwardFee(probe)))
	amount := common.Min(c.Borrowed, available)
	if amount.Sign() <= 0 {
		return ErrInsufficientFunds
	}
	c.repay(ctx, msg.QueryID, amount)
	return nil
}

// repay sends amount to the pool. The debt stays on the books until the pool
// accepts it, so a refused repayment leaves the loan active again.
func (c *Controller) repay(ctx types.Context, queryID uint64, amount *big.Int) {
	ctx.Send(c.repayment(queryID, amount))
	ctx.Logger().Info("loan repaid", "borrowed", c.Principal.String(), "expected", c.Borrowed.String(), "returned", amount.String())
	c.Staked = new(big.Int)
	c.move(ctx, StatusRepayPending, amount)
}

func (c *Controller) repaymentAccepted(ctx types.Context, msg *types.Message, body types.RepaymentAccepted) error {
	if msg.Src != c.Pool {
		return ErrWrongSender
	}
	if c.Status != StatusRepayPending {
		return ErrWrongState
	}
	c.Borrowed = new(big.Int)
	c.Principal = new(big.Int)
	c.BorrowingTime = 0
	c.move(ctx, StatusRest, common.Copy(body.Returned))
	return nil
}

func (c *Controller) repayment(queryID uint64, amount *big.Int) *types.Message {
	return &types.Message{
		Dst:     c.Pool,
		Value:   new(big.Int).Set(amount),
		Mode:    types.SendPayFeesSeparately,
		Bounce:  true,
		QueryID: queryID,
		Body: types.LoanRepayment{
			ControllerID: c.ID,
			Validator:    c.Validator,
			Borrowed:     common.Copy(c.Principal),
			Expected:     common.Copy(c.Borrowed),
			Returned:     new(big.Int).Set(amount),
		},
	}
}

func (c *Controller) withdraw(ctx types.Context, msg *types.Message, body types.WithdrawValidator) error {
	if msg.Src != c.Validator {
		return ErrWrongSender
	}
	if c.Status != StatusRest {
		return ErrWrongState
	}
	amount := common.Copy(body.Amount)
	if amount.Sign() <= 0 || amount.Cmp(common.SubClamp(ctx.Balance(), MinStorage)) > 0 {
		return ErrInsufficientFunds
	}
	ctx.Send(&types.Message{Dst: c.Validator, Value: amount, QueryID: msg.QueryID, Body: types.Excesses{}})
	return nil
}

func (c *Controller) bounced(ctx types.Context, msg *types.Message) {
	switch msg.Body.(type) {
	case types.RequestLoan:
		if c.Status == StatusRequested {
			c.move(ctx, StatusRest, nil)
		}
	case types.NewStake:
		if c.Status == StatusSentStake {
			c.Staked = new(big.Int)
			c.move(ctx, StatusActiveLoan, msg.Amount())
		}
	case types.RecoverStake:
		if c.Status == StatusRecoverPending {
			c.move(ctx, StatusSentStake, nil)
		}
	case types.LoanRepayment:
		ctx.Logger().Warn("pool refused repayment", "value", msg.Amount().String())
		if c.Status == StatusRepayPending {
			c.move(ctx, StatusActiveLoan, msg.Amount())
		}
	}
}

func (c *Controller) move(ctx types.Context, to Status, amount *big.Int) {
	from := c.Status
	c.Status = to
	ctx.Emit(events.ControllerTransition{
		Controller: ctx.Self(),
		Validator:  c.Validator,
		From:       from.String(),
		To:         to.String(),
		Amount:     common.Copy(amount),
	}.Event())
	ctx.Logger().Info("controller transition", "from", from.String(), "to", to.String())
}
