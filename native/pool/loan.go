package pool

import (
	"math/big"

	"stakepool/core/events"
	"stakepool/core/types"
	"stakepool/crypto"
	"stakepool/native/common"
	"stakepool/native/controller"
)

func (p *Pool) requestLoan(ctx types.Context, msg *types.Message, body types.RequestLoan) error {
	if msg.Src != controller.Address(ctx.Self(), body.Validator, body.ControllerID) {
		return ErrWrongSender
	}
	if err := common.Guard(p, moduleLoan); err != nil {
		return err
	}
	p.maybeRotate(ctx)

	minLoan, maxLoan := common.Copy(body.MinLoan), common.Copy(body.MaxLoan)
	switch {
	case minLoan.Cmp(maxLoan) > 0:
		return ErrInvalidLoanRequest
	case minLoan.Cmp(p.Params.MinLoan) < 0:
		return ErrTooLowLoanRequestAmount
	case maxLoan.Cmp(p.Params.MaxLoan) > 0:
		return ErrTooHighLoanRequestAmount
	case body.MaxInterest < p.Params.InterestRate:
		return ErrInterestTooLow
	}
	s := &p.State
	if _, ok := s.Current.Borrowers[msg.Src]; ok {
		return ErrLoanAlreadyActive
	}
	// The request's own service value is not lendable.
	balance := common.SubClamp(ctx.Balance(), msg.Amount())
	creditable := p.Creditable(balance)
	if maxLoan.Cmp(creditable) > 0 {
		return ErrTooHighLoanRequestAmount
	}
	principal := common.Min(creditable, maxLoan)
	interest := common.PerShare(principal, p.Params.InterestRate)
	info := BorrowerInfo{Borrowed: principal, AccountedInterest: interest}

	s.Current.Borrowers[msg.Src] = info
	s.Current.ActiveBorrowers++
	s.Current.Borrowed.Add(s.Current.Borrowed, principal)
	s.Current.Expected.Add(s.Current.Expected, info.Expected())
	s.TotalBalance.Add(s.TotalBalance, interest)

	ctx.Send(&types.Message{
		Dst:     msg.Src,
		Value:   new(big.Int).Set(principal),
		Mode:    types.SendPayFeesSeparately,
		Bounce:  true,
		QueryID: msg.QueryID,
		Body:    types.Credit{Amount: info.Expected()},
	})
	ctx.Emit(events.PoolLoanGranted{
		Controller: msg.Src,
		Validator:  body.Validator,
		Principal:  new(big.Int).Set(principal),
		Interest:   new(big.Int).Set(interest),
		RoundID:    s.Current.RoundID,
	}.Event())
	ctx.Logger().Info("loan granted", "controller", msg.Src.String(), "principal", principal.String(), "interest", interest.String())
	return nil
}

// loanRepayment settles a borrower of the current or previous round. The
// value actually received counts as returned, whatever the body declares.
func (p *Pool) loanRepayment(ctx types.Context, msg *types.Message, body types.LoanRepayment) error {
	if msg.Src != controller.Address(ctx.Self(), body.Validator, body.ControllerID) {
		return ErrWrongSender
	}
	s := &p.State
	round := &s.Current
	info, ok := round.Borrowers[msg.Src]
	if !ok {
		round = &s.Previous
		if info, ok = round.Borrowers[msg.Src]; !ok {
			return ErrNoActiveLoan
		}
	}
	returned := msg.Amount()
	fee := p.settle(ctx, round, msg.Src, info, returned)
	ctx.Send(&types.Message{
		Dst:     msg.Src,
		Mode:    types.SendPayFeesSeparately,
		QueryID: msg.QueryID,
		Body:    types.RepaymentAccepted{Returned: new(big.Int).Set(returned)},
	})

	ctx.Emit(events.PoolLoanRepaid{
		Controller:    msg.Src,
		RoundID:       round.RoundID,
		Borrowed:      common.Copy(info.Borrowed),
		Expected:      info.Expected(),
		Returned:      returned,
		Loss:          round.Loss,
		Profit:        common.Copy(round.Profit),
		GovernanceFee: fee,
	}.Event())
	p.maybeRotate(ctx)
	return nil
}

// settle books returned against the borrower's expected amount and returns
// the governance fee skimmed from any excess.
func (p *Pool) settle(ctx types.Context, round *RoundRecord, borrower crypto.Address, info BorrowerInfo, returned *big.Int) *big.Int {
	s := &p.State
	delete(round.Borrowers, borrower)
	if round.ActiveBorrowers > 0 {
		round.ActiveBorrowers--
	}
	round.Returned.Add(round.Returned, returned)
	delta := new(big.Int).Sub(returned, info.Expected())
	round.addResult(delta)

	fee := new(big.Int)
	switch delta.Sign() {
	case 1:
		fee = common.PerShare(delta, p.Params.GovernanceFee)
		if fee.Cmp(p.Params.ServiceNotificationAmount) <= 0 {
			fee = new(big.Int)
		} else {
			ctx.Send(&types.Message{Dst: p.Roles.InterestManager, Value: new(big.Int).Set(fee), Body: types.TopUp{}})
		}
		s.TotalBalance.Add(s.TotalBalance, new(big.Int).Sub(delta, fee))
	case -1:
		s.TotalBalance = common.ClampZero(new(big.Int).Add(s.TotalBalance, delta))
		ctx.Logger().Warn("loan repaid at a loss", "borrower", borrower.String(), "loss", new(big.Int).Neg(delta).String())
	}
	return fee
}

// revertLoan undoes a grant whose credit the controller refused.
func (p *Pool) revertLoan(ctx types.Context, borrower crypto.Address) {
	s := &p.State
	info, ok := s.Current.Borrowers[borrower]
	if !ok {
		return
	}
	delete(s.Current.Borrowers, borrower)
	s.Current.ActiveBorrowers--
	s.Current.Borrowed = common.SubClamp(s.Current.Borrowed, info.Borrowed)
	s.Current.Expected = common.SubClamp(s.Current.Expected, info.Expected())
	s.TotalBalance = common.SubClamp(s.TotalBalance, info.AccountedInterest)
	ctx.Logger().Warn("credit refused, loan reverted", "controller", borrower.String(), "principal", info.Borrowed.String())
}

func (p *Pool) bounced(ctx types.Context, msg *types.Message) {
	switch msg.Body.(type) {
	case types.Credit:
		p.revertLoan(ctx, msg.Src)
	default:
		ctx.Logger().Debug("bounce ignored", "op", msg.Op().String(), "from", msg.Src.String())
	}
}
