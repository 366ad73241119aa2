package pool

import (
	"math/big"

	"stakepool/core/events"
	"stakepool/core/types"
	"stakepool/crypto"
	"stakepool/native/common"
	"stakepool/native/payout"
)

func (p *Pool) deposit(ctx types.Context, msg *types.Message) error {
	if err := common.Guard(p, moduleDeposit); err != nil {
		return err
	}
	if !p.State.DepositsOpen {
		return ErrDepositsClosed
	}
	if msg.Amount().Cmp(p.Params.DepositFee) <= 0 {
		return ErrDepositTooSmall
	}
	p.maybeRotate(ctx)
	amount := new(big.Int).Sub(msg.Amount(), p.Params.DepositFee)
	if p.State.Optimistic {
		return p.depositNow(ctx, msg, amount)
	}

	collection := p.openCollection(ctx, payout.DirectionDeposit)
	p.mintVoucher(ctx, collection, msg.Src, amount, msg.QueryID)
	p.State.RequestedForDeposit.Add(p.State.RequestedForDeposit, amount)
	ctx.Emit(events.PoolDeposit{
		Depositor: msg.Src,
		Amount:    new(big.Int).Set(amount),
		Minted:    new(big.Int),
		Queued:    true,
		RoundID:   p.State.Current.RoundID,
	}.Event())
	return nil
}

// ProjectedBalance is the accounted balance expected at the end of the round,
// never negative.
func (p *Pool) ProjectedBalance() *big.Int {
	projected := new(big.Int).Add(p.State.TotalBalance, p.projector.Project(p.State, p.Params))
	return common.ClampZero(projected)
}

// depositNow mints shares at the projected rate.
func (p *Pool) depositNow(ctx types.Context, msg *types.Message, amount *big.Int) error {
	s := &p.State
	minted := common.MulDivExtra(amount, s.Supply, p.ProjectedBalance())
	if minted.Sign() <= 0 {
		return ErrDepositTooSmall
	}
	s.TotalBalance.Add(s.TotalBalance, amount)
	s.Supply.Add(s.Supply, minted)
	p.mintShares(ctx, msg.Src, minted, msg.QueryID)
	ctx.Emit(events.PoolDeposit{
		Depositor: msg.Src,
		Amount:    new(big.Int).Set(amount),
		Minted:    new(big.Int).Set(minted),
		RoundID:   s.Current.RoundID,
	}.Event())
	return nil
}

// withdraw handles the share ledger reporting a burn. Failing here bounces the
// notification and the ledger restores the shares.
func (p *Pool) withdraw(ctx types.Context, msg *types.Message, body types.BurnNotification) error {
	if msg.Src != p.Roles.Ledger {
		return ErrWrongSender
	}
	if err := common.Guard(p, moduleWithdraw); err != nil {
		return err
	}
	shares := common.Copy(body.Amount)
	if shares.Sign() <= 0 {
		return ErrInvalidAmount
	}
	p.maybeRotate(ctx)
	s := &p.State
	if s.Optimistic && !body.WaitTillRoundEnd {
		value := common.MulDivExtra(shares, s.TotalBalance, s.Supply)
		available := common.SubClamp(ctx.Balance(), new(big.Int).Add(s.PendingWithdrawalValue(), p.Params.MinStorage))
		if value.Cmp(available) <= 0 {
			s.TotalBalance = common.SubClamp(s.TotalBalance, value)
			s.Supply = common.SubClamp(s.Supply, shares)
			ctx.Send(&types.Message{
				Dst:     body.Owner,
				Value:   value,
				Mode:    types.SendPayFeesSeparately,
				QueryID: msg.QueryID,
				Body:    types.DistributedAsset{Bill: new(big.Int).Set(shares)},
			})
			ctx.Emit(events.PoolWithdrawal{
				Owner:   body.Owner,
				Shares:  shares,
				Payout:  new(big.Int).Set(value),
				RoundID: s.Current.RoundID,
			}.Event())
			return nil
		}
		if body.FillOrKill {
			return ErrInsufficientLiquidity
		}
	}
	if body.FillOrKill && !s.Optimistic {
		return ErrInsufficientLiquidity
	}

	collection := p.openCollection(ctx, payout.DirectionWithdrawal)
	p.mintVoucher(ctx, collection, body.Owner, shares, msg.QueryID)
	s.RequestedForWithdrawal.Add(s.RequestedForWithdrawal, shares)
	ctx.Emit(events.PoolWithdrawal{
		Owner:   body.Owner,
		Shares:  shares,
		Payout:  new(big.Int),
		Queued:  true,
		RoundID: s.Current.RoundID,
	}.Event())
	return nil
}

// openCollection returns the collection of the current round for dir,
// opening it first when none is open.
func (p *Pool) openCollection(ctx types.Context, dir payout.Direction) crypto.Address {
	s := &p.State
	slot := &s.DepositPayout
	if dir == payout.DirectionWithdrawal {
		slot = &s.WithdrawalPayout
	}
	if *slot != nil {
		return **slot
	}
	self := ctx.Self()
	data := payout.CollectionInitData{Admin: self, Round: s.Current.RoundID, Direction: dir}
	addr := payout.CollectionAddress(self, data.Round, dir)
	ctx.Send(&types.Message{
		Dst:   addr,
		Value: common.Copy(p.Params.NotificationAmount),
		Mode:  types.SendPayFeesSeparately,
		Body: types.CollectionInit{
			Jetton: dir == payout.DirectionDeposit,
			Ledger: p.Roles.Ledger,
		},
		Init: payout.CollectionStateInit(data),
	})
	*slot = &addr
	ctx.Logger().Info("payout collection opened", "collection", addr.String(), "direction", dir.String(), "round", data.Round)
	return addr
}

func (p *Pool) mintVoucher(ctx types.Context, collection, owner crypto.Address, bill *big.Int, queryID uint64) {
	ctx.Send(&types.Message{
		Dst:     collection,
		Value:   common.Copy(p.Params.MintGas),
		Mode:    types.SendPayFeesSeparately,
		QueryID: queryID,
		Body:    types.MintVoucher{Owner: owner, Bill: new(big.Int).Set(bill)},
	})
}

func (p *Pool) mintShares(ctx types.Context, to crypto.Address, amount *big.Int, queryID uint64) {
	ctx.Send(p.shareMint(to, amount, queryID))
}

func (p *Pool) shareMint(to crypto.Address, amount *big.Int, queryID uint64) *types.Message {
	return &types.Message{
		Dst:     p.Roles.Ledger,
		Value:   common.Copy(p.Params.NotificationAmount),
		Mode:    types.SendPayFeesSeparately,
		QueryID: queryID,
		Body:    types.JettonMint{To: to, Amount: new(big.Int).Set(amount), Notify: true},
	}
}
