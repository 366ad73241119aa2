package pool

import (
	"encoding/json"
	"errors"
	"fmt"
	"math/big"

	coreerrors "stakepool/core/errors"
	"stakepool/core/types"
	"stakepool/crypto"
	"stakepool/native/common"
	"stakepool/native/controller"
)

// Kind is the state init kind of the pool.
const Kind = "pool"

// Operation families that Halt stops.
const (
	moduleDeposit  = "deposit"
	moduleWithdraw = "withdraw"
	moduleLoan     = "loan"
)

var (
	ErrWrongSender              = coreerrors.New(coreerrors.KindAuthorization, 0x9283, "pool: wrong sender")
	ErrDepositsClosed           = coreerrors.New(coreerrors.KindState, 0xfa21, "pool: deposits closed")
	ErrDepositTooSmall          = coreerrors.New(coreerrors.KindBounds, 0xfa22, "pool: deposit does not cover the fee")
	ErrTooLowLoanRequestAmount  = coreerrors.New(coreerrors.KindBounds, 0xfa23, "pool: loan below the per-validator minimum")
	ErrTooHighLoanRequestAmount = coreerrors.New(coreerrors.KindBounds, 0xfa04, "pool: loan above the creditable balance")
	ErrInterestTooLow           = coreerrors.New(coreerrors.KindBounds, 0xfa24, "pool: max interest below the pool rate")
	ErrLoanAlreadyActive        = coreerrors.New(coreerrors.KindState, 0xfa25, "pool: borrower already has a loan this round")
	ErrNoActiveLoan             = coreerrors.New(coreerrors.KindState, 0xfa26, "pool: no active loan for borrower")
	ErrInsufficientLiquidity    = coreerrors.New(coreerrors.KindLiquidity, 0xfa27, "pool: not enough liquidity to fill the withdrawal")
	ErrInvalidLoanRequest       = coreerrors.New(coreerrors.KindBounds, 0xfa28, "pool: min loan above max loan")
	ErrInvalidParams            = coreerrors.New(coreerrors.KindBounds, 0xfa29, "pool: invalid parameters")
	ErrInvalidAmount            = coreerrors.New(coreerrors.KindBounds, 0xfa2a, "pool: amount must be positive")
	ErrUnknownOp                = coreerrors.New(coreerrors.KindState, 0xffff, "pool: unsupported operation")
	// ErrHalted is returned for deposits, withdrawals and loans while halted.
	ErrHalted = common.ErrModulePaused

	ErrUnknownProjector = errors.New("pool: unknown projector")
)

// Pool is the round ledger account. It takes deposits, lends to controllers
// and settles queued deposits and withdrawals at each round boundary.
type Pool struct {
	Params    Params
	Roles     Roles
	State     State
	projector Projector
}

// New returns a pool with an empty ledger. A nil projector selects the
// default one.
func New(params Params, roles Roles, projector Projector) *Pool {
	if projector == nil {
		projector = FinalizeFeeProjector{}
	}
	return &Pool{
		Params:    params.Clone(),
		Roles:     roles,
		State:     newState(),
		projector: projector,
	}
}

func (p *Pool) Clone() types.Account {
	return &Pool{
		Params:    p.Params.Clone(),
		Roles:     p.Roles,
		State:     p.State.Clone(),
		projector: p.projector,
	}
}

func (p *Pool) Projector() Projector { return p.projector }

// IsPaused reports whether module is halted.
func (p *Pool) IsPaused(module string) bool { return p.State.Halted }

func (p *Pool) Receive(ctx types.Context, msg *types.Message) error {
	if msg.Bounced {
		p.bounced(ctx, msg)
		return nil
	}
	switch body := msg.Body.(type) {
	case types.Deposit:
		return p.deposit(ctx, msg)
	case types.BurnNotification:
		return p.withdraw(ctx, msg, body)
	case types.DeployController:
		return p.deployController(ctx, msg, body)
	case types.RequestLoan:
		return p.requestLoan(ctx, msg, body)
	case types.LoanRepayment:
		return p.loanRepayment(ctx, msg, body)
	case types.Touch:
		p.touch(ctx)
		return nil
	case types.Donate:
		p.State.TotalBalance.Add(p.State.TotalBalance, msg.Amount())
		return nil
	case types.SetDepositSettings:
		if msg.Src != p.Roles.Governor {
			return ErrWrongSender
		}
		p.State.Optimistic = body.Optimistic
		p.State.DepositsOpen = body.DepositsOpen
		return nil
	case types.SetGovernanceFee:
		if msg.Src != p.Roles.Governor {
			return ErrWrongSender
		}
		if body.Fee > common.ShareBase {
			return ErrInvalidParams
		}
		p.Params.GovernanceFee = body.Fee
		return nil
	case types.SetLoanBounds:
		return p.setLoanBounds(msg, body)
	case types.SetInterest:
		if msg.Src != p.Roles.InterestManager {
			return ErrWrongSender
		}
		if body.Rate > common.ShareBase {
			return ErrInvalidParams
		}
		p.Params.InterestRate = body.Rate
		return nil
	case types.Halt, types.Unhalt:
		if msg.Src != p.Roles.Halter {
			return ErrWrongSender
		}
		_, halt := body.(types.Halt)
		p.State.Halted = halt
		ctx.Logger().Info("pool halt toggled", "halted", halt)
		return nil
	case nil, types.TopUp:
		return nil
	default:
		return fmt.Errorf("%w: %s", ErrUnknownOp, msg.Op())
	}
}

func (p *Pool) setLoanBounds(msg *types.Message, body types.SetLoanBounds) error {
	if msg.Src != p.Roles.Governor {
		return ErrWrongSender
	}
	if body.Min == nil || body.Max == nil || body.Min.Sign() < 0 || body.Min.Cmp(body.Max) > 0 {
		return ErrInvalidParams
	}
	p.Params.MinLoan = new(big.Int).Set(body.Min)
	p.Params.MaxLoan = new(big.Int).Set(body.Max)
	return nil
}

// deployController sends the state init of the sender's controller. An
// existing controller just receives the value.
func (p *Pool) deployController(ctx types.Context, msg *types.Message, body types.DeployController) error {
	if err := common.Guard(p, moduleLoan); err != nil {
		return err
	}
	self := ctx.Self()
	addr := controller.Address(self, msg.Src, body.ControllerID)
	ctx.Send(&types.Message{
		Dst:     addr,
		Value:   msg.Amount(),
		QueryID: msg.QueryID,
		Body:    types.TopUp{},
		Init: controller.StateInit(controller.InitData{
			ID:        body.ControllerID,
			Validator: msg.Src,
			Pool:      self,
			Approver:  p.Roles.Approver,
		}),
	})
	ctx.Logger().Info("controller deployed", "controller", addr.String(), "validator", msg.Src.String(), "id", body.ControllerID)
	return nil
}

// Creditable is how much the pool may lend given its actual balance.
func (p *Pool) Creditable(balance *big.Int) *big.Int {
	s := p.State
	spare := new(big.Int).Sub(common.Copy(balance), s.PendingWithdrawalValue())
	spare.Sub(spare, p.Params.MinStorage)
	capped := new(big.Int).Mul(s.TotalBalance, big.NewInt(int64(256+p.Params.DisbalanceTolerance)))
	capped.Quo(capped, big.NewInt(512))
	return common.ClampZero(common.Min(spare, capped))
}

// Loan returns the loan of controller id of validator in the current or the
// previous round.
func (p *Pool) Loan(self crypto.Address, id uint32, validator crypto.Address, previous bool) (BorrowerInfo, bool) {
	round := p.State.Current
	if previous {
		round = p.State.Previous
	}
	info, ok := round.Borrowers[controller.Address(self, validator, id)]
	return info, ok
}

// FullData mirrors the pool getter.
type FullData struct {
	TotalBalance           *big.Int        `json:"totalBalance"`
	Supply                 *big.Int        `json:"supply"`
	InterestRate           uint32          `json:"interestRate"`
	GovernanceFee          uint32          `json:"governanceFee"`
	MinLoan                *big.Int        `json:"minLoan"`
	MaxLoan                *big.Int        `json:"maxLoan"`
	DisbalanceTolerance    uint32          `json:"disbalanceTolerance"`
	RequestedForDeposit    *big.Int        `json:"requestedForDeposit"`
	RequestedForWithdrawal *big.Int        `json:"requestedForWithdrawal"`
	DepositPayout          *crypto.Address `json:"depositPayout"`
	WithdrawalPayout       *crypto.Address `json:"withdrawalPayout"`
	Optimistic             bool            `json:"optimistic"`
	DepositsOpen           bool            `json:"depositsOpen"`
	Halted                 bool            `json:"halted"`
	Projector              string          `json:"projector"`
	CurrentRound           RoundSummary    `json:"currentRound"`
	PreviousRound          RoundSummary    `json:"previousRound"`
	Roles                  Roles           `json:"roles"`
}

// RoundSummary is a round record without its borrower map.
type RoundSummary struct {
	RoundID         uint32   `json:"roundId"`
	ActiveBorrowers uint32   `json:"activeBorrowers"`
	Borrowed        *big.Int `json:"borrowed"`
	Expected        *big.Int `json:"expected"`
	Returned        *big.Int `json:"returned"`
	Loss            bool     `json:"loss"`
	Profit          *big.Int `json:"profit"`
}

func summarize(r RoundRecord) RoundSummary {
	return RoundSummary{
		RoundID:         r.RoundID,
		ActiveBorrowers: r.ActiveBorrowers,
		Borrowed:        common.Copy(r.Borrowed),
		Expected:        common.Copy(r.Expected),
		Returned:        common.Copy(r.Returned),
		Loss:            r.Loss,
		Profit:          common.Copy(r.Profit),
	}
}

func (p *Pool) MarshalSnapshot() ([]byte, error) { return json.Marshal(p.FullData()) }

func (p *Pool) FullData() FullData {
	s := p.State
	return FullData{
		TotalBalance:           common.Copy(s.TotalBalance),
		Supply:                 common.Copy(s.Supply),
		InterestRate:           p.Params.InterestRate,
		GovernanceFee:          p.Params.GovernanceFee,
		MinLoan:                common.Copy(p.Params.MinLoan),
		MaxLoan:                common.Copy(p.Params.MaxLoan),
		DisbalanceTolerance:    p.Params.DisbalanceTolerance,
		RequestedForDeposit:    common.Copy(s.RequestedForDeposit),
		RequestedForWithdrawal: common.Copy(s.RequestedForWithdrawal),
		DepositPayout:          cloneAddr(s.DepositPayout),
		WithdrawalPayout:       cloneAddr(s.WithdrawalPayout),
		Optimistic:             s.Optimistic,
		DepositsOpen:           s.DepositsOpen,
		Halted:                 s.Halted,
		Projector:              p.projector.Name(),
		CurrentRound:           summarize(s.Current),
		PreviousRound:          summarize(s.Previous),
		Roles:                  p.Roles,
	}
}
