package controller

import (
	"encoding/json"
	"errors"
	"math/big"

	coreerrors "stakepool/core/errors"
	"stakepool/core/types"
	"stakepool/crypto"
	"stakepool/native/common"
)

const (
	// Kind is the state init kind of a validator controller.
	Kind = "controller"

	codeBits = 14_336
	dataBits = 1_500
)

var (
	// MinStorage is kept on the controller at all times.
	MinStorage = common.Coins(2)
	// ServiceValue rides on every service message so bounces can pay their way.
	ServiceValue = common.Coins(1)
)

var (
	ErrWrongSender              = coreerrors.New(coreerrors.KindAuthorization, 0x9283, "controller: wrong sender")
	ErrTooEarlyLoanRequest      = coreerrors.New(coreerrors.KindState, 0xfa02, "controller: loan requested before the window opens")
	ErrTooLateLoanRequest       = coreerrors.New(coreerrors.KindState, 0xfa03, "controller: loan requested after the window closed")
	ErrTooHighLoanRequestAmount = coreerrors.New(coreerrors.KindBounds, 0xfa04, "controller: balance does not cover the requested loan")
	ErrNotApproved              = coreerrors.New(coreerrors.KindAuthorization, 0xfa05, "controller: not approved")
	ErrWrongState               = coreerrors.New(coreerrors.KindState, 0xfa06, "controller: operation not allowed in the current state")
	ErrTooEarlyStakeRecover     = coreerrors.New(coreerrors.KindState, 0xfa07, "controller: stake is still held")
	ErrInsufficientFunds        = coreerrors.New(coreerrors.KindLiquidity, 0xfa08, "controller: insufficient balance")
	ErrInvalidLoanRequest       = coreerrors.New(coreerrors.KindBounds, 0xfa09, "controller: invalid loan bounds")
	ErrUnknownOp                = coreerrors.New(coreerrors.KindState, 0xffff, "controller: unsupported operation")
	errInvalidInit              = errors.New("controller: invalid state init")
)

// Status is the loan state of a controller.
type Status uint8

const (
	StatusRest Status = iota
	StatusRequested
	StatusActiveLoan
	StatusSentStake
	StatusRecoverPending
	StatusRepayPending
)

func (s Status) String() string {
	switch s {
	case StatusRequested:
		return "requested"
	case StatusActiveLoan:
		return "active_loan"
	case StatusSentStake:
		return "sent_stake"
	case StatusRecoverPending:
		return "recover_pending"
	case StatusRepayPending:
		return "repay_pending"
	default:
		return "rest"
	}
}

// InitData seeds a controller. ID, Validator and Pool fix the address;
// Approver is copied from the pool's roles at deploy time.
type InitData struct {
	ID        uint32
	Validator crypto.Address
	Pool      crypto.Address
	Approver  crypto.Address
}

// Address derives the controller of validator under pool.
func Address(pool, validator crypto.Address, id uint32) crypto.Address {
	return crypto.Derive(crypto.MasterPrefix, Kind, pool.Bytes(), validator.Bytes(), crypto.Uint32Bytes(id))
}

// StateInit is attached by the pool when it deploys a controller.
func StateInit(data InitData) *types.StateInit {
	return &types.StateInit{Kind: Kind, Data: data, CodeBits: codeBits, DataBits: dataBits}
}

// Factory builds controllers for the bus.
func Factory(addr crypto.Address, init *types.StateInit) (types.Account, error) {
	data, ok := init.Data.(InitData)
	if !ok || Address(data.Pool, data.Validator, data.ID) != addr {
		return nil, errInvalidInit
	}
	return New(data), nil
}

// Controller borrows from the pool on behalf of one validator, stakes the
// loan with the election authority and repays whatever it recovers.
type Controller struct {
	ID        uint32
	Validator crypto.Address
	Pool      crypto.Address
	Approver  crypto.Address

	Status   Status
	Approved bool
	// Borrowed is what the pool expects back: principal plus interest.
	Borrowed      *big.Int
	Principal     *big.Int
	BorrowingTime uint64
	Staked        *big.Int

	ValidatorSetChangeCount uint32
	ValidatorSetChangeTime  uint64
	SavedValidatorSetHash   types.Hash
}

func New(data InitData) *Controller {
	return &Controller{
		ID:        data.ID,
		Validator: data.Validator,
		Pool:      data.Pool,
		Approver:  data.Approver,
		Borrowed:  new(big.Int),
		Principal: new(big.Int),
		Staked:    new(big.Int),
	}
}

func (c *Controller) Clone() types.Account {
	out := *c
	out.Borrowed = common.Copy(c.Borrowed)
	out.Principal = common.Copy(c.Principal)
	out.Staked = common.Copy(c.Staked)
	return &out
}

// Data mirrors the controller getter.
type Data struct {
	ID                      uint32         `json:"id"`
	Validator               crypto.Address `json:"validator"`
	Pool                    crypto.Address `json:"pool"`
	Approver                crypto.Address `json:"approver"`
	Status                  string         `json:"status"`
	Approved                bool           `json:"approved"`
	Borrowed                *big.Int       `json:"borrowed"`
	Principal               *big.Int       `json:"principal"`
	BorrowingTime           uint64         `json:"borrowingTime"`
	Staked                  *big.Int       `json:"staked"`
	ValidatorSetChangeCount uint32         `json:"validatorSetChangeCount"`
	ValidatorSetChangeTime  uint64         `json:"validatorSetChangeTime"`
}

func (c *Controller) Data() Data {
	return Data{
		ID:                      c.ID,
		Validator:               c.Validator,
		Pool:                    c.Pool,
		Approver:                c.Approver,
		Status:                  c.Status.String(),
		Approved:                c.Approved,
		Borrowed:                common.Copy(c.Borrowed),
		Principal:               common.Copy(c.Principal),
		BorrowingTime:           c.BorrowingTime,
		Staked:                  common.Copy(c.Staked),
		ValidatorSetChangeCount: c.ValidatorSetChangeCount,
		ValidatorSetChangeTime:  c.ValidatorSetChangeTime,
	}
}

func (c *Controller) MarshalSnapshot() ([]byte, error) { return json.Marshal(c.Data()) }

// BalanceForLoan is what a controller must hold before asking for maxLoan at
// maxInterest: the worst-case interest plus its storage reserve.
func BalanceForLoan(maxLoan *big.Int, maxInterest uint32) *big.Int {
	need := common.PerShare(maxLoan, maxInterest)
	return need.Add(need, MinStorage)
}
