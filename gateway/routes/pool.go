package routes

import (
	"errors"
	"fmt"
	"math/big"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"stakepool/crypto"
	"stakepool/native/common"
	"stakepool/native/controller"
	"stakepool/native/jetton"
	"stakepool/native/pool"
)

type poolResponse struct {
	pool.FullData
	Address          crypto.Address `json:"address"`
	Balance          *big.Int       `json:"balance"`
	Creditable       *big.Int       `json:"creditable"`
	ProjectedBalance *big.Int       `json:"projectedBalance"`
}

func (a *api) getPool(w http.ResponseWriter, r *http.Request) {
	p, err := a.src.pool()
	if err != nil {
		writeNotFound(w, err)
		return
	}
	balance := a.src.Net.Balance(a.src.Pool)
	writeJSON(w, http.StatusOK, poolResponse{
		FullData:         p.FullData(),
		Address:          a.src.Pool,
		Balance:          balance,
		Creditable:       p.Creditable(balance),
		ProjectedBalance: p.ProjectedBalance(),
	})
}

type loanResponse struct {
	Controller        crypto.Address `json:"controller"`
	Round             uint32         `json:"round"`
	Borrowed          *big.Int       `json:"borrowed"`
	AccountedInterest *big.Int       `json:"accountedInterest"`
	Expected          *big.Int       `json:"expected"`
}

func (a *api) getLoan(w http.ResponseWriter, r *http.Request) {
	validator, err := crypto.DecodeAddress(chi.URLParam(r, "validator"))
	if err != nil {
		writeBadRequest(w, fmt.Errorf("validator: %w", err))
		return
	}
	id, err := strconv.ParseUint(chi.URLParam(r, "id"), 10, 32)
	if err != nil {
		writeBadRequest(w, fmt.Errorf("controller id: %w", err))
		return
	}
	var previous bool
	switch round := r.URL.Query().Get("round"); round {
	case "", "current":
	case "previous":
		previous = true
	default:
		writeBadRequest(w, fmt.Errorf("round must be current or previous, got %q", round))
		return
	}
	p, err := a.src.pool()
	if err != nil {
		writeNotFound(w, err)
		return
	}
	info, ok := p.Loan(a.src.Pool, uint32(id), validator, previous)
	if !ok {
		writeNotFound(w, errors.New("no loan for this controller in the requested round"))
		return
	}
	roundID := p.State.Current.RoundID
	if previous {
		roundID = p.State.Previous.RoundID
	}
	writeJSON(w, http.StatusOK, loanResponse{
		Controller:        controller.Address(a.src.Pool, validator, uint32(id)),
		Round:             roundID,
		Borrowed:          common.Copy(info.Borrowed),
		AccountedInterest: common.Copy(info.AccountedInterest),
		Expected:          info.Expected(),
	})
}

type sharesResponse struct {
	Owner  crypto.Address `json:"owner"`
	Wallet crypto.Address `json:"wallet"`
	Shares *big.Int       `json:"shares"`
	Supply *big.Int       `json:"supply"`
	// Value prices the shares at the pool's accounted rate.
	Value *big.Int `json:"value"`
}

func (a *api) getShares(w http.ResponseWriter, r *http.Request) {
	owner, err := crypto.DecodeAddress(chi.URLParam(r, "owner"))
	if err != nil {
		writeBadRequest(w, fmt.Errorf("owner: %w", err))
		return
	}
	ledger, err := a.src.ledger()
	if err != nil {
		writeNotFound(w, err)
		return
	}
	p, err := a.src.pool()
	if err != nil {
		writeNotFound(w, err)
		return
	}
	shares := ledger.BalanceOf(owner)
	writeJSON(w, http.StatusOK, sharesResponse{
		Owner:  owner,
		Wallet: jetton.WalletAddress(a.src.Ledger, owner),
		Shares: shares,
		Supply: ledger.TotalSupply(),
		Value:  common.MulDivExtra(shares, p.State.TotalBalance, p.State.Supply),
	})
}
