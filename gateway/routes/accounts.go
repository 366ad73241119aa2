package routes

import (
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"stakepool/crypto"
	"stakepool/native/controller"
	"stakepool/native/payout"
)

func addressParam(w http.ResponseWriter, r *http.Request) (crypto.Address, bool) {
	addr, err := crypto.DecodeAddress(chi.URLParam(r, "address"))
	if err != nil {
		writeBadRequest(w, fmt.Errorf("address: %w", err))
		return crypto.Address{}, false
	}
	return addr, true
}

type accountResponse struct {
	Address crypto.Address `json:"address"`
	Status  string         `json:"status"`
	Kind    string         `json:"kind,omitempty"`
	Balance string         `json:"balance"`
}

// getAccount describes any address, including ones that were never used.
func (a *api) getAccount(w http.ResponseWriter, r *http.Request) {
	addr, ok := addressParam(w, r)
	if !ok {
		return
	}
	info := a.src.Net.Info(addr)
	writeJSON(w, http.StatusOK, accountResponse{
		Address: addr,
		Status:  info.Status.String(),
		Kind:    info.Kind,
		Balance: info.Balance.String(),
	})
}

func (a *api) getController(w http.ResponseWriter, r *http.Request) {
	addr, ok := addressParam(w, r)
	if !ok {
		return
	}
	c, err := lookup[*controller.Controller](a.src, addr, "controller")
	if err != nil {
		writeNotFound(w, err)
		return
	}
	writeJSON(w, http.StatusOK, c.Data())
}

func (a *api) getCollection(w http.ResponseWriter, r *http.Request) {
	addr, ok := addressParam(w, r)
	if !ok {
		return
	}
	c, err := lookup[*payout.Collection](a.src, addr, "collection")
	if err != nil {
		writeNotFound(w, err)
		return
	}
	writeJSON(w, http.StatusOK, c.Data())
}

func (a *api) getVoucher(w http.ResponseWriter, r *http.Request) {
	addr, ok := addressParam(w, r)
	if !ok {
		return
	}
	it, err := lookup[*payout.Item](a.src, addr, "voucher")
	if err != nil {
		writeNotFound(w, err)
		return
	}
	writeJSON(w, http.StatusOK, it.NftData())
}
