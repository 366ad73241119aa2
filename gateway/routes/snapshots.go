package routes

import (
	"encoding/json"
	"errors"
	"math/big"
	"net/http"

	"stakepool/core/state"
)

var errNoStore = errors.New("snapshots are not persisted by this node")

type snapshotResponse struct {
	Address string          `json:"address"`
	Kind    string          `json:"kind"`
	Balance *big.Int        `json:"balance"`
	Data    json.RawMessage `json:"data,omitempty"`
}

func toSnapshot(rec state.Record) snapshotResponse {
	out := snapshotResponse{Address: rec.Address, Kind: rec.Kind, Balance: rec.Balance}
	if len(rec.Data) > 0 {
		out.Data = json.RawMessage(rec.Data)
	}
	return out
}

func (a *api) listSnapshots(w http.ResponseWriter, r *http.Request) {
	if a.store == nil {
		writeJSONError(w, http.StatusNotImplemented, errNoStore)
		return
	}
	records, err := a.store.Records(r.URL.Query().Get("kind"))
	if err != nil {
		a.logger.Error("list snapshots", "error", err)
		writeInternalError(w, err)
		return
	}
	out := make([]snapshotResponse, 0, len(records))
	for _, rec := range records {
		out = append(out, toSnapshot(rec))
	}
	writeJSON(w, http.StatusOK, out)
}

func (a *api) getSnapshot(w http.ResponseWriter, r *http.Request) {
	if a.store == nil {
		writeJSONError(w, http.StatusNotImplemented, errNoStore)
		return
	}
	addr, ok := addressParam(w, r)
	if !ok {
		return
	}
	rec, err := a.store.Load(addr)
	if errors.Is(err, state.ErrNotFound) {
		writeNotFound(w, err)
		return
	}
	if err != nil {
		a.logger.Error("load snapshot", "account", addr.String(), "error", err)
		writeInternalError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toSnapshot(rec))
}
