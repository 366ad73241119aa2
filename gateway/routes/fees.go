package routes

import (
	"fmt"
	"math/big"
	"net/http"
	"strconv"

	"stakepool/native/fees"
)

type forwardFeeResponse struct {
	Segment   string   `json:"segment"`
	Cells     uint64   `json:"cells"`
	Bits      uint64   `json:"bits"`
	Total     *big.Int `json:"total"`
	Fees      *big.Int `json:"fees"`
	Remaining *big.Int `json:"remaining"`
}

func parseSegment(name string) (fees.Segment, error) {
	switch name {
	case "", fees.SegmentBase.String():
		return fees.SegmentBase, nil
	case fees.SegmentMaster.String():
		return fees.SegmentMaster, nil
	default:
		return 0, fmt.Errorf("unknown segment %q", name)
	}
}

func queryUint(r *http.Request, key string) (uint64, error) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return 0, nil
	}
	v, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return v, nil
}

// getForwardFee prices a message of the given shape under the running chain
// configuration and splits it the way relays do.
func (a *api) getForwardFee(w http.ResponseWriter, r *http.Request) {
	seg, err := parseSegment(r.URL.Query().Get("segment"))
	if err != nil {
		writeBadRequest(w, err)
		return
	}
	cells, err := queryUint(r, "cells")
	if err != nil {
		writeBadRequest(w, err)
		return
	}
	bits, err := queryUint(r, "bits")
	if err != nil {
		writeBadRequest(w, err)
		return
	}
	table, err := a.src.Net.Chain().Fees.For(seg)
	if err != nil {
		writeNotFound(w, err)
		return
	}
	total := fees.ComputeForwardFee(table, cells, bits)
	split, err := fees.SplitForwardFee(table, total)
	if err != nil {
		writeBadRequest(w, err)
		return
	}
	writeJSON(w, http.StatusOK, forwardFeeResponse{
		Segment:   seg.String(),
		Cells:     cells,
		Bits:      bits,
		Total:     total,
		Fees:      split.Fees,
		Remaining: split.Remaining,
	})
}
