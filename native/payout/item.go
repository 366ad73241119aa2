package payout

import (
	"encoding/json"
	"fmt"
	"math/big"

	"stakepool/core/types"
	"stakepool/crypto"
	"stakepool/native/common"
)

// Item is one bill voucher. It may exist uninitialised at its derived address
// before the collection's init reaches it.
type Item struct {
	Collection crypto.Address
	Index      uint64
	Owner      crypto.Address
	Bill       *big.Int
	Inited     bool
	Burning    bool
}

func (it *Item) Clone() types.Account {
	out := *it
	if it.Bill != nil {
		out.Bill = new(big.Int).Set(it.Bill)
	}
	return &out
}

// NftData mirrors the standard voucher getter.
type NftData struct {
	Inited     bool           `json:"inited"`
	Index      uint64         `json:"index"`
	Collection crypto.Address `json:"collection"`
	Owner      crypto.Address `json:"owner"`
	Bill       *big.Int       `json:"bill"`
}

func (it *Item) NftData() NftData {
	return NftData{
		Inited:     it.Inited,
		Index:      it.Index,
		Collection: it.Collection,
		Owner:      it.Owner,
		Bill:       common.Copy(it.Bill),
	}
}

func (it *Item) MarshalSnapshot() ([]byte, error) { return json.Marshal(it.NftData()) }

func (it *Item) Receive(ctx types.Context, msg *types.Message) error {
	if msg.Bounced {
		if _, ok := msg.Body.(types.VoucherBurned); ok {
			it.Burning = false
			ctx.Logger().Debug("voucher burn refused", "index", it.Index)
		}
		return nil
	}
	switch body := msg.Body.(type) {
	case types.ItemInit:
		return it.init(ctx, msg, body)
	case types.BurnVoucher:
		return it.burn(ctx, msg)
	case types.BurnConfirm:
		if msg.Src != it.Collection {
			return ErrUnauthorized
		}
		ctx.Send(&types.Message{Dst: it.Owner, Mode: types.SendCarryAllBalance, QueryID: msg.QueryID, Body: types.Excesses{}})
		ctx.Destroy()
		return nil
	case nil, types.TopUp:
		return nil
	default:
		return fmt.Errorf("%w: %s", ErrUnknownOp, msg.Op())
	}
}

func (it *Item) init(ctx types.Context, msg *types.Message, body types.ItemInit) error {
	if msg.Src != it.Collection {
		return ErrUnauthorized
	}
	if it.Inited {
		return ErrAlreadyInited
	}
	it.Inited = true
	it.Owner = body.Owner
	it.Bill = common.Copy(body.Bill)
	ctx.Send(&types.Message{
		Dst:     body.Owner,
		Mode:    types.SendPayFeesSeparately,
		QueryID: msg.QueryID,
		Body:    types.OwnershipAssigned{Index: it.Index, Bill: common.Copy(body.Bill)},
	})
	return nil
}

func (it *Item) burn(ctx types.Context, msg *types.Message) error {
	if !it.Inited {
		return ErrNeedInit
	}
	if msg.Src != it.Collection && msg.Src != it.Owner {
		return ErrUnauthorized
	}
	if it.Burning {
		return ErrAlreadyBurning
	}
	it.Burning = true
	// Half the balance rides along so a refusal can bounce back.
	ctx.Send(&types.Message{
		Dst:     it.Collection,
		Value:   new(big.Int).Rsh(ctx.Balance(), 1),
		Bounce:  true,
		QueryID: msg.QueryID,
		Body:    types.VoucherBurned{Index: it.Index, Owner: it.Owner, Bill: common.Copy(it.Bill)},
	})
	return nil
}
