package events

import (
	"math/big"
	"strconv"

	"stakepool/core/types"
	"stakepool/crypto"
)

const (
	// TypePayoutMinted is emitted when a collection mints a voucher.
	TypePayoutMinted = "payout.minted"
	// TypePayoutDistribution is emitted when a collection starts paying out.
	TypePayoutDistribution = "payout.distribution"
	// TypePayoutBurned is emitted when a voucher is burnt and its share paid.
	TypePayoutBurned = "payout.burned"
)

type PayoutMinted struct {
	Collection crypto.Address
	Index      uint64
	Owner      crypto.Address
	Bill       *big.Int
}

func (PayoutMinted) EventType() string { return TypePayoutMinted }

func (e PayoutMinted) Event() *types.Event {
	return &types.Event{
		Type: TypePayoutMinted,
		Attributes: map[string]string{
			"collection": e.Collection.String(),
			"index":      strconv.FormatUint(e.Index, 10),
			"owner":      e.Owner.String(),
			"bill":       amountString(e.Bill),
		},
	}
}

type PayoutDistribution struct {
	Collection crypto.Address
	Volume     *big.Int
	Jetton     bool
	Vouchers   uint64
}

func (PayoutDistribution) EventType() string { return TypePayoutDistribution }

func (e PayoutDistribution) Event() *types.Event {
	return &types.Event{
		Type: TypePayoutDistribution,
		Attributes: map[string]string{
			"collection": e.Collection.String(),
			"volume":     amountString(e.Volume),
			"jetton":     strconv.FormatBool(e.Jetton),
			"vouchers":   strconv.FormatUint(e.Vouchers, 10),
		},
	}
}

type PayoutBurned struct {
	Collection crypto.Address
	Index      uint64
	Owner      crypto.Address
	Bill       *big.Int
	Share      *big.Int
}

func (PayoutBurned) EventType() string { return TypePayoutBurned }

func (e PayoutBurned) Event() *types.Event {
	return &types.Event{
		Type: TypePayoutBurned,
		Attributes: map[string]string{
			"collection": e.Collection.String(),
			"index":      strconv.FormatUint(e.Index, 10),
			"owner":      e.Owner.String(),
			"bill":       amountString(e.Bill),
			"share":      amountString(e.Share),
		},
	}
}
