package payout

import (
	"encoding/json"
	"fmt"
	"math/big"

	"stakepool/core/events"
	"stakepool/core/types"
	"stakepool/crypto"
	"stakepool/native/common"
)

// Distribution tracks a payout in progress. BillAtStart freezes the divisor
// so shares do not drift as vouchers burn.
type Distribution struct {
	Active      bool
	Volume      *big.Int
	BillAtStart *big.Int
	Paid        *big.Int
}

// Collection mints bill vouchers and, once distribution starts, pays each
// burnt voucher its share of the distributed volume.
type Collection struct {
	Admin         crypto.Address
	Round         uint32
	Direction     Direction
	Inited        bool
	Jetton        bool
	Ledger        crypto.Address
	NextItemIndex uint64
	TotalBill     *big.Int
	BillsCount    uint64
	Distribution  Distribution
}

func NewCollection(data CollectionInitData) *Collection {
	return &Collection{
		Admin:     data.Admin,
		Round:     data.Round,
		Direction: data.Direction,
		TotalBill: new(big.Int),
		Distribution: Distribution{
			Volume:      new(big.Int),
			BillAtStart: new(big.Int),
			Paid:        new(big.Int),
		},
	}
}

func (c *Collection) Clone() types.Account {
	out := *c
	out.TotalBill = common.Copy(c.TotalBill)
	out.Distribution.Volume = common.Copy(c.Distribution.Volume)
	out.Distribution.BillAtStart = common.Copy(c.Distribution.BillAtStart)
	out.Distribution.Paid = common.Copy(c.Distribution.Paid)
	return &out
}

// CollectionData mirrors the collection getters.
type CollectionData struct {
	Admin         crypto.Address `json:"admin"`
	Round         uint32         `json:"round"`
	Direction     string         `json:"direction"`
	Jetton        bool           `json:"jetton"`
	NextItemIndex uint64         `json:"nextItemIndex"`
	TotalBill     *big.Int       `json:"totalBill"`
	BillsCount    uint64         `json:"billsCount"`
	Distributing  bool           `json:"distributing"`
	Volume        *big.Int       `json:"volume"`
	Paid          *big.Int       `json:"paid"`
}

func (c *Collection) Data() CollectionData {
	return CollectionData{
		Admin:         c.Admin,
		Round:         c.Round,
		Direction:     c.Direction.String(),
		Jetton:        c.Jetton,
		NextItemIndex: c.NextItemIndex,
		TotalBill:     common.Copy(c.TotalBill),
		BillsCount:    c.BillsCount,
		Distributing:  c.Distribution.Active,
		Volume:        common.Copy(c.Distribution.Volume),
		Paid:          common.Copy(c.Distribution.Paid),
	}
}

func (c *Collection) MarshalSnapshot() ([]byte, error) { return json.Marshal(c.Data()) }

func (c *Collection) Receive(ctx types.Context, msg *types.Message) error {
	if msg.Bounced {
		return nil
	}
	switch body := msg.Body.(type) {
	case types.CollectionInit:
		return c.init(ctx, msg, body)
	case types.MintVoucher:
		return c.mint(ctx, msg, body)
	case types.StartDistribution:
		return c.startNative(ctx, msg, body)
	case types.TransferNotification:
		return c.startJetton(ctx, msg, body)
	case types.VoucherBurned:
		return c.burned(ctx, msg, body)
	case nil, types.TopUp:
		return nil
	default:
		return fmt.Errorf("%w: %s", ErrUnknownOp, msg.Op())
	}
}

func (c *Collection) init(ctx types.Context, msg *types.Message, body types.CollectionInit) error {
	if msg.Src != c.Admin {
		return ErrUnauthorized
	}
	if c.Inited {
		return ErrAlreadyInited
	}
	c.Inited = true
	c.Jetton = body.Jetton
	c.Ledger = body.Ledger
	ctx.Logger().Debug("collection initialised", "round", c.Round, "direction", c.Direction.String(), "jetton", c.Jetton)
	return nil
}

// mint allocates the next voucher. Half of the attached value funds the
// voucher account; the rest stays to pay for its distribution messages.
func (c *Collection) mint(ctx types.Context, msg *types.Message, body types.MintVoucher) error {
	if msg.Src != c.Admin {
		return ErrUnauthorized
	}
	if !c.Inited {
		return ErrNeedInit
	}
	if c.Distribution.Active {
		return ErrDistributionAlreadyStarted
	}
	if body.Bill == nil || body.Bill.Sign() <= 0 {
		return ErrInvalidBill
	}
	index := c.NextItemIndex
	c.NextItemIndex++
	c.TotalBill.Add(c.TotalBill, body.Bill)
	c.BillsCount++

	self := ctx.Self()
	ctx.Send(&types.Message{
		Dst:     ItemAddress(self, index),
		Value:   new(big.Int).Rsh(msg.Amount(), 1),
		Bounce:  false,
		QueryID: msg.QueryID,
		Body:    types.ItemInit{Owner: body.Owner, Bill: new(big.Int).Set(body.Bill)},
		Init:    itemStateInit(ItemInitData{Collection: self, Index: index}),
	})
	ctx.Emit(events.PayoutMinted{
		Collection: self,
		Index:      index,
		Owner:      body.Owner,
		Bill:       new(big.Int).Set(body.Bill),
	}.Event())
	return nil
}

// startNative starts a coin distribution. A jetton collection accepts it
// only with a zero volume, which closes a round whose deposits minted nothing
// so the vouchers still burn.
func (c *Collection) startNative(ctx types.Context, msg *types.Message, body types.StartDistribution) error {
	if msg.Src != c.Admin {
		return ErrUnauthorized
	}
	volume := common.Copy(body.Volume)
	if err := c.canStart(c.Jetton && volume.Sign() == 0); err != nil {
		return err
	}
	if msg.Amount().Cmp(volume) < 0 {
		return ErrVolumeNotFunded
	}
	c.start(ctx, volume)
	return nil
}

// startJetton handles the token ledger telling the collection that the admin
// moved the distributed volume to it.
func (c *Collection) startJetton(ctx types.Context, msg *types.Message, body types.TransferNotification) error {
	if !c.Jetton {
		return ErrCannotDistributeMismatched
	}
	if msg.Src != c.Ledger || body.Sender != c.Admin {
		return ErrUnauthorized
	}
	if err := c.canStart(true); err != nil {
		return err
	}
	c.start(ctx, common.Copy(body.Amount))
	return nil
}

func (c *Collection) canStart(jetton bool) error {
	if !c.Inited {
		return ErrNeedInit
	}
	if c.Distribution.Active {
		return ErrAlreadyDistributing
	}
	if c.Jetton != jetton {
		return ErrCannotDistributeMismatched
	}
	return nil
}

func (c *Collection) start(ctx types.Context, volume *big.Int) {
	c.Distribution = Distribution{
		Active:      true,
		Volume:      volume,
		BillAtStart: new(big.Int).Set(c.TotalBill),
		Paid:        new(big.Int),
	}
	self := ctx.Self()
	for i := uint64(0); i < c.NextItemIndex; i++ {
		ctx.Send(&types.Message{
			Dst:  ItemAddress(self, i),
			Mode: types.SendPayFeesSeparately,
			Body: types.BurnVoucher{},
		})
	}
	ctx.Emit(events.PayoutDistribution{
		Collection: self,
		Volume:     new(big.Int).Set(volume),
		Jetton:     c.Jetton,
		Vouchers:   c.BillsCount,
	}.Event())
	ctx.Logger().Info("distribution started", "round", c.Round, "direction", c.Direction.String(),
		"volume", volume.String(), "vouchers", c.BillsCount)
}

// Share returns what a voucher with the given bill receives now. The last
// outstanding voucher takes whatever volume is left so nothing is stranded.
func (c *Collection) Share(bill *big.Int) *big.Int {
	d := c.Distribution
	if c.BillsCount <= 1 {
		return common.SubClamp(d.Volume, d.Paid)
	}
	share := common.MulDiv(d.Volume, bill, d.BillAtStart)
	return common.Min(share, common.SubClamp(d.Volume, d.Paid))
}

func (c *Collection) burned(ctx types.Context, msg *types.Message, body types.VoucherBurned) error {
	self := ctx.Self()
	if body.Index >= c.NextItemIndex || msg.Src != ItemAddress(self, body.Index) {
		return ErrUnauthorized
	}
	if !c.Distribution.Active {
		return ErrNotDistributing
	}
	bill := common.Copy(body.Bill)
	share := c.Share(bill)
	c.Distribution.Paid.Add(c.Distribution.Paid, share)
	c.TotalBill = common.SubClamp(c.TotalBill, bill)
	c.BillsCount--

	if c.Jetton {
		if share.Sign() > 0 {
			ctx.Send(&types.Message{
				Dst:     c.Ledger,
				Mode:    types.SendPayFeesSeparately,
				QueryID: msg.QueryID,
				Body:    types.JettonTransfer{To: body.Owner, Amount: new(big.Int).Set(share)},
			})
		}
	} else {
		ctx.Send(&types.Message{
			Dst:     body.Owner,
			Value:   new(big.Int).Set(share),
			Mode:    types.SendPayFeesSeparately,
			QueryID: msg.QueryID,
			Body:    types.DistributedAsset{Bill: new(big.Int).Set(bill)},
		})
	}
	ctx.Send(&types.Message{Dst: msg.Src, Mode: types.SendPayFeesSeparately, QueryID: msg.QueryID, Body: types.BurnConfirm{}})
	ctx.Emit(events.PayoutBurned{
		Collection: self,
		Index:      body.Index,
		Owner:      body.Owner,
		Bill:       bill,
		Share:      new(big.Int).Set(share),
	}.Event())
	return nil
}
