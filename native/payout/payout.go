package payout

import (
	"errors"

	coreerrors "stakepool/core/errors"
	"stakepool/core/types"
	"stakepool/crypto"
)

const (
	CollectionKind = "payout-collection"
	ItemKind       = "payout-item"

	collectionCodeBits = 9_216
	collectionDataBits = 1_100
	itemCodeBits       = 4_096
	itemDataBits       = 700
)

var (
	ErrUnauthorized               = coreerrors.New(coreerrors.KindAuthorization, 0x191, "payout: unauthorized sender")
	ErrNeedInit                   = coreerrors.New(coreerrors.KindState, 0x192, "payout: not initialised")
	ErrAlreadyInited              = coreerrors.New(coreerrors.KindState, 0x193, "payout: already initialised")
	ErrDistributionAlreadyStarted = coreerrors.New(coreerrors.KindState, 0x194, "payout: distribution already started")
	ErrAlreadyDistributing        = coreerrors.New(coreerrors.KindState, 0x195, "payout: already distributing")
	ErrCannotDistributeMismatched = coreerrors.New(coreerrors.KindState, 0x196, "payout: asset does not match the collection")
	ErrNotDistributing            = coreerrors.New(coreerrors.KindState, 0x197, "payout: distribution not started")
	ErrAlreadyBurning             = coreerrors.New(coreerrors.KindState, 0x198, "payout: voucher already burning")
	ErrInvalidBill                = coreerrors.New(coreerrors.KindBounds, 0x199, "payout: bill must be positive")
	ErrVolumeNotFunded            = coreerrors.New(coreerrors.KindBounds, 0x19a, "payout: attached value below the distributed volume")
	ErrUnknownOp                  = coreerrors.New(coreerrors.KindState, 0xffff, "payout: unsupported operation")
	errInvalidInit                = errors.New("payout: invalid state init")
)

// Direction says which side of the pool a collection settles.
type Direction uint8

const (
	DirectionDeposit Direction = iota
	DirectionWithdrawal
)

func (d Direction) String() string {
	if d == DirectionWithdrawal {
		return "withdrawal"
	}
	return "deposit"
}

// CollectionInitData seeds a collection account. Its fields fix the address.
type CollectionInitData struct {
	Admin     crypto.Address
	Round     uint32
	Direction Direction
}

// ItemInitData seeds a voucher account. Its fields fix the address.
type ItemInitData struct {
	Collection crypto.Address
	Index      uint64
}

// CollectionAddress derives the address of the collection admin opens for
// round and direction.
func CollectionAddress(admin crypto.Address, round uint32, dir Direction) crypto.Address {
	return crypto.Derive(crypto.BasePrefix, CollectionKind, admin.Bytes(), crypto.Uint32Bytes(round), []byte{byte(dir)})
}

// ItemAddress derives the address of voucher index of collection.
func ItemAddress(collection crypto.Address, index uint64) crypto.Address {
	return crypto.Derive(crypto.BasePrefix, ItemKind, collection.Bytes(), crypto.Uint64Bytes(index))
}

// CollectionStateInit is attached to the first message sent to a collection.
func CollectionStateInit(data CollectionInitData) *types.StateInit {
	return &types.StateInit{Kind: CollectionKind, Data: data, CodeBits: collectionCodeBits, DataBits: collectionDataBits}
}

func itemStateInit(data ItemInitData) *types.StateInit {
	return &types.StateInit{Kind: ItemKind, Data: data, CodeBits: itemCodeBits, DataBits: itemDataBits}
}

// CollectionFactory builds collections for the bus. The address must match
// the one derived from the init data.
func CollectionFactory(addr crypto.Address, init *types.StateInit) (types.Account, error) {
	data, ok := init.Data.(CollectionInitData)
	if !ok || CollectionAddress(data.Admin, data.Round, data.Direction) != addr {
		return nil, errInvalidInit
	}
	return NewCollection(data), nil
}

// ItemFactory builds voucher accounts for the bus.
func ItemFactory(addr crypto.Address, init *types.StateInit) (types.Account, error) {
	data, ok := init.Data.(ItemInitData)
	if !ok || ItemAddress(data.Collection, data.Index) != addr {
		return nil, errInvalidInit
	}
	return &Item{Collection: data.Collection, Index: data.Index}, nil
}
