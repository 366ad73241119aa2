package types

import (
	"math/big"

	"stakepool/crypto"
)

// AccountStatus mirrors the lifecycle of an address on the bus.
type AccountStatus uint8

const (
	// AccountNonexist addresses hold neither state nor balance.
	AccountNonexist AccountStatus = iota
	// AccountUninit addresses hold a balance but no deployed account.
	AccountUninit
	AccountActive
)

func (s AccountStatus) String() string {
	switch s {
	case AccountUninit:
		return "uninit"
	case AccountActive:
		return "active"
	default:
		return "nonexist"
	}
}

// AccountInfo is a read-only snapshot of an address on the bus.
type AccountInfo struct {
	Address crypto.Address `json:"address"`
	Status  AccountStatus  `json:"-"`
	Kind    string         `json:"kind,omitempty"`
	Balance *big.Int       `json:"balance"`
}

// Snapshotter is implemented by accounts whose getter view can be persisted.
type Snapshotter interface {
	MarshalSnapshot() ([]byte, error)
}
