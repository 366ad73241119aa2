package routes

import (
	"errors"
	"fmt"

	"stakepool/core/bus"
	"stakepool/core/types"
	"stakepool/crypto"
	"stakepool/native/jetton"
	"stakepool/native/pool"
)

var errNotDeployed = errors.New("account not deployed")

// NetworkSource reads committed accounts from a running network. Every read
// works on a clone so handlers never race the delivery loop.
type NetworkSource struct {
	Net    *bus.Network
	Pool   crypto.Address
	Ledger crypto.Address
}

func (s NetworkSource) pool() (*pool.Pool, error) {
	return lookup[*pool.Pool](s, s.Pool, "pool")
}

func (s NetworkSource) ledger() (*jetton.Minter, error) {
	return lookup[*jetton.Minter](s, s.Ledger, "ledger")
}

func lookup[T types.Account](s NetworkSource, addr crypto.Address, kind string) (T, error) {
	acc, ok := bus.Lookup[T](s.Net, addr)
	if !ok {
		var zero T
		return zero, fmt.Errorf("%s %s: %w", kind, addr, errNotDeployed)
	}
	return acc, nil
}
