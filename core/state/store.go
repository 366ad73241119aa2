package state

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/rlp"

	"stakepool/core/types"
	"stakepool/crypto"
	"stakepool/storage"
)

var (
	accountPrefix = []byte("account/")

	ErrNotFound      = errors.New("state: account not found")
	ErrUninitialised = errors.New("state: store uninitialised")
)

// Record is the persisted view of one account. Data holds the account's
// getter view as JSON for kinds that expose one.
type Record struct {
	Address string
	Kind    string
	Balance *big.Int
	Data    []byte
}

// Addr decodes the record's address.
func (r Record) Addr() (crypto.Address, error) {
	return crypto.DecodeAddress(r.Address)
}

// Store persists committed accounts as RLP records keyed by address. It
// satisfies the bus persistence hook.
type Store struct {
	db storage.Database
}

func New(db storage.Database) *Store {
	return &Store{db: db}
}

func accountKey(addr string) []byte {
	buf := make([]byte, 0, len(accountPrefix)+len(addr))
	buf = append(buf, accountPrefix...)
	return append(buf, addr...)
}

// Save writes the snapshot of acc.
func (s *Store) Save(info types.AccountInfo, acc types.Account) error {
	if s == nil || s.db == nil {
		return ErrUninitialised
	}
	rec := Record{
		Address: info.Address.String(),
		Kind:    info.Kind,
		Balance: new(big.Int),
	}
	if info.Balance != nil {
		rec.Balance.Set(info.Balance)
	}
	if snap, ok := acc.(types.Snapshotter); ok {
		data, err := snap.MarshalSnapshot()
		if err != nil {
			return fmt.Errorf("state: snapshot %s: %w", rec.Address, err)
		}
		rec.Data = data
	}
	encoded, err := rlp.EncodeToBytes(&rec)
	if err != nil {
		return err
	}
	return s.db.Put(accountKey(rec.Address), encoded)
}

func (s *Store) Delete(addr crypto.Address) error {
	if s == nil || s.db == nil {
		return ErrUninitialised
	}
	return s.db.Delete(accountKey(addr.String()))
}

// Load returns the last committed record of addr.
func (s *Store) Load(addr crypto.Address) (Record, error) {
	if s == nil || s.db == nil {
		return Record{}, ErrUninitialised
	}
	data, err := s.db.Get(accountKey(addr.String()))
	if errors.Is(err, storage.ErrNotFound) {
		return Record{}, fmt.Errorf("%w: %s", ErrNotFound, addr)
	}
	if err != nil {
		return Record{}, err
	}
	var rec Record
	if err := rlp.DecodeBytes(data, &rec); err != nil {
		return Record{}, fmt.Errorf("state: decode %s: %w", addr, err)
	}
	return rec, nil
}

// Records lists the stored accounts of kind in key order. An empty kind lists
// every account.
func (s *Store) Records(kind string) ([]Record, error) {
	if s == nil || s.db == nil {
		return nil, ErrUninitialised
	}
	var out []Record
	err := s.db.Iterate(accountPrefix, func(key, value []byte) error {
		var rec Record
		if err := rlp.DecodeBytes(value, &rec); err != nil {
			return fmt.Errorf("state: decode %q: %w", key, err)
		}
		if kind == "" || rec.Kind == kind {
			out = append(out, rec)
		}
		return nil
	})
	return out, err
}
