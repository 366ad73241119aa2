package crypto

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/btcsuite/btcutil/bech32"
	"github.com/ethereum/go-ethereum/crypto"
)

// AddressPrefix is the human-readable part of an address. It also selects the
// network segment an account lives on.
type AddressPrefix string

const (
	BasePrefix   AddressPrefix = "sp"
	MasterPrefix AddressPrefix = "spm"
)

// AddressLength is the size of the raw account identifier.
const AddressLength = 20

var ErrInvalidAddress = errors.New("crypto: invalid address")

// Address identifies an account on the message bus. It is comparable and can
// be used as a map key.
type Address struct {
	prefix AddressPrefix
	bytes  [AddressLength]byte
}

func NewAddress(prefix AddressPrefix, b []byte) (Address, error) {
	if len(b) != AddressLength {
		return Address{}, fmt.Errorf("%w: want %d bytes, got %d", ErrInvalidAddress, AddressLength, len(b))
	}
	if prefix != BasePrefix && prefix != MasterPrefix {
		return Address{}, fmt.Errorf("%w: unknown prefix %q", ErrInvalidAddress, prefix)
	}
	var addr Address
	addr.prefix = prefix
	copy(addr.bytes[:], b)
	return addr, nil
}

func MustNewAddress(prefix AddressPrefix, b []byte) Address {
	addr, err := NewAddress(prefix, b)
	if err != nil {
		panic(err)
	}
	return addr
}

// Derive computes a deterministic address from a domain tag and an ordered
// list of components. Each component is length-prefixed before hashing so
// different splits of the same bytes never collide.
func Derive(prefix AddressPrefix, domain string, parts ...[]byte) Address {
	buf := make([]byte, 0, 64)
	buf = binary.BigEndian.AppendUint16(buf, uint16(len(domain)))
	buf = append(buf, domain...)
	for _, part := range parts {
		buf = binary.BigEndian.AppendUint32(buf, uint32(len(part)))
		buf = append(buf, part...)
	}
	hash := crypto.Keccak256(buf)
	return MustNewAddress(prefix, hash[len(hash)-AddressLength:])
}

// Uint32Bytes and Uint64Bytes encode integers for use as Derive components.
func Uint32Bytes(v uint32) []byte { return binary.BigEndian.AppendUint32(nil, v) }

func Uint64Bytes(v uint64) []byte { return binary.BigEndian.AppendUint64(nil, v) }

func (a Address) String() string {
	if a.IsZero() {
		return ""
	}
	conv, err := bech32.ConvertBits(a.bytes[:], 8, 5, true)
	if err != nil {
		panic(err)
	}
	encoded, err := bech32.Encode(string(a.prefix), conv)
	if err != nil {
		panic(err)
	}
	return encoded
}

func (a Address) Bytes() []byte {
	out := make([]byte, AddressLength)
	copy(out, a.bytes[:])
	return out
}

// Prefix returns the human-readable prefix associated with the address.
func (a Address) Prefix() AddressPrefix {
	return a.prefix
}

// IsMaster reports whether the account lives on the masterchain segment.
func (a Address) IsMaster() bool { return a.prefix == MasterPrefix }

// IsZero reports whether the address is the unset value.
func (a Address) IsZero() bool { return a.prefix == "" }

func (a Address) MarshalText() ([]byte, error) {
	return []byte(a.String()), nil
}

func (a *Address) UnmarshalText(text []byte) error {
	if len(text) == 0 {
		*a = Address{}
		return nil
	}
	decoded, err := DecodeAddress(string(text))
	if err != nil {
		return err
	}
	*a = decoded
	return nil
}

func DecodeAddress(addrStr string) (Address, error) {
	prefix, decoded, err := bech32.Decode(addrStr)
	if err != nil {
		return Address{}, fmt.Errorf("invalid bech32 string: %w", err)
	}
	conv, err := bech32.ConvertBits(decoded, 5, 8, false)
	if err != nil {
		return Address{}, fmt.Errorf("error converting bits: %w", err)
	}
	return NewAddress(AddressPrefix(prefix), conv)
}
