package types

import (
	"encoding/binary"
	"encoding/hex"

	"lukechampine.com/blake3"

	"stakepool/crypto"
	"stakepool/native/fees"
)

// Hash is a 256-bit digest.
type Hash [32]byte

func (h Hash) String() string { return hex.EncodeToString(h[:]) }

func (h Hash) IsZero() bool { return h == Hash{} }

func (h Hash) MarshalText() ([]byte, error) { return []byte(h.String()), nil }

// ValidatorSet is the currently active validator set as published by the
// election authority.
type ValidatorSet struct {
	ElectionID uint64
	UtimeSince uint64
	UtimeUntil uint64
	Total      uint32
}

// Hash fingerprints the set. Accounts compare hashes to notice set changes.
func (v ValidatorSet) Hash() Hash {
	buf := make([]byte, 0, 28)
	buf = binary.BigEndian.AppendUint64(buf, v.ElectionID)
	buf = binary.BigEndian.AppendUint64(buf, v.UtimeSince)
	buf = binary.BigEndian.AppendUint64(buf, v.UtimeUntil)
	buf = binary.BigEndian.AppendUint32(buf, v.Total)
	return Hash(blake3.Sum256(buf))
}

// ElectionParams are the election timing parameters, in seconds.
type ElectionParams struct {
	ElectedFor   uint64 `toml:"ElectedFor"`
	StartBefore  uint64 `toml:"StartBefore"`
	EndBefore    uint64 `toml:"EndBefore"`
	StakeHeldFor uint64 `toml:"StakeHeldFor"`
}

func DefaultElectionParams() ElectionParams {
	return ElectionParams{
		ElectedFor:   65536,
		StartBefore:  32768,
		EndBefore:    8192,
		StakeHeldFor: 32768,
	}
}

// ChainConfig is the network configuration visible to every account.
type ChainConfig struct {
	Validators ValidatorSet
	Elections  ElectionParams
	Fees       fees.Tables
	Elector    crypto.Address
}

// Clone returns a copy that does not share the fee table map.
func (c ChainConfig) Clone() ChainConfig {
	out := c
	out.Fees = make(fees.Tables, len(c.Fees))
	for seg, t := range c.Fees {
		out.Fees[seg] = t
	}
	return out
}

// SegmentFor selects the fee segment for a message between two accounts.
// Traffic touching the masterchain pays masterchain prices.
func SegmentFor(src, dst crypto.Address) fees.Segment {
	if src.IsMaster() || dst.IsMaster() {
		return fees.SegmentMaster
	}
	return fees.SegmentBase
}
