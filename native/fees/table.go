package fees

import (
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
)

// tableMagic tags a serialized message price record.
const tableMagic = 0xea

// tableLength is the encoded size: magic(8) lump(64) bit(64) cell(64)
// ihrFactor(32) firstFrac(16) nextFrac(16) bits.
const tableLength = 1 + 8 + 8 + 8 + 4 + 2 + 2

var ErrInvalidFeeTable = errors.New("fees: invalid fee table")

// Segment selects which network segment a fee table applies to.
type Segment int

const (
	SegmentBase Segment = iota
	SegmentMaster
)

func (s Segment) String() string {
	switch s {
	case SegmentBase:
		return "base"
	case SegmentMaster:
		return "master"
	default:
		return fmt.Sprintf("segment(%d)", int(s))
	}
}

// ConfigParam returns the network configuration index that carries the
// segment's message prices.
func (s Segment) ConfigParam() int {
	if s == SegmentMaster {
		return 24
	}
	return 25
}

// Table holds the message forwarding prices of one network segment. Bit and
// cell prices are expressed in 1/65536 units of the base currency.
type Table struct {
	LumpPrice      uint64
	BitPrice       uint64
	CellPrice      uint64
	IHRPriceFactor uint32
	FirstFrac      uint16
	NextFrac       uint16
}

// ParseTable decodes a magic-tagged big-endian price record.
func ParseTable(blob []byte) (Table, error) {
	if len(blob) < tableLength {
		return Table{}, fmt.Errorf("%w: want %d bytes, got %d", ErrInvalidFeeTable, tableLength, len(blob))
	}
	if blob[0] != tableMagic {
		return Table{}, fmt.Errorf("%w: bad magic 0x%02x", ErrInvalidFeeTable, blob[0])
	}
	rest := blob[1:]
	t := Table{
		LumpPrice:      binary.BigEndian.Uint64(rest[0:8]),
		BitPrice:       binary.BigEndian.Uint64(rest[8:16]),
		CellPrice:      binary.BigEndian.Uint64(rest[16:24]),
		IHRPriceFactor: binary.BigEndian.Uint32(rest[24:28]),
		FirstFrac:      binary.BigEndian.Uint16(rest[28:30]),
		NextFrac:       binary.BigEndian.Uint16(rest[30:32]),
	}
	return t, nil
}

// ParseTableHex is ParseTable over a hex string, tolerating a 0x prefix.
func ParseTableHex(s string) (Table, error) {
	s = strings.TrimPrefix(strings.TrimSpace(s), "0x")
	if s == "" {
		return Table{}, fmt.Errorf("%w: empty", ErrInvalidFeeTable)
	}
	blob, err := hex.DecodeString(s)
	if err != nil {
		return Table{}, fmt.Errorf("%w: %v", ErrInvalidFeeTable, err)
	}
	return ParseTable(blob)
}

// Encode serializes the table in the format accepted by ParseTable.
func (t Table) Encode() []byte {
	out := make([]byte, 0, tableLength)
	out = append(out, tableMagic)
	out = binary.BigEndian.AppendUint64(out, t.LumpPrice)
	out = binary.BigEndian.AppendUint64(out, t.BitPrice)
	out = binary.BigEndian.AppendUint64(out, t.CellPrice)
	out = binary.BigEndian.AppendUint32(out, t.IHRPriceFactor)
	out = binary.BigEndian.AppendUint16(out, t.FirstFrac)
	out = binary.BigEndian.AppendUint16(out, t.NextFrac)
	return out
}

// MarshalText encodes the table as hex so configuration files can carry it.
func (t Table) MarshalText() ([]byte, error) {
	return []byte(hex.EncodeToString(t.Encode())), nil
}

func (t *Table) UnmarshalText(text []byte) error {
	parsed, err := ParseTableHex(string(text))
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// Tables maps each segment to its price record.
type Tables map[Segment]Table

// For returns the table for the segment, failing when it was never loaded.
func (ts Tables) For(seg Segment) (Table, error) {
	t, ok := ts[seg]
	if !ok {
		return Table{}, fmt.Errorf("%w: no prices for %s segment", ErrInvalidFeeTable, seg)
	}
	return t, nil
}

// DefaultBaseTable and DefaultMasterTable mirror the public network's
// message price configuration.
func DefaultBaseTable() Table {
	return Table{
		LumpPrice:      400_000,
		BitPrice:       26_214_400,
		CellPrice:      2_621_440_000,
		IHRPriceFactor: 98_304,
		FirstFrac:      21_845,
		NextFrac:       21_845,
	}
}

func DefaultMasterTable() Table {
	return Table{
		LumpPrice:      10_000_000,
		BitPrice:       655_360_000,
		CellPrice:      65_536_000_000,
		IHRPriceFactor: 98_304,
		FirstFrac:      21_845,
		NextFrac:       21_845,
	}
}

func DefaultTables() Tables {
	return Tables{
		SegmentBase:   DefaultBaseTable(),
		SegmentMaster: DefaultMasterTable(),
	}
}
