package types

import (
	"math/big"
	"strings"
	"testing"

	"stakepool/crypto"
	"stakepool/native/fees"
)

func TestOpNamesUnique(t *testing.T) {
	seen := make(map[string]Op, len(opNames))
	for op, name := range opNames {
		if prev, ok := seen[name]; ok {
			t.Fatalf("ops 0x%08x and 0x%08x share name %q", uint32(prev), uint32(op), name)
		}
		seen[name] = op
		if op == 0 {
			t.Fatalf("op %q uses the reserved zero tag", name)
		}
	}
	if got := Op(0x12345678).String(); !strings.HasPrefix(got, "op(0x") {
		t.Fatalf("unexpected fallback name %q", got)
	}
}

func TestCoinsBits(t *testing.T) {
	cases := []struct {
		value *big.Int
		want  uint64
	}{
		{nil, 4},
		{big.NewInt(0), 4},
		{big.NewInt(1), 12},
		{big.NewInt(255), 12},
		{big.NewInt(256), 20},
		{big.NewInt(1_000_000_000), 36},
	}
	for _, tc := range cases {
		if got := CoinsBits(tc.value); got != tc.want {
			t.Fatalf("CoinsBits(%v): got %d want %d", tc.value, got, tc.want)
		}
	}
}

func TestValidatorSetHashChangesWithSet(t *testing.T) {
	a := ValidatorSet{ElectionID: 1, UtimeSince: 100000, UtimeUntil: 200000}
	b := a
	if a.Hash() != b.Hash() {
		t.Fatalf("hash must be deterministic")
	}
	b.UtimeUntil++
	if a.Hash() == b.Hash() {
		t.Fatalf("hash must change with the set")
	}
	if a.Hash().IsZero() {
		t.Fatalf("hash of a populated set should not be zero")
	}
}

func TestSegmentFor(t *testing.T) {
	base := crypto.Derive(crypto.BasePrefix, "a")
	master := crypto.Derive(crypto.MasterPrefix, "b")
	if SegmentFor(base, base) != fees.SegmentBase {
		t.Fatalf("expected base segment")
	}
	if SegmentFor(base, master) != fees.SegmentMaster || SegmentFor(master, base) != fees.SegmentMaster {
		t.Fatalf("expected master segment when either side is master")
	}
}

func TestChainConfigCloneIsolatesFees(t *testing.T) {
	cfg := ChainConfig{Fees: fees.DefaultTables()}
	clone := cfg.Clone()
	clone.Fees[fees.SegmentBase] = fees.Table{}
	if cfg.Fees[fees.SegmentBase] != fees.DefaultBaseTable() {
		t.Fatalf("clone mutated the original fee tables")
	}
}

func TestEventAmount(t *testing.T) {
	ev := &Event{Type: "pool.loan_repaid", Attributes: map[string]string{"profit": "1500", "loss": "false", "bad": "x"}}
	if v, ok := ev.Amount("profit"); !ok || v.Int64() != 1500 {
		t.Fatalf("profit: %v %v", v, ok)
	}
	if _, ok := ev.Amount("bad"); ok {
		t.Fatalf("non-numeric attribute parsed")
	}
	if _, ok := ev.Amount("missing"); ok {
		t.Fatalf("missing attribute parsed")
	}
}
