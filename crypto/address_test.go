package crypto

import (
	"bytes"
	"errors"
	"testing"
)

func TestDeriveIsDeterministic(t *testing.T) {
	a := Derive(MasterPrefix, "controller", []byte("pool"), Uint32Bytes(1))
	b := Derive(MasterPrefix, "controller", []byte("pool"), Uint32Bytes(1))
	if a != b {
		t.Fatalf("derive not deterministic: %s vs %s", a, b)
	}
	c := Derive(MasterPrefix, "controller", []byte("pool"), Uint32Bytes(2))
	if a == c {
		t.Fatalf("expected distinct addresses for distinct ids")
	}
	if !a.IsMaster() {
		t.Fatalf("expected masterchain address")
	}
}

func TestDeriveSeparatesComponentBoundaries(t *testing.T) {
	a := Derive(BasePrefix, "x", []byte("ab"), []byte("c"))
	b := Derive(BasePrefix, "x", []byte("a"), []byte("bc"))
	if a == b {
		t.Fatalf("component boundaries must affect the derived address")
	}
}

func TestAddressTextRoundTrip(t *testing.T) {
	addr := Derive(BasePrefix, "wallet", []byte("alice"))
	decoded, err := DecodeAddress(addr.String())
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if decoded != addr {
		t.Fatalf("round trip mismatch: got %s want %s", decoded, addr)
	}

	var fromText Address
	if err := fromText.UnmarshalText([]byte(addr.String())); err != nil {
		t.Fatalf("unmarshal text: %v", err)
	}
	if !bytes.Equal(fromText.Bytes(), addr.Bytes()) {
		t.Fatalf("unexpected bytes after unmarshal")
	}
}

func TestNewAddressRejectsBadInput(t *testing.T) {
	if _, err := NewAddress(BasePrefix, []byte{1, 2, 3}); !errors.Is(err, ErrInvalidAddress) {
		t.Fatalf("expected ErrInvalidAddress for short input, got %v", err)
	}
	if _, err := NewAddress("zz", make([]byte, AddressLength)); !errors.Is(err, ErrInvalidAddress) {
		t.Fatalf("expected ErrInvalidAddress for unknown prefix, got %v", err)
	}
}
