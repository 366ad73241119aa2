package main

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"

	"stakepool/config"
	"stakepool/core"
	"stakepool/core/bus"
	"stakepool/native/common"
	"stakepool/native/jetton"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestParseScenarioRejectsUnknownOps(t *testing.T) {
	_, err := ParseScenario(strings.NewReader("steps:\n  - op: teleport\n"))
	if !errors.Is(err, ErrUnknownStep) {
		t.Fatalf("expected ErrUnknownStep, got %v", err)
	}
	if _, err := ParseScenario(strings.NewReader("steps:\n  - op: touch\n    colour: red\n")); err == nil {
		t.Fatalf("expected unknown field to be rejected")
	}
}

func TestParseCoins(t *testing.T) {
	cases := []struct {
		raw  string
		want string
		ok   bool
	}{
		{"", "0", true},
		{"1.5", "1500000000", true},
		{"1_000", "1000000000000", true},
		{" 0.000000001 ", "1", true},
		{"1.0000000001", "", false},
		{"-1", "", false},
		{"1.2.3", "", false},
		{"ten", "", false},
	}
	for _, tc := range cases {
		got, err := parseCoins(tc.raw)
		if !tc.ok {
			if err == nil {
				t.Fatalf("%q: expected error, got %s", tc.raw, got)
			}
			continue
		}
		if err != nil {
			t.Fatalf("%q: %v", tc.raw, err)
		}
		if got.String() != tc.want {
			t.Fatalf("%q: got %s want %s", tc.raw, got, tc.want)
		}
	}
}

const depositScenario = `
steps:
  - op: wallet
    name: alice
    coins: "500"
  - op: deposit
    from: alice
    coins: "100"
  - op: deposit
    from: alice
    coins: "0.5"
    may_fail: true
  - op: rotate
  - op: burn
    from: alice
    wait: true
`

func TestScenarioRunDepositsAndBurns(t *testing.T) {
	sc, err := ParseScenario(strings.NewReader(depositScenario))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	node, err := core.NewNode(config.Default(), 1_000_000, quietLogger())
	if err != nil {
		t.Fatalf("bootstrap: %v", err)
	}
	if err := sc.Run(context.Background(), node, quietLogger()); err != nil {
		t.Fatalf("run: %v", err)
	}

	p, err := node.PoolState()
	if err != nil {
		t.Fatalf("pool: %v", err)
	}
	if p.State.TotalBalance.Cmp(common.Coins(99)) != 0 {
		t.Fatalf("total balance %s", p.State.TotalBalance)
	}
	if p.State.RequestedForWithdrawal.Cmp(common.Coins(99)) != 0 {
		t.Fatalf("withdrawal not queued: %s", p.State.RequestedForWithdrawal)
	}
	ledger, ok := bus.Lookup[*jetton.Minter](node.Net, node.Ledger)
	if !ok {
		t.Fatalf("ledger missing")
	}
	alice := node.Wallet("alice", false, common.Coins(0))
	if ledger.BalanceOf(alice).Sign() != 0 {
		t.Fatalf("shares left after burn: %s", ledger.BalanceOf(alice))
	}
}

func TestScenarioRunStopsOnUnknownWallet(t *testing.T) {
	sc, err := ParseScenario(strings.NewReader("steps:\n  - op: deposit\n    from: carol\n    coins: \"10\"\n"))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	node, err := core.NewNode(config.Default(), 1_000_000, quietLogger())
	if err != nil {
		t.Fatalf("bootstrap: %v", err)
	}
	if err := sc.Run(context.Background(), node, quietLogger()); !errors.Is(err, ErrUnknownWallet) {
		t.Fatalf("expected ErrUnknownWallet, got %v", err)
	}
}
