package events

import (
	"math/big"
	"strings"

	"stakepool/core/types"
	"stakepool/crypto"
)

const (
	// TypeTokenSupply is emitted whenever the pool share supply changes.
	TypeTokenSupply = "token.supply"

	// SupplyReasonMint identifies mint driven supply increases.
	SupplyReasonMint = "mint"
	// SupplyReasonBurn identifies burn driven supply decreases.
	SupplyReasonBurn = "burn"
	// SupplyReasonRestore identifies a burn reverted after the pool bounced
	// the notification.
	SupplyReasonRestore = "restore"
)

// TokenSupply captures a supply delta for a fungible token.
type TokenSupply struct {
	Token   string
	Ledger  crypto.Address
	Account crypto.Address
	Total   *big.Int
	Delta   *big.Int
	Reason  string
}

func (TokenSupply) EventType() string { return TypeTokenSupply }

// Event renders the structured supply change event for downstream consumers.
func (e TokenSupply) Event() *types.Event {
	attrs := map[string]string{
		"token": normalizeToken(e.Token),
		"total": amountString(e.Total),
	}
	if !e.Ledger.IsZero() {
		attrs["ledger"] = e.Ledger.String()
	}
	if !e.Account.IsZero() {
		attrs["account"] = e.Account.String()
	}
	if e.Delta != nil {
		attrs["delta"] = e.Delta.String()
	}
	if reason := strings.TrimSpace(e.Reason); reason != "" {
		attrs["reason"] = reason
	}
	return &types.Event{Type: TypeTokenSupply, Attributes: attrs}
}
