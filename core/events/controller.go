package events

import (
	"math/big"

	"stakepool/core/types"
	"stakepool/crypto"
)

// TypeControllerTransition is emitted whenever a controller changes state.
const TypeControllerTransition = "controller.transition"

type ControllerTransition struct {
	Controller crypto.Address
	Validator  crypto.Address
	From       string
	To         string
	Amount     *big.Int
}

func (ControllerTransition) EventType() string { return TypeControllerTransition }

func (e ControllerTransition) Event() *types.Event {
	attrs := map[string]string{
		"controller": e.Controller.String(),
		"validator":  e.Validator.String(),
		"from":       e.From,
		"to":         e.To,
	}
	if e.Amount != nil {
		attrs["amount"] = e.Amount.String()
	}
	return &types.Event{Type: TypeControllerTransition, Attributes: attrs}
}
