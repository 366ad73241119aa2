package types

import "math/big"

// Event is a typed record emitted by an account handler. Amounts are
// carried as decimal nanoton strings.
type Event struct {
	Type       string            `json:"type"`
	Attributes map[string]string `json:"attributes"`
}

// Amount parses the decimal attribute key.
func (e *Event) Amount(key string) (*big.Int, bool) {
	raw, ok := e.Attributes[key]
	if !ok {
		return nil, false
	}
	return new(big.Int).SetString(raw, 10)
}
