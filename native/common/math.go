package common

import "math/big"

// ShareBase is the denominator of every rate expressed "per share base".
const ShareBase = 65536

var shareBase = big.NewInt(ShareBase)

// Coin is one unit of the base currency in its smallest denomination.
var Coin = big.NewInt(1_000_000_000)

// Coins returns n whole coins.
func Coins(n int64) *big.Int {
	return new(big.Int).Mul(big.NewInt(n), Coin)
}

// MustBigInt parses a decimal constant.
func MustBigInt(value string) *big.Int {
	v, ok := new(big.Int).SetString(value, 10)
	if !ok {
		panic("invalid big integer constant")
	}
	return v
}

// Zero returns a fresh zero value.
func Zero() *big.Int { return new(big.Int) }

// Copy returns a copy of v, mapping nil to zero.
func Copy(v *big.Int) *big.Int {
	if v == nil {
		return new(big.Int)
	}
	return new(big.Int).Set(v)
}

// MulDiv computes floor(a*b/c). A zero divisor yields zero.
func MulDiv(a, b, c *big.Int) *big.Int {
	if a == nil || b == nil || c == nil || c.Sign() == 0 {
		return new(big.Int)
	}
	out := new(big.Int).Mul(a, b)
	return out.Quo(out, c)
}

// MulDivExtra computes floor(a*b/c) but falls back to a 1:1 rate when either
// side of the ratio is empty. Used for share conversions, where an empty
// pool prices shares at par.
func MulDivExtra(a, b, c *big.Int) *big.Int {
	if b == nil || c == nil || b.Sign() == 0 || c.Sign() == 0 {
		return Copy(a)
	}
	return MulDiv(a, b, c)
}

// PerShare returns amount*rate/ShareBase.
func PerShare(amount *big.Int, rate uint32) *big.Int {
	return MulDiv(amount, big.NewInt(int64(rate)), shareBase)
}

func Min(a, b *big.Int) *big.Int {
	if a.Cmp(b) <= 0 {
		return Copy(a)
	}
	return Copy(b)
}

func Max(a, b *big.Int) *big.Int {
	if a.Cmp(b) >= 0 {
		return Copy(a)
	}
	return Copy(b)
}

// ClampZero returns max(v, 0).
func ClampZero(v *big.Int) *big.Int {
	if v == nil || v.Sign() < 0 {
		return new(big.Int)
	}
	return Copy(v)
}

// SubClamp returns max(a-b, 0).
func SubClamp(a, b *big.Int) *big.Int {
	return ClampZero(new(big.Int).Sub(Copy(a), Copy(b)))
}
