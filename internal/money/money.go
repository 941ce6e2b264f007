// Package money collects the arbitrary-precision integer helpers used
// everywhere the ledger touches amounts. No ledger quantity is ever a
// float.
package money

import "math/big"

// Zero returns a fresh zero-valued amount. Callers must not share a single
// *big.Int across mutations; every helper here returns a new value.
func Zero() *big.Int {
	return big.NewInt(0)
}

// FromInt64 wraps an int64 amount.
func FromInt64(v int64) *big.Int {
	return big.NewInt(v)
}

// Sum adds a list of amounts, treating nil entries as zero.
func Sum(amounts ...*big.Int) *big.Int {
	total := big.NewInt(0)
	for _, a := range amounts {
		if a == nil {
			continue
		}
		total.Add(total, a)
	}
	return total
}

// IsZero reports whether v is zero (nil counts as zero).
func IsZero(v *big.Int) bool {
	return v == nil || v.Sign() == 0
}

// IsPositive reports whether v > 0.
func IsPositive(v *big.Int) bool {
	return v != nil && v.Sign() > 0
}

// IsNegative reports whether v < 0.
func IsNegative(v *big.Int) bool {
	return v != nil && v.Sign() < 0
}

// Min returns the smaller of a, b.
func Min(a, b *big.Int) *big.Int {
	if a.Cmp(b) <= 0 {
		return new(big.Int).Set(a)
	}
	return new(big.Int).Set(b)
}

// Sub returns a-b as a fresh value.
func Sub(a, b *big.Int) *big.Int {
	return new(big.Int).Sub(a, b)
}

// Add returns a+b as a fresh value.
func Add(a, b *big.Int) *big.Int {
	return new(big.Int).Add(a, b)
}

// HalfAwayFromZeroRound rounds the rational num/den to the nearest integer,
// breaking ties away from zero ("half-away-from-zero"), the convention
// DefaultEarn uses for grand_total x multiplier.
func HalfAwayFromZeroRound(num, den *big.Int) *big.Int {
	if den.Sign() == 0 {
		return big.NewInt(0)
	}
	q, r := new(big.Int).QuoRem(num, den, new(big.Int))
	if r.Sign() == 0 {
		return q
	}
	halfNum := new(big.Int).Mul(r, big.NewInt(2))
	halfNum.Abs(halfNum)
	denAbs := new(big.Int).Abs(den)
	cmp := halfNum.Cmp(denAbs)
	if cmp >= 0 {
		if (num.Sign() < 0) != (den.Sign() < 0) {
			q.Sub(q, big.NewInt(1))
		} else {
			q.Add(q, big.NewInt(1))
		}
	}
	return q
}
