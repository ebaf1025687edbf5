/**
 * @description
 * Fixed-point multiply-divide helpers for share/asset conversions. All vault
 * conversions are `a * b / c` with an explicit rounding direction; intermediate
 * products are computed in math/big so they cannot overflow int64 even when both
 * factors are near the int64 range.
 */

package ledger

import "math/big"

// mulDivDown returns floor(a * b / c). Panics if c is zero, which every caller
// guards against before dividing.
func mulDivDown(a, b, c int64) int64 {
	n := new(big.Int).Mul(big.NewInt(a), big.NewInt(b))
	n.Quo(n, big.NewInt(c))
	return n.Int64()
}

// mulDivUp returns ceil(a * b / c).
func mulDivUp(a, b, c int64) int64 {
	n := new(big.Int).Mul(big.NewInt(a), big.NewInt(b))
	q, r := new(big.Int).QuoRem(n, big.NewInt(c), new(big.Int))
	if r.Sign() != 0 {
		q.Add(q, big.NewInt(1))
	}
	return q.Int64()
}

// DiscountedFundingTarget derives a vault's funding target from an invoice's
// face value: the basis-point discount is the investor's haircut below par.
func DiscountedFundingTarget(faceValue, discountRateBps int64) int64 {
	return mulDivDown(faceValue, 10000-discountRateBps, 10000)
}

func minInt64(a, b int64) int64 {
	if a < b {
		return a
	}
	return b
}
