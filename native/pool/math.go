package pool

import "math/big"

var (
	// one is the 1e18 fixed-point scale shared by rates, fee rates, and
	// reward coefficients.
	one            = mustBigInt("1000000000000000000")
	bootstrapScale = big.NewInt(1000)
)

func mustBigInt(value string) *big.Int {
	v, ok := new(big.Int).SetString(value, 10)
	if !ok {
		panic("invalid big integer constant")
	}
	return v
}

// mulDiv returns floor(a*b/den). A zero or nil denominator reports zero so
// callers can guard on the inputs rather than on the arithmetic.
func mulDiv(a, b, den *big.Int) *big.Int {
	if a == nil || b == nil || den == nil || den.Sign() == 0 {
		return big.NewInt(0)
	}
	product := new(big.Int).Mul(a, b)
	return product.Quo(product, den)
}

func pow10(decimals uint8) *big.Int {
	return new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(decimals)), nil)
}

func cloneBig(v *big.Int) *big.Int {
	if v == nil {
		return big.NewInt(0)
	}
	return new(big.Int).Set(v)
}
