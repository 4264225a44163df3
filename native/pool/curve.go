package pool

import "math/big"

// loanTerms prices a prospective borrow against the current pool liquidity.
// All intermediate divisions floor, matching the reference fixture vectors
// bit-for-bit.
//
// The loan amount solves the collateral cap and the available-liquidity cap
// jointly: loan = pledge*maxLoanPerColl*L / (pledge*maxLoanPerColl + L*10^d)
// where L is the liquidity above the permanent floor. The interest rate is the
// arithmetic mean of the curve evaluated at the pre-loan and post-loan
// liquidity positions.
func loanTerms(p *Params, collateral, totalLiquidity *big.Int) (*Terms, error) {
	if p == nil || collateral == nil || collateral.Sign() <= 0 {
		return nil, ErrInvalidCollateral
	}
	if totalLiquidity == nil || totalLiquidity.Cmp(p.MinLiquidity) <= 0 {
		return nil, ErrInsufficientLiquidity
	}

	fee := mulDiv(collateral, p.CreatorFeeRate, one)
	pledge := new(big.Int).Sub(collateral, fee)

	available := new(big.Int).Sub(totalLiquidity, p.MinLiquidity)

	// loan = pledge*mlpc*L / (pledge*mlpc + L*10^d)
	capped := new(big.Int).Mul(pledge, p.MaxLoanPerColl)
	numerator := new(big.Int).Mul(capped, available)
	denominator := new(big.Int).Mul(available, pow10(p.Decimals))
	denominator.Add(denominator, capped)
	loan := new(big.Int).Quo(numerator, denominator)

	postLoan := new(big.Int).Sub(available, loan)
	rate := new(big.Int).Add(rateAt(p, available), rateAt(p, postLoan))
	rate.Rsh(rate, 1)

	repayment := mulDiv(loan, new(big.Int).Add(one, rate), one)

	return &Terms{
		LoanAmount:      loan,
		RepaymentAmount: repayment,
		Pledge:          pledge,
		CreatorFee:      fee,
		TotalLiquidity:  cloneBig(totalLiquidity),
	}, nil
}

// rateAt evaluates the interest-rate curve at liquidity position x: constant
// r2 above the upper bound, reciprocal r1*bnd1/x below the lower bound, and a
// linear interpolation between the two bounds.
func rateAt(p *Params, x *big.Int) *big.Int {
	if x == nil || x.Sign() <= 0 {
		// The curve is only evaluated with x > 0; a zero position would
		// divide by zero in the reciprocal branch.
		return cloneBig(p.R1)
	}
	if x.Cmp(p.LiquidityBnd2) >= 0 {
		return cloneBig(p.R2)
	}
	if x.Cmp(p.LiquidityBnd1) <= 0 {
		return mulDiv(p.R1, p.LiquidityBnd1, x)
	}
	spread := new(big.Int).Sub(p.R1, p.R2)
	span := new(big.Int).Sub(p.LiquidityBnd2, p.LiquidityBnd1)
	above := new(big.Int).Sub(p.LiquidityBnd2, x)
	return new(big.Int).Add(cloneBig(p.R2), mulDiv(spread, above, span))
}
