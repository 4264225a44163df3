package pool

import (
	"math/big"

	"poolchain/crypto"
)

// Capability identifies an operation a delegate may be approved to perform on
// behalf of another account. Capabilities combine into a bitmask.
type Capability uint64

const (
	CapabilityRepay Capability = 1 << iota
	CapabilityAddLiquidity
	CapabilityRemoveLiquidity
	CapabilityClaim
	CapabilityForceRewardUpdate
)

// Params captures the immutable configuration fixed when a pool is created.
type Params struct {
	PoolID         string   `json:"poolId"`
	LoanToken      string   `json:"loanToken"`
	CollToken      string   `json:"collToken"`
	Decimals       uint8    `json:"decimals"`
	LoanTenor      uint64   `json:"loanTenor"`
	MaxLoanPerColl *big.Int `json:"maxLoanPerColl"`
	R1             *big.Int `json:"r1"`
	R2             *big.Int `json:"r2"`
	LiquidityBnd1  *big.Int `json:"liquidityBnd1"`
	LiquidityBnd2  *big.Int `json:"liquidityBnd2"`
	MinLoan        *big.Int `json:"minLoan"`
	CreatorFeeRate *big.Int `json:"creatorFeeRate"`
	MinLiquidity   *big.Int `json:"minLiquidity"`
	RewardCoeff    *big.Int `json:"rewardCoefficient"`
	LpLockSeconds  uint64   `json:"lpLockSeconds"`
}

// Totals is the mutable top-level pool state.
type Totals struct {
	TotalLiquidity      *big.Int `json:"totalLiquidity"`
	TotalShares         *big.Int `json:"totalShares"`
	NextLoanIdx         uint64   `json:"nextLoanIdx"`
	LastLiquidityChange uint64   `json:"lastLiquidityChange"`
	LastLoanChange      uint64   `json:"lastLoanChange"`
}

// Loan is the per-loan record frozen at origination and settled at most once.
type Loan struct {
	Idx             uint64         `json:"idx"`
	Borrower        crypto.Address `json:"borrower"`
	Collateral      *big.Int       `json:"collateral"`
	LoanAmount      *big.Int       `json:"loanAmount"`
	RepaymentAmount *big.Int       `json:"repaymentAmount"`
	SharesAtOrigin  *big.Int       `json:"sharesAtOrigin"`
	Expiry          uint64         `json:"expiry"`
	OriginatedAt    uint64         `json:"originatedAt"`
	Repaid          bool           `json:"repaid"`
}

// Settled reports whether the loan can participate in a claim at the given
// instant: either repaid, or past expiry and therefore forfeited.
func (l *Loan) Settled(now uint64) bool {
	if l == nil {
		return false
	}
	return l.Repaid || now > l.Expiry
}

// Checkpoint records an LP's share balance as of a loan index. The history is
// append-only except that a second balance change before any new loan is
// originated overwrites the tip in place.
type Checkpoint struct {
	Shares  *big.Int `json:"shares"`
	LoanIdx uint64   `json:"loanIdx"`
}

// Position is the mutable per-LP record.
type Position struct {
	Checkpoints    []Checkpoint `json:"checkpoints"`
	FromLoanIdx    uint64       `json:"fromLoanIdx"`
	EarliestRemove uint64       `json:"earliestRemove"`
	LastRewardTime uint64       `json:"lastRewardTime"`
	TrackedLiq     *big.Int     `json:"trackedLiquidity"`
}

// CurrentShares returns the LP's live share balance, i.e. the tip checkpoint.
func (p *Position) CurrentShares() *big.Int {
	if p == nil || len(p.Checkpoints) == 0 {
		return big.NewInt(0)
	}
	return cloneBig(p.Checkpoints[len(p.Checkpoints)-1].Shares)
}

// SharesAt resolves the LP's share balance as of the given loan index using
// the bracketing rule: the latest checkpoint whose loan index does not exceed
// idx. An LP with no checkpoint at or before idx held no shares then.
func (p *Position) SharesAt(idx uint64) *big.Int {
	if p == nil {
		return big.NewInt(0)
	}
	shares := big.NewInt(0)
	for i := range p.Checkpoints {
		if p.Checkpoints[i].LoanIdx > idx {
			break
		}
		shares = cloneBig(p.Checkpoints[i].Shares)
	}
	return shares
}

// Terms is the output of the rate curve for a prospective borrow.
type Terms struct {
	LoanAmount      *big.Int
	RepaymentAmount *big.Int
	Pledge          *big.Int
	CreatorFee      *big.Int
	TotalLiquidity  *big.Int
}

// Info is the read-only pool summary exposed on the query surface.
type Info struct {
	LoanToken      string   `json:"loanToken"`
	CollToken      string   `json:"collToken"`
	MaxLoanPerColl *big.Int `json:"maxLoanPerColl"`
	MinLoan        *big.Int `json:"minLoan"`
	LoanTenor      uint64   `json:"loanTenor"`
	TotalLiquidity *big.Int `json:"totalLiquidity"`
	TotalShares    *big.Int `json:"totalShares"`
	RewardCoeff    *big.Int `json:"rewardCoefficient"`
	NextLoanIdx    uint64   `json:"nextLoanIdx"`
}
