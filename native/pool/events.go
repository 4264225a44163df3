package pool

import (
	"math/big"
	"strconv"
	"strings"

	"poolchain/core/types"
	"poolchain/crypto"
)

const (
	// EventTypeLiquidityAdded is emitted when an LP deposit mints shares.
	EventTypeLiquidityAdded = "pool.liquidity_added"
	// EventTypeLiquidityRemoved is emitted when shares are burned for a payout.
	EventTypeLiquidityRemoved = "pool.liquidity_removed"
	// EventTypeBorrowed is emitted when a loan is originated.
	EventTypeBorrowed = "pool.borrowed"
	// EventTypeRepaid is emitted when a loan is settled before expiry.
	EventTypeRepaid = "pool.repaid"
	// EventTypeClaimed is emitted once per claim batch with the aggregate sums.
	EventTypeClaimed = "pool.claimed"
	// EventTypeReinvested is emitted when a claim re-deposits its repayments.
	EventTypeReinvested = "pool.reinvested"
	// EventTypeApprovalsSet is emitted when an owner updates a delegate mask.
	EventTypeApprovalsSet = "pool.approvals_set"
	// EventTypePaused marks controller pause/unpause toggles.
	EventTypePaused = "pool.paused"
)

type poolEvent struct {
	evt *types.Event
}

func (p poolEvent) EventType() string {
	if p.evt == nil {
		return ""
	}
	return p.evt.Type
}

func (p poolEvent) Event() *types.Event { return p.evt }

func newLiquidityAddedEvent(lp crypto.Address, amount, minted *big.Int, totals *Totals, earliestRemove, referralCode uint64) *types.Event {
	attrs := map[string]string{
		"lp":             lp.String(),
		"amount":         amount.String(),
		"newShares":      minted.String(),
		"totalLiquidity": totals.TotalLiquidity.String(),
		"totalShares":    totals.TotalShares.String(),
		"earliestRemove": strconv.FormatUint(earliestRemove, 10),
	}
	if referralCode != 0 {
		attrs["referralCode"] = strconv.FormatUint(referralCode, 10)
	}
	return &types.Event{Type: EventTypeLiquidityAdded, Attributes: attrs}
}

func newLiquidityRemovedEvent(lp crypto.Address, shares, withdrawal *big.Int, totals *Totals) *types.Event {
	return &types.Event{Type: EventTypeLiquidityRemoved, Attributes: map[string]string{
		"lp":             lp.String(),
		"shares":         shares.String(),
		"amount":         withdrawal.String(),
		"totalLiquidity": totals.TotalLiquidity.String(),
		"totalShares":    totals.TotalShares.String(),
	}}
}

func newBorrowedEvent(loan *Loan, fee *big.Int, referralCode uint64) *types.Event {
	attrs := map[string]string{
		"borrower":   loan.Borrower.String(),
		"loanIdx":    strconv.FormatUint(loan.Idx, 10),
		"collateral": loan.Collateral.String(),
		"loan":       loan.LoanAmount.String(),
		"repayment":  loan.RepaymentAmount.String(),
		"fee":        fee.String(),
		"expiry":     strconv.FormatUint(loan.Expiry, 10),
	}
	if referralCode != 0 {
		attrs["referralCode"] = strconv.FormatUint(referralCode, 10)
	}
	return &types.Event{Type: EventTypeBorrowed, Attributes: attrs}
}

func newRepaidEvent(loan *Loan) *types.Event {
	return &types.Event{Type: EventTypeRepaid, Attributes: map[string]string{
		"borrower":  loan.Borrower.String(),
		"loanIdx":   strconv.FormatUint(loan.Idx, 10),
		"repayment": loan.RepaymentAmount.String(),
	}}
}

func newClaimedEvent(lp crypto.Address, loanIdxs []uint64, repayments, collateral *big.Int) *types.Event {
	idxs := make([]string, len(loanIdxs))
	for i, idx := range loanIdxs {
		idxs[i] = strconv.FormatUint(idx, 10)
	}
	return &types.Event{Type: EventTypeClaimed, Attributes: map[string]string{
		"lp":         lp.String(),
		"loanIdxs":   strings.Join(idxs, ","),
		"repayments": repayments.String(),
		"collateral": collateral.String(),
	}}
}

func newReinvestedEvent(lp crypto.Address, repayments, minted *big.Int, earliestRemove, loanIdx uint64) *types.Event {
	return &types.Event{Type: EventTypeReinvested, Attributes: map[string]string{
		"lp":             lp.String(),
		"repayments":     repayments.String(),
		"newShares":      minted.String(),
		"earliestRemove": strconv.FormatUint(earliestRemove, 10),
		"loanIdx":        strconv.FormatUint(loanIdx, 10),
	}}
}

func newApprovalsEvent(owner, delegate crypto.Address, mask Capability) *types.Event {
	return &types.Event{Type: EventTypeApprovalsSet, Attributes: map[string]string{
		"owner":    owner.String(),
		"delegate": delegate.String(),
		"mask":     strconv.FormatUint(uint64(mask), 10),
	}}
}

func newPausedEvent(poolID string, paused bool) *types.Event {
	return &types.Event{Type: EventTypePaused, Attributes: map[string]string{
		"pool":   poolID,
		"paused": strconv.FormatBool(paused),
	}}
}
