package pool

import (
	"math/big"
	"time"

	"poolchain/core/events"
	"poolchain/core/types"
	"poolchain/crypto"
	"poolchain/native/common"
)

type engineState interface {
	PoolTotals(poolID string) (*Totals, error)
	PutPoolTotals(poolID string, totals *Totals) error
	PoolLoan(poolID string, idx uint64) (*Loan, bool, error)
	PutPoolLoan(poolID string, loan *Loan) error
	PoolPosition(poolID string, addr crypto.Address) (*Position, bool, error)
	PutPoolPosition(poolID string, addr crypto.Address, pos *Position) error
	PoolApproval(owner, delegate crypto.Address) (Capability, error)
	SetPoolApproval(owner, delegate crypto.Address, mask Capability) error
	PoolPaused(poolID string) (bool, error)
	SetPoolPaused(poolID string, paused bool) error
}

// TokenLedger moves value between accounts. Transfers are all-or-nothing;
// a failed transfer aborts the enclosing operation.
type TokenLedger interface {
	Transfer(token string, from, to crypto.Address, amount *big.Int) error
}

// RewardDistributor is the narrow slice of the reward supply ledger the pool
// needs: granting time-weighted-liquidity rewards to an LP.
type RewardDistributor interface {
	RequestTokenDistribution(poolID string, account crypto.Address, liquidity *big.Int, duration uint64, coeff *big.Int) (*big.Int, error)
}

// RevenueSink receives the creator fee cut of every borrow.
type RevenueSink interface {
	AccrueRevenue(token string, amount *big.Int) error
}

// ClaimOutcome summarises the value moved (or reinvested) by a claim.
type ClaimOutcome struct {
	Repayments       *big.Int
	Collateral       *big.Int
	ReinvestedShares *big.Int
}

// Engine implements the share/loan ledger for a single pool. Loan outcomes are
// split by the shares each LP held at origination, resolved from append-only
// per-LP checkpoint logs so no operation ever iterates over all participants.
type Engine struct {
	state        engineState
	emitter      events.Emitter
	nowFn        func() time.Time
	params       *Params
	ledger       TokenLedger
	rewards      RewardDistributor
	revenue      RevenueSink
	vault        crypto.Address
	revenueVault crypto.Address
	controller   crypto.Address
}

// NewEngine constructs a pool engine with default no-op dependencies.
func NewEngine(params *Params) *Engine {
	return &Engine{
		emitter: events.NoopEmitter{},
		nowFn:   func() time.Time { return time.Now().UTC() },
		params:  params,
		vault:   crypto.ModuleAddress("pool/" + params.PoolID),
	}
}

// SetState wires the engine to the state backend providing persistence helpers.
func (e *Engine) SetState(state engineState) { e.state = state }

// SetEmitter configures the event emitter used by the engine. Passing nil
// resets the emitter to a no-op implementation.
func (e *Engine) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		e.emitter = events.NoopEmitter{}
		return
	}
	e.emitter = emitter
}

// SetNowFunc overrides the time source used to stamp operations. Nil restores
// the default UTC clock.
func (e *Engine) SetNowFunc(now func() time.Time) {
	if now == nil {
		e.nowFn = func() time.Time { return time.Now().UTC() }
		return
	}
	e.nowFn = now
}

// SetLedger wires the token transfer collaborator.
func (e *Engine) SetLedger(ledger TokenLedger) { e.ledger = ledger }

// SetRewards wires the reward supply ledger. A nil distributor disables reward
// accrual regardless of the configured coefficient.
func (e *Engine) SetRewards(rewards RewardDistributor) { e.rewards = rewards }

// SetRevenue wires the revenue accumulator receiving creator fees together
// with the vault address fee transfers settle into.
func (e *Engine) SetRevenue(revenue RevenueSink, vault crypto.Address) {
	e.revenue = revenue
	e.revenueVault = vault
}

// SetController registers the governance account permitted to pause the pool.
func (e *Engine) SetController(controller crypto.Address) { e.controller = controller }

// Vault returns the address custodying the pool's liquidity and collateral.
func (e *Engine) Vault() crypto.Address { return e.vault }

func (e *Engine) emit(event *types.Event) {
	if e == nil || e.emitter == nil || event == nil {
		return
	}
	e.emitter.Emit(poolEvent{evt: event})
}

func (e *Engine) now() uint64 {
	if e == nil || e.nowFn == nil {
		return uint64(time.Now().UTC().Unix())
	}
	return uint64(e.nowFn().Unix())
}

func (e *Engine) ready() error {
	if e == nil || e.state == nil {
		return errStateNotConfigured
	}
	if e.params == nil {
		return errParamsNotConfigured
	}
	return nil
}

type statePauses struct {
	state engineState
}

func (p statePauses) IsPaused(pool string) bool {
	paused, err := p.state.PoolPaused(pool)
	return err == nil && paused
}

func (e *Engine) guardPaused() error {
	if err := common.Guard(statePauses{state: e.state}, e.params.PoolID); err != nil {
		return ErrPaused
	}
	return nil
}

func (e *Engine) authorize(caller, owner crypto.Address, capability Capability) error {
	if caller.Equal(owner) {
		return nil
	}
	mask, err := e.state.PoolApproval(owner, caller)
	if err != nil {
		return err
	}
	if mask&capability == 0 {
		return ErrNotApproved
	}
	return nil
}

func (e *Engine) totals() (*Totals, error) {
	totals, err := e.state.PoolTotals(e.params.PoolID)
	if err != nil {
		return nil, err
	}
	if totals == nil {
		totals = &Totals{}
	}
	if totals.TotalLiquidity == nil {
		totals.TotalLiquidity = big.NewInt(0)
	}
	if totals.TotalShares == nil {
		totals.TotalShares = big.NewInt(0)
	}
	if totals.NextLoanIdx == 0 {
		totals.NextLoanIdx = 1
	}
	return totals, nil
}

func (e *Engine) position(addr crypto.Address, nextLoanIdx uint64) (*Position, error) {
	pos, ok, err := e.state.PoolPosition(e.params.PoolID, addr)
	if err != nil {
		return nil, err
	}
	if !ok || pos == nil {
		pos = &Position{FromLoanIdx: nextLoanIdx, TrackedLiq: big.NewInt(0)}
	}
	if pos.TrackedLiq == nil {
		pos.TrackedLiq = big.NewInt(0)
	}
	return pos, nil
}

// checkpoint records the LP's new share balance as of the next loan index. A
// second balance change before any new loan is originated overwrites the tip
// rather than appending a duplicate index.
func checkpoint(pos *Position, shares *big.Int, nextLoanIdx uint64) {
	if n := len(pos.Checkpoints); n > 0 && pos.Checkpoints[n-1].LoanIdx == nextLoanIdx {
		pos.Checkpoints[n-1].Shares = cloneBig(shares)
		return
	}
	pos.Checkpoints = append(pos.Checkpoints, Checkpoint{Shares: cloneBig(shares), LoanIdx: nextLoanIdx})
}

// accrueReward flushes the pending time-weighted-liquidity reward for the LP
// before its tracked liquidity changes. The reward supply ledger computes the
// grant from (liquidity, duration, coefficient); the pool only decides when.
func (e *Engine) accrueReward(account crypto.Address, pos *Position, now uint64) error {
	defer func() { pos.LastRewardTime = now }()
	if e.rewards == nil || e.params.RewardCoeff == nil || e.params.RewardCoeff.Sign() == 0 {
		return nil
	}
	if pos.LastRewardTime == 0 || now <= pos.LastRewardTime || pos.TrackedLiq.Sign() == 0 {
		return nil
	}
	elapsed := now - pos.LastRewardTime
	_, err := e.rewards.RequestTokenDistribution(e.params.PoolID, account, cloneBig(pos.TrackedLiq), elapsed, cloneBig(e.params.RewardCoeff))
	return err
}

// AddLiquidity pulls amount from caller and mints pool shares to onBehalfOf.
// The first deposit mints amount*1000/minLiquidity shares; the scale plus the
// permanently locked minLiquidity floor forms the dead-share reserve guarding
// against first-depositor share-price manipulation.
func (e *Engine) AddLiquidity(caller, onBehalfOf crypto.Address, amount *big.Int, deadline, referralCode uint64) (*big.Int, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	if err := e.guardPaused(); err != nil {
		return nil, err
	}
	if err := e.authorize(caller, onBehalfOf, CapabilityAddLiquidity); err != nil {
		return nil, err
	}
	now := e.now()
	if now > deadline {
		return nil, ErrPastDeadline
	}
	if amount == nil || amount.Sign() <= 0 {
		return nil, ErrInvalidAmount
	}
	totals, err := e.totals()
	if err != nil {
		return nil, err
	}
	pos, err := e.position(onBehalfOf, totals.NextLoanIdx)
	if err != nil {
		return nil, err
	}

	var minted *big.Int
	if totals.TotalShares.Sign() == 0 {
		minted = mulDiv(amount, bootstrapScale, e.params.MinLiquidity)
	} else {
		minted = mulDiv(amount, totals.TotalShares, totals.TotalLiquidity)
	}
	if minted.Sign() <= 0 {
		return nil, ErrInvalidAmount
	}

	// The deposit is pulled before the reward grant persists, so an aborted
	// pull cannot leave a grant behind to be accrued again.
	if e.ledger != nil {
		if err := e.ledger.Transfer(e.params.LoanToken, caller, e.vault, amount); err != nil {
			return nil, err
		}
	}
	if err := e.accrueReward(onBehalfOf, pos, now); err != nil {
		return nil, err
	}

	totals.TotalLiquidity = new(big.Int).Add(totals.TotalLiquidity, amount)
	totals.TotalShares = new(big.Int).Add(totals.TotalShares, minted)
	totals.LastLiquidityChange = now

	newShares := new(big.Int).Add(pos.CurrentShares(), minted)
	checkpoint(pos, newShares, totals.NextLoanIdx)
	pos.EarliestRemove = now + e.params.LpLockSeconds
	pos.TrackedLiq = new(big.Int).Add(pos.TrackedLiq, amount)

	if err := e.state.PutPoolPosition(e.params.PoolID, onBehalfOf, pos); err != nil {
		return nil, err
	}
	if err := e.state.PutPoolTotals(e.params.PoolID, totals); err != nil {
		return nil, err
	}
	e.emit(newLiquidityAddedEvent(onBehalfOf, amount, minted, totals, pos.EarliestRemove, referralCode))
	return minted, nil
}

// RemoveLiquidity burns shares held by onBehalfOf and pays out the matching
// slice of liquidity above the permanent minLiquidity floor.
func (e *Engine) RemoveLiquidity(caller, onBehalfOf crypto.Address, shares *big.Int) (*big.Int, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	if err := e.guardPaused(); err != nil {
		return nil, err
	}
	if err := e.authorize(caller, onBehalfOf, CapabilityRemoveLiquidity); err != nil {
		return nil, err
	}
	now := e.now()
	totals, err := e.totals()
	if err != nil {
		return nil, err
	}
	pos, err := e.position(onBehalfOf, totals.NextLoanIdx)
	if err != nil {
		return nil, err
	}
	if now < pos.EarliestRemove {
		return nil, ErrTooEarlyToRemove
	}
	current := pos.CurrentShares()
	if shares == nil || shares.Sign() <= 0 || shares.Cmp(current) > 0 {
		return nil, ErrInvalidRemoval
	}
	if err := e.accrueReward(onBehalfOf, pos, now); err != nil {
		return nil, err
	}

	removable := new(big.Int).Sub(totals.TotalLiquidity, e.params.MinLiquidity)
	withdrawal := mulDiv(shares, removable, totals.TotalShares)

	if e.ledger != nil {
		if err := e.ledger.Transfer(e.params.LoanToken, e.vault, onBehalfOf, withdrawal); err != nil {
			return nil, err
		}
	}

	totals.TotalLiquidity = new(big.Int).Sub(totals.TotalLiquidity, withdrawal)
	totals.TotalShares = new(big.Int).Sub(totals.TotalShares, shares)
	totals.LastLiquidityChange = now

	newShares := new(big.Int).Sub(current, shares)
	checkpoint(pos, newShares, totals.NextLoanIdx)
	pos.TrackedLiq = new(big.Int).Sub(pos.TrackedLiq, withdrawal)
	if pos.TrackedLiq.Sign() < 0 {
		pos.TrackedLiq = big.NewInt(0)
	}

	if err := e.state.PutPoolPosition(e.params.PoolID, onBehalfOf, pos); err != nil {
		return nil, err
	}
	if err := e.state.PutPoolTotals(e.params.PoolID, totals); err != nil {
		return nil, err
	}
	e.emit(newLiquidityRemovedEvent(onBehalfOf, shares, withdrawal, totals))
	return withdrawal, nil
}

// Borrow prices a loan off the rate curve, escrows the pledged collateral,
// forwards the creator fee to the revenue accumulator, and pays the loan out.
func (e *Engine) Borrow(caller, onBehalfOf crypto.Address, collateral, minLoanLimit, maxRepayLimit *big.Int, deadline, referralCode uint64) (*Loan, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	if err := e.guardPaused(); err != nil {
		return nil, err
	}
	now := e.now()
	if now > deadline {
		return nil, ErrPastDeadline
	}
	totals, err := e.totals()
	if err != nil {
		return nil, err
	}
	// Same-instant add-then-borrow is forbidden so freshly added liquidity
	// cannot be borrowed against before it is seasoned.
	if totals.LastLiquidityChange == now {
		return nil, ErrInvalidOperation
	}
	terms, err := loanTerms(e.params, collateral, totals.TotalLiquidity)
	if err != nil {
		return nil, err
	}
	if terms.LoanAmount.Cmp(e.params.MinLoan) < 0 {
		return nil, ErrLoanTooSmall
	}
	if minLoanLimit != nil && terms.LoanAmount.Cmp(minLoanLimit) < 0 {
		return nil, ErrLoanBelowLimit
	}
	if maxRepayLimit != nil && terms.RepaymentAmount.Cmp(maxRepayLimit) > 0 {
		return nil, ErrRepayAboveLimit
	}
	remaining := new(big.Int).Sub(totals.TotalLiquidity, terms.LoanAmount)
	if remaining.Cmp(e.params.MinLiquidity) < 0 {
		return nil, ErrInsufficientLiquidity
	}

	if e.ledger != nil {
		// The full collateral moves in a single pull; the fee and loan legs
		// spend vault balances, so the caller cannot fail a later leg and
		// strand a partial pledge in escrow.
		if err := e.ledger.Transfer(e.params.CollToken, caller, e.vault, collateral); err != nil {
			return nil, err
		}
		if terms.CreatorFee.Sign() > 0 {
			if err := e.ledger.Transfer(e.params.CollToken, e.vault, e.revenueVault, terms.CreatorFee); err != nil {
				return nil, err
			}
		}
		if err := e.ledger.Transfer(e.params.LoanToken, e.vault, onBehalfOf, terms.LoanAmount); err != nil {
			return nil, err
		}
	}
	if e.revenue != nil && terms.CreatorFee.Sign() > 0 {
		if err := e.revenue.AccrueRevenue(e.params.CollToken, terms.CreatorFee); err != nil {
			return nil, err
		}
	}

	loan := &Loan{
		Idx:             totals.NextLoanIdx,
		Borrower:        onBehalfOf,
		Collateral:      terms.Pledge,
		LoanAmount:      terms.LoanAmount,
		RepaymentAmount: terms.RepaymentAmount,
		SharesAtOrigin:  cloneBig(totals.TotalShares),
		Expiry:          now + e.params.LoanTenor,
		OriginatedAt:    now,
	}
	totals.TotalLiquidity = remaining
	totals.NextLoanIdx++
	totals.LastLoanChange = now

	if err := e.state.PutPoolLoan(e.params.PoolID, loan); err != nil {
		return nil, err
	}
	if err := e.state.PutPoolTotals(e.params.PoolID, totals); err != nil {
		return nil, err
	}
	e.emit(newBorrowedEvent(loan, terms.CreatorFee, referralCode))
	return loan, nil
}

// Repay settles an active loan before expiry, pulling the repayment from the
// caller and returning the escrowed collateral to the borrower.
func (e *Engine) Repay(caller, onBehalfOf crypto.Address, loanIdx uint64) error {
	if err := e.ready(); err != nil {
		return err
	}
	if err := e.guardPaused(); err != nil {
		return err
	}
	now := e.now()
	totals, err := e.totals()
	if err != nil {
		return err
	}
	if loanIdx == 0 || loanIdx >= totals.NextLoanIdx {
		return ErrInvalidLoanIdx
	}
	loan, ok, err := e.state.PoolLoan(e.params.PoolID, loanIdx)
	if err != nil {
		return err
	}
	if !ok || loan == nil {
		return ErrInvalidLoanIdx
	}
	if !loan.Borrower.Equal(onBehalfOf) {
		return ErrNotApproved
	}
	if err := e.authorize(caller, onBehalfOf, CapabilityRepay); err != nil {
		return err
	}
	if loan.Repaid {
		return ErrAlreadyRepaid
	}
	if now == loan.OriginatedAt {
		return ErrRepaySameInstant
	}
	if now > loan.Expiry {
		return ErrRepayAfterExpiry
	}

	if e.ledger != nil {
		if err := e.ledger.Transfer(e.params.LoanToken, caller, e.vault, loan.RepaymentAmount); err != nil {
			return err
		}
		if err := e.ledger.Transfer(e.params.CollToken, e.vault, loan.Borrower, loan.Collateral); err != nil {
			return err
		}
	}

	loan.Repaid = true
	if err := e.state.PutPoolLoan(e.params.PoolID, loan); err != nil {
		return err
	}
	e.emit(newRepaidEvent(loan))
	return nil
}

// Claim settles an LP's entitlement over a batch of loans. The batch must be
// ascending, start past everything already claimed, share one origination
// share snapshot, and contain only settled loans. Repaid loans pay out a
// repayment slice; expired loans pay out a collateral slice. With reinvest the
// aggregate repayment is re-deposited through the mint formula exactly once,
// after summing, so the share price cannot drift mid-batch.
func (e *Engine) Claim(caller, onBehalfOf crypto.Address, loanIdxs []uint64, reinvest bool, deadline uint64) (*ClaimOutcome, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	if err := e.guardPaused(); err != nil {
		return nil, err
	}
	if err := e.authorize(caller, onBehalfOf, CapabilityClaim); err != nil {
		return nil, err
	}
	now := e.now()
	if now > deadline {
		return nil, ErrPastDeadline
	}
	if len(loanIdxs) == 0 {
		return nil, ErrInvalidLoanIdx
	}
	totals, err := e.totals()
	if err != nil {
		return nil, err
	}
	pos, err := e.position(onBehalfOf, totals.NextLoanIdx)
	if err != nil {
		return nil, err
	}
	if loanIdxs[0] < pos.FromLoanIdx {
		return nil, ErrUnentitled
	}

	repayments := big.NewInt(0)
	collateral := big.NewInt(0)
	trackedDelta := big.NewInt(0)
	var sharesAtOrigin *big.Int
	prev := uint64(0)
	for _, idx := range loanIdxs {
		if idx <= prev && prev != 0 {
			return nil, ErrInvalidLoanIdx
		}
		prev = idx
		if idx == 0 || idx >= totals.NextLoanIdx {
			return nil, ErrInvalidLoanIdx
		}
		loan, ok, err := e.state.PoolLoan(e.params.PoolID, idx)
		if err != nil {
			return nil, err
		}
		if !ok || loan == nil {
			return nil, ErrInvalidLoanIdx
		}
		if !loan.Settled(now) {
			return nil, ErrUnsettledLoan
		}
		if sharesAtOrigin == nil {
			sharesAtOrigin = loan.SharesAtOrigin
		} else if sharesAtOrigin.Cmp(loan.SharesAtOrigin) != 0 {
			return nil, ErrSharesMismatch
		}
		lpShares := pos.SharesAt(idx)
		if loan.Repaid {
			repayments.Add(repayments, mulDiv(loan.RepaymentAmount, lpShares, sharesAtOrigin))
		} else {
			collateral.Add(collateral, mulDiv(loan.Collateral, lpShares, sharesAtOrigin))
		}
		trackedDelta.Add(trackedDelta, mulDiv(loan.LoanAmount, lpShares, sharesAtOrigin))
	}

	if err := e.accrueReward(onBehalfOf, pos, now); err != nil {
		return nil, err
	}
	pos.TrackedLiq = new(big.Int).Sub(pos.TrackedLiq, trackedDelta)
	if pos.TrackedLiq.Sign() < 0 {
		pos.TrackedLiq = big.NewInt(0)
	}
	pos.FromLoanIdx = loanIdxs[len(loanIdxs)-1] + 1

	outcome := &ClaimOutcome{Repayments: repayments, Collateral: collateral, ReinvestedShares: big.NewInt(0)}

	if reinvest && repayments.Sign() > 0 {
		// Reinvesting is a fresh deposit of the aggregate, including the
		// bootstrap branch for a pool whose LPs have all exited while a
		// settled loan was still claimable.
		var minted *big.Int
		if totals.TotalShares.Sign() == 0 {
			minted = mulDiv(repayments, bootstrapScale, e.params.MinLiquidity)
		} else {
			minted = mulDiv(repayments, totals.TotalShares, totals.TotalLiquidity)
		}
		totals.TotalLiquidity = new(big.Int).Add(totals.TotalLiquidity, repayments)
		totals.TotalShares = new(big.Int).Add(totals.TotalShares, minted)
		totals.LastLiquidityChange = now
		newShares := new(big.Int).Add(pos.CurrentShares(), minted)
		checkpoint(pos, newShares, totals.NextLoanIdx)
		pos.EarliestRemove = now + e.params.LpLockSeconds
		pos.TrackedLiq = new(big.Int).Add(pos.TrackedLiq, repayments)
		outcome.ReinvestedShares = minted
		e.emit(newReinvestedEvent(onBehalfOf, repayments, minted, pos.EarliestRemove, totals.NextLoanIdx))
	} else if e.ledger != nil && repayments.Sign() > 0 {
		if err := e.ledger.Transfer(e.params.LoanToken, e.vault, onBehalfOf, repayments); err != nil {
			return nil, err
		}
	}
	if e.ledger != nil && collateral.Sign() > 0 {
		if err := e.ledger.Transfer(e.params.CollToken, e.vault, onBehalfOf, collateral); err != nil {
			return nil, err
		}
	}

	if err := e.state.PutPoolPosition(e.params.PoolID, onBehalfOf, pos); err != nil {
		return nil, err
	}
	if err := e.state.PutPoolTotals(e.params.PoolID, totals); err != nil {
		return nil, err
	}
	e.emit(newClaimedEvent(onBehalfOf, loanIdxs, repayments, collateral))
	return outcome, nil
}

// ForceRewardUpdate flushes the pending time-weighted reward for onBehalfOf
// without any other state change.
func (e *Engine) ForceRewardUpdate(caller, onBehalfOf crypto.Address) error {
	if err := e.ready(); err != nil {
		return err
	}
	if err := e.authorize(caller, onBehalfOf, CapabilityForceRewardUpdate); err != nil {
		return err
	}
	now := e.now()
	totals, err := e.totals()
	if err != nil {
		return err
	}
	pos, err := e.position(onBehalfOf, totals.NextLoanIdx)
	if err != nil {
		return err
	}
	if err := e.accrueReward(onBehalfOf, pos, now); err != nil {
		return err
	}
	return e.state.PutPoolPosition(e.params.PoolID, onBehalfOf, pos)
}

// SetApprovals records the capability bitmask the owner grants the delegate.
func (e *Engine) SetApprovals(owner, delegate crypto.Address, mask Capability) error {
	if err := e.ready(); err != nil {
		return err
	}
	if err := e.state.SetPoolApproval(owner, delegate, mask); err != nil {
		return err
	}
	e.emit(newApprovalsEvent(owner, delegate, mask))
	return nil
}

// Pause halts all pool mutations. Controller only.
func (e *Engine) Pause(caller crypto.Address) error {
	return e.setPaused(caller, true)
}

// Unpause resumes pool mutations. Controller only.
func (e *Engine) Unpause(caller crypto.Address) error {
	return e.setPaused(caller, false)
}

func (e *Engine) setPaused(caller crypto.Address, paused bool) error {
	if err := e.ready(); err != nil {
		return err
	}
	if !caller.Equal(e.controller) {
		return ErrNotController
	}
	if err := e.state.SetPoolPaused(e.params.PoolID, paused); err != nil {
		return err
	}
	e.emit(newPausedEvent(e.params.PoolID, paused))
	return nil
}

// PoolInfo reports the read-only pool summary.
func (e *Engine) PoolInfo() (*Info, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	totals, err := e.totals()
	if err != nil {
		return nil, err
	}
	return &Info{
		LoanToken:      e.params.LoanToken,
		CollToken:      e.params.CollToken,
		MaxLoanPerColl: cloneBig(e.params.MaxLoanPerColl),
		MinLoan:        cloneBig(e.params.MinLoan),
		LoanTenor:      e.params.LoanTenor,
		TotalLiquidity: totals.TotalLiquidity,
		TotalShares:    totals.TotalShares,
		RewardCoeff:    cloneBig(e.params.RewardCoeff),
		NextLoanIdx:    totals.NextLoanIdx,
	}, nil
}

// LpInfo returns the LP's checkpoint history and lock/claim cursors.
func (e *Engine) LpInfo(addr crypto.Address) (*Position, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	totals, err := e.totals()
	if err != nil {
		return nil, err
	}
	return e.position(addr, totals.NextLoanIdx)
}

// LoanInfo looks up a single loan record.
func (e *Engine) LoanInfo(idx uint64) (*Loan, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	loan, ok, err := e.state.PoolLoan(e.params.PoolID, idx)
	if err != nil {
		return nil, err
	}
	if !ok || loan == nil {
		return nil, ErrInvalidLoanIdx
	}
	return loan, nil
}

// LoanTerms quotes the curve for a prospective collateral amount without
// mutating any state.
func (e *Engine) LoanTerms(collateral *big.Int) (*Terms, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	totals, err := e.totals()
	if err != nil {
		return nil, err
	}
	return loanTerms(e.params, collateral, totals.TotalLiquidity)
}

// Approvals returns the capability bitmask owner has granted delegate.
func (e *Engine) Approvals(owner, delegate crypto.Address) (Capability, error) {
	if err := e.ready(); err != nil {
		return 0, err
	}
	return e.state.PoolApproval(owner, delegate)
}
