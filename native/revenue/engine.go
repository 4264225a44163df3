package revenue

import (
	"errors"
	"fmt"
	"math/big"
	"time"

	"poolchain/core/events"
	"poolchain/core/types"
	"poolchain/crypto"
	"poolchain/native/governance"
)

var (
	errStateNotConfigured = errors.New("revenue: state not configured")
	errVotesNotConfigured = errors.New("revenue: vote ledger not configured")

	ErrInvalidAmount             = errors.New("revenue: amount must be positive")
	ErrInvalidTokenSnapshotIdx   = errors.New("revenue: invalid token snapshot index")
	ErrInvalidAccountSnapshotIdx = errors.New("revenue: invalid account snapshot index")
	ErrIncorrectAccountSnapshot  = errors.New("revenue: account snapshot does not bracket the token snapshot")
	ErrAlreadyClaimed            = errors.New("revenue: already claimed")
	ErrEmptyClaim                = errors.New("revenue: claim arrays must have at least one element")
	ErrDuplicateClaim            = errors.New("revenue: duplicate token snapshot in claim")
	ErrTokenIdxsLength           = errors.New("revenue: tokens and token snapshot indexes must have the same length")
	ErrAccountIdxsLength         = errors.New("revenue: tokens and account snapshot indexes must have the same length")
)

// TokenRevenueSnapshot is a closed accounting epoch for one revenue token. The
// anchor sequence number brackets which account vote snapshot is valid for
// claims against this epoch.
type TokenRevenueSnapshot struct {
	Supply    *big.Int `json:"supply"`
	Collected *big.Int `json:"collected"`
	Claimed   *big.Int `json:"claimed"`
	Timestamp uint64   `json:"timestamp"`
	AnchorSeq uint64   `json:"anchorSeq"`
}

type snapshotState interface {
	CurrentRevenue(token string) (*big.Int, error)
	SetCurrentRevenue(token string, amount *big.Int) error
	NumTokenSnapshots(token string) (uint64, error)
	TokenSnapshot(token string, idx uint64) (*TokenRevenueSnapshot, bool, error)
	PutTokenSnapshot(token string, idx uint64, snap *TokenRevenueSnapshot) error
	AppendTokenSnapshot(token string, snap *TokenRevenueSnapshot) error
	HasClaimedSnapshot(token string, idx uint64, account crypto.Address) (bool, error)
	SetClaimedSnapshot(token string, idx uint64, account crypto.Address) error
	NextSnapshotSeq() (uint64, error)
}

// VoteView is the slice of the governance ledger the snapshot logic needs:
// the vote supply frozen into new snapshots and the per-account balance
// history validated at claim time.
type VoteView interface {
	TotalSupply() (*big.Int, error)
	AccountSnapshots(account crypto.Address) ([]governance.AccountVoteSnapshot, error)
}

// TokenLedger moves revenue tokens between accounts and the revenue vault.
type TokenLedger interface {
	Transfer(token string, from, to crypto.Address, amount *big.Int) error
}

// Engine implements the lazily-snapshotted revenue ledger: deposits accumulate
// per token, a time gate closes epochs, and holders claim proportional slices
// against their bracketing vote snapshot without any global sweep.
type Engine struct {
	state            snapshotState
	votes            VoteView
	ledger           TokenLedger
	emitter          events.Emitter
	nowFn            func() time.Time
	snapshotInterval uint64
	vault            crypto.Address
}

// NewEngine constructs a revenue engine with default no-op dependencies.
func NewEngine() *Engine {
	return &Engine{
		emitter: events.NoopEmitter{},
		nowFn:   func() time.Time { return time.Now().UTC() },
		vault:   crypto.ModuleAddress("revenue"),
	}
}

// SetState wires the engine to the state backend providing persistence helpers.
func (e *Engine) SetState(state snapshotState) { e.state = state }

// SetVotes wires the governance ledger view.
func (e *Engine) SetVotes(votes VoteView) { e.votes = votes }

// SetLedger wires the token transfer collaborator.
func (e *Engine) SetLedger(ledger TokenLedger) { e.ledger = ledger }

// SetEmitter configures the event emitter used by the engine. Passing nil
// resets the emitter to a no-op implementation.
func (e *Engine) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		e.emitter = events.NoopEmitter{}
		return
	}
	e.emitter = emitter
}

// SetNowFunc overrides the time source used to stamp snapshots. Nil restores
// the default UTC clock.
func (e *Engine) SetNowFunc(now func() time.Time) {
	if now == nil {
		e.nowFn = func() time.Time { return time.Now().UTC() }
		return
	}
	e.nowFn = now
}

// SetSnapshotInterval sets the minimum seconds between token snapshots.
func (e *Engine) SetSnapshotInterval(seconds uint64) { e.snapshotInterval = seconds }

// Vault returns the address custodying accumulated revenue.
func (e *Engine) Vault() crypto.Address { return e.vault }

func (e *Engine) emit(event *types.Event) {
	if e == nil || e.emitter == nil || event == nil {
		return
	}
	e.emitter.Emit(revenueEvent{evt: event})
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
	if e.votes == nil {
		return errVotesNotConfigured
	}
	return nil
}

// DepositRevenue pulls revenue tokens from the depositor and accumulates them
// into the token's current epoch, closing the epoch when the time gate allows.
func (e *Engine) DepositRevenue(depositor crypto.Address, token string, amount *big.Int) error {
	if err := e.ready(); err != nil {
		return err
	}
	if amount == nil || amount.Sign() <= 0 {
		return ErrInvalidAmount
	}
	if e.ledger != nil {
		if err := e.ledger.Transfer(token, depositor, e.vault, amount); err != nil {
			return err
		}
	}
	return e.AccrueRevenue(token, amount)
}

// AccrueRevenue credits already-custodied revenue (e.g. pool creator fees)
// and runs the snapshot check. The accrued amount is part of the epoch the
// check may close.
func (e *Engine) AccrueRevenue(token string, amount *big.Int) error {
	if err := e.ready(); err != nil {
		return err
	}
	if amount == nil || amount.Sign() <= 0 {
		return ErrInvalidAmount
	}
	current, err := e.state.CurrentRevenue(token)
	if err != nil {
		return err
	}
	if err := e.state.SetCurrentRevenue(token, new(big.Int).Add(current, amount)); err != nil {
		return err
	}
	return e.snapshotCheck(token)
}

// ForceSnapshotCheck applies the time-gated snapshot logic without a deposit.
func (e *Engine) ForceSnapshotCheck(token string) error {
	if err := e.ready(); err != nil {
		return err
	}
	return e.snapshotCheck(token)
}

// snapshotCheck closes the current epoch when no snapshot exists yet or the
// snapshot interval has elapsed since the last one. Epochs with nothing
// collected are never recorded.
func (e *Engine) snapshotCheck(token string) error {
	current, err := e.state.CurrentRevenue(token)
	if err != nil {
		return err
	}
	if current.Sign() == 0 {
		return nil
	}
	now := e.now()
	n, err := e.state.NumTokenSnapshots(token)
	if err != nil {
		return err
	}
	if n > 0 {
		last, ok, err := e.state.TokenSnapshot(token, n-1)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("revenue: missing snapshot %d for token %s", n-1, token)
		}
		if now < last.Timestamp+e.snapshotInterval {
			return nil
		}
	}
	supply, err := e.votes.TotalSupply()
	if err != nil {
		return err
	}
	seq, err := e.state.NextSnapshotSeq()
	if err != nil {
		return err
	}
	snap := &TokenRevenueSnapshot{
		Supply:    new(big.Int).Set(supply),
		Collected: new(big.Int).Set(current),
		Claimed:   big.NewInt(0),
		Timestamp: now,
		AnchorSeq: seq,
	}
	if err := e.state.AppendTokenSnapshot(token, snap); err != nil {
		return err
	}
	if err := e.state.SetCurrentRevenue(token, big.NewInt(0)); err != nil {
		return err
	}
	e.emit(newSnapshotEvent(token, n, snap))
	return nil
}

type claimLeg struct {
	token  string
	idx    uint64
	snap   *TokenRevenueSnapshot
	payout *big.Int
}

// validateClaim resolves one claim leg without mutating state.
func (e *Engine) validateClaim(account crypto.Address, token string, tokenIdx, accountIdx uint64) (*claimLeg, error) {
	n, err := e.state.NumTokenSnapshots(token)
	if err != nil {
		return nil, err
	}
	if tokenIdx >= n {
		return nil, ErrInvalidTokenSnapshotIdx
	}
	snap, ok, err := e.state.TokenSnapshot(token, tokenIdx)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrInvalidTokenSnapshotIdx
	}
	snapshots, err := e.votes.AccountSnapshots(account)
	if err != nil {
		return nil, err
	}
	if accountIdx >= uint64(len(snapshots)) {
		return nil, ErrInvalidAccountSnapshotIdx
	}
	chosen := snapshots[accountIdx]
	// The chosen snapshot must be the account's last one before the token
	// snapshot's anchor: it precedes the anchor, and its successor (if any)
	// does not.
	if chosen.Seq >= snap.AnchorSeq {
		return nil, ErrIncorrectAccountSnapshot
	}
	if int(accountIdx) < len(snapshots)-1 && snapshots[accountIdx+1].Seq < snap.AnchorSeq {
		return nil, ErrIncorrectAccountSnapshot
	}
	claimed, err := e.state.HasClaimedSnapshot(token, tokenIdx, account)
	if err != nil {
		return nil, err
	}
	if claimed {
		return nil, ErrAlreadyClaimed
	}
	payout := new(big.Int).Mul(snap.Collected, chosen.Balance)
	if snap.Supply.Sign() == 0 {
		payout = big.NewInt(0)
	} else {
		payout.Quo(payout, snap.Supply)
	}
	return &claimLeg{token: token, idx: tokenIdx, snap: snap, payout: payout}, nil
}

func (e *Engine) applyClaim(account crypto.Address, leg *claimLeg) error {
	leg.snap.Claimed = new(big.Int).Add(leg.snap.Claimed, leg.payout)
	if err := e.state.PutTokenSnapshot(leg.token, leg.idx, leg.snap); err != nil {
		return err
	}
	if err := e.state.SetClaimedSnapshot(leg.token, leg.idx, account); err != nil {
		return err
	}
	if e.ledger != nil && leg.payout.Sign() > 0 {
		if err := e.ledger.Transfer(leg.token, e.vault, account, leg.payout); err != nil {
			return err
		}
	}
	e.emit(newClaimEvent(account, leg.token, leg.idx, leg.payout))
	return nil
}

// ClaimToken pays the account its proportional slice of one token snapshot.
// The account snapshot index must be the unique one bracketing the snapshot's
// anchor sequence number.
func (e *Engine) ClaimToken(account crypto.Address, token string, tokenIdx, accountIdx uint64) (*big.Int, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	leg, err := e.validateClaim(account, token, tokenIdx, accountIdx)
	if err != nil {
		return nil, err
	}
	if err := e.applyClaim(account, leg); err != nil {
		return nil, err
	}
	return leg.payout, nil
}

// ClaimMultiple applies ClaimToken's rules across several legs atomically:
// every leg is validated before any payout moves.
func (e *Engine) ClaimMultiple(account crypto.Address, tokens []string, tokenIdxs, accountIdxs []uint64) error {
	if err := e.ready(); err != nil {
		return err
	}
	if len(tokens) != len(tokenIdxs) {
		return ErrTokenIdxsLength
	}
	if len(tokens) != len(accountIdxs) {
		return ErrAccountIdxsLength
	}
	if len(tokens) == 0 {
		return ErrEmptyClaim
	}
	seen := make(map[string]struct{}, len(tokens))
	legs := make([]*claimLeg, 0, len(tokens))
	for i, token := range tokens {
		key := fmt.Sprintf("%s/%d", token, tokenIdxs[i])
		if _, dup := seen[key]; dup {
			return ErrDuplicateClaim
		}
		seen[key] = struct{}{}
		leg, err := e.validateClaim(account, token, tokenIdxs[i], accountIdxs[i])
		if err != nil {
			return err
		}
		legs = append(legs, leg)
	}
	for _, leg := range legs {
		if err := e.applyClaim(account, leg); err != nil {
			return err
		}
	}
	return nil
}

// CurrentRevenue reports the token's still-open accumulator.
func (e *Engine) CurrentRevenue(token string) (*big.Int, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	return e.state.CurrentRevenue(token)
}

// NumTokenSnapshots reports how many epochs have closed for the token.
func (e *Engine) NumTokenSnapshots(token string) (uint64, error) {
	if err := e.ready(); err != nil {
		return 0, err
	}
	return e.state.NumTokenSnapshots(token)
}

// TokenSnapshot looks up one closed epoch.
func (e *Engine) TokenSnapshot(token string, idx uint64) (*TokenRevenueSnapshot, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	snap, ok, err := e.state.TokenSnapshot(token, idx)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrInvalidTokenSnapshotIdx
	}
	return snap, nil
}

// HasClaimedSnapshot reports whether the account already claimed the epoch.
func (e *Engine) HasClaimedSnapshot(token string, idx uint64, account crypto.Address) (bool, error) {
	if err := e.ready(); err != nil {
		return false, err
	}
	return e.state.HasClaimedSnapshot(token, idx, account)
}
