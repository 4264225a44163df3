package governance

import (
	"math/big"
	"time"

	"poolchain/core/events"
	"poolchain/core/types"
	"poolchain/crypto"
)

var basisPoints = big.NewInt(10_000)

type ledgerState interface {
	VoteAccount(addr crypto.Address) (*VoteAccount, bool, error)
	PutVoteAccount(addr crypto.Address, acct *VoteAccount) error
	VoteTotalSupply() (*big.Int, error)
	SetVoteTotalSupply(supply *big.Int) error
	NextSnapshotSeq() (uint64, error)
	NextProposalIdx() (uint64, error)
	Proposal(idx uint64) (*Proposal, bool, error)
	PutProposal(p *Proposal) error
	ProposalVote(idx uint64, voter crypto.Address) (*big.Int, bool, error)
	PutProposalVote(idx uint64, voter crypto.Address, amount *big.Int) error
	DeleteProposalVote(idx uint64, voter crypto.Address) error
	VetoHolder() (crypto.Address, error)
	SetVetoHolder(holder crypto.Address) error
	PoolWhitelisted(pool string) (bool, error)
	SetPoolWhitelisted(pool string, whitelisted bool) error
}

// TokenLedger moves vote tokens between accounts and the governance vault.
type TokenLedger interface {
	Transfer(token string, from, to crypto.Address, amount *big.Int) error
}

// PoolControl is the narrow hook the governance ledger uses to apply executed
// pause and unpause proposals to their target pool.
type PoolControl interface {
	SetPaused(pool string, paused bool) error
}

// Engine implements the vote-token registry, proposal lifecycle, and the veto
// gate. Balance history is an append-only snapshot log consumed by the
// revenue ledger's bracketing claims.
type Engine struct {
	state   ledgerState
	emitter events.Emitter
	nowFn   func() time.Time
	policy  Policy
	ledger  TokenLedger
	pools   PoolControl
	vault   crypto.Address
}

// NewEngine constructs a governance engine with default no-op dependencies.
func NewEngine() *Engine {
	return &Engine{
		emitter: events.NoopEmitter{},
		nowFn:   func() time.Time { return time.Now().UTC() },
		vault:   crypto.ModuleAddress("governance"),
	}
}

// SetState wires the engine to the state backend providing persistence helpers.
func (e *Engine) SetState(state ledgerState) { e.state = state }

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

// SetPolicy updates the runtime policy governing deposits and thresholds.
func (e *Engine) SetPolicy(policy Policy) {
	if e == nil {
		return
	}
	e.policy = policy
}

// SetLedger wires the token transfer collaborator.
func (e *Engine) SetLedger(ledger TokenLedger) { e.ledger = ledger }

// SetPoolControl wires the hook applying executed pause toggles.
func (e *Engine) SetPoolControl(pools PoolControl) { e.pools = pools }

// Vault returns the address custodying deposited vote tokens.
func (e *Engine) Vault() crypto.Address { return e.vault }

func (e *Engine) emit(event *types.Event) {
	if e == nil || e.emitter == nil || event == nil {
		return
	}
	e.emitter.Emit(governanceEvent{evt: event})
}

func (e *Engine) now() uint64 {
	if e == nil || e.nowFn == nil {
		return uint64(time.Now().UTC().Unix())
	}
	return uint64(e.nowFn().Unix())
}

func (e *Engine) account(addr crypto.Address) (*VoteAccount, error) {
	acct, ok, err := e.state.VoteAccount(addr)
	if err != nil {
		return nil, err
	}
	if !ok || acct == nil {
		acct = &VoteAccount{Balance: big.NewInt(0)}
	}
	if acct.Balance == nil {
		acct.Balance = big.NewInt(0)
	}
	return acct, nil
}

// credit applies a deposit to the account: balance, deposit lock, supply, and
// a fresh snapshot with the next global sequence number.
func (e *Engine) credit(account crypto.Address, acct *VoteAccount, amount *big.Int, now uint64) error {
	acct.Balance = new(big.Int).Add(acct.Balance, amount)
	acct.LastDeposit = now
	seq, err := e.state.NextSnapshotSeq()
	if err != nil {
		return err
	}
	acct.Snapshots = append(acct.Snapshots, AccountVoteSnapshot{
		Balance:   new(big.Int).Set(acct.Balance),
		Timestamp: now,
		Seq:       seq,
	})
	if err := e.state.PutVoteAccount(account, acct); err != nil {
		return err
	}
	supply, err := e.state.VoteTotalSupply()
	if err != nil {
		return err
	}
	return e.state.SetVoteTotalSupply(new(big.Int).Add(supply, amount))
}

// Deposit pulls vote tokens from the account and credits its vote balance.
func (e *Engine) Deposit(account crypto.Address, amount *big.Int) error {
	if e == nil || e.state == nil {
		return errStateNotConfigured
	}
	if amount == nil || amount.Sign() <= 0 {
		return ErrInvalidAmount
	}
	if e.ledger != nil {
		if err := e.ledger.Transfer(e.policy.VoteToken, account, e.vault, amount); err != nil {
			return err
		}
	}
	now := e.now()
	acct, err := e.account(account)
	if err != nil {
		return err
	}
	if err := e.credit(account, acct, amount, now); err != nil {
		return err
	}
	e.emit(newDepositEvent(account, amount, acct.Balance))
	return nil
}

// CreditDeposit applies a deposit that was already funded by another ledger
// (reward reinvestment); no tokens are pulled.
func (e *Engine) CreditDeposit(account crypto.Address, amount *big.Int) error {
	if e == nil || e.state == nil {
		return errStateNotConfigured
	}
	if amount == nil || amount.Sign() <= 0 {
		return ErrInvalidAmount
	}
	now := e.now()
	acct, err := e.account(account)
	if err != nil {
		return err
	}
	if err := e.credit(account, acct, amount, now); err != nil {
		return err
	}
	e.emit(newDepositEvent(account, amount, acct.Balance))
	return nil
}

// Withdraw releases vote tokens back to the account. Withdrawal is blocked
// while the deposit lock runs or while the account has unremoved votes.
func (e *Engine) Withdraw(account crypto.Address, amount *big.Int) error {
	if e == nil || e.state == nil {
		return errStateNotConfigured
	}
	if amount == nil || amount.Sign() <= 0 {
		return ErrZeroWithdraw
	}
	now := e.now()
	acct, err := e.account(account)
	if err != nil {
		return err
	}
	if amount.Cmp(acct.Balance) > 0 {
		return ErrNotEnoughTokens
	}
	if now < acct.LastDeposit+e.policy.LockSeconds {
		return ErrTooEarlyToWithdraw
	}
	if acct.NumVotings > 0 {
		return ErrVotesActive
	}
	if e.ledger != nil {
		if err := e.ledger.Transfer(e.policy.VoteToken, e.vault, account, amount); err != nil {
			return err
		}
	}
	acct.Balance = new(big.Int).Sub(acct.Balance, amount)
	seq, err := e.state.NextSnapshotSeq()
	if err != nil {
		return err
	}
	acct.Snapshots = append(acct.Snapshots, AccountVoteSnapshot{
		Balance:   new(big.Int).Set(acct.Balance),
		Timestamp: now,
		Seq:       seq,
	})
	if err := e.state.PutVoteAccount(account, acct); err != nil {
		return err
	}
	supply, err := e.state.VoteTotalSupply()
	if err != nil {
		return err
	}
	if err := e.state.SetVoteTotalSupply(new(big.Int).Sub(supply, amount)); err != nil {
		return err
	}
	e.emit(newWithdrawEvent(account, amount, acct.Balance))
	return nil
}

// CreateProposal opens a new proposal against a target pool.
func (e *Engine) CreateProposal(proposer crypto.Address, target string, action Action, deadline uint64) (*Proposal, error) {
	if e == nil || e.state == nil {
		return nil, errStateNotConfigured
	}
	if !action.Valid() {
		return nil, ErrInvalidAction
	}
	now := e.now()
	if deadline < now {
		return nil, ErrDeadlineBeforeNow
	}
	idx, err := e.state.NextProposalIdx()
	if err != nil {
		return nil, err
	}
	proposal := &Proposal{
		Idx:      idx,
		Target:   target,
		Action:   action,
		Votes:    big.NewInt(0),
		Deadline: deadline,
	}
	if err := e.state.PutProposal(proposal); err != nil {
		return nil, err
	}
	e.emit(newProposedEvent(proposer, proposal))
	return proposal, nil
}

// Vote adds the voter's current vote balance to the proposal tally and runs
// the execution check.
func (e *Engine) Vote(idx uint64, voter crypto.Address) error {
	if e == nil || e.state == nil {
		return errStateNotConfigured
	}
	proposal, ok, err := e.state.Proposal(idx)
	if err != nil {
		return err
	}
	if !ok || proposal == nil {
		return ErrInvalidProposalIdx
	}
	if proposal.Executed {
		return ErrProposalExecuted
	}
	now := e.now()
	if now > proposal.Deadline {
		return ErrProposalExpired
	}
	acct, err := e.account(voter)
	if err != nil {
		return err
	}
	if acct.Balance.Sign() == 0 {
		return ErrNoVotingPower
	}
	if _, voted, err := e.state.ProposalVote(idx, voter); err != nil {
		return err
	} else if voted {
		return ErrAlreadyVoted
	}
	weight := new(big.Int).Set(acct.Balance)
	if err := e.state.PutProposalVote(idx, voter, weight); err != nil {
		return err
	}
	acct.NumVotings++
	if err := e.state.PutVoteAccount(voter, acct); err != nil {
		return err
	}
	proposal.Votes = new(big.Int).Add(proposal.Votes, weight)
	if err := e.state.PutProposal(proposal); err != nil {
		return err
	}
	e.emit(newVoteEvent(voter, proposal, weight))
	return e.maybeExecute(proposal)
}

// RemoveVote subtracts the voter's recorded weight. Execution, once applied,
// is never reversed.
func (e *Engine) RemoveVote(idx uint64, voter crypto.Address) error {
	if e == nil || e.state == nil {
		return errStateNotConfigured
	}
	proposal, ok, err := e.state.Proposal(idx)
	if err != nil {
		return err
	}
	if !ok || proposal == nil {
		return ErrInvalidProposalIdx
	}
	weight, voted, err := e.state.ProposalVote(idx, voter)
	if err != nil {
		return err
	}
	if !voted {
		return ErrDidNotVote
	}
	if err := e.state.DeleteProposalVote(idx, voter); err != nil {
		return err
	}
	acct, err := e.account(voter)
	if err != nil {
		return err
	}
	if acct.NumVotings > 0 {
		acct.NumVotings--
	}
	if err := e.state.PutVoteAccount(voter, acct); err != nil {
		return err
	}
	proposal.Votes = new(big.Int).Sub(proposal.Votes, weight)
	if err := e.state.PutProposal(proposal); err != nil {
		return err
	}
	e.emit(newVoteRemovedEvent(voter, proposal, weight))
	return nil
}

// SetVetoHolderApproval records or clears the veto holder's approval of a
// whitelist proposal. Granting approval can trigger immediate execution when
// the vote threshold was already met.
func (e *Engine) SetVetoHolderApproval(caller crypto.Address, idx uint64, approved bool) error {
	if e == nil || e.state == nil {
		return errStateNotConfigured
	}
	holder, err := e.state.VetoHolder()
	if err != nil {
		return err
	}
	if !caller.Equal(holder) {
		return ErrNotVetoHolder
	}
	proposal, ok, err := e.state.Proposal(idx)
	if err != nil {
		return err
	}
	if !ok || proposal == nil {
		return ErrInvalidProposalIdx
	}
	if proposal.Action != ActionWhitelist {
		return ErrNotWhitelistProposal
	}
	if proposal.Executed {
		return ErrProposalExecuted
	}
	if approved {
		proposal.VetoApproval = holder
	} else {
		proposal.VetoApproval = crypto.ZeroAddress()
	}
	if err := e.state.PutProposal(proposal); err != nil {
		return err
	}
	e.emit(newVetoApprovalEvent(proposal, approved))
	return e.maybeExecute(proposal)
}

// TransferVetoPower hands the veto role to a new holder. Transferring to the
// zero address waives the whitelist approval requirement permanently and must
// be confirmed with allowZero.
func (e *Engine) TransferVetoPower(caller, newHolder crypto.Address, allowZero bool) error {
	if e == nil || e.state == nil {
		return errStateNotConfigured
	}
	holder, err := e.state.VetoHolder()
	if err != nil {
		return err
	}
	if !caller.Equal(holder) {
		return ErrNotVetoHolder
	}
	if newHolder.Equal(holder) {
		return ErrAlreadyVetoHolder
	}
	if newHolder.IsZero() && !allowZero {
		return ErrZeroAddressHolder
	}
	if err := e.state.SetVetoHolder(newHolder); err != nil {
		return err
	}
	e.emit(newVetoTransferEvent(holder, newHolder))
	return nil
}

// maybeExecute applies the proposal when its tally crosses the action's
// threshold of the current vote supply, subject to the veto gate for
// whitelist proposals. Execution happens at most once.
func (e *Engine) maybeExecute(proposal *Proposal) error {
	if proposal == nil || proposal.Executed {
		return nil
	}
	supply, err := e.state.VoteTotalSupply()
	if err != nil {
		return err
	}
	if supply.Sign() == 0 {
		return nil
	}
	threshold := e.policy.Thresholds.forAction(proposal.Action)
	lhs := new(big.Int).Mul(proposal.Votes, basisPoints)
	rhs := new(big.Int).Mul(new(big.Int).SetUint64(threshold), supply)
	if lhs.Cmp(rhs) < 0 {
		return nil
	}
	if proposal.Action == ActionWhitelist {
		holder, err := e.state.VetoHolder()
		if err != nil {
			return err
		}
		if !holder.IsZero() && !proposal.VetoApproval.Equal(holder) {
			return nil
		}
	}
	switch proposal.Action {
	case ActionPause:
		if e.pools != nil {
			if err := e.pools.SetPaused(proposal.Target, true); err != nil {
				return err
			}
		}
	case ActionUnpause:
		if e.pools != nil {
			if err := e.pools.SetPaused(proposal.Target, false); err != nil {
				return err
			}
		}
	case ActionWhitelist:
		if err := e.state.SetPoolWhitelisted(proposal.Target, true); err != nil {
			return err
		}
	case ActionDewhitelist:
		if err := e.state.SetPoolWhitelisted(proposal.Target, false); err != nil {
			return err
		}
	}
	proposal.Executed = true
	if err := e.state.PutProposal(proposal); err != nil {
		return err
	}
	e.emit(newExecutedEvent(proposal, supply))
	return nil
}

// Proposal looks up a single proposal record.
func (e *Engine) Proposal(idx uint64) (*Proposal, error) {
	if e == nil || e.state == nil {
		return nil, errStateNotConfigured
	}
	proposal, ok, err := e.state.Proposal(idx)
	if err != nil {
		return nil, err
	}
	if !ok || proposal == nil {
		return nil, ErrInvalidProposalIdx
	}
	return proposal, nil
}

// VoteBalance reports the account's current vote-token balance.
func (e *Engine) VoteBalance(account crypto.Address) (*big.Int, error) {
	if e == nil || e.state == nil {
		return nil, errStateNotConfigured
	}
	acct, err := e.account(account)
	if err != nil {
		return nil, err
	}
	return new(big.Int).Set(acct.Balance), nil
}

// NumVotings reports how many proposals the account currently votes on.
func (e *Engine) NumVotings(account crypto.Address) (uint64, error) {
	if e == nil || e.state == nil {
		return 0, errStateNotConfigured
	}
	acct, err := e.account(account)
	if err != nil {
		return 0, err
	}
	return acct.NumVotings, nil
}

// LastDepositTimestamp reports when the account last deposited vote tokens.
func (e *Engine) LastDepositTimestamp(account crypto.Address) (uint64, error) {
	if e == nil || e.state == nil {
		return 0, errStateNotConfigured
	}
	acct, err := e.account(account)
	if err != nil {
		return 0, err
	}
	return acct.LastDeposit, nil
}

// TotalSupply reports the vote-token supply currently deposited.
func (e *Engine) TotalSupply() (*big.Int, error) {
	if e == nil || e.state == nil {
		return nil, errStateNotConfigured
	}
	return e.state.VoteTotalSupply()
}

// AccountSnapshots returns the account's full balance-history log.
func (e *Engine) AccountSnapshots(account crypto.Address) ([]AccountVoteSnapshot, error) {
	if e == nil || e.state == nil {
		return nil, errStateNotConfigured
	}
	acct, err := e.account(account)
	if err != nil {
		return nil, err
	}
	return acct.Snapshots, nil
}

// Whitelisted reports the pool's reward-membership flag.
func (e *Engine) Whitelisted(pool string) (bool, error) {
	if e == nil || e.state == nil {
		return false, errStateNotConfigured
	}
	return e.state.PoolWhitelisted(pool)
}

// VetoHolder reports the current veto holder.
func (e *Engine) VetoHolder() (crypto.Address, error) {
	if e == nil || e.state == nil {
		return crypto.Address{}, errStateNotConfigured
	}
	return e.state.VetoHolder()
}
