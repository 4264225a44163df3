package governance

import (
	"math/big"
	"strconv"

	"poolchain/core/types"
	"poolchain/crypto"
)

const (
	// EventTypeDeposited is emitted when vote tokens are deposited.
	EventTypeDeposited = "gov.deposited"
	// EventTypeWithdrawn is emitted when vote tokens are withdrawn.
	EventTypeWithdrawn = "gov.withdrawn"
	// EventTypeProposed is emitted when a new proposal is accepted.
	EventTypeProposed = "gov.proposed"
	// EventTypeVoted is emitted when a voter records a ballot.
	EventTypeVoted = "gov.voted"
	// EventTypeVoteRemoved is emitted when a voter retracts a ballot.
	EventTypeVoteRemoved = "gov.vote_removed"
	// EventTypeExecuted marks proposals whose action has been applied.
	EventTypeExecuted = "gov.executed"
	// EventTypeVetoApproval is emitted when the veto holder (de)approves.
	EventTypeVetoApproval = "gov.veto_approval"
	// EventTypeVetoTransferred is emitted when the veto role changes hands.
	EventTypeVetoTransferred = "gov.veto_transferred"
)

type governanceEvent struct {
	evt *types.Event
}

func (g governanceEvent) EventType() string {
	if g.evt == nil {
		return ""
	}
	return g.evt.Type
}

func (g governanceEvent) Event() *types.Event { return g.evt }

func newDepositEvent(account crypto.Address, amount, balance *big.Int) *types.Event {
	return &types.Event{Type: EventTypeDeposited, Attributes: map[string]string{
		"account": account.String(),
		"amount":  amount.String(),
		"balance": balance.String(),
	}}
}

func newWithdrawEvent(account crypto.Address, amount, balance *big.Int) *types.Event {
	return &types.Event{Type: EventTypeWithdrawn, Attributes: map[string]string{
		"account": account.String(),
		"amount":  amount.String(),
		"balance": balance.String(),
	}}
}

func newProposedEvent(proposer crypto.Address, p *Proposal) *types.Event {
	return &types.Event{Type: EventTypeProposed, Attributes: map[string]string{
		"proposer": proposer.String(),
		"idx":      strconv.FormatUint(p.Idx, 10),
		"target":   p.Target,
		"action":   p.Action.String(),
		"deadline": strconv.FormatUint(p.Deadline, 10),
	}}
}

func newVoteEvent(voter crypto.Address, p *Proposal, weight *big.Int) *types.Event {
	return &types.Event{Type: EventTypeVoted, Attributes: map[string]string{
		"voter":  voter.String(),
		"idx":    strconv.FormatUint(p.Idx, 10),
		"weight": weight.String(),
		"votes":  p.Votes.String(),
	}}
}

func newVoteRemovedEvent(voter crypto.Address, p *Proposal, weight *big.Int) *types.Event {
	return &types.Event{Type: EventTypeVoteRemoved, Attributes: map[string]string{
		"voter":  voter.String(),
		"idx":    strconv.FormatUint(p.Idx, 10),
		"weight": weight.String(),
		"votes":  p.Votes.String(),
	}}
}

func newExecutedEvent(p *Proposal, supply *big.Int) *types.Event {
	return &types.Event{Type: EventTypeExecuted, Attributes: map[string]string{
		"idx":    strconv.FormatUint(p.Idx, 10),
		"target": p.Target,
		"action": p.Action.String(),
		"votes":  p.Votes.String(),
		"supply": supply.String(),
	}}
}

func newVetoApprovalEvent(p *Proposal, approved bool) *types.Event {
	return &types.Event{Type: EventTypeVetoApproval, Attributes: map[string]string{
		"idx":      strconv.FormatUint(p.Idx, 10),
		"approved": strconv.FormatBool(approved),
	}}
}

func newVetoTransferEvent(oldHolder, newHolder crypto.Address) *types.Event {
	return &types.Event{Type: EventTypeVetoTransferred, Attributes: map[string]string{
		"oldHolder": oldHolder.String(),
		"newHolder": newHolder.String(),
	}}
}
