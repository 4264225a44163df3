package governance

import "errors"

var (
	errStateNotConfigured = errors.New("governance: state not configured")

	ErrInvalidAmount        = errors.New("governance: amount must be positive")
	ErrZeroWithdraw         = errors.New("governance: cannot make a zero-value withdraw")
	ErrNotEnoughTokens      = errors.New("governance: not enough tokens")
	ErrTooEarlyToWithdraw   = errors.New("governance: too early to withdraw")
	ErrVotesActive          = errors.New("governance: cannot withdraw while votes are active")
	ErrInvalidAction        = errors.New("governance: invalid proposal action")
	ErrDeadlineBeforeNow    = errors.New("governance: deadline must not be before current time")
	ErrInvalidProposalIdx   = errors.New("governance: invalid proposal index")
	ErrNoVotingPower        = errors.New("governance: no voting power")
	ErrAlreadyVoted         = errors.New("governance: already voted")
	ErrProposalExecuted     = errors.New("governance: proposal already executed")
	ErrProposalExpired      = errors.New("governance: proposal expired")
	ErrDidNotVote           = errors.New("governance: did not vote")
	ErrNotVetoHolder        = errors.New("governance: not the veto holder")
	ErrNotWhitelistProposal = errors.New("governance: not a whitelist proposal")
	ErrAlreadyVetoHolder    = errors.New("governance: already the veto holder")
	ErrZeroAddressHolder    = errors.New("governance: transfer to the zero address")
)
