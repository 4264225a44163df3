package governance

import (
	"math/big"

	"poolchain/crypto"
)

// Action enumerates the protocol-level toggles a proposal can apply to a pool.
type Action uint8

const (
	// ActionPause halts the target pool's mutating operations.
	ActionPause Action = iota
	// ActionUnpause resumes the target pool's mutating operations.
	ActionUnpause
	// ActionWhitelist admits the target pool to reward distributions. Subject
	// to veto-holder approval unless the veto power has been waived.
	ActionWhitelist
	// ActionDewhitelist revokes the target pool's reward membership.
	ActionDewhitelist
)

// Valid reports whether the action is one of the supported toggles.
func (a Action) Valid() bool {
	return a <= ActionDewhitelist
}

// String renders the action for event attributes.
func (a Action) String() string {
	switch a {
	case ActionPause:
		return "pause"
	case ActionUnpause:
		return "unpause"
	case ActionWhitelist:
		return "whitelist"
	case ActionDewhitelist:
		return "dewhitelist"
	default:
		return "unknown"
	}
}

// Proposal is a single governance proposal against a target pool.
type Proposal struct {
	Idx          uint64         `json:"idx"`
	Target       string         `json:"target"`
	Action       Action         `json:"action"`
	Votes        *big.Int       `json:"votes"`
	Deadline     uint64         `json:"deadline"`
	VetoApproval crypto.Address `json:"vetoApproval"`
	Executed     bool           `json:"executed"`
}

// AccountVoteSnapshot records a vote-token balance change. The sequence number
// comes from a single global counter shared with revenue snapshots so entries
// are totally ordered even across timestamp ties.
type AccountVoteSnapshot struct {
	Balance   *big.Int `json:"balance"`
	Timestamp uint64   `json:"timestamp"`
	Seq       uint64   `json:"seq"`
}

// VoteAccount is the mutable per-account vote-token record.
type VoteAccount struct {
	Balance     *big.Int              `json:"balance"`
	LastDeposit uint64                `json:"lastDeposit"`
	NumVotings  uint64                `json:"numVotings"`
	Snapshots   []AccountVoteSnapshot `json:"snapshots"`
}

// Thresholds carries the per-action approval thresholds in basis points of the
// vote-token total supply.
type Thresholds struct {
	PauseBps       uint64
	UnpauseBps     uint64
	WhitelistBps   uint64
	DewhitelistBps uint64
}

// Policy captures the runtime knobs of the governance ledger.
type Policy struct {
	VoteToken   string
	LockSeconds uint64
	Thresholds  Thresholds
}

func (t Thresholds) forAction(action Action) uint64 {
	switch action {
	case ActionPause:
		return t.PauseBps
	case ActionUnpause:
		return t.UnpauseBps
	case ActionWhitelist:
		return t.WhitelistBps
	case ActionDewhitelist:
		return t.DewhitelistBps
	default:
		return 0
	}
}
