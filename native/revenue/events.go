package revenue

import (
	"math/big"
	"strconv"

	"poolchain/core/types"
	"poolchain/crypto"
)

const (
	// EventTypeSnapshot is emitted when a revenue epoch closes.
	EventTypeSnapshot = "revenue.snapshot"
	// EventTypeClaimed is emitted when an account claims its slice of an epoch.
	EventTypeClaimed = "revenue.claimed"
)

type revenueEvent struct {
	evt *types.Event
}

func (r revenueEvent) EventType() string {
	if r.evt == nil {
		return ""
	}
	return r.evt.Type
}

func (r revenueEvent) Event() *types.Event { return r.evt }

func newSnapshotEvent(token string, idx uint64, snap *TokenRevenueSnapshot) *types.Event {
	return &types.Event{Type: EventTypeSnapshot, Attributes: map[string]string{
		"token":     token,
		"idx":       strconv.FormatUint(idx, 10),
		"supply":    snap.Supply.String(),
		"collected": snap.Collected.String(),
		"timestamp": strconv.FormatUint(snap.Timestamp, 10),
		"anchorSeq": strconv.FormatUint(snap.AnchorSeq, 10),
	}}
}

func newClaimEvent(account crypto.Address, token string, idx uint64, payout *big.Int) *types.Event {
	return &types.Event{Type: EventTypeClaimed, Attributes: map[string]string{
		"account": account.String(),
		"token":   token,
		"idx":     strconv.FormatUint(idx, 10),
		"payout":  payout.String(),
	}}
}
