package rewards

import (
	"math/big"
	"strconv"

	"poolchain/core/types"
	"poolchain/crypto"
)

const (
	// EventTypeSupplyDeposited is emitted when the shared supply grows.
	EventTypeSupplyDeposited = "rewards.supply_deposited"
	// EventTypeDistributed is emitted when a pool draws a grant for an LP.
	EventTypeDistributed = "rewards.distributed"
	// EventTypeCollected is emitted when an account collects its balance.
	EventTypeCollected = "rewards.collected"
)

type rewardsEvent struct {
	evt *types.Event
}

func (r rewardsEvent) EventType() string {
	if r.evt == nil {
		return ""
	}
	return r.evt.Type
}

func (r rewardsEvent) Event() *types.Event { return r.evt }

func newSupplyEvent(depositor crypto.Address, amount *big.Int) *types.Event {
	return &types.Event{Type: EventTypeSupplyDeposited, Attributes: map[string]string{
		"depositor": depositor.String(),
		"amount":    amount.String(),
	}}
}

func newDistributionEvent(poolID string, account crypto.Address, liquidity *big.Int, duration uint64, coeff, reward *big.Int) *types.Event {
	return &types.Event{Type: EventTypeDistributed, Attributes: map[string]string{
		"pool":        poolID,
		"account":     account.String(),
		"liquidity":   liquidity.String(),
		"duration":    strconv.FormatUint(duration, 10),
		"coefficient": coeff.String(),
		"amount":      reward.String(),
	}}
}

func newCollectedEvent(account crypto.Address, amount *big.Int, reinvest bool) *types.Event {
	return &types.Event{Type: EventTypeCollected, Attributes: map[string]string{
		"account":  account.String(),
		"amount":   amount.String(),
		"reinvest": strconv.FormatBool(reinvest),
	}}
}
