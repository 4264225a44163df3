package rewards

import (
	"errors"
	"math/big"
	"time"

	"poolchain/core/events"
	"poolchain/core/types"
	"poolchain/crypto"
)

// scalingFactor is the 1e18 fixed-point scale of reward coefficients.
var scalingFactor = mustBigInt("1000000000000000000")

var (
	errStateNotConfigured = errors.New("rewards: state not configured")

	ErrInvalidAmount         = errors.New("rewards: amount must be positive")
	ErrPoolNotWhitelisted    = errors.New("rewards: pool is not whitelisted")
	ErrNotEnoughRewardSupply = errors.New("rewards: not enough reward supply")
	ErrNoReward              = errors.New("rewards: no reward to collect")
)

func mustBigInt(value string) *big.Int {
	v, ok := new(big.Int).SetString(value, 10)
	if !ok {
		panic("invalid big integer constant")
	}
	return v
}

type supplyState interface {
	RewardSupply() (*big.Int, error)
	SetRewardSupply(supply *big.Int) error
	RewardBalance(account crypto.Address) (*big.Int, error)
	SetRewardBalance(account crypto.Address, amount *big.Int) error
}

// WhitelistView reports whether a pool may request distributions.
type WhitelistView interface {
	Whitelisted(pool string) (bool, error)
}

// VoteDepositor credits a reinvested reward as a fresh vote-token deposit,
// including the snapshot append and deposit lock.
type VoteDepositor interface {
	CreditDeposit(account crypto.Address, amount *big.Int) error
}

// TokenLedger moves reward tokens between accounts and the reward vault.
type TokenLedger interface {
	Transfer(token string, from, to crypto.Address, amount *big.Int) error
}

// Engine implements the shared reward-token supply: deposits grow it,
// whitelisted pools draw time-weighted-liquidity grants from it, and accounts
// collect their grants directly or as reinvested vote deposits.
type Engine struct {
	state       supplyState
	whitelist   WhitelistView
	votes       VoteDepositor
	ledger      TokenLedger
	emitter     events.Emitter
	nowFn       func() time.Time
	rewardToken string
	vault       crypto.Address
	votesVault  crypto.Address
}

// NewEngine constructs a rewards engine with default no-op dependencies.
func NewEngine() *Engine {
	return &Engine{
		emitter: events.NoopEmitter{},
		nowFn:   func() time.Time { return time.Now().UTC() },
		vault:   crypto.ModuleAddress("rewards"),
	}
}

// SetState wires the engine to the state backend providing persistence helpers.
func (e *Engine) SetState(state supplyState) { e.state = state }

// SetWhitelist wires the governance whitelist view.
func (e *Engine) SetWhitelist(whitelist WhitelistView) { e.whitelist = whitelist }

// SetVoteDepositor wires the governance deposit path used by reinvested
// collections, together with the vault reinvested tokens settle into.
func (e *Engine) SetVoteDepositor(votes VoteDepositor, vault crypto.Address) {
	e.votes = votes
	e.votesVault = vault
}

// SetLedger wires the token transfer collaborator.
func (e *Engine) SetLedger(ledger TokenLedger) { e.ledger = ledger }

// SetRewardToken sets the token identifier rewards are denominated in.
func (e *Engine) SetRewardToken(token string) { e.rewardToken = token }

// SetEmitter configures the event emitter used by the engine. Passing nil
// resets the emitter to a no-op implementation.
func (e *Engine) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		e.emitter = events.NoopEmitter{}
		return
	}
	e.emitter = emitter
}

// SetNowFunc overrides the time source. Nil restores the default UTC clock.
func (e *Engine) SetNowFunc(now func() time.Time) {
	if now == nil {
		e.nowFn = func() time.Time { return time.Now().UTC() }
		return
	}
	e.nowFn = now
}

// Vault returns the address custodying the undistributed reward supply.
func (e *Engine) Vault() crypto.Address { return e.vault }

func (e *Engine) emit(event *types.Event) {
	if e == nil || e.emitter == nil || event == nil {
		return
	}
	e.emitter.Emit(rewardsEvent{evt: event})
}

// DepositRewardSupply pulls reward tokens from the depositor into the shared
// supply.
func (e *Engine) DepositRewardSupply(depositor crypto.Address, amount *big.Int) error {
	if e == nil || e.state == nil {
		return errStateNotConfigured
	}
	if amount == nil || amount.Sign() <= 0 {
		return ErrInvalidAmount
	}
	if e.ledger != nil {
		if err := e.ledger.Transfer(e.rewardToken, depositor, e.vault, amount); err != nil {
			return err
		}
	}
	supply, err := e.state.RewardSupply()
	if err != nil {
		return err
	}
	if err := e.state.SetRewardSupply(new(big.Int).Add(supply, amount)); err != nil {
		return err
	}
	e.emit(newSupplyEvent(depositor, amount))
	return nil
}

// RequestTokenDistribution grants a time-weighted-liquidity reward to the
// account on behalf of a whitelisted pool:
// reward = liquidity * duration * coeff / 1e18, floored, drawn from the
// shared supply.
func (e *Engine) RequestTokenDistribution(poolID string, account crypto.Address, liquidity *big.Int, duration uint64, coeff *big.Int) (*big.Int, error) {
	if e == nil || e.state == nil {
		return nil, errStateNotConfigured
	}
	if e.whitelist != nil {
		whitelisted, err := e.whitelist.Whitelisted(poolID)
		if err != nil {
			return nil, err
		}
		if !whitelisted {
			return nil, ErrPoolNotWhitelisted
		}
	}
	if liquidity == nil || coeff == nil {
		return big.NewInt(0), nil
	}
	reward := new(big.Int).Mul(liquidity, new(big.Int).SetUint64(duration))
	reward.Mul(reward, coeff)
	reward.Quo(reward, scalingFactor)
	if reward.Sign() <= 0 {
		return big.NewInt(0), nil
	}
	supply, err := e.state.RewardSupply()
	if err != nil {
		return nil, err
	}
	if reward.Cmp(supply) > 0 {
		return nil, ErrNotEnoughRewardSupply
	}
	if err := e.state.SetRewardSupply(new(big.Int).Sub(supply, reward)); err != nil {
		return nil, err
	}
	balance, err := e.state.RewardBalance(account)
	if err != nil {
		return nil, err
	}
	if err := e.state.SetRewardBalance(account, new(big.Int).Add(balance, reward)); err != nil {
		return nil, err
	}
	e.emit(newDistributionEvent(poolID, account, liquidity, duration, coeff, reward))
	return reward, nil
}

// CollectReward zeroes the account's reward balance and either pays it out or
// reinvests it as a fresh vote-token deposit.
func (e *Engine) CollectReward(account crypto.Address, reinvest bool) (*big.Int, error) {
	if e == nil || e.state == nil {
		return nil, errStateNotConfigured
	}
	balance, err := e.state.RewardBalance(account)
	if err != nil {
		return nil, err
	}
	if balance.Sign() == 0 {
		return nil, ErrNoReward
	}
	if err := e.state.SetRewardBalance(account, big.NewInt(0)); err != nil {
		return nil, err
	}
	if reinvest && e.votes != nil {
		if e.ledger != nil {
			if err := e.ledger.Transfer(e.rewardToken, e.vault, e.votesVault, balance); err != nil {
				return nil, err
			}
		}
		if err := e.votes.CreditDeposit(account, balance); err != nil {
			return nil, err
		}
	} else if e.ledger != nil {
		if err := e.ledger.Transfer(e.rewardToken, e.vault, account, balance); err != nil {
			return nil, err
		}
	}
	e.emit(newCollectedEvent(account, balance, reinvest))
	return balance, nil
}

// RewardSupply reports the undistributed shared supply.
func (e *Engine) RewardSupply() (*big.Int, error) {
	if e == nil || e.state == nil {
		return nil, errStateNotConfigured
	}
	return e.state.RewardSupply()
}

// RewardBalance reports the account's collectible grant balance.
func (e *Engine) RewardBalance(account crypto.Address) (*big.Int, error) {
	if e == nil || e.state == nil {
		return nil, errStateNotConfigured
	}
	return e.state.RewardBalance(account)
}
