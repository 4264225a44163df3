package pool_test

import (
	"errors"
	"math/big"
	"testing"
	"time"

	"poolchain/crypto"
	"poolchain/native/pool"
	"poolchain/native/rewards"
	"poolchain/state"
	"poolchain/storage"
)

// Tests in this file run the engine over the persisted state manager so
// partially applied operations cannot hide behind in-memory aliasing.

type managerClock struct {
	now uint64
}

func (c *managerClock) Now() time.Time { return time.Unix(int64(c.now), 0).UTC() }

func (c *managerClock) Advance(seconds uint64) { c.now += seconds }

type openWhitelist struct{}

func (openWhitelist) Whitelisted(string) (bool, error) { return true, nil }

type revenueRecorder struct {
	accrued map[string]*big.Int
}

func (r *revenueRecorder) AccrueRevenue(token string, amount *big.Int) error {
	if r.accrued == nil {
		r.accrued = make(map[string]*big.Int)
	}
	if r.accrued[token] == nil {
		r.accrued[token] = big.NewInt(0)
	}
	r.accrued[token].Add(r.accrued[token], amount)
	return nil
}

func managerAddr(b byte) crypto.Address {
	buf := make([]byte, 20)
	for i := range buf {
		buf[i] = b
	}
	return crypto.NewAddress(crypto.AccountPrefix, buf)
}

func managerPoolParams() *pool.Params {
	one := new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil)
	pct := func(num, den int64) *big.Int {
		v := new(big.Int).Mul(one, big.NewInt(num))
		return v.Div(v, big.NewInt(den))
	}
	return &pool.Params{
		PoolID:         "usd-eth",
		LoanToken:      "USD",
		CollToken:      "ETH",
		Decimals:       0,
		LoanTenor:      86400,
		MaxLoanPerColl: big.NewInt(1),
		R1:             pct(20, 100),
		R2:             pct(2, 100),
		LiquidityBnd1:  big.NewInt(5000),
		LiquidityBnd2:  big.NewInt(10000),
		MinLoan:        big.NewInt(1),
		CreatorFeeRate: big.NewInt(0),
		MinLiquidity:   big.NewInt(5000),
		LpLockSeconds:  120,
	}
}

func newManagerEngine(t *testing.T, params *pool.Params) (*pool.Engine, *state.Manager, *managerClock) {
	t.Helper()
	manager := state.NewManager(storage.NewMemDB())
	clock := &managerClock{now: 1_000_000}
	eng := pool.NewEngine(params)
	eng.SetState(manager)
	eng.SetLedger(manager)
	eng.SetNowFunc(clock.Now)
	return eng, manager, clock
}

func mustBalance(t *testing.T, m *state.Manager, addr crypto.Address, token string) *big.Int {
	t.Helper()
	balance, err := m.Balance(addr, token)
	if err != nil {
		t.Fatalf("balance %s: %v", token, err)
	}
	return balance
}

func TestAddLiquidityFailedPullGrantsNoReward(t *testing.T) {
	params := managerPoolParams()
	params.RewardCoeff = new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil)
	eng, manager, clock := newManagerEngine(t, params)

	rw := rewards.NewEngine()
	rw.SetState(manager)
	rw.SetWhitelist(openWhitelist{})
	rw.SetLedger(manager)
	eng.SetRewards(rw)
	if err := manager.SetRewardSupply(big.NewInt(10_000_000)); err != nil {
		t.Fatalf("seed reward supply: %v", err)
	}

	lp := managerAddr(0x01)
	if err := manager.Mint(lp, "USD", big.NewInt(6000)); err != nil {
		t.Fatalf("mint: %v", err)
	}
	if _, err := eng.AddLiquidity(lp, lp, big.NewInt(6000), 1<<40, 0); err != nil {
		t.Fatalf("deposit: %v", err)
	}

	// A second deposit the LP cannot fund aborts without persisting a reward
	// grant for the elapsed interval.
	clock.Advance(100)
	if _, err := eng.AddLiquidity(lp, lp, big.NewInt(1000), 1<<40, 0); !errors.Is(err, state.ErrInsufficientBalance) {
		t.Fatalf("unfunded deposit: got %v, want ErrInsufficientBalance", err)
	}
	granted, err := manager.RewardBalance(lp)
	if err != nil {
		t.Fatalf("reward balance: %v", err)
	}
	if granted.Sign() != 0 {
		t.Fatalf("aborted deposit granted %s reward", granted)
	}

	// The 100-second interval accrues exactly once: 6000 * 100 = 600000.
	if err := eng.ForceRewardUpdate(lp, lp); err != nil {
		t.Fatalf("force update: %v", err)
	}
	granted, err = manager.RewardBalance(lp)
	if err != nil {
		t.Fatalf("reward balance: %v", err)
	}
	if granted.Cmp(big.NewInt(600000)) != 0 {
		t.Fatalf("reward balance = %s, want 600000", granted)
	}
}

func TestBorrowFailedPullLeavesNoEscrow(t *testing.T) {
	params := managerPoolParams()
	params.CreatorFeeRate = new(big.Int).Exp(big.NewInt(10), big.NewInt(16), nil)
	eng, manager, clock := newManagerEngine(t, params)
	revenueVault := crypto.ModuleAddress("revenue")
	eng.SetRevenue(&revenueRecorder{}, revenueVault)

	lp := managerAddr(0x01)
	borrower := managerAddr(0x03)
	if err := manager.Mint(lp, "USD", big.NewInt(8000)); err != nil {
		t.Fatalf("mint: %v", err)
	}
	if _, err := eng.AddLiquidity(lp, lp, big.NewInt(8000), 1<<40, 0); err != nil {
		t.Fatalf("deposit: %v", err)
	}
	clock.Advance(5)

	// The borrower holds the pledge but not the 1% fee; the borrow must fail
	// without escrowing anything or recording a loan.
	if err := manager.Mint(borrower, "ETH", big.NewInt(495)); err != nil {
		t.Fatalf("mint collateral: %v", err)
	}
	if _, err := eng.Borrow(borrower, borrower, big.NewInt(500), nil, nil, 1<<40, 0); !errors.Is(err, state.ErrInsufficientBalance) {
		t.Fatalf("unfunded borrow: got %v, want ErrInsufficientBalance", err)
	}
	if got := mustBalance(t, manager, borrower, "ETH"); got.Cmp(big.NewInt(495)) != 0 {
		t.Fatalf("borrower collateral = %s, want 495 untouched", got)
	}
	if got := mustBalance(t, manager, eng.Vault(), "ETH"); got.Sign() != 0 {
		t.Fatalf("vault escrowed %s from a failed borrow", got)
	}
	if _, ok, err := manager.PoolLoan(params.PoolID, 1); err != nil || ok {
		t.Fatalf("loan after failed borrow: ok=%v err=%v", ok, err)
	}

	// Funding the fee makes the whole sequence pass: 500 in, 5 to the
	// revenue vault, 495 held as pledge.
	if err := manager.Mint(borrower, "ETH", big.NewInt(5)); err != nil {
		t.Fatalf("mint fee: %v", err)
	}
	loan, err := eng.Borrow(borrower, borrower, big.NewInt(500), nil, nil, 1<<40, 0)
	if err != nil {
		t.Fatalf("borrow: %v", err)
	}
	if got := mustBalance(t, manager, eng.Vault(), "ETH"); got.Cmp(big.NewInt(495)) != 0 {
		t.Fatalf("vault pledge = %s, want 495", got)
	}
	if got := mustBalance(t, manager, revenueVault, "ETH"); got.Cmp(big.NewInt(5)) != 0 {
		t.Fatalf("revenue vault fee = %s, want 5", got)
	}
	if got := mustBalance(t, manager, borrower, "USD"); got.Cmp(loan.LoanAmount) != 0 {
		t.Fatalf("loan payout = %s, want %s", got, loan.LoanAmount)
	}
}
