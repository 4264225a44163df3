package pool

import (
	"errors"
	"math/big"
	"testing"
	"time"

	"poolchain/crypto"
)

type memPoolState struct {
	totals    map[string]*Totals
	loans     map[string]map[uint64]*Loan
	positions map[string]map[string]*Position
	approvals map[string]Capability
	paused    map[string]bool
}

func newMemPoolState() *memPoolState {
	return &memPoolState{
		totals:    make(map[string]*Totals),
		loans:     make(map[string]map[uint64]*Loan),
		positions: make(map[string]map[string]*Position),
		approvals: make(map[string]Capability),
		paused:    make(map[string]bool),
	}
}

func (m *memPoolState) PoolTotals(poolID string) (*Totals, error) {
	return m.totals[poolID], nil
}

func (m *memPoolState) PutPoolTotals(poolID string, totals *Totals) error {
	m.totals[poolID] = totals
	return nil
}

func (m *memPoolState) PoolLoan(poolID string, idx uint64) (*Loan, bool, error) {
	loan, ok := m.loans[poolID][idx]
	return loan, ok, nil
}

func (m *memPoolState) PutPoolLoan(poolID string, loan *Loan) error {
	if m.loans[poolID] == nil {
		m.loans[poolID] = make(map[uint64]*Loan)
	}
	m.loans[poolID][loan.Idx] = loan
	return nil
}

func (m *memPoolState) PoolPosition(poolID string, addr crypto.Address) (*Position, bool, error) {
	pos, ok := m.positions[poolID][string(addr.Bytes())]
	return pos, ok, nil
}

func (m *memPoolState) PutPoolPosition(poolID string, addr crypto.Address, pos *Position) error {
	if m.positions[poolID] == nil {
		m.positions[poolID] = make(map[string]*Position)
	}
	m.positions[poolID][string(addr.Bytes())] = pos
	return nil
}

func (m *memPoolState) PoolApproval(owner, delegate crypto.Address) (Capability, error) {
	return m.approvals[string(owner.Bytes())+"/"+string(delegate.Bytes())], nil
}

func (m *memPoolState) SetPoolApproval(owner, delegate crypto.Address, mask Capability) error {
	m.approvals[string(owner.Bytes())+"/"+string(delegate.Bytes())] = mask
	return nil
}

func (m *memPoolState) PoolPaused(poolID string) (bool, error) {
	return m.paused[poolID], nil
}

func (m *memPoolState) SetPoolPaused(poolID string, paused bool) error {
	m.paused[poolID] = paused
	return nil
}

type transferRecord struct {
	token  string
	from   crypto.Address
	to     crypto.Address
	amount *big.Int
}

type memLedger struct {
	transfers []transferRecord
	failNext  error
}

func (l *memLedger) Transfer(token string, from, to crypto.Address, amount *big.Int) error {
	if l.failNext != nil {
		err := l.failNext
		l.failNext = nil
		return err
	}
	l.transfers = append(l.transfers, transferRecord{token: token, from: from, to: to, amount: new(big.Int).Set(amount)})
	return nil
}

func (l *memLedger) reset() { l.transfers = nil }

type rewardCall struct {
	account  crypto.Address
	liq      *big.Int
	duration uint64
	coeff    *big.Int
}

type memRewards struct {
	calls []rewardCall
}

func (r *memRewards) RequestTokenDistribution(poolID string, account crypto.Address, liquidity *big.Int, duration uint64, coeff *big.Int) (*big.Int, error) {
	r.calls = append(r.calls, rewardCall{account: account, liq: liquidity, duration: duration, coeff: coeff})
	return big.NewInt(0), nil
}

type memRevenue struct {
	accrued map[string]*big.Int
}

func (r *memRevenue) AccrueRevenue(token string, amount *big.Int) error {
	if r.accrued == nil {
		r.accrued = make(map[string]*big.Int)
	}
	if r.accrued[token] == nil {
		r.accrued[token] = big.NewInt(0)
	}
	r.accrued[token].Add(r.accrued[token], amount)
	return nil
}

type testClock struct {
	now uint64
}

func (c *testClock) Now() time.Time         { return time.Unix(int64(c.now), 0).UTC() }
func (c *testClock) Advance(seconds uint64) { c.now += seconds }

func testAddr(b byte) crypto.Address {
	buf := make([]byte, 20)
	for i := range buf {
		buf[i] = b
	}
	return crypto.NewAddress(crypto.AccountPrefix, buf)
}

func testPoolParams() *Params {
	return &Params{
		PoolID:         "usd-eth",
		LoanToken:      "USD",
		CollToken:      "ETH",
		Decimals:       0,
		LoanTenor:      86400,
		MaxLoanPerColl: big.NewInt(1),
		R1:             fixedPct(20, 100),
		R2:             fixedPct(2, 100),
		LiquidityBnd1:  big.NewInt(5000),
		LiquidityBnd2:  big.NewInt(10000),
		MinLoan:        big.NewInt(1),
		CreatorFeeRate: big.NewInt(0),
		MinLiquidity:   big.NewInt(5000),
		LpLockSeconds:  120,
	}
}

func newTestEngine(t *testing.T, params *Params) (*Engine, *memPoolState, *memLedger, *testClock) {
	t.Helper()
	state := newMemPoolState()
	ledger := &memLedger{}
	clock := &testClock{now: 1_000_000}
	eng := NewEngine(params)
	eng.SetState(state)
	eng.SetLedger(ledger)
	eng.SetNowFunc(clock.Now)
	return eng, state, ledger, clock
}

const farDeadline = uint64(1 << 40)

func TestAddLiquidityBootstrapAndProRataMint(t *testing.T) {
	eng, _, ledger, clock := newTestEngine(t, testPoolParams())
	lp1 := testAddr(0x01)
	lp2 := testAddr(0x02)

	minted, err := eng.AddLiquidity(lp1, lp1, big.NewInt(6000), farDeadline, 0)
	if err != nil {
		t.Fatalf("first deposit: %v", err)
	}
	// Bootstrap mint: 6000 * 1000 / minLiquidity(5000) = 1200.
	if minted.Cmp(big.NewInt(1200)) != 0 {
		t.Fatalf("bootstrap mint = %s, want 1200", minted)
	}

	clock.Advance(10)
	minted, err = eng.AddLiquidity(lp2, lp2, big.NewInt(2000), farDeadline, 0)
	if err != nil {
		t.Fatalf("second deposit: %v", err)
	}
	// Pro-rata mint: 2000 * 1200 / 6000 = 400.
	if minted.Cmp(big.NewInt(400)) != 0 {
		t.Fatalf("pro-rata mint = %s, want 400", minted)
	}

	info, err := eng.PoolInfo()
	if err != nil {
		t.Fatalf("pool info: %v", err)
	}
	if info.TotalLiquidity.Cmp(big.NewInt(8000)) != 0 || info.TotalShares.Cmp(big.NewInt(1600)) != 0 {
		t.Fatalf("totals = (%s, %s), want (8000, 1600)", info.TotalLiquidity, info.TotalShares)
	}
	if len(ledger.transfers) != 2 {
		t.Fatalf("transfer count = %d, want 2", len(ledger.transfers))
	}
	if got := ledger.transfers[0]; got.token != "USD" || !got.to.Equal(eng.Vault()) {
		t.Fatalf("deposit should move loan token into the pool vault, got %+v", got)
	}
}

func TestAddLiquidityValidation(t *testing.T) {
	eng, _, _, clock := newTestEngine(t, testPoolParams())
	lp := testAddr(0x01)

	if _, err := eng.AddLiquidity(lp, lp, big.NewInt(0), farDeadline, 0); !errors.Is(err, ErrInvalidAmount) {
		t.Fatalf("zero amount: got %v, want ErrInvalidAmount", err)
	}
	if _, err := eng.AddLiquidity(lp, lp, nil, farDeadline, 0); !errors.Is(err, ErrInvalidAmount) {
		t.Fatalf("nil amount: got %v, want ErrInvalidAmount", err)
	}
	if _, err := eng.AddLiquidity(lp, lp, big.NewInt(100), clock.now-1, 0); !errors.Is(err, ErrPastDeadline) {
		t.Fatalf("stale deadline: got %v, want ErrPastDeadline", err)
	}
	// A deposit too small to mint a single share is rejected outright.
	if _, err := eng.AddLiquidity(lp, lp, big.NewInt(3), farDeadline, 0); !errors.Is(err, ErrInvalidAmount) {
		t.Fatalf("dust deposit: got %v, want ErrInvalidAmount", err)
	}
}

func TestRemoveLiquidityLockAndFloor(t *testing.T) {
	eng, _, ledger, clock := newTestEngine(t, testPoolParams())
	lp := testAddr(0x01)

	if _, err := eng.AddLiquidity(lp, lp, big.NewInt(8000), farDeadline, 0); err != nil {
		t.Fatalf("deposit: %v", err)
	}
	if _, err := eng.RemoveLiquidity(lp, lp, big.NewInt(100)); !errors.Is(err, ErrTooEarlyToRemove) {
		t.Fatalf("locked removal: got %v, want ErrTooEarlyToRemove", err)
	}

	clock.Advance(120)
	pos, err := eng.LpInfo(lp)
	if err != nil {
		t.Fatalf("lp info: %v", err)
	}
	shares := pos.CurrentShares()
	if _, err := eng.RemoveLiquidity(lp, lp, new(big.Int).Add(shares, big.NewInt(1))); !errors.Is(err, ErrInvalidRemoval) {
		t.Fatalf("oversized removal: got %v, want ErrInvalidRemoval", err)
	}

	ledger.reset()
	withdrawal, err := eng.RemoveLiquidity(lp, lp, shares)
	if err != nil {
		t.Fatalf("removal: %v", err)
	}
	// Burning every share only releases liquidity above the 5000 floor.
	if withdrawal.Cmp(big.NewInt(3000)) != 0 {
		t.Fatalf("withdrawal = %s, want 3000", withdrawal)
	}
	info, err := eng.PoolInfo()
	if err != nil {
		t.Fatalf("pool info: %v", err)
	}
	if info.TotalLiquidity.Cmp(big.NewInt(5000)) != 0 || info.TotalShares.Sign() != 0 {
		t.Fatalf("totals after full exit = (%s, %s), want (5000, 0)", info.TotalLiquidity, info.TotalShares)
	}
}

func TestBorrowRepayAndClaimSplit(t *testing.T) {
	eng, _, ledger, clock := newTestEngine(t, testPoolParams())
	lp1 := testAddr(0x01)
	lp2 := testAddr(0x02)
	borrower := testAddr(0x03)

	if _, err := eng.AddLiquidity(lp1, lp1, big.NewInt(6000), farDeadline, 0); err != nil {
		t.Fatalf("lp1 deposit: %v", err)
	}
	clock.Advance(5)
	if _, err := eng.AddLiquidity(lp2, lp2, big.NewInt(2000), farDeadline, 0); err != nil {
		t.Fatalf("lp2 deposit: %v", err)
	}

	// Borrowing in the same instant as a liquidity change is rejected.
	if _, err := eng.Borrow(borrower, borrower, big.NewInt(500), nil, nil, farDeadline, 0); !errors.Is(err, ErrInvalidOperation) {
		t.Fatalf("same-instant borrow: got %v, want ErrInvalidOperation", err)
	}

	clock.Advance(5)
	loan, err := eng.Borrow(borrower, borrower, big.NewInt(500), nil, nil, farDeadline, 0)
	if err != nil {
		t.Fatalf("borrow: %v", err)
	}
	if loan.Idx != 1 {
		t.Fatalf("loan idx = %d, want 1", loan.Idx)
	}
	if loan.LoanAmount.Cmp(big.NewInt(428)) != 0 || loan.RepaymentAmount.Cmp(big.NewInt(582)) != 0 {
		t.Fatalf("terms = (%s, %s), want (428, 582)", loan.LoanAmount, loan.RepaymentAmount)
	}
	if loan.SharesAtOrigin.Cmp(big.NewInt(1600)) != 0 {
		t.Fatalf("shares at origin = %s, want 1600", loan.SharesAtOrigin)
	}

	// Repaying in the origination instant is rejected.
	if err := eng.Repay(borrower, borrower, loan.Idx); !errors.Is(err, ErrRepaySameInstant) {
		t.Fatalf("same-instant repay: got %v, want ErrRepaySameInstant", err)
	}
	// Only the borrower's account can be repaid on behalf of.
	clock.Advance(100)
	if err := eng.Repay(lp1, lp1, loan.Idx); !errors.Is(err, ErrNotApproved) {
		t.Fatalf("wrong onBehalfOf repay: got %v, want ErrNotApproved", err)
	}
	ledger.reset()
	if err := eng.Repay(borrower, borrower, loan.Idx); err != nil {
		t.Fatalf("repay: %v", err)
	}
	if err := eng.Repay(borrower, borrower, loan.Idx); !errors.Is(err, ErrAlreadyRepaid) {
		t.Fatalf("double repay: got %v, want ErrAlreadyRepaid", err)
	}
	// Repayment pulls the loan token in and returns the collateral escrow.
	if len(ledger.transfers) != 2 {
		t.Fatalf("repay transfers = %d, want 2", len(ledger.transfers))
	}
	if got := ledger.transfers[1]; got.token != "ETH" || !got.to.Equal(borrower) || got.amount.Cmp(big.NewInt(500)) != 0 {
		t.Fatalf("collateral return = %+v", got)
	}

	// Loan outcome splits by origination shares: 1200/1600 and 400/1600.
	ledger.reset()
	out, err := eng.Claim(lp1, lp1, []uint64{1}, false, farDeadline)
	if err != nil {
		t.Fatalf("lp1 claim: %v", err)
	}
	if out.Repayments.Cmp(big.NewInt(436)) != 0 {
		t.Fatalf("lp1 repayment slice = %s, want 436", out.Repayments)
	}
	out, err = eng.Claim(lp2, lp2, []uint64{1}, false, farDeadline)
	if err != nil {
		t.Fatalf("lp2 claim: %v", err)
	}
	if out.Repayments.Cmp(big.NewInt(145)) != 0 {
		t.Fatalf("lp2 repayment slice = %s, want 145", out.Repayments)
	}

	// Paying out without reinvesting leaves the pool totals untouched, so the
	// per-share price never drops from settling a loan.
	info, err := eng.PoolInfo()
	if err != nil {
		t.Fatalf("pool info: %v", err)
	}
	if info.TotalLiquidity.Cmp(big.NewInt(7572)) != 0 || info.TotalShares.Cmp(big.NewInt(1600)) != 0 {
		t.Fatalf("totals after claims = (%s, %s), want (7572, 1600)", info.TotalLiquidity, info.TotalShares)
	}

	// The claim cursor has advanced: the same loan cannot be claimed twice.
	if _, err := eng.Claim(lp1, lp1, []uint64{1}, false, farDeadline); !errors.Is(err, ErrUnentitled) {
		t.Fatalf("repeat claim: got %v, want ErrUnentitled", err)
	}
}

func TestBorrowLimits(t *testing.T) {
	eng, _, _, clock := newTestEngine(t, testPoolParams())
	lp := testAddr(0x01)
	borrower := testAddr(0x03)

	if _, err := eng.AddLiquidity(lp, lp, big.NewInt(8000), farDeadline, 0); err != nil {
		t.Fatalf("deposit: %v", err)
	}
	clock.Advance(5)

	// Curve yields loan=428 for 500 collateral at 8000 liquidity.
	if _, err := eng.Borrow(borrower, borrower, big.NewInt(500), big.NewInt(429), nil, farDeadline, 0); !errors.Is(err, ErrLoanBelowLimit) {
		t.Fatalf("min loan limit: got %v, want ErrLoanBelowLimit", err)
	}
	if _, err := eng.Borrow(borrower, borrower, big.NewInt(500), nil, big.NewInt(581), farDeadline, 0); !errors.Is(err, ErrRepayAboveLimit) {
		t.Fatalf("max repay limit: got %v, want ErrRepayAboveLimit", err)
	}
	if _, err := eng.Borrow(borrower, borrower, big.NewInt(500), nil, nil, clock.now-1, 0); !errors.Is(err, ErrPastDeadline) {
		t.Fatalf("stale deadline: got %v, want ErrPastDeadline", err)
	}
	if _, err := eng.Borrow(borrower, borrower, big.NewInt(500), big.NewInt(428), big.NewInt(582), farDeadline, 0); err != nil {
		t.Fatalf("borrow within limits: %v", err)
	}
}

func TestBorrowMinLoanThreshold(t *testing.T) {
	params := testPoolParams()
	params.MinLoan = big.NewInt(100)
	eng, _, _, clock := newTestEngine(t, params)
	lp := testAddr(0x01)
	borrower := testAddr(0x03)

	if _, err := eng.AddLiquidity(lp, lp, big.NewInt(20000), farDeadline, 0); err != nil {
		t.Fatalf("deposit: %v", err)
	}
	clock.Advance(5)
	// 100 collateral at 20000 liquidity prices a 99 loan, under the floor.
	if _, err := eng.Borrow(borrower, borrower, big.NewInt(100), nil, nil, farDeadline, 0); !errors.Is(err, ErrLoanTooSmall) {
		t.Fatalf("dust loan: got %v, want ErrLoanTooSmall", err)
	}
}

func TestClaimBatchValidation(t *testing.T) {
	eng, _, _, clock := newTestEngine(t, testPoolParams())
	lp := testAddr(0x01)
	joiner := testAddr(0x02)
	borrower := testAddr(0x03)

	if _, err := eng.AddLiquidity(lp, lp, big.NewInt(8000), farDeadline, 0); err != nil {
		t.Fatalf("deposit: %v", err)
	}
	clock.Advance(5)
	loan1, err := eng.Borrow(borrower, borrower, big.NewInt(200), nil, nil, farDeadline, 0)
	if err != nil {
		t.Fatalf("borrow 1: %v", err)
	}
	clock.Advance(5)
	loan2, err := eng.Borrow(borrower, borrower, big.NewInt(200), nil, nil, farDeadline, 0)
	if err != nil {
		t.Fatalf("borrow 2: %v", err)
	}
	clock.Advance(5)

	// A later joiner is only entitled to loans originated after its deposit.
	if _, err := eng.AddLiquidity(joiner, joiner, big.NewInt(1000), farDeadline, 0); err != nil {
		t.Fatalf("joiner deposit: %v", err)
	}
	if _, err := eng.Claim(joiner, joiner, []uint64{loan1.Idx}, false, farDeadline); !errors.Is(err, ErrUnentitled) {
		t.Fatalf("unentitled claim: got %v, want ErrUnentitled", err)
	}

	// Both loans are still live.
	if _, err := eng.Claim(lp, lp, []uint64{loan1.Idx}, false, farDeadline); !errors.Is(err, ErrUnsettledLoan) {
		t.Fatalf("unsettled claim: got %v, want ErrUnsettledLoan", err)
	}

	clock.Advance(10)
	if err := eng.Repay(borrower, borrower, loan1.Idx); err != nil {
		t.Fatalf("repay 1: %v", err)
	}
	if err := eng.Repay(borrower, borrower, loan2.Idx); err != nil {
		t.Fatalf("repay 2: %v", err)
	}

	if _, err := eng.Claim(lp, lp, []uint64{loan2.Idx, loan1.Idx}, false, farDeadline); !errors.Is(err, ErrInvalidLoanIdx) {
		t.Fatalf("descending batch: got %v, want ErrInvalidLoanIdx", err)
	}
	if _, err := eng.Claim(lp, lp, []uint64{99}, false, farDeadline); !errors.Is(err, ErrInvalidLoanIdx) {
		t.Fatalf("out-of-range idx: got %v, want ErrInvalidLoanIdx", err)
	}
	if _, err := eng.Claim(lp, lp, nil, false, farDeadline); !errors.Is(err, ErrInvalidLoanIdx) {
		t.Fatalf("empty batch: got %v, want ErrInvalidLoanIdx", err)
	}

	// Both loans share one origination snapshot, so they settle in one batch.
	if _, err := eng.Claim(lp, lp, []uint64{loan1.Idx, loan2.Idx}, false, farDeadline); err != nil {
		t.Fatalf("same-snapshot batch: %v", err)
	}
}

func TestClaimSharesMismatchAcrossSnapshots(t *testing.T) {
	eng, _, _, clock := newTestEngine(t, testPoolParams())
	lp := testAddr(0x01)
	joiner := testAddr(0x02)
	borrower := testAddr(0x03)

	if _, err := eng.AddLiquidity(lp, lp, big.NewInt(8000), farDeadline, 0); err != nil {
		t.Fatalf("deposit: %v", err)
	}
	clock.Advance(5)
	loan1, err := eng.Borrow(borrower, borrower, big.NewInt(200), nil, nil, farDeadline, 0)
	if err != nil {
		t.Fatalf("borrow 1: %v", err)
	}
	clock.Advance(5)
	if _, err := eng.AddLiquidity(joiner, joiner, big.NewInt(1000), farDeadline, 0); err != nil {
		t.Fatalf("joiner deposit: %v", err)
	}
	clock.Advance(5)
	loan2, err := eng.Borrow(borrower, borrower, big.NewInt(200), nil, nil, farDeadline, 0)
	if err != nil {
		t.Fatalf("borrow 2: %v", err)
	}
	clock.Advance(5)
	if err := eng.Repay(borrower, borrower, loan1.Idx); err != nil {
		t.Fatalf("repay 1: %v", err)
	}
	if err := eng.Repay(borrower, borrower, loan2.Idx); err != nil {
		t.Fatalf("repay 2: %v", err)
	}

	if _, err := eng.Claim(lp, lp, []uint64{loan1.Idx, loan2.Idx}, false, farDeadline); !errors.Is(err, ErrSharesMismatch) {
		t.Fatalf("mixed-snapshot batch: got %v, want ErrSharesMismatch", err)
	}
}

func TestClaimExpiredLoanPaysCollateral(t *testing.T) {
	eng, _, ledger, clock := newTestEngine(t, testPoolParams())
	lp := testAddr(0x01)
	borrower := testAddr(0x03)

	if _, err := eng.AddLiquidity(lp, lp, big.NewInt(8000), farDeadline, 0); err != nil {
		t.Fatalf("deposit: %v", err)
	}
	clock.Advance(5)
	loan, err := eng.Borrow(borrower, borrower, big.NewInt(500), nil, nil, farDeadline, 0)
	if err != nil {
		t.Fatalf("borrow: %v", err)
	}

	clock.Advance(86401)
	if err := eng.Repay(borrower, borrower, loan.Idx); !errors.Is(err, ErrRepayAfterExpiry) {
		t.Fatalf("late repay: got %v, want ErrRepayAfterExpiry", err)
	}

	ledger.reset()
	out, err := eng.Claim(lp, lp, []uint64{loan.Idx}, false, farDeadline)
	if err != nil {
		t.Fatalf("claim: %v", err)
	}
	if out.Repayments.Sign() != 0 {
		t.Fatalf("defaulted loan should pay no repayment, got %s", out.Repayments)
	}
	// Sole LP collects the full 500 collateral escrow.
	if out.Collateral.Cmp(big.NewInt(500)) != 0 {
		t.Fatalf("collateral slice = %s, want 500", out.Collateral)
	}
	if len(ledger.transfers) != 1 || ledger.transfers[0].token != "ETH" {
		t.Fatalf("expected a single collateral payout, got %+v", ledger.transfers)
	}
}

func TestClaimReinvestMintsOnceOnAggregate(t *testing.T) {
	eng, _, ledger, clock := newTestEngine(t, testPoolParams())
	lp1 := testAddr(0x01)
	lp2 := testAddr(0x02)
	borrower := testAddr(0x03)

	if _, err := eng.AddLiquidity(lp1, lp1, big.NewInt(6000), farDeadline, 0); err != nil {
		t.Fatalf("lp1 deposit: %v", err)
	}
	clock.Advance(5)
	if _, err := eng.AddLiquidity(lp2, lp2, big.NewInt(2000), farDeadline, 0); err != nil {
		t.Fatalf("lp2 deposit: %v", err)
	}
	clock.Advance(5)
	loan, err := eng.Borrow(borrower, borrower, big.NewInt(500), nil, nil, farDeadline, 0)
	if err != nil {
		t.Fatalf("borrow: %v", err)
	}
	clock.Advance(5)
	if err := eng.Repay(borrower, borrower, loan.Idx); err != nil {
		t.Fatalf("repay: %v", err)
	}

	ledger.reset()
	out, err := eng.Claim(lp1, lp1, []uint64{loan.Idx}, true, farDeadline)
	if err != nil {
		t.Fatalf("reinvest claim: %v", err)
	}
	// 436 reinvested at totals (7572, 1600): floor(436*1600/7572) = 92 shares.
	if out.ReinvestedShares.Cmp(big.NewInt(92)) != 0 {
		t.Fatalf("reinvested shares = %s, want 92", out.ReinvestedShares)
	}
	// Reinvesting keeps the repayment in the vault.
	if len(ledger.transfers) != 0 {
		t.Fatalf("reinvest should not move tokens, got %+v", ledger.transfers)
	}
	info, err := eng.PoolInfo()
	if err != nil {
		t.Fatalf("pool info: %v", err)
	}
	if info.TotalLiquidity.Cmp(big.NewInt(8008)) != 0 || info.TotalShares.Cmp(big.NewInt(1692)) != 0 {
		t.Fatalf("totals after reinvest = (%s, %s), want (8008, 1692)", info.TotalLiquidity, info.TotalShares)
	}
	// Reinvesting re-arms the removal lock.
	pos, err := eng.LpInfo(lp1)
	if err != nil {
		t.Fatalf("lp info: %v", err)
	}
	if pos.EarliestRemove != clock.now+120 {
		t.Fatalf("earliest remove = %d, want %d", pos.EarliestRemove, clock.now+120)
	}
}

func TestClaimReinvestBootstrapsAfterFullExit(t *testing.T) {
	eng, _, _, clock := newTestEngine(t, testPoolParams())
	lp := testAddr(0x01)
	borrower := testAddr(0x03)

	if _, err := eng.AddLiquidity(lp, lp, big.NewInt(8000), farDeadline, 0); err != nil {
		t.Fatalf("deposit: %v", err)
	}
	clock.Advance(5)
	loan, err := eng.Borrow(borrower, borrower, big.NewInt(500), nil, nil, farDeadline, 0)
	if err != nil {
		t.Fatalf("borrow: %v", err)
	}
	clock.Advance(5)
	if err := eng.Repay(borrower, borrower, loan.Idx); err != nil {
		t.Fatalf("repay: %v", err)
	}

	// The LP exits completely while the settled loan is still claimable.
	clock.Advance(200)
	if _, err := eng.RemoveLiquidity(lp, lp, big.NewInt(1600)); err != nil {
		t.Fatalf("full exit: %v", err)
	}
	info, err := eng.PoolInfo()
	if err != nil {
		t.Fatalf("pool info: %v", err)
	}
	if info.TotalShares.Sign() != 0 {
		t.Fatalf("shares after exit = %s, want 0", info.TotalShares)
	}

	// Reinvesting the 582 repayment into the emptied pool goes through the
	// bootstrap branch: 582 * 1000 / minLiquidity(5000) = 116 shares.
	clock.Advance(5)
	out, err := eng.Claim(lp, lp, []uint64{loan.Idx}, true, farDeadline)
	if err != nil {
		t.Fatalf("reinvest claim: %v", err)
	}
	if out.ReinvestedShares.Cmp(big.NewInt(116)) != 0 {
		t.Fatalf("reinvested shares = %s, want 116", out.ReinvestedShares)
	}
	info, err = eng.PoolInfo()
	if err != nil {
		t.Fatalf("pool info: %v", err)
	}
	if info.TotalLiquidity.Cmp(big.NewInt(5582)) != 0 || info.TotalShares.Cmp(big.NewInt(116)) != 0 {
		t.Fatalf("totals after reinvest = (%s, %s), want (5582, 116)", info.TotalLiquidity, info.TotalShares)
	}
	pos, err := eng.LpInfo(lp)
	if err != nil {
		t.Fatalf("lp info: %v", err)
	}
	if pos.CurrentShares().Cmp(big.NewInt(116)) != 0 {
		t.Fatalf("lp shares = %s, want 116", pos.CurrentShares())
	}
}

func TestApprovalsGateDelegatedOperations(t *testing.T) {
	eng, _, _, clock := newTestEngine(t, testPoolParams())
	owner := testAddr(0x01)
	delegate := testAddr(0x02)

	if _, err := eng.AddLiquidity(delegate, owner, big.NewInt(6000), farDeadline, 0); !errors.Is(err, ErrNotApproved) {
		t.Fatalf("unapproved delegate: got %v, want ErrNotApproved", err)
	}
	if err := eng.SetApprovals(owner, delegate, CapabilityAddLiquidity); err != nil {
		t.Fatalf("set approvals: %v", err)
	}
	if _, err := eng.AddLiquidity(delegate, owner, big.NewInt(6000), farDeadline, 0); err != nil {
		t.Fatalf("approved delegate: %v", err)
	}
	// The grant is per capability: removal is still denied.
	clock.Advance(200)
	if _, err := eng.RemoveLiquidity(delegate, owner, big.NewInt(100)); !errors.Is(err, ErrNotApproved) {
		t.Fatalf("removal without capability: got %v, want ErrNotApproved", err)
	}
	mask, err := eng.Approvals(owner, delegate)
	if err != nil {
		t.Fatalf("approvals query: %v", err)
	}
	if mask != CapabilityAddLiquidity {
		t.Fatalf("mask = %b, want %b", mask, CapabilityAddLiquidity)
	}
}

func TestPauseBlocksMutations(t *testing.T) {
	eng, _, _, _ := newTestEngine(t, testPoolParams())
	controller := testAddr(0x0a)
	lp := testAddr(0x01)
	eng.SetController(controller)

	if err := eng.Pause(lp); !errors.Is(err, ErrNotController) {
		t.Fatalf("pause by outsider: got %v, want ErrNotController", err)
	}
	if err := eng.Pause(controller); err != nil {
		t.Fatalf("pause: %v", err)
	}
	if _, err := eng.AddLiquidity(lp, lp, big.NewInt(6000), farDeadline, 0); !errors.Is(err, ErrPaused) {
		t.Fatalf("deposit while paused: got %v, want ErrPaused", err)
	}
	if err := eng.Unpause(controller); err != nil {
		t.Fatalf("unpause: %v", err)
	}
	if _, err := eng.AddLiquidity(lp, lp, big.NewInt(6000), farDeadline, 0); err != nil {
		t.Fatalf("deposit after unpause: %v", err)
	}
}

func TestRewardAccrualOnLiquidityChanges(t *testing.T) {
	params := testPoolParams()
	params.RewardCoeff = new(big.Int).Set(one)
	eng, _, _, clock := newTestEngine(t, params)
	rewards := &memRewards{}
	eng.SetRewards(rewards)
	lp := testAddr(0x01)

	if _, err := eng.AddLiquidity(lp, lp, big.NewInt(6000), farDeadline, 0); err != nil {
		t.Fatalf("deposit: %v", err)
	}
	if len(rewards.calls) != 0 {
		t.Fatalf("first deposit should not accrue, got %d calls", len(rewards.calls))
	}

	clock.Advance(300)
	if err := eng.ForceRewardUpdate(lp, lp); err != nil {
		t.Fatalf("force update: %v", err)
	}
	if len(rewards.calls) != 1 {
		t.Fatalf("reward calls = %d, want 1", len(rewards.calls))
	}
	call := rewards.calls[0]
	if call.duration != 300 || call.liq.Cmp(big.NewInt(6000)) != 0 {
		t.Fatalf("accrual = (%s, %d), want (6000, 300)", call.liq, call.duration)
	}

	// A second update in the same instant accrues nothing.
	if err := eng.ForceRewardUpdate(lp, lp); err != nil {
		t.Fatalf("repeat force update: %v", err)
	}
	if len(rewards.calls) != 1 {
		t.Fatalf("same-instant accrual should be skipped, got %d calls", len(rewards.calls))
	}
}

func TestBorrowRoutesCreatorFee(t *testing.T) {
	params := testPoolParams()
	params.CreatorFeeRate = fixedPct(1, 100)
	eng, _, ledger, clock := newTestEngine(t, params)
	revenue := &memRevenue{}
	revenueVault := crypto.ModuleAddress("revenue")
	eng.SetRevenue(revenue, revenueVault)
	lp := testAddr(0x01)
	borrower := testAddr(0x03)

	if _, err := eng.AddLiquidity(lp, lp, big.NewInt(8000), farDeadline, 0); err != nil {
		t.Fatalf("deposit: %v", err)
	}
	clock.Advance(5)
	ledger.reset()
	loan, err := eng.Borrow(borrower, borrower, big.NewInt(500), nil, nil, farDeadline, 0)
	if err != nil {
		t.Fatalf("borrow: %v", err)
	}
	// 1% of 500 collateral goes to the revenue vault; 495 is pledged.
	if loan.Collateral.Cmp(big.NewInt(495)) != 0 {
		t.Fatalf("pledge = %s, want 495", loan.Collateral)
	}
	if revenue.accrued["ETH"] == nil || revenue.accrued["ETH"].Cmp(big.NewInt(5)) != 0 {
		t.Fatalf("accrued fee = %s, want 5", revenue.accrued["ETH"])
	}
	// The borrower pays the full 500 in one pull; the fee then leaves the
	// pool vault for the revenue vault.
	pull := ledger.transfers[0]
	if !pull.from.Equal(borrower) || pull.token != "ETH" || pull.amount.Cmp(big.NewInt(500)) != 0 {
		t.Fatalf("collateral pull = %+v", pull)
	}
	var feeLeg *transferRecord
	for i := range ledger.transfers {
		if ledger.transfers[i].to.Equal(revenueVault) {
			feeLeg = &ledger.transfers[i]
		}
	}
	if feeLeg == nil || feeLeg.amount.Cmp(big.NewInt(5)) != 0 || feeLeg.token != "ETH" {
		t.Fatalf("fee transfer leg = %+v", feeLeg)
	}
	if !feeLeg.from.Equal(eng.Vault()) {
		t.Fatalf("fee leg origin = %v, want pool vault", feeLeg.from)
	}
}

func TestSharesAtResolvesHistoricalBalance(t *testing.T) {
	pos := &Position{
		Checkpoints: []Checkpoint{
			{Shares: big.NewInt(100), LoanIdx: 1},
			{Shares: big.NewInt(250), LoanIdx: 4},
			{Shares: big.NewInt(50), LoanIdx: 9},
		},
	}
	cases := []struct {
		idx  uint64
		want int64
	}{
		{1, 100}, {3, 100}, {4, 250}, {8, 250}, {9, 50}, {100, 50},
	}
	for _, tc := range cases {
		if got := pos.SharesAt(tc.idx); got.Cmp(big.NewInt(tc.want)) != 0 {
			t.Fatalf("SharesAt(%d) = %s, want %d", tc.idx, got, tc.want)
		}
	}
	if got := pos.SharesAt(0); got.Sign() != 0 {
		t.Fatalf("SharesAt before first checkpoint = %s, want 0", got)
	}
}
