package state

import (
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"strconv"

	"poolchain/crypto"
	"poolchain/native/governance"
	"poolchain/native/pool"
	"poolchain/native/revenue"
	"poolchain/storage"
)

// Manager persists every ledger record as a JSON value under a prefixed key.
// One Manager instance backs all engines so the global snapshot sequence and
// the token balance book are shared.
type Manager struct {
	db storage.Database
}

// NewManager wraps a key-value backend.
func NewManager(db storage.Database) *Manager {
	return &Manager{db: db}
}

func (m *Manager) getJSON(key string, out interface{}) (bool, error) {
	raw, err := m.db.Get([]byte(key))
	if errors.Is(err, storage.ErrKeyNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return false, fmt.Errorf("state: decode %s: %w", key, err)
	}
	return true, nil
}

func (m *Manager) putJSON(key string, in interface{}) error {
	raw, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("state: encode %s: %w", key, err)
	}
	return m.db.Put([]byte(key), raw)
}

func (m *Manager) getBig(key string) (*big.Int, error) {
	raw, err := m.db.Get([]byte(key))
	if errors.Is(err, storage.ErrKeyNotFound) {
		return big.NewInt(0), nil
	}
	if err != nil {
		return nil, err
	}
	v, ok := new(big.Int).SetString(string(raw), 10)
	if !ok {
		return nil, fmt.Errorf("state: corrupt integer at %s", key)
	}
	return v, nil
}

func (m *Manager) putBig(key string, v *big.Int) error {
	if v == nil {
		v = big.NewInt(0)
	}
	return m.db.Put([]byte(key), []byte(v.String()))
}

func (m *Manager) getUint(key string) (uint64, error) {
	raw, err := m.db.Get([]byte(key))
	if errors.Is(err, storage.ErrKeyNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return strconv.ParseUint(string(raw), 10, 64)
}

func (m *Manager) putUint(key string, v uint64) error {
	return m.db.Put([]byte(key), []byte(strconv.FormatUint(v, 10)))
}

func addrKey(addr crypto.Address) string {
	return hex.EncodeToString(addr.Bytes())
}

// --- global snapshot sequence ---

// NextSnapshotSeq allocates the next value of the single monotonic counter
// ordering account vote snapshots and token revenue snapshots.
func (m *Manager) NextSnapshotSeq() (uint64, error) {
	seq, err := m.getUint("seq/snapshot")
	if err != nil {
		return 0, err
	}
	if err := m.putUint("seq/snapshot", seq+1); err != nil {
		return 0, err
	}
	return seq, nil
}

// --- pool ledger state ---

func (m *Manager) PoolTotals(poolID string) (*pool.Totals, error) {
	totals := &pool.Totals{}
	ok, err := m.getJSON("pool/"+poolID+"/totals", totals)
	if err != nil {
		return nil, err
	}
	if !ok {
		return &pool.Totals{}, nil
	}
	return totals, nil
}

func (m *Manager) PutPoolTotals(poolID string, totals *pool.Totals) error {
	return m.putJSON("pool/"+poolID+"/totals", totals)
}

func (m *Manager) PoolLoan(poolID string, idx uint64) (*pool.Loan, bool, error) {
	loan := &pool.Loan{}
	ok, err := m.getJSON(fmt.Sprintf("pool/%s/loan/%d", poolID, idx), loan)
	if err != nil || !ok {
		return nil, false, err
	}
	return loan, true, nil
}

func (m *Manager) PutPoolLoan(poolID string, loan *pool.Loan) error {
	return m.putJSON(fmt.Sprintf("pool/%s/loan/%d", poolID, loan.Idx), loan)
}

func (m *Manager) PoolPosition(poolID string, addr crypto.Address) (*pool.Position, bool, error) {
	pos := &pool.Position{}
	ok, err := m.getJSON("pool/"+poolID+"/lp/"+addrKey(addr), pos)
	if err != nil || !ok {
		return nil, false, err
	}
	return pos, true, nil
}

func (m *Manager) PutPoolPosition(poolID string, addr crypto.Address, pos *pool.Position) error {
	return m.putJSON("pool/"+poolID+"/lp/"+addrKey(addr), pos)
}

func (m *Manager) PoolApproval(owner, delegate crypto.Address) (pool.Capability, error) {
	mask, err := m.getUint("pool/approval/" + addrKey(owner) + "/" + addrKey(delegate))
	return pool.Capability(mask), err
}

func (m *Manager) SetPoolApproval(owner, delegate crypto.Address, mask pool.Capability) error {
	return m.putUint("pool/approval/"+addrKey(owner)+"/"+addrKey(delegate), uint64(mask))
}

func (m *Manager) PoolPaused(poolID string) (bool, error) {
	v, err := m.getUint("pool/" + poolID + "/paused")
	return v == 1, err
}

func (m *Manager) SetPoolPaused(poolID string, paused bool) error {
	v := uint64(0)
	if paused {
		v = 1
	}
	return m.putUint("pool/"+poolID+"/paused", v)
}

// SetPaused is the governance execution hook for pause and unpause proposals.
// It forwards to the pool's persisted pause flag.
func (m *Manager) SetPaused(poolID string, paused bool) error {
	return m.SetPoolPaused(poolID, paused)
}

// IsPaused implements the pause guard view over the pool's paused flag.
func (m *Manager) IsPaused(poolID string) bool {
	paused, err := m.PoolPaused(poolID)
	return err == nil && paused
}

// --- governance ledger state ---

func (m *Manager) VoteAccount(addr crypto.Address) (*governance.VoteAccount, bool, error) {
	acct := &governance.VoteAccount{}
	ok, err := m.getJSON("gov/account/"+addrKey(addr), acct)
	if err != nil || !ok {
		return nil, false, err
	}
	return acct, true, nil
}

func (m *Manager) PutVoteAccount(addr crypto.Address, acct *governance.VoteAccount) error {
	return m.putJSON("gov/account/"+addrKey(addr), acct)
}

func (m *Manager) VoteTotalSupply() (*big.Int, error) {
	return m.getBig("gov/supply")
}

func (m *Manager) SetVoteTotalSupply(supply *big.Int) error {
	return m.putBig("gov/supply", supply)
}

func (m *Manager) NextProposalIdx() (uint64, error) {
	idx, err := m.getUint("gov/proposals/next")
	if err != nil {
		return 0, err
	}
	if err := m.putUint("gov/proposals/next", idx+1); err != nil {
		return 0, err
	}
	return idx, nil
}

func (m *Manager) Proposal(idx uint64) (*governance.Proposal, bool, error) {
	p := &governance.Proposal{}
	ok, err := m.getJSON(fmt.Sprintf("gov/proposal/%d", idx), p)
	if err != nil || !ok {
		return nil, false, err
	}
	return p, true, nil
}

func (m *Manager) PutProposal(p *governance.Proposal) error {
	return m.putJSON(fmt.Sprintf("gov/proposal/%d", p.Idx), p)
}

func (m *Manager) ProposalVote(idx uint64, voter crypto.Address) (*big.Int, bool, error) {
	key := fmt.Sprintf("gov/vote/%d/%s", idx, addrKey(voter))
	raw, err := m.db.Get([]byte(key))
	if errors.Is(err, storage.ErrKeyNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	v, ok := new(big.Int).SetString(string(raw), 10)
	if !ok {
		return nil, false, fmt.Errorf("state: corrupt integer at %s", key)
	}
	return v, true, nil
}

func (m *Manager) PutProposalVote(idx uint64, voter crypto.Address, amount *big.Int) error {
	return m.putBig(fmt.Sprintf("gov/vote/%d/%s", idx, addrKey(voter)), amount)
}

func (m *Manager) DeleteProposalVote(idx uint64, voter crypto.Address) error {
	return m.db.Delete([]byte(fmt.Sprintf("gov/vote/%d/%s", idx, addrKey(voter))))
}

func (m *Manager) VetoHolder() (crypto.Address, error) {
	var holder crypto.Address
	ok, err := m.getJSON("gov/veto", &holder)
	if err != nil {
		return crypto.Address{}, err
	}
	if !ok {
		return crypto.ZeroAddress(), nil
	}
	return holder, nil
}

func (m *Manager) SetVetoHolder(holder crypto.Address) error {
	return m.putJSON("gov/veto", holder)
}

func (m *Manager) PoolWhitelisted(poolID string) (bool, error) {
	v, err := m.getUint("gov/whitelist/" + poolID)
	return v == 1, err
}

func (m *Manager) SetPoolWhitelisted(poolID string, whitelisted bool) error {
	v := uint64(0)
	if whitelisted {
		v = 1
	}
	return m.putUint("gov/whitelist/"+poolID, v)
}

// --- revenue ledger state ---

func (m *Manager) CurrentRevenue(token string) (*big.Int, error) {
	return m.getBig("rev/" + token + "/current")
}

func (m *Manager) SetCurrentRevenue(token string, amount *big.Int) error {
	return m.putBig("rev/"+token+"/current", amount)
}

func (m *Manager) NumTokenSnapshots(token string) (uint64, error) {
	return m.getUint("rev/" + token + "/snapshots")
}

func (m *Manager) TokenSnapshot(token string, idx uint64) (*revenue.TokenRevenueSnapshot, bool, error) {
	snap := &revenue.TokenRevenueSnapshot{}
	ok, err := m.getJSON(fmt.Sprintf("rev/%s/snapshot/%d", token, idx), snap)
	if err != nil || !ok {
		return nil, false, err
	}
	return snap, true, nil
}

func (m *Manager) PutTokenSnapshot(token string, idx uint64, snap *revenue.TokenRevenueSnapshot) error {
	return m.putJSON(fmt.Sprintf("rev/%s/snapshot/%d", token, idx), snap)
}

func (m *Manager) AppendTokenSnapshot(token string, snap *revenue.TokenRevenueSnapshot) error {
	n, err := m.NumTokenSnapshots(token)
	if err != nil {
		return err
	}
	if err := m.PutTokenSnapshot(token, n, snap); err != nil {
		return err
	}
	return m.putUint("rev/"+token+"/snapshots", n+1)
}

func (m *Manager) HasClaimedSnapshot(token string, idx uint64, account crypto.Address) (bool, error) {
	v, err := m.getUint(fmt.Sprintf("rev/%s/claimed/%d/%s", token, idx, addrKey(account)))
	return v == 1, err
}

func (m *Manager) SetClaimedSnapshot(token string, idx uint64, account crypto.Address) error {
	return m.putUint(fmt.Sprintf("rev/%s/claimed/%d/%s", token, idx, addrKey(account)), 1)
}

// --- reward supply state ---

func (m *Manager) RewardSupply() (*big.Int, error) {
	return m.getBig("rewards/supply")
}

func (m *Manager) SetRewardSupply(supply *big.Int) error {
	return m.putBig("rewards/supply", supply)
}

func (m *Manager) RewardBalance(account crypto.Address) (*big.Int, error) {
	return m.getBig("rewards/balance/" + addrKey(account))
}

func (m *Manager) SetRewardBalance(account crypto.Address, amount *big.Int) error {
	return m.putBig("rewards/balance/"+addrKey(account), amount)
}
