package state

import (
	"errors"
	"fmt"
	"math/big"

	"poolchain/core/types"
	"poolchain/crypto"
)

// ErrInsufficientBalance is returned when a transfer exceeds the sender's
// balance.
var ErrInsufficientBalance = errors.New("state: insufficient balance")

func (m *Manager) account(addr crypto.Address) (*types.Account, error) {
	acct := types.NewAccount()
	if _, err := m.getJSON("balance/"+addrKey(addr), acct); err != nil {
		return nil, err
	}
	return acct, nil
}

func (m *Manager) putAccount(addr crypto.Address, acct *types.Account) error {
	return m.putJSON("balance/"+addrKey(addr), acct)
}

// Transfer moves amount of token from one account to another. Transfers are
// all-or-nothing: a short balance leaves both accounts untouched.
func (m *Manager) Transfer(token string, from, to crypto.Address, amount *big.Int) error {
	if amount == nil || amount.Sign() < 0 {
		return fmt.Errorf("state: invalid transfer amount")
	}
	if amount.Sign() == 0 {
		return nil
	}
	sender, err := m.account(from)
	if err != nil {
		return err
	}
	balance := sender.Balance(token)
	if balance.Cmp(amount) < 0 {
		return ErrInsufficientBalance
	}
	sender.SetBalance(token, balance.Sub(balance, amount))
	if err := m.putAccount(from, sender); err != nil {
		return err
	}
	receiver, err := m.account(to)
	if err != nil {
		return err
	}
	receiver.SetBalance(token, new(big.Int).Add(receiver.Balance(token), amount))
	return m.putAccount(to, receiver)
}

// Mint credits freshly issued tokens to an account. Used for genesis funding
// and tests.
func (m *Manager) Mint(addr crypto.Address, token string, amount *big.Int) error {
	if amount == nil || amount.Sign() <= 0 {
		return fmt.Errorf("state: invalid mint amount")
	}
	acct, err := m.account(addr)
	if err != nil {
		return err
	}
	acct.SetBalance(token, new(big.Int).Add(acct.Balance(token), amount))
	return m.putAccount(addr, acct)
}

// Balance reports the account's balance for the token.
func (m *Manager) Balance(addr crypto.Address, token string) (*big.Int, error) {
	acct, err := m.account(addr)
	if err != nil {
		return nil, err
	}
	return acct.Balance(token), nil
}
