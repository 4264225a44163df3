package common

import "errors"

var ErrLedgerPaused = errors.New("ledger paused")

type PauseView interface {
	IsPaused(ledger string) bool
}

func Guard(p PauseView, ledger string) error {
	if p == nil || ledger == "" {
		return nil
	}
	if p.IsPaused(ledger) {
		return ErrLedgerPaused
	}
	return nil
}
