package pool

import "errors"

var (
	errStateNotConfigured  = errors.New("pool: state not configured")
	errParamsNotConfigured = errors.New("pool: params not configured")

	ErrNotApproved           = errors.New("pool: sender not approved")
	ErrPaused                = errors.New("pool: paused")
	ErrNotController         = errors.New("pool: not the controller")
	ErrPastDeadline          = errors.New("pool: past deadline")
	ErrInvalidAmount         = errors.New("pool: amount must be positive")
	ErrInvalidCollateral     = errors.New("pool: collateral must be positive")
	ErrTooEarlyToRemove      = errors.New("pool: too early to remove")
	ErrInvalidRemoval        = errors.New("pool: invalid removal operation")
	ErrInvalidOperation      = errors.New("pool: liquidity changed in the same instant")
	ErrInsufficientLiquidity = errors.New("pool: insufficient liquidity")
	ErrLoanTooSmall          = errors.New("pool: loan below pool minimum")
	ErrLoanBelowLimit        = errors.New("pool: loan below requested limit")
	ErrRepayAboveLimit       = errors.New("pool: repayment above requested limit")
	ErrInvalidLoanIdx        = errors.New("pool: invalid loan index")
	ErrRepaySameInstant      = errors.New("pool: cannot repay in the same instant")
	ErrRepayAfterExpiry      = errors.New("pool: cannot repay after expiry")
	ErrAlreadyRepaid         = errors.New("pool: already repaid")
	ErrUnsettledLoan         = errors.New("pool: cannot claim with unsettled loan")
	ErrSharesMismatch        = errors.New("pool: loan indexes span different origination shares")
	ErrUnentitled            = errors.New("pool: unentitled loan indexes")
)
