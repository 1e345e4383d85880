package disbursement

import "errors"

// Service errors
var (
	ErrNotCompleted   = errors.New("transaction is not completed")
	ErrNotFound       = errors.New("disbursement not found")
	ErrNoDestination  = errors.New("organization has no payout destination")
	ErrNotRequeueable = errors.New("disbursement is not permanently failed")
)
