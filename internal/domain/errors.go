package domain

import "errors"

var (
	ErrNotFound          = errors.New("not found")
	ErrInvalidAmount     = errors.New("amount must be greater than zero")
	ErrAccountClosed     = errors.New("account closed")
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrSameAccount       = errors.New("cannot transfer to same account")
	ErrVersionConflict   = errors.New("optimistic lock conflict")
	ErrContention        = errors.New("retry budget exhausted under contention")
	ErrAlreadyReversed   = errors.New("transaction already reversed")
	ErrNonZeroBalance    = errors.New("account balance must be zero to close")
)
