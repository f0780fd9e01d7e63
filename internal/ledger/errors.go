package ledger

import "errors"

var (
	ErrValidation             = errors.New("validation error")
	ErrInsufficientBalance    = errors.New("insufficient balance")
	ErrNotFound               = errors.New("not found")
	ErrInvalidStateTransition = errors.New("invalid state transition")
	ErrForbidden              = errors.New("forbidden")
	ErrImmutableTransaction   = errors.New("completed transaction is immutable")
	ErrWalletExists           = errors.New("wallet already exists")
)
