package gems

import "errors"

var (
	ErrInvalidConfig = errors.New("invalid gem ledger config")
	ErrInvalidAmount = errors.New("invalid gem amount")
)
