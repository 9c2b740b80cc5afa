package credits

import "errors"

var (
	// ErrInsufficientCredits is returned when a debit would take the balance
	// negative. The balance is rejected, never clamped.
	ErrInsufficientCredits = errors.New("insufficient credits")
	ErrInvalidReason       = errors.New("invalid ledger reason")
	ErrInvalidInput        = errors.New("invalid input")
)
