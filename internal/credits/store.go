package credits

import "context"

// Store defines persistence operations for the credit ledger.
//
// Adjust is the only mutation: it appends a ledger entry and moves the
// balance in one atomic step. Concurrent adjustments on the same account
// must serialize; a check-then-write race must never let two debits both
// succeed when only one credit remains.
type Store interface {
	// Adjust applies delta to the account balance and appends a ledger entry.
	// A debit past zero fails with ErrInsufficientCredits and writes nothing.
	// A purchase entry whose source was already recorded is a no-op returning
	// the current balance, so payment webhooks can be retried safely.
	Adjust(ctx context.Context, accountID string, delta int, reason, source string) (int, error)
	// Balance returns the current balance, 0 for accounts with no ledger rows.
	Balance(ctx context.Context, accountID string) (int, error)
	// Entries returns ledger entries for the account, newest first.
	Entries(ctx context.Context, accountID string, limit, offset int) ([]Entry, error)
}
