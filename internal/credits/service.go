package credits

import (
	"context"

	"tailor-backend/internal/shared/telemetry"
)

// Service manages the credit ledger via an underlying store. It is the only
// component allowed to derive a balance; nothing else caches a writable copy.
type Service struct {
	store Store
}

// NewService constructs a Service with an in-memory store.
func NewService() *Service {
	return &Service{store: NewMemoryStore()}
}

// NewPostgresService constructs a Service backed by Postgres.
func NewPostgresService(store Store) *Service {
	return &Service{store: store}
}

// Adjust applies a signed delta to the account balance and returns the new
// balance. Debits past zero fail with ErrInsufficientCredits.
func (s *Service) Adjust(ctx context.Context, accountID string, delta int, reason, source string) (int, error) {
	return s.store.Adjust(ctx, accountID, delta, reason, source)
}

// Balance returns the current balance; accounts without ledger rows read as 0.
func (s *Service) Balance(ctx context.Context, accountID string) (int, error) {
	return s.store.Balance(ctx, accountID)
}

// Entries returns ledger entries for the account, newest first.
func (s *Service) Entries(ctx context.Context, accountID string, limit, offset int) ([]Entry, error) {
	return s.store.Entries(ctx, accountID, limit, offset)
}

// GrantSignup issues the one-time trial grant for a freshly created account.
// The grant source is the account ID and grants dedupe on source in the
// ledger, so a repeated login cannot double-grant.
func (s *Service) GrantSignup(ctx context.Context, accountID string, amount int) (int, error) {
	if amount <= 0 {
		return s.store.Balance(ctx, accountID)
	}
	balance, err := s.store.Adjust(ctx, accountID, amount, ReasonGrant, "signup:"+accountID)
	if err != nil {
		return 0, err
	}
	telemetry.Info("credits.signup_grant", map[string]any{
		"account_id": accountID,
		"amount":     amount,
		"balance":    balance,
	})
	return balance, nil
}
