package credits

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
)

// PGStore implements Store using Postgres. The balance lives in
// credit_balances and is moved inside the same transaction that appends
// the credit_ledger entry.
type PGStore struct {
	DB *sql.DB
}

// NewPGStore constructs a Postgres-backed ledger store.
func NewPGStore(db *sql.DB) *PGStore {
	return &PGStore{DB: db}
}

// Adjust applies delta to the account balance within one transaction.
func (s *PGStore) Adjust(ctx context.Context, accountID string, delta int, reason, source string) (int, error) {
	if accountID == "" {
		return 0, ErrInvalidInput
	}
	if !ValidReason(reason) {
		return 0, ErrInvalidReason
	}

	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	balance, err := lockBalance(ctx, tx, accountID)
	if err != nil {
		return 0, err
	}

	if oncePerSource(reason) {
		var existing int
		err := tx.QueryRowContext(ctx, `
SELECT 1 FROM credit_ledger WHERE reason = $1 AND source = $2 LIMIT 1`, reason, source).Scan(&existing)
		if err == nil {
			// Retry of an already-credited event.
			if err := tx.Commit(); err != nil {
				return 0, err
			}
			return balance, nil
		}
		if !errors.Is(err, sql.ErrNoRows) {
			return 0, err
		}
	}

	if delta < 0 && balance+delta < 0 {
		return balance, ErrInsufficientCredits
	}

	newBalance := balance + delta
	if _, err := tx.ExecContext(ctx, `
INSERT INTO credit_ledger (id, account_id, delta, reason, source, created_at)
VALUES ($1, $2, $3, $4, $5, $6)`,
		uuid.NewString(), accountID, delta, reason, source, time.Now().UTC()); err != nil {
		return 0, err
	}
	if _, err := tx.ExecContext(ctx, `
UPDATE credit_balances SET balance = $1, updated_at = now() WHERE account_id = $2`,
		newBalance, accountID); err != nil {
		return 0, err
	}
	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return newBalance, nil
}

// Balance returns the current balance without locking; missing rows read as 0.
func (s *PGStore) Balance(ctx context.Context, accountID string) (int, error) {
	var balance int
	err := s.DB.QueryRowContext(ctx, `
SELECT balance FROM credit_balances WHERE account_id = $1`, accountID).Scan(&balance)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, nil
		}
		return 0, err
	}
	return balance, nil
}

// Entries returns ledger entries for the account, newest first.
func (s *PGStore) Entries(ctx context.Context, accountID string, limit, offset int) ([]Entry, error) {
	if limit <= 0 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	rows, err := s.DB.QueryContext(ctx, `
SELECT id, account_id, delta, reason, source, created_at
FROM credit_ledger
WHERE account_id = $1
ORDER BY created_at DESC
LIMIT $2 OFFSET $3`, accountID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	entries := []Entry{}
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.ID, &e.AccountID, &e.Delta, &e.Reason, &e.Source, &e.CreatedAt); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// lockBalance upserts the balance row and takes a row lock so concurrent
// adjustments on the same account serialize.
func lockBalance(ctx context.Context, tx *sql.Tx, accountID string) (int, error) {
	if _, err := tx.ExecContext(ctx, `
INSERT INTO credit_balances (account_id, balance, updated_at)
VALUES ($1, 0, now())
ON CONFLICT (account_id) DO NOTHING`, accountID); err != nil {
		return 0, err
	}
	var balance int
	err := tx.QueryRowContext(ctx, `
SELECT balance FROM credit_balances WHERE account_id = $1 FOR UPDATE`, accountID).Scan(&balance)
	if err != nil {
		return 0, err
	}
	return balance, nil
}

var _ Store = (*PGStore)(nil)
