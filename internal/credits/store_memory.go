package credits

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryStore keeps the ledger in memory and is safe for concurrent use.
type MemoryStore struct {
	mu       sync.Mutex
	entries  map[string][]Entry
	balances map[string]int
	credited map[string]struct{}
}

// NewMemoryStore constructs a MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		entries:  make(map[string][]Entry),
		balances: make(map[string]int),
		credited: make(map[string]struct{}),
	}
}

// Adjust applies delta atomically under the store mutex.
func (s *MemoryStore) Adjust(ctx context.Context, accountID string, delta int, reason, source string) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if accountID == "" {
		return 0, ErrInvalidInput
	}
	if !ValidReason(reason) {
		return 0, ErrInvalidReason
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if oncePerSource(reason) {
		if _, seen := s.credited[reason+"|"+source]; seen {
			return s.balances[accountID], nil
		}
	}

	balance := s.balances[accountID]
	if delta < 0 && balance+delta < 0 {
		return balance, ErrInsufficientCredits
	}

	entry := Entry{
		ID:        uuid.NewString(),
		AccountID: accountID,
		Delta:     delta,
		Reason:    reason,
		Source:    source,
		CreatedAt: time.Now().UTC(),
	}
	s.entries[accountID] = append(s.entries[accountID], entry)
	s.balances[accountID] = balance + delta
	if oncePerSource(reason) {
		s.credited[reason+"|"+source] = struct{}{}
	}
	return s.balances[accountID], nil
}

// Balance returns the current balance, 0 when the account has no rows.
func (s *MemoryStore) Balance(ctx context.Context, accountID string) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.balances[accountID], nil
}

// Entries returns ledger entries for the account, newest first.
func (s *MemoryStore) Entries(ctx context.Context, accountID string, limit, offset int) ([]Entry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if offset < 0 {
		offset = 0
	}
	if limit < 0 {
		limit = 0
	}

	s.mu.Lock()
	all := make([]Entry, len(s.entries[accountID]))
	copy(all, s.entries[accountID])
	s.mu.Unlock()

	sort.Slice(all, func(i, j int) bool {
		return all[i].CreatedAt.After(all[j].CreatedAt)
	})

	if offset >= len(all) {
		return []Entry{}, nil
	}
	end := len(all)
	if limit > 0 && offset+limit < end {
		end = offset + limit
	}
	return all[offset:end], nil
}

var _ Store = (*MemoryStore)(nil)
