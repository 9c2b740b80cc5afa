package credits

import (
	"context"
	"errors"
	"sync"
	"testing"
)

func TestAdjustBalanceMatchesEntrySum(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	ops := []struct {
		delta  int
		reason string
	}{
		{5, ReasonGrant},
		{-1, ReasonGeneration},
		{10, ReasonPurchase},
		{-1, ReasonGeneration},
		{1, ReasonRefund},
	}

	var last int
	for i, op := range ops {
		balance, err := store.Adjust(ctx, "acct-1", op.delta, op.reason, "test")
		if err != nil {
			t.Fatalf("Adjust #%d: %v", i, err)
		}
		last = balance
	}

	entries, err := store.Entries(ctx, "acct-1", 0, 0)
	if err != nil {
		t.Fatalf("Entries: %v", err)
	}
	sum := 0
	for _, e := range entries {
		sum += e.Delta
	}
	if sum != last {
		t.Fatalf("entry sum %d != balance %d", sum, last)
	}

	balance, err := store.Balance(ctx, "acct-1")
	if err != nil {
		t.Fatalf("Balance: %v", err)
	}
	if balance != last {
		t.Fatalf("Balance %d != last Adjust result %d", balance, last)
	}
}

func TestAdjustRejectsOverdraftWithoutEntry(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	if _, err := store.Adjust(ctx, "acct-1", 2, ReasonGrant, "test"); err != nil {
		t.Fatalf("grant: %v", err)
	}

	_, err := store.Adjust(ctx, "acct-1", -3, ReasonGeneration, "system")
	if !errors.Is(err, ErrInsufficientCredits) {
		t.Fatalf("expected ErrInsufficientCredits, got %v", err)
	}

	balance, err := store.Balance(ctx, "acct-1")
	if err != nil {
		t.Fatalf("Balance: %v", err)
	}
	if balance != 2 {
		t.Fatalf("balance changed on failed debit: %d", balance)
	}
	entries, err := store.Entries(ctx, "acct-1", 0, 0)
	if err != nil {
		t.Fatalf("Entries: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("failed debit wrote a ledger entry: %d entries", len(entries))
	}
}

func TestConcurrentDebitsSingleCredit(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	if _, err := store.Adjust(ctx, "acct-1", 1, ReasonGrant, "test"); err != nil {
		t.Fatalf("grant: %v", err)
	}

	const attempts = 16
	var wg sync.WaitGroup
	errs := make([]error, attempts)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = store.Adjust(ctx, "acct-1", -1, ReasonGeneration, "system")
		}(i)
	}
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		switch {
		case err == nil:
			succeeded++
		case errors.Is(err, ErrInsufficientCredits):
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if succeeded != 1 {
		t.Fatalf("expected exactly one successful debit, got %d", succeeded)
	}

	balance, err := store.Balance(ctx, "acct-1")
	if err != nil {
		t.Fatalf("Balance: %v", err)
	}
	if balance != 0 {
		t.Fatalf("expected balance 0, got %d", balance)
	}
}

func TestAdjustPurchaseIsIdempotentPerSource(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	first, err := store.Adjust(ctx, "acct-1", 10, ReasonPurchase, "evt-123")
	if err != nil {
		t.Fatalf("first purchase: %v", err)
	}
	second, err := store.Adjust(ctx, "acct-1", 10, ReasonPurchase, "evt-123")
	if err != nil {
		t.Fatalf("replayed purchase: %v", err)
	}
	if first != 10 || second != 10 {
		t.Fatalf("expected balance 10 after replay, got %d then %d", first, second)
	}
}

func TestAdjustGrantIsOneTimePerSource(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	if _, err := store.Adjust(ctx, "acct-1", 3, ReasonGrant, "signup:acct-1"); err != nil {
		t.Fatalf("first grant: %v", err)
	}
	balance, err := store.Adjust(ctx, "acct-1", 3, ReasonGrant, "signup:acct-1")
	if err != nil {
		t.Fatalf("replayed grant: %v", err)
	}
	if balance != 3 {
		t.Fatalf("expected balance 3 after replayed grant, got %d", balance)
	}
}

func TestAdjustRejectsUnknownReason(t *testing.T) {
	store := NewMemoryStore()
	if _, err := store.Adjust(context.Background(), "acct-1", 1, "bonus", "test"); !errors.Is(err, ErrInvalidReason) {
		t.Fatalf("expected ErrInvalidReason, got %v", err)
	}
}
