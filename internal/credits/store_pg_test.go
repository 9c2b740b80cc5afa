package credits

import (
	"context"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
)

func TestPGStoreAdjustDebit(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	store := NewPGStore(db)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO credit_balances").
		WithArgs("acct-1").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery("SELECT balance FROM credit_balances WHERE account_id = (.+) FOR UPDATE").
		WithArgs("acct-1").
		WillReturnRows(sqlmock.NewRows([]string{"balance"}).AddRow(3))
	mock.ExpectExec("INSERT INTO credit_ledger").
		WithArgs(sqlmock.AnyArg(), "acct-1", -1, ReasonGeneration, "system", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("UPDATE credit_balances SET balance").
		WithArgs(2, "acct-1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	balance, err := store.Adjust(context.Background(), "acct-1", -1, ReasonGeneration, "system")
	if err != nil {
		t.Fatalf("Adjust: %v", err)
	}
	if balance != 2 {
		t.Fatalf("expected balance 2, got %d", balance)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("ExpectationsWereMet: %v", err)
	}
}

func TestPGStoreAdjustOverdraftRollsBack(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	store := NewPGStore(db)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO credit_balances").
		WithArgs("acct-1").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery("SELECT balance FROM credit_balances WHERE account_id = (.+) FOR UPDATE").
		WithArgs("acct-1").
		WillReturnRows(sqlmock.NewRows([]string{"balance"}).AddRow(0))
	mock.ExpectRollback()

	_, err = store.Adjust(context.Background(), "acct-1", -1, ReasonGeneration, "system")
	if !errors.Is(err, ErrInsufficientCredits) {
		t.Fatalf("expected ErrInsufficientCredits, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("ExpectationsWereMet: %v", err)
	}
}

func TestPGStoreBalanceMissingRowReadsZero(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	store := NewPGStore(db)

	mock.ExpectQuery("SELECT balance FROM credit_balances").
		WithArgs("acct-unknown").
		WillReturnRows(sqlmock.NewRows([]string{"balance"}))

	balance, err := store.Balance(context.Background(), "acct-unknown")
	if err != nil {
		t.Fatalf("Balance: %v", err)
	}
	if balance != 0 {
		t.Fatalf("expected 0 for missing account, got %d", balance)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("ExpectationsWereMet: %v", err)
	}
}
