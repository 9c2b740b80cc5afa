package jobs

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
)

func TestPGRepoClaimQueuedWinsRace(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	repo := &PGRepo{DB: db}
	startedAt := time.Now().UTC()

	mock.ExpectExec("UPDATE jobs").
		WithArgs(StatusRunning, startedAt, "job-1", StatusQueued).
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := repo.ClaimQueued(context.Background(), "job-1", startedAt); err != nil {
		t.Fatalf("ClaimQueued: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("ExpectationsWereMet: %v", err)
	}
}

func TestPGRepoClaimQueuedLosesRace(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	repo := &PGRepo{DB: db}
	startedAt := time.Now().UTC()

	mock.ExpectExec("UPDATE jobs").
		WithArgs(StatusRunning, startedAt, "job-1", StatusQueued).
		WillReturnResult(sqlmock.NewResult(0, 0))
	rows := sqlmock.NewRows([]string{
		"id", "account_id", "status", "progress", "mode", "jd_text", "resume_ref",
		"artifact_key", "error_message", "created_at", "started_at", "completed_at", "updated_at",
	}).AddRow("job-1", "acct-1", StatusCanceled, 0, ModeQuick, "jd", "", nil, nil, startedAt, nil, startedAt, startedAt)
	mock.ExpectQuery("SELECT (.+) FROM jobs").
		WithArgs("job-1").
		WillReturnRows(rows)

	if err := repo.ClaimQueued(context.Background(), "job-1", startedAt); !errors.Is(err, ErrNotClaimable) {
		t.Fatalf("expected ErrNotClaimable, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("ExpectationsWereMet: %v", err)
	}
}

func TestPGRepoMarkSucceededRequiresRunning(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	repo := &PGRepo{DB: db}
	completedAt := time.Now().UTC()

	mock.ExpectExec("UPDATE jobs").
		WithArgs(StatusSucceeded, "artifacts/job-1.json", completedAt, "job-1", StatusRunning).
		WillReturnResult(sqlmock.NewResult(0, 0))
	rows := sqlmock.NewRows([]string{
		"id", "account_id", "status", "progress", "mode", "jd_text", "resume_ref",
		"artifact_key", "error_message", "created_at", "started_at", "completed_at", "updated_at",
	}).AddRow("job-1", "acct-1", StatusCanceled, 10, ModeQuick, "jd", "", nil, nil, completedAt, completedAt, completedAt, completedAt)
	mock.ExpectQuery("SELECT (.+) FROM jobs").
		WithArgs("job-1").
		WillReturnRows(rows)

	err = repo.MarkSucceeded(context.Background(), "job-1", "artifacts/job-1.json", completedAt)
	if !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("ExpectationsWereMet: %v", err)
	}
}

func TestPGRepoGetForAccountMissing(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	repo := &PGRepo{DB: db}

	mock.ExpectQuery("SELECT (.+) FROM jobs").
		WithArgs("job-1", "acct-2").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	if _, err := repo.GetForAccount(context.Background(), "job-1", "acct-2"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("ExpectationsWereMet: %v", err)
	}
}

func TestPGRepoFailStalledReturnsIDs(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	repo := &PGRepo{DB: db}
	cutoff := time.Now().UTC().Add(-15 * time.Minute)

	mock.ExpectQuery("UPDATE jobs").
		WithArgs(StatusFailed, "timed out after 15m0s", StatusRunning, cutoff).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("job-1").AddRow("job-2"))

	ids, err := repo.FailStalled(context.Background(), cutoff, "timed out after 15m0s")
	if err != nil {
		t.Fatalf("FailStalled: %v", err)
	}
	if len(ids) != 2 {
		t.Fatalf("expected 2 stalled ids, got %v", ids)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("ExpectationsWereMet: %v", err)
	}
}
