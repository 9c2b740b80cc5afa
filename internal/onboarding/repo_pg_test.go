package onboarding

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
)

func TestPGRepoGetSessionMissing(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	repo := &PGRepo{DB: db}

	mock.ExpectQuery("SELECT id, status, ip_hash, user_agent, created_at, expires_at, claimed_by").
		WithArgs("sess-missing").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	_, err = repo.GetSession(context.Background(), "sess-missing")
	if !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("ExpectationsWereMet: %v", err)
	}
}

func TestPGRepoClaimSessionLosesToOtherAccount(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	repo := &PGRepo{DB: db}
	now := time.Now().UTC()

	mock.ExpectExec("UPDATE onboarding_sessions").
		WithArgs(StatusClaimed, "acct-2", "sess-1").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery("SELECT id, status, ip_hash, user_agent, created_at, expires_at, claimed_by").
		WithArgs("sess-1").
		WillReturnRows(sqlmock.NewRows(
			[]string{"id", "status", "ip_hash", "user_agent", "created_at", "expires_at", "claimed_by"}).
			AddRow("sess-1", StatusClaimed, "hash", "ua", now, now.Add(time.Hour), "acct-1"))

	err = repo.ClaimSession(context.Background(), "sess-1", "acct-2")
	if !errors.Is(err, ErrSessionInactive) {
		t.Fatalf("expected ErrSessionInactive, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("ExpectationsWereMet: %v", err)
	}
}

func TestPGRepoLatestDraftOrdersByCreatedAt(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	repo := &PGRepo{DB: db}
	now := time.Now().UTC()

	cols := []string{
		"id", "session_id", "jd_text", "jd_source_url", "jd_title", "jd_company",
		"resume_bucket", "resume_object_path", "resume_original_filename",
		"resume_mime_type", "resume_size_bytes", "resume_extracted_text", "created_at",
	}
	mock.ExpectQuery("ORDER BY created_at DESC, id DESC").
		WithArgs("sess-1").
		WillReturnRows(sqlmock.NewRows(cols).
			AddRow("draft-2", "sess-1", "newer jd", nil, nil, nil, nil, nil, nil, nil, nil, nil, now))

	draft, err := repo.LatestDraft(context.Background(), "sess-1")
	if err != nil {
		t.Fatalf("LatestDraft: %v", err)
	}
	if draft.ID != "draft-2" || draft.JDText != "newer jd" {
		t.Fatalf("unexpected draft %+v", draft)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("ExpectationsWereMet: %v", err)
	}
}
