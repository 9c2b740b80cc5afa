package onboarding

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	localstore "tailor-backend/internal/shared/storage/object/local"
)

func newTestService(t *testing.T) *Service {
	t.Helper()
	store := localstore.New(t.TempDir())
	return NewService(NewMemoryRepo(), store, nil, "local", 7*24*time.Hour)
}

func TestStartIsIdempotentForActiveSession(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	first, created, err := svc.Start(ctx, "", "iphash", "ua")
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	if !created {
		t.Fatalf("expected a new session")
	}

	second, created, err := svc.Start(ctx, first.ID, "iphash", "ua")
	if err != nil {
		t.Fatalf("Start resume: %v", err)
	}
	if created {
		t.Fatalf("expected existing session to be reused")
	}
	if second.ID != first.ID {
		t.Fatalf("expected same session id, got %s and %s", first.ID, second.ID)
	}
}

func TestStartReplacesExpiredSession(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	session, _, err := svc.Start(ctx, "", "iphash", "ua")
	if err != nil {
		t.Fatalf("Start: %v", err)
	}

	svc.now = func() time.Time { return session.ExpiresAt.Add(time.Minute) }

	replacement, created, err := svc.Start(ctx, session.ID, "iphash", "ua")
	if err != nil {
		t.Fatalf("Start after expiry: %v", err)
	}
	if !created || replacement.ID == session.ID {
		t.Fatalf("expected a fresh session after expiry")
	}
}

func TestSaveDraftRejectsExpiredSession(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	session, _, err := svc.Start(ctx, "", "iphash", "ua")
	if err != nil {
		t.Fatalf("Start: %v", err)
	}

	svc.now = func() time.Time { return session.ExpiresAt.Add(time.Second) }

	_, err = svc.SaveDraft(ctx, session.ID, DraftInput{JDText: "some role"})
	if !errors.Is(err, ErrSessionExpired) {
		t.Fatalf("expected ErrSessionExpired, got %v", err)
	}
}

func TestSaveDraftRejectsClaimedSession(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	session, _, err := svc.Start(ctx, "", "iphash", "ua")
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := svc.Claim(ctx, session.ID, "acct-1"); err != nil {
		t.Fatalf("Claim: %v", err)
	}

	_, err = svc.SaveDraft(ctx, session.ID, DraftInput{JDText: "some role"})
	if !errors.Is(err, ErrSessionInactive) {
		t.Fatalf("expected ErrSessionInactive, got %v", err)
	}
}

func TestSaveDraftValidation(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	session, _, err := svc.Start(ctx, "", "iphash", "ua")
	if err != nil {
		t.Fatalf("Start: %v", err)
	}

	if _, err := svc.SaveDraft(ctx, session.ID, DraftInput{JDText: "  "}); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected ErrValidation for empty jdText, got %v", err)
	}
	long := strings.Repeat("a", MaxJDTextLen+1)
	if _, err := svc.SaveDraft(ctx, session.ID, DraftInput{JDText: long}); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected ErrValidation for oversized jdText, got %v", err)
	}
	if _, err := svc.SaveDraft(ctx, "unknown", DraftInput{JDText: "ok"}); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound, got %v", err)
	}
}

func TestStatusReturnsLatestDraft(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	session, _, err := svc.Start(ctx, "", "iphash", "ua")
	if err != nil {
		t.Fatalf("Start: %v", err)
	}

	if _, err := svc.SaveDraft(ctx, session.ID, DraftInput{JDText: "first jd"}); err != nil {
		t.Fatalf("SaveDraft first: %v", err)
	}
	// Later insert must win even within the same wall-clock instant.
	svc.now = func() time.Time { return time.Now().UTC().Add(time.Millisecond) }
	if _, err := svc.SaveDraft(ctx, session.ID, DraftInput{JDText: "second jd"}); err != nil {
		t.Fatalf("SaveDraft second: %v", err)
	}

	status, err := svc.Status(ctx, session.ID)
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if status.Status != StatusActive || !status.IsEditable {
		t.Fatalf("expected editable active session, got %+v", status)
	}
	if status.LatestDraft == nil || status.LatestDraft.JDText != "second jd" {
		t.Fatalf("expected latest draft to win, got %+v", status.LatestDraft)
	}
}

func TestStatusComputesExpiry(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	session, _, err := svc.Start(ctx, "", "iphash", "ua")
	if err != nil {
		t.Fatalf("Start: %v", err)
	}

	svc.now = func() time.Time { return session.ExpiresAt.Add(time.Hour) }

	status, err := svc.Status(ctx, session.ID)
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if status.Status != StatusExpired || status.IsEditable {
		t.Fatalf("expected expired read-only session, got %+v", status)
	}
}

func TestDeleteResumeIsIdempotent(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	session, _, err := svc.Start(ctx, "", "iphash", "ua")
	if err != nil {
		t.Fatalf("Start: %v", err)
	}

	ref, err := svc.SaveResume(ctx, session.ID, "resume.txt", strings.NewReader("plain resume text"))
	if err != nil {
		t.Fatalf("SaveResume: %v", err)
	}
	if _, err := svc.SaveDraft(ctx, session.ID, DraftInput{
		JDText:           "jd",
		ResumeBucket:     ref.Bucket,
		ResumeObjectPath: ref.ObjectPath,
	}); err != nil {
		t.Fatalf("SaveDraft: %v", err)
	}

	if err := svc.DeleteResume(ctx, session.ID, ref.Bucket, ref.ObjectPath); err != nil {
		t.Fatalf("DeleteResume: %v", err)
	}
	// Second delete of the same object is a successful no-op.
	if err := svc.DeleteResume(ctx, session.ID, ref.Bucket, ref.ObjectPath); err != nil {
		t.Fatalf("DeleteResume again: %v", err)
	}

	status, err := svc.Status(ctx, session.ID)
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if status.LatestDraft != nil {
		t.Fatalf("expected draft rows referencing the object to be gone, got %+v", status.LatestDraft)
	}
}

func TestDeleteResumeRefusesForeignObject(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	session, _, err := svc.Start(ctx, "", "iphash", "ua")
	if err != nil {
		t.Fatalf("Start: %v", err)
	}

	// An object another flow wrote to the shared store, outside the
	// session's namespace.
	saver, ok := svc.Store.(interface {
		SaveWithKey(ctx context.Context, storageKey string, contentType string, r io.Reader) (int64, error)
	})
	if !ok {
		t.Fatalf("store does not support SaveWithKey")
	}
	const foreignKey = "artifacts/someone-elses-job.json"
	if _, err := saver.SaveWithKey(ctx, foreignKey, "application/json", strings.NewReader("{}")); err != nil {
		t.Fatalf("SaveWithKey: %v", err)
	}

	err = svc.DeleteResume(ctx, session.ID, "local", foreignKey)
	if !errors.Is(err, ErrValidation) {
		t.Fatalf("expected ErrValidation for foreign path, got %v", err)
	}

	body, err := svc.Store.Open(ctx, foreignKey)
	if err != nil {
		t.Fatalf("foreign object was removed: %v", err)
	}
	_ = body.Close()
}

func TestClaimExpiredSessionFails(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	session, _, err := svc.Start(ctx, "", "iphash", "ua")
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	svc.now = func() time.Time { return session.ExpiresAt.Add(time.Second) }

	if err := svc.Claim(ctx, session.ID, "acct-1"); !errors.Is(err, ErrSessionExpired) {
		t.Fatalf("expected ErrSessionExpired, got %v", err)
	}
}
