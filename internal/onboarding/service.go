package onboarding

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"

	"tailor-backend/internal/shared/storage/object"
	"tailor-backend/internal/shared/telemetry"
	"tailor-backend/internal/shared/util"
)

// MaxJDTextLen bounds the job description accepted into a draft.
const MaxJDTextLen = 50000

// TextExtractor pulls plain text out of a stored resume object.
type TextExtractor interface {
	Extract(ctx context.Context, storageKey, mimeType, fileName string) (string, error)
}

// DraftInput carries the client-supplied draft fields.
type DraftInput struct {
	JDText                 string
	JDSourceURL            string
	JDTitle                string
	JDCompany              string
	ResumeBucket           string
	ResumeObjectPath       string
	ResumeOriginalFilename string
	ResumeMimeType         string
	ResumeSizeBytes        int64
}

// ResumeRef describes a stored resume object.
type ResumeRef struct {
	Bucket           string `json:"bucket"`
	ObjectPath       string `json:"objectPath"`
	OriginalFilename string `json:"originalFilename"`
	MimeType         string `json:"mimeType"`
	SizeBytes        int64  `json:"sizeBytes"`
}

// SessionStatus is the read-model returned by Status.
type SessionStatus struct {
	Status      string `json:"status"`
	IsEditable  bool   `json:"isEditable"`
	LatestDraft *Draft `json:"latestDraft,omitempty"`
}

// Service contains business logic for onboarding sessions and drafts.
type Service struct {
	Repo      Repo
	Store     object.ObjectStore
	Extractor TextExtractor
	Bucket    string
	TTL       time.Duration

	now func() time.Time
}

// NewService constructs a Service.
func NewService(repo Repo, store object.ObjectStore, extractor TextExtractor, bucket string, ttl time.Duration) *Service {
	if ttl <= 0 {
		ttl = 7 * 24 * time.Hour
	}
	if bucket == "" {
		bucket = "local"
	}
	return &Service{
		Repo:      repo,
		Store:     store,
		Extractor: extractor,
		Bucket:    bucket,
		TTL:       ttl,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Start returns an existing active session unchanged, or creates a new one.
// The boolean reports whether a session was created.
func (s *Service) Start(ctx context.Context, presentedID, ipHash, userAgent string) (Session, bool, error) {
	now := s.now()

	if presentedID != "" {
		session, err := s.Repo.GetSession(ctx, presentedID)
		if err == nil && session.EffectiveStatus(now) == StatusActive {
			return session, false, nil
		}
		if err != nil && !errors.Is(err, ErrSessionNotFound) {
			return Session{}, false, err
		}
	}

	session := Session{
		ID:        uuid.NewString(),
		Status:    StatusActive,
		IPHash:    ipHash,
		UserAgent: truncate(userAgent, 512),
		CreatedAt: now,
		ExpiresAt: now.Add(s.TTL),
	}
	if err := s.Repo.CreateSession(ctx, session); err != nil {
		return Session{}, false, err
	}
	return session, true, nil
}

// SaveDraft appends a new draft row after the session lifecycle checks.
// Prior drafts are kept for recovery; the latest by creation time wins.
func (s *Service) SaveDraft(ctx context.Context, sessionID string, input DraftInput) (Draft, error) {
	if err := validateDraft(input); err != nil {
		return Draft{}, err
	}
	if err := s.checkMutable(ctx, sessionID); err != nil {
		return Draft{}, err
	}

	draft := Draft{
		ID:                     uuid.NewString(),
		SessionID:              sessionID,
		JDText:                 input.JDText,
		JDSourceURL:            strings.TrimSpace(input.JDSourceURL),
		JDTitle:                strings.TrimSpace(input.JDTitle),
		JDCompany:              strings.TrimSpace(input.JDCompany),
		ResumeBucket:           input.ResumeBucket,
		ResumeObjectPath:       input.ResumeObjectPath,
		ResumeOriginalFilename: input.ResumeOriginalFilename,
		ResumeMimeType:         input.ResumeMimeType,
		ResumeSizeBytes:        input.ResumeSizeBytes,
		CreatedAt:              s.now(),
	}

	if draft.ResumeObjectPath != "" && s.Extractor != nil {
		text, err := s.Extractor.Extract(ctx, draft.ResumeObjectPath, draft.ResumeMimeType, draft.ResumeOriginalFilename)
		if err != nil {
			// Extraction is best-effort at draft time; the pipeline retries it.
			telemetry.Info("onboarding.extract_failed", map[string]any{
				"session_id": sessionID,
				"error":      err.Error(),
			})
		} else {
			draft.ResumeExtractedText = text
		}
	}

	if err := s.Repo.InsertDraft(ctx, draft); err != nil {
		return Draft{}, err
	}
	return draft, nil
}

// SaveResume stores an uploaded resume object for the session and returns
// its reference for a follow-up draft save.
func (s *Service) SaveResume(ctx context.Context, sessionID, fileName string, r io.Reader) (ResumeRef, error) {
	if err := s.checkMutable(ctx, sessionID); err != nil {
		return ResumeRef{}, err
	}

	storageKey, size, mimeType, err := s.Store.Save(ctx, sessionID, fileName, r)
	if err != nil {
		return ResumeRef{}, fmt.Errorf("save resume: %w", err)
	}

	return ResumeRef{
		Bucket:           s.Bucket,
		ObjectPath:       storageKey,
		OriginalFilename: fileName,
		MimeType:         mimeType,
		SizeBytes:        size,
	}, nil
}

// DeleteResume removes the stored object and any draft rows referencing it.
// A second call for an already-removed object succeeds as a no-op.
func (s *Service) DeleteResume(ctx context.Context, sessionID, bucket, objectPath string) error {
	if bucket == "" || objectPath == "" {
		return ErrValidation
	}
	if err := s.checkMutable(ctx, sessionID); err != nil {
		return err
	}

	// The cookie only proves possession of the session, so deletion is
	// confined to the session's own storage namespace. Paths outside it,
	// generation artifacts included, are not reachable from here.
	if !strings.HasPrefix(objectPath, util.HashUserKey(sessionID)+"/") {
		return fmt.Errorf("%w: object does not belong to this session", ErrValidation)
	}

	if err := s.Store.Delete(ctx, objectPath); err != nil {
		return fmt.Errorf("delete resume object: %w", err)
	}
	removed, err := s.Repo.DeleteDraftsByObject(ctx, sessionID, bucket, objectPath)
	if err != nil {
		return err
	}
	telemetry.Info("onboarding.resume_deleted", map[string]any{
		"session_id":     sessionID,
		"object_path":    objectPath,
		"drafts_removed": removed,
	})
	return nil
}

// Status computes the session state from stored fields. It never mutates.
func (s *Service) Status(ctx context.Context, sessionID string) (SessionStatus, error) {
	session, err := s.Repo.GetSession(ctx, sessionID)
	if err != nil {
		return SessionStatus{}, err
	}

	status := session.EffectiveStatus(s.now())
	out := SessionStatus{
		Status:     status,
		IsEditable: status == StatusActive,
	}
	draft, err := s.Repo.LatestDraft(ctx, sessionID)
	if err == nil {
		out.LatestDraft = &draft
	} else if !errors.Is(err, ErrDraftNotFound) {
		return SessionStatus{}, err
	}
	return out, nil
}

// Claim adopts the session into an authenticated account. Expired sessions
// cannot be claimed.
func (s *Service) Claim(ctx context.Context, sessionID, accountID string) error {
	session, err := s.Repo.GetSession(ctx, sessionID)
	if err != nil {
		return err
	}
	if session.Expired(s.now()) {
		return ErrSessionExpired
	}
	return s.Repo.ClaimSession(ctx, sessionID, accountID)
}

func (s *Service) checkMutable(ctx context.Context, sessionID string) error {
	session, err := s.Repo.GetSession(ctx, sessionID)
	if err != nil {
		return err
	}
	// Evaluated fresh on every mutating call; a session can expire between
	// two calls from the same client.
	switch session.EffectiveStatus(s.now()) {
	case StatusExpired:
		return ErrSessionExpired
	case StatusClaimed:
		return ErrSessionInactive
	}
	return nil
}

func validateDraft(input DraftInput) error {
	jd := strings.TrimSpace(input.JDText)
	if jd == "" {
		return fmt.Errorf("%w: jdText is required", ErrValidation)
	}
	if len(input.JDText) > MaxJDTextLen {
		return fmt.Errorf("%w: jdText exceeds %d characters", ErrValidation, MaxJDTextLen)
	}
	return nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
