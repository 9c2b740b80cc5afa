package onboarding

import (
	"context"
	"database/sql"
	"errors"
)

// PGRepo implements Repo using Postgres.
type PGRepo struct {
	DB *sql.DB
}

// CreateSession inserts a new session row.
func (r *PGRepo) CreateSession(ctx context.Context, session Session) error {
	const query = `
INSERT INTO onboarding_sessions (id, status, ip_hash, user_agent, created_at, expires_at, claimed_by)
VALUES ($1, $2, $3, $4, $5, $6, $7)`
	_, err := r.DB.ExecContext(ctx, query,
		session.ID,
		session.Status,
		session.IPHash,
		session.UserAgent,
		session.CreatedAt,
		session.ExpiresAt,
		session.ClaimedBy,
	)
	return err
}

// GetSession returns a session by ID.
func (r *PGRepo) GetSession(ctx context.Context, sessionID string) (Session, error) {
	const query = `
SELECT id, status, ip_hash, user_agent, created_at, expires_at, claimed_by
FROM onboarding_sessions
WHERE id = $1
LIMIT 1`
	var s Session
	var claimedBy sql.NullString
	err := r.DB.QueryRowContext(ctx, query, sessionID).Scan(
		&s.ID,
		&s.Status,
		&s.IPHash,
		&s.UserAgent,
		&s.CreatedAt,
		&s.ExpiresAt,
		&claimedBy,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Session{}, ErrSessionNotFound
		}
		return Session{}, err
	}
	if claimedBy.Valid {
		s.ClaimedBy = &claimedBy.String
	}
	return s, nil
}

// ClaimSession marks the session as adopted by the account. The guard on
// claimed_by makes the claim a compare-and-set.
func (r *PGRepo) ClaimSession(ctx context.Context, sessionID, accountID string) error {
	res, err := r.DB.ExecContext(ctx, `
UPDATE onboarding_sessions
SET status = $1, claimed_by = $2
WHERE id = $3 AND (claimed_by IS NULL OR claimed_by = $2)`,
		StatusClaimed, accountID, sessionID)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		session, err := r.GetSession(ctx, sessionID)
		if err != nil {
			return err
		}
		if session.ClaimedBy != nil && *session.ClaimedBy != accountID {
			return ErrSessionInactive
		}
		return ErrSessionNotFound
	}
	return nil
}

// InsertDraft appends a draft row; prior drafts are never updated in place.
func (r *PGRepo) InsertDraft(ctx context.Context, draft Draft) error {
	const query = `
INSERT INTO onboarding_drafts (
	id, session_id, jd_text, jd_source_url, jd_title, jd_company,
	resume_bucket, resume_object_path, resume_original_filename,
	resume_mime_type, resume_size_bytes, resume_extracted_text, created_at
)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`
	_, err := r.DB.ExecContext(ctx, query,
		draft.ID,
		draft.SessionID,
		draft.JDText,
		nullIfEmpty(draft.JDSourceURL),
		nullIfEmpty(draft.JDTitle),
		nullIfEmpty(draft.JDCompany),
		nullIfEmpty(draft.ResumeBucket),
		nullIfEmpty(draft.ResumeObjectPath),
		nullIfEmpty(draft.ResumeOriginalFilename),
		nullIfEmpty(draft.ResumeMimeType),
		draft.ResumeSizeBytes,
		nullIfEmpty(draft.ResumeExtractedText),
		draft.CreatedAt,
	)
	return err
}

// LatestDraft returns the most recently inserted draft for the session.
func (r *PGRepo) LatestDraft(ctx context.Context, sessionID string) (Draft, error) {
	const query = `
SELECT id, session_id, jd_text, jd_source_url, jd_title, jd_company,
       resume_bucket, resume_object_path, resume_original_filename,
       resume_mime_type, resume_size_bytes, resume_extracted_text, created_at
FROM onboarding_drafts
WHERE session_id = $1
ORDER BY created_at DESC, id DESC
LIMIT 1`
	var d Draft
	var jdSourceURL, jdTitle, jdCompany sql.NullString
	var bucket, objectPath, fileName, mimeType, extracted sql.NullString
	var sizeBytes sql.NullInt64
	err := r.DB.QueryRowContext(ctx, query, sessionID).Scan(
		&d.ID,
		&d.SessionID,
		&d.JDText,
		&jdSourceURL,
		&jdTitle,
		&jdCompany,
		&bucket,
		&objectPath,
		&fileName,
		&mimeType,
		&sizeBytes,
		&extracted,
		&d.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Draft{}, ErrDraftNotFound
		}
		return Draft{}, err
	}
	d.JDSourceURL = jdSourceURL.String
	d.JDTitle = jdTitle.String
	d.JDCompany = jdCompany.String
	d.ResumeBucket = bucket.String
	d.ResumeObjectPath = objectPath.String
	d.ResumeOriginalFilename = fileName.String
	d.ResumeMimeType = mimeType.String
	if sizeBytes.Valid {
		d.ResumeSizeBytes = sizeBytes.Int64
	}
	d.ResumeExtractedText = extracted.String
	return d, nil
}

// DeleteDraftsByObject removes draft rows referencing the stored object.
func (r *PGRepo) DeleteDraftsByObject(ctx context.Context, sessionID, bucket, objectPath string) (int, error) {
	res, err := r.DB.ExecContext(ctx, `
DELETE FROM onboarding_drafts
WHERE session_id = $1 AND resume_bucket = $2 AND resume_object_path = $3`,
		sessionID, bucket, objectPath)
	if err != nil {
		return 0, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	return int(affected), nil
}

func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}

var _ Repo = (*PGRepo)(nil)
