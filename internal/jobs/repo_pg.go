package jobs

import (
	"context"
	"database/sql"
	"errors"
	"time"
)

// PGRepo implements Repo using Postgres. Status guards live in the WHERE
// clause of each UPDATE, so concurrent writers race on rows affected rather
// than on application state.
type PGRepo struct {
	DB *sql.DB
}

const jobColumns = `
id, account_id, status, progress, mode, jd_text, resume_ref,
artifact_key, error_message, created_at, started_at, completed_at, updated_at`

// Create inserts a new job row.
func (r *PGRepo) Create(ctx context.Context, job Job) error {
	const query = `
INSERT INTO jobs (id, account_id, status, progress, mode, jd_text, resume_ref, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`
	_, err := r.DB.ExecContext(ctx, query,
		job.ID,
		job.AccountID,
		job.Status,
		job.Progress,
		job.Mode,
		job.JDText,
		job.ResumeRef,
		job.CreatedAt,
		job.UpdatedAt,
	)
	return err
}

// Delete removes the job row.
func (r *PGRepo) Delete(ctx context.Context, jobID string) error {
	res, err := r.DB.ExecContext(ctx, `DELETE FROM jobs WHERE id = $1`, jobID)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

// GetByID returns a job by its ID regardless of owner.
func (r *PGRepo) GetByID(ctx context.Context, jobID string) (Job, error) {
	row := r.DB.QueryRowContext(ctx, `
SELECT `+jobColumns+`
FROM jobs
WHERE id = $1
LIMIT 1`, jobID)
	return scanJob(row)
}

// GetForAccount returns a job only when owned by the account.
func (r *PGRepo) GetForAccount(ctx context.Context, jobID, accountID string) (Job, error) {
	row := r.DB.QueryRowContext(ctx, `
SELECT `+jobColumns+`
FROM jobs
WHERE id = $1 AND account_id = $2
LIMIT 1`, jobID, accountID)
	return scanJob(row)
}

// ListByAccount returns jobs for an account, newest first.
func (r *PGRepo) ListByAccount(ctx context.Context, accountID string, limit, offset int) ([]Job, error) {
	if limit <= 0 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	rows, err := r.DB.QueryContext(ctx, `
SELECT `+jobColumns+`
FROM jobs
WHERE account_id = $1
ORDER BY created_at DESC
LIMIT $2 OFFSET $3`, accountID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []Job{}
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, job)
	}
	return out, rows.Err()
}

// ClaimQueued transitions queued->running. Zero rows affected means the job
// was already claimed, canceled, or finished.
func (r *PGRepo) ClaimQueued(ctx context.Context, jobID string, startedAt time.Time) error {
	res, err := r.DB.ExecContext(ctx, `
UPDATE jobs
SET status = $1, started_at = $2, updated_at = now()
WHERE id = $3 AND status = $4`,
		StatusRunning, startedAt, jobID, StatusQueued)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		if _, err := r.GetByID(ctx, jobID); err != nil {
			return err
		}
		return ErrNotClaimable
	}
	return nil
}

// MarkSucceeded transitions running->succeeded.
func (r *PGRepo) MarkSucceeded(ctx context.Context, jobID, artifactKey string, completedAt time.Time) error {
	res, err := r.DB.ExecContext(ctx, `
UPDATE jobs
SET status = $1, progress = 100, artifact_key = $2, completed_at = $3, updated_at = now()
WHERE id = $4 AND status = $5`,
		StatusSucceeded, artifactKey, completedAt, jobID, StatusRunning)
	if err != nil {
		return err
	}
	return transitionOutcome(ctx, r, res, jobID)
}

// MarkFailed transitions queued|running->failed.
func (r *PGRepo) MarkFailed(ctx context.Context, jobID, errorMessage string, completedAt time.Time) error {
	res, err := r.DB.ExecContext(ctx, `
UPDATE jobs
SET status = $1, error_message = $2, completed_at = $3, updated_at = now()
WHERE id = $4 AND status IN ($5, $6)`,
		StatusFailed, errorMessage, completedAt, jobID, StatusQueued, StatusRunning)
	if err != nil {
		return err
	}
	return transitionOutcome(ctx, r, res, jobID)
}

// Cancel transitions queued|running->canceled for the owning account.
func (r *PGRepo) Cancel(ctx context.Context, jobID, accountID string, completedAt time.Time) error {
	res, err := r.DB.ExecContext(ctx, `
UPDATE jobs
SET status = $1, completed_at = $2, updated_at = now()
WHERE id = $3 AND account_id = $4 AND status IN ($5, $6)`,
		StatusCanceled, completedAt, jobID, accountID, StatusQueued, StatusRunning)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		if _, err := r.GetForAccount(ctx, jobID, accountID); err != nil {
			return err
		}
		return ErrInvalidTransition
	}
	return nil
}

// UpdateProgress records advisory progress; the status guard makes it a
// no-op once the job leaves running.
func (r *PGRepo) UpdateProgress(ctx context.Context, jobID string, progress int) error {
	if progress < 0 {
		progress = 0
	}
	if progress > 100 {
		progress = 100
	}
	_, err := r.DB.ExecContext(ctx, `
UPDATE jobs
SET progress = $1, updated_at = now()
WHERE id = $2 AND status = $3`,
		progress, jobID, StatusRunning)
	return err
}

// FailStalled force-fails running jobs started before cutoff.
func (r *PGRepo) FailStalled(ctx context.Context, cutoff time.Time, errorMessage string) ([]string, error) {
	rows, err := r.DB.QueryContext(ctx, `
UPDATE jobs
SET status = $1, error_message = $2, completed_at = now(), updated_at = now()
WHERE status = $3 AND started_at < $4
RETURNING id`,
		StatusFailed, errorMessage, StatusRunning, cutoff)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// transitionOutcome distinguishes a missing row from a lost CAS race after a
// zero-row status update.
func transitionOutcome(ctx context.Context, r *PGRepo, res sql.Result, jobID string) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		if _, err := r.GetByID(ctx, jobID); err != nil {
			return err
		}
		return ErrInvalidTransition
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanJob(row rowScanner) (Job, error) {
	var j Job
	var artifactKey, errorMessage sql.NullString
	var startedAt, completedAt sql.NullTime
	err := row.Scan(
		&j.ID,
		&j.AccountID,
		&j.Status,
		&j.Progress,
		&j.Mode,
		&j.JDText,
		&j.ResumeRef,
		&artifactKey,
		&errorMessage,
		&j.CreatedAt,
		&startedAt,
		&completedAt,
		&j.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Job{}, ErrNotFound
		}
		return Job{}, err
	}
	j.ArtifactKey = artifactKey.String
	if errorMessage.Valid {
		j.ErrorMessage = &errorMessage.String
	}
	if startedAt.Valid {
		t := startedAt.Time
		j.StartedAt = &t
	}
	if completedAt.Valid {
		t := completedAt.Time
		j.CompletedAt = &t
	}
	return j, nil
}

var _ Repo = (*PGRepo)(nil)
