package jobs

import (
	"context"
	"time"
)

// Repo defines persistence operations for generation jobs. Every status
// mutation is a compare-and-set on the current status, so the state machine
// is enforced at the data layer.
type Repo interface {
	Create(ctx context.Context, job Job) error
	// Delete removes a job row. Used only to undo an insert whose dispatch
	// failed, so the rejected request leaves no record.
	Delete(ctx context.Context, jobID string) error
	// GetByID is the worker-side lookup; it ignores ownership.
	GetByID(ctx context.Context, jobID string) (Job, error)
	// GetForAccount enforces ownership structurally: a job owned by another
	// account is ErrNotFound.
	GetForAccount(ctx context.Context, jobID, accountID string) (Job, error)
	ListByAccount(ctx context.Context, accountID string, limit, offset int) ([]Job, error)
	// ClaimQueued transitions queued->running. At most one caller wins;
	// everyone else gets ErrNotClaimable.
	ClaimQueued(ctx context.Context, jobID string, startedAt time.Time) error
	// MarkSucceeded transitions running->succeeded with the artifact key.
	MarkSucceeded(ctx context.Context, jobID, artifactKey string, completedAt time.Time) error
	// MarkFailed transitions queued|running->failed with a message.
	MarkFailed(ctx context.Context, jobID, errorMessage string, completedAt time.Time) error
	// Cancel transitions queued|running->canceled for the owning account.
	Cancel(ctx context.Context, jobID, accountID string, completedAt time.Time) error
	// UpdateProgress is advisory and only applies while running.
	UpdateProgress(ctx context.Context, jobID string, progress int) error
	// FailStalled force-fails running jobs whose started_at predates cutoff
	// and returns their IDs.
	FailStalled(ctx context.Context, cutoff time.Time, errorMessage string) ([]string, error)
}
