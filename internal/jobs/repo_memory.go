package jobs

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemoryRepo stores jobs in memory and is safe for concurrent use.
type MemoryRepo struct {
	mu   sync.Mutex
	byID map[string]Job
}

// NewMemoryRepo constructs a MemoryRepo.
func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{byID: make(map[string]Job)}
}

// Create stores the job.
func (r *MemoryRepo) Create(ctx context.Context, job Job) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byID[job.ID] = job
	return nil
}

// Delete removes the job row.
func (r *MemoryRepo) Delete(ctx context.Context, jobID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byID[jobID]; !ok {
		return ErrNotFound
	}
	delete(r.byID, jobID)
	return nil
}

// GetByID returns a job by its ID regardless of owner.
func (r *MemoryRepo) GetByID(ctx context.Context, jobID string) (Job, error) {
	if err := ctx.Err(); err != nil {
		return Job{}, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	job, ok := r.byID[jobID]
	if !ok {
		return Job{}, ErrNotFound
	}
	return job, nil
}

// GetForAccount returns a job only when owned by the account.
func (r *MemoryRepo) GetForAccount(ctx context.Context, jobID, accountID string) (Job, error) {
	job, err := r.GetByID(ctx, jobID)
	if err != nil {
		return Job{}, err
	}
	if job.AccountID != accountID {
		return Job{}, ErrNotFound
	}
	return job, nil
}

// ListByAccount returns jobs for an account, newest first.
func (r *MemoryRepo) ListByAccount(ctx context.Context, accountID string, limit, offset int) ([]Job, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if offset < 0 {
		offset = 0
	}
	if limit < 0 {
		limit = 0
	}

	r.mu.Lock()
	var out []Job
	for _, job := range r.byID {
		if job.AccountID == accountID {
			out = append(out, job)
		}
	}
	r.mu.Unlock()

	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	if offset >= len(out) {
		return []Job{}, nil
	}
	end := len(out)
	if limit > 0 && offset+limit < end {
		end = offset + limit
	}
	return out[offset:end], nil
}

// ClaimQueued transitions queued->running; only one caller wins.
func (r *MemoryRepo) ClaimQueued(ctx context.Context, jobID string, startedAt time.Time) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	job, ok := r.byID[jobID]
	if !ok {
		return ErrNotFound
	}
	if job.Status != StatusQueued {
		return ErrNotClaimable
	}
	job.Status = StatusRunning
	job.StartedAt = &startedAt
	job.UpdatedAt = time.Now().UTC()
	r.byID[jobID] = job
	return nil
}

// MarkSucceeded transitions running->succeeded.
func (r *MemoryRepo) MarkSucceeded(ctx context.Context, jobID, artifactKey string, completedAt time.Time) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	job, ok := r.byID[jobID]
	if !ok {
		return ErrNotFound
	}
	if job.Status != StatusRunning {
		return ErrInvalidTransition
	}
	job.Status = StatusSucceeded
	job.Progress = 100
	job.ArtifactKey = artifactKey
	job.CompletedAt = &completedAt
	job.UpdatedAt = time.Now().UTC()
	r.byID[jobID] = job
	return nil
}

// MarkFailed transitions queued|running->failed.
func (r *MemoryRepo) MarkFailed(ctx context.Context, jobID, errorMessage string, completedAt time.Time) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	job, ok := r.byID[jobID]
	if !ok {
		return ErrNotFound
	}
	if Terminal(job.Status) {
		return ErrInvalidTransition
	}
	job.Status = StatusFailed
	job.ErrorMessage = &errorMessage
	job.CompletedAt = &completedAt
	job.UpdatedAt = time.Now().UTC()
	r.byID[jobID] = job
	return nil
}

// Cancel transitions queued|running->canceled for the owning account.
func (r *MemoryRepo) Cancel(ctx context.Context, jobID, accountID string, completedAt time.Time) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	job, ok := r.byID[jobID]
	if !ok || job.AccountID != accountID {
		return ErrNotFound
	}
	if Terminal(job.Status) {
		return ErrInvalidTransition
	}
	job.Status = StatusCanceled
	job.CompletedAt = &completedAt
	job.UpdatedAt = time.Now().UTC()
	r.byID[jobID] = job
	return nil
}

// UpdateProgress records advisory progress; it is a no-op unless running.
func (r *MemoryRepo) UpdateProgress(ctx context.Context, jobID string, progress int) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if progress < 0 {
		progress = 0
	}
	if progress > 100 {
		progress = 100
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	job, ok := r.byID[jobID]
	if !ok {
		return ErrNotFound
	}
	if job.Status != StatusRunning {
		return nil
	}
	job.Progress = progress
	job.UpdatedAt = time.Now().UTC()
	r.byID[jobID] = job
	return nil
}

// FailStalled force-fails running jobs started before cutoff.
func (r *MemoryRepo) FailStalled(ctx context.Context, cutoff time.Time, errorMessage string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	now := time.Now().UTC()
	var failed []string
	for id, job := range r.byID {
		if job.Status != StatusRunning || job.StartedAt == nil || !job.StartedAt.Before(cutoff) {
			continue
		}
		msg := errorMessage
		job.Status = StatusFailed
		job.ErrorMessage = &msg
		job.CompletedAt = &now
		job.UpdatedAt = now
		r.byID[id] = job
		failed = append(failed, id)
	}
	return failed, nil
}

var _ Repo = (*MemoryRepo)(nil)
