package jobs

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"tailor-backend/internal/credits"
	"tailor-backend/internal/generate"
	"tailor-backend/internal/queue"
	"tailor-backend/internal/shared/metrics"
	"tailor-backend/internal/shared/storage/object"
	"tailor-backend/internal/shared/telemetry"
)

// ResumeTextLoader resolves a resume reference into plain text for the
// generator.
type ResumeTextLoader interface {
	LoadResumeText(ctx context.Context, resumeRef string) (string, error)
}

// Service contains business logic for generation jobs: admission, dispatch,
// execution, and status reads.
type Service struct {
	Repo       Repo
	Credits    *credits.Service
	Generator  generate.Generator
	Store      object.ObjectStore
	ResumeText ResumeTextLoader
	Queue      queue.Client
	MaxRunning time.Duration

	now func() time.Time
}

// NewService constructs a Service.
func NewService(repo Repo, creditsSvc *credits.Service, gen generate.Generator, store object.ObjectStore, loader ResumeTextLoader, q queue.Client, maxRunning time.Duration) *Service {
	if maxRunning <= 0 {
		maxRunning = 15 * time.Minute
	}
	return &Service{
		Repo:       repo,
		Credits:    creditsSvc,
		Generator:  gen,
		Store:      store,
		ResumeText: loader,
		Queue:      q,
		MaxRunning: maxRunning,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// CreateInput carries the client-supplied job fields.
type CreateInput struct {
	Mode      string
	JDText    string
	ResumeRef string
}

// Create admits a new generation job. The balance check happens before any
// row is written, so rejected requests leave no trace; no credit moves here.
// The debit is taken only after the job succeeds.
func (s *Service) Create(ctx context.Context, accountID string, input CreateInput) (Job, error) {
	if accountID == "" {
		return Job{}, fmt.Errorf("%w: account is required", ErrInvalidInput)
	}
	if !ValidMode(input.Mode) {
		return Job{}, fmt.Errorf("%w: unknown mode %q", ErrInvalidInput, input.Mode)
	}
	if strings.TrimSpace(input.JDText) == "" {
		return Job{}, fmt.Errorf("%w: jdText is required", ErrInvalidInput)
	}

	balance, err := s.Credits.Balance(ctx, accountID)
	if err != nil {
		return Job{}, err
	}
	if balance <= 0 {
		return Job{}, credits.ErrInsufficientCredits
	}

	now := s.now()
	job := Job{
		ID:        uuid.NewString(),
		AccountID: accountID,
		Status:    StatusQueued,
		Progress:  0,
		Mode:      input.Mode,
		JDText:    input.JDText,
		ResumeRef: input.ResumeRef,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.Repo.Create(ctx, job); err != nil {
		return Job{}, err
	}

	if s.Queue != nil {
		msg := queue.Message{
			JobID:      job.ID,
			RequestID:  requestIDFromContext(ctx),
			EnqueuedAt: now.Format(time.RFC3339),
			Version:    1,
		}
		if err := s.Queue.Send(ctx, msg); err != nil {
			// Dispatch failures surface synchronously and leave no job
			// record, so the insert is undone rather than marked failed.
			if delErr := s.Repo.Delete(context.Background(), job.ID); delErr != nil {
				telemetry.Error("job.dispatch_cleanup_failed", map[string]any{
					"request_id": requestIDFromContext(ctx),
					"job_id":     job.ID,
					"error":      delErr.Error(),
				})
			}
			return Job{}, fmt.Errorf("enqueue job: %w", err)
		}
	} else {
		go s.processAsync(backgroundWithRequestID(ctx), job.ID)
	}

	telemetry.Info("job.queued", map[string]any{
		"request_id": requestIDFromContext(ctx),
		"account_id": accountID,
		"job_id":     job.ID,
		"mode":       job.Mode,
	})
	return job, nil
}

// Get returns a job for its owning account. Jobs owned by someone else are
// indistinguishable from jobs that do not exist.
func (s *Service) Get(ctx context.Context, jobID, accountID string) (Job, error) {
	if jobID == "" || accountID == "" {
		return Job{}, ErrNotFound
	}
	return s.Repo.GetForAccount(ctx, jobID, accountID)
}

// List returns jobs for an account, newest first.
func (s *Service) List(ctx context.Context, accountID string, limit, offset int) ([]Job, error) {
	if accountID == "" {
		return nil, fmt.Errorf("%w: account is required", ErrInvalidInput)
	}
	return s.Repo.ListByAccount(ctx, accountID, limit, offset)
}

// Cancel requests cancellation. Queued jobs never run; running jobs are not
// interrupted, but the terminal cancel makes any late success transition
// fail, so no debit can follow.
func (s *Service) Cancel(ctx context.Context, jobID, accountID string) (Job, error) {
	if err := s.Repo.Cancel(ctx, jobID, accountID, s.now()); err != nil {
		return Job{}, err
	}
	metrics.IncGenerationCanceled()
	telemetry.Info("job.status", map[string]any{
		"request_id": requestIDFromContext(ctx),
		"account_id": accountID,
		"job_id":     jobID,
		"status":     StatusCanceled,
	})
	return s.Repo.GetForAccount(ctx, jobID, accountID)
}

// Process claims and executes one job. Losing the claim race is not an
// error: the message was redelivered or the job was canceled, and the claim
// guard already guarantees the work runs at most once.
func (s *Service) Process(ctx context.Context, jobID string) error {
	if jobID == "" {
		return fmt.Errorf("%w: job id is required", ErrInvalidInput)
	}

	startedAt := s.now()
	if err := s.Repo.ClaimQueued(ctx, jobID, startedAt); err != nil {
		if errors.Is(err, ErrNotClaimable) {
			telemetry.Info("job.claim_lost", map[string]any{
				"request_id": requestIDFromContext(ctx),
				"job_id":     jobID,
			})
			return nil
		}
		return err
	}
	metrics.IncGenerationStarted()

	job, err := s.Repo.GetByID(ctx, jobID)
	if err != nil {
		s.failJob(ctx, jobID, fmt.Errorf("job lookup: %w", err), &startedAt)
		return nil
	}
	telemetry.Info("job.status", map[string]any{
		"request_id":        requestIDFromContext(ctx),
		"account_id":        job.AccountID,
		"job_id":            job.ID,
		"status":            StatusRunning,
		"status_transition": "queued->running",
	})

	if s.Generator == nil || s.Store == nil {
		s.failJob(ctx, jobID, errors.New("missing generator dependencies"), &startedAt)
		return nil
	}

	resumeText := ""
	if job.ResumeRef != "" && s.ResumeText != nil {
		resumeText, err = s.ResumeText.LoadResumeText(ctx, job.ResumeRef)
		if err != nil {
			s.failJob(ctx, jobID, fmt.Errorf("resume text %s: %w", job.ResumeRef, err), &startedAt)
			return nil
		}
	}
	_ = s.Repo.UpdateProgress(ctx, jobID, 25)

	artifact, err := s.Generator.Generate(ctx, generate.Input{
		JDText:     job.JDText,
		ResumeText: resumeText,
		Mode:       job.Mode,
	})
	if err != nil {
		s.failJob(ctx, jobID, fmt.Errorf("generate: %w", err), &startedAt)
		return nil
	}
	_ = s.Repo.UpdateProgress(ctx, jobID, 85)

	artifactKey := "artifacts/" + job.ID + ".json"
	if _, err := saveArtifact(ctx, s.Store, artifactKey, artifact.Content); err != nil {
		s.failJob(ctx, jobID, fmt.Errorf("store artifact: %w", err), &startedAt)
		return nil
	}

	completedAt := s.now()
	if err := s.Repo.MarkSucceeded(ctx, jobID, artifactKey, completedAt); err != nil {
		// A cancel or timeout won the race; the work is discarded and the
		// account is never charged for it.
		telemetry.Info("job.success_discarded", map[string]any{
			"request_id": requestIDFromContext(ctx),
			"job_id":     jobID,
			"error":      err.Error(),
		})
		return nil
	}
	metrics.IncGenerationSucceeded()
	metrics.ObserveGenerationDurationMs(durationMs(&startedAt, &completedAt))

	// The debit comes strictly after the succeeded transition. A failure
	// here under-charges rather than charging for undelivered work; it is
	// logged for reconciliation and the job result stands.
	if _, err := s.Credits.Adjust(ctx, job.AccountID, -1, credits.ReasonGeneration, job.ID); err != nil {
		metrics.IncLedgerReconcileRequired()
		telemetry.Error("ledger.reconcile_required", map[string]any{
			"request_id": requestIDFromContext(ctx),
			"account_id": job.AccountID,
			"job_id":     job.ID,
			"error":      err.Error(),
		})
	}

	telemetry.Info("job.status", map[string]any{
		"request_id":        requestIDFromContext(ctx),
		"account_id":        job.AccountID,
		"job_id":            job.ID,
		"status":            StatusSucceeded,
		"status_transition": "running->succeeded",
		"duration_ms":       durationMs(&startedAt, &completedAt),
	})
	return nil
}

// FailStalled force-fails running jobs older than the configured limit and
// returns how many were failed. Stalled jobs are never charged.
func (s *Service) FailStalled(ctx context.Context) (int, error) {
	cutoff := s.now().Add(-s.MaxRunning)
	msg := fmt.Sprintf("timed out after %s", s.MaxRunning)
	ids, err := s.Repo.FailStalled(ctx, cutoff, msg)
	if err != nil {
		return 0, err
	}
	for _, id := range ids {
		metrics.IncGenerationTimedOut()
		telemetry.Info("job.status", map[string]any{
			"job_id":            id,
			"status":            StatusFailed,
			"status_transition": "running->failed",
			"reason":            "timeout",
		})
	}
	return len(ids), nil
}

func (s *Service) processAsync(ctx context.Context, jobID string) {
	defer func() {
		if r := recover(); r != nil {
			s.failJob(ctx, jobID, fmt.Errorf("panic: %v", r), nil)
		}
	}()
	if err := s.Process(ctx, jobID); err != nil {
		telemetry.Error("job.process_error", map[string]any{
			"request_id": requestIDFromContext(ctx),
			"job_id":     jobID,
			"error":      err.Error(),
		})
	}
}

func (s *Service) failJob(ctx context.Context, jobID string, err error, startedAt *time.Time) {
	msg := sanitizeError(err)
	completedAt := s.now()
	if updateErr := s.Repo.MarkFailed(context.Background(), jobID, msg, completedAt); updateErr != nil {
		// Already terminal; nothing left to record.
		if !errors.Is(updateErr, ErrInvalidTransition) {
			telemetry.Error("job.fail_update_error", map[string]any{
				"job_id": jobID,
				"error":  updateErr.Error(),
			})
		}
		return
	}
	metrics.IncGenerationFailed()
	if startedAt != nil {
		metrics.ObserveGenerationDurationMs(durationMs(startedAt, &completedAt))
	}
	telemetry.Info("job.status", map[string]any{
		"request_id": requestIDFromContext(ctx),
		"job_id":     jobID,
		"status":     StatusFailed,
		"error":      msg,
	})
}

func durationMs(startedAt, completedAt *time.Time) float64 {
	if startedAt == nil || completedAt == nil {
		return 0
	}
	return float64(completedAt.Sub(*startedAt).Microseconds()) / 1000.0
}

func sanitizeError(err error) string {
	if err == nil {
		return ""
	}
	msg := strings.ReplaceAll(err.Error(), "\n", " ")
	msg = strings.ReplaceAll(msg, "\r", " ")
	msg = strings.TrimSpace(msg)
	const maxLen = 500
	if len(msg) > maxLen {
		cut := maxLen
		for cut > 0 && !utf8.RuneStart(msg[cut]) {
			cut--
		}
		msg = msg[:cut]
	}
	return msg
}

type keySaver interface {
	SaveWithKey(ctx context.Context, storageKey string, contentType string, r io.Reader) (int64, error)
}

func saveArtifact(ctx context.Context, store object.ObjectStore, key string, content []byte) (int64, error) {
	saver, ok := store.(keySaver)
	if !ok {
		return 0, errors.New("object store does not support SaveWithKey")
	}
	return saver.SaveWithKey(ctx, key, "application/json", bytes.NewReader(content))
}
