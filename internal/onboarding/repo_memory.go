package onboarding

import (
	"context"
	"sync"
)

// MemoryRepo stores sessions and drafts in memory and is safe for concurrent use.
type MemoryRepo struct {
	mu       sync.RWMutex
	sessions map[string]Session
	drafts   map[string][]Draft
}

// NewMemoryRepo constructs a MemoryRepo.
func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{
		sessions: make(map[string]Session),
		drafts:   make(map[string][]Draft),
	}
}

// CreateSession stores the session.
func (r *MemoryRepo) CreateSession(ctx context.Context, session Session) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions[session.ID] = session
	return nil
}

// GetSession returns a session by ID.
func (r *MemoryRepo) GetSession(ctx context.Context, sessionID string) (Session, error) {
	if err := ctx.Err(); err != nil {
		return Session{}, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	session, ok := r.sessions[sessionID]
	if !ok {
		return Session{}, ErrSessionNotFound
	}
	return session, nil
}

// ClaimSession marks the session as adopted by the account.
func (r *MemoryRepo) ClaimSession(ctx context.Context, sessionID, accountID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	session, ok := r.sessions[sessionID]
	if !ok {
		return ErrSessionNotFound
	}
	if session.ClaimedBy != nil {
		if *session.ClaimedBy == accountID {
			return nil
		}
		return ErrSessionInactive
	}
	session.ClaimedBy = &accountID
	session.Status = StatusClaimed
	r.sessions[sessionID] = session
	return nil
}

// InsertDraft appends a draft row.
func (r *MemoryRepo) InsertDraft(ctx context.Context, draft Draft) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.sessions[draft.SessionID]; !ok {
		return ErrSessionNotFound
	}
	r.drafts[draft.SessionID] = append(r.drafts[draft.SessionID], draft)
	return nil
}

// LatestDraft returns the most recently inserted draft for the session.
func (r *MemoryRepo) LatestDraft(ctx context.Context, sessionID string) (Draft, error) {
	if err := ctx.Err(); err != nil {
		return Draft{}, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	drafts := r.drafts[sessionID]
	if len(drafts) == 0 {
		return Draft{}, ErrDraftNotFound
	}
	latest := drafts[0]
	for _, d := range drafts[1:] {
		if !d.CreatedAt.Before(latest.CreatedAt) {
			latest = d
		}
	}
	return latest, nil
}

// DeleteDraftsByObject removes draft rows referencing the stored object.
func (r *MemoryRepo) DeleteDraftsByObject(ctx context.Context, sessionID, bucket, objectPath string) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	drafts := r.drafts[sessionID]
	kept := drafts[:0]
	removed := 0
	for _, d := range drafts {
		if d.ResumeBucket == bucket && d.ResumeObjectPath == objectPath {
			removed++
			continue
		}
		kept = append(kept, d)
	}
	r.drafts[sessionID] = kept
	return removed, nil
}

var _ Repo = (*MemoryRepo)(nil)
