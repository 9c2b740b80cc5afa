package onboarding

import "context"

// Repo defines persistence operations for onboarding sessions and drafts.
type Repo interface {
	CreateSession(ctx context.Context, session Session) error
	GetSession(ctx context.Context, sessionID string) (Session, error)
	// ClaimSession marks an unclaimed session as adopted by the account.
	// Claiming an already-claimed or unknown session is a no-op error-free
	// only when the claimer matches; otherwise ErrSessionInactive.
	ClaimSession(ctx context.Context, sessionID, accountID string) error
	InsertDraft(ctx context.Context, draft Draft) error
	// LatestDraft returns the most recently inserted draft for the session.
	LatestDraft(ctx context.Context, sessionID string) (Draft, error)
	// DeleteDraftsByObject removes draft rows referencing the exact stored
	// object and returns how many were removed.
	DeleteDraftsByObject(ctx context.Context, sessionID, bucket, objectPath string) (int, error)
}
