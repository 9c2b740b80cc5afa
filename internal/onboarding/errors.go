package onboarding

import "errors"

var (
	ErrSessionNotFound = errors.New("session not found")
	ErrSessionInactive = errors.New("session inactive")
	ErrSessionExpired  = errors.New("session expired")
	ErrDraftNotFound   = errors.New("draft not found")
	ErrValidation      = errors.New("validation failed")
)
