package onboarding

import "time"

// Session lifecycle statuses. "expired" is computed from expires_at at read
// time; it is never written by a background sweep.
const (
	StatusActive  = "active"
	StatusClaimed = "claimed"
	StatusExpired = "expired"
)

// Session is an anonymous, cookie-addressed onboarding context. The raw
// client IP is never stored, only its hash.
type Session struct {
	ID        string    `json:"id"`
	Status    string    `json:"status"`
	IPHash    string    `json:"-"`
	UserAgent string    `json:"-"`
	CreatedAt time.Time `json:"createdAt"`
	ExpiresAt time.Time `json:"expiresAt"`
	ClaimedBy *string   `json:"claimedBy,omitempty"`
}

// Expired reports whether the session TTL has elapsed.
func (s Session) Expired(now time.Time) bool {
	return now.After(s.ExpiresAt)
}

// EffectiveStatus computes the session status from stored fields.
func (s Session) EffectiveStatus(now time.Time) string {
	if s.Expired(now) {
		return StatusExpired
	}
	if s.ClaimedBy != nil {
		return StatusClaimed
	}
	return StatusActive
}

// Draft is a session-scoped snapshot of generation inputs. Drafts are
// append-only; the latest by creation time is authoritative.
type Draft struct {
	ID                     string    `json:"id"`
	SessionID              string    `json:"sessionId"`
	JDText                 string    `json:"jdText"`
	JDSourceURL            string    `json:"jdSourceUrl,omitempty"`
	JDTitle                string    `json:"jdTitle,omitempty"`
	JDCompany              string    `json:"jdCompany,omitempty"`
	ResumeBucket           string    `json:"resumeBucket,omitempty"`
	ResumeObjectPath       string    `json:"resumeObjectPath,omitempty"`
	ResumeOriginalFilename string    `json:"resumeOriginalFilename,omitempty"`
	ResumeMimeType         string    `json:"resumeMimeType,omitempty"`
	ResumeSizeBytes        int64     `json:"resumeSizeBytes,omitempty"`
	ResumeExtractedText    string    `json:"-"`
	CreatedAt              time.Time `json:"createdAt"`
}
