package jobs

import "time"

// Job statuses. queued and running are the only non-terminal states; no
// transition leaves succeeded, failed, or canceled.
const (
	StatusQueued    = "queued"
	StatusRunning   = "running"
	StatusSucceeded = "succeeded"
	StatusFailed    = "failed"
	StatusCanceled  = "canceled"
)

// Generation modes.
const (
	ModeQuick       = "QUICK"
	ModeDeep        = "DEEP"
	ModeFromScratch = "FROM_SCRATCH"
)

// Job represents one billable unit of asynchronous tailoring work.
type Job struct {
	ID           string     `json:"id"`
	AccountID    string     `json:"accountId"`
	Status       string     `json:"status"`
	Progress     int        `json:"progress"`
	Mode         string     `json:"mode"`
	JDText       string     `json:"jdText"`
	ResumeRef    string     `json:"resumeReference"`
	ArtifactKey  string     `json:"resultArtifactRef,omitempty"`
	ErrorMessage *string    `json:"errorMessage,omitempty"`
	CreatedAt    time.Time  `json:"createdAt"`
	StartedAt    *time.Time `json:"startedAt,omitempty"`
	CompletedAt  *time.Time `json:"completedAt,omitempty"`
	UpdatedAt    time.Time  `json:"updatedAt"`
}

// Terminal reports whether the status permits no further transitions.
func Terminal(status string) bool {
	switch status {
	case StatusSucceeded, StatusFailed, StatusCanceled:
		return true
	}
	return false
}

// ValidMode reports whether the mode is a known generation mode.
func ValidMode(mode string) bool {
	switch mode {
	case ModeQuick, ModeDeep, ModeFromScratch:
		return true
	}
	return false
}
