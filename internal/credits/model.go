package credits

import "time"

// Ledger entry reasons. Every balance change is attributed to one of these.
const (
	ReasonGrant      = "grant"
	ReasonPurchase   = "purchase"
	ReasonGeneration = "generation"
	ReasonRefund     = "refund"
)

// Entry is an immutable credit ledger record. The account balance is always
// the sum of its entry deltas.
type Entry struct {
	ID        string    `json:"id"`
	AccountID string    `json:"accountId"`
	Delta     int       `json:"delta"`
	Reason    string    `json:"reason"`
	Source    string    `json:"source"`
	CreatedAt time.Time `json:"createdAt"`
}

// ValidReason reports whether the given reason is a known ledger reason.
func ValidReason(reason string) bool {
	switch reason {
	case ReasonGrant, ReasonPurchase, ReasonGeneration, ReasonRefund:
		return true
	}
	return false
}

// oncePerSource reports whether entries with this reason credit a given
// source at most once. Purchases dedupe on the provider event id, grants
// on the signup marker.
func oncePerSource(reason string) bool {
	return reason == ReasonPurchase || reason == ReasonGrant
}
