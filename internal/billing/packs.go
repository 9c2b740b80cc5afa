package billing

// Credit packs. Amounts live server-side only; the webhook payload names a
// pack and never carries a credit amount.
var packCredits = map[string]int{
	"starter": 10,
	"pro":     50,
	"bulk":    200,
}

// PackCredits returns the credit amount for a pack and whether it exists.
func PackCredits(packID string) (int, bool) {
	amount, ok := packCredits[packID]
	return amount, ok
}
