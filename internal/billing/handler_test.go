package billing

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"

	"tailor-backend/internal/credits"
)

const testSecret = "whsec-test"

func newTestRouter(t *testing.T) (*gin.Engine, *credits.Service) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	creditsSvc := credits.NewService()
	router := gin.New()
	NewHandler(creditsSvc, testSecret).RegisterRoutes(router.Group("/"))
	return router, creditsSvc
}

func sign(body []byte) string {
	mac := hmac.New(sha256.New, []byte(testSecret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

func postWebhook(router *gin.Engine, body []byte, signature string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/billing/webhook", bytes.NewReader(body))
	if signature != "" {
		req.Header.Set(signatureHeader, signature)
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestWebhookCreditsPack(t *testing.T) {
	router, creditsSvc := newTestRouter(t)

	body, _ := json.Marshal(map[string]string{
		"eventId":   "evt-1",
		"accountId": "acct-1",
		"packId":    "pro",
	})
	rec := postWebhook(router, body, sign(body))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d body=%s", rec.Code, rec.Body.String())
	}

	balance, err := creditsSvc.Balance(context.Background(), "acct-1")
	if err != nil {
		t.Fatalf("Balance: %v", err)
	}
	if balance != 50 {
		t.Fatalf("expected pro pack to credit 50, got %d", balance)
	}
}

func TestWebhookRetryIsIdempotent(t *testing.T) {
	router, creditsSvc := newTestRouter(t)

	body, _ := json.Marshal(map[string]string{
		"eventId":   "evt-1",
		"accountId": "acct-1",
		"packId":    "starter",
	})
	for i := 0; i < 3; i++ {
		rec := postWebhook(router, body, sign(body))
		if rec.Code != http.StatusOK {
			t.Fatalf("retry %d: expected 200, got %d", i, rec.Code)
		}
	}

	balance, err := creditsSvc.Balance(context.Background(), "acct-1")
	if err != nil {
		t.Fatalf("Balance: %v", err)
	}
	if balance != 10 {
		t.Fatalf("expected one starter credit of 10 across retries, got %d", balance)
	}
}

func TestWebhookRejectsBadSignature(t *testing.T) {
	router, creditsSvc := newTestRouter(t)

	body, _ := json.Marshal(map[string]string{
		"eventId":   "evt-1",
		"accountId": "acct-1",
		"packId":    "starter",
	})
	rec := postWebhook(router, body, "deadbeef")
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
	rec = postWebhook(router, body, "")
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without signature, got %d", rec.Code)
	}

	balance, err := creditsSvc.Balance(context.Background(), "acct-1")
	if err != nil {
		t.Fatalf("Balance: %v", err)
	}
	if balance != 0 {
		t.Fatalf("expected no credit on rejected webhook, got %d", balance)
	}
}

func TestWebhookRejectsUnknownPackAndClientAmounts(t *testing.T) {
	router, creditsSvc := newTestRouter(t)

	// A client-supplied amount is ignored; only the pack table counts.
	body, _ := json.Marshal(map[string]any{
		"eventId":   "evt-1",
		"accountId": "acct-1",
		"packId":    "mega",
		"credits":   99999,
	})
	rec := postWebhook(router, body, sign(body))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown pack, got %d", rec.Code)
	}

	balance, err := creditsSvc.Balance(context.Background(), "acct-1")
	if err != nil {
		t.Fatalf("Balance: %v", err)
	}
	if balance != 0 {
		t.Fatalf("expected no credit for unknown pack, got %d", balance)
	}
}
