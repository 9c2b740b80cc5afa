package billing

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"tailor-backend/internal/credits"
	"tailor-backend/internal/shared/server/respond"
	"tailor-backend/internal/shared/telemetry"
)

const signatureHeader = "X-Billing-Signature"

// Handler receives payment provider callbacks and credits accounts.
type Handler struct {
	Credits *credits.Service
	Secret  string
}

// NewHandler constructs a Handler.
func NewHandler(creditsSvc *credits.Service, secret string) *Handler {
	return &Handler{Credits: creditsSvc, Secret: secret}
}

// RegisterRoutes attaches the webhook route. The route is public; the
// signature check is the authentication.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/billing/webhook", h.webhook)
}

type webhookEvent struct {
	EventID   string `json:"eventId"`
	AccountID string `json:"accountId"`
	PackID    string `json:"packId"`
}

func (h *Handler) webhook(c *gin.Context) {
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, 1<<16))
	if err != nil {
		respond.Error(c, http.StatusBadRequest, "validation_error", "unreadable body", nil)
		return
	}
	if !h.verifySignature(body, c.GetHeader(signatureHeader)) {
		respond.Error(c, http.StatusUnauthorized, "unauthorized", "invalid signature", nil)
		return
	}

	var event webhookEvent
	if err := json.Unmarshal(body, &event); err != nil {
		respond.Error(c, http.StatusBadRequest, "validation_error", "invalid payload", nil)
		return
	}
	if event.EventID == "" || event.AccountID == "" {
		respond.Error(c, http.StatusBadRequest, "validation_error", "eventId and accountId are required", nil)
		return
	}
	amount, ok := PackCredits(event.PackID)
	if !ok {
		respond.Error(c, http.StatusBadRequest, "validation_error", "unknown pack", nil)
		return
	}

	// The event ID is the ledger source, so provider retries are idempotent.
	balance, err := h.Credits.Adjust(c.Request.Context(), event.AccountID, amount, credits.ReasonPurchase, event.EventID)
	if err != nil {
		respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to credit purchase", nil)
		return
	}

	telemetry.Info("billing.purchase", map[string]any{
		"request_id": c.GetString("requestId"),
		"account_id": event.AccountID,
		"event_id":   event.EventID,
		"pack_id":    event.PackID,
		"amount":     amount,
		"balance":    balance,
	})
	respond.JSON(c, http.StatusOK, gin.H{"credits": balance})
}

func (h *Handler) verifySignature(body []byte, signature string) bool {
	if strings.TrimSpace(h.Secret) == "" || strings.TrimSpace(signature) == "" {
		return false
	}
	mac := hmac.New(sha256.New, []byte(h.Secret))
	mac.Write(body)
	expected := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(strings.TrimSpace(signature)))
}
