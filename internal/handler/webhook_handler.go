package handler

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/tenacademy/onboarding-api/internal/dto"
	"github.com/tenacademy/onboarding-api/internal/service"
	appErrors "github.com/tenacademy/onboarding-api/pkg/errors"
	"github.com/tenacademy/onboarding-api/pkg/response"
)

// WebhookHandler receives batch completion callbacks. It exists so an
// operator can point callback_url at this service itself and inspect
// deliveries end to end, signature included.
type WebhookHandler struct {
	logger *zap.Logger
}

// NewWebhookHandler constructs handler.
func NewWebhookHandler(logger *zap.Logger) *WebhookHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &WebhookHandler{logger: logger}
}

// Receive logs an inbound callback. When the caller supplies a secret query
// parameter the signature header is verified against it.
func (h *WebhookHandler) Receive(c *gin.Context) {
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, 1<<20))
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "could not read request body"))
		return
	}

	var payload service.WebhookPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid webhook payload"))
		return
	}

	receipt := dto.WebhookReceipt{Received: true, Event: payload.Event, Batch: payload.Batch}
	if secret := c.Query("secret"); secret != "" {
		valid := service.VerifySignature(secret, body, c.GetHeader(service.SignatureHeader))
		receipt.SignatureValid = &valid
	}

	h.logger.Info("webhook received",
		zap.String("event", payload.Event),
		zap.String("batch", payload.Batch),
		zap.String("status", payload.Status),
		zap.Int("total_processed", payload.TotalProcessed))

	response.JSON(c, http.StatusOK, "webhook received", receipt)
}
