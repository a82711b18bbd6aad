package handler

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tenacademy/onboarding-api/internal/dto"
	"github.com/tenacademy/onboarding-api/internal/service"
	"github.com/tenacademy/onboarding-api/pkg/response"
)

func webhookBody(t *testing.T) []byte {
	body, err := service.CanonicalJSON(service.WebhookPayload{
		Event:  service.WebhookEvent,
		Status: "completed",
		Batch:  "batch-7",
	})
	require.NoError(t, err)
	return body
}

func receiptFrom(t *testing.T, w *httptest.ResponseRecorder) dto.WebhookReceipt {
	var envelope response.Envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &envelope))
	raw, err := json.Marshal(envelope.Data)
	require.NoError(t, err)
	var receipt dto.WebhookReceipt
	require.NoError(t, json.Unmarshal(raw, &receipt))
	return receipt
}

func TestReceiveAcknowledgesDelivery(t *testing.T) {
	gin.SetMode(gin.TestMode)
	h := NewWebhookHandler(nil)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(http.MethodPost, "/webhook", bytes.NewReader(webhookBody(t)))
	c.Request = req

	h.Receive(c)

	require.Equal(t, http.StatusOK, w.Code)
	receipt := receiptFrom(t, w)
	assert.True(t, receipt.Received)
	assert.Equal(t, "batch-7", receipt.Batch)
	assert.Nil(t, receipt.SignatureValid)
}

func TestReceiveVerifiesSignature(t *testing.T) {
	gin.SetMode(gin.TestMode)
	h := NewWebhookHandler(nil)
	body := webhookBody(t)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(http.MethodPost, "/webhook?secret=s3cret", bytes.NewReader(body))
	req.Header.Set(service.SignatureHeader, service.Sign("s3cret", body))
	c.Request = req

	h.Receive(c)

	require.Equal(t, http.StatusOK, w.Code)
	receipt := receiptFrom(t, w)
	require.NotNil(t, receipt.SignatureValid)
	assert.True(t, *receipt.SignatureValid)
}

func TestReceiveFlagsBadSignature(t *testing.T) {
	gin.SetMode(gin.TestMode)
	h := NewWebhookHandler(nil)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(http.MethodPost, "/webhook?secret=s3cret", bytes.NewReader(webhookBody(t)))
	req.Header.Set(service.SignatureHeader, "forged")
	c.Request = req

	h.Receive(c)

	require.Equal(t, http.StatusOK, w.Code)
	receipt := receiptFrom(t, w)
	require.NotNil(t, receipt.SignatureValid)
	assert.False(t, *receipt.SignatureValid)
}

func TestReceiveRejectsMalformedPayload(t *testing.T) {
	gin.SetMode(gin.TestMode)
	h := NewWebhookHandler(nil)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(http.MethodPost, "/webhook", bytes.NewReader([]byte("not json")))
	c.Request = req

	h.Receive(c)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}
