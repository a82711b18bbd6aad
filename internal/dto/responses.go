package dto

// BatchAccepted acknowledges a queued batch run.
type BatchAccepted struct {
	Status string `json:"status"`
	Batch  string `json:"batch"`
	JobID  string `json:"job_id"`
}

// WebhookReceipt acknowledges an inbound callback delivery.
type WebhookReceipt struct {
	Received       bool   `json:"received"`
	Event          string `json:"event,omitempty"`
	Batch          string `json:"batch,omitempty"`
	SignatureValid *bool  `json:"signature_valid,omitempty"`
}
