package models

import "time"

// Batch status values derived from per-row outcomes.
const (
	BatchStatusCompleted      = "completed"
	BatchStatusPartialSuccess = "partial_success"
	BatchStatusFailed         = "failed"
)

// Row outcome values.
const (
	RowStatusSuccess = "Success"
	RowStatusFailed  = "Failed"
)

// BatchConfig holds the run parameters for one batch submission. It is
// immutable for the lifetime of a batch run.
type BatchConfig struct {
	RunStage  string `json:"run_stage"`
	Batch     string `json:"batch"`
	Role      string `json:"role"`
	GroupID   string `json:"group_id,omitempty"`
	Delimiter string `json:"delimiter"`
	Encoding  string `json:"encoding"`
	ChunkSize int    `json:"chunk_size"`
	IsMock    bool   `json:"is_mock"`
	LoginURL  string `json:"login_url,omitempty"`

	AdminEmail string `json:"admin_email,omitempty" validate:"omitempty,email"`

	CallbackURL    string            `json:"callback_url,omitempty" validate:"omitempty,url"`
	WebhookSecret  string            `json:"-"`
	WebhookHeaders map[string]string `json:"-"`
	RetryCount     int               `json:"retry_count,omitempty" validate:"omitempty,min=1,max=10"`
	RetryDelay     int               `json:"retry_delay,omitempty" validate:"omitempty,min=1,max=60"`

	RequiredColumns []string `json:"required_columns,omitempty"`
}

// DefaultRequiredColumns is the minimum column set a batch CSV must carry.
var DefaultRequiredColumns = []string{"name", "email"}

// Required returns the configured required columns or the default minimum.
func (c BatchConfig) Required() []string {
	if len(c.RequiredColumns) > 0 {
		return c.RequiredColumns
	}
	return DefaultRequiredColumns
}

// RowResult is the immutable outcome of processing one CSV row.
type RowResult struct {
	Row          int    `json:"row"`
	Name         string `json:"name"`
	Email        string `json:"email"`
	Status       string `json:"status"`
	TraineeID    string `json:"tenx_id,omitempty"`
	ErrorType    string `json:"error_type,omitempty"`
	ErrorMessage string `json:"error_message,omitempty"`
	// Password is disclosed only for mock batches.
	Password string `json:"password,omitempty"`
}

// RowError is the compact error entry carried in webhook payloads.
type RowError struct {
	Row          int    `json:"row"`
	Email        string `json:"email"`
	ErrorMessage string `json:"error_message"`
}

// BatchMetadata echoes the run parameters back to notification consumers.
type BatchMetadata struct {
	RunStage string `json:"run_stage"`
	Role     string `json:"role"`
	GroupID  string `json:"group_id,omitempty"`
}

// BatchResult aggregates the outcome of one batch run.
type BatchResult struct {
	Status             string        `json:"status"`
	Error              string        `json:"error,omitempty"`
	ErrorType          string        `json:"error_type,omitempty"`
	TotalProcessed     int           `json:"total_processed"`
	Successful         int           `json:"successful"`
	Failed             int           `json:"failed"`
	SuccessfulTrainees []RowResult   `json:"successful_trainees"`
	FailedTrainees     []RowResult   `json:"failed_trainees"`
	Errors             []RowError    `json:"errors"`
	Batch              string        `json:"batch"`
	Timestamp          time.Time     `json:"timestamp"`
	Metadata           BatchMetadata `json:"metadata"`
}

// DeriveBatchStatus computes the aggregate status: failed when every row
// failed, completed when none did, partial_success otherwise. An empty batch
// counts as completed.
func DeriveBatchStatus(successful, failed int) string {
	switch {
	case failed == 0:
		return BatchStatusCompleted
	case successful == 0:
		return BatchStatusFailed
	default:
		return BatchStatusPartialSuccess
	}
}
