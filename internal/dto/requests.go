package dto

import (
	"encoding/json"
	"fmt"

	"github.com/tenacademy/onboarding-api/internal/models"
)

// RunConfig is the JSON shape of single-submission run parameters.
type RunConfig struct {
	RunStage string `json:"run_stage"`
	Batch    string `json:"batch" binding:"required"`
	Role     string `json:"role"`
	GroupID  string `json:"group_id"`
	IsMock   bool   `json:"is_mock"`
	LoginURL string `json:"login_url"`
}

// TraineeInput is one applicant submitted as JSON.
type TraineeInput struct {
	Name            string            `json:"name" binding:"required"`
	Email           string            `json:"email" binding:"required"`
	Password        string            `json:"password"`
	Nationality     string            `json:"nationality"`
	Gender          string            `json:"gender"`
	DateOfBirth     string            `json:"date_of_birth"`
	Vulnerable      string            `json:"vulnerable"`
	CityOfResidence string            `json:"city_of_residence"`
	Bio             string            `json:"bio"`
	Status          string            `json:"status"`
	Extra           map[string]string `json:"extra"`
}

// SingleTraineeRequest onboards one applicant synchronously.
type SingleTraineeRequest struct {
	Config  RunConfig    `json:"config" binding:"required"`
	Trainee TraineeInput `json:"trainee" binding:"required"`
}

// ToConfig maps the request to run parameters.
func (r SingleTraineeRequest) ToConfig() models.BatchConfig {
	return models.BatchConfig{
		RunStage: r.Config.RunStage,
		Batch:    r.Config.Batch,
		Role:     r.Config.Role,
		GroupID:  r.Config.GroupID,
		IsMock:   r.Config.IsMock,
		LoginURL: r.Config.LoginURL,
	}
}

// ToTrainee maps the applicant payload to the pipeline's raw row form.
func (r SingleTraineeRequest) ToTrainee() models.TraineeRow {
	t := r.Trainee
	return models.TraineeRow{
		Name:            t.Name,
		Email:           t.Email,
		Password:        t.Password,
		Nationality:     t.Nationality,
		Gender:          t.Gender,
		DateOfBirth:     t.DateOfBirth,
		Vulnerable:      t.Vulnerable,
		CityOfResidence: t.CityOfResidence,
		Bio:             t.Bio,
		Status:          t.Status,
		Extra:           t.Extra,
	}
}

// BatchForm is the multipart form accompanying a CSV upload.
type BatchForm struct {
	RunStage  string `form:"run_stage"`
	Batch     string `form:"batch" binding:"required"`
	Role      string `form:"role"`
	GroupID   string `form:"group_id"`
	Delimiter string `form:"delimiter"`
	Encoding  string `form:"encoding"`
	ChunkSize int    `form:"chunk_size"`
	IsMock    bool   `form:"is_mock"`
	LoginURL  string `form:"login_url"`

	AdminEmail string `form:"admin_email"`

	CallbackURL    string `form:"callback_url"`
	WebhookSecret  string `form:"webhook_secret"`
	WebhookHeaders string `form:"webhook_headers"`
	RetryCount     int    `form:"retry_count"`
	RetryDelay     int    `form:"retry_delay"`

	RequiredColumns []string `form:"required_columns"`
}

// ToConfig maps the form to run parameters. webhook_headers arrives as a
// JSON object of header name to value.
func (f BatchForm) ToConfig() (models.BatchConfig, error) {
	cfg := models.BatchConfig{
		RunStage:        f.RunStage,
		Batch:           f.Batch,
		Role:            f.Role,
		GroupID:         f.GroupID,
		Delimiter:       f.Delimiter,
		Encoding:        f.Encoding,
		ChunkSize:       f.ChunkSize,
		IsMock:          f.IsMock,
		LoginURL:        f.LoginURL,
		AdminEmail:      f.AdminEmail,
		CallbackURL:     f.CallbackURL,
		WebhookSecret:   f.WebhookSecret,
		RetryCount:      f.RetryCount,
		RetryDelay:      f.RetryDelay,
		RequiredColumns: f.RequiredColumns,
	}
	if f.WebhookHeaders != "" {
		headers := map[string]string{}
		if err := json.Unmarshal([]byte(f.WebhookHeaders), &headers); err != nil {
			return models.BatchConfig{}, fmt.Errorf("webhook_headers must be a JSON object: %w", err)
		}
		cfg.WebhookHeaders = headers
	}
	return cfg, nil
}
