package handler

import (
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/tenacademy/onboarding-api/internal/dto"
	"github.com/tenacademy/onboarding-api/internal/service"
	appErrors "github.com/tenacademy/onboarding-api/pkg/errors"
	"github.com/tenacademy/onboarding-api/pkg/password"
	"github.com/tenacademy/onboarding-api/pkg/response"
)

// maxUploadBytes caps batch CSV uploads at 10 MiB.
const maxUploadBytes = 10 << 20

// TraineeHandler exposes the onboarding endpoints.
type TraineeHandler struct {
	batches *service.BatchService
	worker  *service.Worker
	logger  *zap.Logger
}

// NewTraineeHandler constructs handler.
func NewTraineeHandler(batches *service.BatchService, worker *service.Worker, logger *zap.Logger) *TraineeHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TraineeHandler{batches: batches, worker: worker, logger: logger}
}

// Single onboards one applicant synchronously.
func (h *TraineeHandler) Single(c *gin.Context) {
	var req dto.SingleTraineeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid request body"))
		return
	}

	cfg := req.ToConfig()
	if err := h.batches.PrepareConfig(&cfg); err != nil {
		response.Error(c, err)
		return
	}

	result, err := h.batches.ProcessSingle(c.Request.Context(), cfg, req.ToTrainee())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusCreated, "trainee onboarded", result)
}

// AdminSingle onboards one applicant and mails their credentials in the
// background. The password is fixed before the saga runs so the email can
// carry it even when the caller supplied none.
func (h *TraineeHandler) AdminSingle(c *gin.Context) {
	var req dto.SingleTraineeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid request body"))
		return
	}

	cfg := req.ToConfig()
	if err := h.batches.PrepareConfig(&cfg); err != nil {
		response.Error(c, err)
		return
	}
	if cfg.LoginURL == "" {
		cfg.LoginURL = originLoginURL(c)
	}

	trainee := req.ToTrainee()
	if trainee.Password == "" {
		trainee.Password = password.Generate(password.DefaultLength)
	}

	result, err := h.batches.ProcessSingle(c.Request.Context(), cfg, trainee)
	if err != nil {
		response.Error(c, err)
		return
	}

	if cfg.LoginURL != "" {
		err := h.worker.EnqueueWelcomeEmail(service.WelcomeEmailJob{
			Email:    result.Email,
			Username: result.Email,
			Password: trainee.Password,
			LoginURL: cfg.LoginURL,
		})
		if err != nil {
			h.logger.Warn("welcome email not queued", zap.String("email", result.Email), zap.Error(err))
		}
	}

	response.JSON(c, http.StatusCreated, "trainee onboarded", result)
}

// Batch accepts a CSV upload and queues it for asynchronous processing.
func (h *TraineeHandler) Batch(c *gin.Context) {
	var form dto.BatchForm
	if err := c.ShouldBind(&form); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid form data"))
		return
	}

	cfg, err := form.ToConfig()
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, err.Error()))
		return
	}
	if err := h.batches.PrepareConfig(&cfg); err != nil {
		response.Error(c, err)
		return
	}

	fileHeader, err := c.FormFile("file")
	if err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "file is required"))
		return
	}
	if fileHeader.Size > maxUploadBytes {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "file exceeds the 10MB upload limit"))
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "could not read uploaded file"))
		return
	}
	defer file.Close()

	content, err := io.ReadAll(io.LimitReader(file, maxUploadBytes+1))
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "could not read uploaded file"))
		return
	}

	jobID, err := h.worker.EnqueueBatch(cfg, content)
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrBatchProcessing.Code, http.StatusServiceUnavailable, "batch queue unavailable"))
		return
	}

	h.logger.Info("batch queued",
		zap.String("job_id", jobID),
		zap.String("batch", cfg.Batch),
		zap.String("file", fileHeader.Filename),
		zap.Int64("size", fileHeader.Size))

	response.Accepted(c, "batch accepted for processing",
		dto.BatchAccepted{Status: "processing", Batch: cfg.Batch, JobID: jobID},
		map[string]interface{}{
			"batch_info": map[string]interface{}{
				"file_name": fileHeader.Filename,
				"file_size": fileHeader.Size,
				"run_stage": cfg.RunStage,
				"is_mock":   cfg.IsMock,
			},
		})
}

// originLoginURL derives a login page from the calling frontend when the
// submission does not carry one.
func originLoginURL(c *gin.Context) string {
	if origin := c.GetHeader("Origin"); origin != "" {
		return origin + "/login"
	}
	if referer := c.GetHeader("Referer"); referer != "" {
		return referer
	}
	return ""
}
