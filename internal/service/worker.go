package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/tenacademy/onboarding-api/internal/models"
	"github.com/tenacademy/onboarding-api/pkg/jobs"
)

// Job types handled by the onboarding worker.
const (
	JobTypeBatch        = "onboarding.batch"
	JobTypeWelcomeEmail = "onboarding.welcome_email"
)

// BatchJob is the payload for a queued batch run.
type BatchJob struct {
	Config models.BatchConfig
	File   []byte
}

// WelcomeEmailJob is the payload for a queued credential email.
type WelcomeEmailJob struct {
	Email    string
	Username string
	Password string
	LoginURL string
}

// Worker dispatches queued jobs to the batch orchestrator and mailer. The
// HTTP layer enqueues and returns 202; results travel through the batch's
// own notification channels, not the queue.
type Worker struct {
	batches *BatchService
	email   Mailer
	queue   *jobs.Queue
	logger  *zap.Logger
}

// NewWorker wires a jobs queue around the orchestrator.
func NewWorker(batches *BatchService, email Mailer, queueCfg jobs.QueueConfig, logger *zap.Logger) *Worker {
	if logger == nil {
		logger = zap.NewNop()
	}
	w := &Worker{batches: batches, email: email, logger: logger}
	w.queue = jobs.NewQueue("onboarding", w.handle, queueCfg)
	return w
}

// Start launches the queue workers.
func (w *Worker) Start(ctx context.Context) { w.queue.Start(ctx) }

// Stop drains the queue workers.
func (w *Worker) Stop() { w.queue.Stop() }

// EnqueueBatch schedules a batch run and returns its job id.
func (w *Worker) EnqueueBatch(cfg models.BatchConfig, file []byte) (string, error) {
	id := uuid.NewString()
	err := w.queue.Enqueue(jobs.Job{
		ID:      id,
		Type:    JobTypeBatch,
		Payload: BatchJob{Config: cfg, File: file},
	})
	if err != nil {
		return "", err
	}
	return id, nil
}

// EnqueueWelcomeEmail schedules a credential email.
func (w *Worker) EnqueueWelcomeEmail(job WelcomeEmailJob) error {
	return w.queue.Enqueue(jobs.Job{
		ID:      uuid.NewString(),
		Type:    JobTypeWelcomeEmail,
		Payload: job,
	})
}

func (w *Worker) handle(ctx context.Context, job jobs.Job) error {
	switch job.Type {
	case JobTypeBatch:
		payload, ok := job.Payload.(BatchJob)
		if !ok {
			return fmt.Errorf("job %s: unexpected payload %T", job.ID, job.Payload)
		}
		start := time.Now()
		result := w.batches.Process(ctx, payload.Config, payload.File)
		w.logger.Info("batch job finished",
			zap.String("job_id", job.ID),
			zap.String("batch", payload.Config.Batch),
			zap.String("status", result.Status),
			zap.Duration("duration", time.Since(start)))
		return nil

	case JobTypeWelcomeEmail:
		payload, ok := job.Payload.(WelcomeEmailJob)
		if !ok {
			return fmt.Errorf("job %s: unexpected payload %T", job.ID, job.Payload)
		}
		if w.email == nil {
			return fmt.Errorf("job %s: no mail sender configured", job.ID)
		}
		w.email.SendTraineeWelcome(payload.Email, payload.Username, payload.Password, payload.LoginURL)
		return nil

	default:
		return fmt.Errorf("job %s: unknown type %q", job.ID, job.Type)
	}
}
