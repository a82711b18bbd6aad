package service

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/tenacademy/onboarding-api/internal/models"
	appErrors "github.com/tenacademy/onboarding-api/pkg/errors"
	"github.com/tenacademy/onboarding-api/pkg/export"
)

var (
	validate       = validator.New()
	loginURLScheme = regexp.MustCompile(`^https?://`)
)

// Onboarder runs the creation saga for one normalized applicant.
type Onboarder interface {
	Onboard(ctx context.Context, cfg models.BatchConfig, t models.ProcessedTrainee, ref BatchRef) (OnboardOutcome, error)
}

// BatchResolver maps a batch label to its CMS record.
type BatchResolver interface {
	Resolve(ctx context.Context, label string) (BatchRef, error)
}

// CallbackNotifier delivers a finished batch result to a callback URL.
type CallbackNotifier interface {
	NotifyCallback(ctx context.Context, result models.BatchResult) bool
}

// Mailer sends the notification emails attached to a batch run.
type Mailer interface {
	SendBatchSummary(adminEmail string, result models.BatchResult, report []byte) bool
	SendTraineeWelcome(email, username, pass, loginURL string) bool
}

// BatchService drives the full onboarding pipeline for one uploaded CSV:
// parse, validate, per-row saga, aggregation, then best-effort webhook and
// email notifications. Rows are processed strictly in file order; no row's
// failure aborts the batch.
type BatchService struct {
	sagaFor      func(runStage string) (Onboarder, error)
	directoryFor func(runStage string) (BatchResolver, error)
	webhookFor   func(cfg models.BatchConfig) (CallbackNotifier, error)
	email        Mailer
	exporter     *export.CSVExporter
	metrics      *MetricsService
	logger       *zap.Logger
}

// BatchServiceDeps wires the orchestrator's collaborators.
type BatchServiceDeps struct {
	SagaFor      func(runStage string) (Onboarder, error)
	DirectoryFor func(runStage string) (BatchResolver, error)
	WebhookFor   func(cfg models.BatchConfig) (CallbackNotifier, error)
	Email        Mailer
	Metrics      *MetricsService
	Logger       *zap.Logger
}

// NewBatchService constructs the orchestrator.
func NewBatchService(deps BatchServiceDeps) *BatchService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &BatchService{
		sagaFor:      deps.SagaFor,
		directoryFor: deps.DirectoryFor,
		webhookFor:   deps.WebhookFor,
		email:        deps.Email,
		exporter:     export.NewCSVExporter(),
		metrics:      deps.Metrics,
		logger:       logger,
	}
}

// PrepareConfig applies defaults and validates run parameters. It is called
// at the HTTP boundary so a bad submission is rejected before the 202 ack.
func (s *BatchService) PrepareConfig(cfg *models.BatchConfig) error {
	if cfg.Delimiter == "" {
		cfg.Delimiter = ","
	}
	if utf8.RuneCountInString(cfg.Delimiter) != 1 {
		return appErrors.Clone(appErrors.ErrValidation, "delimiter must be a single character")
	}
	if cfg.Encoding == "" {
		cfg.Encoding = "utf-8"
	}
	if !strings.EqualFold(cfg.Encoding, "utf-8") && !strings.EqualFold(cfg.Encoding, "utf8") {
		return appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unsupported encoding %q: only utf-8 uploads are accepted", cfg.Encoding))
	}
	if cfg.ChunkSize <= 0 {
		cfg.ChunkSize = 20
	}
	if cfg.Role == "" {
		cfg.Role = "trainee"
	}
	if cfg.LoginURL != "" && !loginURLScheme.MatchString(cfg.LoginURL) {
		return appErrors.Clone(appErrors.ErrValidation, "login_url must be a valid HTTP(S) URL")
	}
	// Unsigned webhooks are not sent; a callback needs a secret up front.
	if cfg.CallbackURL != "" && cfg.WebhookSecret == "" {
		return appErrors.Clone(appErrors.ErrValidation, "webhook_secret is required when callback_url is set")
	}
	if err := validate.Struct(cfg); err != nil {
		return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid batch configuration")
	}
	return nil
}

// Process runs one batch end to end and dispatches notifications. It always
// returns a BatchResult; batch-level failures are encoded in it rather than
// raised.
func (s *BatchService) Process(ctx context.Context, cfg models.BatchConfig, file []byte) models.BatchResult {
	start := time.Now()
	s.logger.Info("batch processing started",
		zap.String("batch", cfg.Batch),
		zap.String("run_stage", cfg.RunStage),
		zap.Bool("is_mock", cfg.IsMock))

	result := s.run(ctx, cfg, file)

	s.logger.Info("batch processing finished",
		zap.String("batch", cfg.Batch),
		zap.String("status", result.Status),
		zap.Int("total", result.TotalProcessed),
		zap.Int("successful", result.Successful),
		zap.Int("failed", result.Failed),
		zap.Duration("duration", time.Since(start)))

	if s.metrics != nil {
		s.metrics.ObserveBatch(result.Status)
	}

	s.notify(ctx, cfg, result)
	return result
}

// ProcessSingle onboards one applicant synchronously, sharing the batch
// pipeline's normalization and saga. The result is shaped like a batch row.
func (s *BatchService) ProcessSingle(ctx context.Context, cfg models.BatchConfig, trainee models.TraineeRow) (models.RowResult, error) {
	directory, err := s.directoryFor(cfg.RunStage)
	if err != nil {
		return models.RowResult{}, appErrors.Wrap(err, appErrors.ErrBatchProcessing.Code, appErrors.ErrBatchProcessing.Status, "unknown run stage")
	}
	ref, err := directory.Resolve(ctx, cfg.Batch)
	if err != nil {
		return models.RowResult{}, appErrors.Wrap(err, appErrors.ErrBatchProcessing.Code, appErrors.ErrBatchProcessing.Status, "could not resolve batch")
	}
	saga, err := s.sagaFor(cfg.RunStage)
	if err != nil {
		return models.RowResult{}, appErrors.Wrap(err, appErrors.ErrBatchProcessing.Code, appErrors.ErrBatchProcessing.Status, "unknown run stage")
	}

	processor := NewProcessor(cfg)
	processed, err := processor.ProcessRow(traineeToRow(trainee))
	if err != nil {
		s.observeRow(models.RowStatusFailed)
		return models.RowResult{}, err
	}

	outcome, err := saga.Onboard(ctx, cfg, processed, ref)
	if err != nil {
		s.observeRow(models.RowStatusFailed)
		return models.RowResult{}, err
	}
	s.observeRow(models.RowStatusSuccess)

	result := models.RowResult{
		Row:       1,
		Name:      processed.Name,
		Email:     processed.Email,
		Status:    models.RowStatusSuccess,
		TraineeID: outcome.TraineeRecordID,
	}
	if cfg.IsMock {
		result.Password = processed.Password
	}
	return result, nil
}

func (s *BatchService) observeRow(status string) {
	if s.metrics != nil {
		s.metrics.ObserveRow(strings.ToLower(status))
	}
}

func traineeToRow(t models.TraineeRow) map[string]string {
	row := map[string]string{
		"name":              t.Name,
		"email":             t.Email,
		"password":          t.Password,
		"nationality":       t.Nationality,
		"gender":            t.Gender,
		"date_of_birth":     t.DateOfBirth,
		"vulnerable":        t.Vulnerable,
		"city_of_residence": t.CityOfResidence,
		"bio":               t.Bio,
		"status":            t.Status,
	}
	for k, v := range t.Extra {
		row[CanonicalColumn(k)] = v
	}
	return row
}

func (s *BatchService) run(ctx context.Context, cfg models.BatchConfig, file []byte) models.BatchResult {
	rows, appErr := s.parseCSV(cfg, file)
	if appErr != nil {
		return s.batchFailure(cfg, appErr)
	}

	// A header-only file is a valid, empty batch.
	if len(rows) == 0 {
		return s.compile(cfg, 0, nil, nil)
	}

	directory, err := s.directoryFor(cfg.RunStage)
	if err != nil {
		return s.batchFailure(cfg, appErrors.Wrap(err, appErrors.ErrBatchProcessing.Code, appErrors.ErrBatchProcessing.Status, "unknown run stage"))
	}
	ref, err := directory.Resolve(ctx, cfg.Batch)
	if err != nil {
		return s.batchFailure(cfg, appErrors.Wrap(err, appErrors.ErrBatchProcessing.Code, appErrors.ErrBatchProcessing.Status, "could not resolve batch"))
	}

	saga, err := s.sagaFor(cfg.RunStage)
	if err != nil {
		return s.batchFailure(cfg, appErrors.Wrap(err, appErrors.ErrBatchProcessing.Code, appErrors.ErrBatchProcessing.Status, "unknown run stage"))
	}

	processor := NewProcessor(cfg)

	chunk := cfg.ChunkSize
	if chunk <= 0 {
		chunk = 20
	}

	var successful, failed []models.RowResult
	for i, row := range rows {
		rowNum := i + 1

		result := s.processRow(ctx, cfg, processor, saga, ref, row, rowNum)
		if result.Status == models.RowStatusSuccess {
			successful = append(successful, result)
		} else {
			failed = append(failed, result)
		}
		s.observeRow(result.Status)

		if rowNum%chunk == 0 {
			s.logger.Info("batch progress",
				zap.String("batch", cfg.Batch),
				zap.Int("processed", rowNum),
				zap.Int("total", len(rows)))
		}
	}

	return s.compile(cfg, len(rows), successful, failed)
}

// processRow settles exactly one row: validation failures and saga failures
// both land in a Failed RowResult and never abort the batch.
func (s *BatchService) processRow(ctx context.Context, cfg models.BatchConfig, processor *Processor, saga Onboarder, ref BatchRef, row map[string]string, rowNum int) models.RowResult {
	rawName := strings.TrimSpace(rowValue(row, "name"))
	rawEmail := strings.TrimSpace(rowValue(row, "email"))
	if rawName == "" || rawEmail == "" {
		return failedRow(rowNum, rawName, rawEmail, appErrors.Clone(appErrors.ErrValidation, "name and email are required fields"))
	}

	processed, err := processor.ProcessRow(row)
	if err != nil {
		s.logger.Warn("row rejected",
			zap.String("batch", cfg.Batch),
			zap.Int("row", rowNum),
			zap.String("email", rawEmail),
			zap.Error(err))
		return failedRow(rowNum, rawName, rawEmail, err)
	}

	outcome, err := saga.Onboard(ctx, cfg, processed, ref)
	if err != nil {
		s.logger.Error("row onboarding failed",
			zap.String("batch", cfg.Batch),
			zap.Int("row", rowNum),
			zap.String("email", processed.Email),
			zap.Error(err))
		return failedRow(rowNum, processed.Name, processed.Email, err)
	}

	result := models.RowResult{
		Row:       rowNum,
		Name:      processed.Name,
		Email:     processed.Email,
		Status:    models.RowStatusSuccess,
		TraineeID: outcome.TraineeRecordID,
	}
	// Credentials are only disclosed for mock accounts.
	if cfg.IsMock {
		result.Password = processed.Password
	}
	return result
}

// parseCSV decodes the upload and enforces the required column set.
func (s *BatchService) parseCSV(cfg models.BatchConfig, file []byte) ([]map[string]string, *appErrors.Error) {
	if len(bytes.TrimSpace(file)) == 0 {
		return nil, appErrors.Clone(appErrors.ErrEmptyFile, "uploaded file is empty")
	}

	reader := csv.NewReader(bytes.NewReader(file))
	reader.Comma, _ = utf8.DecodeRuneInString(cfg.Delimiter)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	records, err := reader.ReadAll()
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "could not parse CSV file")
	}
	if len(records) == 0 {
		return nil, appErrors.Clone(appErrors.ErrEmptyFile, "uploaded file has no header row")
	}

	headers := make([]string, len(records[0]))
	seen := make(map[string]struct{}, len(records[0]))
	for i, h := range records[0] {
		headers[i] = CanonicalColumn(h)
		seen[headers[i]] = struct{}{}
	}

	var missing []string
	for _, required := range cfg.Required() {
		if _, ok := seen[CanonicalColumn(required)]; !ok {
			missing = append(missing, required)
		}
	}
	if len(missing) > 0 {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("missing required columns: %s", strings.Join(missing, ", ")))
	}

	rows := make([]map[string]string, 0, len(records)-1)
	for _, record := range records[1:] {
		row := make(map[string]string, len(headers))
		for i, header := range headers {
			if i < len(record) {
				row[header] = record[i]
			}
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func (s *BatchService) compile(cfg models.BatchConfig, total int, successful, failed []models.RowResult) models.BatchResult {
	if successful == nil {
		successful = []models.RowResult{}
	}
	if failed == nil {
		failed = []models.RowResult{}
	}

	errors := make([]models.RowError, 0, len(failed))
	for _, row := range failed {
		errors = append(errors, models.RowError{Row: row.Row, Email: row.Email, ErrorMessage: row.ErrorMessage})
	}

	return models.BatchResult{
		Status:             models.DeriveBatchStatus(len(successful), len(failed)),
		TotalProcessed:     total,
		Successful:         len(successful),
		Failed:             len(failed),
		SuccessfulTrainees: successful,
		FailedTrainees:     failed,
		Errors:             errors,
		Batch:              cfg.Batch,
		Timestamp:          time.Now().UTC(),
		Metadata: models.BatchMetadata{
			RunStage: cfg.RunStage,
			Role:     cfg.Role,
			GroupID:  cfg.GroupID,
		},
	}
}

// batchFailure produces the error-shaped result used when the whole batch is
// rejected before any row is processed.
func (s *BatchService) batchFailure(cfg models.BatchConfig, appErr *appErrors.Error) models.BatchResult {
	s.logger.Error("batch processing failed",
		zap.String("batch", cfg.Batch),
		zap.String("error_type", appErr.Code),
		zap.Error(appErr))

	return models.BatchResult{
		Status:             models.BatchStatusFailed,
		Error:              appErr.Message,
		ErrorType:          appErr.Code,
		TotalProcessed:     0,
		Successful:         0,
		Failed:             0,
		SuccessfulTrainees: []models.RowResult{},
		FailedTrainees: []models.RowResult{{
			Row:          0,
			Name:         "Batch Error",
			Email:        "N/A",
			Status:       models.RowStatusFailed,
			ErrorType:    appErr.Code,
			ErrorMessage: appErr.Message,
		}},
		Errors:    []models.RowError{{Row: 0, Email: "N/A", ErrorMessage: appErr.Message}},
		Batch:     cfg.Batch,
		Timestamp: time.Now().UTC(),
		Metadata: models.BatchMetadata{
			RunStage: cfg.RunStage,
			Role:     cfg.Role,
			GroupID:  cfg.GroupID,
		},
	}
}

// notify dispatches the webhook first, then admin email, then mock welcome
// emails. Notifier failures never change the already-computed result.
func (s *BatchService) notify(ctx context.Context, cfg models.BatchConfig, result models.BatchResult) {
	if cfg.CallbackURL != "" && s.webhookFor != nil {
		notifier, err := s.webhookFor(cfg)
		if err != nil {
			s.logger.Error("webhook notifier unavailable", zap.String("batch", cfg.Batch), zap.Error(err))
		} else {
			delivered := notifier.NotifyCallback(ctx, result)
			if s.metrics != nil {
				s.metrics.ObserveWebhook(delivered)
			}
		}
	}

	if s.email == nil {
		return
	}

	if cfg.AdminEmail != "" {
		report, err := s.buildReport(cfg, result)
		if err != nil {
			s.logger.Error("report rendering failed", zap.String("batch", cfg.Batch), zap.Error(err))
			report = nil
		}
		s.email.SendBatchSummary(cfg.AdminEmail, result, report)
	}

	// Welcome emails carry credentials, so they are restricted to mock runs.
	if cfg.IsMock && cfg.LoginURL != "" {
		for _, trainee := range result.SuccessfulTrainees {
			if trainee.Email == "" {
				continue
			}
			s.email.SendTraineeWelcome(trainee.Email, trainee.Email, trainee.Password, cfg.LoginURL)
		}
	}
}

// buildReport renders the per-row CSV attachment for the admin summary.
func (s *BatchService) buildReport(cfg models.BatchConfig, result models.BatchResult) ([]byte, error) {
	headers := []string{"row", "name", "email", "status", "error_type", "error_message"}
	if cfg.IsMock {
		headers = append(headers, "password")
	}

	rows := make([]map[string]string, 0, len(result.SuccessfulTrainees)+len(result.FailedTrainees))
	appendRow := func(r models.RowResult) {
		row := map[string]string{
			"row":           fmt.Sprintf("%d", r.Row),
			"name":          r.Name,
			"email":         r.Email,
			"status":        r.Status,
			"error_type":    r.ErrorType,
			"error_message": r.ErrorMessage,
		}
		if cfg.IsMock {
			row["password"] = r.Password
		}
		rows = append(rows, row)
	}
	for _, r := range result.SuccessfulTrainees {
		appendRow(r)
	}
	for _, r := range result.FailedTrainees {
		appendRow(r)
	}

	return s.exporter.Render(export.Dataset{Headers: headers, Rows: rows})
}

func failedRow(rowNum int, name, email string, err error) models.RowResult {
	appErr := appErrors.FromError(err)
	return models.RowResult{
		Row:          rowNum,
		Name:         fallback(name, "Unknown"),
		Email:        fallback(email, "Unknown"),
		Status:       models.RowStatusFailed,
		ErrorType:    appErr.Code,
		ErrorMessage: appErr.Message,
	}
}

func rowValue(row map[string]string, key string) string {
	if v, ok := row[key]; ok {
		return v
	}
	return ""
}

func fallback(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
