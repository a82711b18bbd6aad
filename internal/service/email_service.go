package service

import (
	"crypto/tls"
	"fmt"
	"io"

	mail "github.com/go-mail/mail/v2"
	"go.uber.org/zap"

	"github.com/tenacademy/onboarding-api/internal/models"
	"github.com/tenacademy/onboarding-api/pkg/config"
)

// EmailService sends transactional onboarding mail over SMTP. Every send is
// best-effort: failures are logged and reported as false, never raised into
// the orchestrator. An unconfigured sender short-circuits every send.
type EmailService struct {
	cfg    config.SMTPConfig
	logger *zap.Logger

	// send is swappable for tests.
	send func(messages ...*mail.Message) error
}

// NewEmailService builds the mail sender.
func NewEmailService(cfg config.SMTPConfig, logger *zap.Logger) *EmailService {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &EmailService{cfg: cfg, logger: logger}

	dialer := mail.NewDialer(cfg.Host, cfg.Port, cfg.User, cfg.Password)
	dialer.StartTLSPolicy = mail.MandatoryStartTLS
	dialer.TLSConfig = &tls.Config{
		ServerName:         cfg.Host,
		InsecureSkipVerify: cfg.SkipTLSVerify,
	}
	s.send = dialer.DialAndSend

	return s
}

func (s *EmailService) configured() bool {
	return s.cfg.Host != "" && s.cfg.From != ""
}

// SendBatchSummary mails the aggregate outcome of a batch run to the admin,
// attaching the per-row CSV report.
func (s *EmailService) SendBatchSummary(adminEmail string, result models.BatchResult, report []byte) bool {
	if !s.configured() {
		s.logger.Warn("batch summary email skipped: smtp sender not configured")
		return false
	}
	if adminEmail == "" {
		s.logger.Warn("batch summary email skipped: no admin email")
		return false
	}

	successRate := 0.0
	if result.TotalProcessed > 0 {
		successRate = float64(result.Successful) / float64(result.TotalProcessed) * 100
	}

	body := fmt.Sprintf(`Dear Administrator,

The batch processing for batch %s has been completed.

Processing Summary:
- Total Records: %d
- Successfully Processed: %d
- Failed: %d
- Success Rate: %.2f%%

Please find attached the detailed CSV report.

Best regards,
Trainee Onboarding Service
`, result.Batch, result.TotalProcessed, result.Successful, result.Failed, successRate)

	m := mail.NewMessage()
	m.SetHeader("From", s.cfg.From)
	m.SetHeader("To", adminEmail)
	m.SetHeader("Subject", fmt.Sprintf("Batch Processing Summary - Batch %s", result.Batch))
	m.SetBody("text/plain", body)
	if len(report) > 0 {
		m.Attach(fmt.Sprintf("batch_%s_details.csv", result.Batch), mail.SetCopyFunc(func(w io.Writer) error {
			_, err := w.Write(report)
			return err
		}))
	}

	if err := s.send(m); err != nil {
		s.logger.Error("batch summary email failed",
			zap.String("to", adminEmail),
			zap.String("batch", result.Batch),
			zap.Error(err))
		return false
	}

	s.logger.Info("batch summary email delivered",
		zap.String("to", adminEmail),
		zap.String("batch", result.Batch))
	return true
}

// SendTraineeWelcome mails login credentials to a newly created trainee.
func (s *EmailService) SendTraineeWelcome(email, username, pass, loginURL string) bool {
	if !s.configured() {
		s.logger.Warn("welcome email skipped: smtp sender not configured")
		return false
	}

	body := fmt.Sprintf(`Dear Trainee,

Your account has been successfully created on our training platform.

Here are your login credentials:
Username: %s
Password: %s

You can login at: %s

Please change your password after your first login.

Best regards,
The Training Team
`, username, pass, loginURL)

	m := mail.NewMessage()
	m.SetHeader("From", s.cfg.From)
	m.SetHeader("To", email)
	m.SetHeader("Subject", "Welcome to Our Training Platform")
	m.SetBody("text/plain", body)

	if err := s.send(m); err != nil {
		s.logger.Error("welcome email failed", zap.String("to", email), zap.Error(err))
		return false
	}

	s.logger.Info("welcome email delivered", zap.String("to", email))
	return true
}
