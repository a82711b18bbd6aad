package service

import (
	"context"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/tenacademy/onboarding-api/internal/models"
	"github.com/tenacademy/onboarding-api/internal/strapi"
	appErrors "github.com/tenacademy/onboarding-api/pkg/errors"
)

// cmsGateway is the subset of the Strapi client the onboarding saga needs.
type cmsGateway interface {
	CreateUser(ctx context.Context, data strapi.UserData) (strapi.User, error)
	RegisterUnconfirmed(ctx context.Context, data strapi.UserData) (strapi.User, error)
	CreateAllUser(ctx context.Context, data strapi.AllUserData) (string, error)
	CreateProfile(ctx context.Context, data strapi.ProfileData) (string, error)
	CreateTrainee(ctx context.Context, data strapi.TraineeData) (string, error)
	DeleteUser(ctx context.Context, id string) error
	DeleteAllUser(ctx context.Context, id string) error
	DeleteProfile(ctx context.Context, id string) error
	DeleteTrainee(ctx context.Context, id string) error
}

// BatchRef is a resolved batch: the numeric label and the CMS record id.
type BatchRef struct {
	Number   int
	RecordID string
}

// OnboardOutcome reports the resources created for one applicant.
type OnboardOutcome struct {
	UserID          string
	AllUserID       string
	ProfileID       string
	TraineeRecordID string
	TraineeUUID     string
}

// TraineeService runs the ordered, compensating creation sequence for one
// applicant: user -> all-user -> profile -> trainee. On any step failure the
// already-created resources are deleted in strict reverse order and the step
// error is returned. Compensation is best-effort: a failed delete is logged
// and swallowed so it never masks the original error, which means a failed
// run can leave orphaned CMS records.
type TraineeService struct {
	cms    cmsGateway
	logger *zap.Logger
}

// NewTraineeService constructs the onboarding saga service.
func NewTraineeService(cms cmsGateway, logger *zap.Logger) *TraineeService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TraineeService{cms: cms, logger: logger}
}

// Onboard creates all CMS records for one normalized applicant.
func (s *TraineeService) Onboard(ctx context.Context, cfg models.BatchConfig, t models.ProcessedTrainee, ref BatchRef) (OnboardOutcome, error) {
	created := models.CreatedResources{}

	userData := strapi.UserData{Name: t.Name, Email: t.Email, Password: t.Password}

	// Mock accounts register confirmed through GraphQL; real accounts go
	// through the unconfirmed REST path and complete confirmation later.
	var (
		user strapi.User
		err  error
	)
	if cfg.IsMock {
		user, err = s.cms.CreateUser(ctx, userData)
	} else {
		user, err = s.cms.RegisterUnconfirmed(ctx, userData)
	}
	if err != nil {
		return OnboardOutcome{}, stepError(appErrors.ErrUserCreation, "user_creation", err, map[string]interface{}{
			"name":    t.Name,
			"email":   t.Email,
			"is_mock": cfg.IsMock,
		})
	}
	created.UserID = user.ID

	allUserID, err := s.cms.CreateAllUser(ctx, strapi.AllUserData{
		Name:   t.Name,
		Email:  t.Email,
		Role:   t.Role,
		UserID: created.UserID,
		Batch:  ref.Number,
		Groups: t.Groups,
	})
	if err != nil {
		s.compensate(ctx, created)
		return OnboardOutcome{}, stepError(appErrors.ErrAllUserCreation, "alluser_creation", err, map[string]interface{}{
			"email":   t.Email,
			"role":    t.Role,
			"batch":   ref.Number,
			"user_id": created.UserID,
		})
	}
	created.AllUserID = allUserID

	firstName, surname := t.FirstLast()
	otherInfo := make(map[string]interface{}, len(t.OtherInfo)+1)
	for k, v := range t.OtherInfo {
		otherInfo[k] = v
	}
	if t.Vulnerable != "" {
		otherInfo["vulnerable"] = t.Vulnerable
	}

	profileID, err := s.cms.CreateProfile(ctx, strapi.ProfileData{
		FirstName:       firstName,
		Surname:         surname,
		Email:           t.Email,
		Nationality:     t.Nationality,
		Gender:          t.Gender,
		DateOfBirth:     t.DateOfBirth,
		Bio:             t.Bio,
		CityOfResidence: t.CityOfResidence,
		AllUserID:       allUserID,
		OtherInfo:       otherInfo,
	})
	if err != nil {
		s.compensate(ctx, created)
		return OnboardOutcome{}, stepError(appErrors.ErrProfileCreation, "profile_creation", err, map[string]interface{}{
			"email":      t.Email,
			"alluser_id": allUserID,
		})
	}
	created.ProfileID = profileID

	traineeUUID := uuid.NewString()
	traineeID, err := s.cms.CreateTrainee(ctx, strapi.TraineeData{
		Email:     t.Email,
		TraineeID: traineeUUID,
		Status:    t.Status,
		BatchID:   ref.RecordID,
		AllUserID: allUserID,
	})
	if err != nil {
		s.compensate(ctx, created)
		return OnboardOutcome{}, stepError(appErrors.ErrTraineeCreation, "trainee_creation", err, map[string]interface{}{
			"email":      t.Email,
			"alluser_id": allUserID,
			"batch_id":   ref.RecordID,
		})
	}
	created.TraineeID = traineeID

	return OnboardOutcome{
		UserID:          created.UserID,
		AllUserID:       created.AllUserID,
		ProfileID:       created.ProfileID,
		TraineeRecordID: created.TraineeID,
		TraineeUUID:     traineeUUID,
	}, nil
}

// compensate deletes created resources in strict reverse order, skipping ids
// that were never recorded. Delete failures are logged only.
func (s *TraineeService) compensate(ctx context.Context, created models.CreatedResources) {
	if created.TraineeID != "" {
		if err := s.cms.DeleteTrainee(ctx, created.TraineeID); err != nil {
			s.logger.Warn("compensation failed", zap.String("resource", "trainee"), zap.String("id", created.TraineeID), zap.Error(err))
		}
	}
	if created.ProfileID != "" {
		if err := s.cms.DeleteProfile(ctx, created.ProfileID); err != nil {
			s.logger.Warn("compensation failed", zap.String("resource", "profile"), zap.String("id", created.ProfileID), zap.Error(err))
		}
	}
	if created.AllUserID != "" {
		if err := s.cms.DeleteAllUser(ctx, created.AllUserID); err != nil {
			s.logger.Warn("compensation failed", zap.String("resource", "alluser"), zap.String("id", created.AllUserID), zap.Error(err))
		}
	}
	if created.UserID != "" {
		if err := s.cms.DeleteUser(ctx, created.UserID); err != nil {
			s.logger.Warn("compensation failed", zap.String("resource", "user"), zap.String("id", created.UserID), zap.Error(err))
		}
	}
}

// stepError tags a saga failure with the step it happened in and the
// non-secret parts of the step payload. Passwords never go into error data.
func stepError(base *appErrors.Error, location string, err error, data map[string]interface{}) *appErrors.Error {
	wrapped := appErrors.Wrap(err, base.Code, base.Status, base.Message)
	wrapped.Location = location
	wrapped.Data = data
	return wrapped
}
