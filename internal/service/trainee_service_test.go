package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tenacademy/onboarding-api/internal/models"
	"github.com/tenacademy/onboarding-api/internal/strapi"
	appErrors "github.com/tenacademy/onboarding-api/pkg/errors"
)

type stubGateway struct {
	createUserErr    error
	registerErr      error
	createAllUserErr error
	createProfileErr error
	createTraineeErr error

	createUserCalls int
	registerCalls   int

	deleted []string

	deleteUserErr error
}

func (g *stubGateway) CreateUser(_ context.Context, _ strapi.UserData) (strapi.User, error) {
	g.createUserCalls++
	if g.createUserErr != nil {
		return strapi.User{}, g.createUserErr
	}
	return strapi.User{ID: "user-1"}, nil
}

func (g *stubGateway) RegisterUnconfirmed(_ context.Context, _ strapi.UserData) (strapi.User, error) {
	g.registerCalls++
	if g.registerErr != nil {
		return strapi.User{}, g.registerErr
	}
	return strapi.User{ID: "user-1"}, nil
}

func (g *stubGateway) CreateAllUser(_ context.Context, _ strapi.AllUserData) (string, error) {
	if g.createAllUserErr != nil {
		return "", g.createAllUserErr
	}
	return "alluser-1", nil
}

func (g *stubGateway) CreateProfile(_ context.Context, _ strapi.ProfileData) (string, error) {
	if g.createProfileErr != nil {
		return "", g.createProfileErr
	}
	return "profile-1", nil
}

func (g *stubGateway) CreateTrainee(_ context.Context, _ strapi.TraineeData) (string, error) {
	if g.createTraineeErr != nil {
		return "", g.createTraineeErr
	}
	return "trainee-1", nil
}

func (g *stubGateway) DeleteUser(_ context.Context, id string) error {
	g.deleted = append(g.deleted, "user:"+id)
	return g.deleteUserErr
}

func (g *stubGateway) DeleteAllUser(_ context.Context, id string) error {
	g.deleted = append(g.deleted, "alluser:"+id)
	return nil
}

func (g *stubGateway) DeleteProfile(_ context.Context, id string) error {
	g.deleted = append(g.deleted, "profile:"+id)
	return nil
}

func (g *stubGateway) DeleteTrainee(_ context.Context, id string) error {
	g.deleted = append(g.deleted, "trainee:"+id)
	return nil
}

func testTrainee() models.ProcessedTrainee {
	return models.ProcessedTrainee{
		Name:     "Ada Lovelace",
		Email:    "ada@example.com",
		Password: "pass-1A!",
		Status:   "Accepted",
		Role:     "trainee",
	}
}

func TestOnboardHappyPath(t *testing.T) {
	gw := &stubGateway{}
	svc := NewTraineeService(gw, nil)

	outcome, err := svc.Onboard(context.Background(), models.BatchConfig{IsMock: true}, testTrainee(), BatchRef{Number: 7, RecordID: "batch-rec-1"})
	require.NoError(t, err)

	assert.Equal(t, "user-1", outcome.UserID)
	assert.Equal(t, "alluser-1", outcome.AllUserID)
	assert.Equal(t, "profile-1", outcome.ProfileID)
	assert.Equal(t, "trainee-1", outcome.TraineeRecordID)
	assert.NotEmpty(t, outcome.TraineeUUID)
	assert.Empty(t, gw.deleted)
	assert.Equal(t, 1, gw.createUserCalls)
	assert.Equal(t, 0, gw.registerCalls)
}

func TestOnboardNonMockUsesUnconfirmedRegistration(t *testing.T) {
	gw := &stubGateway{}
	svc := NewTraineeService(gw, nil)

	_, err := svc.Onboard(context.Background(), models.BatchConfig{IsMock: false}, testTrainee(), BatchRef{Number: 7})
	require.NoError(t, err)

	assert.Equal(t, 0, gw.createUserCalls)
	assert.Equal(t, 1, gw.registerCalls)
}

func TestOnboardProfileFailureCompensatesInReverseOrder(t *testing.T) {
	gw := &stubGateway{createProfileErr: errors.New("boom")}
	svc := NewTraineeService(gw, nil)

	_, err := svc.Onboard(context.Background(), models.BatchConfig{IsMock: true}, testTrainee(), BatchRef{Number: 7})
	require.Error(t, err)

	assert.Equal(t, appErrors.ErrProfileCreation.Code, appErrors.CodeOf(err))
	assert.Equal(t, []string{"alluser:alluser-1", "user:user-1"}, gw.deleted)
}

func TestOnboardTraineeFailureCompensatesAllPriorSteps(t *testing.T) {
	gw := &stubGateway{createTraineeErr: errors.New("boom")}
	svc := NewTraineeService(gw, nil)

	_, err := svc.Onboard(context.Background(), models.BatchConfig{IsMock: true}, testTrainee(), BatchRef{Number: 7})
	require.Error(t, err)

	assert.Equal(t, appErrors.ErrTraineeCreation.Code, appErrors.CodeOf(err))
	assert.Equal(t, []string{"profile:profile-1", "alluser:alluser-1", "user:user-1"}, gw.deleted)
}

func TestOnboardUserFailureSkipsCompensation(t *testing.T) {
	gw := &stubGateway{createUserErr: errors.New("boom")}
	svc := NewTraineeService(gw, nil)

	_, err := svc.Onboard(context.Background(), models.BatchConfig{IsMock: true}, testTrainee(), BatchRef{Number: 7})
	require.Error(t, err)

	assert.Equal(t, appErrors.ErrUserCreation.Code, appErrors.CodeOf(err))
	assert.Empty(t, gw.deleted)
}

func TestOnboardStepErrorCarriesPayloadWithoutPassword(t *testing.T) {
	gw := &stubGateway{createAllUserErr: errors.New("boom")}
	svc := NewTraineeService(gw, nil)

	_, err := svc.Onboard(context.Background(), models.BatchConfig{IsMock: true}, testTrainee(), BatchRef{Number: 7})
	require.Error(t, err)

	stepErr := appErrors.FromError(err)
	assert.Equal(t, "alluser_creation", stepErr.Location)
	require.NotNil(t, stepErr.Data)
	assert.Equal(t, "ada@example.com", stepErr.Data["email"])
	assert.Equal(t, "user-1", stepErr.Data["user_id"])
	assert.NotContains(t, stepErr.Data, "password")

	gwUser := &stubGateway{createUserErr: errors.New("boom")}
	svcUser := NewTraineeService(gwUser, nil)
	_, err = svcUser.Onboard(context.Background(), models.BatchConfig{IsMock: true}, testTrainee(), BatchRef{Number: 7})
	require.Error(t, err)

	userErr := appErrors.FromError(err)
	assert.Equal(t, "user_creation", userErr.Location)
	assert.Equal(t, "ada@example.com", userErr.Data["email"])
	assert.NotContains(t, userErr.Data, "password")
}

func TestOnboardCompensationFailureKeepsStepError(t *testing.T) {
	gw := &stubGateway{
		createAllUserErr: errors.New("alluser down"),
		deleteUserErr:    errors.New("delete also down"),
	}
	svc := NewTraineeService(gw, nil)

	_, err := svc.Onboard(context.Background(), models.BatchConfig{IsMock: true}, testTrainee(), BatchRef{Number: 7})
	require.Error(t, err)

	// The step error is reported even when cleanup fails too.
	assert.Equal(t, appErrors.ErrAllUserCreation.Code, appErrors.CodeOf(err))
	assert.Contains(t, err.Error(), "alluser down")
	assert.Equal(t, []string{"user:user-1"}, gw.deleted)
}
