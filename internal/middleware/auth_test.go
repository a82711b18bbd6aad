package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tenacademy/onboarding-api/internal/models"
	appErrors "github.com/tenacademy/onboarding-api/pkg/errors"
)

type stubAuth struct {
	user     models.AuthUser
	err      error
	admin    bool
	runStage string
	token    string
}

func (s *stubAuth) Authenticate(_ context.Context, runStage, token string) (models.AuthUser, error) {
	s.runStage = runStage
	s.token = token
	if s.err != nil {
		return models.AuthUser{}, s.err
	}
	return s.user, nil
}

func (s *stubAuth) IsAdmin(models.AuthUser) bool { return s.admin }

func perform(auth *stubAuth, extra gin.HandlerFunc, req *http.Request) (*httptest.ResponseRecorder, bool) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	reached := false

	r := gin.New()
	handlers := []gin.HandlerFunc{Authenticate(auth)}
	if extra != nil {
		handlers = append(handlers, extra)
	}
	handlers = append(handlers, func(c *gin.Context) {
		reached = true
		c.Status(http.StatusOK)
	})
	r.POST("/protected", handlers...)
	r.ServeHTTP(w, req)
	return w, reached
}

func TestAuthenticateStoresIdentity(t *testing.T) {
	auth := &stubAuth{user: models.AuthUser{ID: "1", Role: "Staff"}}

	req, _ := http.NewRequest(http.MethodPost, "/protected?run_stage=staging", nil)
	req.Header.Set("Authorization", "Bearer token-1")

	w, reached := perform(auth, nil, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.True(t, reached)
	assert.Equal(t, "staging", auth.runStage)
	assert.Equal(t, "token-1", auth.token)
}

func TestAuthenticateMissingHeader(t *testing.T) {
	auth := &stubAuth{}

	req, _ := http.NewRequest(http.MethodPost, "/protected", nil)
	w, reached := perform(auth, nil, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.False(t, reached)
}

func TestAuthenticateInvalidToken(t *testing.T) {
	auth := &stubAuth{err: appErrors.Clone(appErrors.ErrAuth, "invalid authentication credentials")}

	req, _ := http.NewRequest(http.MethodPost, "/protected", nil)
	req.Header.Set("Authorization", "Bearer bad")
	w, reached := perform(auth, nil, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.False(t, reached)
}

func TestRequireAdminAllowsAllowListedRole(t *testing.T) {
	auth := &stubAuth{user: models.AuthUser{Role: "Staff"}, admin: true}

	req, _ := http.NewRequest(http.MethodPost, "/protected", nil)
	req.Header.Set("Authorization", "Bearer token-1")
	w, reached := perform(auth, RequireAdmin(auth), req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.True(t, reached)
}

func TestRequireAdminForbidsOtherRoles(t *testing.T) {
	auth := &stubAuth{user: models.AuthUser{Role: "user"}, admin: false}

	req, _ := http.NewRequest(http.MethodPost, "/protected", nil)
	req.Header.Set("Authorization", "Bearer token-1")
	w, reached := perform(auth, RequireAdmin(auth), req)

	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.False(t, reached)
}

func TestBearerToken(t *testing.T) {
	assert.Equal(t, "abc", bearerToken("Bearer abc"))
	assert.Equal(t, "abc", bearerToken("bearer abc"))
	assert.Equal(t, "", bearerToken("Basic abc"))
	assert.Equal(t, "", bearerToken(""))

	require.Equal(t, "", bearerToken("Bearer"))
}
