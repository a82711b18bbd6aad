package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/tenacademy/onboarding-api/internal/models"
	appErrors "github.com/tenacademy/onboarding-api/pkg/errors"
	"github.com/tenacademy/onboarding-api/pkg/response"
)

// Context keys set by the auth middleware.
const (
	ContextUserKey     = "auth_user"
	ContextRunStageKey = "run_stage"
)

// Authenticator resolves a bearer token to an identity for one run stage.
type Authenticator interface {
	Authenticate(ctx context.Context, runStage, token string) (models.AuthUser, error)
}

// Authenticate validates the bearer token against the CMS for the request's
// run stage and stores the resolved identity in the request context.
func Authenticate(auth Authenticator) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := bearerToken(c.GetHeader("Authorization"))
		if token == "" {
			response.Error(c, appErrors.Clone(appErrors.ErrAuth, "missing bearer token"))
			c.Abort()
			return
		}

		runStage := requestRunStage(c)
		user, err := auth.Authenticate(c.Request.Context(), runStage, token)
		if err != nil {
			response.Error(c, err)
			c.Abort()
			return
		}

		c.Set(ContextUserKey, user)
		c.Set(ContextRunStageKey, runStage)
		c.Next()
	}
}

// UserFrom retrieves the authenticated identity stored by Authenticate.
func UserFrom(c *gin.Context) (models.AuthUser, bool) {
	v, ok := c.Get(ContextUserKey)
	if !ok {
		return models.AuthUser{}, false
	}
	user, ok := v.(models.AuthUser)
	return user, ok
}

func bearerToken(header string) string {
	const prefix = "Bearer "
	if len(header) > len(prefix) && strings.EqualFold(header[:len(prefix)], prefix) {
		return strings.TrimSpace(header[len(prefix):])
	}
	return ""
}

// requestRunStage reads the stage the caller is targeting. Batch uploads
// carry it as a form field, single submissions as a query parameter.
func requestRunStage(c *gin.Context) string {
	if stage := c.Query("run_stage"); stage != "" {
		return stage
	}
	if c.Request.Method == http.MethodPost {
		if stage := c.PostForm("run_stage"); stage != "" {
			return stage
		}
	}
	return ""
}
