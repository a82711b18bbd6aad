package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/tenacademy/onboarding-api/internal/models"
	appErrors "github.com/tenacademy/onboarding-api/pkg/errors"
	"github.com/tenacademy/onboarding-api/pkg/response"
)

// AdminChecker reports whether an identity may use admin endpoints.
type AdminChecker interface {
	IsAdmin(user models.AuthUser) bool
}

// RequireAdmin gates a route on an allow-listed role. It must run after
// Authenticate.
func RequireAdmin(checker AdminChecker) gin.HandlerFunc {
	return func(c *gin.Context) {
		user, ok := UserFrom(c)
		if !ok {
			response.Error(c, appErrors.Clone(appErrors.ErrAuth, "missing bearer token"))
			c.Abort()
			return
		}
		if !checker.IsAdmin(user) {
			response.Error(c, appErrors.Clone(appErrors.ErrForbidden, "administrator role required"))
			c.Abort()
			return
		}
		c.Next()
	}
}
