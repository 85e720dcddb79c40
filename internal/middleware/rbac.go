package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/levelup-edu/levelup-api/internal/models"
	appErrors "github.com/levelup-edu/levelup-api/pkg/errors"
	"github.com/levelup-edu/levelup-api/pkg/response"
)

// RequireRoles only lets callers holding one of roles through. It must run after JWT.
func RequireRoles(roles ...models.UserRole) gin.HandlerFunc {
	allowed := make(map[models.UserRole]struct{}, len(roles))
	for _, r := range roles {
		allowed[r] = struct{}{}
	}
	return func(c *gin.Context) {
		claims, ok := Claims(c)
		if !ok {
			response.Error(c, appErrors.ErrUnauthorized)
			c.Abort()
			return
		}
		if _, ok := allowed[claims.Role]; !ok {
			response.Error(c, appErrors.Clone(appErrors.ErrForbidden, string(claims.Role)+" role not permitted"))
			c.Abort()
			return
		}
		c.Next()
	}
}
