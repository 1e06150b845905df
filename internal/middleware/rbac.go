package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/noah-isme/civic-issue-api/internal/models"
	appErrors "github.com/noah-isme/civic-issue-api/pkg/errors"
	"github.com/noah-isme/civic-issue-api/pkg/response"
)

// RequireRoles lets a request through only when the authenticated user holds one of roles.
func RequireRoles(roles ...models.UserRole) gin.HandlerFunc {
	allowed := make(map[models.UserRole]struct{}, len(roles))
	for _, r := range roles {
		allowed[r] = struct{}{}
	}
	return func(c *gin.Context) {
		claims := Claims(c)
		if claims == nil {
			response.Error(c, appErrors.ErrUnauthorized)
			c.Abort()
			return
		}
		if _, ok := allowed[claims.Role]; !ok {
			response.Error(c, appErrors.Clone(appErrors.ErrForbidden, "requires role "+roleList(roles)))
			c.Abort()
			return
		}
		c.Next()
	}
}

func roleList(roles []models.UserRole) string {
	out := ""
	for i, r := range roles {
		if i > 0 {
			out += " or "
		}
		out += string(r)
	}
	return out
}
