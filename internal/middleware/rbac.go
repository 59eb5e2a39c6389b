package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/noah-isme/school-docs-api/internal/models"
	appErrors "github.com/noah-isme/school-docs-api/pkg/errors"
	"github.com/noah-isme/school-docs-api/pkg/response"
)

// RequireRoles gates a route to the given roles. It must run after JWT.
func RequireRoles(roles ...models.UserRole) gin.HandlerFunc {
	allowed := make(map[models.UserRole]struct{}, len(roles))
	for _, r := range roles {
		allowed[r] = struct{}{}
	}
	return func(c *gin.Context) {
		claims := CurrentUser(c)
		if claims == nil {
			response.Error(c, appErrors.ErrUnauthorized)
			c.Abort()
			return
		}
		if _, ok := allowed[claims.Role]; !ok {
			response.Error(c, appErrors.ErrForbidden)
			c.Abort()
			return
		}
		c.Next()
	}
}

// RequireStaff limits a route to staff and super stewards.
func RequireStaff() gin.HandlerFunc {
	return RequireRoles(models.RoleStaff, models.RoleSuperSteward)
}

// RequireSuperSteward limits a route to super stewards alone. The
// force-status escape hatch hangs off this gate; ordinary staff stay
// inside the transition graph.
func RequireSuperSteward() gin.HandlerFunc {
	return RequireRoles(models.RoleSuperSteward)
}
