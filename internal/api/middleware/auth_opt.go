package middleware

import (
	"strings"

	"Bazaar/internal/pkg/security"

	"github.com/gin-gonic/gin"
)

// AuthOptionalMiddleware 可选鉴权：解析成功注入 UID，失败或缺失则 UID 为 0
func AuthOptionalMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set(UserIDKey, uint64(0))

		authHeader := c.GetHeader("Authorization")
		if strings.HasPrefix(authHeader, "Bearer ") {
			if claims, err := security.ValidateToken(strings.TrimPrefix(authHeader, "Bearer ")); err == nil {
				c.Set(UserIDKey, claims.UserID)
				c.Set(RolesKey, claims.Roles)
			}
		}

		c.Next()
	}
}
