package middleware

import (
	"github.com/gin-gonic/gin"

	appctx "columbarium/internal/core/context"
)

// Origin records the client IP and user agent in the request context.
// Audit entries read them through appctx.GetOrigin.
func Origin() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := appctx.WithOrigin(c.Request.Context(), appctx.Origin{
			IP:        c.ClientIP(),
			UserAgent: c.Request.UserAgent(),
		})
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}
