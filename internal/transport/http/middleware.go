package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/sushistage/internal/core"
)

// IdentityMiddleware rejects requests until a user has logged in to the store.
func IdentityMiddleware(st *core.Store, logger *zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, ok := st.CurrentUser(); !ok {
			logger.Debug().Str("path", c.Request.URL.Path).Msg("request without identity")
			c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "no identity", Code: core.ErrCodeNoIdentity})
			c.Abort()
			return
		}
		c.Next()
	}
}

// LoggerMiddleware creates a middleware that logs HTTP requests.
func LoggerMiddleware(logger *zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		// Process request
		c.Next()

		// Log after request
		logger.Info().
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Int("status", c.Writer.Status()).
			Msg("http request")
	}
}
