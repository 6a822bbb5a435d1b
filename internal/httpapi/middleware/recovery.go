package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/suPer8Hu/content-pipeline/internal/common"
)

func Recovery(l zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if r := recover(); r != nil {
				l.Error().
					Interface("panic", r).
					Str("path", c.Request.URL.Path).
					Str("request_id", c.GetString(RequestIDKey)).
					Msg("handler panicked")
				if !c.Writer.Written() {
					common.Fail(c, http.StatusInternalServerError, "internal server error")
				} else {
					c.Abort()
				}
			}
		}()
		c.Next()
	}
}
