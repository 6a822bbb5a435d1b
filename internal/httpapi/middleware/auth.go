package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/suPer8Hu/content-pipeline/internal/auth"
	"github.com/suPer8Hu/content-pipeline/internal/common"
)

const SubjectKey = "auth_subject"

// AuthRequired accepts "Authorization: Bearer <jwt>" or, for EventSource
// clients that cannot set headers, an access_token query parameter.
func AuthRequired(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := ""
		if h := c.GetHeader("Authorization"); strings.HasPrefix(h, "Bearer ") {
			token = strings.TrimSpace(strings.TrimPrefix(h, "Bearer "))
		}
		if token == "" {
			token = c.Query("access_token")
		}
		if token == "" {
			common.Fail(c, http.StatusUnauthorized, "missing bearer token")
			return
		}

		sub, err := auth.ParseJWT(token, secret)
		if err != nil {
			common.Fail(c, http.StatusUnauthorized, "invalid token")
			return
		}
		c.Set(SubjectKey, sub)
		c.Next()
	}
}
