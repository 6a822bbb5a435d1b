package common

import (
	"github.com/gin-gonic/gin"
)

// Fail writes the {"detail": ...} error body the web client expects.
func Fail(c *gin.Context, httpStatus int, detail string) {
	c.AbortWithStatusJSON(httpStatus, gin.H{"detail": detail})
}
