package middleware

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/jwalitptl/intake-api/pkg/httputil"
)

// SizeLimit caps request bodies. Section payloads carry base64 files, so the
// limit is sized for uploads rather than plain JSON.
func SizeLimit(maxBodySize int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		if maxBodySize <= 0 {
			c.Next()
			return
		}
		if c.Request.ContentLength > maxBodySize {
			c.AbortWithStatusJSON(http.StatusRequestEntityTooLarge, httputil.Response{
				Error: &httputil.Error{
					Code:      http.StatusRequestEntityTooLarge,
					Message:   fmt.Sprintf("body size exceeds %d bytes", maxBodySize),
					RequestID: c.GetString(ContextRequestID),
				},
			})
			return
		}
		if c.Request.Body != nil {
			c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBodySize)
		}
		c.Next()
	}
}
