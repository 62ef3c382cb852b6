package middleware

import (
	"bytes"
	"crypto/sha256"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
)

// bodyCacheWriter buffers the response body so a hash can be computed
// before anything is sent.
// bodyCacheWriter 缓冲响应正文以计算 ETag。
type bodyCacheWriter struct {
	gin.ResponseWriter
	body *bytes.Buffer
}

func (w *bodyCacheWriter) Write(b []byte) (int, error) {
	return w.body.Write(b)
}

func (w *bodyCacheWriter) WriteString(s string) (int, error) {
	return w.body.WriteString(s)
}

// ETagCache returns a Gin middleware for GET routes whose body rarely
// changes. A 200 body gets a SHA-256 ETag; a matching If-None-Match yields
// 304 Not Modified. Responses are private because they belong to a session.
// ETagCache 返回基于 ETag 的 HTTP 缓存中间件。
func ETagCache(maxAgeSeconds int) gin.HandlerFunc {
	cacheControl := fmt.Sprintf("private, max-age=%d, must-revalidate", maxAgeSeconds)

	return func(c *gin.Context) {
		if c.Request.Method != http.MethodGet {
			c.Next()
			return
		}

		original := c.Writer
		bcw := &bodyCacheWriter{body: &bytes.Buffer{}, ResponseWriter: original}
		c.Writer = bcw
		c.Next()
		c.Writer = original

		body := bcw.body.Bytes()
		if original.Status() == http.StatusOK && len(body) > 0 {
			etag := fmt.Sprintf(`"%x"`, sha256.Sum256(body))
			c.Header("ETag", etag)
			c.Header("Cache-Control", cacheControl)

			if c.GetHeader("If-None-Match") == etag {
				original.WriteHeader(http.StatusNotModified)
				original.WriteHeaderNow()
				return
			}
		}

		_, _ = original.Write(body)
	}
}
