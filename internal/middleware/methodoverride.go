package middleware

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

// MethodOverride rewrites a POST carrying `_method` (form field or JSON key)
// into the named HTTP method. Kept for clients that cannot send PUT/DELETE.
func MethodOverride() gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.Method == http.MethodPost {
			if m := overrideMethod(c); m != "" {
				c.Request.Method = m
			}
		}
		c.Next()
	}
}

func overrideMethod(c *gin.Context) string {
	ct := c.ContentType()
	switch {
	case strings.HasPrefix(ct, "application/json"):
		body, err := io.ReadAll(c.Request.Body)
		if err != nil {
			return ""
		}
		c.Request.Body = io.NopCloser(bytes.NewReader(body))
		var probe struct {
			Method string `json:"_method"`
		}
		if json.Unmarshal(body, &probe) != nil {
			return ""
		}
		return normalizeMethod(probe.Method)
	default:
		return normalizeMethod(c.PostForm("_method"))
	}
}

func normalizeMethod(m string) string {
	switch strings.ToUpper(strings.TrimSpace(m)) {
	case http.MethodPut:
		return http.MethodPut
	case http.MethodDelete:
		return http.MethodDelete
	case http.MethodPatch:
		return http.MethodPatch
	}
	return ""
}
