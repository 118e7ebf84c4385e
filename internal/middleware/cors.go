package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

const (
	corsMethods = "GET, POST, OPTIONS"
	corsHeaders = "Content-Type"
	// Scripts read the download filename and size from these.
	corsExposed = "Content-Disposition, Content-Length"
	corsMaxAge  = "86400"
)

// originPolicy decides which Origin a response may be shared with.
type originPolicy struct {
	any     bool
	allowed map[string]struct{}
}

// newOriginPolicy parses a comma-separated origin list. An empty list or a "*" entry admits every origin.
func newOriginPolicy(list string) originPolicy {
	p := originPolicy{allowed: make(map[string]struct{})}
	for _, o := range strings.Split(list, ",") {
		switch o = strings.TrimSpace(o); o {
		case "":
		case "*":
			p.any = true
		default:
			p.allowed[o] = struct{}{}
		}
	}
	if len(p.allowed) == 0 {
		p.any = true
	}
	return p
}

// match returns the Access-Control-Allow-Origin value for origin, or "" when it is not admitted.
func (p originPolicy) match(origin string) string {
	if p.any {
		return "*"
	}
	if _, ok := p.allowed[origin]; ok && origin != "" {
		return origin
	}
	return ""
}

// CORS lets browser clients on the configured origins upload and download videos.
// Preflight requests end here with 204.
func CORS(allowedOrigins string) gin.HandlerFunc {
	policy := newOriginPolicy(allowedOrigins)
	return func(c *gin.Context) {
		if !policy.any {
			c.Header("Vary", "Origin")
		}
		if allow := policy.match(c.GetHeader("Origin")); allow != "" {
			h := c.Writer.Header()
			h.Set("Access-Control-Allow-Origin", allow)
			h.Set("Access-Control-Allow-Methods", corsMethods)
			h.Set("Access-Control-Allow-Headers", corsHeaders)
			h.Set("Access-Control-Expose-Headers", corsExposed)
			h.Set("Access-Control-Max-Age", corsMaxAge)
		}
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}
