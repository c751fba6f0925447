package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/mni-microservices/project-service/pkg/logger"
)

// AuditLog records mutating requests (POST/PUT/PATCH/DELETE) with the caller
// who issued them. Bodies are not captured.
func AuditLog() gin.HandlerFunc {
	audit := logger.Component("audit")
	return func(c *gin.Context) {
		method := c.Request.Method
		// Only audit write operations
		if !isWriteMethod(method) {
			c.Next()
			return
		}

		c.Next()

		status := c.Writer.Status()
		module, action := parseRouteInfo(c.FullPath(), method)

		event := audit.Info()
		if status >= 400 {
			event = audit.Warn()
		}
		if userID := GetUserID(c); userID != uuid.Nil {
			event = event.Str("user_id", userID.String())
		}
		event.
			Str("username", GetUsername(c)).
			Str("module", module).
			Str("action", action).
			Str("path", c.Request.URL.Path).
			Int("status", status).
			Str("ip", c.ClientIP()).
			Msg(formatAuditMessage(GetUsername(c), method, c.Request.URL.Path, status))
	}
}

func isWriteMethod(method string) bool {
	switch method {
	case "POST", "PUT", "PATCH", "DELETE":
		return true
	}
	return false
}

// parseRouteInfo extracts module and action from a Gin route pattern.
// e.g. "/api/projects/:id/members/:userId" + "DELETE" gives module="members", action="delete"
func parseRouteInfo(fullPath, method string) (module, action string) {
	path := strings.TrimPrefix(fullPath, "/api/")

	// The module is the last static segment of the route.
	module = "unknown"
	for _, part := range strings.Split(path, "/") {
		if part != "" && !strings.HasPrefix(part, ":") {
			module = part
		}
	}

	switch method {
	case "POST":
		action = "create"
	case "PUT", "PATCH":
		action = "update"
	case "DELETE":
		action = "delete"
	default:
		action = strings.ToLower(method)
	}

	return module, action
}

func formatAuditMessage(username, method, path string, status int) string {
	var b strings.Builder
	if username == "" {
		username = "anonymous"
	}
	b.WriteString(username)
	b.WriteString(" ")
	b.WriteString(method)
	b.WriteString(" ")
	b.WriteString(path)
	if status >= 200 && status < 300 {
		b.WriteString(" ok")
	} else {
		b.WriteString(" failed")
	}
	return b.String()
}
