package handler

import (
	"strings"

	"promptlib-go-app/backend/internal/middleware"
	promptsvc "promptlib-go-app/backend/internal/service/prompt"

	"github.com/gin-gonic/gin"
)

// extractUserID 读取鉴权中间件注入的用户 ID，匿名请求返回 false。
func extractUserID(c *gin.Context) (string, bool) {
	raw, exists := c.Get(middleware.ContextUserIDKey)
	if !exists {
		return "", false
	}
	id, ok := raw.(string)
	if !ok || strings.TrimSpace(id) == "" {
		return "", false
	}
	return id, true
}

// extractRole 读取请求身份的角色，匿名请求返回空串。
func extractRole(c *gin.Context) string {
	raw, exists := c.Get(middleware.ContextRoleKey)
	if !exists {
		return ""
	}
	role, _ := raw.(string)
	return role
}

// isAdmin 判断当前请求是否来自管理员。
func isAdmin(c *gin.Context) bool {
	raw, exists := c.Get(middleware.ContextIsAdminKey)
	if !exists {
		return false
	}
	flag, _ := raw.(bool)
	return flag
}

// viewerFromContext 组装服务层使用的访问身份，匿名请求得到零值 Viewer。
func viewerFromContext(c *gin.Context) promptsvc.Viewer {
	id, _ := extractUserID(c)
	return promptsvc.Viewer{ID: id, Role: extractRole(c)}
}
