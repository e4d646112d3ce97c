package middleware

import (
	"net/http"
	"strings"

	userdomain "promptlib-go-app/backend/internal/domain/user"
	"promptlib-go-app/backend/internal/service/auth"

	"github.com/gin-gonic/gin"
)

// 上下文键，handler 通过这些键读取请求身份。
const (
	ContextUserIDKey  = "userID"
	ContextRoleKey    = "role"
	ContextIsAdminKey = "isAdmin"
)

// AuthMiddleware 校验访问令牌并把请求身份写入上下文。
type AuthMiddleware struct {
	tokens auth.TokenManager
}

// NewAuthMiddleware 创建鉴权中间件实例。
func NewAuthMiddleware(tokens auth.TokenManager) *AuthMiddleware {
	return &AuthMiddleware{tokens: tokens}
}

// Handle 返回强制鉴权的 Gin 中间件，缺失或非法令牌一律 401。
func (m *AuthMiddleware) Handle() gin.HandlerFunc {
	return func(c *gin.Context) {
		identity, ok := m.parse(c)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid or missing token"})
			return
		}
		inject(c, identity)
		c.Next()
	}
}

// OptionalHandle 返回可选鉴权的中间件：令牌合法则注入身份，
// 缺失令牌按匿名访客继续，便于公开列表接口复用同一套 handler。
func (m *AuthMiddleware) OptionalHandle() gin.HandlerFunc {
	return func(c *gin.Context) {
		if identity, ok := m.parse(c); ok {
			inject(c, identity)
		}
		c.Next()
	}
}

// parse 从 Authorization 头解析 Bearer 访问令牌。
func (m *AuthMiddleware) parse(c *gin.Context) (auth.Identity, bool) {
	authHeader := c.GetHeader("Authorization")
	if authHeader == "" || !strings.HasPrefix(strings.ToLower(authHeader), "bearer ") {
		return auth.Identity{}, false
	}

	identity, err := m.tokens.ParseAccessToken(strings.TrimSpace(authHeader[7:]))
	if err != nil {
		return auth.Identity{}, false
	}
	return identity, true
}

func inject(c *gin.Context, identity auth.Identity) {
	c.Set(ContextUserIDKey, identity.UserID)
	c.Set(ContextRoleKey, identity.Role)
	c.Set(ContextIsAdminKey, identity.Role == userdomain.RoleAdmin)
}
