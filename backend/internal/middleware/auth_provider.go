package middleware

import "github.com/gin-gonic/gin"

// Authenticator 抽象鉴权中间件，实现 Handle() 的结构体即可插入路由。
type Authenticator interface {
	Handle() gin.HandlerFunc
}

// OptionalAuthenticator 抽象可选鉴权：有令牌即注入身份，没有则按匿名放行。
type OptionalAuthenticator interface {
	OptionalHandle() gin.HandlerFunc
}
