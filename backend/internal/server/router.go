package server

import (
	"fmt"
	"strings"
	"time"

	"promptlib-go-app/backend/internal/handler"
	"promptlib-go-app/backend/internal/middleware"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// RouterOptions 汇总路由依赖，nil 字段对应的路由组不会注册。
type RouterOptions struct {
	AuthHandler       *handler.AuthHandler
	UserHandler       *handler.UserHandler
	PromptHandler     *handler.PromptHandler
	AdminStatsHandler *handler.AdminStatsHandler
	AuthMW            middleware.Authenticator
	OptionalAuthMW    middleware.OptionalAuthenticator
}

// NewRouter 构建应用的 Gin Engine，汇总所有 REST 接口与公共中间件配置。
func NewRouter(opts RouterOptions) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()

	r.Use(gin.Recovery())
	r.Use(cors.New(cors.Config{
		AllowAllOrigins:  false,
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization"},
		ExposeHeaders:    []string{"Content-Length", "Content-Type"},
		AllowCredentials: false,
		MaxAge:           12 * time.Hour,
		AllowOriginFunc: func(origin string) bool {
			if origin == "" {
				return false
			}
			if origin == "null" {
				return true
			}
			if strings.HasPrefix(origin, "http://localhost:") {
				return true
			}
			if strings.HasPrefix(origin, "http://127.0.0.1:") {
				return true
			}
			return false
		},
	}))
	r.Use(gin.LoggerWithConfig(gin.LoggerConfig{
		Formatter: gin.LogFormatter(func(params gin.LogFormatterParams) string {
			return fmt.Sprintf("%s - [%s] \"%s %s\" %d %s\n",
				params.ClientIP,
				params.TimeStamp.Format(time.RFC3339),
				params.Method,
				params.Path,
				params.StatusCode,
				params.Latency,
			)
		}),
	}))

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := r.Group("/api")
	{
		if opts.AuthHandler != nil {
			authGroup := api.Group("/auth")
			authGroup.GET("/captcha", opts.AuthHandler.Captcha)
			authGroup.POST("/register", opts.AuthHandler.Register)
			authGroup.POST("/login", opts.AuthHandler.Login)
			authGroup.POST("/refresh", opts.AuthHandler.Refresh)
			authGroup.POST("/logout", opts.AuthHandler.Logout)
		}

		// /api/users 下的路由需要登录才能访问。
		if opts.UserHandler != nil {
			userGroup := api.Group("/users")
			if opts.AuthMW != nil {
				userGroup.Use(opts.AuthMW.Handle())
			}
			userGroup.GET("/me", opts.UserHandler.Me)
		}

		if opts.PromptHandler != nil {
			// 列表与详情对匿名访客开放，可选鉴权用于填充点赞标记与本人可见范围。
			publicGroup := api.Group("/prompts")
			if opts.OptionalAuthMW != nil {
				publicGroup.Use(opts.OptionalAuthMW.OptionalHandle())
			}
			publicGroup.GET("", opts.PromptHandler.List)
			publicGroup.GET("/use-cases", opts.PromptHandler.UseCases)
			publicGroup.GET("/:id", opts.PromptHandler.Get)

			// 写操作一律要求登录。
			prompts := api.Group("/prompts")
			if opts.AuthMW != nil {
				prompts.Use(opts.AuthMW.Handle())
			}
			prompts.POST("", opts.PromptHandler.Submit)
			prompts.PATCH("/:id", opts.PromptHandler.Update)
			prompts.DELETE("/:id", opts.PromptHandler.Delete)
			prompts.POST("/:id/upvote", opts.PromptHandler.ToggleUpvote)
			prompts.POST("/:id/approve", opts.PromptHandler.Approve)
			prompts.POST("/:id/reject", opts.PromptHandler.Reject)
		}

		if opts.AdminStatsHandler != nil {
			admin := api.Group("/admin")
			if opts.AuthMW != nil {
				admin.Use(opts.AuthMW.Handle())
			}
			admin.GET("/overview", opts.AdminStatsHandler.Overview)
		}
	}

	return r
}
