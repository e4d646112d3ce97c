package bootstrap

import (
	"context"
	"net/http"
	"os"
	"strconv"

	"promptlib-go-app/backend/internal/app"
	"promptlib-go-app/backend/internal/handler"
	"promptlib-go-app/backend/internal/infra/captcha"
	"promptlib-go-app/backend/internal/infra/email"
	"promptlib-go-app/backend/internal/infra/metrics"
	"promptlib-go-app/backend/internal/infra/ratelimit"
	"promptlib-go-app/backend/internal/infra/token"
	"promptlib-go-app/backend/internal/middleware"
	"promptlib-go-app/backend/internal/repository"
	"promptlib-go-app/backend/internal/server"
	adminstatssvc "promptlib-go-app/backend/internal/service/adminstats"
	authsvc "promptlib-go-app/backend/internal/service/auth"
	promptsvc "promptlib-go-app/backend/internal/service/prompt"
	usersvc "promptlib-go-app/backend/internal/service/user"

	"go.uber.org/zap"
)

// Application 聚合构建完成的服务与路由，供 main 启动 HTTP 服务。
type Application struct {
	Resources *app.Resources
	AuthSvc   *authsvc.Service
	PromptSvc *promptsvc.Service
	Router    http.Handler
}

// BuildApplication 完成依赖装配：仓储、服务、中间件与路由。
func BuildApplication(ctx context.Context, logger *zap.SugaredLogger, resources *app.Resources) (*Application, error) {
	metrics.MustRegister()

	cfg := resources.Config

	userRepo := repository.NewUserRepository(resources.DB)
	promptRepo := repository.NewPromptRepository(resources.DB)
	upvoteRepo := repository.NewUpvoteRepository(resources.DB)
	statsRepo := repository.NewStatsRepository(resources.DB)

	tokens := token.NewJWTManager(cfg.JWTSecret, cfg.AccessTTL, cfg.RefreshTTL)

	var refreshStore authsvc.RefreshTokenStore
	if resources.Redis != nil {
		refreshStore = token.NewRedisRefreshTokenStore(resources.Redis, "")
	} else {
		refreshStore = token.NewMemoryRefreshTokenStore()
		logger.Infow("using in-memory refresh token store; tokens won't persist across restarts")
	}

	var limiter ratelimit.Limiter
	if resources.Redis != nil {
		limiter = ratelimit.NewRedisLimiter(resources.Redis, "")
	} else {
		limiter = ratelimit.NewMemoryLimiter()
	}

	captchaManager := initCaptchaManager(resources, logger)
	notifier := initModerationNotifier(logger)

	authService := authsvc.NewService(userRepo, tokens, refreshStore, captchaManager)
	authHandler := handler.NewAuthHandler(authService, limiter)

	userService := usersvc.NewService(userRepo)
	userHandler := handler.NewUserHandler(userService)

	promptService := promptsvc.NewService(resources.DB, userRepo, logger.With("component", "prompt.service"), notifier)
	promptHandler := handler.NewPromptHandler(promptService, limiter, handler.PromptRateLimit{})

	statsService := adminstatssvc.NewService(userRepo, promptRepo, upvoteRepo, statsRepo)
	statsHandler := handler.NewAdminStatsHandler(statsService)

	authMiddleware := middleware.NewAuthMiddleware(tokens)

	router := server.NewRouter(server.RouterOptions{
		AuthHandler:       authHandler,
		UserHandler:       userHandler,
		PromptHandler:     promptHandler,
		AdminStatsHandler: statsHandler,
		AuthMW:            authMiddleware,
		OptionalAuthMW:    authMiddleware,
	})

	return &Application{
		Resources: resources,
		AuthSvc:   authService,
		PromptSvc: promptService,
		Router:    router,
	}, nil
}

// initCaptchaManager 按环境开关装配验证码能力。
// CAPTCHA_ENABLED 未开启时返回 nil，注册流程跳过验证码校验。
func initCaptchaManager(resources *app.Resources, logger *zap.SugaredLogger) authsvc.CaptchaManager {
	enabled, _ := strconv.ParseBool(os.Getenv("CAPTCHA_ENABLED"))
	if !enabled {
		return nil
	}

	opts := captcha.LoadOptionsFromEnv()

	var store captcha.AnswerStore
	if resources.Redis != nil {
		store = captcha.NewRedisAnswerStore(resources.Redis, "")
	} else {
		store = captcha.NewMemoryAnswerStore()
		logger.Infow("captcha using in-memory answer store")
	}

	logger.Infow("captcha enabled", "ttl", opts.TTL)
	return captcha.NewManager(store, opts)
}

// initModerationNotifier 按环境配置选择审核通知通道：
// 优先阿里云 DirectMail，其次 SMTP，都未配置时返回 nil（服务层退化为日志）。
func initModerationNotifier(logger *zap.SugaredLogger) promptsvc.ModerationNotifier {
	aliyunCfg, aliyunEnabled, err := email.LoadAliyunConfigFromEnv()
	if err != nil {
		logger.Warnw("load aliyun email config failed", "error", err)
	} else if aliyunEnabled {
		sender, err := email.NewAliyunSender(aliyunCfg)
		if err != nil {
			logger.Warnw("init aliyun email sender failed", "error", err)
		} else {
			logger.Infow("moderation notices via aliyun directmail", "account", aliyunCfg.AccountName)
			return sender
		}
	}

	smtpCfg, smtpEnabled, err := email.LoadSMTPConfigFromEnv()
	if err != nil {
		logger.Warnw("load smtp config failed", "error", err)
		return nil
	}
	if !smtpEnabled {
		return nil
	}

	sender, err := email.NewSender(smtpCfg)
	if err != nil {
		logger.Warnw("init smtp sender failed", "error", err)
		return nil
	}
	logger.Infow("moderation notices via smtp", "host", smtpCfg.Host)
	return sender
}
