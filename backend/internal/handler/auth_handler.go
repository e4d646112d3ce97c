package handler

import (
	"errors"
	"net/http"
	"time"

	response "promptlib-go-app/backend/internal/infra/common"
	appLogger "promptlib-go-app/backend/internal/infra/logger"
	"promptlib-go-app/backend/internal/infra/ratelimit"
	authsvc "promptlib-go-app/backend/internal/service/auth"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const (
	// DefaultLoginLimit 控制单 IP 登录尝试的默认限额。
	DefaultLoginLimit = 10
	// DefaultLoginWindow 控制登录限流窗口。
	DefaultLoginWindow = 10 * time.Minute
)

// AuthHandler 负责注册、登录、续期、登出与验证码接口。
type AuthHandler struct {
	service     *authsvc.Service
	logger      *zap.SugaredLogger
	limiter     ratelimit.Limiter
	loginLimit  int
	loginWindow time.Duration
}

// NewAuthHandler 创建鉴权 Handler。
func NewAuthHandler(service *authsvc.Service, limiter ratelimit.Limiter) *AuthHandler {
	return &AuthHandler{
		service:     service,
		limiter:     limiter,
		loginLimit:  DefaultLoginLimit,
		loginWindow: DefaultLoginWindow,
	}
}

func (h *AuthHandler) ensureLogger() *zap.SugaredLogger {
	if h.logger == nil {
		h.logger = appLogger.S().With("component", "auth.handler")
	}
	return h.logger
}

func (h *AuthHandler) scope(operation string) *zap.SugaredLogger {
	return h.ensureLogger().With("operation", operation)
}

type registerRequest struct {
	Name        string `json:"name" binding:"required"`
	Email       string `json:"email" binding:"required,email"`
	Password    string `json:"password" binding:"required,min=8"`
	CaptchaID   string `json:"captcha_id"`
	CaptchaCode string `json:"captcha_code"`
}

// Register 注册新用户并直接返回 TokenPair。
func (h *AuthHandler) Register(c *gin.Context) {
	log := h.scope("register")

	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrBadRequest, "注册信息不完整或格式不正确", nil)
		return
	}

	user, tokens, err := h.service.Register(c.Request.Context(), authsvc.RegisterParams{
		Name:        req.Name,
		Email:       req.Email,
		Password:    req.Password,
		CaptchaID:   req.CaptchaID,
		CaptchaCode: req.CaptchaCode,
	})
	if err != nil {
		switch {
		case errors.Is(err, authsvc.ErrCaptchaRequired):
			response.Fail(c, http.StatusBadRequest, response.ErrCaptchaRequired, "请先完成验证码", nil)
		case errors.Is(err, authsvc.ErrCaptchaExpired):
			response.Fail(c, http.StatusBadRequest, response.ErrCaptchaExpired, "验证码已过期，请重新获取", nil)
		case errors.Is(err, authsvc.ErrCaptchaInvalid):
			response.Fail(c, http.StatusBadRequest, response.ErrCaptchaInvalid, "验证码不正确", nil)
		case errors.Is(err, authsvc.ErrEmailAndNameTaken),
			errors.Is(err, authsvc.ErrEmailTaken),
			errors.Is(err, authsvc.ErrNameTaken):
			response.Fail(c, http.StatusConflict, response.ErrConflict, err.Error(), nil)
		default:
			log.Errorw("register failed", "error", err)
			response.Fail(c, http.StatusInternalServerError, response.ErrInternal, "注册失败", nil)
		}
		return
	}

	response.Created(c, gin.H{"user": user, "tokens": tokens}, nil)
}

type loginRequest struct {
	Identifier string `json:"identifier" binding:"required"`
	Password   string `json:"password" binding:"required"`
}

// Login 登录接口，支持邮箱或用户名。
func (h *AuthHandler) Login(c *gin.Context) {
	log := h.scope("login")

	if h.limiter != nil {
		res, err := h.limiter.Allow(c.Request.Context(), "auth:login:"+c.ClientIP(), h.loginLimit, h.loginWindow)
		if err != nil {
			log.Warnw("login ratelimit failure", "error", err)
		} else if !res.Allowed {
			response.Fail(c, http.StatusTooManyRequests, response.ErrTooManyRequests, "尝试过于频繁，请稍后再试", gin.H{"retry_after_seconds": int(res.RetryAfter.Seconds())})
			return
		}
	}

	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrBadRequest, "登录信息不完整", nil)
		return
	}

	user, tokens, err := h.service.Login(c.Request.Context(), authsvc.LoginParams{
		Identifier: req.Identifier,
		Password:   req.Password,
	})
	if err != nil {
		if errors.Is(err, authsvc.ErrInvalidLogin) {
			response.Fail(c, http.StatusUnauthorized, response.ErrInvalidCredentials, "账号或密码错误", nil)
			return
		}
		log.Errorw("login failed", "error", err)
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal, "登录失败", nil)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"user": user, "tokens": tokens}, nil)
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token" binding:"required"`
}

// Refresh 用刷新令牌换取新的 TokenPair。
func (h *AuthHandler) Refresh(c *gin.Context) {
	log := h.scope("refresh")

	var req refreshRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrBadRequest, "缺少刷新令牌", nil)
		return
	}

	tokens, err := h.service.Refresh(c.Request.Context(), req.RefreshToken)
	if err != nil {
		switch {
		case errors.Is(err, authsvc.ErrRefreshTokenRequired),
			errors.Is(err, authsvc.ErrRefreshTokenInvalid),
			errors.Is(err, authsvc.ErrRefreshTokenExpired),
			errors.Is(err, authsvc.ErrRefreshTokenRevoked):
			response.Fail(c, http.StatusUnauthorized, response.ErrUnauthorized, "刷新令牌无效，请重新登录", nil)
		default:
			log.Errorw("refresh failed", "error", err)
			response.Fail(c, http.StatusInternalServerError, response.ErrInternal, "续期失败", nil)
		}
		return
	}

	response.Success(c, http.StatusOK, gin.H{"tokens": tokens}, nil)
}

// Logout 撤销刷新令牌。
func (h *AuthHandler) Logout(c *gin.Context) {
	log := h.scope("logout")

	var req refreshRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrBadRequest, "缺少刷新令牌", nil)
		return
	}

	if err := h.service.Logout(c.Request.Context(), req.RefreshToken); err != nil {
		switch {
		case errors.Is(err, authsvc.ErrRefreshTokenRequired), errors.Is(err, authsvc.ErrRefreshTokenInvalid):
			response.Fail(c, http.StatusBadRequest, response.ErrBadRequest, "刷新令牌无效", nil)
		default:
			log.Errorw("logout failed", "error", err)
			response.Fail(c, http.StatusInternalServerError, response.ErrInternal, "登出失败", nil)
		}
		return
	}

	response.NoContent(c)
}

// Captcha 生成注册验证码，返回 id 与 base64 图像。
func (h *AuthHandler) Captcha(c *gin.Context) {
	log := h.scope("captcha")

	if !h.service.CaptchaEnabled() {
		response.Success(c, http.StatusOK, gin.H{"enabled": false}, nil)
		return
	}

	id, b64, err := h.service.GenerateCaptcha(c.Request.Context(), c.ClientIP())
	if err != nil {
		if errors.Is(err, authsvc.ErrCaptchaRateLimited) {
			response.Fail(c, http.StatusTooManyRequests, response.ErrTooManyRequests, "验证码请求过于频繁", nil)
			return
		}
		log.Errorw("generate captcha failed", "error", err)
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal, "验证码生成失败", nil)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"enabled": true, "captcha_id": id, "image": b64}, nil)
}
