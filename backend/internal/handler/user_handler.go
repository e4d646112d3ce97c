package handler

import (
	"errors"
	"net/http"

	response "promptlib-go-app/backend/internal/infra/common"
	appLogger "promptlib-go-app/backend/internal/infra/logger"
	usersvc "promptlib-go-app/backend/internal/service/user"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// UserHandler 负责用户资料接口。
type UserHandler struct {
	service *usersvc.Service
	logger  *zap.SugaredLogger
}

// NewUserHandler 创建用户 Handler。
func NewUserHandler(service *usersvc.Service) *UserHandler {
	return &UserHandler{service: service}
}

func (h *UserHandler) ensureLogger() *zap.SugaredLogger {
	if h.logger == nil {
		h.logger = appLogger.S().With("component", "user.handler")
	}
	return h.logger
}

// Me 返回当前登录用户的资料。
func (h *UserHandler) Me(c *gin.Context) {
	userID, ok := extractUserID(c)
	if !ok {
		response.Fail(c, http.StatusUnauthorized, response.ErrUnauthorized, "请先登录", nil)
		return
	}

	user, err := h.service.Profile(c.Request.Context(), userID)
	if err != nil {
		if errors.Is(err, usersvc.ErrUserNotFound) {
			response.Fail(c, http.StatusNotFound, response.ErrNotFound, "用户不存在", nil)
			return
		}
		h.ensureLogger().Errorw("load profile failed", "error", err, "user_id", userID)
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal, "查询失败", nil)
		return
	}

	response.Success(c, http.StatusOK, user, nil)
}
