package handler

import (
	"net/http"
	"strconv"

	response "promptlib-go-app/backend/internal/infra/common"
	appLogger "promptlib-go-app/backend/internal/infra/logger"
	adminstatssvc "promptlib-go-app/backend/internal/service/adminstats"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// AdminStatsHandler 负责管理端运营概览接口。
type AdminStatsHandler struct {
	service *adminstatssvc.Service
	logger  *zap.SugaredLogger
}

// NewAdminStatsHandler 创建统计 Handler。
func NewAdminStatsHandler(service *adminstatssvc.Service) *AdminStatsHandler {
	return &AdminStatsHandler{service: service}
}

func (h *AdminStatsHandler) ensureLogger() *zap.SugaredLogger {
	if h.logger == nil {
		h.logger = appLogger.S().With("component", "admin_stats.handler")
	}
	return h.logger
}

// Overview 返回全量计数与最近若干天的按日数据，仅管理员可访问。
func (h *AdminStatsHandler) Overview(c *gin.Context) {
	if _, ok := extractUserID(c); !ok {
		response.Fail(c, http.StatusUnauthorized, response.ErrUnauthorized, "请先登录", nil)
		return
	}
	if !isAdmin(c) {
		response.Fail(c, http.StatusForbidden, response.ErrForbidden, "仅管理员可以查看", nil)
		return
	}

	days := 7
	if raw := c.Query("days"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 && parsed <= 90 {
			days = parsed
		}
	}

	overview, err := h.service.Overview(c.Request.Context(), days)
	if err != nil {
		h.ensureLogger().Errorw("load overview failed", "error", err)
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal, "查询失败", nil)
		return
	}

	response.Success(c, http.StatusOK, overview, nil)
}
