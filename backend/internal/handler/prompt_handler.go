package handler

import (
	"errors"
	"net/http"
	"time"

	promptdomain "promptlib-go-app/backend/internal/domain/prompt"
	response "promptlib-go-app/backend/internal/infra/common"
	appLogger "promptlib-go-app/backend/internal/infra/logger"
	"promptlib-go-app/backend/internal/infra/ratelimit"
	promptsvc "promptlib-go-app/backend/internal/service/prompt"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const (
	// DefaultSubmitLimit 控制单用户提交提示词的默认限额。
	DefaultSubmitLimit = 10
	// DefaultSubmitWindow 控制提交限流窗口。
	DefaultSubmitWindow = 30 * time.Minute
	// DefaultToggleLimit 控制单用户点赞切换的默认限额。
	DefaultToggleLimit = 60
	// DefaultToggleWindow 控制点赞限流窗口。
	DefaultToggleWindow = time.Minute
)

// PromptRateLimit 描述提示词接口的限流配置。
type PromptRateLimit struct {
	SubmitLimit  int
	SubmitWindow time.Duration
	ToggleLimit  int
	ToggleWindow time.Duration
}

// PromptHandler 负责提示词相关的 HTTP 接口。
type PromptHandler struct {
	service      *promptsvc.Service
	logger       *zap.SugaredLogger
	limiter      ratelimit.Limiter
	submitLimit  int
	submitWindow time.Duration
	toggleLimit  int
	toggleWindow time.Duration
}

// NewPromptHandler 创建提示词 Handler。
func NewPromptHandler(service *promptsvc.Service, limiter ratelimit.Limiter, cfg PromptRateLimit) *PromptHandler {
	if cfg.SubmitLimit <= 0 {
		cfg.SubmitLimit = DefaultSubmitLimit
	}
	if cfg.SubmitWindow <= 0 {
		cfg.SubmitWindow = DefaultSubmitWindow
	}
	if cfg.ToggleLimit <= 0 {
		cfg.ToggleLimit = DefaultToggleLimit
	}
	if cfg.ToggleWindow <= 0 {
		cfg.ToggleWindow = DefaultToggleWindow
	}
	return &PromptHandler{
		service:      service,
		limiter:      limiter,
		submitLimit:  cfg.SubmitLimit,
		submitWindow: cfg.SubmitWindow,
		toggleLimit:  cfg.ToggleLimit,
		toggleWindow: cfg.ToggleWindow,
	}
}

func (h *PromptHandler) ensureLogger() *zap.SugaredLogger {
	if h.logger == nil {
		h.logger = appLogger.S().With("component", "prompt.handler")
	}
	return h.logger
}

func (h *PromptHandler) scope(operation string) *zap.SugaredLogger {
	return h.ensureLogger().With("operation", operation)
}

// allow 执行限流判断，Redis 故障时放行并记录日志。
func (h *PromptHandler) allow(c *gin.Context, key string, limit int, window time.Duration) bool {
	if h.limiter == nil || limit <= 0 {
		return true
	}
	res, err := h.limiter.Allow(c.Request.Context(), key, limit, window)
	if err != nil {
		h.ensureLogger().Warnw("prompt ratelimit failure", "key", key, "error", err)
		return true
	}
	if res.Allowed {
		return true
	}
	retry := int(res.RetryAfter.Seconds())
	response.Fail(c, http.StatusTooManyRequests, response.ErrTooManyRequests, "请求过于频繁，请稍后再试", gin.H{"retry_after_seconds": retry})
	return false
}

// List 返回查看者可见的提示词列表。
// 匿名访客只能看到已通过审核的条目，管理员可以看到全部。
func (h *PromptHandler) List(c *gin.Context) {
	log := h.scope("list")

	filter := promptsvc.ListFilter{
		Viewer:    viewerFromContext(c),
		MineOnly:  c.Query("mine") == "true" || c.Query("mine") == "1",
		CreatedBy: c.Query("created_by"),
		UseCase:   c.Query("use_case"),
		Query:     c.Query("q"),
	}

	items, err := h.service.List(c.Request.Context(), filter)
	if err != nil {
		if errors.Is(err, promptsvc.ErrPermissionDenied) {
			response.Fail(c, http.StatusUnauthorized, response.ErrUnauthorized, "请先登录", nil)
			return
		}
		log.Errorw("list prompts failed", "error", err)
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal, "查询失败", nil)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"items": items, "total": len(items)}, nil)
}

// Get 返回单条提示词详情。
func (h *PromptHandler) Get(c *gin.Context) {
	log := h.scope("get")

	entity, err := h.service.Get(c.Request.Context(), c.Param("id"), viewerFromContext(c))
	if err != nil {
		if errors.Is(err, promptsvc.ErrPromptNotFound) {
			response.Fail(c, http.StatusNotFound, response.ErrNotFound, "提示词不存在", nil)
			return
		}
		log.Errorw("get prompt failed", "error", err)
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal, "查询失败", nil)
		return
	}

	response.Success(c, http.StatusOK, entity, nil)
}

type submitPromptRequest struct {
	Title   string `json:"title" binding:"required"`
	Content string `json:"content" binding:"required"`
	UseCase string `json:"use_case"`
	Source  string `json:"source"`
}

// Submit 提交新的提示词，进入待审状态。
func (h *PromptHandler) Submit(c *gin.Context) {
	log := h.scope("submit")

	userID, ok := extractUserID(c)
	if !ok {
		response.Fail(c, http.StatusUnauthorized, response.ErrUnauthorized, "请先登录", nil)
		return
	}

	if !h.allow(c, "prompt:submit:"+userID, h.submitLimit, h.submitWindow) {
		return
	}

	var req submitPromptRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrBadRequest, "标题和正文不能为空", nil)
		return
	}

	entity, err := h.service.Submit(c.Request.Context(), promptsvc.SubmitInput{
		AuthorID: userID,
		Title:    req.Title,
		Content:  req.Content,
		UseCase:  req.UseCase,
		Source:   req.Source,
	})
	if err != nil {
		switch {
		case errors.Is(err, promptsvc.ErrTitleRequired), errors.Is(err, promptsvc.ErrContentRequired):
			response.Fail(c, http.StatusBadRequest, response.ErrBadRequest, err.Error(), nil)
		default:
			log.Errorw("submit prompt failed", "error", err)
			response.Fail(c, http.StatusInternalServerError, response.ErrInternal, "提交失败", nil)
		}
		return
	}

	response.Created(c, entity, nil)
}

type updatePromptRequest struct {
	Title   *string `json:"title"`
	Content *string `json:"content"`
	UseCase *string `json:"use_case"`
	Source  *string `json:"source"`
}

// Update 编辑提示词，作者编辑会触发重新审核。
func (h *PromptHandler) Update(c *gin.Context) {
	log := h.scope("update")

	if _, ok := extractUserID(c); !ok {
		response.Fail(c, http.StatusUnauthorized, response.ErrUnauthorized, "请先登录", nil)
		return
	}

	var req updatePromptRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrBadRequest, "请求体格式不正确", nil)
		return
	}

	entity, err := h.service.Update(c.Request.Context(), promptsvc.UpdateInput{
		PromptID: c.Param("id"),
		Editor:   viewerFromContext(c),
		Title:    req.Title,
		Content:  req.Content,
		UseCase:  req.UseCase,
		Source:   req.Source,
	})
	if err != nil {
		switch {
		case errors.Is(err, promptsvc.ErrPromptNotFound):
			response.Fail(c, http.StatusNotFound, response.ErrNotFound, "提示词不存在", nil)
		case errors.Is(err, promptsvc.ErrPermissionDenied):
			response.Fail(c, http.StatusForbidden, response.ErrForbidden, "没有操作权限", nil)
		case errors.Is(err, promptsvc.ErrTitleRequired), errors.Is(err, promptsvc.ErrContentRequired):
			response.Fail(c, http.StatusBadRequest, response.ErrBadRequest, err.Error(), nil)
		default:
			log.Errorw("update prompt failed", "error", err)
			response.Fail(c, http.StatusInternalServerError, response.ErrInternal, "更新失败", nil)
		}
		return
	}

	response.Success(c, http.StatusOK, entity, nil)
}

// Delete 删除提示词及其全部点赞明细。
func (h *PromptHandler) Delete(c *gin.Context) {
	log := h.scope("delete")

	if _, ok := extractUserID(c); !ok {
		response.Fail(c, http.StatusUnauthorized, response.ErrUnauthorized, "请先登录", nil)
		return
	}

	err := h.service.Delete(c.Request.Context(), c.Param("id"), viewerFromContext(c))
	if err != nil {
		switch {
		case errors.Is(err, promptsvc.ErrPromptNotFound):
			response.Fail(c, http.StatusNotFound, response.ErrNotFound, "提示词不存在", nil)
		case errors.Is(err, promptsvc.ErrPermissionDenied):
			response.Fail(c, http.StatusForbidden, response.ErrForbidden, "没有操作权限", nil)
		default:
			log.Errorw("delete prompt failed", "error", err)
			response.Fail(c, http.StatusInternalServerError, response.ErrInternal, "删除失败", nil)
		}
		return
	}

	response.NoContent(c)
}

// ToggleUpvote 切换点赞状态，返回最新票数与当前用户的点赞标记。
func (h *PromptHandler) ToggleUpvote(c *gin.Context) {
	log := h.scope("toggle_upvote")

	userID, ok := extractUserID(c)
	if !ok {
		response.Fail(c, http.StatusUnauthorized, response.ErrUnauthorized, "请先登录", nil)
		return
	}

	if !h.allow(c, "prompt:toggle:"+userID, h.toggleLimit, h.toggleWindow) {
		return
	}

	result, err := h.service.ToggleUpvote(c.Request.Context(), userID, c.Param("id"))
	if err != nil {
		switch {
		case errors.Is(err, promptsvc.ErrPromptNotFound):
			response.Fail(c, http.StatusNotFound, response.ErrNotFound, "提示词不存在", nil)
		default:
			log.Errorw("toggle upvote failed", "error", err)
			response.Fail(c, http.StatusInternalServerError, response.ErrInternal, "操作失败", nil)
		}
		return
	}

	response.Success(c, http.StatusOK, result, nil)
}

// Approve 审核通过，仅管理员可调用。
func (h *PromptHandler) Approve(c *gin.Context) {
	h.review(c, promptdomain.PromptStatusApproved)
}

// Reject 审核驳回，仅管理员可调用。
func (h *PromptHandler) Reject(c *gin.Context) {
	h.review(c, promptdomain.PromptStatusRejected)
}

func (h *PromptHandler) review(c *gin.Context, status string) {
	log := h.scope("review")

	if _, ok := extractUserID(c); !ok {
		response.Fail(c, http.StatusUnauthorized, response.ErrUnauthorized, "请先登录", nil)
		return
	}
	if !isAdmin(c) {
		response.Fail(c, http.StatusForbidden, response.ErrForbidden, "仅管理员可以审核", nil)
		return
	}

	entity, err := h.service.Review(c.Request.Context(), promptsvc.ReviewInput{
		PromptID: c.Param("id"),
		Reviewer: viewerFromContext(c),
		Status:   status,
	})
	if err != nil {
		switch {
		case errors.Is(err, promptsvc.ErrPromptNotFound):
			response.Fail(c, http.StatusNotFound, response.ErrNotFound, "提示词不存在", nil)
		case errors.Is(err, promptsvc.ErrPermissionDenied):
			response.Fail(c, http.StatusForbidden, response.ErrForbidden, "仅管理员可以审核", nil)
		case errors.Is(err, promptsvc.ErrReviewStatusInvalid):
			response.Fail(c, http.StatusBadRequest, response.ErrBadRequest, "审核状态不合法", nil)
		default:
			log.Errorw("review prompt failed", "error", err)
			response.Fail(c, http.StatusInternalServerError, response.ErrInternal, "审核失败", nil)
		}
		return
	}

	response.Success(c, http.StatusOK, entity, nil)
}

// UseCases 返回可选的用途分类列表。
func (h *PromptHandler) UseCases(c *gin.Context) {
	response.Success(c, http.StatusOK, gin.H{"use_cases": h.service.UseCases()}, nil)
}
