package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	promptdomain "promptlib-go-app/backend/internal/domain/prompt"
	userdomain "promptlib-go-app/backend/internal/domain/user"
	"promptlib-go-app/backend/internal/infra/ratelimit"
	"promptlib-go-app/backend/internal/middleware"
	"promptlib-go-app/backend/internal/repository"
	promptsvc "promptlib-go-app/backend/internal/service/prompt"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// promptHandlerFixture 把 handler、服务与底层存储组合成一个可发请求的测试环境。
type promptHandlerFixture struct {
	router  *gin.Engine
	service *promptsvc.Service
	db      *gorm.DB
}

// identityOverride 模拟鉴权中间件注入的请求身份。
type identityOverride struct {
	userID string
	role   string
}

func setupPromptHandler(t *testing.T) *promptHandlerFixture {
	t.Helper()
	gin.SetMode(gin.TestMode)

	dsn := "file:" + t.Name() + "?mode=memory&cache=shared"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("get sql db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	sqlDB.SetMaxIdleConns(1)
	t.Cleanup(func() { sqlDB.Close() })

	if err := db.AutoMigrate(&userdomain.User{}, &promptdomain.Prompt{}, &promptdomain.Upvote{}); err != nil {
		t.Fatalf("auto migrate: %v", err)
	}

	service := promptsvc.NewService(db, repository.NewUserRepository(db), zap.NewNop().Sugar(), nil)
	h := NewPromptHandler(service, ratelimit.NewMemoryLimiter(), PromptRateLimit{})
	h.logger = zap.NewNop().Sugar()

	router := gin.New()
	router.Use(func(c *gin.Context) {
		if userID := c.GetHeader("X-Test-User"); userID != "" {
			role := c.GetHeader("X-Test-Role")
			if role == "" {
				role = userdomain.RoleUser
			}
			c.Set(middleware.ContextUserIDKey, userID)
			c.Set(middleware.ContextRoleKey, role)
			c.Set(middleware.ContextIsAdminKey, role == userdomain.RoleAdmin)
		}
		c.Next()
	})

	group := router.Group("/api/prompts")
	group.GET("", h.List)
	group.GET("/use-cases", h.UseCases)
	group.GET("/:id", h.Get)
	group.POST("", h.Submit)
	group.PATCH("/:id", h.Update)
	group.DELETE("/:id", h.Delete)
	group.POST("/:id/upvote", h.ToggleUpvote)
	group.POST("/:id/approve", h.Approve)
	group.POST("/:id/reject", h.Reject)

	return &promptHandlerFixture{router: router, service: service, db: db}
}

func (f *promptHandlerFixture) seedUser(t *testing.T, name, role string) string {
	t.Helper()
	entity := &userdomain.User{
		ID:           uuid.NewString(),
		Name:         name,
		Email:        name + "@example.com",
		PasswordHash: "x",
		Role:         role,
	}
	if err := f.db.Create(entity).Error; err != nil {
		t.Fatalf("seed user: %v", err)
	}
	return entity.ID
}

func (f *promptHandlerFixture) seedPrompt(t *testing.T, authorID, status string) *promptdomain.Prompt {
	t.Helper()
	entity, err := f.service.Submit(context.Background(), promptsvc.SubmitInput{
		AuthorID: authorID,
		Title:    "标题-" + uuid.NewString()[:8],
		Content:  "正文",
	})
	if err != nil {
		t.Fatalf("seed prompt: %v", err)
	}
	if status != promptdomain.PromptStatusPending {
		if err := f.db.Model(&promptdomain.Prompt{}).Where("id = ?", entity.ID).Update("status", status).Error; err != nil {
			t.Fatalf("set status: %v", err)
		}
		entity.Status = status
	}
	return entity
}

func (f *promptHandlerFixture) do(t *testing.T, method, path string, body any, identity *identityOverride) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(payload)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if identity != nil {
		req.Header.Set("X-Test-User", identity.userID)
		req.Header.Set("X-Test-Role", identity.role)
	}

	recorder := httptest.NewRecorder()
	f.router.ServeHTTP(recorder, req)
	return recorder
}

func decodeData(t *testing.T, recorder *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var envelope struct {
		Success bool           `json:"success"`
		Data    map[string]any `json:"data"`
	}
	if err := json.Unmarshal(recorder.Body.Bytes(), &envelope); err != nil {
		t.Fatalf("decode response: %v (%s)", err, recorder.Body.String())
	}
	return envelope.Data
}

func TestSubmitRequiresLogin(t *testing.T) {
	fixture := setupPromptHandler(t)

	recorder := fixture.do(t, http.MethodPost, "/api/prompts", gin.H{"title": "t", "content": "c"}, nil)
	if recorder.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", recorder.Code)
	}
}

func TestSubmitCreatesPendingPrompt(t *testing.T) {
	fixture := setupPromptHandler(t)
	author := fixture.seedUser(t, "alice", userdomain.RoleUser)

	recorder := fixture.do(t, http.MethodPost, "/api/prompts", gin.H{
		"title":   "新提示词",
		"content": "正文内容",
	}, &identityOverride{userID: author, role: userdomain.RoleUser})

	if recorder.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", recorder.Code, recorder.Body.String())
	}
	data := decodeData(t, recorder)
	if data["status"] != promptdomain.PromptStatusPending {
		t.Fatalf("expected PENDING status, got %v", data["status"])
	}
	if data["use_case"] != promptdomain.UseCaseOther {
		t.Fatalf("expected Other use case, got %v", data["use_case"])
	}
}

func TestSubmitValidatesBody(t *testing.T) {
	fixture := setupPromptHandler(t)
	author := fixture.seedUser(t, "alice", userdomain.RoleUser)

	recorder := fixture.do(t, http.MethodPost, "/api/prompts", gin.H{"title": "只有标题"}, &identityOverride{userID: author, role: userdomain.RoleUser})
	if recorder.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", recorder.Code)
	}
}

func TestGetHidesInvisiblePrompt(t *testing.T) {
	fixture := setupPromptHandler(t)
	author := fixture.seedUser(t, "alice", userdomain.RoleUser)
	stranger := fixture.seedUser(t, "bob", userdomain.RoleUser)
	pending := fixture.seedPrompt(t, author, promptdomain.PromptStatusPending)

	// 匿名与陌生人都拿到 404。
	if recorder := fixture.do(t, http.MethodGet, "/api/prompts/"+pending.ID, nil, nil); recorder.Code != http.StatusNotFound {
		t.Fatalf("anonymous expected 404, got %d", recorder.Code)
	}
	if recorder := fixture.do(t, http.MethodGet, "/api/prompts/"+pending.ID, nil, &identityOverride{userID: stranger, role: userdomain.RoleUser}); recorder.Code != http.StatusNotFound {
		t.Fatalf("stranger expected 404, got %d", recorder.Code)
	}

	// 作者可以查看。
	if recorder := fixture.do(t, http.MethodGet, "/api/prompts/"+pending.ID, nil, &identityOverride{userID: author, role: userdomain.RoleUser}); recorder.Code != http.StatusOK {
		t.Fatalf("author expected 200, got %d", recorder.Code)
	}
}

func TestListAnonymousSeesApprovedOnly(t *testing.T) {
	fixture := setupPromptHandler(t)
	author := fixture.seedUser(t, "alice", userdomain.RoleUser)
	approved := fixture.seedPrompt(t, author, promptdomain.PromptStatusApproved)
	fixture.seedPrompt(t, author, promptdomain.PromptStatusPending)

	recorder := fixture.do(t, http.MethodGet, "/api/prompts", nil, nil)
	if recorder.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", recorder.Code)
	}

	data := decodeData(t, recorder)
	if int(data["total"].(float64)) != 1 {
		t.Fatalf("expected 1 visible prompt, got %v", data["total"])
	}
	items := data["items"].([]any)
	first := items[0].(map[string]any)
	if first["id"] != approved.ID {
		t.Fatalf("expected approved prompt, got %v", first["id"])
	}
}

func TestToggleUpvoteEndpoint(t *testing.T) {
	fixture := setupPromptHandler(t)
	author := fixture.seedUser(t, "alice", userdomain.RoleUser)
	voter := fixture.seedUser(t, "bob", userdomain.RoleUser)
	approved := fixture.seedPrompt(t, author, promptdomain.PromptStatusApproved)
	identity := &identityOverride{userID: voter, role: userdomain.RoleUser}

	recorder := fixture.do(t, http.MethodPost, "/api/prompts/"+approved.ID+"/upvote", nil, identity)
	if recorder.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", recorder.Code, recorder.Body.String())
	}
	data := decodeData(t, recorder)
	if data["liked"] != true || data["upvotes"].(float64) != 1 {
		t.Fatalf("unexpected toggle payload: %v", data)
	}

	recorder = fixture.do(t, http.MethodPost, "/api/prompts/"+approved.ID+"/upvote", nil, identity)
	data = decodeData(t, recorder)
	if data["liked"] != false || data["upvotes"].(float64) != 0 {
		t.Fatalf("unexpected toggle-back payload: %v", data)
	}

	// 匿名请求被拒。
	if recorder := fixture.do(t, http.MethodPost, "/api/prompts/"+approved.ID+"/upvote", nil, nil); recorder.Code != http.StatusUnauthorized {
		t.Fatalf("anonymous toggle expected 401, got %d", recorder.Code)
	}
}

func TestReviewEndpointsRequireAdmin(t *testing.T) {
	fixture := setupPromptHandler(t)
	author := fixture.seedUser(t, "alice", userdomain.RoleUser)
	admin := fixture.seedUser(t, "root", userdomain.RoleAdmin)
	pending := fixture.seedPrompt(t, author, promptdomain.PromptStatusPending)

	// 普通用户审核被拒。
	recorder := fixture.do(t, http.MethodPost, "/api/prompts/"+pending.ID+"/approve", nil, &identityOverride{userID: author, role: userdomain.RoleUser})
	if recorder.Code != http.StatusForbidden {
		t.Fatalf("non-admin approve expected 403, got %d", recorder.Code)
	}

	// 管理员通过。
	recorder = fixture.do(t, http.MethodPost, "/api/prompts/"+pending.ID+"/approve", nil, &identityOverride{userID: admin, role: userdomain.RoleAdmin})
	if recorder.Code != http.StatusOK {
		t.Fatalf("admin approve expected 200, got %d: %s", recorder.Code, recorder.Body.String())
	}
	data := decodeData(t, recorder)
	if data["status"] != promptdomain.PromptStatusApproved {
		t.Fatalf("expected APPROVED, got %v", data["status"])
	}

	// 管理员驳回。
	recorder = fixture.do(t, http.MethodPost, "/api/prompts/"+pending.ID+"/reject", nil, &identityOverride{userID: admin, role: userdomain.RoleAdmin})
	data = decodeData(t, recorder)
	if data["status"] != promptdomain.PromptStatusRejected {
		t.Fatalf("expected REJECTED, got %v", data["status"])
	}
}

func TestDeleteEndpointStatusMapping(t *testing.T) {
	fixture := setupPromptHandler(t)
	author := fixture.seedUser(t, "alice", userdomain.RoleUser)
	stranger := fixture.seedUser(t, "bob", userdomain.RoleUser)
	approved := fixture.seedPrompt(t, author, promptdomain.PromptStatusApproved)

	if recorder := fixture.do(t, http.MethodDelete, "/api/prompts/"+approved.ID, nil, &identityOverride{userID: stranger, role: userdomain.RoleUser}); recorder.Code != http.StatusForbidden {
		t.Fatalf("stranger delete expected 403, got %d", recorder.Code)
	}
	if recorder := fixture.do(t, http.MethodDelete, "/api/prompts/"+approved.ID, nil, &identityOverride{userID: author, role: userdomain.RoleUser}); recorder.Code != http.StatusNoContent {
		t.Fatalf("author delete expected 204, got %d", recorder.Code)
	}
	if recorder := fixture.do(t, http.MethodDelete, "/api/prompts/"+approved.ID, nil, &identityOverride{userID: author, role: userdomain.RoleUser}); recorder.Code != http.StatusNotFound {
		t.Fatalf("delete missing expected 404, got %d", recorder.Code)
	}
}

func TestUseCasesEndpoint(t *testing.T) {
	fixture := setupPromptHandler(t)

	recorder := fixture.do(t, http.MethodGet, "/api/prompts/use-cases", nil, nil)
	if recorder.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", recorder.Code)
	}
	data := decodeData(t, recorder)
	useCases := data["use_cases"].([]any)
	if len(useCases) == 0 {
		t.Fatalf("expected non-empty use case list")
	}
}

func TestSubmitRateLimited(t *testing.T) {
	fixture := setupPromptHandler(t)
	author := fixture.seedUser(t, "alice", userdomain.RoleUser)
	identity := &identityOverride{userID: author, role: userdomain.RoleUser}

	// 自定义低限额的 handler 验证 429 路径。
	service := fixture.service
	h := NewPromptHandler(service, ratelimit.NewMemoryLimiter(), PromptRateLimit{SubmitLimit: 1, SubmitWindow: DefaultSubmitWindow})
	h.logger = zap.NewNop().Sugar()
	router := gin.New()
	router.Use(func(c *gin.Context) {
		c.Set(middleware.ContextUserIDKey, identity.userID)
		c.Set(middleware.ContextRoleKey, identity.role)
		c.Set(middleware.ContextIsAdminKey, false)
		c.Next()
	})
	router.POST("/api/prompts", h.Submit)

	body, _ := json.Marshal(gin.H{"title": "t", "content": "c"})
	first := httptest.NewRecorder()
	router.ServeHTTP(first, httptest.NewRequest(http.MethodPost, "/api/prompts", bytes.NewReader(body)))
	if first.Code != http.StatusCreated {
		t.Fatalf("first submit expected 201, got %d", first.Code)
	}

	second := httptest.NewRecorder()
	router.ServeHTTP(second, httptest.NewRequest(http.MethodPost, "/api/prompts", bytes.NewReader(body)))
	if second.Code != http.StatusTooManyRequests {
		t.Fatalf("second submit expected 429, got %d", second.Code)
	}
}
