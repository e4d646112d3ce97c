package auth_test

import (
	"context"
	"errors"
	"testing"
	"time"

	userdomain "promptlib-go-app/backend/internal/domain/user"
	"promptlib-go-app/backend/internal/infra/captcha"
	"promptlib-go-app/backend/internal/infra/token"
	"promptlib-go-app/backend/internal/repository"
	"promptlib-go-app/backend/internal/service/auth"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// setupAuthService 构建鉴权服务的测试实例，使用内存 sqlite 与内存刷新令牌存储。
func setupAuthService(t *testing.T, cm auth.CaptchaManager) (*auth.Service, *repository.UserRepository) {
	t.Helper()

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

	if err := db.AutoMigrate(&userdomain.User{}); err != nil {
		t.Fatalf("auto migrate: %v", err)
	}

	users := repository.NewUserRepository(db)
	tm := token.NewJWTManager("test-secret", time.Hour, 24*time.Hour)
	store := token.NewMemoryRefreshTokenStore()
	return auth.NewService(users, tm, store, cm), users
}

func TestRegisterAndLogin(t *testing.T) {
	service, users := setupAuthService(t, nil)
	ctx := context.Background()

	registered, tokens, err := service.Register(ctx, auth.RegisterParams{
		Name:     "alice",
		Email:    "alice@example.com",
		Password: "secret-password",
	})
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if registered.Role != userdomain.RoleUser {
		t.Fatalf("expected default USER role, got %s", registered.Role)
	}
	if tokens.AccessToken == "" || tokens.RefreshToken == "" {
		t.Fatalf("expected non-empty token pair")
	}
	if err := bcrypt.CompareHashAndPassword([]byte(registered.PasswordHash), []byte("secret-password")); err != nil {
		t.Fatalf("password hash mismatch: %v", err)
	}

	// 邮箱登录
	loggedIn, _, err := service.Login(ctx, auth.LoginParams{Identifier: "alice@example.com", Password: "secret-password"})
	if err != nil {
		t.Fatalf("login by email: %v", err)
	}
	if loggedIn.ID != registered.ID {
		t.Fatalf("login returned wrong user")
	}
	if loggedIn.LastLoginAt == nil {
		t.Fatalf("expected last login timestamp to be set")
	}

	// 用户名登录
	if _, _, err := service.Login(ctx, auth.LoginParams{Identifier: "alice", Password: "secret-password"}); err != nil {
		t.Fatalf("login by name: %v", err)
	}

	stored, err := users.FindByEmail(ctx, "alice@example.com")
	if err != nil {
		t.Fatalf("find by email: %v", err)
	}
	if stored.LastLoginAt == nil {
		t.Fatalf("expected persisted last login timestamp")
	}
}

func TestRegisterDuplicateChecks(t *testing.T) {
	service, _ := setupAuthService(t, nil)
	ctx := context.Background()

	if _, _, err := service.Register(ctx, auth.RegisterParams{Name: "alice", Email: "alice@example.com", Password: "secret-password"}); err != nil {
		t.Fatalf("register: %v", err)
	}

	if _, _, err := service.Register(ctx, auth.RegisterParams{Name: "other", Email: "alice@example.com", Password: "secret-password"}); !errors.Is(err, auth.ErrEmailTaken) {
		t.Fatalf("expected ErrEmailTaken, got %v", err)
	}
	if _, _, err := service.Register(ctx, auth.RegisterParams{Name: "alice", Email: "other@example.com", Password: "secret-password"}); !errors.Is(err, auth.ErrNameTaken) {
		t.Fatalf("expected ErrNameTaken, got %v", err)
	}
	if _, _, err := service.Register(ctx, auth.RegisterParams{Name: "alice", Email: "alice@example.com", Password: "secret-password"}); !errors.Is(err, auth.ErrEmailAndNameTaken) {
		t.Fatalf("expected ErrEmailAndNameTaken, got %v", err)
	}
}

func TestLoginWrongPassword(t *testing.T) {
	service, _ := setupAuthService(t, nil)
	ctx := context.Background()

	if _, _, err := service.Register(ctx, auth.RegisterParams{Name: "alice", Email: "alice@example.com", Password: "secret-password"}); err != nil {
		t.Fatalf("register: %v", err)
	}

	if _, _, err := service.Login(ctx, auth.LoginParams{Identifier: "alice@example.com", Password: "wrong"}); !errors.Is(err, auth.ErrInvalidLogin) {
		t.Fatalf("expected ErrInvalidLogin, got %v", err)
	}
	if _, _, err := service.Login(ctx, auth.LoginParams{Identifier: "nobody@example.com", Password: "secret-password"}); !errors.Is(err, auth.ErrInvalidLogin) {
		t.Fatalf("expected ErrInvalidLogin for unknown user, got %v", err)
	}
}

func TestRefreshRotatesToken(t *testing.T) {
	service, _ := setupAuthService(t, nil)
	ctx := context.Background()

	_, tokens, err := service.Register(ctx, auth.RegisterParams{Name: "alice", Email: "alice@example.com", Password: "secret-password"})
	if err != nil {
		t.Fatalf("register: %v", err)
	}

	rotated, err := service.Refresh(ctx, tokens.RefreshToken)
	if err != nil {
		t.Fatalf("refresh: %v", err)
	}
	if rotated.RefreshToken == tokens.RefreshToken {
		t.Fatalf("expected a new refresh token after rotation")
	}

	// 旧刷新令牌已被轮换，重放应失败。
	if _, err := service.Refresh(ctx, tokens.RefreshToken); !errors.Is(err, auth.ErrRefreshTokenRevoked) {
		t.Fatalf("expected ErrRefreshTokenRevoked on replay, got %v", err)
	}

	// 新令牌仍然可用。
	if _, err := service.Refresh(ctx, rotated.RefreshToken); err != nil {
		t.Fatalf("refresh with rotated token: %v", err)
	}
}

func TestRefreshRejectsGarbage(t *testing.T) {
	service, _ := setupAuthService(t, nil)
	ctx := context.Background()

	if _, err := service.Refresh(ctx, ""); !errors.Is(err, auth.ErrRefreshTokenRequired) {
		t.Fatalf("expected ErrRefreshTokenRequired, got %v", err)
	}
	if _, err := service.Refresh(ctx, "not-a-jwt"); !errors.Is(err, auth.ErrRefreshTokenInvalid) {
		t.Fatalf("expected ErrRefreshTokenInvalid, got %v", err)
	}
}

func TestRefreshRejectsAccessToken(t *testing.T) {
	service, _ := setupAuthService(t, nil)
	ctx := context.Background()

	_, tokens, err := service.Register(ctx, auth.RegisterParams{Name: "alice", Email: "alice@example.com", Password: "secret-password"})
	if err != nil {
		t.Fatalf("register: %v", err)
	}

	if _, err := service.Refresh(ctx, tokens.AccessToken); !errors.Is(err, auth.ErrRefreshTokenInvalid) {
		t.Fatalf("expected ErrRefreshTokenInvalid for access token, got %v", err)
	}
}

func TestLogoutRevokesRefreshToken(t *testing.T) {
	service, _ := setupAuthService(t, nil)
	ctx := context.Background()

	_, tokens, err := service.Register(ctx, auth.RegisterParams{Name: "alice", Email: "alice@example.com", Password: "secret-password"})
	if err != nil {
		t.Fatalf("register: %v", err)
	}

	if err := service.Logout(ctx, tokens.RefreshToken); err != nil {
		t.Fatalf("logout: %v", err)
	}
	if _, err := service.Refresh(ctx, tokens.RefreshToken); !errors.Is(err, auth.ErrRefreshTokenRevoked) {
		t.Fatalf("expected ErrRefreshTokenRevoked after logout, got %v", err)
	}
}

// stubCaptcha 是可控的验证码实现，便于覆盖各个校验分支。
type stubCaptcha struct {
	verifyErr error
}

func (s *stubCaptcha) Generate(ctx context.Context, ip string) (string, string, error) {
	return "stub-id", "data:image/png;base64,stub", nil
}

func (s *stubCaptcha) Verify(ctx context.Context, id, answer string) error {
	return s.verifyErr
}

func TestRegisterCaptchaBranches(t *testing.T) {
	ctx := context.Background()
	params := auth.RegisterParams{
		Name:        "alice",
		Email:       "alice@example.com",
		Password:    "secret-password",
		CaptchaID:   "stub-id",
		CaptchaCode: "123456",
	}

	t.Run("缺少验证码", func(t *testing.T) {
		service, _ := setupAuthService(t, &stubCaptcha{})
		missing := params
		missing.CaptchaID = ""
		missing.CaptchaCode = ""
		if _, _, err := service.Register(ctx, missing); !errors.Is(err, auth.ErrCaptchaRequired) {
			t.Fatalf("expected ErrCaptchaRequired, got %v", err)
		}
	})

	t.Run("验证码过期", func(t *testing.T) {
		service, _ := setupAuthService(t, &stubCaptcha{verifyErr: captcha.ErrCaptchaNotFound})
		if _, _, err := service.Register(ctx, params); !errors.Is(err, auth.ErrCaptchaExpired) {
			t.Fatalf("expected ErrCaptchaExpired, got %v", err)
		}
	})

	t.Run("验证码错误", func(t *testing.T) {
		service, _ := setupAuthService(t, &stubCaptcha{verifyErr: captcha.ErrCaptchaMismatch})
		if _, _, err := service.Register(ctx, params); !errors.Is(err, auth.ErrCaptchaInvalid) {
			t.Fatalf("expected ErrCaptchaInvalid, got %v", err)
		}
	})

	t.Run("验证码通过", func(t *testing.T) {
		service, _ := setupAuthService(t, &stubCaptcha{})
		if _, _, err := service.Register(ctx, params); err != nil {
			t.Fatalf("register with valid captcha: %v", err)
		}
	})
}

func TestCaptchaEnabled(t *testing.T) {
	withCaptcha, _ := setupAuthService(t, &stubCaptcha{})
	if !withCaptcha.CaptchaEnabled() {
		t.Fatalf("expected captcha enabled")
	}
	id, image, err := withCaptcha.GenerateCaptcha(context.Background(), "127.0.0.1")
	if err != nil {
		t.Fatalf("generate captcha: %v", err)
	}
	if id == "" || image == "" {
		t.Fatalf("expected captcha id and image")
	}

	withoutCaptcha, _ := setupAuthService(t, nil)
	if withoutCaptcha.CaptchaEnabled() {
		t.Fatalf("expected captcha disabled")
	}
}
