package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	domain "promptlib-go-app/backend/internal/domain/user"
	"promptlib-go-app/backend/internal/infra/captcha"
	appLogger "promptlib-go-app/backend/internal/infra/logger"
	"promptlib-go-app/backend/internal/repository"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

var (
	ErrEmailTaken           = errors.New("email already registered")
	ErrNameTaken            = errors.New("name already taken")
	ErrEmailAndNameTaken    = errors.New("email and name already taken")
	ErrInvalidLogin         = errors.New("invalid email or password")
	ErrCaptchaRequired      = errors.New("captcha is required")
	ErrCaptchaInvalid       = errors.New("captcha verification failed")
	ErrCaptchaExpired       = errors.New("captcha expired or not found")
	ErrCaptchaRateLimited   = errors.New("captcha requests too frequent")
	ErrRefreshTokenInvalid  = errors.New("refresh token is invalid")
	ErrRefreshTokenExpired  = errors.New("refresh token expired")
	ErrRefreshTokenRevoked  = errors.New("refresh token revoked")
	ErrRefreshTokenRequired = errors.New("refresh token is required")
)

// CaptchaManager 聚合验证码生成与校验能力，便于在服务层替换实现。
type CaptchaManager interface {
	captcha.Generator
	captcha.Verifier
}

// TokenPair 表示一次鉴权流程中生成的访问令牌、刷新令牌及其过期时间。
// RefreshTokenID/RefreshTokenExpiresAt 是内部元信息，用于写入存储并控制生命周期。
type TokenPair struct {
	AccessToken           string    `json:"access_token"`
	RefreshToken          string    `json:"refresh_token"`
	ExpiresIn             int64     `json:"expires_in"` // seconds
	RefreshTokenID        string    `json:"-"`
	RefreshTokenExpiresAt time.Time `json:"-"`
}

// Identity 描述从访问令牌解析出的请求身份。
type Identity struct {
	UserID string
	Role   string
}

// TokenManager 抽象签发与解析令牌的能力，目前仅有 JWT 一种实现。
type TokenManager interface {
	GenerateTokens(ctx context.Context, user *domain.User) (TokenPair, error)
	ParseRefreshToken(token string) (RefreshTokenClaims, error)
	ParseAccessToken(token string) (Identity, error)
}

// RefreshTokenClaims 描述解析刷新令牌后得到的关键信息。
type RefreshTokenClaims struct {
	UserID    string
	TokenID   string
	ExpiresAt time.Time
}

// RefreshTokenStore 负责存储和验证刷新令牌指纹，用于登出和令牌续期。
type RefreshTokenStore interface {
	Save(ctx context.Context, userID, tokenID string, expiresAt time.Time) error
	Delete(ctx context.Context, userID, tokenID string) error
	Exists(ctx context.Context, userID, tokenID string) (bool, error)
}

// Service 负责处理用户注册、登录、刷新、登出等鉴权业务。
type Service struct {
	users        *repository.UserRepository
	tokenManager TokenManager
	logger       *zap.SugaredLogger
	captcha      CaptchaManager
	refreshStore RefreshTokenStore
}

// NewService 创建鉴权服务实例。cm 传 nil 表示关闭验证码校验。
func NewService(users *repository.UserRepository, tm TokenManager, store RefreshTokenStore, cm CaptchaManager) *Service {
	return &Service{
		users:        users,
		tokenManager: tm,
		logger:       appLogger.S().With("component", "auth.service"),
		captcha:      cm,
		refreshStore: store,
	}
}

// RegisterParams 封装注册接口所需的输入参数。
type RegisterParams struct {
	Name        string
	Email       string
	Password    string
	CaptchaID   string
	CaptchaCode string
}

// LoginParams 封装登录接口所需的输入参数。
type LoginParams struct {
	Identifier string
	Password   string
}

// Register 完成注册流程：校验验证码（若启用）、校验唯一性、加密密码、
// 持久化用户并签发 TokenPair。
func (s *Service) Register(ctx context.Context, params RegisterParams) (*domain.User, TokenPair, error) {
	log := s.scope("register").With("email", params.Email, "name", params.Name)
	log.Infow("register attempt")

	if s.captcha != nil {
		if strings.TrimSpace(params.CaptchaID) == "" || strings.TrimSpace(params.CaptchaCode) == "" {
			log.Warn("captcha required but missing")
			return nil, TokenPair{}, ErrCaptchaRequired
		}

		if err := s.captcha.Verify(ctx, params.CaptchaID, params.CaptchaCode); err != nil {
			switch {
			case errors.Is(err, captcha.ErrCaptchaNotFound):
				log.Warnw("captcha expired or not found", "captcha_id", params.CaptchaID)
				return nil, TokenPair{}, ErrCaptchaExpired
			case errors.Is(err, captcha.ErrCaptchaMismatch):
				log.Warnw("captcha mismatch", "captcha_id", params.CaptchaID)
				return nil, TokenPair{}, ErrCaptchaInvalid
			default:
				log.Errorw("captcha verify failed", "error", err)
				return nil, TokenPair{}, fmt.Errorf("captcha verify: %w", err)
			}
		}
	}

	// 先确认邮箱/用户名是否占用：若任一字段已存在，记录标记后统一返回。
	emailTaken := false
	if _, err := s.users.FindByEmail(ctx, params.Email); err == nil {
		emailTaken = true
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		log.Errorw("check email unique failed", "error", err)
		return nil, TokenPair{}, fmt.Errorf("check email unique: %w", err)
	}

	nameTaken := false
	if _, err := s.users.FindByName(ctx, params.Name); err == nil {
		nameTaken = true
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		log.Errorw("check name unique failed", "error", err)
		return nil, TokenPair{}, fmt.Errorf("check name unique: %w", err)
	}

	switch {
	case emailTaken && nameTaken:
		log.Warnw("email and name already taken")
		return nil, TokenPair{}, ErrEmailAndNameTaken
	case emailTaken:
		log.Warnw("email already registered")
		return nil, TokenPair{}, ErrEmailTaken
	case nameTaken:
		log.Warnw("name already taken")
		return nil, TokenPair{}, ErrNameTaken
	}

	hash, err := hashPassword(params.Password)
	if err != nil {
		log.Errorw("hash password failed", "error", err)
		return nil, TokenPair{}, fmt.Errorf("hash password: %w", err)
	}

	user := &domain.User{
		ID:           uuid.NewString(),
		Name:         strings.TrimSpace(params.Name),
		Email:        strings.TrimSpace(params.Email),
		PasswordHash: hash,
		Role:         domain.RoleUser,
	}

	if err := s.users.Create(ctx, user); err != nil {
		log.Errorw("create user failed", "error", err)
		return nil, TokenPair{}, fmt.Errorf("create user: %w", err)
	}

	tokens, err := s.issueAndStoreTokens(ctx, user)
	if err != nil {
		return nil, TokenPair{}, err
	}

	log.With("user_id", user.ID).Infow("user registered")
	return user, tokens, nil
}

// Login 校验用户凭证（支持邮箱或用户名），更新登录时间并签发新的 TokenPair。
func (s *Service) Login(ctx context.Context, params LoginParams) (*domain.User, TokenPair, error) {
	identifier := strings.TrimSpace(params.Identifier)
	log := s.scope("login").With("identifier", identifier)
	log.Infow("login attempt")

	var (
		user *domain.User
		err  error
	)

	if strings.Contains(identifier, "@") {
		user, err = s.users.FindByEmail(ctx, identifier)
	} else {
		user, err = s.users.FindByName(ctx, identifier)
	}

	if err != nil && errors.Is(err, gorm.ErrRecordNotFound) {
		// 换一种方式再查一次：按邮箱失败就按用户名，反之亦然。
		if strings.Contains(identifier, "@") {
			user, err = s.users.FindByName(ctx, identifier)
		} else {
			user, err = s.users.FindByEmail(ctx, identifier)
		}
	}

	if err != nil {
		log.Warnw("login identifier not found or repo error", "error", err)
		return nil, TokenPair{}, ErrInvalidLogin
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(params.Password)); err != nil {
		log.Warnw("password mismatch")
		return nil, TokenPair{}, ErrInvalidLogin
	}

	now := time.Now()
	if err := s.users.UpdateLastLogin(ctx, user.ID, now); err != nil {
		log.Errorw("update last login failed", "error", err, "user_id", user.ID)
		return nil, TokenPair{}, fmt.Errorf("update last login: %w", err)
	}
	user.LastLoginAt = &now

	tokens, err := s.issueAndStoreTokens(ctx, user)
	if err != nil {
		return nil, TokenPair{}, err
	}

	log.With("user_id", user.ID).Infow("login success")
	return user, tokens, nil
}

// Refresh 用刷新令牌换取新的 TokenPair。
// 刷新令牌一次一换：旧 jti 删除后重新签发，防止重放。
func (s *Service) Refresh(ctx context.Context, refreshToken string) (TokenPair, error) {
	log := s.scope("refresh")

	if strings.TrimSpace(refreshToken) == "" {
		log.Warn("missing refresh token")
		return TokenPair{}, ErrRefreshTokenRequired
	}

	claims, err := s.tokenManager.ParseRefreshToken(refreshToken)
	if err != nil {
		log.Warnw("parse refresh token failed", "error", err)
		return TokenPair{}, ErrRefreshTokenInvalid
	}

	if claims.ExpiresAt.IsZero() {
		log.Warnw("refresh token missing expiry", "user_id", claims.UserID)
		return TokenPair{}, ErrRefreshTokenInvalid
	}

	if time.Now().After(claims.ExpiresAt) {
		log.Warnw("refresh token expired", "user_id", claims.UserID)
		return TokenPair{}, ErrRefreshTokenExpired
	}

	if s.refreshStore == nil {
		log.Error("refresh store not configured")
		return TokenPair{}, fmt.Errorf("refresh token store missing")
	}

	ok, storeErr := s.refreshStore.Exists(ctx, claims.UserID, claims.TokenID)
	if storeErr != nil {
		log.Errorw("refresh store check failed", "error", storeErr)
		return TokenPair{}, fmt.Errorf("check refresh token: %w", storeErr)
	}
	if !ok {
		log.Warnw("refresh token revoked", "user_id", claims.UserID)
		return TokenPair{}, ErrRefreshTokenRevoked
	}

	user, err := s.users.FindByID(ctx, claims.UserID)
	if err != nil {
		log.Errorw("load user failed", "error", err, "user_id", claims.UserID)
		return TokenPair{}, fmt.Errorf("load user: %w", err)
	}

	if err := s.refreshStore.Delete(ctx, claims.UserID, claims.TokenID); err != nil {
		log.Errorw("delete old refresh token failed", "error", err, "token_id", claims.TokenID)
		return TokenPair{}, fmt.Errorf("delete refresh token: %w", err)
	}

	return s.issueAndStoreTokens(ctx, user)
}

// Logout 撤销指定刷新令牌，令其无法再换取新的访问令牌。
func (s *Service) Logout(ctx context.Context, refreshToken string) error {
	log := s.scope("logout")

	if strings.TrimSpace(refreshToken) == "" {
		log.Warn("missing refresh token")
		return ErrRefreshTokenRequired
	}

	claims, err := s.tokenManager.ParseRefreshToken(refreshToken)
	if err != nil {
		log.Warnw("parse refresh token failed", "error", err)
		return ErrRefreshTokenInvalid
	}

	if s.refreshStore == nil {
		log.Error("refresh store not configured")
		return fmt.Errorf("refresh token store missing")
	}

	if err := s.refreshStore.Delete(ctx, claims.UserID, claims.TokenID); err != nil {
		log.Errorw("delete refresh token failed", "error", err, "token_id", claims.TokenID)
		return fmt.Errorf("delete refresh token: %w", err)
	}

	return nil
}

// CaptchaEnabled 返回是否启用了注册验证码。
func (s *Service) CaptchaEnabled() bool {
	return s.captcha != nil
}

// GenerateCaptcha 生成验证码图片，返回 id 与 base64 图像。
func (s *Service) GenerateCaptcha(ctx context.Context, ip string) (string, string, error) {
	if s.captcha == nil {
		return "", "", ErrCaptchaRequired
	}
	id, b64, err := s.captcha.Generate(ctx, ip)
	if err != nil {
		if errors.Is(err, captcha.ErrRateLimited) {
			return "", "", ErrCaptchaRateLimited
		}
		return "", "", fmt.Errorf("generate captcha: %w", err)
	}
	return id, b64, nil
}

// issueAndStoreTokens 生成 TokenPair 并把刷新令牌指纹写入存储。
// 保存失败时直接冒泡错误，避免下发不可续期的令牌对。
func (s *Service) issueAndStoreTokens(ctx context.Context, user *domain.User) (TokenPair, error) {
	log := s.scope("issue_tokens").With("user_id", user.ID)

	tokens, err := s.tokenManager.GenerateTokens(ctx, user)
	if err != nil {
		log.Errorw("generate tokens failed", "error", err)
		return TokenPair{}, fmt.Errorf("generate tokens: %w", err)
	}

	if s.refreshStore == nil {
		return TokenPair{}, fmt.Errorf("refresh token store missing")
	}
	if tokens.RefreshTokenID == "" || tokens.RefreshTokenExpiresAt.IsZero() {
		return TokenPair{}, fmt.Errorf("refresh token metadata missing")
	}

	if err := s.refreshStore.Save(ctx, user.ID, tokens.RefreshTokenID, tokens.RefreshTokenExpiresAt); err != nil {
		log.Errorw("save refresh token failed", "error", err)
		return TokenPair{}, fmt.Errorf("store refresh token: %w", err)
	}

	return tokens, nil
}

// hashPassword 使用 bcrypt 对明文密码加盐哈希。
func hashPassword(password string) (string, error) {
	out, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(out), nil
}

func (s *Service) scope(operation string) *zap.SugaredLogger {
	if s.logger == nil {
		s.logger = appLogger.S().With("component", "auth.service")
	}
	return s.logger.With("operation", operation)
}
