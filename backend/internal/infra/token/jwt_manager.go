package token

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	domain "promptlib-go-app/backend/internal/domain/user"
	"promptlib-go-app/backend/internal/service/auth"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const (
	claimTokenType   = "token_type"
	claimTokenID     = "jti"
	tokenTypeAccess  = "access"
	tokenTypeRefresh = "refresh"
)

// JWTManager 基于对称密钥签发访问与刷新令牌。
type JWTManager struct {
	secret     string
	accessTTL  time.Duration
	refreshTTL time.Duration
}

// NewJWTManager 创建 JWT 管理器，配置签名密钥以及访问/刷新令牌的有效期。
func NewJWTManager(secret string, accessTTL, refreshTTL time.Duration) *JWTManager {
	return &JWTManager{secret: secret, accessTTL: accessTTL, refreshTTL: refreshTTL}
}

// GenerateTokens 为指定用户签发访问令牌和刷新令牌，返回统一的 TokenPair。
func (m *JWTManager) GenerateTokens(ctx context.Context, user *domain.User) (auth.TokenPair, error) {
	accessToken, accessExp, _, err := m.buildToken(user, m.accessTTL, tokenTypeAccess, "")
	if err != nil {
		return auth.TokenPair{}, fmt.Errorf("generate access token: %w", err)
	}

	refreshID := uuid.NewString()
	refreshToken, refreshExp, refreshID, err := m.buildToken(user, m.refreshTTL, tokenTypeRefresh, refreshID)
	if err != nil {
		return auth.TokenPair{}, fmt.Errorf("generate refresh token: %w", err)
	}

	return auth.TokenPair{
		AccessToken:           accessToken,
		RefreshToken:          refreshToken,
		ExpiresIn:             int64(time.Until(accessExp).Seconds()),
		RefreshTokenID:        refreshID,
		RefreshTokenExpiresAt: refreshExp,
	}, nil
}

// buildToken 根据指定 TTL 构造单个 JWT，包括基础 claims 与签名。
func (m *JWTManager) buildToken(user *domain.User, ttl time.Duration, tokenType string, tokenID string) (string, time.Time, string, error) {
	if ttl <= 0 {
		ttl = time.Hour
	}

	expiresAt := time.Now().Add(ttl)

	// 这里使用 MapClaims，方便后续扩展自定义字段。
	claims := jwt.MapClaims{
		"sub":          user.ID,
		"name":         user.Name,
		"role":         user.Role,
		"exp":          expiresAt.Unix(),
		claimTokenType: tokenType,
	}

	if tokenType == tokenTypeRefresh {
		if tokenID == "" {
			tokenID = uuid.NewString()
		}
		claims[claimTokenID] = tokenID
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(m.secret))
	if err != nil {
		return "", time.Time{}, "", err
	}

	return signed, expiresAt, tokenID, nil
}

// ParseRefreshToken 验证并解析刷新令牌，返回其包含的用户 ID 与 TokenID。
func (m *JWTManager) ParseRefreshToken(raw string) (auth.RefreshTokenClaims, error) {
	claims, err := m.parseClaims(raw)
	if err != nil {
		return auth.RefreshTokenClaims{}, err
	}

	if tokenType, _ := claims[claimTokenType].(string); tokenType != tokenTypeRefresh {
		return auth.RefreshTokenClaims{}, errors.New("token is not a refresh token")
	}

	userID, _ := claims["sub"].(string)
	if strings.TrimSpace(userID) == "" {
		return auth.RefreshTokenClaims{}, errors.New("refresh token missing subject")
	}

	tokenID, _ := claims[claimTokenID].(string)
	if tokenID == "" {
		return auth.RefreshTokenClaims{}, errors.New("refresh token missing jti")
	}

	var expiresAt time.Time
	if exp, ok := claims["exp"].(float64); ok {
		expiresAt = time.Unix(int64(exp), 0)
	}

	return auth.RefreshTokenClaims{
		UserID:    userID,
		TokenID:   tokenID,
		ExpiresAt: expiresAt,
	}, nil
}

// ParseAccessToken 验证访问令牌并返回请求身份（userID + role）。
func (m *JWTManager) ParseAccessToken(raw string) (auth.Identity, error) {
	claims, err := m.parseClaims(raw)
	if err != nil {
		return auth.Identity{}, err
	}

	if tokenType, _ := claims[claimTokenType].(string); tokenType != tokenTypeAccess {
		return auth.Identity{}, errors.New("token is not an access token")
	}

	userID, _ := claims["sub"].(string)
	if strings.TrimSpace(userID) == "" {
		return auth.Identity{}, errors.New("access token missing subject")
	}

	role, _ := claims["role"].(string)
	if !domain.IsValidRole(role) {
		role = domain.RoleUser
	}

	return auth.Identity{UserID: userID, Role: role}, nil
}

// parseClaims 校验签名算法与有效期，返回 MapClaims。
func (m *JWTManager) parseClaims(raw string) (jwt.MapClaims, error) {
	parsed, err := jwt.Parse(raw, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrInvalidKeyType
		}
		return []byte(m.secret), nil
	})
	if err != nil {
		return nil, fmt.Errorf("parse token: %w", err)
	}
	if !parsed.Valid {
		return nil, errors.New("invalid token")
	}

	claims, ok := parsed.Claims.(jwt.MapClaims)
	if !ok {
		return nil, errors.New("unexpected token claims")
	}
	return claims, nil
}
