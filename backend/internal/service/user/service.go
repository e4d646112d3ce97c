package user

import (
	"context"
	"errors"
	"fmt"

	domain "promptlib-go-app/backend/internal/domain/user"
	appLogger "promptlib-go-app/backend/internal/infra/logger"
	"promptlib-go-app/backend/internal/repository"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// ErrUserNotFound 表示指定的用户不存在。
var ErrUserNotFound = errors.New("用户不存在")

// Service 提供用户资料查询能力。
type Service struct {
	users  *repository.UserRepository
	logger *zap.SugaredLogger
}

// NewService 创建用户服务。
func NewService(users *repository.UserRepository) *Service {
	return &Service{
		users:  users,
		logger: appLogger.S().With("component", "user.service"),
	}
}

// Profile 返回用户的公开资料。
func (s *Service) Profile(ctx context.Context, id string) (*domain.User, error) {
	entity, err := s.users.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("query user: %w", err)
	}
	return entity, nil
}
