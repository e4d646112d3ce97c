package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	userdomain "promptlib-go-app/backend/internal/domain/user"

	"gorm.io/gorm"
)

// UserRepository 负责用户数据的持久化。
type UserRepository struct {
	db *gorm.DB
}

// NewUserRepository 创建用户仓储。
func NewUserRepository(db *gorm.DB) *UserRepository {
	return &UserRepository{db: db}
}

// Create 新增用户。
func (r *UserRepository) Create(ctx context.Context, entity *userdomain.User) error {
	if entity == nil {
		return errors.New("user entity is nil")
	}
	if err := r.db.WithContext(ctx).Create(entity).Error; err != nil {
		return fmt.Errorf("create user: %w", err)
	}
	return nil
}

// FindByID 根据 ID 查询用户。
func (r *UserRepository) FindByID(ctx context.Context, id string) (*userdomain.User, error) {
	var entity userdomain.User
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&entity).Error; err != nil {
		return nil, err
	}
	return &entity, nil
}

// FindByEmail 根据邮箱查询用户。
func (r *UserRepository) FindByEmail(ctx context.Context, email string) (*userdomain.User, error) {
	var entity userdomain.User
	if err := r.db.WithContext(ctx).Where("email = ?", email).First(&entity).Error; err != nil {
		return nil, err
	}
	return &entity, nil
}

// FindByName 根据用户名查询用户。
func (r *UserRepository) FindByName(ctx context.Context, name string) (*userdomain.User, error) {
	var entity userdomain.User
	if err := r.db.WithContext(ctx).Where("name = ?", name).First(&entity).Error; err != nil {
		return nil, err
	}
	return &entity, nil
}

// FindBriefs 批量查询用户摘要，key 为用户 ID。
func (r *UserRepository) FindBriefs(ctx context.Context, ids []string) (map[string]userdomain.User, error) {
	briefs := make(map[string]userdomain.User, len(ids))
	if len(ids) == 0 {
		return briefs, nil
	}

	var records []userdomain.User
	if err := r.db.WithContext(ctx).
		Select("id", "name", "email").
		Where("id IN ?", ids).
		Find(&records).Error; err != nil {
		return nil, fmt.Errorf("find user briefs: %w", err)
	}

	for _, record := range records {
		briefs[record.ID] = record
	}
	return briefs, nil
}

// UpdateLastLogin 记录最近一次登录时间。
func (r *UserRepository) UpdateLastLogin(ctx context.Context, id string, at time.Time) error {
	if err := r.db.WithContext(ctx).
		Model(&userdomain.User{}).
		Where("id = ?", id).
		UpdateColumn("last_login_at", at).Error; err != nil {
		return fmt.Errorf("update last login: %w", err)
	}
	return nil
}

// CountAll 统计用户总数。
func (r *UserRepository) CountAll(ctx context.Context) (int64, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&userdomain.User{}).Count(&count).Error; err != nil {
		return 0, fmt.Errorf("count users: %w", err)
	}
	return count, nil
}

// CountSince 统计某时间之后注册的用户数。
func (r *UserRepository) CountSince(ctx context.Context, since time.Time) (int64, error) {
	var count int64
	if err := r.db.WithContext(ctx).
		Model(&userdomain.User{}).
		Where("created_at >= ?", since).
		Count(&count).Error; err != nil {
		return 0, fmt.Errorf("count users since: %w", err)
	}
	return count, nil
}
