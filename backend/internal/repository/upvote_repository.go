package repository

import (
	"context"
	"fmt"
	"time"

	promptdomain "promptlib-go-app/backend/internal/domain/prompt"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// UpvoteRepository 维护用户与提示词之间的点赞明细。
type UpvoteRepository struct {
	db *gorm.DB
}

// NewUpvoteRepository 创建点赞仓储。
func NewUpvoteRepository(db *gorm.DB) *UpvoteRepository {
	return &UpvoteRepository{db: db}
}

// WithDB 基于传入的 gorm.DB 派生新的仓储，用于事务场景。
func (r *UpvoteRepository) WithDB(db *gorm.DB) *UpvoteRepository {
	return NewUpvoteRepository(db)
}

// Exists 判断用户是否已点赞指定提示词。
func (r *UpvoteRepository) Exists(ctx context.Context, userID, promptID string) (bool, error) {
	var count int64
	if err := r.db.WithContext(ctx).
		Model(&promptdomain.Upvote{}).
		Where("user_id = ? AND prompt_id = ?", userID, promptID).
		Count(&count).Error; err != nil {
		return false, fmt.Errorf("check upvote: %w", err)
	}
	return count > 0, nil
}

// Create 写入点赞明细。借助唯一索引加 DoNothing 实现幂等：
// 并发下重复插入不报错，返回 false 表示记录已存在。
func (r *UpvoteRepository) Create(ctx context.Context, userID, promptID string) (bool, error) {
	entity := promptdomain.Upvote{
		ID:       uuid.NewString(),
		UserID:   userID,
		PromptID: promptID,
	}
	result := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&entity)
	if result.Error != nil {
		return false, fmt.Errorf("create upvote: %w", result.Error)
	}
	return result.RowsAffected > 0, nil
}

// Delete 删除点赞明细，返回 false 表示记录本就不存在。
func (r *UpvoteRepository) Delete(ctx context.Context, userID, promptID string) (bool, error) {
	result := r.db.WithContext(ctx).
		Where("user_id = ? AND prompt_id = ?", userID, promptID).
		Delete(&promptdomain.Upvote{})
	if result.Error != nil {
		return false, fmt.Errorf("delete upvote: %w", result.Error)
	}
	return result.RowsAffected > 0, nil
}

// DeleteByPrompt 清空某个提示词的全部点赞明细，用于级联删除。
func (r *UpvoteRepository) DeleteByPrompt(ctx context.Context, promptID string) error {
	if err := r.db.WithContext(ctx).
		Where("prompt_id = ?", promptID).
		Delete(&promptdomain.Upvote{}).Error; err != nil {
		return fmt.Errorf("delete upvotes by prompt: %w", err)
	}
	return nil
}

// CountByPrompt 统计提示词的点赞明细数，用于校验计数器一致性。
func (r *UpvoteRepository) CountByPrompt(ctx context.Context, promptID string) (int64, error) {
	var count int64
	if err := r.db.WithContext(ctx).
		Model(&promptdomain.Upvote{}).
		Where("prompt_id = ?", promptID).
		Count(&count).Error; err != nil {
		return 0, fmt.Errorf("count upvotes: %w", err)
	}
	return count, nil
}

// ListLikedPromptIDs 批量查询用户在给定提示词集合中点赞过的 ID，
// 避免列表页逐条回表。
func (r *UpvoteRepository) ListLikedPromptIDs(ctx context.Context, userID string, promptIDs []string) (map[string]bool, error) {
	liked := make(map[string]bool, len(promptIDs))
	if userID == "" || len(promptIDs) == 0 {
		return liked, nil
	}

	var ids []string
	if err := r.db.WithContext(ctx).
		Model(&promptdomain.Upvote{}).
		Where("user_id = ? AND prompt_id IN ?", userID, promptIDs).
		Pluck("prompt_id", &ids).Error; err != nil {
		return nil, fmt.Errorf("list liked prompt ids: %w", err)
	}

	for _, id := range ids {
		liked[id] = true
	}
	return liked, nil
}

// CountSince 统计某时间之后产生的点赞明细数。
func (r *UpvoteRepository) CountSince(ctx context.Context, since time.Time) (int64, error) {
	var count int64
	if err := r.db.WithContext(ctx).
		Model(&promptdomain.Upvote{}).
		Where("created_at >= ?", since).
		Count(&count).Error; err != nil {
		return 0, fmt.Errorf("count upvotes since: %w", err)
	}
	return count, nil
}
