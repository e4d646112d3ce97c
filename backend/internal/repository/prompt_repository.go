package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	promptdomain "promptlib-go-app/backend/internal/domain/prompt"

	"gorm.io/gorm"
)

// PromptListFilter 描述提示词列表查询的过滤条件。
type PromptListFilter struct {
	Status    string
	CreatedBy string
	UseCase   string
	Query     string
	// Statuses 非空时按多个状态过滤，可见性规则会用到（本人可见 + 公开可见）。
	Statuses []string
}

// PromptRepository 负责提示词的增删查改。
type PromptRepository struct {
	db *gorm.DB
}

// NewPromptRepository 创建提示词仓储。
func NewPromptRepository(db *gorm.DB) *PromptRepository {
	return &PromptRepository{db: db}
}

// WithDB 基于传入的 gorm.DB 派生新的仓储，用于事务场景。
func (r *PromptRepository) WithDB(db *gorm.DB) *PromptRepository {
	return NewPromptRepository(db)
}

// DB 暴露底层连接，供服务层开启跨仓储事务。
func (r *PromptRepository) DB() *gorm.DB {
	return r.db
}

// List 返回符合条件的提示词，按票数降序、创建时间升序排列。
func (r *PromptRepository) List(ctx context.Context, filter PromptListFilter) ([]promptdomain.Prompt, error) {
	query := r.db.WithContext(ctx).Model(&promptdomain.Prompt{})

	if len(filter.Statuses) > 0 {
		query = query.Where("status IN ?", filter.Statuses)
	} else if status := strings.TrimSpace(filter.Status); status != "" {
		query = query.Where("status = ?", status)
	}

	if creator := strings.TrimSpace(filter.CreatedBy); creator != "" {
		query = query.Where("created_by = ?", creator)
	}

	if useCase := strings.TrimSpace(filter.UseCase); useCase != "" {
		query = query.Where("use_case = ?", useCase)
	}

	if q := strings.TrimSpace(filter.Query); q != "" {
		keyword := "%" + q + "%"
		query = query.Where("(title LIKE ? OR content LIKE ?)", keyword, keyword)
	}

	var records []promptdomain.Prompt
	if err := query.Order("upvotes DESC, created_at ASC").Find(&records).Error; err != nil {
		return nil, fmt.Errorf("list prompts: %w", err)
	}
	return records, nil
}

// ListVisibleTo 返回查看者可见的提示词：公开的已通过记录加上本人的全部记录。
func (r *PromptRepository) ListVisibleTo(ctx context.Context, viewerID string) ([]promptdomain.Prompt, error) {
	query := r.db.WithContext(ctx).Model(&promptdomain.Prompt{})

	if strings.TrimSpace(viewerID) == "" {
		query = query.Where("status = ?", promptdomain.PromptStatusApproved)
	} else {
		query = query.Where("status = ? OR created_by = ?", promptdomain.PromptStatusApproved, viewerID)
	}

	var records []promptdomain.Prompt
	if err := query.Order("upvotes DESC, created_at ASC").Find(&records).Error; err != nil {
		return nil, fmt.Errorf("list visible prompts: %w", err)
	}
	return records, nil
}

// FindByID 根据 ID 查询提示词。
func (r *PromptRepository) FindByID(ctx context.Context, id string) (*promptdomain.Prompt, error) {
	var entity promptdomain.Prompt
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&entity).Error; err != nil {
		return nil, err
	}
	return &entity, nil
}

// Create 新增提示词记录。
func (r *PromptRepository) Create(ctx context.Context, entity *promptdomain.Prompt) error {
	if entity == nil {
		return errors.New("prompt entity is nil")
	}
	if err := r.db.WithContext(ctx).Create(entity).Error; err != nil {
		return fmt.Errorf("create prompt: %w", err)
	}
	return nil
}

// Update 保存提示词的全部字段。
func (r *PromptRepository) Update(ctx context.Context, entity *promptdomain.Prompt) error {
	if entity == nil {
		return errors.New("prompt entity is nil")
	}
	if err := r.db.WithContext(ctx).Save(entity).Error; err != nil {
		return fmt.Errorf("update prompt: %w", err)
	}
	return nil
}

// UpdateStatus 仅更新审核状态。
func (r *PromptRepository) UpdateStatus(ctx context.Context, id string, status string) error {
	result := r.db.WithContext(ctx).
		Model(&promptdomain.Prompt{}).
		Where("id = ?", id).
		UpdateColumn("status", status)
	if result.Error != nil {
		return fmt.Errorf("update prompt status: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// IncrementUpvotes 以相对量调整票数计数器，delta 可为负。
// 负向调整带 upvotes > 0 条件，防止计数器下穿为负数。
func (r *PromptRepository) IncrementUpvotes(ctx context.Context, id string, delta int) error {
	query := r.db.WithContext(ctx).
		Model(&promptdomain.Prompt{}).
		Where("id = ?", id)
	if delta < 0 {
		query = query.Where("upvotes > 0")
	}

	result := query.UpdateColumn("upvotes", gorm.Expr("upvotes + ?", delta))
	if result.Error != nil {
		return fmt.Errorf("increment upvotes: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// Delete 删除提示词本体，点赞明细由服务层在同一事务中先行清理。
func (r *PromptRepository) Delete(ctx context.Context, id string) error {
	result := r.db.WithContext(ctx).Where("id = ?", id).Delete(&promptdomain.Prompt{})
	if result.Error != nil {
		return fmt.Errorf("delete prompt: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// CountByStatus 统计各状态的提示词数量。
func (r *PromptRepository) CountByStatus(ctx context.Context) (map[string]int64, error) {
	type row struct {
		Status string
		Total  int64
	}
	var rows []row
	if err := r.db.WithContext(ctx).
		Model(&promptdomain.Prompt{}).
		Select("status, COUNT(*) AS total").
		Group("status").
		Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("count prompts by status: %w", err)
	}

	counts := make(map[string]int64, len(rows))
	for _, item := range rows {
		counts[item.Status] = item.Total
	}
	return counts, nil
}
