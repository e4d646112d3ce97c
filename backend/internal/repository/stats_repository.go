package repository

import (
	"context"
	"errors"
	"fmt"

	statsdomain "promptlib-go-app/backend/internal/domain/stats"

	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// StatsRepository 维护按天聚合的运营数据。
type StatsRepository struct {
	db *gorm.DB
}

// NewStatsRepository 创建统计仓储。
func NewStatsRepository(db *gorm.DB) *StatsRepository {
	return &StatsRepository{db: db}
}

// Upsert 写入或覆盖某一天的聚合数据。
func (r *StatsRepository) Upsert(ctx context.Context, entity *statsdomain.DailyStat) error {
	if entity == nil {
		return errors.New("daily stat entity is nil")
	}
	if err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "day"}},
			DoUpdates: clause.AssignmentColumns([]string{"new_prompts", "new_users", "upvote_events", "updated_at"}),
		}).
		Create(entity).Error; err != nil {
		return fmt.Errorf("upsert daily stat: %w", err)
	}
	return nil
}

// ListRange 返回指定日期区间内的聚合数据，按天升序。
func (r *StatsRepository) ListRange(ctx context.Context, from, to datatypes.Date) ([]statsdomain.DailyStat, error) {
	var records []statsdomain.DailyStat
	if err := r.db.WithContext(ctx).
		Where("day >= ? AND day <= ?", from, to).
		Order("day ASC").
		Find(&records).Error; err != nil {
		return nil, fmt.Errorf("list daily stats: %w", err)
	}
	return records, nil
}
