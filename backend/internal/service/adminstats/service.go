package adminstats

import (
	"context"
	"fmt"
	"time"

	promptdomain "promptlib-go-app/backend/internal/domain/prompt"
	statsdomain "promptlib-go-app/backend/internal/domain/stats"
	appLogger "promptlib-go-app/backend/internal/infra/logger"
	"promptlib-go-app/backend/internal/repository"

	"go.uber.org/zap"
	"gorm.io/datatypes"
)

// Overview 描述管理端概览的返回数据。
type Overview struct {
	TotalUsers      int64                  `json:"total_users"`
	TotalPrompts    int64                  `json:"total_prompts"`
	PendingPrompts  int64                  `json:"pending_prompts"`
	ApprovedPrompts int64                  `json:"approved_prompts"`
	RejectedPrompts int64                  `json:"rejected_prompts"`
	Daily           []statsdomain.DailyStat `json:"daily"`
}

// Service 为管理端提供运营数据概览。
type Service struct {
	users   *repository.UserRepository
	prompts *repository.PromptRepository
	upvotes *repository.UpvoteRepository
	stats   *repository.StatsRepository
	logger  *zap.SugaredLogger
}

// NewService 创建统计服务。
func NewService(users *repository.UserRepository, prompts *repository.PromptRepository, upvotes *repository.UpvoteRepository, stats *repository.StatsRepository) *Service {
	return &Service{
		users:   users,
		prompts: prompts,
		upvotes: upvotes,
		stats:   stats,
		logger:  appLogger.S().With("component", "adminstats.service"),
	}
}

// Overview 汇总全量计数，并刷新、返回最近 days 天的按日数据。
func (s *Service) Overview(ctx context.Context, days int) (*Overview, error) {
	if days <= 0 {
		days = 7
	}

	totalUsers, err := s.users.CountAll(ctx)
	if err != nil {
		return nil, err
	}

	byStatus, err := s.prompts.CountByStatus(ctx)
	if err != nil {
		return nil, err
	}

	var totalPrompts int64
	for _, count := range byStatus {
		totalPrompts += count
	}

	if err := s.snapshotToday(ctx); err != nil {
		// 当日快照失败不影响概览主体，记录后继续。
		s.logger.Warnw("snapshot today failed", "error", err)
	}

	now := time.Now()
	from := datatypes.Date(now.AddDate(0, 0, -(days - 1)))
	to := datatypes.Date(now)
	daily, err := s.stats.ListRange(ctx, from, to)
	if err != nil {
		return nil, err
	}

	return &Overview{
		TotalUsers:      totalUsers,
		TotalPrompts:    totalPrompts,
		PendingPrompts:  byStatus[promptdomain.PromptStatusPending],
		ApprovedPrompts: byStatus[promptdomain.PromptStatusApproved],
		RejectedPrompts: byStatus[promptdomain.PromptStatusRejected],
		Daily:           daily,
	}, nil
}

// snapshotToday 重算当天的按日聚合并落库。
func (s *Service) snapshotToday(ctx context.Context) error {
	now := time.Now()
	dayStart := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())

	newUsers, err := s.users.CountSince(ctx, dayStart)
	if err != nil {
		return err
	}
	upvoteEvents, err := s.upvotes.CountSince(ctx, dayStart)
	if err != nil {
		return err
	}
	newPrompts, err := s.countPromptsSince(ctx, dayStart)
	if err != nil {
		return err
	}

	entity := &statsdomain.DailyStat{
		Day:          datatypes.Date(dayStart),
		NewPrompts:   uint(newPrompts),
		NewUsers:     uint(newUsers),
		UpvoteEvents: uint(upvoteEvents),
		UpdatedAt:    now,
	}
	return s.stats.Upsert(ctx, entity)
}

func (s *Service) countPromptsSince(ctx context.Context, since time.Time) (int64, error) {
	var count int64
	if err := s.prompts.DB().WithContext(ctx).
		Model(&promptdomain.Prompt{}).
		Where("created_at >= ?", since).
		Count(&count).Error; err != nil {
		return 0, fmt.Errorf("count prompts since: %w", err)
	}
	return count, nil
}
