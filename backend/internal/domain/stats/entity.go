package stats

import (
	"time"

	"gorm.io/datatypes"
)

// DailyStat 按天聚合的运营数据，由管理端概览接口消费。
type DailyStat struct {
	ID           uint           `gorm:"primaryKey;autoIncrement" json:"-"`
	Day          datatypes.Date `gorm:"uniqueIndex:uk_daily_stats_day" json:"day"`
	NewPrompts   uint           `gorm:"not null;default:0" json:"new_prompts"`
	NewUsers     uint           `gorm:"not null;default:0" json:"new_users"`
	UpvoteEvents uint           `gorm:"not null;default:0" json:"upvote_events"`
	UpdatedAt    time.Time      `json:"updated_at"`
}

// TableName 指定表名。
func (DailyStat) TableName() string {
	return "daily_stats"
}
