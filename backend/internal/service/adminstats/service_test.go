package adminstats

import (
	"context"
	"testing"

	promptdomain "promptlib-go-app/backend/internal/domain/prompt"
	statsdomain "promptlib-go-app/backend/internal/domain/stats"
	userdomain "promptlib-go-app/backend/internal/domain/user"
	"promptlib-go-app/backend/internal/repository"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func setupStatsService(t *testing.T) (*Service, *gorm.DB) {
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

	if err := db.AutoMigrate(&userdomain.User{}, &promptdomain.Prompt{}, &promptdomain.Upvote{}, &statsdomain.DailyStat{}); err != nil {
		t.Fatalf("auto migrate: %v", err)
	}

	service := NewService(
		repository.NewUserRepository(db),
		repository.NewPromptRepository(db),
		repository.NewUpvoteRepository(db),
		repository.NewStatsRepository(db),
	)
	return service, db
}

func seedPrompt(t *testing.T, db *gorm.DB, authorID, status string) {
	t.Helper()
	entity := &promptdomain.Prompt{
		ID:        uuid.NewString(),
		Title:     "标题",
		Content:   "正文",
		UseCase:   promptdomain.UseCaseOther,
		Source:    promptdomain.DefaultSource,
		Status:    status,
		CreatedBy: authorID,
	}
	if err := db.Create(entity).Error; err != nil {
		t.Fatalf("seed prompt: %v", err)
	}
}

func TestOverviewCounts(t *testing.T) {
	service, db := setupStatsService(t)
	ctx := context.Background()

	author := uuid.NewString()
	if err := db.Create(&userdomain.User{ID: author, Name: "alice", Email: "a@b.c", PasswordHash: "x", Role: userdomain.RoleUser}).Error; err != nil {
		t.Fatalf("seed user: %v", err)
	}

	seedPrompt(t, db, author, promptdomain.PromptStatusApproved)
	seedPrompt(t, db, author, promptdomain.PromptStatusApproved)
	seedPrompt(t, db, author, promptdomain.PromptStatusPending)
	seedPrompt(t, db, author, promptdomain.PromptStatusRejected)

	overview, err := service.Overview(ctx, 7)
	if err != nil {
		t.Fatalf("overview: %v", err)
	}

	if overview.TotalUsers != 1 {
		t.Fatalf("total users = %d", overview.TotalUsers)
	}
	if overview.TotalPrompts != 4 {
		t.Fatalf("total prompts = %d", overview.TotalPrompts)
	}
	if overview.ApprovedPrompts != 2 || overview.PendingPrompts != 1 || overview.RejectedPrompts != 1 {
		t.Fatalf("status breakdown wrong: %+v", overview)
	}
}

func TestOverviewSnapshotsToday(t *testing.T) {
	service, db := setupStatsService(t)
	ctx := context.Background()

	author := uuid.NewString()
	if err := db.Create(&userdomain.User{ID: author, Name: "alice", Email: "a@b.c", PasswordHash: "x", Role: userdomain.RoleUser}).Error; err != nil {
		t.Fatalf("seed user: %v", err)
	}
	seedPrompt(t, db, author, promptdomain.PromptStatusApproved)
	if err := db.Create(&promptdomain.Upvote{ID: uuid.NewString(), UserID: author, PromptID: "p"}).Error; err != nil {
		t.Fatalf("seed upvote: %v", err)
	}

	overview, err := service.Overview(ctx, 7)
	if err != nil {
		t.Fatalf("overview: %v", err)
	}

	if len(overview.Daily) == 0 {
		t.Fatalf("expected at least today's daily stat")
	}
	today := overview.Daily[len(overview.Daily)-1]
	if today.NewUsers != 1 || today.NewPrompts != 1 || today.UpvoteEvents != 1 {
		t.Fatalf("unexpected daily snapshot: %+v", today)
	}

	// 重复调用走 upsert，不会出现重复行。
	overview, err = service.Overview(ctx, 7)
	if err != nil {
		t.Fatalf("second overview: %v", err)
	}
	var rows int64
	if err := db.Model(&statsdomain.DailyStat{}).Count(&rows).Error; err != nil {
		t.Fatalf("count daily rows: %v", err)
	}
	if rows != 1 {
		t.Fatalf("expected 1 daily row after upsert, got %d", rows)
	}
	_ = overview
}

func TestOverviewDefaultsDays(t *testing.T) {
	service, _ := setupStatsService(t)

	if _, err := service.Overview(context.Background(), 0); err != nil {
		t.Fatalf("overview with zero days: %v", err)
	}
}
