package prompt

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	promptdomain "promptlib-go-app/backend/internal/domain/prompt"
	userdomain "promptlib-go-app/backend/internal/domain/user"
	"promptlib-go-app/backend/internal/infra/metrics"
	"promptlib-go-app/backend/internal/repository"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// ErrPromptNotFound 表示指定的提示词不存在或对查看者不可见。
var ErrPromptNotFound = errors.New("提示词不存在")

// ErrTitleRequired 表示提交的标题为空。
var ErrTitleRequired = errors.New("标题不能为空")

// ErrContentRequired 表示提交的正文为空。
var ErrContentRequired = errors.New("正文不能为空")

// ErrReviewStatusInvalid 表示审核状态不合法。
var ErrReviewStatusInvalid = errors.New("审核状态不合法")

// ErrPermissionDenied 表示当前用户没有执行该操作的权限。
var ErrPermissionDenied = errors.New("没有操作权限")

// ModerationNotifier 在审核决定落库后通知提示词作者。
type ModerationNotifier interface {
	SendModerationNotice(ctx context.Context, user *userdomain.User, p *promptdomain.Prompt) error
}

// Service 封装提示词库的业务逻辑：提交、投票、审核与可见性过滤。
type Service struct {
	repo     *repository.PromptRepository
	upvotes  *repository.UpvoteRepository
	users    *repository.UserRepository
	db       *gorm.DB
	logger   *zap.SugaredLogger
	notifier ModerationNotifier
}

// NewService 创建提示词服务。notifier 传 nil 时退化为仅记录日志。
func NewService(db *gorm.DB, users *repository.UserRepository, logger *zap.SugaredLogger, notifier ModerationNotifier) *Service {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	if notifier == nil {
		notifier = loggingNotifier{logger: logger}
	}
	return &Service{
		repo:     repository.NewPromptRepository(db),
		upvotes:  repository.NewUpvoteRepository(db),
		users:    users,
		db:       db,
		logger:   logger,
		notifier: notifier,
	}
}

// SubmitInput 描述提交提示词所需的字段。
type SubmitInput struct {
	AuthorID string
	Title    string
	Content  string
	UseCase  string
	Source   string
}

// Submit 创建一条待审核的提示词。
// 未识别的用途归入 Other，来源为空时记为 Anonymous。
func (s *Service) Submit(ctx context.Context, input SubmitInput) (*promptdomain.Prompt, error) {
	if strings.TrimSpace(input.AuthorID) == "" {
		return nil, ErrPermissionDenied
	}

	title := strings.TrimSpace(input.Title)
	if title == "" {
		metrics.RecordPromptSubmission("invalid")
		return nil, ErrTitleRequired
	}
	content := strings.TrimSpace(input.Content)
	if content == "" {
		metrics.RecordPromptSubmission("invalid")
		return nil, ErrContentRequired
	}

	source := strings.TrimSpace(input.Source)
	if source == "" {
		source = promptdomain.DefaultSource
	}

	entity := &promptdomain.Prompt{
		ID:        uuid.NewString(),
		Title:     title,
		Content:   content,
		UseCase:   promptdomain.NormalizeUseCase(input.UseCase),
		Source:    source,
		Status:    promptdomain.PromptStatusPending,
		CreatedBy: input.AuthorID,
	}

	if err := s.repo.Create(ctx, entity); err != nil {
		metrics.RecordPromptSubmission("error")
		return nil, err
	}

	metrics.RecordPromptSubmission("accepted")
	s.logger.Infow("prompt submitted", "promptID", entity.ID, "author", entity.CreatedBy)
	return entity, nil
}

// Get 查询单条提示词详情，未通过审核的记录仅作者与管理员可见。
func (s *Service) Get(ctx context.Context, id string, viewer Viewer) (*promptdomain.Prompt, error) {
	entity, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrPromptNotFound
		}
		return nil, fmt.Errorf("query prompt: %w", err)
	}

	// 对不可见记录统一返回“不存在”，避免泄露待审内容。
	if !CanView(entity, viewer) {
		return nil, ErrPromptNotFound
	}

	if err := s.fillLiked(ctx, viewer.ID, entity); err != nil {
		return nil, err
	}
	if err := s.fillAuthors(ctx, []*promptdomain.Prompt{entity}); err != nil {
		return nil, err
	}
	return entity, nil
}

// ListFilter 描述列表查询的过滤条件。
type ListFilter struct {
	Viewer Viewer
	// MineOnly 为 true 时仅返回查看者自己的记录（含待审与已驳回）。
	MineOnly bool
	// CreatedBy 限定作者；与查看者本人一致时同样返回其全部状态。
	CreatedBy string
	UseCase   string
	Query     string
}

// List 返回查看者可见的提示词，按票数降序、创建时间升序排列。
func (s *Service) List(ctx context.Context, filter ListFilter) ([]promptdomain.Prompt, error) {
	start := time.Now()

	var (
		items []promptdomain.Prompt
		err   error
	)

	owner := strings.TrimSpace(filter.CreatedBy)
	if filter.MineOnly {
		if filter.Viewer.ID == "" {
			return nil, ErrPermissionDenied
		}
		owner = filter.Viewer.ID
	}

	switch {
	case owner != "" && owner == filter.Viewer.ID:
		// 作者查看自己的投稿：待审与已驳回一并返回。
		items, err = s.repo.List(ctx, repository.PromptListFilter{
			CreatedBy: owner,
			UseCase:   filter.UseCase,
			Query:     filter.Query,
		})
	case filter.Viewer.IsAdmin():
		items, err = s.repo.List(ctx, repository.PromptListFilter{
			CreatedBy: owner,
			UseCase:   filter.UseCase,
			Query:     filter.Query,
		})
	default:
		items, err = s.listVisible(ctx, filter, owner)
	}
	if err != nil {
		return nil, err
	}

	if err := s.fillLikedBatch(ctx, filter.Viewer.ID, items); err != nil {
		return nil, err
	}

	refs := make([]*promptdomain.Prompt, len(items))
	for i := range items {
		refs[i] = &items[i]
	}
	if err := s.fillAuthors(ctx, refs); err != nil {
		return nil, err
	}

	metrics.ObserveListDuration(filter.Viewer.MetricsLabel(), time.Since(start))
	return items, nil
}

// listVisible 处理普通用户与匿名访客的列表查询。
func (s *Service) listVisible(ctx context.Context, filter ListFilter, owner string) ([]promptdomain.Prompt, error) {
	items, err := s.repo.ListVisibleTo(ctx, filter.Viewer.ID)
	if err != nil {
		return nil, err
	}
	// 用途与关键词过滤在这里做，避免重复拼接可见性 SQL。
	filtered := items[:0]
	useCase := strings.TrimSpace(filter.UseCase)
	keyword := strings.ToLower(strings.TrimSpace(filter.Query))
	for _, item := range items {
		if owner != "" && item.CreatedBy != owner {
			continue
		}
		if useCase != "" && item.UseCase != useCase {
			continue
		}
		if keyword != "" &&
			!strings.Contains(strings.ToLower(item.Title), keyword) &&
			!strings.Contains(strings.ToLower(item.Content), keyword) {
			continue
		}
		filtered = append(filtered, item)
	}
	return filtered, nil
}

// ToggleResult 描述点赞切换接口的返回值。
type ToggleResult struct {
	Upvotes uint `json:"upvotes"`
	Liked   bool `json:"liked"`
}

// ToggleUpvote 切换用户对提示词的点赞状态。
// 已点赞则取消并回退计数，未点赞则写入明细并累加计数，
// 明细与计数在同一事务内变更。并发重复请求借助唯一索引兜底，
// 竞态下的重复插入按“已点赞”处理，不向调用方暴露冲突。
func (s *Service) ToggleUpvote(ctx context.Context, userID, promptID string) (ToggleResult, error) {
	if strings.TrimSpace(userID) == "" {
		return ToggleResult{}, ErrPermissionDenied
	}

	entity, err := s.repo.FindByID(ctx, promptID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ToggleResult{}, ErrPromptNotFound
		}
		return ToggleResult{}, fmt.Errorf("query prompt: %w", err)
	}

	viewer := Viewer{ID: userID}
	if !CanView(entity, viewer) {
		return ToggleResult{}, ErrPromptNotFound
	}

	direction := "liked"
	txErr := s.db.Transaction(func(tx *gorm.DB) error {
		upvotes := s.upvotes.WithDB(tx)
		prompts := s.repo.WithDB(tx)

		liked, err := upvotes.Exists(ctx, userID, promptID)
		if err != nil {
			return err
		}

		if liked {
			removed, err := upvotes.Delete(ctx, userID, promptID)
			if err != nil {
				return err
			}
			if removed {
				if err := prompts.IncrementUpvotes(ctx, promptID, -1); err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
					return err
				}
			}
			direction = "unliked"
			return nil
		}

		created, err := upvotes.Create(ctx, userID, promptID)
		if err != nil {
			return err
		}
		if created {
			if err := prompts.IncrementUpvotes(ctx, promptID, 1); err != nil {
				return err
			}
		}
		return nil
	})
	if txErr != nil {
		return ToggleResult{}, fmt.Errorf("toggle upvote: %w", txErr)
	}

	metrics.RecordUpvoteToggle(direction)

	// 重新读取快照，保证返回值与库内状态一致。
	updated, err := s.repo.FindByID(ctx, promptID)
	if err != nil {
		return ToggleResult{}, fmt.Errorf("reload prompt: %w", err)
	}
	liked, err := s.upvotes.Exists(ctx, userID, promptID)
	if err != nil {
		return ToggleResult{}, err
	}
	return ToggleResult{Upvotes: updated.Upvotes, Liked: liked}, nil
}

// UpdateInput 描述编辑提示词的字段，nil 表示保持原值。
type UpdateInput struct {
	PromptID string
	Editor   Viewer
	Title    *string
	Content  *string
	UseCase  *string
	Source   *string
}

// Update 编辑提示词。仅作者与管理员可编辑；
// 作者（非管理员）编辑后记录回到待审状态，管理员编辑不改变状态。
func (s *Service) Update(ctx context.Context, input UpdateInput) (*promptdomain.Prompt, error) {
	entity, err := s.repo.FindByID(ctx, input.PromptID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrPromptNotFound
		}
		return nil, fmt.Errorf("query prompt: %w", err)
	}

	if !CanModify(entity, input.Editor) {
		return nil, ErrPermissionDenied
	}

	if input.Title != nil {
		title := strings.TrimSpace(*input.Title)
		if title == "" {
			return nil, ErrTitleRequired
		}
		entity.Title = title
	}
	if input.Content != nil {
		content := strings.TrimSpace(*input.Content)
		if content == "" {
			return nil, ErrContentRequired
		}
		entity.Content = content
	}
	if input.UseCase != nil {
		entity.UseCase = promptdomain.NormalizeUseCase(*input.UseCase)
	}
	if input.Source != nil {
		source := strings.TrimSpace(*input.Source)
		if source == "" {
			source = promptdomain.DefaultSource
		}
		entity.Source = source
	}

	if !input.Editor.IsAdmin() {
		entity.Status = promptdomain.PromptStatusPending
	}
	entity.UpdatedAt = time.Now()

	if err := s.repo.Update(ctx, entity); err != nil {
		return nil, err
	}

	s.logger.Infow("prompt updated", "promptID", entity.ID, "editor", input.Editor.ID, "status", entity.Status)
	return entity, nil
}

// ReviewInput 描述审核决定所需的字段。
type ReviewInput struct {
	PromptID string
	Reviewer Viewer
	Status   string
}

// Review 落库审核决定并异步通知作者，仅管理员可调用。
func (s *Service) Review(ctx context.Context, input ReviewInput) (*promptdomain.Prompt, error) {
	if !input.Reviewer.IsAdmin() {
		return nil, ErrPermissionDenied
	}

	nextStatus := strings.TrimSpace(input.Status)
	switch nextStatus {
	case promptdomain.PromptStatusApproved, promptdomain.PromptStatusRejected:
		// 合法状态无需处理。
	default:
		return nil, ErrReviewStatusInvalid
	}

	entity, err := s.repo.FindByID(ctx, input.PromptID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrPromptNotFound
		}
		return nil, fmt.Errorf("query prompt: %w", err)
	}

	entity.Status = nextStatus
	entity.UpdatedAt = time.Now()
	if err := s.repo.Update(ctx, entity); err != nil {
		return nil, err
	}

	metrics.RecordModerationDecision(nextStatus)
	s.logger.Infow("prompt reviewed", "promptID", entity.ID, "reviewer", input.Reviewer.ID, "status", nextStatus)

	s.notifyAuthor(entity)
	return entity, nil
}

// notifyAuthor 异步通知作者审核结果，失败仅记录日志。
func (s *Service) notifyAuthor(entity *promptdomain.Prompt) {
	snapshot := *entity
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()

		author, err := s.users.FindByID(ctx, snapshot.CreatedBy)
		if err != nil {
			s.logger.Warnw("load prompt author for notice failed", "promptID", snapshot.ID, "error", err)
			return
		}
		if err := s.notifier.SendModerationNotice(ctx, author, &snapshot); err != nil {
			s.logger.Warnw("send moderation notice failed", "promptID", snapshot.ID, "error", err)
		}
	}()
}

// Delete 删除提示词，仅作者与管理员可调用。
// 点赞明细与本体在同一事务内删除，不留孤儿记录。
func (s *Service) Delete(ctx context.Context, promptID string, actor Viewer) error {
	entity, err := s.repo.FindByID(ctx, promptID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrPromptNotFound
		}
		return fmt.Errorf("query prompt: %w", err)
	}

	if !CanModify(entity, actor) {
		return ErrPermissionDenied
	}

	txErr := s.db.Transaction(func(tx *gorm.DB) error {
		if err := s.upvotes.WithDB(tx).DeleteByPrompt(ctx, promptID); err != nil {
			return err
		}
		return s.repo.WithDB(tx).Delete(ctx, promptID)
	})
	if txErr != nil {
		if errors.Is(txErr, gorm.ErrRecordNotFound) {
			return ErrPromptNotFound
		}
		return fmt.Errorf("delete prompt: %w", txErr)
	}

	s.logger.Infow("prompt deleted", "promptID", promptID, "actor", actor.ID)
	return nil
}

// UseCases 返回可选的用途分类列表。
func (s *Service) UseCases() []string {
	out := make([]string, len(promptdomain.UseCases))
	copy(out, promptdomain.UseCases)
	return out
}

// fillLiked 填充单条记录的点赞标记。
func (s *Service) fillLiked(ctx context.Context, viewerID string, entity *promptdomain.Prompt) error {
	if viewerID == "" || entity == nil {
		return nil
	}
	liked, err := s.upvotes.Exists(ctx, viewerID, entity.ID)
	if err != nil {
		return err
	}
	entity.Liked = liked
	return nil
}

// fillLikedBatch 批量填充点赞标记，列表页一次查询完成。
func (s *Service) fillLikedBatch(ctx context.Context, viewerID string, items []promptdomain.Prompt) error {
	if viewerID == "" || len(items) == 0 {
		return nil
	}
	ids := make([]string, len(items))
	for i, item := range items {
		ids[i] = item.ID
	}
	liked, err := s.upvotes.ListLikedPromptIDs(ctx, viewerID, ids)
	if err != nil {
		return err
	}
	for i := range items {
		items[i].Liked = liked[items[i].ID]
	}
	return nil
}

// fillAuthors 批量填充作者摘要。
func (s *Service) fillAuthors(ctx context.Context, items []*promptdomain.Prompt) error {
	if len(items) == 0 || s.users == nil {
		return nil
	}
	idSet := make(map[string]struct{}, len(items))
	ids := make([]string, 0, len(items))
	for _, item := range items {
		if item == nil || item.CreatedBy == "" {
			continue
		}
		if _, ok := idSet[item.CreatedBy]; ok {
			continue
		}
		idSet[item.CreatedBy] = struct{}{}
		ids = append(ids, item.CreatedBy)
	}

	briefs, err := s.users.FindBriefs(ctx, ids)
	if err != nil {
		return err
	}
	for _, item := range items {
		if item == nil {
			continue
		}
		if brief, ok := briefs[item.CreatedBy]; ok {
			item.Author = &promptdomain.UserBrief{ID: brief.ID, Name: brief.Name, Email: brief.Email}
		}
	}
	return nil
}

// loggingNotifier 在未配置邮件通道时把通知写进日志。
type loggingNotifier struct {
	logger *zap.SugaredLogger
}

func (n loggingNotifier) SendModerationNotice(_ context.Context, user *userdomain.User, p *promptdomain.Prompt) error {
	email := ""
	if user != nil {
		email = user.Email
	}
	n.logger.Infow("moderation notice (email disabled)", "promptID", p.ID, "status", p.Status, "to", email)
	return nil
}
