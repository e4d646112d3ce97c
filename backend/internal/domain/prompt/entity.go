package prompt

import "time"

// PromptStatus 表示 Prompt 的审核状态。
const (
	PromptStatusPending  = "PENDING"
	PromptStatusApproved = "APPROVED"
	PromptStatusRejected = "REJECTED"
)

// UseCaseOther 是用例分类的兜底值，未识别的分类统一落到这里。
const UseCaseOther = "Other"

// DefaultSource 是提交时未填写来源的默认署名。
const DefaultSource = "Anonymous"

// UseCases 列出 Prompt 支持的全部用例分类，提交与编辑时用于校验。
var UseCases = []string{
	"Creative Writing",
	"Data Analysis",
	"Education",
	"Email & Communication",
	"LLM Evaluation",
	"Marketing",
	"Personal Assistant",
	"Programming",
	"Research",
	"Sales",
	"SEO & Content",
	"Social Media",
	"Summarization",
	"Translation",
	UseCaseOther,
}

// NormalizeUseCase 将输入收敛到合法的用例分类，空值或未知值回退到 Other。
func NormalizeUseCase(raw string) string {
	for _, uc := range UseCases {
		if uc == raw {
			return uc
		}
	}
	return UseCaseOther
}

// Prompt 表示社区投稿的一条 Prompt 记录。
//
// Upvotes 是点赞台账（upvotes 表）的冗余计数：任何修改都必须与台账行的
// 增删在同一事务内完成，且只允许相对增减，绝不允许用旧快照回写绝对值。
type Prompt struct {
	ID        string    `gorm:"primaryKey;size:36" json:"id"`                // UUID 主键。
	Title     string    `gorm:"size:255;not null" json:"title"`              // 标题。
	Content   string    `gorm:"type:text;not null" json:"content"`           // Prompt 正文。
	UseCase   string    `gorm:"size:64;not null" json:"use_case"`            // 用例分类，见 UseCases。
	Source    string    `gorm:"size:255;not null" json:"source"`             // 来源署名，默认 Anonymous。
	Upvotes   uint      `gorm:"not null;default:0" json:"upvotes"`           // 点赞数量（冗余计数）。
	Status    string    `gorm:"size:16;not null;default:'PENDING';index" json:"status"` // 审核状态。
	CreatedBy string    `gorm:"size:36;not null;index" json:"created_by"`    // 提交用户编号。
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`            // 创建时间。
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`            // 最近更新时间。

	Liked  bool       `gorm:"-" json:"liked"`            // 当前访问者是否点赞，列表/详情查询时填充。
	Author *UserBrief `gorm:"-" json:"author,omitempty"` // 提交用户的公开信息。
}

// TableName 返回 Prompt 表名。
func (Prompt) TableName() string {
	return "prompts"
}

// Upvote 记录用户对 Prompt 的点赞关系，(user_id, prompt_id) 全局唯一。
// 行的存在与否是“是否已点赞”的唯一事实来源。
type Upvote struct {
	ID        string    `gorm:"primaryKey;size:36"`
	UserID    string    `gorm:"size:36;not null;uniqueIndex:uk_upvotes_user_prompt,priority:1"`
	PromptID  string    `gorm:"size:36;not null;uniqueIndex:uk_upvotes_user_prompt,priority:2;index"`
	CreatedAt time.Time `gorm:"autoCreateTime"`
}

// TableName 返回点赞台账表名。
func (Upvote) TableName() string {
	return "upvotes"
}

// UserBrief 是响应体里携带的作者摘要，避免暴露敏感字段。
type UserBrief struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}
