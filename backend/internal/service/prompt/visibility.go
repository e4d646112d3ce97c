package prompt

import (
	promptdomain "promptlib-go-app/backend/internal/domain/prompt"
	userdomain "promptlib-go-app/backend/internal/domain/user"
)

// Viewer 描述一次请求的访问身份，ID 为空表示匿名访客。
type Viewer struct {
	ID   string
	Role string
}

// IsAdmin 判断查看者是否为管理员。
func (v Viewer) IsAdmin() bool {
	return v.Role == userdomain.RoleAdmin
}

// MetricsLabel 返回用于指标维度的身份标签。
func (v Viewer) MetricsLabel() string {
	switch {
	case v.IsAdmin():
		return "admin"
	case v.ID != "":
		return "user"
	default:
		return "anonymous"
	}
}

// CanView 判断查看者能否看到指定提示词。
// 已通过审核的记录对所有人可见，其余仅作者与管理员可见。
func CanView(p *promptdomain.Prompt, viewer Viewer) bool {
	if p == nil {
		return false
	}
	if p.Status == promptdomain.PromptStatusApproved {
		return true
	}
	if viewer.IsAdmin() {
		return true
	}
	return viewer.ID != "" && viewer.ID == p.CreatedBy
}

// CanModify 判断操作者能否编辑或删除指定提示词。
func CanModify(p *promptdomain.Prompt, actor Viewer) bool {
	if p == nil || actor.ID == "" {
		return false
	}
	if actor.IsAdmin() {
		return true
	}
	return actor.ID == p.CreatedBy
}
