package user

import "time"

// Role 枚举系统内的用户角色，权限判断处必须覆盖全部取值。
const (
	RoleUser  = "USER"
	RoleAdmin = "ADMIN"
)

// IsValidRole 判断角色取值是否合法。
func IsValidRole(role string) bool {
	return role == RoleUser || role == RoleAdmin
}

// User represents the persisted user entity in the system.
type User struct {
	ID           string     `gorm:"primaryKey;size:36" json:"id"`      // UUID 主键。
	Name         string     `gorm:"size:64;uniqueIndex" json:"name"`   // 登录/展示用的唯一用户名。
	Email        string     `gorm:"size:255;uniqueIndex" json:"email"` // 登录邮箱（唯一）。
	PasswordHash string     `gorm:"size:255" json:"-"`                 // bcrypt 生成的密码哈希。
	Role         string     `gorm:"size:16;not null;default:'USER'" json:"role"` // USER / ADMIN。
	LastLoginAt  *time.Time `json:"last_login_at"`                     // 上次登录时间，可为空。
	CreatedAt    time.Time  `json:"created_at"`                        // 创建时间戳（gorm 自动维护）。
	UpdatedAt    time.Time  `json:"updated_at"`                        // 更新时间戳（gorm 自动维护）。
}

// IsAdmin 返回该用户是否持有管理员角色。
func (u *User) IsAdmin() bool {
	return u != nil && u.Role == RoleAdmin
}

// Brief 返回可安全放入响应体的摘要信息。
func (u *User) Brief() map[string]any {
	if u == nil {
		return nil
	}
	return map[string]any{
		"id":    u.ID,
		"name":  u.Name,
		"email": u.Email,
		"role":  u.Role,
	}
}
