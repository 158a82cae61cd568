package model

import "time"

// 账号来源。
const (
	ProviderPassword = "password"
)

// User 对应数据库中的 'users' 表。
type User struct {
	ID            uint      `gorm:"primaryKey" json:"id"`
	Email         string    `gorm:"type:varchar(255);uniqueIndex;not null" json:"email"`
	Password      string    `gorm:"type:varchar(255)" json:"-"`
	Provider      string    `gorm:"type:varchar(32);not null;default:'password'" json:"provider"`
	ProviderUID   string    `gorm:"type:varchar(255);index" json:"-"`
	EmailVerified bool      `gorm:"not null;default:false" json:"emailVerified"`
	CreatedAt     time.Time `gorm:"autoCreateTime" json:"createdAt"`
	UpdatedAt     time.Time `gorm:"autoUpdateTime" json:"updatedAt"`
}

// TableName 指定了此模型在数据库中对应的表名。
func (User) TableName() string {
	return "users"
}

// SessionUser 是会话网关对外暴露的当前用户视图。
type SessionUser struct {
	ID            uint   `json:"id"`
	Email         string `json:"email"`
	EmailVerified bool   `json:"emailVerified"`
	Provider      string `json:"provider"`
}

// ToSessionUser 将数据库用户转换为会话视图。
func (u *User) ToSessionUser() *SessionUser {
	return &SessionUser{
		ID:            u.ID,
		Email:         u.Email,
		EmailVerified: u.EmailVerified,
		Provider:      u.Provider,
	}
}

// IsVerified 报告用户是否可以进入会话核心。第三方账号由身份提供方负责验证。
func (u *SessionUser) IsVerified() bool {
	if u == nil {
		return false
	}
	return u.EmailVerified || u.Provider != ProviderPassword
}
