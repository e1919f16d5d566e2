package models

import "time"

// UserRole determines access to admin endpoints.
type UserRole string

const (
	RoleUser  UserRole = "user"
	RoleAdmin UserRole = "admin"
)

// UserStatus gates login; inactive accounts cannot sign in and lose any
// existing sessions.
type UserStatus string

const (
	UserActive   UserStatus = "active"
	UserInactive UserStatus = "inactive"
)

// UserModel is a reader or admin account. Username and email are both
// accepted as login identifiers.
type UserModel struct {
	Base
	Username     string     `json:"username"   gorm:"uniqueIndex;not null"`
	Email        string     `json:"email"      gorm:"uniqueIndex;not null"`
	FullName     string     `json:"full_name"`
	PasswordHash string     `json:"-"          gorm:"column:password_hash"`
	Role         UserRole   `json:"role"       gorm:"type:varchar(16);default:user;index"`
	Status       UserStatus `json:"status"     gorm:"type:varchar(16);default:active;index"`
	AvatarURL    string     `json:"avatar_url"`
}

func (UserModel) TableName() string { return "users" }

// IsAdmin reports whether the user may use moderation endpoints.
func (u *UserModel) IsAdmin() bool { return u.Role == RoleAdmin }

// PasswordResetModel is a short-lived reset token issued by forgot-password.
type PasswordResetModel struct {
	Base
	UserID    uint      `json:"user_id"    gorm:"index;not null"`
	Token     string    `json:"-"          gorm:"uniqueIndex;not null"`
	ExpiresAt time.Time `json:"expires_at" gorm:"not null"`
}

func (PasswordResetModel) TableName() string { return "password_resets" }
