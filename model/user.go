package model

import "time"

// User types.
const (
	UserTypeStudent = "student"
	UserTypeTeacher = "teacher"
)

// User is a platform account. Students additionally own a PlayerProfile.
type User struct {
	ID           int64      `gorm:"primaryKey;autoIncrement" json:"id"`
	Name         string     `gorm:"size:64;not null" json:"name"`
	Username     string     `gorm:"uniqueIndex;size:32;not null" json:"username"`
	Email        string     `gorm:"uniqueIndex;size:128;not null" json:"email"`
	PasswordHash string     `gorm:"size:128;not null" json:"-"`
	UserType     string     `gorm:"size:16;default:student" json:"user_type"`
	LastLoginAt  *time.Time `json:"last_login_at"`
	LastLoginIP  string     `gorm:"size:45" json:"-"`
	CreatedAt    time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt    time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}
