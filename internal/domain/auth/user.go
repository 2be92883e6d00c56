package auth

import "time"

type UserRole string

const (
	RoleUser  UserRole = "user"
	RoleAdmin UserRole = "admin"
)

type User struct {
	ID                  int64      `gorm:"column:id;primaryKey" json:"id"`
	Email               string     `gorm:"column:email;size:255;not null;uniqueIndex" json:"email"`
	PasswordHash        string     `gorm:"column:password_hash;not null" json:"-"`
	Role                UserRole   `gorm:"column:role;size:16;not null;default:user" json:"role"`
	Name                string     `gorm:"column:name;size:255;not null" json:"name"`
	Phone               string     `gorm:"column:phone;size:32" json:"phone,omitempty"`
	IDCard              string     `gorm:"column:id_card;size:32" json:"id_card,omitempty"`
	FailedLoginAttempts int        `gorm:"column:failed_login_attempts;not null;default:0" json:"-"`
	LockedUntil         *time.Time `gorm:"column:locked_until" json:"-"`
	CreatedAt           time.Time  `gorm:"column:created_at" json:"created_at"`
	UpdatedAt           time.Time  `gorm:"column:updated_at" json:"updated_at"`
}

func (User) TableName() string { return "users" }
