// Package domain contains core types for back office authentication.
package domain

import "time"

// Admin is a back office account.
type Admin struct {
	ID           int64     `gorm:"primaryKey"`
	Username     string    `gorm:"type:varchar(191);not null;uniqueIndex"`
	PasswordHash string    `gorm:"column:password_hash;not null"`
	CreatedAt    time.Time `gorm:"not null"`
	UpdatedAt    time.Time `gorm:"not null"`
}

// TableName sets the database table name.
func (Admin) TableName() string { return "admins" }

// Session is a persisted login session. Only the token hash is stored.
type Session struct {
	ID               int64      `gorm:"primaryKey"`
	AdminID          int64      `gorm:"column:admin_id;not null;index"`
	SessionTokenHash string     `gorm:"column:session_token_hash;not null;uniqueIndex"`
	UserAgent        string     `gorm:"column:user_agent"`
	IP               string     `gorm:"column:ip"`
	ExpiresAt        time.Time  `gorm:"column:expires_at;not null;index"`
	RevokedAt        *time.Time `gorm:"column:revoked_at"`
	LastSeenAt       time.Time  `gorm:"column:last_seen_at;not null"`
	CreatedAt        time.Time  `gorm:"column:created_at;not null"`
}

// TableName sets the database table name.
func (Session) TableName() string { return "admin_sessions" }

// Principal is the admin bound to an authenticated request.
type Principal struct {
	AdminID   int64
	Username  string
	SessionID int64
}
