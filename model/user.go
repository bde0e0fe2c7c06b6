package model

import "time"

// User is the identity anchor for a web account. Username is the linked
// in-game name; it is nullable until the verification flow links one and
// globally unique afterwards.
type User struct {
	ID           int64      `gorm:"primaryKey;autoIncrement" json:"id"`
	Email        string     `gorm:"uniqueIndex;size:128;not null" json:"email"`
	PasswordHash string     `gorm:"size:64;not null" json:"-"`
	Username     *string    `gorm:"uniqueIndex;size:64" json:"username"`
	IsVerified   bool       `gorm:"default:false" json:"is_verified"`
	Status       int        `gorm:"default:1" json:"status"` // 0=banned 1=normal
	CreatedAt    time.Time  `gorm:"autoCreateTime" json:"created_at"`
	LastLoginAt  *time.Time `json:"last_login_at"`
	LastLoginIP  string     `gorm:"size:45" json:"last_login_ip"`
}
