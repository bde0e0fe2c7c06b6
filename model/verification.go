package model

import "time"

// VerificationCode is a one-time token linking a web account to an in-game
// username. Re-issuing a code replaces the existing row (last write wins).
type VerificationCode struct {
	ID        int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	Code      string    `gorm:"uniqueIndex;size:32;not null" json:"code"`
	Username  string    `gorm:"size:64;not null" json:"username"`
	ExpiresAt time.Time `gorm:"not null" json:"expires_at"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
}

// Expired reports whether the code is past its expiry at the given instant.
func (v *VerificationCode) Expired(now time.Time) bool {
	return v.ExpiresAt.Before(now)
}
