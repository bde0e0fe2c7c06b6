package model

import (
	"time"

	"gorm.io/datatypes"
)

// Character is one game-session identity belonging to a User. At most one
// character per user has IsAlive=true; that invariant is enforced by the
// reconciliation engine, not by a database constraint.
type Character struct {
	ID            int64          `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID        int64          `gorm:"index:idx_char_user;not null" json:"user_id"`
	FullName      string         `gorm:"size:64;not null" json:"full_name"`
	IsAlive       bool           `gorm:"index:idx_char_alive;default:true" json:"is_alive"`
	ZombiesKilled int            `gorm:"default:0" json:"zombies_killed"`
	HoursSurvived float64        `gorm:"default:0" json:"hours_survived"`
	Profession    *string        `gorm:"size:64" json:"profession"`
	Traits        datatypes.JSON `json:"traits"`
	BornAt        time.Time      `gorm:"autoCreateTime" json:"born_at"`
	DiedAt        *time.Time     `json:"died_at"`
	UpdatedAt     time.Time      `gorm:"autoUpdateTime" json:"updated_at"`
}
