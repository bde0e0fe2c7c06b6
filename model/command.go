package model

import "time"

// Command types delivered to the game process.
const (
	CommandAddMember = "ADD_MEMBER"
)

// PendingCommand is an outbox entry destined for the game process. Delivery
// is at-least-once: a command is marked processed only after the bridge
// confirms it reached the game input file.
type PendingCommand struct {
	ID        int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	Type      string    `gorm:"size:32;not null" json:"type"`
	Payload   string    `gorm:"type:text" json:"payload"`
	Processed bool      `gorm:"index:idx_cmd_processed;default:false" json:"processed"`
	CreatedAt time.Time `gorm:"index:idx_cmd_created;autoCreateTime:milli" json:"createdAt"`
}
