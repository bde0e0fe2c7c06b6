package model

import "time"

// FactionRole is a member's role within a faction.
type FactionRole = string

const (
	RoleLeader    FactionRole = "LEADER"
	RoleModerator FactionRole = "MODERATOR"
	RoleMember    FactionRole = "MEMBER"
)

// Application status values. Accepted applications are deleted, not retained.
const (
	ApplicationPending  = "PENDING"
	ApplicationRejected = "REJECTED"
)

// Faction is a named player group mirrored from the game.
type Faction struct {
	ID          int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	Name        string    `gorm:"uniqueIndex;size:64;not null" json:"name"`
	OwnerID     int64     `gorm:"not null" json:"owner_id"`
	Description string    `gorm:"type:text" json:"description"`
	CreatedAt   time.Time `gorm:"autoCreateTime" json:"created_at"`
}

// FactionMember links a user to a faction. UserID is the primary key, so a
// user belongs to at most one faction; switching factions reuses the row.
type FactionMember struct {
	UserID    int64       `gorm:"primaryKey" json:"user_id"`
	FactionID int64       `gorm:"index:idx_member_faction;not null" json:"faction_id"`
	Role      FactionRole `gorm:"size:16;default:MEMBER" json:"role"`
	JoinedAt  time.Time   `gorm:"autoCreateTime" json:"joined_at"`
}

// FactionApplication is a pending request to join a faction.
type FactionApplication struct {
	ID        int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID    int64     `gorm:"index:idx_app_user;not null" json:"user_id"`
	FactionID int64     `gorm:"index:idx_app_faction;not null" json:"faction_id"`
	Message   string    `gorm:"type:text" json:"message"`
	Status    string    `gorm:"size:16;default:PENDING" json:"status"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
}
