package bridge

import (
	"encoding/json"
	"strings"
)

// EventKind tags the parsed event type.
type EventKind int

const (
	// KindAuth is an AUTH|username|code line.
	KindAuth EventKind = iota
	// KindStats is a STATS|<json> line.
	KindStats
)

// AuthEvent is a verification code announcement from the game.
type AuthEvent struct {
	Username string `json:"username"`
	Code     string `json:"code"`
}

// StatsEvent is a character stats report from the game.
type StatsEvent struct {
	Username string `json:"username"`
	CharName string `json:"charName"`
	Stats    struct {
		ZombiesKilled int      `json:"zombiesKilled"`
		HoursSurvived float64  `json:"hoursSurvived"`
		Profession    string   `json:"profession"`
		Traits        []string `json:"traits"`
	} `json:"stats"`
	Faction  string `json:"faction"`
	IsLeader bool   `json:"isLeader"`
}

// Event is one typed fact derived from a log line.
type Event struct {
	Kind  EventKind
	Auth  *AuthEvent
	Stats *StatsEvent
}

// ParseLine turns one raw log line into an Event. It is pure and total:
// malformed input yields ok=false, never a panic or error. Unknown prefixes
// and blank lines are silently ignored.
func ParseLine(line string) (Event, bool) {
	line = strings.TrimSpace(line)
	if line == "" {
		return Event{}, false
	}

	switch {
	case strings.HasPrefix(line, "AUTH|"):
		parts := strings.Split(line, "|")
		if len(parts) < 3 {
			return Event{}, false
		}
		username := strings.TrimSpace(parts[1])
		code := strings.TrimSpace(parts[2])
		if username == "" || code == "" {
			return Event{}, false
		}
		return Event{Kind: KindAuth, Auth: &AuthEvent{Username: username, Code: code}}, true

	case strings.HasPrefix(line, "STATS|"):
		payload := line[len("STATS|"):]
		var ev StatsEvent
		if err := json.Unmarshal([]byte(payload), &ev); err != nil {
			return Event{}, false
		}
		if ev.Username == "" || ev.CharName == "" {
			return Event{}, false
		}
		return Event{Kind: KindStats, Stats: &ev}, true

	default:
		return Event{}, false
	}
}
