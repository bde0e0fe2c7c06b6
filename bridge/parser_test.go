package bridge

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLine_Auth(t *testing.T) {
	ev, ok := ParseLine("AUTH|RickGrimes|482913")
	require.True(t, ok)
	require.Equal(t, KindAuth, ev.Kind)
	assert.Equal(t, "RickGrimes", ev.Auth.Username)
	assert.Equal(t, "482913", ev.Auth.Code)
}

func TestParseLine_AuthTrimsFields(t *testing.T) {
	ev, ok := ParseLine("AUTH| RickGrimes | 482913 ")
	require.True(t, ok)
	assert.Equal(t, "RickGrimes", ev.Auth.Username)
	assert.Equal(t, "482913", ev.Auth.Code)
}

func TestParseLine_Stats(t *testing.T) {
	line := `STATS|{"username":"RickGrimes","charName":"Rick Grimes","stats":{"zombiesKilled":250,"hoursSurvived":80.5,"profession":"Police Officer","traits":["Brave","Athletic"]},"faction":"Alexandria","isLeader":true}`
	ev, ok := ParseLine(line)
	require.True(t, ok)
	require.Equal(t, KindStats, ev.Kind)
	assert.Equal(t, "RickGrimes", ev.Stats.Username)
	assert.Equal(t, "Rick Grimes", ev.Stats.CharName)
	assert.Equal(t, 250, ev.Stats.Stats.ZombiesKilled)
	assert.InDelta(t, 80.5, ev.Stats.Stats.HoursSurvived, 0.001)
	assert.Equal(t, "Alexandria", ev.Stats.Faction)
	assert.True(t, ev.Stats.IsLeader)
}

func TestParseLine_StatsMinimal(t *testing.T) {
	ev, ok := ParseLine(`STATS|{"username":"A","charName":"B"}`)
	require.True(t, ok)
	assert.Equal(t, 0, ev.Stats.Stats.ZombiesKilled)
	assert.Empty(t, ev.Stats.Faction)
	assert.False(t, ev.Stats.IsLeader)
}

func TestParseLine_Rejects(t *testing.T) {
	cases := []struct {
		name string
		line string
	}{
		{"empty", ""},
		{"whitespace", "   "},
		{"unknown prefix", "HELLO|world"},
		{"auth missing code", "AUTH|RickGrimes"},
		{"auth blank username", "AUTH||482913"},
		{"auth blank code", "AUTH|RickGrimes|   "},
		{"stats bad json", "STATS|{not json"},
		{"stats missing username", `STATS|{"charName":"Rick"}`},
		{"stats missing charName", `STATS|{"username":"Rick"}`},
		{"bare auth", "AUTH|"},
		{"bare stats", "STATS|"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, ok := ParseLine(tc.line)
			assert.False(t, ok)
		})
	}
}

func TestParseLine_AuthExtraFieldsIgnored(t *testing.T) {
	// A pipe inside trailing junk must not break the first two fields.
	ev, ok := ParseLine("AUTH|RickGrimes|482913|extra")
	require.True(t, ok)
	assert.Equal(t, "482913", ev.Auth.Code)
}
