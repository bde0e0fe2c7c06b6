package bridge

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriter_CreatesFileAndDir(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sub", "input.txt")
	_, err := NewWriter(path)
	require.NoError(t, err)

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Zero(t, info.Size())
}

func TestWriter_AppendCommands(t *testing.T) {
	path := filepath.Join(t.TempDir(), "input.txt")
	w, err := NewWriter(path)
	require.NoError(t, err)

	commands := []Command{
		{ID: 1, Type: "ADD_MEMBER", Payload: `{"username":"DwightD","faction":"Saviors"}`},
		{ID: 2, Type: "ADD_MEMBER", Payload: `{"username":"EugeneP","faction":"Saviors"}`},
	}
	require.NoError(t, w.AppendCommands(commands))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t,
		"ADD_MEMBER|{\"username\":\"DwightD\",\"faction\":\"Saviors\"}\n"+
			"ADD_MEMBER|{\"username\":\"EugeneP\",\"faction\":\"Saviors\"}\n",
		string(data))
}

func TestWriter_AppendsToExistingContent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "input.txt")
	w, err := NewWriter(path)
	require.NoError(t, err)

	require.NoError(t, w.AppendCommands([]Command{{Type: "ADD_MEMBER", Payload: "{}"}}))
	require.NoError(t, w.AppendCommands([]Command{{Type: "ADD_MEMBER", Payload: "{}"}}))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "ADD_MEMBER|{}\nADD_MEMBER|{}\n", string(data))
}

func TestWriter_EmptyBatchIsNoop(t *testing.T) {
	path := filepath.Join(t.TempDir(), "input.txt")
	w, err := NewWriter(path)
	require.NoError(t, err)

	require.NoError(t, w.AppendCommands(nil))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Zero(t, info.Size())
}
