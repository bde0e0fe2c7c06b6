package bridge

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Writer appends commands to the game's input file as TYPE|payload lines.
// The whole batch is written and fsynced in one open/close cycle; commands
// are only acknowledged to the hub after a successful flush, so a crash
// re-delivers rather than drops (the game-side consumer tolerates
// duplicates).
type Writer struct {
	path string
}

// NewWriter creates a Writer for the given input file path, creating the
// parent directory and an empty file if absent.
func NewWriter(path string) (*Writer, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, err
	}
	f.Close()
	return &Writer{path: path}, nil
}

// AppendCommands writes all commands as one durable append. Returns an
// error before any acknowledgment should happen.
func (w *Writer) AppendCommands(commands []Command) error {
	if len(commands) == 0 {
		return nil
	}

	var sb strings.Builder
	for _, cmd := range commands {
		fmt.Fprintf(&sb, "%s|%s\n", cmd.Type, cmd.Payload)
	}

	f, err := os.OpenFile(w.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	if _, err := f.WriteString(sb.String()); err != nil {
		return err
	}
	return f.Sync()
}
