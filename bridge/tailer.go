package bridge

import (
	"bytes"
	"context"
	"io"
	"os"
	"time"

	"go.uber.org/zap"
)

// Tailer surfaces newly appended lines from a growing log file. It starts at
// the current end of the file (no replay), survives truncation and rotation,
// and retries when the file is temporarily missing. Lines are delivered
// exactly once and only when complete; a trailing partial line is buffered
// until its newline arrives.
type Tailer struct {
	path     string
	interval time.Duration
	logger   *zap.Logger
	lines    chan string
}

// NewTailer creates a Tailer polling the file on the given interval.
func NewTailer(path string, interval time.Duration, logger *zap.Logger) *Tailer {
	if interval <= 0 {
		interval = time.Second
	}
	return &Tailer{
		path:     path,
		interval: interval,
		logger:   logger,
		lines:    make(chan string, 256),
	}
}

// Lines returns the channel of complete log lines. It is closed when Run
// returns.
func (t *Tailer) Lines() <-chan string {
	return t.lines
}

// Run polls the file until ctx is cancelled. It never returns an error:
// read failures are logged and retried on the next tick.
func (t *Tailer) Run(ctx context.Context) {
	defer close(t.lines)

	ticker := time.NewTicker(t.interval)
	defer ticker.Stop()

	var (
		file    *os.File
		offset  int64
		partial []byte
		first   = true
	)
	defer func() {
		if file != nil {
			file.Close()
		}
	}()

	for {
		if file == nil {
			f, err := os.Open(t.path)
			if err == nil {
				file = f
				offset = 0
				partial = partial[:0]
				if first {
					// Skip historical content on startup.
					if end, serr := f.Seek(0, io.SeekEnd); serr == nil {
						offset = end
					}
				}
				t.logger.Info("tailing log file", zap.String("path", t.path), zap.Int64("offset", offset))
			} else if first {
				t.logger.Warn("log file not found, waiting", zap.String("path", t.path))
			}
			first = false
		}

		if file != nil {
			var ok bool
			file, offset, ok = t.checkRotation(ctx, file, offset, &partial)
			if !ok {
				return
			}
		}

		if file != nil {
			n, ok := t.readNew(ctx, file, &partial)
			if !ok {
				return
			}
			offset += n
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// checkRotation detects file replacement (new inode) and truncation
// (shrinking size). A rotated-out or renamed file is final, so its unread
// tail is drained before the handle is closed; the next pass then reopens
// from the beginning of the new file. On truncation reading resumes from
// offset zero. The bool is false when ctx ended mid-drain.
func (t *Tailer) checkRotation(ctx context.Context, file *os.File, offset int64, partial *[]byte) (*os.File, int64, bool) {
	cur, err := os.Stat(t.path)
	if err != nil {
		t.logger.Warn("log file vanished, reopening", zap.String("path", t.path))
		ok := t.drainFinal(ctx, file, partial)
		file.Close()
		return nil, 0, ok
	}

	if fi, err := file.Stat(); err == nil && !os.SameFile(fi, cur) {
		t.logger.Info("log file rotated", zap.String("path", t.path))
		ok := t.drainFinal(ctx, file, partial)
		file.Close()
		return nil, 0, ok
	}

	if cur.Size() < offset {
		t.logger.Info("log file truncated, restarting", zap.String("path", t.path))
		if _, err := file.Seek(0, io.SeekStart); err != nil {
			file.Close()
			return nil, 0, true
		}
		*partial = (*partial)[:0]
		return file, 0, true
	}

	return file, offset, true
}

// drainFinal reads a finished file to EOF and emits what is left, including
// a trailing line with no newline; nothing more will ever be appended to it.
func (t *Tailer) drainFinal(ctx context.Context, file *os.File, partial *[]byte) bool {
	if _, ok := t.readNew(ctx, file, partial); !ok {
		return false
	}
	if len(*partial) > 0 {
		line := string(bytes.TrimRight(*partial, "\r"))
		*partial = (*partial)[:0]
		if line != "" {
			select {
			case t.lines <- line:
			case <-ctx.Done():
				return false
			}
		}
	}
	return true
}

// readNew drains everything appended since the last read and emits complete
// lines. Returns the number of bytes consumed and false when ctx ended.
func (t *Tailer) readNew(ctx context.Context, file *os.File, partial *[]byte) (int64, bool) {
	var consumed int64
	buf := make([]byte, 32*1024)
	for {
		n, err := file.Read(buf)
		if n > 0 {
			consumed += int64(n)
			*partial = append(*partial, buf[:n]...)
			for {
				idx := bytes.IndexByte(*partial, '\n')
				if idx < 0 {
					break
				}
				line := string(bytes.TrimRight((*partial)[:idx], "\r"))
				*partial = (*partial)[idx+1:]
				if line == "" {
					continue
				}
				select {
				case t.lines <- line:
				case <-ctx.Done():
					return consumed, false
				}
			}
		}
		if err != nil {
			if err != io.EOF {
				t.logger.Warn("log read failed", zap.Error(err))
			}
			return consumed, true
		}
	}
}
