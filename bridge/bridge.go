package bridge

import (
	"context"

	"github.com/grimsurvivors/potdhub/config"
	"github.com/grimsurvivors/potdhub/scheduler"
	"go.uber.org/zap"
)

// Bridge links the offline game process to the hub: it tails the game log
// into reconciliation calls, and polls pending commands into the game input
// file. Both loops tolerate individual failures and never crash the process.
type Bridge struct {
	cfg    config.BridgeConfig
	client *Client
	tailer *Tailer
	writer *Writer
	sched  *scheduler.Scheduler
	logger *zap.Logger
}

// New wires a Bridge from config.
func New(cfg config.BridgeConfig, logger *zap.Logger) (*Bridge, error) {
	writer, err := NewWriter(cfg.InputFile)
	if err != nil {
		return nil, err
	}
	return &Bridge{
		cfg:    cfg,
		client: NewClient(cfg),
		tailer: NewTailer(cfg.LogFile, cfg.TailInterval, logger),
		writer: writer,
		sched:  scheduler.New(logger),
		logger: logger,
	}, nil
}

// Run starts the outbound poll loop and consumes the log until ctx ends.
func (b *Bridge) Run(ctx context.Context) {
	go b.tailer.Run(ctx)

	b.sched.AddTicker("command_poll", b.cfg.PollInterval, func() {
		b.pollCommands(ctx)
	})
	defer b.sched.Stop()

	// Inbound path: sequential, line by line. A failed push is logged and
	// dropped; the log line is not re-read (at-most-once by design).
	for line := range b.tailer.Lines() {
		ev, ok := ParseLine(line)
		if !ok {
			continue
		}
		b.dispatch(ctx, ev)
	}
}

func (b *Bridge) dispatch(ctx context.Context, ev Event) {
	switch ev.Kind {
	case KindAuth:
		if err := b.client.PushAuth(ctx, ev.Auth); err != nil {
			b.logger.Error("auth push failed",
				zap.String("username", ev.Auth.Username), zap.Error(err))
		}
	case KindStats:
		if err := b.client.PushStats(ctx, ev.Stats); err != nil {
			b.logger.Error("stats push failed",
				zap.String("username", ev.Stats.Username), zap.Error(err))
		}
	}
}

// pollCommands fetches pending commands, appends them to the game input
// file, and acknowledges them. Acknowledgment happens strictly after the
// file flush; on write failure the commands stay pending and are retried
// next interval.
func (b *Bridge) pollCommands(ctx context.Context) {
	commands, err := b.client.FetchPending(ctx)
	if err != nil {
		b.logger.Warn("fetch pending failed", zap.Error(err))
		return
	}
	if len(commands) == 0 {
		return
	}

	if err := b.writer.AppendCommands(commands); err != nil {
		b.logger.Error("input file write failed, commands left pending", zap.Error(err))
		return
	}

	ids := make([]int64, len(commands))
	for i, cmd := range commands {
		ids[i] = cmd.ID
	}
	if err := b.client.Acknowledge(ctx, ids); err != nil {
		// The hub will re-deliver; the game input file tolerates duplicates.
		b.logger.Warn("ack failed, commands will be re-delivered", zap.Error(err))
		return
	}
	b.logger.Info("commands delivered", zap.Int("count", len(commands)))
}
