package scheduler

import (
	"context"
	"errors"
	"io/fs"

	"github.com/MrSnakeDoc/npdstracker/internal/logger"
)

// LineSource is a stored command log.
type LineSource interface {
	Name() string
	Load(ctx context.Context) ([]string, error)
}

// Replayer runs a command line without a client attached.
type Replayer interface {
	Replay(ctx context.Context, line string)
}

// Restorer rebuilds the registry at startup by replaying a stored command
// log through the protocol handler.
type Restorer struct {
	sources  []LineSource
	replayer Replayer
	logger   logger.Logger
}

// NewRestorer creates a restorer. Sources are tried in order; the first one
// that holds a command log wins.
func NewRestorer(replayer Replayer, log logger.Logger, sources ...LineSource) *Restorer {
	return &Restorer{
		sources:  sources,
		replayer: replayer,
		logger:   log,
	}
}

// Restore replays the first available command log and returns the number of
// lines replayed. A source without a log is skipped silently; a failing one
// is logged and skipped, and its error is returned if no later source could
// be read.
func (r *Restorer) Restore(ctx context.Context) (int, error) {
	var lastErr error
	for _, src := range r.sources {
		lines, err := src.Load(ctx)
		if errors.Is(err, fs.ErrNotExist) {
			r.logger.Info("no command log found", logger.String("source", src.Name()))
			continue
		}
		if err != nil {
			r.logger.Warn("failed to load command log",
				logger.String("source", src.Name()),
				logger.Error(err))
			lastErr = err
			continue
		}

		r.logger.Info("replaying command log",
			logger.String("source", src.Name()),
			logger.Int("lines", len(lines)))
		for _, line := range lines {
			r.replayer.Replay(ctx, line)
		}
		return len(lines), nil
	}
	return 0, lastErr
}
