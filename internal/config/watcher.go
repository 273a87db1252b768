package config

import (
	"context"
	"log/slog"
	"time"
)

// Watcher periodically reloads configuration and notifies a callback, so
// long-running consumers pick up tenant/org changes without restarting.
//
// It runs only when Run is called and stops when the context is canceled.
// No goroutine is started as an import side effect.
type Watcher struct {
	interval time.Duration
	logger   *slog.Logger
	onChange func(*Config)
}

// NewWatcher creates a watcher firing every interval. onChange receives
// each successfully loaded configuration.
func NewWatcher(interval time.Duration, logger *slog.Logger, onChange func(*Config)) *Watcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Watcher{interval: interval, logger: logger, onChange: onChange}
}

// Run blocks, reloading config on every tick until ctx is canceled.
// Load failures are logged and skipped; the previous configuration stays
// in effect.
func (w *Watcher) Run(ctx context.Context) error {
	if w.interval <= 0 {
		w.logger.Debug("config watcher disabled, no refresh interval")
		<-ctx.Done()
		return ctx.Err()
	}

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			cfg, err := Load()
			if err != nil {
				w.logger.Warn("config refresh failed, keeping previous configuration", "error", err)
				continue
			}
			w.logger.Debug("config refreshed")
			if w.onChange != nil {
				w.onChange(cfg)
			}
		}
	}
}
