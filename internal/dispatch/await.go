package dispatch

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"github.com/sokinpui/jsxkit/model"
)

const (
	DefaultTimeout           = 600 * time.Second
	DefaultPollInterval      = time.Second
	DefaultHeartbeatInterval = 10 * time.Second
)

// WaitOptions bounds and paces Await.
type WaitOptions struct {
	Timeout           time.Duration
	PollInterval      time.Duration
	HeartbeatInterval time.Duration
	// Heartbeat, when set, is called every HeartbeatInterval while waiting.
	Heartbeat func(elapsed time.Duration)
}

// Waiter observes the filesystem for the marker a dispatched script leaves
// behind. It never touches the external process.
type Waiter struct {
	opts   WaitOptions
	logger *zap.Logger
}

// NewWaiter creates a Waiter. Zero durations take their defaults.
func NewWaiter(opts WaitOptions, logger *zap.Logger) *Waiter {
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = DefaultPollInterval
	}
	if opts.HeartbeatInterval <= 0 {
		opts.HeartbeatInterval = DefaultHeartbeatInterval
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Waiter{opts: opts, logger: logger}
}

// Await blocks until marker exists, the timeout elapses, or ctx is done.
// A timeout is reported as model.TimedOut with a nil error: the caller is
// expected to leave things in place for manual inspection.
func (w *Waiter) Await(ctx context.Context, h model.Handle, marker string) (model.Completion, error) {
	marker = filepath.Clean(marker)
	if exists(marker) {
		return model.Completed, nil
	}

	var events <-chan fsnotify.Event
	var watchErrs <-chan error
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		w.logger.Warn("File watcher unavailable, polling only", zap.Error(err))
	} else {
		defer watcher.Close()
		if err := watcher.Add(filepath.Dir(marker)); err != nil {
			w.logger.Warn("Cannot watch marker directory, polling only",
				zap.String("dir", filepath.Dir(marker)), zap.Error(err))
		} else {
			events = watcher.Events
			watchErrs = watcher.Errors
		}
	}

	start := time.Now()
	deadline := time.NewTimer(w.opts.Timeout)
	defer deadline.Stop()
	poll := time.NewTicker(w.opts.PollInterval)
	defer poll.Stop()
	heartbeat := time.NewTicker(w.opts.HeartbeatInterval)
	defer heartbeat.Stop()

	for {
		select {
		case <-ctx.Done():
			w.logger.Warn("Interrupted while waiting for completion", zap.String("id", h.ID))
			return model.Interrupted, ctx.Err()

		case <-deadline.C:
			// The watcher may have missed a last-moment write.
			if exists(marker) {
				return model.Completed, nil
			}
			w.logger.Warn("Timed out waiting for completion",
				zap.String("id", h.ID),
				zap.String("marker", marker),
				zap.String("script", h.Script),
				zap.Duration("timeout", w.opts.Timeout))
			return model.TimedOut, nil

		case ev, ok := <-events:
			if !ok {
				events = nil
				continue
			}
			if filepath.Clean(ev.Name) == marker && ev.Has(fsnotify.Create|fsnotify.Write|fsnotify.Rename) && exists(marker) {
				w.logger.Debug("Marker observed by watcher", zap.String("marker", marker))
				return model.Completed, nil
			}

		case err, ok := <-watchErrs:
			if !ok {
				watchErrs = nil
				continue
			}
			w.logger.Warn("File watcher error", zap.Error(err))

		case <-poll.C:
			if exists(marker) {
				return model.Completed, nil
			}

		case <-heartbeat.C:
			if w.opts.Heartbeat != nil {
				w.opts.Heartbeat(time.Since(start))
			}
		}
	}
}

func exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
