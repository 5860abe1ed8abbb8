package prompt

import (
	"context"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/afero"

	"github.com/hupe1980/cmdmesh/core"
	"github.com/hupe1980/cmdmesh/logging"
)

// WatcherOptions configures a Watcher.
type WatcherOptions struct {
	Debounce time.Duration
	Logger   logging.Logger
	// OnReload is called after every reload attempt.
	OnReload func(n int, err error)
}

// Watcher reloads the project prompts of a directory into a store whenever
// a prompt file changes. Bursts of events are coalesced by the debounce
// interval.
type Watcher struct {
	core.LoggerAdapter

	fs    afero.Fs
	dir   string
	store Store
	opts  WatcherOptions

	watcher *fsnotify.Watcher

	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}
}

// NewWatcher creates a watcher for dir. fs must be backed by the OS
// filesystem for change notifications to arrive.
func NewWatcher(fs afero.Fs, dir string, store Store, optFns ...func(o *WatcherOptions)) (*Watcher, error) {
	opts := WatcherOptions{
		Debounce: 250 * time.Millisecond,
		Logger:   logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	return &Watcher{
		LoggerAdapter: core.NewLoggerAdapter(opts.Logger),
		fs:            fs,
		dir:           dir,
		store:         store,
		opts:          opts,
		watcher:       fw,
		stopCh:        make(chan struct{}),
		doneCh:        make(chan struct{}),
	}, nil
}

// Reload loads the directory and syncs the store once.
func (w *Watcher) Reload() (int, error) {
	prompts, err := LoadDir(w.fs, w.dir)
	if err == nil {
		err = Sync(w.store, prompts)
	}

	if err != nil {
		w.LogWarn("prompt.reload.failed", "dir", w.dir, "error", err.Error())
	} else {
		w.LogInfo("prompt.reload.completed", "dir", w.dir, "count", len(prompts))
	}
	if w.opts.OnReload != nil {
		w.opts.OnReload(len(prompts), err)
	}

	return len(prompts), err
}

// Start performs an initial reload and begins watching. It is non-blocking.
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return nil
	}
	w.running = true
	w.mu.Unlock()

	if err := w.fs.MkdirAll(w.dir, 0o755); err != nil {
		return err
	}
	if err := w.watcher.Add(w.dir); err != nil {
		return err
	}

	_, _ = w.Reload()

	go w.run(ctx)

	return nil
}

// Stop ends watching and waits for the event loop to exit.
func (w *Watcher) Stop() {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		_ = w.watcher.Close()
		return
	}
	w.running = false
	w.mu.Unlock()

	close(w.stopCh)
	<-w.doneCh

	if err := w.watcher.Close(); err != nil {
		w.LogError("prompt.watcher.close_failed", "error", err.Error())
	}
}

func (w *Watcher) run(ctx context.Context) {
	defer close(w.doneCh)

	var (
		timer   *time.Timer
		pending <-chan time.Time
	)
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stopCh:
			return
		case ev, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if !isPromptFile(ev.Name) || !ev.Has(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename) {
				continue
			}
			w.LogDebug("prompt.watcher.event", "path", ev.Name, "op", ev.Op.String())
			if timer == nil {
				timer = time.NewTimer(w.opts.Debounce)
			} else {
				timer.Reset(w.opts.Debounce)
			}
			pending = timer.C
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.LogError("prompt.watcher.error", "error", err.Error())
		case <-pending:
			pending = nil
			_, _ = w.Reload()
		}
	}
}
