package session

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/msageha/challenge_editor/internal/lock"
	"github.com/msageha/challenge_editor/internal/logging"
	"github.com/msageha/challenge_editor/internal/schedule"
)

// DefaultReloadDebounce absorbs the burst of events one editor save emits.
const DefaultReloadDebounce = 300 * time.Millisecond

// ReloadResult is reported after every reload attempt.
type ReloadResult struct {
	Schedule schedule.Schedule
	Err      error
}

type WatchOptions struct {
	// LockPath, when set, is flocked for the watcher's lifetime so that a
	// second watcher on the same draft fails fast.
	LockPath string
	Debounce time.Duration
	Logger   *logging.Logger
	OnReload func(ReloadResult)
}

// Watcher applies changes of a draft file on disk to a session.
type Watcher struct {
	path     string
	sess     *Session
	log      *logging.Logger
	debounce time.Duration
	onReload func(ReloadResult)
	fileLock *lock.FileLock

	watcher *fsnotify.Watcher
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup

	debounceMu    sync.Mutex
	debounceTimer *time.Timer
	lastContent   []byte

	shutdown sync.Once
}

func NewWatcher(path string, sess *Session, opts WatchOptions) *Watcher {
	if opts.Debounce <= 0 {
		opts.Debounce = DefaultReloadDebounce
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		abs = filepath.Clean(path)
	}
	w := &Watcher{
		path:     abs,
		sess:     sess,
		log:      opts.Logger.With("watch"),
		debounce: opts.Debounce,
		onReload: opts.OnReload,
	}
	if opts.LockPath != "" {
		w.fileLock = lock.NewFileLock(opts.LockPath)
	}
	return w
}

// Start takes the lock, records the current file content as seen and
// starts watching the file's directory. Editors commonly replace files by
// rename, so the directory is watched rather than the file.
func (w *Watcher) Start() error {
	if w.fileLock != nil {
		if err := w.fileLock.TryLock(); err != nil {
			return fmt.Errorf("watch lock: %w", err)
		}
	}

	content, err := os.ReadFile(w.path)
	if err != nil {
		w.releaseLock()
		return fmt.Errorf("read %s: %w", w.path, err)
	}
	w.lastContent = content

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		w.releaseLock()
		return fmt.Errorf("create fsnotify watcher: %w", err)
	}
	if err := watcher.Add(filepath.Dir(w.path)); err != nil {
		watcher.Close()
		w.releaseLock()
		return fmt.Errorf("watch %s: %w", filepath.Dir(w.path), err)
	}
	w.watcher = watcher
	w.ctx, w.cancel = context.WithCancel(context.Background())

	w.wg.Add(1)
	go w.loop()
	w.log.Infof("watch_started file=%s", w.path)
	return nil
}

func (w *Watcher) loop() {
	defer w.wg.Done()

	for {
		select {
		case <-w.ctx.Done():
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != w.path {
				continue
			}
			if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) {
				w.log.Debugf("fsnotify event=%s file=%s", event.Op, event.Name)
				w.debounceReload()
			}
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.log.Errorf("fsnotify error=%v", err)
		}
	}
}

func (w *Watcher) debounceReload() {
	w.debounceMu.Lock()
	defer w.debounceMu.Unlock()

	if w.debounceTimer != nil {
		w.debounceTimer.Stop()
	}
	w.debounceTimer = time.AfterFunc(w.debounce, func() {
		if w.ctx.Err() != nil {
			return
		}
		w.Reload()
	})
}

// Reload reads the file and applies it to the session unless its content
// is unchanged since the last reload. Parse errors leave the session as it
// was; the next write is tried again.
func (w *Watcher) Reload() {
	content, err := os.ReadFile(w.path)
	if err != nil {
		w.report(ReloadResult{Err: err})
		return
	}

	w.debounceMu.Lock()
	unchanged := bytes.Equal(content, w.lastContent)
	w.debounceMu.Unlock()
	if unchanged {
		return
	}

	d, err := ReadDraftFile(w.path)
	if err != nil {
		w.log.Warnf("reload_failed file=%s error=%v", w.path, err)
		w.report(ReloadResult{Err: err})
		return
	}
	sched, err := w.sess.ApplyExternal(d)
	if err == nil {
		w.debounceMu.Lock()
		w.lastContent = content
		w.debounceMu.Unlock()
	}
	w.report(ReloadResult{Schedule: sched, Err: err})
}

func (w *Watcher) report(r ReloadResult) {
	if w.onReload != nil {
		w.onReload(r)
	}
}

// Stop ends watching and releases the lock. It is idempotent.
func (w *Watcher) Stop() {
	w.shutdown.Do(func() {
		if w.cancel != nil {
			w.cancel()
		}
		w.debounceMu.Lock()
		if w.debounceTimer != nil {
			w.debounceTimer.Stop()
		}
		w.debounceMu.Unlock()
		if w.watcher != nil {
			w.watcher.Close()
		}
		w.wg.Wait()
		w.releaseLock()
		w.log.Infof("watch_stopped file=%s", w.path)
	})
}

func (w *Watcher) releaseLock() {
	if w.fileLock != nil {
		if err := w.fileLock.Unlock(); err != nil {
			w.log.Warnf("watch_unlock_failed error=%v", err)
		}
	}
}
