// Package source drives a watch.State from outside events.
package source

import (
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"github.com/AnatoleLucet/watch"
)

const defaultDebounce = 100 * time.Millisecond

type FileOptions struct {
	// Debounce is how long the file must stay quiet before a change counts.
	// Zero means 100ms.
	Debounce time.Duration

	Logger *zap.Logger

	// CloseOnStop closes the State when the File is closed.
	CloseOnStop bool
}

// File bumps a State's version every time a file changes on disk.
//
// The parent directory is watched rather than the file itself, so editors
// that save through a rename keep being followed.
type File struct {
	path  string
	state *watch.State

	watcher     *fsnotify.Watcher
	debounce    time.Duration
	closeOnStop bool
	logger      *zap.Logger

	mu     sync.Mutex
	timer  *time.Timer
	closed bool

	// incremented per scheduled flush, a flush from an older timer is dropped
	pending uint64

	done    chan struct{}
	stopped chan struct{}
}

// NewFile starts following path. The file itself doesn't need to exist yet,
// its directory does.
func NewFile(path string, state *watch.State, opts FileOptions) (*File, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve %s: %w", path, err)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}

	if err := watcher.Add(filepath.Dir(abs)); err != nil {
		watcher.Close()
		return nil, fmt.Errorf("watch %s: %w", filepath.Dir(abs), err)
	}

	debounce := opts.Debounce
	if debounce <= 0 {
		debounce = defaultDebounce
	}

	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	f := &File{
		path:        abs,
		state:       state,
		watcher:     watcher,
		debounce:    debounce,
		closeOnStop: opts.CloseOnStop,
		logger:      logger.Named("source.file").With(zap.String("path", abs)),
		done:        make(chan struct{}),
		stopped:     make(chan struct{}),
	}

	go f.run()
	return f, nil
}

func (f *File) Path() string {
	return f.path
}

// Close stops following the file, and closes the State if asked to.
func (f *File) Close() error {
	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		return nil
	}
	f.closed = true
	if f.timer != nil {
		f.timer.Stop()
		f.timer = nil
	}
	f.mu.Unlock()

	close(f.done)
	err := f.watcher.Close()
	<-f.stopped

	if f.closeOnStop {
		f.state.Close()
	}

	return err
}

func (f *File) run() {
	defer close(f.stopped)

	for {
		select {
		case event, ok := <-f.watcher.Events:
			if !ok {
				return
			}
			f.handleEvent(event)
		case err, ok := <-f.watcher.Errors:
			if !ok {
				return
			}
			f.logger.Warn("watch error", zap.Error(err))
		case <-f.done:
			return
		}
	}
}

func (f *File) handleEvent(event fsnotify.Event) {
	if filepath.Clean(event.Name) != f.path {
		return
	}

	// permission changes leave the content alone
	if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) &&
		!event.Has(fsnotify.Remove) && !event.Has(fsnotify.Rename) {
		return
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	f.scheduleLocked()
}

// scheduleLocked restarts the quiet period. A timer that already fired may
// have its flush blocked on f.mu, so the old timer is never reused.
func (f *File) scheduleLocked() {
	if f.closed {
		return
	}

	if f.timer != nil {
		f.timer.Stop()
	}

	f.pending++
	pending := f.pending
	f.timer = time.AfterFunc(f.debounce, func() { f.flush(pending) })
}

func (f *File) flush(pending uint64) {
	f.mu.Lock()
	if f.closed || pending != f.pending {
		f.mu.Unlock()
		return
	}
	f.timer = nil
	f.mu.Unlock()

	version := f.state.Bump()
	f.logger.Debug("file changed", zap.Uint64("version", version))
}
