package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"gopkg.in/yaml.v3"

	"github.com/dashware/edgegate/internal/observability"
)

// Flags holds the runtime feature flags consulted on every request.
type Flags struct {
	// SiteLocked redirects all non-exempt traffic to the waitlist page.
	SiteLocked bool `yaml:"siteLocked"`
}

// FlagSource provides the current runtime flags. Current is called once per
// request, so implementations must be cheap and safe for concurrent use.
type FlagSource interface {
	Current() Flags
}

// StaticFlags is a FlagSource that always returns the same flags.
type StaticFlags Flags

// Current implements FlagSource.
func (f StaticFlags) Current() Flags {
	return Flags(f)
}

// EnvFlags reads the site-lock flag from the environment on every call,
// preserving the original behavior of re-evaluating configuration per
// request instead of caching it at startup.
type EnvFlags struct{}

// Current implements FlagSource.
func (EnvFlags) Current() Flags {
	return Flags{SiteLocked: getEnvBool("EDGEGATE_SITE_LOCKED", false)}
}

// FileFlags is a FlagSource backed by a YAML file watched with fsnotify.
// Edits to the file take effect without a restart; a missing or malformed
// file leaves the last good flags in place.
type FileFlags struct {
	path    string
	watcher *fsnotify.Watcher
	logger  observability.Logger

	mu      sync.RWMutex
	current Flags

	stopCh  chan struct{}
	stopped sync.Once
}

// FileFlagsOption is a functional option for FileFlags.
type FileFlagsOption func(*FileFlags)

// WithFlagsLogger sets the logger for the flags watcher.
func WithFlagsLogger(logger observability.Logger) FileFlagsOption {
	return func(f *FileFlags) {
		f.logger = logger
	}
}

// NewFileFlags creates a FileFlags source watching the given path. The
// fallback flags are used until the file is first read successfully.
func NewFileFlags(path string, fallback Flags, opts ...FileFlagsOption) (*FileFlags, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve flags file path %s: %w", path, err)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create flags watcher: %w", err)
	}

	f := &FileFlags{
		path:    absPath,
		watcher: watcher,
		logger:  observability.NopLogger(),
		current: fallback,
		stopCh:  make(chan struct{}),
	}

	for _, opt := range opts {
		opt(f)
	}

	if err := f.reload(); err != nil {
		f.logger.Warn("failed to read flags file, using fallback",
			observability.String("path", absPath),
			observability.Error(err),
		)
	}

	// Watch the directory rather than the file so atomic renames
	// (write temp file, rename over) are still observed.
	if err := watcher.Add(filepath.Dir(absPath)); err != nil {
		_ = watcher.Close()
		return nil, fmt.Errorf("failed to watch flags file directory: %w", err)
	}

	go f.watch()

	return f, nil
}

// Current implements FlagSource.
func (f *FileFlags) Current() Flags {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.current
}

// Close stops the watcher.
func (f *FileFlags) Close() error {
	f.stopped.Do(func() {
		close(f.stopCh)
	})
	return f.watcher.Close()
}

// watch processes file events until Close is called.
func (f *FileFlags) watch() {
	// Debounce bursts of events from editors that write in several steps.
	const debounce = 100 * time.Millisecond

	var timer *time.Timer
	var timerCh <-chan time.Time

	for {
		select {
		case event, ok := <-f.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != f.path {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(debounce)
				timerCh = timer.C
			} else {
				timer.Reset(debounce)
			}

		case <-timerCh:
			timer = nil
			timerCh = nil
			if err := f.reload(); err != nil {
				f.logger.Warn("failed to reload flags file",
					observability.String("path", f.path),
					observability.Error(err),
				)
			}

		case err, ok := <-f.watcher.Errors:
			if !ok {
				return
			}
			f.logger.Warn("flags watcher error", observability.Error(err))

		case <-f.stopCh:
			return
		}
	}
}

// reload reads and parses the flags file.
func (f *FileFlags) reload() error {
	data, err := os.ReadFile(f.path)
	if err != nil {
		return fmt.Errorf("failed to read flags file: %w", err)
	}

	var flags Flags
	if err := yaml.Unmarshal(data, &flags); err != nil {
		return fmt.Errorf("failed to parse flags file: %w", err)
	}

	f.mu.Lock()
	changed := f.current != flags
	f.current = flags
	f.mu.Unlock()

	if changed {
		f.logger.Info("runtime flags updated",
			observability.String("path", f.path),
			observability.Bool("site_locked", flags.SiteLocked),
		)
	}

	return nil
}
