// Package persist writes buffers to disk and runs the polled auto-save sweep.
package persist

import (
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"pkt.systems/pslog"

	"quill/internal/fsys"
	"quill/session"
)

// DefaultInterval is the auto-save period when none is configured.
const DefaultInterval = 30 * time.Second

// ErrNeedsDestination is returned by SaveActive when the active buffer was
// never persisted. The caller asks for a path and calls SaveAs.
var ErrNeedsDestination = errors.New("buffer needs a destination path")

var ErrPathInUse = errors.New("path is open in another buffer")

// Failure classes, matched with errors.Is.
var (
	ErrDirectoryCreate = fsys.ErrCreateDir
	ErrWrite           = fsys.ErrWrite
)

// FailurePolicy decides what a failed auto-save does to the interval timer.
type FailurePolicy int

const (
	// ResetOnFailure restarts the interval after a failed auto-save, so a
	// broken destination is retried once per interval.
	ResetOnFailure FailurePolicy = iota
	// RetryOnFailure keeps the old baseline; the next tick tries again.
	RetryOnFailure
)

// ParsePolicy maps the configuration spelling to a FailurePolicy.
func ParsePolicy(s string) (FailurePolicy, bool) {
	switch s {
	case "", "reset":
		return ResetOnFailure, true
	case "retry":
		return RetryOnFailure, true
	}
	return ResetOnFailure, false
}

func (p FailurePolicy) String() string {
	if p == RetryOnFailure {
		return "retry"
	}
	return "reset"
}

type Options struct {
	FS       fsys.FS
	AutoSave bool
	Interval time.Duration
	Policy   FailurePolicy
	Logger   pslog.Logger
	// Start is the initial auto-save baseline; zero means Now().
	Start time.Time
	// Now defaults to time.Now.
	Now func() time.Time
}

// Controller saves buffers through an fsys.FS and tracks when the last
// successful save happened.
type Controller struct {
	fs       fsys.FS
	autoSave bool
	interval time.Duration
	policy   FailurePolicy
	log      pslog.Logger
	now      func() time.Time
	lastSave time.Time
}

func New(opts Options) *Controller {
	c := &Controller{
		fs:       opts.FS,
		autoSave: opts.AutoSave,
		interval: opts.Interval,
		policy:   opts.Policy,
		log:      opts.Logger,
		now:      opts.Now,
		lastSave: opts.Start,
	}
	if c.interval <= 0 {
		c.interval = DefaultInterval
	}
	if c.fs == nil {
		c.fs = fsys.OS{}
	}
	if c.now == nil {
		c.now = time.Now
	}
	if c.lastSave.IsZero() {
		c.lastSave = c.now()
	}
	return c
}

func (c *Controller) AutoSaveEnabled() bool          { return c.autoSave }
func (c *Controller) SetAutoSave(enabled bool)       { c.autoSave = enabled }
func (c *Controller) Interval() time.Duration        { return c.interval }
func (c *Controller) Policy() FailurePolicy          { return c.policy }
func (c *Controller) LastSave() time.Time            { return c.lastSave }
func (c *Controller) SetPolicy(policy FailurePolicy) { c.policy = policy }

// Save writes buf to path, creating missing parent directories. On success the
// buffer is clean and bound to path. On failure the buffer is not touched.
func (c *Controller) Save(buf *session.TextBuffer, path string) error {
	dir := filepath.Dir(path)
	if err := c.fs.MkdirAll(dir); err != nil {
		err = fsys.Classify(fsys.OpCreateDir, dir, err)
		if c.log != nil {
			c.log.Warn("save failed", "path", path, "err", err)
		}
		return err
	}
	if err := c.fs.WriteFile(path, []byte(buf.Content())); err != nil {
		err = fsys.Classify(fsys.OpWrite, path, err)
		if c.log != nil {
			c.log.Warn("save failed", "path", path, "err", err)
		}
		return err
	}
	buf.MarkPersisted(path)
	c.lastSave = c.now()
	if c.log != nil {
		c.log.Info("saved", "path", path, "runes", buf.Len())
	}
	return nil
}

// SaveActive saves the active buffer to its backing path.
func (c *Controller) SaveActive(store *session.Store) error {
	buf := store.Active()
	path, ok := buf.BackingPath()
	if !ok {
		return ErrNeedsDestination
	}
	return c.Save(buf, path)
}

// SaveAs saves the active buffer to a path the user just supplied. A path
// already backing another open buffer is refused with ErrPathInUse.
func (c *Controller) SaveAs(store *session.Store, path string) error {
	if path == "" {
		return ErrNeedsDestination
	}
	if i, ok := store.FindByPath(path); ok && i != store.ActiveIndex() {
		return fmt.Errorf("%w: %s is open in buffer %d", ErrPathInUse, path, i+1)
	}
	return c.Save(store.Active(), path)
}

// SaveAll saves every modified buffer that has a backing path and returns how
// many were written along with the first error. Untitled buffers are skipped.
func (c *Controller) SaveAll(store *session.Store) (int, error) {
	var (
		saved    int
		firstErr error
	)
	for _, buf := range store.Buffers() {
		path, ok := buf.BackingPath()
		if !ok || !buf.IsModified() {
			continue
		}
		if err := c.Save(buf, path); err != nil {
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		saved++
	}
	return saved, firstErr
}

// AutoSaveOutcome is what a tick did.
type AutoSaveOutcome int

const (
	Skipped AutoSaveOutcome = iota
	Saved
	Failed
)

type AutoSaveResult struct {
	Outcome AutoSaveOutcome
	Path    string
	Err     error
}

// AutoSaveTick is polled once per redraw. It saves the active buffer when
// auto-save is on, interval has elapsed since the last successful save and
// the buffer is modified with a backing path.
func (c *Controller) AutoSaveTick(store *session.Store, interval time.Duration, now time.Time) AutoSaveResult {
	if !c.autoSave || now.Sub(c.lastSave) < interval {
		return AutoSaveResult{Outcome: Skipped}
	}
	buf := store.Active()
	path, ok := buf.BackingPath()
	if !ok || !buf.IsModified() {
		return AutoSaveResult{Outcome: Skipped}
	}
	before := c.lastSave
	err := c.Save(buf, path)
	if err == nil {
		c.lastSave = now
		if c.log != nil {
			c.log.Debug("auto-save", "path", path)
		}
		return AutoSaveResult{Outcome: Saved, Path: path}
	}
	switch c.policy {
	case RetryOnFailure:
		c.lastSave = before
	default:
		c.lastSave = now
	}
	return AutoSaveResult{Outcome: Failed, Path: path, Err: err}
}
