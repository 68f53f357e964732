// Package session owns the set of open buffers and which one is active.
package session

import (
	"errors"
	"path/filepath"

	"pkt.systems/pslog"

	"quill/editor"
	"quill/internal/fsys"
)

var (
	ErrOutOfRange = errors.New("buffer index out of range")
	ErrNoPath     = errors.New("buffer has no backing path")
)

// Store is an ordered set of buffers with one active buffer. It always holds
// at least one buffer.
type Store struct {
	buffers []*TextBuffer
	active  int

	fs   fsys.FS
	clip editor.Clipboard
	log  pslog.Logger
}

type Option func(*Store)

// WithFS replaces the real file system, mainly for tests.
func WithFS(fs fsys.FS) Option {
	return func(s *Store) { s.fs = fs }
}

// WithClipboard attaches c to every buffer the store creates.
func WithClipboard(c editor.Clipboard) Option {
	return func(s *Store) { s.clip = c }
}

func WithLogger(log pslog.Logger) Option {
	return func(s *Store) { s.log = log }
}

// NewStore returns a store holding a single untitled buffer.
func NewStore(opts ...Option) *Store {
	s := &Store{fs: fsys.OS{}}
	for _, opt := range opts {
		opt(s)
	}
	s.buffers = []*TextBuffer{s.attach(newUntitled())}
	return s
}

func (s *Store) attach(b *TextBuffer) *TextBuffer {
	if s.clip != nil {
		b.SetClipboard(s.clip)
	}
	return b
}

func (s *Store) Len() int         { return len(s.buffers) }
func (s *Store) ActiveIndex() int { return s.active }

func (s *Store) Active() *TextBuffer { return s.buffers[s.active] }

// Buffers returns the buffers in display order. The slice is a copy.
func (s *Store) Buffers() []*TextBuffer {
	return append([]*TextBuffer(nil), s.buffers...)
}

// At returns the buffer at index i.
func (s *Store) At(i int) (*TextBuffer, error) {
	if i < 0 || i >= len(s.buffers) {
		return nil, ErrOutOfRange
	}
	return s.buffers[i], nil
}

// OpenUntitled appends an empty buffer and makes it active.
func (s *Store) OpenUntitled() *TextBuffer {
	b := s.attach(newUntitled())
	s.buffers = append(s.buffers, b)
	s.active = len(s.buffers) - 1
	if s.log != nil {
		s.log.Debug("buffer opened", "index", s.active, "name", b.name)
	}
	return b
}

// OpenPath reads path into a new active buffer. If a buffer is already backed
// by path it is activated instead and the file is not re-read into it.
func (s *Store) OpenPath(path string) (*TextBuffer, error) {
	data, err := s.fs.ReadFile(path)
	if err != nil {
		err = fsys.Classify(fsys.OpRead, path, err)
		if s.log != nil {
			s.log.Warn("open failed", "path", path, "err", err)
		}
		return nil, err
	}
	if i, ok := s.FindByPath(path); ok {
		s.active = i
		return s.buffers[i], nil
	}
	b := s.attach(newLoaded(path, []rune(string(data))))
	s.buffers = append(s.buffers, b)
	s.active = len(s.buffers) - 1
	if s.log != nil {
		s.log.Debug("buffer opened", "index", s.active, "path", path)
	}
	return b, nil
}

// OpenPending adds an empty buffer bound to path without reading it. Used for
// files named on the command line that do not exist yet.
func (s *Store) OpenPending(path string) *TextBuffer {
	if i, ok := s.FindByPath(path); ok {
		s.active = i
		return s.buffers[i]
	}
	b := s.attach(newLoaded(path, nil))
	s.buffers = append(s.buffers, b)
	s.active = len(s.buffers) - 1
	return b
}

// FindByPath returns the index of the buffer backed by path.
func (s *Store) FindByPath(path string) (int, bool) {
	want := filepath.Clean(path)
	for i, b := range s.buffers {
		if b.path != "" && filepath.Clean(b.path) == want {
			return i, true
		}
	}
	return -1, false
}

// CloseActive removes the active buffer. Closing the last buffer replaces it
// with a fresh untitled one.
func (s *Store) CloseActive() {
	closed := s.buffers[s.active]
	if len(s.buffers) == 1 {
		s.buffers[0] = s.attach(newUntitled())
		s.active = 0
	} else {
		s.buffers = append(s.buffers[:s.active], s.buffers[s.active+1:]...)
		if s.active >= len(s.buffers) {
			s.active = len(s.buffers) - 1
		}
	}
	if s.log != nil {
		s.log.Debug("buffer closed", "name", closed.name, "remaining", len(s.buffers))
	}
}

// SetActive makes buffer i active.
func (s *Store) SetActive(i int) error {
	if i < 0 || i >= len(s.buffers) {
		return ErrOutOfRange
	}
	s.active = i
	return nil
}

// Cycle moves the active index by delta, wrapping in both directions.
func (s *Store) Cycle(delta int) {
	n := len(s.buffers)
	s.active = ((s.active+delta)%n + n) % n
}

// ReloadActive re-reads the active buffer from its backing file, discarding
// unsaved edits. The buffer is unchanged if the read fails.
func (s *Store) ReloadActive() error {
	b := s.Active()
	if b.path == "" {
		return ErrNoPath
	}
	data, err := s.fs.ReadFile(b.path)
	if err != nil {
		return fsys.Classify(fsys.OpRead, b.path, err)
	}
	b.markLoaded([]rune(string(data)))
	return nil
}

// ModifiedCount reports how many buffers have unsaved changes.
func (s *Store) ModifiedCount() int {
	n := 0
	for _, b := range s.buffers {
		if b.modified {
			n++
		}
	}
	return n
}
