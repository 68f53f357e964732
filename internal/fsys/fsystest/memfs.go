// Package fsystest provides an in-memory fsys.FS with failure injection.
package fsystest

import (
	"errors"
	"os"
	"path/filepath"

	"quill/internal/fsys"
)

var ErrInjected = errors.New("injected failure")

// MemFS keeps files and directories in maps. Paths listed in FailWrite,
// FailRead or FailMkdir fail with ErrInjected wrapped in an fsys.IOError.
type MemFS struct {
	Files     map[string]string
	Dirs      map[string]bool
	FailWrite map[string]bool
	FailRead  map[string]bool
	FailMkdir map[string]bool
	Writes    int
}

func New() *MemFS {
	return &MemFS{
		Files:     map[string]string{},
		Dirs:      map[string]bool{"/": true, ".": true},
		FailWrite: map[string]bool{},
		FailRead:  map[string]bool{},
		FailMkdir: map[string]bool{},
	}
}

func (m *MemFS) ReadFile(path string) ([]byte, error) {
	path = filepath.Clean(path)
	if m.FailRead[path] {
		return nil, &fsys.IOError{Op: fsys.OpRead, Path: path, Err: ErrInjected}
	}
	data, ok := m.Files[path]
	if !ok {
		return nil, &fsys.IOError{Op: fsys.OpRead, Path: path, Err: os.ErrNotExist}
	}
	return []byte(data), nil
}

func (m *MemFS) WriteFile(path string, data []byte) error {
	path = filepath.Clean(path)
	if m.FailWrite[path] {
		return &fsys.IOError{Op: fsys.OpWrite, Path: path, Err: ErrInjected}
	}
	if !m.Dirs[filepath.Dir(path)] {
		return &fsys.IOError{Op: fsys.OpWrite, Path: path, Err: os.ErrNotExist}
	}
	m.Files[path] = string(data)
	m.Writes++
	return nil
}

func (m *MemFS) MkdirAll(path string) error {
	path = filepath.Clean(path)
	for p := path; ; p = filepath.Dir(p) {
		if m.FailMkdir[p] {
			return &fsys.IOError{Op: fsys.OpCreateDir, Path: path, Err: ErrInjected}
		}
		if p == filepath.Dir(p) {
			break
		}
	}
	for p := path; !m.Dirs[p]; p = filepath.Dir(p) {
		m.Dirs[p] = true
	}
	return nil
}
