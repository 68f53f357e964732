// Package fsys is the file-system boundary of the editor core. Buffers are
// plain text read and written verbatim; every failure is wrapped in an
// IOError that records which operation failed.
package fsys

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// Op names the file-system operation behind an IOError.
type Op string

const (
	OpRead      Op = "read"
	OpWrite     Op = "write"
	OpCreateDir Op = "create directory"
)

// Error classes, matched with errors.Is against an IOError.
var (
	ErrRead      = errors.New("read failed")
	ErrWrite     = errors.New("write failed")
	ErrCreateDir = errors.New("directory create failed")
)

// IOError carries the failing operation, the path and the underlying cause.
type IOError struct {
	Op   Op
	Path string
	Err  error
}

func (e *IOError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Err)
}

func (e *IOError) Unwrap() error { return e.Err }

// Is matches the class sentinel for the failing operation.
func (e *IOError) Is(target error) bool {
	switch target {
	case ErrRead:
		return e.Op == OpRead
	case ErrWrite:
		return e.Op == OpWrite
	case ErrCreateDir:
		return e.Op == OpCreateDir
	}
	return false
}

// FS is the contract the core needs from the host file system.
type FS interface {
	ReadFile(path string) ([]byte, error)
	WriteFile(path string, data []byte) error
	MkdirAll(path string) error
}

// OS implements FS on the real file system. Writes go through a temp file in
// the destination directory and a rename, so a failed write never leaves a
// truncated file behind.
type OS struct{}

func (OS) ReadFile(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &IOError{Op: OpRead, Path: path, Err: err}
	}
	return data, nil
}

func (OS) MkdirAll(path string) error {
	if err := os.MkdirAll(path, 0o755); err != nil {
		return &IOError{Op: OpCreateDir, Path: path, Err: err}
	}
	return nil
}

func (OS) WriteFile(path string, data []byte) error {
	if err := writeAtomic(path, data); err != nil {
		return &IOError{Op: OpWrite, Path: path, Err: err}
	}
	return nil
}

func writeAtomic(path string, data []byte) error {
	mode := os.FileMode(0o644)
	if info, err := os.Stat(path); err == nil {
		if !info.Mode().IsRegular() {
			return fmt.Errorf("not a regular file")
		}
		mode = info.Mode().Perm()
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+"-*.tmp")
	if err != nil {
		return err
	}
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return err
	}
	if err := os.Chmod(tmp.Name(), mode); err != nil {
		_ = os.Remove(tmp.Name())
		return err
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		_ = os.Remove(tmp.Name())
		return err
	}
	return nil
}

// Classify wraps err as an IOError unless it already is one.
func Classify(op Op, path string, err error) error {
	if err == nil {
		return nil
	}
	var ioErr *IOError
	if errors.As(err, &ioErr) {
		return err
	}
	return &IOError{Op: op, Path: path, Err: err}
}
