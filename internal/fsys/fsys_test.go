package fsys

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestOSWriteFileReplacesContentAndKeepsMode(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "notes.txt")
	if err := os.WriteFile(path, []byte("old"), 0o600); err != nil {
		t.Fatalf("seed: %v", err)
	}
	if err := (OS{}).WriteFile(path, []byte("new")); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil || string(data) != "new" {
		t.Fatalf("content = %q, %v; want %q", data, err, "new")
	}
	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("stat: %v", err)
	}
	if info.Mode().Perm() != 0o600 {
		t.Fatalf("mode = %v, want 0600", info.Mode().Perm())
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("readdir: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("temp file left behind: %v", entries)
	}
}

func TestOSWriteFileOntoDirectoryFailsAsWriteError(t *testing.T) {
	dir := t.TempDir()
	err := (OS{}).WriteFile(dir, []byte("x"))
	if !errors.Is(err, ErrWrite) {
		t.Fatalf("err = %v, want ErrWrite class", err)
	}
	if errors.Is(err, ErrRead) || errors.Is(err, ErrCreateDir) {
		t.Fatalf("err %v matched the wrong class", err)
	}
}

func TestOSReadFileMissingIsReadErrorWrappingNotExist(t *testing.T) {
	_, err := (OS{}).ReadFile(filepath.Join(t.TempDir(), "missing.txt"))
	if !errors.Is(err, ErrRead) {
		t.Fatalf("err = %v, want ErrRead class", err)
	}
	if !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("err = %v, want to unwrap to os.ErrNotExist", err)
	}
}

func TestOSMkdirAllUnderFileFails(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "plain")
	if err := os.WriteFile(file, nil, 0o644); err != nil {
		t.Fatalf("seed: %v", err)
	}
	err := (OS{}).MkdirAll(filepath.Join(file, "sub"))
	if !errors.Is(err, ErrCreateDir) {
		t.Fatalf("err = %v, want ErrCreateDir class", err)
	}
}

func TestClassifyKeepsExistingIOError(t *testing.T) {
	orig := &IOError{Op: OpCreateDir, Path: "/x", Err: os.ErrPermission}
	if got := Classify(OpWrite, "/x", orig); got != error(orig) {
		t.Fatalf("Classify rewrapped an IOError: %v", got)
	}
	got := Classify(OpWrite, "/y", os.ErrPermission)
	if !errors.Is(got, ErrWrite) || !errors.Is(got, os.ErrPermission) {
		t.Fatalf("Classify = %v, want write class wrapping permission error", got)
	}
	if Classify(OpWrite, "/y", nil) != nil {
		t.Fatalf("Classify(nil) should stay nil")
	}
}
