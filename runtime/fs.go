package runtime

import (
	"context"
	"io/fs"
	"os"

	"github.com/mlld-lang/mlld-core/host"
)

// osFileSystem is the concrete, os-backed implementation of
// host.FileSystem (spec.md §6: "FileSystem::{readFile, writeFile,
// exists, mkdir, stat, readdir}"), the default a Runtime uses unless
// overridden with WithFileSystem (e.g. by tests, or an embedder with a
// virtual/sandboxed filesystem).
type osFileSystem struct{}

// NewOSFileSystem returns the default FileSystem capability used when
// a Runtime isn't given one via WithFileSystem.
func NewOSFileSystem() host.FileSystem { return osFileSystem{} }

func (osFileSystem) ReadFile(ctx context.Context, path string) ([]byte, error) {
	return os.ReadFile(path)
}

func (osFileSystem) WriteFile(ctx context.Context, path string, data []byte) error {
	return os.WriteFile(path, data, 0o644)
}

func (osFileSystem) Exists(ctx context.Context, path string) (bool, error) {
	_, err := os.Stat(path)
	if err == nil {
		return true, nil
	}
	if os.IsNotExist(err) {
		return false, nil
	}
	return false, err
}

func (osFileSystem) Mkdir(ctx context.Context, path string) error {
	return os.MkdirAll(path, 0o755)
}

func (osFileSystem) Stat(ctx context.Context, path string) (fs.FileInfo, error) {
	return os.Stat(path)
}

func (osFileSystem) ReadDir(ctx context.Context, path string) ([]fs.DirEntry, error) {
	return os.ReadDir(path)
}
