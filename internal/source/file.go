package source

import (
	"context"
	"os"
	"path/filepath"
	"strconv"
)

// File reads datasets from the local filesystem. The version token is the
// file's modification time and size.
type File struct {
	// Root resolves relative refs. Empty means the working directory.
	Root string
}

// NewFile creates a file source rooted at root.
func NewFile(root string) *File {
	return &File{Root: root}
}

// Path resolves ref against Root.
func (f *File) Path(ref string) string {
	if f.Root == "" || filepath.IsAbs(ref) {
		return ref
	}
	return filepath.Join(f.Root, ref)
}

// Version stats the file without reading it.
func (f *File) Version(_ context.Context, ref string) (string, error) {
	info, err := os.Stat(f.Path(ref))
	if err != nil {
		return "", unavailable("stat", ref, err)
	}
	if info.IsDir() {
		return "", unavailable("stat", ref, os.ErrInvalid)
	}
	return strconv.FormatInt(info.ModTime().UnixNano(), 10) + "-" + strconv.FormatInt(info.Size(), 10), nil
}

// Fetch reads the whole file.
func (f *File) Fetch(_ context.Context, ref string) ([]byte, error) {
	data, err := os.ReadFile(f.Path(ref))
	if err != nil {
		return nil, unavailable("read", ref, err)
	}
	return data, nil
}
