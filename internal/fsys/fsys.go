// Package fsys is the filesystem collaborator used by the copy engine:
// directory queries and idempotent folder creation over a go-billy
// filesystem rooted at a fixed directory.
package fsys

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/osfs"
)

// FS is a rooted view of a filesystem. Paths passed to its methods are
// relative to the root; "." or "" is the root itself.
type FS struct {
	fs billy.Filesystem
}

// New returns an FS over the host filesystem rooted at root.
func New(root string) *FS {
	return &FS{fs: osfs.New(root)}
}

// Wrap returns an FS over an existing billy filesystem.
func Wrap(fs billy.Filesystem) *FS {
	return &FS{fs: fs}
}

// Root returns the root directory of the filesystem.
func (f *FS) Root() string {
	return f.fs.Root()
}

// Abs returns the host path of rel.
func (f *FS) Abs(rel string) string {
	return filepath.Join(f.fs.Root(), rel)
}

// Stat returns file info for rel, following symlinks.
func (f *FS) Stat(rel string) (os.FileInfo, error) {
	info, err := f.fs.Stat(rel)
	if err != nil {
		return nil, fmt.Errorf("fsys: stat %q: %w", rel, err)
	}
	return info, nil
}

// IsDir reports whether rel exists and is a directory.
func (f *FS) IsDir(rel string) (bool, error) {
	info, err := f.fs.Stat(rel)
	switch {
	case err == nil:
		return info.IsDir(), nil
	case os.IsNotExist(err):
		return false, nil
	default:
		return false, fmt.Errorf("fsys: stat %q: %w", rel, err)
	}
}

// ReadDir lists the immediate children of rel. Order is unspecified.
func (f *FS) ReadDir(rel string) ([]os.FileInfo, error) {
	list, err := f.fs.ReadDir(rel)
	if err != nil {
		return nil, fmt.Errorf("fsys: readdir %q: %w", rel, err)
	}
	return list, nil
}

// MkdirAll creates rel and any missing parents. An existing directory is
// not an error, so concurrent callers racing on the same path all succeed.
func (f *FS) MkdirAll(rel string, perm os.FileMode) error {
	if err := f.fs.MkdirAll(rel, perm); err != nil {
		return fmt.Errorf("fsys: mkdirall %q: %w", rel, err)
	}
	return nil
}
