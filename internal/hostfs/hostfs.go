// Package hostfs exposes the host filesystem as an absfs.FileSystem so it
// can be the source of a vault import or the destination of an export.
package hostfs

import (
	"os"
	"path/filepath"
	"time"

	"github.com/absfs/absfs"
)

// FS maps slash-separated names onto the operating system. With a root set,
// every name, absolute or not, resolves beneath it.
type FS struct {
	root string
	cwd  string
}

// New returns a filesystem rooted at root. An empty root uses names as given
// relative to the process working directory.
func New(root string) *FS {
	return &FS{root: root}
}

func (fs *FS) path(name string) string {
	p := fs.rel(name)
	if fs.root != "" {
		return filepath.Join(fs.root, p)
	}
	return p
}

// rel resolves name against the working directory without the root
func (fs *FS) rel(name string) string {
	p := filepath.FromSlash(name)
	if fs.cwd != "" && !filepath.IsAbs(p) {
		return filepath.Join(fs.cwd, p)
	}
	return p
}

func (fs *FS) OpenFile(name string, flag int, perm os.FileMode) (absfs.File, error) {
	f, err := os.OpenFile(fs.path(name), flag, perm)
	if err != nil {
		return nil, err
	}
	return f, nil
}

func (fs *FS) Mkdir(name string, perm os.FileMode) error {
	return os.Mkdir(fs.path(name), perm)
}

func (fs *FS) MkdirAll(name string, perm os.FileMode) error {
	return os.MkdirAll(fs.path(name), perm)
}

func (fs *FS) Remove(name string) error {
	return os.Remove(fs.path(name))
}

func (fs *FS) RemoveAll(path string) error {
	return os.RemoveAll(fs.path(path))
}

func (fs *FS) Rename(oldpath, newpath string) error {
	return os.Rename(fs.path(oldpath), fs.path(newpath))
}

func (fs *FS) Stat(name string) (os.FileInfo, error) {
	return os.Stat(fs.path(name))
}

func (fs *FS) Chmod(name string, mode os.FileMode) error {
	return os.Chmod(fs.path(name), mode)
}

func (fs *FS) Chtimes(name string, atime, mtime time.Time) error {
	return os.Chtimes(fs.path(name), atime, mtime)
}

func (fs *FS) Chown(name string, uid, gid int) error {
	return os.Chown(fs.path(name), uid, gid)
}

func (fs *FS) Separator() uint8 {
	return os.PathSeparator
}

func (fs *FS) ListSeparator() uint8 {
	return os.PathListSeparator
}

// Chdir changes the directory relative names resolve against. It does not
// touch the process working directory.
func (fs *FS) Chdir(dir string) error {
	info, err := os.Stat(fs.path(dir))
	if err != nil {
		return err
	}
	if !info.IsDir() {
		return &os.PathError{Op: "chdir", Path: dir, Err: os.ErrInvalid}
	}
	fs.cwd = fs.rel(dir)
	return nil
}

func (fs *FS) Getwd() (string, error) {
	switch {
	case fs.cwd != "":
		return fs.cwd, nil
	case fs.root != "":
		return string(os.PathSeparator), nil
	default:
		return os.Getwd()
	}
}

func (fs *FS) TempDir() string {
	return os.TempDir()
}

func (fs *FS) Open(name string) (absfs.File, error) {
	return fs.OpenFile(name, os.O_RDONLY, 0)
}

func (fs *FS) Create(name string) (absfs.File, error) {
	return fs.OpenFile(name, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0o600)
}

func (fs *FS) Truncate(name string, size int64) error {
	return os.Truncate(fs.path(name), size)
}
