package aegisvault

import (
	"errors"
	iofs "io/fs"
	"os"
	"path"
	"time"

	"github.com/absfs/absfs"
)

// FS exposes an open VFS as an absfs.FileSystem so vault contents can be
// handed to anything that accepts one. Paths use '/' and are resolved
// against the working directory set by Chdir.
//
// Permissions, ownership and access times are not stored; Chmod and Chown
// are accepted and ignored, Chtimes only records the modification time.
type FS struct {
	v   *VFS
	cwd string
}

// NewFS wraps v
func NewFS(v *VFS) *FS {
	return &FS{v: v, cwd: "/"}
}

// resolve makes name absolute against the working directory
func (f *FS) resolve(name string) string {
	n := NormalizePath(name)
	if len(name) > 0 && (name[0] == '/' || name[0] == '\\') {
		return path.Clean("/" + n)
	}
	return path.Clean(path.Join(f.cwd, n))
}

// Separator returns '/'
func (f *FS) Separator() uint8 {
	return '/'
}

// ListSeparator returns ':'
func (f *FS) ListSeparator() uint8 {
	return ':'
}

// Chdir changes the working directory
func (f *FS) Chdir(dir string) error {
	p := f.resolve(dir)
	if _, err := f.v.lookupDir("chdir", p); err != nil {
		return err
	}
	f.cwd = p
	return nil
}

// Getwd returns the working directory
func (f *FS) Getwd() (string, error) {
	return f.cwd, nil
}

// TempDir returns the root; the vault has no dedicated temporary area
func (f *FS) TempDir() string {
	return "/"
}

// Open opens a file or directory for reading
func (f *FS) Open(name string) (absfs.File, error) {
	return f.OpenFile(name, os.O_RDONLY, 0)
}

// Create creates or truncates a file for writing
func (f *FS) Create(name string) (absfs.File, error) {
	return f.OpenFile(name, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0o600)
}

// OpenFile opens name with the given flags. File content is buffered in
// memory and committed to the vault on Sync or Close.
func (f *FS) OpenFile(name string, flag int, perm os.FileMode) (absfs.File, error) {
	p := f.resolve(name)
	e, ok := f.v.resolve(p)

	switch {
	case ok && flag&os.O_CREATE != 0 && flag&os.O_EXCL != 0:
		return nil, newPathError("open", p, ErrExist)
	case ok && e.IsDir:
		if flag&(os.O_WRONLY|os.O_RDWR) != 0 {
			return nil, newPathError("open", p, ErrIsDirectory)
		}
		return newVaultFile(f, p, *e, flag, nil), nil
	case !ok && flag&os.O_CREATE == 0:
		return nil, newPathError("open", p, ErrNotFound)
	case !ok:
		created, err := f.v.CreateFile(p, nil)
		if err != nil {
			return nil, err
		}
		return newVaultFile(f, p, created, flag, []byte{}), nil
	}

	var data []byte
	if flag&os.O_TRUNC != 0 && flag&(os.O_WRONLY|os.O_RDWR) != 0 {
		data = []byte{}
	} else {
		content, err := f.v.ReadFile(p)
		if err != nil {
			return nil, err
		}
		data = content
	}
	vf := newVaultFile(f, p, *e, flag, data)
	if flag&os.O_TRUNC != 0 && e.Size > 0 {
		vf.dirty = true
	}
	return vf, nil
}

// Mkdir creates a directory
func (f *FS) Mkdir(name string, perm os.FileMode) error {
	_, err := f.v.CreateDirectory(f.resolve(name))
	return err
}

// MkdirAll creates a directory and all missing parents
func (f *FS) MkdirAll(name string, perm os.FileMode) error {
	_, err := f.v.MkdirAll(f.resolve(name))
	return err
}

// Remove removes a file or empty directory
func (f *FS) Remove(name string) error {
	p := f.resolve(name)
	e, ok := f.v.resolve(p)
	if !ok {
		return newPathError("remove", p, ErrNotFound)
	}
	if e.IsDir && len(f.v.children(e.ID)) > 0 {
		return newPathError("remove", p, errors.New("directory not empty"))
	}
	return f.v.Delete(p)
}

// RemoveAll removes a path and any children it contains
func (f *FS) RemoveAll(name string) error {
	p := f.resolve(name)
	if !f.v.Exists(p) {
		return nil
	}
	return f.v.Delete(p)
}

// Rename moves oldpath to newpath
func (f *FS) Rename(oldpath, newpath string) error {
	return f.v.Move(f.resolve(oldpath), f.resolve(newpath))
}

// Stat returns file information
func (f *FS) Stat(name string) (os.FileInfo, error) {
	e, err := f.v.Stat(f.resolve(name))
	if err != nil {
		return nil, err
	}
	return e.FileInfo(), nil
}

// Chmod is accepted for existing paths and has no effect
func (f *FS) Chmod(name string, mode os.FileMode) error {
	_, err := f.v.Stat(f.resolve(name))
	return err
}

// Chtimes records mtime as the entry's modification time
func (f *FS) Chtimes(name string, atime time.Time, mtime time.Time) error {
	return f.v.touch(f.resolve(name), mtime)
}

// Chown is accepted for existing paths and has no effect
func (f *FS) Chown(name string, uid, gid int) error {
	_, err := f.v.Stat(f.resolve(name))
	return err
}

// Truncate changes the size of a file, zero-filling when it grows
func (f *FS) Truncate(name string, size int64) error {
	p := f.resolve(name)
	if err := f.v.checkFileSize("truncate", p, size); err != nil {
		return err
	}
	data, err := f.v.ReadFile(p)
	if err != nil {
		return err
	}
	resized := make([]byte, size)
	copy(resized, data)
	wipe(data)
	return f.v.WriteFile(p, resized)
}

// ReadDir returns the entries of a directory, directories first
func (f *FS) ReadDir(name string) ([]iofs.DirEntry, error) {
	entries, err := f.v.List(f.resolve(name))
	if err != nil {
		return nil, err
	}
	out := make([]iofs.DirEntry, len(entries))
	for i, e := range entries {
		out[i] = iofs.FileInfoToDirEntry(e.FileInfo())
	}
	return out, nil
}

// ReadFile returns the whole content of a file
func (f *FS) ReadFile(name string) ([]byte, error) {
	return f.v.ReadFile(f.resolve(name))
}
