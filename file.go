package aegisvault

import (
	"errors"
	"fmt"
	"io"
	iofs "io/fs"
	"os"
)

// vaultFile is an open handle on a vault entry. File content is held in
// memory and written back through the VFS on Sync or Close.
type vaultFile struct {
	fs     *FS
	path   string
	entry  Entry
	flags  int
	data   []byte
	dirty  bool  // data differs from the stored blob
	offset int64 // read/write position in data
	dirOff int   // entries already returned by Readdir
	closed bool
}

func newVaultFile(fs *FS, path string, e Entry, flags int, data []byte) *vaultFile {
	return &vaultFile{
		fs:    fs,
		path:  path,
		entry: e,
		flags: flags,
		data:  data,
	}
}

var errFileClosed = errors.New("file already closed")

func (f *vaultFile) check(op string, write bool) error {
	if f.closed {
		return newPathError(op, f.path, errFileClosed)
	}
	if f.entry.IsDir && (write || op == "read") {
		return newPathError(op, f.path, ErrIsDirectory)
	}
	if write && f.flags&(os.O_WRONLY|os.O_RDWR) == 0 {
		return newPathError(op, f.path, errors.New("file not opened for writing"))
	}
	if !write && f.flags&os.O_WRONLY != 0 {
		return newPathError(op, f.path, errors.New("file not opened for reading"))
	}
	return nil
}

// grow extends data to size, zero-filling the tail
func (f *vaultFile) grow(op string, size int64) error {
	if size <= int64(len(f.data)) {
		return nil
	}
	if err := f.fs.v.checkFileSize(op, f.path, size); err != nil {
		return err
	}
	grown := make([]byte, size)
	copy(grown, f.data)
	wipe(f.data)
	f.data = grown
	return nil
}

func (f *vaultFile) flush() error {
	if !f.dirty {
		return nil
	}
	if err := f.fs.v.WriteFile(f.path, f.data); err != nil {
		return err
	}
	f.dirty = false
	f.entry.Size = uint64(len(f.data))
	return nil
}

// Name returns the vault path the file was opened with
func (f *vaultFile) Name() string {
	return f.path
}

func (f *vaultFile) Read(p []byte) (int, error) {
	if err := f.check("read", false); err != nil {
		return 0, err
	}
	if f.offset >= int64(len(f.data)) {
		return 0, io.EOF
	}
	n := copy(p, f.data[f.offset:])
	f.offset += int64(n)
	return n, nil
}

func (f *vaultFile) Write(p []byte) (int, error) {
	if err := f.check("write", true); err != nil {
		return 0, err
	}
	if f.flags&os.O_APPEND != 0 {
		f.offset = int64(len(f.data))
	}
	if err := f.grow("write", f.offset+int64(len(p))); err != nil {
		return 0, err
	}
	n := copy(f.data[f.offset:], p)
	f.offset += int64(n)
	f.dirty = true
	return n, nil
}

func (f *vaultFile) WriteString(s string) (int, error) {
	return f.Write([]byte(s))
}

func (f *vaultFile) Seek(offset int64, whence int) (int64, error) {
	if f.closed {
		return 0, newPathError("seek", f.path, errFileClosed)
	}
	var next int64
	switch whence {
	case io.SeekStart:
		next = offset
	case io.SeekCurrent:
		next = f.offset + offset
	case io.SeekEnd:
		next = int64(len(f.data)) + offset
	default:
		return 0, newPathError("seek", f.path, fmt.Errorf("invalid whence: %d", whence))
	}
	if next < 0 {
		return 0, newPathError("seek", f.path, errors.New("negative position"))
	}
	f.offset = next
	return next, nil
}

// Close commits pending writes and releases the buffer
func (f *vaultFile) Close() error {
	if f.closed {
		return newPathError("close", f.path, errFileClosed)
	}
	err := f.flush()
	f.closed = true
	wipe(f.data)
	f.data = nil
	return err
}

// Sync commits pending writes to the vault
func (f *vaultFile) Sync() error {
	if f.closed {
		return newPathError("sync", f.path, errFileClosed)
	}
	return f.flush()
}

func (f *vaultFile) Stat() (os.FileInfo, error) {
	if f.closed {
		return nil, newPathError("stat", f.path, errFileClosed)
	}
	e := f.entry
	if !e.IsDir {
		e.Size = uint64(len(f.data))
	}
	return e.FileInfo(), nil
}

// Readdir returns up to n entries of a directory; n <= 0 returns all that
// remain
func (f *vaultFile) Readdir(n int) ([]os.FileInfo, error) {
	if f.closed {
		return nil, newPathError("readdir", f.path, errFileClosed)
	}
	if !f.entry.IsDir {
		return nil, newPathError("readdir", f.path, ErrNotDirectory)
	}
	kids := f.fs.v.children(f.entry.ID)
	if f.dirOff >= len(kids) {
		if n > 0 {
			return nil, io.EOF
		}
		return []os.FileInfo{}, nil
	}
	kids = kids[f.dirOff:]
	if n > 0 && n < len(kids) {
		kids = kids[:n]
	}
	f.dirOff += len(kids)

	infos := make([]os.FileInfo, len(kids))
	for i, c := range kids {
		infos[i] = c.FileInfo()
	}
	return infos, nil
}

func (f *vaultFile) Readdirnames(n int) ([]string, error) {
	infos, err := f.Readdir(n)
	if err != nil {
		return nil, err
	}
	names := make([]string, len(infos))
	for i, fi := range infos {
		names[i] = fi.Name()
	}
	return names, nil
}

func (f *vaultFile) ReadDir(n int) ([]iofs.DirEntry, error) {
	infos, err := f.Readdir(n)
	if err != nil {
		return nil, err
	}
	out := make([]iofs.DirEntry, len(infos))
	for i, fi := range infos {
		out[i] = iofs.FileInfoToDirEntry(fi)
	}
	return out, nil
}

func (f *vaultFile) ReadAt(b []byte, off int64) (int, error) {
	if err := f.check("read", false); err != nil {
		return 0, err
	}
	if off < 0 {
		return 0, newPathError("read", f.path, errors.New("negative offset"))
	}
	if off >= int64(len(f.data)) {
		return 0, io.EOF
	}
	n := copy(b, f.data[off:])
	if n < len(b) {
		return n, io.EOF
	}
	return n, nil
}

func (f *vaultFile) WriteAt(b []byte, off int64) (int, error) {
	if err := f.check("write", true); err != nil {
		return 0, err
	}
	if off < 0 {
		return 0, newPathError("write", f.path, errors.New("negative offset"))
	}
	if f.flags&os.O_APPEND != 0 {
		return 0, newPathError("write", f.path, errors.New("WriteAt on a file opened with O_APPEND"))
	}
	if err := f.grow("write", off+int64(len(b))); err != nil {
		return 0, err
	}
	n := copy(f.data[off:], b)
	f.dirty = true
	return n, nil
}

// Truncate resizes the buffered content, zero-filling when it grows
func (f *vaultFile) Truncate(size int64) error {
	if err := f.check("truncate", true); err != nil {
		return err
	}
	if size < 0 {
		return newPathError("truncate", f.path, errors.New("negative size"))
	}
	if size > int64(len(f.data)) {
		if err := f.grow("truncate", size); err != nil {
			return err
		}
	} else {
		wipe(f.data[size:])
		f.data = f.data[:size]
	}
	f.dirty = true
	return nil
}
