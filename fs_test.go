package aegisvault

import (
	"io"
	"os"
	"testing"
	"time"

	"github.com/absfs/absfs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestFS(t *testing.T) (absfs.FileSystem, *VFS) {
	t.Helper()
	v, _ := newTestVFS(t)
	var fsys absfs.FileSystem = NewFS(v)
	return fsys, v
}

func writeFile(t *testing.T, fsys absfs.FileSystem, name, content string) {
	t.Helper()
	f, err := fsys.Create(name)
	require.NoError(t, err)
	_, err = f.WriteString(content)
	require.NoError(t, err)
	require.NoError(t, f.Close())
}

func readFile(t *testing.T, fsys absfs.FileSystem, name string) string {
	t.Helper()
	f, err := fsys.Open(name)
	require.NoError(t, err)
	defer f.Close()
	data, err := io.ReadAll(f)
	require.NoError(t, err)
	return string(data)
}

func TestFSCreateAndOpen(t *testing.T) {
	fsys, v := newTestFS(t)
	writeFile(t, fsys, "/hello.txt", "hello, vault")

	assert.Equal(t, "hello, vault", readFile(t, fsys, "/hello.txt"))
	data, err := v.ReadFile("/hello.txt")
	require.NoError(t, err)
	assert.Equal(t, "hello, vault", string(data), "Close commits to the VFS")

	writeFile(t, fsys, "/hello.txt", "short")
	assert.Equal(t, "short", readFile(t, fsys, "/hello.txt"), "Create truncates")

	_, err = fsys.Open("/missing")
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestFSOpenFlags(t *testing.T) {
	fsys, _ := newTestFS(t)
	writeFile(t, fsys, "/f", "abc")

	_, err := fsys.OpenFile("/f", os.O_RDWR|os.O_CREATE|os.O_EXCL, 0o600)
	assert.ErrorIs(t, err, os.ErrExist)

	f, err := fsys.OpenFile("/f", os.O_WRONLY|os.O_APPEND, 0)
	require.NoError(t, err)
	_, err = f.Write([]byte("def"))
	require.NoError(t, err)
	_, err = f.Read(make([]byte, 1))
	assert.Error(t, err, "read on write-only handle")
	_, err = f.WriteAt([]byte("x"), 0)
	assert.Error(t, err, "WriteAt with O_APPEND")
	require.NoError(t, f.Close())
	assert.Equal(t, "abcdef", readFile(t, fsys, "/f"))

	r, err := fsys.Open("/f")
	require.NoError(t, err)
	_, err = r.Write([]byte("x"))
	assert.Error(t, err, "write on read-only handle")
	require.NoError(t, r.Close())
	assert.Error(t, r.Close(), "second Close fails")

	require.NoError(t, fsys.Mkdir("/dir", 0o700))
	_, err = fsys.OpenFile("/dir", os.O_RDWR, 0)
	assert.ErrorIs(t, err, ErrIsDirectory)
}

func TestFSSeekAndRandomAccess(t *testing.T) {
	fsys, _ := newTestFS(t)
	f, err := fsys.OpenFile("/rw", os.O_RDWR|os.O_CREATE, 0o600)
	require.NoError(t, err)

	_, err = f.Write([]byte("0123456789"))
	require.NoError(t, err)

	pos, err := f.Seek(2, io.SeekStart)
	require.NoError(t, err)
	assert.Equal(t, int64(2), pos)
	buf := make([]byte, 3)
	_, err = io.ReadFull(f, buf)
	require.NoError(t, err)
	assert.Equal(t, "234", string(buf))

	pos, err = f.Seek(-1, io.SeekEnd)
	require.NoError(t, err)
	assert.Equal(t, int64(9), pos)
	_, err = f.Seek(-20, io.SeekCurrent)
	assert.Error(t, err)

	_, err = f.WriteAt([]byte("ab"), 12)
	require.NoError(t, err)
	tail := make([]byte, 4)
	n, err := f.ReadAt(tail, 11)
	assert.Equal(t, 3, n)
	assert.Equal(t, []byte{0, 'a', 'b'}, tail[:n], "gap is zero-filled")
	assert.ErrorIs(t, err, io.EOF, "ReadAt reaching the end reports EOF")

	require.NoError(t, f.Truncate(4))
	info, err := f.Stat()
	require.NoError(t, err)
	assert.Equal(t, int64(4), info.Size())

	require.NoError(t, f.Sync())
	require.NoError(t, f.Close())
	assert.Equal(t, "0123", readFile(t, fsys, "/rw"))
}

func TestFSDirectories(t *testing.T) {
	fsys, _ := newTestFS(t)
	require.NoError(t, fsys.MkdirAll("/a/b/c", 0o700))
	writeFile(t, fsys, "/a/one", "1")
	writeFile(t, fsys, "/a/two", "2")

	info, err := fsys.Stat("/a/b")
	require.NoError(t, err)
	assert.True(t, info.IsDir())

	d, err := fsys.Open("/a")
	require.NoError(t, err)
	first, err := d.Readdir(2)
	require.NoError(t, err)
	require.Len(t, first, 2)
	assert.Equal(t, "b", first[0].Name(), "directories first")
	rest, err := d.Readdirnames(0)
	require.NoError(t, err)
	assert.Equal(t, []string{"two"}, rest)
	_, err = d.Readdir(1)
	assert.ErrorIs(t, err, io.EOF)
	_, err = d.Read(make([]byte, 1))
	assert.ErrorIs(t, err, ErrIsDirectory)
	require.NoError(t, d.Close())

	assert.Error(t, fsys.Remove("/a"), "non-empty directory")
	require.NoError(t, fsys.Remove("/a/b/c"))
	require.NoError(t, fsys.RemoveAll("/a"))
	require.NoError(t, fsys.RemoveAll("/a"), "RemoveAll on a missing path")
	_, err = fsys.Stat("/a")
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestFSWorkingDirectory(t *testing.T) {
	fsys, _ := newTestFS(t)
	require.NoError(t, fsys.MkdirAll("/home/user", 0o700))

	require.NoError(t, fsys.Chdir("/home"))
	require.NoError(t, fsys.Chdir("user"))
	wd, err := fsys.Getwd()
	require.NoError(t, err)
	assert.Equal(t, "/home/user", wd)

	writeFile(t, fsys, "notes", "relative")
	assert.Equal(t, "relative", readFile(t, fsys, "/home/user/notes"))
	assert.Equal(t, "relative", readFile(t, fsys, "../user/notes"))

	assert.Error(t, fsys.Chdir("/home/user/notes"))
	assert.Error(t, fsys.Chdir("/nowhere"))
	assert.Equal(t, uint8('/'), fsys.Separator())
	assert.Equal(t, "/", fsys.TempDir())
}

func TestFSMetadataOps(t *testing.T) {
	fsys, v := newTestFS(t)
	writeFile(t, fsys, "/f", "data")

	require.NoError(t, fsys.Rename("/f", "/g"))
	assert.Equal(t, "data", readFile(t, fsys, "/g"))

	mtime := time.UnixMilli(1_500_000_000_000)
	require.NoError(t, fsys.Chtimes("/g", time.Now(), mtime))
	e, err := v.Stat("/g")
	require.NoError(t, err)
	assert.True(t, e.ModifiedAt.Equal(mtime))

	require.NoError(t, fsys.Chmod("/g", 0o644))
	require.NoError(t, fsys.Chown("/g", 1, 1))
	assert.ErrorIs(t, fsys.Chmod("/missing", 0o644), os.ErrNotExist)

	require.NoError(t, fsys.Truncate("/g", 6))
	assert.Equal(t, "data\x00\x00", readFile(t, fsys, "/g"))
	assert.Error(t, fsys.Truncate("/g", -1))
}

func TestFSReadHelpers(t *testing.T) {
	v, _ := newTestVFS(t)
	fsys := NewFS(v)
	require.NoError(t, fsys.Mkdir("/d", 0o700))
	writeFile(t, fsys, "/d/x", "x")

	data, err := fsys.ReadFile("/d/x")
	require.NoError(t, err)
	assert.Equal(t, "x", string(data))

	entries, err := fsys.ReadDir("/d")
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "x", entries[0].Name())
	assert.False(t, entries[0].IsDir())
}

func TestFSSizeLimit(t *testing.T) {
	fsys, v := newTestFS(t)
	writeFile(t, fsys, "/f", "data")
	assert.Equal(t, int64(DefaultMaxMetadataSize), v.MaxFileSize())

	err := fsys.Truncate("/f", 1<<40)
	assert.True(t, IsValidationError(err), "got %v", err)
	assert.Equal(t, "data", readFile(t, fsys, "/f"))

	f, err := fsys.OpenFile("/f", os.O_RDWR, 0)
	require.NoError(t, err)
	_, err = f.WriteAt([]byte("x"), 1<<40)
	assert.True(t, IsValidationError(err), "WriteAt past the limit: %v", err)
	assert.True(t, IsValidationError(f.Truncate(1<<40)))
	_, err = f.Seek(1<<40, io.SeekStart)
	require.NoError(t, err)
	_, err = f.Write([]byte("x"))
	assert.True(t, IsValidationError(err), "Write past the limit: %v", err)
	require.NoError(t, f.Close())
}

func TestFSSizeLimitFollowsContainer(t *testing.T) {
	opts := DefaultOptions()
	opts.MaxMetadataSize = 1024
	c, _ := createContainer(t, opts)
	defer c.Close()
	v, err := NewVFS(c)
	require.NoError(t, err)
	fsys := NewFS(v)

	assert.Equal(t, int64(1024-c.cipher.Overhead()), v.MaxFileSize())
	writeFile(t, fsys, "/f", "x")
	assert.True(t, IsValidationError(fsys.Truncate("/f", 2000)))
	require.NoError(t, fsys.Truncate("/f", 100))
}
