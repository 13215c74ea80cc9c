package hostfs_test

import (
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/absfs/absfs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aegisvault/aegisvault/internal/hostfs"
)

func TestRootedReadWrite(t *testing.T) {
	root := t.TempDir()
	var fs absfs.FileSystem = hostfs.New(root)

	require.NoError(t, fs.MkdirAll("/docs/inner", 0o700))
	f, err := fs.Create("/docs/inner/note.txt")
	require.NoError(t, err)
	_, err = f.Write([]byte("hello"))
	require.NoError(t, err)
	require.NoError(t, f.Close())

	data, err := os.ReadFile(filepath.Join(root, "docs", "inner", "note.txt"))
	require.NoError(t, err)
	assert.Equal(t, "hello", string(data))

	f, err = fs.Open("/docs/inner/note.txt")
	require.NoError(t, err)
	defer f.Close()
	got, err := io.ReadAll(f)
	require.NoError(t, err)
	assert.Equal(t, "hello", string(got))
}

func TestChdir(t *testing.T) {
	root := t.TempDir()
	fs := hostfs.New(root)
	require.NoError(t, fs.Mkdir("/sub", 0o700))

	require.NoError(t, fs.Chdir("/sub"))
	wd, err := fs.Getwd()
	require.NoError(t, err)
	assert.Equal(t, filepath.FromSlash("/sub"), wd)

	f, err := fs.Create("rel.txt")
	require.NoError(t, err)
	require.NoError(t, f.Close())

	_, err = os.Stat(filepath.Join(root, "sub", "rel.txt"))
	assert.NoError(t, err)
}

func TestChdirRejectsFiles(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "file"), nil, 0o600))

	fs := hostfs.New(root)
	assert.Error(t, fs.Chdir("/file"))
	assert.Error(t, fs.Chdir("/missing"))
}

func TestRemoveAndRename(t *testing.T) {
	root := t.TempDir()
	fs := hostfs.New(root)
	require.NoError(t, os.WriteFile(filepath.Join(root, "a"), []byte("x"), 0o600))

	require.NoError(t, fs.Rename("/a", "/b"))
	info, err := fs.Stat("/b")
	require.NoError(t, err)
	assert.Equal(t, int64(1), info.Size())

	require.NoError(t, fs.Remove("/b"))
	_, err = fs.Stat("/b")
	assert.True(t, os.IsNotExist(err))
}
