package aegisvault

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/absfs/absfs"
	"github.com/absfs/memfs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aegisvault/aegisvault/internal/hostfs"
)

func sourceTree(t *testing.T) absfs.FileSystem {
	t.Helper()
	src, err := memfs.NewFS()
	require.NoError(t, err)
	require.NoError(t, src.MkdirAll("/projects/webapp/assets", 0o755))
	for name, content := range map[string]string{
		"/projects/readme.md":             "# projects",
		"/projects/webapp/index.html":     "<html></html>",
		"/projects/webapp/assets/app.css": "body{}",
		"/projects/webapp/assets/empty":   "",
	} {
		f, err := src.Create(name)
		require.NoError(t, err)
		_, err = f.Write([]byte(content))
		require.NoError(t, err)
		require.NoError(t, f.Close())
	}
	return src
}

func TestImportTree(t *testing.T) {
	v, _ := newTestVFS(t)
	src := sourceTree(t)

	var progress []TransferProgress
	n, err := Import(context.Background(), src, "/projects", v, "/", func(p TransferProgress) {
		progress = append(progress, p)
	})
	require.NoError(t, err)
	assert.Equal(t, 7, n, "three directories and four files")
	require.Len(t, progress, 7)
	last := progress[len(progress)-1]
	assert.Equal(t, 7, last.Items)
	assert.Equal(t, int64(len("# projects")+len("<html></html>")+len("body{}")), last.Bytes)

	data, err := v.ReadFile("/projects/webapp/assets/app.css")
	require.NoError(t, err)
	assert.Equal(t, "body{}", string(data))

	e, err := v.Stat("/projects/webapp/assets/empty")
	require.NoError(t, err)
	assert.Zero(t, e.Size)
}

func TestImportSingleFileAndErrors(t *testing.T) {
	v, _ := newTestVFS(t)
	src := sourceTree(t)
	_, err := v.CreateDirectory("/inbox")
	require.NoError(t, err)

	n, err := Import(context.Background(), src, "/projects/readme.md", v, "/inbox", nil)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.True(t, v.Exists("/inbox/readme.md"))

	_, err = Import(context.Background(), src, "/projects/readme.md", v, "/inbox", nil)
	assert.ErrorIs(t, err, ErrExist, "name collisions are not overwritten")

	_, err = Import(context.Background(), src, "/nope", v, "/", nil)
	assert.True(t, IsIOError(err), "got %v", err)

	_, err = Import(context.Background(), src, "/projects", v, "/inbox/readme.md", nil)
	assert.ErrorIs(t, err, ErrNotDirectory)
}

func TestImportCancelled(t *testing.T) {
	v, _ := newTestVFS(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	n, err := Import(ctx, sourceTree(t), "/projects", v, "/", nil)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, n)
	assert.False(t, v.Exists("/projects"))
}

func TestImportStopsMidway(t *testing.T) {
	v, _ := newTestVFS(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	n, err := Import(ctx, sourceTree(t), "/projects", v, "/", func(p TransferProgress) {
		if p.Items == 2 {
			cancel()
		}
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 2, n, "items already copied are kept")
}

func TestExportToHost(t *testing.T) {
	v, _ := newTestVFS(t)
	_, err := Import(context.Background(), sourceTree(t), "/projects", v, "/", nil)
	require.NoError(t, err)

	root := t.TempDir()
	n, err := Export(context.Background(), v, "/projects/webapp", hostfs.New(root), "/out", nil)
	require.NoError(t, err)
	assert.Equal(t, 5, n)

	data, err := os.ReadFile(filepath.Join(root, "out", "webapp", "assets", "app.css"))
	require.NoError(t, err)
	assert.Equal(t, "body{}", string(data))

	info, err := os.Stat(filepath.Join(root, "out", "webapp", "assets", "empty"))
	require.NoError(t, err)
	assert.Zero(t, info.Size())

	_, err = Export(context.Background(), v, "/missing", hostfs.New(root), "/", nil)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestExportRootAndRoundTrip(t *testing.T) {
	v, _ := newTestVFS(t)
	_, err := v.CreateFile("/a.txt", []byte("alpha"))
	require.NoError(t, err)
	_, err = v.MkdirAll("/nested/deeper")
	require.NoError(t, err)
	_, err = v.CreateFile("/nested/deeper/b.txt", []byte("beta"))
	require.NoError(t, err)

	root := t.TempDir()
	host := hostfs.New(root)
	require.NoError(t, host.Mkdir("/dump", 0o700))
	n, err := Export(context.Background(), v, "/", host, "/dump", nil)
	require.NoError(t, err)
	assert.Equal(t, 4, n, "exporting the root copies its children")

	_, err = os.Stat(filepath.Join(root, "dump", "a.txt"))
	require.NoError(t, err)

	v2, _ := newTestVFS(t)
	n, err = Import(context.Background(), host, "/dump", v2, "/", nil)
	require.NoError(t, err)
	assert.Equal(t, 5, n)
	data, err := v2.ReadFile("/dump/nested/deeper/b.txt")
	require.NoError(t, err)
	assert.Equal(t, "beta", string(data))
}

func TestImportUnnamedSourceCopiesContents(t *testing.T) {
	v, _ := newTestVFS(t)
	src := sourceTree(t)

	n, err := Import(context.Background(), src, "/", v, "/", nil)
	require.NoError(t, err)
	assert.Equal(t, 7, n, "the source root itself is not an entry")
	assert.True(t, v.Exists("/projects/readme.md"))

	_, err = v.CreateDirectory("/here")
	require.NoError(t, err)
	require.NoError(t, src.Chdir("/projects/webapp"))
	n, err = Import(context.Background(), src, ".", v, "/here", nil)
	require.NoError(t, err)
	assert.Equal(t, 4, n)
	data, err := v.ReadFile("/here/assets/app.css")
	require.NoError(t, err)
	assert.Equal(t, "body{}", string(data))
	assert.False(t, v.Exists("/here/."))
}
