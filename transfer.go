package aegisvault

import (
	"context"
	"fmt"
	"io"
	"os"
	"path"
	"sort"

	"github.com/absfs/absfs"
)

// TransferProgress reports bulk import/export progress after each item
type TransferProgress struct {
	Items int    // items copied so far
	Bytes int64  // file bytes copied so far
	Path  string // vault path of the last item
}

// ProgressFunc receives TransferProgress updates; it may be nil
type ProgressFunc func(TransferProgress)

type transfer struct {
	ctx      context.Context
	progress ProgressFunc
	state    TransferProgress
}

// step checks for cancellation between items. A single file is never
// interrupted midway.
func (t *transfer) step() error {
	return t.ctx.Err()
}

func (t *transfer) done(vaultPath string, n int) {
	t.state.Items++
	t.state.Bytes += int64(n)
	t.state.Path = vaultPath
	if t.progress != nil {
		t.progress(t.state)
	}
}

// Import copies the file or directory tree at srcPath on src into the vault
// directory dstDir. It returns the number of entries created.
func Import(ctx context.Context, src absfs.FileSystem, srcPath string, v *VFS, dstDir string, progress ProgressFunc) (int, error) {
	if _, err := v.lookupDir("import", dstDir); err != nil {
		return 0, err
	}
	info, err := src.Stat(srcPath)
	if err != nil {
		return 0, NewIOError("stat", srcPath, err)
	}
	t := &transfer{ctx: ctx, progress: progress}
	switch name := path.Base(path.Clean(srcPath)); name {
	case ".", "..", "/":
		// a directory without a usable name of its own: copy its contents
		if err := t.step(); err != nil {
			return 0, err
		}
		err = t.importChildren(src, srcPath, v, dstDir)
	default:
		err = t.importEntry(src, srcPath, info.IsDir(), v, joinPath(dstDir, name))
	}
	return t.state.Items, err
}

func (t *transfer) importEntry(src absfs.FileSystem, srcPath string, dir bool, v *VFS, target string) error {
	if err := t.step(); err != nil {
		return err
	}
	if !dir {
		data, err := readHostFile(src, srcPath)
		if err != nil {
			return err
		}
		defer wipe(data)
		if _, err := v.CreateFile(target, data); err != nil {
			return err
		}
		t.done(target, len(data))
		return nil
	}

	if _, err := v.CreateDirectory(target); err != nil {
		return err
	}
	t.done(target, 0)
	return t.importChildren(src, srcPath, v, target)
}

func (t *transfer) importChildren(src absfs.FileSystem, srcPath string, v *VFS, target string) error {
	infos, err := readHostDir(src, srcPath)
	if err != nil {
		return err
	}
	for _, fi := range infos {
		child := path.Join(srcPath, fi.Name())
		if err := t.importEntry(src, child, fi.IsDir(), v, joinPath(target, fi.Name())); err != nil {
			return err
		}
	}
	return nil
}

func readHostFile(src absfs.FileSystem, name string) ([]byte, error) {
	f, err := src.Open(name)
	if err != nil {
		return nil, NewIOError("open", name, err)
	}
	defer f.Close()
	data, err := io.ReadAll(f)
	if err != nil {
		return nil, NewIOError("read", name, err)
	}
	return data, nil
}

func readHostDir(src absfs.FileSystem, name string) ([]os.FileInfo, error) {
	f, err := src.Open(name)
	if err != nil {
		return nil, NewIOError("open", name, err)
	}
	defer f.Close()
	infos, err := f.Readdir(-1)
	if err != nil {
		return nil, NewIOError("readdir", name, err)
	}
	out := make([]os.FileInfo, 0, len(infos))
	for _, fi := range infos {
		if fi.Name() == "." || fi.Name() == ".." {
			continue
		}
		out = append(out, fi)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name() < out[j].Name() })
	return out, nil
}

// Export copies the vault file or directory tree at srcPath into dstDir on
// dst. Exporting the root copies its children. It returns the number of
// entries written.
func Export(ctx context.Context, v *VFS, srcPath string, dst absfs.FileSystem, dstDir string, progress ProgressFunc) (int, error) {
	e, ok := v.resolve(srcPath)
	if !ok {
		return 0, newPathError("export", srcPath, ErrNotFound)
	}
	t := &transfer{ctx: ctx, progress: progress}

	if e.IsRoot() {
		for _, c := range v.children(e.ID) {
			if err := t.exportEntry(v, joinPath("", c.Name), c, dst, path.Join(dstDir, c.Name)); err != nil {
				return t.state.Items, err
			}
		}
		return t.state.Items, nil
	}
	err := t.exportEntry(v, "/"+NormalizePath(srcPath), e, dst, path.Join(dstDir, e.Name))
	return t.state.Items, err
}

func (t *transfer) exportEntry(v *VFS, vaultPath string, e *Entry, dst absfs.FileSystem, target string) error {
	if err := t.step(); err != nil {
		return err
	}
	if !e.IsDir {
		data, err := v.ReadFile(vaultPath)
		if err != nil {
			return err
		}
		defer wipe(data)
		if err := writeHostFile(dst, target, data); err != nil {
			return err
		}
		t.done(vaultPath, len(data))
		return nil
	}

	if err := dst.MkdirAll(target, 0o700); err != nil {
		return NewIOError("mkdir", target, err)
	}
	t.done(vaultPath, 0)
	for _, c := range v.children(e.ID) {
		if err := t.exportEntry(v, joinPath(vaultPath, c.Name), c, dst, path.Join(target, c.Name)); err != nil {
			return err
		}
	}
	return nil
}

func writeHostFile(dst absfs.FileSystem, name string, data []byte) error {
	f, err := dst.OpenFile(name, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0o600)
	if err != nil {
		return NewIOError("create", name, err)
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		return NewIOError("write", name, err)
	}
	if err := f.Close(); err != nil {
		return NewIOError("close", name, fmt.Errorf("flush: %w", err))
	}
	return nil
}
