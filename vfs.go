package aegisvault

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/google/uuid"
)

// BlobStore is the flat encrypted key-value store a VFS is layered on.
// *Container satisfies it.
type BlobStore interface {
	Read(id string) ([]byte, error)
	Write(id string, data []byte) error
	Delete(id string) error
	Has(id string) bool
}

// VFS is a hierarchical namespace persisted as a single index blob inside a
// BlobStore. File content lives in the store under each entry's id.
//
// The whole index is kept in memory and rewritten on every mutation;
// resolution and listing are linear scans over it. A VFS is not safe for
// concurrent use.
type VFS struct {
	store   BlobStore
	entries map[string]*Entry
	now     func() time.Time
}

// NewVFS loads the index from store, creating and persisting a root
// directory when the store has none
func NewVFS(store BlobStore) (*VFS, error) {
	v := &VFS{store: store, now: time.Now}

	if !store.Has(IndexID) {
		now := v.now()
		v.entries = map[string]*Entry{
			RootID: {ID: RootID, IsDir: true, CreatedAt: now, ModifiedAt: now},
		}
		if err := v.persist(); err != nil {
			return nil, err
		}
		return v, nil
	}

	data, err := store.Read(IndexID)
	if err != nil {
		return nil, err
	}
	entries, err := decodeIndex(data)
	if err != nil {
		return nil, err
	}
	if err := checkIndex(entries); err != nil {
		return nil, err
	}
	v.entries = entries
	return v, nil
}

func (v *VFS) persist() error {
	return v.store.Write(IndexID, encodeIndex(v.entries))
}

// sizeLimiter is implemented by stores that bound the size of one blob
type sizeLimiter interface {
	MaxBlobSize() int64
}

// MaxFileSize is the largest content a file may hold in this VFS
func (v *VFS) MaxFileSize() int64 {
	if l, ok := v.store.(sizeLimiter); ok {
		return l.MaxBlobSize()
	}
	return DefaultMaxMetadataSize
}

func (v *VFS) checkFileSize(op, path string, size int64) error {
	if size < 0 {
		return newPathError(op, path, &ValidationError{Field: "size", Value: size, Message: "size cannot be negative"})
	}
	if max := v.MaxFileSize(); size > max {
		return newPathError(op, path, &ValidationError{Field: "size", Value: size, Message: fmt.Sprintf("size exceeds the %d byte limit", max)})
	}
	return nil
}

// resolve walks path from the root, matching one child name per segment
func (v *VFS) resolve(path string) (*Entry, bool) {
	return v.resolveSegments(splitPath(path))
}

func (v *VFS) resolveSegments(segs []string) (*Entry, bool) {
	cur := v.entries[RootID]
	for _, seg := range segs {
		next := v.child(cur.ID, seg)
		if next == nil {
			return nil, false
		}
		cur = next
	}
	return cur, true
}

func (v *VFS) child(parentID, name string) *Entry {
	for _, e := range v.entries {
		if e.ParentID == parentID && e.Name == name {
			return e
		}
	}
	return nil
}

// parentFor resolves the directory that would contain path and validates
// the leaf name
func (v *VFS) parentFor(op, path string) (*Entry, string, error) {
	segs := splitPath(path)
	if len(segs) == 0 {
		return nil, "", newPathError(op, path, ErrRootOperation)
	}
	// an empty interior segment would never resolve again
	for _, seg := range segs[:len(segs)-1] {
		if seg == "" {
			return nil, "", newPathError(op, path, ErrInvalidName)
		}
	}
	name := segs[len(segs)-1]
	if err := ValidateName(name); err != nil {
		return nil, "", newPathError(op, path, err)
	}
	parent, ok := v.resolveSegments(segs[:len(segs)-1])
	if !ok {
		return nil, "", newPathError(op, path, ErrNotFound)
	}
	if !parent.IsDir {
		return nil, "", newPathError(op, path, ErrNotDirectory)
	}
	if v.child(parent.ID, name) != nil {
		return nil, "", newPathError(op, path, ErrExist)
	}
	return parent, name, nil
}

func (v *VFS) lookupFile(op, path string) (*Entry, error) {
	e, ok := v.resolve(path)
	if !ok {
		return nil, newPathError(op, path, ErrNotFound)
	}
	if e.IsDir {
		return nil, newPathError(op, path, ErrIsDirectory)
	}
	return e, nil
}

func (v *VFS) lookupDir(op, path string) (*Entry, error) {
	e, ok := v.resolve(path)
	if !ok {
		return nil, newPathError(op, path, ErrNotFound)
	}
	if !e.IsDir {
		return nil, newPathError(op, path, ErrNotDirectory)
	}
	return e, nil
}

// CreateDirectory creates a directory whose parent must already exist
func (v *VFS) CreateDirectory(path string) (Entry, error) {
	parent, name, err := v.parentFor("mkdir", path)
	if err != nil {
		return Entry{}, err
	}
	e := v.newEntry(name, parent.ID, true)
	v.entries[e.ID] = e
	if err := v.persist(); err != nil {
		delete(v.entries, e.ID)
		return Entry{}, err
	}
	return *e, nil
}

// MkdirAll creates path and any missing parents
func (v *VFS) MkdirAll(path string) (Entry, error) {
	cur := v.entries[RootID]
	walked := ""
	for _, seg := range splitPath(path) {
		if seg == "" {
			return Entry{}, newPathError("mkdir", path, ErrInvalidName)
		}
		walked = joinPath(walked, seg)
		next := v.child(cur.ID, seg)
		if next == nil {
			e, err := v.CreateDirectory(walked)
			if err != nil {
				return Entry{}, err
			}
			next = v.entries[e.ID]
		} else if !next.IsDir {
			return Entry{}, newPathError("mkdir", walked, ErrNotDirectory)
		}
		cur = next
	}
	return *cur, nil
}

// CreateFile creates a file with the given content. Empty content stores no
// blob.
func (v *VFS) CreateFile(path string, content []byte) (Entry, error) {
	parent, name, err := v.parentFor("create", path)
	if err != nil {
		return Entry{}, err
	}
	e := v.newEntry(name, parent.ID, false)
	if len(content) > 0 {
		if err := v.store.Write(e.ID, content); err != nil {
			return Entry{}, err
		}
		e.Size = uint64(len(content))
	}
	v.entries[e.ID] = e
	if err := v.persist(); err != nil {
		delete(v.entries, e.ID)
		if len(content) > 0 {
			v.store.Delete(e.ID)
		}
		return Entry{}, err
	}
	return *e, nil
}

func (v *VFS) newEntry(name, parentID string, dir bool) *Entry {
	now := v.now()
	return &Entry{
		ID:         uuid.NewString(),
		Name:       name,
		IsDir:      dir,
		ParentID:   parentID,
		CreatedAt:  now,
		ModifiedAt: now,
	}
}

// ReadFile returns the content of a file. A file with no blob is empty.
func (v *VFS) ReadFile(path string) ([]byte, error) {
	e, err := v.lookupFile("read", path)
	if err != nil {
		return nil, err
	}
	if !v.store.Has(e.ID) {
		return []byte{}, nil
	}
	return v.store.Read(e.ID)
}

// WriteFile replaces the content of an existing file
func (v *VFS) WriteFile(path string, content []byte) error {
	e, err := v.lookupFile("write", path)
	if err != nil {
		return err
	}
	if len(content) > 0 {
		err = v.store.Write(e.ID, content)
	} else {
		err = v.store.Delete(e.ID)
	}
	if err != nil {
		return err
	}

	prev := *e
	e.Size = uint64(len(content))
	e.ModifiedAt = v.now()
	if err := v.persist(); err != nil {
		*e = prev
		return err
	}
	return nil
}

// Delete removes a file, or a directory and everything beneath it
func (v *VFS) Delete(path string) error {
	e, ok := v.resolve(path)
	if !ok {
		return newPathError("delete", path, ErrNotFound)
	}
	if e.IsRoot() {
		return newPathError("delete", path, ErrRootOperation)
	}

	removed := v.subtree(e)
	for _, r := range removed {
		delete(v.entries, r.ID)
	}
	if err := v.persist(); err != nil {
		for _, r := range removed {
			v.entries[r.ID] = r
		}
		return err
	}

	// The index no longer references the subtree, so a blob that fails to
	// delete is unreachable rather than inconsistent.
	var errs []error
	for _, r := range removed {
		if r.IsDir || !v.store.Has(r.ID) {
			continue
		}
		if err := v.store.Delete(r.ID); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		return newPathError("delete", path, errors.Join(errs...))
	}
	return nil
}

// subtree returns e and all of its descendants, children before parents
func (v *VFS) subtree(e *Entry) []*Entry {
	var out []*Entry
	if e.IsDir {
		for _, c := range v.children(e.ID) {
			out = append(out, v.subtree(c)...)
		}
	}
	return append(out, e)
}

// Move renames or reparents an entry, keeping its id, content and creation
// time
func (v *VFS) Move(src, dst string) error {
	e, ok := v.resolve(src)
	if !ok {
		return newPathError("move", src, ErrNotFound)
	}
	if e.IsRoot() {
		return newPathError("move", src, ErrRootOperation)
	}
	if len(splitPath(dst)) == 0 {
		return newPathError("move", dst, &ValidationError{Field: "destination", Value: dst, Message: "invalid destination path"})
	}
	parent, name, err := v.parentFor("move", dst)
	if err != nil {
		return err
	}
	if e.IsDir && v.isAncestor(e.ID, parent.ID) {
		return newPathError("move", dst, &ValidationError{Field: "destination", Value: dst, Message: "cannot move a directory into itself"})
	}

	prev := *e
	e.Name = name
	e.ParentID = parent.ID
	e.ModifiedAt = v.now()
	if err := v.persist(); err != nil {
		*e = prev
		return err
	}
	return nil
}

// isAncestor reports whether id is target or one of its ancestors
func (v *VFS) isAncestor(id, target string) bool {
	for cur := target; cur != ""; cur = v.entries[cur].ParentID {
		if cur == id {
			return true
		}
	}
	return false
}

func (v *VFS) children(parentID string) []*Entry {
	var out []*Entry
	for _, e := range v.entries {
		if e.ParentID == parentID {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].IsDir != out[j].IsDir {
			return out[i].IsDir
		}
		return out[i].Name < out[j].Name
	})
	return out
}

// List returns the entries of a directory, directories first, then by name
func (v *VFS) List(path string) ([]Entry, error) {
	dir, err := v.lookupDir("list", path)
	if err != nil {
		return nil, err
	}
	kids := v.children(dir.ID)
	out := make([]Entry, len(kids))
	for i, c := range kids {
		out[i] = *c
	}
	return out, nil
}

// Exists reports whether path resolves to an entry
func (v *VFS) Exists(path string) bool {
	_, ok := v.resolve(path)
	return ok
}

// Stat returns a copy of the entry at path
func (v *VFS) Stat(path string) (Entry, error) {
	e, ok := v.resolve(path)
	if !ok {
		return Entry{}, newPathError("stat", path, ErrNotFound)
	}
	return *e, nil
}

// Len returns the number of entries, including the root
func (v *VFS) Len() int {
	return len(v.entries)
}

// WalkFunc is called for each entry visited by Walk with its vault path
type WalkFunc func(path string, e Entry) error

// SkipDir may be returned from a WalkFunc to skip a directory's contents
var SkipDir = errors.New("skip this directory")

// Walk visits path and everything beneath it depth-first, parents before
// children
func (v *VFS) Walk(path string, fn WalkFunc) error {
	e, ok := v.resolve(path)
	if !ok {
		return newPathError("walk", path, ErrNotFound)
	}
	start := "/" + NormalizePath(path)
	err := v.walk(start, e, fn)
	if errors.Is(err, SkipDir) {
		return nil
	}
	return err
}

func (v *VFS) walk(path string, e *Entry, fn WalkFunc) error {
	if err := fn(path, *e); err != nil {
		return err
	}
	if !e.IsDir {
		return nil
	}
	for _, c := range v.children(e.ID) {
		err := v.walk(joinPath(path, c.Name), c, fn)
		if errors.Is(err, SkipDir) {
			if c.IsDir {
				continue
			}
			// a file returning SkipDir skips its remaining siblings
			return nil
		}
		if err != nil {
			return err
		}
	}
	return nil
}

// OpenReader returns a reader over a file's content
func (v *VFS) OpenReader(path string) (io.ReadSeeker, error) {
	data, err := v.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return bytes.NewReader(data), nil
}

// OpenWriter returns a writer that replaces a file's content on Close,
// creating the file if it does not exist
func (v *VFS) OpenWriter(path string) (io.WriteCloser, error) {
	if e, ok := v.resolve(path); ok {
		if e.IsDir {
			return nil, newPathError("write", path, ErrIsDirectory)
		}
	} else if _, _, err := v.parentFor("write", path); err != nil {
		return nil, err
	}
	return &vfsWriter{v: v, path: path}, nil
}

type vfsWriter struct {
	v      *VFS
	path   string
	buf    bytes.Buffer
	closed bool
}

func (w *vfsWriter) Write(p []byte) (int, error) {
	if w.closed {
		return 0, newPathError("write", w.path, errors.New("writer closed"))
	}
	return w.buf.Write(p)
}

func (w *vfsWriter) Close() error {
	if w.closed {
		return nil
	}
	w.closed = true
	defer wipe(w.buf.Bytes())
	if w.v.Exists(w.path) {
		return w.v.WriteFile(w.path, w.buf.Bytes())
	}
	_, err := w.v.CreateFile(w.path, w.buf.Bytes())
	return err
}

// touch sets the modification time of the entry at path
func (v *VFS) touch(path string, mtime time.Time) error {
	e, ok := v.resolve(path)
	if !ok {
		return newPathError("chtimes", path, ErrNotFound)
	}
	prev := e.ModifiedAt
	e.ModifiedAt = mtime
	if err := v.persist(); err != nil {
		e.ModifiedAt = prev
		return err
	}
	return nil
}
