package aegisvault

import (
	"encoding/binary"
	"fmt"
	"io/fs"
	"sort"
	"time"
)

const (
	// IndexID is the reserved blob id holding the serialized VFS index
	IndexID = "__vfs_metadata__"
	// RootID is the id of the root directory
	RootID = "root"
)

// Entry is a file or directory node in the vault namespace
type Entry struct {
	ID         string
	Name       string
	IsDir      bool
	ParentID   string // empty only for the root
	Size       uint64
	CreatedAt  time.Time
	ModifiedAt time.Time
}

// IsRoot reports whether e is the root directory
func (e Entry) IsRoot() bool {
	return e.ParentID == ""
}

// FileInfo adapts the entry to fs.FileInfo
func (e Entry) FileInfo() fs.FileInfo {
	return entryInfo{e}
}

type entryInfo struct {
	e Entry
}

func (i entryInfo) Name() string {
	if i.e.IsRoot() {
		return "/"
	}
	return i.e.Name
}

func (i entryInfo) Size() int64        { return int64(i.e.Size) }
func (i entryInfo) ModTime() time.Time { return i.e.ModifiedAt }
func (i entryInfo) IsDir() bool        { return i.e.IsDir }
func (i entryInfo) Sys() any           { return i.e }

func (i entryInfo) Mode() fs.FileMode {
	if i.e.IsDir {
		return fs.ModeDir | 0o700
	}
	return 0o600
}

// encodeIndex serializes entries in id order:
// count || (id, name, isDir, parentId, size, createdAt ms, modifiedAt ms)*
func encodeIndex(entries map[string]*Entry) []byte {
	ids := make([]string, 0, len(entries))
	for id := range entries {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	buf := binary.BigEndian.AppendUint32(nil, uint32(len(entries)))
	for _, id := range ids {
		e := entries[id]
		buf = appendString(buf, e.ID)
		buf = appendString(buf, e.Name)
		if e.IsDir {
			buf = append(buf, 1)
		} else {
			buf = append(buf, 0)
		}
		buf = appendString(buf, e.ParentID)
		buf = binary.BigEndian.AppendUint64(buf, e.Size)
		buf = binary.BigEndian.AppendUint64(buf, uint64(e.CreatedAt.UnixMilli()))
		buf = binary.BigEndian.AppendUint64(buf, uint64(e.ModifiedAt.UnixMilli()))
	}
	return buf
}

func appendString(buf []byte, s string) []byte {
	buf = binary.BigEndian.AppendUint32(buf, uint32(len(s)))
	return append(buf, s...)
}

// smallest possible encoded entry: three empty strings, flag, three u64
const minEncodedEntry = 4 + 4 + 1 + 4 + 8 + 8 + 8

func decodeIndex(data []byte) (map[string]*Entry, error) {
	r := &byteReader{data: data}
	count, err := r.uint32()
	if err != nil {
		return nil, err
	}
	if uint64(count)*minEncodedEntry > uint64(r.remaining()) {
		return nil, NewFormatError("", fmt.Sprintf("index entry count %d exceeds data size", count), nil)
	}

	entries := make(map[string]*Entry, count)
	for i := uint32(0); i < count; i++ {
		e, err := decodeEntry(r)
		if err != nil {
			return nil, err
		}
		entries[e.ID] = e
	}
	return entries, nil
}

func decodeEntry(r *byteReader) (*Entry, error) {
	id, err := r.lenPrefixed()
	if err != nil {
		return nil, err
	}
	name, err := r.lenPrefixed()
	if err != nil {
		return nil, err
	}
	dir, err := r.uint8()
	if err != nil {
		return nil, err
	}
	parent, err := r.lenPrefixed()
	if err != nil {
		return nil, err
	}
	size, err := r.uint64()
	if err != nil {
		return nil, err
	}
	created, err := r.uint64()
	if err != nil {
		return nil, err
	}
	modified, err := r.uint64()
	if err != nil {
		return nil, err
	}
	return &Entry{
		ID:         string(id),
		Name:       string(name),
		IsDir:      dir == 1,
		ParentID:   string(parent),
		Size:       size,
		CreatedAt:  time.UnixMilli(int64(created)),
		ModifiedAt: time.UnixMilli(int64(modified)),
	}, nil
}

// checkIndex verifies the tree invariants of a decoded index
func checkIndex(entries map[string]*Entry) error {
	root, ok := entries[RootID]
	if !ok || !root.IsDir || root.ParentID != "" {
		return NewFormatError("", "index has no valid root", nil)
	}
	seen := make(map[string]map[string]bool)
	for _, e := range entries {
		if e.ID == RootID {
			continue
		}
		p, ok := entries[e.ParentID]
		if !ok || !p.IsDir {
			return NewFormatError("", fmt.Sprintf("entry %q has no directory parent", e.ID), nil)
		}
		if seen[e.ParentID] == nil {
			seen[e.ParentID] = make(map[string]bool)
		}
		if seen[e.ParentID][e.Name] {
			return NewFormatError("", fmt.Sprintf("duplicate name %q in directory %q", e.Name, e.ParentID), nil)
		}
		seen[e.ParentID][e.Name] = true
	}

	// every parent exists now; more steps than entries means a cycle
	for _, e := range entries {
		cur, steps := e, 0
		for cur.ID != RootID {
			if steps++; steps > len(entries) {
				return NewFormatError("", fmt.Sprintf("cycle at entry %q", e.ID), nil)
			}
			cur = entries[cur.ParentID]
		}
	}
	return nil
}
