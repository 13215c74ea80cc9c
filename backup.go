package aegisvault

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"time"
)

// BackupTimeFormat is the timestamp layout embedded in backup file names
const BackupTimeFormat = "20060102_150405"

// BackupName returns the file name Backup uses for container at time t:
// <name>.<yyyyMMdd_HHmmss>.bak
func BackupName(container string, t time.Time) string {
	return filepath.Base(container) + "." + t.Format(BackupTimeFormat) + ".bak"
}

// Backup copies the container at path into dir, or next to the container
// when dir is empty, and returns the backup's path. A container held open by
// another session or process is refused with a *LockError.
func Backup(path, dir string) (string, error) {
	src, err := openContainerFile(path, os.O_RDONLY)
	if err != nil {
		return "", err
	}
	defer src.Close()

	if err := lockFile(src); err != nil {
		return "", err
	}
	defer unlockFile(src)
	if err := checkContainerFile(src); err != nil {
		return "", err
	}

	if dir == "" {
		dir = filepath.Dir(path)
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return "", NewIOError("mkdir", dir, err)
	}
	target := filepath.Join(dir, BackupName(path, time.Now()))

	dst, err := os.OpenFile(target, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o600)
	if err != nil {
		return "", NewIOError("create", target, err)
	}
	if err := copyContainer(dst, src, target); err != nil {
		dst.Close()
		os.Remove(target)
		return "", err
	}
	if err := dst.Close(); err != nil {
		os.Remove(target)
		return "", NewIOError("close", target, err)
	}
	return target, nil
}

// Restore overwrites the container at path with the backup. The target is
// locked for the duration so an open vault is never clobbered.
func Restore(backup, path string) error {
	src, err := openContainerFile(backup, os.O_RDONLY)
	if err != nil {
		return err
	}
	defer src.Close()
	if err := checkContainerFile(src); err != nil {
		return err
	}

	dst, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o600)
	if err != nil {
		return NewIOError("open", path, err)
	}
	defer dst.Close()

	if err := lockFile(dst); err != nil {
		return err
	}
	defer unlockFile(dst)

	if err := dst.Truncate(0); err != nil {
		return NewIOError("truncate", path, err)
	}
	return copyContainer(dst, src, path)
}

func openContainerFile(path string, flag int) (*os.File, error) {
	f, err := os.OpenFile(path, flag, 0)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, &ValidationError{Field: "path", Value: path, Message: "file does not exist", Err: err}
	}
	if err != nil {
		return nil, NewIOError("open", path, err)
	}
	return f, nil
}

// checkContainerFile rejects files that do not carry a valid header
func checkContainerFile(f *os.File) error {
	buf := make([]byte, HeaderSize)
	if _, err := f.ReadAt(buf, 0); err != nil {
		return NewFormatError(f.Name(), "not a container: header truncated", err)
	}
	var h Header
	if err := h.UnmarshalBinary(buf); err != nil {
		var fe *FormatError
		if errors.As(err, &fe) {
			fe.Path = f.Name()
		}
		return err
	}
	return nil
}

func copyContainer(dst, src *os.File, target string) error {
	if _, err := src.Seek(0, io.SeekStart); err != nil {
		return NewIOError("seek", src.Name(), err)
	}
	if _, err := dst.Seek(0, io.SeekStart); err != nil {
		return NewIOError("seek", target, err)
	}
	if _, err := io.Copy(dst, src); err != nil {
		return NewIOError("copy", target, fmt.Errorf("from %s: %w", src.Name(), err))
	}
	if err := dst.Sync(); err != nil {
		return NewIOError("sync", target, err)
	}
	return nil
}
