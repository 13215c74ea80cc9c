package aegisvault

import (
	"fmt"
	"strings"
)

// Input validation helpers

// ValidateBuffer checks that a buffer is non-nil and at least minSize bytes
func ValidateBuffer(buf []byte, name string, minSize int) error {
	if buf == nil {
		return &ValidationError{
			Field:   name,
			Message: "buffer cannot be nil",
		}
	}
	if minSize > 0 && len(buf) < minSize {
		return &ValidationError{
			Field:   name,
			Value:   len(buf),
			Message: fmt.Sprintf("buffer too small: got %d bytes, need at least %d bytes", len(buf), minSize),
		}
	}
	return nil
}

// ValidateSize checks that a size lies within [minSize, maxSize]. A zero
// maxSize means unbounded.
func ValidateSize(size int, name string, minSize, maxSize int) error {
	if size < 0 {
		return &ValidationError{
			Field:   name,
			Value:   size,
			Message: "size cannot be negative",
		}
	}
	if minSize >= 0 && size < minSize {
		return &ValidationError{
			Field:   name,
			Value:   size,
			Message: fmt.Sprintf("size too small: got %d, minimum is %d", size, minSize),
		}
	}
	if maxSize > 0 && size > maxSize {
		return &ValidationError{
			Field:   name,
			Value:   size,
			Message: fmt.Sprintf("size too large: got %d, maximum is %d", size, maxSize),
		}
	}
	return nil
}

// ValidateKey checks that a key has exactly the expected size
func ValidateKey(key []byte, expectedSize int) error {
	if key == nil {
		return &ValidationError{
			Field:   "key",
			Message: "key cannot be nil",
		}
	}
	if len(key) != expectedSize {
		return &ValidationError{
			Field:   "key",
			Value:   len(key),
			Message: fmt.Sprintf("invalid key size: got %d bytes, expected %d bytes", len(key), expectedSize),
		}
	}
	return nil
}

// ValidatePassword rejects empty passwords
func ValidatePassword(password []byte, field string) error {
	if len(password) == 0 {
		return &ValidationError{
			Field:   field,
			Message: "password cannot be empty",
		}
	}
	return nil
}

// ValidateName checks a single VFS entry name
func ValidateName(name string) error {
	if name == "" || name == "." || name == ".." || strings.ContainsAny(name, `/\`) {
		return ErrInvalidName
	}
	return nil
}

// NormalizePath converts separators to '/' and trims surrounding slashes.
// The empty string denotes the root.
func NormalizePath(path string) string {
	path = strings.ReplaceAll(path, `\`, "/")
	return strings.Trim(path, "/")
}

// splitPath returns the segments of a normalized path
func splitPath(path string) []string {
	p := NormalizePath(path)
	if p == "" {
		return nil
	}
	return strings.Split(p, "/")
}

// joinPath joins a vault directory and a child name
func joinPath(dir, name string) string {
	dir = NormalizePath(dir)
	if dir == "" {
		return "/" + name
	}
	return "/" + dir + "/" + name
}
