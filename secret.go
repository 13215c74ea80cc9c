package aegisvault

import (
	"github.com/awnumar/memguard"
)

// Secret owns key material in locked, guarded memory. Destroy wipes it.
// The backing bytes are never handed out beyond the package.
type Secret struct {
	buf *memguard.LockedBuffer
}

// NewSecret moves b into a new Secret. The source slice is wiped.
func NewSecret(b []byte) *Secret {
	return &Secret{buf: memguard.NewBufferFromBytes(b)}
}

// RandomSecret returns a Secret holding n bytes from the system CSPRNG
func RandomSecret(n int) *Secret {
	return &Secret{buf: memguard.NewBufferRandom(n)}
}

// Len returns the size of the secret, or 0 once destroyed
func (s *Secret) Len() int {
	if !s.Alive() {
		return 0
	}
	return s.buf.Size()
}

// Alive reports whether the secret still holds key material
func (s *Secret) Alive() bool {
	return s != nil && s.buf != nil && s.buf.IsAlive()
}

// Destroy wipes and releases the secret. Safe to call more than once.
func (s *Secret) Destroy() {
	if s == nil || s.buf == nil {
		return
	}
	s.buf.Destroy()
}

// Equal compares two secrets in constant time
func (s *Secret) Equal(other *Secret) bool {
	if !s.Alive() || !other.Alive() {
		return false
	}
	return s.buf.EqualTo(other.buf.Bytes())
}

func (s *Secret) bytes() []byte {
	if !s.Alive() {
		return nil
	}
	return s.buf.Bytes()
}

// wipe zeroes transient buffers that held secret material
func wipe(bufs ...[]byte) {
	for _, b := range bufs {
		memguard.WipeBytes(b)
	}
}
