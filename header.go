package aegisvault

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
)

const (
	// Magic identifies container files
	Magic = "AEGISVLT"

	// CurrentVersion is the newest container format version this package reads
	CurrentVersion = uint16(1)

	// HeaderSize is the fixed size of the container header
	HeaderSize = 64

	// HeaderNonceSize is the length of the reserved header nonce
	HeaderNonceSize = 12

	// WrappedKeySize is nonce(12) || encrypted vault key(32) || tag(16)
	WrappedKeySize = 12 + VaultKeySize + 16

	// VaultKeySize is the length of the vault key
	VaultKeySize = 32

	// metadataOffset is where the length-prefixed metadata block begins
	metadataOffset = HeaderSize + WrappedKeySize

	offVersion  = 8
	offFlags    = 10
	offSalt     = 12
	offNonce    = 44
	offReserved = 56
)

// Header is the fixed 64-byte container header
type Header struct {
	Version uint16
	Flags   uint16
	Salt    [SaltSize]byte
	Nonce   [HeaderNonceSize]byte
}

// NewHeader creates a header with fresh random salt and nonce
func NewHeader(cipher CipherID, kdf KDFID) (*Header, error) {
	h := &Header{
		Version: CurrentVersion,
		Flags:   encodeFlags(cipher, kdf),
	}
	if err := h.reroll(); err != nil {
		return nil, err
	}
	return h, nil
}

// reroll replaces the salt and nonce with fresh random values
func (h *Header) reroll() error {
	salt, err := randomBytes(SaltSize)
	if err != nil {
		return fmt.Errorf("failed to generate salt: %w", err)
	}
	nonce, err := randomBytes(HeaderNonceSize)
	if err != nil {
		return fmt.Errorf("failed to generate nonce: %w", err)
	}
	copy(h.Salt[:], salt)
	copy(h.Nonce[:], nonce)
	return nil
}

// Cipher returns the content cipher recorded in the flags
func (h *Header) Cipher() CipherID {
	return CipherID(h.Flags & 0xff)
}

// KDF returns the key-derivation function recorded in the flags
func (h *Header) KDF() KDFID {
	return KDFID(h.Flags >> 8)
}

func encodeFlags(cipher CipherID, kdf KDFID) uint16 {
	return uint16(kdf)<<8 | uint16(cipher)
}

// MarshalBinary encodes the header into exactly HeaderSize bytes
func (h *Header) MarshalBinary() ([]byte, error) {
	buf := make([]byte, HeaderSize)
	copy(buf, Magic)
	binary.BigEndian.PutUint16(buf[offVersion:], h.Version)
	binary.BigEndian.PutUint16(buf[offFlags:], h.Flags)
	copy(buf[offSalt:], h.Salt[:])
	copy(buf[offNonce:], h.Nonce[:])
	return buf, nil
}

// UnmarshalBinary decodes and validates a header
func (h *Header) UnmarshalBinary(data []byte) error {
	if len(data) < HeaderSize {
		return NewFormatError("", fmt.Sprintf("header truncated: got %d bytes, need %d", len(data), HeaderSize), ErrInvalidHeader)
	}
	if !bytes.Equal(data[:offVersion], []byte(Magic)) {
		return NewFormatError("", "bad magic", ErrInvalidHeader)
	}

	h.Version = binary.BigEndian.Uint16(data[offVersion:])
	h.Flags = binary.BigEndian.Uint16(data[offFlags:])
	copy(h.Salt[:], data[offSalt:offNonce])
	copy(h.Nonce[:], data[offNonce:offReserved])

	return h.Validate()
}

// WriteTo writes the header to the given writer
func (h *Header) WriteTo(w io.Writer) (int64, error) {
	buf, err := h.MarshalBinary()
	if err != nil {
		return 0, err
	}
	n, err := w.Write(buf)
	return int64(n), err
}

// ReadFrom reads and validates the header from the given reader
func (h *Header) ReadFrom(r io.Reader) (int64, error) {
	buf := make([]byte, HeaderSize)
	n, err := io.ReadFull(r, buf)
	if err != nil {
		return int64(n), NewFormatError("", "header truncated", err)
	}
	return int64(n), h.UnmarshalBinary(buf)
}

// Validate checks the version and the algorithm identifiers in the flags
func (h *Header) Validate() error {
	if h.Version == 0 || h.Version > CurrentVersion {
		return NewFormatError("", fmt.Sprintf("version %d not supported (max %d)", h.Version, CurrentVersion), ErrUnsupportedVersion)
	}
	if !knownCipher(h.Cipher()) {
		return NewFormatError("", fmt.Sprintf("unknown content cipher #%d", uint8(h.Cipher())), ErrInvalidHeader)
	}
	if _, ok := kdfTable[h.KDF()]; !ok {
		return NewFormatError("", fmt.Sprintf("unknown key derivation function #%d", uint8(h.KDF())), ErrInvalidHeader)
	}
	return nil
}
