package aegisvault

import (
	"github.com/rs/zerolog"
)

// CipherID identifies a content cipher. Values are stored in the low byte of
// the container header flags, so they must never be renumbered.
type CipherID uint8

const (
	// CipherAES uses AES-256 with Galois/Counter Mode
	CipherAES CipherID = 0
	// CipherChaCha20 uses ChaCha20 stream cipher with Poly1305 MAC
	CipherChaCha20 CipherID = 1
	// CipherTwofish uses Twofish-256 in Galois/Counter Mode (experimental)
	CipherTwofish CipherID = 2
	// CipherXChaCha20 uses XChaCha20-Poly1305 with 192-bit nonces (experimental)
	CipherXChaCha20 CipherID = 3
)

// Cascade identifiers. Names list layers outermost first.
const (
	CascadeAESTwofish CipherID = 16 + iota
	CascadeTwofishAES
	CascadeChaCha20AES
	CascadeTwofishChaCha20
	CascadeAESTwofishChaCha20
	CascadeXChaCha20TwofishAES
)

// String returns the algorithm identifier
func (c CipherID) String() string {
	if d, ok := cipherTable[c]; ok {
		return d.name
	}
	if l, ok := cascadeTable[c]; ok {
		return cascadeName(l)
	}
	return "unknown"
}

// IsCascade reports whether the identifier names a multi-layer cipher
func (c CipherID) IsCascade() bool {
	_, ok := cascadeTable[c]
	return ok
}

// KDFID identifies a password key-derivation function. Values are stored in
// the high byte of the container header flags.
type KDFID uint8

const (
	// KDFArgon2id is memory-hard Argon2id (64 MiB, t=3, p=1)
	KDFArgon2id KDFID = iota
	// KDFScrypt is scrypt (N=32768, r=8, p=1)
	KDFScrypt
	// KDFPBKDF2 is PBKDF2-HMAC-SHA512 (600000 iterations)
	KDFPBKDF2
)

// String returns the KDF identifier
func (k KDFID) String() string {
	switch k {
	case KDFArgon2id:
		return "Argon2id"
	case KDFScrypt:
		return "scrypt"
	case KDFPBKDF2:
		return "PBKDF2-SHA512"
	default:
		return "unknown"
	}
}

// HashID identifies a hash provider
type HashID uint8

const (
	HashSHA512 HashID = iota
	HashSHA256
	HashBLAKE2b512
	HashBLAKE2s256
	HashSHA3256
)

// String returns the hash identifier
func (h HashID) String() string {
	switch h {
	case HashSHA512:
		return "SHA-512"
	case HashSHA256:
		return "SHA-256"
	case HashBLAKE2b512:
		return "BLAKE2b-512"
	case HashBLAKE2s256:
		return "BLAKE2s-256"
	case HashSHA3256:
		return "SHA3-256"
	default:
		return "unknown"
	}
}

// Experimental gates non-standard algorithms. Every sub-switch is ignored
// unless Enabled is set.
type Experimental struct {
	Enabled           bool
	Ciphers           bool // alternative single ciphers
	Cascades          bool
	AlternativeKDFs   bool
	AlternativeHashes bool
	SelfTestOnStartup bool
}

// AllExperimental enables every experimental feature
func AllExperimental() Experimental {
	return Experimental{
		Enabled:           true,
		Ciphers:           true,
		Cascades:          true,
		AlternativeKDFs:   true,
		AlternativeHashes: true,
	}
}

func (e Experimental) ciphers() bool  { return e.Enabled && e.Ciphers }
func (e Experimental) cascades() bool { return e.Enabled && e.Cascades }
func (e Experimental) kdfs() bool     { return e.Enabled && e.AlternativeKDFs }
func (e Experimental) hashes() bool   { return e.Enabled && e.AlternativeHashes }
func (e Experimental) selfTest() bool { return e.Enabled && e.SelfTestOnStartup }

// DefaultMaxMetadataSize bounds the encrypted metadata block (100 MiB)
const DefaultMaxMetadataSize = 100 * 1024 * 1024

// Options configures a Container or Session
type Options struct {
	// Cipher encrypts the metadata block of newly created containers
	Cipher CipherID

	// KDF derives the master key of newly created containers
	KDF KDFID

	// Experimental gates non-standard algorithms
	Experimental Experimental

	// MaxMetadataSize bounds the metadata block; 0 means DefaultMaxMetadataSize
	MaxMetadataSize int64

	// Logger receives lifecycle events; the zero value discards them
	Logger zerolog.Logger
}

// DefaultOptions returns AES-256-GCM content encryption with Argon2id
func DefaultOptions() Options {
	return Options{
		Cipher:          CipherAES,
		KDF:             KDFArgon2id,
		MaxMetadataSize: DefaultMaxMetadataSize,
		Logger:          zerolog.Nop(),
	}
}

// Validate checks that the selected algorithms exist and are permitted
func (o *Options) Validate() error {
	if o.MaxMetadataSize < 0 {
		return NewValidationError("max_metadata_size", o.MaxMetadataSize, "size cannot be negative")
	}
	if o.MaxMetadataSize > 0 && o.MaxMetadataSize < minMetadataSize {
		return NewValidationError("max_metadata_size", o.MaxMetadataSize, "size too small to hold an empty map")
	}
	reg := NewRegistry(o.Experimental)
	if _, err := reg.Cipher(o.Cipher); err != nil {
		return err
	}
	if _, err := reg.KDF(o.KDF); err != nil {
		return err
	}
	return nil
}

func (o *Options) maxMetadataSize() int64 {
	if o.MaxMetadataSize == 0 {
		return DefaultMaxMetadataSize
	}
	return o.MaxMetadataSize
}
