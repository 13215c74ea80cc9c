package aegisvault

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"fmt"

	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/twofish"
)

// CipherEngine is the narrow primitive capability a keyed AEAD exposes
type CipherEngine interface {
	// Encrypt seals plaintext with the given nonce
	Encrypt(nonce, plaintext, aad []byte) ([]byte, error)

	// Decrypt opens ciphertext with the given nonce
	Decrypt(nonce, ciphertext, aad []byte) ([]byte, error)

	// NonceSize returns the size of nonces in bytes
	NonceSize() int

	// Overhead returns the authentication tag size
	Overhead() int
}

// aeadEngine implements CipherEngine over any cipher.AEAD
type aeadEngine struct {
	aead cipher.AEAD
}

// Encrypt seals plaintext
func (e *aeadEngine) Encrypt(nonce, plaintext, aad []byte) ([]byte, error) {
	if len(nonce) != e.NonceSize() {
		return nil, fmt.Errorf("nonce must be %d bytes, got %d", e.NonceSize(), len(nonce))
	}
	return e.aead.Seal(nil, nonce, plaintext, aad), nil
}

// Decrypt opens ciphertext, hiding the underlying failure reason
func (e *aeadEngine) Decrypt(nonce, ciphertext, aad []byte) ([]byte, error) {
	if len(nonce) != e.NonceSize() {
		return nil, fmt.Errorf("nonce must be %d bytes, got %d", e.NonceSize(), len(nonce))
	}
	plaintext, err := e.aead.Open(nil, nonce, ciphertext, aad)
	if err != nil {
		return nil, ErrAuthFailed
	}
	return plaintext, nil
}

func (e *aeadEngine) NonceSize() int { return e.aead.NonceSize() }
func (e *aeadEngine) Overhead() int  { return e.aead.Overhead() }

// NewAESGCMEngine creates an AES-256-GCM engine
func NewAESGCMEngine(key []byte) (CipherEngine, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("failed to create AES cipher: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCM: %w", err)
	}
	return &aeadEngine{aead: aead}, nil
}

// NewChaCha20Poly1305Engine creates a ChaCha20-Poly1305 engine
func NewChaCha20Poly1305Engine(key []byte) (CipherEngine, error) {
	aead, err := chacha20poly1305.New(key)
	if err != nil {
		return nil, fmt.Errorf("failed to create ChaCha20-Poly1305 cipher: %w", err)
	}
	return &aeadEngine{aead: aead}, nil
}

// NewXChaCha20Poly1305Engine creates an XChaCha20-Poly1305 engine
func NewXChaCha20Poly1305Engine(key []byte) (CipherEngine, error) {
	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, fmt.Errorf("failed to create XChaCha20-Poly1305 cipher: %w", err)
	}
	return &aeadEngine{aead: aead}, nil
}

// NewTwofishGCMEngine creates a Twofish-256-GCM engine
func NewTwofishGCMEngine(key []byte) (CipherEngine, error) {
	block, err := twofish.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("failed to create Twofish cipher: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCM: %w", err)
	}
	return &aeadEngine{aead: aead}, nil
}

// Cipher is an AEAD provider. Ciphertext is framed as nonce || ct || tag
// with a fresh random nonce per call.
type Cipher interface {
	ID() CipherID
	Name() string
	KeySize() int
	NonceSize() int
	// Overhead is the total number of bytes Encrypt adds to a plaintext
	Overhead() int
	Experimental() bool
	Encrypt(plaintext, key, aad []byte) ([]byte, error)
	Decrypt(ciphertext, key, aad []byte) ([]byte, error)
}

// primitive describes one single-layer algorithm in the dispatch table
type primitive struct {
	name         string
	keySize      int
	nonceSize    int
	tagSize      int
	experimental bool
	newEngine    func(key []byte) (CipherEngine, error)
}

var cipherTable = map[CipherID]primitive{
	CipherAES:       {name: "AES", keySize: 32, nonceSize: 12, tagSize: 16, newEngine: NewAESGCMEngine},
	CipherChaCha20:  {name: "ChaCha20", keySize: chacha20poly1305.KeySize, nonceSize: chacha20poly1305.NonceSize, tagSize: 16, newEngine: NewChaCha20Poly1305Engine},
	CipherTwofish:   {name: "Twofish", keySize: 32, nonceSize: 12, tagSize: 16, experimental: true, newEngine: NewTwofishGCMEngine},
	CipherXChaCha20: {name: "XChaCha20", keySize: chacha20poly1305.KeySize, nonceSize: chacha20poly1305.NonceSizeX, tagSize: 16, experimental: true, newEngine: NewXChaCha20Poly1305Engine},
}

// aeadCipher is the generic framing wrapper over a primitive
type aeadCipher struct {
	id CipherID
	p  primitive
}

func newAEADCipher(id CipherID) (*aeadCipher, bool) {
	p, ok := cipherTable[id]
	if !ok {
		return nil, false
	}
	return &aeadCipher{id: id, p: p}, true
}

func (c *aeadCipher) ID() CipherID       { return c.id }
func (c *aeadCipher) Name() string       { return c.p.name }
func (c *aeadCipher) KeySize() int       { return c.p.keySize }
func (c *aeadCipher) NonceSize() int     { return c.p.nonceSize }
func (c *aeadCipher) Overhead() int      { return c.p.nonceSize + c.p.tagSize }
func (c *aeadCipher) Experimental() bool { return c.p.experimental }

// Encrypt returns nonce || ciphertext || tag
func (c *aeadCipher) Encrypt(plaintext, key, aad []byte) ([]byte, error) {
	engine, err := c.engine(key)
	if err != nil {
		return nil, err
	}

	nonce := make([]byte, c.p.nonceSize, c.p.nonceSize+len(plaintext)+c.p.tagSize)
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("failed to generate nonce: %w", err)
	}

	sealed, err := engine.Encrypt(nonce, plaintext, aad)
	if err != nil {
		return nil, &EncryptionError{Operation: "encrypt", Cipher: c.p.name, Err: err}
	}
	return append(nonce, sealed...), nil
}

// Decrypt verifies and opens nonce || ciphertext || tag
func (c *aeadCipher) Decrypt(ciphertext, key, aad []byte) ([]byte, error) {
	if err := ValidateBuffer(ciphertext, "ciphertext", c.Overhead()); err != nil {
		return nil, err
	}
	engine, err := c.engine(key)
	if err != nil {
		return nil, err
	}

	nonce, body := ciphertext[:c.p.nonceSize], ciphertext[c.p.nonceSize:]
	plaintext, err := engine.Decrypt(nonce, body, aad)
	if err != nil {
		return nil, &AuthenticationError{Message: c.p.name + ": " + err.Error(), Err: err}
	}
	return plaintext, nil
}

func (c *aeadCipher) engine(key []byte) (CipherEngine, error) {
	if err := ValidateKey(key, c.p.keySize); err != nil {
		return nil, err
	}
	engine, err := c.p.newEngine(key)
	if err != nil {
		return nil, &EncryptionError{Operation: "init", Cipher: c.p.name, Err: err}
	}
	return engine, nil
}

// randomBytes fills a new slice from the system CSPRNG
func randomBytes(n int) ([]byte, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return nil, fmt.Errorf("failed to read random bytes: %w", err)
	}
	return b, nil
}
