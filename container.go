package aegisvault

import (
	"crypto/sha256"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"sort"

	"github.com/rs/zerolog"
	"golang.org/x/crypto/hkdf"
)

type containerState uint8

const (
	stateUninitialized containerState = iota
	stateOpen
	stateClosed
)

// Container is a single encrypted file holding a flat blob store.
//
// Layout: 64-byte header, 60-byte wrapped vault key, 4-byte metadata length,
// then the encrypted metadata block. Every blob is encrypted under the
// content key, and the whole map is encrypted again as one unit on every
// mutation. The rewrite happens in place (write, truncate, fsync) and is not
// crash-atomic: power loss during it can leave the container unreadable.
//
// A Container is not safe for concurrent use; Session serializes access.
type Container struct {
	path string
	opts Options
	reg  *Registry
	log  zerolog.Logger

	state      containerState
	file       *os.File
	header     *Header
	cipher     Cipher
	vaultKey   *Secret
	contentKey *Secret
	blobs      map[string][]byte
}

// ContainerInfo describes an open container without exposing key material
type ContainerInfo struct {
	Path         string
	Version      uint16
	Cipher       CipherID
	KDF          KDFID
	Blobs        int
	MetadataSize int64
}

// NewContainer returns an uninitialized container bound to path
func NewContainer(path string, opts Options) *Container {
	return &Container{
		path: path,
		opts: opts,
		reg:  NewRegistry(opts.Experimental),
		log:  opts.Logger,
	}
}

// Path returns the container file path
func (c *Container) Path() string {
	return c.path
}

// IsOpen reports whether the container is open
func (c *Container) IsOpen() bool {
	return c.state == stateOpen
}

func (c *Container) checkFresh(op string) error {
	switch c.state {
	case stateOpen:
		return &StateError{Operation: op, Message: ErrAlreadyOpen.Error()}
	case stateClosed:
		return &StateError{Operation: op, Message: "container has been closed"}
	}
	return nil
}

func (c *Container) ensureOpen(op string) error {
	if c.state != stateOpen {
		return &StateError{Operation: op, Message: ErrClosed.Error()}
	}
	return nil
}

// Create writes a new container protected by password and leaves it open
// and locked. The password slice is wiped before returning.
func (c *Container) Create(password []byte) (err error) {
	defer wipe(password)

	if err := c.checkFresh("create"); err != nil {
		return err
	}
	if err := ValidatePassword(password, "password"); err != nil {
		return err
	}
	if err := c.opts.Validate(); err != nil {
		return err
	}
	cph, _ := c.reg.Cipher(c.opts.Cipher)
	kdf, _ := c.reg.KDF(c.opts.KDF)

	f, err := os.OpenFile(c.path, os.O_RDWR|os.O_CREATE|os.O_EXCL, 0o600)
	if errors.Is(err, fs.ErrExist) {
		return NewFormatError(c.path, "container already exists", err)
	}
	if err != nil {
		return NewIOError("create", c.path, err)
	}

	var vaultKey, contentKey *Secret
	defer func() {
		if err != nil {
			vaultKey.Destroy()
			contentKey.Destroy()
			f.Close()
			os.Remove(c.path)
		}
	}()

	if err = lockFile(f); err != nil {
		return err
	}

	header, err := NewHeader(cph.ID(), kdf.ID())
	if err != nil {
		return err
	}
	master, err := kdf.DeriveKey(password, header.Salt[:], VaultKeySize)
	if err != nil {
		return err
	}
	defer master.Destroy()

	vaultKey = RandomSecret(VaultKeySize)
	wrapped, err := wrapVaultKey(vaultKey, master)
	if err != nil {
		return err
	}
	if contentKey, err = deriveContentKey(vaultKey, cph); err != nil {
		return err
	}

	if err = writePreamble(f, header, wrapped); err != nil {
		return err
	}
	blobs := make(map[string][]byte)
	if err = writeMetadata(f, cph, contentKey, blobs); err != nil {
		return err
	}

	c.install(f, header, cph, vaultKey, contentKey, blobs)
	c.log.Info().Str("path", c.path).Str("cipher", cph.Name()).Str("kdf", kdf.Name()).Msg("container created")
	return nil
}

// Open unlocks an existing container with password. The password slice is
// wiped before returning.
func (c *Container) Open(password []byte) (err error) {
	defer wipe(password)

	if err := c.checkFresh("open"); err != nil {
		return err
	}
	if err := ValidatePassword(password, "password"); err != nil {
		return err
	}

	f, err := os.OpenFile(c.path, os.O_RDWR, 0)
	if errors.Is(err, fs.ErrNotExist) {
		return NewFormatError(c.path, "container does not exist", err)
	}
	if err != nil {
		return NewIOError("open", c.path, err)
	}

	var vaultKey, contentKey *Secret
	defer func() {
		if err != nil {
			vaultKey.Destroy()
			contentKey.Destroy()
			f.Close()
		}
	}()

	if err = lockFile(f); err != nil {
		return err
	}

	header := &Header{}
	if err = c.readHeader(f, header); err != nil {
		return err
	}
	cph, err := c.reg.Cipher(header.Cipher())
	if err != nil {
		return err
	}
	kdf, err := c.reg.KDF(header.KDF())
	if err != nil {
		return err
	}

	wrapped := make([]byte, WrappedKeySize)
	if err = c.readAt(f, wrapped, HeaderSize, "wrapped key"); err != nil {
		return err
	}
	master, err := kdf.DeriveKey(password, header.Salt[:], VaultKeySize)
	if err != nil {
		return err
	}
	defer master.Destroy()

	if vaultKey, err = unwrapVaultKey(wrapped, master); err != nil {
		return &AuthenticationError{Path: c.path, Message: ErrWrongPassword.Error(), Err: ErrWrongPassword}
	}
	if contentKey, err = deriveContentKey(vaultKey, cph); err != nil {
		return err
	}

	blobs, err := c.readMetadata(f, cph, contentKey)
	if err != nil {
		return err
	}

	c.install(f, header, cph, vaultKey, contentKey, blobs)
	c.log.Info().Str("path", c.path).Str("cipher", cph.Name()).Int("blobs", len(blobs)).Msg("container opened")
	return nil
}

func (c *Container) install(f *os.File, h *Header, cph Cipher, vaultKey, contentKey *Secret, blobs map[string][]byte) {
	c.file = f
	c.header = h
	c.cipher = cph
	c.vaultKey = vaultKey
	c.contentKey = contentKey
	c.blobs = blobs
	c.state = stateOpen
}

func (c *Container) readHeader(f *os.File, h *Header) error {
	buf := make([]byte, HeaderSize)
	if err := c.readAt(f, buf, 0, "header"); err != nil {
		return err
	}
	if err := h.UnmarshalBinary(buf); err != nil {
		var fe *FormatError
		if errors.As(err, &fe) {
			fe.Path = c.path
		}
		return err
	}
	return nil
}

func (c *Container) readMetadata(f *os.File, cph Cipher, key *Secret) (map[string][]byte, error) {
	lenBuf := make([]byte, 4)
	if err := c.readAt(f, lenBuf, metadataOffset, "metadata length"); err != nil {
		return nil, err
	}
	n := int64(binary.BigEndian.Uint32(lenBuf))
	if n > c.opts.maxMetadataSize() || n < int64(cph.Overhead()) {
		return nil, NewFormatError(c.path, fmt.Sprintf("invalid metadata length: %d", n), nil)
	}

	info, err := f.Stat()
	if err != nil {
		return nil, NewIOError("stat", c.path, err)
	}
	if info.Size() < metadataOffset+4+n {
		return nil, NewFormatError(c.path, "metadata block truncated", io.ErrUnexpectedEOF)
	}

	block := make([]byte, n)
	if err := c.readAt(f, block, metadataOffset+4, "metadata"); err != nil {
		return nil, err
	}
	plain, err := cph.Decrypt(block, key.bytes(), nil)
	if err != nil {
		return nil, &AuthenticationError{Path: c.path, Message: "metadata block failed verification", Err: err}
	}
	defer wipe(plain)

	blobs, err := decodeMetadata(plain)
	if err != nil {
		var fe *FormatError
		if errors.As(err, &fe) {
			fe.Path = c.path
		}
		return nil, err
	}
	return blobs, nil
}

func (c *Container) readAt(f *os.File, buf []byte, off int64, what string) error {
	_, err := f.ReadAt(buf, off)
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return NewFormatError(c.path, what+" truncated", err)
	}
	if err != nil {
		return &IOError{Operation: "read", Path: c.path, Offset: off, Message: err.Error(), Err: err}
	}
	return nil
}

// Read decrypts the blob stored under id
func (c *Container) Read(id string) ([]byte, error) {
	if err := c.ensureOpen("read"); err != nil {
		return nil, err
	}
	enc, ok := c.blobs[id]
	if !ok {
		return nil, newPathError("read", id, ErrNotFound)
	}
	plain, err := c.cipher.Decrypt(enc, c.contentKey.bytes(), []byte(id))
	if err != nil {
		var ae *AuthenticationError
		if errors.As(err, &ae) {
			ae.Path = c.path
		}
		return nil, err
	}
	return plain, nil
}

// Write stores data under id and rewrites the metadata block
func (c *Container) Write(id string, data []byte) error {
	if err := c.ensureOpen("write"); err != nil {
		return err
	}
	if id == "" {
		return NewValidationError("id", id, "blob id cannot be empty")
	}

	enc, err := c.cipher.Encrypt(data, c.contentKey.bytes(), []byte(id))
	if err != nil {
		return err
	}

	prev, existed := c.blobs[id]
	c.blobs[id] = enc
	if size := metadataSize(c.blobs) + int64(c.cipher.Overhead()); size > c.opts.maxMetadataSize() {
		c.restore(id, prev, existed)
		return &ValidationError{
			Field:   "content",
			Value:   len(data),
			Message: fmt.Sprintf("metadata block would grow to %d bytes, limit is %d", size, c.opts.maxMetadataSize()),
		}
	}
	if err := c.persist(); err != nil {
		c.restore(id, prev, existed)
		return err
	}
	return nil
}

// MaxBlobSize bounds a single plaintext blob: the metadata block limit less
// the cipher overhead
func (c *Container) MaxBlobSize() int64 {
	if c.cipher == nil {
		return c.opts.maxMetadataSize()
	}
	return c.opts.maxMetadataSize() - int64(c.cipher.Overhead())
}

// Delete removes the blob stored under id. Deleting an absent id is a no-op.
func (c *Container) Delete(id string) error {
	if err := c.ensureOpen("delete"); err != nil {
		return err
	}
	prev, ok := c.blobs[id]
	if !ok {
		return nil
	}
	delete(c.blobs, id)
	if err := c.persist(); err != nil {
		c.blobs[id] = prev
		return err
	}
	return nil
}

func (c *Container) restore(id string, prev []byte, existed bool) {
	if existed {
		c.blobs[id] = prev
	} else {
		delete(c.blobs, id)
	}
}

// Has reports whether a blob is stored under id
func (c *Container) Has(id string) bool {
	if c.state != stateOpen {
		return false
	}
	_, ok := c.blobs[id]
	return ok
}

// IDs returns the stored blob ids in sorted order
func (c *Container) IDs() []string {
	ids := make([]string, 0, len(c.blobs))
	for id := range c.blobs {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Len returns the number of stored blobs
func (c *Container) Len() int {
	return len(c.blobs)
}

func (c *Container) persist() error {
	return writeMetadata(c.file, c.cipher, c.contentKey, c.blobs)
}

// ChangePassword re-wraps the vault key under a key derived from newPassword.
// Content is untouched. Both password slices are wiped before returning.
func (c *Container) ChangePassword(oldPassword, newPassword []byte) error {
	defer wipe(oldPassword, newPassword)

	if err := c.ensureOpen("change password"); err != nil {
		return err
	}
	if err := ValidatePassword(oldPassword, "old_password"); err != nil {
		return err
	}
	if err := ValidatePassword(newPassword, "new_password"); err != nil {
		return err
	}
	kdf, err := c.reg.KDF(c.header.KDF())
	if err != nil {
		return err
	}

	if err := c.verifyPassword(kdf, oldPassword); err != nil {
		return err
	}

	header := *c.header
	if err := header.reroll(); err != nil {
		return err
	}
	master, err := kdf.DeriveKey(newPassword, header.Salt[:], VaultKeySize)
	if err != nil {
		return err
	}
	defer master.Destroy()

	wrapped, err := wrapVaultKey(c.vaultKey, master)
	if err != nil {
		return err
	}
	if err := writePreamble(c.file, &header, wrapped); err != nil {
		return err
	}
	c.header = &header
	c.log.Info().Str("path", c.path).Msg("container password changed")
	return nil
}

func (c *Container) verifyPassword(kdf KDF, password []byte) error {
	wrapped := make([]byte, WrappedKeySize)
	if err := c.readAt(c.file, wrapped, HeaderSize, "wrapped key"); err != nil {
		return err
	}
	master, err := kdf.DeriveKey(password, c.header.Salt[:], VaultKeySize)
	if err != nil {
		return err
	}
	defer master.Destroy()

	key, err := unwrapVaultKey(wrapped, master)
	if err != nil {
		return &AuthenticationError{Path: c.path, Message: ErrWrongPassword.Error(), Err: ErrWrongPassword}
	}
	defer key.Destroy()
	if !key.Equal(c.vaultKey) {
		return &AuthenticationError{Path: c.path, Message: ErrWrongPassword.Error(), Err: ErrWrongPassword}
	}
	return nil
}

// Info describes the open container
func (c *Container) Info() (ContainerInfo, error) {
	if err := c.ensureOpen("info"); err != nil {
		return ContainerInfo{}, err
	}
	return ContainerInfo{
		Path:         c.path,
		Version:      c.header.Version,
		Cipher:       c.cipher.ID(),
		KDF:          c.header.KDF(),
		Blobs:        len(c.blobs),
		MetadataSize: metadataSize(c.blobs) + int64(c.cipher.Overhead()),
	}, nil
}

// Fingerprint hashes the wrapped key block salted with the header salt. It
// identifies a container's key material without revealing it and changes
// whenever the password does.
func (c *Container) Fingerprint(h Hash) ([]byte, error) {
	if err := c.ensureOpen("fingerprint"); err != nil {
		return nil, err
	}
	wrapped := make([]byte, WrappedKeySize)
	if err := c.readAt(c.file, wrapped, HeaderSize, "wrapped key"); err != nil {
		return nil, err
	}
	return h.SaltedSum(wrapped, c.header.Salt[:]), nil
}

// Close wipes key material and releases the lock and file. It is idempotent.
func (c *Container) Close() error {
	if c.state != stateOpen {
		c.state = stateClosed
		return nil
	}

	c.vaultKey.Destroy()
	c.contentKey.Destroy()
	c.vaultKey, c.contentKey = nil, nil
	c.blobs = nil
	c.header = nil
	c.cipher = nil
	c.state = stateClosed

	f := c.file
	c.file = nil
	unlockErr := unlockFile(f)
	if err := f.Close(); err != nil {
		return NewIOError("close", c.path, err)
	}
	if unlockErr != nil {
		return NewIOError("unlock", c.path, unlockErr)
	}
	c.log.Info().Str("path", c.path).Msg("container closed")
	return nil
}

// wrapVaultKey encrypts the vault key under the master key with AES-GCM
func wrapVaultKey(vaultKey, master *Secret) ([]byte, error) {
	wrapper, _ := newAEADCipher(CipherAES)
	return wrapper.Encrypt(vaultKey.bytes(), master.bytes(), nil)
}

func unwrapVaultKey(wrapped []byte, master *Secret) (*Secret, error) {
	wrapper, _ := newAEADCipher(CipherAES)
	key, err := wrapper.Decrypt(wrapped, master.bytes(), nil)
	if err != nil {
		return nil, err
	}
	if len(key) != VaultKeySize {
		wipe(key)
		return nil, ErrAuthFailed
	}
	return NewSecret(key), nil
}

// deriveContentKey returns the key for cph. AES uses the vault key itself so
// default containers match the base format; other ciphers get an HKDF
// expansion sized to their key.
func deriveContentKey(vaultKey *Secret, cph Cipher) (*Secret, error) {
	if cph.ID() == CipherAES {
		return NewSecret(append([]byte(nil), vaultKey.bytes()...)), nil
	}
	key := make([]byte, cph.KeySize())
	r := hkdf.New(sha256.New, vaultKey.bytes(), nil, []byte("aegisvault content "+cph.Name()))
	if _, err := io.ReadFull(r, key); err != nil {
		wipe(key)
		return nil, fmt.Errorf("failed to derive content key: %w", err)
	}
	return NewSecret(key), nil
}

// writePreamble rewrites the header and wrapped key region and syncs
func writePreamble(f *os.File, h *Header, wrapped []byte) error {
	buf, err := h.MarshalBinary()
	if err != nil {
		return err
	}
	buf = append(buf, wrapped...)
	if _, err := f.WriteAt(buf, 0); err != nil {
		return &IOError{Operation: "write", Path: f.Name(), Offset: 0, Message: err.Error(), Err: err}
	}
	if err := f.Sync(); err != nil {
		return NewIOError("sync", f.Name(), err)
	}
	return nil
}

// writeMetadata encrypts the whole map and rewrites it in place
func writeMetadata(f *os.File, cph Cipher, key *Secret, blobs map[string][]byte) error {
	plain := encodeMetadata(blobs)
	enc, err := cph.Encrypt(plain, key.bytes(), nil)
	wipe(plain)
	if err != nil {
		return err
	}

	buf := make([]byte, 4, 4+len(enc))
	binary.BigEndian.PutUint32(buf, uint32(len(enc)))
	buf = append(buf, enc...)

	if _, err := f.WriteAt(buf, metadataOffset); err != nil {
		return &IOError{Operation: "write", Path: f.Name(), Offset: metadataOffset, Message: err.Error(), Err: err}
	}
	if err := f.Truncate(metadataOffset + int64(len(buf))); err != nil {
		return NewIOError("truncate", f.Name(), err)
	}
	if err := f.Sync(); err != nil {
		return NewIOError("sync", f.Name(), err)
	}
	return nil
}
