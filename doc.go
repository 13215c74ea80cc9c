// Package aegisvault stores a hierarchical tree of files inside a single
// password-protected, authenticated-encrypted container file.
//
// # Overview
//
// The package is layered bottom-up:
//
//   - Crypto providers: AEAD ciphers, cascades of ciphers, password key
//     derivation functions and hashes, looked up through a Registry that
//     gates experimental algorithms.
//   - Container: the on-disk file. A 64-byte header, the vault key wrapped
//     under a password-derived master key, and one encrypted metadata block
//     holding a flat map of blob id to encrypted blob.
//   - VFS: a directory tree persisted as a single index blob, with file
//     content stored as one blob per file.
//   - Session: owns one open vault, serializes every call and closes the
//     vault after a period of inactivity.
//
// # Ciphers
//
// Standard:
//   - AES-256-GCM (default)
//   - ChaCha20-Poly1305
//
// Experimental, enabled through Options.Experimental:
//   - Twofish-256-GCM, XChaCha20-Poly1305
//   - cascades such as AES(Twofish(ChaCha20)), named outer layer first
//
// Every ciphertext is framed as nonce || ciphertext || tag with a fresh
// random nonce. The wrapped vault key always uses AES-GCM so the key block
// stays 60 bytes.
//
// # Key Derivation
//
// Argon2id (64 MiB, 3 passes) is the default. scrypt and PBKDF2-SHA512 are
// available as experimental alternatives. Cost parameters are fixed.
//
// # Basic Usage
//
//	s := aegisvault.NewSession(aegisvault.DefaultOptions())
//	if err := s.CreateVault("notes.avault", []byte("correct horse")); err != nil {
//	    return err
//	}
//	defer s.Close()
//
//	s.CreateDirectory("/docs")
//	s.CreateFile("/docs/todo.txt", []byte("buy milk"))
//
//	data, err := s.ReadFile("/docs/todo.txt")
//
// Auto-lock:
//
//	s.SetAutoLock(5*time.Minute, func() { fmt.Println("vault locked") })
//
// # Security Considerations
//
// Protected against:
//   - reading the container without the password
//   - tampering with any stored byte (every blob and the map are
//     authenticated; a wrong password and tampering are reported alike)
//
// Not protected against:
//   - a compromised host while the vault is open
//   - power loss during a metadata rewrite, which happens in place and can
//     leave the container unreadable; keep backups (see Backup)
//   - leakage of the total container size
//
// Key material is held in memguard locked buffers and destroyed on Close.
// Password slices passed to the package are wiped before the call returns.
//
// # Limits
//
// The whole metadata map is decrypted into memory on open and rewritten on
// every mutation, so the vault suits many small files rather than large
// ones. Options.MaxMetadataSize (100 MiB by default) caps the block; writes
// that would exceed it are rejected.
package aegisvault
