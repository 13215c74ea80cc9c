package aegisvault

import (
	"crypto/sha512"
	"fmt"

	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/pbkdf2"
	"golang.org/x/crypto/scrypt"
)

// Fixed cost parameters. Providers expose no way to weaken them.
const (
	argon2Memory      = 64 * 1024 // KiB
	argon2Iterations  = 3
	argon2Parallelism = 1

	scryptN = 32768
	scryptR = 8
	scryptP = 1

	pbkdf2Iterations = 600000

	// MinSaltSize is the shortest salt any KDF accepts
	MinSaltSize = 16
	// SaltSize is the salt length written to container headers
	SaltSize = 32
)

// KDF derives a key from a password and salt. Derivation is deterministic.
// The password is not modified; callers own and wipe it.
type KDF interface {
	ID() KDFID
	Name() string
	Experimental() bool
	DeriveKey(password, salt []byte, keyLen int) (*Secret, error)
}

var kdfTable = map[KDFID]KDF{
	KDFArgon2id: argon2idKDF{},
	KDFScrypt:   scryptKDF{},
	KDFPBKDF2:   pbkdf2KDF{},
}

// validateKDFInput checks the arguments shared by every KDF
func validateKDFInput(password, salt []byte, keyLen int) error {
	if len(password) == 0 {
		return NewValidationError("password", nil, "password cannot be empty")
	}
	if err := ValidateBuffer(salt, "salt", MinSaltSize); err != nil {
		return err
	}
	return ValidateSize(keyLen, "key_length", 16, 64)
}

type argon2idKDF struct{}

func (argon2idKDF) ID() KDFID          { return KDFArgon2id }
func (argon2idKDF) Name() string       { return KDFArgon2id.String() }
func (argon2idKDF) Experimental() bool { return false }

// DeriveKey runs Argon2id with 64 MiB memory, 3 passes and 1 lane
func (argon2idKDF) DeriveKey(password, salt []byte, keyLen int) (*Secret, error) {
	if err := validateKDFInput(password, salt, keyLen); err != nil {
		return nil, err
	}
	key := argon2.IDKey(password, salt, argon2Iterations, argon2Memory, argon2Parallelism, uint32(keyLen))
	return NewSecret(key), nil
}

type scryptKDF struct{}

func (scryptKDF) ID() KDFID          { return KDFScrypt }
func (scryptKDF) Name() string       { return KDFScrypt.String() }
func (scryptKDF) Experimental() bool { return true }

func (scryptKDF) DeriveKey(password, salt []byte, keyLen int) (*Secret, error) {
	if err := validateKDFInput(password, salt, keyLen); err != nil {
		return nil, err
	}
	key, err := scrypt.Key(password, salt, scryptN, scryptR, scryptP, keyLen)
	if err != nil {
		return nil, fmt.Errorf("scrypt: %w", err)
	}
	return NewSecret(key), nil
}

type pbkdf2KDF struct{}

func (pbkdf2KDF) ID() KDFID          { return KDFPBKDF2 }
func (pbkdf2KDF) Name() string       { return KDFPBKDF2.String() }
func (pbkdf2KDF) Experimental() bool { return true }

func (pbkdf2KDF) DeriveKey(password, salt []byte, keyLen int) (*Secret, error) {
	if err := validateKDFInput(password, salt, keyLen); err != nil {
		return nil, err
	}
	key := pbkdf2.Key(password, salt, pbkdf2Iterations, keyLen, sha512.New)
	return NewSecret(key), nil
}
