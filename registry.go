package aegisvault

import (
	"fmt"
	"sort"
	"strings"
)

// Registry resolves algorithm identifiers to providers, applying the
// experimental gates it was built with.
type Registry struct {
	exp Experimental
}

// NewRegistry creates a registry gated by exp
func NewRegistry(exp Experimental) *Registry {
	return &Registry{exp: exp}
}

// Experimental returns the gates the registry applies
func (r *Registry) Experimental() Experimental {
	return r.exp
}

// Cipher returns the provider for id
func (r *Registry) Cipher(id CipherID) (Cipher, error) {
	if c, ok := newAEADCipher(id); ok {
		if c.Experimental() && !r.exp.ciphers() {
			return nil, disabledCipher(id.String())
		}
		return c, nil
	}
	if c, ok := newCascadeCipher(id); ok {
		if !r.exp.cascades() {
			return nil, disabledCipher(id.String())
		}
		return c, nil
	}
	return nil, unknownCipher(fmt.Sprintf("#%d", uint8(id)))
}

// CipherByName resolves an identifier such as "AES" or "AES(Twofish)"
func (r *Registry) CipherByName(name string) (Cipher, error) {
	id, ok := ParseCipherID(name)
	if !ok {
		return nil, unknownCipher(name)
	}
	return r.Cipher(id)
}

// Ciphers lists every cipher currently available, in identifier order
func (r *Registry) Ciphers() []Cipher {
	var out []Cipher
	for _, id := range allCipherIDs() {
		if c, err := r.Cipher(id); err == nil {
			out = append(out, c)
		}
	}
	return out
}

// KDF returns the provider for id
func (r *Registry) KDF(id KDFID) (KDF, error) {
	k, ok := kdfTable[id]
	if !ok {
		return nil, &ValidationError{Field: "kdf", Value: id, Message: "unknown or disabled key derivation function: " + id.String()}
	}
	if k.Experimental() && !r.exp.kdfs() {
		return nil, &ValidationError{Field: "kdf", Value: id, Message: "unknown or disabled key derivation function: " + id.String() + " (experimental KDFs are disabled)"}
	}
	return k, nil
}

// KDFs lists every KDF currently available
func (r *Registry) KDFs() []KDF {
	var out []KDF
	for id := KDFArgon2id; id <= KDFPBKDF2; id++ {
		if k, err := r.KDF(id); err == nil {
			out = append(out, k)
		}
	}
	return out
}

// Hash returns the provider for id
func (r *Registry) Hash(id HashID) (Hash, error) {
	h, ok := hashTable[id]
	if !ok {
		return nil, &ValidationError{Field: "hash", Value: id, Message: "unknown or disabled hash algorithm: " + id.String()}
	}
	if h.Experimental() && !r.exp.hashes() {
		return nil, &ValidationError{Field: "hash", Value: id, Message: "unknown or disabled hash algorithm: " + id.String() + " (experimental hashes are disabled)"}
	}
	return h, nil
}

// Hashes lists every hash currently available
func (r *Registry) Hashes() []Hash {
	var out []Hash
	for id := HashSHA512; id <= HashSHA3256; id++ {
		if h, err := r.Hash(id); err == nil {
			out = append(out, h)
		}
	}
	return out
}

// ParseCipherID maps an identifier string, ignoring case, back to its CipherID
func ParseCipherID(name string) (CipherID, bool) {
	for _, id := range allCipherIDs() {
		if strings.EqualFold(id.String(), name) {
			return id, true
		}
	}
	return 0, false
}

// ParseKDFID maps an identifier string, ignoring case, back to its KDFID
func ParseKDFID(name string) (KDFID, bool) {
	for id := range kdfTable {
		if strings.EqualFold(id.String(), name) {
			return id, true
		}
	}
	return 0, false
}

// ParseHashID maps an identifier string, ignoring case, back to its HashID
func ParseHashID(name string) (HashID, bool) {
	for id := range hashTable {
		if strings.EqualFold(id.String(), name) {
			return id, true
		}
	}
	return 0, false
}

func allCipherIDs() []CipherID {
	ids := make([]CipherID, 0, len(cipherTable)+len(cascadeTable))
	for id := range cipherTable {
		ids = append(ids, id)
	}
	for id := range cascadeTable {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

func knownCipher(id CipherID) bool {
	_, single := cipherTable[id]
	_, cascade := cascadeTable[id]
	return single || cascade
}

func unknownCipher(name string) error {
	return &ValidationError{
		Field:   "cipher",
		Value:   name,
		Message: "unknown or disabled cipher algorithm: " + name,
	}
}

func disabledCipher(name string) error {
	return &ValidationError{
		Field:   "cipher",
		Value:   name,
		Message: "unknown or disabled cipher algorithm: " + name + " (experimental ciphers are disabled)",
	}
}
