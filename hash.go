package aegisvault

import (
	"crypto/sha256"
	"crypto/sha512"
	"hash"

	"golang.org/x/crypto/blake2b"
	"golang.org/x/crypto/blake2s"
	"golang.org/x/crypto/sha3"
)

// Hash is a fixed-output hash provider
type Hash interface {
	ID() HashID
	Name() string
	Size() int
	Experimental() bool
	Sum(data []byte) []byte
	// SaltedSum hashes salt || data
	SaltedSum(data, salt []byte) []byte
}

type hashProvider struct {
	id           HashID
	size         int
	experimental bool
	newHash      func() hash.Hash
}

var hashTable = map[HashID]*hashProvider{
	HashSHA512:     {id: HashSHA512, size: sha512.Size, newHash: sha512.New},
	HashSHA256:     {id: HashSHA256, size: sha256.Size, newHash: sha256.New},
	HashBLAKE2b512: {id: HashBLAKE2b512, size: blake2b.Size, experimental: true, newHash: newBLAKE2b512},
	HashBLAKE2s256: {id: HashBLAKE2s256, size: blake2s.Size, experimental: true, newHash: newBLAKE2s256},
	HashSHA3256:    {id: HashSHA3256, size: 32, experimental: true, newHash: sha3.New256},
}

// unkeyed constructors never fail
func newBLAKE2b512() hash.Hash {
	h, _ := blake2b.New512(nil)
	return h
}

func newBLAKE2s256() hash.Hash {
	h, _ := blake2s.New256(nil)
	return h
}

func (h *hashProvider) ID() HashID         { return h.id }
func (h *hashProvider) Name() string       { return h.id.String() }
func (h *hashProvider) Size() int          { return h.size }
func (h *hashProvider) Experimental() bool { return h.experimental }

func (h *hashProvider) Sum(data []byte) []byte {
	d := h.newHash()
	d.Write(data)
	return d.Sum(nil)
}

func (h *hashProvider) SaltedSum(data, salt []byte) []byte {
	d := h.newHash()
	d.Write(salt)
	d.Write(data)
	return d.Sum(nil)
}
