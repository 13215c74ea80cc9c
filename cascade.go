package aegisvault

import (
	"strings"
)

// layerKeySize is the key slice each cascade layer consumes
const layerKeySize = 32

// cascadeTable lists each cascade's layers from outermost to innermost
var cascadeTable = map[CipherID][]CipherID{
	CascadeAESTwofish:          {CipherAES, CipherTwofish},
	CascadeTwofishAES:          {CipherTwofish, CipherAES},
	CascadeChaCha20AES:         {CipherChaCha20, CipherAES},
	CascadeTwofishChaCha20:     {CipherTwofish, CipherChaCha20},
	CascadeAESTwofishChaCha20:  {CipherAES, CipherTwofish, CipherChaCha20},
	CascadeXChaCha20TwofishAES: {CipherXChaCha20, CipherTwofish, CipherAES},
}

func cascadeName(layers []CipherID) string {
	var b strings.Builder
	for _, id := range layers {
		b.WriteString(cipherTable[id].name)
		b.WriteByte('(')
	}
	s := strings.TrimSuffix(b.String(), "(")
	return s + strings.Repeat(")", len(layers)-1)
}

// CascadeCipher composes independent AEAD layers. Layer i is keyed by bytes
// [32i, 32i+32) of the cascade key. Encrypt seals the innermost layer first,
// so the outermost layer's nonce leads the ciphertext; Decrypt peels from the
// outside in.
type CascadeCipher struct {
	id     CipherID
	layers []*aeadCipher
}

func newCascadeCipher(id CipherID) (*CascadeCipher, bool) {
	ids, ok := cascadeTable[id]
	if !ok {
		return nil, false
	}
	c := &CascadeCipher{id: id, layers: make([]*aeadCipher, 0, len(ids))}
	for _, lid := range ids {
		layer, _ := newAEADCipher(lid)
		c.layers = append(c.layers, layer)
	}
	return c, true
}

func (c *CascadeCipher) ID() CipherID       { return c.id }
func (c *CascadeCipher) Name() string       { return c.id.String() }
func (c *CascadeCipher) KeySize() int       { return layerKeySize * len(c.layers) }
func (c *CascadeCipher) NonceSize() int     { return c.layers[0].NonceSize() }
func (c *CascadeCipher) Experimental() bool { return true }

// Layers returns the layer identifiers, outermost first
func (c *CascadeCipher) Layers() []CipherID {
	ids := make([]CipherID, len(c.layers))
	for i, l := range c.layers {
		ids[i] = l.ID()
	}
	return ids
}

// Overhead is the sum of every layer's nonce and tag
func (c *CascadeCipher) Overhead() int {
	n := 0
	for _, l := range c.layers {
		n += l.Overhead()
	}
	return n
}

// Encrypt applies layers from innermost to outermost
func (c *CascadeCipher) Encrypt(plaintext, key, aad []byte) ([]byte, error) {
	if err := ValidateKey(key, c.KeySize()); err != nil {
		return nil, err
	}

	data := plaintext
	for i := len(c.layers) - 1; i >= 0; i-- {
		out, err := c.layers[i].Encrypt(data, c.slice(key, i), aad)
		if i < len(c.layers)-1 {
			wipe(data)
		}
		if err != nil {
			return nil, err
		}
		data = out
	}
	return data, nil
}

// Decrypt removes layers from outermost to innermost
func (c *CascadeCipher) Decrypt(ciphertext, key, aad []byte) ([]byte, error) {
	if err := ValidateKey(key, c.KeySize()); err != nil {
		return nil, err
	}
	if err := ValidateBuffer(ciphertext, "ciphertext", c.Overhead()); err != nil {
		return nil, err
	}

	data := ciphertext
	for i := range c.layers {
		out, err := c.layers[i].Decrypt(data, c.slice(key, i), aad)
		if i > 0 {
			wipe(data)
		}
		if err != nil {
			return nil, err
		}
		data = out
	}
	return data, nil
}

func (c *CascadeCipher) slice(key []byte, i int) []byte {
	return key[i*layerKeySize : (i+1)*layerKeySize]
}
