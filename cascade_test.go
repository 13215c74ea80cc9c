package aegisvault

import (
	"bytes"
	"testing"
)

func TestCascadeNames(t *testing.T) {
	tests := map[CipherID]string{
		CascadeAESTwofish:          "AES(Twofish)",
		CascadeTwofishAES:          "Twofish(AES)",
		CascadeChaCha20AES:         "ChaCha20(AES)",
		CascadeTwofishChaCha20:     "Twofish(ChaCha20)",
		CascadeAESTwofishChaCha20:  "AES(Twofish(ChaCha20))",
		CascadeXChaCha20TwofishAES: "XChaCha20(Twofish(AES))",
	}
	for id, want := range tests {
		if got := id.String(); got != want {
			t.Errorf("%d.String() = %q, want %q", id, got, want)
		}
		if !id.IsCascade() {
			t.Errorf("%s.IsCascade() = false", want)
		}
	}
	if CipherAES.IsCascade() {
		t.Error("AES reported as cascade")
	}
}

func TestCascadeParameters(t *testing.T) {
	c, ok := newCascadeCipher(CascadeAESTwofishChaCha20)
	if !ok {
		t.Fatal("cascade not found")
	}
	if c.KeySize() != 96 {
		t.Errorf("KeySize = %d, want 96", c.KeySize())
	}
	if c.Overhead() != 3*28 {
		t.Errorf("Overhead = %d, want %d", c.Overhead(), 3*28)
	}
	if !c.Experimental() {
		t.Error("cascades must be experimental")
	}
	layers := c.Layers()
	want := []CipherID{CipherAES, CipherTwofish, CipherChaCha20}
	for i := range want {
		if layers[i] != want[i] {
			t.Errorf("layer %d = %v, want %v", i, layers[i], want[i])
		}
	}

	x, _ := newCascadeCipher(CascadeXChaCha20TwofishAES)
	if x.NonceSize() != 24 {
		t.Errorf("outer nonce size = %d, want 24", x.NonceSize())
	}
}

// Peeling a two-layer cascade by hand must match its layer order and key
// slicing.
func TestCascadeLayerOrder(t *testing.T) {
	c, _ := newCascadeCipher(CascadeAESTwofish)
	key, _ := randomBytes(c.KeySize())
	plaintext := []byte("layered")
	aad := []byte("id")

	ct, err := c.Encrypt(plaintext, key, aad)
	if err != nil {
		t.Fatal(err)
	}

	aes, _ := newAEADCipher(CipherAES)
	twofish, _ := newAEADCipher(CipherTwofish)

	inner, err := aes.Decrypt(ct, key[:32], aad)
	if err != nil {
		t.Fatalf("outer AES layer: %v", err)
	}
	pt, err := twofish.Decrypt(inner, key[32:64], aad)
	if err != nil {
		t.Fatalf("inner Twofish layer: %v", err)
	}
	if !bytes.Equal(pt, plaintext) {
		t.Errorf("got %q, want %q", pt, plaintext)
	}

	if _, err := twofish.Decrypt(ct, key[32:64], aad); err == nil {
		t.Error("inner layer opened the outer ciphertext")
	}
}

func TestCascadeSwappedKeys(t *testing.T) {
	c, _ := newCascadeCipher(CascadeTwofishAES)
	key, _ := randomBytes(c.KeySize())
	ct, err := c.Encrypt([]byte("x"), key, nil)
	if err != nil {
		t.Fatal(err)
	}

	swapped := append(bytes.Clone(key[32:]), key[:32]...)
	if _, err := c.Decrypt(ct, swapped, nil); !IsAuthenticationError(err) {
		t.Errorf("got %v, want AuthenticationError", err)
	}
	if _, err := c.Decrypt(ct, key[:32], nil); !IsValidationError(err) {
		t.Errorf("single-layer key: got %v, want ValidationError", err)
	}
}

func TestCascadeLengthGrowsWithLayers(t *testing.T) {
	reg := NewRegistry(AllExperimental())
	plaintext := []byte("layered")

	prev := 0
	for _, id := range []CipherID{CipherAES, CascadeAESTwofish, CascadeAESTwofishChaCha20} {
		c, err := reg.Cipher(id)
		if err != nil {
			t.Fatal(err)
		}
		key, _ := randomBytes(c.KeySize())
		ct, err := c.Encrypt(plaintext, key, nil)
		if err != nil {
			t.Fatal(err)
		}
		if len(ct) <= prev {
			t.Errorf("%s: ciphertext %d bytes, not longer than %d", c.Name(), len(ct), prev)
		}
		prev = len(ct)
	}
}
