package aegisvault

import (
	"bytes"
	"testing"
)

func TestKDFDeterministic(t *testing.T) {
	salt := bytes.Repeat([]byte{0x5a}, SaltSize)

	for _, k := range NewRegistry(AllExperimental()).KDFs() {
		t.Run(k.Name(), func(t *testing.T) {
			a, err := k.DeriveKey([]byte("password"), salt, 32)
			if err != nil {
				t.Fatal(err)
			}
			defer a.Destroy()
			b, err := k.DeriveKey([]byte("password"), salt, 32)
			if err != nil {
				t.Fatal(err)
			}
			defer b.Destroy()

			if a.Len() != 32 {
				t.Errorf("key length = %d, want 32", a.Len())
			}
			if !a.Equal(b) {
				t.Error("same inputs produced different keys")
			}

			other := bytes.Repeat([]byte{0xa5}, SaltSize)
			c, err := k.DeriveKey([]byte("password"), other, 32)
			if err != nil {
				t.Fatal(err)
			}
			defer c.Destroy()
			if a.Equal(c) {
				t.Error("different salts produced the same key")
			}
		})
	}
}

func TestKDFInputValidation(t *testing.T) {
	k := argon2idKDF{}
	salt := make([]byte, SaltSize)

	tests := []struct {
		name     string
		password []byte
		salt     []byte
		keyLen   int
	}{
		{"empty password", nil, salt, 32},
		{"nil salt", []byte("pw"), nil, 32},
		{"short salt", []byte("pw"), make([]byte, MinSaltSize-1), 32},
		{"key too short", []byte("pw"), salt, 8},
		{"key too long", []byte("pw"), salt, 65},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := k.DeriveKey(tt.password, tt.salt, tt.keyLen); !IsValidationError(err) {
				t.Errorf("got %v, want ValidationError", err)
			}
		})
	}
}

func TestKDFRegistry(t *testing.T) {
	def := NewRegistry(Experimental{})
	if kdfs := def.KDFs(); len(kdfs) != 1 || kdfs[0].ID() != KDFArgon2id {
		t.Errorf("default KDFs = %v, want only Argon2id", kdfs)
	}
	if _, err := def.KDF(KDFScrypt); !IsValidationError(err) {
		t.Errorf("scrypt without gate: got %v, want ValidationError", err)
	}
	if _, err := NewRegistry(AllExperimental()).KDF(KDFID(9)); !IsValidationError(err) {
		t.Errorf("unknown KDF: got %v, want ValidationError", err)
	}
	if len(NewRegistry(AllExperimental()).KDFs()) != 3 {
		t.Error("experimental registry should list three KDFs")
	}

	for _, name := range []string{"argon2id", "SCRYPT", "PBKDF2-SHA512"} {
		if _, ok := ParseKDFID(name); !ok {
			t.Errorf("ParseKDFID(%q) failed", name)
		}
	}
	if _, ok := ParseKDFID("bcrypt"); ok {
		t.Error("ParseKDFID accepted bcrypt")
	}
}
