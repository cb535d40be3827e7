package postgres

import (
	"bytes"
	"errors"
	"testing"
)

type testTokens struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}

func newTestEncryptor(t *testing.T) *SecretEncryptor {
	t.Helper()
	encryptor, err := NewSecretEncryptorFromAppKey("test-app-key")
	if err != nil {
		t.Fatalf("NewSecretEncryptorFromAppKey: %v", err)
	}
	return encryptor
}

func TestDeriveKey(t *testing.T) {
	k1, err := DeriveKey("app-key")
	if err != nil {
		t.Fatalf("DeriveKey: %v", err)
	}
	if len(k1) != keySize {
		t.Fatalf("key size: got %d, want %d", len(k1), keySize)
	}

	k2, _ := DeriveKey("app-key")
	if !bytes.Equal(k1, k2) {
		t.Error("derivation must be deterministic")
	}
	k3, _ := DeriveKey("other-key")
	if bytes.Equal(k1, k3) {
		t.Error("different app keys must give different keys")
	}
	if bytes.Equal(k1, []byte("app-key")) {
		t.Error("key must not be the raw app key")
	}

	if _, err := DeriveKey(""); !errors.Is(err, ErrMissingAppKey) {
		t.Errorf("expected ErrMissingAppKey, got %v", err)
	}
}

func TestSecretEncryptor_RoundTrip(t *testing.T) {
	encryptor := newTestEncryptor(t)
	original := testTokens{AccessToken: "ya29.access", RefreshToken: "1//refresh"}

	blob, err := encryptor.Encrypt(original, "user-1/google-drive")
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}
	if blob[0] != secretVersion {
		t.Errorf("version byte: got %d, want %d", blob[0], secretVersion)
	}
	if bytes.Contains(blob, []byte("ya29.access")) {
		t.Error("blob contains plaintext")
	}

	var decrypted testTokens
	if err := encryptor.Decrypt(blob, "user-1/google-drive", &decrypted); err != nil {
		t.Fatalf("Decrypt: %v", err)
	}
	if decrypted != original {
		t.Errorf("got %+v, want %+v", decrypted, original)
	}
}

func TestSecretEncryptor_BoundToRow(t *testing.T) {
	encryptor := newTestEncryptor(t)
	blob, _ := encryptor.Encrypt(testTokens{AccessToken: "a"}, "user-1/google-drive")

	var out testTokens
	if err := encryptor.Decrypt(blob, "user-2/google-drive", &out); !errors.Is(err, ErrDecryptionFailed) {
		t.Errorf("expected ErrDecryptionFailed for another row, got %v", err)
	}
}

func TestSecretEncryptor_InvalidKeySize(t *testing.T) {
	for _, size := range []int{0, 16, 31, 33, 64} {
		if _, err := NewSecretEncryptor(make([]byte, size)); !errors.Is(err, ErrInvalidKeySize) {
			t.Errorf("size %d: expected ErrInvalidKeySize, got %v", size, err)
		}
	}
}

func TestSecretEncryptor_DecryptInvalidBlob(t *testing.T) {
	encryptor := newTestEncryptor(t)
	var out testTokens

	if err := encryptor.Decrypt([]byte{secretVersion, 1, 2}, "", &out); !errors.Is(err, ErrInvalidBlobSize) {
		t.Errorf("expected ErrInvalidBlobSize, got %v", err)
	}

	blob, _ := encryptor.Encrypt(testTokens{}, "")
	blob[0] = 0x7f
	if err := encryptor.Decrypt(blob, "", &out); !errors.Is(err, ErrUnsupportedVersion) {
		t.Errorf("expected ErrUnsupportedVersion, got %v", err)
	}

	blob, _ = encryptor.Encrypt(testTokens{}, "")
	blob[len(blob)-1] ^= 0xff
	if err := encryptor.Decrypt(blob, "", &out); !errors.Is(err, ErrDecryptionFailed) {
		t.Errorf("expected ErrDecryptionFailed for tampered blob, got %v", err)
	}
}

func TestSecretEncryptor_WrongKey(t *testing.T) {
	blob, _ := newTestEncryptor(t).Encrypt(testTokens{AccessToken: "a"}, "row")
	other, _ := NewSecretEncryptorFromAppKey("another-app-key")

	var out testTokens
	if err := other.Decrypt(blob, "row", &out); !errors.Is(err, ErrDecryptionFailed) {
		t.Errorf("expected ErrDecryptionFailed, got %v", err)
	}
}

func TestSecretEncryptor_UniqueNonce(t *testing.T) {
	encryptor := newTestEncryptor(t)
	nonces := make(map[string]bool)
	for i := 0; i < 100; i++ {
		blob, _ := encryptor.Encrypt("same value", "row")
		nonce := string(blob[1 : 1+nonceSize])
		if nonces[nonce] {
			t.Fatalf("duplicate nonce at index %d", i)
		}
		nonces[nonce] = true
	}
}
