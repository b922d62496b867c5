package secretbox

import (
	"os"
	"path/filepath"
	"testing"
)

func TestEncryptDecryptRoundTrip(t *testing.T) {
	box, err := New([]byte("a passphrase no one will guess"))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	plaintexts := []string{"hunter2", "p@ss w0rd!", "", "日本語パスワード"}

	for _, want := range plaintexts {
		ct, err := box.Encrypt(want)
		if err != nil {
			t.Fatalf("Encrypt(%q) error = %v", want, err)
		}
		if want == "" && ct != "" {
			t.Errorf("Encrypt(\"\") = %q, want empty", ct)
		}

		got, err := box.Decrypt(ct)
		if err != nil {
			t.Fatalf("Decrypt(%q) error = %v", ct, err)
		}
		if got != want {
			t.Errorf("round trip = %q, want %q", got, want)
		}
	}
}

func TestEncryptNonDeterministic(t *testing.T) {
	box, _ := New([]byte("key"))

	a, _ := box.Encrypt("same plaintext")
	b, _ := box.Encrypt("same plaintext")

	if a == b {
		t.Error("two encryptions of the same plaintext should differ (random nonce)")
	}
}

func TestLooksEncrypted(t *testing.T) {
	box, _ := New([]byte("key"))
	ct, _ := box.Encrypt("hunter2")

	if !LooksEncrypted(ct) {
		t.Errorf("LooksEncrypted(%q) = false, want true", ct)
	}
	if LooksEncrypted("hunter2") {
		t.Error("LooksEncrypted(\"hunter2\") = true, want false")
	}
	if LooksEncrypted("") {
		t.Error("LooksEncrypted(\"\") = true, want false")
	}
}

func TestDecryptRejectsPlaintext(t *testing.T) {
	box, _ := New([]byte("key"))

	if _, err := box.Decrypt("not-a-ciphertext"); err != ErrInvalidCiphertext {
		t.Errorf("Decrypt() error = %v, want ErrInvalidCiphertext", err)
	}
}

func TestNewRejectsEmptyKey(t *testing.T) {
	if _, err := New(nil); err != ErrEmptyKey {
		t.Errorf("New(nil) error = %v, want ErrEmptyKey", err)
	}
}

func TestLoadOrCreateKeyPersists(t *testing.T) {
	dir, err := os.MkdirTemp("", "secretbox-test-*")
	if err != nil {
		t.Fatalf("MkdirTemp() error = %v", err)
	}
	t.Cleanup(func() { os.RemoveAll(dir) })

	path := filepath.Join(dir, "nested", "secret.key")

	first, err := LoadOrCreateKey(path)
	if err != nil {
		t.Fatalf("LoadOrCreateKey() error = %v", err)
	}
	if len(first) != keyMaterialSize {
		t.Errorf("len(key) = %d, want %d", len(first), keyMaterialSize)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("Stat() error = %v", err)
	}
	if info.Mode().Perm() != 0600 {
		t.Errorf("key file mode = %v, want 0600", info.Mode().Perm())
	}

	second, err := LoadOrCreateKey(path)
	if err != nil {
		t.Fatalf("LoadOrCreateKey() second call error = %v", err)
	}
	if string(first) != string(second) {
		t.Error("LoadOrCreateKey() should return the same key material on a second call")
	}
}
