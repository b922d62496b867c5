// Package secretbox provides opaque encrypt/decrypt of task passwords.
// Callers never see key material; they only exchange plaintext and
// ciphertext strings. Uses AES-256-GCM, the same construction the rest
// of the pack reaches for when a dependency-free AEAD is needed.
package secretbox

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

var (
	// ErrInvalidCiphertext is returned when decryption fails or the
	// input does not carry a recognizable version tag.
	ErrInvalidCiphertext = errors.New("secretbox: invalid ciphertext")
	// ErrEmptyKey is returned when the box is constructed without key material.
	ErrEmptyKey = errors.New("secretbox: empty key")
)

// versionTag prefixes every ciphertext this box produces, so
// LooksEncrypted can tell a ciphertext apart from a plaintext password
// that happens to look like base64.
const versionTag = "v1:"

// Box encrypts and decrypts task passwords. Key provenance (a fixed
// passphrase, a machine-derived secret, a KMS-wrapped key) is the
// caller's concern; Box only ever sees the derived key bytes.
type Box struct {
	key [32]byte
}

// New derives a Box's key from arbitrary key material via SHA-256, the
// way a raw passphrase is turned into an AES-256 key.
func New(keyMaterial []byte) (*Box, error) {
	if len(keyMaterial) == 0 {
		return nil, ErrEmptyKey
	}
	return &Box{key: sha256.Sum256(keyMaterial)}, nil
}

// Encrypt returns ciphertext for plaintext, version-tagged so a later
// LooksEncrypted call recognizes it. The nonce is random per call, so
// repeated calls on the same plaintext produce different ciphertexts.
func (b *Box) Encrypt(plaintext string) (string, error) {
	if plaintext == "" {
		return "", nil
	}

	block, err := aes.NewCipher(b.key[:])
	if err != nil {
		return "", err
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return "", err
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", err
	}

	sealed := gcm.Seal(nonce, nonce, []byte(plaintext), nil)
	return versionTag + base64.StdEncoding.EncodeToString(sealed), nil
}

// Decrypt reverses Encrypt. An empty ciphertext decrypts to an empty
// plaintext (no password stored).
func (b *Box) Decrypt(ciphertext string) (string, error) {
	if ciphertext == "" {
		return "", nil
	}
	if !LooksEncrypted(ciphertext) {
		return "", ErrInvalidCiphertext
	}

	data, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(ciphertext, versionTag))
	if err != nil {
		return "", ErrInvalidCiphertext
	}

	block, err := aes.NewCipher(b.key[:])
	if err != nil {
		return "", err
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return "", err
	}

	nonceSize := gcm.NonceSize()
	if len(data) < nonceSize {
		return "", ErrInvalidCiphertext
	}
	nonce, sealed := data[:nonceSize], data[nonceSize:]

	plaintext, err := gcm.Open(nil, nonce, sealed, nil)
	if err != nil {
		return "", ErrInvalidCiphertext
	}
	return string(plaintext), nil
}

// LooksEncrypted reports whether s carries this box's ciphertext
// version tag, per I5 ("password_ct is either empty or an opaque
// ciphertext string recognizable by the Secret Box").
func LooksEncrypted(s string) bool {
	return strings.HasPrefix(s, versionTag)
}

// keyMaterialSize is the amount of random key material generated for a
// fresh key file. The box derives its actual AES-256 key from this via
// SHA-256 in New, so this only needs to carry enough entropy, not match
// the cipher's key size exactly.
const keyMaterialSize = 32

// LoadOrCreateKey reads key material from path, generating and
// persisting a fresh random key with restrictive permissions if the
// file does not yet exist. This keeps the engine's encryption key
// local to the install instead of requiring an operator to supply one,
// the same file-backed secret idiom as a desktop app's per-install
// credential store.
func LoadOrCreateKey(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err == nil {
		return data, nil
	}
	if !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to read key file %s: %w", path, err)
	}

	key := make([]byte, keyMaterialSize)
	if _, err := io.ReadFull(rand.Reader, key); err != nil {
		return nil, fmt.Errorf("failed to generate key material: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, fmt.Errorf("failed to create key directory: %w", err)
	}
	if err := os.WriteFile(path, key, 0600); err != nil {
		return nil, fmt.Errorf("failed to write key file %s: %w", path, err)
	}
	return key, nil
}
