// Package crypto encrypts the e-mail provider credentials kept in the database.
//
// The server secret is expanded with HKDF-SHA256 into a 32-byte XChaCha20-Poly1305 key. Every
// encryption draws a fresh 24-byte random nonce; the stored blob is
// base64url(version || nonce || ciphertext+tag).
package crypto

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/hkdf"
)

const blobVersion byte = 1

var hkdfInfo = []byte("leavemgmt/email-credentials/v1")

var (
	// ErrAuthenticationFailure is returned when a blob was tampered with or sealed under another secret.
	ErrAuthenticationFailure = errors.New("credential authentication failed")
	// ErrEmptySecret is returned when no server secret is configured.
	ErrEmptySecret = errors.New("credential secret is empty")
)

// Cipher seals and opens secret strings with a key derived from the server secret.
type Cipher struct {
	key  []byte
	rand io.Reader
}

// NewCipher derives the encryption key from secret.
func NewCipher(secret string) (*Cipher, error) {
	if secret == "" {
		return nil, ErrEmptySecret
	}
	key := make([]byte, chacha20poly1305.KeySize)
	if _, err := io.ReadFull(hkdf.New(sha256.New, []byte(secret), nil, hkdfInfo), key); err != nil {
		return nil, fmt.Errorf("derive credential key: %w", err)
	}
	return &Cipher{key: key, rand: rand.Reader}, nil
}

// Encrypt seals plaintext. The empty string is stored as the empty string.
func (c *Cipher) Encrypt(plaintext string) (string, error) {
	if plaintext == "" {
		return "", nil
	}
	aead, err := chacha20poly1305.NewX(c.key)
	if err != nil {
		return "", fmt.Errorf("init aead: %w", err)
	}

	blob := make([]byte, 1+aead.NonceSize(), 1+aead.NonceSize()+len(plaintext)+aead.Overhead())
	blob[0] = blobVersion
	if _, err := io.ReadFull(c.rand, blob[1:]); err != nil {
		return "", fmt.Errorf("read nonce: %w", err)
	}
	blob = aead.Seal(blob, blob[1:], []byte(plaintext), blob[:1])
	return base64.RawURLEncoding.EncodeToString(blob), nil
}

// Decrypt opens a blob produced by Encrypt. Any malformed, tampered or foreign blob yields
// ErrAuthenticationFailure.
func (c *Cipher) Decrypt(blob string) (string, error) {
	if blob == "" {
		return "", nil
	}
	raw, err := base64.RawURLEncoding.DecodeString(blob)
	if err != nil {
		return "", ErrAuthenticationFailure
	}
	aead, err := chacha20poly1305.NewX(c.key)
	if err != nil {
		return "", fmt.Errorf("init aead: %w", err)
	}
	if len(raw) < 1+aead.NonceSize()+aead.Overhead() || raw[0] != blobVersion {
		return "", ErrAuthenticationFailure
	}

	nonce := raw[1 : 1+aead.NonceSize()]
	plaintext, err := aead.Open(nil, nonce, raw[1+aead.NonceSize():], raw[:1])
	if err != nil {
		return "", ErrAuthenticationFailure
	}
	return string(plaintext), nil
}
