// Package secretbox seals short values (refresh tokens in cookies) with
// AES-256-GCM. Output is URL-safe base64 of nonce||ciphertext.
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
	"strings"
)

const nonceSizeGCM = 12

var (
	ErrEmptyKey  = errors.New("secretbox: empty key")
	ErrMalformed = errors.New("secretbox: malformed box")
	ErrOpen      = errors.New("secretbox: authentication failed")
)

// Box seals and opens values under one key.
type Box struct {
	aead cipher.AEAD
}

// New derives an AES-256 key from secret. Any non-empty string is accepted;
// ENCRYPTION_KEY values are not required to be exactly 32 bytes.
func New(secret string) (*Box, error) {
	secret = strings.TrimSpace(secret)
	if secret == "" {
		return nil, ErrEmptyKey
	}
	key := sha256.Sum256([]byte(secret))

	block, err := aes.NewCipher(key[:])
	if err != nil {
		return nil, fmt.Errorf("aes.NewCipher: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("cipher.NewGCM: %w", err)
	}
	return &Box{aead: aead}, nil
}

// Seal encrypts plain.
func (b *Box) Seal(plain string) (string, error) {
	nonce := make([]byte, nonceSizeGCM, nonceSizeGCM+len(plain)+b.aead.Overhead())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("nonce random: %w", err)
	}
	out := b.aead.Seal(nonce, nonce, []byte(plain), nil)
	return base64.RawURLEncoding.EncodeToString(out), nil
}

// Open reverses Seal. Tampered or foreign boxes yield ErrOpen.
func (b *Box) Open(sealed string) (string, error) {
	raw, err := base64.RawURLEncoding.DecodeString(sealed)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if len(raw) < nonceSizeGCM+b.aead.Overhead() {
		return "", ErrMalformed
	}
	pt, err := b.aead.Open(nil, raw[:nonceSizeGCM], raw[nonceSizeGCM:], nil)
	if err != nil {
		return "", ErrOpen
	}
	return string(pt), nil
}
