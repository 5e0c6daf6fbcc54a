// Package seal encrypts session tokens at rest with NaCl secretbox under a
// key derived from the configured session secret.
package seal

import (
	"crypto/rand"
	"crypto/sha256"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/hkdf"
	"golang.org/x/crypto/nacl/secretbox"
)

const (
	keySize   = 32
	nonceSize = 24
)

const keyInfo = "coldreach-web session tokens v1"

var ErrMalformed = errors.New("sealed value is malformed")

// Box seals and opens byte strings
type Box struct {
	key [keySize]byte
}

// New derives a Box key from secret
func New(secret string) (*Box, error) {
	if secret == "" {
		return nil, errors.New("session secret is empty")
	}

	b := &Box{}
	kdf := hkdf.New(sha256.New, []byte(secret), nil, []byte(keyInfo))
	if _, err := io.ReadFull(kdf, b.key[:]); err != nil {
		return nil, fmt.Errorf("failed to derive key: %w", err)
	}
	return b, nil
}

// Seal encrypts plaintext. The random nonce is prepended to the output.
func (b *Box) Seal(plaintext []byte) ([]byte, error) {
	var nonce [nonceSize]byte
	if _, err := rand.Read(nonce[:]); err != nil {
		return nil, fmt.Errorf("failed to generate nonce: %w", err)
	}
	return secretbox.Seal(nonce[:], plaintext, &nonce, &b.key), nil
}

// Open decrypts a value produced by Seal
func (b *Box) Open(sealed []byte) ([]byte, error) {
	if len(sealed) < nonceSize+secretbox.Overhead {
		return nil, ErrMalformed
	}

	var nonce [nonceSize]byte
	copy(nonce[:], sealed[:nonceSize])

	out, ok := secretbox.Open(nil, sealed[nonceSize:], &nonce, &b.key)
	if !ok {
		return nil, ErrMalformed
	}
	return out, nil
}

// SealString is Seal for strings
func (b *Box) SealString(s string) ([]byte, error) {
	return b.Seal([]byte(s))
}

// OpenString is Open for strings
func (b *Box) OpenString(sealed []byte) (string, error) {
	out, err := b.Open(sealed)
	if err != nil {
		return "", err
	}
	return string(out), nil
}
