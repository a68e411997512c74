// Package encription seals the persisted queue at rest.
package encription

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/pbkdf2"
)

const (
	keyLen     = 32
	iterations = 100_000
)

// salt is fixed: the key only has to be stable for one installation.
var salt = []byte("netalerte-offline-queue")

// ErrCiphertextTooShort is returned when the sealed value cannot hold a nonce.
var ErrCiphertextTooShort = errors.New("ciphertext too short")

// Enc encrypts values with AES-256-GCM.
type Enc struct {
	aead cipher.AEAD
}

// NewEnc derives the key from passphrase.
func NewEnc(passphrase string) (*Enc, error) {
	if passphrase == "" {
		return nil, errors.New("empty passphrase")
	}
	key := pbkdf2.Key([]byte(passphrase), salt, iterations, keyLen, sha256.New)

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("create cipher: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("create gcm: %w", err)
	}
	return &Enc{aead: aead}, nil
}

// Seal returns nonce || ciphertext.
func (e *Enc) Seal(plain []byte) ([]byte, error) {
	nonce := make([]byte, e.aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, fmt.Errorf("create nonce: %w", err)
	}
	return e.aead.Seal(nonce, nonce, plain, nil), nil
}

// Open reverses Seal.
func (e *Enc) Open(sealed []byte) ([]byte, error) {
	n := e.aead.NonceSize()
	if len(sealed) < n {
		return nil, ErrCiphertextTooShort
	}
	plain, err := e.aead.Open(nil, sealed[:n], sealed[n:], nil)
	if err != nil {
		return nil, fmt.Errorf("decrypt: %w", err)
	}
	return plain, nil
}
