// Package seal provides passphrase-based authenticated encryption for
// key material at rest.
//
// Keys are derived with Argon2id and sealed with ChaCha20-Poly1305. The
// sealed blob is self-describing: salt || nonce || ciphertext.
package seal

import (
	"crypto/rand"
	"errors"

	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/chacha20poly1305"
)

// Sealing errors.
var (
	ErrPassphraseTooWeak = errors.New("seal: passphrase too weak (minimum 8 characters)")
	ErrMalformedBlob     = errors.New("seal: malformed sealed blob")
	ErrOpenFailed        = errors.New("seal: open failed - wrong passphrase or corrupted data")
)

const (
	// MinPassphraseLength is the minimum passphrase length.
	MinPassphraseLength = 8

	// SaltLength is the salt length used in key derivation.
	SaltLength = 16

	// Argon2id parameters for key derivation from passphrase.
	argon2Time    = 3
	argon2Memory  = 64 * 1024
	argon2Threads = 4
	argon2KeyLen  = chacha20poly1305.KeySize
)

// DeriveKey derives a 32-byte key from the passphrase and salt.
func DeriveKey(passphrase, salt []byte) []byte {
	return argon2.IDKey(passphrase, salt, argon2Time, argon2Memory, argon2Threads, argon2KeyLen)
}

// Seal encrypts plaintext with a key derived from passphrase.
// additionalData is authenticated but not encrypted.
func Seal(passphrase, plaintext, additionalData []byte) ([]byte, error) {
	if len(passphrase) < MinPassphraseLength {
		return nil, ErrPassphraseTooWeak
	}

	salt := make([]byte, SaltLength)
	if _, err := rand.Read(salt); err != nil {
		return nil, err
	}

	aead, err := chacha20poly1305.New(DeriveKey(passphrase, salt))
	if err != nil {
		return nil, err
	}

	nonce := make([]byte, aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return nil, err
	}

	blob := make([]byte, 0, SaltLength+len(nonce)+len(plaintext)+aead.Overhead())
	blob = append(blob, salt...)
	blob = append(blob, nonce...)
	return aead.Seal(blob, nonce, plaintext, additionalData), nil
}

// Open decrypts a blob produced by Seal with the same passphrase and
// additional data.
func Open(passphrase, blob, additionalData []byte) ([]byte, error) {
	if len(passphrase) < MinPassphraseLength {
		return nil, ErrPassphraseTooWeak
	}
	if len(blob) < SaltLength+chacha20poly1305.NonceSize {
		return nil, ErrMalformedBlob
	}

	salt := blob[:SaltLength]
	nonce := blob[SaltLength : SaltLength+chacha20poly1305.NonceSize]
	ciphertext := blob[SaltLength+chacha20poly1305.NonceSize:]

	aead, err := chacha20poly1305.New(DeriveKey(passphrase, salt))
	if err != nil {
		return nil, err
	}

	plaintext, err := aead.Open(nil, nonce, ciphertext, additionalData)
	if err != nil {
		return nil, ErrOpenFailed
	}
	return plaintext, nil
}

// ZeroBytes overwrites b with zeros. Best-effort cleanup for key material.
func ZeroBytes(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
