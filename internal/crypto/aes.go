// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

// Package crypto encrypts Credential3rd secrets at rest. Upstream-account
// passwords are stored AES-GCM sealed under a key derived from the
// process's session secret, so a leaked database dump doesn't leak Mikan
// accounts.
package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"io"
)

// ErrMalformedCiphertext is returned when a stored value is shorter than
// the GCM nonce it must begin with.
var ErrMalformedCiphertext = errors.New("crypto: malformed ciphertext")

// GenerateSecureToken returns length cryptographically random bytes as a
// hex string, e.g. for seeding a session secret on first boot.
func GenerateSecureToken(length int) (string, error) {
	buf := make([]byte, length)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}

// CredentialCipher seals and opens credential secrets with AES-256-GCM.
type CredentialCipher struct {
	key []byte
}

// NewCredentialCipher derives the sealing key from an arbitrary-length
// secret via SHA-256, so operators can configure any non-empty string.
func NewCredentialCipher(secret string) (*CredentialCipher, error) {
	if secret == "" {
		return nil, errors.New("crypto: empty credential secret")
	}
	key := sha256.Sum256([]byte(secret))
	return &CredentialCipher{key: key[:]}, nil
}

// Seal encrypts plaintext and returns base64(nonce || ciphertext).
func (c *CredentialCipher) Seal(plaintext string) (string, error) {
	gcm, err := c.gcm()
	if err != nil {
		return "", err
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", err
	}

	sealed := gcm.Seal(nonce, nonce, []byte(plaintext), nil)
	return base64.StdEncoding.EncodeToString(sealed), nil
}

// Open decrypts a value produced by Seal.
func (c *CredentialCipher) Open(stored string) (string, error) {
	data, err := base64.StdEncoding.DecodeString(stored)
	if err != nil {
		return "", err
	}

	gcm, err := c.gcm()
	if err != nil {
		return "", err
	}
	if len(data) < gcm.NonceSize() {
		return "", ErrMalformedCiphertext
	}

	nonce, sealed := data[:gcm.NonceSize()], data[gcm.NonceSize():]
	plaintext, err := gcm.Open(nil, nonce, sealed, nil)
	if err != nil {
		return "", err
	}
	return string(plaintext), nil
}

func (c *CredentialCipher) gcm() (cipher.AEAD, error) {
	block, err := aes.NewCipher(c.key)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}
