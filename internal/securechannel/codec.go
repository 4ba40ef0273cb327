// Package securechannel seals chat messages exchanged over a call's control
// channel with AES-GCM under a per-call session key.
//
// The wire form is an EncryptedPayload holding the 12-byte nonce (IV) and
// the ciphertext with its 16-byte tag appended, the layout WebCrypto's
// AES-GCM produces, so browser peers can decrypt it.
package securechannel

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"errors"
	"fmt"
	"io"

	"peercall/internal/domain"
	"peercall/pkg/constants"
	apperrors "peercall/pkg/errors"
)

// ErrNoSessionKey is returned when encrypting before a key was agreed
var ErrNoSessionKey = errors.New("no session key")

// GenerateKey returns a fresh random session key
func GenerateKey() ([]byte, error) {
	key := make([]byte, constants.SessionKeySize)
	if _, err := io.ReadFull(rand.Reader, key); err != nil {
		return nil, fmt.Errorf("failed to generate session key: %w", err)
	}
	return key, nil
}

func newGCM(key []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("invalid session key: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCM: %w", err)
	}
	return gcm, nil
}

// Encrypt seals plaintext under key with a fresh random nonce
func Encrypt(key, plaintext []byte) (*domain.EncryptedPayload, error) {
	if len(key) == 0 {
		return nil, ErrNoSessionKey
	}

	gcm, err := newGCM(key)
	if err != nil {
		return nil, apperrors.ValidationError(err.Error())
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, fmt.Errorf("failed to generate nonce: %w", err)
	}

	return &domain.EncryptedPayload{
		IV:   nonce,
		Data: gcm.Seal(nil, nonce, plaintext, nil),
	}, nil
}

// Decrypt opens payload under key. Any failure, including a missing key,
// malformed nonce or failed authentication, is a DecryptionError.
func Decrypt(key []byte, payload *domain.EncryptedPayload) ([]byte, error) {
	if len(key) == 0 {
		return nil, apperrors.DecryptionError(ErrNoSessionKey)
	}
	if payload == nil {
		return nil, apperrors.DecryptionError(errors.New("empty payload"))
	}

	gcm, err := newGCM(key)
	if err != nil {
		return nil, apperrors.DecryptionError(err)
	}
	if len(payload.IV) != gcm.NonceSize() {
		return nil, apperrors.DecryptionError(fmt.Errorf("nonce must be %d bytes, got %d", gcm.NonceSize(), len(payload.IV)))
	}
	if len(payload.Data) < gcm.Overhead() {
		return nil, apperrors.DecryptionError(errors.New("ciphertext too short"))
	}

	plaintext, err := gcm.Open(nil, payload.IV, payload.Data, nil)
	if err != nil {
		return nil, apperrors.DecryptionError(err)
	}
	return plaintext, nil
}
