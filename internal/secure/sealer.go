// Package secure seals saved voucher URLs at rest.
//
// Ciphertexts use AES-256-GCM with a random 12 byte IV and are encoded as
// hex(iv):hex(authTag):hex(ciphertext). Fingerprints are keyed BLAKE2b-256
// digests under a subkey derived from the master key with HKDF-SHA256, so
// equal URLs can be matched without decrypting anything.
package secure

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"strings"

	"golang.org/x/crypto/blake2b"
	"golang.org/x/crypto/hkdf"
)

const (
	// KeySize is the AES-256 key length in bytes.
	KeySize = 32

	ivSize  = 12
	tagSize = 16

	fingerprintInfo = "voucherwatch link fingerprint v1"
)

var (
	ErrInvalidKey       = errors.New("encryption key must be 64 hex characters")
	ErrInvalidFormat    = errors.New("invalid encrypted data format")
	ErrDecryptionFailed = errors.New("decryption failed")
)

// Sealer encrypts and fingerprints values under one master key. It is safe
// for concurrent use.
type Sealer struct {
	aead           cipher.AEAD
	fingerprintKey []byte
}

// NewSealer creates a Sealer from a 64 character hex key.
func NewSealer(hexKey string) (*Sealer, error) {
	key, err := hex.DecodeString(strings.TrimSpace(hexKey))
	if err != nil || len(key) != KeySize {
		return nil, ErrInvalidKey
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}

	aead, err := cipher.NewGCMWithNonceSize(block, ivSize)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCM: %w", err)
	}

	fpKey := make([]byte, KeySize)
	if _, err := io.ReadFull(hkdf.New(sha256.New, key, nil, []byte(fingerprintInfo)), fpKey); err != nil {
		return nil, fmt.Errorf("failed to derive fingerprint key: %w", err)
	}

	return &Sealer{aead: aead, fingerprintKey: fpKey}, nil
}

// Encrypt seals plaintext with a fresh random IV.
func (s *Sealer) Encrypt(plaintext string) (string, error) {
	iv := make([]byte, ivSize)
	if _, err := rand.Read(iv); err != nil {
		return "", fmt.Errorf("failed to generate IV: %w", err)
	}

	sealed := s.aead.Seal(nil, iv, []byte(plaintext), nil)
	ciphertext, tag := sealed[:len(sealed)-tagSize], sealed[len(sealed)-tagSize:]

	return hex.EncodeToString(iv) + ":" + hex.EncodeToString(tag) + ":" + hex.EncodeToString(ciphertext), nil
}

// Decrypt opens a value produced by Encrypt.
func (s *Sealer) Decrypt(encrypted string) (string, error) {
	parts := strings.Split(encrypted, ":")
	if len(parts) != 3 {
		return "", ErrInvalidFormat
	}

	iv, err := hex.DecodeString(parts[0])
	if err != nil || len(iv) != ivSize {
		return "", ErrInvalidFormat
	}
	tag, err := hex.DecodeString(parts[1])
	if err != nil || len(tag) != tagSize {
		return "", ErrInvalidFormat
	}
	ciphertext, err := hex.DecodeString(parts[2])
	if err != nil {
		return "", ErrInvalidFormat
	}

	plaintext, err := s.aead.Open(nil, iv, append(ciphertext, tag...), nil)
	if err != nil {
		return "", ErrDecryptionFailed
	}

	return string(plaintext), nil
}

// Fingerprint returns a deterministic keyed digest of value as hex.
func (s *Sealer) Fingerprint(value string) string {
	h, err := blake2b.New256(s.fingerprintKey)
	if err != nil {
		// only fails for keys longer than 64 bytes
		panic(err)
	}
	h.Write([]byte(value))
	return hex.EncodeToString(h.Sum(nil))
}

// GenerateKey returns a random key suitable for NewSealer.
func GenerateKey() (string, error) {
	key := make([]byte, KeySize)
	if _, err := rand.Read(key); err != nil {
		return "", fmt.Errorf("failed to generate key: %w", err)
	}
	return hex.EncodeToString(key), nil
}
