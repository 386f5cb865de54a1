package encryption

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/chacha20poly1305"
)

// Algorithm names a supported AEAD.
type Algorithm string

const (
	AlgorithmChaCha20 Algorithm = "chacha20-poly1305"
	AlgorithmAESGCM   Algorithm = "aes-256-gcm"
)

// MinKeyLength is the shortest passphrase accepted.
const MinKeyLength = 16

// ErrOpen is returned when a ciphertext fails authentication.
var ErrOpen = errors.New("encryption: message authentication failed")

// Config selects the key and algorithm.
type Config struct {
	Key       string    `mapstructure:"key"`
	Algorithm Algorithm `mapstructure:"algorithm"`
}

// ApplyDefaults selects ChaCha20-Poly1305.
func (c *Config) ApplyDefaults() {
	if c.Algorithm == "" {
		c.Algorithm = AlgorithmChaCha20
	}
}

// Validate checks the key length and algorithm.
func (c *Config) Validate() error {
	if len(c.Key) < MinKeyLength {
		return fmt.Errorf("encryption: key must be at least %d characters", MinKeyLength)
	}
	switch c.Algorithm {
	case AlgorithmChaCha20, AlgorithmAESGCM:
		return nil
	}
	return fmt.Errorf("encryption: unsupported algorithm %q", c.Algorithm)
}

// Sealer encrypts and authenticates short secrets.
type Sealer struct {
	aead cipher.AEAD
}

// New creates a sealer from cfg.
func New(cfg Config) (*Sealer, error) {
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	key := sha256.Sum256([]byte(cfg.Key))

	var aead cipher.AEAD
	var err error
	switch cfg.Algorithm {
	case AlgorithmAESGCM:
		var block cipher.Block
		if block, err = aes.NewCipher(key[:]); err == nil {
			aead, err = cipher.NewGCM(block)
		}
	default:
		aead, err = chacha20poly1305.New(key[:])
	}
	if err != nil {
		return nil, fmt.Errorf("encryption: create %s: %w", cfg.Algorithm, err)
	}
	return &Sealer{aead: aead}, nil
}

// Seal encrypts plaintext bound to associated data and returns
// base64(nonce || ciphertext).
func (s *Sealer) Seal(plaintext, associated string) (string, error) {
	nonce := make([]byte, s.aead.NonceSize(), s.aead.NonceSize()+len(plaintext)+s.aead.Overhead())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("encryption: generate nonce: %w", err)
	}
	sealed := s.aead.Seal(nonce, nonce, []byte(plaintext), []byte(associated))
	return base64.StdEncoding.EncodeToString(sealed), nil
}

// Open reverses Seal. It fails with ErrOpen when the ciphertext was
// altered, sealed with another key, or bound to other associated data.
func (s *Sealer) Open(sealed, associated string) (string, error) {
	data, err := base64.StdEncoding.DecodeString(sealed)
	if err != nil {
		return "", fmt.Errorf("encryption: decode: %w", err)
	}
	n := s.aead.NonceSize()
	if len(data) < n+s.aead.Overhead() {
		return "", ErrOpen
	}
	plaintext, err := s.aead.Open(nil, data[:n], data[n:], []byte(associated))
	if err != nil {
		return "", ErrOpen
	}
	return string(plaintext), nil
}
