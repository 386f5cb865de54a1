// Package encryption seals secrets stored at rest, such as provider API
// keys.
//
// A [Sealer] wraps an AEAD cipher (ChaCha20-Poly1305 by default, or
// AES-256-GCM) keyed by the SHA-256 of a configured passphrase. Every
// ciphertext is bound to associated data, so a value sealed for one
// record does not open under another record's context:
//
//	s, err := encryption.New(encryption.Config{Key: cfg.Credentials.EncryptionKey})
//	sealed, err := s.Seal(apiKey, "user-42/gemini")
//	apiKey, err = s.Open(sealed, "user-42/gemini")
package encryption
