package service

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

	"golang.org/x/crypto/pbkdf2"
)

// KeySealer encrypts pool private keys at rest with AES-256-GCM under a
// PBKDF2-SHA256 key. Sealed form: "v1$<hexsalt>$<hex nonce|ciphertext>",
// so KDF parameters can change without a schema migration.
const (
	sealVersion   = "v1"
	kdfIterations = 310_000
	saltSize      = 16
)

type KeySealer struct {
	secret string
}

func NewKeySealer(secret string) (*KeySealer, error) {
	if secret == "" {
		return nil, errors.New("key encryption secret must not be empty")
	}
	return &KeySealer{secret: secret}, nil
}

func (s *KeySealer) Seal(plain string) (string, error) {
	salt := make([]byte, saltSize)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return "", err
	}
	gcm, err := s.aead(salt)
	if err != nil {
		return "", err
	}
	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", err
	}
	sealed := gcm.Seal(nonce, nonce, []byte(plain), nil)
	return fmt.Sprintf("%s$%s$%s", sealVersion, hex.EncodeToString(salt), hex.EncodeToString(sealed)), nil
}

func (s *KeySealer) Open(sealed string) (string, error) {
	parts := strings.Split(sealed, "$")
	if len(parts) != 3 || parts[0] != sealVersion {
		return "", errors.New("malformed sealed key")
	}
	salt, err := hex.DecodeString(parts[1])
	if err != nil {
		return "", errors.New("malformed sealed key salt")
	}
	blob, err := hex.DecodeString(parts[2])
	if err != nil {
		return "", errors.New("malformed sealed key payload")
	}
	gcm, err := s.aead(salt)
	if err != nil {
		return "", err
	}
	if len(blob) < gcm.NonceSize() {
		return "", errors.New("sealed key too short")
	}
	nonce, ct := blob[:gcm.NonceSize()], blob[gcm.NonceSize():]
	plain, err := gcm.Open(nil, nonce, ct, nil)
	if err != nil {
		return "", errors.New("failed to decrypt key")
	}
	return string(plain), nil
}

func (s *KeySealer) aead(salt []byte) (cipher.AEAD, error) {
	key := pbkdf2.Key([]byte(s.secret), salt, kdfIterations, 32, sha256.New)
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}
