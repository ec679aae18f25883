package security

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"github.com/fernet/fernet-go"
)

// gcmPrefix tags payloads sealed by Encrypt. Anything without it is treated
// as a Fernet token.
const gcmPrefix = "v1:"

var ErrUndecryptable = errors.New("failed to decrypt message payload")

// Encryptor seals message content at rest with AES-256-GCM. Fernet tokens
// written under the primary key or a legacy key remain readable.
type Encryptor struct {
	aead   cipher.AEAD
	legacy []*fernet.Key
}

// NewEncryptor derives the AES key from secret with SHA-256, so any secret
// length is accepted. Entries of legacyKeys that are not valid Fernet keys
// are skipped.
func NewEncryptor(secret []byte, legacyKeys []string) (*Encryptor, error) {
	if len(secret) == 0 {
		return nil, errors.New("encryption key must not be empty")
	}
	key := sha256.Sum256(secret)
	block, err := aes.NewCipher(key[:])
	if err != nil {
		return nil, fmt.Errorf("aes cipher: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("gcm: %w", err)
	}

	candidates := append([]string{string(secret)}, legacyKeys...)
	return &Encryptor{aead: aead, legacy: fernetKeys(candidates)}, nil
}

func fernetKeys(candidates []string) []*fernet.Key {
	var keys []*fernet.Key
	for _, c := range candidates {
		c = strings.TrimSpace(c)
		if c == "" {
			continue
		}
		if k, err := fernet.DecodeKey(c); err == nil {
			keys = append(keys, k)
		}
	}
	return keys
}

// Encrypt returns "v1:" followed by base64url(nonce || ciphertext).
func (e *Encryptor) Encrypt(plain string) (string, error) {
	nonce := make([]byte, e.aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("nonce: %w", err)
	}
	sealed := e.aead.Seal(nonce, nonce, []byte(plain), nil)
	return gcmPrefix + base64.RawURLEncoding.EncodeToString(sealed), nil
}

func (e *Encryptor) Decrypt(payload string) (string, error) {
	if body, ok := strings.CutPrefix(payload, gcmPrefix); ok {
		return e.open(body)
	}
	if len(e.legacy) == 0 {
		return "", ErrUndecryptable
	}
	// TTL 0 disables expiry.
	plain := fernet.VerifyAndDecrypt([]byte(payload), 0, e.legacy)
	if plain == nil {
		return "", ErrUndecryptable
	}
	return string(plain), nil
}

func (e *Encryptor) open(body string) (string, error) {
	raw, err := base64.RawURLEncoding.DecodeString(body)
	n := e.aead.NonceSize()
	if err != nil || len(raw) < n {
		return "", ErrUndecryptable
	}
	plain, err := e.aead.Open(nil, raw[:n], raw[n:], nil)
	if err != nil {
		return "", ErrUndecryptable
	}
	return string(plain), nil
}
