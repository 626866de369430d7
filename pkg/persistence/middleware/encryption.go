package middleware

import (
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/aretw0/switchlink/pkg/ports"
)

const envelopeField = "__encrypted__"

// EncryptionConfig holds the keys for encryption and decryption.
type EncryptionConfig struct {
	// ActiveKey is the key used for encrypting new data.
	// Must be 32 bytes for AES-256.
	ActiveKey []byte

	// FallbackKeys is a list of old keys to try when decryption fails.
	// This enables zero-downtime key rotation.
	FallbackKeys [][]byte
}

// encryptionMiddleware encrypts stored values at rest.
// Sets and pub/sub traffic pass through untouched.
//
// The cache key is sealed as additional data, so a value copied under
// another key no longer opens.
type encryptionMiddleware struct {
	ports.Cache
	active cipher.AEAD
	// keys lists active first, then fallbacks in order.
	keys []cipher.AEAD
}

// NewEncryptionMiddleware creates a middleware that encrypts values using AES-GCM.
// It panics on a malformed key.
func NewEncryptionMiddleware(config EncryptionConfig) Middleware {
	if len(config.ActiveKey) != 32 {
		panic("active key must be 32 bytes (AES-256)")
	}
	active := mustAEAD(config.ActiveKey)
	keys := []cipher.AEAD{active}
	for _, k := range config.FallbackKeys {
		keys = append(keys, mustAEAD(k))
	}
	return func(next ports.Cache) ports.Cache {
		return &encryptionMiddleware{Cache: next, active: active, keys: keys}
	}
}

func mustAEAD(key []byte) cipher.AEAD {
	block, err := aes.NewCipher(key)
	if err != nil {
		panic(fmt.Sprintf("invalid encryption key: %v", err))
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		panic(fmt.Sprintf("invalid encryption key: %v", err))
	}
	return gcm
}

func (m *encryptionMiddleware) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	nonce := make([]byte, m.active.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return fmt.Errorf("failed to encrypt %s: %w", key, err)
	}
	sealed := m.active.Seal(nonce, nonce, value, []byte(key))

	envelope, err := json.Marshal(map[string]string{
		envelopeField: base64.StdEncoding.EncodeToString(sealed),
	})
	if err != nil {
		return fmt.Errorf("failed to marshal envelope: %w", err)
	}
	return m.Cache.Set(ctx, key, envelope, ttl)
}

func (m *encryptionMiddleware) Get(ctx context.Context, key string) ([]byte, error) {
	raw, err := m.Cache.Get(ctx, key)
	if err != nil {
		return nil, err
	}

	var envelope map[string]any
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return nil, fmt.Errorf("%s: value is missing encrypted data envelope", key)
	}
	encoded, ok := envelope[envelopeField].(string)
	if !ok {
		return nil, fmt.Errorf("%s: value is missing encrypted data envelope", key)
	}
	sealed, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("failed to decode ciphertext base64: %w", err)
	}

	plain, err := m.open(key, sealed)
	if err != nil {
		return nil, fmt.Errorf("failed to decrypt %s: %w", key, err)
	}
	return plain, nil
}

// open tries every configured key, newest first.
func (m *encryptionMiddleware) open(key string, sealed []byte) ([]byte, error) {
	for _, aead := range m.keys {
		n := aead.NonceSize()
		if len(sealed) < n {
			return nil, errors.New("ciphertext too short")
		}
		if plain, err := aead.Open(nil, sealed[:n], sealed[n:], []byte(key)); err == nil {
			return plain, nil
		}
	}
	return nil, errors.New("decryption failed with all available keys")
}
