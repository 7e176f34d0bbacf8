package crypto

import (
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
)

// ErrTenantMismatch is returned when a decrypted payload asserts a tenant
// id different from the tenant it was decrypted for. The key opened the
// ciphertext, but the payload belongs to someone else: key reuse or a
// copy/pasted foreign ciphertext.
var ErrTenantMismatch = errors.New("crypto: decrypted payload asserts a different tenant")

// Service encrypts and decrypts per-tenant payloads with AES-256-GCM.
// A fresh random nonce is generated for every call and prepended to the
// ciphertext; the tenant id is the associated data.
type Service struct {
	keys KeyProvider
}

// NewService creates an encryption service backed by the given key provider.
func NewService(keys KeyProvider) *Service {
	return &Service{keys: keys}
}

// Encrypt seals plaintext for the given tenant. Returns
// base64(nonce || ciphertext).
func (s *Service) Encrypt(ctx context.Context, tenantID string, plaintext []byte) (string, error) {
	gcm, err := s.aead(ctx, tenantID)
	if err != nil {
		return "", err
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("crypto: generate nonce: %w", err)
	}

	sealed := gcm.Seal(nonce, nonce, plaintext, []byte(tenantID))

	return base64.StdEncoding.EncodeToString(sealed), nil
}

// Decrypt opens a base64-encoded ciphertext for the given tenant.
func (s *Service) Decrypt(ctx context.Context, tenantID, ciphertext string) ([]byte, error) {
	gcm, err := s.aead(ctx, tenantID)
	if err != nil {
		return nil, err
	}

	data, err := base64.StdEncoding.DecodeString(ciphertext)
	if err != nil {
		return nil, fmt.Errorf("crypto: base64 decode: %w", err)
	}

	nonceSize := gcm.NonceSize()
	if len(data) < nonceSize {
		return nil, errors.New("crypto: ciphertext too short")
	}

	nonce, sealed := data[:nonceSize], data[nonceSize:]

	plaintext, err := gcm.Open(nil, nonce, sealed, []byte(tenantID))
	if err != nil {
		return nil, fmt.Errorf("crypto: decrypt failed: %w", err)
	}

	return plaintext, nil
}

// DecryptOwned decrypts and then verifies that, if the payload is a JSON
// object asserting its own tenantId, that assertion matches tenantID.
// Payloads that are not JSON objects, or carry no tenantId field, pass
// unchecked.
func (s *Service) DecryptOwned(ctx context.Context, tenantID, ciphertext string) ([]byte, error) {
	plaintext, err := s.Decrypt(ctx, tenantID, ciphertext)
	if err != nil {
		return nil, err
	}

	var payload struct {
		TenantID string `json:"tenantId"`
	}
	if err := json.Unmarshal(plaintext, &payload); err != nil {
		return plaintext, nil
	}

	if payload.TenantID != "" && payload.TenantID != tenantID {
		return nil, ErrTenantMismatch
	}

	return plaintext, nil
}

// aead resolves the tenant key and builds the GCM instance.
func (s *Service) aead(ctx context.Context, tenantID string) (cipher.AEAD, error) {
	key, err := s.keys.GetKey(ctx, tenantID)
	if err != nil {
		return nil, fmt.Errorf("crypto: get key: %w", err)
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("crypto: new cipher: %w", err)
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("crypto: new gcm: %w", err)
	}

	return gcm, nil
}
