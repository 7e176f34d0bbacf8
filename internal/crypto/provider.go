// Package crypto provides tenant-scoped AES-256-GCM encryption. Each
// tenant has its own 32-byte key; the tenant id doubles as the AEAD
// associated data, so a ciphertext sealed for one tenant never opens
// under another tenant's id even if keys were ever shared.
package crypto

import "context"

// KeyProvider resolves per-tenant encryption keys.
type KeyProvider interface {
	// GetKey returns the 32-byte AES-256 key for the given tenant.
	GetKey(ctx context.Context, tenantID string) ([]byte, error)
}
