package middleware

import (
	"context"
	"errors"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/relaydesk/tenantguard/internal/crypto"
	"github.com/relaydesk/tenantguard/internal/tenant"
)

// EncryptionKey is the gin context key for the request's *Capability.
const EncryptionKey = "encryption"

// EncryptionConfig controls the per-request encryption scope.
type EncryptionConfig struct {
	// ValidateTenantID cross-checks tenant ids asserted inside decrypted
	// payloads against the caller's tenant. Catches foreign ciphertexts
	// that a (mis)shared key would otherwise open silently.
	ValidateTenantID bool
}

// Capability is an encrypt/decrypt pair scoped to one tenant's key for
// the lifetime of a single request. It holds no key material itself; the
// provider is consulted per call and nothing is cached or logged here.
type Capability struct {
	tenantID     string
	svc          *crypto.Service
	verifyTenant bool
}

// TenantID returns the tenant the capability is scoped to.
func (cap *Capability) TenantID() string { return cap.tenantID }

// Encrypt seals plaintext under the capability's tenant key.
func (cap *Capability) Encrypt(ctx context.Context, plaintext []byte) (string, error) {
	return cap.svc.Encrypt(ctx, cap.tenantID, plaintext)
}

// Decrypt opens ciphertext under the capability's tenant key. With tenant
// validation enabled, a payload asserting a foreign tenant id is rejected
// even though the key opened it.
func (cap *Capability) Decrypt(ctx context.Context, ciphertext string) ([]byte, error) {
	if cap.verifyTenant {
		plaintext, err := cap.svc.DecryptOwned(ctx, cap.tenantID, ciphertext)
		if errors.Is(err, crypto.ErrTenantMismatch) {
			return nil, tenant.NewViolationError(
				tenant.ViolationKeyIntegrity, tenant.CodeTenantMismatch, "tenant mismatch")
		}

		return plaintext, err
	}

	return cap.svc.Decrypt(ctx, cap.tenantID, ciphertext)
}

// EncryptionScope returns gin middleware that binds a tenant-scoped
// encryption capability to the request. It requires a principal with a
// tenant id; a missing key is treated as a security violation, since
// proceeding without encryption would silently downgrade the tenant's
// data protection.
func EncryptionScope(cfg EncryptionConfig, svc *crypto.Service, keys crypto.KeyProvider, log *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		principal := GetPrincipal(c)
		if principal == nil || principal.TenantID == "" {
			respondDenied(c, tenant.NewAccessError(tenant.CodeNoTenantContext,
				"no tenant context for encryption scope"))

			return
		}

		// Probe the provider now so a missing key fails the request at
		// the boundary instead of deep inside a handler.
		if _, err := keys.GetKey(c.Request.Context(), principal.TenantID); err != nil {
			log.WithError(err).WithFields(logrus.Fields{
				"request_id": c.GetString(RequestIDKey),
				"tenant_id":  principal.TenantID,
			}).Error("tenant encryption key unavailable")
			respondDenied(c, tenant.NewViolationError(
				tenant.ViolationKeyIntegrity, tenant.CodeEncryptionKey, "encryption key not available"))

			return
		}

		c.Set(EncryptionKey, &Capability{
			tenantID:     principal.TenantID,
			svc:          svc,
			verifyTenant: cfg.ValidateTenantID,
		})
		c.Next()
	}
}

// GetEncryption returns the request's encryption capability, or nil.
func GetEncryption(c *gin.Context) *Capability {
	v, ok := c.Get(EncryptionKey)
	if !ok {
		return nil
	}

	cap, ok := v.(*Capability)
	if !ok {
		return nil
	}

	return cap
}
