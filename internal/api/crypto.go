package api

import (
	"encoding/base64"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/relaydesk/tenantguard/internal/middleware"
	"github.com/relaydesk/tenantguard/internal/tenant"
)

// CryptoHandler serves the tenant-scoped envelope encryption endpoints.
// The encryption capability is attached by the EncryptionScope middleware
// and is always bound to the caller's verified tenant key.
type CryptoHandler struct {
	log *logrus.Logger
}

// NewCryptoHandler creates a CryptoHandler.
func NewCryptoHandler(log *logrus.Logger) *CryptoHandler {
	return &CryptoHandler{log: log}
}

type encryptRequest struct {
	Plaintext string `json:"plaintext" binding:"required"`
}

type decryptRequest struct {
	Ciphertext string `json:"ciphertext" binding:"required"`
}

// Encrypt handles POST /api/v1/crypto/encrypt. Plaintext is base64 in,
// ciphertext is the service's portable string encoding out.
func (h *CryptoHandler) Encrypt(c *gin.Context) {
	capability := middleware.GetEncryption(c)
	if capability == nil {
		respondError(c, http.StatusInternalServerError, ErrCodeInternalError, "encryption scope missing")

		return
	}

	var req encryptRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, ErrCodeInvalidRequest, "plaintext is required")

		return
	}

	plaintext, err := base64.StdEncoding.DecodeString(req.Plaintext)
	if err != nil {
		respondError(c, http.StatusBadRequest, ErrCodeInvalidRequest, "plaintext must be base64")

		return
	}

	ciphertext, err := capability.Encrypt(c.Request.Context(), plaintext)
	if err != nil {
		h.log.WithError(err).WithField("tenant_id", capability.TenantID()).Error("encryption failed")
		respondError(c, http.StatusInternalServerError, ErrCodeInternalError, "encryption failed")

		return
	}

	c.JSON(http.StatusOK, gin.H{
		"ciphertext": ciphertext,
		"tenant_id":  capability.TenantID(),
	})
}

// Decrypt handles POST /api/v1/crypto/decrypt. A ciphertext asserting a
// foreign tenant id is a violation, not a malformed input.
func (h *CryptoHandler) Decrypt(c *gin.Context) {
	capability := middleware.GetEncryption(c)
	if capability == nil {
		respondError(c, http.StatusInternalServerError, ErrCodeInternalError, "encryption scope missing")

		return
	}

	var req decryptRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, ErrCodeInvalidRequest, "ciphertext is required")

		return
	}

	plaintext, err := capability.Decrypt(c.Request.Context(), req.Ciphertext)
	if err != nil {
		var violation *tenant.ViolationError
		if errors.As(err, &violation) {
			respondError(c, http.StatusForbidden, violation.Code, "access denied")

			return
		}

		// Wrong key, truncated payload and tampered ciphertext are
		// indistinguishable here; none of them get details back.
		respondError(c, http.StatusBadRequest, ErrCodeInvalidRequest, "unable to decrypt payload")

		return
	}

	c.JSON(http.StatusOK, gin.H{
		"plaintext": base64.StdEncoding.EncodeToString(plaintext),
		"tenant_id": capability.TenantID(),
	})
}
