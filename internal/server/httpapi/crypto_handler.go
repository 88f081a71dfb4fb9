package httpapi

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/famkeep/vaultsync/internal/crypto"
	"github.com/famkeep/vaultsync/internal/errs"
	"github.com/famkeep/vaultsync/internal/metrics"
)

// CryptoHandler serves the envelope crypto boundary. The master key stays
// inside the cipher; only envelopes and plaintexts cross this surface.
type CryptoHandler struct {
	cipher crypto.Cipher
	col    *metrics.Collector
	log    *zap.Logger
}

// NewCryptoHandler constructs the crypto boundary handler.
func NewCryptoHandler(cipher crypto.Cipher, col *metrics.Collector, log *zap.Logger) *CryptoHandler {
	return &CryptoHandler{cipher: cipher, col: col, log: log}
}

type cryptoRequest struct {
	Action  string `json:"action" binding:"required"`
	Text    string `json:"text"`
	Payload string `json:"payload"`
}

// Handle dispatches one crypto boundary call: encrypt, decrypt, or health.
func (h *CryptoHandler) Handle(c *gin.Context) {
	var req cryptoRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "bad request", "details": err.Error()})
		return
	}
	token := sessionToken(c)

	switch req.Action {
	case "encrypt":
		env, err := h.cipher.Encrypt(c.Request.Context(), req.Text, token)
		if err != nil {
			h.col.Inc("crypto_encrypt_errors")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "encrypt failed"})
			return
		}
		h.col.Inc("crypto_encrypts")
		c.JSON(http.StatusOK, gin.H{"ciphertext": env})

	case "decrypt":
		plaintext, legacy, err := h.cipher.Decrypt(c.Request.Context(), req.Payload, token)
		if err != nil {
			h.col.Inc("crypto_decrypt_errors")
			if errors.Is(err, errs.ErrCryptoFailed) {
				// Authentication failure is integrity evidence, not a server fault.
				c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "decrypt failed"})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"error": "decrypt failed"})
			return
		}
		if legacy {
			h.col.Inc("crypto_legacy_fallbacks")
			h.log.Warn("payload decoded via legacy base64 fallback")
		}
		h.col.Inc("crypto_decrypts")
		c.JSON(http.StatusOK, gin.H{"plaintext": plaintext, "legacy": legacy})

	case "health":
		if err := h.cipher.Health(c.Request.Context(), token); err != nil {
			c.JSON(http.StatusOK, gin.H{"valid": false})
			return
		}
		c.JSON(http.StatusOK, gin.H{"valid": true})

	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown action", "details": req.Action})
	}
}
