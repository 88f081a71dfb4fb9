package httpapi

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/famkeep/vaultsync/internal/auth"
	"github.com/famkeep/vaultsync/internal/crypto"
	"github.com/famkeep/vaultsync/internal/limiter"
	"github.com/famkeep/vaultsync/internal/metrics"
)

// Context keys set by the auth middleware.
const (
	ctxSessionToken = "vs.sessionToken"
	ctxSubject      = "vs.subject"
)

// HeaderServiceName identifies the calling internal service for rate limiting.
const HeaderServiceName = "X-Service-Name"

// RequestLogging logs one line per request with metadata only, never payloads.
func RequestLogging(log *zap.Logger, col *metrics.Collector) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		dur := time.Since(start)

		log.Info("http",
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("dur", dur),
			zap.String("peer", c.ClientIP()),
		)
		col.Observe("http_request", dur)
	}
}

// Recovery converts panics into a plain 500 without leaking internals.
func Recovery(log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if r := recover(); r != nil {
				log.Error("panic",
					zap.Any("reason", r),
					zap.String("path", c.FullPath()),
				)
				c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "internal"})
			}
		}()
		c.Next()
	}
}

// AuthMiddleware enforces the two-part boundary authorization: the shared
// service secret and a verified session token. No operation runs if either
// check fails.
type AuthMiddleware struct {
	secretHash []byte
	secretSalt []byte
	verifier   *auth.Verifier
	lim        limiter.Limiter
	col        *metrics.Collector
	log        *zap.Logger
}

// NewAuthMiddleware constructs the boundary auth middleware. secretHash/salt
// are the Argon2id hash of the configured shared secret.
func NewAuthMiddleware(secretHash, secretSalt []byte, verifier *auth.Verifier, lim limiter.Limiter, col *metrics.Collector, log *zap.Logger) *AuthMiddleware {
	return &AuthMiddleware{
		secretHash: secretHash,
		secretSalt: secretSalt,
		verifier:   verifier,
		lim:        lim,
		col:        col,
		log:        log,
	}
}

// Require validates the shared secret, then the session token, recording
// failures against the (caller, ip) limiter key.
func (am *AuthMiddleware) Require() gin.HandlerFunc {
	return func(c *gin.Context) {
		caller := c.GetHeader(HeaderServiceName)
		if caller == "" {
			caller = "unknown"
		}
		ipHash := limiter.HashIP(c.ClientIP())
		ctx := c.Request.Context()

		allowed, retryAfter, err := am.lim.Allow(ctx, caller, ipHash)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "limiter unavailable"})
			return
		}
		if !allowed {
			c.Header("Retry-After", retryAfter.Round(time.Second).String())
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "rate limited"})
			return
		}

		secret := c.GetHeader(crypto.HeaderServiceSecret)
		if secret == "" || !crypto.VerifySecret([]byte(secret), am.secretSalt, am.secretHash) {
			am.fail(c, caller, ipHash, "bad service credential")
			return
		}

		token := c.GetHeader(crypto.HeaderSessionToken)
		subject, err := am.verifier.Verify(token)
		if err != nil {
			am.fail(c, caller, ipHash, "invalid session token")
			return
		}

		_ = am.lim.Success(ctx, caller, ipHash)
		c.Set(ctxSessionToken, token)
		c.Set(ctxSubject, subject)
		c.Next()
	}
}

func (am *AuthMiddleware) fail(c *gin.Context, caller string, ipHash []byte, msg string) {
	am.col.Inc("auth_failures")
	am.log.Warn("boundary authorization failed",
		zap.String("caller", caller),
		zap.String("reason", msg),
	)
	if blocked, _, err := am.lim.Failure(c.Request.Context(), caller, ipHash); err == nil && blocked {
		c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "rate limited"})
		return
	}
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": msg})
}

// sessionToken fetches the validated token stashed by Require.
func sessionToken(c *gin.Context) string {
	if v, ok := c.Get(ctxSessionToken); ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}
