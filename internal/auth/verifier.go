// Package auth validates session tokens against the identity provider's
// published signing keys. Tokens are verified only, never issued here.
package auth

import (
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"
	"os"

	"github.com/golang-jwt/jwt/v5"

	"github.com/famkeep/vaultsync/internal/errs"
)

// Verifier checks that a session token is a well-formed, signed, non-expired
// credential from the identity provider, with issuer and audience pinned.
type Verifier struct {
	keys   []*rsa.PublicKey
	parser *jwt.Parser
}

// NewVerifier constructs a verifier over the identity provider's public keys.
func NewVerifier(keys []*rsa.PublicKey, issuer, audience string) (*Verifier, error) {
	if len(keys) == 0 {
		return nil, errors.New("no public keys")
	}
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodRS256.Alg()}),
		jwt.WithIssuer(issuer),
		jwt.WithAudience(audience),
		jwt.WithExpirationRequired(),
	)
	return &Verifier{keys: keys, parser: parser}, nil
}

// Verify parses and validates the token and returns its subject. Any failure
// (malformed, bad signature, expired, wrong issuer or audience) maps to
// errs.ErrUnauthorized; no key material is ever part of the token.
func (v *Verifier) Verify(token string) (string, error) {
	var lastErr error
	for _, key := range v.keys {
		parsed, err := v.parser.ParseWithClaims(token, &jwt.RegisteredClaims{},
			func(*jwt.Token) (any, error) { return key, nil })
		if err != nil {
			lastErr = err
			// Signature mismatch may just mean a rotated key; try the next one.
			if errors.Is(err, jwt.ErrTokenSignatureInvalid) {
				continue
			}
			break
		}
		sub, err := parsed.Claims.GetSubject()
		if err != nil {
			return "", fmt.Errorf("subject: %w", errs.ErrUnauthorized)
		}
		return sub, nil
	}
	return "", fmt.Errorf("%v: %w", lastErr, errs.ErrUnauthorized)
}

// LoadPublicKeysFile reads one or more PEM-encoded RSA public keys from path.
func LoadPublicKeysFile(path string) ([]*rsa.PublicKey, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return ParsePublicKeys(data)
}

// ParsePublicKeys parses all RSA public keys from PEM data (PKIX or PKCS1).
func ParsePublicKeys(data []byte) ([]*rsa.PublicKey, error) {
	var keys []*rsa.PublicKey
	for {
		var block *pem.Block
		block, data = pem.Decode(data)
		if block == nil {
			break
		}
		switch block.Type {
		case "PUBLIC KEY":
			pub, err := x509.ParsePKIXPublicKey(block.Bytes)
			if err != nil {
				return nil, fmt.Errorf("parse public key: %w", err)
			}
			rsaPub, ok := pub.(*rsa.PublicKey)
			if !ok {
				return nil, errors.New("not an RSA public key")
			}
			keys = append(keys, rsaPub)
		case "RSA PUBLIC KEY":
			pub, err := x509.ParsePKCS1PublicKey(block.Bytes)
			if err != nil {
				return nil, fmt.Errorf("parse public key: %w", err)
			}
			keys = append(keys, pub)
		}
	}
	if len(keys) == 0 {
		return nil, errors.New("no RSA public keys in PEM data")
	}
	return keys, nil
}
