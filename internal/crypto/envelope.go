// Package crypto implements the envelope encryption used for vault passwords:
// AES-256-GCM with a per-call random IV, encoded as hex(iv):hex(tag):hex(ct).
package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/famkeep/vaultsync/internal/errs"
)

const (
	// KeySize is the master key length (AES-256).
	KeySize = 32
	// IVSize is the GCM nonce length used by the envelope format.
	IVSize = 16
	// TagSize is the GCM authentication tag length, encoded as its own segment.
	TagSize = 16
)

// selfTestProbe is the fixed string round-tripped by SelfTest.
const selfTestProbe = "vaultsync-selftest"

// ParseMasterKey decodes a fixed-length hex-encoded master key.
func ParseMasterKey(hexKey string) ([]byte, error) {
	if hexKey == "" {
		return nil, fmt.Errorf("empty key: %w", errs.ErrBadMasterKey)
	}
	key, err := hex.DecodeString(strings.TrimSpace(hexKey))
	if err != nil {
		return nil, fmt.Errorf("decode key: %w", errs.ErrBadMasterKey)
	}
	if len(key) != KeySize {
		return nil, fmt.Errorf("key is %d bytes, want %d: %w", len(key), KeySize, errs.ErrBadMasterKey)
	}
	return key, nil
}

// RandBytes returns n cryptographically secure random bytes.
func RandBytes(n int) ([]byte, error) {
	b := make([]byte, n)
	_, err := rand.Read(b)
	return b, err
}

func newGCM(key []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("%v: %w", err, errs.ErrCryptoFailed)
	}
	gcm, err := cipher.NewGCMWithNonceSize(block, IVSize)
	if err != nil {
		return nil, fmt.Errorf("%v: %w", err, errs.ErrCryptoFailed)
	}
	return gcm, nil
}

// Seal encrypts plaintext under key and returns the envelope string.
// A fresh random IV is generated on every call; IVs are never reused or derived.
func Seal(key []byte, plaintext string) (string, error) {
	gcm, err := newGCM(key)
	if err != nil {
		return "", err
	}
	iv, err := RandBytes(IVSize)
	if err != nil {
		return "", fmt.Errorf("iv: %w", err)
	}
	raw := gcm.Seal(nil, iv, []byte(plaintext), nil)
	// The tag is appended to the ciphertext by Seal; split it out so the
	// envelope carries it as an explicit segment.
	ct := raw[:len(raw)-TagSize]
	tag := raw[len(raw)-TagSize:]
	return hex.EncodeToString(iv) + ":" + hex.EncodeToString(tag) + ":" + hex.EncodeToString(ct), nil
}

// Opened is the result of decrypting a payload.
type Opened struct {
	Plaintext string
	// Legacy reports that the payload predates envelope encryption and was
	// decoded via the plain base64 fallback, without authentication.
	Legacy bool
}

// Open decrypts an envelope produced by Seal. A payload without the two-colon
// envelope shape is treated as a legacy plain base64 value and decoded on a
// best-effort basis. A GCM authentication failure is returned as
// errs.ErrCryptoFailed; the raw ciphertext must never be used as plaintext.
func Open(key []byte, payload string) (Opened, error) {
	parts := strings.Split(payload, ":")
	if len(parts) != 3 {
		decoded, err := base64.StdEncoding.DecodeString(payload)
		if err != nil {
			return Opened{}, fmt.Errorf("legacy payload: %v: %w", err, errs.ErrCryptoFailed)
		}
		return Opened{Plaintext: string(decoded), Legacy: true}, nil
	}

	iv, err := hex.DecodeString(parts[0])
	if err != nil || len(iv) != IVSize {
		return Opened{}, fmt.Errorf("bad iv segment: %w", errs.ErrCryptoFailed)
	}
	tag, err := hex.DecodeString(parts[1])
	if err != nil || len(tag) != TagSize {
		return Opened{}, fmt.Errorf("bad tag segment: %w", errs.ErrCryptoFailed)
	}
	ct, err := hex.DecodeString(parts[2])
	if err != nil {
		return Opened{}, fmt.Errorf("bad ciphertext segment: %w", errs.ErrCryptoFailed)
	}

	gcm, err := newGCM(key)
	if err != nil {
		return Opened{}, err
	}
	raw := make([]byte, 0, len(ct)+len(tag))
	raw = append(raw, ct...)
	raw = append(raw, tag...)
	plaintext, err := gcm.Open(nil, iv, raw, nil)
	if err != nil {
		return Opened{}, fmt.Errorf("gcm open: %w", errs.ErrCryptoFailed)
	}
	return Opened{Plaintext: string(plaintext)}, nil
}

// SelfTest encrypts and decrypts a fixed string, confirming the key is usable.
// Used for readiness probing only.
func SelfTest(key []byte) error {
	env, err := Seal(key, selfTestProbe)
	if err != nil {
		return err
	}
	out, err := Open(key, env)
	if err != nil {
		return err
	}
	if out.Legacy || out.Plaintext != selfTestProbe {
		return fmt.Errorf("round trip mismatch: %w", errs.ErrCryptoFailed)
	}
	return nil
}
