package crypto

import (
	"crypto/subtle"

	"golang.org/x/crypto/argon2"
)

// Argon2id parameters for shared-secret verification at the crypto boundary.
const (
	argonTime    uint32 = 1
	argonMemory  uint32 = 32 * 1024 // 32 MB
	argonThreads uint8  = 1
	argonKeyLen  uint32 = 32
)

// HashSecret returns the Argon2id hash of the shared service secret.
func HashSecret(secret, salt []byte) []byte {
	return argon2.IDKey(secret, salt, argonTime, argonMemory, argonThreads, argonKeyLen)
}

// VerifySecret verifies a presented secret against the expected hash and salt.
func VerifySecret(secret, salt, expected []byte) bool {
	got := HashSecret(secret, salt)
	return subtle.ConstantTimeCompare(got, expected) == 1
}
