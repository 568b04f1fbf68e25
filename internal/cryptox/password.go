package cryptox

import (
	"crypto/subtle"

	"github.com/dmitrijs2005/keyescrow/internal/common"
	"golang.org/x/crypto/argon2"
)

// SaltSize is the length of the random per-actor password salt.
const SaltSize = 16

// DerivePasswordVerifier stretches password with argon2id.
func DerivePasswordVerifier(password []byte, salt []byte) []byte {
	return argon2.IDKey(password, salt, 1, 64*1024, 4, 32)
}

// HashPassword returns a new random salt and the matching verifier.
func HashPassword(password string) (salt, verifier []byte) {
	salt = common.GenerateRandByteArray(SaltSize)
	return salt, DerivePasswordVerifier([]byte(password), salt)
}

// VerifyPassword compares password against a stored salt and verifier in
// constant time.
func VerifyPassword(password string, salt, verifier []byte) bool {
	if len(verifier) == 0 {
		return false
	}
	candidate := DerivePasswordVerifier([]byte(password), salt)
	defer common.WipeByteArray(candidate)
	return subtle.ConstantTimeCompare(verifier, candidate) == 1
}
