// Package auth provides password hashing and session credential generation.
package auth

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
)

// HashLen is the length of a password digest in hex characters.
const HashLen = sha256.Size * 2

// HashPassword returns the hex SHA-256 digest of password.
//
// The digest is unsalted and deterministic so stored hashes stay compatible
// with the demo database. It is not suitable for real credential storage.
func HashPassword(password string) string {
	sum := sha256.Sum256([]byte(password))
	return hex.EncodeToString(sum[:])
}

// VerifyPassword reports whether password hashes to digest.
func VerifyPassword(password, digest string) bool {
	computed := HashPassword(password)
	return subtle.ConstantTimeCompare([]byte(computed), []byte(digest)) == 1
}
