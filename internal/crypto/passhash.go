// Package crypto implements server-side password hashing and verification.
package crypto

import "golang.org/x/crypto/bcrypt"

// bcryptCost matches the work factor the stand's old web client used.
const bcryptCost = 10

// HashPassword returns a bcrypt hash of password.
func HashPassword(password []byte) ([]byte, error) {
	return bcrypt.GenerateFromPassword(password, bcryptCost)
}

// VerifyPassword verifies password against an expected bcrypt hash.
func VerifyPassword(password, expected []byte) bool {
	return bcrypt.CompareHashAndPassword(expected, password) == nil
}
